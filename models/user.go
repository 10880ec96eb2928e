package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/crypto/bcrypt"
)

type Role string

const (
	RoleCitizen   Role = "citizen"
	RoleAuthority Role = "authority"
	RoleAdmin     Role = "admin"
)

func (r Role) Valid() bool {
	return r == RoleCitizen || r == RoleAuthority || r == RoleAdmin
}

// CanTriage reports whether the role may run authority-only operations.
func (r Role) CanTriage() bool {
	return r == RoleAuthority || r == RoleAdmin
}

type Badge struct {
	Name     string    `bson:"name" json:"name"`
	Icon     string    `bson:"icon" json:"icon"`
	EarnedAt time.Time `bson:"earnedAt" json:"earnedAt"`
}

type User struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name           string             `bson:"name" json:"name"`
	Email          string             `bson:"email" json:"email"`
	Password       string             `bson:"password,omitempty" json:"-"`
	Role           Role               `bson:"role" json:"role"`
	Department     *string            `bson:"department" json:"department"`
	Avatar         *string            `bson:"avatar,omitempty" json:"avatar,omitempty"`
	CivicPoints    int                `bson:"civicPoints" json:"civicPoints"`
	Badges         []Badge            `bson:"badges" json:"badges"`
	IssuesReported int                `bson:"issuesReported" json:"issuesReported"`
	IssuesVerified int                `bson:"issuesVerified" json:"issuesVerified"`
	CreatedAt      time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt      time.Time          `bson:"updatedAt" json:"updatedAt"`
}

func (u *User) HashPassword() error {
	hashed, err := bcrypt.GenerateFromPassword([]byte(u.Password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.Password = string(hashed)
	return nil
}

func (u *User) ComparePassword(candidate string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(candidate))
	return err == nil
}

func (u *User) HasBadge(name string) bool {
	for _, b := range u.Badges {
		if b.Name == name {
			return true
		}
	}
	return false
}

// Clone copies the user including its badge slice.
func (u *User) Clone() *User {
	c := *u
	c.Badges = append([]Badge(nil), u.Badges...)
	if u.Department != nil {
		d := *u.Department
		c.Department = &d
	}
	if u.Avatar != nil {
		a := *u.Avatar
		c.Avatar = &a
	}
	return &c
}

// UserSummary is the public projection used when populating references.
type UserSummary struct {
	ID          primitive.ObjectID `json:"id"`
	Name        string             `json:"name"`
	Avatar      *string            `json:"avatar,omitempty"`
	CivicPoints *int               `json:"civicPoints,omitempty"`
}

func (u *User) Summary() UserSummary {
	return UserSummary{ID: u.ID, Name: u.Name, Avatar: u.Avatar}
}
