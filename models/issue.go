package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// IssueCategory enum
type IssueCategory string

const (
	Road        IssueCategory = "road"
	Water       IssueCategory = "water"
	Electricity IssueCategory = "electricity"
	Safety      IssueCategory = "safety"
	Waste       IssueCategory = "waste"
	Other       IssueCategory = "other"
)

// Categories lists every accepted category in display order.
var Categories = []IssueCategory{Road, Water, Electricity, Safety, Waste, Other}

func (c IssueCategory) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// IssueStatus enum
type IssueStatus string

const (
	Pending    IssueStatus = "pending"
	Verified   IssueStatus = "verified"
	InProgress IssueStatus = "in-progress"
	Resolved   IssueStatus = "resolved"
	Rejected   IssueStatus = "rejected"
)

// Statuses lists every lifecycle state.
var Statuses = []IssueStatus{Pending, Verified, InProgress, Resolved, Rejected}

func (s IssueStatus) Valid() bool {
	for _, known := range Statuses {
		if s == known {
			return true
		}
	}
	return false
}

// Outstanding reports whether the issue still needs authority work.
func (s IssueStatus) Outstanding() bool {
	return s == Pending || s == Verified || s == InProgress
}

// Timeline actions
const (
	ActionCreated      = "created"
	ActionStatusUpdate = "status_update"
	ActionVerified     = "verified"
)

// Default values applied at report time
const (
	DefaultPriority = 5
	MinPriority     = 1
	MaxPriority     = 10
)

// GeoPoint is a GeoJSON point; Coordinates are [longitude, latitude].
type GeoPoint struct {
	Type        string    `bson:"type" json:"type"`
	Coordinates []float64 `bson:"coordinates" json:"coordinates"`
	Address     string    `bson:"address,omitempty" json:"address,omitempty"`
}

// NewGeoPoint builds a point from latitude/longitude order, which is how
// clients send them.
func NewGeoPoint(lat, lng float64, address string) GeoPoint {
	return GeoPoint{Type: "Point", Coordinates: []float64{lng, lat}, Address: address}
}

func (p GeoPoint) Longitude() float64 {
	if len(p.Coordinates) < 2 {
		return 0
	}
	return p.Coordinates[0]
}

func (p GeoPoint) Latitude() float64 {
	if len(p.Coordinates) < 2 {
		return 0
	}
	return p.Coordinates[1]
}

// Image is an opaque reference to a stored blob.
type Image struct {
	URL        string    `bson:"url" json:"url"`
	UploadedAt time.Time `bson:"uploadedAt" json:"uploadedAt"`
}

type Comment struct {
	User      primitive.ObjectID `bson:"user" json:"user"`
	Text      string             `bson:"text" json:"text"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
}

// TimelineEntry is one append-only audit record.
type TimelineEntry struct {
	Action      string             `bson:"action" json:"action"`
	Description string             `bson:"description" json:"description"`
	PerformedBy primitive.ObjectID `bson:"performedBy" json:"performedBy"`
	CreatedAt   time.Time          `bson:"createdAt" json:"createdAt"`
}

// Issue represents a civic issue reported by a citizen.
//
// Upvotes and Verifications are keyed by the hex id of the acting user, so a
// user can hold at most one entry in each.
type Issue struct {
	ID                 primitive.ObjectID      `bson:"_id,omitempty" json:"id"`
	Title              string                  `bson:"title" json:"title"`
	Description        string                  `bson:"description" json:"description"`
	Category           IssueCategory           `bson:"category" json:"category"`
	Location           GeoPoint                `bson:"location" json:"location"`
	Images             []Image                 `bson:"images" json:"images"`
	Status             IssueStatus             `bson:"status" json:"status"`
	Priority           int                     `bson:"priority" json:"priority"`
	Reporter           primitive.ObjectID      `bson:"reporter" json:"reporter"`
	AssignedDepartment *string                 `bson:"assignedDepartment" json:"assignedDepartment"`
	AssignedTo         *primitive.ObjectID     `bson:"assignedTo" json:"assignedTo"`
	Upvotes            map[string]Upvote       `bson:"upvotes" json:"-"`
	Verifications      map[string]Verification `bson:"verifications" json:"-"`
	Comments           []Comment               `bson:"comments" json:"comments"`
	Timeline           []TimelineEntry         `bson:"timeline" json:"timeline"`
	ResolvedAt         *time.Time              `bson:"resolvedAt" json:"resolvedAt"`
	Version            int64                   `bson:"version" json:"-"`
	CreatedAt          time.Time               `bson:"createdAt" json:"createdAt"`
	UpdatedAt          time.Time               `bson:"updatedAt" json:"updatedAt"`
}

// AddTimelineEntry appends to the audit trail. Entries are never edited.
func (i *Issue) AddTimelineEntry(action, description string, by primitive.ObjectID, at time.Time) {
	i.Timeline = append(i.Timeline, TimelineEntry{
		Action:      action,
		Description: description,
		PerformedBy: by,
		CreatedAt:   at,
	})
}

func (i *Issue) UpvoteCount() int { return len(i.Upvotes) }

func (i *Issue) HasUpvote(userID primitive.ObjectID) bool {
	_, ok := i.Upvotes[userID.Hex()]
	return ok
}

func (i *Issue) HasVerification(userID primitive.ObjectID) bool {
	_, ok := i.Verifications[userID.Hex()]
	return ok
}

// PositiveVerifications counts entries with Verified == true.
func (i *Issue) PositiveVerifications() int {
	n := 0
	for _, v := range i.Verifications {
		if v.Verified {
			n++
		}
	}
	return n
}

// Clone returns a deep copy so callers can mutate without touching a shared
// record.
func (i *Issue) Clone() *Issue {
	c := *i
	if i.AssignedDepartment != nil {
		d := *i.AssignedDepartment
		c.AssignedDepartment = &d
	}
	if i.AssignedTo != nil {
		a := *i.AssignedTo
		c.AssignedTo = &a
	}
	if i.ResolvedAt != nil {
		r := *i.ResolvedAt
		c.ResolvedAt = &r
	}
	c.Location.Coordinates = append([]float64(nil), i.Location.Coordinates...)
	c.Images = append([]Image(nil), i.Images...)
	c.Comments = append([]Comment(nil), i.Comments...)
	c.Timeline = append([]TimelineEntry(nil), i.Timeline...)
	c.Upvotes = make(map[string]Upvote, len(i.Upvotes))
	for k, v := range i.Upvotes {
		c.Upvotes[k] = v
	}
	c.Verifications = make(map[string]Verification, len(i.Verifications))
	for k, v := range i.Verifications {
		c.Verifications[k] = v
	}
	return &c
}
