package services

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"civicguardian-be/apperrors"
	"civicguardian-be/models"
	"civicguardian-be/repository"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	minPasswordLength = 6
	LeaderboardSize   = 10
)

// TokenIssuer signs session tokens for a user id.
type TokenIssuer interface {
	GenerateToken(userID string) (string, error)
}

// Identity handles registration, login and profile lookups. Reputation is
// left to the Ledger.
type Identity struct {
	users  repository.UserRepository
	ledger *Ledger
	tokens TokenIssuer
	now    func() time.Time
}

func NewIdentity(users repository.UserRepository, ledger *Ledger, tokens TokenIssuer, now func() time.Time) *Identity {
	if now == nil {
		now = time.Now
	}
	return &Identity{users: users, ledger: ledger, tokens: tokens, now: now}
}

type RegisterCommand struct {
	Name       string
	Email      string
	Password   string
	Role       models.Role
	Department string
}

func (c *RegisterCommand) Validate() error {
	c.Name = strings.TrimSpace(c.Name)
	c.Email = strings.ToLower(strings.TrimSpace(c.Email))
	c.Department = strings.TrimSpace(c.Department)
	if c.Role == "" {
		c.Role = models.RoleCitizen
	}

	switch {
	case c.Name == "":
		return apperrors.Validation("name is required")
	case c.Email == "":
		return apperrors.Validation("email is required")
	case len(c.Password) < minPasswordLength:
		return apperrors.Validation("password must be at least %d characters", minPasswordLength)
	case !c.Role.Valid():
		return apperrors.Validation("invalid role %q", c.Role)
	case c.Role == models.RoleAdmin:
		return apperrors.Validation("admin accounts cannot be self-registered")
	case c.Role == models.RoleAuthority && c.Department == "":
		return apperrors.Validation("department is required for authority accounts")
	}
	if _, err := mail.ParseAddress(c.Email); err != nil {
		return apperrors.Validation("invalid email address")
	}
	return nil
}

// AuthResult is returned by Register and Login.
type AuthResult struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

func (s *Identity) Register(ctx context.Context, cmd RegisterCommand) (*AuthResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	now := s.now()
	user := &models.User{
		ID:        primitive.NewObjectID(),
		Name:      cmd.Name,
		Email:     cmd.Email,
		Password:  cmd.Password,
		Role:      cmd.Role,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if cmd.Department != "" {
		dept := cmd.Department
		user.Department = &dept
	}
	user.Normalize()
	if err := user.HashPassword(); err != nil {
		return nil, apperrors.Internal("failed to hash password", err)
	}

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, apperrors.Conflict("user already exists")
		}
		return nil, apperrors.Internal("failed to create user", err)
	}

	// the account exists from here on; a missing badge is not a failed registration
	if _, err := s.ledger.GrantBadge(ctx, user.ID, BadgeCivicStarter, BadgeIcon(BadgeCivicStarter)); err != nil {
		sideEffectFailuresTotal.WithLabelValues("badge").Inc()
		log.Error().Err(err).Str("user_id", user.ID.Hex()).Str("badge", BadgeCivicStarter).Msg("failed to grant welcome badge")
	}
	return s.session(ctx, user.ID)
}

func (s *Identity) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, apperrors.Validation("email and password are required")
	}

	user, err := s.users.FindByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.Unauthorized("invalid credentials")
	}
	if err != nil {
		return nil, apperrors.Internal("failed to load user", err)
	}
	if !user.ComparePassword(password) {
		return nil, apperrors.Unauthorized("invalid credentials")
	}
	return s.session(ctx, user.ID)
}

func (s *Identity) session(ctx context.Context, userID primitive.ObjectID) (*AuthResult, error) {
	user, err := s.Profile(ctx, userID)
	if err != nil {
		return nil, err
	}
	token, err := s.tokens.GenerateToken(userID.Hex())
	if err != nil {
		return nil, apperrors.Internal("failed to generate token", err)
	}
	return &AuthResult{Token: token, User: user}, nil
}

// Profile returns a user without the password hash.
func (s *Identity) Profile(ctx context.Context, userID primitive.ObjectID) (*models.User, error) {
	user, err := s.users.FindByID(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NotFound("user not found")
	}
	if err != nil {
		return nil, apperrors.Internal("failed to load user", err)
	}
	user.Password = ""
	user.Normalize()
	return user, nil
}

// ResolveActor turns a verified token subject into an Actor. Unknown or
// malformed ids are treated as unauthenticated.
func (s *Identity) ResolveActor(ctx context.Context, userID string) (Actor, error) {
	id, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return Actor{}, apperrors.Unauthorized("invalid token subject")
	}
	user, err := s.users.FindByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return Actor{}, apperrors.Unauthorized("user no longer exists")
	}
	if err != nil {
		return Actor{}, apperrors.Internal("failed to load user", err)
	}
	return Actor{ID: user.ID, Role: user.Role, Department: user.Department}, nil
}

// Leaderboard lists the top citizens by civicPoints.
func (s *Identity) Leaderboard(ctx context.Context) ([]models.User, error) {
	users, err := s.users.TopByPoints(ctx, models.RoleCitizen, LeaderboardSize)
	if err != nil {
		return nil, apperrors.Internal("failed to load leaderboard", err)
	}
	for i := range users {
		users[i].Password = ""
		users[i].Normalize()
	}
	return users, nil
}

// Users resolves a set of ids for populating references. Missing ids are
// simply absent from the result.
func (s *Identity) Users(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]*models.User, error) {
	users, err := s.users.FindByIDs(ctx, ids)
	if err != nil {
		return nil, apperrors.Internal("failed to load users", err)
	}
	return users, nil
}
