// Package repository holds the Issue Store and the Identity Ledger storage
// contracts together with their MongoDB and in-memory implementations.
package repository

import (
	"context"
	"errors"
	"math"

	"civicguardian-be/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	ErrNotFound        = errors.New("record not found")
	ErrVersionConflict = errors.New("issue was modified concurrently")
	ErrDuplicateEmail  = errors.New("email already registered")
)

// EarthRadiusMeters is used to convert metric radii to radians.
const EarthRadiusMeters = 6378100.0

// IssueFilter narrows an issue listing. Zero values mean "no filter".
type IssueFilter struct {
	Category     models.IssueCategory
	Status       models.IssueStatus
	Near         *models.GeoPoint
	RadiusMeters float64
	Page         int
	Limit        int
}

// IssuePage is one page of a listing plus totals.
type IssuePage struct {
	Issues []models.Issue `json:"issues"`
	Total  int64          `json:"total"`
	Page   int            `json:"page"`
	Limit  int            `json:"limit"`
	Pages  int            `json:"pages"`
}

// PageCount returns ceil(total/limit).
func PageCount(total int64, limit int) int {
	if limit <= 0 {
		return 0
	}
	return int(math.Ceil(float64(total) / float64(limit)))
}

// PageOffset returns how many of total records precede the page. Pages past
// the end saturate at total rather than overflowing.
func PageOffset(page, limit int, total int64) int64 {
	if page <= 1 || limit <= 0 || total <= 0 {
		return 0
	}
	if int64(page-1) > total/int64(limit) {
		return total
	}
	offset := int64(page-1) * int64(limit)
	if offset > total {
		return total
	}
	return offset
}

// IssueRepository is the Issue Store. Replace is a whole-record write that
// succeeds only if the stored version still equals issue.Version; on success
// issue.Version is advanced.
type IssueRepository interface {
	Create(ctx context.Context, issue *models.Issue) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Issue, error)
	Find(ctx context.Context, filter IssueFilter) (*IssuePage, error)
	FindByReporter(ctx context.Context, reporter primitive.ObjectID) ([]models.Issue, error)
	Replace(ctx context.Context, issue *models.Issue) error
	// Snapshot returns every issue without comments and timeline, for
	// read-only projections.
	Snapshot(ctx context.Context) ([]models.Issue, error)
}

// RewardDelta is applied atomically to a single user record.
type RewardDelta struct {
	Points         int
	IssuesReported int
	IssuesVerified int
}

func (d RewardDelta) IsZero() bool {
	return d.Points == 0 && d.IssuesReported == 0 && d.IssuesVerified == 0
}

// UserRepository stores User records and applies ledger mutations as single
// atomic operations per user.
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByIDs(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]*models.User, error)
	// ApplyReward increments counters and returns the updated user.
	ApplyReward(ctx context.Context, id primitive.ObjectID, delta RewardDelta) (*models.User, error)
	// GrantBadge inserts the badge unless one with the same name exists.
	GrantBadge(ctx context.Context, id primitive.ObjectID, badge models.Badge) (bool, error)
	TopByPoints(ctx context.Context, role models.Role, limit int) ([]models.User, error)
	CountByRole(ctx context.Context, role models.Role) (int64, error)
}
