package repository

import (
	"context"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"civicguardian-be/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MemoryIssueRepository keeps issues in process memory. It is used for the
// "memory" store driver and by tests; records are copied on the way in and
// out so callers never share mutable state with the store.
type MemoryIssueRepository struct {
	mu     sync.RWMutex
	issues map[primitive.ObjectID]*models.Issue
}

func NewMemoryIssueRepository() *MemoryIssueRepository {
	return &MemoryIssueRepository{issues: make(map[primitive.ObjectID]*models.Issue)}
}

func (r *MemoryIssueRepository) Create(_ context.Context, issue *models.Issue) error {
	if issue.ID.IsZero() {
		issue.ID = primitive.NewObjectID()
	}
	issue.Normalize()

	r.mu.Lock()
	defer r.mu.Unlock()
	r.issues[issue.ID] = issue.Clone()
	return nil
}

func (r *MemoryIssueRepository) FindByID(_ context.Context, id primitive.ObjectID) (*models.Issue, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	issue, ok := r.issues[id]
	if !ok {
		return nil, ErrNotFound
	}
	return issue.Clone(), nil
}

// sortedLocked returns clones ordered newest first.
func (r *MemoryIssueRepository) sortedLocked(keep func(*models.Issue) bool) []models.Issue {
	out := make([]models.Issue, 0, len(r.issues))
	for _, issue := range r.issues {
		if keep(issue) {
			out = append(out, *issue.Clone())
		}
	}
	sort.Slice(out, func(a, b int) bool {
		if out[a].CreatedAt.Equal(out[b].CreatedAt) {
			return out[a].ID.Hex() > out[b].ID.Hex()
		}
		return out[a].CreatedAt.After(out[b].CreatedAt)
	})
	return out
}

func (r *MemoryIssueRepository) Find(_ context.Context, filter IssueFilter) (*IssuePage, error) {
	r.mu.RLock()
	matched := r.sortedLocked(func(issue *models.Issue) bool {
		if filter.Category != "" && issue.Category != filter.Category {
			return false
		}
		if filter.Status != "" && issue.Status != filter.Status {
			return false
		}
		if filter.Near != nil && DistanceMeters(*filter.Near, issue.Location) > filter.RadiusMeters {
			return false
		}
		return true
	})
	r.mu.RUnlock()

	total := int64(len(matched))
	start := int(PageOffset(filter.Page, filter.Limit, total))
	end := len(matched)
	if filter.Limit < end-start {
		end = start + filter.Limit
	}

	return &IssuePage{
		Issues: matched[start:end],
		Total:  total,
		Page:   filter.Page,
		Limit:  filter.Limit,
		Pages:  PageCount(total, filter.Limit),
	}, nil
}

func (r *MemoryIssueRepository) FindByReporter(_ context.Context, reporter primitive.ObjectID) ([]models.Issue, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sortedLocked(func(issue *models.Issue) bool { return issue.Reporter == reporter }), nil
}

func (r *MemoryIssueRepository) Replace(_ context.Context, issue *models.Issue) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.issues[issue.ID]
	if !ok {
		return ErrNotFound
	}
	if stored.Version != issue.Version {
		return ErrVersionConflict
	}
	issue.Version++
	r.issues[issue.ID] = issue.Clone()
	return nil
}

func (r *MemoryIssueRepository) Snapshot(_ context.Context) ([]models.Issue, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := r.sortedLocked(func(*models.Issue) bool { return true })
	for i := range out {
		out[i].Comments = nil
		out[i].Timeline = nil
	}
	return out, nil
}

// DistanceMeters is the great-circle distance between two points.
func DistanceMeters(a, b models.GeoPoint) float64 {
	toRad := func(deg float64) float64 { return deg * math.Pi / 180 }
	lat1, lat2 := toRad(a.Latitude()), toRad(b.Latitude())
	dLat := lat2 - lat1
	dLng := toRad(b.Longitude() - a.Longitude())

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * EarthRadiusMeters * math.Asin(math.Min(1, math.Sqrt(h)))
}

// MemoryUserRepository is the in-memory Identity Ledger.
type MemoryUserRepository struct {
	mu      sync.Mutex
	users   map[primitive.ObjectID]*models.User
	byEmail map[string]primitive.ObjectID
}

func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{
		users:   make(map[primitive.ObjectID]*models.User),
		byEmail: make(map[string]primitive.ObjectID),
	}
}

func publicCopy(u *models.User) *models.User {
	c := u.Clone()
	c.Password = ""
	return c
}

func (r *MemoryUserRepository) Create(_ context.Context, user *models.User) error {
	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	user.Normalize()

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byEmail[user.Email]; exists {
		return ErrDuplicateEmail
	}
	r.users[user.ID] = user.Clone()
	r.byEmail[user.Email] = user.ID
	return nil
}

func (r *MemoryUserRepository) FindByID(_ context.Context, id primitive.ObjectID) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return publicCopy(u), nil
}

func (r *MemoryUserRepository) FindByEmail(_ context.Context, email string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byEmail[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return nil, ErrNotFound
	}
	return r.users[id].Clone(), nil
}

func (r *MemoryUserRepository) FindByIDs(_ context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[primitive.ObjectID]*models.User, len(ids))
	for _, id := range ids {
		if u, ok := r.users[id]; ok {
			out[id] = publicCopy(u)
		}
	}
	return out, nil
}

func (r *MemoryUserRepository) ApplyReward(_ context.Context, id primitive.ObjectID, delta RewardDelta) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	u.CivicPoints += delta.Points
	u.IssuesReported += delta.IssuesReported
	u.IssuesVerified += delta.IssuesVerified
	u.UpdatedAt = time.Now()
	return publicCopy(u), nil
}

func (r *MemoryUserRepository) GrantBadge(_ context.Context, id primitive.ObjectID, badge models.Badge) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return false, ErrNotFound
	}
	if u.HasBadge(badge.Name) {
		return false, nil
	}
	u.Badges = append(u.Badges, badge)
	u.UpdatedAt = time.Now()
	return true, nil
}

func (r *MemoryUserRepository) TopByPoints(_ context.Context, role models.Role, limit int) ([]models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []models.User{}
	for _, u := range r.users {
		if u.Role == role {
			out = append(out, *publicCopy(u))
		}
	}
	sort.Slice(out, func(a, b int) bool {
		if out[a].CivicPoints == out[b].CivicPoints {
			return out[a].ID.Hex() < out[b].ID.Hex()
		}
		return out[a].CivicPoints > out[b].CivicPoints
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MemoryUserRepository) CountByRole(_ context.Context, role models.Role) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, u := range r.users {
		if u.Role == role {
			n++
		}
	}
	return n, nil
}
