package services

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"civicguardian-be/events"
	"civicguardian-be/models"
	"civicguardian-be/repository"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// conflictingIssues fails the next n Replace calls with a version conflict,
// as if another process had written first.
type conflictingIssues struct {
	repository.IssueRepository
	remaining int32
}

func (r *conflictingIssues) Replace(ctx context.Context, issue *models.Issue) error {
	if atomic.AddInt32(&r.remaining, -1) >= 0 {
		return repository.ErrVersionConflict
	}
	return r.IssueRepository.Replace(ctx, issue)
}

type fixture struct {
	ctx      context.Context
	clock    *fakeClock
	issues   *repository.MemoryIssueRepository
	users    *repository.MemoryUserRepository
	ledger   *Ledger
	engine   *Engine
	recorder *events.Recorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		ctx:      context.Background(),
		clock:    newFakeClock(),
		issues:   repository.NewMemoryIssueRepository(),
		users:    repository.NewMemoryUserRepository(),
		recorder: &events.Recorder{},
	}
	f.ledger = NewLedger(f.users, f.clock.Now)
	f.engine = NewEngine(f.issues, f.ledger, WithClock(f.clock.Now), WithPublisher(f.recorder))
	return f
}

func (f *fixture) user(t *testing.T, name string, role models.Role) Actor {
	t.Helper()
	u := &models.User{
		ID:    primitive.NewObjectID(),
		Name:  name,
		Email: name + "@example.com",
		Role:  role,
	}
	require.NoError(t, f.users.Create(f.ctx, u))
	return Actor{ID: u.ID, Role: role}
}

func (f *fixture) load(t *testing.T, actor Actor) *models.User {
	t.Helper()
	u, err := f.users.FindByID(f.ctx, actor.ID)
	require.NoError(t, err)
	return u
}

func (f *fixture) loadIssue(t *testing.T, id primitive.ObjectID) *models.Issue {
	t.Helper()
	issue, err := f.issues.FindByID(f.ctx, id)
	require.NoError(t, err)
	return issue
}

func coords(lat, lng float64) (*float64, *float64) { return &lat, &lng }

func (f *fixture) report(t *testing.T, actor Actor, category models.IssueCategory) *models.Issue {
	t.Helper()
	lat, lng := coords(28.6139, 77.2090)
	issue, err := f.engine.Report(f.ctx, actor, ReportCommand{
		Title:       "Pothole near market",
		Description: "Large pothole damaging vehicles",
		Category:    category,
		Latitude:    lat,
		Longitude:   lng,
		Address:     "Main Road",
	})
	require.NoError(t, err)
	return issue
}
