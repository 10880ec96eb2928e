package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"civicguardian-be/apperrors"
	"civicguardian-be/events"
	"civicguardian-be/models"
	"civicguardian-be/repository"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ErrAlreadyVerified is returned when an actor verifies the same issue twice.
var ErrAlreadyVerified = apperrors.Conflict("already verified")

// maxWriteAttempts bounds how often a command is re-applied after losing an
// optimistic write race to another process.
const maxWriteAttempts = 5

const (
	DefaultPageLimit    = 20
	MaxPageLimit        = 100
	DefaultRadiusMeters = 5000
)

// Engine is the issue lifecycle state machine. Every mutation of one issue
// runs under that issue's lock and lands as a single versioned replace, so
// the status change and its timeline entry are never observed apart.
type Engine struct {
	issues    repository.IssueRepository
	ledger    *Ledger
	publisher events.Publisher
	locks     *keyedMutex
	now       func() time.Time
	log       zerolog.Logger
}

type EngineOption func(*Engine)

func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) { e.now = now }
}

func WithPublisher(p events.Publisher) EngineOption {
	return func(e *Engine) { e.publisher = p }
}

func WithLogger(l zerolog.Logger) EngineOption {
	return func(e *Engine) { e.log = l }
}

func NewEngine(issues repository.IssueRepository, ledger *Ledger, opts ...EngineOption) *Engine {
	e := &Engine{
		issues:    issues,
		ledger:    ledger,
		publisher: events.NoopPublisher{},
		locks:     newKeyedMutex(),
		now:       time.Now,
		log:       zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Report creates a pending issue owned by the actor and credits the reporter.
func (e *Engine) Report(ctx context.Context, actor Actor, cmd ReportCommand) (*models.Issue, error) {
	if err := actor.requireAuthenticated(); err != nil {
		return nil, err
	}
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	now := e.now()
	issue := &models.Issue{
		ID:          primitive.NewObjectID(),
		Title:       cmd.Title,
		Description: cmd.Description,
		Category:    cmd.Category,
		Location:    models.NewGeoPoint(*cmd.Latitude, *cmd.Longitude, cmd.Address),
		Status:      models.Pending,
		Priority:    models.DefaultPriority,
		Reporter:    actor.ID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	for _, url := range cmd.Images {
		issue.Images = append(issue.Images, models.Image{URL: url, UploadedAt: now})
	}
	issue.Normalize()
	issue.AddTimelineEntry(models.ActionCreated, "Issue reported by citizen", actor.ID, now)

	if err := e.issues.Create(ctx, issue); err != nil {
		return nil, apperrors.Internal("failed to save issue", err)
	}
	issuesReportedTotal.WithLabelValues(string(issue.Category)).Inc()

	e.reward(ctx, issue.ID, actor.ID, repository.RewardDelta{Points: PointsForReport, IssuesReported: 1})
	e.publish(ctx, issue, events.IssueCreated, actor.ID)
	return issue, nil
}

// SetStatus is the authority override; it may move an issue to any state.
func (e *Engine) SetStatus(ctx context.Context, actor Actor, cmd SetStatusCommand) (*models.Issue, error) {
	if err := actor.requireTriage(); err != nil {
		return nil, err
	}
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	issue, err := e.mutate(ctx, cmd.IssueID, func(issue *models.Issue, now time.Time) error {
		issue.Status = cmd.Status
		if cmd.AssignedDepartment != nil {
			dept := *cmd.AssignedDepartment
			issue.AssignedDepartment = &dept
		}
		if cmd.Status == models.Resolved {
			issue.ResolvedAt = &now
		} else {
			issue.ResolvedAt = nil
		}
		issue.AddTimelineEntry(models.ActionStatusUpdate, fmt.Sprintf("Status changed to %s", cmd.Status), actor.ID, now)
		return nil
	})
	if err != nil {
		return nil, err
	}

	statusTransitionsTotal.WithLabelValues(string(cmd.Status), "authority").Inc()
	e.publish(ctx, issue, events.IssueStatusChanged, actor.ID)
	return issue, nil
}

// ToggleUpvote adds or removes the actor's upvote. Only additions reward the
// reporter; removals never deduct.
func (e *Engine) ToggleUpvote(ctx context.Context, actor Actor, issueID primitive.ObjectID) (*UpvoteResult, error) {
	if err := actor.requireAuthenticated(); err != nil {
		return nil, err
	}

	var upvoted bool
	issue, err := e.mutate(ctx, issueID, func(issue *models.Issue, now time.Time) error {
		key := actor.ID.Hex()
		if issue.HasUpvote(actor.ID) {
			delete(issue.Upvotes, key)
			upvoted = false
		} else {
			issue.Upvotes[key] = models.Upvote{User: actor.ID, CreatedAt: now}
			upvoted = true
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if upvoted {
		e.reward(ctx, issue.ID, issue.Reporter, repository.RewardDelta{Points: PointsForUpvote})
	}
	return &UpvoteResult{Upvoted: upvoted, UpvoteCount: issue.UpvoteCount()}, nil
}

// Verify records the actor's one and only verification of an issue. The
// verifier is credited whatever the verdict.
func (e *Engine) Verify(ctx context.Context, actor Actor, cmd VerifyCommand) (*VerifyResult, error) {
	if err := actor.requireAuthenticated(); err != nil {
		return nil, err
	}
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	var transitioned bool
	issue, err := e.mutate(ctx, cmd.IssueID, func(issue *models.Issue, now time.Time) error {
		transitioned = false
		if issue.HasVerification(actor.ID) {
			return ErrAlreadyVerified
		}
		issue.Verifications[actor.ID.Hex()] = models.Verification{
			User:      actor.ID,
			Verified:  cmd.Verified,
			Comment:   cmd.Comment,
			CreatedAt: now,
		}
		if issue.Status == models.Pending && issue.PositiveVerifications() >= VerificationThreshold {
			issue.Status = models.Verified
			issue.AddTimelineEntry(models.ActionVerified, "Issue verified by community", actor.ID, now)
			transitioned = true
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.reward(ctx, issue.ID, actor.ID, repository.RewardDelta{Points: PointsForVerification, IssuesVerified: 1})
	if transitioned {
		statusTransitionsTotal.WithLabelValues(string(models.Verified), "community").Inc()
		if _, err := e.ledger.GrantBadge(ctx, issue.Reporter, BadgeVerifiedReporter, BadgeIcon(BadgeVerifiedReporter)); err != nil {
			e.sideEffectFailed("badge", issue.ID, issue.Reporter, err)
		}
		e.publish(ctx, issue, events.IssueVerified, actor.ID)
	}

	return &VerifyResult{
		VerificationCount:     len(issue.Verifications),
		PositiveVerifications: issue.PositiveVerifications(),
		Status:                issue.Status,
	}, nil
}

// Comment appends to the discussion and returns the full comment list.
func (e *Engine) Comment(ctx context.Context, actor Actor, cmd CommentCommand) ([]models.Comment, error) {
	if err := actor.requireAuthenticated(); err != nil {
		return nil, err
	}
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	issue, err := e.mutate(ctx, cmd.IssueID, func(issue *models.Issue, now time.Time) error {
		issue.Comments = append(issue.Comments, models.Comment{User: actor.ID, Text: cmd.Text, CreatedAt: now})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return issue.Comments, nil
}

// Get fetches one issue.
func (e *Engine) Get(ctx context.Context, issueID primitive.ObjectID) (*models.Issue, error) {
	issue, err := e.issues.FindByID(ctx, issueID)
	if err != nil {
		return nil, issueError(err)
	}
	issue.Normalize()
	return issue, nil
}

// ListQuery holds the public listing filters.
type ListQuery struct {
	Category     models.IssueCategory
	Status       models.IssueStatus
	Page         int
	Limit        int
	Latitude     *float64
	Longitude    *float64
	RadiusMeters float64
}

func (q *ListQuery) Validate() error {
	if q.Page == 0 {
		q.Page = 1
	}
	if q.Limit == 0 {
		q.Limit = DefaultPageLimit
	}
	switch {
	case q.Page < 1:
		return apperrors.Validation("page must be at least 1")
	case q.Limit < 1:
		return apperrors.Validation("limit must be at least 1")
	case q.Category != "" && !q.Category.Valid():
		return apperrors.Validation("invalid category %q", q.Category)
	case q.Status != "" && !q.Status.Valid():
		return apperrors.Validation("invalid status %q", q.Status)
	case (q.Latitude == nil) != (q.Longitude == nil):
		return apperrors.Validation("lat and lng must be given together")
	case q.Latitude != nil && !inRange(*q.Latitude, 90):
		return apperrors.Validation("lat must be between -90 and 90")
	case q.Longitude != nil && !inRange(*q.Longitude, 180):
		return apperrors.Validation("lng must be between -180 and 180")
	case math.IsNaN(q.RadiusMeters) || math.IsInf(q.RadiusMeters, 0) || q.RadiusMeters < 0:
		return apperrors.Validation("radius must be a non-negative number of meters")
	}
	if q.Limit > MaxPageLimit {
		q.Limit = MaxPageLimit
	}
	if q.RadiusMeters == 0 {
		q.RadiusMeters = DefaultRadiusMeters
	}
	return nil
}

// inRange rejects NaN as well as values outside [-bound, bound].
func inRange(v, bound float64) bool {
	return v >= -bound && v <= bound
}

// List returns one page of issues, newest first.
func (e *Engine) List(ctx context.Context, q ListQuery) (*repository.IssuePage, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	filter := repository.IssueFilter{
		Category: q.Category,
		Status:   q.Status,
		Page:     q.Page,
		Limit:    q.Limit,
	}
	if q.Latitude != nil {
		center := models.NewGeoPoint(*q.Latitude, *q.Longitude, "")
		filter.Near = &center
		filter.RadiusMeters = q.RadiusMeters
	}

	page, err := e.issues.Find(ctx, filter)
	if err != nil {
		return nil, apperrors.Internal("failed to list issues", err)
	}
	for i := range page.Issues {
		page.Issues[i].Normalize()
	}
	return page, nil
}

// Mine returns the issues reported by the actor, newest first.
func (e *Engine) Mine(ctx context.Context, actor Actor) ([]models.Issue, error) {
	if err := actor.requireAuthenticated(); err != nil {
		return nil, err
	}
	issues, err := e.issues.FindByReporter(ctx, actor.ID)
	if err != nil {
		return nil, apperrors.Internal("failed to load issues", err)
	}
	for i := range issues {
		issues[i].Normalize()
	}
	return issues, nil
}

func issueError(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.NotFound("issue not found")
	}
	return apperrors.Internal("failed to load issue", err)
}

// mutate runs apply against the latest copy of the issue and writes it back.
// apply may be invoked more than once if another writer wins the version race,
// so it must derive everything from the issue it is handed.
func (e *Engine) mutate(ctx context.Context, id primitive.ObjectID, apply func(*models.Issue, time.Time) error) (*models.Issue, error) {
	unlock := e.locks.Lock(id.Hex())
	defer unlock()

	for attempt := 1; attempt <= maxWriteAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, apperrors.Internal("request cancelled", err)
		}

		issue, err := e.issues.FindByID(ctx, id)
		if err != nil {
			return nil, issueError(err)
		}
		issue.Normalize()

		now := e.now()
		if err := apply(issue, now); err != nil {
			return nil, err
		}
		issue.UpdatedAt = now

		err = e.issues.Replace(ctx, issue)
		switch {
		case err == nil:
			return issue, nil
		case errors.Is(err, repository.ErrVersionConflict):
			writeConflictsTotal.Inc()
			e.log.Debug().Str("issue_id", id.Hex()).Int("attempt", attempt).Msg("issue write conflict, retrying")
		default:
			return nil, issueError(err)
		}
	}
	return nil, apperrors.Conflict("issue is being modified concurrently, please retry")
}

// reward applies a ledger side effect after the issue write has landed. A
// failure leaves the issue in place and is only logged.
func (e *Engine) reward(ctx context.Context, issueID, userID primitive.ObjectID, delta repository.RewardDelta) {
	if _, err := e.ledger.Reward(ctx, userID, delta); err != nil {
		e.sideEffectFailed("reward", issueID, userID, err)
	}
}

func (e *Engine) publish(ctx context.Context, issue *models.Issue, eventType string, actorID primitive.ObjectID) {
	event := events.Event{
		Type:       eventType,
		IssueID:    issue.ID.Hex(),
		Status:     string(issue.Status),
		Category:   string(issue.Category),
		ActorID:    actorID.Hex(),
		OccurredAt: e.now(),
	}
	if issue.AssignedDepartment != nil {
		event.Department = *issue.AssignedDepartment
	}
	if err := e.publisher.Publish(ctx, event); err != nil {
		sideEffectFailuresTotal.WithLabelValues("event").Inc()
		e.log.Warn().Err(err).Str("issue_id", event.IssueID).Str("event", eventType).Msg("failed to publish issue event")
	}
}

func (e *Engine) sideEffectFailed(kind string, issueID, userID primitive.ObjectID, err error) {
	sideEffectFailuresTotal.WithLabelValues(kind).Inc()
	e.log.Error().Err(err).
		Str("issue_id", issueID.Hex()).
		Str("user_id", userID.Hex()).
		Str("side_effect", kind).
		Msg("reputation update failed after issue write")
}
