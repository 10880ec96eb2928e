package services

import (
	"context"
	"errors"
	"time"

	"civicguardian-be/apperrors"
	"civicguardian-be/models"
	"civicguardian-be/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Counter names a ledger counter that can be incremented.
type Counter string

const (
	CounterIssuesReported Counter = "issuesReported"
	CounterIssuesVerified Counter = "issuesVerified"
)

// Ledger is the Identity & Reputation Ledger. It owns civicPoints, badges and
// activity counters; it never touches issue data.
type Ledger struct {
	users repository.UserRepository
	now   func() time.Time
}

func NewLedger(users repository.UserRepository, now func() time.Time) *Ledger {
	if now == nil {
		now = time.Now
	}
	return &Ledger{users: users, now: now}
}

func ledgerError(err error, userID primitive.ObjectID) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.NotFound("user %s not found", userID.Hex())
	}
	return apperrors.Internal("failed to update reputation", err)
}

// Award adds points to a user's civicPoints balance.
func (l *Ledger) Award(ctx context.Context, userID primitive.ObjectID, points int) (*models.User, error) {
	if points < 0 {
		return nil, apperrors.Validation("points must not be negative")
	}
	return l.Reward(ctx, userID, repository.RewardDelta{Points: points})
}

// IncrementCounter bumps issuesReported or issuesVerified by one.
func (l *Ledger) IncrementCounter(ctx context.Context, userID primitive.ObjectID, counter Counter) (*models.User, error) {
	switch counter {
	case CounterIssuesReported:
		return l.Reward(ctx, userID, repository.RewardDelta{IssuesReported: 1})
	case CounterIssuesVerified:
		return l.Reward(ctx, userID, repository.RewardDelta{IssuesVerified: 1})
	default:
		return nil, apperrors.Validation("unknown counter %q", counter)
	}
}

// Reward applies points and counter increments in one atomic write, then
// grants any threshold badge the new totals unlock.
func (l *Ledger) Reward(ctx context.Context, userID primitive.ObjectID, delta repository.RewardDelta) (*models.User, error) {
	if delta.Points < 0 || delta.IssuesReported < 0 || delta.IssuesVerified < 0 {
		return nil, apperrors.Validation("reward deltas must not be negative")
	}
	user, err := l.users.ApplyReward(ctx, userID, delta)
	if err != nil {
		return nil, ledgerError(err, userID)
	}

	for _, name := range earnedBadges(user) {
		granted, err := l.GrantBadge(ctx, userID, name, BadgeIcon(name))
		if err != nil {
			return user, err
		}
		// a concurrent reward may have granted it after our counters were read
		if granted {
			user.Badges = append(user.Badges, models.Badge{Name: name, Icon: BadgeIcon(name), EarnedAt: l.now()})
		}
	}
	return user, nil
}

// GrantBadge inserts the badge unless the user already holds one with the
// same name. It reports whether the badge was newly granted.
func (l *Ledger) GrantBadge(ctx context.Context, userID primitive.ObjectID, name, icon string) (bool, error) {
	granted, err := l.users.GrantBadge(ctx, userID, models.Badge{Name: name, Icon: icon, EarnedAt: l.now()})
	if err != nil {
		return false, ledgerError(err, userID)
	}
	return granted, nil
}
