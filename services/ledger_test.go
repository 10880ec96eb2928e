package services

import (
	"context"
	"sync"
	"testing"

	"civicguardian-be/apperrors"
	"civicguardian-be/models"
	"civicguardian-be/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestLedgerAward(t *testing.T) {
	f := newFixture(t)
	alice := f.user(t, "alice", models.RoleCitizen)

	user, err := f.ledger.Award(f.ctx, alice.ID, 7)
	require.NoError(t, err)
	require.Equal(t, 7, user.CivicPoints)

	_, err = f.ledger.Award(f.ctx, alice.ID, -1)
	require.True(t, apperrors.Is(err, apperrors.KindValidation))

	_, err = f.ledger.Award(f.ctx, primitive.NewObjectID(), 1)
	require.True(t, apperrors.Is(err, apperrors.KindNotFound))

	require.Equal(t, 7, f.load(t, alice).CivicPoints)
}

func TestLedgerIncrementCounter(t *testing.T) {
	f := newFixture(t)
	alice := f.user(t, "alice", models.RoleCitizen)

	_, err := f.ledger.IncrementCounter(f.ctx, alice.ID, CounterIssuesVerified)
	require.NoError(t, err)
	user, err := f.ledger.IncrementCounter(f.ctx, alice.ID, CounterIssuesReported)
	require.NoError(t, err)
	require.Equal(t, 1, user.IssuesVerified)
	require.Equal(t, 1, user.IssuesReported)
	require.Zero(t, user.CivicPoints)

	_, err = f.ledger.IncrementCounter(f.ctx, alice.ID, Counter("civicPoints"))
	require.True(t, apperrors.Is(err, apperrors.KindValidation))
}

func TestLedgerGrantBadgeDeduplicates(t *testing.T) {
	f := newFixture(t)
	alice := f.user(t, "alice", models.RoleCitizen)

	granted, err := f.ledger.GrantBadge(f.ctx, alice.ID, BadgeCivicStarter, BadgeIcon(BadgeCivicStarter))
	require.NoError(t, err)
	require.True(t, granted)

	granted, err = f.ledger.GrantBadge(f.ctx, alice.ID, BadgeCivicStarter, "x")
	require.NoError(t, err)
	require.False(t, granted)

	user := f.load(t, alice)
	require.Len(t, user.Badges, 1)
	require.Equal(t, "🌟", user.Badges[0].Icon)
	require.Equal(t, f.clock.Now(), user.Badges[0].EarnedAt)
}

func TestLedgerThresholdBadges(t *testing.T) {
	f := newFixture(t)
	alice := f.user(t, "alice", models.RoleCitizen)

	for i := 0; i < 9; i++ {
		_, err := f.ledger.Reward(f.ctx, alice.ID, repository.RewardDelta{Points: PointsForVerification, IssuesVerified: 1})
		require.NoError(t, err)
	}
	user := f.load(t, alice)
	require.False(t, user.HasBadge(BadgeTopVerifier))
	require.False(t, user.HasBadge(BadgeCommunityHero))

	user, err := f.ledger.Reward(f.ctx, alice.ID, repository.RewardDelta{Points: 55, IssuesVerified: 1})
	require.NoError(t, err)
	require.True(t, user.HasBadge(BadgeTopVerifier))
	require.True(t, user.HasBadge(BadgeCommunityHero))

	// further rewards never duplicate a badge or move points backwards
	user, err = f.ledger.Reward(f.ctx, alice.ID, repository.RewardDelta{Points: 1})
	require.NoError(t, err)
	require.Len(t, f.load(t, alice).Badges, 2)
	require.Equal(t, 101, user.CivicPoints)
}

func TestLedgerConcurrentRewardsDoNotLoseIncrements(t *testing.T) {
	f := newFixture(t)
	alice := f.user(t, "alice", models.RoleCitizen)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.ledger.Award(f.ctx, alice.ID, PointsForUpvote)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	user := f.load(t, alice)
	require.Equal(t, 100, user.CivicPoints)
	require.True(t, user.HasBadge(BadgeCommunityHero))
	require.Len(t, user.Badges, 1)
}

// racingUsers grants the First Report badge between reading the new totals
// and the ledger's own grant, as a concurrent Reward would.
type racingUsers struct {
	*repository.MemoryUserRepository
}

func (r racingUsers) ApplyReward(ctx context.Context, id primitive.ObjectID, delta repository.RewardDelta) (*models.User, error) {
	user, err := r.MemoryUserRepository.ApplyReward(ctx, id, delta)
	if err != nil {
		return nil, err
	}
	if _, err := r.MemoryUserRepository.GrantBadge(ctx, id, models.Badge{Name: BadgeFirstReport, Icon: BadgeIcon(BadgeFirstReport)}); err != nil {
		return nil, err
	}
	return user, nil
}

func TestLedgerRewardSkipsBadgeGrantedConcurrently(t *testing.T) {
	f := newFixture(t)
	alice := f.user(t, "alice", models.RoleCitizen)
	ledger := NewLedger(racingUsers{f.users}, f.clock.Now)

	user, err := ledger.Reward(f.ctx, alice.ID, repository.RewardDelta{Points: PointsForReport, IssuesReported: 1})
	require.NoError(t, err)

	count := func(u *models.User) int {
		n := 0
		for _, b := range u.Badges {
			if b.Name == BadgeFirstReport {
				n++
			}
		}
		return n
	}
	require.Zero(t, count(user))
	require.Equal(t, 1, count(f.load(t, alice)))
}

func TestKeyedMutexReleasesEntries(t *testing.T) {
	k := newKeyedMutex()
	unlockA := k.Lock("a")
	unlockB := k.Lock("b")
	require.Equal(t, 2, k.size())

	done := make(chan struct{})
	go func() {
		unlock := k.Lock("a")
		unlock()
		close(done)
	}()

	unlockA()
	<-done
	unlockB()
	require.Zero(t, k.size())
}
