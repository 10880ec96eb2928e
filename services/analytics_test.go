package services

import (
	"testing"
	"time"

	"civicguardian-be/apperrors"
	"civicguardian-be/models"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var base = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func snapshotIssue(category models.IssueCategory, status models.IssueStatus, priority int, createdAt time.Time, lat, lng float64) models.Issue {
	issue := models.Issue{
		ID:        primitive.NewObjectID(),
		Category:  category,
		Status:    status,
		Priority:  priority,
		Location:  models.NewGeoPoint(lat, lng, ""),
		CreatedAt: createdAt,
	}
	issue.Normalize()
	return issue
}

func withDepartment(issue models.Issue, dept string) models.Issue {
	issue.AssignedDepartment = &dept
	return issue
}

func resolvedAfter(issue models.Issue, d time.Duration) models.Issue {
	at := issue.CreatedAt.Add(d)
	issue.Status = models.Resolved
	issue.ResolvedAt = &at
	return issue
}

func TestRankPriorityQueue(t *testing.T) {
	oldHigh := snapshotIssue(models.Road, models.Pending, 9, base.Add(-48*time.Hour), 0, 0)
	newHigh := snapshotIssue(models.Water, models.InProgress, 9, base.Add(-time.Hour), 0, 0)
	low := snapshotIssue(models.Road, models.Verified, 2, base.Add(-72*time.Hour), 0, 0)
	resolved := snapshotIssue(models.Road, models.Resolved, 10, base, 0, 0)
	rejected := snapshotIssue(models.Road, models.Rejected, 10, base, 0, 0)

	queue := RankPriorityQueue([]models.Issue{low, resolved, newHigh, rejected, oldHigh}, 20)
	require.Len(t, queue, 3)
	require.Equal(t, []primitive.ObjectID{oldHigh.ID, newHigh.ID, low.ID},
		[]primitive.ObjectID{queue[0].ID, queue[1].ID, queue[2].ID})

	require.Len(t, RankPriorityQueue([]models.Issue{low, newHigh, oldHigh}, 1), 1)
}

func TestComputeStats(t *testing.T) {
	issues := []models.Issue{
		snapshotIssue(models.Road, models.Pending, 5, base.Add(-time.Hour), 0, 0),
		snapshotIssue(models.Road, models.InProgress, 5, base.Add(-25*time.Hour), 0, 0),
		resolvedAfter(snapshotIssue(models.Water, models.Pending, 5, base.Add(-26*time.Hour), 0, 0), 10*time.Hour),
		resolvedAfter(snapshotIssue(models.Water, models.Pending, 5, base.Add(-30*24*time.Hour), 0, 0), 5*time.Hour),
	}
	// resolved without a timestamp does not count toward the average
	noStamp := snapshotIssue(models.Safety, models.Resolved, 5, base.Add(-40*24*time.Hour), 0, 0)
	issues = append(issues, noStamp)

	stats := ComputeStats(issues, base)

	require.Equal(t, 5, stats.Overview.TotalIssues)
	require.Equal(t, 1, stats.Overview.PendingIssues)
	require.Equal(t, 1, stats.Overview.InProgressIssues)
	require.Equal(t, 3, stats.Overview.ResolvedIssues)
	require.Equal(t, 60, stats.Overview.ResolutionRate)
	require.Equal(t, 8, stats.Overview.AvgResolutionHours)

	require.Equal(t, []Bucket{{"road", 2}, {"water", 2}, {"safety", 1}}, stats.CategoryStats)
	require.Equal(t, []Bucket{{"pending", 1}, {"in-progress", 1}, {"resolved", 3}}, stats.StatusStats)
	require.Equal(t, []DailyCount{{"2026-03-09", 2}, {"2026-03-10", 1}}, stats.DailyTrends)
}

func TestComputeStatsEmpty(t *testing.T) {
	stats := ComputeStats(nil, base)
	require.Zero(t, stats.Overview.ResolutionRate)
	require.Zero(t, stats.Overview.AvgResolutionHours)
	require.NotNil(t, stats.DailyTrends)
	require.Empty(t, stats.CategoryStats)
}

func TestComputeHeatmap(t *testing.T) {
	issues := []models.Issue{
		snapshotIssue(models.Water, models.Pending, 4, base.Add(-4*time.Hour), 28.6141, 77.2091),
		snapshotIssue(models.Road, models.Pending, 8, base.Add(-3*time.Hour), 28.6139, 77.2088),
		snapshotIssue(models.Road, models.Verified, 6, base.Add(-2*time.Hour), 28.6142, 77.2089),
		snapshotIssue(models.Safety, models.Pending, 5, base.Add(-time.Hour), 19.0760, 72.8777),
		snapshotIssue(models.Waste, models.Pending, 7, base, 12.97, 77.59),
		snapshotIssue(models.Water, models.Pending, 3, base.Add(time.Hour), 12.97, 77.59),
	}

	heatmap := ComputeHeatmap(issues)
	require.Len(t, heatmap.Points, 6)
	require.InDelta(t, 0.4, heatmap.Points[0].Weight, 1e-9)

	require.Len(t, heatmap.Hotspots, 2)
	delhi := heatmap.Hotspots[0]
	require.Equal(t, 3, delhi.Count)
	require.InDelta(t, 28.61, delhi.Lat, 1e-9)
	require.InDelta(t, 77.21, delhi.Lng, 1e-9)
	require.Equal(t, 6, delhi.AvgPriority)
	require.Equal(t, models.Road, delhi.DominantCategory)

	// two-way tie resolves to the category seen first
	bengaluru := heatmap.Hotspots[1]
	require.Equal(t, 2, bengaluru.Count)
	require.Equal(t, models.Waste, bengaluru.DominantCategory)
	require.Equal(t, 5, bengaluru.AvgPriority)
}

func TestComputeHeatmapCapsHotspots(t *testing.T) {
	var issues []models.Issue
	for i := 0; i < 12; i++ {
		lat := float64(i)
		issues = append(issues,
			snapshotIssue(models.Road, models.Pending, 5, base, lat, 10),
			snapshotIssue(models.Road, models.Pending, 5, base, lat, 10),
		)
	}
	require.Len(t, ComputeHeatmap(issues).Hotspots, maxHotspots)
}

func TestComputeDepartmentPerformance(t *testing.T) {
	issues := []models.Issue{
		withDepartment(snapshotIssue(models.Water, models.Resolved, 5, base, 0, 0), "Water Board"),
		withDepartment(snapshotIssue(models.Water, models.Pending, 5, base, 0, 0), "Water Board"),
		withDepartment(snapshotIssue(models.Water, models.InProgress, 5, base, 0, 0), "Water Board"),
		withDepartment(snapshotIssue(models.Road, models.Resolved, 5, base, 0, 0), "Public Works"),
		withDepartment(snapshotIssue(models.Road, models.Pending, 5, base, 0, 0), "  "),
		snapshotIssue(models.Road, models.Resolved, 5, base, 0, 0),
	}

	rows := ComputeDepartmentPerformance(issues)
	require.Equal(t, []DepartmentStats{
		{Department: "Public Works", Total: 1, Resolved: 1, ResolutionRate: 100},
		{Department: "Water Board", Total: 3, Resolved: 1, Pending: 1, InProgress: 1, ResolutionRate: 33},
	}, rows)
}

func TestAnalyticsStatsCountsCitizens(t *testing.T) {
	f := newFixture(t)
	alice := f.user(t, "alice", models.RoleCitizen)
	f.user(t, "bob", models.RoleCitizen)
	f.user(t, "officer", models.RoleAuthority)
	f.report(t, alice, models.Road)

	analytics := NewAnalytics(f.issues, f.users, f.clock.Now)
	stats, err := analytics.Stats(f.ctx)
	require.NoError(t, err)
	require.EqualValues(t, 2, stats.Overview.TotalUsers)
	require.Equal(t, 1, stats.Overview.TotalIssues)
	require.Len(t, stats.DailyTrends, 1)
}

func TestAnalyticsQueueAndActivity(t *testing.T) {
	f := newFixture(t)
	alice := f.user(t, "alice", models.RoleCitizen)
	var ids []primitive.ObjectID
	for i := 0; i < 12; i++ {
		ids = append(ids, f.report(t, alice, models.Road).ID)
		f.clock.Advance(time.Minute)
	}

	analytics := NewAnalytics(f.issues, f.users, f.clock.Now)

	queue, err := analytics.PriorityQueue(f.ctx, 0)
	require.NoError(t, err)
	require.Len(t, queue, 12)
	require.Equal(t, ids[0], queue[0].ID)

	_, err = analytics.PriorityQueue(f.ctx, 101)
	require.True(t, apperrors.Is(err, apperrors.KindValidation))

	feed, err := analytics.RecentActivity(f.ctx, 0)
	require.NoError(t, err)
	require.Len(t, feed, DefaultActivityLimit)
	require.Equal(t, ids[11], feed[0].ID)
	require.Nil(t, feed[0].Timeline)

	_, err = analytics.RecentActivity(f.ctx, MaxPageLimit+1)
	require.True(t, apperrors.Is(err, apperrors.KindValidation))
	_, err = analytics.RecentActivity(f.ctx, -1)
	require.True(t, apperrors.Is(err, apperrors.KindValidation))

	feed, err = analytics.RecentActivity(f.ctx, 3)
	require.NoError(t, err)
	require.Len(t, feed, 3)
}
