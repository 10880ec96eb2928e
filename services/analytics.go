package services

import (
	"context"
	"math"
	"sort"
	"strings"
	"time"

	"civicguardian-be/apperrors"
	"civicguardian-be/models"
	"civicguardian-be/repository"

	"golang.org/x/sync/errgroup"
)

const (
	DefaultQueueLimit    = 20
	DefaultActivityLimit = 10
	trendWindow          = 7 * 24 * time.Hour
	maxHotspots          = 10
	minHotspotSize       = 2
)

// Analytics derives read-only projections from a fresh issue snapshot on
// every call. Nothing here writes.
type Analytics struct {
	issues repository.IssueRepository
	users  repository.UserRepository
	now    func() time.Time
}

func NewAnalytics(issues repository.IssueRepository, users repository.UserRepository, now func() time.Time) *Analytics {
	if now == nil {
		now = time.Now
	}
	return &Analytics{issues: issues, users: users, now: now}
}

func (a *Analytics) snapshot(ctx context.Context) ([]models.Issue, error) {
	issues, err := a.issues.Snapshot(ctx)
	if err != nil {
		return nil, apperrors.Internal("failed to load issues", err)
	}
	return issues, nil
}

type Overview struct {
	TotalIssues        int   `json:"totalIssues"`
	PendingIssues      int   `json:"pendingIssues"`
	InProgressIssues   int   `json:"inProgressIssues"`
	ResolvedIssues     int   `json:"resolvedIssues"`
	TotalUsers         int64 `json:"totalUsers"`
	ResolutionRate     int   `json:"resolutionRate"`
	AvgResolutionHours int   `json:"avgResolutionHours"`
}

// Bucket is one histogram bar.
type Bucket struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

type DailyCount struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

type Stats struct {
	Overview      Overview     `json:"overview"`
	CategoryStats []Bucket     `json:"categoryStats"`
	StatusStats   []Bucket     `json:"statusStats"`
	DailyTrends   []DailyCount `json:"dailyTrends"`
}

// Stats loads the snapshot and the citizen count concurrently.
func (a *Analytics) Stats(ctx context.Context) (*Stats, error) {
	var (
		issues   []models.Issue
		citizens int64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		issues, err = a.snapshot(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		citizens, err = a.users.CountByRole(gctx, models.RoleCitizen)
		if err != nil {
			return apperrors.Internal("failed to count users", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	stats := ComputeStats(issues, a.now())
	stats.Overview.TotalUsers = citizens
	return stats, nil
}

// ComputeStats builds the dashboard overview. Trend days without issues are
// omitted rather than zero-filled.
func ComputeStats(issues []models.Issue, now time.Time) *Stats {
	stats := &Stats{
		CategoryStats: []Bucket{},
		StatusStats:   []Bucket{},
		DailyTrends:   []DailyCount{},
	}
	byStatus := map[models.IssueStatus]int{}
	byCategory := map[models.IssueCategory]int{}
	byDay := map[string]int{}
	since := now.Add(-trendWindow)

	var resolvedHours float64
	var resolvedWithTime int
	for i := range issues {
		issue := &issues[i]
		byStatus[issue.Status]++
		byCategory[issue.Category]++
		if !issue.CreatedAt.Before(since) {
			byDay[issue.CreatedAt.UTC().Format("2006-01-02")]++
		}
		if issue.Status == models.Resolved && issue.ResolvedAt != nil {
			resolvedHours += issue.ResolvedAt.Sub(issue.CreatedAt).Hours()
			resolvedWithTime++
		}
	}

	total := len(issues)
	stats.Overview = Overview{
		TotalIssues:      total,
		PendingIssues:    byStatus[models.Pending],
		InProgressIssues: byStatus[models.InProgress],
		ResolvedIssues:   byStatus[models.Resolved],
	}
	if total > 0 {
		stats.Overview.ResolutionRate = int(math.Round(float64(byStatus[models.Resolved]) / float64(total) * 100))
	}
	if resolvedWithTime > 0 {
		stats.Overview.AvgResolutionHours = int(math.Round(resolvedHours / float64(resolvedWithTime)))
	}

	for _, c := range models.Categories {
		if n := byCategory[c]; n > 0 {
			stats.CategoryStats = append(stats.CategoryStats, Bucket{Name: string(c), Count: n})
		}
	}
	for _, s := range models.Statuses {
		if n := byStatus[s]; n > 0 {
			stats.StatusStats = append(stats.StatusStats, Bucket{Name: string(s), Count: n})
		}
	}
	for day, n := range byDay {
		stats.DailyTrends = append(stats.DailyTrends, DailyCount{Date: day, Count: n})
	}
	sort.Slice(stats.DailyTrends, func(i, j int) bool {
		return stats.DailyTrends[i].Date < stats.DailyTrends[j].Date
	})
	return stats
}

// PriorityQueue returns outstanding issues, most urgent first.
func (a *Analytics) PriorityQueue(ctx context.Context, limit int) ([]models.Issue, error) {
	if limit == 0 {
		limit = DefaultQueueLimit
	}
	if limit < 1 || limit > MaxPageLimit {
		return nil, apperrors.Validation("limit must be between 1 and %d", MaxPageLimit)
	}
	issues, err := a.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return RankPriorityQueue(issues, limit), nil
}

// RankPriorityQueue keeps pending, verified and in-progress issues ordered by
// priority descending then age, oldest first.
func RankPriorityQueue(issues []models.Issue, limit int) []models.Issue {
	queue := make([]models.Issue, 0, len(issues))
	for _, issue := range issues {
		if issue.Status.Outstanding() {
			queue = append(queue, issue)
		}
	}
	sort.SliceStable(queue, func(i, j int) bool {
		if queue[i].Priority != queue[j].Priority {
			return queue[i].Priority > queue[j].Priority
		}
		if !queue[i].CreatedAt.Equal(queue[j].CreatedAt) {
			return queue[i].CreatedAt.Before(queue[j].CreatedAt)
		}
		return queue[i].ID.Hex() < queue[j].ID.Hex()
	})
	if len(queue) > limit {
		queue = queue[:limit]
	}
	return queue
}

// RecentActivity returns the newest issues for the activity feed.
func (a *Analytics) RecentActivity(ctx context.Context, limit int) ([]models.Issue, error) {
	if limit == 0 {
		limit = DefaultActivityLimit
	}
	if limit < 1 || limit > MaxPageLimit {
		return nil, apperrors.Validation("limit must be between 1 and %d", MaxPageLimit)
	}
	issues, err := a.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(issues, func(i, j int) bool {
		return issues[i].CreatedAt.After(issues[j].CreatedAt)
	})
	if len(issues) > limit {
		issues = issues[:limit]
	}
	return issues, nil
}

type HeatPoint struct {
	Lat      float64              `json:"lat"`
	Lng      float64              `json:"lng"`
	Category models.IssueCategory `json:"category"`
	Status   models.IssueStatus   `json:"status"`
	Priority int                  `json:"priority"`
	Weight   float64              `json:"weight"`
}

type Hotspot struct {
	Lat              float64              `json:"lat"`
	Lng              float64              `json:"lng"`
	Count            int                  `json:"count"`
	AvgPriority      int                  `json:"avgPriority"`
	DominantCategory models.IssueCategory `json:"dominantCategory"`
}

type Heatmap struct {
	Points   []HeatPoint `json:"points"`
	Hotspots []Hotspot   `json:"hotspots"`
}

func (a *Analytics) Heatmap(ctx context.Context) (*Heatmap, error) {
	issues, err := a.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return ComputeHeatmap(issues), nil
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }

type cell struct {
	lat, lng float64
	count    int
	priority int
	// categories in first-seen order, with counts
	order  []models.IssueCategory
	counts map[models.IssueCategory]int
}

func (c *cell) dominant() models.IssueCategory {
	var best models.IssueCategory
	bestCount := 0
	for _, cat := range c.order {
		if c.counts[cat] > bestCount {
			best, bestCount = cat, c.counts[cat]
		}
	}
	return best
}

// ComputeHeatmap clusters issues into cells of two-decimal coordinates
// (roughly 1.1km). Issues are visited oldest first so ties resolve to the
// earliest reported cell or category.
func ComputeHeatmap(issues []models.Issue) *Heatmap {
	ordered := append([]models.Issue(nil), issues...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].CreatedAt.Before(ordered[j].CreatedAt)
	})

	heatmap := &Heatmap{Points: []HeatPoint{}, Hotspots: []Hotspot{}}
	var cells []*cell
	index := map[[2]float64]*cell{}

	for _, issue := range ordered {
		lat, lng := issue.Location.Latitude(), issue.Location.Longitude()
		heatmap.Points = append(heatmap.Points, HeatPoint{
			Lat:      lat,
			Lng:      lng,
			Category: issue.Category,
			Status:   issue.Status,
			Priority: issue.Priority,
			Weight:   float64(issue.Priority) / 10,
		})

		key := [2]float64{round2(lat), round2(lng)}
		c, ok := index[key]
		if !ok {
			c = &cell{lat: key[0], lng: key[1], counts: map[models.IssueCategory]int{}}
			index[key] = c
			cells = append(cells, c)
		}
		c.count++
		c.priority += issue.Priority
		if c.counts[issue.Category] == 0 {
			c.order = append(c.order, issue.Category)
		}
		c.counts[issue.Category]++
	}

	sort.SliceStable(cells, func(i, j int) bool { return cells[i].count > cells[j].count })
	for _, c := range cells {
		if c.count < minHotspotSize || len(heatmap.Hotspots) == maxHotspots {
			break
		}
		heatmap.Hotspots = append(heatmap.Hotspots, Hotspot{
			Lat:              c.lat,
			Lng:              c.lng,
			Count:            c.count,
			AvgPriority:      int(math.Round(float64(c.priority) / float64(c.count))),
			DominantCategory: c.dominant(),
		})
	}
	return heatmap
}

type DepartmentStats struct {
	Department     string `json:"department"`
	Total          int    `json:"total"`
	Resolved       int    `json:"resolved"`
	Pending        int    `json:"pending"`
	InProgress     int    `json:"inProgress"`
	ResolutionRate int    `json:"resolutionRate"`
}

func (a *Analytics) DepartmentPerformance(ctx context.Context) ([]DepartmentStats, error) {
	issues, err := a.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return ComputeDepartmentPerformance(issues), nil
}

// ComputeDepartmentPerformance groups assigned issues by department name.
func ComputeDepartmentPerformance(issues []models.Issue) []DepartmentStats {
	byDept := map[string]*DepartmentStats{}
	for _, issue := range issues {
		if issue.AssignedDepartment == nil {
			continue
		}
		name := strings.TrimSpace(*issue.AssignedDepartment)
		if name == "" {
			continue
		}
		d, ok := byDept[name]
		if !ok {
			d = &DepartmentStats{Department: name}
			byDept[name] = d
		}
		d.Total++
		switch issue.Status {
		case models.Resolved:
			d.Resolved++
		case models.Pending:
			d.Pending++
		case models.InProgress:
			d.InProgress++
		}
	}

	out := make([]DepartmentStats, 0, len(byDept))
	for _, d := range byDept {
		d.ResolutionRate = int(math.Round(float64(d.Resolved) / float64(d.Total) * 100))
		out = append(out, *d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Department < out[j].Department })
	return out
}
