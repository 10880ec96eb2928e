package controllers

import (
	"context"
	"sort"
	"time"

	"civicguardian-be/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// UserLookup resolves user references for populated responses.
type UserLookup interface {
	Users(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]*models.User, error)
}

type CommentView struct {
	User      models.UserSummary `json:"user"`
	Text      string             `json:"text"`
	CreatedAt time.Time          `json:"createdAt"`
}

type VerificationView struct {
	User      models.UserSummary `json:"user"`
	Verified  bool               `json:"verified"`
	Comment   string             `json:"comment,omitempty"`
	CreatedAt time.Time          `json:"createdAt"`
}

// IssueView is an issue with its user references replaced by summaries.
// Fields declared here shadow the embedded ones of the same JSON name.
type IssueView struct {
	*models.Issue
	Reporter          models.UserSummary   `json:"reporter"`
	Upvotes           []primitive.ObjectID `json:"upvotes"`
	UpvoteCount       int                  `json:"upvoteCount"`
	VerificationCount int                  `json:"verificationCount"`
	Comments          []CommentView        `json:"comments"`
	Verifications     []VerificationView   `json:"verifications,omitempty"`
}

// populator collects every referenced user id, loads them in one call and
// renders views. Unknown users fall back to a bare id summary.
type populator struct {
	users map[primitive.ObjectID]*models.User
}

func newPopulator(ctx context.Context, lookup UserLookup, issues []models.Issue, detailed bool) (*populator, error) {
	seen := make(map[primitive.ObjectID]struct{})
	var ids []primitive.ObjectID
	add := func(id primitive.ObjectID) {
		if id.IsZero() {
			return
		}
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	for i := range issues {
		add(issues[i].Reporter)
		if !detailed {
			continue
		}
		for _, comment := range issues[i].Comments {
			add(comment.User)
		}
		for _, v := range issues[i].Verifications {
			add(v.User)
		}
	}

	p := &populator{users: map[primitive.ObjectID]*models.User{}}
	if len(ids) == 0 {
		return p, nil
	}
	users, err := lookup.Users(ctx, ids)
	if err != nil {
		return nil, err
	}
	p.users = users
	return p, nil
}

func (p *populator) summary(id primitive.ObjectID) models.UserSummary {
	if u, ok := p.users[id]; ok {
		return u.Summary()
	}
	return models.UserSummary{ID: id}
}

func (p *populator) comments(in []models.Comment) []CommentView {
	out := make([]CommentView, 0, len(in))
	for _, comment := range in {
		out = append(out, CommentView{User: p.summary(comment.User), Text: comment.Text, CreatedAt: comment.CreatedAt})
	}
	return out
}

func (p *populator) view(issue *models.Issue, detailed bool) IssueView {
	upvotes := make([]primitive.ObjectID, 0, len(issue.Upvotes))
	for _, up := range issue.Upvotes {
		upvotes = append(upvotes, up.User)
	}
	sort.Slice(upvotes, func(a, b int) bool { return upvotes[a].Hex() < upvotes[b].Hex() })
	view := IssueView{
		Issue:             issue,
		Reporter:          p.summary(issue.Reporter),
		Upvotes:           upvotes,
		UpvoteCount:       issue.UpvoteCount(),
		VerificationCount: len(issue.Verifications),
		Comments:          p.comments(issue.Comments),
	}
	if detailed {
		if u, ok := p.users[issue.Reporter]; ok {
			points := u.CivicPoints
			view.Reporter.CivicPoints = &points
		}
		view.Verifications = make([]VerificationView, 0, len(issue.Verifications))
		for _, v := range issue.SortedVerifications() {
			view.Verifications = append(view.Verifications, VerificationView{
				User:      p.summary(v.User),
				Verified:  v.Verified,
				Comment:   v.Comment,
				CreatedAt: v.CreatedAt,
			})
		}
	}
	return view
}

func (p *populator) views(issues []models.Issue) []IssueView {
	out := make([]IssueView, 0, len(issues))
	for i := range issues {
		out = append(out, p.view(&issues[i], false))
	}
	return out
}
