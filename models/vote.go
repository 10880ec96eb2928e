package models

import (
	"context"
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Upvote represents a user's support for an issue
type Upvote struct {
	User      primitive.ObjectID `bson:"user" json:"user"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
}

// Verification is a community check of whether the issue is real.
type Verification struct {
	User      primitive.ObjectID `bson:"user" json:"user"`
	Verified  bool               `bson:"verified" json:"verified"`
	Comment   string             `bson:"comment,omitempty" json:"comment,omitempty"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
}

// SortedVerifications returns the entries oldest first.
func (i *Issue) SortedVerifications() []Verification {
	out := make([]Verification, 0, len(i.Verifications))
	for _, v := range i.Verifications {
		out = append(out, v)
	}
	sort.Slice(out, func(a, b int) bool {
		if out[a].CreatedAt.Equal(out[b].CreatedAt) {
			return out[a].User.Hex() < out[b].User.Hex()
		}
		return out[a].CreatedAt.Before(out[b].CreatedAt)
	})
	return out
}

// EnsureIssueIndexes creates the geo, filter and recency indexes on issues.
func EnsureIssueIndexes(ctx context.Context, collection *mongo.Collection) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	_, err := collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "location", Value: "2dsphere"}}},
		{Keys: bson.D{{Key: "category", Value: 1}, {Key: "status", Value: 1}}},
		{Keys: bson.D{{Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "reporter", Value: 1}}},
	})
	return err
}

// EnsureUserIndexes creates a unique index on email
func EnsureUserIndexes(ctx context.Context, collection *mongo.Collection) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	_, err := collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "role", Value: 1}, {Key: "civicPoints", Value: -1}}},
	})
	return err
}
