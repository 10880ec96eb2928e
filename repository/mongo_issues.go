package repository

import (
	"context"
	"errors"
	"fmt"

	"civicguardian-be/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoIssueRepository stores issues as single documents with embedded
// upvotes, verifications, comments and timeline.
type MongoIssueRepository struct {
	collection *mongo.Collection
}

func NewMongoIssueRepository(db *mongo.Database) *MongoIssueRepository {
	return &MongoIssueRepository{collection: db.Collection("issues")}
}

// EnsureIndexes creates the collection indexes; safe to call on every start.
func (r *MongoIssueRepository) EnsureIndexes(ctx context.Context) error {
	return models.EnsureIssueIndexes(ctx, r.collection)
}

func (r *MongoIssueRepository) Create(ctx context.Context, issue *models.Issue) error {
	if issue.ID.IsZero() {
		issue.ID = primitive.NewObjectID()
	}
	issue.Normalize()
	if _, err := r.collection.InsertOne(ctx, issue); err != nil {
		return fmt.Errorf("insert issue: %w", err)
	}
	return nil
}

func (r *MongoIssueRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Issue, error) {
	var issue models.Issue
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&issue)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find issue: %w", err)
	}
	issue.Normalize()
	return &issue, nil
}

func buildIssueQuery(filter IssueFilter) bson.M {
	query := bson.M{}
	if filter.Category != "" {
		query["category"] = filter.Category
	}
	if filter.Status != "" {
		query["status"] = filter.Status
	}
	if filter.Near != nil {
		// $near cannot be combined with CountDocuments, so the radius is
		// expressed as a sphere and ordering stays on createdAt.
		query["location"] = bson.M{
			"$geoWithin": bson.M{
				"$centerSphere": bson.A{
					bson.A{filter.Near.Longitude(), filter.Near.Latitude()},
					filter.RadiusMeters / EarthRadiusMeters,
				},
			},
		}
	}
	return query
}

func (r *MongoIssueRepository) Find(ctx context.Context, filter IssueFilter) (*IssuePage, error) {
	query := buildIssueQuery(filter)

	total, err := r.collection.CountDocuments(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("count issues: %w", err)
	}

	findOptions := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}).
		SetSkip(PageOffset(filter.Page, filter.Limit, total)).
		SetLimit(int64(filter.Limit))

	cursor, err := r.collection.Find(ctx, query, findOptions)
	if err != nil {
		return nil, fmt.Errorf("find issues: %w", err)
	}
	defer cursor.Close(ctx)

	issues := []models.Issue{}
	if err := cursor.All(ctx, &issues); err != nil {
		return nil, fmt.Errorf("decode issues: %w", err)
	}
	for i := range issues {
		issues[i].Normalize()
	}

	return &IssuePage{
		Issues: issues,
		Total:  total,
		Page:   filter.Page,
		Limit:  filter.Limit,
		Pages:  PageCount(total, filter.Limit),
	}, nil
}

func (r *MongoIssueRepository) FindByReporter(ctx context.Context, reporter primitive.ObjectID) ([]models.Issue, error) {
	cursor, err := r.collection.Find(ctx, bson.M{"reporter": reporter},
		options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
	if err != nil {
		return nil, fmt.Errorf("find reporter issues: %w", err)
	}
	defer cursor.Close(ctx)

	issues := []models.Issue{}
	if err := cursor.All(ctx, &issues); err != nil {
		return nil, fmt.Errorf("decode issues: %w", err)
	}
	for i := range issues {
		issues[i].Normalize()
	}
	return issues, nil
}

func (r *MongoIssueRepository) Replace(ctx context.Context, issue *models.Issue) error {
	expected := issue.Version
	issue.Version = expected + 1

	result, err := r.collection.ReplaceOne(ctx, bson.M{"_id": issue.ID, "version": expected}, issue)
	if err != nil {
		issue.Version = expected
		return fmt.Errorf("replace issue: %w", err)
	}
	if result.MatchedCount == 1 {
		return nil
	}

	issue.Version = expected
	count, err := r.collection.CountDocuments(ctx, bson.M{"_id": issue.ID})
	if err != nil {
		return fmt.Errorf("check issue: %w", err)
	}
	if count == 0 {
		return ErrNotFound
	}
	return ErrVersionConflict
}

func (r *MongoIssueRepository) Snapshot(ctx context.Context) ([]models.Issue, error) {
	projection := bson.M{"comments": 0, "timeline": 0}
	cursor, err := r.collection.Find(ctx, bson.M{}, options.Find().SetProjection(projection))
	if err != nil {
		return nil, fmt.Errorf("snapshot issues: %w", err)
	}
	defer cursor.Close(ctx)

	issues := []models.Issue{}
	if err := cursor.All(ctx, &issues); err != nil {
		return nil, fmt.Errorf("decode issues: %w", err)
	}
	return issues, nil
}
