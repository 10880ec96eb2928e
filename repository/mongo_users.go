package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"civicguardian-be/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var publicUserProjection = bson.M{"password": 0}

// MongoUserRepository is the Mongo-backed Identity Ledger.
type MongoUserRepository struct {
	collection *mongo.Collection
}

func NewMongoUserRepository(db *mongo.Database) *MongoUserRepository {
	return &MongoUserRepository{collection: db.Collection("users")}
}

func (r *MongoUserRepository) EnsureIndexes(ctx context.Context) error {
	return models.EnsureUserIndexes(ctx, r.collection)
}

func (r *MongoUserRepository) Create(ctx context.Context, user *models.User) error {
	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	user.Normalize()

	if _, err := r.collection.InsertOne(ctx, user); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicateEmail
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (r *MongoUserRepository) findOne(ctx context.Context, filter bson.M, opts ...*options.FindOneOptions) (*models.User, error) {
	var user models.User
	if err := r.collection.FindOne(ctx, filter, opts...).Decode(&user); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	user.Normalize()
	return &user, nil
}

func (r *MongoUserRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	return r.findOne(ctx, bson.M{"_id": id}, options.FindOne().SetProjection(publicUserProjection))
}

// FindByEmail includes the password hash so credentials can be checked.
func (r *MongoUserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.findOne(ctx, bson.M{"email": strings.ToLower(strings.TrimSpace(email))})
}

func (r *MongoUserRepository) FindByIDs(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]*models.User, error) {
	out := make(map[primitive.ObjectID]*models.User, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	cursor, err := r.collection.Find(ctx, bson.M{"_id": bson.M{"$in": ids}},
		options.Find().SetProjection(publicUserProjection))
	if err != nil {
		return nil, fmt.Errorf("find users: %w", err)
	}
	defer cursor.Close(ctx)

	var users []models.User
	if err := cursor.All(ctx, &users); err != nil {
		return nil, fmt.Errorf("decode users: %w", err)
	}
	for i := range users {
		out[users[i].ID] = &users[i]
	}
	return out, nil
}

func (r *MongoUserRepository) ApplyReward(ctx context.Context, id primitive.ObjectID, delta RewardDelta) (*models.User, error) {
	inc := bson.M{}
	if delta.Points != 0 {
		inc["civicPoints"] = delta.Points
	}
	if delta.IssuesReported != 0 {
		inc["issuesReported"] = delta.IssuesReported
	}
	if delta.IssuesVerified != 0 {
		inc["issuesVerified"] = delta.IssuesVerified
	}

	update := bson.M{"$set": bson.M{"updatedAt": time.Now()}}
	if len(inc) > 0 {
		update["$inc"] = inc
	}

	opts := options.FindOneAndUpdate().
		SetReturnDocument(options.After).
		SetProjection(publicUserProjection)

	var user models.User
	err := r.collection.FindOneAndUpdate(ctx, bson.M{"_id": id}, update, opts).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("apply reward: %w", err)
	}
	user.Normalize()
	return &user, nil
}

func (r *MongoUserRepository) GrantBadge(ctx context.Context, id primitive.ObjectID, badge models.Badge) (bool, error) {
	result, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": id, "badges.name": bson.M{"$ne": badge.Name}},
		bson.M{
			"$push": bson.M{"badges": badge},
			"$set":  bson.M{"updatedAt": time.Now()},
		},
	)
	if err != nil {
		return false, fmt.Errorf("grant badge: %w", err)
	}
	if result.ModifiedCount == 1 {
		return true, nil
	}

	count, err := r.collection.CountDocuments(ctx, bson.M{"_id": id})
	if err != nil {
		return false, fmt.Errorf("check user: %w", err)
	}
	if count == 0 {
		return false, ErrNotFound
	}
	return false, nil
}

func (r *MongoUserRepository) TopByPoints(ctx context.Context, role models.Role, limit int) ([]models.User, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "civicPoints", Value: -1}, {Key: "_id", Value: 1}}).
		SetLimit(int64(limit)).
		SetProjection(publicUserProjection)

	cursor, err := r.collection.Find(ctx, bson.M{"role": role}, opts)
	if err != nil {
		return nil, fmt.Errorf("find leaderboard: %w", err)
	}
	defer cursor.Close(ctx)

	users := []models.User{}
	if err := cursor.All(ctx, &users); err != nil {
		return nil, fmt.Errorf("decode leaderboard: %w", err)
	}
	for i := range users {
		users[i].Normalize()
	}
	return users, nil
}

func (r *MongoUserRepository) CountByRole(ctx context.Context, role models.Role) (int64, error) {
	count, err := r.collection.CountDocuments(ctx, bson.M{"role": role})
	if err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return count, nil
}
