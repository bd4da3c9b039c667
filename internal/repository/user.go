package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/vendora/storefront-api/internal/model"
)

// RefField names a denormalized reference array on the user document.
type RefField string

const (
	RefOrders    RefField = "orders"
	RefAddresses RefField = "addresses"
)

type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id primitive.ObjectID) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	UpdateFields(ctx context.Context, id primitive.ObjectID, set bson.M) (*model.User, error)
	SetVendor(ctx context.Context, id primitive.ObjectID) error
	PushRef(ctx context.Context, id primitive.ObjectID, field RefField, ref primitive.ObjectID) error
	PullRef(ctx context.Context, id primitive.ObjectID, field RefField, ref primitive.ObjectID) error
}

type mongoUserRepo struct{ coll *mongo.Collection }

func NewUserRepository(db *mongo.Database) UserRepository {
	return &mongoUserRepo{coll: db.Collection(usersCollection)}
}

func (r *mongoUserRepo) Create(ctx context.Context, user *model.User) error {
	user.ID = primitive.NewObjectID()
	user.CreatedAt = time.Now().UTC()
	user.UpdatedAt = user.CreatedAt
	if user.Addresses == nil {
		user.Addresses = []primitive.ObjectID{}
	}
	if user.Orders == nil {
		user.Orders = []primitive.ObjectID{}
	}
	if _, err := r.coll.InsertOne(ctx, user); err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (r *mongoUserRepo) GetByID(ctx context.Context, id primitive.ObjectID) (*model.User, error) {
	user := &model.User{}
	err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("get user by id: %w", err)
	}
	return user, nil
}

func (r *mongoUserRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	user := &model.User{}
	err := r.coll.FindOne(ctx, bson.M{"email": email}).Decode(user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return user, nil
}

func (r *mongoUserRepo) UpdateFields(ctx context.Context, id primitive.ObjectID, set bson.M) (*model.User, error) {
	set["updatedAt"] = time.Now().UTC()
	user := &model.User{}
	err := r.coll.FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("update user: %w", err)
	}
	return user, nil
}

func (r *mongoUserRepo) SetVendor(ctx context.Context, id primitive.ObjectID) error {
	_, err := r.coll.UpdateByID(ctx, id, bson.M{
		"$set": bson.M{"isVendor": true, "updatedAt": time.Now().UTC()},
	})
	if err != nil {
		return fmt.Errorf("set vendor flag: %w", err)
	}
	return nil
}

func (r *mongoUserRepo) PushRef(ctx context.Context, id primitive.ObjectID, field RefField, ref primitive.ObjectID) error {
	// $addToSet keeps the repair worker's retries idempotent.
	_, err := r.coll.UpdateByID(ctx, id, bson.M{"$addToSet": bson.M{string(field): ref}})
	if err != nil {
		return fmt.Errorf("push %s ref: %w", field, err)
	}
	return nil
}

func (r *mongoUserRepo) PullRef(ctx context.Context, id primitive.ObjectID, field RefField, ref primitive.ObjectID) error {
	_, err := r.coll.UpdateByID(ctx, id, bson.M{"$pull": bson.M{string(field): ref}})
	if err != nil {
		return fmt.Errorf("pull %s ref: %w", field, err)
	}
	return nil
}
