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

type AddressRepository interface {
	Create(ctx context.Context, address *model.Address) error
	GetByID(ctx context.Context, id primitive.ObjectID) (*model.Address, error)
	// GetOwned resolves an address only when it belongs to userID. Ownership
	// is always checked against the address document itself, never against
	// the user's denormalized reference array.
	GetOwned(ctx context.Context, id, userID primitive.ObjectID) (*model.Address, error)
	ListByUser(ctx context.Context, userID primitive.ObjectID) ([]model.Address, error)
	Update(ctx context.Context, id primitive.ObjectID, set bson.M) (*model.Address, error)
	Delete(ctx context.Context, id primitive.ObjectID) error
}

type mongoAddressRepo struct{ coll *mongo.Collection }

func NewAddressRepository(db *mongo.Database) AddressRepository {
	return &mongoAddressRepo{coll: db.Collection(addressesCollection)}
}

func (r *mongoAddressRepo) Create(ctx context.Context, address *model.Address) error {
	address.ID = primitive.NewObjectID()
	address.CreatedAt = time.Now().UTC()
	address.UpdatedAt = address.CreatedAt
	if _, err := r.coll.InsertOne(ctx, address); err != nil {
		return fmt.Errorf("create address: %w", err)
	}
	return nil
}

func (r *mongoAddressRepo) GetByID(ctx context.Context, id primitive.ObjectID) (*model.Address, error) {
	addr := &model.Address{}
	err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(addr)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("get address: %w", err)
	}
	return addr, nil
}

func (r *mongoAddressRepo) GetOwned(ctx context.Context, id, userID primitive.ObjectID) (*model.Address, error) {
	addr := &model.Address{}
	err := r.coll.FindOne(ctx, bson.M{"_id": id, "user": userID}).Decode(addr)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("get owned address: %w", err)
	}
	return addr, nil
}

func (r *mongoAddressRepo) ListByUser(ctx context.Context, userID primitive.ObjectID) ([]model.Address, error) {
	cur, err := r.coll.Find(ctx, bson.M{"user": userID})
	if err != nil {
		return nil, fmt.Errorf("list addresses: %w", err)
	}
	defer cur.Close(ctx)

	var addresses []model.Address
	if err := cur.All(ctx, &addresses); err != nil {
		return nil, fmt.Errorf("decode addresses: %w", err)
	}
	return addresses, nil
}

func (r *mongoAddressRepo) Update(ctx context.Context, id primitive.ObjectID, set bson.M) (*model.Address, error) {
	set["updatedAt"] = time.Now().UTC()
	addr := &model.Address{}
	err := r.coll.FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(addr)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("update address: %w", err)
	}
	return addr, nil
}

func (r *mongoAddressRepo) Delete(ctx context.Context, id primitive.ObjectID) error {
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("delete address: %w", err)
	}
	if res.DeletedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}
