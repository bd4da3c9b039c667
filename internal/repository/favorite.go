package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/vendora/storefront-api/internal/model"
)

// ErrDuplicateFavorite is returned by Insert when the unique (user,
// product.id) index rejects a concurrent duplicate.
var ErrDuplicateFavorite = errors.New("favorite already exists")

type FavoriteRepository interface {
	// FindAndDelete atomically removes the favorite for (userID, catalogID)
	// and returns it, or (nil, nil) when none existed.
	FindAndDelete(ctx context.Context, userID primitive.ObjectID, catalogID int64) (*model.Favorite, error)
	Insert(ctx context.Context, favorite *model.Favorite) error
	ListByUser(ctx context.Context, userID primitive.ObjectID) ([]model.Favorite, error)
	DeleteByUser(ctx context.Context, userID primitive.ObjectID) (int64, error)
}

type mongoFavoriteRepo struct{ coll *mongo.Collection }

func NewFavoriteRepository(db *mongo.Database) FavoriteRepository {
	return &mongoFavoriteRepo{coll: db.Collection(favoritesCollection)}
}

func (r *mongoFavoriteRepo) FindAndDelete(ctx context.Context, userID primitive.ObjectID, catalogID int64) (*model.Favorite, error) {
	fav := &model.Favorite{}
	err := r.coll.FindOneAndDelete(ctx, bson.M{"user": userID, "product.id": catalogID}).Decode(fav)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("find and delete favorite: %w", err)
	}
	return fav, nil
}

func (r *mongoFavoriteRepo) Insert(ctx context.Context, favorite *model.Favorite) error {
	favorite.ID = primitive.NewObjectID()
	favorite.CreatedAt = time.Now().UTC()
	if _, err := r.coll.InsertOne(ctx, favorite); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicateFavorite
		}
		return fmt.Errorf("insert favorite: %w", err)
	}
	return nil
}

func (r *mongoFavoriteRepo) ListByUser(ctx context.Context, userID primitive.ObjectID) ([]model.Favorite, error) {
	cur, err := r.coll.Find(ctx, bson.M{"user": userID})
	if err != nil {
		return nil, fmt.Errorf("list favorites: %w", err)
	}
	defer cur.Close(ctx)

	var favorites []model.Favorite
	if err := cur.All(ctx, &favorites); err != nil {
		return nil, fmt.Errorf("decode favorites: %w", err)
	}
	return favorites, nil
}

func (r *mongoFavoriteRepo) DeleteByUser(ctx context.Context, userID primitive.ObjectID) (int64, error) {
	res, err := r.coll.DeleteMany(ctx, bson.M{"user": userID})
	if err != nil {
		return 0, fmt.Errorf("clear favorites: %w", err)
	}
	return res.DeletedCount, nil
}
