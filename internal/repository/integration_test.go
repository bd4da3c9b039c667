//go:build integration

package repository

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/vendora/storefront-api/internal/model"
)

var testDB *mongo.Database

func TestMain(m *testing.M) {
	uri := os.Getenv("TEST_MONGO_URI")
	if uri == "" {
		fmt.Println("TEST_MONGO_URI not set, skipping integration tests")
		os.Exit(0)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to connect to test database: %v\n", err)
		os.Exit(1)
	}
	defer client.Disconnect(context.Background())

	testDB = client.Database("storefront_test")
	if err := EnsureIndexes(ctx, testDB); err != nil {
		fmt.Fprintf(os.Stderr, "failed to ensure indexes: %v\n", err)
		os.Exit(1)
	}

	os.Exit(m.Run())
}

func cleanupCollections(t *testing.T, names ...string) {
	t.Helper()
	for _, name := range names {
		if _, err := testDB.Collection(name).DeleteMany(context.Background(), bson.M{}); err != nil {
			t.Fatalf("failed to cleanup collection %s: %v", name, err)
		}
	}
}

func TestFavoriteRepo_UniqueIndex(t *testing.T) {
	cleanupCollections(t, favoritesCollection)

	repo := NewFavoriteRepository(testDB)
	ctx := context.Background()
	userID := primitive.NewObjectID()

	fav := &model.Favorite{
		UserID:  userID,
		Product: model.ProductSnapshot{CatalogID: 7, Name: "Mug", Price: 12.5},
	}
	require.NoError(t, repo.Insert(ctx, fav))

	// A second favorite for the same (user, product.id) pair hits the
	// unique compound index.
	dup := &model.Favorite{
		UserID:  userID,
		Product: model.ProductSnapshot{CatalogID: 7, Name: "Mug", Price: 12.5},
	}
	assert.ErrorIs(t, repo.Insert(ctx, dup), ErrDuplicateFavorite)

	// Another product for the same user is fine.
	other := &model.Favorite{
		UserID:  userID,
		Product: model.ProductSnapshot{CatalogID: 8, Name: "Plate", Price: 7},
	}
	require.NoError(t, repo.Insert(ctx, other))

	removed, err := repo.FindAndDelete(ctx, userID, 7)
	require.NoError(t, err)
	require.NotNil(t, removed)
	assert.Equal(t, int64(7), removed.Product.CatalogID)

	// Absent pair is (nil, nil), not an error.
	removed, err = repo.FindAndDelete(ctx, userID, 7)
	require.NoError(t, err)
	assert.Nil(t, removed)
}

func TestOrderRepo_ListByUser_NewestFirst(t *testing.T) {
	cleanupCollections(t, ordersCollection)

	repo := NewOrderRepository(testDB)
	ctx := context.Background()
	userID := primitive.NewObjectID()

	var ids []primitive.ObjectID
	for i := 0; i < 3; i++ {
		order := &model.Order{
			UserID: userID,
			Items:  []model.OrderItem{{Name: "Mug", Price: 30, Quantity: 1}},
			Total:  35, AddressID: primitive.NewObjectID(),
			Status: model.OrderStatusPending,
		}
		require.NoError(t, repo.Create(ctx, order))
		ids = append(ids, order.ID)
		time.Sleep(5 * time.Millisecond)
	}

	// Another user's order stays out of the listing.
	foreign := &model.Order{
		UserID: primitive.NewObjectID(),
		Items:  []model.OrderItem{{Name: "Plate", Price: 7, Quantity: 1}},
		Total:  12, AddressID: primitive.NewObjectID(),
		Status: model.OrderStatusPending,
	}
	require.NoError(t, repo.Create(ctx, foreign))

	orders, err := repo.ListByUser(ctx, userID)
	require.NoError(t, err)
	require.Len(t, orders, 3)
	assert.Equal(t, ids[2], orders[0].ID)
	assert.Equal(t, ids[1], orders[1].ID)
	assert.Equal(t, ids[0], orders[2].ID)
}

func TestOrderRepo_NotFoundMapping(t *testing.T) {
	cleanupCollections(t, ordersCollection)

	repo := NewOrderRepository(testDB)
	ctx := context.Background()

	order, err := repo.GetByID(ctx, primitive.NewObjectID())
	require.NoError(t, err)
	assert.Nil(t, order)

	updated, err := repo.UpdateStatus(ctx, primitive.NewObjectID(), model.OrderStatusShipped)
	require.NoError(t, err)
	assert.Nil(t, updated)

	assert.ErrorIs(t, repo.Delete(ctx, primitive.NewObjectID()), mongo.ErrNoDocuments)
}

func TestUserRepo_RefArrays(t *testing.T) {
	cleanupCollections(t, usersCollection)

	repo := NewUserRepository(testDB)
	ctx := context.Background()

	user := &model.User{Email: "refs@example.com", Password: "hashed", Name: "Ref User"}
	require.NoError(t, repo.Create(ctx, user))

	missing, err := repo.GetByEmail(ctx, "nobody@example.com")
	require.NoError(t, err)
	assert.Nil(t, missing)

	orderID := primitive.NewObjectID()
	require.NoError(t, repo.PushRef(ctx, user.ID, RefOrders, orderID))
	// $addToSet keeps the array a set: a repair replay must not duplicate.
	require.NoError(t, repo.PushRef(ctx, user.ID, RefOrders, orderID))

	found, err := repo.GetByID(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, found.Orders, 1)
	assert.Equal(t, orderID, found.Orders[0])

	require.NoError(t, repo.PullRef(ctx, user.ID, RefOrders, orderID))
	found, err = repo.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Empty(t, found.Orders)
}

func TestAddressRepo_GetOwned(t *testing.T) {
	cleanupCollections(t, addressesCollection)

	repo := NewAddressRepository(testDB)
	ctx := context.Background()
	ownerID := primitive.NewObjectID()

	address := &model.Address{UserID: ownerID, Street: "1 Main St", City: "Springfield", Zip: "12345"}
	require.NoError(t, repo.Create(ctx, address))

	owned, err := repo.GetOwned(ctx, address.ID, ownerID)
	require.NoError(t, err)
	require.NotNil(t, owned)
	assert.Equal(t, "1 Main St", owned.Street)

	// A different caller resolves nothing, same as a missing document.
	foreign, err := repo.GetOwned(ctx, address.ID, primitive.NewObjectID())
	require.NoError(t, err)
	assert.Nil(t, foreign)
}
