package service

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/vendora/storefront-api/internal/dto"
	"github.com/vendora/storefront-api/internal/model"
)

type mockProductRepo struct {
	products map[primitive.ObjectID]*model.Product
}

func newMockProductRepo() *mockProductRepo {
	return &mockProductRepo{products: make(map[primitive.ObjectID]*model.Product)}
}

func (m *mockProductRepo) Create(_ context.Context, product *model.Product) error {
	product.ID = primitive.NewObjectID()
	m.products[product.ID] = product
	return nil
}

func (m *mockProductRepo) GetByID(_ context.Context, id primitive.ObjectID) (*model.Product, error) {
	return m.products[id], nil
}

func (m *mockProductRepo) List(_ context.Context, search string) ([]model.Product, error) {
	var out []model.Product
	for _, p := range m.products {
		if search == "" ||
			strings.Contains(strings.ToLower(p.Name), strings.ToLower(search)) ||
			strings.Contains(strings.ToLower(p.Description), strings.ToLower(search)) {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (m *mockProductRepo) Update(_ context.Context, id primitive.ObjectID, set bson.M) (*model.Product, error) {
	product, ok := m.products[id]
	if !ok {
		return nil, nil
	}
	if v, ok := set["name"].(string); ok {
		product.Name = v
	}
	if v, ok := set["price"].(float64); ok {
		product.Price = v
	}
	if v, ok := set["description"].(string); ok {
		product.Description = v
	}
	return product, nil
}

func (m *mockProductRepo) Delete(_ context.Context, id primitive.ObjectID) error {
	if _, ok := m.products[id]; !ok {
		return mongo.ErrNoDocuments
	}
	delete(m.products, id)
	return nil
}

func vendorUser() *model.User {
	return &model.User{ID: primitive.NewObjectID(), Email: "vendor@example.com", IsVendor: true}
}

func TestProductService_Create(t *testing.T) {
	repo := newMockProductRepo()
	svc := NewProductService(repo, nil)
	vendor := vendorUser()

	product, err := svc.Create(context.Background(), vendor, dto.CreateProductRequest{
		CatalogID: 7, Name: "Mug", Price: 12.5, Category: "kitchen", VendorName: "Mug Co",
	})
	require.NoError(t, err)
	assert.False(t, product.ID.IsZero())
	assert.Equal(t, vendor.ID, product.Vendor.ID)
	assert.Equal(t, "Mug Co", product.Vendor.Name)
}

func TestProductService_Create_VendorOnly(t *testing.T) {
	repo := newMockProductRepo()
	svc := NewProductService(repo, nil)

	buyer := &model.User{ID: primitive.NewObjectID(), Email: "buyer@example.com"}
	_, err := svc.Create(context.Background(), buyer, dto.CreateProductRequest{Name: "Mug", Price: 12.5})
	assert.ErrorIs(t, err, ErrVendorOnly)
	assert.Empty(t, repo.products)
}

func TestProductService_GetByID_NotFound(t *testing.T) {
	svc := NewProductService(newMockProductRepo(), nil)

	_, err := svc.GetByID(context.Background(), primitive.NewObjectID())
	assert.ErrorIs(t, err, ErrProductNotFound)
}

func TestProductService_Update(t *testing.T) {
	repo := newMockProductRepo()
	svc := NewProductService(repo, nil)
	vendor := vendorUser()

	product, err := svc.Create(context.Background(), vendor, dto.CreateProductRequest{Name: "Mug", Price: 12.5})
	require.NoError(t, err)

	name := "Enamel Mug"
	price := 14.0
	updated, err := svc.Update(context.Background(), product.ID, vendor.ID, dto.UpdateProductRequest{
		Name: &name, Price: &price,
	})
	require.NoError(t, err)
	assert.Equal(t, "Enamel Mug", updated.Name)
	assert.Equal(t, 14.0, updated.Price)
}

func TestProductService_Update_NotVendor(t *testing.T) {
	repo := newMockProductRepo()
	svc := NewProductService(repo, nil)
	vendor := vendorUser()

	product, err := svc.Create(context.Background(), vendor, dto.CreateProductRequest{Name: "Mug", Price: 12.5})
	require.NoError(t, err)

	name := "Stolen Mug"
	_, err = svc.Update(context.Background(), product.ID, primitive.NewObjectID(), dto.UpdateProductRequest{Name: &name})
	assert.ErrorIs(t, err, ErrNotProductVendor)
	assert.Equal(t, "Mug", repo.products[product.ID].Name)
}

func TestProductService_Delete(t *testing.T) {
	repo := newMockProductRepo()
	svc := NewProductService(repo, nil)
	vendor := vendorUser()

	product, err := svc.Create(context.Background(), vendor, dto.CreateProductRequest{Name: "Mug", Price: 12.5})
	require.NoError(t, err)

	err = svc.Delete(context.Background(), product.ID, primitive.NewObjectID())
	assert.ErrorIs(t, err, ErrNotProductVendor)

	require.NoError(t, svc.Delete(context.Background(), product.ID, vendor.ID))
	assert.Empty(t, repo.products)

	err = svc.Delete(context.Background(), product.ID, vendor.ID)
	assert.ErrorIs(t, err, ErrProductNotFound)
}

func TestProductService_List_Search(t *testing.T) {
	repo := newMockProductRepo()
	svc := NewProductService(repo, nil)
	vendor := vendorUser()

	for _, name := range []string{"Enamel Mug", "Desk Lamp"} {
		_, err := svc.Create(context.Background(), vendor, dto.CreateProductRequest{Name: name, Price: 10})
		require.NoError(t, err)
	}

	products, err := svc.List(context.Background(), "mug")
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, "Enamel Mug", products[0].Name)
}
