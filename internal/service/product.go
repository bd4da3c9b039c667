package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/vendora/storefront-api/internal/dto"
	"github.com/vendora/storefront-api/internal/model"
	"github.com/vendora/storefront-api/internal/repository"
)

var (
	ErrProductNotFound  = errors.New("product not found")
	ErrVendorOnly       = errors.New("only vendors can add products")
	ErrNotProductVendor = errors.New("not the product's vendor")
)

const productCacheTTL = 60 * time.Second

type ProductService struct {
	productRepo repository.ProductRepository
	redisClient *redis.Client
}

func NewProductService(productRepo repository.ProductRepository, redisClient *redis.Client) *ProductService {
	return &ProductService{productRepo: productRepo, redisClient: redisClient}
}

func (s *ProductService) Create(ctx context.Context, vendor *model.User, req dto.CreateProductRequest) (*model.Product, error) {
	if !vendor.IsVendor {
		return nil, ErrVendorOnly
	}

	product := &model.Product{
		CatalogID:   req.CatalogID,
		Name:        req.Name,
		Price:       req.Price,
		Description: req.Description,
		Image:       req.Image,
		Category:    req.Category,
		Rating:      req.Rating,
		Vendor:      model.Vendor{ID: vendor.ID, Name: req.VendorName},
	}
	if err := s.productRepo.Create(ctx, product); err != nil {
		return nil, fmt.Errorf("create product: %w", err)
	}
	return product, nil
}

func (s *ProductService) GetByID(ctx context.Context, id primitive.ObjectID) (*model.Product, error) {
	cacheKey := "product:" + id.Hex()

	if s.redisClient != nil {
		if cached, err := s.redisClient.Get(ctx, cacheKey).Result(); err == nil {
			p := &model.Product{}
			if json.Unmarshal([]byte(cached), p) == nil {
				return p, nil
			}
		}
	}

	product, err := s.productRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get product: %w", err)
	}
	if product == nil {
		return nil, ErrProductNotFound
	}

	if s.redisClient != nil {
		if data, err := json.Marshal(product); err == nil {
			s.redisClient.Set(ctx, cacheKey, data, productCacheTTL)
		}
	}
	return product, nil
}

func (s *ProductService) List(ctx context.Context, search string) ([]model.Product, error) {
	products, err := s.productRepo.List(ctx, search)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return products, nil
}

func (s *ProductService) Update(ctx context.Context, id, requesterID primitive.ObjectID, req dto.UpdateProductRequest) (*model.Product, error) {
	product, err := s.productRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get product: %w", err)
	}
	if product == nil {
		return nil, ErrProductNotFound
	}
	if product.Vendor.ID != requesterID {
		return nil, ErrNotProductVendor
	}

	set := bson.M{}
	if req.Name != nil {
		set["name"] = *req.Name
	}
	if req.Price != nil {
		set["price"] = *req.Price
	}
	if req.Description != nil {
		set["description"] = *req.Description
	}
	if req.Image != nil {
		set["image"] = *req.Image
	}
	if req.Category != nil {
		set["category"] = *req.Category
	}
	if req.Rating != nil {
		set["rating"] = *req.Rating
	}

	updated, err := s.productRepo.Update(ctx, id, set)
	if err != nil {
		return nil, fmt.Errorf("update product: %w", err)
	}
	if updated == nil {
		return nil, ErrProductNotFound
	}

	s.invalidateCache(ctx, id)
	return updated, nil
}

func (s *ProductService) Delete(ctx context.Context, id, requesterID primitive.ObjectID) error {
	product, err := s.productRepo.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("get product: %w", err)
	}
	if product == nil {
		return ErrProductNotFound
	}
	if product.Vendor.ID != requesterID {
		return ErrNotProductVendor
	}

	if err := s.productRepo.Delete(ctx, id); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return ErrProductNotFound
		}
		return fmt.Errorf("delete product: %w", err)
	}
	s.invalidateCache(ctx, id)
	return nil
}

func (s *ProductService) invalidateCache(ctx context.Context, id primitive.ObjectID) {
	if s.redisClient != nil {
		s.redisClient.Del(ctx, "product:"+id.Hex())
	}
}
