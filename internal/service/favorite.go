package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/vendora/storefront-api/internal/dto"
	"github.com/vendora/storefront-api/internal/model"
	"github.com/vendora/storefront-api/internal/repository"
)

var (
	ErrProductIDRequired = errors.New("productId is required")
	ErrProductIDInvalid  = errors.New("productId must be a number")
)

type FavoriteService struct {
	favoriteRepo repository.FavoriteRepository
}

func NewFavoriteService(favoriteRepo repository.FavoriteRepository) *FavoriteService {
	return &FavoriteService{favoriteRepo: favoriteRepo}
}

// Toggle removes the favorite for (userID, product id) if present, otherwise
// creates one from the request's product snapshot. Returns added=true when a
// favorite was created. A duplicate-key race on insert means another toggle
// for the same pair won; this call then takes the remove side so the pair
// still ends up toggled exactly once.
func (s *FavoriteService) Toggle(ctx context.Context, userID primitive.ObjectID, req dto.ToggleFavoriteRequest) (added bool, fav *model.Favorite, err error) {
	catalogID, err := parseCatalogID(req.ID)
	if err != nil {
		return false, nil, err
	}

	removed, err := s.favoriteRepo.FindAndDelete(ctx, userID, catalogID)
	if err != nil {
		return false, nil, fmt.Errorf("toggle favorite: %w", err)
	}
	if removed != nil {
		return false, removed, nil
	}

	fav = &model.Favorite{
		UserID: userID,
		Product: model.ProductSnapshot{
			CatalogID:   catalogID,
			Name:        req.Name,
			Price:       req.Price,
			Description: req.Description,
			Image:       req.Image,
			Category:    req.Category,
			Rating:      req.Rating,
		},
	}
	if err := s.favoriteRepo.Insert(ctx, fav); err != nil {
		if errors.Is(err, repository.ErrDuplicateFavorite) {
			removed, derr := s.favoriteRepo.FindAndDelete(ctx, userID, catalogID)
			if derr != nil {
				return false, nil, fmt.Errorf("toggle favorite: %w", derr)
			}
			return false, removed, nil
		}
		return false, nil, fmt.Errorf("toggle favorite: %w", err)
	}
	return true, fav, nil
}

func (s *FavoriteService) List(ctx context.Context, userID primitive.ObjectID) ([]dto.FavoriteRef, error) {
	favorites, err := s.favoriteRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list favorites: %w", err)
	}

	refs := make([]dto.FavoriteRef, 0, len(favorites))
	for _, f := range favorites {
		refs = append(refs, dto.FavoriteRef{ID: f.Product.CatalogID})
	}
	return refs, nil
}

func (s *FavoriteService) Clear(ctx context.Context, userID primitive.ObjectID) error {
	if _, err := s.favoriteRepo.DeleteByUser(ctx, userID); err != nil {
		return fmt.Errorf("clear favorites: %w", err)
	}
	return nil
}

// parseCatalogID accepts the loosely typed id field of a toggle request.
// JSON numbers arrive as float64, some clients send the id as a string.
// Fractional values are rejected rather than truncated so "4.7" can never
// alias onto catalog id 4.
func parseCatalogID(v any) (int64, error) {
	switch id := v.(type) {
	case nil:
		return 0, ErrProductIDRequired
	case float64:
		if id != math.Trunc(id) {
			return 0, ErrProductIDInvalid
		}
		return int64(id), nil
	case int64:
		return id, nil
	case int:
		return int64(id), nil
	case json.Number:
		n, err := id.Int64()
		if err != nil {
			return 0, ErrProductIDInvalid
		}
		return n, nil
	case string:
		if id == "" {
			return 0, ErrProductIDRequired
		}
		n, err := strconv.ParseFloat(id, 64)
		if err != nil || n != math.Trunc(n) {
			return 0, ErrProductIDInvalid
		}
		return int64(n), nil
	default:
		return 0, ErrProductIDInvalid
	}
}
