package service

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/vendora/storefront-api/internal/dto"
	"github.com/vendora/storefront-api/internal/model"
	"github.com/vendora/storefront-api/internal/repository"
)

type UserService struct {
	userRepo    repository.UserRepository
	addressRepo repository.AddressRepository
	orderRepo   repository.OrderRepository
}

func NewUserService(userRepo repository.UserRepository, addressRepo repository.AddressRepository, orderRepo repository.OrderRepository) *UserService {
	return &UserService{userRepo: userRepo, addressRepo: addressRepo, orderRepo: orderRepo}
}

// Profile resolves addresses and orders from their own collections by owner,
// not from the user's reference arrays, so a drifted index never hides data.
func (s *UserService) Profile(ctx context.Context, userID primitive.ObjectID) (*dto.ProfileResponse, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	addresses, err := s.addressRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list addresses: %w", err)
	}
	orders, err := s.orderRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}

	if addresses == nil {
		addresses = []model.Address{}
	}
	if orders == nil {
		orders = []model.Order{}
	}
	return &dto.ProfileResponse{Profile: user, Addresses: addresses, Orders: orders}, nil
}

func (s *UserService) UpdateProfile(ctx context.Context, userID primitive.ObjectID, req dto.UpdateProfileRequest) (*model.User, error) {
	set := bson.M{}
	if req.Name != nil {
		set["name"] = *req.Name
	}
	if req.Phone != nil {
		set["phone"] = *req.Phone
	}
	if req.Avatar != nil {
		set["avatar"] = *req.Avatar
	}

	user, err := s.userRepo.UpdateFields(ctx, userID, set)
	if err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}
