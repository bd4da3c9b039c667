package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/vendora/storefront-api/internal/dto"
	"github.com/vendora/storefront-api/internal/model"
	"github.com/vendora/storefront-api/internal/repository"
)

var (
	ErrAddressNotFound = errors.New("address not found")
	ErrAddressNotOwned = errors.New("address not owned by user")
)

type AddressService struct {
	addressRepo repository.AddressRepository
	userRepo    repository.UserRepository
	repairs     RepairPublisher
	log         *slog.Logger
}

func NewAddressService(addressRepo repository.AddressRepository, userRepo repository.UserRepository, repairs RepairPublisher, log *slog.Logger) *AddressService {
	return &AddressService{addressRepo: addressRepo, userRepo: userRepo, repairs: repairs, log: log}
}

func (s *AddressService) Create(ctx context.Context, userID primitive.ObjectID, req dto.CreateAddressRequest) (*model.Address, error) {
	address := &model.Address{
		UserID:    userID,
		Label:     req.Label,
		Street:    req.Street,
		City:      req.City,
		State:     req.State,
		Zip:       req.Zip,
		Phone:     req.Phone,
		IsDefault: req.IsDefault,
	}
	if err := s.addressRepo.Create(ctx, address); err != nil {
		return nil, fmt.Errorf("create address: %w", err)
	}

	// The address document is authoritative; the user's reference array is a
	// rebuildable index, so a failed append is repaired, not rolled back.
	if err := s.userRepo.PushRef(ctx, userID, repository.RefAddresses, address.ID); err != nil {
		s.log.Error("append address ref failed, queueing repair",
			"user_id", userID.Hex(), "address_id", address.ID.Hex(), "error", err)
		s.queueRepair(ctx, userID, address.ID, "add")
	}
	return address, nil
}

func (s *AddressService) Update(ctx context.Context, id, userID primitive.ObjectID, req dto.UpdateAddressRequest) (*model.Address, error) {
	address, err := s.addressRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get address: %w", err)
	}
	if address == nil {
		return nil, ErrAddressNotFound
	}
	if address.UserID != userID {
		return nil, ErrAddressNotOwned
	}

	set := bson.M{}
	if req.Label != nil {
		set["label"] = *req.Label
	}
	if req.Street != nil {
		set["street"] = *req.Street
	}
	if req.City != nil {
		set["city"] = *req.City
	}
	if req.State != nil {
		set["state"] = *req.State
	}
	if req.Zip != nil {
		set["zip"] = *req.Zip
	}
	if req.Phone != nil {
		set["phone"] = *req.Phone
	}
	if req.IsDefault != nil {
		set["isDefault"] = *req.IsDefault
	}

	updated, err := s.addressRepo.Update(ctx, id, set)
	if err != nil {
		return nil, fmt.Errorf("update address: %w", err)
	}
	if updated == nil {
		return nil, ErrAddressNotFound
	}
	return updated, nil
}

func (s *AddressService) Delete(ctx context.Context, id, userID primitive.ObjectID) error {
	address, err := s.addressRepo.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("get address: %w", err)
	}
	if address == nil {
		return ErrAddressNotFound
	}
	if address.UserID != userID {
		return ErrAddressNotOwned
	}

	if err := s.addressRepo.Delete(ctx, id); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return ErrAddressNotFound
		}
		return fmt.Errorf("delete address: %w", err)
	}

	if err := s.userRepo.PullRef(ctx, userID, repository.RefAddresses, id); err != nil {
		s.log.Error("remove address ref failed, queueing repair",
			"user_id", userID.Hex(), "address_id", id.Hex(), "error", err)
		s.queueRepair(ctx, userID, id, "remove")
	}
	return nil
}

func (s *AddressService) queueRepair(ctx context.Context, userID, ref primitive.ObjectID, op string) {
	if s.repairs == nil {
		return
	}
	msg := model.RepairMessage{
		ID:     uuid.NewString(),
		UserID: userID,
		Field:  string(repository.RefAddresses),
		Ref:    ref,
		Op:     op,
	}
	if err := s.repairs.PublishRepair(ctx, msg); err != nil {
		s.log.Error("publish address repair", "user_id", userID.Hex(), "error", err)
	}
}
