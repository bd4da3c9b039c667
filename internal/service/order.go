package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/vendora/storefront-api/internal/config"
	"github.com/vendora/storefront-api/internal/dto"
	"github.com/vendora/storefront-api/internal/model"
	"github.com/vendora/storefront-api/internal/repository"
)

var (
	ErrInvalidAddressID      = errors.New("invalid address ID")
	ErrOrderAddress          = errors.New("address not found or not owned by user")
	ErrItemsRequired         = errors.New("items array is required")
	ErrInvalidItem           = errors.New("invalid item")
	ErrTotalMismatch         = errors.New("total does not match items")
	ErrBadIdempotencyKey     = errors.New("idempotency key must be a UUID")
	ErrOrderNotFound         = errors.New("order not found")
	ErrOrderAccessDenied     = errors.New("not authorized for this order")
	ErrOrderAlreadyCancelled = errors.New("order is already cancelled")
	ErrOrderNotCancellable   = errors.New("only pending orders can be cancelled")
	ErrInvalidStatus         = errors.New("invalid order status")
	ErrInvalidTransition     = errors.New("status transition not allowed")
	ErrOperatorRequired      = errors.New("operator role required")
)

const (
	paymentMethodCOD  = "Cash on Delivery"
	paymentMethodCard = "Credit Card"
	orderIdemTTL      = 24 * time.Hour
)

// centsTolerance absorbs float rounding in client-computed totals.
var centsTolerance = decimal.NewFromFloat(0.01)

type OrderService struct {
	orderRepo   repository.OrderRepository
	addressRepo repository.AddressRepository
	userRepo    repository.UserRepository
	idem        IdempotencyStore
	repairs     RepairPublisher
	pricing     config.PricingConfig
	log         *slog.Logger
}

func NewOrderService(
	orderRepo repository.OrderRepository,
	addressRepo repository.AddressRepository,
	userRepo repository.UserRepository,
	idem IdempotencyStore,
	repairs RepairPublisher,
	pricing config.PricingConfig,
	log *slog.Logger,
) *OrderService {
	return &OrderService{
		orderRepo:   orderRepo,
		addressRepo: addressRepo,
		userRepo:    userRepo,
		idem:        idem,
		repairs:     repairs,
		pricing:     pricing,
		log:         log,
	}
}

// Assemble validates the cart snapshot, binds the address and payment,
// recomputes the canonical total and persists a Pending order. All
// validation runs before the first write. A repeated call with the same
// idempotency key returns the order created by the first call.
func (s *OrderService) Assemble(ctx context.Context, userID primitive.ObjectID, req dto.CreateOrderRequest, idemKey string) (*model.Order, error) {
	if idemKey != "" {
		if _, err := uuid.Parse(idemKey); err != nil {
			return nil, ErrBadIdempotencyKey
		}
		if existing := s.lookupIdempotent(ctx, userID, idemKey); existing != nil {
			return existing, nil
		}
	}

	addressID, err := primitive.ObjectIDFromHex(req.Address)
	if err != nil {
		return nil, ErrInvalidAddressID
	}
	address, err := s.addressRepo.GetOwned(ctx, addressID, userID)
	if err != nil {
		return nil, fmt.Errorf("resolve address: %w", err)
	}
	if address == nil {
		return nil, ErrOrderAddress
	}

	if len(req.Items) == 0 {
		return nil, ErrItemsRequired
	}
	items := make([]model.OrderItem, 0, len(req.Items))
	for i, it := range req.Items {
		if it.Name == "" {
			return nil, fmt.Errorf("%w: item %d has no name", ErrInvalidItem, i)
		}
		if it.Price == nil || *it.Price < 0 {
			return nil, fmt.Errorf("%w: item %d has a negative or missing price", ErrInvalidItem, i)
		}
		if it.Quantity < 1 {
			return nil, fmt.Errorf("%w: item %d has quantity below 1", ErrInvalidItem, i)
		}
		items = append(items, model.OrderItem{
			Name:     it.Name,
			Price:    *it.Price,
			Quantity: it.Quantity,
			Image:    it.Image,
		})
	}

	total := s.computeTotal(items, req.Payment.Method)
	if req.Total != nil {
		claimed := decimal.NewFromFloat(*req.Total)
		if claimed.Sub(total).Abs().GreaterThan(centsTolerance) {
			return nil, fmt.Errorf("%w: client sent %s, computed %s", ErrTotalMismatch, claimed, total)
		}
	}

	order := &model.Order{
		UserID:    userID,
		Items:     items,
		Total:     total.InexactFloat64(),
		AddressID: addressID,
		Payment: model.Payment{
			Method:    req.Payment.Method,
			CardLast4: cardLast4(req.Payment.Method, req.Payment.CardNumber),
		},
		Status: model.OrderStatusPending,
	}
	if err := s.orderRepo.Create(ctx, order); err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	if err := s.userRepo.PushRef(ctx, userID, repository.RefOrders, order.ID); err != nil {
		s.log.Error("append order ref failed, queueing repair",
			"user_id", userID.Hex(), "order_id", order.ID.Hex(), "error", err)
		s.queueRepair(ctx, userID, order.ID, "add")
	}

	if idemKey != "" {
		s.storeIdempotent(ctx, userID, idemKey, order.ID)
	}
	return order, nil
}

// computeTotal applies the fee policy: flat shipping below the free-shipping
// threshold, plus a surcharge for cash on delivery.
func (s *OrderService) computeTotal(items []model.OrderItem, paymentMethod string) decimal.Decimal {
	subtotal := decimal.Zero
	for _, it := range items {
		subtotal = subtotal.Add(decimal.NewFromFloat(it.Price).Mul(decimal.NewFromInt(int64(it.Quantity))))
	}

	total := subtotal
	if subtotal.LessThan(decimal.NewFromFloat(s.pricing.FreeShippingThreshold)) {
		total = total.Add(decimal.NewFromFloat(s.pricing.FlatShippingFee))
	}
	if paymentMethod == paymentMethodCOD {
		total = total.Add(decimal.NewFromFloat(s.pricing.CODFee))
	}
	return total
}

func (s *OrderService) Get(ctx context.Context, orderID, userID primitive.ObjectID) (*model.Order, error) {
	order, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	// Non-owners get not-found here so order ids don't leak existence.
	if order == nil || order.UserID != userID {
		return nil, ErrOrderNotFound
	}
	return order, nil
}

func (s *OrderService) ListByUser(ctx context.Context, userID primitive.ObjectID) ([]model.Order, error) {
	orders, err := s.orderRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return orders, nil
}

// Cancel moves a Pending order to Cancelled. Unlike Get, it confirms
// existence before ownership so a non-owner is told forbidden, not
// not-found.
func (s *OrderService) Cancel(ctx context.Context, orderID, userID primitive.ObjectID) (*model.Order, error) {
	order, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	if order.UserID != userID {
		return nil, ErrOrderAccessDenied
	}
	if order.Status == model.OrderStatusCancelled {
		return nil, ErrOrderAlreadyCancelled
	}
	if order.Status != model.OrderStatusPending {
		return nil, ErrOrderNotCancellable
	}

	updated, err := s.orderRepo.UpdateStatus(ctx, orderID, model.OrderStatusCancelled)
	if err != nil {
		return nil, fmt.Errorf("cancel order: %w", err)
	}
	if updated == nil {
		return nil, ErrOrderNotFound
	}
	return updated, nil
}

// UpdateStatus applies a guarded transition. Cancelling goes through the
// Cancel guards; any other transition is an operator action and requires
// the vendor flag.
func (s *OrderService) UpdateStatus(ctx context.Context, orderID, userID primitive.ObjectID, isVendor bool, status string) (*model.Order, error) {
	to := model.OrderStatus(status)
	if !to.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	if to == model.OrderStatusCancelled {
		return s.Cancel(ctx, orderID, userID)
	}

	order, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	if order == nil || order.UserID != userID {
		return nil, ErrOrderNotFound
	}
	if !isVendor {
		return nil, ErrOperatorRequired
	}
	if !order.Status.CanTransition(to) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, order.Status, to)
	}

	updated, err := s.orderRepo.UpdateStatus(ctx, orderID, to)
	if err != nil {
		return nil, fmt.Errorf("update status: %w", err)
	}
	if updated == nil {
		return nil, ErrOrderNotFound
	}
	return updated, nil
}

func (s *OrderService) Delete(ctx context.Context, orderID, userID primitive.ObjectID) error {
	order, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return fmt.Errorf("get order: %w", err)
	}
	if order == nil || order.UserID != userID {
		return ErrOrderNotFound
	}

	if err := s.orderRepo.Delete(ctx, orderID); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return ErrOrderNotFound
		}
		return fmt.Errorf("delete order: %w", err)
	}

	if err := s.userRepo.PullRef(ctx, userID, repository.RefOrders, orderID); err != nil {
		s.log.Error("remove order ref failed, queueing repair",
			"user_id", userID.Hex(), "order_id", orderID.Hex(), "error", err)
		s.queueRepair(ctx, userID, orderID, "remove")
	}
	return nil
}

func (s *OrderService) lookupIdempotent(ctx context.Context, userID primitive.ObjectID, key string) *model.Order {
	if s.idem == nil {
		return nil
	}
	hex, err := s.idem.Get(ctx, idemStoreKey(userID, key))
	if err != nil {
		return nil
	}
	orderID, err := primitive.ObjectIDFromHex(hex)
	if err != nil {
		return nil
	}
	order, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil || order == nil || order.UserID != userID {
		return nil
	}
	return order
}

func (s *OrderService) storeIdempotent(ctx context.Context, userID primitive.ObjectID, key string, orderID primitive.ObjectID) {
	if s.idem == nil {
		return
	}
	if err := s.idem.Set(ctx, idemStoreKey(userID, key), orderID.Hex(), orderIdemTTL); err != nil {
		s.log.Error("store idempotency key", "user_id", userID.Hex(), "error", err)
	}
}

func idemStoreKey(userID primitive.ObjectID, key string) string {
	return "order:idem:" + userID.Hex() + ":" + key
}

func (s *OrderService) queueRepair(ctx context.Context, userID, ref primitive.ObjectID, op string) {
	if s.repairs == nil {
		return
	}
	msg := model.RepairMessage{
		ID:     uuid.NewString(),
		UserID: userID,
		Field:  string(repository.RefOrders),
		Ref:    ref,
		Op:     op,
	}
	if err := s.repairs.PublishRepair(ctx, msg); err != nil {
		s.log.Error("publish order repair", "user_id", userID.Hex(), "error", err)
	}
}

// cardLast4 keeps only the trailing four digits of a card number, and only
// for card payments.
func cardLast4(method, cardNumber string) string {
	if method != paymentMethodCard {
		return ""
	}
	digits := make([]rune, 0, len(cardNumber))
	for _, r := range cardNumber {
		if r >= '0' && r <= '9' {
			digits = append(digits, r)
		}
	}
	if len(digits) < 4 {
		return ""
	}
	return string(digits[len(digits)-4:])
}
