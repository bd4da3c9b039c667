package service

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/vendora/storefront-api/internal/config"
	"github.com/vendora/storefront-api/internal/dto"
	"github.com/vendora/storefront-api/internal/model"
)

type mockOrderRepo struct {
	orders map[primitive.ObjectID]*model.Order
	clock  time.Time
}

func newMockOrderRepo() *mockOrderRepo {
	return &mockOrderRepo{orders: make(map[primitive.ObjectID]*model.Order), clock: time.Now()}
}

func (m *mockOrderRepo) Create(_ context.Context, order *model.Order) error {
	order.ID = primitive.NewObjectID()
	m.clock = m.clock.Add(time.Second)
	order.CreatedAt = m.clock
	m.orders[order.ID] = order
	return nil
}

func (m *mockOrderRepo) GetByID(_ context.Context, id primitive.ObjectID) (*model.Order, error) {
	return m.orders[id], nil
}

func (m *mockOrderRepo) ListByUser(_ context.Context, userID primitive.ObjectID) ([]model.Order, error) {
	var out []model.Order
	for _, o := range m.orders {
		if o.UserID == userID {
			out = append(out, *o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *mockOrderRepo) UpdateStatus(_ context.Context, id primitive.ObjectID, status model.OrderStatus) (*model.Order, error) {
	order, ok := m.orders[id]
	if !ok {
		return nil, nil
	}
	order.Status = status
	return order, nil
}

func (m *mockOrderRepo) Delete(_ context.Context, id primitive.ObjectID) error {
	if _, ok := m.orders[id]; !ok {
		return mongo.ErrNoDocuments
	}
	delete(m.orders, id)
	return nil
}

type orderFixture struct {
	svc         *OrderService
	orderRepo   *mockOrderRepo
	addressRepo *mockAddressRepo
	userRepo    *mockUserRepo
	repairs     *mockRepairPublisher
	user        *model.User
	address     *model.Address
}

func newOrderFixture(t *testing.T) *orderFixture {
	t.Helper()
	f := &orderFixture{
		orderRepo:   newMockOrderRepo(),
		addressRepo: newMockAddressRepo(),
		userRepo:    newMockUserRepo(),
		repairs:     &mockRepairPublisher{},
	}
	f.user = &model.User{ID: primitive.NewObjectID(), Email: "buyer@example.com"}
	f.userRepo.add(f.user)
	f.address = &model.Address{UserID: f.user.ID, Street: "1 Main St", City: "Springfield", Zip: "12345"}
	require.NoError(t, f.addressRepo.Create(context.Background(), f.address))

	pricing := config.PricingConfig{FreeShippingThreshold: 50, FlatShippingFee: 5, CODFee: 20}
	f.svc = NewOrderService(f.orderRepo, f.addressRepo, f.userRepo, nil, f.repairs, pricing, testLogger())
	return f
}

func fptr(v float64) *float64 { return &v }

func orderReq(f *orderFixture, items []dto.OrderItemRequest, method string) dto.CreateOrderRequest {
	return dto.CreateOrderRequest{
		Items:   items,
		Address: f.address.ID.Hex(),
		Payment: dto.PaymentRequest{Method: method},
	}
}

func TestOrderService_Assemble_FlatShippingBelowThreshold(t *testing.T) {
	f := newOrderFixture(t)

	order, err := f.svc.Assemble(context.Background(), f.user.ID, orderReq(f, []dto.OrderItemRequest{
		{Name: "Mug", Price: fptr(30), Quantity: 1},
	}, "Card"), "")
	require.NoError(t, err)

	assert.Equal(t, 35.0, order.Total, "30 subtotal + 5 shipping")
	assert.Equal(t, model.OrderStatusPending, order.Status)
	assert.Equal(t, f.address.ID, order.AddressID)
	require.Len(t, f.user.Orders, 1)
	assert.Equal(t, order.ID, f.user.Orders[0])
}

func TestOrderService_Assemble_FreeShippingAtThreshold(t *testing.T) {
	f := newOrderFixture(t)

	order, err := f.svc.Assemble(context.Background(), f.user.ID, orderReq(f, []dto.OrderItemRequest{
		{Name: "Mug", Price: fptr(25), Quantity: 2},
	}, "Card"), "")
	require.NoError(t, err)
	assert.Equal(t, 50.0, order.Total, "subtotal at threshold ships free")
}

func TestOrderService_Assemble_CODSurcharge(t *testing.T) {
	f := newOrderFixture(t)

	order, err := f.svc.Assemble(context.Background(), f.user.ID, orderReq(f, []dto.OrderItemRequest{
		{Name: "Mug", Price: fptr(40), Quantity: 1},
	}, "Cash on Delivery"), "")
	require.NoError(t, err)

	assert.Equal(t, 65.0, order.Total, "40 + 5 shipping + 20 COD")
	assert.Empty(t, order.Payment.CardLast4)
}

func TestOrderService_Assemble_EmptyItems(t *testing.T) {
	f := newOrderFixture(t)

	_, err := f.svc.Assemble(context.Background(), f.user.ID, orderReq(f, nil, "Card"), "")
	assert.ErrorIs(t, err, ErrItemsRequired)
	assert.Empty(t, f.orderRepo.orders, "no order persisted on validation failure")
}

func TestOrderService_Assemble_InvalidItems(t *testing.T) {
	f := newOrderFixture(t)

	cases := []dto.OrderItemRequest{
		{Name: "", Price: fptr(10), Quantity: 1},
		{Name: "Mug", Price: fptr(-1), Quantity: 1},
		{Name: "Mug", Price: nil, Quantity: 1},
		{Name: "Mug", Price: fptr(10), Quantity: 0},
	}
	for _, item := range cases {
		_, err := f.svc.Assemble(context.Background(), f.user.ID,
			orderReq(f, []dto.OrderItemRequest{item}, "Card"), "")
		assert.ErrorIs(t, err, ErrInvalidItem)
	}
	assert.Empty(t, f.orderRepo.orders)
}

func TestOrderService_Assemble_AddressNotOwned(t *testing.T) {
	f := newOrderFixture(t)

	stranger := &model.Address{UserID: primitive.NewObjectID()}
	require.NoError(t, f.addressRepo.Create(context.Background(), stranger))

	req := orderReq(f, []dto.OrderItemRequest{{Name: "Mug", Price: fptr(30), Quantity: 1}}, "Card")
	req.Address = stranger.ID.Hex()

	_, err := f.svc.Assemble(context.Background(), f.user.ID, req, "")
	assert.ErrorIs(t, err, ErrOrderAddress)
	assert.Empty(t, f.orderRepo.orders, "no order persisted for foreign address")
}

func TestOrderService_Assemble_MalformedAddressID(t *testing.T) {
	f := newOrderFixture(t)

	req := orderReq(f, []dto.OrderItemRequest{{Name: "Mug", Price: fptr(30), Quantity: 1}}, "Card")
	req.Address = "not-an-object-id"

	_, err := f.svc.Assemble(context.Background(), f.user.ID, req, "")
	assert.ErrorIs(t, err, ErrInvalidAddressID)
}

func TestOrderService_Assemble_ClientTotalVerified(t *testing.T) {
	f := newOrderFixture(t)

	req := orderReq(f, []dto.OrderItemRequest{{Name: "Mug", Price: fptr(30), Quantity: 1}}, "Card")
	req.Total = fptr(30) // forgot the shipping fee

	_, err := f.svc.Assemble(context.Background(), f.user.ID, req, "")
	assert.ErrorIs(t, err, ErrTotalMismatch)
	assert.Empty(t, f.orderRepo.orders)

	req.Total = fptr(35)
	order, err := f.svc.Assemble(context.Background(), f.user.ID, req, "")
	require.NoError(t, err)
	assert.Equal(t, 35.0, order.Total)
}

func TestOrderService_Assemble_CardLast4(t *testing.T) {
	f := newOrderFixture(t)

	req := orderReq(f, []dto.OrderItemRequest{{Name: "Mug", Price: fptr(30), Quantity: 1}}, "Credit Card")
	req.Payment.CardNumber = "4111 1111 1111 1234"

	order, err := f.svc.Assemble(context.Background(), f.user.ID, req, "")
	require.NoError(t, err)
	assert.Equal(t, "1234", order.Payment.CardLast4)
}

func TestOrderService_Assemble_CardLast4_NonCardMethod(t *testing.T) {
	f := newOrderFixture(t)

	// Only card payments record a last-4, even if the client sent digits.
	req := orderReq(f, []dto.OrderItemRequest{{Name: "Mug", Price: fptr(30), Quantity: 1}}, "UPI")
	req.Payment.CardNumber = "4111 1111 1111 1234"

	order, err := f.svc.Assemble(context.Background(), f.user.ID, req, "")
	require.NoError(t, err)
	assert.Empty(t, order.Payment.CardLast4)
}

func TestOrderService_Assemble_RefFailureQueuesRepair(t *testing.T) {
	f := newOrderFixture(t)
	f.userRepo.pushErr = errors.New("write conflict")

	order, err := f.svc.Assemble(context.Background(), f.user.ID, orderReq(f, []dto.OrderItemRequest{
		{Name: "Mug", Price: fptr(30), Quantity: 1},
	}, "Card"), "")
	require.NoError(t, err, "primary write committed, assemble still succeeds")
	assert.NotNil(t, f.orderRepo.orders[order.ID])

	require.Len(t, f.repairs.messages, 1)
	assert.Equal(t, "orders", f.repairs.messages[0].Field)
	assert.Equal(t, "add", f.repairs.messages[0].Op)
	assert.Equal(t, order.ID, f.repairs.messages[0].Ref)
}

func TestOrderService_Assemble_BadIdempotencyKey(t *testing.T) {
	f := newOrderFixture(t)

	_, err := f.svc.Assemble(context.Background(), f.user.ID, orderReq(f, []dto.OrderItemRequest{
		{Name: "Mug", Price: fptr(30), Quantity: 1},
	}, "Card"), "not-a-uuid")
	assert.ErrorIs(t, err, ErrBadIdempotencyKey)
}

type mockIdemStore struct {
	entries map[string]string
}

func (m *mockIdemStore) Get(_ context.Context, key string) (string, error) {
	v, ok := m.entries[key]
	if !ok {
		return "", errors.New("key not found")
	}
	return v, nil
}

func (m *mockIdemStore) Set(_ context.Context, key, value string, _ time.Duration) error {
	m.entries[key] = value
	return nil
}

func TestOrderService_Assemble_IdempotentReplay(t *testing.T) {
	f := newOrderFixture(t)
	f.svc.idem = &mockIdemStore{entries: make(map[string]string)}

	key := uuid.NewString()
	req := orderReq(f, []dto.OrderItemRequest{{Name: "Mug", Price: fptr(30), Quantity: 1}}, "Card")

	first, err := f.svc.Assemble(context.Background(), f.user.ID, req, key)
	require.NoError(t, err)

	replay, err := f.svc.Assemble(context.Background(), f.user.ID, req, key)
	require.NoError(t, err)
	assert.Equal(t, first.ID, replay.ID)
	assert.Len(t, f.orderRepo.orders, 1, "replay must not create a second order")

	// A different key assembles a fresh order.
	second, err := f.svc.Assemble(context.Background(), f.user.ID, req, uuid.NewString())
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)
	assert.Len(t, f.orderRepo.orders, 2)
}

func TestOrderService_Assemble_IdempotencyKeyScopedToUser(t *testing.T) {
	f := newOrderFixture(t)
	f.svc.idem = &mockIdemStore{entries: make(map[string]string)}

	key := uuid.NewString()
	first, err := f.svc.Assemble(context.Background(), f.user.ID, orderReq(f, []dto.OrderItemRequest{
		{Name: "Mug", Price: fptr(30), Quantity: 1},
	}, "Card"), key)
	require.NoError(t, err)

	other := &model.User{ID: primitive.NewObjectID(), Email: "other@example.com"}
	f.userRepo.add(other)
	otherAddr := &model.Address{UserID: other.ID, Street: "2 Side St"}
	require.NoError(t, f.addressRepo.Create(context.Background(), otherAddr))

	req := dto.CreateOrderRequest{
		Items:   []dto.OrderItemRequest{{Name: "Mug", Price: fptr(30), Quantity: 1}},
		Address: otherAddr.ID.Hex(),
		Payment: dto.PaymentRequest{Method: "Card"},
	}
	order, err := f.svc.Assemble(context.Background(), other.ID, req, key)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, order.ID, "another user's key must not replay this order")
}

func seedOrder(f *orderFixture, owner primitive.ObjectID, status model.OrderStatus) *model.Order {
	order := &model.Order{
		UserID: owner,
		Items:  []model.OrderItem{{Name: "Mug", Price: 30, Quantity: 1}},
		Total:  35, AddressID: f.address.ID, Status: status,
	}
	_ = f.orderRepo.Create(context.Background(), order)
	return order
}

func TestOrderService_Cancel(t *testing.T) {
	f := newOrderFixture(t)
	order := seedOrder(f, f.user.ID, model.OrderStatusPending)

	cancelled, err := f.svc.Cancel(context.Background(), order.ID, f.user.ID)
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusCancelled, cancelled.Status)
}

func TestOrderService_Cancel_Shipped(t *testing.T) {
	f := newOrderFixture(t)
	order := seedOrder(f, f.user.ID, model.OrderStatusShipped)

	_, err := f.svc.Cancel(context.Background(), order.ID, f.user.ID)
	assert.ErrorIs(t, err, ErrOrderNotCancellable)
	assert.Equal(t, model.OrderStatusShipped, f.orderRepo.orders[order.ID].Status, "state unchanged")
}

func TestOrderService_Cancel_AlreadyCancelled(t *testing.T) {
	f := newOrderFixture(t)
	order := seedOrder(f, f.user.ID, model.OrderStatusCancelled)

	_, err := f.svc.Cancel(context.Background(), order.ID, f.user.ID)
	assert.ErrorIs(t, err, ErrOrderAlreadyCancelled)
	assert.NotErrorIs(t, err, ErrOrderNotCancellable)
}

func TestOrderService_Cancel_NonOwnerGetsForbidden(t *testing.T) {
	f := newOrderFixture(t)
	order := seedOrder(f, f.user.ID, model.OrderStatusPending)

	_, err := f.svc.Cancel(context.Background(), order.ID, primitive.NewObjectID())
	assert.ErrorIs(t, err, ErrOrderAccessDenied)
	assert.NotErrorIs(t, err, ErrOrderNotFound)
	assert.Equal(t, model.OrderStatusPending, f.orderRepo.orders[order.ID].Status)
}

func TestOrderService_Cancel_NotFound(t *testing.T) {
	f := newOrderFixture(t)
	_, err := f.svc.Cancel(context.Background(), primitive.NewObjectID(), f.user.ID)
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestOrderService_Get_NonOwnerGetsNotFound(t *testing.T) {
	f := newOrderFixture(t)
	order := seedOrder(f, f.user.ID, model.OrderStatusPending)

	_, err := f.svc.Get(context.Background(), order.ID, primitive.NewObjectID())
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestOrderService_UpdateStatus_ShipRequiresOperator(t *testing.T) {
	f := newOrderFixture(t)
	order := seedOrder(f, f.user.ID, model.OrderStatusPending)

	_, err := f.svc.UpdateStatus(context.Background(), order.ID, f.user.ID, false, "Shipped")
	assert.ErrorIs(t, err, ErrOperatorRequired)

	shipped, err := f.svc.UpdateStatus(context.Background(), order.ID, f.user.ID, true, "Shipped")
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusShipped, shipped.Status)
}

func TestOrderService_UpdateStatus_InvalidTransition(t *testing.T) {
	f := newOrderFixture(t)
	order := seedOrder(f, f.user.ID, model.OrderStatusPending)

	_, err := f.svc.UpdateStatus(context.Background(), order.ID, f.user.ID, true, "Delivered")
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestOrderService_UpdateStatus_FreeFormRejected(t *testing.T) {
	f := newOrderFixture(t)
	order := seedOrder(f, f.user.ID, model.OrderStatusPending)

	_, err := f.svc.UpdateStatus(context.Background(), order.ID, f.user.ID, true, "Teleported")
	assert.ErrorIs(t, err, ErrInvalidStatus)
}

func TestOrderService_UpdateStatus_CancelDelegates(t *testing.T) {
	f := newOrderFixture(t)
	order := seedOrder(f, f.user.ID, model.OrderStatusPending)

	// Cancelling through the generic endpoint needs no operator role.
	cancelled, err := f.svc.UpdateStatus(context.Background(), order.ID, f.user.ID, false, "Cancelled")
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusCancelled, cancelled.Status)
}

func TestOrderService_Delete(t *testing.T) {
	f := newOrderFixture(t)
	order := seedOrder(f, f.user.ID, model.OrderStatusPending)
	f.user.Orders = append(f.user.Orders, order.ID)

	require.NoError(t, f.svc.Delete(context.Background(), order.ID, f.user.ID))
	assert.Nil(t, f.orderRepo.orders[order.ID])
	assert.Empty(t, f.user.Orders)
}

func TestOrderService_Delete_NonOwner(t *testing.T) {
	f := newOrderFixture(t)
	order := seedOrder(f, f.user.ID, model.OrderStatusPending)

	err := f.svc.Delete(context.Background(), order.ID, primitive.NewObjectID())
	assert.ErrorIs(t, err, ErrOrderNotFound)
	assert.NotNil(t, f.orderRepo.orders[order.ID])
}

func TestOrderService_ListByUser_NewestFirst(t *testing.T) {
	f := newOrderFixture(t)
	first := seedOrder(f, f.user.ID, model.OrderStatusPending)
	second := seedOrder(f, f.user.ID, model.OrderStatusPending)
	seedOrder(f, primitive.NewObjectID(), model.OrderStatusPending)

	orders, err := f.svc.ListByUser(context.Background(), f.user.ID)
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, second.ID, orders[0].ID)
	assert.Equal(t, first.ID, orders[1].ID)
}
