package dto

import (
	"github.com/vendora/storefront-api/internal/model"
)

// --- Auth ---

type RegisterRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type UserResponse struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	IsVendor bool   `json:"isVendor"`
}

type AuthResponse struct {
	Token string       `json:"token"`
	User  UserResponse `json:"user"`
}

// --- Profile ---

type UpdateProfileRequest struct {
	Name   *string `json:"name"`
	Phone  *string `json:"phone"`
	Avatar *string `json:"avatar"`
}

type ProfileResponse struct {
	Profile   *model.User     `json:"profile"`
	Addresses []model.Address `json:"addresses"`
	Orders    []model.Order   `json:"orders"`
}

// --- Product ---

type CreateProductRequest struct {
	CatalogID   int64   `json:"catalogId" binding:"required"`
	Name        string  `json:"name" binding:"required"`
	Price       float64 `json:"price" binding:"required,min=0"`
	Description string  `json:"description"`
	Image       string  `json:"image"`
	Category    string  `json:"category"`
	Rating      float64 `json:"rating"`
	VendorName  string  `json:"vendorName" binding:"required"`
}

type UpdateProductRequest struct {
	Name        *string  `json:"name"`
	Price       *float64 `json:"price"`
	Description *string  `json:"description"`
	Image       *string  `json:"image"`
	Category    *string  `json:"category"`
	Rating      *float64 `json:"rating"`
}

type ListProductsRequest struct {
	Search string `form:"search"`
}

// --- Favorites ---

// ToggleFavoriteRequest carries a full product snapshot; ID stays untyped so
// the service can distinguish a missing id from a non-numeric one.
type ToggleFavoriteRequest struct {
	ID          any     `json:"id"`
	Name        string  `json:"name"`
	Price       float64 `json:"price"`
	Description string  `json:"description"`
	Image       string  `json:"image"`
	Category    string  `json:"category"`
	Rating      float64 `json:"rating"`
}

type FavoriteRef struct {
	ID int64 `json:"id"`
}

// --- Address ---

type CreateAddressRequest struct {
	Label     string `json:"label"`
	Street    string `json:"street" binding:"required"`
	City      string `json:"city" binding:"required"`
	State     string `json:"state"`
	Zip       string `json:"zip" binding:"required"`
	Phone     string `json:"phone"`
	IsDefault bool   `json:"isDefault"`
}

type UpdateAddressRequest struct {
	Label     *string `json:"label"`
	Street    *string `json:"street"`
	City      *string `json:"city"`
	State     *string `json:"state"`
	Zip       *string `json:"zip"`
	Phone     *string `json:"phone"`
	IsDefault *bool   `json:"isDefault"`
}

// --- Orders ---

type OrderItemRequest struct {
	Name     string   `json:"name" binding:"required"`
	Price    *float64 `json:"price" binding:"required"`
	Quantity int      `json:"quantity" binding:"required,min=1"`
	Image    string   `json:"image"`
}

type PaymentRequest struct {
	Method     string `json:"method" binding:"required"`
	CardNumber string `json:"cardNumber"`
}

type CreateOrderRequest struct {
	Items   []OrderItemRequest `json:"items" binding:"required"`
	Address string             `json:"address" binding:"required"`
	Payment PaymentRequest     `json:"payment" binding:"required"`
	// Total is the client's displayed total. The assembler recomputes the
	// canonical value and rejects a mismatch; it never persists this field
	// as sent.
	Total *float64 `json:"total"`
}

type UpdateOrderStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

type CancelOrderResponse struct {
	Msg   string       `json:"msg"`
	Order *model.Order `json:"order"`
}
