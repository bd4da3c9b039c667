package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type User struct {
	ID        primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	Name      string               `bson:"name" json:"name"`
	Email     string               `bson:"email" json:"email"`
	Password  string               `bson:"password" json:"-"`
	Phone     string               `bson:"phone,omitempty" json:"phone,omitempty"`
	Avatar    string               `bson:"avatar,omitempty" json:"avatar,omitempty"`
	IsVendor  bool                 `bson:"isVendor" json:"isVendor"`
	Addresses []primitive.ObjectID `bson:"addresses" json:"addresses"`
	Orders    []primitive.ObjectID `bson:"orders" json:"orders"`
	CreatedAt time.Time            `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time            `bson:"updatedAt" json:"updatedAt"`
}

type Address struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID    primitive.ObjectID `bson:"user" json:"userId"`
	Label     string             `bson:"label,omitempty" json:"label,omitempty"`
	Street    string             `bson:"street" json:"street"`
	City      string             `bson:"city" json:"city"`
	State     string             `bson:"state" json:"state"`
	Zip       string             `bson:"zip" json:"zip"`
	Phone     string             `bson:"phone,omitempty" json:"phone,omitempty"`
	IsDefault bool               `bson:"isDefault" json:"isDefault"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time          `bson:"updatedAt" json:"updatedAt"`
}

type Vendor struct {
	ID   primitive.ObjectID `bson:"id" json:"id"`
	Name string             `bson:"name" json:"name"`
}

type Product struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	CatalogID   int64              `bson:"catalogId" json:"catalogId"`
	Name        string             `bson:"name" json:"name"`
	Price       float64            `bson:"price" json:"price"`
	Description string             `bson:"description,omitempty" json:"description,omitempty"`
	Image       string             `bson:"image,omitempty" json:"image,omitempty"`
	Category    string             `bson:"category,omitempty" json:"category,omitempty"`
	Rating      float64            `bson:"rating,omitempty" json:"rating,omitempty"`
	Vendor      Vendor             `bson:"vendor" json:"vendor"`
	CreatedAt   time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// ProductSnapshot is the denormalized copy of a catalog entry captured at
// favorite-time. It is keyed by the numeric catalog id, not the document id.
type ProductSnapshot struct {
	CatalogID   int64   `bson:"id" json:"id"`
	Name        string  `bson:"name" json:"name"`
	Price       float64 `bson:"price" json:"price"`
	Description string  `bson:"description" json:"description"`
	Image       string  `bson:"image" json:"image"`
	Category    string  `bson:"category" json:"category"`
	Rating      float64 `bson:"rating" json:"rating"`
}

type Favorite struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID    primitive.ObjectID `bson:"user" json:"userId"`
	Product   ProductSnapshot    `bson:"product" json:"product"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
}

// OrderItem is a snapshot of a cart line, not a live product reference.
type OrderItem struct {
	Name     string  `bson:"name" json:"name"`
	Price    float64 `bson:"price" json:"price"`
	Quantity int     `bson:"quantity" json:"quantity"`
	Image    string  `bson:"image,omitempty" json:"image,omitempty"`
}

type Payment struct {
	Method    string `bson:"method" json:"method"`
	CardLast4 string `bson:"cardLast4,omitempty" json:"cardLast4,omitempty"`
}

type Order struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID    primitive.ObjectID `bson:"user" json:"userId"`
	Items     []OrderItem        `bson:"items" json:"items"`
	Total     float64            `bson:"total" json:"total"`
	AddressID primitive.ObjectID `bson:"address" json:"addressId"`
	Payment   Payment            `bson:"payment" json:"payment"`
	Status    OrderStatus        `bson:"status" json:"status"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
}

// RepairMessage asks the reference-repair worker to re-apply a secondary
// write that failed after its primary write committed.
type RepairMessage struct {
	ID     string             `json:"id"`
	UserID primitive.ObjectID `json:"user_id"`
	Field  string             `json:"field"` // "orders" or "addresses"
	Ref    primitive.ObjectID `json:"ref"`
	Op     string             `json:"op"` // "add" or "remove"
}
