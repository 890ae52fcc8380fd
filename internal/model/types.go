// Package model defines domain types used by the service.
package model

import "time"

// Collection names in the document store.
const (
	CollectionProducts = "products"
	CollectionUsers    = "users"
	CollectionAccounts = "accounts"
)

// Product represents the current state of a product.
type Product struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Category    string  `json:"category"`
	Price       float64 `json:"price"`
	Quantity    int64   `json:"quantity"`
}

// User is a staff member managed through the user directory.
type User struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	PasswordHash string `json:"-"`
}

// Account is a sign-in identity for the dashboard.
type Account struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// EventKind names a change that was applied to a document.
type EventKind string

const (
	EventProductCreated EventKind = "product_created"
	EventProductUpdated EventKind = "product_updated"
	EventProductDeleted EventKind = "product_deleted"
	EventStockRestocked EventKind = "stock_restocked"
	EventStockSold      EventKind = "stock_sold"
	EventUserCreated    EventKind = "user_created"
	EventUserUpdated    EventKind = "user_updated"
	EventUserDeleted    EventKind = "user_deleted"
)

// Event records a successful mutation of a product or user document.
type Event struct {
	Sequence   uint64    `json:"sequence"`
	Kind       EventKind `json:"kind"`
	Collection string    `json:"collection"`
	DocumentID string    `json:"document_id"`
	Actor      string    `json:"actor,omitempty"`
	Delta      int64     `json:"delta,omitempty"`
	Quantity   int64     `json:"quantity,omitempty"`
	At         time.Time `json:"at"`
}

// IsStock reports whether the event changed a product quantity.
func (e Event) IsStock() bool {
	return e.Kind == EventStockRestocked || e.Kind == EventStockSold
}
