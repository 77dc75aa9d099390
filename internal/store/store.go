// Package store provides an interface for product storage operations.
package store

import (
	"context"
)

// ProductStore is an interface for product storage operations.
// It abstracts the underlying data store, allowing for different implementations (e.g., in-memory, database).
type ProductStore interface {
	// Create adds a new product to the system and returns the inserted row,
	// including the store-assigned ID.
	Create(ctx context.Context, name, description string, stockQuantity, lowStockThreshold int64) (*Product, error)

	// FindByID retrieves a single product by its unique identifier.
	// Returns ErrProductNotFound if no product exists with the given ID.
	FindByID(ctx context.Context, id int64) (*Product, error)

	// FindAll returns all available products ordered by ID ascending.
	// Returns an empty slice if no products exist.
	FindAll(ctx context.Context) ([]Product, error)

	// FindLowStock returns all products whose stock quantity is below their
	// low-stock threshold, ordered by stock quantity ascending.
	FindLowStock(ctx context.Context) ([]Product, error)

	// UpdateFields modifies only the supplied fields of an existing product.
	// At least one field must be non-nil.
	// Returns ErrProductNotFound if no product exists with the given ID.
	UpdateFields(ctx context.Context, id int64, name, description *string) (*Product, error)

	// DeleteByID removes a product by its ID.
	// Returns ErrProductNotFound if no product exists with the given ID.
	DeleteByID(ctx context.Context, id int64) error

	// IncreaseStock adds amount to a product's stock quantity in a single
	// conditional update. Returns ErrProductNotFound if no row matched.
	IncreaseStock(ctx context.Context, id, amount int64) (*Product, error)

	// WithinTransaction runs fn inside a transaction. The transaction is
	// committed when fn returns nil and rolled back otherwise; the underlying
	// connection is released on every exit path.
	WithinTransaction(ctx context.Context, fn func(tx StockTx) error) error
}

// StockTx exposes the row-locking primitives available inside a transaction
// started by WithinTransaction. The lock is held until the transaction ends.
type StockTx interface {
	// LockStockForUpdate reads a product's stock quantity with an exclusive
	// row lock, blocking conflicting transactions on the same ID.
	// Returns ErrProductNotFound if no product exists with the given ID.
	LockStockForUpdate(ctx context.Context, id int64) (int64, error)

	// DecrementStock subtracts amount from a product's stock quantity and
	// returns the number of rows affected. Safety against overdraw is the
	// caller's responsibility via LockStockForUpdate.
	DecrementStock(ctx context.Context, id, amount int64) (int64, error)
}
