// Package service provides the implementation of inventory business logic.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	inverrors "github.com/avilov/inventory_service/internal/errors"
	"github.com/avilov/inventory_service/internal/events"
	"github.com/avilov/inventory_service/internal/store"
	"github.com/avilov/inventory_service/pkg/messaging"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const defaultLowStockThreshold = 10

// ProductService defines the methods for managing products and their stock.
// It abstracts the underlying business logic and data access.
type ProductService interface {
	// Create adds a new product to the system.
	// Returns InvalidArgumentError if the name is empty or a quantity is negative.
	Create(ctx context.Context, product ProductCreateDto) (*ProductDto, error)

	// FindByID retrieves a single product by its unique identifier.
	// Returns ErrProductNotFound if no product exists with the given ID.
	FindByID(ctx context.Context, id int64) (*ProductDto, error)

	// FindAll returns all available products ordered by ID.
	// Returns an empty slice if no products exist.
	FindAll(ctx context.Context) ([]ProductDto, error)

	// Update modifies a product's name and/or description. Stock is never
	// touched here; it changes only through the stock operations.
	// Returns InvalidArgumentError if no fields are supplied and
	// ErrProductNotFound if no product exists with the given ID.
	Update(ctx context.Context, id int64, product ProductUpdateDto) (*ProductDto, error)

	// DeleteByID removes a product by its ID.
	// Returns ErrProductNotFound if no product exists with the given ID.
	DeleteByID(ctx context.Context, id int64) error

	// IncreaseStock adds amount to a product's stock quantity.
	// Returns InvalidArgumentError if amount is not positive and
	// ErrProductNotFound if no product exists with the given ID.
	IncreaseStock(ctx context.Context, id, amount int64) (*ProductDto, error)

	// DecreaseStock subtracts amount from a product's stock quantity,
	// serialized against concurrent adjustments by a row lock.
	// Returns InvalidArgumentError if amount is not positive,
	// ErrProductNotFound if no product exists with the given ID, and
	// InsufficientStockError if amount exceeds the current stock.
	DecreaseStock(ctx context.Context, id, amount int64) (*ProductDto, error)

	// FindLowStock returns all products below their low-stock threshold,
	// ordered by stock quantity ascending.
	FindLowStock(ctx context.Context) ([]ProductDto, error)
}

// Service implements ProductService and provides methods to manage products.
type Service struct {
	repository         store.ProductStore
	publisher          messaging.Publisher
	adjustmentsCounter metric.Int64Counter
}

// NewService creates a new instance of ProductService with the provided
// repository. The publisher may be nil, in which case no events are emitted.
func NewService(repo store.ProductStore, publisher messaging.Publisher) *Service {
	meter := otel.Meter("inventory-service")
	adjustmentsCounter, err := meter.Int64Counter("stock_adjustments",
		metric.WithDescription("Total number of applied stock adjustments"))
	if err != nil {
		panic(fmt.Sprintf("failed to create stock_adjustments counter: %v", err))
	}
	return &Service{
		repository:         repo,
		publisher:          publisher,
		adjustmentsCounter: adjustmentsCounter,
	}
}

// ProductCreateDto represents the data transfer object for creating a new product.
// StockQuantity defaults to 0 and LowStockThreshold to 10 when omitted.
type ProductCreateDto struct {
	Name              string `json:"name"                validate:"required,max=255"`
	Description       string `json:"description"         validate:"max=1000"`
	StockQuantity     *int64 `json:"stock_quantity"      validate:"omitempty,gte=0"`
	LowStockThreshold *int64 `json:"low_stock_threshold" validate:"omitempty,gte=0"`
}

// ProductUpdateDto represents a partial update; only non-nil fields are applied.
type ProductUpdateDto struct {
	Name        *string `json:"name"        validate:"omitempty,max=255"`
	Description *string `json:"description" validate:"omitempty,max=1000"`
}

// StockAdjustmentDto represents the data transfer object for stock adjustments.
type StockAdjustmentDto struct {
	Amount int64 `json:"amount" validate:"required,gt=0"`
}

// ProductDto represents the data transfer object for a product.
type ProductDto struct {
	ID                int64  `json:"id"`
	Name              string `json:"name"`
	Description       string `json:"description"`
	StockQuantity     int64  `json:"stock_quantity"`
	LowStockThreshold int64  `json:"low_stock_threshold"`
}

// Create validates and persists a new product, returning it as a ProductDto.
func (s *Service) Create(ctx context.Context, product ProductCreateDto) (*ProductDto, error) {
	name := strings.TrimSpace(product.Name)
	if name == "" {
		return nil, &inverrors.InvalidArgumentError{Reason: "product name is required and must be a non-empty string"}
	}
	description := strings.TrimSpace(product.Description)

	stockQuantity := int64(0)
	if product.StockQuantity != nil {
		stockQuantity = *product.StockQuantity
	}
	if stockQuantity < 0 {
		return nil, &inverrors.InvalidArgumentError{Reason: "initial stock quantity cannot be negative"}
	}
	lowStockThreshold := int64(defaultLowStockThreshold)
	if product.LowStockThreshold != nil {
		lowStockThreshold = *product.LowStockThreshold
	}
	if lowStockThreshold < 0 {
		return nil, &inverrors.InvalidArgumentError{Reason: "low stock threshold cannot be negative"}
	}

	created, err := s.repository.Create(ctx, name, description, stockQuantity, lowStockThreshold)
	if err != nil {
		return nil, fmt.Errorf("failed to create product: %w", err)
	}
	return toDto(created), nil
}

// FindByID retrieves a product by its ID and returns it as a ProductDto.
// Returns ErrProductNotFound if no product exists with the given ID.
func (s *Service) FindByID(ctx context.Context, id int64) (*ProductDto, error) {
	product, err := s.repository.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch product by ID %d: %w", id, err)
	}
	return toDto(product), nil
}

// FindAll retrieves a list of all products and returns them as ProductDTOs.
// Returns an empty slice if no products exist or error if the retrieval fails.
func (s *Service) FindAll(ctx context.Context) ([]ProductDto, error) {
	products, err := s.repository.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch products: %w", err)
	}
	return toDtos(products), nil
}

// Update modifies a product's name and/or description and returns the updated
// product. Omitted fields are left untouched in the stored row.
func (s *Service) Update(ctx context.Context, id int64, product ProductUpdateDto) (*ProductDto, error) {
	if product.Name == nil && product.Description == nil {
		return nil, &inverrors.InvalidArgumentError{Reason: "at least one field (name or description) must be provided"}
	}
	var name, description *string
	if product.Name != nil {
		trimmed := strings.TrimSpace(*product.Name)
		if trimmed == "" {
			return nil, &inverrors.InvalidArgumentError{Reason: "product name must be a non-empty string"}
		}
		name = &trimmed
	}
	if product.Description != nil {
		trimmed := strings.TrimSpace(*product.Description)
		description = &trimmed
	}

	updated, err := s.repository.UpdateFields(ctx, id, name, description)
	if err != nil {
		return nil, fmt.Errorf("failed to update product with ID %d: %w", id, err)
	}
	return toDto(updated), nil
}

// DeleteByID deletes a product by its ID.
// Returns ErrProductNotFound if no product exists with the given ID.
func (s *Service) DeleteByID(ctx context.Context, id int64) error {
	return s.repository.DeleteByID(ctx, id)
}

// IncreaseStock adds amount to a product's stock quantity in a single
// conditional update and returns the updated product.
func (s *Service) IncreaseStock(ctx context.Context, id, amount int64) (*ProductDto, error) {
	if amount <= 0 {
		return nil, &inverrors.InvalidArgumentError{Reason: "amount must be a positive integer"}
	}

	product, err := s.repository.IncreaseStock(ctx, id, amount)
	if err != nil {
		return nil, fmt.Errorf("failed to increase stock for product with ID %d: %w", id, err)
	}
	s.adjustmentsCounter.Add(ctx, 1)
	s.notifyIfLowStock(ctx, product)
	return toDto(product), nil
}

// DecreaseStock subtracts amount from a product's stock quantity. The check
// and the write run in one transaction holding the product's row lock, so
// concurrent adjustments against the same ID are serialized and the stock
// never goes negative. The returned product is re-read after commit.
func (s *Service) DecreaseStock(ctx context.Context, id, amount int64) (*ProductDto, error) {
	if amount <= 0 {
		return nil, &inverrors.InvalidArgumentError{Reason: "amount must be a positive integer"}
	}

	txErr := s.repository.WithinTransaction(ctx, func(tx store.StockTx) error {
		currentStock, err := tx.LockStockForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if currentStock < amount {
			return &inverrors.InsufficientStockError{Available: currentStock, Requested: amount}
		}
		affected, err := tx.DecrementStock(ctx, id, amount)
		if err != nil {
			return err
		}
		if affected == 0 {
			// The lock guarantees the row exists; reaching this means the row
			// vanished inside our own transaction.
			return inverrors.ErrProductNotFound
		}
		return nil
	})
	if txErr != nil {
		return nil, fmt.Errorf("failed to decrease stock for product with ID %d: %w", id, txErr)
	}

	product, err := s.repository.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch product by ID %d after decrement: %w", id, err)
	}
	s.adjustmentsCounter.Add(ctx, 1)
	s.notifyIfLowStock(ctx, product)
	return toDto(product), nil
}

// FindLowStock retrieves all products below their low-stock threshold and
// returns them as ProductDTOs ordered by stock quantity ascending.
func (s *Service) FindLowStock(ctx context.Context) ([]ProductDto, error) {
	products, err := s.repository.FindLowStock(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch low stock products: %w", err)
	}
	return toDtos(products), nil
}

// notifyIfLowStock publishes a StockLowEvent when the product sits below its
// threshold. Publish failures are logged and never surfaced to the caller.
func (s *Service) notifyIfLowStock(ctx context.Context, product *store.Product) {
	if s.publisher == nil || product.StockQuantity >= product.LowStockThreshold {
		return
	}
	event := events.StockLowEvent{
		ProductID:         product.ID,
		Name:              product.Name,
		StockQuantity:     product.StockQuantity,
		LowStockThreshold: product.LowStockThreshold,
		OccurredAt:        time.Now().UTC(),
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		slog.ErrorContext(ctx, "Failed to publish StockLowEvent", "product_id", product.ID, "error", err)
	}
}

// toDto converts a store.Product to a ProductDto.
func toDto(product *store.Product) *ProductDto {
	return &ProductDto{
		ID:                product.ID,
		Name:              product.Name,
		Description:       product.Description,
		StockQuantity:     product.StockQuantity,
		LowStockThreshold: product.LowStockThreshold,
	}
}

func toDtos(products []store.Product) []ProductDto {
	productDTOs := make([]ProductDto, len(products))
	for i, item := range products {
		productDTOs[i] = *toDto(&item)
	}
	return productDTOs
}
