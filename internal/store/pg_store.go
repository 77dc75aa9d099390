package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	inverrors "github.com/avilov/inventory_service/internal/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const productColumns = "id, name, description, stock_quantity, low_stock_threshold"

// PgStore implements ProductStore using PostgreSQL as the data store.
type PgStore struct {
	db *pgxpool.Pool
}

// NewPgStore creates a new instance of ProductStore using a PostgreSQL connection pool.
func NewPgStore(dbp *pgxpool.Pool) *PgStore {
	return &PgStore{
		db: dbp,
	}
}

// Create adds a new product to the system.
// Returns an error if the product cannot be created.
func (p *PgStore) Create(ctx context.Context, name, description string, stockQuantity, lowStockThreshold int64) (*Product, error) {
	row := p.db.QueryRow(ctx,
		`INSERT INTO products (name, description, stock_quantity, low_stock_threshold)
		 VALUES ($1, $2, $3, $4)
		 RETURNING `+productColumns,
		name, description, stockQuantity, lowStockThreshold)
	product, err := scanProduct(row)
	if err != nil {
		return nil, fmt.Errorf("failed to create product: %w", err)
	}
	return product, nil
}

// FindByID retrieves a product by its unique identifier.
// Returns ErrProductNotFound if no product exists with the given ID.
func (p *PgStore) FindByID(ctx context.Context, id int64) (*Product, error) {
	row := p.db.QueryRow(ctx,
		`SELECT `+productColumns+` FROM products WHERE id = $1`, id)
	product, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, inverrors.ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to find product by ID: %w", err)
	}
	return product, nil
}

// FindAll retrieves all available products ordered by ID.
// It returns a slice of products, which may be empty if no products exist.
func (p *PgStore) FindAll(ctx context.Context) ([]Product, error) {
	rows, err := p.db.Query(ctx,
		`SELECT `+productColumns+` FROM products ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to find all products: %w", err)
	}
	defer rows.Close()
	return collectProducts(rows)
}

// FindLowStock retrieves all products below their low-stock threshold,
// ordered by stock quantity ascending.
func (p *PgStore) FindLowStock(ctx context.Context) ([]Product, error) {
	rows, err := p.db.Query(ctx,
		`SELECT `+productColumns+` FROM products
		 WHERE stock_quantity < low_stock_threshold
		 ORDER BY stock_quantity ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to find low stock products: %w", err)
	}
	defer rows.Close()
	return collectProducts(rows)
}

// UpdateFields modifies only the supplied fields of an existing product.
// Returns ErrProductNotFound if no product exists with the given ID.
func (p *PgStore) UpdateFields(ctx context.Context, id int64, name, description *string) (*Product, error) {
	set := make([]string, 0, 2)
	args := make([]any, 0, 3)
	if name != nil {
		args = append(args, *name)
		set = append(set, fmt.Sprintf("name = $%d", len(args)))
	}
	if description != nil {
		args = append(args, *description)
		set = append(set, fmt.Sprintf("description = $%d", len(args)))
	}
	args = append(args, id)

	query := fmt.Sprintf(
		`UPDATE products SET %s WHERE id = $%d RETURNING %s`,
		strings.Join(set, ", "), len(args), productColumns)

	row := p.db.QueryRow(ctx, query, args...)
	product, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, inverrors.ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to update product: %w", err)
	}
	return product, nil
}

// DeleteByID removes a product by its unique identifier.
// Returns ErrProductNotFound if no product exists with the given ID.
func (p *PgStore) DeleteByID(ctx context.Context, id int64) error {
	tag, err := p.db.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete product by ID: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return inverrors.ErrProductNotFound
	}
	return nil
}

// IncreaseStock adds amount to a product's stock quantity in a single
// conditional update. The stock_quantity >= 0 predicate mirrors the table
// invariant; it is not expected to filter rows.
// Returns ErrProductNotFound if no row matched.
func (p *PgStore) IncreaseStock(ctx context.Context, id, amount int64) (*Product, error) {
	row := p.db.QueryRow(ctx,
		`UPDATE products
		 SET stock_quantity = stock_quantity + $2
		 WHERE id = $1 AND stock_quantity >= 0
		 RETURNING `+productColumns,
		id, amount)
	product, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, inverrors.ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to increase product stock: %w", err)
	}
	return product, nil
}

// WithinTransaction runs fn inside a transaction, committing on nil and
// rolling back otherwise. The connection is released on every exit path.
func (p *PgStore) WithinTransaction(ctx context.Context, fn func(tx StockTx) error) error {
	tx, err := p.db.Begin(ctx)
	if err != nil {
		return inverrors.ErrTransactionBegin
	}

	err = fn(&pgStockTx{tx: tx})
	if err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			return inverrors.ErrTransactionRollback
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return inverrors.ErrTransactionCommit
	}

	return nil
}

// pgStockTx implements StockTx on top of a pgx transaction.
type pgStockTx struct {
	tx pgx.Tx
}

// LockStockForUpdate reads the current stock quantity with SELECT ... FOR UPDATE,
// taking an exclusive lock on the row until the transaction ends.
// Returns ErrProductNotFound if no product exists with the given ID.
func (t *pgStockTx) LockStockForUpdate(ctx context.Context, id int64) (int64, error) {
	var stock int64
	err := t.tx.QueryRow(ctx,
		`SELECT stock_quantity FROM products WHERE id = $1 FOR UPDATE`, id).Scan(&stock)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, inverrors.ErrProductNotFound
		}
		return 0, fmt.Errorf("failed to lock product row: %w", err)
	}
	return stock, nil
}

// DecrementStock subtracts amount from the product's stock quantity.
// The row lock taken by LockStockForUpdate already guarantees safety.
func (t *pgStockTx) DecrementStock(ctx context.Context, id, amount int64) (int64, error) {
	tag, err := t.tx.Exec(ctx,
		`UPDATE products SET stock_quantity = stock_quantity - $2 WHERE id = $1`, id, amount)
	if err != nil {
		return 0, fmt.Errorf("failed to decrement product stock: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanProduct(row pgx.Row) (*Product, error) {
	var p Product
	if err := row.Scan(&p.ID, &p.Name, &p.Description, &p.StockQuantity, &p.LowStockThreshold); err != nil {
		return nil, err
	}
	return &p, nil
}

func collectProducts(rows pgx.Rows) ([]Product, error) {
	products := make([]Product, 0)
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.StockQuantity, &p.LowStockThreshold); err != nil {
			return nil, fmt.Errorf("failed to scan product row: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read product rows: %w", err)
	}
	return products, nil
}
