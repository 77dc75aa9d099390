package store

// Product is a row in the products table.
type Product struct {
	ID                int64
	Name              string
	Description       string
	StockQuantity     int64
	LowStockThreshold int64
}
