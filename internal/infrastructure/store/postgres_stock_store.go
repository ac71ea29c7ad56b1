package store

import (
	"context"
	"database/sql"

	"github.com/example/candleworks-fulfillment/internal/domain/stock"
)

// PostgresStockStore implements stock.Store on a single-row conditional
// UPDATE: the non-negative check rides inside the statement, so there is no
// window between check and mutation for concurrent checkouts to race through.
type PostgresStockStore struct {
	db *sql.DB
}

func NewPostgresStockStore(db *sql.DB) *PostgresStockStore {
	return &PostgresStockStore{db: db}
}

func (s *PostgresStockStore) Adjust(ctx context.Context, key stock.Key, delta int) (int, error) {
	var quantity int
	err := s.db.QueryRowContext(ctx,
		`UPDATE stock_counters
		 SET quantity = quantity + $3
		 WHERE product_slug = $1 AND variant_id = $2 AND quantity + $3 >= 0
		 RETURNING quantity`,
		key.ProductSlug, key.VariantID, delta,
	).Scan(&quantity)
	if err == sql.ErrNoRows {
		// Either the counter is missing or the delta would go negative;
		// disambiguate so callers can tell the two apart.
		var exists bool
		if err := s.db.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM stock_counters WHERE product_slug = $1 AND variant_id = $2)`,
			key.ProductSlug, key.VariantID,
		).Scan(&exists); err != nil {
			return 0, err
		}
		if !exists {
			if delta >= 0 {
				// First positive adjustment creates the counter.
				return s.insert(ctx, key, delta)
			}
			return 0, stock.ErrCounterNotFound
		}
		return 0, stock.ErrInsufficientStock
	}
	if err != nil {
		return 0, err
	}
	return quantity, nil
}

func (s *PostgresStockStore) insert(ctx context.Context, key stock.Key, quantity int) (int, error) {
	var out int
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO stock_counters (product_slug, variant_id, quantity)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (product_slug, variant_id)
		 DO UPDATE SET quantity = stock_counters.quantity + EXCLUDED.quantity
		 RETURNING quantity`,
		key.ProductSlug, key.VariantID, quantity,
	).Scan(&out)
	return out, err
}

func (s *PostgresStockStore) Set(ctx context.Context, key stock.Key, quantity int) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO stock_counters (product_slug, variant_id, quantity)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (product_slug, variant_id) DO UPDATE SET quantity = EXCLUDED.quantity`,
		key.ProductSlug, key.VariantID, quantity,
	)
	return err
}

func (s *PostgresStockStore) Get(ctx context.Context, key stock.Key) (int, error) {
	var quantity int
	err := s.db.QueryRowContext(ctx,
		`SELECT quantity FROM stock_counters WHERE product_slug = $1 AND variant_id = $2`,
		key.ProductSlug, key.VariantID,
	).Scan(&quantity)
	if err == sql.ErrNoRows {
		return 0, stock.ErrCounterNotFound
	}
	if err != nil {
		return 0, err
	}
	return quantity, nil
}
