package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/lib/pq"

	"github.com/example/candleworks-fulfillment/internal/domain/order"
)

// PostgresOrderStore implements order.Store. Idempotent insertion rides on
// the primary-key conflict; the status transitions are conditional UPDATEs
// keyed on the current status so redelivered events cannot double-apply.
type PostgresOrderStore struct {
	db *sql.DB
}

func NewPostgresOrderStore(db *sql.DB) *PostgresOrderStore {
	return &PostgresOrderStore{db: db}
}

const orderColumns = `key, email, user_id, status, items, subtotal, shipping, tax, total,
	points_earned, points_redeemed, points_awarded, payment_method, notes,
	tracking_number, carrier_code, created_at, completed_at, shipped_at, delivered_at`

func (s *PostgresOrderStore) Insert(ctx context.Context, o *order.Order) (*order.Order, bool, error) {
	items, err := json.Marshal(o.Items)
	if err != nil {
		return nil, false, err
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO orders (`+orderColumns+`)
		 VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, $7, $8, $9, $10, $11, $12,
		         NULLIF($13, ''), NULLIF($14, ''), NULLIF($15, ''), NULLIF($16, ''),
		         $17, $18, $19, $20)
		 ON CONFLICT (key) DO NOTHING`,
		o.Key.String(), o.Email, o.UserID, string(o.Status), items,
		o.Subtotal, o.Shipping, o.Tax, o.Total,
		o.PointsEarned, o.PointsRedeemed, o.PointsAwarded,
		o.PaymentMethod, o.Notes, o.TrackingNumber, o.CarrierCode,
		o.CreatedAt, o.CompletedAt, o.ShippedAt, o.DeliveredAt,
	)
	if err != nil {
		return nil, false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, false, err
	}
	if n == 0 {
		existing, err := s.Get(ctx, o.Key)
		if err != nil {
			return nil, false, err
		}
		return existing, false, nil
	}
	return o, true, nil
}

func (s *PostgresOrderStore) Get(ctx context.Context, key order.Key) (*order.Order, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE key = $1`, key.String())
	o, err := scanOrder(row)
	if err == sql.ErrNoRows {
		return nil, order.ErrOrderNotFound
	}
	return o, err
}

func (s *PostgresOrderStore) Complete(ctx context.Context, key order.Key, at time.Time) (*order.Order, bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE orders SET status = $2, completed_at = $3
		 WHERE key = $1 AND status = $4`,
		key.String(), string(order.StatusCompleted), at, string(order.StatusPending),
	)
	if err != nil {
		return nil, false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, false, err
	}

	o, err := s.Get(ctx, key)
	if err != nil {
		return nil, false, err
	}
	return o, n > 0, nil
}

func (s *PostgresOrderStore) Transition(ctx context.Context, key order.Key, target order.Status, tracking, carrier string, at time.Time) (*order.Order, error) {
	var tsColumn string
	var allowed []string
	switch target {
	case order.StatusShipped:
		tsColumn = "shipped_at"
		allowed = []string{string(order.StatusPending), string(order.StatusCompleted)}
	case order.StatusDelivered:
		tsColumn = "delivered_at"
		allowed = []string{string(order.StatusPending), string(order.StatusCompleted), string(order.StatusShipped)}
	default:
		return nil, order.ErrInvalidTransition
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE orders
		 SET status = $2, `+tsColumn+` = $3,
		     tracking_number = COALESCE(NULLIF($4, ''), tracking_number),
		     carrier_code = COALESCE(NULLIF($5, ''), carrier_code)
		 WHERE key = $1 AND status = ANY($6)`,
		key.String(), string(target), at, tracking, carrier, pq.Array(allowed),
	)
	if err != nil {
		return nil, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		if _, err := s.Get(ctx, key); err != nil {
			return nil, err
		}
		return nil, order.ErrInvalidTransition
	}
	return s.Get(ctx, key)
}

func (s *PostgresOrderStore) MarkPointsAwarded(ctx context.Context, key order.Key) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE orders SET points_awarded = TRUE
		 WHERE key = $1 AND points_awarded = FALSE`,
		key.String(),
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 0 {
		if _, err := s.Get(ctx, key); err != nil {
			return false, err
		}
	}
	return n > 0, nil
}

func (s *PostgresOrderStore) SetUser(ctx context.Context, key order.Key, userID string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE orders SET user_id = $2 WHERE key = $1`, key.String(), userID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return order.ErrOrderNotFound
	}
	return nil
}

func (s *PostgresOrderStore) Replace(ctx context.Context, o *order.Order) error {
	items, err := json.Marshal(o.Items)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE orders SET
			email = $2, user_id = NULLIF($3, ''), status = $4, items = $5,
			subtotal = $6, shipping = $7, tax = $8, total = $9,
			points_earned = $10, points_redeemed = $11, points_awarded = $12,
			payment_method = NULLIF($13, ''), notes = NULLIF($14, ''),
			tracking_number = NULLIF($15, ''), carrier_code = NULLIF($16, ''),
			completed_at = $17, shipped_at = $18, delivered_at = $19
		 WHERE key = $1`,
		o.Key.String(), o.Email, o.UserID, string(o.Status), items,
		o.Subtotal, o.Shipping, o.Tax, o.Total,
		o.PointsEarned, o.PointsRedeemed, o.PointsAwarded,
		o.PaymentMethod, o.Notes, o.TrackingNumber, o.CarrierCode,
		o.CompletedAt, o.ShippedAt, o.DeliveredAt,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return order.ErrOrderNotFound
	}
	return nil
}

func (s *PostgresOrderStore) Delete(ctx context.Context, key order.Key) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM orders WHERE key = $1`, key.String())
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return order.ErrOrderNotFound
	}
	return nil
}

func (s *PostgresOrderStore) GuestOrdersByEmail(ctx context.Context, email string) ([]*order.Order, error) {
	return s.list(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE user_id IS NULL AND email = $1 ORDER BY created_at ASC`,
		email)
}

func (s *PostgresOrderStore) ListByUser(ctx context.Context, userID string) ([]*order.Order, error) {
	return s.list(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE user_id = $1 ORDER BY created_at DESC`,
		userID)
}

func (s *PostgresOrderStore) list(ctx context.Context, query string, arg any) ([]*order.Order, error) {
	rows, err := s.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*order.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func scanOrder(row rowScanner) (*order.Order, error) {
	var o order.Order
	var key string
	var status string
	var items []byte
	var userID, paymentMethod, notes, tracking, carrier sql.NullString
	var completedAt, shippedAt, deliveredAt sql.NullTime
	if err := row.Scan(&key, &o.Email, &userID, &status, &items,
		&o.Subtotal, &o.Shipping, &o.Tax, &o.Total,
		&o.PointsEarned, &o.PointsRedeemed, &o.PointsAwarded,
		&paymentMethod, &notes, &tracking, &carrier,
		&o.CreatedAt, &completedAt, &shippedAt, &deliveredAt); err != nil {
		return nil, err
	}
	o.Key = order.Key(key)
	o.Status = order.Status(status)
	o.UserID = userID.String
	o.PaymentMethod = paymentMethod.String
	o.Notes = notes.String
	o.TrackingNumber = tracking.String
	o.CarrierCode = carrier.String
	if completedAt.Valid {
		t := completedAt.Time
		o.CompletedAt = &t
	}
	if shippedAt.Valid {
		t := shippedAt.Time
		o.ShippedAt = &t
	}
	if deliveredAt.Valid {
		t := deliveredAt.Time
		o.DeliveredAt = &t
	}
	if err := json.Unmarshal(items, &o.Items); err != nil {
		return nil, err
	}
	return &o, nil
}
