package store

import (
	"context"
	"database/sql"

	"github.com/example/candleworks-fulfillment/internal/domain/points"
)

// PostgresPointsStore implements points.Store. The balance move and the
// transaction append share one database transaction, and the zero floor is a
// condition on the balance UPDATE itself.
type PostgresPointsStore struct {
	db *sql.DB
}

func NewPostgresPointsStore(db *sql.DB) *PostgresPointsStore {
	return &PostgresPointsStore{db: db}
}

func (s *PostgresPointsStore) Apply(ctx context.Context, txn *points.Transaction) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	// Account rows are created lazily on first application.
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO points_accounts (user_id, balance) VALUES ($1, 0)
		 ON CONFLICT (user_id) DO NOTHING`,
		txn.UserID,
	); err != nil {
		return 0, err
	}

	var balance int
	err = tx.QueryRowContext(ctx,
		`UPDATE points_accounts
		 SET balance = balance + $2
		 WHERE user_id = $1 AND balance + $2 >= 0
		 RETURNING balance`,
		txn.UserID, txn.Amount,
	).Scan(&balance)
	if err == sql.ErrNoRows {
		return 0, points.ErrInsufficientPoints
	}
	if err != nil {
		return 0, err
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO points_transactions (id, user_id, amount, type, description, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		txn.ID, txn.UserID, txn.Amount, string(txn.Type), txn.Description, txn.CreatedAt,
	); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return balance, nil
}

func (s *PostgresPointsStore) Balance(ctx context.Context, userID string) (int, error) {
	var balance int
	err := s.db.QueryRowContext(ctx,
		`SELECT balance FROM points_accounts WHERE user_id = $1`, userID,
	).Scan(&balance)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return balance, nil
}

func (s *PostgresPointsStore) History(ctx context.Context, userID string) ([]*points.Transaction, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, amount, type, description, created_at
		 FROM points_transactions
		 WHERE user_id = $1
		 ORDER BY created_at ASC`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*points.Transaction
	for rows.Next() {
		var txn points.Transaction
		var txnType string
		if err := rows.Scan(&txn.ID, &txn.UserID, &txn.Amount, &txnType, &txn.Description, &txn.CreatedAt); err != nil {
			return nil, err
		}
		txn.Type = points.TransactionType(txnType)
		out = append(out, &txn)
	}
	return out, rows.Err()
}
