package store

import (
	"context"
	"database/sql"

	"github.com/lib/pq"

	"github.com/example/candleworks-fulfillment/internal/identity"
)

// PostgresCustomerStore implements identity.Store. The unique index on email
// makes duplicate registration atomic at the database.
type PostgresCustomerStore struct {
	db *sql.DB
}

func NewPostgresCustomerStore(db *sql.DB) *PostgresCustomerStore {
	return &PostgresCustomerStore{db: db}
}

func (s *PostgresCustomerStore) Insert(ctx context.Context, c *identity.Customer) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO customers (id, email, name, password_hash, role, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		c.ID, c.Email, c.Name, c.PasswordHash, c.Role, c.CreatedAt,
	)
	if pqErr, ok := err.(*pq.Error); ok && pqErr.Code.Name() == "unique_violation" {
		return identity.ErrEmailTaken
	}
	return err
}

func (s *PostgresCustomerStore) FindByEmail(ctx context.Context, email string) (*identity.Customer, error) {
	return s.find(ctx, `SELECT id, email, name, password_hash, role, created_at
		FROM customers WHERE email = $1`, email)
}

func (s *PostgresCustomerStore) FindByID(ctx context.Context, id string) (*identity.Customer, error) {
	return s.find(ctx, `SELECT id, email, name, password_hash, role, created_at
		FROM customers WHERE id = $1`, id)
}

func (s *PostgresCustomerStore) find(ctx context.Context, query, arg string) (*identity.Customer, error) {
	var c identity.Customer
	err := s.db.QueryRowContext(ctx, query, arg).Scan(
		&c.ID, &c.Email, &c.Name, &c.PasswordHash, &c.Role, &c.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, identity.ErrCustomerNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}
