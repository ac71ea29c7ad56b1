package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/candleworks-fulfillment/internal/auth"
	"github.com/example/candleworks-fulfillment/internal/domain/order"
	"github.com/example/candleworks-fulfillment/internal/domain/points"
)

var (
	ErrCustomerNotFound   = errors.New("customer not found")
	ErrEmailTaken         = errors.New("email is already registered")
	ErrInvalidEmail       = errors.New("email is required")
	ErrInvalidCredentials = errors.New("invalid email or password")
)

// Customer is a registered storefront account.
type Customer struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}

// Store persists customers. Insert must reject duplicate emails atomically
// with ErrEmailTaken.
type Store interface {
	Insert(ctx context.Context, c *Customer) error
	FindByEmail(ctx context.Context, email string) (*Customer, error)
	FindByID(ctx context.Context, id string) (*Customer, error)
}

// Service is the customer registry. It also implements the identity-resolution
// collaborator consumed by the payment event processor.
type Service struct {
	store  Store
	orders *order.Ledger
	points *points.Ledger
	logger *zap.Logger
}

func NewService(store Store, orders *order.Ledger, pts *points.Ledger, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, orders: orders, points: pts, logger: logger}
}

// Register creates a customer account and retroactively links any guest
// orders placed under the same email.
func (s *Service) Register(ctx context.Context, email, password, name string) (*Customer, error) {
	email = normalizeEmail(email)
	if email == "" {
		return nil, ErrInvalidEmail
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, err
	}

	c := &Customer{
		ID:           uuid.New().String(),
		Email:        email,
		Name:         name,
		PasswordHash: hash,
		Role:         "customer",
		CreatedAt:    time.Now(),
	}
	if err := s.store.Insert(ctx, c); err != nil {
		return nil, err
	}
	s.logger.Info("customer registered",
		zap.String("user_id", c.ID),
		zap.String("email", email))

	// Best-effort: a linking failure does not fail the registration, and the
	// operation can be replayed safely.
	if _, err := s.LinkGuestOrders(ctx, c.ID, email); err != nil {
		s.logger.Error("guest order linking failed",
			zap.String("user_id", c.ID),
			zap.Error(err))
	}
	return c, nil
}

// Authenticate checks credentials and returns the customer.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*Customer, error) {
	c, err := s.store.FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, ErrCustomerNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !auth.CheckPassword(password, c.PasswordHash) {
		return nil, ErrInvalidCredentials
	}
	return c, nil
}

// ResolveByEmail looks up a registered customer for the payment event
// processor. found=false for guests.
func (s *Service) ResolveByEmail(ctx context.Context, email string) (userID string, found bool, err error) {
	c, err := s.store.FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, ErrCustomerNotFound) {
			return "", false, nil
		}
		return "", false, err
	}
	return c.ID, true, nil
}

// Get returns a customer by id.
func (s *Service) Get(ctx context.Context, id string) (*Customer, error) {
	return s.store.FindByID(ctx, id)
}

// LinkGuestOrders re-parents guest orders sharing the customer's email and
// appends the corresponding earn transaction for each, exactly once. The
// per-order points-awarded flag makes the whole operation safe to invoke
// twice: replays find the flag already set and credit nothing.
func (s *Service) LinkGuestOrders(ctx context.Context, userID, email string) (linked int, err error) {
	guestOrders, err := s.orders.GuestOrdersByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return 0, fmt.Errorf("link guest orders: %w", err)
	}

	for _, o := range guestOrders {
		if err := s.orders.AttachUser(ctx, o.Key, userID); err != nil {
			s.logger.Error("failed to attach guest order",
				zap.String("order_key", o.Key.String()),
				zap.Error(err))
			continue
		}
		linked++

		// Pending orders never earned anything in the first place.
		if o.Status == order.StatusPending || o.Status == order.StatusCancelled {
			continue
		}
		if err := s.awardOnce(ctx, o, userID); err != nil {
			s.logger.Error("failed to award points for linked order",
				zap.String("order_key", o.Key.String()),
				zap.Error(err))
		}
	}

	if linked > 0 {
		s.logger.Info("guest orders linked",
			zap.String("user_id", userID),
			zap.Int("count", linked))
	}
	return linked, nil
}

func (s *Service) awardOnce(ctx context.Context, o *order.Order, userID string) error {
	awarded, err := s.orders.MarkPointsAwarded(ctx, o.Key)
	if err != nil {
		return err
	}
	if !awarded {
		return nil
	}

	earned := points.EarnedPoints(o.Subtotal)
	if earned <= 0 {
		return nil
	}
	if _, err := s.points.Earn(ctx, userID, earned,
		fmt.Sprintf("Points for linked order %s", o.Key)); err != nil {
		return err
	}
	return s.orders.SetPointsEarned(ctx, o.Key, earned)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
