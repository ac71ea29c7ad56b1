package store

import (
	"context"
	"database/sql"
	"strings"

	"github.com/example/candleworks-fulfillment/internal/domain/promotion"
)

// PostgresPromotionStore implements promotion.Store. ConsumeUsage runs both
// ceiling checks as conditional UPDATEs inside one transaction, so a usage
// limit can never be overshot by concurrent redemptions.
type PostgresPromotionStore struct {
	db *sql.DB
}

func NewPostgresPromotionStore(db *sql.DB) *PostgresPromotionStore {
	return &PostgresPromotionStore{db: db}
}

const promotionColumns = `id, code, name, type, percent, amount_minor, min_subtotal,
	scope, usage_limit, per_user_limit, starts_at, ends_at, priority, stackable, usage_count`

func (s *PostgresPromotionStore) FindByCode(ctx context.Context, code string) (*promotion.Promotion, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+promotionColumns+` FROM promotions WHERE UPPER(code) = $1`,
		strings.ToUpper(strings.TrimSpace(code)),
	)
	p, err := scanPromotion(row)
	if err == sql.ErrNoRows {
		return nil, promotion.ErrCodeNotFound
	}
	return p, err
}

func (s *PostgresPromotionStore) ListAutomatic(ctx context.Context) ([]*promotion.Promotion, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+promotionColumns+` FROM promotions WHERE code IS NULL OR code = ''`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*promotion.Promotion
	for rows.Next() {
		p, err := scanPromotion(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *PostgresPromotionStore) UserUsageCount(ctx context.Context, promoID, userID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT usage_count FROM promotion_user_usage WHERE promotion_id = $1 AND user_id = $2`,
		promoID, userID,
	).Scan(&count)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (s *PostgresPromotionStore) ConsumeUsage(ctx context.Context, promoID, userID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE promotions
		 SET usage_count = usage_count + 1
		 WHERE id = $1 AND (usage_limit = 0 OR usage_count < usage_limit)`,
		promoID,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		var exists bool
		if err := tx.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM promotions WHERE id = $1)`, promoID,
		).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return promotion.ErrCodeNotFound
		}
		return promotion.ErrUsageLimitReached
	}

	if userID != "" {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO promotion_user_usage (promotion_id, user_id, usage_count)
			 VALUES ($1, $2, 1)
			 ON CONFLICT (promotion_id, user_id) DO UPDATE
			 SET usage_count = promotion_user_usage.usage_count + 1
			 WHERE (SELECT per_user_limit FROM promotions WHERE id = $1) = 0
			    OR promotion_user_usage.usage_count < (SELECT per_user_limit FROM promotions WHERE id = $1)`,
			promoID, userID,
		)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			// Rolls back the global increment too.
			return promotion.ErrPerUserLimitReached
		}
	}

	return tx.Commit()
}

func (s *PostgresPromotionStore) Upsert(ctx context.Context, p *promotion.Promotion) error {
	var code any
	if p.Code != "" {
		code = p.Code
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO promotions (`+promotionColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		 ON CONFLICT (id) DO UPDATE SET
			code = EXCLUDED.code, name = EXCLUDED.name, type = EXCLUDED.type,
			percent = EXCLUDED.percent, amount_minor = EXCLUDED.amount_minor,
			min_subtotal = EXCLUDED.min_subtotal, scope = EXCLUDED.scope,
			usage_limit = EXCLUDED.usage_limit, per_user_limit = EXCLUDED.per_user_limit,
			starts_at = EXCLUDED.starts_at, ends_at = EXCLUDED.ends_at,
			priority = EXCLUDED.priority, stackable = EXCLUDED.stackable`,
		p.ID, code, p.Name, string(p.Type), p.Percent, p.AmountMinor, p.MinSubtotal,
		string(p.Scope), p.UsageLimit, p.PerUserLimit, p.StartsAt, p.EndsAt,
		p.Priority, p.Stackable, p.UsageCount,
	)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPromotion(row rowScanner) (*promotion.Promotion, error) {
	var p promotion.Promotion
	var code sql.NullString
	var startsAt, endsAt sql.NullTime
	var promoType, scope string
	if err := row.Scan(&p.ID, &code, &p.Name, &promoType, &p.Percent, &p.AmountMinor,
		&p.MinSubtotal, &scope, &p.UsageLimit, &p.PerUserLimit, &startsAt, &endsAt,
		&p.Priority, &p.Stackable, &p.UsageCount); err != nil {
		return nil, err
	}
	p.Code = code.String
	p.Type = promotion.DiscountType(promoType)
	p.Scope = promotion.UserScope(scope)
	if startsAt.Valid {
		t := startsAt.Time
		p.StartsAt = &t
	}
	if endsAt.Valid {
		t := endsAt.Time
		p.EndsAt = &t
	}
	return &p, nil
}
