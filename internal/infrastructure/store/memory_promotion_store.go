package store

import (
	"context"
	"strings"
	"sync"

	"github.com/example/candleworks-fulfillment/internal/domain/promotion"
)

// MemoryPromotionStore is an in-memory promotion.Store. ConsumeUsage holds
// the mutex across both ceiling checks and both increments, so a limit-1
// promotion under concurrent requests is consumed exactly once.
type MemoryPromotionStore struct {
	mu        sync.Mutex
	promos    map[string]*promotion.Promotion // by id
	byCode    map[string]string               // code -> id
	userUsage map[string]int                  // promoID/userID -> count
}

func NewMemoryPromotionStore() *MemoryPromotionStore {
	return &MemoryPromotionStore{
		promos:    make(map[string]*promotion.Promotion),
		byCode:    make(map[string]string),
		userUsage: make(map[string]int),
	}
}

func (s *MemoryPromotionStore) Upsert(ctx context.Context, p *promotion.Promotion) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *p
	s.promos[p.ID] = &c
	if p.Code != "" {
		s.byCode[normalizeCode(p.Code)] = p.ID
	}
	return nil
}

func (s *MemoryPromotionStore) FindByCode(ctx context.Context, code string) (*promotion.Promotion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byCode[normalizeCode(code)]
	if !ok {
		return nil, promotion.ErrCodeNotFound
	}
	c := *s.promos[id]
	return &c, nil
}

func (s *MemoryPromotionStore) ListAutomatic(ctx context.Context) ([]*promotion.Promotion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*promotion.Promotion
	for _, p := range s.promos {
		if p.IsAutomatic() {
			c := *p
			out = append(out, &c)
		}
	}
	return out, nil
}

func (s *MemoryPromotionStore) UserUsageCount(ctx context.Context, promoID, userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userUsage[usageKey(promoID, userID)], nil
}

func (s *MemoryPromotionStore) ConsumeUsage(ctx context.Context, promoID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.promos[promoID]
	if !ok {
		return promotion.ErrCodeNotFound
	}
	if p.UsageLimit > 0 && p.UsageCount >= p.UsageLimit {
		return promotion.ErrUsageLimitReached
	}
	if userID != "" && p.PerUserLimit > 0 && s.userUsage[usageKey(promoID, userID)] >= p.PerUserLimit {
		return promotion.ErrPerUserLimitReached
	}
	p.UsageCount++
	if userID != "" {
		s.userUsage[usageKey(promoID, userID)]++
	}
	return nil
}

func usageKey(promoID, userID string) string { return promoID + "/" + userID }

func normalizeCode(code string) string { return strings.ToUpper(strings.TrimSpace(code)) }
