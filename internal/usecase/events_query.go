package usecase

import (
	"context"
	"fmt"
	"time"

	"CollarPulse/internal/domain/models"
	domrepo "CollarPulse/internal/domain/repository"
	pkgcache "CollarPulse/pkg/cache"
	"CollarPulse/pkg/util"
)

// EventsUseCase provides business logic for querying detected events.
// Recent queries are served from cache; the window keeps results fresh
// enough for dashboard polling.
type EventsUseCase struct {
	store    domrepo.EventStore
	cache    pkgcache.Service
	cacheTTL time.Duration
}

func NewEventsUseCase(store domrepo.EventStore, cache pkgcache.Service) *EventsUseCase {
	return &EventsUseCase{store: store, cache: cache, cacheTTL: 30 * time.Second}
}

type GetEventsParams struct {
	CollarID string
	From     time.Time
	To       time.Time
	Limit    int
}

type GetEventsResult struct {
	CollarID string                   `json:"collar_id"`
	From     time.Time                `json:"from"`
	To       time.Time                `json:"to"`
	Count    int                      `json:"count"`
	Events   []models.BehavioralEvent `json:"events"`
}

func (uc *EventsUseCase) GetEvents(ctx context.Context, p GetEventsParams) (*GetEventsResult, error) {
	if p.CollarID == "" {
		return nil, fmt.Errorf("collar_id required")
	}
	if p.From.After(p.To) {
		return nil, fmt.Errorf("from must be <= to")
	}
	if p.Limit <= 0 {
		p.Limit = 500
	}
	if p.Limit > 10000 {
		p.Limit = 10000
	}

	// minute-aligned cache key so rapid polling hits the same entry
	kf, kt := util.AlignRange(p.From, p.To, time.Minute)
	key := fmt.Sprintf("events:%s:%d:%d:%d", p.CollarID, kf.Unix(), kt.Unix(), p.Limit)
	if uc.cache != nil {
		var cached GetEventsResult
		if err := uc.cache.Get(ctx, key, &cached); err == nil {
			return &cached, nil
		}
		// miss or cache trouble, fall through to the store
	}

	events, err := uc.store.GetEvents(ctx, p.CollarID, p.From, p.To, p.Limit)
	if err != nil {
		return nil, fmt.Errorf("get events: %w", err)
	}

	res := &GetEventsResult{
		CollarID: p.CollarID,
		From:     p.From,
		To:       p.To,
		Count:    len(events),
		Events:   events,
	}
	if uc.cache != nil {
		_ = uc.cache.Set(ctx, key, res, uc.cacheTTL)
	}
	return res, nil
}
