package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/mlorenc/birthday-notify/internal/metrics"
	"github.com/mlorenc/birthday-notify/internal/model"
)

// ClaimCoordinator selects due events and marks them in-flight. It holds no
// state of its own: all cross-worker coordination lives in the store's
// row-exclusive selection, so any number of coordinators in any number of
// processes can sweep concurrently.
type ClaimCoordinator struct {
	store EventStore
	log   zerolog.Logger
}

// NewClaimCoordinator constructs a ClaimCoordinator.
func NewClaimCoordinator(store EventStore, log zerolog.Logger) *ClaimCoordinator {
	return &ClaimCoordinator{
		store: store,
		log:   log.With().Str("component", "claim").Logger(),
	}
}

// ClaimReady claims up to limit events that are due at now, oldest-due
// first. An empty batch is a normal result, not an error. Every returned
// event is already InFlight in the store; no other caller will receive it.
func (c *ClaimCoordinator) ClaimReady(ctx context.Context, limit int, now time.Time) ([]*model.Event, error) {
	events, err := c.store.SelectAndLockDue(ctx, limit, now.UTC())
	if err != nil {
		return nil, fmt.Errorf("claim due events: %w", err)
	}
	if len(events) > 0 {
		metrics.EventsClaimed.Add(float64(len(events)))
		c.log.Debug().Int("count", len(events)).Msg("claimed due events")
	}
	return events, nil
}
