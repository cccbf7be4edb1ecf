package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mlorenc/birthday-notify/internal/model"
)

func seedPending(t *testing.T, store *memEventStore, n int, base time.Time) {
	t.Helper()
	for i := 0; i < n; i++ {
		target := base.Add(time.Duration(i) * time.Hour)
		e, err := model.NewEvent(fmt.Sprintf("subj-%d", i), model.KindBirthday, target, "UTC",
			fmt.Sprintf("bday-%016x", i), []byte(`{}`), 3, base.AddDate(-1, 0, 0))
		require.NoError(t, err)
		require.NoError(t, store.Create(context.Background(), e))
	}
}

func TestClaimReadyReturnsOldestDueFirst(t *testing.T) {
	store := newMemEventStore()
	base := time.Date(2026, time.March, 1, 9, 0, 0, 0, time.UTC)
	seedPending(t, store, 5, base)

	c := NewClaimCoordinator(store, zerolog.Nop())
	now := base.Add(10 * time.Hour)

	claimed, err := c.ClaimReady(context.Background(), 3, now)
	require.NoError(t, err)
	require.Len(t, claimed, 3)
	for i := 1; i < len(claimed); i++ {
		assert.False(t, claimed[i].TargetUTC.Before(claimed[i-1].TargetUTC))
	}
	for _, e := range claimed {
		assert.Equal(t, model.StatusInFlight, e.Status)
	}
}

func TestClaimReadySkipsNotYetDue(t *testing.T) {
	store := newMemEventStore()
	base := time.Date(2026, time.March, 1, 9, 0, 0, 0, time.UTC)
	seedPending(t, store, 5, base) // targets at base, +1h, ..., +4h

	c := NewClaimCoordinator(store, zerolog.Nop())

	claimed, err := c.ClaimReady(context.Background(), 10, base.Add(time.Hour))
	require.NoError(t, err)
	assert.Len(t, claimed, 2, "only events due at now qualify")
}

func TestClaimReadyHonorsBackoffGate(t *testing.T) {
	store := newMemEventStore()
	base := time.Date(2026, time.March, 1, 9, 0, 0, 0, time.UTC)
	seedPending(t, store, 1, base)

	ctx := context.Background()
	c := NewClaimCoordinator(store, zerolog.Nop())

	claimed, err := c.ClaimReady(ctx, 1, base)
	require.NoError(t, err)
	require.Len(t, claimed, 1)

	// Soft-fail with a retry window one hour out.
	e := claimed[0]
	observed := e.Version
	require.NoError(t, e.Fail("blip", base.Add(time.Hour)))
	require.NoError(t, store.Save(ctx, e, observed))

	claimed, err = c.ClaimReady(ctx, 1, base.Add(30*time.Minute))
	require.NoError(t, err)
	assert.Empty(t, claimed, "event is pending but inside its backoff window")

	claimed, err = c.ClaimReady(ctx, 1, base.Add(61*time.Minute))
	require.NoError(t, err)
	assert.Len(t, claimed, 1)
}

func TestClaimReadyEmptyIsNotAnError(t *testing.T) {
	c := NewClaimCoordinator(newMemEventStore(), zerolog.Nop())
	claimed, err := c.ClaimReady(context.Background(), 10, time.Now().UTC())
	require.NoError(t, err)
	assert.Empty(t, claimed)
}

func TestClaimReadyConcurrentCallersNeverShareAnEvent(t *testing.T) {
	store := newMemEventStore()
	base := time.Date(2026, time.March, 1, 9, 0, 0, 0, time.UTC)
	const total = 200
	seedPending(t, store, total, base)

	now := base.Add(time.Duration(total) * time.Hour)
	const callers = 8

	var wg sync.WaitGroup
	results := make([][]*model.Event, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c := NewClaimCoordinator(store, zerolog.Nop())
			for {
				claimed, err := c.ClaimReady(context.Background(), 7, now)
				if !assert.NoError(t, err) {
					return
				}
				if len(claimed) == 0 {
					return
				}
				results[i] = append(results[i], claimed...)
			}
		}(i)
	}
	wg.Wait()

	seen := make(map[string]int)
	count := 0
	for _, batch := range results {
		for _, e := range batch {
			seen[e.ID]++
			count++
		}
	}
	assert.Equal(t, total, count, "every due event claimed exactly once")
	for id, n := range seen {
		assert.Equal(t, 1, n, "event %s claimed by more than one caller", id)
	}
}
