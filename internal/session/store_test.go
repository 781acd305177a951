package session

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nextsteps-go/internal/clock"
	"nextsteps-go/internal/flow"
	"nextsteps-go/internal/models"
)

func newController() *flow.Controller {
	return flow.NewController(flow.SubmitterFunc(func(ctx context.Context, req *models.ReminderRequest) error {
		return nil
	}))
}

func TestStorePutGetDelete(t *testing.T) {
	store := NewInMemoryStore(time.Minute, time.Hour, nil)
	defer store.Close()
	ctx := context.Background()

	c := newController()
	id, err := store.Put(ctx, c)
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, id)

	got, err := store.Get(ctx, id)
	require.NoError(t, err)
	assert.Same(t, c, got)

	require.NoError(t, store.Delete(ctx, id))
	_, err = store.Get(ctx, id)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStoreExpiry(t *testing.T) {
	clk := clock.NewManualClock(time.Date(2026, 1, 30, 10, 0, 0, 0, time.UTC))
	store := NewInMemoryStore(10*time.Minute, time.Hour, clk)
	defer store.Close()
	ctx := context.Background()

	id, err := store.Put(ctx, newController())
	require.NoError(t, err)

	clk.Advance(9 * time.Minute)
	_, err = store.Get(ctx, id)
	require.NoError(t, err, "get inside the ttl refreshes the entry")

	clk.Advance(9 * time.Minute)
	_, err = store.Get(ctx, id)
	require.NoError(t, err)

	clk.Advance(11 * time.Minute)
	_, err = store.Get(ctx, id)
	assert.ErrorIs(t, err, ErrExpired)
	assert.Equal(t, 0, store.Len())
}

func TestStoreSweep(t *testing.T) {
	clk := clock.NewManualClock(time.Date(2026, 1, 30, 10, 0, 0, 0, time.UTC))
	store := NewInMemoryStore(time.Minute, time.Hour, clk)
	defer store.Close()
	ctx := context.Background()

	_, err := store.Put(ctx, newController())
	require.NoError(t, err)
	clk.Advance(30 * time.Second)
	_, err = store.Put(ctx, newController())
	require.NoError(t, err)

	clk.Advance(45 * time.Second)
	assert.Equal(t, 1, store.sweep())
	assert.Equal(t, 1, store.Len())
}

func TestStoreCloseIsIdempotent(t *testing.T) {
	store := NewInMemoryStore(time.Minute, time.Millisecond, nil)
	assert.NoError(t, store.Close())
	assert.NoError(t, store.Close())
}
