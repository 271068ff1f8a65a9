package main

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Apurer/temporary-care-api/internal/domains/boarding/adapters/memory"
	"github.com/Apurer/temporary-care-api/internal/domains/boarding/domain"
	"github.com/Apurer/temporary-care-api/internal/domains/boarding/ports"
)

func TestPurgeKeepsCodesInsideRetention(t *testing.T) {
	ctx := context.Background()
	store := memory.NewOTPStore()
	now := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)

	old := domain.NewOTP("old", "app-1", domain.PurposeDropoff, []byte("h"), now.Add(-96*time.Hour))
	recent := domain.NewOTP("recent", "app-2", domain.PurposePickup, []byte("h"), now.Add(-time.Hour))
	require.NoError(t, store.Replace(ctx, old))
	require.NoError(t, store.Replace(ctx, recent))

	purged, err := purge(ctx, store, 72*time.Hour, now)
	require.NoError(t, err)
	assert.Equal(t, 1, purged)

	_, err = store.Latest(ctx, "app-1", domain.PurposeDropoff)
	require.ErrorIs(t, err, ports.ErrOTPNotFound)
	kept, err := store.Latest(ctx, "app-2", domain.PurposePickup)
	require.NoError(t, err)
	assert.Equal(t, "recent", kept.ID)
}
