package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Apurer/temporary-care-api/internal/domains/boarding/domain"
	"github.com/Apurer/temporary-care-api/internal/domains/boarding/ports"
)

var testNow = time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)

func newApplication(t *testing.T, id, number string) *domain.Application {
	t.Helper()
	app, err := domain.NewApplication(domain.Submission{
		ID:        id,
		Number:    number,
		OwnerID:   "owner-1",
		Pets:      []domain.PetCare{{PetRef: "pet-1"}},
		StartDate: testNow.Add(24 * time.Hour),
		EndDate:   testNow.Add(48 * time.Hour),
	}, testNow)
	require.NoError(t, err)
	return app
}

func TestRepositoryVersionCheck(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository()
	repo.WithClock(func() time.Time { return testNow })

	created, err := repo.Create(ctx, newApplication(t, "app-1", "TCA-1"))
	require.NoError(t, err)
	assert.Equal(t, int64(1), created.Metadata.Version)

	_, err = repo.Create(ctx, newApplication(t, "app-2", "TCA-1"))
	require.ErrorIs(t, err, ports.ErrDuplicateNumber)

	app := created.Entity
	require.NoError(t, app.Reject("staff-1", "full", testNow))
	updated, err := repo.Update(ctx, app, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), updated.Metadata.Version)

	_, err = repo.Update(ctx, app, 1)
	require.ErrorIs(t, err, ports.ErrVersionConflict)

	rejected, err := repo.List(ctx, []domain.Status{domain.StatusRejected})
	require.NoError(t, err)
	assert.Len(t, rejected, 1)
	mine, err := repo.ListByOwner(ctx, "owner-2", nil)
	require.NoError(t, err)
	assert.Empty(t, mine)

	_, err = repo.GetByID(ctx, "missing")
	require.ErrorIs(t, err, ports.ErrNotFound)
}

func TestRepositoryReturnsCopies(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository()
	created, err := repo.Create(ctx, newApplication(t, "app-1", "TCA-1"))
	require.NoError(t, err)
	created.Entity.Pets[0].PetRef = "mutated"

	loaded, err := repo.GetByID(ctx, "app-1")
	require.NoError(t, err)
	assert.Equal(t, "pet-1", loaded.Entity.Pets[0].PetRef)
}

func TestOTPStoreReplaceAndConsume(t *testing.T) {
	ctx := context.Background()
	store := NewOTPStore()
	first := domain.NewOTP("otp-1", "app-1", domain.PurposeDropoff, []byte("h1"), testNow)
	second := domain.NewOTP("otp-2", "app-1", domain.PurposeDropoff, []byte("h2"), testNow.Add(time.Minute))
	pickup := domain.NewOTP("otp-3", "app-1", domain.PurposePickup, []byte("h3"), testNow)

	require.NoError(t, store.Replace(ctx, first))
	require.NoError(t, store.Replace(ctx, pickup))
	require.NoError(t, store.Replace(ctx, second))

	latest, err := store.Latest(ctx, "app-1", domain.PurposeDropoff)
	require.NoError(t, err)
	assert.Equal(t, "otp-2", latest.ID)
	require.ErrorIs(t, store.Consume(ctx, "otp-1", testNow), domain.ErrOTPExpired)

	require.NoError(t, store.Consume(ctx, "otp-2", testNow.Add(2*time.Minute)))
	require.ErrorIs(t, store.Consume(ctx, "otp-2", testNow.Add(3*time.Minute)), domain.ErrOTPAlreadyConsumed)

	invalidated, err := store.InvalidateAll(ctx, "app-1", testNow.Add(4*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, invalidated)

	purged, err := store.PurgeBefore(ctx, testNow.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 3, purged)
	_, err = store.Latest(ctx, "app-1", domain.PurposePickup)
	require.ErrorIs(t, err, ports.ErrOTPNotFound)
}

func TestAttemptLimiterLocksAfterConsecutiveFailures(t *testing.T) {
	ctx := context.Background()
	now := testNow
	limiter := NewAttemptLimiter()
	limiter.WithClock(func() time.Time { return now })
	key := domain.AttemptKey("app-1", domain.PurposeDropoff)

	for i := 1; i < domain.MaxConsecutiveMismatches; i++ {
		until, err := limiter.RecordFailure(ctx, key)
		require.NoError(t, err)
		assert.True(t, until.IsZero())
	}
	until, err := limiter.RecordFailure(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, testNow.Add(domain.LockoutWindow), until)

	locked, err := limiter.Locked(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, until, locked)

	now = until
	locked, err = limiter.Locked(ctx, key)
	require.NoError(t, err)
	assert.True(t, locked.IsZero())
}

func TestAttemptLimiterResetClearsCount(t *testing.T) {
	ctx := context.Background()
	limiter := NewAttemptLimiter()
	limiter.WithClock(func() time.Time { return testNow })
	key := domain.AttemptKey("app-1", domain.PurposePickup)

	for i := 1; i < domain.MaxConsecutiveMismatches; i++ {
		_, err := limiter.RecordFailure(ctx, key)
		require.NoError(t, err)
	}
	require.NoError(t, limiter.Reset(ctx, key))
	until, err := limiter.RecordFailure(ctx, key)
	require.NoError(t, err)
	assert.True(t, until.IsZero())
}

func TestLedgerIsUniquePerKind(t *testing.T) {
	ctx := context.Background()
	ledger := NewLedger()
	entry := &domain.LedgerEntry{ID: "l-1", ApplicationID: "app-1", Kind: domain.PaymentAdvance, Amount: 500, PaymentID: "pay-1"}
	_, err := ledger.Append(ctx, entry)
	require.NoError(t, err)

	existing, err := ledger.Append(ctx, &domain.LedgerEntry{ID: "l-2", ApplicationID: "app-1", Kind: domain.PaymentAdvance, PaymentID: "pay-2"})
	require.ErrorIs(t, err, ports.ErrDuplicateEntry)
	assert.Equal(t, "pay-1", existing.PaymentID)

	_, err = ledger.Find(ctx, "app-1", domain.PaymentFinal)
	require.ErrorIs(t, err, ports.ErrEntryNotFound)
	entries, err := ledger.ListByApplication(ctx, "app-1")
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	require.NoError(t, ledger.Discard(ctx, "l-1"))
	require.NoError(t, ledger.Discard(ctx, "l-1"), "missing ids are ignored")
	replacement, err := ledger.Append(ctx, &domain.LedgerEntry{ID: "l-3", ApplicationID: "app-1", Kind: domain.PaymentAdvance, Amount: 500, PaymentID: "pay-3"})
	require.NoError(t, err)
	assert.Equal(t, "pay-3", replacement.PaymentID)
}

func TestIdempotencyStoreConflicts(t *testing.T) {
	ctx := context.Background()
	store := NewIdempotencyStore()
	_, err := store.Save(ctx, ports.IdempotencyRecord{Key: "k", RequestHash: "h1", ApplicationID: "app-1"})
	require.NoError(t, err)
	_, err = store.Save(ctx, ports.IdempotencyRecord{Key: "k", RequestHash: "h1", ApplicationID: "app-1"})
	require.NoError(t, err)
	existing, err := store.Save(ctx, ports.IdempotencyRecord{Key: "k", RequestHash: "h2", ApplicationID: "app-2"})
	require.ErrorIs(t, err, ports.ErrIdempotencyConflict)
	assert.Equal(t, "app-1", existing.ApplicationID)

	missing, err := store.Get(ctx, "other")
	require.NoError(t, err)
	assert.Nil(t, missing)
}
