package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solutions224/payments-core/internal/domain"
	"github.com/solutions224/payments-core/internal/repository"
)

func TestLimitServiceDefaults(t *testing.T) {
	store := repository.NewMemory()
	limits := NewLimitService(store, time.UTC, 100_000, 500_000)
	userID := uuid.New()

	result, err := limits.Check(context.Background(), userID, 50_000)
	require.NoError(t, err)
	assert.True(t, result.Allowed)
	assert.Equal(t, int64(100_000), result.DailyRemaining)
	assert.Equal(t, int64(500_000), result.MonthlyRemaining)

	result, err = limits.Check(context.Background(), userID, 100_001)
	require.NoError(t, err)
	assert.False(t, result.Allowed)
}

func TestLimitServicePerUserCapsOverrideDefaults(t *testing.T) {
	store := repository.NewMemory()
	limits := NewLimitService(store, time.UTC, 100_000, 500_000)
	userID := uuid.New()
	store.SetTransferLimit(userID, 10_000, 20_000)

	err := limits.Enforce(context.Background(), userID, 10_000)
	require.NoError(t, err)

	err = limits.Enforce(context.Background(), userID, 10_001)
	require.Error(t, err)
	assert.Equal(t, domain.CodeLimitExceeded, domain.CodeOf(err))
	assert.False(t, domain.IsRetryable(err))
}

func TestLimitServiceRecordConsumesHeadroom(t *testing.T) {
	store := repository.NewMemory()
	limits := NewLimitService(store, time.UTC, 100_000, 500_000)
	userID := uuid.New()

	require.NoError(t, limits.Record(context.Background(), userID, 60_000))

	result, err := limits.Check(context.Background(), userID, 40_000)
	require.NoError(t, err)
	assert.True(t, result.Allowed)
	assert.Equal(t, int64(40_000), result.DailyRemaining)
	assert.Equal(t, int64(440_000), result.MonthlyRemaining)

	require.NoError(t, limits.Record(context.Background(), userID, 40_000))
	err = limits.Enforce(context.Background(), userID, 1)
	require.Error(t, err)
	assert.Equal(t, domain.CodeLimitExceeded, domain.CodeOf(err))
}

func TestLimitServiceMonthlyCapBindsAcrossDays(t *testing.T) {
	store := repository.NewMemory()
	limits := NewLimitService(store, time.UTC, 500_000, 500_000)
	userID := uuid.New()

	// Seed usage directly into the month window only, as if accumulated on
	// earlier days.
	monthKey := time.Now().UTC().Format("2006-01")
	require.NoError(t, store.AddUsage(context.Background(), userID, 490_000, "some-past-day", monthKey))

	result, err := limits.Check(context.Background(), userID, 20_000)
	require.NoError(t, err)
	assert.False(t, result.Allowed)
	assert.Equal(t, int64(10_000), result.MonthlyRemaining)
	assert.Equal(t, int64(500_000), result.DailyRemaining)
}

func TestLimitServiceRemainingClampsAtZero(t *testing.T) {
	store := repository.NewMemory()
	limits := NewLimitService(store, time.UTC, 10_000, 50_000)
	userID := uuid.New()

	// Concurrent bursts can overshoot a cap; remaining must never go negative.
	require.NoError(t, limits.Record(context.Background(), userID, 15_000))

	result, err := limits.Check(context.Background(), userID, 1)
	require.NoError(t, err)
	assert.False(t, result.Allowed)
	assert.Equal(t, int64(0), result.DailyRemaining)
}
