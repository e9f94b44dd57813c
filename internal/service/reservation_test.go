package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"rental-inventory-backend/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReservationEngine_CheckThenReserve(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	p := env.product(t, 5, 1000)
	jun1, jun3 := date("2025-06-01"), date("2025-06-03")

	res, err := env.engine.CheckAvailability(ctx, p.ID, jun1, jun3, 5)
	require.NoError(t, err)
	assert.True(t, res.Available)
	assert.Equal(t, 5, res.MinAvailable)
	assert.Empty(t, res.ConflictingDates)

	reserved, err := env.engine.Reserve(ctx, p.ID, jun1, jun3, 5)
	require.NoError(t, err)
	assert.Equal(t, []domain.Date{jun1, date("2025-06-02"), jun3}, reserved.ReservedDates)

	res, err = env.engine.CheckAvailability(ctx, p.ID, jun1, jun3, 1)
	require.NoError(t, err)
	assert.False(t, res.Available)
	assert.Equal(t, 0, res.MinAvailable)
	assert.Equal(t, []domain.Date{jun1, date("2025-06-02"), jun3}, res.ConflictingDates)

	days, err := env.ledger.Read(ctx, p.ID, jun1, jun3)
	require.NoError(t, err)
	for _, d := range days {
		assert.Equal(t, domain.AvailabilityStatusFullyBooked, d.Status)
		assert.Equal(t, d.TotalQuantity, d.ReservedQuantity+d.AvailableQuantity)
	}
}

func TestReservationEngine_CheckAvailabilityDoesNotCreateRows(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	p := env.product(t, 4, 1000)

	res, err := env.engine.CheckAvailability(ctx, p.ID, date("2025-07-01"), date("2025-07-10"), 4)
	require.NoError(t, err)
	assert.True(t, res.Available)
	assert.Empty(t, env.reserved(t, p.ID, date("2025-07-01"), date("2025-07-10")))
}

func TestReservationEngine_InvalidArguments(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	p := env.product(t, 4, 1000)

	t.Run("Zero quantity", func(t *testing.T) {
		_, err := env.engine.Reserve(ctx, p.ID, date("2025-06-01"), date("2025-06-02"), 0)
		assert.ErrorIs(t, err, domain.ErrInvalidArgument)
	})

	t.Run("Inverted range", func(t *testing.T) {
		_, err := env.engine.CheckAvailability(ctx, p.ID, date("2025-06-05"), date("2025-06-02"), 1)
		assert.ErrorIs(t, err, domain.ErrInvalidArgument)
	})

	t.Run("Unknown product", func(t *testing.T) {
		_, err := env.engine.Reserve(ctx, "missing", date("2025-06-01"), date("2025-06-02"), 1)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestReservationEngine_ConcurrentReservations(t *testing.T) {
	ctx := context.Background()
	const callers = 8
	env := newFileTestEnv(t, callers+2, RetryPolicy{MaxAttempts: 10, BaseDelay: time.Millisecond})
	p := env.product(t, 5, 1000)
	day := date("2025-06-10")

	var wg sync.WaitGroup
	ready := make(chan struct{})
	errs := make([]error, callers)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-ready
			_, errs[i] = env.engine.Reserve(ctx, p.ID, day, day, 3)
		}(i)
	}
	close(ready)
	wg.Wait()

	succeeded, failed := 0, 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		var capErr *domain.CapacityError
		require.True(t, errors.As(err, &capErr), "unexpected error: %v", err)
		assert.Equal(t, 2, capErr.MinAvailable)
		assert.Equal(t, []domain.Date{day}, capErr.ConflictingDates)
		failed++
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, callers-1, failed)
	assert.Equal(t, []int{3}, env.reserved(t, p.ID, day, day))

	days, err := env.ledger.Read(ctx, p.ID, day, day)
	require.NoError(t, err)
	assert.Equal(t, 2, days[0].AvailableQuantity)
	assert.Equal(t, domain.AvailabilityStatusLimited, days[0].Status)
}

func TestReservationEngine_ConcurrentReservationsFillCapacity(t *testing.T) {
	ctx := context.Background()
	const callers = 8
	env := newFileTestEnv(t, callers, RetryPolicy{MaxAttempts: 10, BaseDelay: time.Millisecond})
	p := env.product(t, 5, 1000)
	start, end := date("2025-06-10"), date("2025-06-12")

	var wg sync.WaitGroup
	var mu sync.Mutex
	ready := make(chan struct{})
	succeeded := 0
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-ready
			_, err := env.engine.Reserve(ctx, p.ID, start, end, 1)
			if err != nil {
				assert.ErrorIs(t, err, domain.ErrInsufficientCapacity)
				return
			}
			mu.Lock()
			succeeded++
			mu.Unlock()
		}()
	}
	close(ready)
	wg.Wait()

	assert.Equal(t, 5, succeeded)
	assert.Equal(t, []int{5, 5, 5}, env.reserved(t, p.ID, start, end))
}

func TestReservationEngine_RangeLimit(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	p := env.product(t, 3, 1000)
	first, last := date("0001-01-01"), date("9999-12-31")

	t.Run("CheckAvailability", func(t *testing.T) {
		_, err := env.engine.CheckAvailability(ctx, p.ID, first, last, 1)
		assert.ErrorIs(t, err, domain.ErrInvalidArgument)
	})

	t.Run("Reserve", func(t *testing.T) {
		_, err := env.engine.Reserve(ctx, p.ID, first, last, 1)
		assert.ErrorIs(t, err, domain.ErrInvalidArgument)
		_, err = env.engine.Reserve(ctx, p.ID, date("2025-01-01"), date("2025-01-01").AddDays(domain.DefaultMaxRangeDays), 1)
		assert.ErrorIs(t, err, domain.ErrInvalidArgument)
	})

	t.Run("Release", func(t *testing.T) {
		_, err := env.engine.Release(ctx, p.ID, first, last, 1)
		assert.ErrorIs(t, err, domain.ErrInvalidArgument)
	})

	t.Run("LedgerRead", func(t *testing.T) {
		_, err := env.ledger.Read(ctx, p.ID, first, last)
		assert.ErrorIs(t, err, domain.ErrInvalidArgument)
	})

	t.Run("Order", func(t *testing.T) {
		_, err := env.orders.CreateOrder(ctx, orderRequest(domain.OrderSourceDirect, "2025-06-01", "2045-06-01", item(p.ID, 1)))
		assert.ErrorIs(t, err, domain.ErrInvalidArgument)
	})

	assert.Empty(t, env.reserved(t, p.ID, first, last))
}

func TestReservationEngine_LongRangeWithinLimit(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	policy := domain.StatusPolicy{LimitedRatio: 1, MaxRangeDays: 7000}
	engine := NewReservationEngine(env.store, policy, testRetry())
	p := env.product(t, 3, 1000)
	start := date("2025-01-01")
	end := start.AddDays(5999)

	res, err := engine.Reserve(ctx, p.ID, start, end, 2)
	require.NoError(t, err)
	assert.Len(t, res.ReservedDates, 6000)

	reserved := env.reserved(t, p.ID, start, end)
	require.Len(t, reserved, 6000)
	assert.Equal(t, 2, reserved[0])
	assert.Equal(t, 2, reserved[5999])

	check, err := engine.CheckAvailability(ctx, p.ID, start, end, 2)
	require.NoError(t, err)
	assert.False(t, check.Available)
	assert.Equal(t, 1, check.MinAvailable)
}

func TestReservationEngine_ReserveIsAllOrNothing(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	p := env.product(t, 5, 1000)
	start, end := date("2025-06-01"), date("2025-06-05")

	_, err := env.engine.Reserve(ctx, p.ID, date("2025-06-03"), date("2025-06-03"), 4)
	require.NoError(t, err)
	before := env.reserved(t, p.ID, start, end)

	_, err = env.engine.Reserve(ctx, p.ID, start, end, 2)
	var capErr *domain.CapacityError
	require.ErrorAs(t, err, &capErr)
	assert.Equal(t, p.ID, capErr.ProductID)
	assert.Equal(t, 2, capErr.Requested)
	assert.Equal(t, 1, capErr.MinAvailable)
	assert.Equal(t, []domain.Date{date("2025-06-03")}, capErr.ConflictingDates)

	assert.Equal(t, before, env.reserved(t, p.ID, start, end))
}

func TestReservationEngine_ReserveReleaseRoundTrip(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	p := env.product(t, 3, 1000)
	start, end := date("2025-06-01"), date("2025-06-04")

	_, err := env.engine.Reserve(ctx, p.ID, start, end, 1)
	require.NoError(t, err)
	before, err := env.ledger.Read(ctx, p.ID, start, end)
	require.NoError(t, err)

	_, err = env.engine.Reserve(ctx, p.ID, start, end, 2)
	require.NoError(t, err)
	released, err := env.engine.Release(ctx, p.ID, start, end, 2)
	require.NoError(t, err)
	assert.Len(t, released.ReleasedDates, 4)

	after, err := env.ledger.Read(ctx, p.ID, start, end)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Equal(t, domain.AvailabilityStatusLimited, after[0].Status)
}

func TestReservationEngine_ReleaseIsClamped(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	p := env.product(t, 3, 1000)
	day := date("2025-06-01")

	_, err := env.engine.Reserve(ctx, p.ID, day, day, 2)
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		_, err = env.engine.Release(ctx, p.ID, day, day, 2)
		require.NoError(t, err)
	}
	d, err := env.ledger.GetOrCreate(ctx, p.ID, day)
	require.NoError(t, err)
	assert.Equal(t, 0, d.ReservedQuantity)
	assert.Equal(t, 3, d.AvailableQuantity)
	assert.Equal(t, domain.AvailabilityStatusAvailable, d.Status)
}

func TestReservationEngine_RetriesConflicts(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	p := env.product(t, 3, 1000)
	day := date("2025-06-01")

	t.Run("Succeeds after transient conflicts", func(t *testing.T) {
		store := &conflictingStore{Store: env.store, failures: 2}
		engine := NewReservationEngine(store, domain.DefaultStatusPolicy, testRetry())

		_, err := engine.Reserve(ctx, p.ID, day, day, 1)
		require.NoError(t, err)
		assert.Equal(t, 3, store.calls)
	})

	t.Run("Surfaces the conflict once attempts run out", func(t *testing.T) {
		store := &conflictingStore{Store: env.store, failures: 10}
		engine := NewReservationEngine(store, domain.DefaultStatusPolicy, testRetry())

		_, err := engine.Reserve(ctx, p.ID, day, day, 1)
		assert.ErrorIs(t, err, domain.ErrConcurrencyConflict)
		assert.Equal(t, 3, store.calls)
	})

	assert.Equal(t, []int{1}, env.reserved(t, p.ID, day, day))
}

func TestAvailabilityLedger_AdjustTotal(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	p := env.product(t, 5, 1000)
	start, end := date("2025-06-01"), date("2025-06-03")

	_, err := env.engine.Reserve(ctx, p.ID, date("2025-06-02"), date("2025-06-02"), 4)
	require.NoError(t, err)
	_, err = env.ledger.Read(ctx, p.ID, start, end)
	require.NoError(t, err)

	err = env.ledger.AdjustTotal(ctx, p.ID, start, end, 3)
	var capErr *domain.CapacityError
	require.ErrorAs(t, err, &capErr)
	assert.Equal(t, []domain.Date{date("2025-06-02")}, capErr.ConflictingDates)

	require.NoError(t, env.ledger.AdjustTotal(ctx, p.ID, start, end, 8))
	days, err := env.ledger.Read(ctx, p.ID, start, end)
	require.NoError(t, err)
	for _, d := range days {
		assert.Equal(t, 8, d.TotalQuantity)
		assert.Equal(t, d.TotalQuantity, d.ReservedQuantity+d.AvailableQuantity)
	}
	assert.Equal(t, 4, days[1].AvailableQuantity)
}
