package domain

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusPolicy(t *testing.T) {
	tests := []struct {
		name      string
		ratio     float64
		total     int
		available int
		expected  AvailabilityStatus
	}{
		{"Untouched", 1.0, 5, 5, AvailabilityStatusAvailable},
		{"AnyReservationIsLimited", 1.0, 5, 4, AvailabilityStatusLimited},
		{"Exhausted", 1.0, 5, 0, AvailabilityStatusFullyBooked},
		{"NothingOwned", 1.0, 0, 0, AvailabilityStatusFullyBooked},
		{"HalfRatioAbove", 0.5, 10, 6, AvailabilityStatusAvailable},
		{"HalfRatioBoundary", 0.5, 10, 5, AvailabilityStatusAvailable},
		{"HalfRatioBelow", 0.5, 10, 4, AvailabilityStatusLimited},
		{"InvalidRatioFallsBack", 0, 5, 4, AvailabilityStatusLimited},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := StatusPolicy{LimitedRatio: tt.ratio}
			assert.Equal(t, tt.expected, p.Status(tt.total, tt.available))
		})
	}
}

func TestStatusPolicy_CheckRange(t *testing.T) {
	start := MustParseDate("2025-01-01")

	p := StatusPolicy{LimitedRatio: 1, MaxRangeDays: 10}
	assert.NoError(t, p.CheckRange(start, start))
	assert.NoError(t, p.CheckRange(start, start.AddDays(9)))
	assert.ErrorIs(t, p.CheckRange(start, start.AddDays(10)), ErrInvalidArgument)
	assert.ErrorIs(t, p.CheckRange(start.AddDays(1), start), ErrInvalidArgument)

	// An unset limit falls back to the default.
	unset := StatusPolicy{LimitedRatio: 1}
	assert.NoError(t, unset.CheckRange(start, start.AddDays(DefaultMaxRangeDays-1)))
	assert.ErrorIs(t, unset.CheckRange(start, start.AddDays(DefaultMaxRangeDays)), ErrInvalidArgument)
	assert.ErrorIs(t, DefaultStatusPolicy.CheckRange(MustParseDate("0001-01-01"), MustParseDate("9999-12-31")), ErrInvalidArgument)
}

func TestAvailabilityDay_ReserveRelease(t *testing.T) {
	day := MustParseDate("2024-06-10")
	a := NewAvailabilityDay("p1", day, 5, DefaultStatusPolicy)
	assert.Equal(t, 5, a.AvailableQuantity)
	assert.Equal(t, AvailabilityStatusAvailable, a.Status)

	require.NoError(t, a.Reserve(3, DefaultStatusPolicy))
	assert.Equal(t, 3, a.ReservedQuantity)
	assert.Equal(t, 2, a.AvailableQuantity)
	assert.Equal(t, AvailabilityStatusLimited, a.Status)

	err := a.Reserve(3, DefaultStatusPolicy)
	var capErr *CapacityError
	require.True(t, errors.As(err, &capErr))
	assert.Equal(t, 2, capErr.MinAvailable)
	assert.Equal(t, []Date{day}, capErr.ConflictingDates)
	assert.Equal(t, 3, a.ReservedQuantity)

	require.NoError(t, a.Reserve(2, DefaultStatusPolicy))
	assert.Equal(t, AvailabilityStatusFullyBooked, a.Status)

	a.Release(10, DefaultStatusPolicy)
	assert.Equal(t, 0, a.ReservedQuantity)
	assert.Equal(t, 5, a.AvailableQuantity)
	assert.Equal(t, AvailabilityStatusAvailable, a.Status)
}

func TestAvailabilityDay_SetTotal(t *testing.T) {
	a := NewAvailabilityDay("p1", MustParseDate("2024-06-10"), 5, DefaultStatusPolicy)
	require.NoError(t, a.Reserve(4, DefaultStatusPolicy))

	assert.ErrorIs(t, a.SetTotal(3, DefaultStatusPolicy), ErrInsufficientCapacity)
	assert.Equal(t, 5, a.TotalQuantity)

	require.NoError(t, a.SetTotal(8, DefaultStatusPolicy))
	assert.Equal(t, 4, a.AvailableQuantity)
}

func TestDate(t *testing.T) {
	t.Run("RangeIsInclusive", func(t *testing.T) {
		days := DateRange(MustParseDate("2024-02-28"), MustParseDate("2024-03-01"))
		require.Len(t, days, 3)
		assert.Equal(t, "2024-02-29", days[1].String())
	})

	t.Run("EmptyWhenInverted", func(t *testing.T) {
		assert.Empty(t, DateRange(MustParseDate("2024-03-02"), MustParseDate("2024-03-01")))
	})

	t.Run("DaysUntil", func(t *testing.T) {
		assert.Equal(t, 3, MustParseDate("2024-01-30").DaysUntil(MustParseDate("2024-02-02")))
		assert.Equal(t, -1, MustParseDate("2024-01-30").DaysUntil(MustParseDate("2024-01-29")))
		assert.Equal(t, 3652058, MustParseDate("0001-01-01").DaysUntil(MustParseDate("9999-12-31")))
	})

	t.Run("Scan", func(t *testing.T) {
		var d Date
		require.NoError(t, d.Scan("2024-05-06"))
		assert.Equal(t, NewDate(2024, time.May, 6), d)
		require.NoError(t, d.Scan([]byte("2024-05-07T00:00:00Z")))
		assert.Equal(t, NewDate(2024, time.May, 7), d)
		require.NoError(t, d.Scan(time.Date(2024, 5, 8, 0, 0, 0, 0, time.UTC)))
		assert.Equal(t, NewDate(2024, time.May, 8), d)
		assert.Error(t, d.Scan(42))
	})

	t.Run("JSON", func(t *testing.T) {
		b, err := json.Marshal(MustParseDate("2024-05-06"))
		require.NoError(t, err)
		assert.Equal(t, `"2024-05-06"`, string(b))

		var d Date
		require.NoError(t, json.Unmarshal([]byte(`"2024-12-31"`), &d))
		assert.Equal(t, NewDate(2024, time.December, 31), d)
		assert.Error(t, json.Unmarshal([]byte(`"31/12/2024"`), &d))
	})
}
