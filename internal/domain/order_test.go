package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanTransition(t *testing.T) {
	allowed := map[OrderStatus][]OrderStatus{
		OrderStatusPending:    {OrderStatusConfirmed, OrderStatusCancelled},
		OrderStatusConfirmed:  {OrderStatusInProgress, OrderStatusCancelled},
		OrderStatusInProgress: {OrderStatusCompleted, OrderStatusCancelled},
	}
	all := []OrderStatus{OrderStatusPending, OrderStatusConfirmed, OrderStatusInProgress, OrderStatusCompleted, OrderStatusCancelled}

	for _, from := range all {
		for _, to := range all {
			want := false
			for _, ok := range allowed[from] {
				if ok == to {
					want = true
				}
			}
			assert.Equal(t, want, CanTransition(from, to), "%s -> %s", from, to)
		}
	}
}

func TestRentalOrder_Transition(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		o := &RentalOrder{ID: "o1", Status: OrderStatusPending}
		require.NoError(t, o.Transition(OrderStatusConfirmed))
		assert.Equal(t, OrderStatusConfirmed, o.Status)
	})

	t.Run("TerminalRejected", func(t *testing.T) {
		o := &RentalOrder{ID: "o1", Status: OrderStatusCompleted}
		err := o.Transition(OrderStatusCancelled)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrInvalidStateTransition))
		var ste *InvalidStateTransitionError
		require.True(t, errors.As(err, &ste))
		assert.Equal(t, OrderStatusCompleted, ste.From)
		assert.Equal(t, OrderStatusCancelled, ste.To)
		assert.Equal(t, OrderStatusCompleted, o.Status)
	})

	t.Run("SkipRejected", func(t *testing.T) {
		o := &RentalOrder{ID: "o1", Status: OrderStatusPending}
		assert.Error(t, o.Transition(OrderStatusCompleted))
		assert.Equal(t, OrderStatusPending, o.Status)
	})
}

func TestCreateOrderRequest_Validate(t *testing.T) {
	pickup := MustParseDate("2024-06-10")
	ret := MustParseDate("2024-06-12")

	t.Run("DefaultsItemDates", func(t *testing.T) {
		req := CreateOrderRequest{
			CustomerID: "c1",
			PickupDate: pickup,
			ReturnDate: ret,
			Items:      []OrderItemRequest{{ProductID: "p1", Quantity: 2}},
		}
		require.NoError(t, req.Validate())
		assert.Equal(t, OrderSourceQuotation, req.Source)
		assert.Equal(t, pickup, req.Items[0].StartDate)
		assert.Equal(t, ret, req.Items[0].EndDate)
	})

	t.Run("RejectsBadQuantity", func(t *testing.T) {
		req := CreateOrderRequest{
			CustomerID: "c1",
			PickupDate: pickup,
			ReturnDate: ret,
			Items:      []OrderItemRequest{{ProductID: "p1", Quantity: 0}},
		}
		assert.ErrorIs(t, req.Validate(), ErrInvalidArgument)
	})

	t.Run("RejectsInvertedRange", func(t *testing.T) {
		req := CreateOrderRequest{
			CustomerID: "c1",
			PickupDate: ret,
			ReturnDate: pickup,
			Items:      []OrderItemRequest{{ProductID: "p1", Quantity: 1}},
		}
		assert.ErrorIs(t, req.Validate(), ErrInvalidArgument)
	})

	t.Run("ItemInsideWindow", func(t *testing.T) {
		req := CreateOrderRequest{
			CustomerID: "c1",
			PickupDate: pickup,
			ReturnDate: ret,
			Items:      []OrderItemRequest{{ProductID: "p1", Quantity: 1, StartDate: ret}},
		}
		require.NoError(t, req.Validate())
		assert.Equal(t, ret, req.Items[0].EndDate)
	})

	t.Run("RejectsItemOutsideWindow", func(t *testing.T) {
		tests := []struct {
			name       string
			start, end Date
		}{
			{"StartsBeforePickup", pickup.AddDays(-1), ret},
			{"EndsAfterReturn", pickup, ret.AddDays(1)},
			{"Disjoint", MustParseDate("2030-01-01"), MustParseDate("2030-01-05")},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				req := CreateOrderRequest{
					CustomerID: "c1",
					PickupDate: pickup,
					ReturnDate: ret,
					Items:      []OrderItemRequest{{ProductID: "p1", Quantity: 1, StartDate: tt.start, EndDate: tt.end}},
				}
				err := req.Validate()
				assert.ErrorIs(t, err, ErrInvalidArgument)
				assert.Contains(t, err.Error(), "outside the rental window")
			})
		}
	})
}

func TestSortItemsForLocking(t *testing.T) {
	items := []OrderItem{
		{ProductID: "b", StartDate: MustParseDate("2024-01-01")},
		{ProductID: "a", StartDate: MustParseDate("2024-01-05")},
		{ProductID: "a", StartDate: MustParseDate("2024-01-02")},
	}
	SortItemsForLocking(items)
	assert.Equal(t, "a", items[0].ProductID)
	assert.Equal(t, MustParseDate("2024-01-02"), items[0].StartDate)
	assert.Equal(t, "a", items[1].ProductID)
	assert.Equal(t, "b", items[2].ProductID)
}
