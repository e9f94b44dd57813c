package domain

import (
	"fmt"
	"sort"
)

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusConfirmed  OrderStatus = "confirmed"
	OrderStatusInProgress OrderStatus = "in_progress"
	OrderStatusCompleted  OrderStatus = "completed"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

type OrderSource string

const (
	OrderSourceQuotation OrderSource = "quotation"
	OrderSourceDirect    OrderSource = "direct"
)

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:    {OrderStatusConfirmed, OrderStatusCancelled},
	OrderStatusConfirmed:  {OrderStatusInProgress, OrderStatusCancelled},
	OrderStatusInProgress: {OrderStatusCompleted, OrderStatusCancelled},
}

func CanTransition(from, to OrderStatus) bool {
	for _, next := range orderTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func (s OrderStatus) Terminal() bool {
	return s == OrderStatusCompleted || s == OrderStatusCancelled
}

// Holding reports whether orders in this status keep inventory reserved.
func (s OrderStatus) Holding() bool {
	return s == OrderStatusPending || s == OrderStatusConfirmed || s == OrderStatusInProgress
}

type RentalOrder struct {
	ID              string      `json:"id" db:"id"`
	CustomerID      string      `json:"customer_id" db:"customer_id"`
	Status          OrderStatus `json:"status" db:"status"`
	Source          OrderSource `json:"source" db:"source"`
	PickupDate      Date        `json:"pickup_date" db:"pickup_date"`
	ReturnDate      Date        `json:"return_date" db:"return_date"`
	TotalAmount     int64       `json:"total_amount" db:"total_amount"`
	DepositAmount   int64       `json:"deposit_amount" db:"deposit_amount"`
	LateFeeAmount   int64       `json:"late_fee_amount" db:"late_fee_amount"`
	DamageCharges   int64       `json:"damage_charges" db:"damage_charges"`
	LateFeePerDay   int64       `json:"late_fee_per_day" db:"late_fee_per_day"`
	ReturnCondition string      `json:"return_condition" db:"return_condition"`
	CancelReason    string      `json:"cancel_reason" db:"cancel_reason"`
	Items           []OrderItem `json:"items" db:"-"`
}

// Transition moves the order to the next status or returns an
// InvalidStateTransitionError leaving the order untouched.
func (o *RentalOrder) Transition(to OrderStatus) error {
	if !CanTransition(o.Status, to) {
		return &InvalidStateTransitionError{OrderID: o.ID, From: o.Status, To: to}
	}
	o.Status = to
	return nil
}

// RequireModifiable rejects changes to orders that no longer hold inventory.
func (o *RentalOrder) RequireModifiable(attempted OrderStatus) error {
	if !o.Status.Holding() {
		return &InvalidStateTransitionError{OrderID: o.ID, From: o.Status, To: attempted}
	}
	return nil
}

type OrderItem struct {
	ID         string     `json:"id" db:"id"`
	OrderID    string     `json:"order_id" db:"order_id"`
	ProductID  string     `json:"product_id" db:"product_id"`
	Quantity   int        `json:"quantity" db:"quantity"`
	UnitPrice  int64      `json:"unit_price" db:"unit_price"`
	RentalUnit RentalUnit `json:"rental_unit" db:"rental_unit"`
	StartDate  Date       `json:"start_date" db:"start_date"`
	EndDate    Date       `json:"end_date" db:"end_date"`
	LineTotal  int64      `json:"line_total" db:"line_total"`
}

// SortItemsForLocking orders items by product then start date so that every
// transaction acquires ledger row locks in the same order.
func SortItemsForLocking(items []OrderItem) {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].ProductID != items[j].ProductID {
			return items[i].ProductID < items[j].ProductID
		}
		return items[i].StartDate.Before(items[j].StartDate)
	})
}

type OrderItemRequest struct {
	ProductID  string     `json:"product_id"`
	Quantity   int        `json:"quantity"`
	UnitPrice  int64      `json:"unit_price"`
	RentalUnit RentalUnit `json:"rental_unit"`
	StartDate  Date       `json:"start_date"`
	EndDate    Date       `json:"end_date"`
}

type CreateOrderRequest struct {
	CustomerID    string             `json:"customer_id"`
	Source        OrderSource        `json:"source"`
	PickupDate    Date               `json:"pickup_date"`
	ReturnDate    Date               `json:"return_date"`
	DepositAmount int64              `json:"deposit_amount"`
	LateFeePerDay int64              `json:"late_fee_per_day"`
	Items         []OrderItemRequest `json:"items"`
}

func (r *CreateOrderRequest) Validate() error {
	if r.CustomerID == "" {
		return fmt.Errorf("%w: customer id is required", ErrInvalidArgument)
	}
	if r.Source == "" {
		r.Source = OrderSourceQuotation
	}
	if r.Source != OrderSourceQuotation && r.Source != OrderSourceDirect {
		return fmt.Errorf("%w: unknown order source %q", ErrInvalidArgument, r.Source)
	}
	if err := ValidateRange(r.PickupDate, r.ReturnDate); err != nil {
		return err
	}
	if len(r.Items) == 0 {
		return fmt.Errorf("%w: order needs at least one item", ErrInvalidArgument)
	}
	if r.DepositAmount < 0 || r.LateFeePerDay < 0 {
		return fmt.Errorf("%w: amounts must not be negative", ErrInvalidArgument)
	}
	for i := range r.Items {
		item := &r.Items[i]
		if item.ProductID == "" {
			return fmt.Errorf("%w: item %d has no product", ErrInvalidArgument, i)
		}
		if item.Quantity <= 0 {
			return fmt.Errorf("%w: item %d quantity must be positive", ErrInvalidArgument, i)
		}
		if item.StartDate.IsZero() {
			item.StartDate = r.PickupDate
		}
		if item.EndDate.IsZero() {
			item.EndDate = r.ReturnDate
		}
		if err := ValidateRange(item.StartDate, item.EndDate); err != nil {
			return fmt.Errorf("item %d: %w", i, err)
		}
		if item.StartDate.Before(r.PickupDate) || item.EndDate.After(r.ReturnDate) {
			return fmt.Errorf("%w: item %d dates %s..%s fall outside the rental window %s..%s",
				ErrInvalidArgument, i, item.StartDate, item.EndDate, r.PickupDate, r.ReturnDate)
		}
	}
	return nil
}

// CompleteRequest closes a rental. LateFee, when set, replaces the computed late fee.
type CompleteRequest struct {
	DamageCharges   int64  `json:"damage_charges"`
	ReturnCondition string `json:"return_condition"`
	LateFee         *int64 `json:"late_fee,omitempty"`
}

// OrderSnapshot is the read model handed to document renderers.
type OrderSnapshot struct {
	Order    RentalOrder `json:"order"`
	Products []Product   `json:"products"`
}
