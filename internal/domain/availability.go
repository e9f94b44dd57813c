package domain

import "fmt"

type AvailabilityStatus string

const (
	AvailabilityStatusAvailable   AvailabilityStatus = "available"
	AvailabilityStatusLimited     AvailabilityStatus = "limited"
	AvailabilityStatusFullyBooked AvailabilityStatus = "fully_booked"
)

// AvailabilityDay is the ledger row of one product on one calendar day.
type AvailabilityDay struct {
	ProductID         string             `json:"product_id" db:"product_id"`
	Day               Date               `json:"day" db:"day"`
	TotalQuantity     int                `json:"total_quantity" db:"total_quantity"`
	ReservedQuantity  int                `json:"reserved_quantity" db:"reserved_quantity"`
	AvailableQuantity int                `json:"available_quantity" db:"available_quantity"`
	Status            AvailabilityStatus `json:"status" db:"status"`
}

// DefaultMaxRangeDays bounds a single ledger request to roughly ten years.
const DefaultMaxRangeDays = 3660

// StatusPolicy derives a day's status from its counts. A day is limited when
// available < total*LimitedRatio, so the default ratio of 1.0 marks any
// reserved day as limited. MaxRangeDays caps how many days one check,
// reservation or ledger read may span.
type StatusPolicy struct {
	LimitedRatio float64
	MaxRangeDays int
}

var DefaultStatusPolicy = StatusPolicy{LimitedRatio: 1.0, MaxRangeDays: DefaultMaxRangeDays}

// CheckRange validates [start, end] and rejects ranges longer than MaxRangeDays.
func (p StatusPolicy) CheckRange(start, end Date) error {
	if err := ValidateRange(start, end); err != nil {
		return err
	}
	limit := p.MaxRangeDays
	if limit <= 0 {
		limit = DefaultMaxRangeDays
	}
	if days := start.DaysUntil(end) + 1; days > limit {
		return fmt.Errorf("%w: range of %d days exceeds the limit of %d", ErrInvalidArgument, days, limit)
	}
	return nil
}

func (p StatusPolicy) Status(total, available int) AvailabilityStatus {
	if available <= 0 {
		return AvailabilityStatusFullyBooked
	}
	ratio := p.LimitedRatio
	if ratio <= 0 || ratio > 1 {
		ratio = DefaultStatusPolicy.LimitedRatio
	}
	if float64(available) < float64(total)*ratio {
		return AvailabilityStatusLimited
	}
	return AvailabilityStatusAvailable
}

func NewAvailabilityDay(productID string, day Date, total int, policy StatusPolicy) AvailabilityDay {
	a := AvailabilityDay{ProductID: productID, Day: day, TotalQuantity: total}
	a.recompute(policy)
	return a
}

func (a *AvailabilityDay) recompute(policy StatusPolicy) {
	a.AvailableQuantity = a.TotalQuantity - a.ReservedQuantity
	a.Status = policy.Status(a.TotalQuantity, a.AvailableQuantity)
}

// Reserve adds qty to the reserved count, refusing to exceed the total.
func (a *AvailabilityDay) Reserve(qty int, policy StatusPolicy) error {
	if qty <= 0 {
		return fmt.Errorf("%w: quantity must be positive", ErrInvalidArgument)
	}
	if a.ReservedQuantity+qty > a.TotalQuantity {
		return &CapacityError{
			ProductID:        a.ProductID,
			Requested:        qty,
			MinAvailable:     a.TotalQuantity - a.ReservedQuantity,
			ConflictingDates: []Date{a.Day},
		}
	}
	a.ReservedQuantity += qty
	a.recompute(policy)
	return nil
}

// Release subtracts qty from the reserved count, clamping at zero.
func (a *AvailabilityDay) Release(qty int, policy StatusPolicy) {
	a.ReservedQuantity -= qty
	if a.ReservedQuantity < 0 {
		a.ReservedQuantity = 0
	}
	a.recompute(policy)
}

// SetTotal changes the owned quantity recorded for the day.
func (a *AvailabilityDay) SetTotal(total int, policy StatusPolicy) error {
	if total < a.ReservedQuantity {
		return &CapacityError{
			ProductID:        a.ProductID,
			Requested:        a.ReservedQuantity,
			MinAvailable:     total,
			ConflictingDates: []Date{a.Day},
		}
	}
	a.TotalQuantity = total
	a.recompute(policy)
	return nil
}

// AvailabilityResult is the answer to a capacity check over a range.
type AvailabilityResult struct {
	ProductID        string `json:"product_id"`
	Available        bool   `json:"available"`
	MinAvailable     int    `json:"min_available"`
	ConflictingDates []Date `json:"conflicting_dates"`
}

type ReservationResult struct {
	ProductID     string `json:"product_id"`
	Quantity      int    `json:"quantity"`
	ReservedDates []Date `json:"reserved_dates"`
}

type ReleaseResult struct {
	ProductID     string `json:"product_id"`
	Quantity      int    `json:"quantity"`
	ReleasedDates []Date `json:"released_dates"`
}
