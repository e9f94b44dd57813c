package domain

import "fmt"

type RentalUnit string

const (
	RentalUnitHour  RentalUnit = "hour"
	RentalUnitDay   RentalUnit = "day"
	RentalUnitWeek  RentalUnit = "week"
	RentalUnitMonth RentalUnit = "month"
)

func (u RentalUnit) Valid() bool {
	switch u {
	case RentalUnitHour, RentalUnitDay, RentalUnitWeek, RentalUnitMonth:
		return true
	}
	return false
}

// Product is a rentable inventory line. Amounts are in minor currency units.
type Product struct {
	ID            string     `json:"id" db:"id"`
	Name          string     `json:"name" db:"name"`
	OwnedQuantity int        `json:"owned_quantity" db:"owned_quantity"`
	RentalUnit    RentalUnit `json:"rental_unit" db:"rental_unit"`
	BaseRate      int64      `json:"base_rate" db:"base_rate"`
	LateFeePerDay int64      `json:"late_fee_per_day" db:"late_fee_per_day"`
}

func (p *Product) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("%w: product name is required", ErrInvalidArgument)
	}
	if p.OwnedQuantity < 0 {
		return fmt.Errorf("%w: owned quantity must not be negative", ErrInvalidArgument)
	}
	if p.RentalUnit == "" {
		p.RentalUnit = RentalUnitDay
	}
	if !p.RentalUnit.Valid() {
		return fmt.Errorf("%w: unknown rental unit %q", ErrInvalidArgument, p.RentalUnit)
	}
	if p.BaseRate < 0 || p.LateFeePerDay < 0 {
		return fmt.Errorf("%w: rates must not be negative", ErrInvalidArgument)
	}
	return nil
}
