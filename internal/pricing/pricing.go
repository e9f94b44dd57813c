package pricing

import (
	"fmt"
	"time"

	"rental-inventory-backend/internal/domain"
)

const (
	hoursPerDay = 24
	daysPerWeek = 7

	// DefaultLateFeePerDay applies when neither the order nor its products set a fee.
	DefaultLateFeePerDay int64 = 50
)

// DateDifference represents the difference between two dates
type DateDifference struct {
	Months int
	Days   int
}

// LateFeeResult is the fee accrued for a late return.
type LateFeeResult struct {
	DaysLate  int   `json:"days_late"`
	FeePerDay int64 `json:"fee_per_day"`
	Amount    int64 `json:"amount"`
}

// DaysInMonth returns the number of days in a given month
func DaysInMonth(year int, month time.Month) int {
	if month == time.February {
		if (year%4 == 0 && year%100 != 0) || (year%400 == 0) {
			return 29
		}
		return 28
	}
	if month == time.April || month == time.June || month == time.September || month == time.November {
		return 30
	}
	return 31
}

// CalculateDateDifference computes the difference between two dates
// Returns (months, days) where both start and end dates are included
func CalculateDateDifference(start, end domain.Date) (DateDifference, error) {
	if end.Before(start) {
		return DateDifference{}, fmt.Errorf("%w: end date must be >= start date", domain.ErrInvalidArgument)
	}

	years := end.Year - start.Year
	months := int(end.Month) - int(start.Month)
	days := end.Day - start.Day + 1

	if days < 0 {
		months--
		prevMonth := end.Month - 1
		prevYear := end.Year
		if prevMonth < time.January {
			prevMonth = time.December
			prevYear--
		}
		days += DaysInMonth(prevYear, prevMonth)
	}
	if months < 0 {
		years--
		months += 12
	}
	months += 12 * years

	return DateDifference{Months: months, Days: days}, nil
}

// RentalUnits counts the billable units of an inclusive date range.
// Partial weeks and months round up; every range bills at least one unit.
func RentalUnits(unit domain.RentalUnit, start, end domain.Date) (int64, error) {
	if end.Before(start) {
		return 0, fmt.Errorf("%w: end date must be >= start date", domain.ErrInvalidArgument)
	}
	days := int64(start.DaysUntil(end) + 1)

	switch unit {
	case domain.RentalUnitHour:
		return days * hoursPerDay, nil
	case domain.RentalUnitWeek:
		return (days + daysPerWeek - 1) / daysPerWeek, nil
	case domain.RentalUnitMonth:
		diff, err := CalculateDateDifference(start, end)
		if err != nil {
			return 0, err
		}
		months := int64(diff.Months)
		if diff.Days > 0 {
			months++
		}
		if months < 1 {
			months = 1
		}
		return months, nil
	case domain.RentalUnitDay, "":
		return days, nil
	default:
		return 0, fmt.Errorf("%w: unknown rental unit %q", domain.ErrInvalidArgument, unit)
	}
}

// RentalCost prices one unit of quantity over the range at rate per rental unit.
func RentalCost(unit domain.RentalUnit, rate int64, start, end domain.Date) (int64, error) {
	units, err := RentalUnits(unit, start, end)
	if err != nil {
		return 0, err
	}
	return units * rate, nil
}

// LineTotal prices an order item.
func LineTotal(item domain.OrderItem) (int64, error) {
	cost, err := RentalCost(item.RentalUnit, item.UnitPrice, item.StartDate, item.EndDate)
	if err != nil {
		return 0, err
	}
	return cost * int64(item.Quantity), nil
}

// ResolveLateFeePerDay picks the order override, then the highest product
// fee, then the system default.
func ResolveLateFeePerDay(orderOverride int64, productFees []int64, systemDefault int64) int64 {
	if orderOverride > 0 {
		return orderOverride
	}
	var highest int64
	for _, fee := range productFees {
		if fee > highest {
			highest = fee
		}
	}
	if highest > 0 {
		return highest
	}
	if systemDefault > 0 {
		return systemDefault
	}
	return DefaultLateFeePerDay
}

// LateFee returns the fee for returning after returnDate, judged by the
// calendar date of now in loc. A nil loc means UTC.
func LateFee(returnDate domain.Date, now time.Time, feePerDay int64, loc *time.Location) LateFeeResult {
	if loc == nil {
		loc = time.UTC
	}
	today := domain.DateOf(now.In(loc))
	daysLate := returnDate.DaysUntil(today)
	if daysLate < 0 {
		daysLate = 0
	}
	return LateFeeResult{
		DaysLate:  daysLate,
		FeePerDay: feePerDay,
		Amount:    int64(daysLate) * feePerDay,
	}
}

// RecalculateTotal returns the final total of a completed order.
func RecalculateTotal(original, lateFee, damageCharges int64) int64 {
	return original + lateFee + damageCharges
}
