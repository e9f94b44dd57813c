package domain

type ScheduleKind string

const (
	ScheduleKindPickup ScheduleKind = "pickup"
	ScheduleKindReturn ScheduleKind = "return"
)

type ScheduleStatus string

const (
	ScheduleStatusScheduled ScheduleStatus = "scheduled"
	ScheduleStatusDone      ScheduleStatus = "done"
	ScheduleStatusCancelled ScheduleStatus = "cancelled"
)

// ScheduledEvent is a pickup or expected-return record of an order.
type ScheduledEvent struct {
	ID      string         `json:"id" db:"id"`
	OrderID string         `json:"order_id" db:"order_id"`
	Kind    ScheduleKind   `json:"kind" db:"kind"`
	DueDate Date           `json:"due_date" db:"due_date"`
	Status  ScheduleStatus `json:"status" db:"status"`
}
