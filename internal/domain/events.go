package domain

type EventType string

const (
	EventOrderStatusChanged EventType = "order.status_changed"
	EventInvoiceRequested   EventType = "order.invoice_requested"
	EventLateFeeAssessed    EventType = "order.late_fee_assessed"
	EventOrderOverdue       EventType = "order.overdue"
)

type PaymentType string

const (
	PaymentTypeDeposit   PaymentType = "deposit"
	PaymentTypeFinal     PaymentType = "final"
	PaymentTypeExtension PaymentType = "extension"
	PaymentTypeRefund    PaymentType = "refund"
	PaymentTypeLateFee   PaymentType = "late_fee"
)

type OutboxStatus string

const (
	OutboxStatusPending    OutboxStatus = "pending"
	OutboxStatusDispatched OutboxStatus = "dispatched"
	OutboxStatusFailed     OutboxStatus = "failed"
)

// OutboxEvent is a lifecycle event recorded in the same transaction as the
// state change that produced it.
type OutboxEvent struct {
	ID        string       `json:"id" db:"id"`
	EventType EventType    `json:"event_type" db:"event_type"`
	OrderID   string       `json:"order_id" db:"order_id"`
	Payload   string       `json:"payload" db:"payload"`
	Status    OutboxStatus `json:"status" db:"status"`
	Attempts  int          `json:"attempts" db:"attempts"`
	LastError string       `json:"last_error" db:"last_error"`
}

type OrderStatusChanged struct {
	OrderID        string      `json:"orderId"`
	NewStatus      OrderStatus `json:"newStatus"`
	PreviousStatus OrderStatus `json:"previousStatus"`
}

type InvoiceRequested struct {
	OrderID     string      `json:"orderId"`
	PaymentType PaymentType `json:"paymentType"`
	Amount      int64       `json:"amount"`
}

type LateFeeAssessed struct {
	OrderID  string `json:"orderId"`
	Amount   int64  `json:"amount"`
	DaysLate int    `json:"daysLate"`
}

type OrderOverdue struct {
	OrderID        string `json:"orderId"`
	DaysLate       int    `json:"daysLate"`
	AccruedLateFee int64  `json:"accruedLateFee"`
}
