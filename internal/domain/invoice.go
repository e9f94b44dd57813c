package domain

type InvoiceStatus string

const (
	InvoiceStatusOpen InvoiceStatus = "open"
	InvoiceStatusPaid InvoiceStatus = "paid"
)

type Invoice struct {
	ID          string        `json:"id" db:"id"`
	OrderID     string        `json:"order_id" db:"order_id"`
	EventID     string        `json:"event_id" db:"event_id"`
	PaymentType PaymentType   `json:"payment_type" db:"payment_type"`
	Amount      int64         `json:"amount" db:"amount"`
	PaidAmount  int64         `json:"paid_amount" db:"paid_amount"`
	Status      InvoiceStatus `json:"status" db:"status"`
}

type Payment struct {
	ID        string `json:"id" db:"id"`
	InvoiceID string `json:"invoice_id" db:"invoice_id"`
	Amount    int64  `json:"amount" db:"amount"`
}

// Balance summarises what an order owes. Refund invoices count against Owed.
type Balance struct {
	OrderID     string `json:"order_id"`
	Owed        int64  `json:"owed"`
	Paid        int64  `json:"paid"`
	Outstanding int64  `json:"outstanding"`
}
