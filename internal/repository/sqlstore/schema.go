package sqlstore

import "strings"

// schema is written once with type placeholders that each driver fills in.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS products (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  owned_quantity INTEGER NOT NULL CHECK (owned_quantity >= 0),
  rental_unit TEXT NOT NULL,
  base_rate BIGINT NOT NULL DEFAULT 0,
  late_fee_per_day BIGINT NOT NULL DEFAULT 0,
  created_at {{timestamp}} NOT NULL DEFAULT CURRENT_TIMESTAMP,
  updated_at {{timestamp}} NOT NULL DEFAULT CURRENT_TIMESTAMP
)`,
	`CREATE TABLE IF NOT EXISTS availability_days (
  product_id TEXT NOT NULL REFERENCES products(id),
  day {{date}} NOT NULL,
  total_quantity INTEGER NOT NULL,
  reserved_quantity INTEGER NOT NULL DEFAULT 0,
  available_quantity INTEGER NOT NULL,
  status TEXT NOT NULL,
  updated_at {{timestamp}} NOT NULL DEFAULT CURRENT_TIMESTAMP,
  PRIMARY KEY (product_id, day),
  CHECK (reserved_quantity >= 0 AND reserved_quantity <= total_quantity),
  CHECK (available_quantity = total_quantity - reserved_quantity)
)`,
	`CREATE TABLE IF NOT EXISTS rental_orders (
  id TEXT PRIMARY KEY,
  customer_id TEXT NOT NULL,
  status TEXT NOT NULL,
  source TEXT NOT NULL,
  pickup_date {{date}} NOT NULL,
  return_date {{date}} NOT NULL,
  total_amount BIGINT NOT NULL DEFAULT 0,
  deposit_amount BIGINT NOT NULL DEFAULT 0,
  late_fee_amount BIGINT NOT NULL DEFAULT 0,
  damage_charges BIGINT NOT NULL DEFAULT 0,
  late_fee_per_day BIGINT NOT NULL DEFAULT 0,
  return_condition TEXT NOT NULL DEFAULT '',
  cancel_reason TEXT NOT NULL DEFAULT '',
  created_at {{timestamp}} NOT NULL DEFAULT CURRENT_TIMESTAMP,
  updated_at {{timestamp}} NOT NULL DEFAULT CURRENT_TIMESTAMP
)`,
	`CREATE INDEX IF NOT EXISTS idx_rental_orders_status ON rental_orders(status)`,
	`CREATE TABLE IF NOT EXISTS rental_order_items (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL REFERENCES rental_orders(id),
  product_id TEXT NOT NULL REFERENCES products(id),
  quantity INTEGER NOT NULL CHECK (quantity > 0),
  unit_price BIGINT NOT NULL,
  rental_unit TEXT NOT NULL,
  start_date {{date}} NOT NULL,
  end_date {{date}} NOT NULL,
  line_total BIGINT NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS idx_rental_order_items_order ON rental_order_items(order_id)`,
	`CREATE TABLE IF NOT EXISTS scheduled_events (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL REFERENCES rental_orders(id),
  kind TEXT NOT NULL,
  due_date {{date}} NOT NULL,
  status TEXT NOT NULL,
  updated_at {{timestamp}} NOT NULL DEFAULT CURRENT_TIMESTAMP
)`,
	`CREATE INDEX IF NOT EXISTS idx_scheduled_events_due ON scheduled_events(kind, status, due_date)`,
	`CREATE TABLE IF NOT EXISTS outbox_events (
  id TEXT PRIMARY KEY,
  sequence BIGINT NOT NULL,
  event_type TEXT NOT NULL,
  order_id TEXT NOT NULL,
  payload {{json}} NOT NULL,
  status TEXT NOT NULL,
  attempts INTEGER NOT NULL DEFAULT 0,
  last_error TEXT NOT NULL DEFAULT '',
  created_at {{timestamp}} NOT NULL DEFAULT CURRENT_TIMESTAMP,
  dispatched_at {{timestamp}}
)`,
	`CREATE INDEX IF NOT EXISTS idx_outbox_events_pending ON outbox_events(status, sequence)`,
	`CREATE TABLE IF NOT EXISTS invoices (
  id TEXT PRIMARY KEY,
  sequence BIGINT NOT NULL,
  order_id TEXT NOT NULL,
  event_id TEXT NOT NULL UNIQUE,
  payment_type TEXT NOT NULL,
  amount BIGINT NOT NULL,
  paid_amount BIGINT NOT NULL DEFAULT 0,
  status TEXT NOT NULL,
  created_at {{timestamp}} NOT NULL DEFAULT CURRENT_TIMESTAMP,
  updated_at {{timestamp}} NOT NULL DEFAULT CURRENT_TIMESTAMP
)`,
	`CREATE INDEX IF NOT EXISTS idx_invoices_order ON invoices(order_id)`,
	`CREATE TABLE IF NOT EXISTS payments (
  id TEXT PRIMARY KEY,
  invoice_id TEXT NOT NULL REFERENCES invoices(id),
  amount BIGINT NOT NULL CHECK (amount > 0),
  created_at {{timestamp}} NOT NULL DEFAULT CURRENT_TIMESTAMP
)`,
}

func schemaStatements(driver string) []string {
	var r *strings.Replacer
	if driver == DriverSQLite {
		r = strings.NewReplacer("{{date}}", "TEXT", "{{timestamp}}", "TEXT", "{{json}}", "TEXT")
	} else {
		r = strings.NewReplacer("{{date}}", "DATE", "{{timestamp}}", "TIMESTAMPTZ", "{{json}}", "JSONB")
	}
	stmts := make([]string, len(schema))
	for i, s := range schema {
		stmts[i] = r.Replace(s)
	}
	return stmts
}
