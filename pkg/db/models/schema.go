package models

// Schema lists every model owned by this service in dependency order. It backs
// the sqlite local mode and the test harness; Postgres uses goose migrations.
func Schema() []any {
	return []any{
		&Product{},
		&Profile{},
		&Cart{},
		&CartItem{},
		&Order{},
		&OrderLine{},
		&PaymentAttempt{},
		&OutboxEvent{},
		&OutboxDLQ{},
	}
}
