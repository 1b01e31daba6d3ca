package models

// LedgerModels lists every table the service owns, in migration order.
func LedgerModels() []interface{} {
	return []interface{}{
		&Account{},
		&Person{},
		&Profile{},
		&Fee{},
		&Event{},
		&Roster{},
		&Attendance{},
		&Payment{},
		&Invoice{},
		&GatewayWebhookEvent{},
	}
}
