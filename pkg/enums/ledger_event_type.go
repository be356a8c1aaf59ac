package enums

import "slices"

// LedgerEventType maps to the ledger_event_type_enum enum in Postgres.
type LedgerEventType string

const (
	LedgerEventTypeRefund     LedgerEventType = "refund"
	LedgerEventTypeAdjustment LedgerEventType = "adjustment"
)

var validLedgerEventTypes = []LedgerEventType{
	LedgerEventTypeRefund,
	LedgerEventTypeAdjustment,
}

// IsValid reports whether the value matches the canonical ledger event enum.
func (t LedgerEventType) IsValid() bool {
	return slices.Contains(validLedgerEventTypes, t)
}
