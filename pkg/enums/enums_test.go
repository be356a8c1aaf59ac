package enums

import "testing"

func TestParseNormalizesInput(t *testing.T) {
	status, err := ParseDisputeStatus(" Pending ")
	if err != nil || status != DisputeStatusPending {
		t.Fatalf("expected pending, got %q err=%v", status, err)
	}
	if _, err := ParseRefundCategory("stolen"); err == nil {
		t.Fatal("expected unknown category rejected")
	}
	if _, err := ParseDeliveryMethod(""); err == nil {
		t.Fatal("expected empty method rejected")
	}
}

func TestLedgerEventTypeIsValid(t *testing.T) {
	if !LedgerEventTypeRefund.IsValid() || LedgerEventType("chargeback").IsValid() {
		t.Fatal("unexpected ledger type validity")
	}
}
