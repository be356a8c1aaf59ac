package dbtypes

import (
	"testing"

	"github.com/google/uuid"
)

func TestUUIDListValueAndScan(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	value, err := UUIDList{a, b}.Value()
	if err != nil {
		t.Fatalf("value: %v", err)
	}
	literal, ok := value.(string)
	if !ok {
		t.Fatalf("expected array literal string, got %T", value)
	}

	var got UUIDList
	if err := got.Scan([]byte(literal)); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(got) != 2 || got[0] != a || got[1] != b {
		t.Fatalf("unexpected round trip %v", got)
	}
}

func TestUUIDListScanRejectsBadElement(t *testing.T) {
	var got UUIDList
	if err := got.Scan("{not-a-uuid}"); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestUUIDListEmpty(t *testing.T) {
	value, err := UUIDList{}.Value()
	if err != nil || value != "{}" {
		t.Fatalf("unexpected empty literal %v err=%v", value, err)
	}
	var got UUIDList
	if err := got.Scan(nil); err != nil || len(got) != 0 {
		t.Fatalf("nil scan should yield empty list, got %v err=%v", got, err)
	}
}
