package models

import (
	"testing"
)

func TestJSONMergeOverwritesAndKeeps(t *testing.T) {
	base := JSON{"status": "pending", "pix_payload": "qr"}
	merged := base.Merge(JSON{"status": "completed", "gateway_event": "PAYMENT_CONFIRMED"})

	if merged["status"] != "completed" {
		t.Fatalf("expected overwritten status, got: %v", merged["status"])
	}
	if merged["pix_payload"] != "qr" {
		t.Fatalf("expected absent key to survive, got: %v", merged["pix_payload"])
	}
	if merged["gateway_event"] != "PAYMENT_CONFIRMED" {
		t.Fatalf("expected new key, got: %v", merged["gateway_event"])
	}
	if base["status"] != "pending" {
		t.Fatalf("receiver must not be mutated, got: %v", base["status"])
	}
}

func TestJSONMergeNilSides(t *testing.T) {
	var empty JSON
	merged := empty.Merge(JSON{"a": "1"})
	if merged["a"] != "1" {
		t.Fatalf("merge onto nil receiver failed: %v", merged)
	}
	merged = JSON{"a": "1"}.Merge(nil)
	if merged["a"] != "1" {
		t.Fatalf("merge with nil incoming failed: %v", merged)
	}
}

func TestJSONScanAndValue(t *testing.T) {
	var j JSON
	if err := j.Scan([]byte(`{"k":"v"}`)); err != nil {
		t.Fatalf("scan bytes failed: %v", err)
	}
	if j["k"] != "v" {
		t.Fatalf("unexpected scanned value: %v", j)
	}
	if err := j.Scan(nil); err != nil {
		t.Fatalf("scan nil failed: %v", err)
	}
	if len(j) != 0 {
		t.Fatalf("expected empty map after nil scan, got: %v", j)
	}
	value, err := JSON{"k": "v"}.Value()
	if err != nil {
		t.Fatalf("value failed: %v", err)
	}
	if string(value.([]byte)) != `{"k":"v"}` {
		t.Fatalf("unexpected value: %s", value)
	}
	nilValue, err := JSON(nil).Value()
	if err != nil || nilValue != nil {
		t.Fatalf("expected nil value for nil map, got: %v (err %v)", nilValue, err)
	}
}
