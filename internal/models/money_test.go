package models

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
)

func TestMoneyMarshalJSON(t *testing.T) {
	m := NewMoneyFromDecimal(decimal.NewFromFloat(29.9))
	data, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	if string(data) != `"29.90"` {
		t.Fatalf("unexpected marshal output: %s", data)
	}
}

func TestMoneyUnmarshalJSON(t *testing.T) {
	var fromString Money
	if err := json.Unmarshal([]byte(`"49.90"`), &fromString); err != nil {
		t.Fatalf("unmarshal string failed: %v", err)
	}
	if fromString.String() != "49.90" {
		t.Fatalf("unexpected amount from string: %s", fromString.String())
	}

	var fromNumber Money
	if err := json.Unmarshal([]byte(`49.9`), &fromNumber); err != nil {
		t.Fatalf("unmarshal number failed: %v", err)
	}
	if fromNumber.String() != "49.90" {
		t.Fatalf("unexpected amount from number: %s", fromNumber.String())
	}

	var invalid Money
	if err := json.Unmarshal([]byte(`"not-a-number"`), &invalid); err == nil {
		t.Fatalf("expected unmarshal error for invalid amount")
	}
}

func TestMoneyRoundsToTwoPlaces(t *testing.T) {
	m := NewMoneyFromDecimal(decimal.RequireFromString("10.555"))
	if m.String() != "10.56" {
		t.Fatalf("expected rounding to 10.56, got: %s", m.String())
	}
}

func TestMoneyScanValueRoundTrip(t *testing.T) {
	original := NewMoneyFromDecimal(decimal.RequireFromString("123.45"))
	value, err := original.Value()
	if err != nil {
		t.Fatalf("value failed: %v", err)
	}
	var scanned Money
	if err := scanned.Scan(value); err != nil {
		t.Fatalf("scan failed: %v", err)
	}
	if !scanned.Decimal.Equal(original.Decimal) {
		t.Fatalf("round trip mismatch: %s vs %s", scanned.String(), original.String())
	}
}
