package models

import (
	"encoding/json"
	"testing"
	"time"
)

func TestNewFlowSampleDerivesNet(t *testing.T) {
	s := NewFlowSample(100, 40)
	if s.NetUSD != 60 {
		t.Fatalf("expected net 60, got %v", s.NetUSD)
	}

	zero := NewFlowSample(0, 0)
	if zero.NetUSD != 0 {
		t.Fatalf("expected zero net for empty flow, got %v", zero.NetUSD)
	}
}

func TestFlowSampleOptionalFieldsOmitted(t *testing.T) {
	payload, err := json.Marshal(NewFlowSample(1, 2))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(payload, &decoded); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, key := range []string{"price", "funding", "oi"} {
		if _, ok := decoded[key]; ok {
			t.Fatalf("expected %q to be omitted when unset", key)
		}
	}
}

func TestWithPriceReturnsCopy(t *testing.T) {
	base := NewFlowSample(10, 5)
	priced := base.WithPrice(0.5)

	if base.Price != nil {
		t.Fatal("expected original sample to stay unpriced")
	}
	if priced.Price == nil || *priced.Price != 0.5 {
		t.Fatalf("expected price 0.5, got %v", priced.Price)
	}
}

func TestNewFlowRecordStampsUTC(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 30, 0, 0, time.UTC)
	r := NewFlowRecord(now)

	if r.Timestamp != now.UnixMilli() {
		t.Fatalf("expected timestamp %d, got %d", now.UnixMilli(), r.Timestamp)
	}
	if r.Time != "2025-06-01T12:30:00Z" {
		t.Fatalf("unexpected time string %q", r.Time)
	}
	if r.Spot == nil || r.Perp == nil {
		t.Fatal("expected initialized sample maps")
	}
}

func TestSamplesSelectsMarket(t *testing.T) {
	r := NewFlowRecord(time.Now())
	r.Samples(MarketSpot)["Binance"] = NewFlowSample(1, 0)
	r.Samples(MarketPerp)["OKX"] = NewFlowSample(0, 1)

	if _, ok := r.Spot["Binance"]; !ok {
		t.Fatal("expected spot sample for Binance")
	}
	if _, ok := r.Perp["OKX"]; !ok {
		t.Fatal("expected perp sample for OKX")
	}
}
