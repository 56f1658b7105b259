package models

import "time"

// MarketType distinguishes the two market families a venue can serve.
type MarketType string

const (
	MarketSpot MarketType = "spot"
	MarketPerp MarketType = "perp"
)

// FlowSample is the normalized taker-flow observation for one venue and one
// market type within a single collection tick. BuyUSD and SellUSD are taker
// buy/sell notionals in USD; NetUSD is always their difference and must never
// be set independently, which is why callers go through NewFlowSample.
type FlowSample struct {
	BuyUSD  float64 `json:"buy"`
	SellUSD float64 `json:"sell"`
	NetUSD  float64 `json:"net"`

	// Price is the venue's last trade price in USD when the venue reports
	// one alongside the trades. Nil when unavailable, never zero-filled.
	Price *float64 `json:"price,omitempty"`
	// FundingRate is the venue's current perpetual funding rate as a raw
	// fraction (not annualized). Only perp samples carry it.
	FundingRate *float64 `json:"funding,omitempty"`
	// OpenInterestUSD is the venue-reported open interest. Depending on the
	// venue this is contracts or coins; collectors convert to USD where the
	// venue exposes a notional.
	OpenInterestUSD *float64 `json:"oi,omitempty"`
}

// NewFlowSample builds a sample with the net field derived from buy and sell.
func NewFlowSample(buyUSD, sellUSD float64) FlowSample {
	return FlowSample{
		BuyUSD:  buyUSD,
		SellUSD: sellUSD,
		NetUSD:  buyUSD - sellUSD,
	}
}

// WithPrice returns a copy of the sample carrying the given price.
func (s FlowSample) WithPrice(price float64) FlowSample {
	s.Price = &price
	return s
}

// WithFunding returns a copy of the sample carrying the given funding rate.
func (s FlowSample) WithFunding(rate float64) FlowSample {
	s.FundingRate = &rate
	return s
}

// WithOpenInterest returns a copy of the sample carrying the given open
// interest value.
func (s FlowSample) WithOpenInterest(oi float64) FlowSample {
	s.OpenInterestUSD = &oi
	return s
}

// FlowRecord is one collection tick: every venue's sample for both market
// families, stamped with a single shared timestamp regardless of individual
// adapter latency. Records are immutable once appended to a day partition.
// The JSON field names match the historical day files produced by earlier
// deployments so old partitions remain readable.
type FlowRecord struct {
	Timestamp int64                 `json:"timestamp"`
	Time      string                `json:"time"`
	Spot      map[string]FlowSample `json:"spot"`
	Perp      map[string]FlowSample `json:"perp"`
}

// NewFlowRecord creates an empty record stamped with the given instant.
func NewFlowRecord(now time.Time) FlowRecord {
	return FlowRecord{
		Timestamp: now.UnixMilli(),
		Time:      now.UTC().Format(time.RFC3339),
		Spot:      make(map[string]FlowSample),
		Perp:      make(map[string]FlowSample),
	}
}

// Samples returns the sample map for the requested market family.
func (r FlowRecord) Samples(market MarketType) map[string]FlowSample {
	if market == MarketPerp {
		return r.Perp
	}
	return r.Spot
}
