package venue

import (
	"context"
	"strconv"

	"beraflow/config"
	"beraflow/internal/fetch"
	"beraflow/models"
)

// Adapter converts one exchange's raw REST responses into the normalized
// FlowSample. New venues are added by implementing this interface, never by
// branching inside the assembler.
type Adapter interface {
	Name() string
	// Markets lists the market families this venue contributes to the
	// collector (the live path may consult additional endpoints).
	Markets() []models.MarketType
	// Collect fetches the venue's recent trades (and ticker where needed)
	// and classifies them by taker side.
	Collect(ctx context.Context, market models.MarketType) (models.FlowSample, error)
}

// All returns the configured adapters in collection order. The first adapter
// is the reference venue for live price resolution.
func All(cfg *config.Config, client *fetch.Client) []Adapter {
	return []Adapter{
		NewBinanceAdapter(cfg, client),
		NewOkxAdapter(cfg, client),
		NewUpbitAdapter(cfg, client),
		NewBybitAdapter(cfg, client),
		NewKucoinAdapter(cfg, client),
		NewMexcAdapter(cfg, client),
		NewBitgetAdapter(cfg, client),
	}
}

// takerBuysFromMakerFlag reports whether the taker bought, given a venue's
// "is the buyer the maker" flag. The taker is the opposite side of the maker:
// buyer-as-maker means the aggressor sold.
func takerBuysFromMakerFlag(isBuyerMaker bool) bool {
	return !isBuyerMaker
}

// num parses a venue's numeric string, returning 0 for absent or malformed
// values. Volumes default to zero per the degradation contract; nullable
// fields go through numPtr instead.
func num(s string) float64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}

// numPtr parses a venue's numeric string into a nullable value: nil for
// absent or malformed input, never a silently wrong number.
func numPtr(s string) *float64 {
	if s == "" {
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &f
}
