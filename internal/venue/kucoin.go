package venue

import (
	"context"
	"fmt"

	"beraflow/config"
	"beraflow/internal/fetch"
	"beraflow/models"
)

// KucoinTrade is one entry of the market trade-histories list.
type KucoinTrade struct {
	Price string `json:"price"`
	Size  string `json:"size"`
	Side  string `json:"side"`
}

// KucoinHistories is the trade-histories envelope.
type KucoinHistories struct {
	Data []KucoinTrade `json:"data"`
}

// KucoinStats is the 24h market stats envelope.
type KucoinStats struct {
	Data struct {
		Last     string `json:"last"`
		VolValue string `json:"volValue"`
	} `json:"data"`
}

// SumKucoinTrades accumulates taker buy/sell USD notionals. Side reports the
// taker side in lowercase.
func SumKucoinTrades(trades []KucoinTrade) (buyUSD, sellUSD float64) {
	for _, t := range trades {
		usd := num(t.Price) * num(t.Size)
		if t.Side == "buy" {
			buyUSD += usd
		} else {
			sellUSD += usd
		}
	}
	return buyUSD, sellUSD
}

// KucoinAdapter serves the KuCoin spot market.
type KucoinAdapter struct {
	cfg    config.VenueConfig
	client *fetch.Client
}

func NewKucoinAdapter(cfg *config.Config, client *fetch.Client) *KucoinAdapter {
	return &KucoinAdapter{cfg: cfg.Venues.Kucoin, client: client}
}

func (a *KucoinAdapter) Name() string { return "KuCoin" }

func (a *KucoinAdapter) Markets() []models.MarketType {
	return []models.MarketType{models.MarketSpot}
}

func (a *KucoinAdapter) Collect(ctx context.Context, market models.MarketType) (models.FlowSample, error) {
	var histories KucoinHistories
	url := fmt.Sprintf("%s/api/v1/market/histories?symbol=%s", a.cfg.SpotURL, a.cfg.SpotSymbol)
	if err := a.client.GetJSON(ctx, url, &histories); err != nil {
		return models.FlowSample{}, fmt.Errorf("kucoin trades: %w", err)
	}

	buy, sell := SumKucoinTrades(histories.Data)
	return models.NewFlowSample(buy, sell), nil
}
