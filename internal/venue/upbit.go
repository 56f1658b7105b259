package venue

import (
	"context"
	"fmt"

	"beraflow/config"
	"beraflow/internal/fetch"
	"beraflow/logger"
	"beraflow/models"
)

// UpbitTrade is one entry of the trades/ticks list. Prices and volumes are
// KRW-denominated; ask_bid marks the taker side directly.
type UpbitTrade struct {
	TradePrice  float64 `json:"trade_price"`
	TradeVolume float64 `json:"trade_volume"`
	AskBid      string  `json:"ask_bid"`
}

// SumUpbitTrades accumulates taker buy/sell USD notionals, converting the KRW
// notional at the given rate. BID is a taker buy.
func SumUpbitTrades(trades []UpbitTrade, krwUsd float64) (buyUSD, sellUSD float64) {
	if krwUsd <= 0 {
		return 0, 0
	}
	for _, t := range trades {
		usd := t.TradePrice * t.TradeVolume / krwUsd
		if t.AskBid == "BID" {
			buyUSD += usd
		} else {
			sellUSD += usd
		}
	}
	return buyUSD, sellUSD
}

// UpbitTicker is one entry of the ticker response.
type UpbitTicker struct {
	TradePrice       float64 `json:"trade_price"`
	SignedChangeRate float64 `json:"signed_change_rate"`
	AccTradePrice24h float64 `json:"acc_trade_price_24h"`
}

// UpbitOrderbook is one entry of the orderbook response.
type UpbitOrderbook struct {
	TotalBidSize   float64 `json:"total_bid_size"`
	TotalAskSize   float64 `json:"total_ask_size"`
	OrderbookUnits []struct {
		BidPrice float64 `json:"bid_price"`
		BidSize  float64 `json:"bid_size"`
		AskPrice float64 `json:"ask_price"`
		AskSize  float64 `json:"ask_size"`
	} `json:"orderbook_units"`
}

// UpbitAdapter serves the Upbit KRW spot market. The sample price is the
// ticker's last KRW trade converted at the configured rate; it stays nil when
// the ticker is missing or the rate is unusable.
type UpbitAdapter struct {
	cfg    config.VenueConfig
	krwUsd float64
	client *fetch.Client
	log    *logger.Log
}

func NewUpbitAdapter(cfg *config.Config, client *fetch.Client) *UpbitAdapter {
	return &UpbitAdapter{
		cfg:    cfg.Venues.Upbit,
		krwUsd: cfg.Asset.KrwUsd,
		client: client,
		log:    logger.GetLogger(),
	}
}

func (a *UpbitAdapter) Name() string { return "Upbit" }

func (a *UpbitAdapter) Markets() []models.MarketType {
	return []models.MarketType{models.MarketSpot}
}

func (a *UpbitAdapter) Collect(ctx context.Context, market models.MarketType) (models.FlowSample, error) {
	var trades []UpbitTrade
	url := fmt.Sprintf("%s/v1/trades/ticks?market=%s&count=200", a.cfg.SpotURL, a.cfg.SpotSymbol)
	if err := a.client.GetJSON(ctx, url, &trades); err != nil {
		return models.FlowSample{}, fmt.Errorf("upbit trades: %w", err)
	}

	buy, sell := SumUpbitTrades(trades, a.krwUsd)
	sample := models.NewFlowSample(buy, sell)

	var tickers []UpbitTicker
	tickerURL := fmt.Sprintf("%s/v1/ticker?markets=%s", a.cfg.SpotURL, a.cfg.SpotSymbol)
	if err := a.client.GetJSON(ctx, tickerURL, &tickers); err != nil {
		a.log.WithComponent("upbit_adapter").WithError(err).Warn("ticker unavailable")
		return sample, nil
	}
	if len(tickers) > 0 && tickers[0].TradePrice > 0 && a.krwUsd > 0 {
		price := tickers[0].TradePrice / a.krwUsd
		sample.Price = &price
	}
	return sample, nil
}
