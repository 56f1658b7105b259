package venue

import (
	"context"
	"encoding/json"
	"fmt"

	bybit "github.com/bybit-exchange/bybit.go.api"

	"beraflow/config"
	"beraflow/internal/fetch"
	"beraflow/logger"
	"beraflow/models"
)

// BybitTrade is one entry of the v5 recent-trade list.
type BybitTrade struct {
	Price string `json:"price"`
	Size  string `json:"size"`
	Side  string `json:"side"`
}

// BybitTradeResult wraps the list shape shared by all v5 market endpoints.
type BybitTradeResult struct {
	List []BybitTrade `json:"list"`
}

// SumBybitTrades accumulates taker buy/sell USD notionals. Side reports the
// taker side directly.
func SumBybitTrades(trades []BybitTrade) (buyUSD, sellUSD float64) {
	for _, t := range trades {
		usd := num(t.Price) * num(t.Size)
		if t.Side == "Buy" {
			buyUSD += usd
		} else {
			sellUSD += usd
		}
	}
	return buyUSD, sellUSD
}

// BybitTickerResult is the v5 tickers result.
type BybitTickerResult struct {
	List []struct {
		LastPrice   string `json:"lastPrice"`
		Turnover24h string `json:"turnover24h"`
	} `json:"list"`
}

// BybitOpenInterestResult is the v5 open-interest result.
type BybitOpenInterestResult struct {
	List []struct {
		OpenInterest string `json:"openInterest"`
	} `json:"list"`
}

// BybitFundingResult is the v5 funding history result.
type BybitFundingResult struct {
	List []struct {
		FundingRate string `json:"fundingRate"`
	} `json:"list"`
}

// BybitAccountRatioResult is the v5 account-ratio result.
type BybitAccountRatioResult struct {
	List []struct {
		BuyRatio  string `json:"buyRatio"`
		SellRatio string `json:"sellRatio"`
	} `json:"list"`
}

// Envelope types for raw v5 responses fetched outside the SDK.
type BybitTradesResponse struct {
	Result BybitTradeResult `json:"result"`
}

type BybitTickersResponse struct {
	Result BybitTickerResult `json:"result"`
}

type BybitOpenInterestResponse struct {
	Result BybitOpenInterestResult `json:"result"`
}

type BybitFundingResponse struct {
	Result BybitFundingResult `json:"result"`
}

type BybitAccountRatioResponse struct {
	Result BybitAccountRatioResult `json:"result"`
}

// BybitAdapter serves Bybit spot and linear perp markets through the official
// v5 SDK client, which shares the fetch transport.
type BybitAdapter struct {
	cfg    config.VenueConfig
	client *bybit.Client
	log    *logger.Log
}

func NewBybitAdapter(cfg *config.Config, client *fetch.Client) *BybitAdapter {
	c := bybit.NewBybitHttpClient("", "", bybit.WithBaseURL(cfg.Venues.Bybit.SpotURL))
	c.HTTPClient = client.HTTPClient()
	return &BybitAdapter{cfg: cfg.Venues.Bybit, client: c, log: logger.GetLogger()}
}

func (a *BybitAdapter) Name() string { return "Bybit" }

func (a *BybitAdapter) Markets() []models.MarketType {
	return []models.MarketType{models.MarketSpot, models.MarketPerp}
}

// decodeBybitResult re-marshals the SDK's untyped result into out.
func decodeBybitResult(result interface{}, out interface{}) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal bybit result: %w", err)
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("decode bybit result: %w", err)
	}
	return nil
}

func (a *BybitAdapter) Collect(ctx context.Context, market models.MarketType) (models.FlowSample, error) {
	category, symbol, limit := "spot", a.cfg.SpotSymbol, 200
	if market == models.MarketPerp {
		category, symbol, limit = "linear", a.cfg.PerpSymbol, 500
	}

	params := map[string]interface{}{
		"category": category,
		"symbol":   symbol,
		"limit":    limit,
	}
	resp, err := a.client.NewUtaBybitServiceWithParams(params).GetPublicRecentTrades(ctx)
	if err != nil {
		return models.FlowSample{}, fmt.Errorf("bybit %s trades: %w", category, err)
	}

	var trades BybitTradeResult
	if err := decodeBybitResult(resp.Result, &trades); err != nil {
		return models.FlowSample{}, err
	}

	buy, sell := SumBybitTrades(trades.List)
	sample := models.NewFlowSample(buy, sell)

	if market == models.MarketPerp {
		a.attachPerpStats(ctx, &sample)
	}
	return sample, nil
}

func (a *BybitAdapter) attachPerpStats(ctx context.Context, sample *models.FlowSample) {
	log := a.log.WithComponent("bybit_adapter")

	fundingParams := map[string]interface{}{
		"category": "linear",
		"symbol":   a.cfg.PerpSymbol,
		"limit":    1,
	}
	if resp, err := a.client.NewUtaBybitServiceWithParams(fundingParams).GetFundingRateHistory(ctx); err != nil {
		log.WithError(err).Warn("funding rate unavailable")
	} else {
		var funding BybitFundingResult
		if err := decodeBybitResult(resp.Result, &funding); err == nil && len(funding.List) > 0 {
			if f := numPtr(funding.List[0].FundingRate); f != nil {
				sample.FundingRate = f
			}
		}
	}

	oiParams := map[string]interface{}{
		"category":     "linear",
		"symbol":       a.cfg.PerpSymbol,
		"intervalTime": "5min",
		"limit":        1,
	}
	if resp, err := a.client.NewUtaBybitServiceWithParams(oiParams).GetOpenInterests(ctx); err != nil {
		log.WithError(err).Warn("open interest unavailable")
	} else {
		var oi BybitOpenInterestResult
		if err := decodeBybitResult(resp.Result, &oi); err == nil && len(oi.List) > 0 {
			if v := numPtr(oi.List[0].OpenInterest); v != nil {
				sample.OpenInterestUSD = v
			}
		}
	}
}
