package venue

import (
	"context"
	"fmt"

	"beraflow/config"
	"beraflow/internal/fetch"
	"beraflow/logger"
	"beraflow/models"
)

// MexcTrade is one entry of the spot recent-trades list. quoteQty is already
// the USDT notional, no price multiplication needed.
type MexcTrade struct {
	QuoteQty     string `json:"quoteQty"`
	IsBuyerMaker bool   `json:"isBuyerMaker"`
}

// SumMexcTrades accumulates taker buy/sell USD notionals from quote amounts.
func SumMexcTrades(trades []MexcTrade) (buyUSD, sellUSD float64) {
	for _, t := range trades {
		usd := num(t.QuoteQty)
		if takerBuysFromMakerFlag(t.IsBuyerMaker) {
			buyUSD += usd
		} else {
			sellUSD += usd
		}
	}
	return buyUSD, sellUSD
}

// MexcDeal is one entry of the contract deals list. T is 1 for a taker buy
// and 2 for a taker sell.
type MexcDeal struct {
	Price float64 `json:"p"`
	Vol   float64 `json:"v"`
	T     int     `json:"T"`
}

// MexcDeals is the contract deals envelope.
type MexcDeals struct {
	Data []MexcDeal `json:"data"`
}

// SumMexcDeals accumulates taker buy/sell USD notionals over contract deals.
func SumMexcDeals(deals []MexcDeal) (buyUSD, sellUSD float64) {
	for _, d := range deals {
		usd := d.Price * d.Vol
		if d.T == 1 {
			buyUSD += usd
		} else {
			sellUSD += usd
		}
	}
	return buyUSD, sellUSD
}

// MexcContractTicker is the contract ticker envelope.
type MexcContractTicker struct {
	Data struct {
		Volume24 float64 `json:"volume24"`
	} `json:"data"`
}

// MexcFundingRate is the contract funding-rate envelope.
type MexcFundingRate struct {
	Data struct {
		FundingRate float64 `json:"fundingRate"`
	} `json:"data"`
}

// MexcAdapter serves MEXC spot and contract markets.
type MexcAdapter struct {
	cfg    config.VenueConfig
	client *fetch.Client
	log    *logger.Log
}

func NewMexcAdapter(cfg *config.Config, client *fetch.Client) *MexcAdapter {
	return &MexcAdapter{cfg: cfg.Venues.Mexc, client: client, log: logger.GetLogger()}
}

func (a *MexcAdapter) Name() string { return "MEXC" }

func (a *MexcAdapter) Markets() []models.MarketType {
	return []models.MarketType{models.MarketSpot, models.MarketPerp}
}

func (a *MexcAdapter) Collect(ctx context.Context, market models.MarketType) (models.FlowSample, error) {
	if market == models.MarketPerp {
		return a.collectPerp(ctx)
	}
	return a.collectSpot(ctx)
}

func (a *MexcAdapter) collectSpot(ctx context.Context) (models.FlowSample, error) {
	var trades []MexcTrade
	url := fmt.Sprintf("%s/api/v3/trades?symbol=%s&limit=200", a.cfg.SpotURL, a.cfg.SpotSymbol)
	if err := a.client.GetJSON(ctx, url, &trades); err != nil {
		return models.FlowSample{}, fmt.Errorf("mexc spot trades: %w", err)
	}

	buy, sell := SumMexcTrades(trades)
	return models.NewFlowSample(buy, sell), nil
}

func (a *MexcAdapter) collectPerp(ctx context.Context) (models.FlowSample, error) {
	var deals MexcDeals
	url := fmt.Sprintf("%s/api/v1/contract/deals/%s?limit=500", a.cfg.PerpURL, a.cfg.PerpSymbol)
	if err := a.client.GetJSON(ctx, url, &deals); err != nil {
		return models.FlowSample{}, fmt.Errorf("mexc contract deals: %w", err)
	}

	buy, sell := SumMexcDeals(deals.Data)
	sample := models.NewFlowSample(buy, sell)

	var funding MexcFundingRate
	fundingURL := fmt.Sprintf("%s/api/v1/contract/funding_rate/%s", a.cfg.PerpURL, a.cfg.PerpSymbol)
	if err := a.client.GetJSON(ctx, fundingURL, &funding); err != nil {
		a.log.WithComponent("mexc_adapter").WithError(err).Warn("funding rate unavailable")
	} else {
		f := funding.Data.FundingRate
		sample.FundingRate = &f
	}

	return sample, nil
}
