package venue

import (
	"context"
	"fmt"

	"beraflow/config"
	"beraflow/internal/fetch"
	"beraflow/logger"
	"beraflow/models"
)

// BitgetFill is one entry of the spot or mix market fills list.
type BitgetFill struct {
	Price string `json:"price"`
	Size  string `json:"size"`
	Side  string `json:"side"`
}

// BitgetFills is the fills envelope shared by spot and mix endpoints.
type BitgetFills struct {
	Data []BitgetFill `json:"data"`
}

// SumBitgetFills accumulates taker buy/sell USD notionals. Side reports the
// taker side in lowercase.
func SumBitgetFills(fills []BitgetFill) (buyUSD, sellUSD float64) {
	for _, f := range fills {
		usd := num(f.Price) * num(f.Size)
		if f.Side == "buy" {
			buyUSD += usd
		} else {
			sellUSD += usd
		}
	}
	return buyUSD, sellUSD
}

// BitgetSpotTickers is the spot tickers envelope.
type BitgetSpotTickers struct {
	Data []struct {
		LastPr      string `json:"lastPr"`
		QuoteVolume string `json:"quoteVolume"`
	} `json:"data"`
}

// BitgetOpenInterest is the mix open-interest envelope.
type BitgetOpenInterest struct {
	Data struct {
		OpenInterestList []struct {
			Size string `json:"size"`
		} `json:"openInterestList"`
	} `json:"data"`
}

// BitgetAdapter serves Bitget spot and USDT-futures markets.
type BitgetAdapter struct {
	cfg    config.VenueConfig
	client *fetch.Client
	log    *logger.Log
}

func NewBitgetAdapter(cfg *config.Config, client *fetch.Client) *BitgetAdapter {
	return &BitgetAdapter{cfg: cfg.Venues.Bitget, client: client, log: logger.GetLogger()}
}

func (a *BitgetAdapter) Name() string { return "Bitget" }

func (a *BitgetAdapter) Markets() []models.MarketType {
	return []models.MarketType{models.MarketSpot, models.MarketPerp}
}

func (a *BitgetAdapter) Collect(ctx context.Context, market models.MarketType) (models.FlowSample, error) {
	if market == models.MarketPerp {
		return a.collectPerp(ctx)
	}
	return a.collectSpot(ctx)
}

func (a *BitgetAdapter) collectSpot(ctx context.Context) (models.FlowSample, error) {
	var fills BitgetFills
	url := fmt.Sprintf("%s/api/v2/spot/market/fills?symbol=%s&limit=200", a.cfg.SpotURL, a.cfg.SpotSymbol)
	if err := a.client.GetJSON(ctx, url, &fills); err != nil {
		return models.FlowSample{}, fmt.Errorf("bitget spot fills: %w", err)
	}

	buy, sell := SumBitgetFills(fills.Data)
	return models.NewFlowSample(buy, sell), nil
}

func (a *BitgetAdapter) collectPerp(ctx context.Context) (models.FlowSample, error) {
	var fills BitgetFills
	url := fmt.Sprintf("%s/api/v2/mix/market/fills?symbol=%s&productType=USDT-FUTURES&limit=500", a.cfg.PerpURL, a.cfg.PerpSymbol)
	if err := a.client.GetJSON(ctx, url, &fills); err != nil {
		return models.FlowSample{}, fmt.Errorf("bitget mix fills: %w", err)
	}

	buy, sell := SumBitgetFills(fills.Data)
	sample := models.NewFlowSample(buy, sell)

	var oi BitgetOpenInterest
	oiURL := fmt.Sprintf("%s/api/v2/mix/market/open-interest?symbol=%s&productType=USDT-FUTURES", a.cfg.PerpURL, a.cfg.PerpSymbol)
	if err := a.client.GetJSON(ctx, oiURL, &oi); err != nil {
		a.log.WithComponent("bitget_adapter").WithError(err).Warn("open interest unavailable")
	} else if len(oi.Data.OpenInterestList) > 0 {
		if v := numPtr(oi.Data.OpenInterestList[0].Size); v != nil {
			sample.OpenInterestUSD = v
		}
	}

	return sample, nil
}
