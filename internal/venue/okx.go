package venue

import (
	"context"
	"fmt"

	"beraflow/config"
	"beraflow/internal/fetch"
	"beraflow/logger"
	"beraflow/models"
)

// OkxTakerVolume is the rubik taker-volume response. Each row is
// [timestamp, sellVolume, buyVolume] as strings.
type OkxTakerVolume struct {
	Data [][]string `json:"data"`
}

// Buy and Sell read the newest row, zero when the series is empty.
func (v OkxTakerVolume) Buy() float64 {
	if len(v.Data) == 0 || len(v.Data[0]) < 3 {
		return 0
	}
	return num(v.Data[0][2])
}

func (v OkxTakerVolume) Sell() float64 {
	if len(v.Data) == 0 || len(v.Data[0]) < 3 {
		return 0
	}
	return num(v.Data[0][1])
}

// OkxTicker is the market ticker response.
type OkxTicker struct {
	Data []struct {
		Last     string `json:"last"`
		SodUtc0  string `json:"sodUtc0"`
		VolCcy24 string `json:"volCcy24h"`
	} `json:"data"`
}

// OkxFundingRate is the public funding-rate response.
type OkxFundingRate struct {
	Data []struct {
		FundingRate string `json:"fundingRate"`
	} `json:"data"`
}

// OkxOpenInterest is the rubik contracts open-interest-volume response.
// Each row is [timestamp, openInterestUSD, ...] as strings.
type OkxOpenInterest struct {
	Data [][]string `json:"data"`
}

// OkxCandle rows follow [ts, open, high, low, close, vol, volCcy, ...].
type OkxCandles struct {
	Data [][]string `json:"data"`
}

// OkxAdapter serves OKX spot and swap markets through the rubik taker-volume
// statistics, which already aggregate by taker side.
type OkxAdapter struct {
	cfg    config.VenueConfig
	client *fetch.Client
	log    *logger.Log
}

func NewOkxAdapter(cfg *config.Config, client *fetch.Client) *OkxAdapter {
	return &OkxAdapter{cfg: cfg.Venues.Okx, client: client, log: logger.GetLogger()}
}

func (a *OkxAdapter) Name() string { return "OKX" }

func (a *OkxAdapter) Markets() []models.MarketType {
	return []models.MarketType{models.MarketSpot, models.MarketPerp}
}

func (a *OkxAdapter) Collect(ctx context.Context, market models.MarketType) (models.FlowSample, error) {
	if market == models.MarketPerp {
		return a.collectPerp(ctx)
	}
	return a.collectSpot(ctx)
}

func (a *OkxAdapter) collectSpot(ctx context.Context) (models.FlowSample, error) {
	var vol OkxTakerVolume
	url := fmt.Sprintf("%s/api/v5/rubik/stat/taker-volume?ccy=%s&instType=SPOT&period=5m", a.cfg.SpotURL, a.cfg.Currency)
	if err := a.client.GetJSON(ctx, url, &vol); err != nil {
		return models.FlowSample{}, fmt.Errorf("okx spot taker volume: %w", err)
	}

	sample := models.NewFlowSample(vol.Buy(), vol.Sell())

	var ticker OkxTicker
	tickerURL := fmt.Sprintf("%s/api/v5/market/ticker?instId=%s", a.cfg.SpotURL, a.cfg.SpotSymbol)
	if err := a.client.GetJSON(ctx, tickerURL, &ticker); err != nil {
		a.log.WithComponent("okx_adapter").WithError(err).Warn("spot ticker unavailable")
		return sample, nil
	}
	if len(ticker.Data) > 0 {
		if p := numPtr(ticker.Data[0].Last); p != nil {
			sample.Price = p
		}
	}
	return sample, nil
}

func (a *OkxAdapter) collectPerp(ctx context.Context) (models.FlowSample, error) {
	var vol OkxTakerVolume
	url := fmt.Sprintf("%s/api/v5/rubik/stat/taker-volume?ccy=%s&instType=CONTRACTS&period=5m", a.cfg.PerpURL, a.cfg.Currency)
	if err := a.client.GetJSON(ctx, url, &vol); err != nil {
		return models.FlowSample{}, fmt.Errorf("okx perp taker volume: %w", err)
	}

	sample := models.NewFlowSample(vol.Buy(), vol.Sell())

	var funding OkxFundingRate
	fundingURL := fmt.Sprintf("%s/api/v5/public/funding-rate?instId=%s", a.cfg.PerpURL, a.cfg.PerpSymbol)
	if err := a.client.GetJSON(ctx, fundingURL, &funding); err != nil {
		a.log.WithComponent("okx_adapter").WithError(err).Warn("funding rate unavailable")
	} else if len(funding.Data) > 0 {
		if f := numPtr(funding.Data[0].FundingRate); f != nil {
			sample.FundingRate = f
		}
	}

	var oi OkxOpenInterest
	oiURL := fmt.Sprintf("%s/api/v5/rubik/stat/contracts/open-interest-volume?ccy=%s&period=5m", a.cfg.PerpURL, a.cfg.Currency)
	if err := a.client.GetJSON(ctx, oiURL, &oi); err != nil {
		a.log.WithComponent("okx_adapter").WithError(err).Warn("open interest unavailable")
	} else if len(oi.Data) > 0 && len(oi.Data[0]) >= 2 {
		if v := numPtr(oi.Data[0][1]); v != nil {
			sample.OpenInterestUSD = v
		}
	}

	return sample, nil
}
