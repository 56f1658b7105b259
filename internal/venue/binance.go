package venue

import (
	"context"
	"encoding/json"
	"fmt"

	binance "github.com/adshao/go-binance/v2"
	futures "github.com/adshao/go-binance/v2/futures"

	"beraflow/config"
	"beraflow/internal/fetch"
	"beraflow/logger"
	"beraflow/models"
)

// BinanceTrade is one entry of the spot recent-trades list. Binance marks
// the maker side, so taker classification inverts IsBuyerMaker.
type BinanceTrade struct {
	Price        string `json:"price"`
	Qty          string `json:"qty"`
	QuoteQty     string `json:"quoteQty"`
	IsBuyerMaker bool   `json:"isBuyerMaker"`
}

// SumBinanceTrades accumulates taker buy/sell USD notionals over a trade list.
func SumBinanceTrades(trades []BinanceTrade) (buyUSD, sellUSD float64) {
	for _, t := range trades {
		usd := num(t.Price) * num(t.Qty)
		if takerBuysFromMakerFlag(t.IsBuyerMaker) {
			buyUSD += usd
		} else {
			sellUSD += usd
		}
	}
	return buyUSD, sellUSD
}

// BinanceTakerRatio is one row of the futures taker long/short volume series.
type BinanceTakerRatio struct {
	BuyVol       string `json:"buyVol"`
	SellVol      string `json:"sellVol"`
	BuySellRatio string `json:"buySellRatio"`
	Timestamp    int64  `json:"timestamp"`
}

// BinanceFundingRate is one row of the futures funding-rate history.
type BinanceFundingRate struct {
	FundingRate string `json:"fundingRate"`
	FundingTime int64  `json:"fundingTime"`
}

// BinanceOpenInterest is the futures open-interest snapshot.
type BinanceOpenInterest struct {
	OpenInterest string `json:"openInterest"`
}

// BinanceAccountRatio is one row of the global/top long-short account series.
type BinanceAccountRatio struct {
	LongAccount  string `json:"longAccount"`
	ShortAccount string `json:"shortAccount"`
}

// BinanceTicker24h mirrors the spot/futures 24hr ticker fields used here.
type BinanceTicker24h struct {
	LastPrice          string `json:"lastPrice"`
	PriceChangePercent string `json:"priceChangePercent"`
	QuoteVolume        string `json:"quoteVolume"`
}

// BinanceDepth is the spot order book snapshot; levels are [price, qty] pairs.
type BinanceDepth struct {
	Bids [][]string `json:"bids"`
	Asks [][]string `json:"asks"`
}

// BinanceKline is one spot kline row. Binance encodes klines as mixed-type
// JSON arrays, hence the custom unmarshalling.
type BinanceKline struct {
	OpenTime      int64
	Open          float64
	High          float64
	Low           float64
	Close         float64
	Volume        float64
	QuoteVolume   float64
	TakerBuyQuote float64
}

func (k *BinanceKline) UnmarshalJSON(data []byte) error {
	var row []interface{}
	if err := json.Unmarshal(data, &row); err != nil {
		return err
	}
	if len(row) < 11 {
		return fmt.Errorf("kline row has %d fields, want 11", len(row))
	}
	if ts, ok := row[0].(float64); ok {
		k.OpenTime = int64(ts)
	}
	k.Open = anyNum(row[1])
	k.High = anyNum(row[2])
	k.Low = anyNum(row[3])
	k.Close = anyNum(row[4])
	k.Volume = anyNum(row[5])
	k.QuoteVolume = anyNum(row[7])
	k.TakerBuyQuote = anyNum(row[10])
	return nil
}

func anyNum(v interface{}) float64 {
	switch t := v.(type) {
	case string:
		return num(t)
	case float64:
		return t
	default:
		return 0
	}
}

// KlineNetFlow derives net taker flow from a kline: taker-buy quote volume is
// a share of total quote volume, so taker-sell = quoteVolume - takerBuyQuote
// and net = 2*takerBuyQuote - quoteVolume.
func KlineNetFlow(k BinanceKline) float64 {
	return 2*k.TakerBuyQuote - k.QuoteVolume
}

// BinanceAdapter serves Binance spot and USD-M futures. The go-binance
// clients carry the shared transport and base endpoints; bulk market-data
// endpoints without SDK coverage go through the fetch client directly.
type BinanceAdapter struct {
	cfg     config.VenueConfig
	client  *fetch.Client
	spot    *binance.Client
	futures *futures.Client
	log     *logger.Log
}

func NewBinanceAdapter(cfg *config.Config, client *fetch.Client) *BinanceAdapter {
	spot := binance.NewClient("", "")
	spot.HTTPClient = client.HTTPClient()
	if cfg.Venues.Binance.SpotURL != "" {
		spot.BaseURL = cfg.Venues.Binance.SpotURL
	}

	fut := futures.NewClient("", "")
	fut.HTTPClient = client.HTTPClient()
	if cfg.Venues.Binance.PerpURL != "" {
		fut.BaseURL = cfg.Venues.Binance.PerpURL
	}

	return &BinanceAdapter{
		cfg:     cfg.Venues.Binance,
		client:  client,
		spot:    spot,
		futures: fut,
		log:     logger.GetLogger(),
	}
}

func (a *BinanceAdapter) Name() string { return "Binance" }

func (a *BinanceAdapter) Markets() []models.MarketType {
	return []models.MarketType{models.MarketSpot, models.MarketPerp}
}

func (a *BinanceAdapter) Collect(ctx context.Context, market models.MarketType) (models.FlowSample, error) {
	if market == models.MarketPerp {
		return a.collectPerp(ctx)
	}
	return a.collectSpot(ctx)
}

func (a *BinanceAdapter) collectSpot(ctx context.Context) (models.FlowSample, error) {
	var trades []BinanceTrade
	url := fmt.Sprintf("%s/api/v3/trades?symbol=%s&limit=1000", a.cfg.SpotURL, a.cfg.SpotSymbol)
	if err := a.client.GetJSON(ctx, url, &trades); err != nil {
		return models.FlowSample{}, fmt.Errorf("binance spot trades: %w", err)
	}

	buy, sell := SumBinanceTrades(trades)
	sample := models.NewFlowSample(buy, sell)

	stats, err := a.spot.NewListPriceChangeStatsService().Symbol(a.cfg.SpotSymbol).Do(ctx)
	if err != nil {
		a.log.WithComponent("binance_adapter").WithError(err).Warn("spot ticker unavailable")
		return sample, nil
	}
	if len(stats) > 0 {
		if p := numPtr(stats[0].LastPrice); p != nil {
			sample.Price = p
		}
	}
	return sample, nil
}

func (a *BinanceAdapter) collectPerp(ctx context.Context) (models.FlowSample, error) {
	var taker []BinanceTakerRatio
	takerURL := fmt.Sprintf("%s/futures/data/takerlongshortRatio?symbol=%s&period=5m&limit=1", a.cfg.PerpURL, a.cfg.PerpSymbol)
	if err := a.client.GetJSON(ctx, takerURL, &taker); err != nil {
		return models.FlowSample{}, fmt.Errorf("binance perp taker volume: %w", err)
	}
	if len(taker) == 0 {
		return models.FlowSample{}, fmt.Errorf("binance perp taker volume: empty response")
	}

	sample := models.NewFlowSample(num(taker[0].BuyVol), num(taker[0].SellVol))

	if rates, err := a.futures.NewFundingRateService().Symbol(a.cfg.PerpSymbol).Limit(1).Do(ctx); err != nil {
		a.log.WithComponent("binance_adapter").WithError(err).Warn("funding rate unavailable")
	} else if len(rates) > 0 {
		if f := numPtr(rates[0].FundingRate); f != nil {
			sample.FundingRate = f
		}
	}

	var oi BinanceOpenInterest
	oiURL := fmt.Sprintf("%s/fapi/v1/openInterest?symbol=%s", a.cfg.PerpURL, a.cfg.PerpSymbol)
	if err := a.client.GetJSON(ctx, oiURL, &oi); err != nil {
		a.log.WithComponent("binance_adapter").WithError(err).Warn("open interest unavailable")
	} else if v := numPtr(oi.OpenInterest); v != nil {
		sample.OpenInterestUSD = v
	}

	return sample, nil
}
