package live

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"beraflow/config"
	"beraflow/internal/fetch"
	"beraflow/internal/venue"
	"beraflow/logger"
)

// Service assembles the live market snapshot from every venue's public REST
// endpoints. All fetches go through a shared TTL cache, so a burst of
// dashboard clients costs one upstream round-trip per endpoint.
type Service struct {
	cfg    *config.Config
	client *fetch.Client
	cache  *fetch.Cache
	log    *logger.Log
}

func NewService(cfg *config.Config, client *fetch.Client) *Service {
	return &Service{
		cfg:    cfg,
		client: client,
		cache:  fetch.NewCache(cfg.Live.CacheTTL),
		log:    logger.GetLogger(),
	}
}

// KlinePoint is one spot candle with derived taker flow.
type KlinePoint struct {
	Time          int64   `json:"time"`
	Exchange      string  `json:"exchange"`
	Open          float64 `json:"open"`
	High          float64 `json:"high"`
	Low           float64 `json:"low"`
	Close         float64 `json:"close"`
	Volume        float64 `json:"volume"`
	QuoteVolume   float64 `json:"quoteVolume"`
	TakerBuyQuote float64 `json:"takerBuyQuote"`
	NetFlow       float64 `json:"netFlow"`
}

// ExchangeFlow is one venue's contribution to an aggregate flow total. Buy
// and sell are omitted for sources that only expose a net figure.
type ExchangeFlow struct {
	Net     float64  `json:"net"`
	Buy     *float64 `json:"buy,omitempty"`
	Sell    *float64 `json:"sell,omitempty"`
	Periods int      `json:"periods,omitempty"`
	Source  string   `json:"source"`
}

// FlowTotal is the per-venue breakdown plus the precomputed sum of nets.
type FlowTotal struct {
	Exchanges map[string]ExchangeFlow `json:"exchanges"`
	Total     float64                 `json:"total"`
}

// PerpFlowPoint is one period of the Binance/OKX perp taker series.
type PerpFlowPoint struct {
	Exchange string  `json:"exchange"`
	Time     int64   `json:"time"`
	BuyVol   float64 `json:"buyVol"`
	SellVol  float64 `json:"sellVol"`
	NetFlow  float64 `json:"netFlow"`
	Ratio    float64 `json:"ratio"`
}

// VenueVolume is one venue's 24h quote volume.
type VenueVolume struct {
	Exchange string  `json:"exchange"`
	Type     string  `json:"type"`
	Volume   float64 `json:"volume"`
}

// LongShortRatio holds long/short account percentages.
type LongShortRatio struct {
	Long  float64 `json:"long"`
	Short float64 `json:"short"`
}

// HyperliquidQuote is the Hyperliquid mid price.
type HyperliquidQuote struct {
	Price float64 `json:"price"`
}

// UpbitLevel is one order book level pair.
type UpbitLevel struct {
	BidPrice float64 `json:"bidPrice"`
	BidSize  float64 `json:"bidSize"`
	AskPrice float64 `json:"askPrice"`
	AskSize  float64 `json:"askSize"`
}

// UpbitOrderbookSummary condenses the Upbit order book to totals and the top
// five levels.
type UpbitOrderbookSummary struct {
	TotalBidSize float64      `json:"totalBidSize"`
	TotalAskSize float64      `json:"totalAskSize"`
	BidAskRatio  float64      `json:"bidAskRatio"`
	Top5         []UpbitLevel `json:"top5"`
}

// UpbitStats is the Upbit spot block of the snapshot. Prices are null when
// the ticker was unavailable.
type UpbitStats struct {
	Volume24h    float64                `json:"volume24h"`
	TakerBuyVol  float64                `json:"takerBuyVol"`
	TakerSellVol float64                `json:"takerSellVol"`
	NetFlow      float64                `json:"netFlow"`
	FlowRatio    float64                `json:"flowRatio"`
	Price        *float64               `json:"price"`
	PriceKRW     *float64               `json:"priceKRW"`
	Change24h    float64                `json:"change24h"`
	Orderbook    *UpbitOrderbookSummary `json:"orderbook"`
}

// Snapshot is the full live aggregate served to dashboard clients.
type Snapshot struct {
	Price          float64                    `json:"price"`
	PriceChange24h float64                    `json:"priceChange24h"`
	SpotKlines     []KlinePoint               `json:"spotKlines"`
	SpotFlowTotal  FlowTotal                  `json:"spotFlowTotal"`
	PerpFlow       []PerpFlowPoint            `json:"perpFlow"`
	PerpFlowTotal  FlowTotal                  `json:"perpFlowTotal"`
	Volumes        []VenueVolume              `json:"volumes"`
	OpenInterest   map[string]float64         `json:"openInterest"`
	Funding        map[string]float64         `json:"funding"`
	LongShort      map[string]*LongShortRatio `json:"longShort"`
	Hyperliquid    *HyperliquidQuote          `json:"hyperliquid"`
	Upbit          UpbitStats                 `json:"upbit"`
	Timestamp      int64                      `json:"timestamp"`
}

// normalizeInterval clamps unknown intervals to the daily default.
func normalizeInterval(interval string) string {
	switch interval {
	case "1h", "4h", "1d":
		return interval
	default:
		return "1d"
	}
}

// okxBar maps an interval to OKX's candle bar notation.
func okxBar(interval string) string {
	switch interval {
	case "1h":
		return "1H"
	case "4h":
		return "4H"
	default:
		return "1D"
	}
}

func (s *Service) cachedGet(ctx context.Context, key, url string) json.RawMessage {
	return s.cache.Get(ctx, key, func(ctx context.Context) (json.RawMessage, error) {
		return s.client.GetRaw(ctx, url)
	})
}

func (s *Service) cachedPost(ctx context.Context, key, url string, body interface{}) json.RawMessage {
	return s.cache.Get(ctx, key, func(ctx context.Context) (json.RawMessage, error) {
		return s.client.PostRaw(ctx, url, body)
	})
}

// decode unmarshals raw into out, reporting false for nil or malformed
// payloads. A false result leaves out at its zero value.
func decode(raw json.RawMessage, out interface{}) bool {
	if raw == nil {
		return false
	}
	return json.Unmarshal(raw, out) == nil
}

// num parses a numeric string, zero on failure.
func num(s string) float64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}

type rawSet struct {
	binanceKlines, okxKlines                       json.RawMessage
	binanceSpotTicker, binanceFuturesTicker        json.RawMessage
	binanceOI, binanceFunding, binanceTaker        json.RawMessage
	binanceLSGlobal, binanceLSTop                  json.RawMessage
	okxSpotTicker, okxPerpTicker                   json.RawMessage
	okxFunding, okxTaker, okxOI, okxSpotTaker      json.RawMessage
	bybitSpotTicker, bybitPerpTicker               json.RawMessage
	bybitOI, bybitFunding, bybitLS                 json.RawMessage
	bybitSpotTrades, bybitPerpTrades               json.RawMessage
	kucoinStats, kucoinTrades                      json.RawMessage
	mexcSpotTicker, mexcPerpTicker, mexcFunding    json.RawMessage
	mexcSpotTrades, mexcPerpTrades                 json.RawMessage
	bitgetSpotTicker, bitgetOI                     json.RawMessage
	bitgetSpotTrades, bitgetPerpTrades             json.RawMessage
	bingxTicker, bingxOI, bingxTrades              json.RawMessage
	hyperliquidMids                                json.RawMessage
	upbitOrderbook, upbitTrades, upbitTicker       json.RawMessage
}

// fetchAll issues every upstream request concurrently. Failed endpoints come
// back nil and degrade to empty sections of the snapshot.
func (s *Service) fetchAll(ctx context.Context, interval string, limit int) *rawSet {
	v := s.cfg.Venues
	ccy := s.cfg.Asset.Symbol
	raw := &rawSet{}

	var wg sync.WaitGroup
	get := func(dst *json.RawMessage, key, url string) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			*dst = s.cachedGet(ctx, key, url)
		}()
	}

	get(&raw.binanceKlines, fmt.Sprintf("binance-klines-%s-%d", interval, limit),
		fmt.Sprintf("%s/api/v3/klines?symbol=%s&interval=%s&limit=%d", v.Binance.SpotURL, v.Binance.SpotSymbol, interval, limit))
	get(&raw.okxKlines, fmt.Sprintf("okx-klines-%s-%d", interval, limit),
		fmt.Sprintf("%s/api/v5/market/candles?instId=%s&bar=%s&limit=%d", v.Okx.SpotURL, v.Okx.SpotSymbol, okxBar(interval), limit))
	get(&raw.binanceSpotTicker, "binance-spot-ticker",
		fmt.Sprintf("%s/api/v3/ticker/24hr?symbol=%s", v.Binance.SpotURL, v.Binance.SpotSymbol))
	get(&raw.binanceFuturesTicker, "binance-futures-ticker",
		fmt.Sprintf("%s/fapi/v1/ticker/24hr?symbol=%s", v.Binance.PerpURL, v.Binance.PerpSymbol))
	get(&raw.binanceOI, "binance-futures-oi",
		fmt.Sprintf("%s/fapi/v1/openInterest?symbol=%s", v.Binance.PerpURL, v.Binance.PerpSymbol))
	get(&raw.binanceFunding, "binance-futures-funding",
		fmt.Sprintf("%s/fapi/v1/fundingRate?symbol=%s&limit=1", v.Binance.PerpURL, v.Binance.PerpSymbol))
	get(&raw.binanceTaker, fmt.Sprintf("binance-taker-%s-%d", interval, limit),
		fmt.Sprintf("%s/futures/data/takerlongshortRatio?symbol=%s&period=%s&limit=%d", v.Binance.PerpURL, v.Binance.PerpSymbol, interval, limit))
	get(&raw.binanceLSGlobal, "binance-ls-global",
		fmt.Sprintf("%s/futures/data/globalLongShortAccountRatio?symbol=%s&period=1d&limit=1", v.Binance.PerpURL, v.Binance.PerpSymbol))
	get(&raw.binanceLSTop, "binance-ls-top",
		fmt.Sprintf("%s/futures/data/topLongShortAccountRatio?symbol=%s&period=1d&limit=1", v.Binance.PerpURL, v.Binance.PerpSymbol))

	get(&raw.okxSpotTicker, "okx-spot-ticker",
		fmt.Sprintf("%s/api/v5/market/ticker?instId=%s", v.Okx.SpotURL, v.Okx.SpotSymbol))
	get(&raw.okxPerpTicker, "okx-perp-ticker",
		fmt.Sprintf("%s/api/v5/market/ticker?instId=%s", v.Okx.PerpURL, v.Okx.PerpSymbol))
	get(&raw.okxFunding, "okx-funding",
		fmt.Sprintf("%s/api/v5/public/funding-rate?instId=%s", v.Okx.PerpURL, v.Okx.PerpSymbol))
	get(&raw.okxTaker, fmt.Sprintf("okx-taker-%s", interval),
		fmt.Sprintf("%s/api/v5/rubik/stat/taker-volume?ccy=%s&instType=CONTRACTS&period=%s", v.Okx.PerpURL, ccy, okxBar(interval)))
	get(&raw.okxOI, "okx-oi",
		fmt.Sprintf("%s/api/v5/rubik/stat/contracts/open-interest-volume?ccy=%s&period=1D", v.Okx.PerpURL, ccy))
	get(&raw.okxSpotTaker, "okx-spot-taker",
		fmt.Sprintf("%s/api/v5/rubik/stat/taker-volume?ccy=%s&instType=SPOT&period=1D", v.Okx.SpotURL, ccy))

	get(&raw.bybitSpotTicker, "bybit-spot-ticker",
		fmt.Sprintf("%s/v5/market/tickers?category=spot&symbol=%s", v.Bybit.SpotURL, v.Bybit.SpotSymbol))
	get(&raw.bybitPerpTicker, "bybit-perp-ticker",
		fmt.Sprintf("%s/v5/market/tickers?category=linear&symbol=%s", v.Bybit.PerpURL, v.Bybit.PerpSymbol))
	get(&raw.bybitOI, "bybit-oi",
		fmt.Sprintf("%s/v5/market/open-interest?category=linear&symbol=%s&intervalTime=1d&limit=1", v.Bybit.PerpURL, v.Bybit.PerpSymbol))
	get(&raw.bybitFunding, "bybit-funding",
		fmt.Sprintf("%s/v5/market/funding/history?category=linear&symbol=%s&limit=1", v.Bybit.PerpURL, v.Bybit.PerpSymbol))
	get(&raw.bybitLS, "bybit-ls",
		fmt.Sprintf("%s/v5/market/account-ratio?category=linear&symbol=%s&period=1d&limit=1", v.Bybit.PerpURL, v.Bybit.PerpSymbol))
	get(&raw.bybitSpotTrades, "bybit-spot-trades",
		fmt.Sprintf("%s/v5/market/recent-trade?category=spot&symbol=%s&limit=200", v.Bybit.SpotURL, v.Bybit.SpotSymbol))
	get(&raw.bybitPerpTrades, "bybit-perp-trades",
		fmt.Sprintf("%s/v5/market/recent-trade?category=linear&symbol=%s&limit=500", v.Bybit.PerpURL, v.Bybit.PerpSymbol))

	get(&raw.kucoinStats, "kucoin-spot",
		fmt.Sprintf("%s/api/v1/market/stats?symbol=%s", v.Kucoin.SpotURL, v.Kucoin.SpotSymbol))
	get(&raw.kucoinTrades, "kucoin-trades",
		fmt.Sprintf("%s/api/v1/market/histories?symbol=%s", v.Kucoin.SpotURL, v.Kucoin.SpotSymbol))

	get(&raw.mexcSpotTicker, "mexc-spot",
		fmt.Sprintf("%s/api/v3/ticker/24hr?symbol=%s", v.Mexc.SpotURL, v.Mexc.SpotSymbol))
	get(&raw.mexcPerpTicker, "mexc-perp",
		fmt.Sprintf("%s/api/v1/contract/ticker?symbol=%s", v.Mexc.PerpURL, v.Mexc.PerpSymbol))
	get(&raw.mexcFunding, "mexc-funding",
		fmt.Sprintf("%s/api/v1/contract/funding_rate/%s", v.Mexc.PerpURL, v.Mexc.PerpSymbol))
	get(&raw.mexcSpotTrades, "mexc-spot-trades",
		fmt.Sprintf("%s/api/v3/trades?symbol=%s&limit=200", v.Mexc.SpotURL, v.Mexc.SpotSymbol))
	get(&raw.mexcPerpTrades, "mexc-perp-trades",
		fmt.Sprintf("%s/api/v1/contract/deals/%s?limit=500", v.Mexc.PerpURL, v.Mexc.PerpSymbol))

	get(&raw.bitgetSpotTicker, "bitget-spot",
		fmt.Sprintf("%s/api/v2/spot/market/tickers?symbol=%s", v.Bitget.SpotURL, v.Bitget.SpotSymbol))
	get(&raw.bitgetOI, "bitget-oi",
		fmt.Sprintf("%s/api/v2/mix/market/open-interest?symbol=%s&productType=USDT-FUTURES", v.Bitget.PerpURL, v.Bitget.PerpSymbol))
	get(&raw.bitgetSpotTrades, "bitget-spot-trades",
		fmt.Sprintf("%s/api/v2/spot/market/fills?symbol=%s&limit=200", v.Bitget.SpotURL, v.Bitget.SpotSymbol))
	get(&raw.bitgetPerpTrades, "bitget-perp-trades",
		fmt.Sprintf("%s/api/v2/mix/market/fills?symbol=%s&productType=USDT-FUTURES&limit=500", v.Bitget.PerpURL, v.Bitget.PerpSymbol))

	get(&raw.bingxTicker, "bingx-perp",
		fmt.Sprintf("%s/openApi/swap/v2/quote/ticker?symbol=%s", v.Bingx.PerpURL, v.Bingx.PerpSymbol))
	get(&raw.bingxOI, "bingx-oi",
		fmt.Sprintf("%s/openApi/swap/v2/quote/openInterest?symbol=%s", v.Bingx.PerpURL, v.Bingx.PerpSymbol))
	get(&raw.bingxTrades, "bingx-perp-trades",
		fmt.Sprintf("%s/openApi/swap/v2/quote/trades?symbol=%s&limit=500", v.Bingx.PerpURL, v.Bingx.PerpSymbol))

	get(&raw.upbitOrderbook, "upbit-orderbook",
		fmt.Sprintf("%s/v1/orderbook?markets=%s", v.Upbit.SpotURL, v.Upbit.SpotSymbol))
	get(&raw.upbitTrades, "upbit-trades",
		fmt.Sprintf("%s/v1/trades/ticks?market=%s&count=200", v.Upbit.SpotURL, v.Upbit.SpotSymbol))
	get(&raw.upbitTicker, "upbit-ticker",
		fmt.Sprintf("%s/v1/ticker?markets=%s", v.Upbit.SpotURL, v.Upbit.SpotSymbol))

	wg.Add(1)
	go func() {
		defer wg.Done()
		raw.hyperliquidMids = s.cachedPost(ctx, "hyperliquid-mids",
			v.Hyperliquid.PerpURL+"/info", venue.HyperliquidMidsRequest{Type: "allMids"})
	}()

	wg.Wait()
	return raw
}

// Data builds the live snapshot for the given kline interval and limit. The
// only hard failure is a cancelled context; unavailable venues degrade to
// empty sections instead.
func (s *Service) Data(ctx context.Context, interval string, limit int) (*Snapshot, error) {
	interval = normalizeInterval(interval)
	if limit <= 0 {
		limit = s.cfg.Live.KlineLimit
	}

	raw := s.fetchAll(ctx, interval, limit)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var binanceTicker venue.BinanceTicker24h
	decode(raw.binanceSpotTicker, &binanceTicker)
	var okxSpotTicker venue.OkxTicker
	decode(raw.okxSpotTicker, &okxSpotTicker)
	var bybitSpotTicker venue.BybitTickersResponse
	decode(raw.bybitSpotTicker, &bybitSpotTicker)

	price := s.resolvePrice(binanceTicker, okxSpotTicker, bybitSpotTicker)

	snap := &Snapshot{
		Price:          price,
		PriceChange24h: priceChange(binanceTicker, okxSpotTicker, price),
		OpenInterest:   map[string]float64{},
		Funding:        map[string]float64{},
		LongShort:      map[string]*LongShortRatio{},
		Timestamp:      time.Now().UnixMilli(),
	}

	snap.SpotKlines = s.spotKlines(raw)
	snap.SpotFlowTotal = s.spotFlowTotal(raw, snap.SpotKlines)
	snap.PerpFlow, snap.PerpFlowTotal = s.perpFlow(raw)
	snap.Volumes = s.volumes(raw, binanceTicker, okxSpotTicker, bybitSpotTicker)
	s.fillOpenInterest(raw, snap, price)
	s.fillFunding(raw, snap)
	s.fillLongShort(raw, snap)

	var mids venue.HyperliquidMids
	if decode(raw.hyperliquidMids, &mids) {
		if p := mids.Mid(s.cfg.Asset.Symbol); p != nil {
			snap.Hyperliquid = &HyperliquidQuote{Price: *p}
		}
	}

	snap.Upbit = s.upbitStats(raw)
	return snap, nil
}

// resolvePrice walks the configured fallback chain, ending at the static
// default when every ticker is down.
func (s *Service) resolvePrice(binance venue.BinanceTicker24h, okx venue.OkxTicker, bybit venue.BybitTickersResponse) float64 {
	byVenue := map[string]func() float64{
		"Binance": func() float64 {
			if p := num(binance.LastPrice); p > 0 {
				return p
			}
			return 0
		},
		"OKX": func() float64 {
			if len(okx.Data) > 0 {
				return num(okx.Data[0].Last)
			}
			return 0
		},
		"Bybit": func() float64 {
			if len(bybit.Result.List) > 0 {
				return num(bybit.Result.List[0].LastPrice)
			}
			return 0
		},
	}

	for _, name := range s.cfg.Live.PriceFallback {
		if fn, ok := byVenue[name]; ok {
			if p := fn(); p > 0 {
				return p
			}
		}
	}
	return s.cfg.Live.DefaultPrice
}

func priceChange(binance venue.BinanceTicker24h, okx venue.OkxTicker, price float64) float64 {
	if binance.PriceChangePercent != "" {
		return num(binance.PriceChangePercent)
	}
	if len(okx.Data) > 0 {
		if sod := num(okx.Data[0].SodUtc0); sod > 0 {
			return (price - sod) / sod * 100
		}
	}
	return 0
}

// spotKlines prefers Binance candles; OKX is the fallback and carries no
// taker split, so its flow fields are zero. OKX returns newest first.
func (s *Service) spotKlines(raw *rawSet) []KlinePoint {
	var binanceKlines []venue.BinanceKline
	if decode(raw.binanceKlines, &binanceKlines) && len(binanceKlines) > 0 {
		points := make([]KlinePoint, 0, len(binanceKlines))
		for _, k := range binanceKlines {
			points = append(points, KlinePoint{
				Time:          k.OpenTime,
				Exchange:      "Binance",
				Open:          k.Open,
				High:          k.High,
				Low:           k.Low,
				Close:         k.Close,
				Volume:        k.Volume,
				QuoteVolume:   k.QuoteVolume,
				TakerBuyQuote: k.TakerBuyQuote,
				NetFlow:       venue.KlineNetFlow(k),
			})
		}
		return points
	}

	var okxKlines venue.OkxCandles
	decode(raw.okxKlines, &okxKlines)
	points := make([]KlinePoint, 0, len(okxKlines.Data))
	for i := len(okxKlines.Data) - 1; i >= 0; i-- {
		k := okxKlines.Data[i]
		if len(k) < 7 {
			continue
		}
		points = append(points, KlinePoint{
			Time:        int64(num(k[0])),
			Exchange:    "OKX",
			Open:        num(k[1]),
			High:        num(k[2]),
			Low:         num(k[3]),
			Close:       num(k[4]),
			Volume:      num(k[5]),
			QuoteVolume: num(k[6]),
		})
	}
	return points
}

func flowEntry(buy, sell float64, source string) ExchangeFlow {
	b, s := buy, sell
	return ExchangeFlow{Net: buy - sell, Buy: &b, Sell: &s, Source: source}
}

func (s *Service) spotFlowTotal(raw *rawSet, klines []KlinePoint) FlowTotal {
	exchanges := map[string]ExchangeFlow{}

	binanceNet := 0.0
	for _, k := range klines {
		if k.Exchange == "Binance" {
			binanceNet += k.NetFlow
		}
	}
	exchanges["Binance"] = ExchangeFlow{Net: binanceNet, Source: "7d klines"}

	var okxTaker venue.OkxTakerVolume
	decode(raw.okxSpotTaker, &okxTaker)
	exchanges["OKX"] = flowEntry(okxTaker.Buy(), okxTaker.Sell(), "24h taker API")

	var upbitTrades []venue.UpbitTrade
	decode(raw.upbitTrades, &upbitTrades)
	upbitBuy, upbitSell := venue.SumUpbitTrades(upbitTrades, s.cfg.Asset.KrwUsd)
	exchanges["Upbit"] = flowEntry(upbitBuy, upbitSell, "recent trades")

	var bybitTrades venue.BybitTradesResponse
	decode(raw.bybitSpotTrades, &bybitTrades)
	buy, sell := venue.SumBybitTrades(bybitTrades.Result.List)
	exchanges["Bybit"] = flowEntry(buy, sell, "recent trades")

	var kucoinTrades venue.KucoinHistories
	decode(raw.kucoinTrades, &kucoinTrades)
	buy, sell = venue.SumKucoinTrades(kucoinTrades.Data)
	exchanges["KuCoin"] = flowEntry(buy, sell, "recent trades")

	var mexcTrades []venue.MexcTrade
	decode(raw.mexcSpotTrades, &mexcTrades)
	buy, sell = venue.SumMexcTrades(mexcTrades)
	exchanges["MEXC"] = flowEntry(buy, sell, "recent trades")

	var bitgetFills venue.BitgetFills
	decode(raw.bitgetSpotTrades, &bitgetFills)
	buy, sell = venue.SumBitgetFills(bitgetFills.Data)
	exchanges["Bitget"] = flowEntry(buy, sell, "recent trades")

	return totalize(exchanges)
}

// perpFlow merges the Binance and OKX taker series, clipping OKX to the time
// range Binance covers so the per-venue totals compare like for like.
func (s *Service) perpFlow(raw *rawSet) ([]PerpFlowPoint, FlowTotal) {
	var binanceSeries []venue.BinanceTakerRatio
	decode(raw.binanceTaker, &binanceSeries)

	minTime, maxTime := int64(0), time.Now().UnixMilli()
	if len(binanceSeries) > 0 {
		minTime, maxTime = binanceSeries[0].Timestamp, binanceSeries[0].Timestamp
		for _, d := range binanceSeries {
			if d.Timestamp < minTime {
				minTime = d.Timestamp
			}
			if d.Timestamp > maxTime {
				maxTime = d.Timestamp
			}
		}
	}

	var points []PerpFlowPoint
	var binanceBuy, binanceSell float64
	for _, d := range binanceSeries {
		buy, sell := num(d.BuyVol), num(d.SellVol)
		binanceBuy += buy
		binanceSell += sell
		points = append(points, PerpFlowPoint{
			Exchange: "Binance",
			Time:     d.Timestamp,
			BuyVol:   buy,
			SellVol:  sell,
			NetFlow:  buy - sell,
			Ratio:    num(d.BuySellRatio),
		})
	}

	var okxTaker venue.OkxTakerVolume
	decode(raw.okxTaker, &okxTaker)
	var okxBuy, okxSell float64
	okxPeriods := 0
	for _, row := range okxTaker.Data {
		if len(row) < 3 {
			continue
		}
		ts := int64(num(row[0]))
		if ts < minTime || ts > maxTime {
			continue
		}
		sell, buy := num(row[1]), num(row[2])
		okxBuy += buy
		okxSell += sell
		okxPeriods++
		ratio := 0.0
		if sell > 0 {
			ratio = buy / sell
		}
		points = append(points, PerpFlowPoint{
			Exchange: "OKX",
			Time:     ts,
			BuyVol:   buy,
			SellVol:  sell,
			NetFlow:  buy - sell,
			Ratio:    ratio,
		})
	}

	sort.Slice(points, func(i, j int) bool { return points[i].Time > points[j].Time })

	exchanges := map[string]ExchangeFlow{}
	binanceEntry := flowEntry(binanceBuy, binanceSell, "historical (aligned)")
	binanceEntry.Periods = len(binanceSeries)
	exchanges["Binance"] = binanceEntry
	okxEntry := flowEntry(okxBuy, okxSell, "historical (aligned)")
	okxEntry.Periods = okxPeriods
	exchanges["OKX"] = okxEntry

	var bybitTrades venue.BybitTradesResponse
	decode(raw.bybitPerpTrades, &bybitTrades)
	buy, sell := venue.SumBybitTrades(bybitTrades.Result.List)
	exchanges["Bybit"] = flowEntry(buy, sell, "recent trades")

	var mexcDeals venue.MexcDeals
	decode(raw.mexcPerpTrades, &mexcDeals)
	buy, sell = venue.SumMexcDeals(mexcDeals.Data)
	exchanges["MEXC"] = flowEntry(buy, sell, "recent trades")

	var bitgetFills venue.BitgetFills
	decode(raw.bitgetPerpTrades, &bitgetFills)
	buy, sell = venue.SumBitgetFills(bitgetFills.Data)
	exchanges["Bitget"] = flowEntry(buy, sell, "recent trades")

	var bingxTrades venue.BingxTrades
	decode(raw.bingxTrades, &bingxTrades)
	buy, sell = venue.SumBingxTrades(bingxTrades.Data)
	exchanges["BingX"] = flowEntry(buy, sell, "recent trades")

	return points, totalize(exchanges)
}

func totalize(exchanges map[string]ExchangeFlow) FlowTotal {
	total := 0.0
	for _, e := range exchanges {
		total += e.Net
	}
	return FlowTotal{Exchanges: exchanges, Total: total}
}

func (s *Service) volumes(raw *rawSet, binance venue.BinanceTicker24h, okxSpot venue.OkxTicker, bybitSpot venue.BybitTickersResponse) []VenueVolume {
	var all []VenueVolume
	add := func(exchange, market string, volume float64) {
		if volume > 0 {
			all = append(all, VenueVolume{Exchange: exchange, Type: market, Volume: volume})
		}
	}

	add("Binance", "spot", num(binance.QuoteVolume))
	var binanceFut venue.BinanceTicker24h
	decode(raw.binanceFuturesTicker, &binanceFut)
	add("Binance", "perp", num(binanceFut.QuoteVolume))

	if len(okxSpot.Data) > 0 {
		add("OKX", "spot", num(okxSpot.Data[0].VolCcy24))
	}
	var okxPerp venue.OkxTicker
	if decode(raw.okxPerpTicker, &okxPerp) && len(okxPerp.Data) > 0 {
		add("OKX", "perp", num(okxPerp.Data[0].VolCcy24))
	}

	if len(bybitSpot.Result.List) > 0 {
		add("Bybit", "spot", num(bybitSpot.Result.List[0].Turnover24h))
	}
	var bybitPerp venue.BybitTickersResponse
	if decode(raw.bybitPerpTicker, &bybitPerp) && len(bybitPerp.Result.List) > 0 {
		add("Bybit", "perp", num(bybitPerp.Result.List[0].Turnover24h))
	}

	var kucoin venue.KucoinStats
	decode(raw.kucoinStats, &kucoin)
	add("KuCoin", "spot", num(kucoin.Data.VolValue))

	var mexcSpot venue.BinanceTicker24h
	decode(raw.mexcSpotTicker, &mexcSpot)
	add("MEXC", "spot", num(mexcSpot.QuoteVolume))
	var mexcPerp venue.MexcContractTicker
	decode(raw.mexcPerpTicker, &mexcPerp)
	add("MEXC", "perp", mexcPerp.Data.Volume24)

	var bitget venue.BitgetSpotTickers
	if decode(raw.bitgetSpotTicker, &bitget) && len(bitget.Data) > 0 {
		add("Bitget", "spot", num(bitget.Data[0].QuoteVolume))
	}

	var bingx venue.BingxTicker
	decode(raw.bingxTicker, &bingx)
	add("BingX", "perp", num(bingx.Data.QuoteVolume))

	var upbitTicker []venue.UpbitTicker
	if decode(raw.upbitTicker, &upbitTicker) && len(upbitTicker) > 0 && s.cfg.Asset.KrwUsd > 0 {
		add("Upbit", "spot", upbitTicker[0].AccTradePrice24h/s.cfg.Asset.KrwUsd)
	}

	return all
}

// fillOpenInterest converts coin-denominated figures to USD at the resolved
// price. OKX already reports USD.
func (s *Service) fillOpenInterest(raw *rawSet, snap *Snapshot, price float64) {
	var binanceOI venue.BinanceOpenInterest
	if decode(raw.binanceOI, &binanceOI) {
		if v := num(binanceOI.OpenInterest); v > 0 {
			snap.OpenInterest["Binance"] = v * price
		}
	}

	var okxOI venue.OkxOpenInterest
	if decode(raw.okxOI, &okxOI) && len(okxOI.Data) > 0 && len(okxOI.Data[0]) >= 2 {
		if v := num(okxOI.Data[0][1]); v > 0 {
			snap.OpenInterest["OKX"] = v
		}
	}

	var bybitOI venue.BybitOpenInterestResponse
	if decode(raw.bybitOI, &bybitOI) && len(bybitOI.Result.List) > 0 {
		if v := num(bybitOI.Result.List[0].OpenInterest); v > 0 {
			snap.OpenInterest["Bybit"] = v * price
		}
	}

	var bitgetOI venue.BitgetOpenInterest
	if decode(raw.bitgetOI, &bitgetOI) && len(bitgetOI.Data.OpenInterestList) > 0 {
		if v := num(bitgetOI.Data.OpenInterestList[0].Size); v > 0 {
			snap.OpenInterest["Bitget"] = v * price
		}
	}

	var bingxOI venue.BingxOpenInterest
	if decode(raw.bingxOI, &bingxOI) {
		if v := num(bingxOI.Data.OpenInterest); v > 0 {
			snap.OpenInterest["BingX"] = v * price
		}
	}
}

// fillFunding records funding rates as percentages.
func (s *Service) fillFunding(raw *rawSet, snap *Snapshot) {
	var binanceFunding []venue.BinanceFundingRate
	if decode(raw.binanceFunding, &binanceFunding) && len(binanceFunding) > 0 {
		snap.Funding["Binance"] = num(binanceFunding[0].FundingRate) * 100
	}

	var okxFunding venue.OkxFundingRate
	if decode(raw.okxFunding, &okxFunding) && len(okxFunding.Data) > 0 {
		snap.Funding["OKX"] = num(okxFunding.Data[0].FundingRate) * 100
	}

	var bybitFunding venue.BybitFundingResponse
	if decode(raw.bybitFunding, &bybitFunding) && len(bybitFunding.Result.List) > 0 {
		snap.Funding["Bybit"] = num(bybitFunding.Result.List[0].FundingRate) * 100
	}

	var mexcFunding venue.MexcFundingRate
	if decode(raw.mexcFunding, &mexcFunding) && mexcFunding.Data.FundingRate != 0 {
		snap.Funding["MEXC"] = mexcFunding.Data.FundingRate * 100
	}
}

func (s *Service) fillLongShort(raw *rawSet, snap *Snapshot) {
	var global []venue.BinanceAccountRatio
	if decode(raw.binanceLSGlobal, &global) && len(global) > 0 {
		snap.LongShort["Binance Global"] = &LongShortRatio{
			Long:  num(global[0].LongAccount) * 100,
			Short: num(global[0].ShortAccount) * 100,
		}
	}

	var top []venue.BinanceAccountRatio
	if decode(raw.binanceLSTop, &top) && len(top) > 0 {
		snap.LongShort["Binance Top"] = &LongShortRatio{
			Long:  num(top[0].LongAccount) * 100,
			Short: num(top[0].ShortAccount) * 100,
		}
	}

	var bybit venue.BybitAccountRatioResponse
	if decode(raw.bybitLS, &bybit) && len(bybit.Result.List) > 0 {
		snap.LongShort["Bybit"] = &LongShortRatio{
			Long:  num(bybit.Result.List[0].BuyRatio) * 100,
			Short: num(bybit.Result.List[0].SellRatio) * 100,
		}
	}
}

func (s *Service) upbitStats(raw *rawSet) UpbitStats {
	stats := UpbitStats{}
	krwUsd := s.cfg.Asset.KrwUsd

	var trades []venue.UpbitTrade
	decode(raw.upbitTrades, &trades)
	stats.TakerBuyVol, stats.TakerSellVol = venue.SumUpbitTrades(trades, krwUsd)
	stats.NetFlow = stats.TakerBuyVol - stats.TakerSellVol
	denom := stats.TakerSellVol
	if denom == 0 {
		denom = 1
	}
	stats.FlowRatio = stats.TakerBuyVol / denom

	var ticker []venue.UpbitTicker
	if decode(raw.upbitTicker, &ticker) && len(ticker) > 0 && krwUsd > 0 {
		stats.Volume24h = ticker[0].AccTradePrice24h / krwUsd
		krw := ticker[0].TradePrice
		usd := krw / krwUsd
		stats.PriceKRW = &krw
		stats.Price = &usd
		stats.Change24h = ticker[0].SignedChangeRate * 100
	}

	var books []venue.UpbitOrderbook
	if decode(raw.upbitOrderbook, &books) && len(books) > 0 {
		book := books[0]
		ratio := 0.0
		if book.TotalAskSize > 0 {
			ratio = book.TotalBidSize / book.TotalAskSize
		}
		summary := &UpbitOrderbookSummary{
			TotalBidSize: book.TotalBidSize,
			TotalAskSize: book.TotalAskSize,
			BidAskRatio:  ratio,
		}
		for i, u := range book.OrderbookUnits {
			if i >= 5 {
				break
			}
			summary.Top5 = append(summary.Top5, UpbitLevel{
				BidPrice: u.BidPrice,
				BidSize:  u.BidSize,
				AskPrice: u.AskPrice,
				AskSize:  u.AskSize,
			})
		}
		stats.Orderbook = summary
	}

	return stats
}
