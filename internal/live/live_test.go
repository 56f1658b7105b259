package live

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"beraflow/config"
	"beraflow/internal/fetch"
	"beraflow/internal/venue"
)

func testService() *Service {
	return &Service{
		cfg: &config.Config{
			Asset: config.AssetConfig{Symbol: "BERA", KrwUsd: 1450},
			Live: config.LiveConfig{
				PriceFallback: []string{"Binance", "OKX", "Bybit"},
				DefaultPrice:  0.45,
				KlineLimit:    7,
			},
		},
	}
}

func depthService(url string) *Service {
	s := testService()
	s.cfg.Venues.Binance = config.VenueConfig{SpotURL: url, SpotSymbol: "BERAUSDT"}
	s.client = fetch.NewClient(config.FetchConfig{})
	s.cache = fetch.NewCache(time.Second)
	return s
}

func TestDepthNilWhenBookOneSided(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"bids":[["0.5","100"]],"asks":null}`))
	}))
	defer srv.Close()

	if got := depthService(srv.URL).Depth(context.Background()); got != nil {
		t.Fatalf("expected nil depth for a one-sided book, got %+v", got)
	}
}

func TestDepthTopFiveLevels(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"bids":[["6","1"],["5","1"],["4","1"],["3","1"],["2","1"],["1","1"]],
			"asks":[["7","2"]]
		}`))
	}))
	defer srv.Close()

	d := depthService(srv.URL).Depth(context.Background())
	if d == nil {
		t.Fatal("expected a depth snapshot")
	}
	if len(d.Bids) != 5 {
		t.Fatalf("expected top 5 bids, got %d", len(d.Bids))
	}
	if len(d.Asks) != 1 || d.Asks[0].USD != 14 {
		t.Fatalf("unexpected asks %+v", d.Asks)
	}
}

func TestNormalizeInterval(t *testing.T) {
	if got := normalizeInterval("4h"); got != "4h" {
		t.Fatalf("expected 4h, got %q", got)
	}
	if got := normalizeInterval("15m"); got != "1d" {
		t.Fatalf("expected unknown interval to clamp to 1d, got %q", got)
	}
}

func TestOkxBar(t *testing.T) {
	if okxBar("1h") != "1H" || okxBar("4h") != "4H" || okxBar("1d") != "1D" {
		t.Fatal("unexpected okx bar mapping")
	}
}

func TestResolvePriceFallbackChain(t *testing.T) {
	s := testService()

	var binance venue.BinanceTicker24h
	var okx venue.OkxTicker
	var bybit venue.BybitTickersResponse

	if got := s.resolvePrice(binance, okx, bybit); got != 0.45 {
		t.Fatalf("expected default price, got %v", got)
	}

	json.Unmarshal([]byte(`{"data":[{"last":"0.52"}]}`), &okx)
	if got := s.resolvePrice(binance, okx, bybit); got != 0.52 {
		t.Fatalf("expected OKX fallback price, got %v", got)
	}

	binance.LastPrice = "0.50"
	if got := s.resolvePrice(binance, okx, bybit); got != 0.50 {
		t.Fatalf("expected Binance to win the chain, got %v", got)
	}
}

func TestSpotFlowTotalStoresSum(t *testing.T) {
	s := testService()
	raw := &rawSet{
		okxSpotTaker:     json.RawMessage(`{"data":[["1700000000000","40","100"]]}`),
		bybitSpotTrades:  json.RawMessage(`{"result":{"list":[{"price":"2","size":"10","side":"Buy"}]}}`),
		kucoinTrades:     json.RawMessage(`{"data":[{"price":"1","size":"5","side":"sell"}]}`),
		mexcSpotTrades:   json.RawMessage(`[{"quoteQty":"30","isBuyerMaker":false}]`),
		bitgetSpotTrades: json.RawMessage(`{"data":[{"price":"1","size":"7","side":"buy"}]}`),
	}

	klines := []KlinePoint{
		{Exchange: "Binance", NetFlow: 200},
		{Exchange: "Binance", NetFlow: -50},
	}

	total := s.spotFlowTotal(raw, klines)

	if total.Exchanges["Binance"].Net != 150 {
		t.Fatalf("expected Binance net 150, got %v", total.Exchanges["Binance"].Net)
	}
	if total.Exchanges["OKX"].Net != 60 {
		t.Fatalf("expected OKX net 60, got %v", total.Exchanges["OKX"].Net)
	}

	want := 150.0 + 60 + 0 + 20 - 5 + 30 + 7
	if total.Total != want {
		t.Fatalf("expected stored total %v, got %v", want, total.Total)
	}
}

func TestPerpFlowAlignsOkxToBinanceRange(t *testing.T) {
	s := testService()
	raw := &rawSet{
		binanceTaker: json.RawMessage(`[
			{"buyVol":"100","sellVol":"40","buySellRatio":"2.5","timestamp":2000},
			{"buyVol":"50","sellVol":"30","buySellRatio":"1.66","timestamp":3000}
		]`),
		okxTaker: json.RawMessage(`{"data":[
			["1000","5","10"],
			["2500","20","60"],
			["4000","7","9"]
		]}`),
	}

	points, total := s.perpFlow(raw)

	okx := total.Exchanges["OKX"]
	if okx.Periods != 1 {
		t.Fatalf("expected one OKX period inside the Binance range, got %d", okx.Periods)
	}
	if okx.Net != 40 {
		t.Fatalf("expected OKX net 40, got %v", okx.Net)
	}

	binance := total.Exchanges["Binance"]
	if binance.Periods != 2 || binance.Net != 80 {
		t.Fatalf("unexpected Binance entry %+v", binance)
	}

	for i := 1; i < len(points); i++ {
		if points[i].Time > points[i-1].Time {
			t.Fatal("expected perp flow sorted newest first")
		}
	}
}

func TestUpbitStatsWithoutTicker(t *testing.T) {
	s := testService()
	raw := &rawSet{
		upbitTrades: json.RawMessage(`[
			{"trade_price":1450,"trade_volume":2,"ask_bid":"BID"},
			{"trade_price":1450,"trade_volume":1,"ask_bid":"ASK"}
		]`),
	}

	stats := s.upbitStats(raw)
	if stats.Price != nil || stats.PriceKRW != nil {
		t.Fatal("expected nil prices without a ticker")
	}
	if stats.TakerBuyVol != 2 || stats.TakerSellVol != 1 {
		t.Fatalf("unexpected taker flow %v/%v", stats.TakerBuyVol, stats.TakerSellVol)
	}
	if stats.NetFlow != 1 {
		t.Fatalf("expected net 1, got %v", stats.NetFlow)
	}
}

func TestSpotKlinesPrefersBinance(t *testing.T) {
	s := testService()
	raw := &rawSet{
		binanceKlines: json.RawMessage(`[[1700000000000,"0.5","0.6","0.4","0.55","1000",1700000299999,"520",42,"300","310","0"]]`),
		okxKlines:     json.RawMessage(`{"data":[["1700000000000","0.5","0.6","0.4","0.55","1000","500"]]}`),
	}

	points := s.spotKlines(raw)
	if len(points) != 1 || points[0].Exchange != "Binance" {
		t.Fatalf("expected Binance klines, got %+v", points)
	}
	if points[0].NetFlow != 100 {
		t.Fatalf("expected net flow 100, got %v", points[0].NetFlow)
	}

	// Without Binance data the OKX series is used, oldest first, with no
	// taker split.
	raw.binanceKlines = nil
	points = s.spotKlines(raw)
	if len(points) != 1 || points[0].Exchange != "OKX" {
		t.Fatalf("expected OKX fallback, got %+v", points)
	}
	if points[0].NetFlow != 0 || points[0].TakerBuyQuote != 0 {
		t.Fatal("expected zero flow fields for OKX candles")
	}
}
