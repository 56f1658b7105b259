package venue

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"beraflow/config"
	"beraflow/internal/fetch"
	"beraflow/models"
)

func TestTakerBuysFromMakerFlag(t *testing.T) {
	// Buyer-as-maker means the aggressor sold.
	if takerBuysFromMakerFlag(true) {
		t.Fatal("expected taker sell when buyer is maker")
	}
	if !takerBuysFromMakerFlag(false) {
		t.Fatal("expected taker buy when seller is maker")
	}
}

func TestSumBinanceTrades(t *testing.T) {
	trades := []BinanceTrade{
		{Price: "0.5", Qty: "100", IsBuyerMaker: false},
		{Price: "0.5", Qty: "40", IsBuyerMaker: true},
		{Price: "bogus", Qty: "10", IsBuyerMaker: false},
	}

	buy, sell := SumBinanceTrades(trades)
	if buy != 50 {
		t.Fatalf("expected buy 50, got %v", buy)
	}
	if sell != 20 {
		t.Fatalf("expected sell 20, got %v", sell)
	}
}

func TestSumUpbitTradesConvertsKRW(t *testing.T) {
	trades := []UpbitTrade{
		{TradePrice: 1450, TradeVolume: 2, AskBid: "BID"},
		{TradePrice: 2900, TradeVolume: 1, AskBid: "ASK"},
	}

	buy, sell := SumUpbitTrades(trades, 1450)
	if buy != 2 {
		t.Fatalf("expected buy 2 USD, got %v", buy)
	}
	if sell != 2 {
		t.Fatalf("expected sell 2 USD, got %v", sell)
	}

	buy, sell = SumUpbitTrades(trades, 0)
	if buy != 0 || sell != 0 {
		t.Fatalf("expected zero flow without a conversion rate, got %v/%v", buy, sell)
	}
}

func TestSumBybitTradesBySide(t *testing.T) {
	trades := []BybitTrade{
		{Price: "2", Size: "10", Side: "Buy"},
		{Price: "2", Size: "5", Side: "Sell"},
	}

	buy, sell := SumBybitTrades(trades)
	if buy != 20 || sell != 10 {
		t.Fatalf("expected 20/10, got %v/%v", buy, sell)
	}
}

func TestSumMexcTradesUsesQuoteQty(t *testing.T) {
	trades := []MexcTrade{
		{QuoteQty: "30", IsBuyerMaker: false},
		{QuoteQty: "12", IsBuyerMaker: true},
	}

	buy, sell := SumMexcTrades(trades)
	if buy != 30 || sell != 12 {
		t.Fatalf("expected 30/12, got %v/%v", buy, sell)
	}
}

func TestSumMexcDeals(t *testing.T) {
	deals := []MexcDeal{
		{Price: 0.5, Vol: 100, T: 1},
		{Price: 0.5, Vol: 60, T: 2},
	}

	buy, sell := SumMexcDeals(deals)
	if buy != 50 || sell != 30 {
		t.Fatalf("expected 50/30, got %v/%v", buy, sell)
	}
}

func TestSumBitgetFills(t *testing.T) {
	fills := []BitgetFill{
		{Price: "1", Size: "7", Side: "buy"},
		{Price: "1", Size: "3", Side: "sell"},
	}

	buy, sell := SumBitgetFills(fills)
	if buy != 7 || sell != 3 {
		t.Fatalf("expected 7/3, got %v/%v", buy, sell)
	}
}

func TestSumBingxTrades(t *testing.T) {
	trades := []BingxTrade{
		{QuoteQty: "100", IsBuyerMaker: true},
		{QuoteQty: "25", IsBuyerMaker: false},
	}

	buy, sell := SumBingxTrades(trades)
	if buy != 25 || sell != 100 {
		t.Fatalf("expected 25/100, got %v/%v", buy, sell)
	}
}

func TestOkxTakerVolumeRows(t *testing.T) {
	vol := OkxTakerVolume{Data: [][]string{{"1700000000000", "40", "100"}}}
	if vol.Buy() != 100 {
		t.Fatalf("expected buy 100, got %v", vol.Buy())
	}
	if vol.Sell() != 40 {
		t.Fatalf("expected sell 40, got %v", vol.Sell())
	}

	empty := OkxTakerVolume{}
	if empty.Buy() != 0 || empty.Sell() != 0 {
		t.Fatal("expected zero flow for empty series")
	}
}

func TestBinanceKlineUnmarshal(t *testing.T) {
	row := `[1700000000000,"0.5","0.6","0.4","0.55","1000",1700000299999,"520",42,"300","310","0"]`

	var k BinanceKline
	if err := json.Unmarshal([]byte(row), &k); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if k.OpenTime != 1700000000000 {
		t.Fatalf("unexpected open time %d", k.OpenTime)
	}
	if k.QuoteVolume != 520 || k.TakerBuyQuote != 310 {
		t.Fatalf("unexpected volumes %v/%v", k.QuoteVolume, k.TakerBuyQuote)
	}

	var short BinanceKline
	if err := json.Unmarshal([]byte(`[1,"2"]`), &short); err == nil {
		t.Fatal("expected error for truncated kline row")
	}
}

func TestKlineNetFlow(t *testing.T) {
	// Taker sells are quoteVolume minus takerBuyQuote, so net doubles the
	// buy share before subtracting the total.
	k := BinanceKline{QuoteVolume: 1000, TakerBuyQuote: 600}
	if got := KlineNetFlow(k); got != 200 {
		t.Fatalf("expected net 200, got %v", got)
	}

	balanced := BinanceKline{QuoteVolume: 1000, TakerBuyQuote: 500}
	if got := KlineNetFlow(balanced); got != 0 {
		t.Fatalf("expected balanced kline to net zero, got %v", got)
	}
}

func TestHyperliquidMid(t *testing.T) {
	mids := HyperliquidMids{"BERA": "0.47"}
	p := mids.Mid("BERA")
	if p == nil || *p != 0.47 {
		t.Fatalf("expected 0.47, got %v", p)
	}
	if mids.Mid("BTC") != nil {
		t.Fatal("expected nil for unknown asset")
	}
}

func TestNumPtr(t *testing.T) {
	if numPtr("") != nil {
		t.Fatal("expected nil for empty string")
	}
	if numPtr("abc") != nil {
		t.Fatal("expected nil for malformed number")
	}
	if p := numPtr("1.5"); p == nil || *p != 1.5 {
		t.Fatalf("expected 1.5, got %v", p)
	}
}

func upbitTestAdapter(t *testing.T, url string) *UpbitAdapter {
	t.Helper()
	cfg := &config.Config{
		Asset:  config.AssetConfig{KrwUsd: 1450},
		Venues: config.VenuesConfig{Upbit: config.VenueConfig{SpotURL: url, SpotSymbol: "KRW-BERA"}},
	}
	return NewUpbitAdapter(cfg, fetch.NewClient(config.FetchConfig{}))
}

func TestUpbitCollectAttachesConvertedPrice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/v1/trades/ticks"):
			w.Write([]byte(`[{"trade_price":1450,"trade_volume":2,"ask_bid":"BID"}]`))
		case strings.HasPrefix(r.URL.Path, "/v1/ticker"):
			w.Write([]byte(`[{"trade_price":2900}]`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	sample, err := upbitTestAdapter(t, srv.URL).Collect(context.Background(), models.MarketSpot)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sample.BuyUSD != 2 || sample.SellUSD != 0 {
		t.Fatalf("unexpected flow %v/%v", sample.BuyUSD, sample.SellUSD)
	}
	if sample.Price == nil || *sample.Price != 2 {
		t.Fatalf("expected KRW price converted to 2 USD, got %v", sample.Price)
	}
}

func TestUpbitCollectNilPriceWithoutTicker(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/v1/trades/ticks") {
			w.Write([]byte(`[{"trade_price":1450,"trade_volume":1,"ask_bid":"ASK"}]`))
			return
		}
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	sample, err := upbitTestAdapter(t, srv.URL).Collect(context.Background(), models.MarketSpot)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sample.Price != nil {
		t.Fatalf("expected nil price when the ticker is unavailable, got %v", *sample.Price)
	}
	if sample.SellUSD != 1 {
		t.Fatalf("expected sell flow 1, got %v", sample.SellUSD)
	}
}
