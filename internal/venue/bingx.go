package venue

// BingX only feeds the live aggregate: its swap trade history is polled on
// demand and never persisted.

// BingxTrade is one entry of the swap quote/trades list. quoteQty is already
// the USDT notional.
type BingxTrade struct {
	QuoteQty     string `json:"quoteQty"`
	IsBuyerMaker bool   `json:"isBuyerMaker"`
}

// BingxTrades is the swap trades envelope.
type BingxTrades struct {
	Data []BingxTrade `json:"data"`
}

// SumBingxTrades accumulates taker buy/sell USD notionals from quote amounts.
func SumBingxTrades(trades []BingxTrade) (buyUSD, sellUSD float64) {
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

// BingxTicker is the swap ticker envelope.
type BingxTicker struct {
	Data struct {
		QuoteVolume string `json:"quoteVolume"`
	} `json:"data"`
}

// BingxOpenInterest is the swap open-interest envelope.
type BingxOpenInterest struct {
	Data struct {
		OpenInterest string `json:"openInterest"`
	} `json:"data"`
}
