package live

import (
	"context"
	"fmt"

	"beraflow/internal/venue"
)

// DepthLevel is one order book level with its USD notional.
type DepthLevel struct {
	Price float64 `json:"price"`
	Qty   float64 `json:"qty"`
	USD   float64 `json:"usd"`
}

// Depth is the top of the reference order book.
type Depth struct {
	Bids []DepthLevel `json:"bids"`
	Asks []DepthLevel `json:"asks"`
}

// Depth returns the top five levels of the Binance spot book, nil when the
// book is unavailable.
func (s *Service) Depth(ctx context.Context) *Depth {
	v := s.cfg.Venues.Binance
	raw := s.cachedGet(ctx, "binance-depth",
		fmt.Sprintf("%s/api/v3/depth?symbol=%s&limit=10", v.SpotURL, v.SpotSymbol))

	var book venue.BinanceDepth
	if !decode(raw, &book) || book.Bids == nil || book.Asks == nil {
		return nil
	}

	return &Depth{
		Bids: depthLevels(book.Bids),
		Asks: depthLevels(book.Asks),
	}
}

func depthLevels(levels [][]string) []DepthLevel {
	out := make([]DepthLevel, 0, 5)
	for i, l := range levels {
		if i >= 5 || len(l) < 2 {
			break
		}
		price, qty := num(l[0]), num(l[1])
		out = append(out, DepthLevel{Price: price, Qty: qty, USD: price * qty})
	}
	return out
}
