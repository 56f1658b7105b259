package aggregate

import (
	"beraflow/models"
)

// VenueWindow is one venue's flow summed over a time window. AvgFunding is
// the mean of the funding rates present in the window, null when the venue
// never reported one.
type VenueWindow struct {
	BuyUSD     float64  `json:"buy"`
	SellUSD    float64  `json:"sell"`
	NetUSD     float64  `json:"net"`
	Samples    int      `json:"samples"`
	AvgFunding *float64 `json:"avgFunding"`
}

// Window aggregates both market families over the same time range. A venue
// appears only when at least one record in the window carries it.
type Window struct {
	Spot map[string]VenueWindow `json:"spot"`
	Perp map[string]VenueWindow `json:"perp"`
}

type venueAcc struct {
	buy, sell   float64
	samples     int
	fundingSum  float64
	fundingSeen int
}

// Flow sums records over [fromTs, toTs] per venue and market. Records outside
// the bounds are skipped, so callers may pass an unfiltered slice.
func Flow(records []models.FlowRecord, fromTs, toTs int64) Window {
	spot := make(map[string]*venueAcc)
	perp := make(map[string]*venueAcc)

	for _, r := range records {
		if r.Timestamp < fromTs || r.Timestamp > toTs {
			continue
		}
		accumulate(spot, r.Spot)
		accumulate(perp, r.Perp)
	}

	return Window{Spot: finalize(spot), Perp: finalize(perp)}
}

func accumulate(acc map[string]*venueAcc, samples map[string]models.FlowSample) {
	for venue, s := range samples {
		a, ok := acc[venue]
		if !ok {
			a = &venueAcc{}
			acc[venue] = a
		}
		a.buy += s.BuyUSD
		a.sell += s.SellUSD
		a.samples++
		if s.FundingRate != nil {
			a.fundingSum += *s.FundingRate
			a.fundingSeen++
		}
	}
}

func finalize(acc map[string]*venueAcc) map[string]VenueWindow {
	out := make(map[string]VenueWindow, len(acc))
	for venue, a := range acc {
		w := VenueWindow{
			BuyUSD:  a.buy,
			SellUSD: a.sell,
			NetUSD:  a.buy - a.sell,
			Samples: a.samples,
		}
		if a.fundingSeen > 0 {
			avg := a.fundingSum / float64(a.fundingSeen)
			w.AvgFunding = &avg
		}
		out[venue] = w
	}
	return out
}
