package aggregate

import (
	"testing"
	"time"

	"beraflow/models"
)

func record(ts int64, spot map[string]models.FlowSample) models.FlowRecord {
	r := models.NewFlowRecord(time.UnixMilli(ts))
	for venue, s := range spot {
		r.Spot[venue] = s
	}
	return r
}

func TestFlowSumsPerVenue(t *testing.T) {
	records := []models.FlowRecord{
		record(1000, map[string]models.FlowSample{
			"A": models.NewFlowSample(100, 40),
		}),
		record(2000, map[string]models.FlowSample{
			"A": models.NewFlowSample(0, 0),
			"B": models.NewFlowSample(50, 10),
		}),
	}

	w := Flow(records, 0, 3000)

	a := w.Spot["A"]
	if a.BuyUSD != 100 || a.SellUSD != 40 || a.NetUSD != 60 || a.Samples != 2 {
		t.Fatalf("unexpected window for A: %+v", a)
	}

	b := w.Spot["B"]
	if b.BuyUSD != 50 || b.SellUSD != 10 || b.NetUSD != 40 || b.Samples != 1 {
		t.Fatalf("unexpected window for B: %+v", b)
	}
}

func TestFlowBoundsInclusive(t *testing.T) {
	records := []models.FlowRecord{
		record(1000, map[string]models.FlowSample{"A": models.NewFlowSample(1, 0)}),
		record(2000, map[string]models.FlowSample{"A": models.NewFlowSample(2, 0)}),
		record(3000, map[string]models.FlowSample{"A": models.NewFlowSample(4, 0)}),
	}

	w := Flow(records, 1000, 2000)
	if got := w.Spot["A"]; got.Samples != 2 || got.BuyUSD != 3 {
		t.Fatalf("expected both boundary records counted, got %+v", got)
	}
}

func TestFlowExcludesAbsentVenues(t *testing.T) {
	records := []models.FlowRecord{
		record(1000, map[string]models.FlowSample{"A": models.NewFlowSample(1, 0)}),
	}

	w := Flow(records, 0, 2000)
	if _, ok := w.Spot["B"]; ok {
		t.Fatal("expected venue B to be absent from the window")
	}
	if len(w.Perp) != 0 {
		t.Fatalf("expected empty perp map, got %v", w.Perp)
	}
}

func TestFlowAveragesFunding(t *testing.T) {
	r1 := models.NewFlowRecord(time.UnixMilli(1000))
	r1.Perp["A"] = models.NewFlowSample(1, 0).WithFunding(0.01)
	r2 := models.NewFlowRecord(time.UnixMilli(2000))
	r2.Perp["A"] = models.NewFlowSample(1, 0).WithFunding(0.03)
	r3 := models.NewFlowRecord(time.UnixMilli(3000))
	r3.Perp["A"] = models.NewFlowSample(1, 0)

	w := Flow([]models.FlowRecord{r1, r2, r3}, 0, 4000)
	a := w.Perp["A"]
	if a.AvgFunding == nil {
		t.Fatal("expected an average funding rate")
	}
	if *a.AvgFunding != 0.02 {
		t.Fatalf("expected funding mean 0.02 over reporting samples, got %v", *a.AvgFunding)
	}
	if a.Samples != 3 {
		t.Fatalf("expected 3 samples, got %d", a.Samples)
	}
}

func TestFlowNilFundingWhenNeverReported(t *testing.T) {
	r := models.NewFlowRecord(time.UnixMilli(1000))
	r.Perp["A"] = models.NewFlowSample(1, 0)

	w := Flow([]models.FlowRecord{r}, 0, 2000)
	if w.Perp["A"].AvgFunding != nil {
		t.Fatal("expected nil funding average when no sample reported one")
	}
}
