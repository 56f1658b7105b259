package collector

import (
	"context"
	"errors"
	"testing"
	"time"

	"beraflow/config"
	"beraflow/internal/store"
	"beraflow/internal/venue"
	"beraflow/models"
)

type stubAdapter struct {
	name    string
	markets []models.MarketType
	sample  models.FlowSample
	err     error
}

func (a *stubAdapter) Name() string                 { return a.name }
func (a *stubAdapter) Markets() []models.MarketType { return a.markets }
func (a *stubAdapter) Collect(ctx context.Context, market models.MarketType) (models.FlowSample, error) {
	return a.sample, a.err
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Collector: config.CollectorConfig{Interval: 5 * time.Minute},
		Storage:   config.StorageConfig{DataDir: t.TempDir()},
	}
}

func TestCollectSharesOneTimestamp(t *testing.T) {
	adapters := []venue.Adapter{
		&stubAdapter{name: "A", markets: []models.MarketType{models.MarketSpot, models.MarketPerp}, sample: models.NewFlowSample(10, 4)},
		&stubAdapter{name: "B", markets: []models.MarketType{models.MarketSpot}, sample: models.NewFlowSample(5, 5)},
	}
	c := New(testConfig(t), adapters, nil)

	now := time.Date(2025, 6, 1, 10, 5, 0, 0, time.UTC)
	record := c.Collect(context.Background(), now)

	if record.Timestamp != now.UnixMilli() {
		t.Fatalf("expected shared timestamp %d, got %d", now.UnixMilli(), record.Timestamp)
	}
	if len(record.Spot) != 2 {
		t.Fatalf("expected 2 spot venues, got %d", len(record.Spot))
	}
	if len(record.Perp) != 1 {
		t.Fatalf("expected 1 perp venue, got %d", len(record.Perp))
	}
	if record.Spot["A"].NetUSD != 6 {
		t.Fatalf("unexpected net for A: %v", record.Spot["A"].NetUSD)
	}
}

func TestCollectDropsFailingVenue(t *testing.T) {
	adapters := []venue.Adapter{
		&stubAdapter{name: "A", markets: []models.MarketType{models.MarketSpot}, sample: models.NewFlowSample(1, 0)},
		&stubAdapter{name: "Broken", markets: []models.MarketType{models.MarketSpot}, err: errors.New("timeout")},
	}
	c := New(testConfig(t), adapters, nil)

	record := c.Collect(context.Background(), time.Now().UTC())
	if _, ok := record.Spot["Broken"]; ok {
		t.Fatal("expected failing venue to be dropped from the record")
	}
	if _, ok := record.Spot["A"]; !ok {
		t.Fatal("expected healthy venue to survive another venue's failure")
	}
}

func TestTickAppendsEvenWhenAllVenuesFail(t *testing.T) {
	cfg := testConfig(t)
	st, err := store.NewStore(cfg.Storage.DataDir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	adapters := []venue.Adapter{
		&stubAdapter{name: "Broken", markets: []models.MarketType{models.MarketSpot}, err: errors.New("down")},
	}
	c := New(cfg, adapters, st)

	if err := c.Tick(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	latest, ok := st.Latest()
	if !ok {
		t.Fatal("expected an appended record despite total venue failure")
	}
	if len(latest.Spot) != 0 || len(latest.Perp) != 0 {
		t.Fatalf("expected empty sample maps, got %d/%d", len(latest.Spot), len(latest.Perp))
	}
}
