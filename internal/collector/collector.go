package collector

import (
	"context"
	"sync"
	"time"

	"beraflow/config"
	"beraflow/internal/store"
	"beraflow/internal/venue"
	"beraflow/logger"
	"beraflow/models"
)

// Collector polls every venue adapter on a fixed interval and persists one
// flow record per tick. A failing venue is dropped from that tick only; the
// record is appended even when every venue failed.
type Collector struct {
	cfg      *config.Config
	adapters []venue.Adapter
	store    *store.Store
	log      *logger.Log
}

func New(cfg *config.Config, adapters []venue.Adapter, st *store.Store) *Collector {
	return &Collector{
		cfg:      cfg,
		adapters: adapters,
		store:    st,
		log:      logger.GetLogger(),
	}
}

// Run collects immediately, then on every interval boundary until ctx ends.
// Ticks are aligned to wall-clock multiples of the interval.
func (c *Collector) Run(ctx context.Context) {
	interval := c.cfg.Collector.Interval
	log := c.log.WithComponent("collector")
	log.WithFields(logger.Fields{
		"interval": interval,
		"venues":   len(c.adapters),
	}).Info("collector started")

	c.Tick(ctx)

	for {
		now := time.Now().UTC()
		next := now.Truncate(interval).Add(interval)
		timer := time.NewTimer(next.Sub(now))

		select {
		case <-ctx.Done():
			timer.Stop()
			log.Info("collector stopped")
			return
		case <-timer.C:
			c.Tick(ctx)
		}
	}
}

// Tick runs one full collection cycle and appends the resulting record.
func (c *Collector) Tick(ctx context.Context) error {
	record := c.Collect(ctx, time.Now().UTC())

	if err := c.store.Append(record); err != nil {
		c.log.WithComponent("collector").WithError(err).Error("failed to persist flow record")
		return err
	}

	logger.IncrementTick()
	c.log.WithComponent("collector").WithFields(logger.Fields{
		"timestamp":   record.Timestamp,
		"spot_venues": len(record.Spot),
		"perp_venues": len(record.Perp),
	}).Info("flow record collected")
	return nil
}

// Collect fans out to every adapter and market concurrently and assembles a
// record stamped with now. All samples of one tick share that timestamp.
func (c *Collector) Collect(ctx context.Context, now time.Time) models.FlowRecord {
	record := models.NewFlowRecord(now)

	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)

	for _, a := range c.adapters {
		for _, market := range a.Markets() {
			wg.Add(1)
			go func(a venue.Adapter, market models.MarketType) {
				defer wg.Done()

				sample, err := a.Collect(ctx, market)
				if err != nil {
					logger.IncrementVenueFailure()
					c.log.WithComponent("collector").WithError(err).WithFields(logger.Fields{
						"venue":  a.Name(),
						"market": string(market),
					}).Warn("venue collection failed")
					return
				}

				mu.Lock()
				record.Samples(market)[a.Name()] = sample
				mu.Unlock()
			}(a, market)
		}
	}

	wg.Wait()
	return record
}
