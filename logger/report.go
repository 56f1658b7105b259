package logger

import (
	"context"
	"runtime"
	"strings"
	"sync/atomic"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
)

var (
	errorsCollector int64
	errorsServer    int64
	warnsCollector  int64
	warnsServer     int64
	ticksRun        int64
	venueFailures   int64
	recordsAppended int64
	cacheHits       int64
	cacheMisses     int64
	fetchesIssued   int64
)

func recordWarn(component string) {
	if strings.HasPrefix(component, "collector") || strings.HasSuffix(component, "_adapter") {
		atomic.AddInt64(&warnsCollector, 1)
	} else {
		atomic.AddInt64(&warnsServer, 1)
	}
}

func recordError(component string) {
	if strings.HasPrefix(component, "collector") || strings.HasSuffix(component, "_adapter") {
		atomic.AddInt64(&errorsCollector, 1)
	} else {
		atomic.AddInt64(&errorsServer, 1)
	}
}

// IncrementTick records a completed collection tick.
func IncrementTick() {
	atomic.AddInt64(&ticksRun, 1)
}

// IncrementVenueFailure records a single venue failing within a tick.
func IncrementVenueFailure() {
	atomic.AddInt64(&venueFailures, 1)
}

// IncrementAppend records a flow record appended to a day partition.
func IncrementAppend() {
	atomic.AddInt64(&recordsAppended, 1)
}

// IncrementCacheHit records a TTL cache hit on the live path.
func IncrementCacheHit() {
	atomic.AddInt64(&cacheHits, 1)
}

// IncrementCacheMiss records a TTL cache miss on the live path.
func IncrementCacheMiss() {
	atomic.AddInt64(&cacheMisses, 1)
}

// IncrementFetch records an outbound API request.
func IncrementFetch() {
	atomic.AddInt64(&fetchesIssued, 1)
}

// StartReport begins periodic logging of process statistics.
func StartReport(ctx context.Context, log *Log, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		for {
			select {
			case <-ctx.Done():
				ticker.Stop()
				return
			case <-ticker.C:
				logReport(ctx, log)
			}
		}
	}()
}

func logReport(ctx context.Context, log *Log) {
	fields := Fields{
		"errors_collector": atomic.LoadInt64(&errorsCollector),
		"errors_server":    atomic.LoadInt64(&errorsServer),
		"warns_collector":  atomic.LoadInt64(&warnsCollector),
		"warns_server":     atomic.LoadInt64(&warnsServer),
		"ticks":            atomic.LoadInt64(&ticksRun),
		"venue_failures":   atomic.LoadInt64(&venueFailures),
		"records_appended": atomic.LoadInt64(&recordsAppended),
		"cache_hits":       atomic.LoadInt64(&cacheHits),
		"cache_misses":     atomic.LoadInt64(&cacheMisses),
		"fetches":          atomic.LoadInt64(&fetchesIssued),
		"goroutines":       runtime.NumGoroutine(),
	}

	log.WithComponent("report").WithFields(fields).Info("runtime report")

	data := []cwtypes.MetricDatum{
		{MetricName: aws.String("Ticks"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(atomic.LoadInt64(&ticksRun)))},
		{MetricName: aws.String("VenueFailures"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(atomic.LoadInt64(&venueFailures)))},
		{MetricName: aws.String("RecordsAppended"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(atomic.LoadInt64(&recordsAppended)))},
		{MetricName: aws.String("CacheHits"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(atomic.LoadInt64(&cacheHits)))},
		{MetricName: aws.String("CacheMisses"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(atomic.LoadInt64(&cacheMisses)))},
		{MetricName: aws.String("Fetches"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(atomic.LoadInt64(&fetchesIssued)))},
		{MetricName: aws.String("ErrorsCollector"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(atomic.LoadInt64(&errorsCollector)))},
		{MetricName: aws.String("ErrorsServer"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(atomic.LoadInt64(&errorsServer)))},
		{MetricName: aws.String("Goroutines"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(runtime.NumGoroutine()))},
	}

	publishMetrics(ctx, data)
}
