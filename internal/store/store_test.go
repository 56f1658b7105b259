package store

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"beraflow/models"
)

func testRecord(t *testing.T, ts time.Time, venue string, buy, sell float64) models.FlowRecord {
	t.Helper()
	r := models.NewFlowRecord(ts)
	r.Spot[venue] = models.NewFlowSample(buy, sell)
	return r
}

func TestAppendAndLoadRangeOrder(t *testing.T) {
	st, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		if err := st.Append(testRecord(t, base.Add(time.Duration(i)*5*time.Minute), "Binance", float64(i), 0)); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}

	records := st.LoadRange(base.UnixMilli(), base.Add(time.Hour).UnixMilli())
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}
	for i := 1; i < len(records); i++ {
		if records[i].Timestamp <= records[i-1].Timestamp {
			t.Fatal("expected records in append order")
		}
	}
}

func TestLoadRangeBoundsInclusive(t *testing.T) {
	st, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ts := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	if err := st.Append(testRecord(t, ts, "Binance", 1, 0)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := st.LoadRange(ts.UnixMilli(), ts.UnixMilli()); len(got) != 1 {
		t.Fatalf("expected both bounds inclusive, got %d records", len(got))
	}
	if got := st.LoadRange(ts.UnixMilli()+1, ts.UnixMilli()+1000); len(got) != 0 {
		t.Fatalf("expected no records past the timestamp, got %d", len(got))
	}
}

func TestLoadRangeSpansDays(t *testing.T) {
	st, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	evening := time.Date(2025, 6, 1, 23, 55, 0, 0, time.UTC)
	morning := time.Date(2025, 6, 2, 0, 5, 0, 0, time.UTC)
	if err := st.Append(testRecord(t, evening, "Binance", 1, 0)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := st.Append(testRecord(t, morning, "Binance", 2, 0)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	records := st.LoadRange(evening.UnixMilli(), morning.UnixMilli())
	if len(records) != 2 {
		t.Fatalf("expected records across both day files, got %d", len(records))
	}
}

func TestCorruptDayFileTreatedAsEmpty(t *testing.T) {
	dir := t.TempDir()
	st, err := NewStore(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ts := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	path := filepath.Join(dir, "flow-2025-06-01.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := st.LoadRange(ts.UnixMilli(), ts.Add(time.Hour).UnixMilli()); len(got) != 0 {
		t.Fatalf("expected corrupt file to read as empty, got %d records", len(got))
	}

	// An append after corruption starts the day over rather than failing.
	if err := st.Append(testRecord(t, ts, "Binance", 1, 0)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := st.LoadRange(ts.UnixMilli(), ts.UnixMilli()); len(got) != 1 {
		t.Fatalf("expected 1 record after re-append, got %d", len(got))
	}
}

func TestLatest(t *testing.T) {
	st, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, ok := st.Latest(); ok {
		t.Fatal("expected no latest record in empty store")
	}

	// A record from a previous day never counts as today's latest.
	today := time.Now().UTC().Truncate(24 * time.Hour)
	if err := st.Append(testRecord(t, today.Add(-time.Hour), "Binance", 9, 0)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := st.Latest(); ok {
		t.Fatal("expected no latest record before today's first collection")
	}

	if err := st.Append(testRecord(t, today.Add(5*time.Minute), "Binance", 1, 0)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := st.Append(testRecord(t, today.Add(10*time.Minute), "Binance", 2, 0)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	latest, ok := st.Latest()
	if !ok {
		t.Fatal("expected a latest record")
	}
	if latest.Timestamp != today.Add(10*time.Minute).UnixMilli() {
		t.Fatalf("expected newest record of today, got timestamp %d", latest.Timestamp)
	}
}

func TestDaysListsPartitions(t *testing.T) {
	st, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := st.Append(testRecord(t, time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC), "Binance", 1, 0)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := st.Append(testRecord(t, time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC), "Binance", 1, 0)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	days, err := st.Days()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(days) != 2 || days[0] != "2025-06-01" || days[1] != "2025-06-02" {
		t.Fatalf("unexpected day list %v", days)
	}
}
