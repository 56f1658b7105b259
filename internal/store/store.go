package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"beraflow/logger"
	"beraflow/models"
)

// Store persists flow records to one JSON file per UTC day. Files are
// append-only: every write rewrites the day file through a temp file and
// rename, so a crash never leaves a truncated day behind.
type Store struct {
	dataDir string
	mu      sync.Mutex
	log     *logger.Log
}

// NewStore creates the data directory when missing.
func NewStore(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &Store{dataDir: dataDir, log: logger.GetLogger()}, nil
}

// dayFile returns the path of the day file covering ts (unix millis).
func (s *Store) dayFile(ts int64) string {
	day := time.UnixMilli(ts).UTC().Format("2006-01-02")
	return filepath.Join(s.dataDir, "flow-"+day+".json")
}

// Append adds record to its UTC day file, creating the file when absent.
func (s *Store) Append(record models.FlowRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.dayFile(record.Timestamp)
	records := s.loadFile(path)
	records = append(records, record)

	payload, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("encode day file: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, payload, 0o644); err != nil {
		return fmt.Errorf("write day file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace day file: %w", err)
	}

	logger.IncrementAppend()
	s.log.WithComponent("store").WithFields(logger.Fields{
		"file":    filepath.Base(path),
		"records": len(records),
	}).Debug("record appended")
	return nil
}

// LoadRange returns all records with fromTs <= timestamp <= toTs, in file
// order. Missing or unreadable day files contribute nothing.
func (s *Store) LoadRange(fromTs, toTs int64) []models.FlowRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.FlowRecord
	from := time.UnixMilli(fromTs).UTC().Truncate(24 * time.Hour)
	to := time.UnixMilli(toTs).UTC()

	for day := from; !day.After(to); day = day.Add(24 * time.Hour) {
		path := filepath.Join(s.dataDir, "flow-"+day.Format("2006-01-02")+".json")
		for _, r := range s.loadFile(path) {
			if r.Timestamp >= fromTs && r.Timestamp <= toTs {
				out = append(out, r)
			}
		}
	}
	return out
}

// Latest returns the most recently appended record of the current UTC day.
// The second return is false when nothing has been collected today.
func (s *Store) Latest() (models.FlowRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.dayFile(time.Now().UTC().UnixMilli())
	if records := s.loadFile(path); len(records) > 0 {
		return records[len(records)-1], true
	}
	return models.FlowRecord{}, false
}

// Days lists the UTC day stamps that have a day file, sorted ascending.
func (s *Store) Days() ([]string, error) {
	entries, err := os.ReadDir(s.dataDir)
	if err != nil {
		return nil, fmt.Errorf("read data dir: %w", err)
	}
	var days []string
	for _, e := range entries {
		name := e.Name()
		if len(name) == len("flow-2006-01-02.json") && name[:5] == "flow-" && filepath.Ext(name) == ".json" {
			days = append(days, name[5:len(name)-len(".json")])
		}
	}
	return days, nil
}

// LoadDay returns all records of one UTC day stamp (2006-01-02 format).
func (s *Store) LoadDay(day string) []models.FlowRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadFile(filepath.Join(s.dataDir, "flow-"+day+".json"))
}

// loadFile reads a day file, treating a missing or corrupt file as empty.
// Callers hold s.mu.
func (s *Store) loadFile(path string) []models.FlowRecord {
	payload, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.log.WithComponent("store").WithError(err).WithFields(logger.Fields{
				"file": filepath.Base(path),
			}).Warn("day file unreadable, treating as empty")
		}
		return nil
	}

	var records []models.FlowRecord
	if err := json.Unmarshal(payload, &records); err != nil {
		s.log.WithComponent("store").WithError(err).WithFields(logger.Fields{
			"file": filepath.Base(path),
		}).Warn("day file corrupt, treating as empty")
		return nil
	}
	return records
}
