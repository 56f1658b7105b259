// Command flowexport converts persisted day partitions to parquet files for
// offline analysis.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"beraflow/config"
	"beraflow/internal/store"
	"beraflow/logger"
)

func main() {
	log := logger.GetLogger()

	configPath := flag.String("config", "config/config.yml", "Path to configuration file")
	day := flag.String("day", "", "UTC day to export (2006-01-02 format); all days when empty")
	outDir := flag.String("out", ".", "Output directory for parquet files")
	compression := flag.String("compression", "snappy", "Parquet compression: snappy, gzip or none")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.WithError(err).Error("Failed to load configuration")
		os.Exit(1)
	}

	st, err := store.NewStore(cfg.Storage.DataDir)
	if err != nil {
		log.WithError(err).Error("failed to open data store")
		os.Exit(1)
	}

	days := []string{*day}
	if *day == "" {
		days, err = st.Days()
		if err != nil {
			log.WithError(err).Error("failed to list day partitions")
			os.Exit(1)
		}
	}
	if len(days) == 0 {
		log.Warn("no day partitions to export")
		return
	}

	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		log.WithError(err).Error("failed to create output directory")
		os.Exit(1)
	}

	exported := 0
	for _, d := range days {
		records := st.LoadDay(d)
		if len(records) == 0 {
			log.WithFields(logger.Fields{"day": d}).Warn("day partition empty, skipping")
			continue
		}

		name := fmt.Sprintf("flow_%s_%s.parquet", d, uuid.NewString()[:8])
		path := filepath.Join(*outDir, name)
		if err := store.ExportParquet(records, path, *compression); err != nil {
			log.WithError(err).WithFields(logger.Fields{"day": d}).Error("export failed")
			os.Exit(1)
		}

		log.WithFields(logger.Fields{
			"day":     d,
			"records": len(records),
			"file":    path,
		}).Info("day partition exported")
		exported++
	}

	log.WithFields(logger.Fields{"files": exported}).Info("export complete")
}
