package store

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/source"
	"github.com/xitongsys/parquet-go/writer"

	"beraflow/models"
)

// flowParquetRecord is one venue sample flattened for columnar export.
type flowParquetRecord struct {
	Timestamp       int64    `parquet:"name=timestamp, type=INT64, convertedtype=TIMESTAMP_MILLIS"`
	Market          string   `parquet:"name=market, type=BYTE_ARRAY, convertedtype=UTF8"`
	Venue           string   `parquet:"name=venue, type=BYTE_ARRAY, convertedtype=UTF8"`
	BuyUSD          float64  `parquet:"name=buy_usd, type=DOUBLE"`
	SellUSD         float64  `parquet:"name=sell_usd, type=DOUBLE"`
	NetUSD          float64  `parquet:"name=net_usd, type=DOUBLE"`
	Price           *float64 `parquet:"name=price, type=DOUBLE"`
	FundingRate     *float64 `parquet:"name=funding_rate, type=DOUBLE"`
	OpenInterestUSD *float64 `parquet:"name=open_interest_usd, type=DOUBLE"`
}

type memFile struct {
	buffer *bytes.Buffer
}

func newMemFile() *memFile {
	return &memFile{buffer: &bytes.Buffer{}}
}

func (m *memFile) Create(string) (source.ParquetFile, error) { return m, nil }
func (m *memFile) Open(string) (source.ParquetFile, error)   { return m, nil }
func (m *memFile) Seek(int64, int) (int64, error)            { return int64(m.buffer.Len()), nil }
func (m *memFile) Read([]byte) (int, error)                  { return 0, fmt.Errorf("read not supported") }
func (m *memFile) Write(b []byte) (int, error)               { return m.buffer.Write(b) }
func (m *memFile) Close() error                              { return nil }
func (m *memFile) Bytes() []byte                             { return m.buffer.Bytes() }

// EncodeParquet flattens records into one row per venue sample and returns
// the serialized parquet payload.
func EncodeParquet(records []models.FlowRecord, compression string) ([]byte, error) {
	rows := make([]flowParquetRecord, 0, len(records)*8)
	for _, r := range records {
		for _, market := range []models.MarketType{models.MarketSpot, models.MarketPerp} {
			for venue, sample := range r.Samples(market) {
				rows = append(rows, flowParquetRecord{
					Timestamp:       r.Timestamp,
					Market:          string(market),
					Venue:           venue,
					BuyUSD:          sample.BuyUSD,
					SellUSD:         sample.SellUSD,
					NetUSD:          sample.NetUSD,
					Price:           sample.Price,
					FundingRate:     sample.FundingRate,
					OpenInterestUSD: sample.OpenInterestUSD,
				})
			}
		}
	}

	mem := newMemFile()
	pw, err := writer.NewParquetWriter(mem, new(flowParquetRecord), 1)
	if err != nil {
		return nil, fmt.Errorf("new parquet writer: %w", err)
	}

	switch strings.ToLower(compression) {
	case "snappy":
		pw.CompressionType = parquet.CompressionCodec_SNAPPY
	case "gzip":
		pw.CompressionType = parquet.CompressionCodec_GZIP
	default:
		pw.CompressionType = parquet.CompressionCodec_UNCOMPRESSED
	}

	for _, row := range rows {
		if err := pw.Write(row); err != nil {
			pw.WriteStop()
			return nil, fmt.Errorf("write parquet record: %w", err)
		}
	}
	if err := pw.WriteStop(); err != nil {
		return nil, fmt.Errorf("finalize parquet: %w", err)
	}

	return mem.Bytes(), nil
}

// ExportParquet writes records to path as parquet.
func ExportParquet(records []models.FlowRecord, path, compression string) error {
	data, err := EncodeParquet(records, compression)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write parquet file: %w", err)
	}
	return nil
}
