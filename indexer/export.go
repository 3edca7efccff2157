package indexer

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/xitongsys/parquet-go-source/writerfile"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"
)

const exportPageSize = maxQueryLimit

type parquetEvent struct {
	Height     int64  `parquet:"name=height, type=INT64"`
	Seq        int32  `parquet:"name=seq, type=INT32"`
	Type       string `parquet:"name=type, type=BYTE_ARRAY, convertedtype=UTF8"`
	Attributes string `parquet:"name=attributes, type=BYTE_ARRAY, convertedtype=UTF8"`
}

// page returns up to limit rows strictly after the (height, seq) cursor.
func (s *Store) page(ctx context.Context, filter Filter, height uint64, seq int, first bool, limit int) ([]EventRecord, error) {
	query := s.db.WithContext(ctx).Model(&EventRecord{})
	if t := strings.TrimSpace(filter.Type); t != "" {
		query = query.Where("type = ?", t)
	}
	if filter.FromHeight > 0 {
		query = query.Where("height >= ?", filter.FromHeight)
	}
	if filter.ToHeight > 0 {
		query = query.Where("height <= ?", filter.ToHeight)
	}
	if !first {
		query = query.Where("(height > ? OR (height = ? AND seq > ?))", height, height, seq)
	}
	var rows []EventRecord
	err := query.Order("height asc").Order("seq asc").Limit(limit).Find(&rows).Error
	return rows, err
}

// ExportParquet writes every event matching filter to a parquet file at path
// and returns the number of rows written. filter.Limit is ignored.
func (s *Store) ExportParquet(ctx context.Context, path string, filter Filter) (int, error) {
	file, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("indexer: create parquet: %w", err)
	}
	fw := writerfile.NewWriterFile(file)
	pw, err := writer.NewParquetWriter(fw, new(parquetEvent), 1)
	if err != nil {
		file.Close()
		return 0, fmt.Errorf("indexer: parquet schema: %w", err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	abort := func(err error) error {
		_ = pw.WriteStop()
		file.Close()
		return err
	}

	var (
		written int
		height  uint64
		seq     int
		first   = true
	)
	for {
		rows, err := s.page(ctx, filter, height, seq, first, exportPageSize)
		if err != nil {
			return written, abort(err)
		}
		for _, row := range rows {
			if err := pw.Write(&parquetEvent{
				Height:     int64(row.Height),
				Seq:        int32(row.Seq),
				Type:       row.Type,
				Attributes: row.Attributes,
			}); err != nil {
				return written, abort(fmt.Errorf("indexer: parquet write: %w", err))
			}
			written++
		}
		if len(rows) < exportPageSize {
			break
		}
		last := rows[len(rows)-1]
		height, seq, first = last.Height, last.Seq, false
	}
	if err := pw.WriteStop(); err != nil {
		file.Close()
		return written, fmt.Errorf("indexer: parquet flush: %w", err)
	}
	if err := file.Close(); err != nil {
		return written, fmt.Errorf("indexer: close parquet file: %w", err)
	}
	return written, nil
}
