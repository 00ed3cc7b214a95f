package journal

import (
	"bytes"
	"fmt"
	"time"

	"github.com/parquet-go/parquet-go"
)

type EncodeResult struct {
	Data         []byte
	RecordCount  int64
	MinCreatedAt time.Time
	MaxCreatedAt time.Time
}

type parquetEntry struct {
	ID              string `parquet:"id"`
	Question        string `parquet:"question"`
	GeneratedSQL    string `parquet:"generated_sql"`
	Status          string `parquet:"status"`
	Error           string `parquet:"error,optional"`
	RowCount        int64  `parquet:"row_count"`
	DurationMs      int64  `parquet:"duration_ms"`
	CreatedAtUnixMs int64  `parquet:"created_at_unix_ms"`
}

func EncodeEntries(entries []Entry) (EncodeResult, error) {
	if len(entries) == 0 {
		return EncodeResult{}, fmt.Errorf("entries are required")
	}

	rows := make([]parquetEntry, 0, len(entries))
	result := EncodeResult{RecordCount: int64(len(entries))}
	for i, entry := range entries {
		createdAt := entry.CreatedAt.UTC()
		if i == 0 || createdAt.Before(result.MinCreatedAt) {
			result.MinCreatedAt = createdAt
		}
		if i == 0 || createdAt.After(result.MaxCreatedAt) {
			result.MaxCreatedAt = createdAt
		}
		rows = append(rows, parquetEntry{
			ID:              entry.ID,
			Question:        entry.Question,
			GeneratedSQL:    entry.GeneratedSQL,
			Status:          string(entry.Status),
			Error:           entry.Error,
			RowCount:        int64(entry.RowCount),
			DurationMs:      entry.Duration.Milliseconds(),
			CreatedAtUnixMs: createdAt.UnixMilli(),
		})
	}

	buf := bytes.NewBuffer(nil)
	writer := parquet.NewGenericWriter[parquetEntry](buf)
	if _, err := writer.Write(rows); err != nil {
		return EncodeResult{}, fmt.Errorf("write parquet rows: %w", err)
	}
	if err := writer.Close(); err != nil {
		return EncodeResult{}, fmt.Errorf("close parquet writer: %w", err)
	}
	result.Data = buf.Bytes()
	return result, nil
}
