package iceberg

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/parquet-go/parquet-go"

	"rowbridge/column"
	"rowbridge/storage"
	"rowbridge/types"
)

const readBatchSize = 128

// ReadDataFile decodes a data file written by Writer back into rows of the
// given fields.
func ReadDataFile(ctx context.Context, store storage.Storage, filePath string, fields []types.FieldSpec) ([]*column.Row, error) {
	l, err := newLayout(fields)
	if err != nil {
		return nil, err
	}

	rc, err := store.Read(ctx, filePath)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", filePath, err)
	}
	data, err := io.ReadAll(rc)
	rc.Close()
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", filePath, err)
	}

	f, err := parquet.OpenFile(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("opening parquet file %s: %w", filePath, err)
	}
	if err := l.bind(f.Schema()); err != nil {
		return nil, err
	}

	reader := parquet.NewReader(f)
	defer reader.Close()

	var rows []*column.Row
	batch := make([]parquet.Row, readBatchSize)
	for {
		n, err := reader.ReadRows(batch)
		for _, prow := range batch[:n] {
			rec, decodeErr := l.recordFromRow(prow)
			if decodeErr != nil {
				return nil, decodeErr
			}
			row, convErr := l.converter.ToInternal(rec)
			if convErr != nil {
				return nil, fmt.Errorf("converting row %d: %w", len(rows), convErr)
			}
			rows = append(rows, row)
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading rows: %w", err)
		}
	}
	return rows, nil
}
