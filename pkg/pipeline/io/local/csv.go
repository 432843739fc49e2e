package local

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
)

// CSVSink writes rows as CSV with a fixed header. It implements core.OutputAdapter.
type CSVSink[Out any] struct {
	W      io.Writer
	Header []string
	// Row renders one output value in Header order.
	Row func(Out) []string
}

// Store writes the header followed by every row. The header is written even when rows is empty.
func (s CSVSink[Out]) Store(ctx context.Context, rows []Out) error {
	if s.W == nil {
		return fmt.Errorf("csv sink has no writer")
	}
	if s.Row == nil {
		return fmt.Errorf("csv sink has no row renderer")
	}
	cw := csv.NewWriter(s.W)
	if err := cw.Write(s.Header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i, r := range rows {
		if err := ctx.Err(); err != nil {
			return err
		}
		rec := s.Row(r)
		if len(rec) != len(s.Header) {
			return fmt.Errorf("row %d has %d columns, want %d", i, len(rec), len(s.Header))
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("write row %d: %w", i, err)
		}
	}
	cw.Flush()
	return cw.Error()
}
