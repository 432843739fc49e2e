package app

import (
	"context"

	"github.com/atd-data-tech/socrata-metadata-pub/internal/catalog"
	"github.com/atd-data-tech/socrata-metadata-pub/pkg/socrata"
)

// Replacer overwrites the contents of a dataset.
type Replacer interface {
	Replace(ctx context.Context, resourceID string, rows any) (socrata.ReplaceResult, error)
}

// ReplaceSink publishes records by fully replacing one dataset.
type ReplaceSink struct {
	Replacer   Replacer
	ResourceID string

	// Result is the response of the last successful Store.
	Result socrata.ReplaceResult
}

func (s *ReplaceSink) Store(ctx context.Context, rows []catalog.OutputRecord) error {
	if rows == nil {
		rows = []catalog.OutputRecord{}
	}
	res, err := s.Replacer.Replace(ctx, s.ResourceID, rows)
	if err != nil {
		return err
	}
	s.Result = res
	return nil
}
