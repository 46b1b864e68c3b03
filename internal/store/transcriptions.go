package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/snarg/voxbridge/internal/pipeline"
)

// SaveResult records a completed pipeline result. Implements
// pipeline.ResultStore. Partial results (failed recognition, failed
// summary) are stored as-is; history of failures is as useful as history
// of successes.
func (s *Store) SaveResult(ctx context.Context, res *pipeline.Result) error {
	if s == nil {
		return nil
	}

	var segments []byte
	if len(res.Segments) > 0 {
		b, err := json.Marshal(res.Segments)
		if err != nil {
			return fmt.Errorf("marshal segments: %w", err)
		}
		segments = b
	}

	var summaryType, summaryText *string
	var summarySuccess *bool
	if res.SummaryResult != nil {
		summaryType = &res.SummaryResult.SummaryType
		summaryText = &res.SummaryResult.Summary
		summarySuccess = &res.SummaryResult.Success
	}

	_, err := s.Pool.Exec(ctx, `
		INSERT INTO transcriptions
			(filename, provider, model, success, text, segments, duration_ms,
			 summary_type, summary, summary_success)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		res.UploadedFilename, res.Provider, res.Model, res.Success, res.Text,
		segments, res.DurationMs, summaryType, summaryText, summarySuccess)
	if err != nil {
		return fmt.Errorf("insert transcription: %w", err)
	}
	return nil
}
