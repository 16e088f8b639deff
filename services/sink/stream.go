package sink

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"sjsage522/dealworker/internal/scraper"
	"sjsage522/dealworker/logger"
	"sjsage522/dealworker/services/publisher"
)

// Stream keys of published records
const (
	KeyUncategorized = "uncategorized"
	KeyCategorized   = "categorized"
)

// StreamSink publishes every record to the Redis streams
type StreamSink struct {
	publisher publisher.Publisher
	log       *logger.Logger
}

// Ensure StreamSink implements Sink
var _ Sink = (*StreamSink)(nil)

// NewStreamSink creates a sink publishing through pub
func NewStreamSink(pub publisher.Publisher) *StreamSink {
	return &StreamSink{publisher: pub, log: logger.ForSink("stream")}
}

func (s *StreamSink) Name() string {
	return "stream"
}

// Store publishes the records one message each, then trims the streams
func (s *StreamSink) Store(ctx context.Context, uncategorized, categorized []scraper.Record) error {
	var errs []error
	published := 0
	for _, group := range []struct {
		key     string
		records []scraper.Record
	}{
		{KeyUncategorized, uncategorized},
		{KeyCategorized, categorized},
	} {
		for _, r := range group.records {
			data, err := json.Marshal(r)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			if err := s.publisher.Publish(ctx, group.key, data); err != nil {
				errs = append(errs, err)
				continue
			}
			published++
		}
	}

	if err := s.publisher.TrimStreams(ctx); err != nil {
		errs = append(errs, fmt.Errorf("failed to trim streams: %w", err))
	}

	s.log.Info().Int("published", published).Int("failed", len(errs)).Msg("Records published")
	return errors.Join(errs...)
}
