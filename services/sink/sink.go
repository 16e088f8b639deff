package sink

import (
	"context"
	"errors"

	"sjsage522/dealworker/internal/scraper"
	"sjsage522/dealworker/logger"
	apperrors "sjsage522/dealworker/pkg/errors"
)

// Sink receives the records of one run
type Sink interface {
	// Name identifies the sink in logs and errors
	Name() string

	// Store delivers both record lists
	Store(ctx context.Context, uncategorized, categorized []scraper.Record) error
}

// SnapshotWriter is implemented by sinks that keep the page markup of an empty run
type SnapshotWriter interface {
	WriteSnapshot(ctx context.Context, html string) error
}

// Multi fans out to every configured sink
type Multi struct {
	sinks []Sink
	log   *logger.Logger
}

// Ensure Multi implements Sink and SnapshotWriter
var (
	_ Sink           = (*Multi)(nil)
	_ SnapshotWriter = (*Multi)(nil)
)

// NewMulti creates a fan-out over sinks
func NewMulti(sinks ...Sink) *Multi {
	return &Multi{
		sinks: sinks,
		log:   logger.ForSink("multi"),
	}
}

func (m *Multi) Name() string {
	return "multi"
}

// Len returns the number of sinks
func (m *Multi) Len() int {
	return len(m.sinks)
}

// Store delivers to every sink. One failing sink does not stop the others.
func (m *Multi) Store(ctx context.Context, uncategorized, categorized []scraper.Record) error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Store(ctx, uncategorized, categorized); err != nil {
			m.log.Error().Err(err).Str("target", s.Name()).Msg("Sink failed")
			errs = append(errs, apperrors.NewSink(s.Name(), "store failed", err))
			continue
		}
		m.log.Debug().Str("target", s.Name()).Msg("Sink stored records")
	}
	return errors.Join(errs...)
}

// WriteSnapshot passes html to every sink that keeps snapshots
func (m *Multi) WriteSnapshot(ctx context.Context, html string) error {
	var errs []error
	for _, s := range m.sinks {
		w, ok := s.(SnapshotWriter)
		if !ok {
			continue
		}
		if err := w.WriteSnapshot(ctx, html); err != nil {
			errs = append(errs, apperrors.NewSink(s.Name(), "snapshot failed", err))
		}
	}
	return errors.Join(errs...)
}
