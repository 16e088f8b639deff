package sink

import (
	"context"
	"errors"
	"sync"
	"time"

	"sjsage522/dealworker/internal/scraper"
	"sjsage522/dealworker/services/publisher"
	"sjsage522/dealworker/services/store"
)

// MockPublisher implements the publisher.Publisher interface for testing
type MockPublisher struct {
	mu         sync.Mutex
	messages   map[string][][]byte
	trimmed    int
	publishErr error
}

// Ensure MockPublisher implements publisher.Publisher
var _ publisher.Publisher = (*MockPublisher)(nil)

func NewMockPublisher() *MockPublisher {
	return &MockPublisher{messages: make(map[string][][]byte)}
}

func (m *MockPublisher) Publish(ctx context.Context, key string, message []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.publishErr != nil {
		return m.publishErr
	}

	// Copy the message to ensure thread safety
	messageCopy := make([]byte, len(message))
	copy(messageCopy, message)

	m.messages[key] = append(m.messages[key], messageCopy)
	return nil
}

func (m *MockPublisher) TrimStreams(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trimmed++
	return nil
}

func (m *MockPublisher) Close() error {
	return nil
}

// MockStore implements store.PropertyStore for testing
type MockStore struct {
	props []store.Property
	err   error
}

// Ensure MockStore implements store.PropertyStore
var _ store.PropertyStore = (*MockStore)(nil)

func (m *MockStore) InsertProperties(ctx context.Context, props []store.Property) ([]store.Property, error) {
	if m.err != nil {
		return nil, m.err
	}
	stored := make([]store.Property, len(props))
	for i, p := range props {
		p.ID = int64(len(m.props) + 1)
		p.CreatedAt = time.Date(2024, time.March, 10, 0, 0, 0, 0, time.UTC)
		m.props = append(m.props, p)
		stored[i] = p
	}
	return stored, nil
}

// MockSink implements Sink for testing
type MockSink struct {
	name      string
	err       error
	calls     int
	snapshots []string
}

// Ensure MockSink implements Sink and SnapshotWriter
var (
	_ Sink           = (*MockSink)(nil)
	_ SnapshotWriter = (*MockSink)(nil)
)

func (m *MockSink) Name() string {
	return m.name
}

func (m *MockSink) Store(ctx context.Context, uncategorized, categorized []scraper.Record) error {
	m.calls++
	return m.err
}

func (m *MockSink) WriteSnapshot(ctx context.Context, html string) error {
	m.snapshots = append(m.snapshots, html)
	return nil
}

// plainSink implements Sink only
type plainSink struct{}

func (plainSink) Name() string { return "plain" }

func (plainSink) Store(ctx context.Context, uncategorized, categorized []scraper.Record) error {
	return nil
}

var errBoom = errors.New("boom")

func quarter(q string) *string { return &q }

func sampleRecords() ([]scraper.Record, []scraper.Record) {
	uncategorized := []scraper.Record{{
		District:        "الملز",
		TransactionType: scraper.SaleMarker,
		Price:           "1,000,000",
		MeterPrice:      "2,500",
		Date:            "15/11/2023",
		Area:            "400",
		Quarter:         quarter("Q234"),
		Shape:           scraper.ShapeBasic,
	}}
	categorized := []scraper.Record{{
		District:        "النرجس",
		Category:        "سكني <فيلا>",
		TransactionType: scraper.SaleMarker,
		Price:           "2,000,000",
		MeterPrice:      "5,000",
		Date:            "xx",
		Area:            "400",
		Shape:           scraper.ShapeCategorized,
	}}
	return uncategorized, categorized
}
