package sink

import (
	"context"
	"encoding/json"
	"fmt"

	"sjsage522/dealworker/internal/scraper"
	"sjsage522/dealworker/logger"
	"sjsage522/dealworker/services/classifier"
	"sjsage522/dealworker/services/publisher"
	"sjsage522/dealworker/services/store"
)

// KeyAnomalyAlert is the stream key of anomaly notifications
const KeyAnomalyAlert = "anomaly_alert"

// Classifier is the external classification and anomaly service
type Classifier interface {
	Classify(ctx context.Context, records []scraper.Record) ([]json.RawMessage, error)
	DetectAnomalies(ctx context.Context, properties []json.RawMessage) ([]classifier.Assessment, error)
}

// Alert is published when a run contains anomalous properties
type Alert struct {
	Type       string           `json:"type"`
	Count      int              `json:"count"`
	Message    string           `json:"message"`
	Properties []store.Property `json:"properties"`
}

// AnomalySink classifies uncategorized records, runs anomaly detection over all
// records and stores the assessed properties
type AnomalySink struct {
	classifier Classifier
	store      store.PropertyStore
	publisher  publisher.Publisher
	log        *logger.Logger
}

// Ensure AnomalySink implements Sink
var _ Sink = (*AnomalySink)(nil)

// NewAnomalySink creates the sink; pub may be nil to disable alerts
func NewAnomalySink(c Classifier, s store.PropertyStore, pub publisher.Publisher) *AnomalySink {
	return &AnomalySink{
		classifier: c,
		store:      s,
		publisher:  pub,
		log:        logger.ForSink("anomaly"),
	}
}

func (s *AnomalySink) Name() string {
	return "anomaly"
}

func (s *AnomalySink) Store(ctx context.Context, uncategorized, categorized []scraper.Record) error {
	if len(uncategorized) == 0 && len(categorized) == 0 {
		return nil
	}

	var classified []json.RawMessage
	if len(uncategorized) > 0 {
		var err error
		classified, err = s.classifier.Classify(ctx, uncategorized)
		if err != nil {
			return err
		}
	}

	combined, err := classifier.Combine(classified, categorized)
	if err != nil {
		return fmt.Errorf("failed to combine records: %w", err)
	}

	assessments, err := s.classifier.DetectAnomalies(ctx, combined)
	if err != nil {
		return err
	}

	stored, err := s.store.InsertProperties(ctx, toProperties(assessments))
	if err != nil {
		return err
	}

	var anomalies []store.Property
	for _, p := range stored {
		if p.IsAnomaly {
			anomalies = append(anomalies, p)
		}
	}

	s.log.Info().
		Int("stored", len(stored)).
		Int("anomalies", len(anomalies)).
		Msg("Properties assessed")

	if len(anomalies) == 0 || s.publisher == nil {
		return nil
	}
	return s.alert(ctx, anomalies)
}

func (s *AnomalySink) alert(ctx context.Context, anomalies []store.Property) error {
	data, err := json.Marshal(Alert{
		Type:       KeyAnomalyAlert,
		Count:      len(anomalies),
		Message:    fmt.Sprintf("Anomaly Alert: %d Properties Detected", len(anomalies)),
		Properties: anomalies,
	})
	if err != nil {
		return err
	}
	if err := s.publisher.Publish(ctx, KeyAnomalyAlert, data); err != nil {
		return fmt.Errorf("failed to publish anomaly alert: %w", err)
	}
	s.log.Warn().Int("count", len(anomalies)).Msg("Anomaly alert published")
	return nil
}

func toProperties(assessments []classifier.Assessment) []store.Property {
	props := make([]store.Property, 0, len(assessments))
	for _, a := range assessments {
		props = append(props, store.Property{
			DealNumber:   optional(a.DealNumber),
			PropertyType: a.PropertyType,
			Location:     a.Place(),
			Price:        float64(a.Price),
			Area:         float64(a.Area),
			Category:     optional(a.Category),
			IsAnomaly:    a.IsAnomaly,
		})
	}
	return props
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
