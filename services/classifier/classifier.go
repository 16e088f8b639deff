package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"sjsage522/dealworker/helpers"
	"sjsage522/dealworker/internal/scraper"
)

// Number accepts a JSON number or a formatted numeric string such as "1,250,000"
type Number float64

func (n *Number) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*n = 0
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if s == "" {
			*n = 0
			return nil
		}
		f, err := helpers.ParseNumber(s)
		if err != nil {
			return fmt.Errorf("invalid number %q: %w", s, err)
		}
		*n = Number(f)
		return nil
	}
	f, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return fmt.Errorf("invalid number %s: %w", data, err)
	}
	*n = Number(f)
	return nil
}

// Assessment is one property returned by the anomaly service
type Assessment struct {
	DealNumber   string `json:"deal_number,omitempty"`
	PropertyType string `json:"property_type"`
	District     string `json:"district"`
	Location     string `json:"location,omitempty"`
	Category     string `json:"category,omitempty"`
	Price        Number `json:"price"`
	Area         Number `json:"area"`
	IsAnomaly    bool   `json:"is_anomaly"`
}

// Place returns the location of the property, falling back to the district
func (a Assessment) Place() string {
	if a.Location != "" {
		return a.Location
	}
	return a.District
}

// Client talks to the external classification and anomaly services
type Client struct {
	classifyURL string
	anomalyURL  string
}

// NewClient creates a client for the two service endpoints
func NewClient(classifyURL, anomalyURL string) *Client {
	return &Client{
		classifyURL: classifyURL,
		anomalyURL:  anomalyURL,
	}
}

// Classify sends uncategorized records and returns them with a category attached.
// The items are kept opaque because they are forwarded unchanged.
func (c *Client) Classify(ctx context.Context, records []scraper.Record) ([]json.RawMessage, error) {
	if records == nil {
		records = []scraper.Record{}
	}
	var classified []json.RawMessage
	if err := helpers.PostJSON(ctx, c.classifyURL, records, &classified); err != nil {
		return nil, fmt.Errorf("classify: %w", err)
	}
	return classified, nil
}

// DetectAnomalies sends the combined property list and returns one assessment per property
func (c *Client) DetectAnomalies(ctx context.Context, properties []json.RawMessage) ([]Assessment, error) {
	if properties == nil {
		properties = []json.RawMessage{}
	}
	var assessments []Assessment
	if err := helpers.PostJSON(ctx, c.anomalyURL, properties, &assessments); err != nil {
		return nil, fmt.Errorf("detect anomalies: %w", err)
	}
	return assessments, nil
}

// Combine appends the categorized records to the classified list
func Combine(classified []json.RawMessage, categorized []scraper.Record) ([]json.RawMessage, error) {
	combined := make([]json.RawMessage, 0, len(classified)+len(categorized))
	combined = append(combined, classified...)
	for _, r := range categorized {
		data, err := json.Marshal(r)
		if err != nil {
			return nil, err
		}
		combined = append(combined, data)
	}
	return combined, nil
}
