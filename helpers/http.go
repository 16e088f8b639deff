package helpers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/html/charset"
)

var (
	// HTTP client with timeout
	client = &http.Client{
		Timeout: 60 * time.Second,
	}
)

// StatusError is returned when a collaborator answers with a non-200 status
type StatusError struct {
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("post %s unexpected status code: %d", e.URL, e.StatusCode)
}

// PostJSON sends payload as a JSON body, converts the response to UTF-8 (if needed)
// and decodes it into out.
func PostJSON(ctx context.Context, url string, payload, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to post to %s: %w", url, err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return &StatusError{URL: url, StatusCode: resp.StatusCode, Body: string(bodyBytes)}
	}

	utf8Body, err := toUTF8(bodyBytes, resp.Header.Get("Content-Type"))
	if err != nil {
		return err
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(utf8Body, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// toUTF8 converts the body only when Content-Type names a non UTF-8 charset.
// JSON without a charset parameter is UTF-8.
func toUTF8(bodyBytes []byte, contentType string) ([]byte, error) {
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return bodyBytes, nil
	}
	label := strings.ToLower(strings.TrimSpace(params["charset"]))
	if label == "" || label == "utf-8" || label == "utf8" {
		return bodyBytes, nil
	}

	utf8Reader, err := charset.NewReaderLabel(label, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("unsupported response charset %q: %w", label, err)
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, utf8Reader); err != nil {
		return nil, fmt.Errorf("failed to read converted UTF-8 body: %w", err)
	}
	return buf.Bytes(), nil
}
