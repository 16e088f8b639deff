package helpers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostJSON(t *testing.T) {
	// Create a test server that echoes the district back
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Contains(t, r.Header.Get("Content-Type"), "application/json")

		var in []map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&in))

		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode([]map[string]string{{"district": in[0]["DISTRICT"]}})
	}))
	defer server.Close()

	var out []map[string]string
	err := PostJSON(context.Background(), server.URL, []map[string]string{{"DISTRICT": "الملز"}}, &out)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "الملز", out[0]["district"])
}

func TestPostJSONNonUTF8(t *testing.T) {
	// Create a test server that returns a non-UTF8 response
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=iso-8859-1")
		w.WriteHeader(http.StatusOK)
		// "café" in ISO-8859-1 encoding
		w.Write([]byte("{\"name\":\"caf\xe9\"}"))
	}))
	defer server.Close()

	var out map[string]string
	err := PostJSON(context.Background(), server.URL, map[string]string{}, &out)
	require.NoError(t, err)
	assert.Equal(t, "café", out["name"])
}

func TestPostJSONLongASCIIPrefixStaysUTF8(t *testing.T) {
	// The Arabic text starts well after the first KiB of the body
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode([]map[string]string{
			{"note": strings.Repeat("a", 1100)},
			{"district": "الملز"},
		})
	}))
	defer server.Close()

	var out []map[string]string
	err := PostJSON(context.Background(), server.URL, nil, &out)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "الملز", out[1]["district"])
}

func TestPostJSONError(t *testing.T) {
	// Create a test server that returns an error
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("model not loaded"))
	}))
	defer server.Close()

	err := PostJSON(context.Background(), server.URL, nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status code: 500")

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, "model not loaded", statusErr.Body)
}

func TestPostJSONCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := PostJSON(ctx, "http://127.0.0.1:1/classify", nil, nil)
	assert.Error(t, err)
}
