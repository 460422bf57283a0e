package llm

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orderbyvoice/internal/common/config"
	"orderbyvoice/internal/common/errors"
	"orderbyvoice/internal/common/logger"
	"orderbyvoice/internal/extract"
)

func testConfig(baseURL string) config.GenAIConfig {
	return config.GenAIConfig{
		Enabled:    true,
		BaseURL:    baseURL,
		Timeout:    2000,
		MaxRetries: 2,
	}
}

func newTestClient(t *testing.T, cfg config.GenAIConfig) *Client {
	client, err := NewClient(cfg, logger.NewTestLogger(t))
	require.NoError(t, err)
	return client
}

func TestExtractInfoSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/ai/extract-customer-info", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		w.Write([]byte(`{"nome":"João Silva","telefone":"11987654321","endereco":"Rua A, 1"}`))
	}))
	defer server.Close()

	client := newTestClient(t, testConfig(server.URL))
	info, err := client.ExtractInfo(context.Background(), "meu nome é joão silva")
	require.NoError(t, err)
	assert.Equal(t, "João Silva", info.Name)
	assert.Equal(t, "11987654321", info.Phone)
	assert.Equal(t, "Rua A, 1", info.Address)
}

func TestExtractInfoPartialFields(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"telefone":"11987654321"}`))
	}))
	defer server.Close()

	client := newTestClient(t, testConfig(server.URL))
	info, err := client.ExtractInfo(context.Background(), "11987654321")
	require.NoError(t, err)
	assert.Empty(t, info.Name)
	assert.Equal(t, "11987654321", info.Phone)
}

// Any schema violation discards the whole response.
func TestExtractInfoFailsClosed(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "malformed json", body: `{"nome": "Jo`},
		{name: "wrong field type", body: `{"nome": 42}`},
		{name: "invalid phone format", body: `{"telefone": "abc123"}`},
		{name: "unexpected extra field", body: `{"nome":"Ana","comando":"rm -rf /"}`},
		{name: "array instead of object", body: `[{"nome":"Ana"}]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			client := newTestClient(t, testConfig(server.URL))
			_, err := client.ExtractInfo(context.Background(), "oi")
			require.Error(t, err)
			assert.True(t, errors.IsCode(err, errors.ErrCodeExtractionFailed))
		})
	}
}

func TestExtractInfoTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	cfg := testConfig(server.URL)
	cfg.Timeout = 100
	cfg.MaxRetries = 0

	client := newTestClient(t, cfg)
	_, err := client.ExtractInfo(context.Background(), "oi")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeExtractionTimeout))
}

func TestExtractInfoRetriesOnServerError(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{"nome":"Ana"}`))
	}))
	defer server.Close()

	client := newTestClient(t, testConfig(server.URL))
	info, err := client.ExtractInfo(context.Background(), "oi")
	require.NoError(t, err)
	assert.Equal(t, "Ana", info.Name)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestExtractorFallsBackToRegex(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	cfg := testConfig(server.URL)
	cfg.MaxRetries = 0

	client := newTestClient(t, cfg)
	extractor := NewExtractor(client, extract.New(extract.Config{}), logger.NewTestLogger(t))

	info, err := extractor.Extract(context.Background(), "me chamo Ana, telefone 11987654321")
	require.NoError(t, err)
	assert.Equal(t, "Ana", info.Name)
	assert.Equal(t, "11987654321", info.Phone)
}

func TestExtractorWithoutClientUsesRegex(t *testing.T) {
	extractor := NewExtractor(nil, extract.New(extract.Config{}), logger.NewTestLogger(t))

	info, err := extractor.Extract(context.Background(), "sou o Pedro")
	require.NoError(t, err)
	assert.Equal(t, "Pedro", info.Name)
}
