// Package llm calls an external GenAI service to extract customer
// fields from utterances. Responses are validated against a strict JSON
// schema and rejected on any violation; a rejected or timed-out call is
// never fatal, callers fall back to the in-process extractor.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/xeipuuv/gojsonschema"

	"orderbyvoice/internal/common/config"
	"orderbyvoice/internal/common/errors"
	"orderbyvoice/internal/common/logger"
	"orderbyvoice/internal/extract"
)

// extractionSchema is the contract the service must meet. additionalProperties
// is closed so the response can never smuggle unexpected payload.
const extractionSchema = `{
	"type": "object",
	"properties": {
		"nome":     {"type": "string", "maxLength": 200},
		"telefone": {"type": "string", "pattern": "^[0-9]{10,11}$"},
		"endereco": {"type": "string", "maxLength": 500}
	},
	"additionalProperties": false
}`

// Client is the HTTP client for the extraction endpoint. Calls are
// bounded by the configured timeout and retried with exponential
// backoff on transient failures.
type Client struct {
	cfg    config.GenAIConfig
	client *http.Client
	schema *gojsonschema.Schema
	log    logger.Logger
}

func NewClient(cfg config.GenAIConfig, log logger.Logger) (*Client, error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(extractionSchema))
	if err != nil {
		return nil, fmt.Errorf("compile extraction schema: %w", err)
	}
	return &Client{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.TimeoutDuration()},
		schema: schema,
		log:    log,
	}, nil
}

// ExtractInfo posts the utterance to the extraction endpoint and returns
// the validated fields. Timeouts come back as EXTRACTION_TIMEOUT, every
// other failure including schema violations as EXTRACTION_FAILED.
func (c *Client) ExtractInfo(ctx context.Context, utterance string) (extract.Info, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.TimeoutDuration())
	defer cancel()

	requestBody := map[string]interface{}{
		"utterance": utterance,
	}
	if c.cfg.Model != "" {
		requestBody["model"] = c.cfg.Model
	}
	payload, _ := json.Marshal(requestBody)

	var resp *http.Response
	var lastErr error

	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(100*(1<<(attempt-1))) * time.Millisecond
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return extract.Info{}, errors.NewExtractionTimeoutError("genai")
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost,
			c.cfg.BaseURL+"/api/ai/extract-customer-info", bytes.NewBuffer(payload))
		if err != nil {
			return extract.Info{}, errors.NewExtractionFailedError(err.Error())
		}
		req.Header.Set("Content-Type", "application/json")
		if c.cfg.APIKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
		}

		resp, lastErr = c.client.Do(req)

		if ctx.Err() != nil ||
			stderrors.Is(lastErr, context.DeadlineExceeded) ||
			stderrors.Is(lastErr, context.Canceled) {
			return extract.Info{}, errors.NewExtractionTimeoutError("genai")
		}

		if lastErr == nil {
			if resp.StatusCode == http.StatusOK {
				break
			}
			resp.Body.Close()
			lastErr = fmt.Errorf("status %d", resp.StatusCode)
			resp = nil
		}
	}

	if lastErr != nil {
		return extract.Info{}, errors.NewExtractionFailedError(lastErr.Error())
	}
	if resp == nil {
		return extract.Info{}, errors.NewExtractionFailedError("no successful response after retries")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return extract.Info{}, errors.NewExtractionFailedError(err.Error())
	}

	return c.validate(body)
}

// validate enforces the response schema before any field is trusted. A
// response that does not validate is discarded whole.
func (c *Client) validate(body []byte) (extract.Info, error) {
	result, err := c.schema.Validate(gojsonschema.NewBytesLoader(body))
	if err != nil {
		return extract.Info{}, errors.NewExtractionFailedError(fmt.Sprintf("validation error: %v", err))
	}
	if !result.Valid() {
		errs := make([]string, len(result.Errors()))
		for i, desc := range result.Errors() {
			errs[i] = desc.String()
		}
		return extract.Info{}, errors.NewExtractionFailedError(fmt.Sprintf("schema violations: %v", errs))
	}

	var info extract.Info
	if err := json.Unmarshal(body, &info); err != nil {
		return extract.Info{}, errors.NewExtractionFailedError(err.Error())
	}
	return info, nil
}
