package llm

import (
	"context"

	"orderbyvoice/internal/common/logger"
	"orderbyvoice/internal/extract"
)

// Extractor tries the GenAI client first and falls back to the regex
// extractor on any failure. The fallback makes external outages
// invisible to the dialog; at worst extraction quality degrades to the
// regex baseline.
type Extractor struct {
	client   *Client
	fallback *extract.Extractor
	log      logger.Logger
}

func NewExtractor(client *Client, fallback *extract.Extractor, log logger.Logger) *Extractor {
	return &Extractor{client: client, fallback: fallback, log: log}
}

func (e *Extractor) Extract(ctx context.Context, utterance string) (extract.Info, error) {
	if e.client != nil {
		info, err := e.client.ExtractInfo(ctx, utterance)
		if err == nil {
			return info, nil
		}
		e.log.WithError(err).Warn("genai extraction failed, using regex fallback", nil)
	}
	return e.fallback.Extract(utterance), nil
}
