package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"

	"github.com/vialcheck/vialcheck-cli/internal/model"
	"github.com/vialcheck/vialcheck-cli/internal/resilience"
)

const (
	defaultOllamaModel   = "llama3.2-vision"
	defaultOllamaBaseURL = "http://localhost:11434"
)

// ollamaBackend calls a local Ollama server over its REST API. Free and
// unlimited, so it reports zero cost and batch support.
type ollamaBackend struct {
	http    *http.Client
	baseURL string
	model   string
}

func newOllamaBackend(cfg Config) *ollamaBackend {
	base := cfg.OllamaBaseURL
	if base == "" {
		base = defaultOllamaBaseURL
	}
	m := cfg.Model
	if m == "" {
		m = defaultOllamaModel
	}
	return &ollamaBackend{
		http:    &http.Client{Timeout: 120 * time.Second},
		baseURL: base,
		model:   m,
	}
}

func (b *ollamaBackend) Name() string         { return "ollama/" + b.model }
func (b *ollamaBackend) CostPerCall() float64 { return 0 }
func (b *ollamaBackend) SupportsBatch() bool  { return true }

type ollamaGenerateRequest struct {
	Model  string   `json:"model"`
	Prompt string   `json:"prompt"`
	Images []string `json:"images"`
	Stream bool     `json:"stream"`
}

type ollamaGenerateResponse struct {
	Response string `json:"response"`
}

func (b *ollamaBackend) Extract(ctx context.Context, imagePath string) (*model.ExtractionRecord, error) {
	encoded, _, err := encodeImage(imagePath)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(ollamaGenerateRequest{
		Model:  b.model,
		Prompt: extractionPrompt,
		Images: []string{encoded},
		Stream: false,
	})
	if err != nil {
		return nil, eris.Wrap(err, "extract: marshal ollama request")
	}

	retryCfg := resilience.DefaultRetryConfig()
	retryCfg.OnRetry = resilience.RetryLogger("ollama", "extract")

	body, err := resilience.DoVal(ctx, retryCfg, func(ctx context.Context) ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/api/generate", bytes.NewReader(payload))
		if err != nil {
			return nil, eris.Wrap(err, "create request")
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := b.http.Do(req)
		if err != nil {
			return nil, eris.Wrap(err, "execute request")
		}
		defer resp.Body.Close() //nolint:errcheck

		data, err := io.ReadAll(io.LimitReader(resp.Body, 4*1024*1024))
		if err != nil {
			return nil, eris.Wrap(err, "read response")
		}
		if resp.StatusCode != http.StatusOK {
			return nil, eris.Errorf("ollama status %d: %s", resp.StatusCode, snippet(string(data)))
		}
		return data, nil
	})
	if err != nil {
		return nil, eris.Wrapf(err, "extract: ollama call for %s", imagePath)
	}

	var gen ollamaGenerateResponse
	if err := json.Unmarshal(body, &gen); err != nil {
		return nil, &ParseError{Provider: b.Name(), Snippet: snippet(string(body)), Err: err}
	}

	return decodeRecord(b.Name(), gen.Response)
}
