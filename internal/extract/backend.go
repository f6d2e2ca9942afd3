// Package extract turns certificate images into structured records via
// vision-capable LLM backends. All backends share one extraction prompt and
// one response contract; which backend runs is purely a configuration
// choice.
package extract

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/vialcheck/vialcheck-cli/internal/model"
)

// Backend is the capability set every vision extraction provider
// implements. Extract returns a typed *ParseError when the provider
// responds with something that is not the agreed JSON shape.
type Backend interface {
	Extract(ctx context.Context, imagePath string) (*model.ExtractionRecord, error)
	Name() string
	CostPerCall() float64
	SupportsBatch() bool
}

// Config selects and configures a backend.
type Config struct {
	Provider        string // openai | anthropic | gemini | ollama
	Model           string // provider default used when empty
	OpenAIAPIKey    string
	AnthropicAPIKey string
	GoogleAPIKey    string
	OllamaBaseURL   string
}

// New builds the configured backend.
func New(ctx context.Context, cfg Config) (Backend, error) {
	switch strings.ToLower(cfg.Provider) {
	case "openai":
		return newOpenAIBackend(cfg)
	case "anthropic":
		return newAnthropicBackend(cfg)
	case "gemini":
		return newGeminiBackend(ctx, cfg)
	case "ollama":
		return newOllamaBackend(cfg), nil
	default:
		return nil, eris.Errorf("extract: unsupported provider %q", cfg.Provider)
	}
}

// ParseError reports a provider response that could not be decoded into an
// ExtractionRecord.
type ParseError struct {
	Provider string
	Snippet  string
	Err      error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("extract: %s returned unparseable response: %v (snippet: %q)", e.Provider, e.Err, e.Snippet)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// EstimateCost returns the estimated spend for extracting n images with the
// given backend.
func EstimateCost(b Backend, n int) float64 {
	return b.CostPerCall() * float64(n)
}

// readImage reads an image file and returns its bytes and MIME type.
func readImage(imagePath string) ([]byte, string, error) {
	data, err := os.ReadFile(imagePath)
	if err != nil {
		return nil, "", eris.Wrapf(err, "extract: read image %s", imagePath)
	}
	mediaType := "image/jpeg"
	if strings.EqualFold(filepath.Ext(imagePath), ".png") {
		mediaType = "image/png"
	}
	return data, mediaType, nil
}

// encodeImage reads an image file and returns its base64 payload and MIME
// type.
func encodeImage(imagePath string) (string, string, error) {
	data, mediaType, err := readImage(imagePath)
	if err != nil {
		return "", "", err
	}
	return base64.StdEncoding.EncodeToString(data), mediaType, nil
}
