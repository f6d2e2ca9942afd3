package extract

import (
	"context"

	"github.com/rotisserie/eris"
	genai "google.golang.org/genai"

	"github.com/vialcheck/vialcheck-cli/internal/model"
	"github.com/vialcheck/vialcheck-cli/internal/resilience"
)

const defaultGeminiModel = "gemini-2.0-flash-exp"

type geminiBackend struct {
	client *genai.Client
	model  string
}

func newGeminiBackend(ctx context.Context, cfg Config) (*geminiBackend, error) {
	if cfg.GoogleAPIKey == "" {
		return nil, eris.New("extract: google api key not configured")
	}
	cli, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.GoogleAPIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, eris.Wrap(err, "extract: create gemini client")
	}
	m := cfg.Model
	if m == "" {
		m = defaultGeminiModel
	}
	return &geminiBackend{client: cli, model: m}, nil
}

func (b *geminiBackend) Name() string         { return "gemini/" + b.model }
func (b *geminiBackend) CostPerCall() float64 { return 0 }
func (b *geminiBackend) SupportsBatch() bool  { return false }

func (b *geminiBackend) Extract(ctx context.Context, imagePath string) (*model.ExtractionRecord, error) {
	raw, mediaType, err := readImage(imagePath)
	if err != nil {
		return nil, err
	}

	contents := []*genai.Content{{
		Parts: []*genai.Part{
			{Text: extractionPrompt},
			{InlineData: &genai.Blob{MIMEType: mediaType, Data: raw}},
		},
	}}

	retryCfg := resilience.DefaultRetryConfig()
	retryCfg.OnRetry = resilience.RetryLogger("gemini", "extract")

	resp, err := resilience.DoVal(ctx, retryCfg, func(ctx context.Context) (*genai.GenerateContentResponse, error) {
		return b.client.Models.GenerateContent(ctx, b.model, contents,
			&genai.GenerateContentConfig{ResponseMIMEType: "application/json"},
		)
	})
	if err != nil {
		return nil, eris.Wrapf(err, "extract: gemini call for %s", imagePath)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return nil, &ParseError{Provider: b.Name(), Err: eris.New("empty response")}
	}

	return decodeRecord(b.Name(), resp.Candidates[0].Content.Parts[0].Text)
}
