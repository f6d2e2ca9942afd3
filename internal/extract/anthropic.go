package extract

import (
	"context"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rotisserie/eris"

	"github.com/vialcheck/vialcheck-cli/internal/model"
	"github.com/vialcheck/vialcheck-cli/internal/resilience"
)

const defaultAnthropicModel = "claude-3-5-sonnet-20241022"

type anthropicBackend struct {
	client sdk.Client
	model  string
}

func newAnthropicBackend(cfg Config) (*anthropicBackend, error) {
	if cfg.AnthropicAPIKey == "" {
		return nil, eris.New("extract: anthropic api key not configured")
	}
	m := cfg.Model
	if m == "" {
		m = defaultAnthropicModel
	}
	return &anthropicBackend{
		client: sdk.NewClient(option.WithAPIKey(cfg.AnthropicAPIKey)),
		model:  m,
	}, nil
}

func (b *anthropicBackend) Name() string         { return "anthropic/" + b.model }
func (b *anthropicBackend) CostPerCall() float64 { return 0.015 }
func (b *anthropicBackend) SupportsBatch() bool  { return true }

func (b *anthropicBackend) Extract(ctx context.Context, imagePath string) (*model.ExtractionRecord, error) {
	encoded, mediaType, err := encodeImage(imagePath)
	if err != nil {
		return nil, err
	}

	retryCfg := resilience.DefaultRetryConfig()
	retryCfg.OnRetry = resilience.RetryLogger("anthropic", "extract")

	msg, err := resilience.DoVal(ctx, retryCfg, func(ctx context.Context) (*sdk.Message, error) {
		return b.client.Messages.New(ctx, sdk.MessageNewParams{
			Model:     sdk.Model(b.model),
			MaxTokens: 2000,
			Messages: []sdk.MessageParam{
				sdk.NewUserMessage(
					sdk.NewImageBlockBase64(mediaType, encoded),
					sdk.NewTextBlock(extractionPrompt),
				),
			},
		})
	})
	if err != nil {
		return nil, eris.Wrapf(err, "extract: anthropic call for %s", imagePath)
	}

	var text string
	for _, block := range msg.Content {
		if block.Type == "text" {
			text = block.Text
			break
		}
	}
	if text == "" {
		return nil, &ParseError{Provider: b.Name(), Err: eris.New("empty response")}
	}

	return decodeRecord(b.Name(), text)
}
