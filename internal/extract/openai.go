package extract

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"
	openai "github.com/sashabaranov/go-openai"

	"github.com/vialcheck/vialcheck-cli/internal/model"
	"github.com/vialcheck/vialcheck-cli/internal/resilience"
)

const defaultOpenAIModel = "gpt-4o"

type openaiBackend struct {
	client *openai.Client
	model  string
}

func newOpenAIBackend(cfg Config) (*openaiBackend, error) {
	if cfg.OpenAIAPIKey == "" {
		return nil, eris.New("extract: openai api key not configured")
	}
	m := cfg.Model
	if m == "" {
		m = defaultOpenAIModel
	}
	return &openaiBackend{
		client: openai.NewClient(cfg.OpenAIAPIKey),
		model:  m,
	}, nil
}

func (b *openaiBackend) Name() string         { return "openai/" + b.model }
func (b *openaiBackend) CostPerCall() float64 { return 0.0125 }
func (b *openaiBackend) SupportsBatch() bool  { return true }

func (b *openaiBackend) Extract(ctx context.Context, imagePath string) (*model.ExtractionRecord, error) {
	encoded, mediaType, err := encodeImage(imagePath)
	if err != nil {
		return nil, err
	}

	req := openai.ChatCompletionRequest{
		Model:       b.model,
		MaxTokens:   2000,
		Temperature: 0,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{
						Type: openai.ChatMessagePartTypeText,
						Text: extractionPrompt,
					},
					{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL: fmt.Sprintf("data:%s;base64,%s", mediaType, encoded),
						},
					},
				},
			},
		},
	}

	retryCfg := resilience.DefaultRetryConfig()
	retryCfg.OnRetry = resilience.RetryLogger("openai", "extract")

	resp, err := resilience.DoVal(ctx, retryCfg, func(ctx context.Context) (openai.ChatCompletionResponse, error) {
		return b.client.CreateChatCompletion(ctx, req)
	})
	if err != nil {
		return nil, eris.Wrapf(err, "extract: openai call for %s", imagePath)
	}
	if len(resp.Choices) == 0 {
		return nil, &ParseError{Provider: b.Name(), Err: eris.New("no choices in response")}
	}

	return decodeRecord(b.Name(), resp.Choices[0].Message.Content)
}
