package narrative

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/lox/energydash/internal/htmlutil"
	"github.com/lox/energydash/internal/log"
	"github.com/lox/energydash/internal/metrics"
)

const systemPrompt = `You summarise energy meter statistics for a dashboard.
Write two or three short plain sentences. Mention the season with the highest
average power, the latest yearly maximum, and how many days were flagged as
anomalous. Do not use markdown, lists or headings.`

// OpenAI writes the narrative with a chat model.
type OpenAI struct {
	client openai.Client
	model  openai.ChatModel
}

func NewOpenAI(apiKey, model string, httpClient *http.Client) (*OpenAI, error) {
	if apiKey == "" {
		return nil, errors.New("openai api key not set")
	}
	m := openai.ChatModel(model)
	if model == "" {
		m = openai.ChatModelGPT4oMini
	}
	client := openai.NewClient(
		option.WithAPIKey(apiKey),
		option.WithHTTPClient(httpClient),
	)
	return &OpenAI{client: client, model: m}, nil
}

func (o *OpenAI) Generate(ctx context.Context, s Summary) (string, error) {
	payload, err := json.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("encode summary: %w", err)
	}

	resp, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: o.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(string(payload)),
		},
	})
	if err != nil {
		metrics.NarrativesGenerated.WithLabelValues("openai", "error").Inc()
		log.Ctx(ctx).WarnContext(ctx, "narrative generation failed", "error", err)
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		metrics.NarrativesGenerated.WithLabelValues("openai", "empty").Inc()
		return "", errors.New("no completion returned")
	}

	text := htmlutil.ToText(resp.Choices[0].Message.Content)
	if text == "" {
		metrics.NarrativesGenerated.WithLabelValues("openai", "empty").Inc()
		return "", errors.New("empty completion returned")
	}
	metrics.NarrativesGenerated.WithLabelValues("openai", "ok").Inc()
	return text, nil
}
