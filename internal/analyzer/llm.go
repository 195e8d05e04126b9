package analyzer

import (
	"context"
	"errors"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// llmTimeout bounds one chat-completion attempt. A timeout fails the
// attempt, not the engine.
const llmTimeout = 15 * time.Second

// ErrModelUnavailable is returned when every model in the chain failed.
var ErrModelUnavailable = errors.New("analyzer: all models unavailable")

// ChatCaller is the slice of the OpenAI-compatible client the engine
// uses. *openai.Client satisfies it.
type ChatCaller interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// NewChatClient builds a chat client for the configured endpoint. An
// empty base URL keeps the library default.
func NewChatClient(apiKey, baseURL string) *openai.Client {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return openai.NewClientWithConfig(cfg)
}

// llmResult is one successful chat completion.
type llmResult struct {
	Model     string
	Raw       string
	LatencyMs int64
	TokensIn  int
	TokensOut int
	Cost      float64
}

// callOnce runs a single chat completion against one model with the
// per-attempt timeout.
func (e *Engine) callOnce(ctx context.Context, model, prompt string) (*llmResult, error) {
	ctx, cancel := context.WithTimeout(ctx, llmTimeout)
	defer cancel()

	start := time.Now()
	resp, err := e.chat.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		MaxTokens:   e.cfg.MaxTokens,
		Temperature: e.cfg.Temperature,
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("empty completion")
	}
	in, out := resp.Usage.PromptTokens, resp.Usage.CompletionTokens
	return &llmResult{
		Model:     model,
		Raw:       resp.Choices[0].Message.Content,
		LatencyMs: time.Since(start).Milliseconds(),
		TokensIn:  in,
		TokensOut: out,
		Cost:      estimateCost(model, in, out),
	}, nil
}

// modelPricing maps model prefixes to per-million-token USD rates.
var modelPricing = []struct {
	prefix  string
	inPerM  float64
	outPerM float64
}{
	{"gpt-4o-mini", 0.15, 0.60},
	{"gpt-4o", 2.50, 10.00},
	{"gpt-4.1-mini", 0.40, 1.60},
	{"gpt-4.1", 2.00, 8.00},
}

func estimateCost(model string, tokensIn, tokensOut int) float64 {
	inRate, outRate := 0.50, 1.50
	for _, p := range modelPricing {
		if strings.HasPrefix(model, p.prefix) {
			inRate, outRate = p.inPerM, p.outPerM
			break
		}
	}
	return (float64(tokensIn)*inRate + float64(tokensOut)*outRate) / 1e6
}
