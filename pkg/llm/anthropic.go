package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"golang.org/x/time/rate"
)

// AnthropicProvider calls the hosted Anthropic messages API.
type AnthropicProvider struct {
	client  anthropic.Client
	apiKey  string
	limiter *rate.Limiter
}

// NewAnthropicProvider builds the hosted provider. An empty API key leaves
// the provider configured but unavailable.
func NewAnthropicProvider(apiKey string, requestsPerMin int) *AnthropicProvider {
	if requestsPerMin <= 0 {
		requestsPerMin = 60
	}
	return &AnthropicProvider{
		client:  anthropic.NewClient(option.WithAPIKey(apiKey)),
		apiKey:  apiKey,
		limiter: rate.NewLimiter(rate.Limit(float64(requestsPerMin)/60.0), requestsPerMin),
	}
}

func (p *AnthropicProvider) Name() string {
	return ProviderAnthropic
}

func (p *AnthropicProvider) Available() bool {
	return p.apiKey != ""
}

func (p *AnthropicProvider) Call(ctx context.Context, req Request) (*Response, error) {
	if !p.Available() {
		return nil, &Error{
			Category: CategoryPermanent,
			Code:     "authentication_error",
			Message:  "anthropic api key not configured",
			Provider: ProviderAnthropic,
		}
	}

	if err := p.limiter.Wait(ctx); err != nil {
		return nil, Classify(ProviderAnthropic, err)
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(req.Model),
		MaxTokens: int64(req.MaxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.UserMessage)),
		},
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}
	if req.Temperature > 0 {
		params.Temperature = anthropic.Float(req.Temperature)
	}

	start := time.Now()
	message, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return nil, Classify(ProviderAnthropic, err)
	}

	text := ""
	for _, block := range message.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}
	if text == "" {
		return nil, NewPartial(ProviderAnthropic, "empty_response",
			fmt.Sprintf("no text content in response (stop_reason=%s)", message.StopReason), nil)
	}

	return &Response{
		Text:         text,
		StopReason:   string(message.StopReason),
		Provider:     ProviderAnthropic,
		Model:        req.Model,
		InputTokens:  int(message.Usage.InputTokens),
		OutputTokens: int(message.Usage.OutputTokens),
		Latency:      time.Since(start),
	}, nil
}
