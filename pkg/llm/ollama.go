package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

// OllamaProvider calls a self-hosted model over the Anthropic-compatible
// messages endpoint (POST {base}/messages).
type OllamaProvider struct {
	mu      sync.Mutex
	baseURL string
	client  *http.Client
	timeout time.Duration
}

// NewOllamaProvider builds the local provider. An empty base URL leaves the
// provider unavailable.
func NewOllamaProvider(baseURL string, timeout time.Duration) *OllamaProvider {
	if timeout == 0 {
		timeout = 300 * time.Second
	}
	return &OllamaProvider{
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: timeout,
	}
}

func (p *OllamaProvider) Name() string {
	return ProviderOllama
}

func (p *OllamaProvider) Available() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.baseURL != ""
}

// SetBaseURL updates the endpoint and invalidates the cached client.
func (p *OllamaProvider) SetBaseURL(baseURL string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	baseURL = strings.TrimRight(baseURL, "/")
	if baseURL == p.baseURL {
		return
	}
	p.baseURL = baseURL
	p.client = nil
}

func (p *OllamaProvider) httpClient() (*http.Client, string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.client == nil {
		p.client = &http.Client{Timeout: p.timeout}
	}
	return p.client, p.baseURL
}

type messagesRequest struct {
	Model     string            `json:"model"`
	MaxTokens int               `json:"max_tokens"`
	System    string            `json:"system,omitempty"`
	Messages  []messagesMessage `json:"messages"`
}

type messagesMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesResponse struct {
	Content []struct {
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

func (p *OllamaProvider) Call(ctx context.Context, req Request) (*Response, error) {
	client, baseURL := p.httpClient()
	if baseURL == "" {
		return nil, &Error{
			Category: CategoryPermanent,
			Code:     "invalid_request",
			Message:  "ollama base url not configured",
			Provider: ProviderOllama,
		}
	}

	body, err := json.Marshal(messagesRequest{
		Model:     req.Model,
		MaxTokens: req.MaxTokens,
		System:    req.System,
		Messages:  []messagesMessage{{Role: "user", Content: req.UserMessage}},
	})
	if err != nil {
		return nil, Classify(ProviderOllama, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/messages", bytes.NewReader(body))
	if err != nil {
		return nil, Classify(ProviderOllama, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, Classify(ProviderOllama, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return nil, Classify(ProviderOllama, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, Classify(ProviderOllama, &httpStatusError{
			StatusCode: resp.StatusCode,
			Body:       truncateBody(respBody),
		})
	}

	var parsed messagesResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, NewPartial(ProviderOllama, "invalid_response",
			fmt.Sprintf("unparseable provider response: %v", err), err)
	}

	text := ""
	for _, block := range parsed.Content {
		text += block.Text
	}
	if text == "" {
		return nil, NewPartial(ProviderOllama, "empty_response", "no text content in response", nil)
	}

	return &Response{
		Text:         text,
		StopReason:   parsed.StopReason,
		Provider:     ProviderOllama,
		Model:        req.Model,
		InputTokens:  parsed.Usage.InputTokens,
		OutputTokens: parsed.Usage.OutputTokens,
		Latency:      time.Since(start),
	}, nil
}

func truncateBody(b []byte) string {
	const max = 1024
	if len(b) > max {
		return string(b[:max])
	}
	return string(b)
}
