package ai

import (
	"context"
	"errors"
	"strings"
)

// OllamaClient calls a local Ollama runtime through /api/chat.
type OllamaClient struct {
	t    transport
	host string
}

// NewOllamaClient targets c.Host, defaulting to http://127.0.0.1:11434.
func NewOllamaClient(c RuntimeConfig) *OllamaClient {
	host := strings.TrimRight(c.Host, "/")
	if host == "" {
		host = "http://127.0.0.1:11434"
	}
	t := newTransport(host, c)
	t.modelOn404 = true
	t.parseError = func(e *APIError, raw map[string]any) {
		if msg, ok := raw["error"].(string); ok {
			e.Message = msg
		} else if msg, ok := raw["message"].(string); ok {
			e.Message = msg
		}
	}
	return &OllamaClient{t: t, host: host}
}

type ollamaChatRequest struct {
	Model    string         `json:"model"`
	Messages []Message      `json:"messages"`
	Stream   bool           `json:"stream"`
	Options  map[string]any `json:"options,omitempty"`
}

type ollamaChatResponse struct {
	Model           string  `json:"model"`
	Message         Message `json:"message"`
	Done            bool    `json:"done"`
	PromptEvalCount int     `json:"prompt_eval_count"`
	EvalCount       int     `json:"eval_count"`
}

func (c *OllamaClient) Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	if req.Model == "" {
		return nil, errors.New("model cannot be empty")
	}
	if len(req.Messages) == 0 {
		return nil, errors.New("messages cannot be empty")
	}
	oreq := ollamaChatRequest{Model: req.Model, Messages: req.Messages}
	if req.Temperature > 0 || req.MaxTokens > 0 {
		oreq.Options = map[string]any{}
	}
	if req.Temperature > 0 {
		oreq.Options["temperature"] = req.Temperature
	}
	if req.MaxTokens > 0 {
		oreq.Options["num_predict"] = req.MaxTokens
	}
	var oresp ollamaChatResponse
	id, err := c.t.post(ctx, c.host+"/api/chat", nil, oreq, &oresp)
	if err != nil {
		return nil, err
	}
	return &GenerateResponse{
		RequestID: id,
		Choices:   []Choice{{Message: Message{Role: "assistant", Content: oresp.Message.Content}}},
		Usage: Usage{
			PromptTokens:     oresp.PromptEvalCount,
			CompletionTokens: oresp.EvalCount,
			TotalTokens:      oresp.PromptEvalCount + oresp.EvalCount,
		},
	}, nil
}
