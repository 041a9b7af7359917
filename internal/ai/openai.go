package ai

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

// OpenAIClient speaks the OpenAI chat completions protocol. Hosted APIs,
// OpenRouter and local servers such as llama.cpp, vLLM or LM Studio all
// accept it; only the base URL differs.
type OpenAIClient struct {
	t       transport
	apiKey  string
	baseURL string
}

func NewOpenAIClient(c RuntimeConfig) *OpenAIClient {
	base := strings.TrimRight(c.BaseURL, "/")
	t := newTransport(base, c)
	t.parseError = func(e *APIError, raw map[string]any) {
		src := raw
		if v, ok := raw["error"].(map[string]any); ok {
			src = v
		} else if msg, ok := raw["error"].(string); ok {
			e.Message = msg
		}
		if msg, ok := src["message"].(string); ok {
			e.Message = msg
		}
		if code, ok := src["code"].(string); ok {
			e.Code = code
		}
	}
	return &OpenAIClient{t: t, apiKey: c.APIKey, baseURL: base}
}

func (c *OpenAIClient) Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	if req.Model == "" {
		return nil, errors.New("model cannot be empty")
	}
	if len(req.Messages) == 0 {
		return nil, errors.New("messages cannot be empty")
	}
	header := http.Header{}
	if c.apiKey != "" {
		header.Set("Authorization", "Bearer "+c.apiKey)
	}
	header.Set("X-Title", "statloom")
	var out GenerateResponse
	id, err := c.t.post(ctx, c.baseURL+"/chat/completions", header, req, &out)
	if err != nil {
		return nil, err
	}
	out.RequestID = id
	if out.RequestID == "" {
		out.RequestID = out.ID
	}
	return &out, nil
}
