package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"wandernest-backend/internal/models"
)

// relayTemperature is sent to every provider.
const relayTemperature = 0.4

// OpenAICompatProvider talks to a hosted chat-completions API (Groq, xAI).
type OpenAICompatProvider struct {
	name       string
	endpoint   string
	model      string
	apiKey     string
	httpClient *http.Client
}

// NewOpenAICompatProvider creates an adapter for cfg. A nil client uses
// http.DefaultClient; call deadlines come from the context.
func NewOpenAICompatProvider(cfg models.ProviderConfig, client *http.Client) *OpenAICompatProvider {
	if client == nil {
		client = http.DefaultClient
	}
	return &OpenAICompatProvider{
		name:       cfg.Name,
		endpoint:   cfg.Endpoint,
		model:      cfg.Model,
		apiKey:     cfg.Credential,
		httpClient: client,
	}
}

func (p *OpenAICompatProvider) Name() string     { return p.name }
func (p *OpenAICompatProvider) Model() string    { return p.model }
func (p *OpenAICompatProvider) Configured() bool { return p.apiKey != "" }

// Chat sends the conversation once. A missing key fails with status 401
// before any network call.
func (p *OpenAICompatProvider) Chat(ctx context.Context, messages []models.ChatMessage) (*models.NormalizedReply, error) {
	if p.apiKey == "" {
		return nil, missingCredential(p.name)
	}

	payload := chatCompletionRequest{
		Model:       p.model,
		Messages:    messages,
		Temperature: relayTemperature,
		Stream:      false,
	}

	body, err := postJSON(ctx, p.httpClient, p.name, p.endpoint, payload, map[string]string{
		"Authorization": "Bearer " + p.apiKey,
	})
	if err != nil {
		return nil, err
	}

	var completion chatCompletionResponse
	if err := json.Unmarshal(body, &completion); err != nil {
		return nil, malformed(p.name, fmt.Errorf("failed to parse response: %w", err))
	}
	if len(completion.Choices) == 0 || completion.Choices[0].Message == nil {
		return nil, malformed(p.name, errors.New("no response choices returned"))
	}

	model := completion.Model
	if model == "" {
		model = p.model
	}

	return models.NewAssistantReply(completion.Choices[0].Message.Content, models.ReplyMeta{
		Provider: p.name,
		Model:    model,
	}), nil
}

type chatCompletionRequest struct {
	Model       string               `json:"model"`
	Messages    []models.ChatMessage `json:"messages"`
	Temperature float64              `json:"temperature"`
	Stream      bool                 `json:"stream"`
}

type chatCompletionResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Message *struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}
