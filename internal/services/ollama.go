package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"wandernest-backend/internal/models"
)

// OllamaProvider talks to a local, unauthenticated Ollama daemon.
type OllamaProvider struct {
	baseURL    string
	model      string
	httpClient *http.Client
}

func NewOllamaProvider(cfg models.ProviderConfig, client *http.Client) *OllamaProvider {
	if client == nil {
		client = http.DefaultClient
	}
	return &OllamaProvider{
		baseURL:    strings.TrimRight(cfg.Endpoint, "/"),
		model:      cfg.Model,
		httpClient: client,
	}
}

func (p *OllamaProvider) Name() string     { return "ollama" }
func (p *OllamaProvider) Model() string    { return p.model }
func (p *OllamaProvider) Configured() bool { return p.baseURL != "" }

// Chat posts to /api/chat and reshapes the top-level message into a choice.
func (p *OllamaProvider) Chat(ctx context.Context, messages []models.ChatMessage) (*models.NormalizedReply, error) {
	if p.baseURL == "" {
		return nil, &ProviderError{Provider: p.Name(), Kind: ErrorKindConfig, Status: http.StatusUnauthorized, Err: errors.New("no base URL configured")}
	}

	payload := ollamaChatRequest{
		Model:    p.model,
		Messages: messages,
		Stream:   false,
		Options:  ollamaOptions{Temperature: relayTemperature},
	}

	body, err := postJSON(ctx, p.httpClient, p.Name(), p.baseURL+"/api/chat", payload, nil)
	if err != nil {
		return nil, err
	}

	var chat ollamaChatResponse
	if err := json.Unmarshal(body, &chat); err != nil {
		return nil, malformed(p.Name(), fmt.Errorf("failed to parse response: %w", err))
	}
	if chat.Message == nil {
		return nil, malformed(p.Name(), errors.New("response has no message"))
	}

	model := chat.Model
	if model == "" {
		model = p.model
	}

	return models.NewAssistantReply(chat.Message.Content, models.ReplyMeta{
		Provider: p.Name(),
		Model:    model,
	}), nil
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature"`
}

type ollamaChatRequest struct {
	Model    string               `json:"model"`
	Messages []models.ChatMessage `json:"messages"`
	Stream   bool                 `json:"stream"`
	Options  ollamaOptions        `json:"options"`
}

type ollamaChatResponse struct {
	Model   string `json:"model"`
	Message *struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"message"`
	Done bool `json:"done"`
}
