package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"wandernest-backend/internal/models"
)

// GeminiProvider implements ChatProvider with the Google generative AI SDK.
type GeminiProvider struct {
	client    *genai.Client
	modelName string
}

// NewGeminiProvider creates the SDK client when a key is present. Without a
// key the provider is returned unconfigured and every call fails fast.
func NewGeminiProvider(ctx context.Context, cfg models.ProviderConfig) (*GeminiProvider, error) {
	p := &GeminiProvider{modelName: cfg.Model}
	if cfg.Credential == "" {
		return p, nil
	}

	opts := []option.ClientOption{option.WithAPIKey(cfg.Credential)}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}

	client, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	p.client = client
	return p, nil
}

// Close cleans up the Gemini client resources.
func (p *GeminiProvider) Close() {
	if p.client != nil {
		p.client.Close()
	}
}

func (p *GeminiProvider) Name() string     { return "gemini" }
func (p *GeminiProvider) Model() string    { return p.modelName }
func (p *GeminiProvider) Configured() bool { return p.client != nil }

func (p *GeminiProvider) Chat(ctx context.Context, messages []models.ChatMessage) (*models.NormalizedReply, error) {
	if p.client == nil {
		return nil, missingCredential(p.Name())
	}

	system, history, last := geminiContents(messages)

	// A model per call: the system instruction carries per-request trip context.
	model := p.client.GenerativeModel(p.modelName)
	model.SetTemperature(relayTemperature)
	if system != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(system)}}
	}

	cs := model.StartChat()
	cs.History = history

	resp, err := cs.SendMessage(ctx, last...)
	if err != nil {
		return nil, classifyGeminiError(ctx, err)
	}

	text := extractText(resp)
	if text == "" {
		return nil, malformed(p.Name(), errors.New("no response candidates from Gemini"))
	}

	return models.NewAssistantReply(text, models.ReplyMeta{
		Provider: p.Name(),
		Model:    p.modelName,
	}), nil
}

// geminiContents splits a conversation into the system instruction, the chat
// history and the parts of the final user turn. Consecutive turns with the
// same role are merged because Gemini expects alternating roles.
func geminiContents(messages []models.ChatMessage) (string, []*genai.Content, []genai.Part) {
	var system []string
	var contents []*genai.Content

	for _, m := range messages {
		if m.Role == models.RoleSystem {
			system = append(system, m.Content)
			continue
		}
		role := "user"
		if m.Role == models.RoleAssistant {
			role = "model"
		}
		if n := len(contents); n > 0 && contents[n-1].Role == role {
			contents[n-1].Parts = append(contents[n-1].Parts, genai.Text(m.Content))
			continue
		}
		contents = append(contents, &genai.Content{Role: role, Parts: []genai.Part{genai.Text(m.Content)}})
	}

	if n := len(contents); n > 0 && contents[n-1].Role == "user" {
		return strings.Join(system, "\n\n"), contents[:n-1], contents[n-1].Parts
	}
	return strings.Join(system, "\n\n"), contents, []genai.Part{genai.Text(defaultUserPrompt)}
}

func classifyGeminiError(ctx context.Context, err error) *ProviderError {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		pe := statusError("gemini", apiErr.Code, []byte(apiErr.Body))
		pe.Err = err
		return pe
	}

	if st, ok := status.FromError(err); ok {
		switch st.Code() {
		case codes.Unauthenticated:
			return &ProviderError{Provider: "gemini", Kind: ErrorKindAuth, Status: http.StatusUnauthorized, Details: st.Message(), Err: err}
		case codes.PermissionDenied:
			return &ProviderError{Provider: "gemini", Kind: ErrorKindAuth, Status: http.StatusForbidden, Details: st.Message(), Err: err}
		case codes.DeadlineExceeded:
			return &ProviderError{Provider: "gemini", Kind: ErrorKindTimeout, Err: err}
		case codes.Unavailable:
			return &ProviderError{Provider: "gemini", Kind: ErrorKindNetwork, Err: err}
		case codes.InvalidArgument:
			return &ProviderError{Provider: "gemini", Kind: ErrorKindUpstream, Status: http.StatusBadRequest, Details: st.Message(), Err: err}
		case codes.ResourceExhausted:
			return &ProviderError{Provider: "gemini", Kind: ErrorKindUpstream, Status: http.StatusTooManyRequests, Details: st.Message(), Err: err}
		default:
			return &ProviderError{Provider: "gemini", Kind: ErrorKindUpstream, Status: http.StatusBadGateway, Details: st.Message(), Err: err}
		}
	}

	return transportError(ctx, "gemini", err)
}

func extractText(resp *genai.GenerateContentResponse) string {
	var text strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content != nil {
			for _, part := range cand.Content.Parts {
				if t, ok := part.(genai.Text); ok {
					text.WriteString(string(t))
				}
			}
		}
	}
	return text.String()
}
