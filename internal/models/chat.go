package models

import (
	"bytes"
	"encoding/json"
)

// Message roles accepted by the chat endpoint.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessage represents a single message in a conversation.
type ChatMessage struct {
	Role    string `json:"role"` // "system", "user" or "assistant"
	Content string `json:"content"`
}

// ValidRole reports whether role is one of the three conversation roles.
func ValidRole(role string) bool {
	switch role {
	case RoleSystem, RoleUser, RoleAssistant:
		return true
	}
	return false
}

// ChatRequest is the payload sent to the chat endpoint.
type ChatRequest struct {
	Messages []ChatMessage `json:"messages"`
	Trip     *TripContext  `json:"trip,omitempty"`
}

// PromptText is a trip hint that accepts any JSON value. Strings are kept
// as-is, anything else is kept as its compact JSON text.
type PromptText string

func (p *PromptText) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*p = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*p = PromptText(s)
		return nil
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, data); err != nil {
		return err
	}
	*p = PromptText(buf.String())
	return nil
}

// TripContext carries optional hints used to enrich the system prompt and
// the offline itinerary. It is never validated or persisted.
type TripContext struct {
	Destination PromptText `json:"destination,omitempty"`
	StartDate   PromptText `json:"startDate,omitempty"`
	EndDate     PromptText `json:"endDate,omitempty"`
	Budget      *float64   `json:"budget,omitempty"`
	BudgetINR   *float64   `json:"budgetINR,omitempty"`
	Currency    PromptText `json:"currency,omitempty"`
	Notes       PromptText `json:"notes,omitempty"`
}

// UnmarshalJSON ignores budgets that are not JSON numbers instead of
// rejecting the whole request.
func (t *TripContext) UnmarshalJSON(data []byte) error {
	type plain TripContext
	aux := struct {
		*plain
		Budget    json.RawMessage `json:"budget"`
		BudgetINR json.RawMessage `json:"budgetINR"`
	}{plain: (*plain)(t)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	t.Budget = numberOrNil(aux.Budget)
	t.BudgetINR = numberOrNil(aux.BudgetINR)
	return nil
}

func numberOrNil(raw json.RawMessage) *float64 {
	if len(raw) == 0 {
		return nil
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err != nil {
		return nil
	}
	return &n
}

// BudgetAmount returns budgetINR when present, otherwise budget.
func (t *TripContext) BudgetAmount() (float64, bool) {
	if t == nil {
		return 0, false
	}
	if t.BudgetINR != nil {
		return *t.BudgetINR, true
	}
	if t.Budget != nil {
		return *t.Budget, true
	}
	return 0, false
}

// ReplyMessage is the assistant message inside a choice.
type ReplyMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Choice mirrors the chat-completions choice shape.
type Choice struct {
	Message ReplyMessage `json:"message"`
}

// ReplyMeta describes which path produced a reply.
type ReplyMeta struct {
	Provider     string `json:"provider"`
	Model        string `json:"model,omitempty"`
	Demo         bool   `json:"demo"`
	Reason       string `json:"reason,omitempty"`
	FallbackFrom string `json:"fallbackFrom,omitempty"`
}

// NormalizedReply is the only shape returned from the relay, whichever
// provider or fallback produced it.
type NormalizedReply struct {
	Choices []Choice  `json:"choices"`
	Meta    ReplyMeta `json:"meta"`
}

// NewAssistantReply builds a single-choice reply.
func NewAssistantReply(content string, meta ReplyMeta) *NormalizedReply {
	return &NormalizedReply{
		Choices: []Choice{{Message: ReplyMessage{Role: RoleAssistant, Content: content}}},
		Meta:    meta,
	}
}

// Content returns the first choice's text.
func (r *NormalizedReply) Content() string {
	if r == nil || len(r.Choices) == 0 {
		return ""
	}
	return r.Choices[0].Message.Content
}

// ProviderConfig is one upstream's connection settings, read once at start.
type ProviderConfig struct {
	Name       string
	Endpoint   string
	Model      string
	Credential string
}

// AIHealth is the credential-presence report for GET /api/ai/health.
type AIHealth struct {
	OK           bool            `json:"ok"`
	Provider     string          `json:"provider"`
	HasKey       bool            `json:"hasKey"`
	DemoFallback bool            `json:"demoFallback"`
	Providers    map[string]bool `json:"providers"`
}
