package models

import (
	"time"

	"github.com/google/uuid"
)

// ChatUsageQueue is the Redis list drained by the usage workers.
const ChatUsageQueue = "queue:chat-usage"

type ChatUsage struct {
	ID           uuid.UUID  `json:"id"`
	UserID       *uuid.UUID `json:"user_id,omitempty"`
	RequestID    string     `json:"request_id,omitempty"`
	Provider     string     `json:"provider"`
	Model        string     `json:"model,omitempty"`
	Demo         bool       `json:"demo"`
	Reason       string     `json:"reason,omitempty"`
	FallbackFrom string     `json:"fallback_from,omitempty"`
	MessageCount int        `json:"message_count"`
	LatencyMs    int64      `json:"latency_ms"`
	CreatedAt    time.Time  `json:"created_at"`
}

// API Error response
type APIError struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Fields    map[string]string `json:"fields,omitempty"`
	Details   interface{}       `json:"details,omitempty"`
	RequestID string            `json:"request_id"`
}

type ErrorResponse struct {
	Error APIError `json:"error"`
}
