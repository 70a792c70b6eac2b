package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"wandernest-backend/internal/models"
)

const usageRecordTimeout = 3 * time.Second

// ChatService is the entry point shared by the HTTP and websocket transports.
// It validates the request, runs the relay and records usage.
type ChatService struct {
	relay    *ChatRelay
	recorder UsageRecorder
}

func NewChatService(relay *ChatRelay, recorder UsageRecorder) *ChatService {
	if recorder == nil {
		recorder = NopRecorder{}
	}
	return &ChatService{relay: relay, recorder: recorder}
}

// ChatInput is one chat request with the caller's identity.
type ChatInput struct {
	UserID    *uuid.UUID
	RequestID string
	Request   models.ChatRequest
}

// Chat returns a *ValidationError for unknown roles and a *ProviderError
// when the relay runs with the demo fallback disabled.
func (s *ChatService) Chat(ctx context.Context, in ChatInput) (*models.NormalizedReply, error) {
	if err := ValidateChatRequest(&in.Request); err != nil {
		return nil, err
	}

	start := time.Now()
	reply, err := s.relay.Relay(ctx, in.Request.Messages, in.Request.Trip)
	if err != nil {
		return nil, err
	}

	s.record(ctx, &models.ChatUsage{
		ID:           uuid.New(),
		UserID:       in.UserID,
		RequestID:    in.RequestID,
		Provider:     reply.Meta.Provider,
		Model:        reply.Meta.Model,
		Demo:         reply.Meta.Demo,
		Reason:       reply.Meta.Reason,
		FallbackFrom: reply.Meta.FallbackFrom,
		MessageCount: len(in.Request.Messages),
		LatencyMs:    time.Since(start).Milliseconds(),
		CreatedAt:    time.Now().UTC(),
	})
	return reply, nil
}

func (s *ChatService) record(ctx context.Context, u *models.ChatUsage) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), usageRecordTimeout)
	defer cancel()
	if err := s.recorder.Record(ctx, u); err != nil {
		log.Printf("failed to record chat usage %s: %v", u.ID, err)
	}
}

// Health reports the relay's provider configuration.
func (s *ChatService) Health() models.AIHealth {
	return s.relay.Health()
}

// ValidateChatRequest rejects messages whose role is not system, user or assistant.
func ValidateChatRequest(req *models.ChatRequest) error {
	fields := map[string]string{}
	for i, m := range req.Messages {
		if !models.ValidRole(m.Role) {
			fields[fmt.Sprintf("messages[%d].role", i)] = "must be one of system, user, assistant"
		}
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}
