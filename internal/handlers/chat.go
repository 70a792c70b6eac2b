package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"wandernest-backend/internal/middleware"
	"wandernest-backend/internal/models"
	"wandernest-backend/internal/services"
)

const maxChatBodyBytes = 1 << 20

type chatService interface {
	Chat(ctx context.Context, in services.ChatInput) (*models.NormalizedReply, error)
	Health() models.AIHealth
}

type usageLister interface {
	ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*models.ChatUsage, error)
}

type ChatHandler struct {
	chat  chatService
	usage usageLister
}

// NewChatHandler creates the AI routes handler. usage may be nil when
// persistence is not configured.
func NewChatHandler(chat chatService, usage usageLister) *ChatHandler {
	return &ChatHandler{chat: chat, usage: usage}
}

// Chat handles POST /api/ai/chat.
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	var req models.ChatRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxChatBodyBytes)).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	reply, err := h.chat.Chat(r.Context(), services.ChatInput{
		UserID:    userIDPtr(r.Context()),
		RequestID: r.Header.Get(middleware.RequestIDHeader),
		Request:   req,
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, reply)
}

// Health handles GET /api/ai/health. It never calls a provider.
func (h *ChatHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.chat.Health())
}

// Usage handles GET /api/ai/usage.
func (h *ChatHandler) Usage(w http.ResponseWriter, r *http.Request) {
	if h.usage == nil {
		handleServiceError(w, r, &services.UnavailableError{Message: "Usage history is not enabled"})
		return
	}

	userID := userIDPtr(r.Context())
	if userID == nil {
		handleServiceError(w, r, &services.UnauthorizedError{Message: "Sign in to view usage history"})
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			handleServiceError(w, r, &services.ValidationError{Fields: map[string]string{"limit": "must be a positive integer"}})
			return
		}
		limit = n
	}

	records, err := h.usage.ListByUser(r.Context(), *userID, limit)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	if records == nil {
		records = []*models.ChatUsage{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"usage": records})
}

func userIDPtr(ctx context.Context) *uuid.UUID {
	id := middleware.GetUserID(ctx)
	if id == uuid.Nil {
		return nil
	}
	return &id
}
