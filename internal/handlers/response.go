package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"wandernest-backend/internal/middleware"
	"wandernest-backend/internal/models"
	"wandernest-backend/internal/services"
)

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func errorResp(code, message string, r *http.Request) models.ErrorResponse {
	return models.ErrorResponse{
		Error: models.APIError{
			Code:      code,
			Message:   message,
			RequestID: r.Header.Get(middleware.RequestIDHeader),
		},
	}
}

func errorRespWithFields(code, message string, fields map[string]string, r *http.Request) models.ErrorResponse {
	resp := errorResp(code, message, r)
	resp.Error.Fields = fields
	return resp
}

// ServiceErrorBody maps err to a status and the error envelope.
func ServiceErrorBody(err error, r *http.Request) (int, models.ErrorResponse) {
	var perr *services.ProviderError
	if errors.As(err, &perr) {
		resp := errorResp(providerErrorCode(perr), perr.Error(), r)
		resp.Error.Details = perr.Details
		return perr.HTTPStatus(), resp
	}

	switch e := err.(type) {
	case *services.ValidationError:
		return http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "Validation failed", e.Fields, r)
	case *services.UnauthorizedError:
		return http.StatusUnauthorized, errorResp("UNAUTHORIZED", e.Message, r)
	case *services.RateLimitError:
		return http.StatusTooManyRequests, errorResp("RATE_LIMITED", e.Message, r)
	case *services.UnavailableError:
		return http.StatusServiceUnavailable, errorResp("UNAVAILABLE", e.Message, r)
	default:
		return http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "An unexpected error occurred", r)
	}
}

func handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status, body := ServiceErrorBody(err, r)
	writeJSON(w, status, body)
}

func providerErrorCode(e *services.ProviderError) string {
	switch e.Kind {
	case services.ErrorKindConfig:
		return "AI_NOT_CONFIGURED"
	case services.ErrorKindAuth:
		return "AI_UNAUTHORIZED"
	case services.ErrorKindTimeout:
		return "AI_TIMEOUT"
	default:
		return "AI_UPSTREAM_ERROR"
	}
}
