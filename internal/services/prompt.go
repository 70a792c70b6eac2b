package services

import (
	"encoding/json"
	"fmt"

	"wandernest-backend/internal/models"
)

const plannerPersona = "You are WanderNest's expert Indian travel planner. Create concise, actionable travel answers and itineraries. " +
	"Always use %s for costs and show practical visa notes (not legal advice). Be specific with neighborhoods/areas."

// BuildPrompt prepends the persona and the trip context to the conversation.
// The caller's messages keep their order and are not modified.
func BuildPrompt(messages []models.ChatMessage, trip *models.TripContext, currency string) []models.ChatMessage {
	if trip == nil {
		trip = &models.TripContext{}
	}
	if currency == "" {
		currency = "INR"
	}

	tripJSON, err := json.MarshalIndent(trip, "", "  ")
	if err != nil {
		tripJSON = []byte("{}")
	}

	out := make([]models.ChatMessage, 0, len(messages)+2)
	out = append(out,
		models.ChatMessage{Role: models.RoleSystem, Content: fmt.Sprintf(plannerPersona, currency)},
		models.ChatMessage{
			Role: models.RoleSystem,
			Content: "Trip context (Indian national): " + string(tripJSON) +
				"\nIf destination missing, ask for it. Prefer family-friendly and dietary constraints from notes.",
		},
	)
	return append(out, messages...)
}
