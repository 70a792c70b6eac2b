package services

import (
	"strings"
	"testing"

	"wandernest-backend/internal/models"
)

func floatPtr(v float64) *float64 { return &v }

func TestFallback_TripDetails(t *testing.T) {
	w := NewFallbackWriter("en-IN", "INR")
	text := w.Generate(
		[]models.ChatMessage{{Role: models.RoleUser, Content: "Plan Tokyo"}},
		&models.TripContext{Destination: "Tokyo", StartDate: "2025-10-01", EndDate: "2025-10-05"},
	)

	lines := strings.Split(text, "\n")
	if lines[0] != "Demo itinerary for Tokyo (2025-10-01 - 2025-10-05)" {
		t.Errorf("unexpected title %q", lines[0])
	}
	if lines[1] != "Budget: N/A (INR)" {
		t.Errorf("unexpected budget line %q", lines[1])
	}
	if lines[len(lines)-1] != `Request: "Plan Tokyo"` {
		t.Errorf("unexpected request echo %q", lines[len(lines)-1])
	}

	days := 0
	for _, l := range lines {
		if l == "" {
			t.Error("empty lines should be dropped")
		}
		if strings.HasPrefix(l, "Day ") {
			days++
		}
	}
	if days != 5 {
		t.Errorf("expected 5 day blocks, got %d", days)
	}
}

func TestFallback_Defaults(t *testing.T) {
	w := NewFallbackWriter("en-IN", "INR")
	text := w.Generate(nil, nil)

	if !strings.HasPrefix(text, "Demo itinerary for your destination (Not set - Not set)") {
		t.Errorf("unexpected title in %q", text)
	}
	if strings.Contains(text, "Notes:") {
		t.Error("notes line should be omitted without notes")
	}
	if !strings.HasSuffix(text, `Request: "Plan my trip"`) {
		t.Errorf("expected default prompt echo, got %q", text)
	}
}

func TestFallback_LastUserMessage(t *testing.T) {
	w := NewFallbackWriter("en-IN", "INR")
	text := w.Generate([]models.ChatMessage{
		{Role: models.RoleUser, Content: "first"},
		{Role: models.RoleAssistant, Content: "reply"},
		{Role: models.RoleUser, Content: "second"},
		{Role: models.RoleAssistant, Content: "another reply"},
	}, nil)

	if !strings.HasSuffix(text, `Request: "second"`) {
		t.Errorf("expected most recent user message, got %q", text)
	}
}

func TestFallback_Budget(t *testing.T) {
	w := NewFallbackWriter("en-IN", "INR")
	text := w.Generate(
		[]models.ChatMessage{{Role: models.RoleUser, Content: "budget breakdown"}},
		&models.TripContext{BudgetINR: floatPtr(50000), Notes: "vegetarian"},
	)

	if !strings.Contains(text, "Budget: ₹50,000 (INR)") {
		t.Errorf("expected formatted INR budget, got %q", text)
	}
	if !strings.Contains(text, "Notes: vegetarian") {
		t.Errorf("expected notes line, got %q", text)
	}
}

func TestFallback_Currency(t *testing.T) {
	w := NewFallbackWriter("en-US", "INR")

	text := w.Generate(nil, &models.TripContext{Budget: floatPtr(1200), Currency: "usd"})
	if !strings.Contains(text, "Budget: $1,200 (USD)") {
		t.Errorf("expected USD budget, got %q", text)
	}

	text = w.Generate(nil, &models.TripContext{Budget: floatPtr(1200), Currency: "rupees"})
	if !strings.Contains(text, "(INR)") {
		t.Errorf("invalid currency should use the default, got %q", text)
	}

	text = w.Generate(nil, &models.TripContext{Budget: floatPtr(10), BudgetINR: floatPtr(20)})
	if !strings.Contains(text, "₹20") {
		t.Errorf("budgetINR should win over budget, got %q", text)
	}
}

func TestFallback_Deterministic(t *testing.T) {
	w := NewFallbackWriter("en-IN", "INR")
	messages := []models.ChatMessage{{Role: models.RoleUser, Content: "Plan Jaipur"}}
	trip := &models.TripContext{Destination: "Jaipur", BudgetINR: floatPtr(75000.5)}

	if w.Generate(messages, trip) != w.Generate(messages, trip) {
		t.Error("fallback output should be identical for identical input")
	}
}

func TestNewFallbackWriter_InvalidSettings(t *testing.T) {
	w := NewFallbackWriter("not a locale!!", "???")
	if w.currency != "INR" {
		t.Errorf("expected INR default, got %q", w.currency)
	}
}
