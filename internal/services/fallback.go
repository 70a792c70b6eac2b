package services

import (
	"strings"

	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"wandernest-backend/internal/models"
)

const defaultUserPrompt = "Plan my trip"

var currencySymbols = map[string]string{
	"INR": "₹",
	"USD": "$",
	"EUR": "€",
	"GBP": "£",
	"JPY": "¥",
	"AUD": "A$",
	"SGD": "S$",
	"AED": "AED ",
}

// FallbackWriter renders the offline itinerary. It holds no state besides
// its formatting settings, so one value is shared by all requests.
type FallbackWriter struct {
	locale   language.Tag
	currency string
}

// NewFallbackWriter parses locale (e.g. "en-IN") and the default ISO
// currency code. Invalid values fall back to en-IN and INR.
func NewFallbackWriter(locale, defaultCurrency string) *FallbackWriter {
	tag, err := language.Parse(locale)
	if err != nil {
		tag = language.MustParse("en-IN")
	}
	code, ok := isoCurrency(defaultCurrency)
	if !ok {
		code = "INR"
	}
	return &FallbackWriter{locale: tag, currency: code}
}

// Generate builds the demo itinerary from the trip hints and the most recent
// user message. Identical inputs always give identical output.
func (f *FallbackWriter) Generate(messages []models.ChatMessage, trip *models.TripContext) string {
	if trip == nil {
		trip = &models.TripContext{}
	}

	request := defaultUserPrompt
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == models.RoleUser {
			if messages[i].Content != "" {
				request = messages[i].Content
			}
			break
		}
	}

	code := f.currency
	if c, ok := isoCurrency(string(trip.Currency)); ok {
		code = c
	}

	budget := "N/A"
	if amount, ok := trip.BudgetAmount(); ok {
		budget = f.formatAmount(amount, code)
	}

	var notes string
	if trip.Notes != "" {
		notes = "Notes: " + string(trip.Notes)
	}

	lines := []string{
		"Demo itinerary for " + orDefault(trip.Destination, "your destination") +
			" (" + orDefault(trip.StartDate, "Not set") + " - " + orDefault(trip.EndDate, "Not set") + ")",
		notes,
		"Budget: " + budget + " (" + code + ")",
		"Day 1: Arrival, local orientation walk, dinner at a popular spot",
		"Day 2: Major sights and a neighborhood food crawl",
		"Day 3: Museums/landmarks + evening show",
		"Day 4: Day trip / hidden gems",
		"Day 5: Shopping + departure",
		"Food: Add vegetarian/halal-friendly places near main attractions.",
		"Transport: Use metro/bus passes where available.",
		"Visa tips: Keep insurance, funds proof, and bookings handy (Schengen: €30,000 coverage).",
		`Request: "` + request + `"`,
	}

	kept := lines[:0]
	for _, l := range lines {
		if l != "" {
			kept = append(kept, l)
		}
	}
	return strings.Join(kept, "\n")
}

func (f *FallbackWriter) formatAmount(amount float64, code string) string {
	p := message.NewPrinter(f.locale)
	formatted := p.Sprintf("%v", number.Decimal(amount, number.MaxFractionDigits(2)))

	symbol, ok := currencySymbols[code]
	if !ok {
		symbol = code + " "
	}
	return symbol + formatted
}

func isoCurrency(code string) (string, bool) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return "", false
	}
	unit, err := currency.ParseISO(code)
	if err != nil {
		return "", false
	}
	return unit.String(), true
}

func orDefault(v models.PromptText, def string) string {
	if v == "" {
		return def
	}
	return string(v)
}
