package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fatih/color"

	"wandernest-backend/internal/config"
	"wandernest-backend/internal/models"
	"wandernest-backend/internal/services"
)

var (
	provider    = flag.String("provider", "", "Preferred provider (groq, xai, gemini, ollama, demo); defaults to AI_PROVIDER")
	destination = flag.String("destination", "", "Trip destination")
	startDate   = flag.String("start", "", "Trip start date")
	endDate     = flag.String("end", "", "Trip end date")
	budget      = flag.Float64("budget", 0, "Trip budget")
	currency    = flag.String("currency", "", "Budget currency (ISO code)")
	notes       = flag.String("notes", "", "Traveller notes, e.g. dietary needs")
)

func main() {
	flag.Parse()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle interrupts
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-c
		fmt.Println("\nShutting down...")
		cancel()
		os.Exit(0)
	}()

	cfg := config.Load()
	if *provider != "" {
		cfg.AIProvider = strings.ToLower(*provider)
	}

	providers, err := services.NewProviders(ctx, cfg.ProviderConfigs(), http.DefaultClient)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer services.CloseProviders(providers)

	relay := services.NewChatRelay(services.RelayConfig{
		Preferred:    cfg.AIProvider,
		DemoFallback: cfg.AIDemoFallback,
		Timeout:      cfg.AITimeout(),
		Locale:       cfg.FallbackLocale,
		Currency:     cfg.DefaultCurrency,
	}, providers, services.LocalSecondary(providers, cfg.AIProvider, cfg.OllamaFallback))

	trip := tripFromFlags()

	boldGreen := color.New(color.FgGreen, color.Bold).SprintFunc()
	boldCyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	dim := color.New(color.Faint).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()

	health := relay.Health()
	fmt.Println(boldGreen("🧳 WanderNest Trip Chat"))
	fmt.Printf("Provider: %s (key: %t, demo fallback: %t)\n", boldCyan(health.Provider), health.HasKey, health.DemoFallback)
	if trip.Destination != "" {
		fmt.Printf("Destination: %s\n", boldCyan(string(trip.Destination)))
	}
	fmt.Println("Type your message and press Enter. Type 'exit' or press Ctrl+C to quit.")
	fmt.Println()

	var conversation []models.ChatMessage
	scanner := bufio.NewScanner(os.Stdin)

	for {
		fmt.Print(boldGreen("You: "))
		if !scanner.Scan() {
			break
		}
		userInput := strings.TrimSpace(scanner.Text())
		if strings.ToLower(userInput) == "exit" {
			break
		}
		if userInput == "" {
			continue
		}

		conversation = append(conversation, models.ChatMessage{Role: models.RoleUser, Content: userInput})

		reply, err := relay.Relay(ctx, conversation, trip)
		if err != nil {
			fmt.Fprintln(os.Stderr, red("Error: "+err.Error()))
			conversation = conversation[:len(conversation)-1]
			continue
		}

		fmt.Println(boldCyan("WanderNest: ") + reply.Content())
		fmt.Println(dim(metaLine(reply.Meta)))
		fmt.Println()

		conversation = append(conversation, models.ChatMessage{Role: models.RoleAssistant, Content: reply.Content()})
	}
}

func tripFromFlags() *models.TripContext {
	trip := &models.TripContext{
		Destination: models.PromptText(*destination),
		StartDate:   models.PromptText(*startDate),
		EndDate:     models.PromptText(*endDate),
		Currency:    models.PromptText(*currency),
		Notes:       models.PromptText(*notes),
	}
	if *budget > 0 {
		b := *budget
		trip.Budget = &b
	}
	return trip
}

func metaLine(meta models.ReplyMeta) string {
	parts := []string{"provider=" + meta.Provider, fmt.Sprintf("demo=%t", meta.Demo)}
	if meta.Model != "" {
		parts = append(parts, "model="+meta.Model)
	}
	if meta.FallbackFrom != "" {
		parts = append(parts, "fallbackFrom="+meta.FallbackFrom)
	}
	if meta.Reason != "" {
		parts = append(parts, "reason="+meta.Reason)
	}
	return "[" + strings.Join(parts, " ") + "]"
}
