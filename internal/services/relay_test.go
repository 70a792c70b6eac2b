package services

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"wandernest-backend/internal/models"
)

type stubProvider struct {
	name       string
	configured bool
	reply      string
	err        error
	delay      time.Duration

	mu       sync.Mutex
	calls    int
	received []models.ChatMessage
	order    *[]string
}

func (s *stubProvider) Name() string     { return s.name }
func (s *stubProvider) Model() string    { return s.name + "-model" }
func (s *stubProvider) Configured() bool { return s.configured }

func (s *stubProvider) Chat(ctx context.Context, messages []models.ChatMessage) (*models.NormalizedReply, error) {
	s.mu.Lock()
	s.calls++
	s.received = messages
	if s.order != nil {
		*s.order = append(*s.order, s.name)
	}
	s.mu.Unlock()

	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, transportError(ctx, s.name, ctx.Err())
		}
	}
	if s.err != nil {
		return nil, s.err
	}
	return models.NewAssistantReply(s.reply, models.ReplyMeta{Provider: s.name, Model: s.Model()}), nil
}

func (s *stubProvider) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func relayConfig(preferred string) RelayConfig {
	return RelayConfig{Preferred: preferred, DemoFallback: true, Timeout: time.Second, Locale: "en-IN", Currency: "INR"}
}

func TestRelay_PrimarySuccess(t *testing.T) {
	primary := &stubProvider{name: "groq", configured: true, reply: "Real plan"}
	secondary := &stubProvider{name: "ollama", configured: true, reply: "Local plan"}
	relay := NewChatRelay(relayConfig("groq"), []ChatProvider{primary}, secondary)

	messages := []models.ChatMessage{{Role: models.RoleUser, Content: "Plan Goa"}}
	reply, err := relay.Relay(context.Background(), messages, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reply.Content() != "Real plan" || reply.Meta.Demo || reply.Meta.Provider != "groq" {
		t.Errorf("unexpected reply %+v", reply)
	}
	if reply.Meta.FallbackFrom != "" {
		t.Errorf("primary reply should not carry fallbackFrom, got %q", reply.Meta.FallbackFrom)
	}
	if secondary.callCount() != 0 {
		t.Error("secondary should not be called after a primary success")
	}

	if len(primary.received) != 3 {
		t.Fatalf("expected 2 system messages plus the conversation, got %d", len(primary.received))
	}
	if primary.received[0].Role != models.RoleSystem || primary.received[1].Role != models.RoleSystem {
		t.Error("system messages should be prepended")
	}
	if primary.received[2] != messages[0] {
		t.Error("conversation should follow the system messages unchanged")
	}
}

// No credentials anywhere: primary fails with missing_credential, the local
// secondary is unreachable, the offline reply names the trip.
func TestRelay_NoCredentials(t *testing.T) {
	primary := &stubProvider{name: "groq", err: missingCredential("groq")}
	secondary := &stubProvider{name: "ollama", configured: true, err: &ProviderError{Provider: "ollama", Kind: ErrorKindNetwork, Err: errors.New("connection refused")}}
	relay := NewChatRelay(relayConfig("groq"), []ChatProvider{primary}, secondary)

	reply, err := relay.Relay(context.Background(),
		[]models.ChatMessage{{Role: models.RoleUser, Content: "Plan Tokyo"}},
		&models.TripContext{Destination: "Tokyo", StartDate: "2025-10-01", EndDate: "2025-10-05"},
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reply.Meta.Demo || reply.Meta.Provider != "demo" {
		t.Errorf("expected demo reply, got %+v", reply.Meta)
	}
	if !strings.Contains(reply.Meta.Reason, "missing_credential") {
		t.Errorf("reason should mention the missing credential: %q", reply.Meta.Reason)
	}
	if !strings.Contains(reply.Meta.Reason, "; fallback ollama: network_error") {
		t.Errorf("reason should combine both failures: %q", reply.Meta.Reason)
	}
	content := reply.Content()
	if !strings.Contains(content, "Tokyo") || !strings.Contains(content, "2025-10-01 - 2025-10-05") {
		t.Errorf("offline text should name the trip: %q", content)
	}
}

func TestRelay_AuthFailureUsesSecondary(t *testing.T) {
	var order []string
	primary := &stubProvider{name: "xai", configured: true, err: statusError("xai", http.StatusUnauthorized, []byte(`{"error":"bad key"}`)), order: &order}
	secondary := &stubProvider{name: "ollama", configured: true, reply: "Local plan", order: &order}
	relay := NewChatRelay(relayConfig("xai"), []ChatProvider{primary}, secondary)

	reply, err := relay.Relay(context.Background(), []models.ChatMessage{{Role: models.RoleUser, Content: "hi"}}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reply.Meta.Provider != "ollama" || reply.Meta.FallbackFrom != "xai" || reply.Meta.Demo {
		t.Errorf("unexpected meta %+v", reply.Meta)
	}
	if reply.Content() != "Local plan" {
		t.Errorf("unexpected content %q", reply.Content())
	}
	if len(order) != 2 || order[0] != "xai" || order[1] != "ollama" {
		t.Errorf("expected primary then secondary, got %v", order)
	}
	if secondary.callCount() != 1 {
		t.Errorf("secondary should be called exactly once, got %d", secondary.callCount())
	}
	if len(secondary.received) != len(primary.received) {
		t.Error("secondary should receive the same augmented conversation")
	}
}

func TestRelay_NonAuthFailureSkipsSecondary(t *testing.T) {
	failures := map[string]error{
		"upstream 500": statusError("groq", http.StatusInternalServerError, []byte(`{"error":{"message":"boom"}}`)),
		"malformed":    malformed("groq", errors.New("no choices")),
		"network":      &ProviderError{Provider: "groq", Kind: ErrorKindNetwork, Err: errors.New("dial tcp: refused")},
		"plain error":  errors.New("unexpected"),
	}

	for name, failure := range failures {
		t.Run(name, func(t *testing.T) {
			primary := &stubProvider{name: "groq", configured: true, err: failure}
			secondary := &stubProvider{name: "ollama", configured: true, reply: "Local plan"}
			relay := NewChatRelay(relayConfig("groq"), []ChatProvider{primary}, secondary)

			reply, err := relay.Relay(context.Background(), nil, nil)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if secondary.callCount() != 0 {
				t.Error("secondary must not be attempted for non-auth failures")
			}
			if !reply.Meta.Demo || reply.Meta.Reason == "" {
				t.Errorf("expected labeled demo reply, got %+v", reply.Meta)
			}
			if strings.Contains(reply.Meta.Reason, "auth_failed") {
				t.Errorf("reason should not look like an auth failure: %q", reply.Meta.Reason)
			}
		})
	}
}

func TestRelay_UpstreamReasonText(t *testing.T) {
	primary := &stubProvider{name: "groq", configured: true, err: statusError("groq", http.StatusInternalServerError, nil)}
	relay := NewChatRelay(relayConfig("groq"), []ChatProvider{primary}, nil)

	reply, _ := relay.Relay(context.Background(), nil, nil)
	if reply.Meta.Reason != "groq: upstream_error (500): upstream returned Internal Server Error" {
		t.Errorf("unexpected reason %q", reply.Meta.Reason)
	}
}

func TestRelay_AuthFailureWithoutSecondary(t *testing.T) {
	primary := &stubProvider{name: "groq", err: missingCredential("groq")}
	relay := NewChatRelay(relayConfig("groq"), []ChatProvider{primary}, nil)

	reply, err := relay.Relay(context.Background(), nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reply.Meta.Demo || !strings.HasPrefix(reply.Meta.Reason, "groq: missing_credential") {
		t.Errorf("unexpected meta %+v", reply.Meta)
	}
}

func TestRelay_EmptyConversation(t *testing.T) {
	primary := &stubProvider{name: "groq", configured: true, reply: "Where to?"}
	relay := NewChatRelay(relayConfig("groq"), []ChatProvider{primary}, nil)

	reply, err := relay.Relay(context.Background(), []models.ChatMessage{}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reply.Content() != "Where to?" {
		t.Errorf("unexpected content %q", reply.Content())
	}
	if len(primary.received) != 2 {
		t.Errorf("expected only system messages upstream, got %d", len(primary.received))
	}

	failing := NewChatRelay(relayConfig("groq"), []ChatProvider{&stubProvider{name: "groq", err: errors.New("down")}}, nil)
	reply, err = failing.Relay(context.Background(), nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasSuffix(reply.Content(), `Request: "Plan my trip"`) {
		t.Errorf("expected default prompt in offline reply, got %q", reply.Content())
	}
}

func TestRelay_Timeout(t *testing.T) {
	primary := &stubProvider{name: "groq", configured: true, reply: "late", delay: time.Second}
	secondary := &stubProvider{name: "ollama", configured: true, reply: "Local plan"}
	cfg := relayConfig("groq")
	cfg.Timeout = 20 * time.Millisecond
	relay := NewChatRelay(cfg, []ChatProvider{primary}, secondary)

	start := time.Now()
	reply, err := relay.Relay(context.Background(), nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if time.Since(start) > 500*time.Millisecond {
		t.Error("relay should not wait for the slow provider")
	}
	if !reply.Meta.Demo || !strings.Contains(reply.Meta.Reason, "timeout") {
		t.Errorf("expected timeout demo reply, got %+v", reply.Meta)
	}
	if secondary.callCount() != 0 {
		t.Error("a timeout is not an auth failure")
	}
}

func TestRelay_DemoAndUnknownProvider(t *testing.T) {
	primary := &stubProvider{name: "groq", configured: true, reply: "Real plan"}

	demo := NewChatRelay(relayConfig("demo"), []ChatProvider{primary}, nil)
	reply, err := demo.Relay(context.Background(), nil, nil)
	if err != nil || reply.Meta.Reason != "demo_mode" || !reply.Meta.Demo {
		t.Errorf("expected demo_mode reply, got %+v, %v", reply, err)
	}

	cfg := relayConfig("demo")
	cfg.DemoFallback = false
	reply, err = NewChatRelay(cfg, []ChatProvider{primary}, nil).Relay(context.Background(), nil, nil)
	if err != nil || reply.Meta.Reason != "demo_mode" {
		t.Errorf("demo mode should not depend on the fallback flag, got %+v, %v", reply, err)
	}

	unknown := NewChatRelay(relayConfig("mistral"), []ChatProvider{primary}, nil)
	reply, err = unknown.Relay(context.Background(), nil, nil)
	if err != nil || reply.Meta.Reason != "unknown_provider: mistral" {
		t.Errorf("expected unknown_provider reply, got %+v, %v", reply, err)
	}
	if primary.callCount() != 0 {
		t.Error("no provider should be called in demo or unknown mode")
	}
}

func TestRelay_FallbackDisabled(t *testing.T) {
	cfg := relayConfig("groq")
	cfg.DemoFallback = false

	upstream := statusError("groq", http.StatusBadGateway, []byte(`{"error":"bad gateway"}`))
	relay := NewChatRelay(cfg, []ChatProvider{&stubProvider{name: "groq", err: upstream}}, nil)
	reply, err := relay.Relay(context.Background(), nil, nil)
	if reply != nil {
		t.Error("no reply expected when fallback is disabled")
	}
	var perr *ProviderError
	if !errors.As(err, &perr) || perr.HTTPStatus() != http.StatusBadGateway {
		t.Fatalf("expected propagated upstream error, got %v", err)
	}

	secondary := &stubProvider{name: "ollama", err: malformed("ollama", errors.New("bad"))}
	relay = NewChatRelay(cfg, []ChatProvider{&stubProvider{name: "groq", err: missingCredential("groq")}}, secondary)
	_, err = relay.Relay(context.Background(), nil, nil)
	if !errors.As(err, &perr) || perr.Provider != "groq" || perr.HTTPStatus() != http.StatusInternalServerError {
		t.Fatalf("expected primary configuration error, got %v", err)
	}
	if secondary.callCount() != 1 {
		t.Error("secondary is still attempted when fallback text is disabled")
	}

	_, err = NewChatRelay(cfg, nil, nil).Relay(context.Background(), nil, nil)
	if !errors.As(err, &perr) || perr.Kind != ErrorKindConfig {
		t.Fatalf("expected configuration error for unknown provider, got %v", err)
	}
}

func TestRelay_ConcurrentRequests(t *testing.T) {
	primary := &stubProvider{name: "groq", configured: true, reply: "ok"}
	relay := NewChatRelay(relayConfig("groq"), []ChatProvider{primary}, nil)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			reply, err := relay.Relay(context.Background(), []models.ChatMessage{{Role: models.RoleUser, Content: "hi"}}, nil)
			if err != nil || reply.Content() != "ok" {
				t.Errorf("unexpected result %+v, %v", reply, err)
			}
		}()
	}
	wg.Wait()

	if primary.callCount() != 20 {
		t.Errorf("expected 20 calls, got %d", primary.callCount())
	}
}

func TestRelay_Health(t *testing.T) {
	relay := NewChatRelay(relayConfig("xai"), []ChatProvider{
		&stubProvider{name: "groq"},
		&stubProvider{name: "xai", configured: true},
	}, &stubProvider{name: "ollama", configured: true})

	h := relay.Health()
	if !h.OK || h.Provider != "xai" || !h.HasKey || !h.DemoFallback {
		t.Errorf("unexpected health %+v", h)
	}
	want := map[string]bool{"groq": false, "xai": true, "ollama": true}
	for name, configured := range want {
		if h.Providers[name] != configured {
			t.Errorf("provider %s: expected %v, got %v", name, configured, h.Providers[name])
		}
	}
}

func TestLocalSecondary(t *testing.T) {
	providers := []ChatProvider{&stubProvider{name: "groq"}, &stubProvider{name: "ollama"}}

	if p := LocalSecondary(providers, "groq", true); p == nil || p.Name() != "ollama" {
		t.Error("expected ollama as secondary")
	}
	if LocalSecondary(providers, "ollama", true) != nil {
		t.Error("ollama cannot be its own secondary")
	}
	if LocalSecondary(providers, "groq", false) != nil {
		t.Error("disabled fallback should give no secondary")
	}
}
