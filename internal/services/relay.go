package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/zoobzio/capitan"
	"github.com/zoobzio/pipz"

	"wandernest-backend/internal/models"
)

const (
	demoProvider = "demo"
	reasonDemo   = "demo_mode"
)

// RelayConfig is read once at start-up and never changed by the relay.
type RelayConfig struct {
	Preferred    string
	DemoFallback bool
	Timeout      time.Duration
	Locale       string
	Currency     string
}

// ChatRelay sends a conversation to the preferred provider, falls back to
// the local secondary on auth failures and degrades to the offline writer
// otherwise. It keeps no per-request state.
type ChatRelay struct {
	cfg       RelayConfig
	primaries map[string]ChatProvider
	order     []string
	secondary ChatProvider
	fallback  *FallbackWriter
	pipeline  pipz.Chainable[*providerCall]
}

// providerCall carries one adapter invocation through the timeout pipeline.
type providerCall struct {
	provider ChatProvider
	messages []models.ChatMessage
	reply    *models.NormalizedReply
	err      error
}

// NewChatRelay builds the relay. secondary may be nil.
func NewChatRelay(cfg RelayConfig, primaries []ChatProvider, secondary ChatProvider) *ChatRelay {
	r := &ChatRelay{
		cfg:       cfg,
		primaries: make(map[string]ChatProvider, len(primaries)),
		secondary: secondary,
		fallback:  NewFallbackWriter(cfg.Locale, cfg.Currency),
	}
	for _, p := range primaries {
		if _, dup := r.primaries[p.Name()]; !dup {
			r.order = append(r.order, p.Name())
		}
		r.primaries[p.Name()] = p
	}

	var call pipz.Chainable[*providerCall] = pipz.Apply(pipz.NewIdentity("provider-call", "Calls one chat provider"), func(ctx context.Context, c *providerCall) (*providerCall, error) {
		c.reply, c.err = c.provider.Chat(ctx, c.messages)
		return c, nil
	})
	if cfg.Timeout > 0 {
		call = pipz.NewTimeout(pipz.NewIdentity("provider-timeout", "Bounds a provider call"), call, cfg.Timeout)
	}
	r.pipeline = call
	return r
}

// Relay returns exactly one reply. The only error it returns is a
// *ProviderError, and only when the demo fallback is disabled.
func (r *ChatRelay) Relay(ctx context.Context, messages []models.ChatMessage, trip *models.TripContext) (*models.NormalizedReply, error) {
	if trip == nil {
		trip = &models.TripContext{}
	}

	if r.cfg.Preferred == demoProvider {
		return r.offline(ctx, messages, trip, reasonDemo), nil
	}

	primary, ok := r.primaries[r.cfg.Preferred]
	if !ok {
		if !r.cfg.DemoFallback {
			return nil, &ProviderError{
				Provider: r.cfg.Preferred,
				Kind:     ErrorKindConfig,
				Status:   http.StatusInternalServerError,
				Err:      errors.New("unknown provider"),
			}
		}
		return r.offline(ctx, messages, trip, "unknown_provider: "+r.cfg.Preferred), nil
	}

	prompt := BuildPrompt(messages, trip, r.fallback.currency)

	reply, perr := r.call(ctx, primary, prompt)
	if perr == nil {
		reply.Meta.Demo = false
		return reply, nil
	}

	if perr.IsAuthFailure() && r.secondary != nil {
		log.Printf("AI relay: %v, trying %s", perr, r.secondary.Name())
		capitan.Info(ctx, RelayFallback,
			ProviderKey.Field(r.secondary.Name()),
			FallbackFromKey.Field(primary.Name()),
			ErrorKindKey.Field(string(perr.Kind)),
		)

		sreply, serr := r.call(ctx, r.secondary, prompt)
		if serr == nil {
			sreply.Meta.Demo = false
			sreply.Meta.FallbackFrom = primary.Name()
			return sreply, nil
		}
		if !r.cfg.DemoFallback {
			return nil, perr
		}
		return r.offline(ctx, messages, trip, fmt.Sprintf("%v; fallback %v", perr, serr)), nil
	}

	if !r.cfg.DemoFallback {
		return nil, perr
	}
	return r.offline(ctx, messages, trip, perr.Error()), nil
}

// call runs one adapter under the configured timeout and emits the call events.
func (r *ChatRelay) call(ctx context.Context, p ChatProvider, messages []models.ChatMessage) (*models.NormalizedReply, *ProviderError) {
	start := time.Now()
	capitan.Info(ctx, ProviderCallStarted,
		ProviderKey.Field(p.Name()),
		ModelKey.Field(p.Model()),
		MessageCountKey.Field(len(messages)),
	)

	c := &providerCall{provider: p, messages: messages}
	var perr *ProviderError
	if _, err := r.pipeline.Process(ctx, c); err != nil {
		// The abandoned adapter may still write to c, so it is not read here.
		kind := ErrorKindNetwork
		if errors.Is(err, context.DeadlineExceeded) {
			kind = ErrorKindTimeout
		}
		perr = &ProviderError{Provider: p.Name(), Kind: kind, Err: err}
	} else if c.err != nil {
		perr = asProviderError(p.Name(), c.err)
	} else if c.reply == nil || len(c.reply.Choices) == 0 {
		perr = malformed(p.Name(), errors.New("empty reply"))
	}

	duration := int(time.Since(start).Milliseconds())
	if perr != nil {
		capitan.Error(ctx, ProviderCallFailed,
			ProviderKey.Field(p.Name()),
			ModelKey.Field(p.Model()),
			ErrorKindKey.Field(string(perr.Kind)),
			HTTPStatusKey.Field(perr.Status),
			ReasonKey.Field(perr.Error()),
			DurationMsKey.Field(duration),
		)
		return nil, perr
	}

	capitan.Info(ctx, ProviderCallCompleted,
		ProviderKey.Field(c.reply.Meta.Provider),
		ModelKey.Field(c.reply.Meta.Model),
		DurationMsKey.Field(duration),
	)
	return c.reply, nil
}

func (r *ChatRelay) offline(ctx context.Context, messages []models.ChatMessage, trip *models.TripContext, reason string) *models.NormalizedReply {
	if reason != reasonDemo {
		log.Printf("AI relay: serving offline reply: %s", reason)
	}
	capitan.Info(ctx, RelayOffline,
		ReasonKey.Field(reason),
		MessageCountKey.Field(len(messages)),
	)
	return models.NewAssistantReply(r.fallback.Generate(messages, trip), models.ReplyMeta{
		Provider: demoProvider,
		Demo:     true,
		Reason:   reason,
	})
}

// Health reports provider configuration without touching the network.
func (r *ChatRelay) Health() models.AIHealth {
	h := models.AIHealth{
		OK:           true,
		Provider:     r.cfg.Preferred,
		DemoFallback: r.cfg.DemoFallback,
		Providers:    make(map[string]bool, len(r.primaries)+1),
	}
	for _, name := range r.order {
		h.Providers[name] = r.primaries[name].Configured()
	}
	if r.secondary != nil {
		h.Providers[r.secondary.Name()] = r.secondary.Configured()
	}
	if p, ok := r.primaries[r.cfg.Preferred]; ok {
		h.HasKey = p.Configured()
	}
	return h
}

// Preferred names the provider tried first.
func (r *ChatRelay) Preferred() string { return r.cfg.Preferred }

func asProviderError(provider string, err error) *ProviderError {
	var perr *ProviderError
	if errors.As(err, &perr) {
		return perr
	}
	return &ProviderError{Provider: provider, Kind: ErrorKindNetwork, Err: err}
}
