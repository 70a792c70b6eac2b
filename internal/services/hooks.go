package services

import "github.com/zoobzio/capitan"

// Signals emitted by the relay.
var (
	ProviderCallStarted   = capitan.NewSignal("ai.provider.call.started", "Provider call started")
	ProviderCallCompleted = capitan.NewSignal("ai.provider.call.completed", "Provider call completed")
	ProviderCallFailed    = capitan.NewSignal("ai.provider.call.failed", "Provider call failed")
	RelayFallback         = capitan.NewSignal("ai.relay.fallback", "Relay fell back to the local provider")
	RelayOffline          = capitan.NewSignal("ai.relay.offline", "Relay served the offline reply")
)

// Keys for event fields.
var (
	ProviderKey     = capitan.NewStringKey("ai.provider")
	ModelKey        = capitan.NewStringKey("ai.model")
	FallbackFromKey = capitan.NewStringKey("ai.fallback.from")
	ErrorKindKey    = capitan.NewStringKey("ai.error.kind")
	ReasonKey       = capitan.NewStringKey("ai.reason")
	HTTPStatusKey   = capitan.NewIntKey("ai.http.status")
	MessageCountKey = capitan.NewIntKey("ai.messages")
	DurationMsKey   = capitan.NewIntKey("ai.duration.ms")
)
