package hass

import (
	"context"
)

// ServiceCall describes a single Home Assistant service invocation, e.g.
// light.turn_on with a brightness payload targeted at one entity.
type ServiceCall struct {
	Domain  string         `json:"domain"`
	Service string         `json:"service"`
	Data    map[string]any `json:"data,omitempty"`
	Target  map[string]any `json:"target,omitempty"`
	// Blocking mirrors the platform's service-call flag. Dispatched calls
	// never block the conversation turn, so the dispatcher always sends
	// false; the field exists for direct callers that do want to wait.
	Blocking bool `json:"blocking,omitempty"`
}

// Name returns the domain.service form used in logs and allowlist patterns.
func (c ServiceCall) Name() string {
	return c.Domain + "." + c.Service
}

// ServiceCaller invokes services on the platform.
type ServiceCaller interface {
	CallService(ctx context.Context, call ServiceCall) error
}

// StateReader reads the current state string of an entity.
type StateReader interface {
	State(ctx context.Context, entityID string) (string, error)
}

// CallerFunc adapts a function to the ServiceCaller interface.
type CallerFunc func(ctx context.Context, call ServiceCall) error

func (f CallerFunc) CallService(ctx context.Context, call ServiceCall) error {
	return f(ctx, call)
}

// StateReaderFunc adapts a function to the StateReader interface.
type StateReaderFunc func(ctx context.Context, entityID string) (string, error)

func (f StateReaderFunc) State(ctx context.Context, entityID string) (string, error) {
	return f(ctx, entityID)
}

// StaticStates is a fixed entity-to-state map, mostly useful in tests and
// dry runs.
type StaticStates map[string]string

func (s StaticStates) State(_ context.Context, entityID string) (string, error) {
	return s[entityID], nil
}

var _ ServiceCaller = CallerFunc(nil)
var _ StateReader = StateReaderFunc(nil)
var _ StateReader = StaticStates(nil)
