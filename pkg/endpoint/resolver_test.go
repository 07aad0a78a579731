package endpoint

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/go-go-golems/jiminy/pkg/hass"
)

func TestResolveWithoutReaderReturnsStatic(t *testing.T) {
	r := NewResolver(Default())
	ep := r.Resolve(context.Background())
	assert.Equal(t, "localhost", ep.Host)
}

func TestResolveUsesOverrideHost(t *testing.T) {
	r := NewResolver(Default(), WithStateReader(hass.StaticStates{
		"input_text.jiminy_host": "10.0.0.5",
	}))

	ep := r.Resolve(context.Background())
	assert.Equal(t, "10.0.0.5", ep.Host)
	assert.Equal(t, 4567, ep.Port)
	assert.Equal(t, "http://10.0.0.5:4567/api/v1/conversation", ep.URL())
}

func TestResolveFallsBackOnReadError(t *testing.T) {
	r := NewResolver(Default(), WithStateReader(hass.StateReaderFunc(
		func(ctx context.Context, entityID string) (string, error) {
			return "", errors.New("platform unreachable")
		})))

	ep := r.Resolve(context.Background())
	assert.Equal(t, "localhost", ep.Host)
}

func TestResolveIgnoresUnsetStates(t *testing.T) {
	for _, state := range []string{"", "unknown", "unavailable", "   "} {
		r := NewResolver(Default(), WithStateReader(hass.StaticStates{
			"input_text.jiminy_host": state,
		}))
		ep := r.Resolve(context.Background())
		assert.Equal(t, "localhost", ep.Host, "state %q must fall back", state)
	}
}

func TestResolveTrimsOverride(t *testing.T) {
	r := NewResolver(Default(), WithStateReader(hass.StaticStates{
		"input_text.jiminy_host": " 192.168.1.20 ",
	}))
	assert.Equal(t, "192.168.1.20", r.Resolve(context.Background()).Host)
}

func TestResolveHonorsCustomOverrideEntity(t *testing.T) {
	r := NewResolver(Default(),
		WithStateReader(hass.StaticStates{"input_text.brain_host": "10.1.1.1"}),
		WithOverrideEntity("input_text.brain_host"),
	)
	assert.Equal(t, "10.1.1.1", r.Resolve(context.Background()).Host)
}
