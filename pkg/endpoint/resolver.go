package endpoint

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/jiminy/pkg/hass"
	"github.com/go-go-golems/jiminy/pkg/helpers"
)

// DefaultOverrideEntity is the input_text entity whose state, when set,
// replaces the statically configured host. Moving the backend to another
// machine then needs no reconfiguration, just a state update.
const DefaultOverrideEntity = "input_text.jiminy_host"

// Resolver produces the endpoint for each turn from static configuration
// plus an optional live host override.
type Resolver struct {
	static         Endpoint
	reader         hass.StateReader
	overrideEntity string
}

type ResolverOption func(*Resolver)

// WithStateReader enables the dynamic override. Without a reader the
// resolver always returns the static endpoint.
func WithStateReader(reader hass.StateReader) ResolverOption {
	return func(r *Resolver) {
		r.reader = reader
	}
}

func WithOverrideEntity(entityID string) ResolverOption {
	return func(r *Resolver) {
		r.overrideEntity = entityID
	}
}

func NewResolver(static Endpoint, options ...ResolverOption) *Resolver {
	r := &Resolver{
		static:         static,
		overrideEntity: DefaultOverrideEntity,
	}
	for _, o := range options {
		o(r)
	}
	return r
}

// Static returns the configured endpoint without consulting the override.
func (r *Resolver) Static() Endpoint {
	return r.static
}

// Resolve returns the endpoint for one turn. Any failure to read the
// override is folded back to the static endpoint; resolution itself never
// fails a turn.
func (r *Resolver) Resolve(ctx context.Context) Endpoint {
	return r.liveEndpoint(ctx).ValueOrElse(func(err error) Endpoint {
		log.Debug().
			Err(err).
			Str("entity", r.overrideEntity).
			Str("endpoint", r.static.String()).
			Msg("using static endpoint")
		return r.static
	})
}

// liveEndpoint reads the override entity and, when it holds a usable
// host, grafts it onto the static endpoint. Unknown and unavailable
// sentinel states count as unset.
func (r *Resolver) liveEndpoint(ctx context.Context) helpers.Result[Endpoint] {
	if r.reader == nil {
		return helpers.NewErrorResult[Endpoint](errors.New("no state reader configured"))
	}

	state, err := r.reader.State(ctx, r.overrideEntity)
	if err != nil {
		return helpers.NewErrorResult[Endpoint](errors.Wrap(err, "override read failed"))
	}

	host := strings.TrimSpace(state)
	switch host {
	case "", "unknown", "unavailable":
		return helpers.NewErrorResult[Endpoint](errors.Errorf("override entity %s is unset", r.overrideEntity))
	}

	ep := r.static
	ep.Host = host
	log.Debug().
		Str("entity", r.overrideEntity).
		Str("host", host).
		Msg("using dynamic host override")
	return helpers.NewValueResult(ep)
}
