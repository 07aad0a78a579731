package dispatch

import (
	"context"
	"encoding/json"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/jiminy/pkg/events"
	"github.com/go-go-golems/jiminy/pkg/hass"
	"github.com/go-go-golems/jiminy/pkg/helpers"
)

// Executor drains the service-call queue and invokes the platform. Every
// failure is contained to its own call: the handler never returns an
// error, so the queue never redelivers and the turn is never touched.
type Executor struct {
	caller  hass.ServiceCaller
	timeout time.Duration
}

type ExecutorOption func(*Executor)

// WithCallTimeout bounds each service invocation.
func WithCallTimeout(timeout time.Duration) ExecutorOption {
	return func(e *Executor) {
		e.timeout = timeout
	}
}

func NewExecutor(caller hass.ServiceCaller, options ...ExecutorOption) *Executor {
	e := &Executor{
		caller:  caller,
		timeout: 10 * time.Second,
	}
	for _, o := range options {
		o(e)
	}
	return e
}

// Register attaches the executor to the router's queue topic.
func (e *Executor) Register(router *events.EventRouter, topic string) {
	router.AddHandler("service-call-executor", topic, e.Handler())
}

// Handler returns the watermill handler draining the queue.
func (e *Executor) Handler() func(msg *message.Message) error {
	return func(msg *message.Message) error {
		var call hass.ServiceCall
		if err := json.Unmarshal(msg.Payload, &call); err != nil {
			log.Warn().Err(err).Str("message_id", msg.UUID).Msg("dropping undecodable service call")
			return nil
		}

		// The publish context carries correlation id and event sinks but
		// may already be canceled once the turn has answered; keep the
		// values, drop the cancelation.
		ctx, cancel := context.WithTimeout(context.WithoutCancel(msg.Context()), e.timeout)
		defer cancel()

		correlationID := helpers.CorrelationIDFromContext(ctx)
		name := call.Name()

		if err := e.caller.CallService(ctx, call); err != nil {
			log.Error().
				Err(err).
				Str("service", name).
				Str("correlation_id", correlationID).
				Msg("service call failed")
			events.PublishEventToContext(ctx, events.NewActionSkippedEvent(
				events.EventMetadata{ConversationID: msg.Metadata.Get("conversation_id")},
				name,
				"execution failed: "+err.Error(),
			))
			return nil
		}

		log.Debug().
			Str("service", name).
			Str("correlation_id", correlationID).
			Msg("executed service call")
		return nil
	}
}
