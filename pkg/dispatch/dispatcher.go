package dispatch

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/jiminy/pkg/backend"
	"github.com/go-go-golems/jiminy/pkg/events"
	"github.com/go-go-golems/jiminy/pkg/hass"
	"github.com/go-go-golems/jiminy/pkg/helpers"
)

// ServiceCallTopic is the queue topic between dispatcher and executor.
const ServiceCallTopic = "jiminy.service_calls"

// DefaultSpeakerEntity receives media playback when the backend does not
// name a target.
const DefaultSpeakerEntity = "media_player.jiminy_speaker"

// Dispatcher turns response descriptors into queued service calls. It
// validates and publishes; it never waits for execution, and a bad
// descriptor only costs that descriptor.
type Dispatcher struct {
	publisher      message.Publisher
	topic          string
	allowlist      *Allowlist
	defaultSpeaker string
}

type DispatcherOption func(*Dispatcher)

func WithTopic(topic string) DispatcherOption {
	return func(d *Dispatcher) {
		d.topic = topic
	}
}

func WithAllowlist(allowlist *Allowlist) DispatcherOption {
	return func(d *Dispatcher) {
		d.allowlist = allowlist
	}
}

func WithDefaultSpeaker(entityID string) DispatcherOption {
	return func(d *Dispatcher) {
		d.defaultSpeaker = entityID
	}
}

func NewDispatcher(publisher message.Publisher, options ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		publisher:      helpers.CorrelationPublisherDecorator{Publisher: publisher},
		topic:          ServiceCallTopic,
		defaultSpeaker: DefaultSpeakerEntity,
	}
	for _, o := range options {
		o(d)
	}
	return d
}

// DispatchActions queues the backend's suggested service calls and
// returns how many were accepted. Descriptors without a domain or
// service, and calls outside the allowlist, are skipped with a warning.
func (d *Dispatcher) DispatchActions(ctx context.Context, meta events.EventMetadata, actions []backend.ActionDescriptor) int {
	if len(actions) == 0 {
		return 0
	}
	log.Debug().Int("count", len(actions)).Msg("processing suggested actions")

	dispatched := 0
	for _, action := range actions {
		if !action.Valid() {
			log.Warn().Interface("action", action).Msg("invalid action format")
			events.PublishEventToContext(ctx, events.NewActionSkippedEvent(meta, actionName(action), "missing domain or service"))
			continue
		}

		call := hass.ServiceCall{
			Domain:  action.Domain,
			Service: action.Service,
			Data:    action.Data,
			Target:  action.Target,
		}
		if d.enqueue(ctx, meta, call) {
			dispatched++
		}
	}
	return dispatched
}

// DispatchMedia queues playback for non-speech audio. The tts type is a
// legacy path for secondary speakers; primary speech travels back as the
// reply text.
func (d *Dispatcher) DispatchMedia(ctx context.Context, meta events.EventMetadata, mediaActions []backend.MediaAction) int {
	if len(mediaActions) == 0 {
		return 0
	}
	log.Debug().Int("count", len(mediaActions)).Msg("processing media actions")

	dispatched := 0
	for _, media := range mediaActions {
		call, ok := d.mediaCall(ctx, meta, media)
		if !ok {
			continue
		}
		if d.enqueue(ctx, meta, call) {
			events.PublishEventToContext(ctx, events.NewMediaDispatchEvent(meta, media.Type, d.speakerFor(media)))
			dispatched++
		}
	}
	return dispatched
}

func (d *Dispatcher) speakerFor(media backend.MediaAction) string {
	if media.EntityID != "" {
		return media.EntityID
	}
	return d.defaultSpeaker
}

func (d *Dispatcher) mediaCall(ctx context.Context, meta events.EventMetadata, media backend.MediaAction) (hass.ServiceCall, bool) {
	entityID := d.speakerFor(media)

	switch media.Type {
	case backend.MediaTypeTTS:
		if media.Message == "" {
			return hass.ServiceCall{}, false
		}
		log.Warn().Str("entity_id", entityID).Msg("tts media action is deprecated, reply text carries the speech")
		return hass.ServiceCall{
			Domain:  "tts",
			Service: "speak",
			Data: map[string]any{
				"message":                media.Message,
				"media_player_entity_id": entityID,
			},
		}, true

	case backend.MediaTypeAudio, backend.MediaTypeSoundEffect:
		if media.URL == "" {
			return hass.ServiceCall{}, false
		}
		return hass.ServiceCall{
			Domain:  "media_player",
			Service: "play_media",
			Data: map[string]any{
				"media_content_id":   media.URL,
				"media_content_type": "music",
			},
			Target: map[string]any{"entity_id": entityID},
		}, true

	default:
		log.Warn().Str("type", media.Type).Msg("unknown media action type")
		events.PublishEventToContext(ctx, events.NewActionSkippedEvent(meta, "media."+media.Type, "unknown media action type"))
		return hass.ServiceCall{}, false
	}
}

// enqueue publishes one call onto the queue. The publishing context rides
// on the message so the executor inherits correlation id and event sinks.
func (d *Dispatcher) enqueue(ctx context.Context, meta events.EventMetadata, call hass.ServiceCall) bool {
	name := call.Name()

	if !d.allowlist.Allowed(name) {
		log.Warn().Str("service", name).Msg("service not in allowlist")
		events.PublishEventToContext(ctx, events.NewActionSkippedEvent(meta, name, "not in allowlist"))
		return false
	}

	payload, err := json.Marshal(call)
	if err != nil {
		log.Error().Err(err).Str("service", name).Msg("could not encode service call")
		events.PublishEventToContext(ctx, events.NewActionSkippedEvent(meta, name, "encode failed"))
		return false
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.SetContext(ctx)
	if meta.ConversationID != "" {
		msg.Metadata.Set("conversation_id", meta.ConversationID)
	}

	if err := d.publisher.Publish(d.topic, msg); err != nil {
		log.Error().Err(err).Str("service", name).Msg("could not queue service call")
		events.PublishEventToContext(ctx, events.NewActionSkippedEvent(meta, name, "queue publish failed"))
		return false
	}

	correlationID := msg.Metadata.Get("correlation_id")
	log.Debug().Str("service", name).Str("correlation_id", correlationID).Msg("queued service call")
	events.PublishEventToContext(ctx, events.NewActionDispatchEvent(meta, name, correlationID))
	return true
}

func actionName(action backend.ActionDescriptor) string {
	if action.Domain == "" && action.Service == "" {
		return ""
	}
	return fmt.Sprintf("%s.%s", action.Domain, action.Service)
}
