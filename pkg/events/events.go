package events

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type EventType string

const (
	// Turn lifecycle, one start and exactly one final or error per turn
	EventTypeTurnStart EventType = "turn-start"
	EventTypeTurnFinal EventType = "turn-final"
	EventTypeTurnError EventType = "turn-error"

	// Dispatch lifecycle, zero or more per turn
	EventTypeActionDispatch EventType = "action-dispatch"
	EventTypeActionSkipped  EventType = "action-skipped"
	EventTypeMediaDispatch  EventType = "media-dispatch"

	// Proactive conversation opening, outside any turn
	EventTypeProactiveStart EventType = "proactive-start"
)

type Event interface {
	Type() EventType
	Metadata() EventMetadata
	Payload() []byte
}

// TurnData consolidates per-turn telemetry for UI/storage/aggregation.
type TurnData struct {
	Endpoint   string `json:"endpoint,omitempty" yaml:"endpoint,omitempty" mapstructure:"endpoint,omitempty"`
	DurationMs *int64 `json:"duration_ms,omitempty" yaml:"duration_ms,omitempty" mapstructure:"duration_ms,omitempty"`
	// Mood is the backend's suggested delivery mood for the reply, e.g.
	// "playful" or "sleepy". Purely advisory.
	Mood string `json:"mood,omitempty" yaml:"mood,omitempty" mapstructure:"mood,omitempty"`
}

type EventMetadata struct {
	TurnData
	ID uuid.UUID `json:"message_id" yaml:"message_id" mapstructure:"message_id"`
	// Correlation identifiers
	ConversationID string `json:"conversation_id,omitempty" yaml:"conversation_id,omitempty" mapstructure:"conversation_id"`
	SessionID      string `json:"session_id,omitempty" yaml:"session_id,omitempty" mapstructure:"session_id"`
	Turn           int    `json:"turn,omitempty" yaml:"turn,omitempty" mapstructure:"turn"`
	// Extra carries platform-specific/context values
	Extra map[string]interface{} `json:"extra,omitempty" yaml:"extra,omitempty" mapstructure:"extra"`
}

func (em EventMetadata) MarshalZerologObject(e *zerolog.Event) {
	e.Str("message_id", em.ID.String())
	if em.ConversationID != "" {
		e.Str("conversation_id", em.ConversationID)
	}
	if em.SessionID != "" {
		e.Str("session_id", em.SessionID)
	}
	if em.Turn > 0 {
		e.Int("turn", em.Turn)
	}
	if em.Endpoint != "" {
		e.Str("endpoint", em.Endpoint)
	}
	if em.DurationMs != nil {
		e.Int64("duration_ms", *em.DurationMs)
	}
	if em.Mood != "" {
		e.Str("mood", em.Mood)
	}
	if len(em.Extra) > 0 {
		e.Interface("extra", em.Extra)
	}
}

type EventImpl struct {
	Type_     EventType     `json:"type"`
	Error_    error         `json:"error,omitempty"`
	Metadata_ EventMetadata `json:"meta,omitempty"`

	// raw JSON the event was deserialized from, see NewEventFromJson
	payload []byte
}

func (e *EventImpl) MarshalZerologObject(ev *zerolog.Event) {
	ev.Str("type", string(e.Type_))
	if e.Error_ != nil {
		ev.Err(e.Error_)
	}
	ev.Object("meta", e.Metadata_)
}

func (e *EventImpl) Type() EventType {
	return e.Type_
}

func (e *EventImpl) Error() error {
	return e.Error_
}

func (e *EventImpl) Metadata() EventMetadata {
	return e.Metadata_
}

func (e *EventImpl) Payload() []byte {
	return e.payload
}

// SetPayload stores the raw JSON payload on the event implementation.
func (e *EventImpl) SetPayload(b []byte) {
	e.payload = b
}

var _ Event = &EventImpl{}

type EventTurnStart struct {
	EventImpl
	Message string `json:"message"`
}

func NewTurnStartEvent(metadata EventMetadata, message string) *EventTurnStart {
	return &EventTurnStart{
		EventImpl: EventImpl{
			Type_:     EventTypeTurnStart,
			Metadata_: metadata,
			payload:   nil,
		},
		Message: message,
	}
}

var _ Event = &EventTurnStart{}

type EventTurnFinal struct {
	EventImpl
	Reply                string `json:"reply"`
	ContinueConversation bool   `json:"continue_conversation"`
}

func NewTurnFinalEvent(metadata EventMetadata, reply string, continueConversation bool) *EventTurnFinal {
	return &EventTurnFinal{
		EventImpl: EventImpl{
			Type_:     EventTypeTurnFinal,
			Metadata_: metadata,
			payload:   nil,
		},
		Reply:                reply,
		ContinueConversation: continueConversation,
	}
}

var _ Event = &EventTurnFinal{}

type EventTurnError struct {
	EventImpl
	ErrorString string `json:"error_string"`
	// Kind is the failure bucket that chose the apology, e.g. "timeout"
	Kind string `json:"kind,omitempty"`
}

func NewTurnErrorEvent(metadata EventMetadata, err error, kind string) *EventTurnError {
	return &EventTurnError{
		EventImpl: EventImpl{
			Type_:     EventTypeTurnError,
			Metadata_: metadata,
			payload:   nil,
		},
		ErrorString: err.Error(),
		Kind:        kind,
	}
}

var _ Event = &EventTurnError{}

type EventActionDispatch struct {
	EventImpl
	// Service is the domain.service name of the dispatched call
	Service       string `json:"service"`
	CorrelationID string `json:"correlation_id,omitempty"`
}

func NewActionDispatchEvent(metadata EventMetadata, service string, correlationID string) *EventActionDispatch {
	return &EventActionDispatch{
		EventImpl: EventImpl{
			Type_:     EventTypeActionDispatch,
			Metadata_: metadata,
			payload:   nil,
		},
		Service:       service,
		CorrelationID: correlationID,
	}
}

var _ Event = &EventActionDispatch{}

type EventActionSkipped struct {
	EventImpl
	Service string `json:"service,omitempty"`
	Reason  string `json:"reason"`
}

func NewActionSkippedEvent(metadata EventMetadata, service string, reason string) *EventActionSkipped {
	return &EventActionSkipped{
		EventImpl: EventImpl{
			Type_:     EventTypeActionSkipped,
			Metadata_: metadata,
			payload:   nil,
		},
		Service: service,
		Reason:  reason,
	}
}

var _ Event = &EventActionSkipped{}

type EventMediaDispatch struct {
	EventImpl
	MediaType string `json:"media_type"`
	EntityID  string `json:"entity_id"`
}

func NewMediaDispatchEvent(metadata EventMetadata, mediaType string, entityID string) *EventMediaDispatch {
	return &EventMediaDispatch{
		EventImpl: EventImpl{
			Type_:     EventTypeMediaDispatch,
			Metadata_: metadata,
			payload:   nil,
		},
		MediaType: mediaType,
		EntityID:  entityID,
	}
}

var _ Event = &EventMediaDispatch{}

type EventProactiveStart struct {
	EventImpl
	Trigger string `json:"trigger"`
}

func NewProactiveStartEvent(metadata EventMetadata, trigger string) *EventProactiveStart {
	return &EventProactiveStart{
		EventImpl: EventImpl{
			Type_:     EventTypeProactiveStart,
			Metadata_: metadata,
			payload:   nil,
		},
		Trigger: trigger,
	}
}

var _ Event = &EventProactiveStart{}

func NewEventFromJson(b []byte) (Event, error) {
	var e *EventImpl
	err := json.Unmarshal(b, &e)
	if err != nil {
		return nil, err
	}

	e.payload = b

	switch e.Type_ {
	case EventTypeTurnStart:
		ret, ok := ToTypedEvent[EventTurnStart](e)
		if !ok {
			return nil, fmt.Errorf("could not cast event to EventTurnStart")
		}
		return ret, nil
	case EventTypeTurnFinal:
		ret, ok := ToTypedEvent[EventTurnFinal](e)
		if !ok {
			return nil, fmt.Errorf("could not cast event to EventTurnFinal")
		}
		return ret, nil
	case EventTypeTurnError:
		ret, ok := ToTypedEvent[EventTurnError](e)
		if !ok {
			return nil, fmt.Errorf("could not cast event to EventTurnError")
		}
		return ret, nil
	case EventTypeActionDispatch:
		ret, ok := ToTypedEvent[EventActionDispatch](e)
		if !ok {
			return nil, fmt.Errorf("could not cast event to EventActionDispatch")
		}
		return ret, nil
	case EventTypeActionSkipped:
		ret, ok := ToTypedEvent[EventActionSkipped](e)
		if !ok {
			return nil, fmt.Errorf("could not cast event to EventActionSkipped")
		}
		return ret, nil
	case EventTypeMediaDispatch:
		ret, ok := ToTypedEvent[EventMediaDispatch](e)
		if !ok {
			return nil, fmt.Errorf("could not cast event to EventMediaDispatch")
		}
		return ret, nil
	case EventTypeProactiveStart:
		ret, ok := ToTypedEvent[EventProactiveStart](e)
		if !ok {
			return nil, fmt.Errorf("could not cast event to EventProactiveStart")
		}
		return ret, nil
	}

	return e, nil
}

func ToTypedEvent[T any](e Event) (*T, bool) {
	var ret *T
	err := json.Unmarshal(e.Payload(), &ret)
	if err != nil {
		return nil, false
	}

	return ret, true
}
