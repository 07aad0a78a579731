package events

import (
	"encoding/json"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/rs/zerolog/log"
)

// EventSink represents a destination for turn events. Implementations can
// publish events to the watermill bus, log them, or hand them to tests.
type EventSink interface {
	// PublishEvent publishes an event to the sink.
	// Returns an error if the event could not be published.
	PublishEvent(event Event) error
}

// WatermillSink publishes events to a watermill Publisher, distributing
// them through the message bus to any number of subscribers.
type WatermillSink struct {
	publisher message.Publisher
	topic     string
}

func NewWatermillSink(publisher message.Publisher, topic string) *WatermillSink {
	return &WatermillSink{
		publisher: publisher,
		topic:     topic,
	}
}

// PublishEvent serializes the event to JSON and sends it as a watermill
// message. The conversation id rides along as message metadata so
// subscribers can filter without decoding the payload.
func (w *WatermillSink) PublishEvent(event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal event to JSON")
		return err
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	if cid := event.Metadata().ConversationID; cid != "" {
		msg.Metadata.Set("conversation_id", cid)
	}

	err = w.publisher.Publish(w.topic, msg)
	if err != nil {
		log.Error().Err(err).Str("topic", w.topic).Msg("Failed to publish event to watermill")
		return err
	}

	log.Trace().Str("topic", w.topic).Str("event_type", string(event.Type())).Msg("Published event to watermill")
	return nil
}

var _ EventSink = (*WatermillSink)(nil)

// NullSink discards all events. Useful for testing or when event
// publishing is not desired.
type NullSink struct{}

func NewNullSink() *NullSink {
	return &NullSink{}
}

func (n *NullSink) PublishEvent(event Event) error {
	return nil
}

var _ EventSink = (*NullSink)(nil)

// LogSink writes each event to the zerolog logger, for setups that want
// turn visibility without running a bus.
type LogSink struct{}

func NewLogSink() *LogSink {
	return &LogSink{}
}

func (l *LogSink) PublishEvent(event Event) error {
	log.Info().
		Str("event_type", string(event.Type())).
		Object("meta", event.Metadata()).
		Msg("turn event")
	return nil
}

var _ EventSink = (*LogSink)(nil)
