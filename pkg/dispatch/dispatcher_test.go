package dispatch

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-go-golems/jiminy/pkg/backend"
	"github.com/go-go-golems/jiminy/pkg/events"
	"github.com/go-go-golems/jiminy/pkg/hass"
	"github.com/go-go-golems/jiminy/pkg/helpers"
)

type capturingPublisher struct {
	mu        sync.Mutex
	published map[string][]*message.Message
	err       error
}

func newCapturingPublisher() *capturingPublisher {
	return &capturingPublisher{published: map[string][]*message.Message{}}
}

func (p *capturingPublisher) Publish(topic string, msgs ...*message.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.published[topic] = append(p.published[topic], msgs...)
	return nil
}

func (p *capturingPublisher) Close() error {
	return nil
}

func (p *capturingPublisher) calls(t *testing.T, topic string) []hass.ServiceCall {
	t.Helper()
	p.mu.Lock()
	defer p.mu.Unlock()

	var calls []hass.ServiceCall
	for _, msg := range p.published[topic] {
		var call hass.ServiceCall
		require.NoError(t, json.Unmarshal(msg.Payload, &call))
		calls = append(calls, call)
	}
	return calls
}

type collectingSink struct {
	mu     sync.Mutex
	events []events.Event
}

func (c *collectingSink) PublishEvent(e events.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
	return nil
}

func (c *collectingSink) byType(et events.EventType) []events.Event {
	c.mu.Lock()
	defer c.mu.Unlock()

	var out []events.Event
	for _, e := range c.events {
		if e.Type() == et {
			out = append(out, e)
		}
	}
	return out
}

func dispatchContext(sink events.EventSink) context.Context {
	ctx := helpers.ContextWithCorrelationID(context.Background(), "turn_test")
	return events.WithEventSinks(ctx, sink)
}

func TestDispatchActionsSkipsInvalidDescriptor(t *testing.T) {
	pub := newCapturingPublisher()
	sink := &collectingSink{}
	d := NewDispatcher(pub)

	meta := events.EventMetadata{ConversationID: "c1"}
	dispatched := d.DispatchActions(dispatchContext(sink), meta, []backend.ActionDescriptor{
		{Domain: "light", Service: "turn_on", Target: map[string]any{"entity_id": "light.porch"}},
		{Domain: "light"}, // no service
		{Domain: "switch", Service: "toggle"},
	})

	assert.Equal(t, 2, dispatched)

	calls := pub.calls(t, ServiceCallTopic)
	require.Len(t, calls, 2)
	assert.Equal(t, "light.turn_on", calls[0].Name())
	assert.Equal(t, "switch.toggle", calls[1].Name())
	assert.False(t, calls[0].Blocking)

	skipped := sink.byType(events.EventTypeActionSkipped)
	require.Len(t, skipped, 1)
	assert.Len(t, sink.byType(events.EventTypeActionDispatch), 2)
}

func TestDispatchActionsHonorsAllowlist(t *testing.T) {
	pub := newCapturingPublisher()
	sink := &collectingSink{}
	d := NewDispatcher(pub, WithAllowlist(NewAllowlist([]string{"light.*"})))

	dispatched := d.DispatchActions(dispatchContext(sink), events.EventMetadata{}, []backend.ActionDescriptor{
		{Domain: "light", Service: "turn_on"},
		{Domain: "switch", Service: "toggle"},
	})

	assert.Equal(t, 1, dispatched)
	calls := pub.calls(t, ServiceCallTopic)
	require.Len(t, calls, 1)
	assert.Equal(t, "light.turn_on", calls[0].Name())

	skipped := sink.byType(events.EventTypeActionSkipped)
	require.Len(t, skipped, 1)
}

func TestDispatchActionsStampsCorrelation(t *testing.T) {
	pub := newCapturingPublisher()
	d := NewDispatcher(pub)

	d.DispatchActions(dispatchContext(&collectingSink{}), events.EventMetadata{ConversationID: "c1"}, []backend.ActionDescriptor{
		{Domain: "light", Service: "turn_on"},
	})

	pub.mu.Lock()
	defer pub.mu.Unlock()
	msgs := pub.published[ServiceCallTopic]
	require.Len(t, msgs, 1)
	assert.Equal(t, "turn_test", msgs[0].Metadata.Get("correlation_id"))
	assert.Equal(t, "c1", msgs[0].Metadata.Get("conversation_id"))
}

func TestDispatchMediaRoutesAudioToSpeaker(t *testing.T) {
	pub := newCapturingPublisher()
	d := NewDispatcher(pub)

	dispatched := d.DispatchMedia(dispatchContext(&collectingSink{}), events.EventMetadata{}, []backend.MediaAction{
		{Type: backend.MediaTypeAudio, URL: "http://backend/chime.mp3"},
		{Type: backend.MediaTypeSoundEffect, URL: "http://backend/ding.mp3", EntityID: "media_player.kitchen"},
	})

	assert.Equal(t, 2, dispatched)
	calls := pub.calls(t, ServiceCallTopic)
	require.Len(t, calls, 2)

	assert.Equal(t, "media_player.play_media", calls[0].Name())
	assert.Equal(t, "http://backend/chime.mp3", calls[0].Data["media_content_id"])
	assert.Equal(t, "music", calls[0].Data["media_content_type"])
	assert.Equal(t, DefaultSpeakerEntity, calls[0].Target["entity_id"])

	assert.Equal(t, "media_player.kitchen", calls[1].Target["entity_id"])
}

func TestDispatchMediaTTS(t *testing.T) {
	pub := newCapturingPublisher()
	d := NewDispatcher(pub)

	dispatched := d.DispatchMedia(dispatchContext(&collectingSink{}), events.EventMetadata{}, []backend.MediaAction{
		{Type: backend.MediaTypeTTS, Message: "over here"},
		{Type: backend.MediaTypeTTS}, // no message
	})

	assert.Equal(t, 1, dispatched)
	calls := pub.calls(t, ServiceCallTopic)
	require.Len(t, calls, 1)
	assert.Equal(t, "tts.speak", calls[0].Name())
	assert.Equal(t, "over here", calls[0].Data["message"])
	assert.Equal(t, DefaultSpeakerEntity, calls[0].Data["media_player_entity_id"])
}

func TestDispatchMediaUnknownTypeSkipped(t *testing.T) {
	pub := newCapturingPublisher()
	sink := &collectingSink{}
	d := NewDispatcher(pub)

	dispatched := d.DispatchMedia(dispatchContext(sink), events.EventMetadata{}, []backend.MediaAction{
		{Type: "hologram", URL: "http://backend/x"},
	})

	assert.Equal(t, 0, dispatched)
	assert.Empty(t, pub.calls(t, ServiceCallTopic))
	require.Len(t, sink.byType(events.EventTypeActionSkipped), 1)
}

func TestDispatchSurvivesPublishFailure(t *testing.T) {
	pub := newCapturingPublisher()
	pub.err = errors.New("bus closed")
	sink := &collectingSink{}
	d := NewDispatcher(pub)

	dispatched := d.DispatchActions(dispatchContext(sink), events.EventMetadata{}, []backend.ActionDescriptor{
		{Domain: "light", Service: "turn_on"},
	})

	assert.Equal(t, 0, dispatched)
	require.Len(t, sink.byType(events.EventTypeActionSkipped), 1)
}

func TestDispatchCustomDefaultSpeaker(t *testing.T) {
	pub := newCapturingPublisher()
	d := NewDispatcher(pub, WithDefaultSpeaker("media_player.living_room"))

	d.DispatchMedia(dispatchContext(&collectingSink{}), events.EventMetadata{}, []backend.MediaAction{
		{Type: backend.MediaTypeAudio, URL: "http://backend/chime.mp3"},
	})

	calls := pub.calls(t, ServiceCallTopic)
	require.Len(t, calls, 1)
	assert.Equal(t, "media_player.living_room", calls[0].Target["entity_id"])
}
