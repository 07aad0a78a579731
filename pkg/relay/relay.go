package relay

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/lithammer/shortuuid/v3"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/jiminy/pkg/backend"
	"github.com/go-go-golems/jiminy/pkg/dispatch"
	"github.com/go-go-golems/jiminy/pkg/endpoint"
	"github.com/go-go-golems/jiminy/pkg/events"
	"github.com/go-go-golems/jiminy/pkg/helpers"
	"github.com/go-go-golems/jiminy/pkg/session"
)

// DefaultReply is spoken when the backend succeeds but sends no response
// text.
const DefaultReply = "I didn't understand that."

// Apologies by failure kind. The host platform speaks these verbatim, so
// they stay short and end the conversation.
const (
	apologyTimeout    = "I'm having trouble thinking right now. Please try again."
	apologyTransport  = "I can't connect to my brain right now. Please try again."
	apologyBackend    = "Something went wrong with my thinking. Please try again."
	apologyUnexpected = "I encountered an unexpected error. Please try again."
)

func apologyFor(kind backend.FailureKind) string {
	switch kind {
	case backend.FailureTimeout:
		return apologyTimeout
	case backend.FailureTransport:
		return apologyTransport
	case backend.FailureBackend:
		return apologyBackend
	default:
		return apologyUnexpected
	}
}

// Utterance is one incoming voice command. The relay treats it as
// read-only.
type Utterance struct {
	// Text is the transcribed command, never empty for a real turn.
	Text string
	// ConversationID groups turns into a dialogue. It is assigned by the
	// host platform and opaque to the relay.
	ConversationID string
	DeviceID       string
	Language       string
	UserID         string
}

// Result is the outcome of one turn. Process always produces one; there
// is no error channel to the host platform.
type Result struct {
	Reply                string
	ContinueConversation bool
	ConversationID       string
	// Failure is empty on success and names the failure bucket otherwise.
	Failure backend.FailureKind
}

// Failed reports whether the turn ended in an apology.
func (r Result) Failed() bool {
	return r.Failure != backend.FailureNone
}

// Relay carries voice turns to the conversation backend and interprets
// the response. It is safe for concurrent use.
type Relay struct {
	client     *backend.Client
	resolver   *endpoint.Resolver
	tracker    session.Tracker
	dispatcher *dispatch.Dispatcher
	sinks      []events.EventSink
	policy     ContinuationPolicy
	deviceID   string
	agentID    string
	now        func() time.Time
}

type Option func(*Relay)

func WithClient(client *backend.Client) Option {
	return func(r *Relay) {
		r.client = client
	}
}

func WithResolver(resolver *endpoint.Resolver) Option {
	return func(r *Relay) {
		r.resolver = resolver
	}
}

func WithTracker(tracker session.Tracker) Option {
	return func(r *Relay) {
		r.tracker = tracker
	}
}

// WithDispatcher enables action and media dispatch. Without one the relay
// only speaks.
func WithDispatcher(dispatcher *dispatch.Dispatcher) Option {
	return func(r *Relay) {
		r.dispatcher = dispatcher
	}
}

func WithSinks(sinks ...events.EventSink) Option {
	return func(r *Relay) {
		r.sinks = append(r.sinks, sinks...)
	}
}

func WithContinuationPolicy(policy ContinuationPolicy) Option {
	return func(r *Relay) {
		r.policy = policy
	}
}

// WithDeviceID sets the device identity reported to the backend when the
// utterance carries none.
func WithDeviceID(deviceID string) Option {
	return func(r *Relay) {
		r.deviceID = deviceID
	}
}

// WithAgentID names the host conversation agent in the request context.
func WithAgentID(agentID string) Option {
	return func(r *Relay) {
		r.agentID = agentID
	}
}

// WithClock replaces the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(r *Relay) {
		r.now = now
	}
}

func NewRelay(options ...Option) *Relay {
	r := &Relay{
		client:   backend.NewClient(),
		resolver: endpoint.NewResolver(endpoint.Default()),
		tracker:  session.NewRegistry(),
		now:      time.Now,
	}
	for _, o := range options {
		o(r)
	}
	return r
}

// Process carries one utterance to the backend and returns what to speak.
// It never returns an error and never panics: every failure becomes an
// apology with ContinueConversation false and a non-empty Failure kind.
func (r *Relay) Process(ctx context.Context, utt Utterance) (result Result) {
	ctx = events.WithEventSinks(ctx, r.sinks...)
	ctx = helpers.ContextWithCorrelationID(ctx, "turn_"+shortuuid.New())

	started := r.now()
	meta := events.EventMetadata{
		ID:             uuid.New(),
		ConversationID: utt.ConversationID,
	}

	defer func() {
		if rec := recover(); rec != nil {
			err := errors.Errorf("panic during turn: %v", rec)
			log.Error().
				Err(err).
				Str("conversation_id", utt.ConversationID).
				Msg("turn processing panicked")
			result = r.failTurn(ctx, meta, started, err, backend.FailureInternal)
		}
	}()

	ep := r.resolver.Resolve(ctx)
	lease := r.tracker.Touch(utt.ConversationID)
	meta.SessionID = lease.SessionID
	meta.Turn = lease.Turn
	meta.Endpoint = ep.String()

	log.Debug().
		Str("conversation_id", utt.ConversationID).
		Str("session_id", lease.SessionID).
		Int("turn", lease.Turn).
		Str("endpoint", ep.String()).
		Msg("processing turn")
	events.PublishEventToContext(ctx, events.NewTurnStartEvent(meta, utt.Text))

	turn := r.buildTurnRequest(utt, lease)

	timeout := ep.Timeout
	if timeout <= 0 {
		timeout = endpoint.DefaultTimeout
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	data, err := r.client.Converse(callCtx, ep.URL(), turn)
	if err != nil {
		kind := backend.Classify(err)
		log.Warn().
			Err(err).
			Str("conversation_id", utt.ConversationID).
			Str("failure", string(kind)).
			Msg("turn failed")
		return r.failTurn(ctx, meta, started, err, kind)
	}

	reply := data.Response
	if reply == "" {
		reply = DefaultReply
	}
	meta.Mood = data.SuggestedMood
	meta.DurationMs = durationSince(started, r.now())

	if r.dispatcher != nil && (len(data.Actions) > 0 || len(data.MediaActions) > 0) {
		// Side effects never delay the reply. The detached context keeps
		// sinks and correlation but outlives the turn.
		go r.dispatchResponse(context.WithoutCancel(ctx), meta, data)
	}

	continueConversation := r.policy.Continue(data.ContinueConversation)
	events.PublishEventToContext(ctx, events.NewTurnFinalEvent(meta, reply, continueConversation))

	return Result{
		Reply:                reply,
		ContinueConversation: continueConversation,
		ConversationID:       utt.ConversationID,
	}
}

func (r *Relay) buildTurnRequest(utt Utterance, lease session.Lease) *backend.TurnRequest {
	deviceID := utt.DeviceID
	if deviceID == "" {
		deviceID = r.deviceID
	}

	return &backend.TurnRequest{
		Message: utt.Text,
		Context: backend.RequestContext{
			ConversationID:   utt.ConversationID,
			HAConversationID: utt.ConversationID,
			SessionID:        lease.SessionID,
			DeviceID:         deviceID,
			Language:         utt.Language,
			VoiceInteraction: true,
			Timestamp:        r.now().UTC().Format(time.RFC3339),
			HAContext: backend.PlatformContext{
				AgentID: r.agentID,
				UserID:  utt.UserID,
			},
		},
	}
}

func (r *Relay) failTurn(ctx context.Context, meta events.EventMetadata, started time.Time, err error, kind backend.FailureKind) Result {
	meta.DurationMs = durationSince(started, r.now())
	events.PublishEventToContext(ctx, events.NewTurnErrorEvent(meta, err, string(kind)))

	return Result{
		Reply:                apologyFor(kind),
		ContinueConversation: false,
		ConversationID:       meta.ConversationID,
		Failure:              kind,
	}
}

func (r *Relay) dispatchResponse(ctx context.Context, meta events.EventMetadata, data *backend.ResponseData) {
	dispatched := r.dispatcher.DispatchActions(ctx, meta, data.Actions)
	dispatched += r.dispatcher.DispatchMedia(ctx, meta, data.MediaActions)
	log.Debug().
		Str("conversation_id", meta.ConversationID).
		Int("dispatched", dispatched).
		Msg("response side effects queued")
}

// TriggerProactive asks the backend to open a conversation, driven by
// host automations (motion, schedules). Unlike Process this surfaces
// failures to the caller.
func (r *Relay) TriggerProactive(ctx context.Context, trigger string, extra map[string]any) error {
	ctx = events.WithEventSinks(ctx, r.sinks...)

	ep := r.resolver.Resolve(ctx)
	timeout := ep.Timeout
	if timeout <= 0 {
		timeout = endpoint.DefaultTimeout
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	data, err := r.client.StartConversation(callCtx, ep.StartURL(), &backend.ProactiveRequest{
		Trigger:  trigger,
		Context:  extra,
		DeviceID: r.deviceID,
	})
	if err != nil {
		log.Error().Err(err).Str("trigger", trigger).Msg("proactive trigger failed")
		return errors.Wrapf(err, "could not trigger proactive conversation %s", trigger)
	}

	log.Info().Str("trigger", trigger).Msg("triggered proactive conversation")
	if data.Response != "" {
		log.Debug().Str("response", data.Response).Msg("proactive opening line")
	}

	events.PublishEventToContext(ctx, events.NewProactiveStartEvent(events.EventMetadata{
		ID: uuid.New(),
	}, trigger))
	return nil
}

// Health probes the resolved backend for its version info.
func (r *Relay) Health(ctx context.Context) (*backend.HealthInfo, error) {
	ep := r.resolver.Resolve(ctx)
	timeout := ep.Timeout
	if timeout <= 0 {
		timeout = endpoint.DefaultTimeout
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	return r.client.Health(callCtx, ep.HealthURL())
}

func durationSince(started, now time.Time) *int64 {
	ms := now.Sub(started).Milliseconds()
	return &ms
}
