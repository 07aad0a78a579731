package backend

// Wire types for the conversation backend. The backend speaks a bespoke
// JSON protocol: one POST per turn carrying the utterance plus assistant
// context, answered by a success/data/error envelope.

// TurnRequest is the request body for a single conversation turn.
type TurnRequest struct {
	Message string         `json:"message"`
	Context RequestContext `json:"context"`
}

// RequestContext carries the conversation identity and platform metadata
// alongside the utterance.
type RequestContext struct {
	ConversationID string `json:"conversation_id"`
	// HAConversationID duplicates ConversationID under the platform's own
	// key so backend-side logs can be joined with assistant traces.
	HAConversationID string          `json:"ha_conversation_id,omitempty"`
	SessionID        string          `json:"session_id,omitempty"`
	DeviceID         string          `json:"device_id,omitempty"`
	Language         string          `json:"language,omitempty"`
	VoiceInteraction bool            `json:"voice_interaction"`
	Timestamp        string          `json:"timestamp"`
	HAContext        PlatformContext `json:"ha_context"`
}

// PlatformContext identifies the assistant agent and user on whose behalf
// the turn runs.
type PlatformContext struct {
	AgentID string `json:"agent_id,omitempty"`
	UserID  string `json:"user_id,omitempty"`
}

// Envelope is the backend's response wrapper.
type Envelope struct {
	Success bool          `json:"success"`
	Data    *ResponseData `json:"data,omitempty"`
	Error   string        `json:"error,omitempty"`
}

// ResponseData is the payload of a successful turn. All fields are
// optional; missing fields fall back to defaults chosen by the caller.
type ResponseData struct {
	Response string `json:"response,omitempty"`
	// ContinueConversation is a tri-state: nil means the backend did not
	// say, and the relay's continuation policy decides.
	ContinueConversation *bool              `json:"continue_conversation,omitempty"`
	Actions              []ActionDescriptor `json:"actions,omitempty"`
	MediaActions         []MediaAction      `json:"media_actions,omitempty"`
	SuggestedMood        string             `json:"suggested_mood,omitempty"`
}

// ActionDescriptor is a platform service call suggested by the backend.
type ActionDescriptor struct {
	Domain  string         `json:"domain"`
	Service string         `json:"service"`
	Data    map[string]any `json:"data,omitempty"`
	Target  map[string]any `json:"target,omitempty"`
}

// Valid reports whether the descriptor names a service at all. Invalid
// descriptors are skipped with a warning, never an error.
func (a ActionDescriptor) Valid() bool {
	return a.Domain != "" && a.Service != ""
}

// Media action types the backend may emit. Sound effects and audio share
// the playback path; tts is a legacy secondary-speaker path.
const (
	MediaTypeTTS         = "tts"
	MediaTypeAudio       = "audio"
	MediaTypeSoundEffect = "sound_effect"
)

// MediaAction is a non-speech audio instruction.
type MediaAction struct {
	Type     string `json:"type"`
	Message  string `json:"message,omitempty"`
	URL      string `json:"url,omitempty"`
	EntityID string `json:"entity_id,omitempty"`
}

// ProactiveRequest asks the backend to open a conversation on its own,
// e.g. from a motion-triggered automation.
type ProactiveRequest struct {
	Trigger  string         `json:"trigger"`
	Context  map[string]any `json:"context"`
	DeviceID string         `json:"device_id,omitempty"`
}

// HealthInfo is the body of the backend's health endpoint.
type HealthInfo struct {
	Version string `json:"version"`
	Status  string `json:"status,omitempty"`
}
