package session

// Lease is what a tracker hands the relay for one turn: the session the
// turn belongs to and its position in that session.
type Lease struct {
	SessionID string
	// Turn is 1 for the first turn of a session and increases by one per
	// turn. Stateless trackers report 0.
	Turn int
}

// Tracker assigns session identity to conversation turns. Touch is called
// exactly once per turn, before the request is built.
type Tracker interface {
	Touch(conversationID string) Lease
}

// VoiceSessionPrefix is the prefix of derived session ids.
const VoiceSessionPrefix = "voice_"

// DerivedTracker derives the session id from the conversation id and
// keeps no state. Restarts and concurrent processes agree on the same id
// for the same conversation, which is the reason this variant exists.
type DerivedTracker struct{}

func NewDerivedTracker() *DerivedTracker {
	return &DerivedTracker{}
}

func (t *DerivedTracker) Touch(conversationID string) Lease {
	return Lease{SessionID: VoiceSessionPrefix + conversationID}
}

var _ Tracker = (*DerivedTracker)(nil)
