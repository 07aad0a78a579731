package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDerivedTrackerDerivesStableIDs(t *testing.T) {
	tracker := NewDerivedTracker()

	first := tracker.Touch("c1")
	second := tracker.Touch("c1")

	assert.Equal(t, "voice_c1", first.SessionID)
	assert.Equal(t, first.SessionID, second.SessionID)
	assert.Equal(t, 0, first.Turn)
	assert.Equal(t, 0, second.Turn)
}

func TestDerivedTrackerDistinctConversations(t *testing.T) {
	tracker := NewDerivedTracker()
	assert.NotEqual(t, tracker.Touch("c1").SessionID, tracker.Touch("c2").SessionID)
}
