package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConverseSuccess(t *testing.T) {
	var got TurnRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		cont := true
		_ = json.NewEncoder(w).Encode(Envelope{
			Success: true,
			Data: &ResponseData{
				Response:             "The lights are on.",
				ContinueConversation: &cont,
				Actions: []ActionDescriptor{
					{Domain: "light", Service: "turn_on", Target: map[string]any{"entity_id": "light.porch"}},
				},
				SuggestedMood: "helpful",
			},
		})
	}))
	defer srv.Close()

	client := NewClient()
	data, err := client.Converse(context.Background(), srv.URL+"/api/v1/conversation", &TurnRequest{
		Message: "turn on the porch light",
		Context: RequestContext{
			ConversationID:   "c1",
			HAConversationID: "c1",
			SessionID:        "sess_1",
			VoiceInteraction: true,
			Timestamp:        time.Now().UTC().Format(time.RFC3339),
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "turn on the porch light", got.Message)
	assert.Equal(t, "c1", got.Context.ConversationID)
	assert.True(t, got.Context.VoiceInteraction)

	assert.Equal(t, "The lights are on.", data.Response)
	require.NotNil(t, data.ContinueConversation)
	assert.True(t, *data.ContinueConversation)
	require.Len(t, data.Actions, 1)
	assert.Equal(t, "light", data.Actions[0].Domain)
	assert.Equal(t, "helpful", data.SuggestedMood)
}

func TestConverseSuccessWithoutData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(Envelope{Success: true})
	}))
	defer srv.Close()

	client := NewClient()
	data, err := client.Converse(context.Background(), srv.URL, &TurnRequest{Message: "hi"})
	require.NoError(t, err)
	require.NotNil(t, data)
	assert.Empty(t, data.Response)
	assert.Nil(t, data.ContinueConversation)
}

func TestConverseBackendStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewClient()
	_, err := client.Converse(context.Background(), srv.URL, &TurnRequest{Message: "hi"})
	require.Error(t, err)

	var backendErr *BackendError
	require.ErrorAs(t, err, &backendErr)
	assert.Equal(t, http.StatusInternalServerError, backendErr.Status)
	assert.Equal(t, "API error: 500", backendErr.Reason)
	assert.Equal(t, FailureBackend, Classify(err))
}

func TestConverseEnvelopeFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(Envelope{Success: false, Error: "llm exploded"})
	}))
	defer srv.Close()

	client := NewClient()
	_, err := client.Converse(context.Background(), srv.URL, &TurnRequest{Message: "hi"})
	require.Error(t, err)
	assert.Equal(t, "Conversation failed: llm exploded", err.Error())
	assert.Equal(t, FailureBackend, Classify(err))
}

func TestConverseEnvelopeFailureWithoutReason(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(Envelope{Success: false})
	}))
	defer srv.Close()

	client := NewClient()
	_, err := client.Converse(context.Background(), srv.URL, &TurnRequest{Message: "hi"})
	require.Error(t, err)
	assert.Equal(t, "Conversation failed: Unknown error", err.Error())
}

func TestConverseMalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>not json</html>"))
	}))
	defer srv.Close()

	client := NewClient()
	_, err := client.Converse(context.Background(), srv.URL, &TurnRequest{Message: "hi"})
	require.Error(t, err)

	var malformedErr *MalformedResponseError
	require.ErrorAs(t, err, &malformedErr)
	assert.Equal(t, FailureMalformed, Classify(err))
}

func TestConverseTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	client := NewClient()
	start := time.Now()
	_, err := client.Converse(ctx, srv.URL, &TurnRequest{Message: "hi"})
	require.Error(t, err)
	assert.Equal(t, FailureTimeout, Classify(err))
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestConverseConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	client := NewClient()
	_, err := client.Converse(context.Background(), url, &TurnRequest{Message: "hi"})
	require.Error(t, err)
	assert.Equal(t, FailureTransport, Classify(err))
}

func TestConverseRejectsBadURL(t *testing.T) {
	client := NewClient()
	_, err := client.Converse(context.Background(), "ftp://10.0.0.5/conversation", &TurnRequest{Message: "hi"})
	require.Error(t, err)
	assert.Equal(t, FailureInternal, Classify(err))
}

func TestHealth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		require.Equal(t, "/health", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]string{"version": "2.3.1", "status": "ok"})
	}))
	defer srv.Close()

	client := NewClient()
	info, err := client.Health(context.Background(), srv.URL+"/health")
	require.NoError(t, err)
	assert.Equal(t, "2.3.1", info.Version)
	assert.Equal(t, "ok", info.Status)
}

func TestHealthDefaultsVersion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("{}"))
	}))
	defer srv.Close()

	client := NewClient()
	info, err := client.Health(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "unknown", info.Version)
}

func TestStartConversation(t *testing.T) {
	var got ProactiveRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/conversation/start", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(Envelope{
			Success: true,
			Data:    &ResponseData{Response: "Hey, someone is at the door."},
		})
	}))
	defer srv.Close()

	client := NewClient()
	data, err := client.StartConversation(context.Background(), srv.URL+"/api/v1/conversation/start", &ProactiveRequest{
		Trigger:  "motion_detected",
		DeviceID: "jiminy",
	})
	require.NoError(t, err)

	assert.Equal(t, "motion_detected", got.Trigger)
	assert.Equal(t, "jiminy", got.DeviceID)
	assert.NotNil(t, got.Context)
	assert.Equal(t, "Hey, someone is at the door.", data.Response)
}
