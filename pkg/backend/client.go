package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/jiminy/pkg/security"
)

// Client is the HTTP client for the conversation backend. It carries no
// endpoint state; callers pass the resolved URL per call and bound the
// call with a context deadline.
type Client struct {
	httpClient *http.Client
}

func NewClient() *Client {
	return &Client{httpClient: &http.Client{}}
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
}

// Converse posts one turn and returns the response payload. A non-200
// status and a success=false envelope both come back as *BackendError;
// an undecodable body comes back as *MalformedResponseError. A success
// envelope without a data object yields an empty payload, not an error.
func (c *Client) Converse(ctx context.Context, apiURL string, turn *TurnRequest) (*ResponseData, error) {
	if err := security.ValidateOutboundURL(apiURL, security.LANOptions()); err != nil {
		return nil, errors.Wrap(err, "invalid conversation URL")
	}

	body, err := json.Marshal(turn)
	if err != nil {
		return nil, errors.Wrap(err, "could not encode turn request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, bytes.NewBuffer(body))
	if err != nil {
		return nil, err
	}
	c.setHeaders(req)

	log.Debug().
		Str("url", apiURL).
		Str("conversation_id", turn.Context.ConversationID).
		Msg("sending turn to backend")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func(body io.ReadCloser) {
		_ = body.Close()
	}(resp.Body)

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &BackendError{
			Status: resp.StatusCode,
			Reason: fmt.Sprintf("API error: %d", resp.StatusCode),
		}
	}

	var env Envelope
	if err := json.Unmarshal(respBody, &env); err != nil {
		return nil, &MalformedResponseError{Cause: err}
	}

	if !env.Success {
		reason := env.Error
		if reason == "" {
			reason = "Unknown error"
		}
		return nil, &BackendError{Reason: "Conversation failed: " + reason}
	}

	if env.Data == nil {
		return &ResponseData{}, nil
	}
	return env.Data, nil
}

// Health probes the backend's health endpoint and returns its version
// info. The version defaults to "unknown" when the backend omits it.
func (c *Client) Health(ctx context.Context, healthURL string) (*HealthInfo, error) {
	if err := security.ValidateOutboundURL(healthURL, security.LANOptions()); err != nil {
		return nil, errors.Wrap(err, "invalid health URL")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, healthURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func(body io.ReadCloser) {
		_ = body.Close()
	}(resp.Body)

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &BackendError{
			Status: resp.StatusCode,
			Reason: fmt.Sprintf("health check failed: %d", resp.StatusCode),
		}
	}

	var info HealthInfo
	if err := json.Unmarshal(respBody, &info); err != nil {
		return nil, &MalformedResponseError{Cause: err}
	}
	if info.Version == "" {
		info.Version = "unknown"
	}

	return &info, nil
}

// StartConversation asks the backend to open a conversation proactively.
// The backend answers with the same envelope as a turn.
func (c *Client) StartConversation(ctx context.Context, startURL string, pr *ProactiveRequest) (*ResponseData, error) {
	if err := security.ValidateOutboundURL(startURL, security.LANOptions()); err != nil {
		return nil, errors.Wrap(err, "invalid start URL")
	}

	if pr.Context == nil {
		pr.Context = map[string]any{}
	}

	body, err := json.Marshal(pr)
	if err != nil {
		return nil, errors.Wrap(err, "could not encode proactive request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, startURL, bytes.NewBuffer(body))
	if err != nil {
		return nil, err
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func(body io.ReadCloser) {
		_ = body.Close()
	}(resp.Body)

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &BackendError{
			Status: resp.StatusCode,
			Reason: fmt.Sprintf("proactive trigger failed: %d", resp.StatusCode),
		}
	}

	var env Envelope
	if err := json.Unmarshal(respBody, &env); err != nil {
		return nil, &MalformedResponseError{Cause: err}
	}
	if env.Data == nil {
		return &ResponseData{}, nil
	}
	return env.Data, nil
}
