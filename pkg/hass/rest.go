package hass

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/jiminy/pkg/security"
)

// RESTClient talks to the Home Assistant REST API and implements both the
// ServiceCaller and StateReader capabilities.
type RESTClient struct {
	httpClient *http.Client
	baseURL    string
	token      string
}

const defaultRESTTimeout = 10 * time.Second

// NewRESTClient returns a client for the given base URL, e.g.
// http://homeassistant.local:8123, authenticating with a long-lived access
// token.
func NewRESTClient(baseURL string, token string) *RESTClient {
	return &RESTClient{
		httpClient: &http.Client{Timeout: defaultRESTTimeout},
		baseURL:    baseURL,
		token:      token,
	}
}

func (c *RESTClient) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")
}

type stateEnvelope struct {
	EntityID string `json:"entity_id"`
	State    string `json:"state"`
}

// State reads the state string of an entity. A missing entity is an error;
// callers that treat unknown/unavailable specially filter the returned
// string themselves.
func (c *RESTClient) State(ctx context.Context, entityID string) (string, error) {
	u := fmt.Sprintf("%s/api/states/%s", c.baseURL, entityID)
	if err := security.ValidateOutboundURL(u, security.LANOptions()); err != nil {
		return "", errors.Wrap(err, "invalid state URL")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", err
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer func(body io.ReadCloser) {
		_ = body.Close()
	}(resp.Body)

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	if resp.StatusCode != http.StatusOK {
		return "", errors.Errorf("state read for %s failed: %s", entityID, resp.Status)
	}

	var env stateEnvelope
	if err := json.Unmarshal(respBody, &env); err != nil {
		return "", errors.Wrapf(err, "could not decode state of %s", entityID)
	}

	return env.State, nil
}

// CallService invokes domain.service. The REST API takes the target entity
// alongside the service data in one body, so Data and Target are merged,
// with Target winning on key collisions.
func (c *RESTClient) CallService(ctx context.Context, call ServiceCall) error {
	if call.Domain == "" || call.Service == "" {
		return errors.New("service call requires domain and service")
	}

	u := fmt.Sprintf("%s/api/services/%s/%s", c.baseURL, call.Domain, call.Service)
	if err := security.ValidateOutboundURL(u, security.LANOptions()); err != nil {
		return errors.Wrap(err, "invalid service URL")
	}

	payload := make(map[string]any, len(call.Data)+len(call.Target))
	for k, v := range call.Data {
		payload[k] = v
	}
	for k, v := range call.Target {
		payload[k] = v
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrapf(err, "could not encode %s payload", call.Name())
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewBuffer(body))
	if err != nil {
		return err
	}
	c.setHeaders(req)

	log.Debug().
		Str("service", call.Name()).
		Bool("blocking", call.Blocking).
		Msg("calling service")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func(body io.ReadCloser) {
		_ = body.Close()
	}(resp.Body)
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errors.Errorf("service %s failed: %s", call.Name(), resp.Status)
	}

	return nil
}

var _ ServiceCaller = (*RESTClient)(nil)
var _ StateReader = (*RESTClient)(nil)
