package relay

import (
	"os"
	"time"

	"github.com/huandu/go-clone"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/go-go-golems/jiminy/pkg/endpoint"
	"github.com/go-go-golems/jiminy/pkg/session"
)

// ContinuationPolicy decides whether the assistant keeps listening when
// the backend's response carries no continue_conversation field. An
// explicit field always wins; failures always end the conversation.
type ContinuationPolicy string

const (
	// EndOnSilence treats an absent field as "stop listening". The empty
	// string normalizes to this, it is the production default.
	EndOnSilence ContinuationPolicy = "end-on-silence"
	// ContinueOnSilence keeps the microphone open unless the backend
	// explicitly closes the conversation.
	ContinueOnSilence ContinuationPolicy = "continue-on-silence"
)

// Continue resolves the continuation decision for a successful turn.
func (p ContinuationPolicy) Continue(explicit *bool) bool {
	if explicit != nil {
		return *explicit
	}
	return p == ContinueOnSilence
}

func (p ContinuationPolicy) Validate() error {
	switch p {
	case "", EndOnSilence, ContinueOnSilence:
		return nil
	}
	return errors.Errorf("unknown continuation policy %q", string(p))
}

// Tracker modes selectable from settings.
const (
	TrackerRegistry = "registry"
	TrackerDerived  = "derived"
)

// HomeAssistantSettings locates the platform REST API. Both fields empty
// disables the platform capabilities (no service calls, no dynamic host
// override).
type HomeAssistantSettings struct {
	URL   string `yaml:"url"`
	Token string `yaml:"token"`
}

// Settings is the YAML-loadable relay configuration. The zero value plus
// defaults from DefaultSettings is fully usable against a local backend.
type Settings struct {
	Endpoint       endpoint.Endpoint  `yaml:"endpoint"`
	OverrideEntity string             `yaml:"override_entity"`
	DeviceID       string             `yaml:"device_id"`
	AgentID        string             `yaml:"agent_id"`
	DefaultSpeaker string             `yaml:"default_speaker"`
	Continuation   ContinuationPolicy `yaml:"continuation"`

	// Tracker selects session identity: "registry" (stateful, bounded)
	// or "derived" (stateless).
	Tracker        string        `yaml:"tracker"`
	SessionMaxIdle time.Duration `yaml:"session_max_idle"`
	SessionMaxSize int           `yaml:"session_max_size"`

	// Allowlist restricts dispatched service calls to matching
	// domain.service globs. Empty allows everything.
	Allowlist []string `yaml:"allowlist"`

	HomeAssistant HomeAssistantSettings `yaml:"home_assistant"`
}

func DefaultSettings() *Settings {
	policy := session.DefaultPolicy()
	return &Settings{
		Endpoint:       endpoint.Default(),
		OverrideEntity: endpoint.DefaultOverrideEntity,
		Tracker:        TrackerRegistry,
		SessionMaxIdle: policy.MaxIdle,
		SessionMaxSize: policy.MaxEntries,
	}
}

func (s *Settings) Validate() error {
	if err := s.Continuation.Validate(); err != nil {
		return err
	}
	switch s.Tracker {
	case "", TrackerRegistry, TrackerDerived:
	default:
		return errors.Errorf("unknown tracker mode %q", s.Tracker)
	}
	if s.Endpoint.Host == "" {
		return errors.New("endpoint host must not be empty")
	}
	if s.Endpoint.Port <= 0 || s.Endpoint.Port > 65535 {
		return errors.Errorf("endpoint port %d out of range", s.Endpoint.Port)
	}
	return nil
}

// UnmarshalYAML overrides YAML parsing to convert session_max_idle from
// integer seconds.
func (s *Settings) UnmarshalYAML(value *yaml.Node) error {
	type Alias Settings
	aux := &struct {
		SessionMaxIdle *int `yaml:"session_max_idle"`
		*Alias
	}{
		Alias: (*Alias)(s),
	}
	if err := value.Decode(aux); err != nil {
		return err
	}
	if aux.SessionMaxIdle != nil {
		s.SessionMaxIdle = time.Duration(*aux.SessionMaxIdle) * time.Second
	}
	return nil
}

func (s Settings) MarshalYAML() (interface{}, error) {
	return struct {
		Endpoint       endpoint.Endpoint     `yaml:"endpoint"`
		OverrideEntity string                `yaml:"override_entity"`
		DeviceID       string                `yaml:"device_id"`
		AgentID        string                `yaml:"agent_id"`
		DefaultSpeaker string                `yaml:"default_speaker"`
		Continuation   ContinuationPolicy    `yaml:"continuation"`
		Tracker        string                `yaml:"tracker"`
		SessionMaxIdle int                   `yaml:"session_max_idle"`
		SessionMaxSize int                   `yaml:"session_max_size"`
		Allowlist      []string              `yaml:"allowlist"`
		HomeAssistant  HomeAssistantSettings `yaml:"home_assistant"`
	}{
		Endpoint:       s.Endpoint,
		OverrideEntity: s.OverrideEntity,
		DeviceID:       s.DeviceID,
		AgentID:        s.AgentID,
		DefaultSpeaker: s.DefaultSpeaker,
		Continuation:   s.Continuation,
		Tracker:        s.Tracker,
		SessionMaxIdle: int(s.SessionMaxIdle / time.Second),
		SessionMaxSize: s.SessionMaxSize,
		Allowlist:      s.Allowlist,
		HomeAssistant:  s.HomeAssistant,
	}, nil
}

func (s *Settings) Clone() *Settings {
	return clone.Clone(s).(*Settings)
}

// NewTracker builds the session tracker the settings ask for.
func (s *Settings) NewTracker() session.Tracker {
	if s.Tracker == TrackerDerived {
		return session.NewDerivedTracker()
	}
	return session.NewRegistry(session.WithPolicy(session.Policy{
		MaxIdle:    s.SessionMaxIdle,
		MaxEntries: s.SessionMaxSize,
	}))
}

// LoadSettings reads a YAML settings file on top of the defaults.
func LoadSettings(path string) (*Settings, error) {
	s := DefaultSettings()

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "could not read settings file %s", path)
	}
	if err := yaml.Unmarshal(b, s); err != nil {
		return nil, errors.Wrapf(err, "could not parse settings file %s", path)
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}
