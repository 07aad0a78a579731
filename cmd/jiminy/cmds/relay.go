package cmds

import (
	"time"

	"github.com/go-go-golems/glazed/pkg/cmds/parameters"
	"github.com/pkg/errors"

	"github.com/go-go-golems/jiminy/pkg/dispatch"
	"github.com/go-go-golems/jiminy/pkg/endpoint"
	"github.com/go-go-golems/jiminy/pkg/events"
	"github.com/go-go-golems/jiminy/pkg/hass"
	"github.com/go-go-golems/jiminy/pkg/relay"
)

// TurnsTopic carries relay lifecycle events on the CLI bus.
const TurnsTopic = "jiminy.turns"

// RelaySettings are the flags shared by every subcommand. Empty values
// defer to the settings file and the built-in defaults.
type RelaySettings struct {
	SettingsFile   string   `glazed.parameter:"settings-file"`
	Host           string   `glazed.parameter:"host"`
	Port           int      `glazed.parameter:"port"`
	Scheme         string   `glazed.parameter:"scheme"`
	Path           string   `glazed.parameter:"path"`
	Timeout        string   `glazed.parameter:"timeout"`
	Continuation   string   `glazed.parameter:"continuation"`
	Tracker        string   `glazed.parameter:"tracker"`
	DeviceID       string   `glazed.parameter:"device-id"`
	AgentID        string   `glazed.parameter:"agent-id"`
	Speaker        string   `glazed.parameter:"speaker"`
	Allowlist      []string `glazed.parameter:"allowlist"`
	HAURL          string   `glazed.parameter:"ha-url"`
	HAToken        string   `glazed.parameter:"ha-token"`
	OverrideEntity string   `glazed.parameter:"override-entity"`
	Verbose        bool     `glazed.parameter:"verbose"`
}

func relayFlags() []*parameters.ParameterDefinition {
	return []*parameters.ParameterDefinition{
		parameters.NewParameterDefinition("settings-file",
			parameters.ParameterTypeString,
			parameters.WithHelp("YAML settings file"),
			parameters.WithDefault(""),
		),
		parameters.NewParameterDefinition("host",
			parameters.ParameterTypeString,
			parameters.WithHelp("Backend host"),
			parameters.WithDefault(""),
		),
		parameters.NewParameterDefinition("port",
			parameters.ParameterTypeInteger,
			parameters.WithHelp("Backend port"),
			parameters.WithDefault(0),
		),
		parameters.NewParameterDefinition("scheme",
			parameters.ParameterTypeString,
			parameters.WithHelp("Backend scheme (http or https)"),
			parameters.WithDefault(""),
		),
		parameters.NewParameterDefinition("path",
			parameters.ParameterTypeString,
			parameters.WithHelp("Conversation path on the backend"),
			parameters.WithDefault(""),
		),
		parameters.NewParameterDefinition("timeout",
			parameters.ParameterTypeString,
			parameters.WithHelp("Per-turn timeout, e.g. 10s"),
			parameters.WithDefault(""),
		),
		parameters.NewParameterDefinition("continuation",
			parameters.ParameterTypeString,
			parameters.WithHelp("Continuation when the backend stays silent (end-on-silence, continue-on-silence)"),
			parameters.WithDefault(""),
		),
		parameters.NewParameterDefinition("tracker",
			parameters.ParameterTypeString,
			parameters.WithHelp("Session tracker (registry, derived)"),
			parameters.WithDefault(""),
		),
		parameters.NewParameterDefinition("device-id",
			parameters.ParameterTypeString,
			parameters.WithHelp("Device identity reported to the backend"),
			parameters.WithDefault(""),
		),
		parameters.NewParameterDefinition("agent-id",
			parameters.ParameterTypeString,
			parameters.WithHelp("Conversation agent id reported to the backend"),
			parameters.WithDefault(""),
		),
		parameters.NewParameterDefinition("speaker",
			parameters.ParameterTypeString,
			parameters.WithHelp("Default media player entity for audio playback"),
			parameters.WithDefault(""),
		),
		parameters.NewParameterDefinition("allowlist",
			parameters.ParameterTypeStringList,
			parameters.WithHelp("Service call allowlist globs, e.g. light.*"),
			parameters.WithDefault([]string{}),
		),
		parameters.NewParameterDefinition("ha-url",
			parameters.ParameterTypeString,
			parameters.WithHelp("Home Assistant base URL, enables service calls and the host override"),
			parameters.WithDefault(""),
		),
		parameters.NewParameterDefinition("ha-token",
			parameters.ParameterTypeString,
			parameters.WithHelp("Home Assistant long-lived access token"),
			parameters.WithDefault(""),
		),
		parameters.NewParameterDefinition("override-entity",
			parameters.ParameterTypeString,
			parameters.WithHelp("Entity whose state overrides the backend host"),
			parameters.WithDefault(""),
		),
		parameters.NewParameterDefinition("verbose",
			parameters.ParameterTypeBool,
			parameters.WithHelp("Verbose event router logging"),
			parameters.WithDefault(false),
		),
	}
}

// toSettings folds the flags over the settings file and the defaults.
func (s *RelaySettings) toSettings() (*relay.Settings, error) {
	base := relay.DefaultSettings()
	if s.SettingsFile != "" {
		loaded, err := relay.LoadSettings(s.SettingsFile)
		if err != nil {
			return nil, err
		}
		base = loaded
	}

	if s.Host != "" {
		base.Endpoint.Host = s.Host
	}
	if s.Port != 0 {
		base.Endpoint.Port = s.Port
	}
	if s.Scheme != "" {
		base.Endpoint.Scheme = s.Scheme
	}
	if s.Path != "" {
		base.Endpoint.Path = s.Path
	}
	if s.Timeout != "" {
		d, err := time.ParseDuration(s.Timeout)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid timeout %q", s.Timeout)
		}
		base.Endpoint.Timeout = d
	}
	if s.Continuation != "" {
		base.Continuation = relay.ContinuationPolicy(s.Continuation)
	}
	if s.Tracker != "" {
		base.Tracker = s.Tracker
	}
	if s.DeviceID != "" {
		base.DeviceID = s.DeviceID
	}
	if s.AgentID != "" {
		base.AgentID = s.AgentID
	}
	if s.Speaker != "" {
		base.DefaultSpeaker = s.Speaker
	}
	if len(s.Allowlist) > 0 {
		base.Allowlist = s.Allowlist
	}
	if s.HAURL != "" {
		base.HomeAssistant.URL = s.HAURL
	}
	if s.HAToken != "" {
		base.HomeAssistant.Token = s.HAToken
	}
	if s.OverrideEntity != "" {
		base.OverrideEntity = s.OverrideEntity
	}

	if err := base.Validate(); err != nil {
		return nil, err
	}
	return base, nil
}

// RelayComponents is everything a subcommand needs: the relay, the bus it
// publishes on, and the settings used to wire them.
type RelayComponents struct {
	Settings   *relay.Settings
	Router     *events.EventRouter
	Relay      *relay.Relay
	Dispatcher *dispatch.Dispatcher
}

func (c *RelayComponents) Close() error {
	return c.Router.Close()
}

// BuildRelayComponents wires the relay the way the settings describe:
// platform capabilities when Home Assistant credentials are present, the
// chosen session tracker, and turn events onto the router bus.
func BuildRelayComponents(rs *RelaySettings) (*RelayComponents, error) {
	settings, err := rs.toSettings()
	if err != nil {
		return nil, err
	}

	routerOptions := []events.EventRouterOption{}
	if rs.Verbose {
		routerOptions = append(routerOptions, events.WithVerbose(true))
	}
	router, err := events.NewEventRouter(routerOptions...)
	if err != nil {
		return nil, errors.Wrap(err, "could not create event router")
	}

	var caller hass.ServiceCaller
	var reader hass.StateReader
	if settings.HomeAssistant.URL != "" {
		rest := hass.NewRESTClient(settings.HomeAssistant.URL, settings.HomeAssistant.Token)
		caller = rest
		reader = rest
	}

	resolverOptions := []endpoint.ResolverOption{
		endpoint.WithOverrideEntity(settings.OverrideEntity),
	}
	if reader != nil {
		resolverOptions = append(resolverOptions, endpoint.WithStateReader(reader))
	}

	relayOptions := []relay.Option{
		relay.WithResolver(endpoint.NewResolver(settings.Endpoint, resolverOptions...)),
		relay.WithTracker(settings.NewTracker()),
		relay.WithContinuationPolicy(settings.Continuation),
		relay.WithDeviceID(settings.DeviceID),
		relay.WithAgentID(settings.AgentID),
		relay.WithSinks(events.NewWatermillSink(router.Publisher, TurnsTopic)),
	}

	var dispatcher *dispatch.Dispatcher
	if caller != nil {
		dispatcherOptions := []dispatch.DispatcherOption{
			dispatch.WithAllowlist(dispatch.NewAllowlist(settings.Allowlist)),
		}
		if settings.DefaultSpeaker != "" {
			dispatcherOptions = append(dispatcherOptions, dispatch.WithDefaultSpeaker(settings.DefaultSpeaker))
		}
		dispatcher = dispatch.NewDispatcher(router.Publisher, dispatcherOptions...)
		relayOptions = append(relayOptions, relay.WithDispatcher(dispatcher))

		executor := dispatch.NewExecutor(caller)
		executor.Register(router, dispatch.ServiceCallTopic)
	}

	return &RelayComponents{
		Settings:   settings,
		Router:     router,
		Relay:      relay.NewRelay(relayOptions...),
		Dispatcher: dispatcher,
	}, nil
}
