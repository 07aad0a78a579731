package endpoint

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults match the backend's out-of-the-box Sinatra deployment.
const (
	DefaultScheme = "http"
	DefaultHost   = "localhost"
	DefaultPort   = 4567
	DefaultPath   = "/api/v1/conversation"

	// DefaultTimeout is tuned for voice interactions, where a reply that
	// takes longer than this is worse than an apology.
	DefaultTimeout = 10 * time.Second
	// LongTimeout is the original relaxed bound, useful for text chats
	// against slow models.
	LongTimeout = 30 * time.Second
)

// Endpoint is a fully resolved backend address for one turn.
type Endpoint struct {
	Scheme  string        `yaml:"scheme"`
	Host    string        `yaml:"host"`
	Port    int           `yaml:"port"`
	Path    string        `yaml:"path"`
	Timeout time.Duration `yaml:"timeout"`
}

// Default returns the endpoint for a backend running next door.
func Default() Endpoint {
	return Endpoint{
		Scheme:  DefaultScheme,
		Host:    DefaultHost,
		Port:    DefaultPort,
		Path:    DefaultPath,
		Timeout: DefaultTimeout,
	}
}

// URL is the conversation URL.
func (e Endpoint) URL() string {
	return fmt.Sprintf("%s://%s:%d%s", e.Scheme, e.Host, e.Port, e.Path)
}

// StartURL is the proactive-conversation URL, the conversation path plus
// /start.
func (e Endpoint) StartURL() string {
	return e.URL() + "/start"
}

// HealthURL is the health probe URL at the server root.
func (e Endpoint) HealthURL() string {
	return fmt.Sprintf("%s://%s:%d/health", e.Scheme, e.Host, e.Port)
}

func (e Endpoint) String() string {
	return e.URL()
}

// UnmarshalYAML overrides YAML parsing to convert the timeout from integer
// seconds, which is what the settings file carries.
func (e *Endpoint) UnmarshalYAML(value *yaml.Node) error {
	type Alias Endpoint
	aux := &struct {
		Timeout *int `yaml:"timeout"`
		*Alias
	}{
		Alias: (*Alias)(e),
	}
	if err := value.Decode(aux); err != nil {
		return err
	}
	if aux.Timeout != nil {
		e.Timeout = time.Duration(*aux.Timeout) * time.Second
	}
	return nil
}

func (e Endpoint) MarshalYAML() (interface{}, error) {
	return struct {
		Scheme  string `yaml:"scheme"`
		Host    string `yaml:"host"`
		Port    int    `yaml:"port"`
		Path    string `yaml:"path"`
		Timeout int    `yaml:"timeout"`
	}{e.Scheme, e.Host, e.Port, e.Path, int(e.Timeout / time.Second)}, nil
}
