package cmds

import (
	"context"
	"fmt"
	"io"

	"github.com/go-go-golems/glazed/pkg/cmds"
	"github.com/go-go-golems/glazed/pkg/cmds/layers"
	"github.com/pkg/errors"
)

type HealthCommand struct {
	*cmds.CommandDescription
}

var _ cmds.WriterCommand = (*HealthCommand)(nil)

func NewHealthCommand() (*HealthCommand, error) {
	return &HealthCommand{
		CommandDescription: cmds.NewCommandDescription(
			"health",
			cmds.WithShort("Probe the conversation backend's health endpoint"),
			cmds.WithFlags(relayFlags()...),
		),
	}, nil
}

func (c *HealthCommand) RunIntoWriter(ctx context.Context, parsedLayers *layers.ParsedLayers, w io.Writer) error {
	s := &RelaySettings{}
	if err := parsedLayers.InitializeStruct(layers.DefaultSlug, s); err != nil {
		return errors.Wrap(err, "failed to initialize settings")
	}

	components, err := BuildRelayComponents(s)
	if err != nil {
		return err
	}
	defer func() {
		_ = components.Close()
	}()

	// the probe does not need a running router
	info, err := components.Relay.Health(ctx)
	if err != nil {
		return errors.Wrapf(err, "backend %s is not healthy", components.Settings.Endpoint.HealthURL())
	}

	if info.Status != "" {
		fmt.Fprintf(w, "backend %s: %s (version %s)\n",
			components.Settings.Endpoint.URL(), info.Status, info.Version)
	} else {
		fmt.Fprintf(w, "backend %s: healthy (version %s)\n",
			components.Settings.Endpoint.URL(), info.Version)
	}
	return nil
}
