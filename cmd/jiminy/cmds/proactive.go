package cmds

import (
	"context"
	"fmt"
	"io"

	"github.com/go-go-golems/glazed/pkg/cmds"
	"github.com/go-go-golems/glazed/pkg/cmds/layers"
	"github.com/go-go-golems/glazed/pkg/cmds/parameters"
	"github.com/pkg/errors"
)

type ProactiveCommand struct {
	*cmds.CommandDescription
}

var _ cmds.WriterCommand = (*ProactiveCommand)(nil)

type ProactiveSettings struct {
	RelaySettings
	Trigger string            `glazed.parameter:"trigger"`
	Context map[string]string `glazed.parameter:"context"`
}

func NewProactiveCommand() (*ProactiveCommand, error) {
	flags := append(relayFlags(),
		parameters.NewParameterDefinition("context",
			parameters.ParameterTypeKeyValue,
			parameters.WithHelp("Extra trigger context as key:value pairs"),
			parameters.WithDefault(map[string]string{}),
		),
	)

	return &ProactiveCommand{
		CommandDescription: cmds.NewCommandDescription(
			"proactive",
			cmds.WithShort("Ask the backend to open a conversation on its own"),
			cmds.WithArguments(
				parameters.NewParameterDefinition("trigger",
					parameters.ParameterTypeString,
					parameters.WithHelp("Trigger name, e.g. motion_detected"),
					parameters.WithRequired(true),
				),
			),
			cmds.WithFlags(flags...),
		),
	}, nil
}

func (c *ProactiveCommand) RunIntoWriter(ctx context.Context, parsedLayers *layers.ParsedLayers, w io.Writer) error {
	s := &ProactiveSettings{}
	if err := parsedLayers.InitializeStruct(layers.DefaultSlug, s); err != nil {
		return errors.Wrap(err, "failed to initialize settings")
	}

	components, err := BuildRelayComponents(&s.RelaySettings)
	if err != nil {
		return err
	}
	defer func() {
		_ = components.Close()
	}()

	extra := map[string]any{}
	for k, v := range s.Context {
		extra[k] = v
	}

	if err := components.Relay.TriggerProactive(ctx, s.Trigger, extra); err != nil {
		return err
	}

	fmt.Fprintf(w, "triggered %s\n", s.Trigger)
	return nil
}
