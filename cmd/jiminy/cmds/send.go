package cmds

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/go-go-golems/glazed/pkg/cmds"
	"github.com/go-go-golems/glazed/pkg/cmds/layers"
	"github.com/go-go-golems/glazed/pkg/cmds/parameters"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/go-go-golems/jiminy/pkg/relay"
)

type SendCommand struct {
	*cmds.CommandDescription
}

var _ cmds.WriterCommand = (*SendCommand)(nil)

type SendSettings struct {
	RelaySettings
	Message        string `glazed.parameter:"message"`
	ConversationID string `glazed.parameter:"conversation-id"`
	Language       string `glazed.parameter:"language"`
	Drain          string `glazed.parameter:"drain"`
}

func NewSendCommand() (*SendCommand, error) {
	flags := append(relayFlags(),
		parameters.NewParameterDefinition("conversation-id",
			parameters.ParameterTypeString,
			parameters.WithHelp("Conversation id, minted when empty"),
			parameters.WithDefault(""),
		),
		parameters.NewParameterDefinition("language",
			parameters.ParameterTypeString,
			parameters.WithHelp("Utterance language"),
			parameters.WithDefault("en"),
		),
		parameters.NewParameterDefinition("drain",
			parameters.ParameterTypeString,
			parameters.WithHelp("Grace period for queued service calls before exiting"),
			parameters.WithDefault("500ms"),
		),
	)

	return &SendCommand{
		CommandDescription: cmds.NewCommandDescription(
			"send",
			cmds.WithShort("Send a single utterance and print the reply"),
			cmds.WithArguments(
				parameters.NewParameterDefinition("message",
					parameters.ParameterTypeString,
					parameters.WithHelp("The utterance to send"),
					parameters.WithRequired(true),
				),
			),
			cmds.WithFlags(flags...),
		),
	}, nil
}

func (c *SendCommand) RunIntoWriter(ctx context.Context, parsedLayers *layers.ParsedLayers, w io.Writer) error {
	s := &SendSettings{}
	if err := parsedLayers.InitializeStruct(layers.DefaultSlug, s); err != nil {
		return errors.Wrap(err, "failed to initialize settings")
	}

	drain, err := time.ParseDuration(s.Drain)
	if err != nil {
		return errors.Wrapf(err, "invalid drain %q", s.Drain)
	}

	components, err := BuildRelayComponents(&s.RelaySettings)
	if err != nil {
		return err
	}
	defer func() {
		_ = components.Close()
	}()

	conversationID := s.ConversationID
	if conversationID == "" {
		conversationID = uuid.New().String()
	}

	eg := errgroup.Group{}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	eg.Go(func() error {
		defer cancel()
		return components.Router.Run(ctx)
	})

	var result relay.Result
	eg.Go(func() error {
		defer cancel()
		<-components.Router.Running()

		result = components.Relay.Process(ctx, relay.Utterance{
			Text:           s.Message,
			ConversationID: conversationID,
			Language:       s.Language,
		})
		fmt.Fprintln(w, result.Reply)

		if components.Dispatcher != nil {
			// give queued service calls a moment to reach the platform
			time.Sleep(drain)
		}
		return nil
	})

	if err := eg.Wait(); err != nil {
		return err
	}

	if result.Failed() {
		return errors.Errorf("turn failed: %s", result.Failure)
	}
	return nil
}
