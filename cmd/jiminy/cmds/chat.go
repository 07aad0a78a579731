package cmds

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/go-go-golems/glazed/pkg/cmds"
	"github.com/go-go-golems/glazed/pkg/cmds/layers"
	"github.com/go-go-golems/glazed/pkg/cmds/parameters"
	"github.com/google/uuid"
	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/tcnksm/go-input"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/go-go-golems/jiminy/pkg/events"
	"github.com/go-go-golems/jiminy/pkg/relay"
)

type ChatCommand struct {
	*cmds.CommandDescription
}

var _ cmds.WriterCommand = (*ChatCommand)(nil)

type ChatSettings struct {
	RelaySettings
	ConversationID string `glazed.parameter:"conversation-id"`
	Language       string `glazed.parameter:"language"`
	Transcript     string `glazed.parameter:"transcript"`
}

func NewChatCommand() (*ChatCommand, error) {
	flags := append(relayFlags(),
		parameters.NewParameterDefinition("conversation-id",
			parameters.ParameterTypeString,
			parameters.WithHelp("Resume an existing conversation id"),
			parameters.WithDefault(""),
		),
		parameters.NewParameterDefinition("language",
			parameters.ParameterTypeString,
			parameters.WithHelp("Utterance language"),
			parameters.WithDefault("en"),
		),
		parameters.NewParameterDefinition("transcript",
			parameters.ParameterTypeString,
			parameters.WithHelp("Write the conversation to a YAML transcript"),
			parameters.WithDefault(""),
		),
	)

	return &ChatCommand{
		CommandDescription: cmds.NewCommandDescription(
			"chat",
			cmds.WithShort("Talk to the conversation backend from the terminal"),
			cmds.WithFlags(flags...),
		),
	}, nil
}

type transcriptTurn struct {
	Role    string `yaml:"role"`
	Text    string `yaml:"text"`
	Failure string `yaml:"failure,omitempty"`
}

func (c *ChatCommand) RunIntoWriter(ctx context.Context, parsedLayers *layers.ParsedLayers, w io.Writer) error {
	s := &ChatSettings{}
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

	components.Router.AddHandler("chat", TurnsTopic, events.TurnPrinterFunc("jiminy", w))

	conversationID := s.ConversationID
	if conversationID == "" {
		conversationID = uuid.New().String()
	}

	var transcript []transcriptTurn

	eg := errgroup.Group{}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	eg.Go(func() error {
		defer cancel()
		return components.Router.Run(ctx)
	})

	eg.Go(func() error {
		defer cancel()
		<-components.Router.Running()

		isTerminal := isatty.IsTerminal(os.Stdout.Fd())
		if isTerminal {
			fmt.Fprintf(w, "Talking to %s (conversation %s). /quit to leave.\n",
				components.Settings.Endpoint.URL(), conversationID)
		}

		ui := &input.UI{
			Writer: os.Stdout,
			Reader: os.Stdin,
		}

		for {
			line, err := ui.Ask("You", &input.Options{
				Required: true,
				Loop:     true,
			})
			if err != nil {
				// EOF ends the chat, not the program
				log.Debug().Err(err).Msg("input closed")
				return nil
			}
			if line == "/quit" || line == "/exit" {
				return nil
			}

			result := components.Relay.Process(ctx, relay.Utterance{
				Text:           line,
				ConversationID: conversationID,
				Language:       s.Language,
			})

			transcript = append(transcript,
				transcriptTurn{Role: "user", Text: line},
				transcriptTurn{Role: "assistant", Text: result.Reply, Failure: string(result.Failure)},
			)
		}
	})

	err = eg.Wait()
	if err != nil {
		return err
	}

	if s.Transcript != "" {
		if err := writeTranscript(s.Transcript, transcript); err != nil {
			return err
		}
		fmt.Fprintf(w, "transcript written to %s\n", s.Transcript)
	}
	return nil
}

func writeTranscript(path string, turns []transcriptTurn) error {
	b, err := yaml.Marshal(turns)
	if err != nil {
		return errors.Wrap(err, "could not encode transcript")
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return errors.Wrapf(err, "could not write transcript %s", path)
	}
	return nil
}
