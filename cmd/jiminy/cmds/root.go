package cmds

import (
	"github.com/go-go-golems/glazed/pkg/cli"
	"github.com/spf13/cobra"
)

// AddToRootCommand registers all jiminy subcommands.
func AddToRootCommand(rootCmd *cobra.Command) error {
	chatCmd, err := NewChatCommand()
	if err != nil {
		return err
	}
	chatCobra, err := cli.BuildCobraCommand(chatCmd)
	if err != nil {
		return err
	}

	sendCmd, err := NewSendCommand()
	if err != nil {
		return err
	}
	sendCobra, err := cli.BuildCobraCommand(sendCmd)
	if err != nil {
		return err
	}

	healthCmd, err := NewHealthCommand()
	if err != nil {
		return err
	}
	healthCobra, err := cli.BuildCobraCommand(healthCmd)
	if err != nil {
		return err
	}

	proactiveCmd, err := NewProactiveCommand()
	if err != nil {
		return err
	}
	proactiveCobra, err := cli.BuildCobraCommand(proactiveCmd)
	if err != nil {
		return err
	}

	rootCmd.AddCommand(chatCobra, sendCobra, healthCobra, proactiveCobra)
	rootCmd.AddCommand(NewSettingsGroupCommand())
	return nil
}
