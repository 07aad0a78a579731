package main

import (
	"fmt"
	"os"

	clay "github.com/go-go-golems/clay/pkg"
	"github.com/go-go-golems/glazed/pkg/cmds/logging"
	"github.com/go-go-golems/glazed/pkg/help"
	help_cmd "github.com/go-go-golems/glazed/pkg/help/cmd"
	"github.com/spf13/cobra"

	"github.com/go-go-golems/jiminy/cmd/jiminy/cmds"
	"github.com/go-go-golems/jiminy/pkg/doc"
)

var rootCmd = &cobra.Command{
	Use:   "jiminy",
	Short: "jiminy relays voice-assistant turns to a conversation backend",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// reinitialize the logger once the log flags have been parsed
		return logging.InitLoggerFromViper()
	},
}

func main() {
	err := clay.InitViper("jiminy", rootCmd)
	cobra.CheckErr(err)

	helpSystem := help.NewHelpSystem()
	err = doc.AddDocToHelpSystem(helpSystem)
	cobra.CheckErr(err)
	help_cmd.SetupCobraRootCommand(helpSystem, rootCmd)

	err = cmds.AddToRootCommand(rootCmd)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error initializing commands: %s\n", err)
		os.Exit(1)
	}

	cobra.CheckErr(rootCmd.Execute())
}
