package cmds

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// commands for manipulating the settings file
//
// - show the effective settings
// - add / remove / print allowlist patterns

func NewSettingsGroupCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Manage the jiminy settings file",
	}
	cmd.PersistentFlags().String("settings-file", "", "Settings file to edit (defaults to the config file in use)")

	cmd.AddCommand(NewShowSettingsCommand())
	cmd.AddCommand(NewAllowlistGroupCommand())

	return cmd
}

// NewShowSettingsCommand prints the settings a relay built from the given
// file would actually run with, defaults filled in.
func NewShowSettingsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective settings, defaults included",
		RunE: func(cmd *cobra.Command, args []string) error {
			rs := &RelaySettings{}
			if file, _ := cmd.Flags().GetString("settings-file"); file != "" {
				rs.SettingsFile = file
			}

			settings, err := rs.toSettings()
			if err != nil {
				return err
			}

			encoder := yaml.NewEncoder(cmd.OutOrStdout())
			encoder.SetIndent(2)
			defer func() {
				_ = encoder.Close()
			}()
			return encoder.Encode(settings)
		},
	}
	return cmd
}

func NewAllowlistGroupCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "allowlist",
		Short: "Manage the service call allowlist in the settings file",
	}

	cmd.AddCommand(NewAddAllowlistCommand())
	cmd.AddCommand(NewRemoveAllowlistCommand())
	cmd.AddCommand(NewPrintAllowlistCommand())

	return cmd
}

func NewAddAllowlistCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add [patterns...]",
		Short: "Add service patterns to the allowlist in the settings file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return fmt.Errorf("at least one pattern must be provided")
			}

			settingsFile, err := settingsFileInUse(cmd)
			if err != nil {
				return err
			}

			root, err := readAndParseSettings(settingsFile)
			if err != nil {
				return err
			}

			listNode := findOrCreateNode(root, "allowlist")

			added := false
			for _, pattern := range args {
				if patternExists(listNode, pattern) {
					fmt.Printf("Pattern %s already in the allowlist. Skipping.\n", pattern)
					continue
				}

				fmt.Printf("Adding %s to the allowlist.\n", pattern)
				listNode.Content = append(listNode.Content, &yaml.Node{
					Kind:  yaml.ScalarNode,
					Value: pattern,
				})
				added = true
			}

			if added {
				if err := writeSettings(settingsFile, root); err != nil {
					return err
				}

				fmt.Println("\nCurrent allowlist:")
				printPatterns(listNode)
			}

			return nil
		},
	}
	return cmd
}

func NewRemoveAllowlistCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "remove [patterns...]",
		Short: "Remove service patterns from the allowlist in the settings file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return fmt.Errorf("at least one pattern must be provided")
			}

			settingsFile, err := settingsFileInUse(cmd)
			if err != nil {
				return err
			}

			root, err := readAndParseSettings(settingsFile)
			if err != nil {
				return err
			}

			listNode := findOrCreateNode(root, "allowlist")

			removed := false
			for _, pattern := range args {
				if removePattern(listNode, pattern) {
					fmt.Printf("Removed %s from the allowlist.\n", pattern)
					removed = true
				} else {
					fmt.Printf("Pattern %s not in the allowlist. Skipping.\n", pattern)
				}
			}

			if removed {
				if err := writeSettings(settingsFile, root); err != nil {
					return err
				}

				fmt.Println("\nUpdated allowlist:")
				printPatterns(listNode)
			}

			return nil
		},
	}
	return cmd
}

func NewPrintAllowlistCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get",
		Short: "Print the allowlist patterns in the settings file",
		RunE: func(cmd *cobra.Command, args []string) error {
			settingsFile, err := settingsFileInUse(cmd)
			if err != nil {
				return err
			}

			root, err := readAndParseSettings(settingsFile)
			if err != nil {
				return err
			}

			printPatterns(findOrCreateNode(root, "allowlist"))

			return nil
		},
	}
	return cmd
}

// settingsFileInUse resolves the file the allowlist commands edit: the
// --settings-file flag when given, the viper config file otherwise.
func settingsFileInUse(cmd *cobra.Command) (string, error) {
	if file, _ := cmd.Flags().GetString("settings-file"); file != "" {
		return file, nil
	}
	if file := viper.ConfigFileUsed(); file != "" {
		return file, nil
	}
	return "", fmt.Errorf("no settings file found, pass --settings-file")
}

func findOrCreateNode(root *yaml.Node, key string) *yaml.Node {
	if root.Kind != yaml.DocumentNode {
		root = &yaml.Node{
			Kind:    yaml.DocumentNode,
			Content: []*yaml.Node{root},
		}
	}

	var mapNode *yaml.Node
	if len(root.Content) > 0 && root.Content[0].Kind == yaml.MappingNode {
		mapNode = root.Content[0]
	} else {
		mapNode = &yaml.Node{Kind: yaml.MappingNode}
		root.Content = []*yaml.Node{mapNode}
	}

	for i := 0; i < len(mapNode.Content); i += 2 {
		if mapNode.Content[i].Value == key {
			if mapNode.Content[i+1].Kind != yaml.SequenceNode {
				mapNode.Content[i+1] = &yaml.Node{Kind: yaml.SequenceNode}
			}
			return mapNode.Content[i+1]
		}
	}

	keyNode := &yaml.Node{
		Kind:  yaml.ScalarNode,
		Value: key,
	}
	valueNode := &yaml.Node{
		Kind: yaml.SequenceNode,
	}
	mapNode.Content = append(mapNode.Content, keyNode, valueNode)
	return valueNode
}

func patternExists(listNode *yaml.Node, pattern string) bool {
	for _, node := range listNode.Content {
		if node.Value == pattern {
			return true
		}
	}
	return false
}

func removePattern(listNode *yaml.Node, pattern string) bool {
	for i, node := range listNode.Content {
		if node.Value == pattern {
			listNode.Content = append(listNode.Content[:i], listNode.Content[i+1:]...)
			return true
		}
	}
	return false
}

func printPatterns(listNode *yaml.Node) {
	for _, node := range listNode.Content {
		fmt.Printf("- %s\n", node.Value)
	}
}

func readAndParseSettings(settingsFile string) (*yaml.Node, error) {
	data, err := os.ReadFile(settingsFile)
	if err != nil {
		return nil, fmt.Errorf("error reading settings file: %w", err)
	}

	var root yaml.Node
	err = yaml.Unmarshal(data, &root)
	if err != nil {
		return nil, fmt.Errorf("error parsing settings file: %w", err)
	}

	return &root, nil
}

func writeSettings(settingsFile string, root *yaml.Node) error {
	f, err := os.Create(settingsFile)
	if err != nil {
		return fmt.Errorf("error opening settings file for writing: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()

	encoder := yaml.NewEncoder(f)
	encoder.SetIndent(2)
	err = encoder.Encode(root)
	if err != nil {
		return fmt.Errorf("error writing settings file: %w", err)
	}

	return nil
}
