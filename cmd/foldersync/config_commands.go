package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/0xmhha/foldersync/pkg/config"
	"gopkg.in/yaml.v3"
)

// configCommand handles configuration management subcommands.
type configCommand struct {
	configPath string
	out        io.Writer
}

// Execute runs the config command with given arguments.
func (c *configCommand) Execute(args []string) error {
	if len(args) == 0 {
		return c.showHelp()
	}

	subcommand := args[0]
	subargs := args[1:]

	switch subcommand {
	case "show":
		return c.runShow(subargs)
	case "path":
		return c.runPath()
	case "init":
		return c.runInit(subargs)
	case "help":
		return c.showHelp()
	default:
		return fmt.Errorf("unknown config subcommand: %s", subcommand)
	}
}

// runShow displays the effective configuration.
func (c *configCommand) runShow(args []string) error {
	fs := flag.NewFlagSet("config show", flag.ContinueOnError)
	format := fs.String("format", "yaml", "output format (yaml, json)")

	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.NewLoader(c.configPath).Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	switch *format {
	case "json":
		return c.showJSON(cfg)
	case "yaml":
		return c.showYAML(cfg)
	default:
		return fmt.Errorf("unknown format %q (valid: yaml, json)", *format)
	}
}

// showYAML displays configuration in YAML format.
func (c *configCommand) showYAML(cfg *config.Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	fmt.Fprintln(c.out, "# Current Configuration")
	fmt.Fprintln(c.out, "# Source:", c.configSource())
	fmt.Fprintln(c.out)
	_, err = c.out.Write(data)
	return err
}

// showJSON displays configuration in JSON format.
func (c *configCommand) showJSON(cfg *config.Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	fmt.Fprintln(c.out, string(data))
	return nil
}

// runPath shows the configuration file search paths.
func (c *configCommand) runPath() error {
	fmt.Fprintln(c.out, "Configuration file search paths (in order of precedence):")
	fmt.Fprintln(c.out)

	for i, p := range config.SearchPaths() {
		exists := "not found"
		if _, err := os.Stat(p); err == nil {
			exists = "found"
		}
		fmt.Fprintf(c.out, "  %d. %s [%s]\n", i+1, p, exists)
	}

	fmt.Fprintln(c.out)
	fmt.Fprintln(c.out, "Active configuration:", c.configSource())
	return nil
}

// runInit writes the default configuration to a file.
func (c *configCommand) runInit(args []string) error {
	fs := flag.NewFlagSet("config init", flag.ContinueOnError)
	force := fs.Bool("force", false, "overwrite an existing file")
	output := fs.String("output", "", "output path for config file (default: ~/.config/foldersync/config.yaml)")

	if err := fs.Parse(args); err != nil {
		return err
	}

	outputPath := *output
	if outputPath == "" {
		outputPath = config.DefaultConfigPath()
	}

	if _, err := os.Stat(outputPath); err == nil && !*force {
		return fmt.Errorf("configuration file already exists at %s (use -force to overwrite)", outputPath)
	}

	if err := config.Save(config.Default(), filepath.Clean(outputPath)); err != nil {
		return err
	}

	fmt.Fprintf(c.out, "Default configuration written to: %s\n", outputPath)
	return nil
}

// configSource returns the path of the active configuration file.
func (c *configCommand) configSource() string {
	if src := config.NewLoader(c.configPath).Source(); src != "" {
		return src
	}
	return "defaults (no config file found)"
}

// showHelp displays help for config command.
func (c *configCommand) showHelp() error {
	help := `Config - Configuration management

Usage:
  foldersync config <subcommand> [flags]

Subcommands:
  show      Display the effective configuration
  path      Show configuration file paths
  init      Write the default configuration to a file

Show Flags:
  -format   Output format (yaml, json) (default: yaml)

Init Flags:
  -force    Overwrite an existing file
  -output   Output path for config file

Examples:
  # Show current configuration
  foldersync config show

  # Show configuration in JSON format
  foldersync config show -format json

  # Show configuration file paths
  foldersync config path

  # Create ~/.config/foldersync/config.yaml
  foldersync config init
`
	fmt.Fprint(c.out, help)
	return nil
}
