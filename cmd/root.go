package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"mcpinspect/internal/config"
	"mcpinspect/pkg/logging"
)

// Exit codes for CLI commands.
const (
	// ExitCodeSuccess indicates successful execution.
	ExitCodeSuccess = 0
	// ExitCodeError indicates a general error (command failed, invalid arguments).
	ExitCodeError = 1
)

var configPath string

// rootCmd is the base command for the mcpinspect application.
var rootCmd = &cobra.Command{
	Use:   "mcpinspect",
	Short: "Inspect and autonomously drive MCP tool servers",
	Long: `mcpinspect sits between you and an MCP tool server. It can proxy and
observe traffic, index every identifier the server hands back, let you poke
at tools interactively, and run an autonomous agent that chains tool calls
using an LLM to resolve parameters from earlier results.`,
	SilenceUsage: true,
}

// SetVersion sets the version for the root command. Called from main with
// the build-time version.
func SetVersion(v string) {
	rootCmd.Version = v
}

// Execute is the entry point for the CLI.
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "mcpinspect version %s\n" .Version}}`)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(ExitCodeError)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config.yaml (default: ~/.config/mcpinspect/config.yaml)")
}

// loadConfig loads the effective configuration and applies the log level.
func loadConfig() (config.Config, error) {
	var cfg config.Config
	var err error
	if configPath != "" {
		cfg, err = config.Load(configPath)
	} else {
		cfg, err = config.LoadDefault()
	}
	if err != nil {
		return config.Config{}, err
	}

	logging.Init(logging.ParseLevel(cfg.LogLevel), os.Stderr)
	return cfg, nil
}
