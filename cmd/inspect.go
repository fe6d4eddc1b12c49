package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"mcpinspect/internal/inspect"
)

var (
	inspectEndpoint  string
	inspectTransport string
)

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Interactive REPL against a tool server",
	Long: `Connects to an MCP tool server and starts an interactive shell.

In the shell you can list and describe tools, call them with JSON
arguments, browse the resources indexed from previous calls, and switch
the active user profile. Every tool result is fed through the resource
indexer, so identifiers discovered interactively are available to the
agent later.`,
	RunE: runInspect,
}

func init() {
	rootCmd.AddCommand(inspectCmd)

	inspectCmd.Flags().StringVar(&inspectEndpoint, "endpoint", "", "Tool server endpoint URL (default: from config)")
	inspectCmd.Flags().StringVar(&inspectTransport, "transport", "", "Transport to use (streamable-http, sse)")
}

func runInspect(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if inspectEndpoint == "" {
		inspectEndpoint = cfg.Endpoint
	}
	if inspectTransport == "" {
		inspectTransport = cfg.Transport
	}

	_, profiles, idx := openStores()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		cancel()
	}()

	client := inspect.NewClient(inspectEndpoint, inspect.TransportType(inspectTransport))
	return inspect.NewREPL(client, idx, profiles).Run(ctx)
}
