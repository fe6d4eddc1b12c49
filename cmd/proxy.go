package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"mcpinspect/internal/proxy"
)

var proxyCmd = &cobra.Command{
	Use:   "proxy -- <command> [args...]",
	Short: "Proxy stdio traffic to a spawned tool server",
	Long: `Spawns a tool server process and bridges newline-delimited JSON-RPC
between your stdin/stdout and the server's. Every tools/call response
crossing the bridge is fed to the resource indexer under the active
profile, so a client talking through the proxy builds the resource
store without knowing it exists.

Example:
  mcpinspect proxy -- npx some-mcp-server --flag`,
	Args: cobra.MinimumNArgs(1),
	RunE: runProxy,
}

func init() {
	rootCmd.AddCommand(proxyCmd)
}

func runProxy(cmd *cobra.Command, args []string) error {
	if _, err := loadConfig(); err != nil {
		return err
	}

	_, profiles, idx := openStores()

	server, err := proxy.NewCommandTransport(args[0], args[1:]...)
	if err != nil {
		return err
	}
	client := proxy.NewStdioTransport(os.Stdin, os.Stdout)

	interceptor := proxy.NewInterceptor(client, server, idx, profiles)
	defer interceptor.Close()

	if err := server.Start(); err != nil {
		return err
	}
	client.Start()

	if err := server.Wait(); err != nil {
		return fmt.Errorf("server process: %w", err)
	}
	return nil
}
