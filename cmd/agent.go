package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/briandowns/spinner"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"mcpinspect/internal/agent"
	"mcpinspect/internal/events"
	"mcpinspect/internal/indexer"
	"mcpinspect/internal/inspect"
	"mcpinspect/internal/llm"
)

var (
	agentEndpoint  string
	agentTransport string
	agentProvider  string
	agentModel     string
	agentMaxDepth  int
	agentAPIKey    string
)

var agentCmd = &cobra.Command{
	Use:   "agent",
	Short: "Run the autonomous agent against a tool server",
	Long: `Connects to an MCP tool server and lets an LLM drive it: the agent
discovers the tool catalog, analyzes which tools feed which, then
repeatedly selects the next tool, resolves its parameters from earlier
results, and executes it. Tools whose parameters cannot be resolved, or
whose dependency chain is too deep, are flagged instead of called.

The API key is taken from --api-key or the provider's environment
variable (ANTHROPIC_API_KEY, GEMINI_API_KEY or OPENAI_API_KEY).`,
	RunE: runAgentCmd,
}

func init() {
	rootCmd.AddCommand(agentCmd)

	agentCmd.Flags().StringVar(&agentEndpoint, "endpoint", "", "Tool server endpoint URL (default: from config)")
	agentCmd.Flags().StringVar(&agentTransport, "transport", "", "Transport to use (streamable-http, sse)")
	agentCmd.Flags().StringVar(&agentProvider, "provider", "", "LLM provider: claude, gemini or openai (default: from config)")
	agentCmd.Flags().StringVar(&agentModel, "model", "", "Model override for the provider")
	agentCmd.Flags().IntVar(&agentMaxDepth, "max-depth", 0, "Maximum dependency-chain depth (default: from config)")
	agentCmd.Flags().StringVar(&agentAPIKey, "api-key", "", "LLM API key (default: provider environment variable)")
}

func apiKeyFor(provider llm.Provider) string {
	if agentAPIKey != "" {
		return agentAPIKey
	}
	switch provider {
	case llm.ProviderClaude:
		return os.Getenv("ANTHROPIC_API_KEY")
	case llm.ProviderGemini:
		return os.Getenv("GEMINI_API_KEY")
	case llm.ProviderOpenAI:
		return os.Getenv("OPENAI_API_KEY")
	}
	return ""
}

func runAgentCmd(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if agentEndpoint == "" {
		agentEndpoint = cfg.Endpoint
	}
	if agentTransport == "" {
		agentTransport = cfg.Transport
	}
	if agentProvider == "" {
		agentProvider = cfg.Agent.Provider
	}
	if agentModel == "" {
		agentModel = cfg.Agent.Model
	}
	if agentMaxDepth == 0 {
		agentMaxDepth = cfg.Agent.MaxDepth
	}

	provider := llm.Provider(agentProvider)
	model, err := llm.New(provider, apiKeyFor(provider), agentModel)
	if err != nil {
		return err
	}

	_, profiles, idx := openStores()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	// Pick up profile edits made by other processes while the agent runs.
	go func() {
		if err := profiles.Watch(ctx); err != nil && ctx.Err() == nil {
			fmt.Fprintf(os.Stderr, "profile watcher stopped: %v\n", err)
		}
	}()

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	s.Suffix = " Connecting to tool server..."
	s.Start()

	client := inspect.NewClient(agentEndpoint, inspect.TransportType(agentTransport))
	if err := client.Connect(ctx); err != nil {
		s.FinalMSG = text.FgRed.Sprint("Failed to connect to tool server") + "\n"
		s.Stop()
		return err
	}
	defer client.Close()
	s.Stop()

	orchestrator := agent.New()
	err = orchestrator.Configure(agent.Config{
		LLM:       model,
		MaxDepth:  agentMaxDepth,
		ListTools: client.ListTools,
		CallTool:  client.CallTool,
	})
	if err != nil {
		return err
	}

	ch, unsubscribe := orchestrator.Subscribe(false)
	defer unsubscribe()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	if err := orchestrator.Start(); err != nil {
		return err
	}

	for {
		select {
		case <-sigChan:
			if err := orchestrator.Stop(); err != nil {
				return err
			}
			fmt.Println("\nAgent stopped")
			return nil

		case event := <-ch:
			printAgentEvent(event)
			if event.Type == events.EventAgentComplete || event.Type == events.EventError {
				return finishAgentRun(orchestrator, idx, profiles.ActiveID())
			}
		}
	}
}

func printAgentEvent(event events.AgentEvent) {
	switch event.Type {
	case events.EventStatusChange:
		fmt.Printf("%s %v\n", text.FgCyan.Sprint("status"), event.Data["status"])
	case events.EventAnalysisComplete:
		fmt.Println(text.FgCyan.Sprint("analysis complete"))
	case events.EventToolStart:
		fmt.Printf("%s %v (depth %v)\n", text.FgBlue.Sprint("→"), event.Data["tool"], event.Data["depth"])
	case events.EventToolComplete:
		fmt.Printf("%s %v\n", text.FgGreen.Sprint("✓"), event.Data["tool"])
	case events.EventToolFailed:
		fmt.Printf("%s %v: %v\n", text.FgRed.Sprint("✗"), event.Data["tool"], event.Data["error"])
	case events.EventToolSkipped:
		fmt.Printf("%s %v: %v\n", text.FgYellow.Sprint("skipped"), event.Data["tool"], event.Data["reason"])
	case events.EventError:
		fmt.Printf("%s %v\n", text.FgRed.Sprint("error"), event.Data["error"])
	}
}

// finishAgentRun indexes every successful result and prints the run summary.
func finishAgentRun(orchestrator *agent.Orchestrator, idx *indexer.Indexer, userID string) error {
	state := orchestrator.GetState()

	for _, step := range state.ExecutionHistory {
		if step.Status == "completed" && step.Result != nil {
			idx.IndexResponse(userID, step.ToolName, step.Result)
		}
	}

	fmt.Println()
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Tool", "Status", "Depth"})
	for _, step := range state.ExecutionHistory {
		t.AppendRow(table.Row{step.ToolName, step.Status, step.Depth})
	}
	for _, flagged := range state.FlaggedTools {
		t.AppendRow(table.Row{flagged.Tool, "flagged: " + flagged.Reason, ""})
	}
	t.Render()

	if state.Status == agent.StatusError {
		return fmt.Errorf("agent run failed: %s", state.Error)
	}
	return nil
}
