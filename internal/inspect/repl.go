package inspect

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"mcpinspect/internal/envelope"
	"mcpinspect/internal/indexer"
	"mcpinspect/internal/profile"
	"mcpinspect/pkg/logging"
)

// errExit signals a clean REPL shutdown from the exit command.
var errExit = fmt.Errorf("exit")

// REPL is the interactive inspector shell.
type REPL struct {
	client   *Client
	indexer  *indexer.Indexer
	profiles *profile.Store
	rl       *readline.Instance
	out      io.Writer
}

// NewREPL wires the shell to its collaborators.
func NewREPL(client *Client, idx *indexer.Indexer, profiles *profile.Store) *REPL {
	return &REPL{
		client:   client,
		indexer:  idx,
		profiles: profiles,
		out:      os.Stdout,
	}
}

// Run connects, loads the tool catalog, and processes commands until exit.
func (r *REPL) Run(ctx context.Context) error {
	if err := r.client.Connect(ctx); err != nil {
		return err
	}
	defer r.client.Close()

	if _, err := r.client.ListTools(ctx); err != nil {
		return err
	}

	historyFile := filepath.Join(os.TempDir(), ".mcpinspect_history")
	rl, err := readline.NewEx(&readline.Config{
		Prompt:            r.buildPrompt(),
		HistoryFile:       historyFile,
		AutoComplete:      r.createCompleter(),
		InterruptPrompt:   "^C",
		EOFPrompt:         "exit",
		HistorySearchFold: true,
	})
	if err != nil {
		return fmt.Errorf("failed to create readline instance: %w", err)
	}
	defer rl.Close()
	r.rl = rl

	fmt.Fprintf(r.out, "Connected to %s (%d tools). Type 'help' for commands, TAB to complete.\n\n", r.client.endpoint, len(r.client.Tools()))

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			if len(line) == 0 {
				continue
			}
		} else if err == io.EOF {
			fmt.Fprintln(r.out, "Goodbye!")
			return nil
		} else if err != nil {
			return fmt.Errorf("readline error: %w", err)
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}

		if err := r.executeCommand(ctx, input); err != nil {
			if err == errExit {
				fmt.Fprintln(r.out, "Goodbye!")
				return nil
			}
			fmt.Fprintf(r.out, "%s %v\n", text.FgRed.Sprint("Error:"), err)
		}
		fmt.Fprintln(r.out)
	}
}

func (r *REPL) buildPrompt() string {
	if active, ok := r.profiles.Active(); ok {
		return fmt.Sprintf("inspect(%s)> ", active.DisplayName)
	}
	return "inspect> "
}

func (r *REPL) updatePrompt() {
	if r.rl != nil {
		r.rl.SetPrompt(r.buildPrompt())
	}
}

func (r *REPL) createCompleter() *readline.PrefixCompleter {
	tools := r.client.Tools()
	toolItems := make([]readline.PrefixCompleterInterface, len(tools))
	for i, tool := range tools {
		toolItems[i] = readline.PcItem(tool.Name)
	}

	profileItems := []readline.PrefixCompleterInterface{readline.PcItem("none")}
	for _, p := range r.profiles.List() {
		profileItems = append(profileItems, readline.PcItem(p.ID))
	}

	return readline.NewPrefixCompleter(
		readline.PcItem("help"),
		readline.PcItem("tools"),
		readline.PcItem("describe", toolItems...),
		readline.PcItem("call", toolItems...),
		readline.PcItem("resources"),
		readline.PcItem("profiles"),
		readline.PcItem("use", profileItems...),
		readline.PcItem("exit"),
		readline.PcItem("quit"),
	)
}

func (r *REPL) executeCommand(ctx context.Context, input string) error {
	parts := strings.Fields(input)
	command, args := parts[0], parts[1:]

	switch command {
	case "help", "?":
		r.printHelp()
		return nil
	case "tools":
		return r.cmdTools(ctx)
	case "describe":
		return r.cmdDescribe(args)
	case "call":
		return r.cmdCall(ctx, args, input)
	case "resources":
		return r.cmdResources()
	case "profiles":
		return r.cmdProfiles()
	case "use":
		return r.cmdUse(args)
	case "exit", "quit":
		return errExit
	default:
		return fmt.Errorf("unknown command %q, type 'help' for the list", command)
	}
}

func (r *REPL) printHelp() {
	fmt.Fprint(r.out, `Commands:
  tools                      List tools on the connected server
  describe <tool>            Show a tool's description and input schema
  call <tool> [json-args]    Call a tool, e.g. call getPage {"pageId":"123"}
  resources                  List indexed resources
  profiles                   List user profiles
  use <profile-id|none>      Switch the active profile
  exit                       Leave the inspector
`)
}

func (r *REPL) cmdTools(ctx context.Context) error {
	tools, err := r.client.ListTools(ctx)
	if err != nil {
		return err
	}
	if len(tools) == 0 {
		fmt.Fprintln(r.out, "No tools found")
		return nil
	}

	t := r.newTable()
	t.AppendHeader(table.Row{"Tool", "Description"})
	for _, tool := range tools {
		t.AppendRow(table.Row{tool.Name, truncate(tool.Description, 80)})
	}
	t.Render()

	// Refresh completion with the current catalog.
	if r.rl != nil {
		r.rl.Config.AutoComplete = r.createCompleter()
	}
	return nil
}

func (r *REPL) cmdDescribe(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: describe <tool>")
	}
	for _, tool := range r.client.Tools() {
		if tool.Name != args[0] {
			continue
		}
		fmt.Fprintf(r.out, "%s\n", text.Bold.Sprint(tool.Name))
		if tool.Description != "" {
			fmt.Fprintf(r.out, "%s\n", tool.Description)
		}
		schema, err := json.MarshalIndent(tool.InputSchema, "", "  ")
		if err == nil {
			fmt.Fprintf(r.out, "Input schema:\n%s\n", schema)
		}
		return nil
	}
	return fmt.Errorf("tool %q not found, run 'tools' to refresh the catalog", args[0])
}

func (r *REPL) cmdCall(ctx context.Context, args []string, input string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: call <tool> [json-args]")
	}
	toolName := args[0]

	toolArgs := map[string]interface{}{}
	if rest := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(strings.TrimPrefix(input, "call")), toolName)); rest != "" {
		if err := json.Unmarshal([]byte(rest), &toolArgs); err != nil {
			return fmt.Errorf("arguments must be a JSON object: %w", err)
		}
	}

	result, err := r.client.CallTool(ctx, toolName, toolArgs)
	if err != nil {
		return err
	}

	added := r.indexer.IndexResult(r.profiles.ActiveID(), toolName, result)
	if len(added) > 0 {
		fmt.Fprintf(r.out, "%s\n", text.FgGreen.Sprintf("Indexed %d new resources", len(added)))
	}

	pretty, err := json.MarshalIndent(envelope.Unwrap(envelope.FromResult(result)), "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintf(r.out, "%s\n", pretty)
	return nil
}

func (r *REPL) cmdResources() error {
	resources := r.indexer.List()
	if len(resources) == 0 {
		fmt.Fprintln(r.out, "No resources indexed yet")
		return nil
	}

	t := r.newTable()
	t.AppendHeader(table.Row{"ID", "Type", "Field", "Tool", "User"})
	for _, res := range resources {
		t.AppendRow(table.Row{truncate(res.ID, 40), res.Type, res.FieldName, res.DiscoveredByTool, res.DiscoveredFromUser})
	}
	t.Render()
	return nil
}

func (r *REPL) cmdProfiles() error {
	profiles := r.profiles.List()
	if len(profiles) == 0 {
		fmt.Fprintln(r.out, "No profiles defined")
		return nil
	}

	activeID := r.profiles.ActiveID()
	t := r.newTable()
	t.AppendHeader(table.Row{"ID", "Name", "Color", "Active"})
	for _, p := range profiles {
		active := ""
		if p.ID == activeID {
			active = text.FgGreen.Sprint("yes")
		}
		t.AppendRow(table.Row{p.ID, p.DisplayName, string(p.ColorTag), active})
	}
	t.Render()
	return nil
}

func (r *REPL) cmdUse(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: use <profile-id|none>")
	}
	id := args[0]
	if id == "none" {
		id = ""
	}
	if err := r.profiles.SetActive(id); err != nil {
		return err
	}
	if id == "" {
		fmt.Fprintln(r.out, "Active profile cleared, calls index as anonymous")
	} else {
		fmt.Fprintf(r.out, "Active profile is now %s\n", id)
	}
	logging.Debug("Inspect", "Active profile set to %q", id)
	r.updatePrompt()
	return nil
}

func (r *REPL) newTable() table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(r.out)
	t.SetStyle(table.StyleRounded)
	return t
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
