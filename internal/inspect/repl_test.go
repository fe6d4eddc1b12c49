package inspect

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mcpinspect/internal/indexer"
	"mcpinspect/internal/profile"
	"mcpinspect/internal/storage"
)

func newTestREPL(t *testing.T) (*REPL, *bytes.Buffer) {
	t.Helper()
	st := storage.NewStoreWithDir(t.TempDir())
	profiles := profile.NewStore(st)
	idx := indexer.New(st, profiles)

	r := NewREPL(NewClient("http://localhost:0/mcp", TransportStreamableHTTP), idx, profiles)
	out := &bytes.Buffer{}
	r.out = out
	return r, out
}

func TestExecuteCommandUnknown(t *testing.T) {
	r, _ := newTestREPL(t)
	err := r.executeCommand(context.Background(), "frobnicate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown command")
}

func TestExecuteCommandHelp(t *testing.T) {
	r, out := newTestREPL(t)
	require.NoError(t, r.executeCommand(context.Background(), "help"))
	assert.Contains(t, out.String(), "describe <tool>")
}

func TestExecuteCommandExit(t *testing.T) {
	r, _ := newTestREPL(t)
	assert.Equal(t, errExit, r.executeCommand(context.Background(), "exit"))
	assert.Equal(t, errExit, r.executeCommand(context.Background(), "quit"))
}

func TestDescribeUnknownTool(t *testing.T) {
	r, _ := newTestREPL(t)
	err := r.executeCommand(context.Background(), "describe nosuch")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nosuch")
}

func TestCallRejectsMalformedArguments(t *testing.T) {
	r, _ := newTestREPL(t)
	err := r.executeCommand(context.Background(), `call someTool {not json}`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JSON object")
}

func TestUseSwitchesProfile(t *testing.T) {
	r, out := newTestREPL(t)
	created, err := r.profiles.Create("Alice", profile.ColorBlue, "", nil)
	require.NoError(t, err)

	require.NoError(t, r.executeCommand(context.Background(), "use "+created.ID))
	assert.Equal(t, created.ID, r.profiles.ActiveID())
	assert.Contains(t, out.String(), created.ID)

	require.NoError(t, r.executeCommand(context.Background(), "use none"))
	assert.Empty(t, r.profiles.ActiveID())
}

func TestUseUnknownProfileFails(t *testing.T) {
	r, _ := newTestREPL(t)
	assert.Error(t, r.executeCommand(context.Background(), "use ghost"))
}

func TestProfilesAndResourcesEmpty(t *testing.T) {
	r, out := newTestREPL(t)
	require.NoError(t, r.executeCommand(context.Background(), "profiles"))
	require.NoError(t, r.executeCommand(context.Background(), "resources"))
	assert.Contains(t, out.String(), "No profiles defined")
	assert.Contains(t, out.String(), "No resources indexed yet")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "exactlyten", truncate("exactlyten", 10))
	assert.Equal(t, "0123456789...", truncate("0123456789abcdef", 10))
}
