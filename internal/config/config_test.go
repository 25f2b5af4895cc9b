package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestResolveReadsPrompt(t *testing.T) {
	dir := t.TempDir()
	promptPath := writeFile(t, dir, "prompt.md", "Design a schema")

	run, err := Resolve(Options{
		PromptPath: promptPath,
		ResultsDir: filepath.Join(dir, "results"),
		Engine:     "claude",
		Structured: true,
	})
	require.NoError(t, err)
	require.Equal(t, "Design a schema", run.Prompt)
	require.True(t, filepath.IsAbs(run.ResultsDir))
	require.Nil(t, run.ToolServers)
	require.True(t, run.Structured)
}

func TestResolveMissingPromptFile(t *testing.T) {
	_, err := Resolve(Options{PromptPath: filepath.Join(t.TempDir(), "nope.md")})

	var cfgErr *Error
	require.ErrorAs(t, err, &cfgErr)
}

func TestResolveMissingToolServer(t *testing.T) {
	dir := t.TempDir()
	promptPath := writeFile(t, dir, "prompt.md", "p")

	_, err := Resolve(Options{
		PromptPath:         promptPath,
		UseTools:           true,
		OperatorServerPath: filepath.Join(dir, "missing.sh"),
		Engine:             "claude",
	})

	var cfgErr *Error
	require.ErrorAs(t, err, &cfgErr)
	require.Contains(t, cfgErr.Error(), "tool server not found")
}

func TestResolveDefaultServers(t *testing.T) {
	dir := t.TempDir()
	promptPath := writeFile(t, dir, "prompt.md", "p")
	launcher := writeFile(t, dir, "run-source.sh", "#!/bin/sh\n")

	run, err := Resolve(Options{
		PromptPath:         promptPath,
		UseTools:           true,
		OperatorServerPath: launcher,
		Engine:             "claude",
	})
	require.NoError(t, err)
	require.Len(t, run.ToolServers, 2)
	require.Equal(t, launcher, run.ToolServers["0perator"].Command)
	require.Empty(t, run.ToolServers["0perator"].Args)

	tiger := run.ToolServers["tiger"]
	require.True(t, strings.HasSuffix(tiger.Command, filepath.Join(".local", "bin", "tiger")))
	require.Equal(t, []string{"mcp", "start"}, tiger.Args)
}

func TestResolveCopilotRejectsTools(t *testing.T) {
	dir := t.TempDir()
	promptPath := writeFile(t, dir, "prompt.md", "p")
	launcher := writeFile(t, dir, "run-source.sh", "#!/bin/sh\n")

	_, err := Resolve(Options{
		PromptPath:         promptPath,
		UseTools:           true,
		OperatorServerPath: launcher,
		Engine:             "copilot",
	})

	var cfgErr *Error
	require.ErrorAs(t, err, &cfgErr)
	require.Contains(t, cfgErr.Error(), "copilot")
}

func TestLoadToolServers(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "servers.yaml", `
servers:
  0perator:
    command: ./scripts/run-source.sh
  tiger:
    command: /opt/tiger
    args: [mcp, start]
`)

	servers, err := LoadToolServers(path)
	require.NoError(t, err)
	require.Len(t, servers, 2)
	require.Equal(t, "./scripts/run-source.sh", servers["0perator"].Command)
	require.Equal(t, []string{"mcp", "start"}, servers["tiger"].Args)
}

func TestLoadToolServersErrors(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		content string
	}{
		{"empty map", "servers: {}\n"},
		{"missing command", "servers:\n  broken:\n    args: [x]\n"},
		{"not yaml", "{{{{"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, dir, "bad-"+tt.name+".yaml", tt.content)
			_, err := LoadToolServers(path)
			if err == nil {
				t.Fatal("LoadToolServers() = nil, want error")
			}
			var cfgErr *Error
			if !errors.As(err, &cfgErr) {
				t.Fatalf("error %v is not a *config.Error", err)
			}
		})
	}
}
