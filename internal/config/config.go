// Package config resolves and validates everything a run needs before any
// session resource is acquired: the prompt, the results directory, and the
// tool-server map.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/akulkarni/0perator-eval/internal/models"
)

// Error is a configuration failure. It is always raised before a workspace
// or an engine session exists.
type Error struct {
	Reason string
}

func (e *Error) Error() string { return e.Reason }

// Errorf builds a configuration error.
func Errorf(format string, args ...any) *Error {
	return &Error{Reason: fmt.Sprintf(format, args...)}
}

// Options are the raw CLI inputs.
type Options struct {
	PromptPath string
	ResultsDir string

	UseTools           bool
	OperatorServerPath string
	ToolServerFile     string // optional YAML override for the server map

	Engine string // claude, copilot or mock
	Model  string

	Structured bool
}

// Run is a fully resolved, validated run configuration.
type Run struct {
	Prompt      string
	ResultsDir  string
	ToolServers map[string]models.ToolServer
	Engine      string
	Model       string
	Structured  bool
}

// Resolve validates Options and produces a Run. All failures are *Error and
// happen before any sandbox is created.
func Resolve(opts Options) (*Run, error) {
	if opts.PromptPath == "" {
		return nil, Errorf("prompt file is required")
	}

	prompt, err := os.ReadFile(opts.PromptPath)
	if err != nil {
		return nil, Errorf("prompt file %q not found: %v", opts.PromptPath, err)
	}

	resultsDir, err := filepath.Abs(opts.ResultsDir)
	if err != nil {
		return nil, Errorf("resolving results dir %q: %v", opts.ResultsDir, err)
	}

	run := &Run{
		Prompt:     string(prompt),
		ResultsDir: resultsDir,
		Engine:     opts.Engine,
		Model:      opts.Model,
		Structured: opts.Structured,
	}

	if opts.UseTools {
		if run.Engine == "copilot" {
			return nil, Errorf("the copilot engine does not support tool servers; pass --no-mcp")
		}

		servers, err := resolveToolServers(opts)
		if err != nil {
			return nil, err
		}
		run.ToolServers = servers
	}

	return run, nil
}

func resolveToolServers(opts Options) (map[string]models.ToolServer, error) {
	if opts.ToolServerFile != "" {
		return LoadToolServers(opts.ToolServerFile)
	}

	if _, err := os.Stat(opts.OperatorServerPath); err != nil {
		return nil, Errorf("tool server not found at %q", opts.OperatorServerPath)
	}

	return DefaultToolServers(opts.OperatorServerPath), nil
}

// DefaultToolServers returns the fixed two-server map: the 0perator server
// at the supplied launcher path, and the tiger CLI from the user's home
// started in MCP mode.
func DefaultToolServers(operatorPath string) map[string]models.ToolServer {
	home, err := os.UserHomeDir()
	if err != nil {
		home = ""
	}

	return map[string]models.ToolServer{
		"0perator": {Command: operatorPath},
		"tiger": {
			Command: filepath.Join(home, ".local", "bin", "tiger"),
			Args:    []string{"mcp", "start"},
		},
	}
}

// toolServerFile is the YAML shape of a tool-server override file:
//
//	servers:
//	  0perator:
//	    command: ./scripts/run-source.sh
//	  tiger:
//	    command: /home/me/.local/bin/tiger
//	    args: [mcp, start]
type toolServerFile struct {
	Servers map[string]models.ToolServer `yaml:"servers"`
}

// LoadToolServers reads a YAML tool-server map and validates every entry.
func LoadToolServers(path string) (map[string]models.ToolServer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, Errorf("reading tool server config %q: %v", path, err)
	}

	var file toolServerFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, Errorf("parsing tool server config %q: %v", path, err)
	}

	if len(file.Servers) == 0 {
		return nil, Errorf("tool server config %q defines no servers", path)
	}

	for name, server := range file.Servers {
		if err := server.Validate(); err != nil {
			return nil, Errorf("tool server %q: %v", name, err)
		}
	}

	return file.Servers, nil
}
