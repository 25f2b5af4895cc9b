package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/akulkarni/0perator-eval/internal/config"
	"github.com/akulkarni/0perator-eval/internal/execution"
	"github.com/akulkarni/0perator-eval/internal/extract"
	"github.com/akulkarni/0perator-eval/internal/results"
	"github.com/akulkarni/0perator-eval/internal/session"
	"github.com/akulkarni/0perator-eval/internal/workspace"
)

// previewLines caps the console preview of the final text.
const previewLines = 20

// evalOptions carries one evaluation invocation. The engine and workspace
// manager are injectable for tests; when nil they are built from the
// resolved configuration.
type evalOptions struct {
	cfg     config.Options
	timeout time.Duration
	stdout  io.Writer

	engine    execution.AgentEngine
	wsManager *workspace.Manager
}

// runEval is the whole pipeline: resolve config, acquire a sandbox, run the
// session, extract sections, persist the bundle, snapshot the sandbox, and
// release it. The sandbox is released on every exit path; cleanup problems
// degrade to warnings and never mask the run's outcome.
func runEval(opts evalOptions) error {
	run, err := config.Resolve(opts.cfg)
	if err != nil {
		return err
	}

	engine := opts.engine
	if engine == nil {
		engine, err = buildEngine(run)
		if err != nil {
			return err
		}
	}

	manager := opts.wsManager
	if manager == nil {
		manager = workspace.NewManager(slog.Default())
	}

	ws, err := manager.Acquire()
	if err != nil {
		return err
	}
	defer manager.Release(ws)

	ctx := context.Background()
	if opts.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.timeout)
		defer cancel()
	}

	runner := session.NewRunner(engine, slog.Default(), opts.stdout)
	final, rec, err := runner.Run(ctx, session.Options{
		Prompt:      run.Prompt,
		Structured:  run.Structured,
		ToolServers: run.ToolServers,
		WorkingDir:  ws,
		Model:       run.Model,
	})
	if err != nil {
		return fmt.Errorf("agent session failed: %w", err)
	}

	sections := extract.Parse(final)
	slog.Debug("extracted tags",
		"summary", sections.Summary != nil,
		"feedback", sections.Feedback != nil,
		"response", sections.Response != nil)

	writer := results.NewWriter(run.ResultsDir, slog.Default())
	if err := writer.Write(final, sections, rec); err != nil {
		return err
	}

	outDir, err := manager.Snapshot(ws, run.ResultsDir)
	if err != nil {
		return fmt.Errorf("snapshotting workspace: %w", err)
	}
	slog.Info("generated files copied", "path", outDir)

	printPreview(opts.stdout, final, writer.OutputPath())
	return nil
}

func buildEngine(run *config.Run) (execution.AgentEngine, error) {
	switch run.Engine {
	case "", "claude":
		return execution.NewClaudeEngine("", slog.Default()), nil
	case "copilot":
		return execution.NewCopilotEngine(run.Model, slog.Default(), nil), nil
	case "mock":
		return execution.NewMockEngine(), nil
	default:
		return nil, config.Errorf("unknown engine %q (want claude, copilot or mock)", run.Engine)
	}
}

// printPreview writes the first previewLines lines of the final text.
func printPreview(w io.Writer, content, outputPath string) {
	if w == nil {
		return
	}

	fmt.Fprintf(w, "\nGenerated content preview:\n")
	fmt.Fprintln(w, strings.Repeat("=", 26))

	lines := strings.Split(content, "\n")
	for i, line := range lines {
		if i >= previewLines {
			fmt.Fprintln(w, "...")
			fmt.Fprintf(w, "(Full content in: %s)\n", outputPath)
			return
		}
		fmt.Fprintln(w, line)
	}
}
