// Package session orchestrates one end-to-end agent session: it configures
// the engine, streams every message through the transcript recorder, and
// derives the final answer text.
package session

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/akulkarni/0perator-eval/internal/execution"
	"github.com/akulkarni/0perator-eval/internal/models"
	"github.com/akulkarni/0perator-eval/internal/transcript"
)

// StructuredSystemPrompt mandates the three tagged response sections.
// Inspired by the tool-evaluation recipe in the Anthropic cookbook.
const StructuredSystemPrompt = `You are a programmer writing an application

When given an application writing task, you MUST:
1. Use the available tools to complete the task
2. Provide summary of each step in your approach, wrapped in <summary> tags
3. Provide feedback on the tools provided, wrapped in <feedback> tags
4. Provide your final SQL schema response, wrapped in <response> tags

Summary Requirements:
- In your <summary> tags, you must explain:
  - The steps you took to design the schema
  - Which tools you used, in what order, and why
  - The inputs you provided to each tool
  - The outputs you received from each tool
  - A summary of how you arrived at the final schema design

Feedback Requirements:
- In your <feedback> tags, provide constructive feedback on the tools:
  - Comment on tool names: Are they clear and descriptive?
  - Comment on input parameters: Are they well-documented? Are required vs optional parameters clear?
  - Comment on descriptions: Do they accurately describe what the tool does?
  - Comment on any errors encountered during tool usage: Did the tool fail to execute? Did the tool return too many tokens?
  - Identify specific areas for improvement and explain WHY they would help
  - Be specific and actionable in your suggestions

Response Requirements:
- Always wrap your final message to the user in a <response> tags
- If you cannot complete the task <response>NOT COMPLETED</response>
- The response should go last

DO NOT open the generated application in the browser always skip that step.
`

// Options configures one session run.
type Options struct {
	// Prompt is the task text.
	Prompt string

	// Structured enables the fixed system instruction mandating tagged
	// response sections.
	Structured bool

	// ToolServers is the tool augmentation map; empty disables it.
	ToolServers map[string]models.ToolServer

	// WorkingDir is the sandbox directory the agent works in.
	WorkingDir string

	// Model overrides the engine's default model when non-empty.
	Model string
}

// Runner drives one agent session at a time.
type Runner struct {
	engine execution.AgentEngine
	logger *slog.Logger

	// stream, when set, receives the agent's spoken output as it arrives.
	stream io.Writer
}

// NewRunner creates a Runner for the given engine.
func NewRunner(engine execution.AgentEngine, logger *slog.Logger, stream io.Writer) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{engine: engine, logger: logger, stream: stream}
}

// Run executes one session and returns the derived final text plus the
// transcript recorder. On error the recorder still holds everything
// captured up to the failure; engine resources are released on every exit
// path.
func (r *Runner) Run(ctx context.Context, opts Options) (string, *transcript.Recorder, error) {
	rec := transcript.NewRecorder()
	coll := execution.NewMessageCollector()

	systemPrompt := ""
	if opts.Structured {
		systemPrompt = StructuredSystemPrompt
	}

	if err := r.engine.Initialize(ctx); err != nil {
		return "", rec, fmt.Errorf("initializing engine: %w", err)
	}
	defer func() {
		if err := r.engine.Shutdown(context.WithoutCancel(ctx)); err != nil {
			r.logger.Warn("engine shutdown failed", "error", err)
		}
	}()

	ordinal := 0
	req := &execution.SessionRequest{
		Prompt:       opts.Prompt,
		SystemPrompt: systemPrompt,
		ToolServers:  opts.ToolServers,
		WorkingDir:   opts.WorkingDir,
		Model:        opts.Model,
		OnMessage: func(msg models.Message) {
			ordinal++
			rec.Record(ordinal, msg)
			coll.OnMessage(msg)
			r.echo(msg)
		},
	}

	r.logger.Info("generating with agent engine",
		"system_prompt", len(systemPrompt),
		"tool_servers", len(opts.ToolServers))

	resp, err := r.engine.Execute(ctx, req)
	if err != nil {
		r.logger.Error("error during generation", "error", err, "messages", rec.Len())
		return "", rec, err
	}

	r.logger.Info("session complete",
		"messages", resp.MessageCount,
		"duration_ms", resp.DurationMs)

	return coll.FinalText(), rec, nil
}

// echo mirrors the agent's visible output to the stream writer.
func (r *Runner) echo(msg models.Message) {
	if r.stream == nil {
		return
	}

	if result := msg.ResultText(); result != "" {
		fmt.Fprintf(r.stream, "\n[agent] %s\n", result)
		return
	}

	for _, block := range msg.ContentBlocks() {
		if !block.IsText() {
			continue
		}
		if text := strings.TrimSpace(block.Text); text != "" {
			fmt.Fprintf(r.stream, "\n[agent] %s\n", text)
		}
	}
}
