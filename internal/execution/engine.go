// Package execution abstracts the agent engine that produces a session's
// message stream, and provides the concrete engines this harness can drive.
package execution

import (
	"context"
	"fmt"

	"github.com/akulkarni/0perator-eval/internal/models"
)

// AgentEngine runs one prompt through an agent and streams back every
// message it emits.
type AgentEngine interface {
	// Initialize sets up the engine.
	Initialize(ctx context.Context) error

	// Execute submits the prompt and consumes the engine's response stream
	// to completion. req.OnMessage is invoked once per message, in strict
	// arrival order, before Execute returns.
	Execute(ctx context.Context, req *SessionRequest) (*SessionResponse, error)

	// Shutdown releases engine resources. Safe to call after a failed
	// Execute.
	Shutdown(ctx context.Context) error
}

// SessionRequest carries everything one agent session needs.
type SessionRequest struct {
	// Prompt is the task text submitted to the agent.
	Prompt string

	// SystemPrompt, when non-empty, is supplied to the engine as the
	// session's system instruction.
	SystemPrompt string

	// ToolServers maps server name to launch configuration. Empty means no
	// tool augmentation.
	ToolServers map[string]models.ToolServer

	// WorkingDir is the sandbox the agent operates in. The engine is
	// pointed at it explicitly; the harness process never changes its own
	// working directory.
	WorkingDir string

	// Model overrides the engine's default model when non-empty.
	Model string

	// OnMessage receives each decoded message as it arrives. May be nil.
	OnMessage func(models.Message)
}

// SessionResponse summarizes a completed session. The final answer text is
// derived by the caller from the streamed messages, not by the engine.
type SessionResponse struct {
	MessageCount int
	DurationMs   int64
}

// EngineError is any failure surfaced while starting, streaming from, or
// closing an agent-engine session.
type EngineError struct {
	Stage  string // "start", "stream" or "close"
	Stderr string // tail of the engine's stderr, when available
	Err    error
}

func (e *EngineError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("engine %s failed: %v: %s", e.Stage, e.Err, e.Stderr)
	}
	return fmt.Sprintf("engine %s failed: %v", e.Stage, e.Err)
}

func (e *EngineError) Unwrap() error { return e.Err }

func (req *SessionRequest) emit(msg models.Message) {
	if req.OnMessage != nil {
		req.OnMessage(msg)
	}
}
