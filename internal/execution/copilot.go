package execution

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	copilot "github.com/github/copilot-sdk/go"

	"github.com/akulkarni/0perator-eval/internal/models"
)

// CopilotEngine runs sessions through the GitHub Copilot SDK. It adapts the
// SDK's session events into this harness's message model. The SDK surface
// used here has no per-session tool-server wiring, so requests carrying a
// tool-server map are rejected.
type CopilotEngine struct {
	defaultModelID string
	logger         *slog.Logger

	client copilotClient

	startOnce sync.Once
}

// CopilotEngineOptions customizes engine construction, primarily so tests
// can substitute a fake client.
type CopilotEngineOptions struct {
	NewCopilotClient func(clientOptions *copilot.ClientOptions) copilotClient
}

// NewCopilotEngine creates a CopilotEngine.
//   - defaultModelID may be blank, in which case the copilot CLI chooses its
//     own fallback model.
func NewCopilotEngine(defaultModelID string, logger *slog.Logger, options *CopilotEngineOptions) *CopilotEngine {
	if logger == nil {
		logger = slog.Default()
	}

	copilotOptions := &copilot.ClientOptions{
		// the working directory is set per session, not on the client
		LogLevel:  "error",
		AutoStart: copilot.Bool(false),
	}

	var client copilotClient
	if options == nil || options.NewCopilotClient == nil {
		client = newCopilotClient(copilotOptions)
	} else {
		client = options.NewCopilotClient(copilotOptions)
	}

	return &CopilotEngine{
		defaultModelID: defaultModelID,
		logger:         logger,
		client:         client,
	}
}

func (e *CopilotEngine) Initialize(ctx context.Context) error {
	return ctx.Err()
}

// Execute runs one session through the copilot client.
func (e *CopilotEngine) Execute(ctx context.Context, req *SessionRequest) (*SessionResponse, error) {
	if req == nil {
		return nil, fmt.Errorf("nil req was passed to CopilotEngine.Execute")
	}
	if len(req.ToolServers) > 0 {
		return nil, &EngineError{Stage: "start", Err: fmt.Errorf("copilot engine does not support tool servers")}
	}

	var startErr error
	e.startOnce.Do(func() {
		// NOTE: the client has an autostart feature, but starting explicitly
		// keeps the failure on this call path instead of inside a callback.
		startErr = e.client.Start(ctx)
	})
	if startErr != nil {
		return nil, &EngineError{Stage: "start", Err: fmt.Errorf("copilot failed to start: %w", startErr)}
	}

	modelID := e.defaultModelID
	if req.Model != "" {
		modelID = req.Model
	}

	start := time.Now()

	session, err := e.client.CreateSession(ctx, &copilot.SessionConfig{
		Model:               modelID,
		OnPermissionRequest: allowAllTools,
		WorkingDirectory:    req.WorkingDir,
	})
	if err != nil {
		return nil, &EngineError{Stage: "start", Err: fmt.Errorf("failed to create session: %w", err)}
	}

	adapter := &copilotEventAdapter{emit: req.emit}
	unsubscribe := session.On(adapter.On)
	defer unsubscribe()

	// The surface used here has no separate system-instruction channel, so
	// structured instructions travel ahead of the task prompt.
	prompt := req.Prompt
	if req.SystemPrompt != "" {
		prompt = req.SystemPrompt + "\n\n" + req.Prompt
	}

	if _, err := session.SendAndWait(ctx, copilot.MessageOptions{Prompt: prompt}); err != nil {
		return nil, &EngineError{Stage: "stream", Err: err}
	}

	if adapter.errMsg != "" {
		return nil, &EngineError{Stage: "stream", Err: fmt.Errorf("session failed: %s", adapter.errMsg)}
	}

	return &SessionResponse{
		MessageCount: adapter.count,
		DurationMs:   time.Since(start).Milliseconds(),
	}, nil
}

// Shutdown stops the shared copilot client.
func (e *CopilotEngine) Shutdown(ctx context.Context) error {
	if err := e.client.Stop(); err != nil {
		e.logger.Info("failed to stop copilot client", "error", err)
	}
	return nil
}

// copilotEventAdapter converts copilot session events into harness messages,
// preserving every populated event field in the raw payload.
type copilotEventAdapter struct {
	emit   func(models.Message)
	count  int
	errMsg string
}

func (a *copilotEventAdapter) On(event copilot.SessionEvent) {
	msg := adaptCopilotEvent(event)

	if event.Type == copilot.SessionError {
		if event.Data.Message != nil && *event.Data.Message != "" {
			a.errMsg = *event.Data.Message
		} else {
			a.errMsg = "session failed with unknown error"
		}
	}

	a.count++
	a.emit(msg)
}

func adaptCopilotEvent(event copilot.SessionEvent) models.Message {
	raw := map[string]any{"type": string(event.Type)}
	addRaw(raw, "content", event.Data.Content)
	addRaw(raw, "delta_content", event.Data.DeltaContent)
	addRaw(raw, "message", event.Data.Message)
	addRaw(raw, "tool_name", event.Data.ToolName)
	addRaw(raw, "tool_call_id", event.Data.ToolCallID)
	addRaw(raw, "reasoning_text", event.Data.ReasoningText)

	switch event.Type {
	case copilot.AssistantMessage:
		assistant := &models.AssistantMessage{}
		if event.Data.Content != nil {
			assistant.Content = []models.ContentBlock{{
				Type: "text",
				Text: *event.Data.Content,
				Raw:  raw,
			}}
		}
		return models.Message{Kind: models.KindAssistant, Assistant: assistant, Raw: raw}

	default:
		return models.Message{Kind: models.KindUnknown, Raw: raw}
	}
}

func addRaw[T any](raw map[string]any, name string, v *T) {
	if v != nil {
		raw[name] = *v
	}
}

func allowAllTools(request copilot.PermissionRequest, invocation copilot.PermissionInvocation) (copilot.PermissionRequestResult, error) {
	// permission prompts are bypassed so runs stay non-interactive
	return copilot.PermissionRequestResult{Kind: "approved"}, nil
}
