package execution

import (
	"context"
	"time"

	"github.com/akulkarni/0perator-eval/internal/models"
)

// MockEngine replays a scripted message stream. Used in tests and available
// behind --engine mock for exercising the pipeline without a real agent.
type MockEngine struct {
	// Messages are emitted in order on Execute.
	Messages []models.Message

	// ExecuteErr, when set, is returned after the scripted messages have
	// been emitted, simulating a mid-stream engine failure.
	ExecuteErr error

	// Bookkeeping observable by tests.
	Initialized  bool
	ShutdownDone bool
	LastRequest  *SessionRequest
}

// NewMockEngine returns an engine that emits msgs.
func NewMockEngine(msgs ...models.Message) *MockEngine {
	return &MockEngine{Messages: msgs}
}

func (m *MockEngine) Initialize(ctx context.Context) error {
	m.Initialized = true
	return nil
}

func (m *MockEngine) Execute(ctx context.Context, req *SessionRequest) (*SessionResponse, error) {
	start := time.Now()
	m.LastRequest = req

	for _, msg := range m.Messages {
		req.emit(msg)
	}

	if m.ExecuteErr != nil {
		return nil, &EngineError{Stage: "stream", Err: m.ExecuteErr}
	}

	return &SessionResponse{
		MessageCount: len(m.Messages),
		DurationMs:   time.Since(start).Milliseconds(),
	}, nil
}

func (m *MockEngine) Shutdown(ctx context.Context) error {
	m.ShutdownDone = true
	return nil
}

// ResultMsg builds a result-bearing message for scripts.
func ResultMsg(result string) models.Message {
	return models.Message{
		Kind:   models.KindResult,
		Result: &models.ResultMessage{Subtype: "success", Result: result},
		Raw:    map[string]any{"type": "result", "subtype": "success", "result": result},
	}
}

// TextMsg builds an assistant prose message for scripts.
func TextMsg(text string) models.Message {
	return models.Message{
		Kind: models.KindAssistant,
		Assistant: &models.AssistantMessage{
			Content: []models.ContentBlock{{Type: "text", Text: text}},
		},
		Raw: map[string]any{
			"type": "assistant",
			"message": map[string]any{
				"content": []any{map[string]any{"type": "text", "text": text}},
			},
		},
	}
}
