package execution

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/akulkarni/0perator-eval/internal/models"
)

// DefaultClaudeBinary is the agent CLI launched by ClaudeEngine.
const DefaultClaudeBinary = "claude"

// maxStreamLine bounds a single stream-json line. Tool results can carry
// whole files, so this is generous.
const maxStreamLine = 16 * 1024 * 1024

// ClaudeEngine drives the Claude Code CLI as a subprocess in stream-json
// mode and decodes its NDJSON output into typed messages.
type ClaudeEngine struct {
	binPath string
	logger  *slog.Logger

	// newCommand is injectable for tests.
	newCommand func(ctx context.Context, name string, args ...string) *exec.Cmd
}

// NewClaudeEngine returns an engine that launches binPath (or the default
// "claude" from PATH when empty).
func NewClaudeEngine(binPath string, logger *slog.Logger) *ClaudeEngine {
	if binPath == "" {
		binPath = DefaultClaudeBinary
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ClaudeEngine{
		binPath:    binPath,
		logger:     logger,
		newCommand: exec.CommandContext,
	}
}

// Initialize verifies the CLI binary is resolvable.
func (e *ClaudeEngine) Initialize(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := exec.LookPath(e.binPath); err != nil {
		return &EngineError{Stage: "start", Err: fmt.Errorf("agent CLI not found: %w", err)}
	}
	return nil
}

// Execute runs one session. The prompt is fed on stdin; each stdout line is
// decoded and handed to req.OnMessage in arrival order.
func (e *ClaudeEngine) Execute(ctx context.Context, req *SessionRequest) (*SessionResponse, error) {
	if req == nil {
		return nil, fmt.Errorf("nil req was passed to ClaudeEngine.Execute")
	}

	args, err := buildClaudeArgs(req)
	if err != nil {
		return nil, &EngineError{Stage: "start", Err: err}
	}

	cmd := e.newCommand(ctx, e.binPath, args...)
	cmd.Dir = req.WorkingDir
	cmd.Stdin = strings.NewReader(req.Prompt)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, &EngineError{Stage: "start", Err: err}
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, &EngineError{Stage: "start", Err: err}
	}

	start := time.Now()

	e.logger.Info("starting agent session",
		"binary", e.binPath,
		"system_prompt", req.SystemPrompt != "",
		"tool_servers", len(req.ToolServers),
		"workspace", req.WorkingDir)

	if err := cmd.Start(); err != nil {
		return nil, &EngineError{Stage: "start", Err: err}
	}

	var (
		eg           errgroup.Group
		messageCount int
		stderrBuf    bytes.Buffer
	)

	eg.Go(func() error {
		n, err := consumeStream(stdout, req.emit)
		messageCount = n
		return err
	})
	eg.Go(func() error {
		_, err := io.Copy(&stderrBuf, stderr)
		return err
	})

	streamErr := eg.Wait()
	waitErr := cmd.Wait()

	if streamErr != nil {
		return nil, &EngineError{Stage: "stream", Stderr: stderrTail(stderrBuf.String()), Err: streamErr}
	}
	if waitErr != nil {
		return nil, &EngineError{Stage: "stream", Stderr: stderrTail(stderrBuf.String()), Err: waitErr}
	}

	return &SessionResponse{
		MessageCount: messageCount,
		DurationMs:   time.Since(start).Milliseconds(),
	}, nil
}

// Shutdown is a no-op: the subprocess ends with Execute.
func (e *ClaudeEngine) Shutdown(ctx context.Context) error {
	return nil
}

// buildClaudeArgs assembles the CLI invocation: non-interactive stream-json
// output, permission prompts bypassed, and ambient user/project settings
// ignored so runs are reproducible.
func buildClaudeArgs(req *SessionRequest) ([]string, error) {
	args := []string{
		"-p",
		"--verbose",
		"--output-format", "stream-json",
		"--permission-mode", "bypassPermissions",
		"--setting-sources", "",
	}

	if req.SystemPrompt != "" {
		args = append(args, "--system-prompt", req.SystemPrompt)
	}

	if req.Model != "" {
		args = append(args, "--model", req.Model)
	}

	if len(req.ToolServers) > 0 {
		cfg, err := json.Marshal(map[string]any{"mcpServers": req.ToolServers})
		if err != nil {
			return nil, fmt.Errorf("encoding tool server config: %w", err)
		}
		args = append(args, "--mcp-config", string(cfg))
	}

	return args, nil
}

// consumeStream decodes NDJSON lines from r and emits each message in
// order. Returns the number of messages emitted. On error the remaining
// stream is drained so the subprocess never blocks on a full pipe.
func consumeStream(r io.Reader, emit func(models.Message)) (int, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxStreamLine)

	count := 0
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		msg, err := models.DecodeMessage(line)
		if err != nil {
			drain(r)
			return count, fmt.Errorf("message %d: %w", count+1, err)
		}

		count++
		emit(msg)
	}

	if err := scanner.Err(); err != nil {
		drain(r)
		return count, fmt.Errorf("reading engine stream: %w", err)
	}

	return count, nil
}

func drain(r io.Reader) {
	_, _ = io.Copy(io.Discard, r)
}

func stderrTail(s string) string {
	const tailLimit = 4096

	s = strings.TrimSpace(s)
	if len(s) > tailLimit {
		s = s[len(s)-tailLimit:]
	}
	return s
}
