// Package results persists the durable output of an evaluation session: the
// full final text, any extracted structured sections, and the conversation
// transcript.
package results

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/akulkarni/0perator-eval/internal/extract"
	"github.com/akulkarni/0perator-eval/internal/transcript"
)

const (
	outputFile     = "output.txt"
	summaryFile    = "summary.md"
	feedbackFile   = "feedback.md"
	responseFile   = "response.txt"
	transcriptFile = "transcript.md"

	summaryHeading  = "# Summary\n\n"
	feedbackHeading = "# Tool Feedback\n\n"

	transcriptPreamble = "# Full Conversation Transcript\n\n" +
		"This file contains the complete conversation flow with all messages, tool calls, and responses.\n\n"
)

// Writer writes result artifacts into a single results directory.
type Writer struct {
	dir    string
	logger *slog.Logger
}

// NewWriter returns a Writer rooted at dir. The directory is created on the
// first Write if it does not exist.
func NewWriter(dir string, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Writer{dir: dir, logger: logger}
}

// Write persists the bundle: output.txt always; summary.md, feedback.md and
// response.txt only when the matching section was extracted non-empty;
// transcript.md only when at least one message was recorded.
func (w *Writer) Write(content string, sections extract.Sections, rec *transcript.Recorder) error {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return fmt.Errorf("creating results dir: %w", err)
	}

	if err := w.writeFile(outputFile, content); err != nil {
		return err
	}
	w.logger.Info("full output saved", "path", filepath.Join(w.dir, outputFile))

	if s := deref(sections.Summary); s != "" {
		if err := w.writeFile(summaryFile, summaryHeading+s); err != nil {
			return err
		}
		w.logger.Info("summary saved", "path", filepath.Join(w.dir, summaryFile))
	}

	if s := deref(sections.Feedback); s != "" {
		if err := w.writeFile(feedbackFile, feedbackHeading+s); err != nil {
			return err
		}
		w.logger.Info("feedback saved", "path", filepath.Join(w.dir, feedbackFile))
	}

	if s := deref(sections.Response); s != "" {
		if err := w.writeFile(responseFile, s); err != nil {
			return err
		}
		w.logger.Info("response saved", "path", filepath.Join(w.dir, responseFile))
	}

	if rec != nil && rec.Len() > 0 {
		if err := w.writeFile(transcriptFile, transcriptPreamble+rec.Export()); err != nil {
			return err
		}
		w.logger.Info("transcript saved", "path", filepath.Join(w.dir, transcriptFile))
	}

	return nil
}

// OutputPath returns where the full output artifact lands.
func (w *Writer) OutputPath() string {
	return filepath.Join(w.dir, outputFile)
}

func (w *Writer) writeFile(name, content string) error {
	path := filepath.Join(w.dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", name, err)
	}
	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
