package main

import (
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/akulkarni/0perator-eval/internal/config"
)

var version = "dev"

func newRootCommand() *cobra.Command {
	var (
		noMCP            bool
		noStructured     bool
		toolServerPath   string
		toolServerConfig string
		engineName       string
		modelID          string
		timeout          time.Duration
		debugLogging     bool
	)

	cmd := &cobra.Command{
		Use:   "opeval <prompt-file> [results-dir]",
		Short: "Run a prompt through a coding agent with optional MCP tool servers",
		Long: `Opeval drives a coding agent through a single task prompt, optionally
exposing the 0perator and tiger MCP tool servers, and captures everything the
agent produced into a results bundle: the final answer, extracted structured
sections, the full conversation transcript, and a snapshot of the files the
agent wrote in its sandbox.`,
		Version:      version,
		Args:         cobra.RangeArgs(1, 2),
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if debugLogging {
				slog.SetLogLoggerLevel(slog.LevelDebug)
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			resultsDir := "results"
			if len(args) > 1 {
				resultsDir = args[1]
			}

			return runEval(evalOptions{
				cfg: config.Options{
					PromptPath:         args[0],
					ResultsDir:         resultsDir,
					UseTools:           !noMCP,
					OperatorServerPath: toolServerPath,
					ToolServerFile:     toolServerConfig,
					Engine:             engineName,
					Model:              modelID,
					Structured:         !noStructured,
				},
				timeout: timeout,
				stdout:  os.Stdout,
			})
		},
	}

	cmd.Flags().BoolVar(&noMCP, "no-mcp", false, "Disable MCP tool servers (enabled by default: 0perator, tiger)")
	cmd.Flags().BoolVar(&noStructured, "no-structured-prompt", false, "Disable the structured prompt with summary/feedback/response tags")
	cmd.Flags().StringVar(&toolServerPath, "tool-server", "scripts/run-source.sh", "Path to the 0perator tool server launcher")
	cmd.Flags().StringVar(&toolServerConfig, "tool-server-config", "", "YAML file overriding the tool server map")
	cmd.Flags().StringVar(&engineName, "engine", "claude", "Agent engine: claude, copilot or mock")
	cmd.Flags().StringVar(&modelID, "model", "", "Model override for the engine")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Overall session timeout (0 = no timeout)")
	cmd.PersistentFlags().BoolVar(&debugLogging, "debug", false, "Enable debug logging")

	return cmd
}

func execute() error {
	return newRootCommand().Execute()
}
