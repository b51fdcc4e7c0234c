// Package main provides the CLI entry point for Conductor, a personal
// AI agent backend.
//
// Conductor runs an agentic tool-execution loop against LLM providers
// (Anthropic, OpenAI) and a graph-based workflow engine with human
// checkpoints, exposed over an HTTP API with SSE and WebSocket
// streaming.
//
// # Basic Usage
//
// Start the server:
//
//	conductor serve --config conductor.yaml
//
// Run a one-shot agent prompt:
//
//	conductor run "summarize my open reminders"
//
// List registered workflows:
//
//	conductor workflows
//
// # Environment Variables
//
//   - ANTHROPIC_API_KEY: Anthropic API key for Claude models
//   - OPENAI_API_KEY: OpenAI API key for GPT models
//
// Any ${VAR} reference in the configuration file is expanded from the
// environment at load time.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

// Build information, populated by ldflags during build.
//
// Example:
//
//	go build -ldflags "-X main.version=v1.0.0 -X main.commit=$(git rev-parse HEAD) -X main.date=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := buildRootCmd().Execute(); err != nil {
		slog.Error("command execution failed", "error", err)
		os.Exit(1)
	}
}

func buildRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "conductor",
		Short: "Conductor - Personal AI agent backend",
		Long: `Conductor runs an agentic tool-execution loop and a checkpointed
workflow engine behind an HTTP API.

Supported LLM providers: Anthropic (Claude), OpenAI (GPT)
Built-in tools: Web Search, Memory, Assets, Sub-agents`,
		Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		buildServeCmd(),
		buildRunCmd(),
		buildWorkflowsCmd(),
		buildConfigCmd(),
	)

	return rootCmd
}
