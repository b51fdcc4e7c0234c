package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/haasonsaas/conductor/internal/observability"
	"github.com/haasonsaas/conductor/internal/runs"
	"github.com/haasonsaas/conductor/pkg/models"
)

func buildRunCmd() *cobra.Command {
	var (
		configPath string
		actorID    string
		model      string
		showEvents bool
	)

	cmd := &cobra.Command{
		Use:   "run <prompt>",
		Short: "Run a one-shot agent prompt and print the result",
		Long: `Run a single autonomous agent prompt to completion and print the
final text. The run and its event trail are persisted like any other
run, so it shows up later in the API.`,
		Example: `  conductor run "summarize my open reminders"
  conductor run --events "what did I save about the kyoto trip?"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}

			logger := observability.NewLogger(observability.LogConfig{
				Level:  "warn",
				Format: cfg.Logging.Format,
			})

			app, err := buildApp(cfg, nil, logger)
			if err != nil {
				return err
			}
			defer app.stores.Close()

			run, err := app.recorder.Run(cmd.Context(), &runs.StartRequest{
				ActorID: actorID,
				Prompt:  strings.Join(args, " "),
				Model:   model,
			})
			if err != nil {
				return err
			}

			if showEvents {
				events, err := app.recorder.Events(cmd.Context(), run.ID)
				if err != nil {
					return err
				}
				for _, ev := range events {
					printEvent(cmd, ev)
				}
			}

			if run.Status == models.RunStatusFailed {
				return fmt.Errorf("run failed: %s", run.Error)
			}
			fmt.Fprintln(cmd.OutOrStdout(), run.FinalText)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigName, "Path to configuration file")
	cmd.Flags().StringVar(&actorID, "actor", "cli", "Actor id to attribute the run to")
	cmd.Flags().StringVar(&model, "model", "", "Model override")
	cmd.Flags().BoolVar(&showEvents, "events", false, "Print the run's event trail before the result")

	return cmd
}

func printEvent(cmd *cobra.Command, ev *models.RunEvent) {
	out := cmd.ErrOrStderr()
	switch ev.Event.Type {
	case models.AgentEventToolStart:
		if ev.Event.ToolStart != nil {
			fmt.Fprintf(out, "[%d] tool %s started\n", ev.Seq, ev.Event.ToolStart.ToolName)
		}
	case models.AgentEventToolComplete:
		if ev.Event.ToolComplete != nil {
			fmt.Fprintf(out, "[%d] tool %s finished\n", ev.Seq, ev.Event.ToolComplete.ToolName)
		}
	case models.AgentEventMessage:
		fmt.Fprintf(out, "[%d] message\n", ev.Seq)
	default:
		fmt.Fprintf(out, "[%d] %s\n", ev.Seq, ev.Event.Type)
	}
}
