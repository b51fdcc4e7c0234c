package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/haasonsaas/conductor/internal/steps"
	"github.com/haasonsaas/conductor/internal/workflow"
)

// builtinWorkflows are the graphs registered at boot. Each agent-backed
// step runs with a fresh context so only what the build function passes
// reaches the model.
func builtinWorkflows(exec *steps.Executor) []*workflow.Graph {
	return []*workflow.Graph{researchWorkflow(exec)}
}

// researchWorkflow drafts a summary on a topic, parks at a human
// review checkpoint, and finalizes after approval. An edit of the
// "text" field replaces the draft before finalization.
func researchWorkflow(exec *steps.Executor) *workflow.Graph {
	return &workflow.Graph{
		ID:    "research",
		Name:  "Research and Draft",
		Entry: "draft",
		Nodes: map[string]*workflow.Node{
			"draft": {
				ID:   "draft",
				Type: workflow.NodeExecute,
				Run: exec.StepFunc(func(wc *workflow.Context) *steps.Request {
					topic, _ := wc.Input["topic"].(string)
					return &steps.Request{
						System: "You are a research assistant. Produce a concise, well-sourced draft.",
						Prompt: fmt.Sprintf("Research the following topic and write a draft summary:\n\n%s", topic),
					}
				}),
				NextID: "review",
			},
			"review": {
				ID:   "review",
				Type: workflow.NodeCheckpoint,
				Checkpoint: &workflow.CheckpointConfig{
					Title:          "Review draft",
					Description:    "Approve, edit, or reject the drafted summary before it is finalized.",
					Actions:        []workflow.ResumeAction{workflow.ActionApprove, workflow.ActionEdit, workflow.ActionReject},
					EditableFields: []string{"text"},
				},
				NextID: "finalize",
			},
			"finalize": {
				ID:   "finalize",
				Type: workflow.NodeExecute,
				Run: exec.StepFunc(func(wc *workflow.Context) *steps.Request {
					draft, _ := wc.StepData["draft"]["text"].(string)
					if edits, ok := wc.UserEdits["review"]; ok {
						if edited, ok := edits["text"].(string); ok && edited != "" {
							draft = edited
						}
					}
					return &steps.Request{
						System: "You are an editor. Polish drafts without changing their meaning.",
						Prompt: fmt.Sprintf("Polish the following draft into a final summary:\n\n%s", draft),
					}
				}),
			},
		},
	}
}

func buildWorkflowsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "workflows",
		Short: "List registered workflows",
		RunE: func(cmd *cobra.Command, args []string) error {
			// The built-in set does not need a provider to describe.
			registry := workflow.NewRegistry()
			for _, g := range builtinWorkflows(nil) {
				if err := registry.Register(g); err != nil {
					return err
				}
			}
			for _, g := range registry.List() {
				desc, err := registry.Describe(g.ID)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t(entry: %s, nodes: %d)\n",
					desc.ID, desc.Name, desc.Entry, len(desc.Nodes))
			}
			return nil
		},
	}
}
