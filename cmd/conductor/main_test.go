package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/haasonsaas/conductor/internal/workflow"
)

func TestRootCmdHasSubcommands(t *testing.T) {
	root := buildRootCmd()

	want := map[string]bool{"serve": false, "run": false, "workflows": false, "config": false}
	for _, cmd := range root.Commands() {
		name := strings.Fields(cmd.Use)[0]
		if _, ok := want[name]; ok {
			want[name] = true
		}
	}
	for name, seen := range want {
		if !seen {
			t.Errorf("subcommand %q not registered", name)
		}
	}
}

func TestBuiltinWorkflowsValidate(t *testing.T) {
	registry := workflow.NewRegistry()
	for _, g := range builtinWorkflows(nil) {
		if err := registry.Register(g); err != nil {
			t.Errorf("register %s: %v", g.ID, err)
		}
	}
	if _, ok := registry.Get("research"); !ok {
		t.Error("research workflow missing")
	}
}

func TestWorkflowsCmdListsResearch(t *testing.T) {
	root := buildRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs([]string{"workflows"})

	if err := root.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !strings.Contains(out.String(), "research") {
		t.Errorf("output = %q", out.String())
	}
}

func TestLoadConfigFallsBackToDefaults(t *testing.T) {
	// Run from a directory without a conductor.yaml.
	dir := t.TempDir()
	cwd, _ := os.Getwd()
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() { os.Chdir(cwd) })

	cfg, err := loadConfig(defaultConfigName)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.LLM.DefaultProvider == "" {
		t.Error("defaults not applied")
	}
}

func TestLoadConfigExplicitMissingPathErrors(t *testing.T) {
	if _, err := loadConfig(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing explicit config")
	}
}
