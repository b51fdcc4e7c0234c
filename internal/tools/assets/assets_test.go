package assets

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/haasonsaas/conductor/internal/agent"
	"github.com/haasonsaas/conductor/internal/storage"
)

func exec(t *testing.T, tool *Tool, params string, actorID string) *agent.ToolResult {
	t.Helper()
	res, err := tool.Execute(context.Background(), json.RawMessage(params), &agent.ExecContext{ActorID: actorID})
	if err != nil {
		t.Fatalf("execute returned raw error: %v", err)
	}
	return res
}

func TestSaveGetDeleteRoundTrip(t *testing.T) {
	tool := New(storage.NewMemoryAssetStore())

	res := exec(t, tool, `{"action":"save","name":"notes.md","content":"# Meeting notes","mime_type":"text/markdown"}`, "alice")
	if res.IsError {
		t.Fatalf("save failed: %s", res.Content)
	}
	id, _ := res.Data["asset_id"].(string)
	if id == "" {
		t.Fatal("expected asset_id in result data")
	}

	res = exec(t, tool, `{"action":"get","id":"`+id+`"}`, "alice")
	if res.IsError || !strings.Contains(res.Content, "# Meeting notes") {
		t.Fatalf("unexpected get result: %+v", res)
	}
	if !strings.Contains(res.Content, "text/markdown") {
		t.Fatalf("expected mime type in content, got %q", res.Content)
	}

	res = exec(t, tool, `{"action":"delete","id":"`+id+`"}`, "alice")
	if res.IsError {
		t.Fatalf("delete failed: %s", res.Content)
	}
	res = exec(t, tool, `{"action":"get","id":"`+id+`"}`, "alice")
	if !res.IsError {
		t.Fatal("expected error getting a deleted asset")
	}
}

func TestListScopesToActor(t *testing.T) {
	store := storage.NewMemoryAssetStore()
	tool := New(store)

	exec(t, tool, `{"action":"save","name":"a.txt","content":"a"}`, "alice")
	exec(t, tool, `{"action":"save","name":"b.txt","content":"b"}`, "bob")

	res := exec(t, tool, `{"action":"list"}`, "alice")
	if res.IsError || !strings.Contains(res.Content, "a.txt") || strings.Contains(res.Content, "b.txt") {
		t.Fatalf("expected only alice's assets, got %+v", res)
	}
	if res.Data["total"] != 1 {
		t.Fatalf("expected total 1, got %+v", res.Data)
	}
}

func TestListEmpty(t *testing.T) {
	tool := New(storage.NewMemoryAssetStore())
	res := exec(t, tool, `{"action":"list"}`, "alice")
	if res.IsError || res.Content != "No assets stored." {
		t.Fatalf("unexpected empty listing %+v", res)
	}
}

func TestSaveValidation(t *testing.T) {
	tool := New(storage.NewMemoryAssetStore())

	cases := []struct {
		name   string
		params string
	}{
		{"missing name", `{"action":"save","content":"x"}`},
		{"missing content", `{"action":"save","name":"x.txt"}`},
		{"oversized content", `{"action":"save","name":"x.txt","content":"` + strings.Repeat("a", maxInlineBytes+1) + `"}`},
		{"unknown action", `{"action":"upload"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res, err := tool.Execute(context.Background(), json.RawMessage(tc.params), nil)
			if err != nil {
				t.Fatalf("expected error result, got raw error %v", err)
			}
			if !res.IsError {
				t.Fatalf("expected IsError, got %+v", res)
			}
		})
	}
}
