package storage

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/haasonsaas/conductor/pkg/models"
)

func TestMemoryConversationStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryConversationStore()

	conv := &models.Conversation{ActorID: "alice", Title: "trip planning"}
	if err := store.CreateConversation(ctx, conv); err != nil {
		t.Fatalf("create: %v", err)
	}
	if conv.ID == "" {
		t.Fatal("expected id to be assigned")
	}
	if conv.CreatedAt.IsZero() || !conv.UpdatedAt.Equal(conv.CreatedAt) {
		t.Fatalf("expected timestamps to be set, got created=%v updated=%v", conv.CreatedAt, conv.UpdatedAt)
	}

	if err := store.CreateConversation(ctx, &models.Conversation{ID: conv.ID}); !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}

	got, err := store.GetConversation(ctx, conv.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Title != "trip planning" {
		t.Fatalf("unexpected title %q", got.Title)
	}

	if err := store.DeleteConversation(ctx, conv.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.GetConversation(ctx, conv.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	if err := store.DeleteConversation(ctx, conv.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestMemoryConversationStoreAppendBumpsUpdatedAt(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryConversationStore()

	conv := &models.Conversation{ActorID: "alice"}
	if err := store.CreateConversation(ctx, conv); err != nil {
		t.Fatalf("create: %v", err)
	}

	later := conv.CreatedAt.Add(time.Minute)
	msg := &models.Message{
		ConversationID: conv.ID,
		Role:           models.RoleUser,
		Content:        "hello",
		CreatedAt:      later,
	}
	if err := store.AppendMessage(ctx, msg); err != nil {
		t.Fatalf("append: %v", err)
	}

	got, err := store.GetConversation(ctx, conv.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.UpdatedAt.Equal(later) {
		t.Fatalf("expected updated_at %v, got %v", later, got.UpdatedAt)
	}

	if err := store.AppendMessage(ctx, &models.Message{ConversationID: "missing", Role: models.RoleUser}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown conversation, got %v", err)
	}
}

func TestMemoryConversationStoreListMessagesTailLimit(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryConversationStore()

	conv := &models.Conversation{ActorID: "alice"}
	if err := store.CreateConversation(ctx, conv); err != nil {
		t.Fatalf("create: %v", err)
	}
	for i := 0; i < 5; i++ {
		msg := &models.Message{
			ConversationID: conv.ID,
			Role:           models.RoleUser,
			Content:        fmt.Sprintf("msg-%d", i),
		}
		if err := store.AppendMessage(ctx, msg); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}

	msgs, err := store.ListMessages(ctx, conv.ID, 2)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	if msgs[0].Content != "msg-3" || msgs[1].Content != "msg-4" {
		t.Fatalf("expected the two most recent messages, got %q %q", msgs[0].Content, msgs[1].Content)
	}

	all, err := store.ListMessages(ctx, conv.ID, 0)
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 5 {
		t.Fatalf("expected 5 messages, got %d", len(all))
	}
}

func TestMemoryConversationStoreListFiltersAndPaginates(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryConversationStore()

	base := time.Now()
	for i := 0; i < 4; i++ {
		actor := "alice"
		if i%2 == 1 {
			actor = "bob"
		}
		conv := &models.Conversation{
			ActorID:   actor,
			Title:     fmt.Sprintf("conv-%d", i),
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}
		if err := store.CreateConversation(ctx, conv); err != nil {
			t.Fatalf("create %d: %v", i, err)
		}
	}

	convs, total, err := store.ListConversations(ctx, "alice", 1, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 2 {
		t.Fatalf("expected total 2 for alice, got %d", total)
	}
	if len(convs) != 1 || convs[0].Title != "conv-2" {
		t.Fatalf("expected newest alice conversation first, got %+v", convs)
	}

	_, total, err = store.ListConversations(ctx, "", 0, 0)
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if total != 4 {
		t.Fatalf("expected total 4, got %d", total)
	}
}

func TestMemoryMemoryStoreSearch(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryMemoryStore()

	seed := []*models.Memory{
		{ActorID: "alice", Content: "Prefers window seats on flights", Tags: []string{"travel"}},
		{ActorID: "alice", Content: "Allergic to peanuts", Tags: []string{"health"}},
		{ActorID: "bob", Content: "Window office on the 4th floor", Tags: []string{"work"}},
	}
	for i, mem := range seed {
		if err := store.Create(ctx, mem); err != nil {
			t.Fatalf("create %d: %v", i, err)
		}
	}

	got, err := store.Search(ctx, "alice", "WINDOW", "", 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(got) != 1 || got[0].Content != "Prefers window seats on flights" {
		t.Fatalf("expected case-insensitive actor-scoped match, got %+v", got)
	}

	got, err = store.Search(ctx, "", "window", "", 10)
	if err != nil {
		t.Fatalf("search all actors: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 matches across actors, got %d", len(got))
	}

	got, err = store.Search(ctx, "alice", "", "Health", 10)
	if err != nil {
		t.Fatalf("search by tag: %v", err)
	}
	if len(got) != 1 || got[0].Content != "Allergic to peanuts" {
		t.Fatalf("expected tag match (case-insensitive), got %+v", got)
	}
}

func TestMemoryMemoryStoreUpdateAndDelete(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryMemoryStore()

	mem := &models.Memory{ActorID: "alice", Content: "original"}
	if err := store.Create(ctx, mem); err != nil {
		t.Fatalf("create: %v", err)
	}
	firstUpdated := mem.UpdatedAt

	mem.Content = "revised"
	if err := store.Update(ctx, mem); err != nil {
		t.Fatalf("update: %v", err)
	}
	if !mem.UpdatedAt.After(firstUpdated) && !mem.UpdatedAt.Equal(firstUpdated) {
		t.Fatalf("expected updated_at to advance, got %v then %v", firstUpdated, mem.UpdatedAt)
	}

	got, err := store.Get(ctx, mem.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Content != "revised" {
		t.Fatalf("expected revised content, got %q", got.Content)
	}

	if err := store.Update(ctx, &models.Memory{ID: "missing", Content: "x"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on update, got %v", err)
	}
	if err := store.Delete(ctx, mem.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := store.Delete(ctx, mem.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestMemoryAssetStoreList(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryAssetStore()

	base := time.Now()
	for i := 0; i < 3; i++ {
		asset := &models.Asset{
			ActorID:   "alice",
			Name:      fmt.Sprintf("report-%d.pdf", i),
			MimeType:  "application/pdf",
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}
		if err := store.Create(ctx, asset); err != nil {
			t.Fatalf("create %d: %v", i, err)
		}
	}

	assets, total, err := store.List(ctx, "alice", 2, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 3 || len(assets) != 2 {
		t.Fatalf("expected total 3 page 2, got total %d page %d", total, len(assets))
	}
	if assets[0].Name != "report-2.pdf" {
		t.Fatalf("expected newest asset first, got %q", assets[0].Name)
	}

	if err := store.Create(ctx, &models.Asset{ActorID: "alice"}); err == nil {
		t.Fatal("expected error for asset without a name")
	}
}

func TestMemoryRunStoreEventSequencing(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryRunStore()

	run := &models.AgentRun{ActorID: "alice", Prompt: "summarize inbox", Status: models.RunStatusPending}
	if err := store.CreateRun(ctx, run); err != nil {
		t.Fatalf("create run: %v", err)
	}

	for i := 0; i < 3; i++ {
		ev := &models.RunEvent{
			RunID: run.ID,
			Event: models.AgentEvent{Type: models.AgentEventThinking, Time: time.Now()},
		}
		if err := store.AppendEvent(ctx, ev); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
		if ev.Seq != i+1 {
			t.Fatalf("expected seq %d, got %d", i+1, ev.Seq)
		}
	}

	events, err := store.ListEvents(ctx, run.ID)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(events))
	}
	for i, ev := range events {
		if ev.Seq != i+1 {
			t.Fatalf("expected ordered seq at %d, got %d", i, ev.Seq)
		}
	}

	if err := store.AppendEvent(ctx, &models.RunEvent{RunID: "missing"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown run, got %v", err)
	}
}

func TestMemoryRunStoreUpdate(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryRunStore()

	run := &models.AgentRun{ActorID: "alice", Prompt: "plan week", Status: models.RunStatusPending}
	if err := store.CreateRun(ctx, run); err != nil {
		t.Fatalf("create: %v", err)
	}

	run.Status = models.RunStatusSucceeded
	run.FinalText = "done"
	run.FinishedAt = time.Now()
	if err := store.UpdateRun(ctx, run); err != nil {
		t.Fatalf("update: %v", err)
	}

	got, err := store.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != models.RunStatusSucceeded || got.FinalText != "done" {
		t.Fatalf("unexpected run after update: %+v", got)
	}

	if err := store.UpdateRun(ctx, &models.AgentRun{ID: "missing"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPaginateBounds(t *testing.T) {
	items := []*models.Asset{{Name: "a"}, {Name: "b"}, {Name: "c"}}

	if got := paginate(items, 0, 0); len(got) != 3 {
		t.Fatalf("expected all items with no limit, got %d", len(got))
	}
	if got := paginate(items, 2, 2); len(got) != 1 || got[0].Name != "c" {
		t.Fatalf("expected last page, got %+v", got)
	}
	if got := paginate(items, 2, 10); len(got) != 0 {
		t.Fatalf("expected empty page past the end, got %d", len(got))
	}
	if got := paginate(items, 2, -5); len(got) != 2 || got[0].Name != "a" {
		t.Fatalf("expected negative offset clamped to zero, got %+v", got)
	}
}
