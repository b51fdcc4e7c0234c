package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/haasonsaas/conductor/pkg/models"
)

func newMockStoreSet(t *testing.T) (StoreSet, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	set := NewSQLiteStoreSet(db)
	t.Cleanup(func() {
		mock.ExpectClose()
		set.Close()
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
	})
	return set, mock
}

func TestSQLiteGetConversationNotFound(t *testing.T) {
	set, mock := newMockStoreSet(t)

	mock.ExpectQuery("SELECT id, actor_id, title").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"id", "actor_id", "title", "created_at", "updated_at"}))

	_, err := set.Conversations.GetConversation(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSQLiteCreateConversationExecError(t *testing.T) {
	set, mock := newMockStoreSet(t)

	mock.ExpectExec("INSERT INTO conversations").
		WillReturnError(errors.New("disk I/O error"))

	err := set.Conversations.CreateConversation(context.Background(), &models.Conversation{ActorID: "alice"})
	if err == nil {
		t.Fatal("expected wrapped exec error")
	}
	if got := err.Error(); got != "create conversation: disk I/O error" {
		t.Fatalf("unexpected error %q", got)
	}
}

func TestSQLiteAppendMessageRollsBackOnTouchFailure(t *testing.T) {
	set, mock := newMockStoreSet(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO messages").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE conversations SET updated_at").
		WillReturnError(errors.New("database is locked"))
	mock.ExpectRollback()

	msg := &models.Message{ConversationID: "c1", Role: models.RoleUser, Content: "hi"}
	err := set.Conversations.AppendMessage(context.Background(), msg)
	if err == nil {
		t.Fatal("expected error when conversation touch fails")
	}
}

func TestSQLiteAppendMessageCommits(t *testing.T) {
	set, mock := newMockStoreSet(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO messages").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE conversations SET updated_at").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	msg := &models.Message{
		ConversationID: "c1",
		Role:           models.RoleAssistant,
		Content:        "sure",
		ToolCalls:      []models.ToolCall{{ID: "tc1", Name: "websearch"}},
	}
	if err := set.Conversations.AppendMessage(context.Background(), msg); err != nil {
		t.Fatalf("append: %v", err)
	}
	if msg.ID == "" || msg.CreatedAt.IsZero() {
		t.Fatal("expected id and timestamp to be filled")
	}
}

func TestSQLiteListMessagesRestoresToolPayloads(t *testing.T) {
	set, mock := newMockStoreSet(t)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "conversation_id", "role", "content", "tool_calls", "tool_results", "created_at"}).
		AddRow("m1", "c1", "assistant", "", `[{"id":"tc1","name":"websearch"}]`, nil, now).
		AddRow("m2", "c1", "tool", "", nil, `[{"tool_call_id":"tc1","content":"results"}]`, now.Add(time.Second))
	mock.ExpectQuery("SELECT id, conversation_id, role").
		WithArgs("c1", 100).
		WillReturnRows(rows)

	msgs, err := set.Conversations.ListMessages(context.Background(), "c1", 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	if len(msgs[0].ToolCalls) != 1 || msgs[0].ToolCalls[0].Name != "websearch" {
		t.Fatalf("expected tool call restored, got %+v", msgs[0].ToolCalls)
	}
	if len(msgs[1].ToolResults) != 1 || msgs[1].ToolResults[0].ToolCallID != "tc1" {
		t.Fatalf("expected tool result restored, got %+v", msgs[1].ToolResults)
	}
}

func TestSQLiteMemoryDeleteNotFound(t *testing.T) {
	set, mock := newMockStoreSet(t)

	mock.ExpectExec("DELETE FROM memories").
		WithArgs("missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := set.Memories.Delete(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSQLiteMemorySearchFiltersTagAfterScan(t *testing.T) {
	set, mock := newMockStoreSet(t)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "actor_id", "content", "tags", "created_at", "updated_at"}).
		AddRow("m1", "alice", "likes window seats", `["travel"]`, now, now).
		AddRow("m2", "alice", "window office", `["work"]`, now, now)
	mock.ExpectQuery("SELECT id, actor_id, content").
		WillReturnRows(rows)

	got, err := set.Memories.Search(context.Background(), "alice", "window", "travel", 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(got) != 1 || got[0].ID != "m1" {
		t.Fatalf("expected only the travel-tagged memory, got %+v", got)
	}
}

func TestSQLiteUpdateRunNotFound(t *testing.T) {
	set, mock := newMockStoreSet(t)

	mock.ExpectExec("UPDATE agent_runs").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := set.Runs.UpdateRun(context.Background(), &models.AgentRun{ID: "missing", Status: models.RunStatusFailed})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSQLiteAppendEventAssignsNextSeq(t *testing.T) {
	set, mock := newMockStoreSet(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT COALESCE\(MAX\(seq\), 0\)`).
		WithArgs("r1").
		WillReturnRows(sqlmock.NewRows([]string{"seq"}).AddRow(4))
	mock.ExpectExec("INSERT INTO run_events").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	ev := &models.RunEvent{
		RunID: "r1",
		Event: models.AgentEvent{Type: models.AgentEventMessage, Time: time.Now()},
	}
	if err := set.Runs.AppendEvent(context.Background(), ev); err != nil {
		t.Fatalf("append: %v", err)
	}
	if ev.Seq != 4 {
		t.Fatalf("expected seq 4, got %d", ev.Seq)
	}
}

func TestSQLiteAppendEventRollsBackOnInsertFailure(t *testing.T) {
	set, mock := newMockStoreSet(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT COALESCE\(MAX\(seq\), 0\)`).
		WithArgs("r1").
		WillReturnRows(sqlmock.NewRows([]string{"seq"}).AddRow(1))
	mock.ExpectExec("INSERT INTO run_events").
		WillReturnError(errors.New("constraint failed"))
	mock.ExpectRollback()

	ev := &models.RunEvent{RunID: "r1", Event: models.AgentEvent{Type: models.AgentEventError}}
	if err := set.Runs.AppendEvent(context.Background(), ev); err == nil {
		t.Fatal("expected insert failure to surface")
	}
}

func TestSQLiteListRunsScansNullableTimes(t *testing.T) {
	set, mock := newMockStoreSet(t)

	now := time.Now()
	mock.ExpectQuery("SELECT COUNT").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	rows := sqlmock.NewRows([]string{"id", "actor_id", "prompt", "status", "final_text", "tool_calls", "error", "created_at", "started_at", "finished_at"}).
		AddRow("r1", "alice", "summarize", "pending", "", nil, "", now, nil, nil)
	mock.ExpectQuery("SELECT id, actor_id, prompt").
		WillReturnRows(rows)

	runs, total, err := set.Runs.ListRuns(context.Background(), "alice", 10, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 1 || len(runs) != 1 {
		t.Fatalf("expected one run, got total %d len %d", total, len(runs))
	}
	if !runs[0].StartedAt.IsZero() || !runs[0].FinishedAt.IsZero() {
		t.Fatalf("expected zero times for NULL columns, got %+v", runs[0])
	}
}

func TestMarshalNullable(t *testing.T) {
	if v, err := marshalNullable(nil); err != nil || v.Valid {
		t.Fatalf("expected NULL for nil, got %+v err %v", v, err)
	}
	if v, err := marshalNullable([]string{}); err != nil || v.Valid {
		t.Fatalf("expected NULL for empty slice, got %+v err %v", v, err)
	}
	v, err := marshalNullable([]string{"a", "b"})
	if err != nil || !v.Valid || v.String != `["a","b"]` {
		t.Fatalf("expected JSON array, got %+v err %v", v, err)
	}
	var emptyCalls []models.ToolCall
	if v, err := marshalNullable(emptyCalls); err != nil || v.Valid {
		t.Fatalf("expected NULL for nil tool calls, got %+v err %v", v, err)
	}
}
