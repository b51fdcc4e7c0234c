package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/haasonsaas/conductor/pkg/models"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS conversations (
	id         TEXT PRIMARY KEY,
	actor_id   TEXT NOT NULL,
	title      TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_conversations_actor ON conversations(actor_id, updated_at);

CREATE TABLE IF NOT EXISTS messages (
	id              TEXT PRIMARY KEY,
	conversation_id TEXT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
	role            TEXT NOT NULL,
	content         TEXT NOT NULL DEFAULT '',
	tool_calls      TEXT,
	tool_results    TEXT,
	created_at      TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id, created_at);

CREATE TABLE IF NOT EXISTS memories (
	id         TEXT PRIMARY KEY,
	actor_id   TEXT NOT NULL,
	content    TEXT NOT NULL,
	tags       TEXT,
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_memories_actor ON memories(actor_id, updated_at);

CREATE TABLE IF NOT EXISTS assets (
	id         TEXT PRIMARY KEY,
	actor_id   TEXT NOT NULL,
	name       TEXT NOT NULL,
	mime_type  TEXT NOT NULL DEFAULT '',
	uri        TEXT NOT NULL DEFAULT '',
	data       BLOB,
	created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_assets_actor ON assets(actor_id, created_at);

CREATE TABLE IF NOT EXISTS agent_runs (
	id          TEXT PRIMARY KEY,
	actor_id    TEXT NOT NULL,
	prompt      TEXT NOT NULL,
	status      TEXT NOT NULL,
	final_text  TEXT NOT NULL DEFAULT '',
	tool_calls  TEXT,
	error       TEXT NOT NULL DEFAULT '',
	created_at  TIMESTAMP NOT NULL,
	started_at  TIMESTAMP,
	finished_at TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_agent_runs_actor ON agent_runs(actor_id, created_at);

CREATE TABLE IF NOT EXISTS run_events (
	id     TEXT PRIMARY KEY,
	run_id TEXT NOT NULL REFERENCES agent_runs(id) ON DELETE CASCADE,
	seq    INTEGER NOT NULL,
	event  TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_run_events_run ON run_events(run_id, seq);

CREATE TABLE IF NOT EXISTS workflow_instances (
	id          TEXT PRIMARY KEY,
	workflow_id TEXT NOT NULL,
	status      TEXT NOT NULL,
	snapshot    TEXT NOT NULL,
	created_at  TIMESTAMP NOT NULL,
	updated_at  TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_workflow_instances_wf ON workflow_instances(workflow_id, created_at);
`

// OpenSQLite opens (creating if necessary) a SQLite database at path
// and returns a ready StoreSet. The connection pool is capped at one
// writer, which is how SQLite wants to be used.
func OpenSQLite(path string) (StoreSet, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return StoreSet{}, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return StoreSet{}, fmt.Errorf("enable foreign keys: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return StoreSet{}, fmt.Errorf("migrate schema: %w", err)
	}
	return NewSQLiteStoreSet(db), nil
}

// NewSQLiteStoreSet wraps an existing database handle. The caller owns
// schema setup when using this directly (tests inject mock handles
// here).
func NewSQLiteStoreSet(db *sql.DB) StoreSet {
	return StoreSet{
		Conversations: &sqliteConversationStore{db: db},
		Memories:      &sqliteMemoryStore{db: db},
		Assets:        &sqliteAssetStore{db: db},
		Runs:          &sqliteRunStore{db: db},
		Instances:     &sqliteInstanceStore{db: db},
		closer:        db.Close,
	}
}

type sqliteConversationStore struct {
	db *sql.DB
}

func (s *sqliteConversationStore) CreateConversation(ctx context.Context, conv *models.Conversation) error {
	if conv == nil {
		return fmt.Errorf("conversation is required")
	}
	if conv.ID == "" {
		conv.ID = uuid.NewString()
	}
	if conv.CreatedAt.IsZero() {
		conv.CreatedAt = time.Now()
	}
	conv.UpdatedAt = conv.CreatedAt
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO conversations (id, actor_id, title, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		conv.ID, conv.ActorID, conv.Title, conv.CreatedAt, conv.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create conversation: %w", err)
	}
	return nil
}

func (s *sqliteConversationStore) GetConversation(ctx context.Context, id string) (*models.Conversation, error) {
	var conv models.Conversation
	err := s.db.QueryRowContext(ctx,
		`SELECT id, actor_id, title, created_at, updated_at FROM conversations WHERE id = ?`, id).
		Scan(&conv.ID, &conv.ActorID, &conv.Title, &conv.CreatedAt, &conv.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get conversation: %w", err)
	}
	return &conv, nil
}

func (s *sqliteConversationStore) ListConversations(ctx context.Context, actorID string, limit, offset int) ([]*models.Conversation, int, error) {
	var total int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM conversations WHERE (? = '' OR actor_id = ?)`, actorID, actorID).
		Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count conversations: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, actor_id, title, created_at, updated_at
		 FROM conversations WHERE (? = '' OR actor_id = ?)
		 ORDER BY updated_at DESC LIMIT ? OFFSET ?`,
		actorID, actorID, normalizeLimit(limit), max(offset, 0))
	if err != nil {
		return nil, 0, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	var out []*models.Conversation
	for rows.Next() {
		var conv models.Conversation
		if err := rows.Scan(&conv.ID, &conv.ActorID, &conv.Title, &conv.CreatedAt, &conv.UpdatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan conversation: %w", err)
		}
		out = append(out, &conv)
	}
	return out, total, rows.Err()
}

func (s *sqliteConversationStore) DeleteConversation(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM conversations WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete conversation: %w", err)
	}
	return requireAffected(res)
}

func (s *sqliteConversationStore) AppendMessage(ctx context.Context, msg *models.Message) error {
	if msg == nil || msg.ConversationID == "" {
		return fmt.Errorf("message with conversation id is required")
	}
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}

	toolCalls, err := marshalNullable(msg.ToolCalls)
	if err != nil {
		return fmt.Errorf("marshal tool calls: %w", err)
	}
	toolResults, err := marshalNullable(msg.ToolResults)
	if err != nil {
		return fmt.Errorf("marshal tool results: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO messages (id, conversation_id, role, content, tool_calls, tool_results, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		msg.ID, msg.ConversationID, string(msg.Role), msg.Content, toolCalls, toolResults, msg.CreatedAt); err != nil {
		return fmt.Errorf("append message: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE conversations SET updated_at = ? WHERE id = ?`,
		msg.CreatedAt, msg.ConversationID); err != nil {
		return fmt.Errorf("touch conversation: %w", err)
	}
	return tx.Commit()
}

func (s *sqliteConversationStore) ListMessages(ctx context.Context, conversationID string, limit int) ([]*models.Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, conversation_id, role, content, tool_calls, tool_results, created_at
		 FROM (
			SELECT * FROM messages WHERE conversation_id = ?
			ORDER BY created_at DESC, id DESC LIMIT ?
		 ) ORDER BY created_at ASC, id ASC`,
		conversationID, normalizeLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var out []*models.Message
	for rows.Next() {
		var msg models.Message
		var role string
		var toolCalls, toolResults sql.NullString
		if err := rows.Scan(&msg.ID, &msg.ConversationID, &role, &msg.Content, &toolCalls, &toolResults, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msg.Role = models.Role(role)
		if err := unmarshalNullable(toolCalls, &msg.ToolCalls); err != nil {
			return nil, fmt.Errorf("unmarshal tool calls: %w", err)
		}
		if err := unmarshalNullable(toolResults, &msg.ToolResults); err != nil {
			return nil, fmt.Errorf("unmarshal tool results: %w", err)
		}
		out = append(out, &msg)
	}
	return out, rows.Err()
}

type sqliteMemoryStore struct {
	db *sql.DB
}

func (s *sqliteMemoryStore) Create(ctx context.Context, mem *models.Memory) error {
	if mem == nil || mem.Content == "" {
		return fmt.Errorf("memory content is required")
	}
	if mem.ID == "" {
		mem.ID = uuid.NewString()
	}
	now := time.Now()
	if mem.CreatedAt.IsZero() {
		mem.CreatedAt = now
	}
	mem.UpdatedAt = now

	tags, err := marshalNullable(mem.Tags)
	if err != nil {
		return fmt.Errorf("marshal tags: %w", err)
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO memories (id, actor_id, content, tags, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		mem.ID, mem.ActorID, mem.Content, tags, mem.CreatedAt, mem.UpdatedAt); err != nil {
		return fmt.Errorf("create memory: %w", err)
	}
	return nil
}

func (s *sqliteMemoryStore) Get(ctx context.Context, id string) (*models.Memory, error) {
	var mem models.Memory
	var tags sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT id, actor_id, content, tags, created_at, updated_at FROM memories WHERE id = ?`, id).
		Scan(&mem.ID, &mem.ActorID, &mem.Content, &tags, &mem.CreatedAt, &mem.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get memory: %w", err)
	}
	if err := unmarshalNullable(tags, &mem.Tags); err != nil {
		return nil, fmt.Errorf("unmarshal tags: %w", err)
	}
	return &mem, nil
}

func (s *sqliteMemoryStore) Search(ctx context.Context, actorID, query, tag string, limit int) ([]*models.Memory, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, actor_id, content, tags, created_at, updated_at
		 FROM memories
		 WHERE (? = '' OR actor_id = ?)
		   AND (? = '' OR content LIKE '%' || ? || '%' COLLATE NOCASE)
		 ORDER BY updated_at DESC LIMIT ?`,
		actorID, actorID, query, query, normalizeLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("search memories: %w", err)
	}
	defer rows.Close()

	var out []*models.Memory
	for rows.Next() {
		var mem models.Memory
		var tags sql.NullString
		if err := rows.Scan(&mem.ID, &mem.ActorID, &mem.Content, &tags, &mem.CreatedAt, &mem.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan memory: %w", err)
		}
		if err := unmarshalNullable(tags, &mem.Tags); err != nil {
			return nil, fmt.Errorf("unmarshal tags: %w", err)
		}
		// Tag filtering happens here; tags live in a JSON column.
		if tag != "" && !hasTag(mem.Tags, tag) {
			continue
		}
		out = append(out, &mem)
	}
	return out, rows.Err()
}

func (s *sqliteMemoryStore) Update(ctx context.Context, mem *models.Memory) error {
	if mem == nil || mem.ID == "" {
		return fmt.Errorf("memory id is required")
	}
	mem.UpdatedAt = time.Now()
	tags, err := marshalNullable(mem.Tags)
	if err != nil {
		return fmt.Errorf("marshal tags: %w", err)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE memories SET content = ?, tags = ?, updated_at = ? WHERE id = ?`,
		mem.Content, tags, mem.UpdatedAt, mem.ID)
	if err != nil {
		return fmt.Errorf("update memory: %w", err)
	}
	return requireAffected(res)
}

func (s *sqliteMemoryStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM memories WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete memory: %w", err)
	}
	return requireAffected(res)
}

type sqliteAssetStore struct {
	db *sql.DB
}

func (s *sqliteAssetStore) Create(ctx context.Context, asset *models.Asset) error {
	if asset == nil || asset.Name == "" {
		return fmt.Errorf("asset name is required")
	}
	if asset.ID == "" {
		asset.ID = uuid.NewString()
	}
	if asset.CreatedAt.IsZero() {
		asset.CreatedAt = time.Now()
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO assets (id, actor_id, name, mime_type, uri, data, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		asset.ID, asset.ActorID, asset.Name, asset.MimeType, asset.URI, asset.Data, asset.CreatedAt); err != nil {
		return fmt.Errorf("create asset: %w", err)
	}
	return nil
}

func (s *sqliteAssetStore) Get(ctx context.Context, id string) (*models.Asset, error) {
	var asset models.Asset
	err := s.db.QueryRowContext(ctx,
		`SELECT id, actor_id, name, mime_type, uri, data, created_at FROM assets WHERE id = ?`, id).
		Scan(&asset.ID, &asset.ActorID, &asset.Name, &asset.MimeType, &asset.URI, &asset.Data, &asset.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get asset: %w", err)
	}
	return &asset, nil
}

func (s *sqliteAssetStore) List(ctx context.Context, actorID string, limit, offset int) ([]*models.Asset, int, error) {
	var total int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM assets WHERE (? = '' OR actor_id = ?)`, actorID, actorID).
		Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count assets: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, actor_id, name, mime_type, uri, data, created_at
		 FROM assets WHERE (? = '' OR actor_id = ?)
		 ORDER BY created_at DESC LIMIT ? OFFSET ?`,
		actorID, actorID, normalizeLimit(limit), max(offset, 0))
	if err != nil {
		return nil, 0, fmt.Errorf("list assets: %w", err)
	}
	defer rows.Close()

	var out []*models.Asset
	for rows.Next() {
		var asset models.Asset
		if err := rows.Scan(&asset.ID, &asset.ActorID, &asset.Name, &asset.MimeType, &asset.URI, &asset.Data, &asset.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan asset: %w", err)
		}
		out = append(out, &asset)
	}
	return out, total, rows.Err()
}

func (s *sqliteAssetStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM assets WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete asset: %w", err)
	}
	return requireAffected(res)
}

type sqliteRunStore struct {
	db *sql.DB
}

func (s *sqliteRunStore) CreateRun(ctx context.Context, run *models.AgentRun) error {
	if run == nil {
		return fmt.Errorf("run is required")
	}
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now()
	}
	toolCalls, err := marshalNullable(run.ToolCalls)
	if err != nil {
		return fmt.Errorf("marshal tool calls: %w", err)
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO agent_runs (id, actor_id, prompt, status, final_text, tool_calls, error, created_at, started_at, finished_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.ActorID, run.Prompt, string(run.Status), run.FinalText, toolCalls, run.Error,
		run.CreatedAt, nullableTime(run.StartedAt), nullableTime(run.FinishedAt)); err != nil {
		return fmt.Errorf("create run: %w", err)
	}
	return nil
}

func (s *sqliteRunStore) GetRun(ctx context.Context, id string) (*models.AgentRun, error) {
	var run models.AgentRun
	var status string
	var toolCalls sql.NullString
	var startedAt, finishedAt sql.NullTime
	err := s.db.QueryRowContext(ctx,
		`SELECT id, actor_id, prompt, status, final_text, tool_calls, error, created_at, started_at, finished_at
		 FROM agent_runs WHERE id = ?`, id).
		Scan(&run.ID, &run.ActorID, &run.Prompt, &status, &run.FinalText, &toolCalls, &run.Error,
			&run.CreatedAt, &startedAt, &finishedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	run.Status = models.RunStatus(status)
	if err := unmarshalNullable(toolCalls, &run.ToolCalls); err != nil {
		return nil, fmt.Errorf("unmarshal tool calls: %w", err)
	}
	if startedAt.Valid {
		run.StartedAt = startedAt.Time
	}
	if finishedAt.Valid {
		run.FinishedAt = finishedAt.Time
	}
	return &run, nil
}

func (s *sqliteRunStore) UpdateRun(ctx context.Context, run *models.AgentRun) error {
	if run == nil || run.ID == "" {
		return fmt.Errorf("run id is required")
	}
	toolCalls, err := marshalNullable(run.ToolCalls)
	if err != nil {
		return fmt.Errorf("marshal tool calls: %w", err)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE agent_runs SET status = ?, final_text = ?, tool_calls = ?, error = ?, started_at = ?, finished_at = ?
		 WHERE id = ?`,
		string(run.Status), run.FinalText, toolCalls, run.Error,
		nullableTime(run.StartedAt), nullableTime(run.FinishedAt), run.ID)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	return requireAffected(res)
}

func (s *sqliteRunStore) ListRuns(ctx context.Context, actorID string, limit, offset int) ([]*models.AgentRun, int, error) {
	var total int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM agent_runs WHERE (? = '' OR actor_id = ?)`, actorID, actorID).
		Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count runs: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, actor_id, prompt, status, final_text, tool_calls, error, created_at, started_at, finished_at
		 FROM agent_runs WHERE (? = '' OR actor_id = ?)
		 ORDER BY created_at DESC LIMIT ? OFFSET ?`,
		actorID, actorID, normalizeLimit(limit), max(offset, 0))
	if err != nil {
		return nil, 0, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []*models.AgentRun
	for rows.Next() {
		var run models.AgentRun
		var status string
		var toolCalls sql.NullString
		var startedAt, finishedAt sql.NullTime
		if err := rows.Scan(&run.ID, &run.ActorID, &run.Prompt, &status, &run.FinalText, &toolCalls, &run.Error,
			&run.CreatedAt, &startedAt, &finishedAt); err != nil {
			return nil, 0, fmt.Errorf("scan run: %w", err)
		}
		run.Status = models.RunStatus(status)
		if err := unmarshalNullable(toolCalls, &run.ToolCalls); err != nil {
			return nil, 0, fmt.Errorf("unmarshal tool calls: %w", err)
		}
		if startedAt.Valid {
			run.StartedAt = startedAt.Time
		}
		if finishedAt.Valid {
			run.FinishedAt = finishedAt.Time
		}
		out = append(out, &run)
	}
	return out, total, rows.Err()
}

func (s *sqliteRunStore) AppendEvent(ctx context.Context, event *models.RunEvent) error {
	if event == nil || event.RunID == "" {
		return fmt.Errorf("event with run id is required")
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	payload, err := json.Marshal(event.Event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(seq), 0) + 1 FROM run_events WHERE run_id = ?`, event.RunID).
		Scan(&event.Seq); err != nil {
		return fmt.Errorf("next seq: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO run_events (id, run_id, seq, event) VALUES (?, ?, ?, ?)`,
		event.ID, event.RunID, event.Seq, string(payload)); err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	return tx.Commit()
}

func (s *sqliteRunStore) ListEvents(ctx context.Context, runID string) ([]*models.RunEvent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, run_id, seq, event FROM run_events WHERE run_id = ? ORDER BY seq ASC`, runID)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var out []*models.RunEvent
	for rows.Next() {
		var ev models.RunEvent
		var payload string
		if err := rows.Scan(&ev.ID, &ev.RunID, &ev.Seq, &payload); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		if err := json.Unmarshal([]byte(payload), &ev.Event); err != nil {
			return nil, fmt.Errorf("unmarshal event: %w", err)
		}
		out = append(out, &ev)
	}
	return out, rows.Err()
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func marshalNullable(v any) (sql.NullString, error) {
	switch val := v.(type) {
	case nil:
		return sql.NullString{}, nil
	case []string:
		if len(val) == 0 {
			return sql.NullString{}, nil
		}
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, err
	}
	s := string(raw)
	if s == "null" || s == "[]" {
		return sql.NullString{}, nil
	}
	return sql.NullString{String: s, Valid: true}, nil
}

func unmarshalNullable(src sql.NullString, dst any) error {
	if !src.Valid || src.String == "" {
		return nil
	}
	return json.Unmarshal([]byte(src.String), dst)
}

func nullableTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t, Valid: true}
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return 100
	}
	return limit
}
