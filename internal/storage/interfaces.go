// Package storage persists conversations, memories, assets, and agent
// runs behind narrow store interfaces. The core treats these as
// external collaborators keyed by opaque ids; both an in-memory and a
// SQLite implementation are provided.
package storage

import (
	"context"
	"errors"

	"github.com/haasonsaas/conductor/internal/workflow"
	"github.com/haasonsaas/conductor/pkg/models"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
)

// ConversationStore persists conversations and their message history.
type ConversationStore interface {
	CreateConversation(ctx context.Context, conv *models.Conversation) error
	GetConversation(ctx context.Context, id string) (*models.Conversation, error)
	ListConversations(ctx context.Context, actorID string, limit, offset int) ([]*models.Conversation, int, error)
	DeleteConversation(ctx context.Context, id string) error

	AppendMessage(ctx context.Context, msg *models.Message) error
	ListMessages(ctx context.Context, conversationID string, limit int) ([]*models.Message, error)
}

// MemoryStore persists agent memories.
type MemoryStore interface {
	Create(ctx context.Context, mem *models.Memory) error
	Get(ctx context.Context, id string) (*models.Memory, error)
	Search(ctx context.Context, actorID, query, tag string, limit int) ([]*models.Memory, error)
	Update(ctx context.Context, mem *models.Memory) error
	Delete(ctx context.Context, id string) error
}

// AssetStore persists managed artifacts.
type AssetStore interface {
	Create(ctx context.Context, asset *models.Asset) error
	Get(ctx context.Context, id string) (*models.Asset, error)
	List(ctx context.Context, actorID string, limit, offset int) ([]*models.Asset, int, error)
	Delete(ctx context.Context, id string) error
}

// RunStore persists autonomous agent runs and their event trails.
type RunStore interface {
	CreateRun(ctx context.Context, run *models.AgentRun) error
	GetRun(ctx context.Context, id string) (*models.AgentRun, error)
	UpdateRun(ctx context.Context, run *models.AgentRun) error
	ListRuns(ctx context.Context, actorID string, limit, offset int) ([]*models.AgentRun, int, error)

	AppendEvent(ctx context.Context, event *models.RunEvent) error
	ListEvents(ctx context.Context, runID string) ([]*models.RunEvent, error)
}

// StoreSet groups storage dependencies.
type StoreSet struct {
	Conversations ConversationStore
	Memories      MemoryStore
	Assets        AssetStore
	Runs          RunStore

	// Instances snapshots workflow runs so a restart can report them.
	Instances workflow.InstanceStore

	closer func() error
}

// Close closes any underlying resources.
func (s StoreSet) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer()
}

// NewMemoryStoreSet wires the in-memory implementations.
func NewMemoryStoreSet() StoreSet {
	return StoreSet{
		Conversations: NewMemoryConversationStore(),
		Memories:      NewMemoryMemoryStore(),
		Assets:        NewMemoryAssetStore(),
		Runs:          NewMemoryRunStore(),
		Instances:     workflow.NewMemoryInstanceStore(),
	}
}
