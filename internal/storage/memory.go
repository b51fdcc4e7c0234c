package storage

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/haasonsaas/conductor/pkg/models"
)

// MemoryConversationStore provides an in-memory ConversationStore.
type MemoryConversationStore struct {
	mu            sync.RWMutex
	conversations map[string]*models.Conversation
	messages      map[string][]*models.Message
}

// NewMemoryConversationStore creates an in-memory conversation store.
func NewMemoryConversationStore() *MemoryConversationStore {
	return &MemoryConversationStore{
		conversations: make(map[string]*models.Conversation),
		messages:      make(map[string][]*models.Message),
	}
}

func (s *MemoryConversationStore) CreateConversation(ctx context.Context, conv *models.Conversation) error {
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
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.conversations[conv.ID]; exists {
		return ErrAlreadyExists
	}
	s.conversations[conv.ID] = conv
	return nil
}

func (s *MemoryConversationStore) GetConversation(ctx context.Context, id string) (*models.Conversation, error) {
	if id == "" {
		return nil, ErrNotFound
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	conv, ok := s.conversations[id]
	if !ok {
		return nil, ErrNotFound
	}
	return conv, nil
}

func (s *MemoryConversationStore) ListConversations(ctx context.Context, actorID string, limit, offset int) ([]*models.Conversation, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Conversation, 0, len(s.conversations))
	for _, conv := range s.conversations {
		if actorID != "" && conv.ActorID != actorID {
			continue
		}
		out = append(out, conv)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return paginate(out, limit, offset), len(out), nil
}

func (s *MemoryConversationStore) DeleteConversation(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.conversations[id]; !exists {
		return ErrNotFound
	}
	delete(s.conversations, id)
	delete(s.messages, id)
	return nil
}

func (s *MemoryConversationStore) AppendMessage(ctx context.Context, msg *models.Message) error {
	if msg == nil || msg.ConversationID == "" {
		return fmt.Errorf("message with conversation id is required")
	}
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.conversations[msg.ConversationID]
	if !ok {
		return ErrNotFound
	}
	s.messages[msg.ConversationID] = append(s.messages[msg.ConversationID], msg)
	conv.UpdatedAt = msg.CreatedAt
	return nil
}

// ListMessages returns messages in append order. A positive limit
// returns only the most recent messages.
func (s *MemoryConversationStore) ListMessages(ctx context.Context, conversationID string, limit int) ([]*models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.conversations[conversationID]; !ok {
		return nil, ErrNotFound
	}
	msgs := s.messages[conversationID]
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	out := make([]*models.Message, len(msgs))
	copy(out, msgs)
	return out, nil
}

// MemoryMemoryStore provides an in-memory MemoryStore.
type MemoryMemoryStore struct {
	mu       sync.RWMutex
	memories map[string]*models.Memory
}

// NewMemoryMemoryStore creates an in-memory memory store.
func NewMemoryMemoryStore() *MemoryMemoryStore {
	return &MemoryMemoryStore{memories: make(map[string]*models.Memory)}
}

func (s *MemoryMemoryStore) Create(ctx context.Context, mem *models.Memory) error {
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
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.memories[mem.ID]; exists {
		return ErrAlreadyExists
	}
	s.memories[mem.ID] = mem
	return nil
}

func (s *MemoryMemoryStore) Get(ctx context.Context, id string) (*models.Memory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	mem, ok := s.memories[id]
	if !ok {
		return nil, ErrNotFound
	}
	return mem, nil
}

// Search matches memories by case-insensitive substring and optional
// tag, newest first.
func (s *MemoryMemoryStore) Search(ctx context.Context, actorID, query, tag string, limit int) ([]*models.Memory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	needle := strings.ToLower(query)
	var out []*models.Memory
	for _, mem := range s.memories {
		if actorID != "" && mem.ActorID != actorID {
			continue
		}
		if needle != "" && !strings.Contains(strings.ToLower(mem.Content), needle) {
			continue
		}
		if tag != "" && !hasTag(mem.Tags, tag) {
			continue
		}
		out = append(out, mem)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryMemoryStore) Update(ctx context.Context, mem *models.Memory) error {
	if mem == nil || mem.ID == "" {
		return fmt.Errorf("memory id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.memories[mem.ID]; !exists {
		return ErrNotFound
	}
	mem.UpdatedAt = time.Now()
	s.memories[mem.ID] = mem
	return nil
}

func (s *MemoryMemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.memories[id]; !exists {
		return ErrNotFound
	}
	delete(s.memories, id)
	return nil
}

func hasTag(tags []string, tag string) bool {
	for _, t := range tags {
		if strings.EqualFold(t, tag) {
			return true
		}
	}
	return false
}

// MemoryAssetStore provides an in-memory AssetStore.
type MemoryAssetStore struct {
	mu     sync.RWMutex
	assets map[string]*models.Asset
}

// NewMemoryAssetStore creates an in-memory asset store.
func NewMemoryAssetStore() *MemoryAssetStore {
	return &MemoryAssetStore{assets: make(map[string]*models.Asset)}
}

func (s *MemoryAssetStore) Create(ctx context.Context, asset *models.Asset) error {
	if asset == nil || asset.Name == "" {
		return fmt.Errorf("asset name is required")
	}
	if asset.ID == "" {
		asset.ID = uuid.NewString()
	}
	if asset.CreatedAt.IsZero() {
		asset.CreatedAt = time.Now()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.assets[asset.ID]; exists {
		return ErrAlreadyExists
	}
	s.assets[asset.ID] = asset
	return nil
}

func (s *MemoryAssetStore) Get(ctx context.Context, id string) (*models.Asset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	asset, ok := s.assets[id]
	if !ok {
		return nil, ErrNotFound
	}
	return asset, nil
}

func (s *MemoryAssetStore) List(ctx context.Context, actorID string, limit, offset int) ([]*models.Asset, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Asset, 0, len(s.assets))
	for _, asset := range s.assets {
		if actorID != "" && asset.ActorID != actorID {
			continue
		}
		out = append(out, asset)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return paginate(out, limit, offset), len(out), nil
}

func (s *MemoryAssetStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.assets[id]; !exists {
		return ErrNotFound
	}
	delete(s.assets, id)
	return nil
}

// MemoryRunStore provides an in-memory RunStore.
type MemoryRunStore struct {
	mu     sync.RWMutex
	runs   map[string]*models.AgentRun
	events map[string][]*models.RunEvent
}

// NewMemoryRunStore creates an in-memory run store.
func NewMemoryRunStore() *MemoryRunStore {
	return &MemoryRunStore{
		runs:   make(map[string]*models.AgentRun),
		events: make(map[string][]*models.RunEvent),
	}
}

func (s *MemoryRunStore) CreateRun(ctx context.Context, run *models.AgentRun) error {
	if run == nil {
		return fmt.Errorf("run is required")
	}
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.runs[run.ID]; exists {
		return ErrAlreadyExists
	}
	s.runs[run.ID] = run
	return nil
}

func (s *MemoryRunStore) GetRun(ctx context.Context, id string) (*models.AgentRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.runs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return run, nil
}

func (s *MemoryRunStore) UpdateRun(ctx context.Context, run *models.AgentRun) error {
	if run == nil || run.ID == "" {
		return fmt.Errorf("run id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.runs[run.ID]; !exists {
		return ErrNotFound
	}
	s.runs[run.ID] = run
	return nil
}

func (s *MemoryRunStore) ListRuns(ctx context.Context, actorID string, limit, offset int) ([]*models.AgentRun, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.AgentRun, 0, len(s.runs))
	for _, run := range s.runs {
		if actorID != "" && run.ActorID != actorID {
			continue
		}
		out = append(out, run)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return paginate(out, limit, offset), len(out), nil
}

func (s *MemoryRunStore) AppendEvent(ctx context.Context, event *models.RunEvent) error {
	if event == nil || event.RunID == "" {
		return fmt.Errorf("event with run id is required")
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.runs[event.RunID]; !ok {
		return ErrNotFound
	}
	event.Seq = len(s.events[event.RunID]) + 1
	s.events[event.RunID] = append(s.events[event.RunID], event)
	return nil
}

func (s *MemoryRunStore) ListEvents(ctx context.Context, runID string) ([]*models.RunEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.runs[runID]; !ok {
		return nil, ErrNotFound
	}
	events := s.events[runID]
	out := make([]*models.RunEvent, len(events))
	copy(out, events)
	return out, nil
}

func paginate[T any](items []*T, limit, offset int) []*T {
	if offset < 0 {
		offset = 0
	}
	if offset > len(items) {
		offset = len(items)
	}
	end := len(items)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return items[offset:end]
}
