package workflow

import (
	"fmt"
	"sort"
	"sync"
)

// InstanceStore durably snapshots workflow instances. The engine is
// the authoritative holder of live instances; the store only ever sees
// deep copies, written after every state mutation, so a store
// implementation can marshal or ship them without racing the engine.
type InstanceStore interface {
	Put(inst *Instance) error
	Get(id string) (*Instance, error)
	List() ([]*Instance, error)
	Delete(id string) error
}

// MemoryInstanceStore keeps snapshots in a map. Suitable for tests and
// single-process deployments.
type MemoryInstanceStore struct {
	mu        sync.RWMutex
	instances map[string]*Instance
}

func NewMemoryInstanceStore() *MemoryInstanceStore {
	return &MemoryInstanceStore{instances: make(map[string]*Instance)}
}

func (s *MemoryInstanceStore) Put(inst *Instance) error {
	if inst == nil || inst.ID == "" {
		return fmt.Errorf("instance missing id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.instances[inst.ID] = inst.Clone()
	return nil
}

func (s *MemoryInstanceStore) Get(id string) (*Instance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	inst, ok := s.instances[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrInstanceNotFound, id)
	}
	return inst.Clone(), nil
}

func (s *MemoryInstanceStore) List() ([]*Instance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Instance, 0, len(s.instances))
	for _, inst := range s.instances {
		out = append(out, inst.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryInstanceStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.instances[id]; !ok {
		return fmt.Errorf("%w: %s", ErrInstanceNotFound, id)
	}
	delete(s.instances, id)
	return nil
}
