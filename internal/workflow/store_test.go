package workflow

import (
	"errors"
	"testing"
	"time"
)

func TestMemoryInstanceStoreClones(t *testing.T) {
	s := NewMemoryInstanceStore()

	inst := &Instance{
		ID:         "i1",
		WorkflowID: "w1",
		Status:     StatusRunning,
		Context:    NewContext(map[string]any{"k": "v"}, "a"),
		CreatedAt:  time.Now(),
	}
	if err := s.Put(inst); err != nil {
		t.Fatalf("put: %v", err)
	}

	// Mutating the original must not leak into the stored snapshot.
	inst.Status = StatusFailed
	inst.Context.Variables["dirty"] = true

	got, err := s.Get("i1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != StatusRunning {
		t.Errorf("stored status = %s, want running", got.Status)
	}
	if _, ok := got.Context.Variables["dirty"]; ok {
		t.Error("stored snapshot aliases live context")
	}
}

func TestMemoryInstanceStoreMissing(t *testing.T) {
	s := NewMemoryInstanceStore()
	if _, err := s.Get("nope"); !errors.Is(err, ErrInstanceNotFound) {
		t.Errorf("get = %v, want ErrInstanceNotFound", err)
	}
	if err := s.Delete("nope"); !errors.Is(err, ErrInstanceNotFound) {
		t.Errorf("delete = %v, want ErrInstanceNotFound", err)
	}
	if err := s.Put(&Instance{}); err == nil {
		t.Error("put without id accepted")
	}
}

func TestMemoryInstanceStoreListOrdered(t *testing.T) {
	s := NewMemoryInstanceStore()
	base := time.Now()
	for i, id := range []string{"c", "a", "b"} {
		s.Put(&Instance{ID: id, CreatedAt: base.Add(time.Duration(i) * time.Second)})
	}
	got, err := s.List()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 3 || got[0].ID != "c" || got[2].ID != "b" {
		t.Errorf("list order = %v, want creation order", got)
	}
}
