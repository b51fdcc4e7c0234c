package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/haasonsaas/conductor/internal/workflow"
)

// sqliteInstanceStore snapshots workflow instances as JSON blobs. The
// engine only hands it deep copies, so marshaling here never races a
// running walk.
type sqliteInstanceStore struct {
	db *sql.DB
}

func (s *sqliteInstanceStore) Put(inst *workflow.Instance) error {
	if inst == nil || inst.ID == "" {
		return fmt.Errorf("instance missing id")
	}
	snapshot, err := json.Marshal(inst)
	if err != nil {
		return fmt.Errorf("marshal instance: %w", err)
	}
	_, err = s.db.Exec(`
		INSERT INTO workflow_instances (id, workflow_id, status, snapshot, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET status = excluded.status, snapshot = excluded.snapshot, updated_at = excluded.updated_at`,
		inst.ID, inst.WorkflowID, string(inst.Status), snapshot, inst.CreatedAt, inst.UpdatedAt)
	if err != nil {
		return fmt.Errorf("put instance: %w", err)
	}
	return nil
}

func (s *sqliteInstanceStore) Get(id string) (*workflow.Instance, error) {
	var snapshot []byte
	err := s.db.QueryRow(`SELECT snapshot FROM workflow_instances WHERE id = ?`, id).Scan(&snapshot)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", workflow.ErrInstanceNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get instance: %w", err)
	}
	var inst workflow.Instance
	if err := json.Unmarshal(snapshot, &inst); err != nil {
		return nil, fmt.Errorf("unmarshal instance: %w", err)
	}
	return &inst, nil
}

func (s *sqliteInstanceStore) List() ([]*workflow.Instance, error) {
	rows, err := s.db.Query(`SELECT snapshot FROM workflow_instances ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list instances: %w", err)
	}
	defer rows.Close()

	var out []*workflow.Instance
	for rows.Next() {
		var snapshot []byte
		if err := rows.Scan(&snapshot); err != nil {
			return nil, fmt.Errorf("scan instance: %w", err)
		}
		var inst workflow.Instance
		if err := json.Unmarshal(snapshot, &inst); err != nil {
			return nil, fmt.Errorf("unmarshal instance: %w", err)
		}
		out = append(out, &inst)
	}
	return out, rows.Err()
}

func (s *sqliteInstanceStore) Delete(id string) error {
	res, err := s.db.Exec(`DELETE FROM workflow_instances WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete instance: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete instance: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", workflow.ErrInstanceNotFound, id)
	}
	return nil
}
