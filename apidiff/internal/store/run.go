package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hazyhaar/migverify/apidiff/diffrec"
	"github.com/hazyhaar/migverify/dbopen"
)

// RunMeta describes a stored run without its per-endpoint results.
type RunMeta struct {
	ID        string           `json:"id"`
	BeforeID  string           `json:"before_id,omitempty"`
	AfterID   string           `json:"after_id,omitempty"`
	CreatedAt int64            `json:"created_at"`
	Worst     diffrec.Severity `json:"worst,omitempty"`
	Summary   diffrec.Summary  `json:"summary"`
}

// SaveRun stores a run. Saving the same ID twice replaces it.
func (s *Store) SaveRun(ctx context.Context, run *diffrec.Run) error {
	body, err := diffrec.MarshalRun(run)
	if err != nil {
		return fmt.Errorf("store: marshal run: %w", err)
	}
	summary, err := json.Marshal(run.Summary)
	if err != nil {
		return fmt.Errorf("store: marshal summary: %w", err)
	}
	_, err = dbopen.Exec(ctx, s.DB, `
		INSERT OR REPLACE INTO runs (id, before_id, after_id, created_at, worst, summary, body)
		VALUES (?,?,?,?,?,?,?)`,
		run.ID, run.BeforeID, run.AfterID, run.CreatedAt, string(run.Summary.Worst()), string(summary), body)
	if err != nil {
		return fmt.Errorf("store: insert run: %w", err)
	}
	return nil
}

// GetRun loads a full run by ID.
func (s *Store) GetRun(ctx context.Context, id string) (*diffrec.Run, error) {
	var body []byte
	err := s.DB.QueryRowContext(ctx, `SELECT body FROM runs WHERE id = ?`, id).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: run %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("store: get run: %w", err)
	}
	run, err := diffrec.UnmarshalRun(body)
	if err != nil {
		return nil, fmt.Errorf("store: decode run %s: %w", id, err)
	}
	return run, nil
}

// ListRuns returns run summaries newest first; limit <= 0 means 100.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]RunMeta, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.DB.QueryContext(ctx, `
		SELECT id, before_id, after_id, created_at, worst, summary
		FROM runs ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("store: list runs: %w", err)
	}
	defer rows.Close()

	var out []RunMeta
	for rows.Next() {
		var m RunMeta
		var worst, summary string
		if err := rows.Scan(&m.ID, &m.BeforeID, &m.AfterID, &m.CreatedAt, &worst, &summary); err != nil {
			return nil, fmt.Errorf("store: scan run: %w", err)
		}
		m.Worst = diffrec.Severity(worst)
		if err := json.Unmarshal([]byte(summary), &m.Summary); err != nil {
			return nil, fmt.Errorf("store: decode summary %s: %w", m.ID, err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
