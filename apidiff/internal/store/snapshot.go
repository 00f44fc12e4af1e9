package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/hazyhaar/migverify/apidiff/snapshot"
	"github.com/hazyhaar/migverify/dbopen"
)

// SnapshotMeta describes a stored snapshot without its body.
type SnapshotMeta struct {
	Seq        int64  `json:"seq"`
	ID         string `json:"id"`
	Label      string `json:"label,omitempty"`
	CapturedAt int64  `json:"captured_at,omitempty"` // epoch milliseconds
	CreatedAt  int64  `json:"created_at"`
	Source     string `json:"source,omitempty"` // file path, "capture", "http"
	Hash       string `json:"hash"`
	Endpoints  int    `json:"endpoints"`
}

// SaveSnapshot stores s, assigning an ID when it has none. source records
// where the snapshot came from.
func (s *Store) SaveSnapshot(ctx context.Context, snap *snapshot.Snapshot, source string) (*SnapshotMeta, error) {
	if snap.ID == "" {
		snap.ID = s.newID()
	}
	body, err := snapshot.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("store: marshal snapshot: %w", err)
	}
	hash, err := snapshot.Hash(snap)
	if err != nil {
		return nil, err
	}
	m := &SnapshotMeta{
		ID:        snap.ID,
		Label:     snap.Label,
		CreatedAt: s.now().UnixMilli(),
		Source:    source,
		Hash:      hash,
		Endpoints: len(snap.Responses),
	}
	if !snap.CapturedAt.IsZero() {
		m.CapturedAt = snap.CapturedAt.UnixMilli()
	}

	res, err := dbopen.Exec(ctx, s.DB, `
		INSERT INTO snapshots (id, label, captured_at, created_at, source, hash, endpoints, body)
		VALUES (?,?,?,?,?,?,?,?)`,
		m.ID, m.Label, m.CapturedAt, m.CreatedAt, m.Source, m.Hash, m.Endpoints, body)
	if err != nil {
		return nil, fmt.Errorf("store: insert snapshot: %w", err)
	}
	m.Seq, _ = res.LastInsertId()
	return m, nil
}

// GetSnapshot loads a snapshot by ID.
func (s *Store) GetSnapshot(ctx context.Context, id string) (*snapshot.Snapshot, error) {
	var body []byte
	err := s.DB.QueryRowContext(ctx, `SELECT body FROM snapshots WHERE id = ?`, id).Scan(&body)
	return decodeSnapshot(id, body, err)
}

// LatestSnapshot loads the most recently stored snapshot with label.
func (s *Store) LatestSnapshot(ctx context.Context, label string) (*snapshot.Snapshot, error) {
	var body []byte
	err := s.DB.QueryRowContext(ctx, `
		SELECT body FROM snapshots WHERE label = ? ORDER BY seq DESC LIMIT 1`, label).Scan(&body)
	return decodeSnapshot("label "+label, body, err)
}

func decodeSnapshot(what string, body []byte, err error) (*snapshot.Snapshot, error) {
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: snapshot %s", ErrNotFound, what)
	}
	if err != nil {
		return nil, fmt.Errorf("store: get snapshot: %w", err)
	}
	snap, err := snapshot.Parse(body)
	if err != nil {
		return nil, fmt.Errorf("store: decode snapshot %s: %w", what, err)
	}
	return snap, nil
}

// ListSnapshots returns stored snapshots newest first. An empty label lists
// all of them; limit <= 0 means 100.
func (s *Store) ListSnapshots(ctx context.Context, label string, limit int) ([]SnapshotMeta, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT seq, id, label, captured_at, created_at, source, hash, endpoints FROM snapshots`
	args := []any{}
	if label != "" {
		query += ` WHERE label = ?`
		args = append(args, label)
	}
	query += ` ORDER BY seq DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: list snapshots: %w", err)
	}
	defer rows.Close()

	var out []SnapshotMeta
	for rows.Next() {
		var m SnapshotMeta
		if err := rows.Scan(&m.Seq, &m.ID, &m.Label, &m.CapturedAt, &m.CreatedAt, &m.Source, &m.Hash, &m.Endpoints); err != nil {
			return nil, fmt.Errorf("store: scan snapshot: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// CapturedTime converts CapturedAt back to a time, zero when unknown.
func (m SnapshotMeta) CapturedTime() time.Time {
	if m.CapturedAt == 0 {
		return time.Time{}
	}
	return time.UnixMilli(m.CapturedAt).UTC()
}
