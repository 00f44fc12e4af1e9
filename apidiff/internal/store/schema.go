package store

// Schema is the DDL for the apidiff tables. seq orders snapshots by
// insertion and drives the change watcher.
const Schema = `
CREATE TABLE IF NOT EXISTS snapshots (
    seq         INTEGER PRIMARY KEY AUTOINCREMENT,
    id          TEXT NOT NULL UNIQUE,
    label       TEXT NOT NULL DEFAULT '',
    captured_at INTEGER NOT NULL DEFAULT 0,
    created_at  INTEGER NOT NULL,
    source      TEXT NOT NULL DEFAULT '',
    hash        TEXT NOT NULL,
    endpoints   INTEGER NOT NULL DEFAULT 0,
    body        BLOB NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_snapshots_label ON snapshots(label, seq DESC);

CREATE TABLE IF NOT EXISTS runs (
    id         TEXT PRIMARY KEY,
    before_id  TEXT NOT NULL DEFAULT '',
    after_id   TEXT NOT NULL DEFAULT '',
    created_at INTEGER NOT NULL,
    worst      TEXT NOT NULL DEFAULT '',
    summary    TEXT NOT NULL DEFAULT '{}',
    body       BLOB NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at DESC);
`
