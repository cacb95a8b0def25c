package db

import (
	"database/sql"
	"errors"
)

// ErrCorrupt marks cache rows that no longer decode.
var ErrCorrupt = errors.New("cache corrupt")

const schemaSQL = `
-- Conversation metadata as last seen
CREATE TABLE IF NOT EXISTS orya_conversations (
  id TEXT PRIMARY KEY,
  data TEXT NOT NULL,                  -- JSON types.Conversation
  next_cursor TEXT NOT NULL DEFAULT '',-- cursor of the next older page
  saved_at INTEGER NOT NULL            -- unix ms
);

-- Persisted messages of the newest cached window
CREATE TABLE IF NOT EXISTS orya_messages (
  guid TEXT PRIMARY KEY,
  conversation_id TEXT NOT NULL,
  ts INTEGER NOT NULL,                 -- created_at, unix ms
  seq INTEGER NOT NULL DEFAULT 0,
  data TEXT NOT NULL,                  -- JSON types.Message
  FOREIGN KEY (conversation_id) REFERENCES orya_conversations(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_orya_messages_conversation ON orya_messages(conversation_id, ts);

-- Viewer read watermark per conversation
CREATE TABLE IF NOT EXISTS orya_read_state (
  conversation_id TEXT PRIMARY KEY,
  last_read_message_id TEXT NOT NULL,
  read_at INTEGER NOT NULL
);
`

// DBTX represents shared methods across sql.DB and sql.Tx.
type DBTX interface {
	Exec(query string, args ...any) (sql.Result, error)
	Query(query string, args ...any) (*sql.Rows, error)
	QueryRow(query string, args ...any) *sql.Row
}

// InitSchema creates the cache tables if they do not exist.
func InitSchema(db *sql.DB) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	if _, err := tx.Exec(schemaSQL); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// SchemaExists reports whether the cache schema is present.
func SchemaExists(db DBTX) (bool, error) {
	row := db.QueryRow(`
		SELECT name FROM sqlite_master
		WHERE type='table' AND name='orya_conversations'
	`)
	var name string
	err := row.Scan(&name)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
