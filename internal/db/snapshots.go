package db

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nuno7lopes-collab/ORYA-WebApp-sub012/internal/types"
)

// Snapshot is the cached state of one conversation.
type Snapshot struct {
	Conversation types.Conversation
	Messages     []types.Message
	NextCursor   string
	SavedAt      time.Time
}

// Page returns the snapshot in the shape of a newest-page history response.
func (s Snapshot) Page() types.Page {
	return types.Page{
		Items:      s.Messages,
		Members:    s.Conversation.Members,
		NextCursor: s.NextCursor,
	}
}

// SaveSnapshot replaces the cached state of a conversation. Messages that
// never reached the server are not cached.
func SaveSnapshot(db *sql.DB, snap Snapshot) error {
	if snap.Conversation.ID == "" {
		return fmt.Errorf("snapshot without conversation id")
	}
	persisted := make([]types.Message, 0, len(snap.Messages))
	for _, msg := range snap.Messages {
		if msg.Provisional || msg.Status.Pending() {
			continue
		}
		persisted = append(persisted, msg)
	}

	conversation, err := json.Marshal(snap.Conversation)
	if err != nil {
		return err
	}
	savedAt := snap.SavedAt
	if savedAt.IsZero() {
		savedAt = time.Now()
	}

	tx, err := db.Begin()
	if err != nil {
		return err
	}
	if err := saveSnapshotWith(tx, snap.Conversation.ID, string(conversation), snap.NextCursor, savedAt, persisted); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func saveSnapshotWith(db DBTX, conversationID, conversation, nextCursor string, savedAt time.Time, messages []types.Message) error {
	if _, err := db.Exec(`
		INSERT OR REPLACE INTO orya_conversations (id, data, next_cursor, saved_at)
		VALUES (?, ?, ?, ?)
	`, conversationID, conversation, nextCursor, savedAt.UnixMilli()); err != nil {
		return err
	}
	if _, err := db.Exec(`DELETE FROM orya_messages WHERE conversation_id = ?`, conversationID); err != nil {
		return err
	}
	for _, msg := range messages {
		data, err := json.Marshal(msg)
		if err != nil {
			return err
		}
		if _, err := db.Exec(`
			INSERT OR REPLACE INTO orya_messages (guid, conversation_id, ts, seq, data)
			VALUES (?, ?, ?, ?, ?)
		`, msg.ID, conversationID, msg.CreatedAt.UnixMilli(), msg.Seq, string(data)); err != nil {
			return err
		}
	}
	return nil
}

// LoadSnapshot returns the cached state of a conversation, oldest message first.
func LoadSnapshot(db DBTX, conversationID string) (Snapshot, bool, error) {
	row := db.QueryRow(`
		SELECT data, next_cursor, saved_at FROM orya_conversations WHERE id = ?
	`, conversationID)
	var (
		data    string
		snap    Snapshot
		savedAt int64
	)
	if err := row.Scan(&data, &snap.NextCursor, &savedAt); err != nil {
		if err == sql.ErrNoRows {
			return Snapshot{}, false, nil
		}
		return Snapshot{}, false, err
	}
	if err := json.Unmarshal([]byte(data), &snap.Conversation); err != nil {
		return Snapshot{}, false, fmt.Errorf("decode conversation %s: %w: %w", conversationID, ErrCorrupt, err)
	}
	snap.SavedAt = time.UnixMilli(savedAt)

	rows, err := db.Query(`
		SELECT data FROM orya_messages
		WHERE conversation_id = ?
		ORDER BY ts ASC, seq ASC, guid ASC
	`, conversationID)
	if err != nil {
		return Snapshot{}, false, err
	}
	defer rows.Close()
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return Snapshot{}, false, err
		}
		var msg types.Message
		if err := json.Unmarshal([]byte(raw), &msg); err != nil {
			return Snapshot{}, false, fmt.Errorf("decode cached message: %w: %w", ErrCorrupt, err)
		}
		snap.Messages = append(snap.Messages, msg)
	}
	if err := rows.Err(); err != nil {
		return Snapshot{}, false, err
	}
	return snap, true, nil
}

// ListConversations returns every cached conversation, most recently saved first.
func ListConversations(db DBTX) ([]types.Conversation, error) {
	rows, err := db.Query(`SELECT data FROM orya_conversations ORDER BY saved_at DESC, id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var conversations []types.Conversation
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var conversation types.Conversation
		if err := json.Unmarshal([]byte(raw), &conversation); err != nil {
			return nil, fmt.Errorf("decode cached conversation: %w: %w", ErrCorrupt, err)
		}
		conversations = append(conversations, conversation)
	}
	return conversations, rows.Err()
}

// DeleteSnapshot forgets a conversation.
func DeleteSnapshot(db *sql.DB, conversationID string) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	for _, stmt := range []string{
		`DELETE FROM orya_messages WHERE conversation_id = ?`,
		`DELETE FROM orya_read_state WHERE conversation_id = ?`,
		`DELETE FROM orya_conversations WHERE id = ?`,
	} {
		if _, err := tx.Exec(stmt, conversationID); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}
