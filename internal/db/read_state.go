package db

import (
	"database/sql"
	"time"
)

// ReadState is the viewer's read watermark for a conversation.
type ReadState struct {
	ConversationID    string
	LastReadMessageID string
	ReadAt            time.Time
}

// SetReadTo records the newest message the viewer reported as read.
func SetReadTo(db DBTX, conversationID, messageID string, at time.Time) error {
	_, err := db.Exec(`
		INSERT OR REPLACE INTO orya_read_state (conversation_id, last_read_message_id, read_at)
		VALUES (?, ?, ?)
	`, conversationID, messageID, at.UnixMilli())
	return err
}

// GetReadTo returns the read watermark of a conversation.
func GetReadTo(db DBTX, conversationID string) (ReadState, bool, error) {
	row := db.QueryRow(`
		SELECT last_read_message_id, read_at FROM orya_read_state WHERE conversation_id = ?
	`, conversationID)
	state := ReadState{ConversationID: conversationID}
	var readAt int64
	if err := row.Scan(&state.LastReadMessageID, &readAt); err != nil {
		if err == sql.ErrNoRows {
			return ReadState{}, false, nil
		}
		return ReadState{}, false, err
	}
	state.ReadAt = time.UnixMilli(readAt)
	return state, true, nil
}
