package db

import (
	"database/sql"
	"time"

	"github.com/nuno7lopes-collab/ORYA-WebApp-sub012/internal/reconcile"
)

// Restore seeds rec with every cached conversation so the view has content
// before the first page arrives. It returns the number of conversations seeded.
func Restore(db DBTX, rec *reconcile.Reconciler) (int, error) {
	conversations, err := ListConversations(db)
	if err != nil {
		return 0, err
	}
	restored := 0
	for _, conversation := range conversations {
		snap, ok, err := LoadSnapshot(db, conversation.ID)
		if err != nil {
			return restored, err
		}
		if !ok {
			continue
		}
		if state, ok, err := GetReadTo(db, conversation.ID); err != nil {
			return restored, err
		} else if ok {
			snap.Conversation.ViewerLastReadMessageID = state.LastReadMessageID
		}
		rec.PutConversation(snap.Conversation)
		if _, err := rec.ApplyLatestPage(conversation.ID, snap.Page()); err != nil {
			return restored, err
		}
		restored++
	}
	return restored, nil
}

// Persist writes every loaded conversation of store to the cache.
func Persist(db *sql.DB, store reconcile.Reader, now time.Time) error {
	for _, id := range store.ConversationIDs() {
		cursor := store.Cursor(id)
		if !cursor.Loaded {
			continue
		}
		conversation, ok := store.Conversation(id)
		if !ok || conversation.ID == "" {
			continue
		}
		snap := Snapshot{
			Conversation: conversation,
			Messages:     store.Timeline(id),
			NextCursor:   cursor.NextCursor,
			SavedAt:      now,
		}
		if err := SaveSnapshot(db, snap); err != nil {
			return err
		}
		if conversation.ViewerLastReadMessageID != "" {
			if err := SetReadTo(db, id, conversation.ViewerLastReadMessageID, now); err != nil {
				return err
			}
		}
	}
	return nil
}
