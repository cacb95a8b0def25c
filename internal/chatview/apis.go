package chatview

import (
	"context"
	"time"

	"github.com/nuno7lopes-collab/ORYA-WebApp-sub012/internal/types"
)

// HistoryAPI loads message pages, newest first when cursor is empty.
type HistoryAPI interface {
	LoadMessages(ctx context.Context, conversationID, cursor string) (types.Page, error)
}

// SendRequest is one message send.
type SendRequest struct {
	ConversationID   string
	Body             string
	ReplyToMessageID string
	Attachments      []types.Attachment
	CorrelationToken string
}

// SendAPI persists new messages.
type SendAPI interface {
	SendMessage(ctx context.Context, req SendRequest) (types.Message, error)
}

// MutationAPI changes existing messages. Each call returns the server's view
// of the result.
type MutationAPI interface {
	EditMessage(ctx context.Context, messageID, body string) (types.Message, error)
	DeleteMessage(ctx context.Context, messageID string) error
	// ToggleReaction adds or removes the viewer's reaction. A nil slice means
	// the server did not return the new counts.
	ToggleReaction(ctx context.Context, messageID, label string, remove bool) ([]types.Reaction, error)
	SetPin(ctx context.Context, messageID string, pinned bool) error
}

// ReceiptAPI reports how far the viewer has read.
type ReceiptAPI interface {
	MarkRead(ctx context.Context, conversationID, lastReadMessageID string) error
}

// DirectoryAPI resolves member profiles for mentions and initials.
type DirectoryAPI interface {
	Members(ctx context.Context, conversationID string) ([]types.Member, error)
}

// SettingsAPI updates per-conversation notification settings.
type SettingsAPI interface {
	UpdateNotifications(ctx context.Context, conversationID string, level types.NotifLevel, mutedUntil *time.Time) error
}

// TypingSender publishes the viewer's typing signals.
type TypingSender interface {
	SendTyping(ctx context.Context, signal types.TypingSignal) error
}

// Collaborators groups the services the view talks to. Nil members disable
// the matching feature.
type Collaborators struct {
	History   HistoryAPI
	Send      SendAPI
	Mutations MutationAPI
	Receipts  ReceiptAPI
	Directory DirectoryAPI
	Settings  SettingsAPI
	Typing    TypingSender
}
