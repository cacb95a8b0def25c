package chatview

import (
	"time"

	"github.com/nuno7lopes-collab/ORYA-WebApp-sub012/internal/types"
	"github.com/nuno7lopes-collab/ORYA-WebApp-sub012/internal/viewport"
)

// Purpose names what a sequenced request is for.
type Purpose string

const (
	PurposeLatest  Purpose = "latest"
	PurposeOlder   Purpose = "older"
	PurposeMembers Purpose = "members"
)

// HistoryLoadedMsg carries a history page back into the loop.
type HistoryLoadedMsg struct {
	ConversationID string
	Purpose        Purpose
	Seq            uint64
	Page           types.Page
	Err            error
}

// MembersLoadedMsg carries a directory lookup back into the loop.
type MembersLoadedMsg struct {
	ConversationID string
	Seq            uint64
	Members        []types.Member
	Err            error
}

// SendResultMsg is the outcome of a send request.
type SendResultMsg struct {
	ConversationID string
	Token          string
	Message        types.Message
	Err            error
}

// EditResultMsg is the outcome of an edit request.
type EditResultMsg struct {
	ConversationID string
	Prev           types.Message
	Message        types.Message
	Err            error
}

// DeleteResultMsg is the outcome of a delete request.
type DeleteResultMsg struct {
	ConversationID string
	MessageID      string
	Err            error
}

// ReactionResultMsg is the outcome of a reaction toggle.
type ReactionResultMsg struct {
	ConversationID string
	MessageID      string
	Label          string
	Remove         bool
	Reactions      []types.Reaction
	Err            error
}

// PinResultMsg is the outcome of a pin toggle.
type PinResultMsg struct {
	ConversationID string
	MessageID      string
	Pinned         bool
	Err            error
}

// ReceiptResultMsg is the outcome of a read receipt.
type ReceiptResultMsg struct {
	ConversationID string
	MessageID      string
	Err            error
}

// SettingsResultMsg is the outcome of a notification settings update.
type SettingsResultMsg struct {
	ConversationID string
	Level          types.NotifLevel
	MutedUntil     *time.Time
	Err            error
}

// TypingIdleMsg fires when the typing idle timer armed for Seq runs out.
type TypingIdleMsg struct {
	Seq uint64
}

// EventMsg delivers one stream event.
type EventMsg struct {
	Event types.Event
}

// ConnectionMsg reports a change of the real-time channel.
type ConnectionMsg struct {
	State types.ConnectionState
}

// ScrollMsg reports the viewer scrolling.
type ScrollMsg struct {
	Metrics viewport.Metrics
}

// ForegroundMsg reports the screen becoming visible or hidden.
type ForegroundMsg struct {
	Foreground bool
}
