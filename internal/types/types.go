package types

import (
	"strings"
	"time"
)

// ConversationKind distinguishes direct and group conversations.
type ConversationKind string

const (
	ConversationDirect ConversationKind = "direct"
	ConversationGroup  ConversationKind = "group"
)

// NotifLevel is the viewer's notification preference for a conversation.
type NotifLevel string

const (
	NotifAll          NotifLevel = "ALL"
	NotifMentionsOnly NotifLevel = "MENTIONS_ONLY"
	NotifOff          NotifLevel = "OFF"
)

// MessageKind represents the source of a message.
type MessageKind string

const (
	MessageKindText   MessageKind = "text"
	MessageKindSystem MessageKind = "system"
)

// DeliveryStatus tracks a message through sending, delivery and reading.
type DeliveryStatus string

const (
	StatusSending   DeliveryStatus = "sending"
	StatusSent      DeliveryStatus = "sent"
	StatusDelivered DeliveryStatus = "delivered"
	StatusRead      DeliveryStatus = "read"
	StatusFailed    DeliveryStatus = "failed"
)

// Rank orders the non-failed statuses. Failed has no rank.
func (s DeliveryStatus) Rank() int {
	switch s {
	case StatusSending:
		return 1
	case StatusSent:
		return 2
	case StatusDelivered:
		return 3
	case StatusRead:
		return 4
	}
	return 0
}

// Pending reports whether the message has not been persisted by the server.
func (s DeliveryStatus) Pending() bool {
	return s == StatusSending || s == StatusFailed
}

// Member is a participant of a conversation along with its read state.
type Member struct {
	UserID            string     `json:"userId"`
	Role              string     `json:"role,omitempty"`
	FullName          string     `json:"fullName,omitempty"`
	Username          string     `json:"username,omitempty"`
	AvatarURL         string     `json:"avatarUrl,omitempty"`
	LastReadMessageID string     `json:"lastReadMessageId,omitempty"`
	LastReadAt        *time.Time `json:"lastReadAt,omitempty"`
	LastSeenAt        *time.Time `json:"lastSeenAt,omitempty"`
	Online            bool       `json:"online,omitempty"`
}

// Label returns the display label used for mentions and typing indicators.
func (m Member) Label() string {
	if name := strings.TrimSpace(m.FullName); name != "" {
		return name
	}
	if m.Username != "" {
		return "@" + m.Username
	}
	return "Member"
}

// Conversation is a direct or group chat.
type Conversation struct {
	ID                      string           `json:"id"`
	Kind                    ConversationKind `json:"kind"`
	Title                   string           `json:"title,omitempty"`
	Members                 []Member         `json:"members,omitempty"`
	Unread                  int              `json:"unreadCount"`
	ViewerLastReadMessageID string           `json:"viewerLastReadMessageId,omitempty"`
	NotifLevel              NotifLevel       `json:"notifLevel,omitempty"`
	MutedUntil              *time.Time       `json:"mutedUntil,omitempty"`
	PinnedMessageID         string           `json:"pinnedMessageId,omitempty"`
	HasUnreadMention        bool             `json:"-"`
}

// Member returns the member with the given id.
func (c *Conversation) Member(userID string) (Member, bool) {
	for _, member := range c.Members {
		if member.UserID == userID {
			return member, true
		}
	}
	return Member{}, false
}

// Muted reports whether notifications are silenced at the given instant.
func (c *Conversation) Muted(now time.Time) bool {
	if c.NotifLevel == NotifOff {
		return true
	}
	return c.MutedUntil != nil && c.MutedUntil.After(now)
}

// ReplyRef points at the message a reply was written against.
type ReplyRef struct {
	MessageID string `json:"id"`
	AuthorID  string `json:"senderId,omitempty"`
	Preview   string `json:"body,omitempty"`
}

// Attachment is an uploaded file referenced by a message.
type Attachment struct {
	Type string `json:"type"`
	URL  string `json:"url"`
	Mime string `json:"mime,omitempty"`
	Size int64  `json:"size,omitempty"`
	Name string `json:"name,omitempty"`
}

// Reaction is an aggregated reaction count for one label.
type Reaction struct {
	Label  string `json:"label"`
	Count  int    `json:"count"`
	Active bool   `json:"active,omitempty"`
}

// Message represents a conversation message.
type Message struct {
	ID               string         `json:"id"`
	ConversationID   string         `json:"conversationId"`
	AuthorID         string         `json:"senderId"`
	Body             string         `json:"body"`
	CreatedAt        time.Time      `json:"createdAt"`
	Seq              int64          `json:"seq,omitempty"`
	Kind             MessageKind    `json:"kind,omitempty"`
	Status           DeliveryStatus `json:"status,omitempty"`
	ReplyTo          *ReplyRef      `json:"replyTo,omitempty"`
	Attachments      []Attachment   `json:"attachments,omitempty"`
	Reactions        []Reaction     `json:"reactions,omitempty"`
	Pinned           bool           `json:"pinned,omitempty"`
	Edited           bool           `json:"edited,omitempty"`
	Deleted          bool           `json:"deleted,omitempty"`
	DeletedAt        *time.Time     `json:"deletedAt,omitempty"`
	CorrelationToken string         `json:"clientMessageId,omitempty"`

	// Provisional marks a locally created message awaiting confirmation.
	Provisional bool `json:"-"`
	// LocalSeq orders provisional messages by insertion.
	LocalSeq int64 `json:"-"`
	// Error holds the send failure shown next to a failed message.
	Error string `json:"-"`
}

// Page is one response of the history API.
type Page struct {
	Items      []Message `json:"items"`
	Members    []Member  `json:"members,omitempty"`
	NextCursor string    `json:"nextCursor,omitempty"`
}

// TypingKind is the direction of a typing signal.
type TypingKind string

const (
	TypingStart TypingKind = "typing:start"
	TypingStop  TypingKind = "typing:stop"
)

// TypingSignal is an outgoing typing indicator.
type TypingSignal struct {
	ConversationID string     `json:"conversationId"`
	Kind           TypingKind `json:"type"`
}

// ConnectionState describes the real-time channel.
type ConnectionState string

const (
	ConnectionConnected    ConnectionState = "connected"
	ConnectionReconnecting ConnectionState = "reconnecting"
	ConnectionOffline      ConnectionState = "offline"
)
