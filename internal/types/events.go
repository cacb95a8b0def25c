package types

import (
	"errors"
	"fmt"
	"time"
)

// EventType identifies a real-time stream event.
type EventType string

const (
	EventMessageNew         EventType = "message:new"
	EventMessageUpdate      EventType = "message:update"
	EventMessageDelete      EventType = "message:delete"
	EventReactionUpdate     EventType = "reaction:update"
	EventPinUpdate          EventType = "pin:update"
	EventMessageRead        EventType = "message:read"
	EventTypingStart        EventType = "typing:start"
	EventTypingStop         EventType = "typing:stop"
	EventPresenceUpdate     EventType = "presence:update"
	EventConversationUpdate EventType = "conversation:update"
)

// Known reports whether the type is one the stream may deliver.
func (t EventType) Known() bool {
	switch t {
	case EventMessageNew, EventMessageUpdate, EventMessageDelete, EventReactionUpdate,
		EventPinUpdate, EventMessageRead, EventTypingStart, EventTypingStop,
		EventPresenceUpdate, EventConversationUpdate:
		return true
	}
	return false
}

// ConversationPatch carries the conversation fields a conversation:update changes.
// Nil fields are left untouched.
type ConversationPatch struct {
	Title      *string     `json:"title,omitempty"`
	Members    []Member    `json:"members,omitempty"`
	Unread     *int        `json:"unreadCount,omitempty"`
	NotifLevel *NotifLevel `json:"notifLevel,omitempty"`
	MutedUntil *time.Time  `json:"mutedUntil,omitempty"`
	Left       bool        `json:"left,omitempty"`
}

// Event is one entry of the real-time feed. Which fields are populated
// depends on Type.
type Event struct {
	Type              EventType          `json:"type"`
	ConversationID    string             `json:"conversationId,omitempty"`
	Message           *Message           `json:"message,omitempty"`
	MessageID         string             `json:"messageId,omitempty"`
	DeletedAt         *time.Time         `json:"deletedAt,omitempty"`
	Reactions         []Reaction         `json:"reactions,omitempty"`
	Pinned            *bool              `json:"pinned,omitempty"`
	UserID            string             `json:"userId,omitempty"`
	LastReadMessageID string             `json:"lastReadMessageId,omitempty"`
	Presence          string             `json:"status,omitempty"`
	LastSeenAt        *time.Time         `json:"lastSeenAt,omitempty"`
	Conversation      *ConversationPatch `json:"conversation,omitempty"`
}

var errMalformedEvent = errors.New("malformed event")

// Validate checks that the payload required by the event type is present.
func (e Event) Validate() error {
	if !e.Type.Known() {
		return fmt.Errorf("%w: unknown type %q", errMalformedEvent, e.Type)
	}
	if e.Type != EventPresenceUpdate && e.ConversationID == "" {
		return fmt.Errorf("%w: %s without conversation id", errMalformedEvent, e.Type)
	}
	switch e.Type {
	case EventMessageNew, EventMessageUpdate:
		if e.Message == nil || e.Message.ID == "" {
			return fmt.Errorf("%w: %s without message", errMalformedEvent, e.Type)
		}
		if e.Message.ConversationID != "" && e.Message.ConversationID != e.ConversationID {
			return fmt.Errorf("%w: %s conversation mismatch", errMalformedEvent, e.Type)
		}
	case EventMessageDelete, EventReactionUpdate:
		if e.MessageID == "" {
			return fmt.Errorf("%w: %s without message id", errMalformedEvent, e.Type)
		}
	case EventPinUpdate:
		if e.MessageID == "" || e.Pinned == nil {
			return fmt.Errorf("%w: pin:update without message id or state", errMalformedEvent)
		}
	case EventMessageRead:
		if e.UserID == "" || e.LastReadMessageID == "" {
			return fmt.Errorf("%w: message:read without reader", errMalformedEvent)
		}
	case EventTypingStart, EventTypingStop, EventPresenceUpdate:
		if e.UserID == "" {
			return fmt.Errorf("%w: %s without user id", errMalformedEvent, e.Type)
		}
	}
	return nil
}

// IsMalformed reports whether err came from Validate.
func IsMalformed(err error) bool {
	return errors.Is(err, errMalformedEvent)
}
