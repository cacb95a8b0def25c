package reconcile

import (
	"errors"
	"slices"
	"time"

	"github.com/nuno7lopes-collab/ORYA-WebApp-sub012/internal/core"
	"github.com/nuno7lopes-collab/ORYA-WebApp-sub012/internal/timeline"
	"github.com/nuno7lopes-collab/ORYA-WebApp-sub012/internal/types"
)

// ApplyEvent feeds one stream event into the store. Malformed and stale
// events are dropped and logged; ApplyEvent never fails.
func (r *Reconciler) ApplyEvent(event types.Event) timeline.Delta {
	if err := event.Validate(); err != nil {
		r.drop(event, "malformed", err)
		return timeline.Delta{ConversationID: event.ConversationID}
	}

	conversationID := event.ConversationID
	var (
		delta timeline.Delta
		err   error
	)
	switch event.Type {
	case types.EventMessageNew:
		delta, err = r.applyNew(conversationID, *event.Message)
	case types.EventMessageUpdate:
		delta, err = r.applyUpdate(conversationID, *event.Message)
	case types.EventMessageDelete:
		if _, ok := r.store.Find(conversationID, event.MessageID); !ok {
			err = core.Wrap(core.ErrStaleEvent, string(event.Type), errors.New(event.MessageID))
			break
		}
		at := r.now()
		if event.DeletedAt != nil {
			at = *event.DeletedAt
		}
		delta = r.SoftDelete(conversationID, event.MessageID, at)
	case types.EventReactionUpdate:
		reactions := event.Reactions
		if reactions == nil {
			reactions = []types.Reaction{}
		}
		delta, err = r.store.Apply(conversationID, timeline.PatchReactions(event.MessageID, reactions))
	case types.EventPinUpdate:
		delta, err = r.applyPin(conversationID, event.MessageID, *event.Pinned)
	case types.EventMessageRead:
		delta = r.applyRead(conversationID, event)
	case types.EventTypingStart:
		r.setTyping(conversationID, event.UserID, true)
	case types.EventTypingStop:
		r.setTyping(conversationID, event.UserID, false)
	case types.EventPresenceUpdate:
		r.applyPresence(event)
	case types.EventConversationUpdate:
		r.applyConversation(conversationID, event.Conversation)
	}

	if err != nil {
		reason := "rejected"
		if errors.Is(err, core.ErrStaleEvent) {
			reason = "stale"
		}
		r.drop(event, reason, err)
		return timeline.Delta{ConversationID: conversationID, PrevLen: r.store.Len(conversationID), Len: r.store.Len(conversationID)}
	}
	r.recorder.EventApplied(event.Type)
	return delta
}

func (r *Reconciler) drop(event types.Event, reason string, err error) {
	r.recorder.EventDropped(event.Type, reason)
	level := r.logger.Warn
	if reason == "stale" {
		level = r.logger.Debug
	}
	level("event dropped", "type", event.Type, "conversation", event.ConversationID, "reason", reason, "err", err)
}

func (r *Reconciler) applyNew(conversationID string, msg types.Message) (timeline.Delta, error) {
	msg = normalize(conversationID, []types.Message{msg})[0]

	// Our own send coming back: promote the provisional copy in place.
	if msg.AuthorID == r.viewerID && msg.CorrelationToken != "" {
		if provisional, ok := r.store.FindByToken(conversationID, msg.CorrelationToken); ok {
			return r.promote(conversationID, provisional, msg)
		}
	}

	if existing, ok := r.store.Find(conversationID, msg.ID); ok {
		return r.store.Apply(conversationID, timeline.Replace(msg.ID, merge(existing, msg)))
	}

	delta, err := r.store.Apply(conversationID, timeline.Insert(msg))
	if err != nil {
		return delta, err
	}
	if msg.AuthorID != r.viewerID {
		r.setTyping(conversationID, msg.AuthorID, false)
		if conversationID != r.active {
			r.store.UpdateConversation(conversationID, func(c *types.Conversation) {
				c.Unread++
				if core.HasMention(msg.Body, r.tokens) {
					c.HasUnreadMention = true
				}
			})
		}
	}
	return delta, nil
}

func (r *Reconciler) applyUpdate(conversationID string, msg types.Message) (timeline.Delta, error) {
	existing, ok := r.store.Find(conversationID, msg.ID)
	if !ok {
		return timeline.Delta{}, core.Wrap(core.ErrStaleEvent, string(types.EventMessageUpdate), errors.New(msg.ID))
	}
	msg.ConversationID = conversationID
	return r.store.Apply(conversationID, timeline.Replace(msg.ID, merge(existing, msg)))
}

func (r *Reconciler) applyPin(conversationID, id string, pinned bool) (timeline.Delta, error) {
	delta, err := r.store.Apply(conversationID, timeline.PatchPin(id, pinned))
	if err != nil {
		return delta, err
	}
	r.store.UpdateConversation(conversationID, func(c *types.Conversation) {
		switch {
		case pinned:
			c.PinnedMessageID = id
		case c.PinnedMessageID == id:
			c.PinnedMessageID = ""
		}
	})
	return delta, nil
}

func (r *Reconciler) applyRead(conversationID string, event types.Event) timeline.Delta {
	at := r.now()
	r.store.UpdateConversation(conversationID, func(c *types.Conversation) {
		for i := range c.Members {
			if c.Members[i].UserID == event.UserID {
				c.Members[i].LastReadMessageID = event.LastReadMessageID
				c.Members[i].LastReadAt = &at
			}
		}
		if event.UserID == r.viewerID {
			c.ViewerLastReadMessageID = event.LastReadMessageID
			c.Unread = 0
			c.HasUnreadMention = false
		}
	})
	if event.UserID == r.viewerID {
		return timeline.Delta{ConversationID: conversationID}
	}
	return r.refreshReadStatus(conversationID)
}

// refreshReadStatus marks the viewer's persisted messages read once every other
// member's read watermark has passed them.
func (r *Reconciler) refreshReadStatus(conversationID string) timeline.Delta {
	delta := timeline.Delta{ConversationID: conversationID}
	conversation, ok := r.store.Conversation(conversationID)
	if !ok {
		return delta
	}
	through := -1
	others := 0
	for _, member := range conversation.Members {
		if member.UserID == r.viewerID {
			continue
		}
		idx := -1
		if member.LastReadMessageID != "" {
			idx = r.store.Index(conversationID, member.LastReadMessageID)
		}
		if others == 0 || idx < through {
			through = idx
		}
		others++
	}
	if others == 0 || through < 0 {
		return delta
	}

	messages := r.store.Timeline(conversationID)
	for i := 0; i <= through && i < len(messages); i++ {
		msg := messages[i]
		if msg.AuthorID != r.viewerID || msg.Status.Pending() || msg.Status == types.StatusRead {
			continue
		}
		msg.Status = types.StatusRead
		d, err := r.store.Apply(conversationID, timeline.Replace(msg.ID, msg))
		if err == nil {
			delta = delta.Merge(d)
		}
	}
	return delta
}

func (r *Reconciler) setTyping(conversationID, userID string, typing bool) {
	if userID == r.viewerID {
		return
	}
	ids := r.typing[conversationID]
	idx := slices.Index(ids, userID)
	switch {
	case typing && idx < 0:
		r.typing[conversationID] = append(ids, userID)
	case !typing && idx >= 0:
		r.typing[conversationID] = slices.Delete(ids, idx, idx+1)
	}
}

func (r *Reconciler) applyPresence(event types.Event) {
	r.presence[event.UserID] = Presence{Status: event.Presence, LastSeenAt: event.LastSeenAt}
	online := event.Presence == "online"
	for _, id := range r.store.ConversationIDs() {
		r.store.UpdateConversation(id, func(c *types.Conversation) {
			for i := range c.Members {
				if c.Members[i].UserID != event.UserID {
					continue
				}
				c.Members[i].Online = online
				if event.LastSeenAt != nil {
					c.Members[i].LastSeenAt = event.LastSeenAt
				}
			}
		})
	}
}

func (r *Reconciler) applyConversation(conversationID string, patch *types.ConversationPatch) {
	if patch == nil {
		return
	}
	r.store.UpdateConversation(conversationID, func(c *types.Conversation) {
		if patch.Title != nil {
			c.Title = *patch.Title
		}
		if patch.Members != nil {
			c.Members = slices.Clone(patch.Members)
		}
		if patch.Unread != nil {
			c.Unread = *patch.Unread
		}
		if patch.NotifLevel != nil {
			c.NotifLevel = *patch.NotifLevel
		}
		if patch.MutedUntil != nil {
			c.MutedUntil = patch.MutedUntil
		}
	})
	if patch.Left {
		delete(r.typing, conversationID)
	}
}

// SetNotifications records the viewer's notification settings after the
// server accepted them. A nil mutedUntil unmutes.
func (r *Reconciler) SetNotifications(conversationID string, level types.NotifLevel, mutedUntil *time.Time) {
	r.store.UpdateConversation(conversationID, func(c *types.Conversation) {
		c.NotifLevel = level
		c.MutedUntil = mutedUntil
	})
}
