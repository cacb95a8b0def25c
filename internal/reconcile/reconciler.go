// Package reconcile is the only writer of the message store. It applies
// history pages, live stream events and local optimistic actions with one set
// of merge and ordering rules.
package reconcile

import (
	"log/slog"
	"slices"
	"strconv"
	"time"

	"github.com/nuno7lopes-collab/ORYA-WebApp-sub012/internal/core"
	"github.com/nuno7lopes-collab/ORYA-WebApp-sub012/internal/timeline"
	"github.com/nuno7lopes-collab/ORYA-WebApp-sub012/internal/types"
)

// Recorder counts reconciliation outcomes.
type Recorder interface {
	EventApplied(eventType types.EventType)
	EventDropped(eventType types.EventType, reason string)
	SendFailed()
	PageRejected()
}

type nopRecorder struct{}

func (nopRecorder) EventApplied(types.EventType)         {}
func (nopRecorder) EventDropped(types.EventType, string) {}
func (nopRecorder) SendFailed()                          {}
func (nopRecorder) PageRejected()                        {}

// Reader is the read side of the store handed to the rest of the view.
type Reader interface {
	Timeline(conversationID string) []types.Message
	Len(conversationID string) int
	Find(conversationID, id string) (types.Message, bool)
	Index(conversationID, id string) int
	Conversation(conversationID string) (types.Conversation, bool)
	ConversationIDs() []string
	Cursor(conversationID string) timeline.Cursor
}

// Presence is the last known presence of a user.
type Presence struct {
	Status     string
	LastSeenAt *time.Time
}

// Reconciler serializes every write to the store. Like the store it is driven
// from a single event loop and takes no locks.
type Reconciler struct {
	store    *timeline.Store
	viewerID string
	tokens   []string
	logger   *slog.Logger
	recorder Recorder
	now      func() time.Time

	active   string
	typing   map[string][]string
	presence map[string]Presence
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithLogger sets the logger for dropped events.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Reconciler) { r.logger = core.OrDiscard(logger) }
}

// WithRecorder sets the metrics recorder.
func WithRecorder(recorder Recorder) Option {
	return func(r *Reconciler) {
		if recorder != nil {
			r.recorder = recorder
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(r *Reconciler) { r.now = now }
}

// WithViewerNames sets the username and full name used to detect mentions of the viewer.
func WithViewerNames(username, fullName string) Option {
	return func(r *Reconciler) { r.tokens = core.MentionTokens(username, fullName) }
}

// New creates a Reconciler writing to store on behalf of viewerID.
func New(store *timeline.Store, viewerID string, opts ...Option) *Reconciler {
	r := &Reconciler{
		store:    store,
		viewerID: viewerID,
		logger:   core.DiscardLogger(),
		recorder: nopRecorder{},
		now:      time.Now,
		typing:   make(map[string][]string),
		presence: make(map[string]Presence),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Store returns the read side of the store.
func (r *Reconciler) Store() Reader {
	return r.store
}

// ViewerID returns the id of the viewing member.
func (r *Reconciler) ViewerID() string {
	return r.viewerID
}

// Activate marks conversationID as the one on screen and starts a fresh
// unread-marker computation for it.
func (r *Reconciler) Activate(conversationID string) {
	r.active = conversationID
	r.store.ResetActivation(conversationID)
	r.store.UpdateConversation(conversationID, func(c *types.Conversation) {
		c.HasUnreadMention = false
	})
}

// Active returns the conversation on screen.
func (r *Reconciler) Active() string {
	return r.active
}

// PutConversation registers conversation metadata, typically from the conversation list.
func (r *Reconciler) PutConversation(conversation types.Conversation) {
	if existing, ok := r.store.Conversation(conversation.ID); ok && !conversation.HasUnreadMention {
		conversation.HasUnreadMention = existing.HasUnreadMention
	}
	r.store.PutConversation(conversation)
}

// SetUnreadMarker places the unread marker if none is set.
func (r *Reconciler) SetUnreadMarker(conversationID string, index int) bool {
	return r.store.SetUnreadMarker(conversationID, index)
}

// ClearUnreadMarker clears the unread marker.
func (r *Reconciler) ClearUnreadMarker(conversationID string) bool {
	return r.store.ClearUnreadMarker(conversationID)
}

// MarkConversationRead zeroes the viewer's unread state after a receipt.
func (r *Reconciler) MarkConversationRead(conversationID, lastReadMessageID string) {
	r.store.UpdateConversation(conversationID, func(c *types.Conversation) {
		c.Unread = 0
		c.HasUnreadMention = false
		if lastReadMessageID != "" {
			c.ViewerLastReadMessageID = lastReadMessageID
		}
	})
}

// ApplyLatestPage refreshes a timeline from the newest page. Older pages the
// viewer already loaded are kept, with their cursor, when the page overlaps
// them; otherwise the timeline restarts from the page.
func (r *Reconciler) ApplyLatestPage(conversationID string, page types.Page) (timeline.Delta, error) {
	delta, err := r.store.Apply(conversationID, timeline.Reset(normalize(conversationID, page.Items)))
	if err != nil {
		return delta, err
	}
	if delta.Retained == 0 {
		r.store.SetPagination(conversationID, page.NextCursor)
	}
	if delta.Restarted {
		r.logger.Info("timeline restarted from latest page", "conversation", conversationID, "dropped", len(delta.Removed))
	}
	if len(page.Members) > 0 {
		r.store.UpdateConversation(conversationID, func(c *types.Conversation) {
			c.Members = slices.Clone(page.Members)
		})
	}
	return delta.Merge(r.refreshReadStatus(conversationID)), nil
}

// ApplyOlderPage prepends an older page. A page that overlaps the timeline is
// rejected and leaves both the timeline and the cursor untouched.
func (r *Reconciler) ApplyOlderPage(conversationID string, page types.Page) (timeline.Delta, error) {
	delta, err := r.store.Apply(conversationID, timeline.PrependPage(normalize(conversationID, page.Items)))
	if err != nil {
		r.recorder.PageRejected()
		r.logger.Warn("history page rejected", "conversation", conversationID, "err", err)
		return delta, err
	}
	r.store.SetPagination(conversationID, page.NextCursor)
	return delta.Merge(r.refreshReadStatus(conversationID)), nil
}

// ApplyAuthoritative merges a message returned by a mutation request. Unknown
// ids are ignored.
func (r *Reconciler) ApplyAuthoritative(conversationID string, msg types.Message) timeline.Delta {
	existing, ok := r.store.Find(conversationID, msg.ID)
	if !ok {
		r.logger.Debug("authoritative update for unknown message", "conversation", conversationID, "message", msg.ID)
		return timeline.Delta{ConversationID: conversationID}
	}
	msg.ConversationID = conversationID
	delta, err := r.store.Apply(conversationID, timeline.Replace(msg.ID, merge(existing, msg)))
	if err != nil {
		r.logger.Warn("authoritative update failed", "conversation", conversationID, "err", err)
	}
	return delta
}

// SoftDelete hides a persisted message's content. Pending messages are removed
// outright since the server never saw them.
func (r *Reconciler) SoftDelete(conversationID, id string, at time.Time) timeline.Delta {
	existing, ok := r.store.Find(conversationID, id)
	if !ok {
		return timeline.Delta{ConversationID: conversationID}
	}
	if existing.Status.Pending() {
		delta, _ := r.store.Apply(conversationID, timeline.Remove(id))
		return delta
	}
	deleted := existing
	deleted.Deleted = true
	deleted.Body = ""
	deleted.Attachments = nil
	deleted.Reactions = nil
	deleted.Pinned = false
	if at.IsZero() {
		at = r.now()
	}
	deleted.DeletedAt = &at
	delta, _ := r.store.Apply(conversationID, timeline.Replace(id, deleted))
	r.store.UpdateConversation(conversationID, func(c *types.Conversation) {
		if c.PinnedMessageID == id {
			c.PinnedMessageID = ""
		}
	})
	return delta
}

// Typing returns the ids of members typing in a conversation, in arrival order.
func (r *Reconciler) Typing(conversationID string) []string {
	return slices.Clone(r.typing[conversationID])
}

// TypingLabel names who is typing, or returns "" when nobody is.
func (r *Reconciler) TypingLabel(conversationID string) string {
	ids := r.typing[conversationID]
	if len(ids) == 0 {
		return ""
	}
	conversation, _ := r.store.Conversation(conversationID)
	name := "Someone"
	if member, ok := conversation.Member(ids[0]); ok {
		name = member.Label()
	}
	switch len(ids) {
	case 1:
		return name + " is typing"
	case 2:
		return name + " and 1 other are typing"
	}
	return name + " and " + strconv.Itoa(len(ids)-1) + " others are typing"
}

// Presence returns the last known presence of a user.
func (r *Reconciler) Presence(userID string) (Presence, bool) {
	p, ok := r.presence[userID]
	return p, ok
}

// normalize stamps the conversation id and a default status on server messages.
func normalize(conversationID string, items []types.Message) []types.Message {
	out := make([]types.Message, len(items))
	for i, msg := range items {
		msg.ConversationID = conversationID
		msg.Provisional = false
		if msg.Status == "" || msg.Status == types.StatusSending {
			msg.Status = types.StatusSent
		}
		if msg.Kind == "" {
			msg.Kind = types.MessageKindText
		}
		out[i] = msg
	}
	return out
}

// merge folds an incoming server copy over the one in the timeline. Content
// fields come from incoming; status never moves backwards; reactions survive
// an update that does not carry them; a deletion is never undone.
func merge(existing, incoming types.Message) types.Message {
	out := incoming
	out.Provisional = false
	out.LocalSeq = 0
	out.Error = ""
	if out.Status == "" || out.Status == types.StatusFailed {
		out.Status = existing.Status
	}
	if existing.Status.Rank() > out.Status.Rank() {
		out.Status = existing.Status
	}
	if out.Status.Pending() {
		out.Status = types.StatusSent
	}
	if out.CreatedAt.IsZero() {
		out.CreatedAt = existing.CreatedAt
	}
	if out.Seq == 0 {
		out.Seq = existing.Seq
	}
	if out.AuthorID == "" {
		out.AuthorID = existing.AuthorID
	}
	if out.Kind == "" {
		out.Kind = existing.Kind
	}
	if incoming.Reactions == nil {
		out.Reactions = existing.Reactions
	}
	if out.ReplyTo == nil {
		out.ReplyTo = existing.ReplyTo
	}
	if out.CorrelationToken == "" {
		out.CorrelationToken = existing.CorrelationToken
	}
	if existing.Deleted && !out.Deleted {
		out.Deleted = true
		out.DeletedAt = existing.DeletedAt
		out.Body = ""
		out.Attachments = nil
	}
	return out
}
