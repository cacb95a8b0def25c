// Package composer holds the draft being written in the active conversation:
// its text, reply and edit targets, mention suggestions and typing signals.
// It never touches the timeline; a submitted draft is handed to the
// reconciler by the caller.
package composer

import (
	"slices"
	"strings"
	"time"

	"github.com/nuno7lopes-collab/ORYA-WebApp-sub012/internal/core"
	"github.com/nuno7lopes-collab/ORYA-WebApp-sub012/internal/types"
)

const replyPreviewLength = 140

// SubmitKind tells a new message from an edit.
type SubmitKind int

const (
	SubmitSend SubmitKind = iota + 1
	SubmitEdit
)

// Submission is a validated draft ready for the reconciler.
type Submission struct {
	Kind           SubmitKind
	ConversationID string
	Body           string
	ReplyTo        *types.ReplyRef
	// EditID is the confirmed id being edited.
	EditID string
	// Stop is the typing:stop owed for the burst that produced the draft.
	Stop *types.TypingSignal
}

// Change is the result of a draft update.
type Change struct {
	// Start is set on the first keystroke of a typing burst.
	Start *types.TypingSignal
	// Stop is set when the draft was cleared mid burst.
	Stop *types.TypingSignal
	// IdleSeq identifies the idle timer to arm for this keystroke.
	IdleSeq uint64
	// Suggestions lists mention candidates, empty when the panel is closed.
	Suggestions []string
}

// Session is the composer of one viewer. It follows the active conversation.
type Session struct {
	viewerID string
	idle     time.Duration

	conversationID string
	members        []types.Member
	draft          string
	reply          *types.ReplyRef
	editID         string
	savedDraft     string

	suggestions []string
	selected    int

	typing typingDebouncer
}

// NewSession creates a composer for viewerID. A zero idle uses DefaultTypingIdle.
func NewSession(viewerID string, idle time.Duration) *Session {
	if idle <= 0 {
		idle = DefaultTypingIdle
	}
	return &Session{viewerID: viewerID, idle: idle}
}

// Idle returns the typing idle interval.
func (s *Session) Idle() time.Duration {
	return s.idle
}

// ConversationID returns the conversation the draft belongs to.
func (s *Session) ConversationID() string {
	return s.conversationID
}

// Draft returns the current text.
func (s *Session) Draft() string {
	return s.draft
}

// Switch moves the composer to another conversation. The draft, reply and
// edit targets are reset and a running typing burst is stopped.
func (s *Session) Switch(conversationID string, members []types.Member) *types.TypingSignal {
	stop := s.typing.flush()
	s.conversationID = conversationID
	s.members = slices.Clone(members)
	s.draft = ""
	s.reply = nil
	s.editID = ""
	s.savedDraft = ""
	s.closeSuggestions()
	return stop
}

// SetMembers refreshes the mention candidates, e.g. after a directory lookup.
func (s *Session) SetMembers(members []types.Member) {
	s.members = slices.Clone(members)
	if len(s.suggestions) > 0 {
		s.refreshSuggestions()
	}
}

// SetDraft replaces the draft text after an edit by the viewer.
func (s *Session) SetDraft(text string) Change {
	var change Change
	s.draft = text
	if strings.TrimSpace(text) == "" {
		change.Stop = s.typing.flush()
	} else if s.conversationID != "" && s.editID == "" {
		change.Start, change.IdleSeq = s.typing.keystroke(s.conversationID)
	}
	s.refreshSuggestions()
	change.Suggestions = slices.Clone(s.suggestions)
	return change
}

// ExpireTyping is called when the idle timer armed for seq fires.
func (s *Session) ExpireTyping(seq uint64) *types.TypingSignal {
	return s.typing.expire(seq)
}

// Blur stops typing when the input loses focus.
func (s *Session) Blur() *types.TypingSignal {
	return s.typing.flush()
}

// Close stops typing when the view goes away.
func (s *Session) Close() *types.TypingSignal {
	return s.typing.flush()
}

// Typing reports whether a typing burst is running.
func (s *Session) Typing() bool {
	return s.typing.active
}

// Suggestions returns the open mention candidates.
func (s *Session) Suggestions() []string {
	return slices.Clone(s.suggestions)
}

// Selected returns the highlighted suggestion index.
func (s *Session) Selected() int {
	return s.selected
}

// MoveSelection shifts the highlighted suggestion, wrapping around.
func (s *Session) MoveSelection(delta int) {
	n := len(s.suggestions)
	if n == 0 {
		return
	}
	s.selected = ((s.selected+delta)%n + n) % n
}

// DismissSuggestions closes the mention panel without accepting.
func (s *Session) DismissSuggestions() {
	s.closeSuggestions()
}

// AcceptMention replaces the trailing @fragment with the chosen label.
func (s *Session) AcceptMention(label string) error {
	if !slices.Contains(s.suggestions, label) {
		return core.Validation("accept mention", "%q is not a suggestion", label)
	}
	next, ok := core.ApplyMention(s.draft, label)
	if !ok {
		return core.Validation("accept mention", "draft has no mention in progress")
	}
	s.draft = next
	s.closeSuggestions()
	return nil
}

// AcceptSelected accepts the highlighted suggestion.
func (s *Session) AcceptSelected() error {
	if len(s.suggestions) == 0 {
		return core.Validation("accept mention", "no suggestions open")
	}
	return s.AcceptMention(s.suggestions[s.selected])
}

func (s *Session) refreshSuggestions() {
	query, ok := core.MatchTrailingMention(s.draft)
	if !ok {
		s.closeSuggestions()
		return
	}
	labels := make([]string, 0, len(s.members))
	for _, member := range s.members {
		if member.UserID == s.viewerID {
			continue
		}
		labels = append(labels, member.Label())
	}
	s.suggestions = core.FilterMentionCandidates(labels, query.Fragment)
	if s.selected >= len(s.suggestions) {
		s.selected = 0
	}
}

func (s *Session) closeSuggestions() {
	s.suggestions = nil
	s.selected = 0
}

// Reply targets msg with the next send.
func (s *Session) Reply(msg types.Message) error {
	if msg.Deleted {
		return core.Validation("reply", "message %s was deleted", msg.ID)
	}
	if msg.Status.Pending() {
		return core.Validation("reply", "message %s is not sent yet", msg.ID)
	}
	preview := strings.TrimSpace(msg.Body)
	if r := []rune(preview); len(r) > replyPreviewLength {
		preview = string(r[:replyPreviewLength]) + "…"
	}
	s.reply = &types.ReplyRef{MessageID: msg.ID, AuthorID: msg.AuthorID, Preview: preview}
	return nil
}

// ReplyTarget returns the message being replied to.
func (s *Session) ReplyTarget() (types.ReplyRef, bool) {
	if s.reply == nil {
		return types.ReplyRef{}, false
	}
	return *s.reply, true
}

// ClearReply drops the reply target.
func (s *Session) ClearReply() {
	s.reply = nil
}

// StartEdit loads msg into the composer. Only one message is edited at a
// time; a second call replaces the first.
func (s *Session) StartEdit(msg types.Message) error {
	switch {
	case msg.Status.Pending():
		return core.Validation("edit", "message %s is not sent yet", msg.ID)
	case msg.Deleted:
		return core.Validation("edit", "message %s was deleted", msg.ID)
	case msg.AuthorID != s.viewerID:
		return core.Validation("edit", "message %s belongs to another member", msg.ID)
	}
	if s.editID == "" {
		s.savedDraft = s.draft
	}
	s.editID = msg.ID
	s.draft = msg.Body
	s.reply = nil
	s.closeSuggestions()
	return nil
}

// Editing returns the id being edited.
func (s *Session) Editing() (string, bool) {
	return s.editID, s.editID != ""
}

// CancelEdit leaves edit mode and restores the draft written before it.
func (s *Session) CancelEdit() {
	if s.editID == "" {
		return
	}
	s.editID = ""
	s.draft = s.savedDraft
	s.savedDraft = ""
}

// Submit validates the draft and resets the composer. Nothing is reset when
// validation fails.
func (s *Session) Submit() (Submission, error) {
	body := strings.TrimSpace(s.draft)
	if s.conversationID == "" {
		return Submission{}, core.Validation("submit", "no conversation selected")
	}
	if body == "" {
		return Submission{}, core.Validation("submit", "message body is empty")
	}
	// A bare trailing "@" is a mention that was never completed.
	if query, ok := core.MatchTrailingMention(s.draft); ok && query.Fragment == "" {
		return Submission{}, core.Validation("submit", "mention is incomplete")
	}

	sub := Submission{
		Kind:           SubmitSend,
		ConversationID: s.conversationID,
		Body:           body,
		ReplyTo:        s.reply,
		Stop:           s.typing.flush(),
	}
	if s.editID != "" {
		sub.Kind = SubmitEdit
		sub.EditID = s.editID
		sub.ReplyTo = nil
		s.draft = s.savedDraft
	} else {
		s.draft = ""
	}
	s.editID = ""
	s.savedDraft = ""
	s.reply = nil
	s.closeSuggestions()
	return sub, nil
}
