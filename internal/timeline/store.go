package timeline

import (
	"fmt"
	"slices"
	"sort"

	"github.com/nuno7lopes-collab/ORYA-WebApp-sub012/internal/core"
	"github.com/nuno7lopes-collab/ORYA-WebApp-sub012/internal/types"
)

// MutationKind enumerates the ways a timeline can change.
type MutationKind int

const (
	MutationInsert MutationKind = iota + 1
	MutationReplace
	MutationRemove
	MutationPrependPage
	MutationPatchReactions
	MutationPatchPin
	MutationReset
)

func (k MutationKind) String() string {
	switch k {
	case MutationInsert:
		return "insert"
	case MutationReplace:
		return "replace"
	case MutationRemove:
		return "remove"
	case MutationPrependPage:
		return "prependPage"
	case MutationPatchReactions:
		return "patchReactions"
	case MutationPatchPin:
		return "patchPin"
	case MutationReset:
		return "reset"
	}
	return fmt.Sprintf("mutation(%d)", int(k))
}

// Mutation is one change to a conversation timeline.
type Mutation struct {
	Kind      MutationKind
	ID        string
	Message   types.Message
	Page      []types.Message
	Reactions []types.Reaction
	Pinned    bool
}

// Insert adds msg, or replaces the message with the same id.
func Insert(msg types.Message) Mutation {
	return Mutation{Kind: MutationInsert, ID: msg.ID, Message: msg}
}

// Replace swaps the message stored under id for msg. msg may carry a new id.
func Replace(id string, msg types.Message) Mutation {
	return Mutation{Kind: MutationReplace, ID: id, Message: msg}
}

// Remove drops the message with id. Removing an unknown id is a no-op.
func Remove(id string) Mutation {
	return Mutation{Kind: MutationRemove, ID: id}
}

// PrependPage adds a page of messages strictly older than the timeline.
func PrependPage(older []types.Message) Mutation {
	return Mutation{Kind: MutationPrependPage, Page: older}
}

// PatchReactions overwrites the reaction counts of a message.
func PatchReactions(id string, reactions []types.Reaction) Mutation {
	return Mutation{Kind: MutationPatchReactions, ID: id, Reactions: reactions}
}

// PatchPin sets the pinned flag of a message.
func PatchPin(id string, pinned bool) Mutation {
	return Mutation{Kind: MutationPatchPin, ID: id, Pinned: pinned}
}

// Reset replaces the persisted messages with the latest page. Provisional
// messages survive unless the page already holds their confirmation. When the
// page overlaps a loaded timeline, persisted messages older than the page are
// kept.
func Reset(latest []types.Message) Mutation {
	return Mutation{Kind: MutationReset, Page: latest}
}

// Delta summarizes what one mutation did.
type Delta struct {
	ConversationID string
	PrevLen        int
	Len            int
	// Added lists messages that entered the timeline other than by prepend.
	Added     []types.Message
	Prepended int
	Replaced  []string
	Removed   []string
	Reset     bool
	// Retained counts older persisted messages a reset kept below the new page.
	Retained int
	// Restarted is set when a reset found no overlap with the persisted
	// messages it replaced.
	Restarted bool
}

// Grew reports whether messages were added at or near the live end.
func (d Delta) Grew() bool {
	return len(d.Added) > 0
}

// Changed reports whether the mutation touched anything.
func (d Delta) Changed() bool {
	return d.Grew() || d.Prepended > 0 || len(d.Replaced) > 0 || len(d.Removed) > 0 || d.Reset
}

// Merge folds other into d.
func (d Delta) Merge(other Delta) Delta {
	if d.ConversationID == "" {
		d.ConversationID = other.ConversationID
		d.PrevLen = other.PrevLen
	}
	d.Len = other.Len
	d.Added = append(d.Added, other.Added...)
	d.Prepended += other.Prepended
	d.Replaced = append(d.Replaced, other.Replaced...)
	d.Removed = append(d.Removed, other.Removed...)
	d.Reset = d.Reset || other.Reset
	d.Retained += other.Retained
	d.Restarted = d.Restarted || other.Restarted
	return d
}

type conversationTimeline struct {
	conversation types.Conversation
	messages     []types.Message
	cursor       Cursor
	// clearedThrough is the timeline length when the unread marker was last
	// cleared, or -1. A new marker may not be placed before it.
	clearedThrough int
}

// Store keeps one ordered timeline per conversation. It is not safe for
// concurrent use; the event loop serializes every writer.
type Store struct {
	timelines map[string]*conversationTimeline
	localSeq  int64
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{timelines: make(map[string]*conversationTimeline)}
}

func (s *Store) get(conversationID string) *conversationTimeline {
	tl, ok := s.timelines[conversationID]
	if !ok {
		tl = &conversationTimeline{
			conversation:   types.Conversation{ID: conversationID},
			cursor:         Cursor{UnreadMarker: NoMarker},
			clearedThrough: -1,
		}
		s.timelines[conversationID] = tl
	}
	return tl
}

// Timeline returns a copy of the ordered messages of a conversation.
func (s *Store) Timeline(conversationID string) []types.Message {
	tl, ok := s.timelines[conversationID]
	if !ok {
		return nil
	}
	return slices.Clone(tl.messages)
}

// Len returns the number of messages in a conversation.
func (s *Store) Len(conversationID string) int {
	if tl, ok := s.timelines[conversationID]; ok {
		return len(tl.messages)
	}
	return 0
}

// Find returns the message with id.
func (s *Store) Find(conversationID, id string) (types.Message, bool) {
	tl, ok := s.timelines[conversationID]
	if !ok {
		return types.Message{}, false
	}
	if i := indexOf(tl.messages, id); i >= 0 {
		return tl.messages[i], true
	}
	return types.Message{}, false
}

// Index returns the position of id, or -1.
func (s *Store) Index(conversationID, id string) int {
	tl, ok := s.timelines[conversationID]
	if !ok {
		return -1
	}
	return indexOf(tl.messages, id)
}

// FindByToken returns the provisional message carrying a correlation token.
func (s *Store) FindByToken(conversationID, token string) (types.Message, bool) {
	tl, ok := s.timelines[conversationID]
	if !ok || token == "" {
		return types.Message{}, false
	}
	for _, msg := range tl.messages {
		if msg.Provisional && msg.CorrelationToken == token {
			return msg, true
		}
	}
	return types.Message{}, false
}

// Conversation returns the metadata held for a conversation.
func (s *Store) Conversation(conversationID string) (types.Conversation, bool) {
	tl, ok := s.timelines[conversationID]
	if !ok {
		return types.Conversation{}, false
	}
	return tl.conversation, true
}

// PutConversation stores conversation metadata, creating the timeline if needed.
func (s *Store) PutConversation(conversation types.Conversation) {
	s.get(conversation.ID).conversation = conversation
}

// UpdateConversation edits conversation metadata in place.
func (s *Store) UpdateConversation(conversationID string, fn func(*types.Conversation)) {
	fn(&s.get(conversationID).conversation)
}

// ConversationIDs lists every conversation the store knows about.
func (s *Store) ConversationIDs() []string {
	ids := make([]string, 0, len(s.timelines))
	for id := range s.timelines {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Apply performs one mutation atomically. On error the timeline is unchanged.
func (s *Store) Apply(conversationID string, m Mutation) (Delta, error) {
	tl := s.get(conversationID)
	delta := Delta{ConversationID: conversationID, PrevLen: len(tl.messages)}
	var err error
	switch m.Kind {
	case MutationInsert:
		err = s.insert(tl, m.Message, &delta)
	case MutationReplace:
		err = s.replace(tl, m.ID, m.Message, &delta)
	case MutationRemove:
		s.remove(tl, m.ID, &delta)
	case MutationPrependPage:
		err = s.prepend(tl, m.Page, &delta)
	case MutationPatchReactions:
		err = s.patch(tl, m.ID, "patch reactions", &delta, func(msg *types.Message) {
			msg.Reactions = slices.Clone(m.Reactions)
		})
	case MutationPatchPin:
		err = s.patch(tl, m.ID, "patch pin", &delta, func(msg *types.Message) {
			msg.Pinned = m.Pinned
		})
	case MutationReset:
		s.reset(tl, m.Page, &delta)
	default:
		err = core.Validation("apply mutation", "unknown mutation %v", m.Kind)
	}
	delta.Len = len(tl.messages)
	if err != nil {
		return Delta{ConversationID: conversationID, PrevLen: delta.PrevLen, Len: delta.PrevLen}, err
	}
	return delta, nil
}

func (s *Store) insert(tl *conversationTimeline, msg types.Message, delta *Delta) error {
	if msg.ID == "" {
		return core.Validation("insert", "message without id")
	}
	if indexOf(tl.messages, msg.ID) >= 0 {
		return s.replace(tl, msg.ID, msg, delta)
	}
	if msg.Provisional && msg.LocalSeq == 0 {
		s.localSeq++
		msg.LocalSeq = s.localSeq
	}
	pos := insertPosition(tl.messages, msg)
	tl.messages = slices.Insert(tl.messages, pos, msg)
	if tl.cursor.UnreadMarker != NoMarker && pos < tl.cursor.UnreadMarker {
		tl.cursor.UnreadMarker++
	}
	if tl.clearedThrough >= 0 && pos < tl.clearedThrough {
		tl.clearedThrough++
	}
	delta.Added = append(delta.Added, msg)
	return nil
}

func (s *Store) replace(tl *conversationTimeline, id string, msg types.Message, delta *Delta) error {
	i := indexOf(tl.messages, id)
	if i < 0 {
		return core.Wrap(core.ErrStaleEvent, "replace", fmt.Errorf("message %s not in timeline", id))
	}
	if msg.ID == "" {
		msg.ID = id
	}
	if msg.ID != id {
		if j := indexOf(tl.messages, msg.ID); j >= 0 {
			// The confirmed copy is already present: collapse onto it.
			s.removeAt(tl, i)
			delta.Removed = append(delta.Removed, id)
			i = indexOf(tl.messages, msg.ID)
		}
	}
	if msg.Provisional && msg.LocalSeq == 0 {
		msg.LocalSeq = tl.messages[i].LocalSeq
	}
	tl.messages[i] = msg
	if !fitsAt(tl.messages, i, msg) {
		tl.messages = slices.Delete(tl.messages, i, i+1)
		pos := insertPosition(tl.messages, msg)
		tl.messages = slices.Insert(tl.messages, pos, msg)
	}
	delta.Replaced = append(delta.Replaced, msg.ID)
	return nil
}

func (s *Store) remove(tl *conversationTimeline, id string, delta *Delta) {
	i := indexOf(tl.messages, id)
	if i < 0 {
		return
	}
	s.removeAt(tl, i)
	delta.Removed = append(delta.Removed, id)
}

func (s *Store) removeAt(tl *conversationTimeline, i int) {
	tl.messages = slices.Delete(tl.messages, i, i+1)
	if tl.cursor.UnreadMarker != NoMarker && i < tl.cursor.UnreadMarker {
		tl.cursor.UnreadMarker--
	}
	if tl.clearedThrough > 0 && i < tl.clearedThrough {
		tl.clearedThrough--
	}
	if tl.cursor.UnreadMarker >= len(tl.messages) {
		tl.cursor.UnreadMarker = NoMarker
	}
}

func (s *Store) prepend(tl *conversationTimeline, page []types.Message, delta *Delta) error {
	if len(page) == 0 {
		return nil
	}
	older := dedupe(page)
	sortMessages(older)
	if len(tl.messages) > 0 {
		newest := older[len(older)-1]
		earliest := tl.messages[0]
		if !Less(newest, earliest) {
			return core.Wrap(core.ErrOutOfOrderPage, "prepend page",
				fmt.Errorf("page newest %s is not older than earliest %s", newest.ID, earliest.ID))
		}
		for _, msg := range older {
			if indexOf(tl.messages, msg.ID) >= 0 {
				return core.Wrap(core.ErrOutOfOrderPage, "prepend page",
					fmt.Errorf("message %s already in timeline", msg.ID))
			}
		}
	}
	tl.messages = append(older, tl.messages...)
	n := len(older)
	if tl.cursor.UnreadMarker != NoMarker {
		tl.cursor.UnreadMarker += n
	}
	if tl.clearedThrough >= 0 {
		tl.clearedThrough += n
	}
	delta.Prepended = n
	return nil
}

func (s *Store) patch(tl *conversationTimeline, id, op string, delta *Delta, fn func(*types.Message)) error {
	i := indexOf(tl.messages, id)
	if i < 0 {
		return core.Wrap(core.ErrStaleEvent, op, fmt.Errorf("message %s not in timeline", id))
	}
	fn(&tl.messages[i])
	delta.Replaced = append(delta.Replaced, id)
	return nil
}

func (s *Store) reset(tl *conversationTimeline, page []types.Message, delta *Delta) {
	latest := dedupe(page)
	sortMessages(latest)
	old := tl.messages
	inPage := make(map[string]struct{}, len(latest))
	confirmed := make(map[string]struct{}, len(latest))
	known := make(map[string]struct{}, len(old))
	for _, msg := range old {
		known[msg.ID] = struct{}{}
	}
	overlap := false
	for _, msg := range latest {
		inPage[msg.ID] = struct{}{}
		if msg.CorrelationToken != "" {
			confirmed[msg.CorrelationToken] = struct{}{}
		}
		if _, ok := known[msg.ID]; ok {
			overlap = true
		} else {
			delta.Added = append(delta.Added, msg)
		}
	}

	// Loaded older history survives a refresh whose page joins up with it.
	keepOlder := overlap && tl.cursor.Loaded
	var oldest types.Message
	if len(latest) > 0 {
		oldest = latest[0]
	}
	merged := latest
	hadPersisted := false
	for _, msg := range old {
		if msg.Provisional {
			if _, ok := confirmed[msg.CorrelationToken]; !ok {
				merged = append(merged, msg)
			}
			continue
		}
		hadPersisted = true
		if _, ok := inPage[msg.ID]; ok {
			continue
		}
		if keepOlder && Less(msg, oldest) {
			merged = append(merged, msg)
			delta.Retained++
			continue
		}
		delta.Removed = append(delta.Removed, msg.ID)
	}
	sortMessages(merged)
	tl.messages = merged

	if marker := tl.cursor.UnreadMarker; marker != NoMarker {
		tl.cursor.UnreadMarker = NoMarker
		if marker < len(old) {
			if at := firstNotBefore(merged, old[marker]); at < len(merged) {
				tl.cursor.UnreadMarker = at
			}
		}
	}
	if tl.clearedThrough > 0 {
		boundary := old[min(tl.clearedThrough, len(old))-1]
		tl.clearedThrough = sort.Search(len(merged), func(i int) bool {
			return Less(boundary, merged[i])
		})
	}
	delta.Reset = true
	delta.Restarted = hadPersisted && !overlap
}

// firstNotBefore returns the index of the first message that does not sort
// before msg.
func firstNotBefore(messages []types.Message, msg types.Message) int {
	return sort.Search(len(messages), func(i int) bool {
		return !Less(messages[i], msg)
	})
}

func indexOf(messages []types.Message, id string) int {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].ID == id {
			return i
		}
	}
	return -1
}

func dedupe(page []types.Message) []types.Message {
	seen := make(map[string]int, len(page))
	out := make([]types.Message, 0, len(page))
	for _, msg := range page {
		if i, ok := seen[msg.ID]; ok {
			out[i] = msg
			continue
		}
		seen[msg.ID] = len(out)
		out = append(out, msg)
	}
	return out
}
