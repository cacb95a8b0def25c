package reconcile

import (
	"errors"
	"testing"
	"time"

	"github.com/nuno7lopes-collab/ORYA-WebApp-sub012/internal/core"
	"github.com/nuno7lopes-collab/ORYA-WebApp-sub012/internal/timeline"
	"github.com/nuno7lopes-collab/ORYA-WebApp-sub012/internal/types"
)

var base = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type countingRecorder struct {
	applied  map[types.EventType]int
	dropped  map[string]int
	failed   int
	rejected int
}

func newCountingRecorder() *countingRecorder {
	return &countingRecorder{applied: map[types.EventType]int{}, dropped: map[string]int{}}
}

func (c *countingRecorder) EventApplied(t types.EventType)             { c.applied[t]++ }
func (c *countingRecorder) EventDropped(_ types.EventType, why string) { c.dropped[why]++ }
func (c *countingRecorder) SendFailed()                                { c.failed++ }
func (c *countingRecorder) PageRejected()                              { c.rejected++ }

func newTestReconciler(t *testing.T) (*Reconciler, *countingRecorder) {
	t.Helper()
	rec := newCountingRecorder()
	clock := base.Add(time.Hour)
	r := New(timeline.NewStore(), "me",
		WithRecorder(rec),
		WithClock(func() time.Time { return clock }),
		WithViewerNames("me", "Maria Silva"),
	)
	r.PutConversation(types.Conversation{
		ID:   "c1",
		Kind: types.ConversationDirect,
		Members: []types.Member{
			{UserID: "me", FullName: "Maria Silva"},
			{UserID: "u2", FullName: "Rui Costa"},
		},
	})
	r.Activate("c1")
	return r, rec
}

func serverMsg(id, author string, minute int) types.Message {
	return types.Message{
		ID:        id,
		AuthorID:  author,
		Body:      "hi " + id,
		CreatedAt: base.Add(time.Duration(minute) * time.Minute),
	}
}

func newEvent(msg types.Message) types.Event {
	return types.Event{Type: types.EventMessageNew, ConversationID: "c1", Message: &msg}
}

func TestDuplicateNewIsReplace(t *testing.T) {
	r, _ := newTestReconciler(t)
	first := serverMsg("m1", "u2", 1)
	first.Reactions = []types.Reaction{{Label: "🔥", Count: 3}}
	r.ApplyEvent(newEvent(first))

	second := serverMsg("m1", "u2", 1)
	second.Body = "later content"
	delta := r.ApplyEvent(newEvent(second))

	if delta.Grew() {
		t.Fatal("duplicate should not grow the timeline")
	}
	got := r.Store().Timeline("c1")
	if len(got) != 1 {
		t.Fatalf("expected one message, got %d", len(got))
	}
	if got[0].Body != "later content" {
		t.Fatalf("expected later content, got %q", got[0].Body)
	}
	if len(got[0].Reactions) != 1 || got[0].Reactions[0].Count != 3 {
		t.Fatalf("reactions should survive a duplicate without reactions: %+v", got[0].Reactions)
	}
}

func TestOptimisticPromotion(t *testing.T) {
	r, _ := newTestReconciler(t)
	r.ApplyEvent(newEvent(serverMsg("m1", "u2", 1)))

	provisional, delta, err := r.BeginSend(Draft{ConversationID: "c1", Body: "hello"})
	if err != nil {
		t.Fatalf("begin send: %v", err)
	}
	if !delta.Grew() || provisional.Status != types.StatusSending || !provisional.Provisional {
		t.Fatalf("unexpected provisional message: %+v", provisional)
	}
	lenBefore := r.Store().Len("c1")
	idx := r.Store().Index("c1", provisional.ID)

	confirmed := serverMsg("S1", "me", 60)
	confirmed.Body = "hello"
	confirmed.CorrelationToken = provisional.CorrelationToken
	r.ApplyEvent(newEvent(confirmed))

	got := r.Store().Timeline("c1")
	if len(got) != lenBefore {
		t.Fatalf("length changed: %d -> %d", lenBefore, len(got))
	}
	if got[idx].ID != "S1" || got[idx].Status != types.StatusSent {
		t.Fatalf("unexpected message at %d: %+v", idx, got[idx])
	}
	if got[idx].Provisional {
		t.Fatal("confirmed message should not be provisional")
	}

	// The HTTP response arriving after the stream echo merges in place.
	delta, err = r.ConfirmSend("c1", provisional.CorrelationToken, confirmed)
	if err != nil {
		t.Fatalf("confirm send: %v", err)
	}
	if r.Store().Len("c1") != lenBefore || delta.Grew() {
		t.Fatal("late confirmation should not add a message")
	}
}

func TestConfirmSendBeforeEcho(t *testing.T) {
	r, _ := newTestReconciler(t)
	provisional, _, err := r.BeginSend(Draft{ConversationID: "c1", Body: "hello"})
	if err != nil {
		t.Fatalf("begin send: %v", err)
	}
	confirmed := serverMsg("S1", "me", 60)
	if _, err := r.ConfirmSend("c1", provisional.CorrelationToken, confirmed); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	echo := confirmed
	echo.CorrelationToken = provisional.CorrelationToken
	r.ApplyEvent(newEvent(echo))

	got := r.Store().Timeline("c1")
	if len(got) != 1 || got[0].ID != "S1" {
		t.Fatalf("unexpected timeline: %+v", got)
	}
}

func TestFailSendKeepsMessage(t *testing.T) {
	r, rec := newTestReconciler(t)
	provisional, _, _ := r.BeginSend(Draft{ConversationID: "c1", Body: "hello"})

	r.FailSend("c1", provisional.CorrelationToken, errors.New("boom"))

	got, ok := r.Store().Find("c1", provisional.ID)
	if !ok {
		t.Fatal("failed message should stay in the timeline")
	}
	if got.Status != types.StatusFailed || got.Error != "boom" {
		t.Fatalf("unexpected failed message: %+v", got)
	}
	if rec.failed != 1 {
		t.Fatalf("expected failed send to be counted, got %d", rec.failed)
	}

	retried, _, err := r.Retry("c1", provisional.ID)
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if retried.CorrelationToken == provisional.CorrelationToken {
		t.Fatal("retry must use a fresh correlation token")
	}
	if _, ok := r.Store().Find("c1", provisional.ID); ok {
		t.Fatal("failed entry should be replaced by the retry")
	}
	if r.Store().Len("c1") != 1 {
		t.Fatalf("expected one message, got %d", r.Store().Len("c1"))
	}
}

func TestRetract(t *testing.T) {
	r, _ := newTestReconciler(t)
	provisional, _, _ := r.BeginSend(Draft{ConversationID: "c1", Body: "oops"})
	if _, err := r.Retract("c1", provisional.ID); err != nil {
		t.Fatalf("retract: %v", err)
	}
	if r.Store().Len("c1") != 0 {
		t.Fatal("expected empty timeline")
	}

	r.ApplyEvent(newEvent(serverMsg("m1", "me", 1)))
	if _, err := r.Retract("c1", "m1"); !errors.Is(err, core.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestSendValidation(t *testing.T) {
	r, _ := newTestReconciler(t)
	_, _, err := r.BeginSend(Draft{ConversationID: "c1", Body: "   "})
	if !errors.Is(err, core.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if r.Store().Len("c1") != 0 {
		t.Fatal("validation failure must not write")
	}
}

func TestUnknownIDEventsAreNoops(t *testing.T) {
	r, rec := newTestReconciler(t)
	pinned := true
	events := []types.Event{
		{Type: types.EventMessageUpdate, ConversationID: "c1", Message: &types.Message{ID: "ghost", Body: "x"}},
		{Type: types.EventReactionUpdate, ConversationID: "c1", MessageID: "ghost"},
		{Type: types.EventPinUpdate, ConversationID: "c1", MessageID: "ghost", Pinned: &pinned},
		{Type: types.EventMessageDelete, ConversationID: "c1", MessageID: "ghost"},
	}
	for _, event := range events {
		if delta := r.ApplyEvent(event); delta.Changed() {
			t.Fatalf("%s changed the timeline", event.Type)
		}
	}
	if rec.dropped["stale"] != len(events) {
		t.Fatalf("expected %d stale drops, got %d", len(events), rec.dropped["stale"])
	}
	if r.Store().Len("c1") != 0 {
		t.Fatal("expected empty timeline")
	}
}

func TestMalformedEventDropped(t *testing.T) {
	r, rec := newTestReconciler(t)
	r.ApplyEvent(types.Event{Type: types.EventMessageNew, ConversationID: "c1"})
	r.ApplyEvent(types.Event{Type: "nonsense"})
	if rec.dropped["malformed"] != 2 {
		t.Fatalf("expected 2 malformed drops, got %d", rec.dropped["malformed"])
	}
}

func TestDeleteIsSoft(t *testing.T) {
	r, _ := newTestReconciler(t)
	r.ApplyEvent(newEvent(serverMsg("m1", "u2", 1)))
	r.ApplyEvent(types.Event{Type: types.EventMessageDelete, ConversationID: "c1", MessageID: "m1"})

	got, ok := r.Store().Find("c1", "m1")
	if !ok {
		t.Fatal("deleted message should stay as a placeholder")
	}
	if !got.Deleted || got.Body != "" || got.DeletedAt == nil {
		t.Fatalf("unexpected deleted message: %+v", got)
	}

	// A late duplicate must not resurrect the content.
	r.ApplyEvent(newEvent(serverMsg("m1", "u2", 1)))
	got, _ = r.Store().Find("c1", "m1")
	if !got.Deleted || got.Body != "" {
		t.Fatalf("deleted message resurrected: %+v", got)
	}
}

func TestReactionAndPinEvents(t *testing.T) {
	r, _ := newTestReconciler(t)
	r.ApplyEvent(newEvent(serverMsg("m1", "u2", 1)))
	pinned := true
	r.ApplyEvent(types.Event{Type: types.EventReactionUpdate, ConversationID: "c1", MessageID: "m1",
		Reactions: []types.Reaction{{Label: "👍", Count: 1}}})
	r.ApplyEvent(types.Event{Type: types.EventPinUpdate, ConversationID: "c1", MessageID: "m1", Pinned: &pinned})

	got, _ := r.Store().Find("c1", "m1")
	if len(got.Reactions) != 1 || !got.Pinned {
		t.Fatalf("unexpected message: %+v", got)
	}
	conversation, _ := r.Store().Conversation("c1")
	if conversation.PinnedMessageID != "m1" {
		t.Fatalf("pinned id = %q", conversation.PinnedMessageID)
	}
}

func TestReadEventMarksOwnMessagesRead(t *testing.T) {
	r, _ := newTestReconciler(t)
	r.ApplyEvent(newEvent(serverMsg("m1", "me", 1)))
	r.ApplyEvent(newEvent(serverMsg("m2", "me", 2)))
	r.ApplyEvent(newEvent(serverMsg("m3", "me", 3)))

	r.ApplyEvent(types.Event{Type: types.EventMessageRead, ConversationID: "c1", UserID: "u2", LastReadMessageID: "m2"})

	want := map[string]types.DeliveryStatus{"m1": types.StatusRead, "m2": types.StatusRead, "m3": types.StatusSent}
	for id, status := range want {
		got, _ := r.Store().Find("c1", id)
		if got.Status != status {
			t.Fatalf("%s status = %s, want %s", id, got.Status, status)
		}
	}
}

func TestPendingMessagesNeverRead(t *testing.T) {
	r, _ := newTestReconciler(t)
	r.ApplyEvent(newEvent(serverMsg("m1", "me", 1)))
	provisional, _, _ := r.BeginSend(Draft{ConversationID: "c1", Body: "pending"})
	r.ApplyEvent(types.Event{Type: types.EventMessageRead, ConversationID: "c1", UserID: "u2", LastReadMessageID: provisional.ID})

	got, _ := r.Store().Find("c1", provisional.ID)
	if got.Status != types.StatusSending {
		t.Fatalf("pending message status = %s", got.Status)
	}
}

func TestTypingIgnoresSelf(t *testing.T) {
	r, _ := newTestReconciler(t)
	r.ApplyEvent(types.Event{Type: types.EventTypingStart, ConversationID: "c1", UserID: "me"})
	r.ApplyEvent(types.Event{Type: types.EventTypingStart, ConversationID: "c1", UserID: "u2"})
	r.ApplyEvent(types.Event{Type: types.EventTypingStart, ConversationID: "c1", UserID: "u2"})

	if got := r.Typing("c1"); len(got) != 1 || got[0] != "u2" {
		t.Fatalf("typing = %v", got)
	}
	if got := r.TypingLabel("c1"); got != "Rui Costa is typing" {
		t.Fatalf("label = %q", got)
	}

	// A message from the typist ends the indicator.
	r.ApplyEvent(newEvent(serverMsg("m1", "u2", 1)))
	if got := r.TypingLabel("c1"); got != "" {
		t.Fatalf("label = %q after message", got)
	}
}

func TestInactiveConversationMention(t *testing.T) {
	r, _ := newTestReconciler(t)
	r.PutConversation(types.Conversation{ID: "c2", Kind: types.ConversationGroup})

	msg := serverMsg("x1", "u2", 1)
	msg.Body = "ping @Maria about this"
	r.ApplyEvent(types.Event{Type: types.EventMessageNew, ConversationID: "c2", Message: &msg})

	conversation, _ := r.Store().Conversation("c2")
	if conversation.Unread != 1 || !conversation.HasUnreadMention {
		t.Fatalf("unexpected conversation state: %+v", conversation)
	}

	r.Activate("c2")
	conversation, _ = r.Store().Conversation("c2")
	if conversation.HasUnreadMention {
		t.Fatal("activation should clear the mention flag")
	}
}

func TestOlderPageRejected(t *testing.T) {
	r, rec := newTestReconciler(t)
	if _, err := r.ApplyLatestPage("c1", types.Page{
		Items:      []types.Message{serverMsg("e", "u2", 10), serverMsg("f", "u2", 11)},
		NextCursor: "cur-1",
	}); err != nil {
		t.Fatalf("latest page: %v", err)
	}

	_, err := r.ApplyOlderPage("c1", types.Page{
		Items:      []types.Message{serverMsg("d", "u2", 9), serverMsg("g", "u2", 12)},
		NextCursor: "cur-2",
	})
	if !errors.Is(err, core.ErrOutOfOrderPage) {
		t.Fatalf("expected OUT_OF_ORDER_PAGE, got %v", err)
	}
	if rec.rejected != 1 {
		t.Fatal("expected rejected page to be counted")
	}
	if c := r.Store().Cursor("c1"); c.NextCursor != "cur-1" {
		t.Fatalf("cursor moved to %q", c.NextCursor)
	}
	if r.Store().Len("c1") != 2 {
		t.Fatal("timeline changed")
	}
}

func TestEditRoundTrip(t *testing.T) {
	r, _ := newTestReconciler(t)
	r.ApplyEvent(newEvent(serverMsg("m1", "me", 1)))

	prev, _, err := r.BeginEdit("c1", "m1", "fixed")
	if err != nil {
		t.Fatalf("begin edit: %v", err)
	}
	got, _ := r.Store().Find("c1", "m1")
	if got.Body != "fixed" || !got.Edited {
		t.Fatalf("unexpected edited message: %+v", got)
	}

	r.RevertEdit("c1", prev)
	got, _ = r.Store().Find("c1", "m1")
	if got.Body != prev.Body || got.Edited {
		t.Fatalf("revert failed: %+v", got)
	}

	provisional, _, _ := r.BeginSend(Draft{ConversationID: "c1", Body: "pending"})
	if _, _, err := r.BeginEdit("c1", provisional.ID, "nope"); !errors.Is(err, core.ErrValidation) {
		t.Fatalf("expected validation error for pending edit, got %v", err)
	}
}

func TestLatestPageKeepsOlderHistory(t *testing.T) {
	r, _ := newTestReconciler(t)
	if _, err := r.ApplyLatestPage("c1", types.Page{
		Items:      []types.Message{serverMsg("e", "u2", 10), serverMsg("f", "u2", 11)},
		NextCursor: "cur-1",
	}); err != nil {
		t.Fatalf("latest page: %v", err)
	}
	if _, err := r.ApplyOlderPage("c1", types.Page{
		Items:      []types.Message{serverMsg("c", "u2", 8), serverMsg("d", "u2", 9)},
		NextCursor: "cur-2",
	}); err != nil {
		t.Fatalf("older page: %v", err)
	}

	delta, err := r.ApplyLatestPage("c1", types.Page{
		Items:      []types.Message{serverMsg("f", "u2", 11), serverMsg("g", "u2", 12)},
		NextCursor: "cur-x",
	})
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if got := r.Store().Len("c1"); got != 5 {
		t.Fatalf("expected 5 messages after refresh, got %d", got)
	}
	if c := r.Store().Cursor("c1"); c.NextCursor != "cur-2" {
		t.Fatalf("cursor: got %q want cur-2", c.NextCursor)
	}
	if delta.Restarted || len(delta.Added) != 1 {
		t.Fatalf("unexpected delta: %+v", delta)
	}

	delta, err = r.ApplyLatestPage("c1", types.Page{
		Items:      []types.Message{serverMsg("x", "u2", 50)},
		NextCursor: "cur-y",
	})
	if err != nil {
		t.Fatalf("restart: %v", err)
	}
	if !delta.Restarted || r.Store().Len("c1") != 1 {
		t.Fatalf("expected a restart, got %+v len=%d", delta, r.Store().Len("c1"))
	}
	if c := r.Store().Cursor("c1"); c.NextCursor != "cur-y" {
		t.Fatalf("cursor: got %q want cur-y", c.NextCursor)
	}
}
