package composer

import (
	"errors"
	"fmt"
	"testing"

	"github.com/nuno7lopes-collab/ORYA-WebApp-sub012/internal/core"
	"github.com/nuno7lopes-collab/ORYA-WebApp-sub012/internal/types"
)

func testMembers() []types.Member {
	return []types.Member{
		{UserID: "me", FullName: "Maria Silva"},
		{UserID: "u2", FullName: "Rui Costa"},
		{UserID: "u3", FullName: "Marta Reis"},
		{UserID: "u4", Username: "marco"},
	}
}

func newTestSession() *Session {
	s := NewSession("me", 0)
	s.Switch("c1", testMembers())
	return s
}

func TestTypingBurstEmitsOneStartOneStop(t *testing.T) {
	s := newTestSession()
	starts, stops := 0, 0
	var lastSeq uint64
	var armed []uint64
	for i := 1; i <= 8; i++ {
		change := s.SetDraft(fmt.Sprintf("hello %d", i))
		if change.Start != nil {
			starts++
		}
		if change.Stop != nil {
			stops++
		}
		armed = append(armed, change.IdleSeq)
		lastSeq = change.IdleSeq
	}
	// Every timer fires; only the one armed by the last keystroke counts.
	for _, seq := range armed {
		if stop := s.ExpireTyping(seq); stop != nil {
			stops++
			if seq != lastSeq {
				t.Fatalf("stale timer %d emitted a stop", seq)
			}
			if stop.Kind != types.TypingStop || stop.ConversationID != "c1" {
				t.Fatalf("unexpected stop: %+v", stop)
			}
		}
	}
	if starts != 1 || stops != 1 {
		t.Fatalf("starts=%d stops=%d, want 1 and 1", starts, stops)
	}
	if s.Blur() != nil {
		t.Fatal("blur after expiry must not emit another stop")
	}
}

func TestTypingStopsOnSendBlurAndSwitch(t *testing.T) {
	tests := []struct {
		name string
		end  func(s *Session) *types.TypingSignal
	}{
		{"send", func(s *Session) *types.TypingSignal {
			sub, err := s.Submit()
			if err != nil {
				t.Fatalf("submit: %v", err)
			}
			return sub.Stop
		}},
		{"blur", func(s *Session) *types.TypingSignal { return s.Blur() }},
		{"switch", func(s *Session) *types.TypingSignal { return s.Switch("c2", nil) }},
		{"close", func(s *Session) *types.TypingSignal { return s.Close() }},
		{"cleared", func(s *Session) *types.TypingSignal { return s.SetDraft("").Stop }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := newTestSession()
			change := s.SetDraft("hey")
			stop := tc.end(s)
			if stop == nil || stop.ConversationID != "c1" {
				t.Fatalf("expected stop for c1, got %+v", stop)
			}
			if s.ExpireTyping(change.IdleSeq) != nil {
				t.Fatal("timer after the stop must be ignored")
			}
			if s.Blur() != nil {
				t.Fatal("duplicate stop")
			}
		})
	}
}

func TestMentionSuggestions(t *testing.T) {
	s := newTestSession()

	change := s.SetDraft("hi @ma")
	want := "[Marta Reis @marco]"
	if got := fmt.Sprint(change.Suggestions); got != want {
		t.Fatalf("suggestions = %s, want %s", got, want)
	}

	if err := s.AcceptMention("Marta Reis"); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if s.Draft() != "hi @Marta Reis " {
		t.Fatalf("draft = %q", s.Draft())
	}
	if len(s.Suggestions()) != 0 {
		t.Fatal("panel should close after accept")
	}

	s.SetDraft("email@ma")
	if len(s.Suggestions()) != 0 {
		t.Fatal("@ inside a word must not open suggestions")
	}
}

func TestAcceptSelected(t *testing.T) {
	s := newTestSession()
	s.SetDraft("@")
	if n := len(s.Suggestions()); n != 3 {
		t.Fatalf("expected 3 candidates excluding self, got %d", n)
	}
	s.MoveSelection(-1)
	if s.Selected() != 2 {
		t.Fatalf("selection = %d", s.Selected())
	}
	if err := s.AcceptSelected(); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if s.Draft() != "@marco " {
		t.Fatalf("draft = %q", s.Draft())
	}
}

func TestAcceptMentionValidation(t *testing.T) {
	s := newTestSession()
	s.SetDraft("hi @ru")
	if err := s.AcceptMention("Marta Reis"); !errors.Is(err, core.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if err := s.AcceptSelected(); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if err := s.AcceptSelected(); !errors.Is(err, core.ErrValidation) {
		t.Fatalf("expected validation error with no panel, got %v", err)
	}
}

func TestSubmitValidation(t *testing.T) {
	tests := []struct {
		name  string
		draft string
	}{
		{"empty", ""},
		{"whitespace", "   \n"},
		{"bare mention", "ping @"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := newTestSession()
			s.SetDraft(tc.draft)
			if _, err := s.Submit(); !errors.Is(err, core.ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
			if s.Draft() != tc.draft {
				t.Fatal("failed submit must keep the draft")
			}
		})
	}
}

func TestReplyAndSubmit(t *testing.T) {
	s := newTestSession()
	target := types.Message{ID: "m1", AuthorID: "u2", Body: "original", Status: types.StatusSent}
	if err := s.Reply(target); err != nil {
		t.Fatalf("reply: %v", err)
	}
	s.SetDraft("answer")
	sub, err := s.Submit()
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if sub.Kind != SubmitSend || sub.ReplyTo == nil || sub.ReplyTo.MessageID != "m1" || sub.Body != "answer" {
		t.Fatalf("unexpected submission: %+v", sub)
	}
	if _, ok := s.ReplyTarget(); ok || s.Draft() != "" {
		t.Fatal("submit should reset the composer")
	}

	if err := s.Reply(types.Message{ID: "p", Status: types.StatusFailed}); !errors.Is(err, core.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestEditSession(t *testing.T) {
	s := newTestSession()
	s.SetDraft("unfinished")

	own := types.Message{ID: "m1", AuthorID: "me", Body: "typo", Status: types.StatusSent}
	if err := s.StartEdit(own); err != nil {
		t.Fatalf("start edit: %v", err)
	}
	other := types.Message{ID: "m2", AuthorID: "me", Body: "second", Status: types.StatusDelivered}
	if err := s.StartEdit(other); err != nil {
		t.Fatalf("start second edit: %v", err)
	}
	if id, _ := s.Editing(); id != "m2" {
		t.Fatalf("editing %q, want m2", id)
	}

	s.SetDraft("second, fixed")
	sub, err := s.Submit()
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if sub.Kind != SubmitEdit || sub.EditID != "m2" || sub.Body != "second, fixed" {
		t.Fatalf("unexpected submission: %+v", sub)
	}
	if s.Draft() != "unfinished" {
		t.Fatalf("draft = %q, want the pre-edit draft", s.Draft())
	}

	for _, msg := range []types.Message{
		{ID: "p", AuthorID: "me", Status: types.StatusSending},
		{ID: "f", AuthorID: "me", Status: types.StatusFailed},
		{ID: "x", AuthorID: "u2", Status: types.StatusSent},
	} {
		if err := s.StartEdit(msg); !errors.Is(err, core.ErrValidation) {
			t.Fatalf("%s: expected validation error, got %v", msg.ID, err)
		}
	}
}

func TestSwitchResetsDraft(t *testing.T) {
	s := newTestSession()
	s.SetDraft("draft for c1")
	_ = s.Reply(types.Message{ID: "m1", Status: types.StatusSent})
	s.Switch("c2", nil)
	if s.Draft() != "" || s.ConversationID() != "c2" {
		t.Fatal("switch should reset the draft")
	}
	if _, ok := s.ReplyTarget(); ok {
		t.Fatal("switch should drop the reply target")
	}
}
