package tui

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/bubbles/cursor"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/ansi"

	"github.com/nuno7lopes-collab/ORYA-WebApp-sub012/internal/actionmenu"
	"github.com/nuno7lopes-collab/ORYA-WebApp-sub012/internal/chatview"
	"github.com/nuno7lopes-collab/ORYA-WebApp-sub012/internal/types"
	"github.com/nuno7lopes-collab/ORYA-WebApp-sub012/internal/viewport"
)

var base = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type fakeAPI struct {
	pages    map[string]types.Page
	sent     []chatview.SendRequest
	receipts []string
}

func (f *fakeAPI) LoadMessages(_ context.Context, conversationID, cursor string) (types.Page, error) {
	page, ok := f.pages[conversationID+"|"+cursor]
	if !ok {
		return types.Page{}, fmt.Errorf("no page %s|%s", conversationID, cursor)
	}
	return page, nil
}

func (f *fakeAPI) SendMessage(_ context.Context, req chatview.SendRequest) (types.Message, error) {
	f.sent = append(f.sent, req)
	return types.Message{
		ID:               fmt.Sprintf("s%d", len(f.sent)),
		ConversationID:   req.ConversationID,
		AuthorID:         "me",
		Body:             req.Body,
		CreatedAt:        base.Add(time.Hour),
		Status:           types.StatusSent,
		CorrelationToken: req.CorrelationToken,
	}, nil
}

func (f *fakeAPI) MarkRead(_ context.Context, conversationID, lastReadMessageID string) error {
	f.receipts = append(f.receipts, conversationID+"|"+lastReadMessageID)
	return nil
}

type fakeObserver struct {
	states   []types.ConnectionState
	receipts int
}

func (f *fakeObserver) SetConnection(state types.ConnectionState) { f.states = append(f.states, state) }
func (f *fakeObserver) ReceiptSent()                              { f.receipts++ }

func page(conversationID string, n int) types.Page {
	items := make([]types.Message, n)
	for i := range items {
		items[i] = types.Message{
			ID:             fmt.Sprintf("m%d", i),
			ConversationID: conversationID,
			AuthorID:       "u2",
			Body:           fmt.Sprintf("message %d", i),
			CreatedAt:      base.Add(time.Duration(i) * time.Minute),
			Status:         types.StatusSent,
		}
	}
	return types.Page{Items: items}
}

type harness struct {
	model    *Model
	api      *fakeAPI
	observer *fakeObserver
	copied   []string
}

func newHarness(t *testing.T, unread, n int) *harness {
	t.Helper()
	h := &harness{
		api:      &fakeAPI{pages: map[string]types.Page{"c1|": page("c1", n), "c2|": page("c2", 2)}},
		observer: &fakeObserver{},
	}
	ctl := chatview.New(chatview.Collaborators{History: h.api, Send: h.api, Receipts: h.api}, chatview.Options{
		ViewerID:      "me",
		Viewport:      ViewportConfig(viewport.DefaultConfig()),
		MenuThreshold: MenuThreshold,
		Now:           func() time.Time { return base.Add(2 * time.Hour) },
		Tick: func(time.Duration, func(time.Time) tea.Msg) tea.Cmd {
			return nil
		},
	})
	ctl.PutConversation(types.Conversation{
		ID:      "c1",
		Title:   "Staff",
		Members: []types.Member{{UserID: "me"}, {UserID: "u2", FullName: "Rui Costa"}},
		Unread:  unread,
	})
	ctl.PutConversation(types.Conversation{ID: "c2", Title: "Bar"})

	h.model = NewModel(Options{
		Controller:     ctl,
		ConversationID: "c1",
		ViewerID:       "me",
		Observer:       h.observer,
		Now:            func() time.Time { return base.Add(2 * time.Hour) },
		Copy: func(text string) error {
			h.copied = append(h.copied, text)
			return nil
		},
	})
	h.model.input.Cursor.SetMode(cursor.CursorStatic)
	h.update(tea.WindowSizeMsg{Width: 80, Height: 24})
	h.drain(h.model.Init())
	return h
}

// update feeds msg to the model and runs the controller work it returns.
func (h *harness) update(msg tea.Msg) {
	_, cmd := h.model.Update(msg)
	h.drain(cmd)
}

func (h *harness) drain(cmd tea.Cmd) {
	if cmd == nil {
		return
	}
	switch msg := cmd().(type) {
	case tea.BatchMsg:
		for _, c := range msg {
			h.drain(c)
		}
	case chatview.HistoryLoadedMsg, chatview.MembersLoadedMsg, chatview.SendResultMsg,
		chatview.ReceiptResultMsg, chatview.DeleteResultMsg, chatview.PinResultMsg:
		h.update(msg)
	}
}

func (h *harness) key(k tea.KeyType) {
	h.update(tea.KeyMsg{Type: k})
}

func (h *harness) typeText(text string) {
	h.update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(text)})
}

func TestActivationRendersTimeline(t *testing.T) {
	h := newHarness(t, 0, 5)
	view := ansi.Strip(h.model.View())
	for _, want := range []string{"Staff", "message 0", "message 4", "Rui Costa", "[RC]"} {
		if !strings.Contains(view, want) {
			t.Fatalf("view missing %q:\n%s", want, view)
		}
	}
	if strings.Contains(view, "New messages") {
		t.Fatalf("no divider expected when everything is read")
	}
}

func TestActivationScrollsToUnreadDivider(t *testing.T) {
	h := newHarness(t, 20, 30)
	m := h.model
	if m.markerLine < 0 {
		t.Fatalf("expected the unread divider to be rendered")
	}
	if got, want := m.viewport.YOffset, m.markerLine-2; got != want {
		t.Fatalf("offset: got %d want %d", got, want)
	}
	if !strings.Contains(ansi.Strip(m.View()), "New messages") {
		t.Fatalf("divider not visible")
	}
}

func TestSendFromInput(t *testing.T) {
	h := newHarness(t, 0, 5)
	h.typeText("hello there")
	if got := h.model.ctl.Composer().Draft(); got != "hello there" {
		t.Fatalf("draft: got %q", got)
	}
	h.key(tea.KeyEnter)

	if len(h.api.sent) != 1 || h.api.sent[0].Body != "hello there" {
		t.Fatalf("sent: %+v", h.api.sent)
	}
	if h.model.input.Value() != "" {
		t.Fatalf("input not cleared: %q", h.model.input.Value())
	}
	timeline := h.model.ctl.Timeline()
	last := timeline[len(timeline)-1]
	if last.ID != "s1" || last.Status != types.StatusSent {
		t.Fatalf("last message: %+v", last)
	}
}

func TestEmptySendShowsStatus(t *testing.T) {
	h := newHarness(t, 0, 5)
	h.key(tea.KeyEnter)
	if len(h.api.sent) != 0 {
		t.Fatalf("empty draft must not be sent")
	}
	if h.model.status == "" {
		t.Fatalf("expected a status explaining the rejection")
	}
}

func TestSelectionCopyAndMenu(t *testing.T) {
	h := newHarness(t, 0, 5)
	h.key(tea.KeyUp)
	if h.model.selected != "m4" {
		t.Fatalf("selected: got %q", h.model.selected)
	}
	h.key(tea.KeyUp)
	if h.model.selected != "m3" {
		t.Fatalf("selected: got %q", h.model.selected)
	}
	h.key(tea.KeyCtrlY)
	if len(h.copied) != 1 || h.copied[0] != "message 3" {
		t.Fatalf("copied: %v", h.copied)
	}

	h.key(tea.KeyCtrlO)
	open, ok := h.model.ctl.Menu().Current()
	if !ok || open.MessageID != "m3" || open.Kind != actionmenu.KindMenu {
		t.Fatalf("menu: %+v %v", open, ok)
	}
	if !strings.Contains(ansi.Strip(h.model.View()), "reply") {
		t.Fatalf("menu items not rendered")
	}
	// copy, reply: the second entry starts a reply.
	h.key(tea.KeyRight)
	h.key(tea.KeyEnter)
	if _, ok := h.model.ctl.Menu().Current(); ok {
		t.Fatalf("menu should close after an action")
	}
	reply, ok := h.model.ctl.Composer().ReplyTarget()
	if !ok || reply.MessageID != "m3" {
		t.Fatalf("reply target: %+v %v", reply, ok)
	}
	h.key(tea.KeyEsc)
	if _, ok := h.model.ctl.Composer().ReplyTarget(); ok {
		t.Fatalf("esc should drop the reply target")
	}
}

func TestMenuClosesOnEsc(t *testing.T) {
	h := newHarness(t, 0, 5)
	h.key(tea.KeyUp)
	h.key(tea.KeyCtrlO)
	h.key(tea.KeyEsc)
	if _, ok := h.model.ctl.Menu().Current(); ok {
		t.Fatalf("menu still open")
	}
	if h.model.selected != "m4" {
		t.Fatalf("closing the menu must keep the selection")
	}
}

func TestStreamMessagesReachObserver(t *testing.T) {
	h := newHarness(t, 0, 5)
	h.update(streamMsg{msg: chatview.ConnectionMsg{State: types.ConnectionReconnecting}})
	h.update(streamMsg{msg: chatview.EventMsg{Event: types.Event{
		Type:           types.EventMessageNew,
		ConversationID: "c1",
		Message: &types.Message{
			ID: "m5", ConversationID: "c1", AuthorID: "u2", Body: "late news",
			CreatedAt: base.Add(10 * time.Minute), Status: types.StatusSent,
		},
	}}})

	if len(h.observer.states) != 1 || h.observer.states[0] != types.ConnectionReconnecting {
		t.Fatalf("states: %v", h.observer.states)
	}
	if !strings.Contains(ansi.Strip(h.model.View()), "late news") {
		t.Fatalf("streamed message not rendered")
	}
}

func TestCycleConversation(t *testing.T) {
	h := newHarness(t, 0, 5)
	h.key(tea.KeyCtrlN)
	if got := h.model.ctl.Active(); got != "c2" {
		t.Fatalf("active: got %q", got)
	}
	if !strings.Contains(ansi.Strip(h.model.View()), "Bar") {
		t.Fatalf("header not switched")
	}
}

func TestAlignStatusLine(t *testing.T) {
	tests := []struct {
		name  string
		left  string
		right string
		width int
		want  string
	}{
		{"fits", "ab", "cd", 6, "ab  cd"},
		{"no width", "ab", "cd", 0, "ab"},
		{"too narrow", "abcdefgh", "ij", 6, "abcde…"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := alignStatusLine(tt.left, tt.right, tt.width); got != tt.want {
				t.Fatalf("got %q want %q", got, tt.want)
			}
		})
	}
}

func TestAuthorColorStable(t *testing.T) {
	if authorColor("u2") != authorColor("u2") {
		t.Fatalf("color must be stable per user")
	}
}
