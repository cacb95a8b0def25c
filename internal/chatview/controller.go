// Package chatview drives one conversation screen. It owns the event loop
// side of the synchronizer: results of network calls, stream events, scroll
// reports and timers all enter through Update, and every store write happens
// there through the reconciler.
package chatview

import (
	"context"
	"log/slog"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/nuno7lopes-collab/ORYA-WebApp-sub012/internal/actionmenu"
	"github.com/nuno7lopes-collab/ORYA-WebApp-sub012/internal/composer"
	"github.com/nuno7lopes-collab/ORYA-WebApp-sub012/internal/core"
	"github.com/nuno7lopes-collab/ORYA-WebApp-sub012/internal/reconcile"
	"github.com/nuno7lopes-collab/ORYA-WebApp-sub012/internal/timeline"
	"github.com/nuno7lopes-collab/ORYA-WebApp-sub012/internal/types"
	"github.com/nuno7lopes-collab/ORYA-WebApp-sub012/internal/viewport"
)

// DefaultReceiptInterval is how long a receipt for the same message is suppressed.
const DefaultReceiptInterval = 1500 * time.Millisecond

// ViewState is the coarse state of the screen.
type ViewState string

const (
	StateEmpty      ViewState = "empty"
	StateNoMessages ViewState = "no-messages"
	StateDefault    ViewState = "default"
)

// Options configures a Controller.
type Options struct {
	ViewerID string
	Username string
	FullName string

	Viewport      viewport.Config
	MenuThreshold float64
	TypingIdle    time.Duration
	ReceiptEvery  time.Duration
	// ShowConnectionBanner surfaces reconnecting/offline in Banner.
	ShowConnectionBanner bool

	Logger   *slog.Logger
	Recorder reconcile.Recorder
	Now      func() time.Time
	// Tick arms timers. It defaults to tea.Tick.
	Tick func(time.Duration, func(time.Time) tea.Msg) tea.Cmd
	// Context bounds every request. It defaults to context.Background.
	Context context.Context
}

// Banner is the single user-visible notice area of the screen.
type Banner struct {
	Error              string
	Connection         types.ConnectionState
	NewMessagesDivider bool
	JumpToLatest       bool
	PendingNewCount    int
}

type receiptThrottle struct {
	messageID string
	limiter   *rate.Limiter
}

// Controller is the conversation screen state. It is not safe for
// concurrent use; call it from the bubbletea loop only.
type Controller struct {
	opts   Options
	apis   Collaborators
	logger *slog.Logger
	now    func() time.Time
	tick   func(time.Duration, func(time.Time) tea.Msg) tea.Cmd

	rec      *reconcile.Reconciler
	vpc      viewport.Controller
	vp       viewport.State
	composer *composer.Session
	menu     actionmenu.State

	root   context.Context
	ctx    context.Context
	cancel context.CancelFunc

	active         string
	generation     uint64
	placed         bool
	loadingLatest  bool
	loadingOlder   bool
	awaitingAnchor bool
	seq            map[Purpose]uint64
	flight         singleflight.Group
	receipts       map[string]*receiptThrottle
	offsets        map[string]float64
	metrics        viewport.Metrics
	foreground     bool
	connection     types.ConnectionState
	errorBanner    string
	scroll         viewport.Effects
}

// New builds a Controller with an empty store.
func New(apis Collaborators, opts Options) *Controller {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Tick == nil {
		opts.Tick = tea.Tick
	}
	if opts.Context == nil {
		opts.Context = context.Background()
	}
	if opts.ReceiptEvery <= 0 {
		opts.ReceiptEvery = DefaultReceiptInterval
	}
	if opts.Viewport == (viewport.Config{}) {
		opts.Viewport = viewport.DefaultConfig()
	}
	logger := core.OrDiscard(opts.Logger)

	rec := reconcile.New(timeline.NewStore(), opts.ViewerID,
		reconcile.WithLogger(logger),
		reconcile.WithRecorder(opts.Recorder),
		reconcile.WithClock(opts.Now),
		reconcile.WithViewerNames(opts.Username, opts.FullName),
	)
	ctx, cancel := context.WithCancel(opts.Context)
	return &Controller{
		opts:       opts,
		apis:       apis,
		logger:     logger,
		now:        opts.Now,
		tick:       opts.Tick,
		rec:        rec,
		vpc:        viewport.New(opts.Viewport),
		vp:         viewport.State{UnreadMarker: timeline.NoMarker, AtBottom: true},
		composer:   composer.NewSession(opts.ViewerID, opts.TypingIdle),
		menu:       actionmenu.New(opts.MenuThreshold),
		root:       opts.Context,
		ctx:        ctx,
		cancel:     cancel,
		seq:        make(map[Purpose]uint64),
		receipts:   make(map[string]*receiptThrottle),
		offsets:    make(map[string]float64),
		foreground: true,
		connection: types.ConnectionConnected,
	}
}

// Reconciler exposes the mutation gateway, e.g. for seeding conversations.
func (c *Controller) Reconciler() *reconcile.Reconciler {
	return c.rec
}

// Composer exposes the draft state for rendering.
func (c *Controller) Composer() *composer.Session {
	return c.composer
}

// Menu returns the action menu state.
func (c *Controller) Menu() actionmenu.State {
	return c.menu
}

// Viewport returns the scroll state.
func (c *Controller) Viewport() viewport.State {
	return c.vp
}

// ViewportConfig returns the thresholds in use.
func (c *Controller) ViewportConfig() viewport.Config {
	return c.vpc.Config()
}

// PutConversation registers a conversation from the conversation list.
func (c *Controller) PutConversation(conversation types.Conversation) {
	c.rec.PutConversation(conversation)
	if conversation.ID == c.active {
		c.composer.SetMembers(conversation.Members)
	}
}

// Active returns the id of the open conversation.
func (c *Controller) Active() string {
	return c.active
}

// Conversation returns the open conversation.
func (c *Controller) Conversation() (types.Conversation, bool) {
	if c.active == "" {
		return types.Conversation{}, false
	}
	return c.rec.Store().Conversation(c.active)
}

// Conversations returns every known conversation, ordered by id.
func (c *Controller) Conversations() []types.Conversation {
	ids := c.rec.Store().ConversationIDs()
	out := make([]types.Conversation, 0, len(ids))
	for _, id := range ids {
		if conversation, ok := c.rec.Store().Conversation(id); ok {
			out = append(out, conversation)
		}
	}
	return out
}

// Timeline returns the ordered messages of the open conversation.
func (c *Controller) Timeline() []types.Message {
	if c.active == "" {
		return nil
	}
	return c.rec.Store().Timeline(c.active)
}

// UnreadMarker returns the index of the first unread message, or timeline.NoMarker.
func (c *Controller) UnreadMarker() int {
	if c.active == "" {
		return timeline.NoMarker
	}
	store := c.rec.Store()
	if cursor := store.Cursor(c.active); cursor.HasMarker(store.Len(c.active)) {
		return cursor.UnreadMarker
	}
	return timeline.NoMarker
}

// TypingLabel names who is typing in the open conversation.
func (c *Controller) TypingLabel() string {
	return c.rec.TypingLabel(c.active)
}

// PendingNewCount is the number of messages that arrived below the viewport.
func (c *Controller) PendingNewCount() int {
	return c.vp.PendingNewCount
}

// Pinned returns the pinned message of the open conversation.
func (c *Controller) Pinned() (types.Message, bool) {
	conversation, ok := c.Conversation()
	if !ok {
		return types.Message{}, false
	}
	if conversation.PinnedMessageID != "" {
		if msg, ok := c.rec.Store().Find(c.active, conversation.PinnedMessageID); ok && !msg.Deleted {
			return msg, true
		}
	}
	messages := c.rec.Store().Timeline(c.active)
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Pinned && !messages[i].Deleted {
			return messages[i], true
		}
	}
	return types.Message{}, false
}

// Loading reports whether the first page of the open conversation is pending.
func (c *Controller) Loading() bool {
	return c.active != "" && !c.placed
}

// LoadingOlder reports whether an older page is in flight.
func (c *Controller) LoadingOlder() bool {
	return c.loadingOlder
}

// HasMoreHistory reports whether older pages exist.
func (c *Controller) HasMoreHistory() bool {
	return c.active != "" && c.rec.Store().Cursor(c.active).HasMore
}

// State returns the coarse screen state.
func (c *Controller) State() ViewState {
	switch {
	case c.active == "":
		return StateEmpty
	case c.rec.Store().Len(c.active) == 0:
		return StateNoMessages
	}
	return StateDefault
}

// Connection returns the last reported channel state.
func (c *Controller) Connection() types.ConnectionState {
	return c.connection
}

// Banner returns what the notice area should show.
func (c *Controller) Banner() Banner {
	vb := c.vpc.Banners(c.vp)
	b := Banner{
		Error:              c.errorBanner,
		NewMessagesDivider: vb.NewMessagesDivider,
		JumpToLatest:       vb.JumpToLatest,
		PendingNewCount:    vb.PendingNewCount,
	}
	if c.opts.ShowConnectionBanner && c.connection != types.ConnectionConnected {
		b.Connection = c.connection
	}
	return b
}

// DismissBanner clears the error notice.
func (c *Controller) DismissBanner() {
	c.errorBanner = ""
}

// TakeScroll returns and clears the scroll instructions queued for the adapter.
func (c *Controller) TakeScroll() viewport.Effects {
	fx := c.scroll
	c.scroll = viewport.Effects{}
	return fx
}

// Close stops typing and cancels requests of the open conversation.
func (c *Controller) Close() tea.Cmd {
	stop := c.typingCmd(c.composer.Close())
	if c.cancel != nil {
		c.cancel()
	}
	return stop
}

func (c *Controller) nextSeq(p Purpose) uint64 {
	c.seq[p]++
	return c.seq[p]
}

func (c *Controller) current(p Purpose, conversationID string, seq uint64) bool {
	return conversationID == c.active && seq == c.seq[p]
}

func (c *Controller) fail(op string, err error) {
	c.logger.Warn(op, "conversation", c.active, "err", err)
	c.errorBanner = bannerText(op)
}

func bannerText(op string) string {
	switch op {
	case "load history":
		return "Could not load messages."
	case "load members":
		return "Could not load members."
	case "edit":
		return "Could not edit the message."
	case "delete":
		return "Could not delete the message."
	case "react":
		return "Could not update the reaction."
	case "pin":
		return "Could not update the pin."
	case "notifications":
		return "Could not update notifications."
	}
	return "Something went wrong."
}
