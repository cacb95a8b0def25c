package chatview

import (
	"context"
	"errors"
	"strconv"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/time/rate"

	"github.com/nuno7lopes-collab/ORYA-WebApp-sub012/internal/actionmenu"
	"github.com/nuno7lopes-collab/ORYA-WebApp-sub012/internal/composer"
	"github.com/nuno7lopes-collab/ORYA-WebApp-sub012/internal/core"
	"github.com/nuno7lopes-collab/ORYA-WebApp-sub012/internal/reconcile"
	"github.com/nuno7lopes-collab/ORYA-WebApp-sub012/internal/timeline"
	"github.com/nuno7lopes-collab/ORYA-WebApp-sub012/internal/types"
	"github.com/nuno7lopes-collab/ORYA-WebApp-sub012/internal/viewport"
)

var errOffline = errors.New("offline")

func newReceiptLimiter(every time.Duration) *rate.Limiter {
	return rate.NewLimiter(rate.Every(every), 1)
}

// Activate opens conversationID. The previous conversation's typing burst is
// stopped, its requests are cancelled and its prepend anchor is dropped.
func (c *Controller) Activate(conversationID string) tea.Cmd {
	if conversationID == c.active {
		return nil
	}
	if c.active != "" {
		if c.vp.AtBottom {
			delete(c.offsets, c.active)
		} else {
			c.offsets[c.active] = c.metrics.ScrollTop
		}
	}
	c.cancel()
	c.ctx, c.cancel = context.WithCancel(c.root)
	c.generation++

	conversation, _ := c.rec.Store().Conversation(conversationID)
	cmds := []tea.Cmd{c.typingCmd(c.composer.Switch(conversationID, conversation.Members))}
	c.menu = c.menu.Close()
	c.active = conversationID
	c.vp = viewport.State{ConversationID: conversationID, AtBottom: true, UnreadMarker: timeline.NoMarker, Foreground: c.foreground}
	c.placed = false
	c.loadingLatest = false
	c.loadingOlder = false
	c.awaitingAnchor = false
	c.errorBanner = ""
	c.metrics = viewport.Metrics{}
	c.scroll = viewport.Effects{}
	if conversationID == "" {
		return tea.Batch(cmds...)
	}

	c.rec.Activate(conversationID)
	c.logger.Debug("activate conversation", "conversation", conversationID)
	if c.rec.Store().Cursor(conversationID).Loaded || c.apis.History == nil {
		cmds = append(cmds, c.place())
	}
	cmds = append(cmds, c.loadLatest())
	if len(conversation.Members) == 0 {
		cmds = append(cmds, c.loadMembers())
	}
	return tea.Batch(cmds...)
}

// place runs the one-time viewport placement of the activation.
func (c *Controller) place() tea.Cmd {
	conversation, _ := c.rec.Store().Conversation(c.active)
	var saved *float64
	if offset, ok := c.offsets[c.active]; ok {
		saved = &offset
	}
	state, fx := c.vpc.Activate(viewport.Activation{
		ConversationID: c.active,
		Len:            c.rec.Store().Len(c.active),
		Unread:         conversation.Unread,
		SavedOffset:    saved,
		Foreground:     c.foreground,
	})
	c.vp = state
	c.placed = true
	return c.apply(fx)
}

// Refreshing reports whether a latest-page load is in flight.
func (c *Controller) Refreshing() bool {
	return c.loadingLatest
}

func (c *Controller) loadLatest() tea.Cmd {
	if c.apis.History == nil || c.active == "" {
		return nil
	}
	c.loadingLatest = true
	return c.historyCmd(c.ctx, c.active, "", PurposeLatest, c.nextSeq(PurposeLatest))
}

// LoadMoreHistory requests the next older page of the open conversation and
// anchors the viewport for it. It does nothing while a page is in flight or
// when no older page exists.
func (c *Controller) LoadMoreHistory() tea.Cmd {
	if c.active == "" || c.loadingOlder || c.apis.History == nil {
		return nil
	}
	cursor := c.rec.Store().Cursor(c.active)
	if !cursor.Loaded || !cursor.HasMore {
		return nil
	}
	c.vp = c.vpc.BeginPrepend(c.vp, c.metrics)
	c.loadingOlder = true
	return c.historyCmd(c.ctx, c.active, cursor.NextCursor, PurposeOlder, c.nextSeq(PurposeOlder))
}

func (c *Controller) historyCmd(ctx context.Context, conversationID, cursor string, p Purpose, seq uint64) tea.Cmd {
	api := c.apis.History
	flight := &c.flight
	// Calls are shared within one activation only; a later activation must
	// not join a call bound to a cancelled context.
	key := strconv.FormatUint(c.generation, 10) + "\x00" + conversationID + "\x00" + cursor
	return func() tea.Msg {
		v, err, _ := flight.Do(key, func() (any, error) {
			page, err := api.LoadMessages(ctx, conversationID, cursor)
			return page, err
		})
		page, _ := v.(types.Page)
		if err != nil && !errors.Is(err, context.Canceled) {
			err = core.Wrap(core.ErrNetwork, "load history", err)
		}
		return HistoryLoadedMsg{ConversationID: conversationID, Purpose: p, Seq: seq, Page: page, Err: err}
	}
}

func (c *Controller) loadMembers() tea.Cmd {
	if c.apis.Directory == nil {
		return nil
	}
	api := c.apis.Directory
	ctx := c.ctx
	conversationID := c.active
	seq := c.nextSeq(PurposeMembers)
	return func() tea.Msg {
		members, err := api.Members(ctx, conversationID)
		return MembersLoadedMsg{ConversationID: conversationID, Seq: seq, Members: members, Err: err}
	}
}

// ContentMeasured reports the content height after a render. A pending
// prepend anchor is resolved against it.
func (c *Controller) ContentMeasured(height float64) {
	c.metrics.ScrollHeight = height
	if !c.awaitingAnchor {
		return
	}
	c.awaitingAnchor = false
	state, fx := c.vpc.ResolvePrepend(c.vp, c.active, height)
	c.vp = state
	if fx.ScrollTo != nil {
		c.scroll = viewport.Effects{ScrollTo: fx.ScrollTo}
	}
}

// Scroll reports a new scroll position.
func (c *Controller) Scroll(m viewport.Metrics) tea.Cmd {
	c.metrics = m
	c.menu = c.menu.OnScroll()
	if c.active == "" || !c.placed {
		return nil
	}
	state, fx := c.vpc.Scroll(c.vp, m)
	c.vp = state
	return c.apply(fx)
}

// ScrollToBottom jumps to the newest message.
func (c *Controller) ScrollToBottom() tea.Cmd {
	if c.active == "" {
		return nil
	}
	state, fx := c.vpc.JumpToLatest(c.vp)
	c.vp = state
	return c.apply(fx)
}

// SetForeground records screen visibility. Receipts are held while hidden.
func (c *Controller) SetForeground(foreground bool) tea.Cmd {
	c.foreground = foreground
	state, fx := c.vpc.SetForeground(c.vp, foreground)
	c.vp = state
	return c.apply(fx)
}

// SetDraft updates the composer text and drives the typing signals.
func (c *Controller) SetDraft(text string) tea.Cmd {
	change := c.composer.SetDraft(text)
	cmds := []tea.Cmd{c.typingCmd(change.Stop), c.typingCmd(change.Start)}
	if c.composer.Typing() && change.IdleSeq > 0 {
		seq := change.IdleSeq
		cmds = append(cmds, c.tick(c.composer.Idle(), func(time.Time) tea.Msg {
			return TypingIdleMsg{Seq: seq}
		}))
	}
	return tea.Batch(cmds...)
}

// Blur stops typing when the composer loses focus.
func (c *Controller) Blur() tea.Cmd {
	return c.typingCmd(c.composer.Blur())
}

func (c *Controller) typingCmd(signal *types.TypingSignal) tea.Cmd {
	if signal == nil || c.apis.Typing == nil {
		return nil
	}
	sender := c.apis.Typing
	ctx := c.root
	sig := *signal
	logger := c.logger
	return func() tea.Msg {
		if err := sender.SendTyping(ctx, sig); err != nil {
			logger.Debug("typing signal", "type", sig.Kind, "conversation", sig.ConversationID, "err", err)
		}
		return nil
	}
}

// Send submits the composer. Edits are routed to Edit; new messages appear
// immediately as provisional entries.
func (c *Controller) Send() (tea.Cmd, error) {
	sub, err := c.composer.Submit()
	if err != nil {
		return nil, err
	}
	stop := c.typingCmd(sub.Stop)
	if sub.Kind == composer.SubmitEdit {
		cmd, err := c.Edit(sub.EditID, sub.Body)
		return tea.Batch(stop, cmd), err
	}
	msg, delta, err := c.rec.BeginSend(reconcile.Draft{
		ConversationID: sub.ConversationID,
		Body:           sub.Body,
		ReplyTo:        sub.ReplyTo,
	})
	if err != nil {
		return stop, err
	}
	grow := c.afterGrowth(delta, true)
	return tea.Batch(stop, grow, c.sendCmd(msg)), nil
}

// sendCmd issues the request for a provisional message. Offline sends fail
// right away.
func (c *Controller) sendCmd(msg types.Message) tea.Cmd {
	conversationID, token := msg.ConversationID, msg.CorrelationToken
	if c.connection == types.ConnectionOffline || c.apis.Send == nil {
		delta := c.rec.FailSend(conversationID, token, core.Wrap(core.ErrSendFailure, "send", errOffline))
		c.afterChange(delta)
		return nil
	}
	req := SendRequest{
		ConversationID:   conversationID,
		Body:             msg.Body,
		Attachments:      msg.Attachments,
		CorrelationToken: token,
	}
	if msg.ReplyTo != nil {
		req.ReplyToMessageID = msg.ReplyTo.MessageID
	}
	api := c.apis.Send
	ctx := c.root
	return func() tea.Msg {
		confirmed, err := api.SendMessage(ctx, req)
		if err != nil {
			err = core.Wrap(core.ErrSendFailure, "send", err)
		}
		return SendResultMsg{ConversationID: conversationID, Token: token, Message: confirmed, Err: err}
	}
}

// Retry resends a failed message under a fresh correlation token.
func (c *Controller) Retry(messageID string) (tea.Cmd, error) {
	c.menu = c.menu.Close()
	msg, delta, err := c.rec.Retry(c.active, messageID)
	if err != nil {
		return nil, err
	}
	grow := c.afterGrowth(delta, true)
	return tea.Batch(grow, c.sendCmd(msg)), nil
}

// Retract removes a message that never reached the server.
func (c *Controller) Retract(messageID string) error {
	c.menu = c.menu.Close()
	delta, err := c.rec.Retract(c.active, messageID)
	if err != nil {
		return err
	}
	c.afterChange(delta)
	return nil
}

// StartEdit loads one of the viewer's messages into the composer.
func (c *Controller) StartEdit(messageID string) error {
	msg, ok := c.rec.Store().Find(c.active, messageID)
	if !ok {
		return core.Validation("edit", "message %s not found", messageID)
	}
	if err := c.composer.StartEdit(msg); err != nil {
		return err
	}
	c.menu = c.menu.Close()
	return nil
}

// CancelEdit leaves edit mode.
func (c *Controller) CancelEdit() {
	c.composer.CancelEdit()
}

// Edit saves a new body for a confirmed message, optimistically.
func (c *Controller) Edit(messageID, body string) (tea.Cmd, error) {
	conversationID := c.active
	prev, _, err := c.rec.BeginEdit(conversationID, messageID, body)
	if err != nil {
		return nil, err
	}
	c.menu = c.menu.Close()
	if c.apis.Mutations == nil {
		return nil, nil
	}
	api := c.apis.Mutations
	ctx := c.root
	return func() tea.Msg {
		updated, err := api.EditMessage(ctx, messageID, body)
		if err != nil {
			err = core.Wrap(core.ErrNetwork, "edit", err)
		}
		return EditResultMsg{ConversationID: conversationID, Prev: prev, Message: updated, Err: err}
	}, nil
}

// Delete removes a message. Unsent messages are retracted locally; sent ones
// are deleted on the server and kept as a placeholder.
func (c *Controller) Delete(messageID string) (tea.Cmd, error) {
	conversationID := c.active
	msg, ok := c.rec.Store().Find(conversationID, messageID)
	if !ok {
		return nil, core.Validation("delete", "message %s not found", messageID)
	}
	c.menu = c.menu.Close()
	if msg.Status.Pending() {
		return nil, c.Retract(messageID)
	}
	if msg.AuthorID != c.opts.ViewerID {
		return nil, core.Validation("delete", "message %s belongs to another member", messageID)
	}
	if c.apis.Mutations == nil {
		return nil, nil
	}
	api := c.apis.Mutations
	ctx := c.root
	return func() tea.Msg {
		err := api.DeleteMessage(ctx, messageID)
		if err != nil {
			err = core.Wrap(core.ErrNetwork, "delete", err)
		}
		return DeleteResultMsg{ConversationID: conversationID, MessageID: messageID, Err: err}
	}, nil
}

// React toggles the viewer's reaction label on a message.
func (c *Controller) React(messageID, label string) (tea.Cmd, error) {
	conversationID := c.active
	msg, ok := c.rec.Store().Find(conversationID, messageID)
	if !ok {
		return nil, core.Validation("react", "message %s not found", messageID)
	}
	if msg.Status.Pending() || msg.Deleted {
		return nil, core.Validation("react", "message %s cannot take reactions", messageID)
	}
	if label == "" {
		return nil, core.Validation("react", "empty reaction")
	}
	c.menu = c.menu.Close()
	remove := false
	for _, r := range msg.Reactions {
		if r.Label == label && r.Active {
			remove = true
		}
	}
	if c.apis.Mutations == nil {
		return nil, nil
	}
	api := c.apis.Mutations
	ctx := c.root
	return func() tea.Msg {
		reactions, err := api.ToggleReaction(ctx, messageID, label, remove)
		if err != nil {
			err = core.Wrap(core.ErrNetwork, "react", err)
		}
		return ReactionResultMsg{
			ConversationID: conversationID,
			MessageID:      messageID,
			Label:          label,
			Remove:         remove,
			Reactions:      reactions,
			Err:            err,
		}
	}, nil
}

// Pin toggles the pinned state of a message.
func (c *Controller) Pin(messageID string) (tea.Cmd, error) {
	conversationID := c.active
	msg, ok := c.rec.Store().Find(conversationID, messageID)
	if !ok {
		return nil, core.Validation("pin", "message %s not found", messageID)
	}
	if msg.Status.Pending() || msg.Deleted {
		return nil, core.Validation("pin", "message %s cannot be pinned", messageID)
	}
	c.menu = c.menu.Close()
	if c.apis.Mutations == nil {
		return nil, nil
	}
	pinned := !msg.Pinned
	api := c.apis.Mutations
	ctx := c.root
	return func() tea.Msg {
		err := api.SetPin(ctx, messageID, pinned)
		if err != nil {
			err = core.Wrap(core.ErrNetwork, "pin", err)
		}
		return PinResultMsg{ConversationID: conversationID, MessageID: messageID, Pinned: pinned, Err: err}
	}, nil
}

// Reply targets a message with the next send.
func (c *Controller) Reply(messageID string) error {
	msg, ok := c.rec.Store().Find(c.active, messageID)
	if !ok {
		return core.Validation("reply", "message %s not found", messageID)
	}
	c.menu = c.menu.Close()
	return c.composer.Reply(msg)
}

// UpdateNotifications changes the notification level of the open conversation.
func (c *Controller) UpdateNotifications(level types.NotifLevel, mutedUntil *time.Time) (tea.Cmd, error) {
	switch level {
	case types.NotifAll, types.NotifMentionsOnly, types.NotifOff:
	default:
		return nil, core.Validation("notifications", "unknown level %q", level)
	}
	conversationID := c.active
	if conversationID == "" {
		return nil, core.Validation("notifications", "no conversation selected")
	}
	if c.apis.Settings == nil {
		return nil, nil
	}
	api := c.apis.Settings
	ctx := c.root
	return func() tea.Msg {
		err := api.UpdateNotifications(ctx, conversationID, level, mutedUntil)
		if err != nil {
			err = core.Wrap(core.ErrNetwork, "notifications", err)
		}
		return SettingsResultMsg{ConversationID: conversationID, Level: level, MutedUntil: mutedUntil, Err: err}
	}, nil
}

// ToggleMenu opens or closes a popover for a message.
func (c *Controller) ToggleMenu(messageID string, kind actionmenu.Kind, triggerTop float64) {
	c.menu = c.menu.Toggle(messageID, kind, triggerTop)
}

// OpenContextMenu opens the action menu from a secondary click.
func (c *Controller) OpenContextMenu(messageID string, triggerTop float64) {
	c.menu = c.menu.OpenContext(messageID, triggerTop)
}

// MenuKey forwards a key to the open popover.
func (c *Controller) MenuKey(key string) {
	c.menu = c.menu.HandleKey(key)
}

// MenuClick reports a click while a popover is open.
func (c *Controller) MenuClick(insidePopover bool) {
	if c.menu.ListenerActive() {
		c.menu = c.menu.OutsideClick(insidePopover)
	}
}

// Actions lists the menu actions for a message of the open conversation.
func (c *Controller) Actions(messageID string) []actionmenu.Action {
	msg, ok := c.rec.Store().Find(c.active, messageID)
	if !ok {
		return nil
	}
	return actionmenu.Actions(msg, c.opts.ViewerID)
}
