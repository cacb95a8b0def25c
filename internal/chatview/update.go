package chatview

import (
	"context"
	"errors"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nuno7lopes-collab/ORYA-WebApp-sub012/internal/core"
	"github.com/nuno7lopes-collab/ORYA-WebApp-sub012/internal/timeline"
	"github.com/nuno7lopes-collab/ORYA-WebApp-sub012/internal/types"
	"github.com/nuno7lopes-collab/ORYA-WebApp-sub012/internal/viewport"
)

// Update applies one message to the screen state and returns follow-up work.
// Messages it does not know are ignored.
func (c *Controller) Update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case EventMsg:
		return c.handleEvent(msg.Event)
	case HistoryLoadedMsg:
		return c.handleHistory(msg)
	case MembersLoadedMsg:
		return c.handleMembers(msg)
	case SendResultMsg:
		return c.handleSend(msg)
	case EditResultMsg:
		if msg.Err != nil {
			c.rec.RevertEdit(msg.ConversationID, msg.Prev)
			c.fail("edit", msg.Err)
			return nil
		}
		c.rec.ApplyAuthoritative(msg.ConversationID, msg.Message)
	case DeleteResultMsg:
		if msg.Err != nil {
			c.fail("delete", msg.Err)
			return nil
		}
		delta := c.rec.SoftDelete(msg.ConversationID, msg.MessageID, c.now())
		c.afterChange(delta)
	case ReactionResultMsg:
		return c.handleReaction(msg)
	case PinResultMsg:
		if msg.Err != nil {
			c.fail("pin", msg.Err)
			return nil
		}
		c.rec.ApplyPin(msg.ConversationID, msg.MessageID, msg.Pinned)
	case ReceiptResultMsg:
		if msg.Err != nil {
			// Receipts are advisory; the next one catches up.
			c.logger.Debug("read receipt failed", "conversation", msg.ConversationID, "err", msg.Err)
			return nil
		}
		c.rec.MarkConversationRead(msg.ConversationID, msg.MessageID)
	case SettingsResultMsg:
		if msg.Err != nil {
			c.fail("notifications", msg.Err)
			return nil
		}
		c.rec.SetNotifications(msg.ConversationID, msg.Level, msg.MutedUntil)
	case TypingIdleMsg:
		return c.typingCmd(c.composer.ExpireTyping(msg.Seq))
	case ConnectionMsg:
		return c.handleConnection(msg.State)
	case ScrollMsg:
		return c.Scroll(msg.Metrics)
	case ForegroundMsg:
		return c.SetForeground(msg.Foreground)
	}
	return nil
}

func (c *Controller) handleEvent(event types.Event) tea.Cmd {
	delta := c.rec.ApplyEvent(event)
	if event.ConversationID != c.active || !c.placed {
		return nil
	}
	if event.Type == types.EventConversationUpdate {
		if conversation, ok := c.rec.Store().Conversation(c.active); ok {
			c.composer.SetMembers(conversation.Members)
		}
	}
	return c.afterGrowth(delta, false)
}

// afterGrowth runs the viewport growth transition for a store delta of the
// open conversation.
func (c *Controller) afterGrowth(delta timeline.Delta, own bool) tea.Cmd {
	if delta.ConversationID != "" && delta.ConversationID != c.active {
		return nil
	}
	if !delta.Grew() && !own {
		c.afterChange(delta)
		return nil
	}
	incoming := 0
	for _, msg := range delta.Added {
		if msg.AuthorID != c.opts.ViewerID {
			incoming++
		}
	}
	prevLen := delta.PrevLen
	if delta.Reset {
		// A refresh may also drop messages; the new ones sit at the end.
		prevLen = max(delta.Len-len(delta.Added), 0)
	}
	state, fx := c.vpc.Grow(c.vp, viewport.Growth{
		PrevLen:  prevLen,
		NewLen:   delta.Len,
		Incoming: incoming,
		OwnSend:  own,
	})
	c.vp = state
	return c.apply(fx)
}

// afterChange keeps the viewport's marker mirror in step after removes and prepends.
func (c *Controller) afterChange(delta timeline.Delta) {
	if c.active == "" || (delta.ConversationID != "" && delta.ConversationID != c.active) {
		return
	}
	c.vp = c.vpc.SyncMarker(c.vp, c.rec.Store().Cursor(c.active).UnreadMarker, c.rec.Store().Len(c.active))
}

// apply performs the effects owned by the loop and queues scroll effects
// for the adapter.
func (c *Controller) apply(fx viewport.Effects) tea.Cmd {
	conversationID := c.active
	if conversationID == "" {
		return nil
	}
	if fx.SetMarker != nil {
		c.rec.SetUnreadMarker(conversationID, *fx.SetMarker)
	}
	if fx.ClearMarker {
		c.rec.ClearUnreadMarker(conversationID)
	}
	c.vp = c.vpc.SyncMarker(c.vp, c.rec.Store().Cursor(conversationID).UnreadMarker, c.rec.Store().Len(conversationID))

	if fx.ScrollToBottom {
		c.scroll = viewport.Effects{ScrollToBottom: true}
	}
	if fx.ScrollToMarker {
		c.scroll = viewport.Effects{ScrollToMarker: true}
	}
	if fx.ScrollTo != nil {
		c.scroll = viewport.Effects{ScrollTo: fx.ScrollTo}
	}

	var cmds []tea.Cmd
	if fx.ReadReceipt {
		cmds = append(cmds, c.receiptCmd(conversationID))
	}
	if fx.LoadHistory {
		cmds = append(cmds, c.LoadMoreHistory())
	}
	return tea.Batch(cmds...)
}

func (c *Controller) handleHistory(msg HistoryLoadedMsg) tea.Cmd {
	current := c.current(msg.Purpose, msg.ConversationID, msg.Seq)
	if current {
		switch msg.Purpose {
		case PurposeLatest:
			c.loadingLatest = false
		case PurposeOlder:
			c.loadingOlder = false
		}
	}
	if msg.Err != nil {
		if current {
			if msg.Purpose == PurposeOlder {
				c.vp = c.vpc.CancelPrepend(c.vp)
			}
			if !errors.Is(msg.Err, context.Canceled) {
				c.fail("load history", msg.Err)
			}
			if msg.Purpose == PurposeLatest && !c.placed {
				// Show what is cached rather than a spinner forever.
				return c.place()
			}
		}
		return nil
	}
	if msg.ConversationID == c.active && !current {
		c.logger.Debug("stale history result", "conversation", msg.ConversationID, "purpose", msg.Purpose, "seq", msg.Seq)
		return nil
	}

	if msg.Purpose == PurposeOlder {
		delta, err := c.rec.ApplyOlderPage(msg.ConversationID, msg.Page)
		if msg.ConversationID != c.active {
			return nil
		}
		if err != nil {
			c.vp = c.vpc.CancelPrepend(c.vp)
			return nil
		}
		c.afterChange(delta)
		c.awaitingAnchor = true
		return nil
	}

	delta, err := c.rec.ApplyLatestPage(msg.ConversationID, msg.Page)
	if err != nil {
		c.logger.Warn("apply latest page", "conversation", msg.ConversationID, "err", err)
		return nil
	}
	if msg.ConversationID != c.active {
		return nil
	}
	if conversation, ok := c.rec.Store().Conversation(c.active); ok {
		c.composer.SetMembers(conversation.Members)
	}
	if !c.placed {
		return c.place()
	}
	if delta.Restarted {
		// An older page requested against the replaced timeline would leave a gap.
		c.nextSeq(PurposeOlder)
		c.loadingOlder = false
		c.awaitingAnchor = false
		c.vp = c.vpc.CancelPrepend(c.vp)
		return c.ScrollToBottom()
	}
	return c.afterGrowth(delta, false)
}

func (c *Controller) handleMembers(msg MembersLoadedMsg) tea.Cmd {
	if !c.current(PurposeMembers, msg.ConversationID, msg.Seq) {
		return nil
	}
	if msg.Err != nil {
		if !errors.Is(msg.Err, context.Canceled) {
			c.logger.Warn("load members", "conversation", msg.ConversationID, "err", msg.Err)
		}
		return nil
	}
	conversation, _ := c.rec.Store().Conversation(msg.ConversationID)
	if len(conversation.Members) == 0 {
		conversation.ID = msg.ConversationID
		conversation.Members = msg.Members
		c.rec.PutConversation(conversation)
	}
	c.composer.SetMembers(msg.Members)
	return nil
}

func (c *Controller) handleSend(msg SendResultMsg) tea.Cmd {
	if msg.Err != nil {
		delta := c.rec.FailSend(msg.ConversationID, msg.Token, msg.Err)
		c.afterChange(delta)
		return nil
	}
	delta, err := c.rec.ConfirmSend(msg.ConversationID, msg.Token, msg.Message)
	if err != nil {
		c.logger.Warn("confirm send", "conversation", msg.ConversationID, "err", err)
		return nil
	}
	if delta.Grew() {
		return c.afterGrowth(delta, false)
	}
	return nil
}

func (c *Controller) handleReaction(msg ReactionResultMsg) tea.Cmd {
	if msg.Err != nil {
		c.fail("react", msg.Err)
		return nil
	}
	reactions := msg.Reactions
	if reactions == nil {
		current, ok := c.rec.Store().Find(msg.ConversationID, msg.MessageID)
		if !ok {
			return nil
		}
		reactions = toggleReaction(current.Reactions, msg.Label, msg.Remove)
	}
	c.rec.ApplyReactions(msg.ConversationID, msg.MessageID, reactions)
	return nil
}

func (c *Controller) handleConnection(state types.ConnectionState) tea.Cmd {
	prev := c.connection
	c.connection = state
	if state != types.ConnectionConnected || prev == types.ConnectionConnected || c.active == "" {
		return nil
	}
	c.logger.Info("connection restored, resyncing", "conversation", c.active)
	return c.loadLatest()
}

// toggleReaction applies the viewer's reaction change locally. A viewer holds
// at most one reaction per message.
func toggleReaction(reactions []types.Reaction, label string, remove bool) []types.Reaction {
	out := make([]types.Reaction, 0, len(reactions)+1)
	found := false
	for _, r := range reactions {
		switch {
		case r.Label == label:
			found = true
			if remove {
				if r.Active {
					r.Count--
				}
				r.Active = false
			} else if !r.Active {
				r.Count++
				r.Active = true
			}
		case r.Active && !remove:
			r.Count--
			r.Active = false
		}
		if r.Count > 0 {
			out = append(out, r)
		}
	}
	if !found && !remove {
		out = append(out, types.Reaction{Label: label, Count: 1, Active: true})
	}
	return out
}

func (c *Controller) receiptCmd(conversationID string) tea.Cmd {
	if !c.foreground || c.apis.Receipts == nil {
		return nil
	}
	target := lastReadable(c.rec.Store().Timeline(conversationID))
	if target == "" {
		return nil
	}
	if !c.allowReceipt(conversationID, target) {
		return nil
	}
	api := c.apis.Receipts
	ctx := c.root
	return func() tea.Msg {
		err := api.MarkRead(ctx, conversationID, target)
		if err != nil {
			err = core.Wrap(core.ErrNetwork, "mark read", err)
		}
		return ReceiptResultMsg{ConversationID: conversationID, MessageID: target, Err: err}
	}
}

// allowReceipt drops a receipt for the message last reported within the
// receipt interval.
func (c *Controller) allowReceipt(conversationID, messageID string) bool {
	t := c.receipts[conversationID]
	if t == nil || t.messageID != messageID {
		t = &receiptThrottle{
			messageID: messageID,
			limiter:   newReceiptLimiter(c.opts.ReceiptEvery),
		}
		c.receipts[conversationID] = t
	}
	return t.limiter.AllowN(c.now(), 1)
}

// lastReadable is the newest message a receipt may point at.
func lastReadable(messages []types.Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		msg := messages[i]
		if msg.Deleted || msg.Provisional || msg.Status.Pending() {
			continue
		}
		return msg.ID
	}
	return ""
}
