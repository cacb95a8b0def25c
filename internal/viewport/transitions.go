package viewport

import "github.com/nuno7lopes-collab/ORYA-WebApp-sub012/internal/timeline"

// Activation describes the conversation being opened.
type Activation struct {
	ConversationID string
	Len            int
	Unread         int
	// SavedOffset is where the viewer left this conversation, if remembered.
	SavedOffset *float64
	Foreground  bool
}

// Activate places the viewport once for a newly opened conversation: at the
// unread marker when there is unread content, else at the remembered offset,
// else at the bottom. Any anchor of the previous conversation is dropped.
func (c Controller) Activate(a Activation) (State, Effects) {
	s := State{
		ConversationID: a.ConversationID,
		AtBottom:       true,
		UnreadMarker:   timeline.NoMarker,
		Foreground:     a.Foreground,
	}
	if a.Len == 0 {
		return s, Effects{}
	}
	if a.Unread > 0 {
		idx := a.Len - a.Unread
		if idx < 0 {
			idx = 0
		}
		s.UnreadMarker = idx
		s.AtBottom = false
		return s, Effects{ScrollToMarker: true, SetMarker: ptr(idx)}
	}
	if a.SavedOffset != nil {
		s.AtBottom = false
		return s, Effects{ScrollTo: ptr(*a.SavedOffset)}
	}
	return s, Effects{ScrollToBottom: true, ReadReceipt: a.Foreground}
}

// Growth describes messages added at the live end of the timeline.
type Growth struct {
	PrevLen int
	NewLen  int
	// Incoming counts added messages not authored by the viewer.
	Incoming int
	// OwnSend is set when the viewer's own send caused the growth.
	OwnSend bool
}

// Grow reacts to new messages. At the bottom the view follows them and the
// marker goes away; elsewhere the position holds and the arrivals are counted.
func (c Controller) Grow(s State, g Growth) (State, Effects) {
	if g.NewLen <= g.PrevLen && g.Incoming == 0 && !g.OwnSend {
		return s, Effects{}
	}
	if s.AtBottom || g.OwnSend {
		var fx Effects
		fx.ScrollToBottom = true
		if s.HasMarker() {
			fx.ClearMarker = true
			s.UnreadMarker = timeline.NoMarker
		}
		s.AtBottom = true
		s.PendingNewCount = 0
		fx.ReadReceipt = s.Foreground
		return s, fx
	}
	if g.Incoming <= 0 {
		return s, Effects{}
	}
	var fx Effects
	s.PendingNewCount += g.Incoming
	if !s.HasMarker() {
		s.UnreadMarker = g.PrevLen
		fx.SetMarker = ptr(g.PrevLen)
	}
	return s, fx
}

// Scroll reacts to the viewer moving the viewport.
func (c Controller) Scroll(s State, m Metrics) (State, Effects) {
	var fx Effects
	wasAtBottom := s.AtBottom
	s.AtBottom = c.IsNearBottom(m)

	if s.HasMarker() {
		passed := s.AtBottom
		if m.HasMarkerOffset {
			passed = m.ScrollTop+m.ClientHeight >= m.MarkerOffset
		}
		if passed {
			s.UnreadMarker = timeline.NoMarker
			s.PendingNewCount = 0
			fx.ClearMarker = true
			fx.ReadReceipt = s.Foreground
		}
	}
	if s.AtBottom {
		s.PendingNewCount = 0
		if !wasAtBottom && s.Foreground {
			fx.ReadReceipt = true
		}
	}
	if c.IsNearTop(m) && s.anchor == nil && m.ScrollHeight > m.ClientHeight {
		fx.LoadHistory = true
	}
	return s, fx
}

// BeginPrepend records the anchor before an older page is requested.
func (c Controller) BeginPrepend(s State, m Metrics) State {
	s.anchor = &Anchor{
		ConversationID:  s.ConversationID,
		PreservedHeight: m.ScrollHeight,
		PreservedOffset: m.ScrollTop,
	}
	return s
}

// ResolvePrepend consumes the anchor once the page for conversationID has been
// applied and the content measures newHeight. An anchor taken for another
// conversation is discarded without scrolling.
func (c Controller) ResolvePrepend(s State, conversationID string, newHeight float64) (State, Effects) {
	anchor := s.anchor
	s.anchor = nil
	if anchor == nil || anchor.ConversationID != conversationID || anchor.ConversationID != s.ConversationID {
		return s, Effects{}
	}
	offset := newHeight - anchor.PreservedHeight + anchor.PreservedOffset
	if offset < 0 {
		offset = 0
	}
	s.AtBottom = false
	return s, Effects{ScrollTo: ptr(offset)}
}

// CancelPrepend drops the anchor after a failed or rejected page.
func (c Controller) CancelPrepend(s State) State {
	s.anchor = nil
	return s
}

// SetForeground records whether the screen is visible. Returning to the
// foreground at the bottom asks for a receipt.
func (c Controller) SetForeground(s State, foreground bool) (State, Effects) {
	was := s.Foreground
	s.Foreground = foreground
	if foreground && !was && s.AtBottom && s.ConversationID != "" {
		return s, Effects{ReadReceipt: true}
	}
	return s, Effects{}
}

// JumpToLatest scrolls to the newest message on request.
func (c Controller) JumpToLatest(s State) (State, Effects) {
	fx := Effects{ScrollToBottom: true, ReadReceipt: s.Foreground}
	if s.HasMarker() {
		fx.ClearMarker = true
		s.UnreadMarker = timeline.NoMarker
	}
	s.AtBottom = true
	s.PendingNewCount = 0
	return s, fx
}

// SyncMarker mirrors the marker position held by the store, which moves on
// prepend and remove. A marker at or past the end of a timeline of length
// messages marks nothing.
func (c Controller) SyncMarker(s State, marker, length int) State {
	if marker >= length {
		marker = timeline.NoMarker
	}
	s.UnreadMarker = marker
	return s
}

// Banners says which viewport banners to show.
type Banners struct {
	NewMessagesDivider bool
	JumpToLatest       bool
	PendingNewCount    int
}

// Banners evaluates the banner switches against the state.
func (c Controller) Banners(s State) Banners {
	return Banners{
		NewMessagesDivider: c.cfg.ShowNewMessagesDivider && s.HasMarker(),
		JumpToLatest:       c.cfg.ShowJumpToLatest && !s.AtBottom && s.PendingNewCount > 0,
		PendingNewCount:    s.PendingNewCount,
	}
}
