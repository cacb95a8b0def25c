// Package viewport decides where the conversation view scrolls. Every
// transition is a pure function of the current State and an input; the
// returned Effects are carried out by whoever owns the real scroll surface.
package viewport

import "github.com/nuno7lopes-collab/ORYA-WebApp-sub012/internal/timeline"

// Config holds the scroll thresholds and banner switches. It is fixed when
// the Controller is built.
type Config struct {
	// NearBottom is the largest distance from the bottom still counted as at bottom.
	NearBottom float64
	// NearTop is the largest scroll offset that asks for older history.
	NearTop float64
	// MarkerLeadIn is how far above the unread marker activation scrolls to.
	MarkerLeadIn float64

	ShowNewMessagesDivider bool
	ShowJumpToLatest       bool
}

// DefaultConfig returns the thresholds used by the web client, in pixels.
func DefaultConfig() Config {
	return Config{
		NearBottom:             36,
		NearTop:                32,
		MarkerLeadIn:           120,
		ShowNewMessagesDivider: true,
		ShowJumpToLatest:       true,
	}
}

// Metrics is a snapshot of the scroll surface.
type Metrics struct {
	ScrollTop    float64
	ScrollHeight float64
	ClientHeight float64
	// MarkerOffset is the top of the unread divider, when it is rendered.
	MarkerOffset    float64
	HasMarkerOffset bool
}

// DistanceFromBottom is how far the visible bottom edge is from the content end.
func (m Metrics) DistanceFromBottom() float64 {
	d := m.ScrollHeight - m.ScrollTop - m.ClientHeight
	if d < 0 {
		return 0
	}
	return d
}

// Anchor keeps the focused message still while older history is prepended.
type Anchor struct {
	ConversationID  string
	PreservedHeight float64
	PreservedOffset float64
}

// State is the per-activation scroll state.
type State struct {
	ConversationID  string
	AtBottom        bool
	PendingNewCount int
	UnreadMarker    int
	Foreground      bool

	anchor *Anchor
}

// Anchor returns the in-flight prepend anchor, if any.
func (s State) Anchor() (Anchor, bool) {
	if s.anchor == nil {
		return Anchor{}, false
	}
	return *s.anchor, true
}

// HasMarker reports whether an unread marker is shown.
func (s State) HasMarker() bool {
	return s.UnreadMarker != timeline.NoMarker
}

// Effects tells the adapter what to do after a transition.
type Effects struct {
	ScrollToBottom bool
	// ScrollToMarker scrolls to MarkerLeadIn above the unread divider.
	ScrollToMarker bool
	ScrollTo       *float64
	ClearMarker    bool
	SetMarker      *int
	ReadReceipt    bool
	LoadHistory    bool
}

// Empty reports whether there is nothing to do.
func (e Effects) Empty() bool {
	return !e.ScrollToBottom && !e.ScrollToMarker && e.ScrollTo == nil && !e.ClearMarker &&
		e.SetMarker == nil && !e.ReadReceipt && !e.LoadHistory
}

// Controller applies the transitions under one Config.
type Controller struct {
	cfg Config
}

// New builds a Controller. Zero thresholds fall back to the defaults.
func New(cfg Config) Controller {
	def := DefaultConfig()
	if cfg.NearBottom <= 0 {
		cfg.NearBottom = def.NearBottom
	}
	if cfg.NearTop <= 0 {
		cfg.NearTop = def.NearTop
	}
	if cfg.MarkerLeadIn < 0 {
		cfg.MarkerLeadIn = def.MarkerLeadIn
	}
	return Controller{cfg: cfg}
}

// Config returns the controller's configuration.
func (c Controller) Config() Config {
	return c.cfg
}

// IsNearBottom applies the near-bottom threshold.
func (c Controller) IsNearBottom(m Metrics) bool {
	return m.DistanceFromBottom() <= c.cfg.NearBottom
}

// IsNearTop applies the near-top threshold.
func (c Controller) IsNearTop(m Metrics) bool {
	return m.ScrollTop <= c.cfg.NearTop
}

// MarkerTarget is the scroll offset that puts the unread divider in view.
func (c Controller) MarkerTarget(markerOffset float64) float64 {
	target := markerOffset - c.cfg.MarkerLeadIn
	if target < 0 {
		return 0
	}
	return target
}

func ptr[T any](v T) *T {
	return &v
}
