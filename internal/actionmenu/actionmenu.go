// Package actionmenu tracks the single per-message popover: the reaction
// picker or the action menu.
package actionmenu

import "github.com/nuno7lopes-collab/ORYA-WebApp-sub012/internal/types"

// Kind is which popover is open.
type Kind string

const (
	KindReactions Kind = "reactions"
	KindMenu      Kind = "menu"
)

// Placement is the side of the trigger the popover opens on.
type Placement string

const (
	PlacementTop    Placement = "top"
	PlacementBottom Placement = "bottom"
)

// DefaultFlipThreshold is the trigger offset from the viewport top below
// which a popover opens downward.
const DefaultFlipThreshold = 180

// Open describes the open popover.
type Open struct {
	MessageID string
	Kind      Kind
	Placement Placement
}

// State is closed or one open popover. The zero value is closed.
type State struct {
	threshold float64
	open      *Open
}

// New returns a closed menu using threshold for placement. A non-positive
// threshold uses DefaultFlipThreshold.
func New(threshold float64) State {
	if threshold <= 0 {
		threshold = DefaultFlipThreshold
	}
	return State{threshold: threshold}
}

// Current returns the open popover.
func (s State) Current() (Open, bool) {
	if s.open == nil {
		return Open{}, false
	}
	return *s.open, true
}

// IsOpen reports whether the popover for messageID and kind is showing.
func (s State) IsOpen(messageID string, kind Kind) bool {
	return s.open != nil && s.open.MessageID == messageID && s.open.Kind == kind
}

// ListenerActive reports whether the dismiss listener should be installed.
func (s State) ListenerActive() bool {
	return s.open != nil
}

func (s State) placement(triggerTop float64) Placement {
	threshold := s.threshold
	if threshold <= 0 {
		threshold = DefaultFlipThreshold
	}
	if triggerTop < threshold {
		return PlacementBottom
	}
	return PlacementTop
}

// Toggle opens kind for messageID, or closes it if it is already the open one.
// Any other open popover is replaced. Placement is fixed here and kept while open.
func (s State) Toggle(messageID string, kind Kind, triggerTop float64) State {
	if s.IsOpen(messageID, kind) {
		return s.Close()
	}
	s.open = &Open{MessageID: messageID, Kind: kind, Placement: s.placement(triggerTop)}
	return s
}

// OpenContext opens the action menu from a secondary click. It never toggles closed.
func (s State) OpenContext(messageID string, triggerTop float64) State {
	s.open = &Open{MessageID: messageID, Kind: KindMenu, Placement: s.placement(triggerTop)}
	return s
}

// Close closes any popover.
func (s State) Close() State {
	s.open = nil
	return s
}

// HandleKey closes on Escape.
func (s State) HandleKey(key string) State {
	if key == "esc" || key == "escape" {
		return s.Close()
	}
	return s
}

// OutsideClick closes when the click landed outside the popover.
func (s State) OutsideClick(insidePopover bool) State {
	if insidePopover {
		return s
	}
	return s.Close()
}

// OnScroll closes when the timeline scrolls.
func (s State) OnScroll() State {
	return s.Close()
}

// Action is a per-message action offered by the menu.
type Action string

const (
	ActionCopy    Action = "copy"
	ActionReply   Action = "reply"
	ActionReact   Action = "react"
	ActionEdit    Action = "edit"
	ActionDelete  Action = "delete"
	ActionPin     Action = "pin"
	ActionUnpin   Action = "unpin"
	ActionRetry   Action = "retry"
	ActionRetract Action = "retract"
)

// Actions lists what the viewer may do with msg, in menu order.
func Actions(msg types.Message, viewerID string) []Action {
	if msg.Deleted {
		return nil
	}
	own := msg.AuthorID == viewerID
	switch msg.Status {
	case types.StatusFailed:
		return []Action{ActionCopy, ActionRetry, ActionRetract}
	case types.StatusSending:
		return []Action{ActionCopy, ActionRetract}
	}
	actions := []Action{ActionCopy, ActionReply, ActionReact}
	if msg.Pinned {
		actions = append(actions, ActionUnpin)
	} else {
		actions = append(actions, ActionPin)
	}
	if own && msg.Kind != types.MessageKindSystem {
		actions = append(actions, ActionEdit, ActionDelete)
	}
	return actions
}
