package tui

import (
	"errors"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nuno7lopes-collab/ORYA-WebApp-sub012/internal/actionmenu"
	"github.com/nuno7lopes-collab/ORYA-WebApp-sub012/internal/chatview"
	"github.com/nuno7lopes-collab/ORYA-WebApp-sub012/internal/core"
)

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()
	case tea.KeyMsg:
		cmd, quit := m.handleKey(msg)
		if quit {
			return m, cmd
		}
		cmds = append(cmds, cmd)
	case tea.MouseMsg:
		cmds = append(cmds, m.handleMouse(msg))
	case tea.FocusMsg:
		cmds = append(cmds, m.ctl.SetForeground(true))
	case tea.BlurMsg:
		cmds = append(cmds, m.ctl.SetForeground(false), m.ctl.Blur())
	case streamMsg:
		cmds = append(cmds, m.forward(msg.msg), listen(m.events))
	case streamClosedMsg:
		m.logger.Info("event stream closed")
	default:
		cmds = append(cmds, m.forward(msg))
	}
	cmds = append(cmds, m.refresh())
	return m, tea.Batch(cmds...)
}

// forward hands a loop message to the controller and notes what the observer tracks.
func (m *Model) forward(msg tea.Msg) tea.Cmd {
	if m.observer != nil {
		switch msg := msg.(type) {
		case chatview.ConnectionMsg:
			m.observer.SetConnection(msg.State)
		case chatview.ReceiptResultMsg:
			if msg.Err == nil {
				m.observer.ReceiptSent()
			}
		}
	}
	return m.ctl.Update(msg)
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Cmd, bool) {
	key := msg.String()
	if key == "ctrl+c" {
		return tea.Sequence(m.ctl.Close(), tea.Quit), true
	}
	if open, ok := m.ctl.Menu().Current(); ok {
		return m.handleMenuKey(open, key), false
	}
	composer := m.ctl.Composer()

	switch key {
	case "esc":
		switch {
		case len(composer.Suggestions()) > 0:
			composer.DismissSuggestions()
		case isEditing(m):
			m.ctl.CancelEdit()
			m.syncInput()
		case hasReply(m):
			composer.ClearReply()
		case m.ctl.Banner().Error != "":
			m.ctl.DismissBanner()
		default:
			m.selected = ""
		}
		return nil, false
	case "enter":
		if len(composer.Suggestions()) > 0 {
			m.report(composer.AcceptSelected())
			m.syncInput()
			return nil, false
		}
		cmd, err := m.ctl.Send()
		m.report(err)
		m.syncInput()
		return cmd, false
	case "up", "down":
		delta := -1
		if key == "down" {
			delta = 1
		}
		if len(composer.Suggestions()) > 0 {
			composer.MoveSelection(delta)
			return nil, false
		}
		if m.input.Value() == "" {
			m.moveSelection(delta)
			return nil, false
		}
	case "pgup", "pgdown":
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return cmd, false
	case "end", "ctrl+g":
		return m.ctl.ScrollToBottom(), false
	case "ctrl+l":
		return m.ctl.LoadMoreHistory(), false
	case "ctrl+n", "ctrl+b":
		return m.cycleConversation(key == "ctrl+n"), false
	case "ctrl+o":
		if m.selected != "" {
			m.menuCursor = 0
			m.ctl.ToggleMenu(m.selected, actionmenu.KindMenu, m.triggerTop(m.selected))
		}
		return nil, false
	case "ctrl+r", "ctrl+e", "ctrl+d", "ctrl+p", "ctrl+t", "ctrl+y":
		if m.selected == "" {
			return nil, false
		}
		return m.perform(m.selected, shortcutAction(key, m)), false
	}

	before := m.input.Value()
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	m.resize()
	if value := m.input.Value(); value != before {
		return tea.Batch(cmd, m.ctl.SetDraft(value)), false
	}
	return cmd, false
}

func shortcutAction(key string, m *Model) actionmenu.Action {
	switch key {
	case "ctrl+r":
		return actionmenu.ActionReply
	case "ctrl+e":
		return actionmenu.ActionEdit
	case "ctrl+d":
		return actionmenu.ActionDelete
	case "ctrl+t":
		return actionmenu.ActionRetry
	case "ctrl+y":
		return actionmenu.ActionCopy
	}
	for _, action := range m.ctl.Actions(m.selected) {
		if action == actionmenu.ActionPin || action == actionmenu.ActionUnpin {
			return action
		}
	}
	return ""
}

func (m *Model) handleMenuKey(open actionmenu.Open, key string) tea.Cmd {
	n := len(m.menuItems(open))
	switch key {
	case "left", "up":
		if n > 0 {
			m.menuCursor = (m.menuCursor - 1 + n) % n
		}
	case "right", "down", "tab":
		if n > 0 {
			m.menuCursor = (m.menuCursor + 1) % n
		}
	case "enter":
		return m.activateMenuItem(open, m.menuCursor)
	default:
		m.ctl.MenuKey(key)
	}
	return nil
}

// menuItems lists the labels of the open popover in display order.
func (m *Model) menuItems(open actionmenu.Open) []string {
	if open.Kind == actionmenu.KindReactions {
		return ReactionLabels
	}
	actions := m.ctl.Actions(open.MessageID)
	out := make([]string, len(actions))
	for i, action := range actions {
		out[i] = string(action)
	}
	return out
}

func (m *Model) activateMenuItem(open actionmenu.Open, index int) tea.Cmd {
	items := m.menuItems(open)
	if index < 0 || index >= len(items) {
		return nil
	}
	if open.Kind == actionmenu.KindReactions {
		m.ctl.MenuKey("esc")
		cmd, err := m.ctl.React(open.MessageID, items[index])
		m.report(err)
		return cmd
	}
	return m.perform(open.MessageID, actionmenu.Action(items[index]))
}

// perform runs one message action.
func (m *Model) perform(messageID string, action actionmenu.Action) tea.Cmd {
	var (
		cmd tea.Cmd
		err error
	)
	switch action {
	case actionmenu.ActionCopy:
		m.ctl.MenuKey("esc")
		for _, msg := range m.ctl.Timeline() {
			if msg.ID == messageID {
				err = m.copyText(msg.Body)
				if err == nil {
					m.status = "copied"
				}
			}
		}
	case actionmenu.ActionReply:
		m.ctl.MenuKey("esc")
		err = m.ctl.Reply(messageID)
	case actionmenu.ActionReact:
		m.menuCursor = 0
		m.ctl.ToggleMenu(messageID, actionmenu.KindReactions, m.triggerTop(messageID))
	case actionmenu.ActionEdit:
		err = m.ctl.StartEdit(messageID)
		m.syncInput()
	case actionmenu.ActionDelete:
		m.ctl.MenuKey("esc")
		cmd, err = m.ctl.Delete(messageID)
	case actionmenu.ActionPin, actionmenu.ActionUnpin:
		m.ctl.MenuKey("esc")
		cmd, err = m.ctl.Pin(messageID)
	case actionmenu.ActionRetry:
		cmd, err = m.ctl.Retry(messageID)
	case actionmenu.ActionRetract:
		err = m.ctl.Retract(messageID)
	}
	m.report(err)
	return cmd
}

func (m *Model) handleMouse(msg tea.MouseMsg) tea.Cmd {
	if msg.Action != tea.MouseActionPress {
		return nil
	}
	switch msg.Button {
	case tea.MouseButtonWheelUp, tea.MouseButtonWheelDown:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return cmd
	case tea.MouseButtonLeft:
		return m.handleClick(msg)
	case tea.MouseButtonRight:
		if id := m.messageAt(msg); id != "" {
			m.selected = id
			m.menuCursor = 0
			m.ctl.OpenContextMenu(id, m.triggerTop(id))
		}
	}
	return nil
}

func (m *Model) handleClick(msg tea.MouseMsg) tea.Cmd {
	if open, ok := m.ctl.Menu().Current(); ok {
		for i := range m.menuItems(open) {
			if m.zoneManager.Get(menuItemZone(open.MessageID, i)).InBounds(msg) {
				m.menuCursor = i
				return m.activateMenuItem(open, i)
			}
		}
		m.ctl.MenuClick(m.zoneManager.Get(popoverZone).InBounds(msg))
		if _, still := m.ctl.Menu().Current(); still {
			return nil
		}
	}
	if m.zoneManager.Get(jumpZone).InBounds(msg) {
		return m.ctl.ScrollToBottom()
	}
	for _, message := range m.ctl.Timeline() {
		if m.zoneManager.Get(menuTriggerZone(message.ID)).InBounds(msg) {
			m.selected = message.ID
			m.menuCursor = 0
			m.ctl.ToggleMenu(message.ID, actionmenu.KindMenu, m.triggerTop(message.ID))
			return nil
		}
		if m.zoneManager.Get(reactTriggerZone(message.ID)).InBounds(msg) {
			m.selected = message.ID
			m.menuCursor = 0
			m.ctl.ToggleMenu(message.ID, actionmenu.KindReactions, m.triggerTop(message.ID))
			return nil
		}
	}
	if id := m.messageAt(msg); id != "" {
		m.selected = id
	}
	return nil
}

func (m *Model) messageAt(msg tea.MouseMsg) string {
	for _, message := range m.ctl.Timeline() {
		if m.zoneManager.Get(messageZone(message.ID)).InBounds(msg) {
			return message.ID
		}
	}
	return ""
}

func (m *Model) moveSelection(delta int) {
	messages := m.ctl.Timeline()
	if len(messages) == 0 {
		return
	}
	index := len(messages)
	for i, msg := range messages {
		if msg.ID == m.selected {
			index = i
			break
		}
	}
	index = min(max(index+delta, 0), len(messages)-1)
	m.selected = messages[index].ID

	if line, ok := m.lineOf[m.selected]; ok {
		if line < m.viewport.YOffset {
			m.viewport.SetYOffset(line)
		} else if line >= m.viewport.YOffset+m.viewport.Height {
			m.viewport.SetYOffset(line - m.viewport.Height + 1)
		}
	}
}

func (m *Model) cycleConversation(forward bool) tea.Cmd {
	conversations := m.ctl.Conversations()
	if len(conversations) < 2 {
		return nil
	}
	index := 0
	for i, conversation := range conversations {
		if conversation.ID == m.ctl.Active() {
			index = i
			break
		}
	}
	if forward {
		index = (index + 1) % len(conversations)
	} else {
		index = (index - 1 + len(conversations)) % len(conversations)
	}
	m.selected = ""
	m.lastOffset = -1
	cmd := m.ctl.Activate(conversations[index].ID)
	m.syncInput()
	return cmd
}

// syncInput copies the composer draft into the input box after the
// controller changed it.
func (m *Model) syncInput() {
	draft := m.ctl.Composer().Draft()
	if m.input.Value() != draft {
		m.input.SetValue(draft)
		m.input.CursorEnd()
	}
	m.resize()
}

func (m *Model) report(err error) {
	if err == nil {
		return
	}
	m.logger.Debug("action rejected", "err", err)
	var ce *core.Error
	if errors.As(err, &ce) && ce.Err != nil {
		m.status = ce.Err.Error()
		return
	}
	m.status = err.Error()
}

func isEditing(m *Model) bool {
	_, ok := m.ctl.Composer().Editing()
	return ok
}

func hasReply(m *Model) bool {
	_, ok := m.ctl.Composer().ReplyTarget()
	return ok
}

// refresh re-renders the timeline, carries out queued scroll effects and
// reports the resulting position when it moved.
func (m *Model) refresh() tea.Cmd {
	if m.width == 0 || m.height == 0 {
		return nil
	}
	m.viewport.SetContent(m.renderTimeline())
	m.ctl.ContentMeasured(float64(m.viewport.TotalLineCount()))

	fx := m.ctl.TakeScroll()
	switch {
	case fx.ScrollToBottom:
		m.viewport.GotoBottom()
	case fx.ScrollToMarker && m.markerLine >= 0:
		lead := int(m.ctl.ViewportConfig().MarkerLeadIn)
		m.viewport.SetYOffset(max(m.markerLine-lead, 0))
		// Landing on the divider is not a viewer scroll; the divider stays
		// until the viewer moves.
		m.lastOffset = m.viewport.YOffset
		return nil
	case fx.ScrollTo != nil:
		m.viewport.SetYOffset(int(*fx.ScrollTo))
	}

	if m.viewport.YOffset == m.lastOffset {
		return nil
	}
	m.lastOffset = m.viewport.YOffset
	return m.ctl.Scroll(m.metrics())
}
