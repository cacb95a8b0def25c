// Package tui is the terminal front end of the conversation view. It owns the
// scroll surface and the input box; everything else is delegated to a
// chatview.Controller.
package tui

import (
	"log/slog"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	zone "github.com/lrstanley/bubblezone"

	"github.com/nuno7lopes-collab/ORYA-WebApp-sub012/internal/chatview"
	"github.com/nuno7lopes-collab/ORYA-WebApp-sub012/internal/core"
	"github.com/nuno7lopes-collab/ORYA-WebApp-sub012/internal/types"
	scroll "github.com/nuno7lopes-collab/ORYA-WebApp-sub012/internal/viewport"
)

const inputMaxHeight = 6

// ReactionLabels is the picker offered by the reactions popover.
var ReactionLabels = []string{"👍", "❤️", "🔥", "🎉", "✅", "🙌"}

// Observer is told about connection changes and acknowledged receipts.
type Observer interface {
	SetConnection(state types.ConnectionState)
	ReceiptSent()
}

// Options configures the terminal program.
type Options struct {
	Controller     *chatview.Controller
	ConversationID string
	ViewerID       string
	// Events feeds stream messages (chatview.EventMsg, chatview.ConnectionMsg).
	Events   <-chan tea.Msg
	Observer Observer
	Logger   *slog.Logger
	Now      func() time.Time
	// Copy writes text to the clipboard. It defaults to the system clipboard.
	Copy func(string) error
}

// ViewportConfig returns scroll thresholds measured in terminal lines.
func ViewportConfig(base scroll.Config) scroll.Config {
	base.NearBottom = 1
	base.NearTop = 1
	base.MarkerLeadIn = 2
	return base
}

// MenuThreshold is the trigger row below which popovers open upward.
const MenuThreshold = 6

// Model implements the conversation screen.
type Model struct {
	ctl      *chatview.Controller
	initial  string
	viewer   string
	events   <-chan tea.Msg
	observer Observer
	logger   *slog.Logger
	now      func() time.Time
	copyText func(string) error

	viewport    viewport.Model
	input       textarea.Model
	zoneManager *zone.Manager
	width       int
	height      int

	selected   string
	menuCursor int
	status     string
	lineOf     map[string]int
	markerLine int
	lastOffset int
}

// NewModel builds the model. The controller must not be shared with another program.
func NewModel(opts Options) *Model {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Copy == nil {
		opts.Copy = clipboard.WriteAll
	}
	input := textarea.New()
	input.Placeholder = "Message"
	input.ShowLineNumbers = false
	input.Prompt = ""
	input.SetHeight(1)
	input.CharLimit = 0
	input.Focus()
	applyInputStyles(&input, textColor, blurColor)

	vp := viewport.New(0, 0)
	vp.MouseWheelEnabled = true

	return &Model{
		ctl:         opts.Controller,
		initial:     opts.ConversationID,
		viewer:      opts.ViewerID,
		events:      opts.Events,
		observer:    opts.Observer,
		logger:      core.OrDiscard(opts.Logger),
		now:         opts.Now,
		copyText:    opts.Copy,
		viewport:    vp,
		input:       input,
		zoneManager: zone.New(),
		lineOf:      make(map[string]int),
		markerLine:  -1,
		lastOffset:  -1,
	}
}

// Run starts the program and blocks until the viewer quits.
func Run(opts Options) error {
	model := NewModel(opts)
	defer model.zoneManager.Close()
	program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithMouseCellMotion(), tea.WithReportFocus())
	_, err := program.Run()
	return err
}

func applyInputStyles(input *textarea.Model, text, blur lipgloss.Color) {
	focused, blurred := textarea.DefaultStyles()
	focused.Text = lipgloss.NewStyle().Foreground(text)
	focused.Placeholder = lipgloss.NewStyle().Foreground(blur)
	focused.CursorLine = lipgloss.NewStyle()
	blurred.Text = lipgloss.NewStyle().Foreground(blur)
	blurred.Placeholder = lipgloss.NewStyle().Foreground(blur)
	input.FocusedStyle = focused
	input.BlurredStyle = blurred
}

// streamMsg wraps a message read from the event channel.
type streamMsg struct {
	msg tea.Msg
}

type streamClosedMsg struct{}

func listen(events <-chan tea.Msg) tea.Cmd {
	if events == nil {
		return nil
	}
	return func() tea.Msg {
		msg, ok := <-events
		if !ok {
			return streamClosedMsg{}
		}
		return streamMsg{msg: msg}
	}
}

func (m *Model) Init() tea.Cmd {
	cmds := []tea.Cmd{textarea.Blink, listen(m.events)}
	if m.initial != "" {
		cmds = append(cmds, m.ctl.Activate(m.initial))
	}
	return tea.Batch(cmds...)
}

func (m *Model) resize() {
	if m.width == 0 || m.height == 0 {
		return
	}
	m.input.SetWidth(max(m.width-1, 1))
	lines := min(max(m.input.LineCount(), 1), inputMaxHeight)
	m.input.SetHeight(lines)

	// header, banner row, input border and status line
	chrome := 1 + 1 + m.input.Height() + 2 + 1
	m.viewport.Width = m.width
	m.viewport.Height = max(m.height-chrome, 1)
}

// metrics reports the scroll surface in lines.
func (m *Model) metrics() scroll.Metrics {
	out := scroll.Metrics{
		ScrollTop:    float64(m.viewport.YOffset),
		ScrollHeight: float64(m.viewport.TotalLineCount()),
		ClientHeight: float64(m.viewport.Height),
	}
	if m.markerLine >= 0 {
		out.MarkerOffset = float64(m.markerLine)
		out.HasMarkerOffset = true
	}
	return out
}

// triggerTop is where a message's first line sits relative to the viewport top.
func (m *Model) triggerTop(messageID string) float64 {
	line, ok := m.lineOf[messageID]
	if !ok {
		return 0
	}
	return float64(line - m.viewport.YOffset)
}
