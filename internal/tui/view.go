package tui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/dustin/go-humanize"

	"github.com/nuno7lopes-collab/ORYA-WebApp-sub012/internal/actionmenu"
	"github.com/nuno7lopes-collab/ORYA-WebApp-sub012/internal/chatview"
	"github.com/nuno7lopes-collab/ORYA-WebApp-sub012/internal/core"
	"github.com/nuno7lopes-collab/ORYA-WebApp-sub012/internal/types"
)

const (
	popoverZone = "popover"
	jumpZone    = "jump-latest"
)

func messageZone(id string) string      { return "msg-" + id }
func menuTriggerZone(id string) string  { return "more-" + id }
func reactTriggerZone(id string) string { return "react-" + id }
func menuItemZone(id string, i int) string {
	return "item-" + id + "-" + strconv.Itoa(i)
}

func (m *Model) View() string {
	if m.width == 0 {
		return ""
	}
	lines := []string{m.renderHeader(), m.viewport.View(), m.renderBanner(), m.renderInput(), m.renderStatus()}
	return m.zoneManager.Scan(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

func (m *Model) renderHeader() string {
	title := "orya chat"
	if conversation, ok := m.ctl.Conversation(); ok {
		title = conversationTitle(conversation)
		if conversation.Muted(m.now()) {
			title += " · muted"
		}
	}
	if pinned, ok := m.ctl.Pinned(); ok {
		title += " · 📌 " + firstLine(pinned.Body)
	}
	return lipgloss.NewStyle().Bold(true).Render(ansi.Truncate(title, m.width, "…"))
}

func conversationTitle(conversation types.Conversation) string {
	if conversation.Title != "" {
		return conversation.Title
	}
	names := make([]string, 0, len(conversation.Members))
	for _, member := range conversation.Members {
		names = append(names, member.Label())
	}
	if len(names) == 0 {
		return core.ShortID(conversation.ID, 8)
	}
	return strings.Join(names, ", ")
}

// renderTimeline draws every message and records where each one and the
// unread divider start.
func (m *Model) renderTimeline() string {
	clear(m.lineOf)
	m.markerLine = -1

	switch m.ctl.State() {
	case chatview.StateEmpty:
		return metaStyle.Render("Select a conversation.")
	case chatview.StateNoMessages:
		if m.ctl.Loading() {
			return metaStyle.Render("Loading…")
		}
		return metaStyle.Render("No messages yet. Say hello.")
	}

	var lines []string
	if m.ctl.LoadingOlder() {
		lines = append(lines, metaStyle.Render("Loading older messages…"))
	} else if m.ctl.HasMoreHistory() {
		lines = append(lines, metaStyle.Render("ctrl+l for older messages"))
	}

	marker := m.ctl.UnreadMarker()
	divider := m.ctl.Banner().NewMessagesDivider
	open, menuOpen := m.ctl.Menu().Current()
	for i, msg := range m.ctl.Timeline() {
		if divider && i == marker {
			m.markerLine = len(lines)
			lines = append(lines, m.renderDivider())
		}
		var popover []string
		if menuOpen && open.MessageID == msg.ID {
			popover = strings.Split(m.renderPopover(open), "\n")
		}
		if len(popover) > 0 && open.Placement == actionmenu.PlacementTop {
			lines = append(lines, popover...)
		}
		m.lineOf[msg.ID] = len(lines)
		lines = append(lines, strings.Split(m.renderMessage(msg), "\n")...)
		if len(popover) > 0 && open.Placement == actionmenu.PlacementBottom {
			lines = append(lines, popover...)
		}
	}
	return strings.Join(lines, "\n")
}

func (m *Model) renderDivider() string {
	label := " New messages "
	side := max((m.width-ansi.StringWidth(label))/2, 2)
	return dividerStyle.Render(strings.Repeat("─", side) + label + strings.Repeat("─", side))
}

func (m *Model) authorLabel(authorID string) string {
	if authorID == m.viewer {
		return "You"
	}
	if conversation, ok := m.ctl.Conversation(); ok {
		if member, ok := conversation.Member(authorID); ok {
			return member.Label()
		}
	}
	return "Member"
}

func (m *Model) renderMessage(msg types.Message) string {
	width := max(m.width-2, 10)
	author := m.authorLabel(msg.AuthorID)
	color := authorColor(msg.AuthorID)
	if author == "You" {
		color = ownColor
	}

	byline := lipgloss.NewStyle().Foreground(color).Bold(true).Render(
		fmt.Sprintf("[%s] %s", core.Initials(author), author))
	meta := []string{humanize.RelTime(msg.CreatedAt, m.now(), "ago", "from now")}
	if msg.Edited && !msg.Deleted {
		meta = append(meta, "edited")
	}
	if msg.Pinned {
		meta = append(meta, "📌")
	}
	switch msg.Status {
	case types.StatusSending:
		meta = append(meta, "sending…")
	case types.StatusRead:
		meta = append(meta, "seen")
	}
	byline += " " + metaStyle.Render(strings.Join(meta, " · "))
	if !msg.Deleted && !msg.Status.Pending() {
		byline += " " + m.zoneManager.Mark(reactTriggerZone(msg.ID), metaStyle.Render("☺")) +
			" " + m.zoneManager.Mark(menuTriggerZone(msg.ID), metaStyle.Render("⋯"))
	}

	var out []string
	out = append(out, byline)
	if msg.ReplyTo != nil && !msg.Deleted {
		quote := "↳ " + m.authorLabel(msg.ReplyTo.AuthorID) + ": " + firstLine(msg.ReplyTo.Preview)
		out = append(out, metaStyle.Render(ansi.Truncate(quote, width, "…")))
	}
	switch {
	case msg.Deleted:
		out = append(out, deletedStyle.Render("message deleted"))
	default:
		out = append(out, bodyStyle.Render(ansi.Wrap(msg.Body, width, "")))
		for _, attachment := range msg.Attachments {
			label := attachment.Name
			if label == "" {
				label = attachment.Type
			}
			if attachment.Size > 0 {
				label += " (" + humanize.Bytes(uint64(attachment.Size)) + ")"
			}
			out = append(out, metaStyle.Render("📎 "+label))
		}
		if reactions := renderReactions(msg.Reactions); reactions != "" {
			out = append(out, reactions)
		}
	}
	if msg.Status == types.StatusFailed {
		reason := "not sent"
		if msg.Error != "" {
			reason += ": " + msg.Error
		}
		out = append(out, errorStyle.Render(ansi.Truncate(reason+" · ctrl+t to retry", width, "…")))
	}

	block := strings.Join(out, "\n")
	if msg.ID == m.selected {
		block = selectedStyle.Width(m.width).Render(block)
	}
	return m.zoneManager.Mark(messageZone(msg.ID), block)
}

func renderReactions(reactions []types.Reaction) string {
	parts := make([]string, 0, len(reactions))
	for _, reaction := range reactions {
		if reaction.Count <= 0 {
			continue
		}
		part := fmt.Sprintf("%s %d", reaction.Label, reaction.Count)
		if reaction.Active {
			part = lipgloss.NewStyle().Foreground(ownColor).Render(part)
		} else {
			part = metaStyle.Render(part)
		}
		parts = append(parts, part)
	}
	return strings.Join(parts, "  ")
}

func (m *Model) renderPopover(open actionmenu.Open) string {
	items := m.menuItems(open)
	rendered := make([]string, len(items))
	for i, item := range items {
		label := item
		if i == m.menuCursor {
			label = popoverItemActive.Render(label)
		}
		rendered[i] = m.zoneManager.Mark(menuItemZone(open.MessageID, i), label)
	}
	return m.zoneManager.Mark(popoverZone, popoverStyle.Render(strings.Join(rendered, "  ")))
}

func (m *Model) renderBanner() string {
	banner := m.ctl.Banner()
	var parts []string
	switch banner.Connection {
	case types.ConnectionReconnecting:
		parts = append(parts, warnStyle.Render("reconnecting…"))
	case types.ConnectionOffline:
		parts = append(parts, errorStyle.Render("offline"))
	}
	if banner.Error != "" {
		parts = append(parts, errorStyle.Render(banner.Error))
	}
	if label := m.ctl.TypingLabel(); label != "" {
		parts = append(parts, metaStyle.Italic(true).Render(label+"…"))
	}
	left := strings.Join(parts, " · ")
	if !banner.JumpToLatest {
		return left
	}
	jump := "↓ latest"
	if banner.PendingNewCount > 0 {
		jump = fmt.Sprintf("↓ %d new", banner.PendingNewCount)
	}
	return alignStatusLine(left, m.zoneManager.Mark(jumpZone, jumpStyle.Render(jump)), m.width)
}

func (m *Model) renderInput() string {
	var lines []string
	composer := m.ctl.Composer()
	if id, ok := composer.Editing(); ok {
		lines = append(lines, warnStyle.Render("editing "+core.ShortID(id, 8)+" · esc to cancel"))
	} else if reply, ok := composer.ReplyTarget(); ok {
		label := "replying to " + m.authorLabel(reply.AuthorID) + ": " + firstLine(reply.Preview)
		lines = append(lines, metaStyle.Render(ansi.Truncate(label, m.width, "…")))
	}
	if suggestions := composer.Suggestions(); len(suggestions) > 0 {
		rendered := make([]string, len(suggestions))
		for i, label := range suggestions {
			if i == composer.Selected() {
				label = popoverItemActive.Render(label)
			}
			rendered[i] = label
		}
		lines = append(lines, strings.Join(rendered, "  "))
	}
	box := lipgloss.NewStyle().
		Border(lipgloss.NormalBorder(), true, false).
		BorderForeground(blurColor).
		Render(m.input.View())
	lines = append(lines, box)
	return strings.Join(lines, "\n")
}

func (m *Model) renderStatus() string {
	left := string(m.ctl.Connection())
	if m.status != "" {
		left = m.status + " · " + left
	}
	right := "enter send · ↑↓ select · ctrl+o menu · ctrl+c quit"
	return lipgloss.NewStyle().Foreground(statusColor).Render(alignStatusLine(left, right, m.width))
}

func alignStatusLine(left, right string, width int) string {
	if width <= 0 || right == "" {
		return left
	}
	leftWidth := ansi.StringWidth(left)
	rightWidth := ansi.StringWidth(right)
	if leftWidth+rightWidth+1 > width {
		return ansi.Truncate(left, width, "…")
	}
	return left + strings.Repeat(" ", width-leftWidth-rightWidth) + right
}

func firstLine(text string) string {
	text = strings.TrimSpace(text)
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		return text[:i] + "…"
	}
	return text
}
