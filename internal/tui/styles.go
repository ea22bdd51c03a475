package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/tOgg1/approvalctl/internal/lifecycle"
)

// palette holds ANSI-256 color codes for one theme.
type palette struct {
	Foreground string
	Muted      string
	Accent     string
	Header     string
	Footer     string
	Selected   string
	Error      string

	Pending   string
	Escalated string
	Approved  string
	Rejected  string
}

var palettes = map[string]palette{
	"default": {
		Foreground: "252", Muted: "244", Accent: "39",
		Header: "24", Footer: "236", Selected: "238", Error: "203",
		Pending: "111", Escalated: "214", Approved: "78", Rejected: "203",
	},
	"dark": {
		Foreground: "255", Muted: "245", Accent: "81",
		Header: "17", Footer: "234", Selected: "237", Error: "196",
		Pending: "117", Escalated: "208", Approved: "40", Rejected: "196",
	},
	"light": {
		Foreground: "235", Muted: "243", Accent: "25",
		Header: "153", Footer: "254", Selected: "189", Error: "160",
		Pending: "25", Escalated: "130", Approved: "28", Rejected: "160",
	},
}

type theme struct {
	palette

	text     lipgloss.Style
	muted    lipgloss.Style
	accent   lipgloss.Style
	errText  lipgloss.Style
	selected lipgloss.Style
	header   lipgloss.Style
	footer   lipgloss.Style
	modal    lipgloss.Style
}

func newTheme(name string) theme {
	p, ok := palettes[name]
	if !ok {
		p = palettes["default"]
	}
	return theme{
		palette:  p,
		text:     lipgloss.NewStyle().Foreground(lipgloss.Color(p.Foreground)),
		muted:    lipgloss.NewStyle().Foreground(lipgloss.Color(p.Muted)),
		accent:   lipgloss.NewStyle().Foreground(lipgloss.Color(p.Accent)).Bold(true),
		errText:  lipgloss.NewStyle().Foreground(lipgloss.Color(p.Error)),
		selected: lipgloss.NewStyle().Background(lipgloss.Color(p.Selected)).Bold(true),
		header: lipgloss.NewStyle().
			Foreground(lipgloss.Color(p.Foreground)).
			Background(lipgloss.Color(p.Header)).
			Bold(true).
			Padding(0, 1),
		footer: lipgloss.NewStyle().
			Foreground(lipgloss.Color(p.Muted)).
			Background(lipgloss.Color(p.Footer)).
			Padding(0, 1),
		modal: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color(p.Accent)).
			Padding(0, 1),
	}
}

// badge renders a wire status. Escalations keep their level number.
func (t theme) badge(raw string) string {
	label := lifecycle.Badge(raw)
	style := lipgloss.NewStyle().Bold(true)
	switch lifecycle.ParseStatus(raw) {
	case lifecycle.StatusEscalated:
		style = style.Foreground(lipgloss.Color("16")).Background(lipgloss.Color(t.Escalated)).Padding(0, 1)
	case lifecycle.StatusApproved:
		style = style.Foreground(lipgloss.Color(t.Approved))
	case lifecycle.StatusRejected:
		style = style.Foreground(lipgloss.Color(t.Rejected))
	default:
		style = style.Foreground(lipgloss.Color(t.Pending))
	}
	return style.Render(label)
}

// status renders a one-line status message.
func (t theme) status(text string, isErr bool) string {
	if text == "" {
		return ""
	}
	if isErr {
		return t.errText.Render(text)
	}
	return t.accent.Render(text)
}

func truncateVis(value string, width int) string {
	if width <= 0 {
		return ""
	}
	if runewidth.StringWidth(value) <= width {
		return value
	}
	return runewidth.Truncate(value, width, "…")
}

// cell pads or truncates plain text to exactly width columns.
func cell(value string, width int) string {
	value = truncateVis(value, width)
	if pad := width - runewidth.StringWidth(value); pad > 0 {
		value += strings.Repeat(" ", pad)
	}
	return value
}

// window returns the [start, end) range of rows to show so that cursor
// stays visible in height lines.
func window(total, cursor, height int) (int, int) {
	if height <= 0 || total <= height {
		return 0, total
	}
	start := cursor - height/2
	if start < 0 {
		start = 0
	}
	if start+height > total {
		start = total - height
	}
	return start, start + height
}
