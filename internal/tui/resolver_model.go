package tui

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/felixgeelhaar/sous/internal/domain/sync"
	"github.com/felixgeelhaar/sous/internal/tui/ui"
)

// choice is one decided side for a conflict. The zero value means undecided.
type choice int

const (
	choiceNone choice = iota
	choiceLocal
	choiceRemote
)

// resolverModel is the Bubble Tea model that walks the user through sync
// conflicts one record at a time, local and remote side by side.
type resolverModel struct {
	conflicts []sync.Conflict
	choices   []choice
	current   int
	scroll    int
	styles    ui.Styles
	keys      ui.KeyMap
	width     int
	height    int
	done      bool
	cancelled bool
}

func newResolverModel(conflicts []sync.Conflict) resolverModel {
	return resolverModel{
		conflicts: conflicts,
		choices:   make([]choice, len(conflicts)),
		styles:    ui.DefaultStyles(),
		keys:      ui.DefaultKeyMap(),
		width:     80,
		height:    24,
	}
}

// Init initializes the model.
func (m resolverModel) Init() tea.Cmd {
	return tea.WindowSize()
}

// Update handles messages.
func (m resolverModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.styles = m.styles.WithWidth(msg.Width)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m, nil
}

func (m resolverModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit), key.Matches(msg, m.keys.Cancel):
		m.cancelled = true
		return m, tea.Quit

	case m.keys.IsUp(msg):
		if m.scroll > 0 {
			m.scroll--
		}
		return m, nil

	case m.keys.IsDown(msg):
		m.scroll++
		return m, nil

	case key.Matches(msg, m.keys.Next):
		if m.current < len(m.conflicts)-1 {
			m.current++
			m.scroll = 0
		}
		return m, nil

	case key.Matches(msg, m.keys.Prev):
		if m.current > 0 {
			m.current--
			m.scroll = 0
		}
		return m, nil

	case key.Matches(msg, m.keys.Local):
		return m.decide(choiceLocal)

	case key.Matches(msg, m.keys.Remote):
		return m.decide(choiceRemote)

	case key.Matches(msg, m.keys.AllLocal):
		return m.decideAll(choiceLocal)

	case key.Matches(msg, m.keys.AllRemote):
		return m.decideAll(choiceRemote)

	case key.Matches(msg, m.keys.Confirm):
		if m.allDecided() {
			m.done = true
			return m, tea.Quit
		}
		return m, nil
	}

	return m, nil
}

// decide records the choice for the current conflict and advances to the
// next undecided one. When every conflict is decided the model quits.
func (m resolverModel) decide(c choice) (tea.Model, tea.Cmd) {
	m.choices[m.current] = c

	if m.allDecided() {
		m.done = true
		return m, tea.Quit
	}

	m.scroll = 0
	for i := m.current + 1; i < len(m.conflicts); i++ {
		if m.choices[i] == choiceNone {
			m.current = i
			return m, nil
		}
	}
	for i := 0; i < m.current; i++ {
		if m.choices[i] == choiceNone {
			m.current = i
			return m, nil
		}
	}
	return m, nil
}

// decideAll applies one choice to every conflict and quits.
func (m resolverModel) decideAll(c choice) (tea.Model, tea.Cmd) {
	for i := range m.choices {
		m.choices[i] = c
	}
	m.done = true
	return m, tea.Quit
}

func (m resolverModel) allDecided() bool {
	for _, c := range m.choices {
		if c == choiceNone {
			return false
		}
	}
	return true
}

// View renders the model.
func (m resolverModel) View() string {
	var b strings.Builder

	b.WriteString(m.styles.Title.Render("Sync Conflicts"))
	b.WriteString("\n")

	conflict := m.conflicts[m.current]
	info := fmt.Sprintf("%s %s — conflict %d/%d", conflict.Entity(), conflict.EntityID(), m.current+1, len(m.conflicts))
	b.WriteString(m.styles.Subtitle.Render(info))
	b.WriteString("\n")
	b.WriteString(m.styles.Warning.Render(kindHint(conflict.Kind())))
	b.WriteString("\n\n")

	decided := 0
	for _, c := range m.choices {
		if c != choiceNone {
			decided++
		}
	}
	b.WriteString(m.styles.Help.Render(fmt.Sprintf("Decided: %d/%d", decided, len(m.conflicts))))
	b.WriteString("\n\n")

	b.WriteString(m.renderConflict(conflict))
	b.WriteString("\n")

	help := []key.Binding{
		m.keys.Local, m.keys.Remote,
		m.keys.AllLocal, m.keys.AllRemote,
		m.keys.Next, m.keys.Prev,
		m.keys.Cancel,
	}
	items := make([]string, 0, len(help))
	for _, binding := range help {
		h := binding.Help()
		items = append(items, h.Key+" "+h.Desc)
	}
	b.WriteString(m.styles.Help.Render(strings.Join(items, " • ")))

	return b.String()
}

// renderConflict renders the local and remote versions side by side.
func (m resolverModel) renderConflict(conflict sync.Conflict) string {
	var b strings.Builder

	panelWidth := (m.width - 6) / 2
	if panelWidth < 20 {
		panelWidth = 20
	}

	localTitle := "LOCAL (this device)"
	remoteTitle := "REMOTE (shared)"
	localStyle := m.styles.PanelTitle
	remoteStyle := m.styles.PanelTitle
	switch m.choices[m.current] {
	case choiceLocal:
		localTitle = "✓ " + localTitle
		localStyle = m.styles.PanelChosen
	case choiceRemote:
		remoteTitle = "✓ " + remoteTitle
		remoteStyle = m.styles.PanelChosen
	}
	b.WriteString(localStyle.Render(padOrTruncate(localTitle, panelWidth)))
	b.WriteString(" │ ")
	b.WriteString(remoteStyle.Render(padOrTruncate(remoteTitle, panelWidth)))
	b.WriteString("\n")

	b.WriteString(m.styles.Help.Render(strings.Repeat("─", panelWidth)))
	b.WriteString("─┼─")
	b.WriteString(m.styles.Help.Render(strings.Repeat("─", panelWidth)))
	b.WriteString("\n")

	local := versionLines(conflict.LocalVersion())
	remote := versionLines(conflict.RemoteVersion())

	visible := m.height - 14
	if visible < 5 {
		visible = 5
	}
	maxLines := len(local)
	if len(remote) > maxLines {
		maxLines = len(remote)
	}

	start := m.scroll
	if start > maxLines-visible {
		start = maxLines - visible
	}
	if start < 0 {
		start = 0
	}
	end := start + visible
	if end > maxLines {
		end = maxLines
	}

	for i := start; i < end; i++ {
		left, right := "", ""
		if i < len(local) {
			left = local[i]
		}
		if i < len(remote) {
			right = remote[i]
		}
		left = padOrTruncate(left, panelWidth)
		right = padOrTruncate(right, panelWidth)

		if i < len(local) && i < len(remote) && local[i] != remote[i] {
			left = m.styles.DiffLocal.Render(left)
			right = m.styles.DiffRemote.Render(right)
		} else {
			left = m.styles.Paragraph.Render(left)
			right = m.styles.Paragraph.Render(right)
		}
		b.WriteString(left)
		b.WriteString(" │ ")
		b.WriteString(right)
		b.WriteString("\n")
	}

	if maxLines > visible {
		b.WriteString(m.styles.Help.Render(fmt.Sprintf("─── %d/%d lines ───", start+1, maxLines)))
		b.WriteString("\n")
	}

	if base := conflict.BaseVersion(); base != nil {
		b.WriteString("\n")
		b.WriteString(m.styles.DiffHeader.Render("Before either change:"))
		b.WriteString("\n")
		lines := versionLines(base)
		for i, line := range lines {
			if i >= 5 {
				b.WriteString(m.styles.Help.Render(fmt.Sprintf("... +%d more lines", len(lines)-5)))
				b.WriteString("\n")
				break
			}
			b.WriteString(m.styles.Help.Render("  " + line))
			b.WriteString("\n")
		}
	}

	return b.String()
}

// kindHint explains a conflict kind from this device's point of view.
func kindHint(kind sync.ConflictKind) string {
	switch kind {
	case sync.KindUpdateUpdate:
		return "both sides changed this record"
	case sync.KindUpdateDelete:
		return "you changed this record, another device deleted it"
	case sync.KindDeleteUpdate:
		return "you deleted this record, another device changed it"
	default:
		return ""
	}
}

// versionLines renders one record version as indented JSON lines. A nil
// version means the record does not exist on that side.
func versionLines(v any) []string {
	if v == nil {
		return []string{"(deleted)"}
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return []string{fmt.Sprintf("(unrenderable: %v)", err)}
	}
	return strings.Split(string(data), "\n")
}

// padOrTruncate pads or truncates a string to the given width.
func padOrTruncate(s string, width int) string {
	if len(s) > width {
		if width <= 3 {
			return s[:width]
		}
		return s[:width-3] + "..."
	}
	return s + strings.Repeat(" ", width-len(s))
}
