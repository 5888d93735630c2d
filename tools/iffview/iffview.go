package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/swgtools/swg_asset_browser/iff"

	_ "github.com/swgtools/swg_asset_browser/formats/ans"
	_ "github.com/swgtools/swg_asset_browser/formats/extent"
	_ "github.com/swgtools/swg_asset_browser/formats/lmg"
	_ "github.com/swgtools/swg_asset_browser/formats/sat"
	_ "github.com/swgtools/swg_asset_browser/formats/skt"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	formStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	chunkStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))
)

type row struct {
	node  *iff.Node
	depth int
}

type model struct {
	filename  string
	root      *iff.Node
	collapsed map[*iff.Node]bool
	rows      []row
	selected  int
	search    textinput.Model
	searching bool
	detail    viewport.Model
	height    int
	err       error
}

func newModel(filename string, root *iff.Node) *model {
	ti := textinput.New()
	ti.Prompt = "/"
	ti.Placeholder = "tag"
	ti.CharLimit = 4
	m := &model{
		filename:  filename,
		root:      root,
		collapsed: make(map[*iff.Node]bool),
		search:    ti,
		detail:    viewport.New(80, 10),
		height:    24,
	}
	m.refresh()
	return m
}

// refresh rebuilds the visible rows, skipping children of collapsed forms.
func (m *model) refresh() {
	m.rows = m.rows[:0]
	var add func(n *iff.Node, depth int)
	add = func(n *iff.Node, depth int) {
		m.rows = append(m.rows, row{node: n, depth: depth})
		if n.Form && !m.collapsed[n] {
			for _, c := range n.Children {
				add(c, depth+1)
			}
		}
	}
	add(m.root, 0)
	if m.selected >= len(m.rows) {
		m.selected = len(m.rows) - 1
	}
	m.detail.SetContent(m.describe(m.rows[m.selected].node))
}

func (m *model) describe(n *iff.Node) string {
	if n.Form {
		return fmt.Sprintf("FORM %s/%s at %#x, %d children, %d bytes",
			n.Tag, n.Version, n.Offset, len(n.Children), n.Size())
	}
	return fmt.Sprintf("CHUNK %s at %#x, %d bytes\n\n%s", n.Tag, n.Offset, len(n.Data), hex.Dump(n.Data))
}

// find moves the selection to the next visible row whose tag starts with
// prefix. Collapsed forms are not searched.
func (m *model) find(prefix string) bool {
	prefix = strings.ToUpper(prefix)
	if prefix == "" {
		return false
	}
	for i := 1; i <= len(m.rows); i++ {
		idx := (m.selected + i) % len(m.rows)
		if strings.HasPrefix(m.rows[idx].node.Tag.String(), prefix) {
			m.selected = idx
			m.detail.SetContent(m.describe(m.rows[idx].node))
			return true
		}
	}
	return false
}

func (m *model) Init() tea.Cmd {
	return nil
}

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.height = msg.Height
		m.detail.Width = msg.Width
		m.detail.Height = msg.Height / 3
		return m, nil

	case tea.KeyMsg:
		if m.searching {
			switch msg.String() {
			case "enter":
				m.searching = false
				m.search.Blur()
				if !m.find(m.search.Value()) {
					m.err = fmt.Errorf("no tag starting with %q", m.search.Value())
				}
				return m, nil
			case "esc":
				m.searching = false
				m.search.Blur()
				return m, nil
			}
			var cmd tea.Cmd
			m.search, cmd = m.search.Update(msg)
			return m, cmd
		}

		m.err = nil
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "up", "k":
			if m.selected > 0 {
				m.selected--
			}
		case "down", "j":
			if m.selected < len(m.rows)-1 {
				m.selected++
			}
		case "enter", " ":
			if n := m.rows[m.selected].node; n.Form && n != m.root {
				m.collapsed[n] = !m.collapsed[n]
			}
		case "/":
			m.searching = true
			m.search.SetValue("")
			m.search.Focus()
			return m, textinput.Blink
		case "n":
			m.find(m.search.Value())
			return m, nil
		case "pgdown", "pgup":
			var cmd tea.Cmd
			m.detail, cmd = m.detail.Update(msg)
			return m, cmd
		}
		m.refresh()
	}
	return m, nil
}

func (m *model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("IFF View"))
	b.WriteString(" ")
	b.WriteString(m.filename)
	b.WriteString("\n\n")

	listHeight := m.height - m.detail.Height - 6
	if listHeight < 3 {
		listHeight = 3
	}
	start := 0
	if m.selected >= listHeight {
		start = m.selected - listHeight + 1
	}
	for i := start; i < len(m.rows) && i < start+listHeight; i++ {
		r := m.rows[i]
		label := r.node.Tag.String()
		style := chunkStyle
		if r.node.Form {
			marker := "-"
			if m.collapsed[r.node] {
				marker = "+"
			}
			label = marker + " " + label + " " + r.node.Version.String()
			style = formStyle
		} else {
			label = "  " + label
		}
		line := strings.Repeat("  ", r.depth) + label
		if i == m.selected {
			b.WriteString(selectedStyle.Render(line))
		} else {
			b.WriteString(style.Render(line))
		}
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(m.detail.View())
	b.WriteString("\n")
	switch {
	case m.searching:
		b.WriteString(m.search.View())
	case m.err != nil:
		b.WriteString(errorStyle.Render(m.err.Error()))
	default:
		b.WriteString(helpStyle.Render("↑/↓ select • enter fold • / find tag • n next • pgup/pgdn scroll • q quit"))
	}
	return b.String()
}

func main() {
	flag.Parse()
	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: iffview file.iff")
		os.Exit(2)
	}
	data, err := os.ReadFile(flag.Arg(0))
	if err != nil {
		log.Fatal(err)
	}
	root, err := iff.ParseTree(data)
	if err != nil {
		log.Fatal(err)
	}
	if _, err := tea.NewProgram(newModel(flag.Arg(0), root), tea.WithAltScreen()).Run(); err != nil {
		log.Fatal(err)
	}
}
