package main

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/swgtools/swg_asset_browser/iff"
)

func sampleTree(t *testing.T) *iff.Node {
	t.Helper()
	w := iff.NewWriter()
	w.BeginForm(iff.NewTag("SMAT"), iff.NewTag("0003"))
	w.BeginChunk(iff.NewTag("INFO"))
	w.WriteInt32(1)
	w.EndChunk()
	w.BeginForm(iff.NewTag("TEST"), iff.NewTag("0000"))
	w.BeginChunk(iff.NewTag("NAME"))
	w.WriteString("x")
	w.EndChunk()
	w.EndForm()
	w.BeginChunk(iff.NewTag("LATX"))
	w.EndChunk()
	w.EndForm()
	data, err := w.Bytes()
	if err != nil {
		t.Fatal(err)
	}
	root, err := iff.ParseTree(data)
	if err != nil {
		t.Fatal(err)
	}
	return root
}

func key(m tea.Model, k string) tea.Model {
	var msg tea.KeyMsg
	switch k {
	case "enter":
		msg = tea.KeyMsg{Type: tea.KeyEnter}
	case "down":
		msg = tea.KeyMsg{Type: tea.KeyDown}
	default:
		msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
	}
	m, _ = m.Update(msg)
	return m
}

func TestFoldAndFind(t *testing.T) {
	m := newModel("test.iff", sampleTree(t))
	if len(m.rows) != 5 {
		t.Fatalf("%d rows", len(m.rows))
	}

	key(m, "down")
	key(m, "down")
	if tag := m.rows[m.selected].node.Tag.String(); tag != "TEST" {
		t.Fatalf("selected %s", tag)
	}
	key(m, "enter")
	if len(m.rows) != 4 {
		t.Errorf("%d rows after collapsing", len(m.rows))
	}

	key(m, "/")
	if !m.searching {
		t.Fatal("not searching")
	}
	key(m, "la")
	key(m, "enter")
	if m.searching || m.rows[m.selected].node.Tag.String() != "LATX" {
		t.Errorf("selected %s", m.rows[m.selected].node.Tag)
	}

	key(m, "/")
	key(m, "NAME")
	key(m, "enter")
	if m.err == nil {
		t.Errorf("found a tag inside a collapsed form")
	}
	if m.View() == "" {
		t.Errorf("empty view")
	}
}
