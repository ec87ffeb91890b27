package tui

import (
	"context"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spherical/magsplit/internal/config"
	"github.com/spherical/magsplit/internal/domain"
	"github.com/spherical/magsplit/internal/ocr"
	"github.com/spherical/magsplit/internal/pdf"
	"github.com/spherical/magsplit/internal/pdf/pdftest"
	"github.com/spherical/magsplit/internal/summarize"
	"github.com/spherical/magsplit/pkg/splitter"
)

type noopOCR struct{}

func (noopOCR) Apply(ctx context.Context, doc *pdf.Document, dpi int, progress ocr.ProgressFunc) (*pdf.Document, error) {
	return doc, nil
}

type noopSummarizer struct{}

func (noopSummarizer) Summarize(ctx context.Context, pdfPath string, report summarize.ReportFunc) (string, error) {
	return "", nil
}

func newTestModel(t *testing.T) (Model, *splitter.Session) {
	t.Helper()
	path := pdftest.WriteFile(t, "issue.pdf", 10, false)
	cfg := config.DefaultConfig()
	cfg.Pipeline.Workers = 1

	s, err := splitter.Open(context.Background(), path, cfg,
		splitter.WithOCR(noopOCR{}), splitter.WithSummarizer(noopSummarizer{}))
	require.NoError(t, err)
	t.Cleanup(s.Close)

	return New(s, domain.Options{}, 20*time.Millisecond), s
}

func key(s string) tea.KeyMsg {
	switch s {
	case "right":
		return tea.KeyMsg{Type: tea.KeyRight}
	case "left":
		return tea.KeyMsg{Type: tea.KeyLeft}
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "backspace":
		return tea.KeyMsg{Type: tea.KeyBackspace}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func press(m Model, keys ...string) Model {
	for _, k := range keys {
		next, _ := m.Update(key(k))
		m = next.(Model)
	}
	return m
}

func typeText(m Model, text string) Model {
	for _, r := range text {
		next, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
		m = next.(Model)
	}
	return m
}

func TestPageNavigation(t *testing.T) {
	m, _ := newTestModel(t)
	assert.Equal(t, 1, m.CurrentPage())

	m = press(m, "left")
	assert.Equal(t, 1, m.CurrentPage(), "cannot go before the first page")

	m = press(m, "right", "right", "right")
	assert.Equal(t, 4, m.CurrentPage())

	for i := 0; i < 20; i++ {
		m = press(m, "right")
	}
	assert.Equal(t, 10, m.CurrentPage())
}

func TestAddArticleAndSetRangeFromCursor(t *testing.T) {
	m, s := newTestModel(t)

	m = press(m, "right", "right", "a")
	require.True(t, m.naming)
	m = typeText(m, "Foo")
	m = press(m, "enter")
	assert.False(t, m.naming)

	entries := s.Registry().List()
	require.Len(t, entries, 1)
	assert.Equal(t, "Foo", entries[0].Spec.Name)
	assert.Equal(t, 3, entries[0].Spec.StartPage)
	assert.Equal(t, 3, entries[0].Spec.EndPage)

	m = press(m, "right", "right", "]")
	e, _ := s.Registry().Get(entries[0].Spec.ID)
	assert.Equal(t, 5, e.Spec.EndPage)

	m = press(m, "left", "[")
	e, _ = s.Registry().Get(entries[0].Spec.ID)
	assert.Equal(t, 4, e.Spec.StartPage)
	assert.Contains(t, m.status, "starts on page 4")
}

func TestAddArticleCancelledOrEmpty(t *testing.T) {
	m, s := newTestModel(t)

	m = press(m, "a")
	m = typeText(m, "Ignored")
	m = press(m, "esc")
	assert.Zero(t, s.Registry().Len())

	m = press(m, "a", "enter")
	assert.Zero(t, s.Registry().Len())
	assert.Contains(t, m.status, "name is empty")
}

func TestGenerateFromKeys(t *testing.T) {
	m, s := newTestModel(t)
	s.Registry().Add("Foo", 2, 3)
	s.Registry().Add("Bar", 5, 5)

	m = press(m, "G")
	assert.Equal(t, "Queued 2 articles", m.status)

	deadline := time.Now().Add(10 * time.Second)
	for s.Registry().Counts()[domain.StateComplete] < 2 {
		require.True(t, time.Now().Before(deadline), "articles did not finish")
		next, _ := m.Update(pollMsg{})
		m = next.(Model)
		time.Sleep(10 * time.Millisecond)
	}
	assert.Contains(t, m.View(), "done")
}

func TestRenameSelected(t *testing.T) {
	m, s := newTestModel(t)
	s.Registry().Add("Foo", 2, 4)

	m = press(m, "n")
	require.True(t, m.naming)
	assert.Equal(t, "Foo", m.input.Value())

	m = press(m, "backspace", "backspace", "backspace")
	m = typeText(m, "Letters")
	m = press(m, "enter")
	assert.False(t, m.naming)
	assert.Contains(t, m.status, "Renamed Article 'Foo' to 'Letters'")

	entries := s.Registry().List()
	require.Len(t, entries, 1)
	assert.Equal(t, "Letters", entries[0].Spec.Name)
	assert.Equal(t, 2, entries[0].Spec.StartPage)
	assert.Equal(t, 4, entries[0].Spec.EndPage)
}

func TestGenerateAllRefusesInvalidArticles(t *testing.T) {
	m, s := newTestModel(t)
	good := s.Registry().Add("Good", 1, 2)
	s.Registry().Add("Long", 4, 20)

	m = press(m, "G")
	assert.Contains(t, m.status, "1 invalid articles, nothing queued")
	assert.Contains(t, m.status, "end page 20 is outside 1-10")

	e, _ := s.Registry().Get(good.ID)
	assert.Equal(t, domain.StatePending, e.State)
	assert.False(t, s.Busy())
}

func TestActionsWithoutArticles(t *testing.T) {
	m, _ := newTestModel(t)
	m = press(m, "g")
	assert.Contains(t, m.status, "No articles yet")
}

func TestDeleteSelected(t *testing.T) {
	m, s := newTestModel(t)
	s.Registry().Add("Foo", 1, 1)
	s.Registry().Add("Bar", 2, 2)

	m = press(m, "down", "d")
	assert.Equal(t, 1, s.Registry().Len())
	assert.Equal(t, 0, m.selected)
	assert.Equal(t, "Foo", s.Registry().List()[0].Spec.Name)
}

func TestViewShowsPagePreview(t *testing.T) {
	m, _ := newTestModel(t)
	m = press(m, "right")

	view := m.View()
	assert.Contains(t, view, "page 2/10")
	assert.Contains(t, view, pdftest.PageText(2))
	assert.Contains(t, view, "No articles defined.")
}

func TestQuit(t *testing.T) {
	m, _ := newTestModel(t)
	next, cmd := m.Update(key("q"))
	assert.NotNil(t, cmd)
	assert.True(t, next.(Model).quitting)
	assert.Empty(t, next.(Model).View())
}
