// Package tui is the interactive terminal front end: browse pages, define
// articles and watch them generate.
package tui

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/spherical/magsplit/internal/domain"
	"github.com/spherical/magsplit/pkg/splitter"
)

const previewLines = 12

type pollMsg struct{}

// Model is the bubbletea model. The Session's registry is only touched from
// Update, which bubbletea runs on a single goroutine.
type Model struct {
	session  *splitter.Session
	opts     domain.Options
	interval time.Duration

	page     int
	selected int
	naming   bool
	renaming bool
	renameID int
	input    textinput.Model
	spinner  spinner.Model
	status   string
	quitting bool
	width    int
	height   int
}

// New creates a model over session. interval bounds how long the model
// waits for messages before polling anyway.
func New(session *splitter.Session, opts domain.Options, interval time.Duration) Model {
	in := textinput.New()
	in.Placeholder = "Article name"
	in.CharLimit = 120

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return Model{
		session:  session,
		opts:     opts,
		interval: interval,
		page:     1,
		input:    in,
		spinner:  sp,
		status:   fmt.Sprintf("Opened %s (%d pages)", session.SourcePath(), session.PageCount()),
		width:    80,
		height:   24,
	}
}

// CurrentPage implements domain.PageCursor.
func (m Model) CurrentPage() int { return m.page }

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.waitForMessages(), m.spinner.Tick)
}

// waitForMessages wakes the model as soon as work reports, or after the
// poll interval, whichever comes first.
func (m Model) waitForMessages() tea.Cmd {
	ready := m.session.Messages().Ready()
	interval := m.interval
	return func() tea.Msg {
		select {
		case <-ready:
		case <-time.After(interval):
		}
		return pollMsg{}
	}
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case pollMsg:
		for _, tm := range m.session.Poll() {
			m.status = describe(m.session, tm)
		}
		return m, m.waitForMessages()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		if m.naming {
			return m.updateNaming(msg)
		}
		return m.updateBrowsing(msg)
	}
	return m, nil
}

func (m Model) updateNaming(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEnter:
		name := strings.TrimSpace(m.input.Value())
		renaming := m.renaming
		m.naming = false
		m.renaming = false
		m.input.Blur()
		m.input.Reset()
		if name == "" {
			m.status = "Article not saved: name is empty"
			return m, nil
		}
		if renaming {
			return m.rename(name), nil
		}
		spec := m.session.Registry().Add(name, m.page, m.page)
		m.selected = len(m.session.Registry().List()) - 1
		m.status = fmt.Sprintf("Added %s on page %d", spec.Label(), m.page)
		return m, nil
	case tea.KeyEsc:
		m.naming = false
		m.renaming = false
		m.input.Blur()
		m.input.Reset()
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) updateBrowsing(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	reg := m.session.Registry()
	entries := reg.List()

	switch msg.String() {
	case "q", "ctrl+c":
		m.quitting = true
		return m, tea.Quit

	case "right", "l", "pgdown":
		if m.page < m.session.PageCount() {
			m.page++
		}
	case "left", "h", "pgup":
		if m.page > 1 {
			m.page--
		}
	case "home":
		m.page = 1
	case "end":
		m.page = m.session.PageCount()

	case "down", "j":
		if m.selected < len(entries)-1 {
			m.selected++
		}
	case "up", "k":
		if m.selected > 0 {
			m.selected--
		}

	case "a":
		m.naming = true
		m.input.Focus()
		return m, textinput.Blink

	case "n":
		if len(entries) == 0 {
			m.status = "No articles yet, press a to add one"
			return m, nil
		}
		m.naming = true
		m.renaming = true
		m.renameID = entries[m.selected].Spec.ID
		m.input.SetValue(entries[m.selected].Spec.Name)
		m.input.CursorEnd()
		m.input.Focus()
		return m, textinput.Blink

	case "[", "]", "d", "g", "r":
		if len(entries) == 0 {
			m.status = "No articles yet, press a to add one"
			return m, nil
		}
		m.status = m.act(msg.String(), entries[m.selected].Spec)
		if msg.String() == "d" && m.selected > 0 && m.selected >= reg.Len() {
			m.selected--
		}

	case "G":
		if errs := reg.Validate(); len(errs) > 0 {
			m.status = invalidStatus(errs)
			return m, nil
		}
		n, err := m.session.GenerateAll(m.opts)
		if err != nil {
			m.status = err.Error()
		} else {
			m.status = fmt.Sprintf("Queued %d articles", n)
		}
	}
	return m, nil
}

func (m Model) rename(name string) Model {
	reg := m.session.Registry()
	e, ok := reg.Get(m.renameID)
	if !ok {
		m.status = fmt.Sprintf("Article #%d no longer exists", m.renameID+1)
		return m
	}
	if err := reg.Update(e.Spec.ID, name, e.Spec.StartPage, e.Spec.EndPage); err != nil {
		m.status = err.Error()
		return m
	}
	m.status = fmt.Sprintf("Renamed %s to '%s'", e.Spec.Label(), name)
	return m
}

// invalidStatus lists every invalid article, one per line.
func invalidStatus(errs []error) string {
	lines := make([]string, 0, len(errs)+1)
	lines = append(lines, fmt.Sprintf("%d invalid articles, nothing queued:", len(errs)))
	for _, err := range errs {
		var de *domain.DomainError
		if errors.As(err, &de) {
			lines = append(lines, "  "+de.Message)
		} else {
			lines = append(lines, "  "+err.Error())
		}
	}
	return strings.Join(lines, "\n")
}

func (m Model) act(key string, spec domain.ArticleSpec) string {
	reg := m.session.Registry()
	var err error
	var done string

	switch key {
	case "[":
		err = reg.SetStartFromCursor(spec.ID, m)
		done = fmt.Sprintf("%s starts on page %d", spec.Label(), m.page)
	case "]":
		err = reg.SetEndFromCursor(spec.ID, m)
		done = fmt.Sprintf("%s ends on page %d", spec.Label(), m.page)
	case "d":
		err = reg.Delete(spec.ID)
		done = fmt.Sprintf("Deleted %s", spec.Label())
	case "g":
		err = m.session.Generate(spec.ID, m.opts)
		done = fmt.Sprintf("Queued %s", spec.Label())
	case "r":
		err = m.session.Retry(spec.ID, m.opts)
		done = fmt.Sprintf("Retrying %s", spec.Label())
	}
	if err != nil {
		return err.Error()
	}
	return done
}

func describe(s *splitter.Session, msg domain.TaskMessage) string {
	label := fmt.Sprintf("Article #%d", msg.ArticleID+1)
	if e, ok := s.Registry().Get(msg.ArticleID); ok {
		label = e.Spec.Label()
	}
	if msg.Kind == domain.MessageComplete {
		return label + " complete"
	}
	return label + ": " + msg.Text
}

// View implements tea.Model.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("magsplit  page %d/%d", m.page, m.session.PageCount())))
	b.WriteString("\n\n")
	b.WriteString(pageStyle.Width(max(m.width-4, 20)).Render(m.preview()))
	b.WriteString("\n\n")
	b.WriteString(m.articleList())
	b.WriteString("\n")

	if m.naming {
		b.WriteString("Name: " + m.input.View() + "\n")
	}

	b.WriteString(statusStyle.Render(m.status))
	b.WriteString("\n")
	b.WriteString(controlsStyle.Render("←/→ page  ↑/↓ select  a add  n rename  [ ] set start/end  g generate  G all  r retry  d delete  q quit"))
	return b.String()
}

func (m Model) preview() string {
	text, err := m.session.PageText(m.page)
	if err != nil {
		return errorStyle.Render(err.Error())
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return pendingStyle.Render("(no text layer on this page)")
	}
	lines := strings.Split(text, "\n")
	if len(lines) > previewLines {
		lines = append(lines[:previewLines], "…")
	}
	return strings.Join(lines, "\n")
}

func (m Model) articleList() string {
	entries := m.session.Registry().List()
	if len(entries) == 0 {
		return pendingStyle.Render("No articles defined.") + "\n"
	}

	var b strings.Builder
	for i, e := range entries {
		line := fmt.Sprintf("%-30s %3d-%-3d %s", e.Spec.Name, e.Spec.StartPage, e.Spec.EndPage, m.stateText(e))
		if i == m.selected {
			line = selectedStyle.Render("> " + line)
		} else {
			line = "  " + line
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	return b.String()
}

func (m Model) stateText(e splitter.Entry) string {
	switch e.State {
	case domain.StateProcessing:
		return m.spinner.View() + " " + e.LastMessage
	case domain.StateComplete:
		return completeStyle.Render("done")
	case domain.StateFailed:
		return errorStyle.Render("failed: " + e.LastMessage)
	default:
		return pendingStyle.Render("pending")
	}
}
