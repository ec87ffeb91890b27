// Package articles keeps the user's article definitions for one open issue.
package articles

import (
	"fmt"
	"sort"
	"time"

	"github.com/spherical/magsplit/internal/domain"
)

// Entry is one article and what the last generation run reported for it.
type Entry struct {
	Spec        domain.ArticleSpec
	State       domain.GenerationState
	LastMessage string
	UpdatedAt   time.Time
	PDFPath     string
	SummaryPath string
}

// Registry owns the article list. It is not safe for concurrent use: the
// presentation goroutine owns it and feeds it TaskMessages via Apply.
type Registry struct {
	entries   map[int]*Entry
	nextID    int
	pageCount int
}

// NewRegistry creates an empty registry for a document with pageCount pages.
func NewRegistry(pageCount int) *Registry {
	return &Registry{entries: make(map[int]*Entry), pageCount: pageCount}
}

// PageCount returns the page count of the open document.
func (r *Registry) PageCount() int { return r.pageCount }


// Add creates a Pending article and returns its spec. IDs start at 0 and
// are never reused.
func (r *Registry) Add(name string, start, end int) domain.ArticleSpec {
	spec := domain.ArticleSpec{ID: r.nextID, Name: name, StartPage: start, EndPage: end}
	r.nextID++
	r.entries[spec.ID] = &Entry{Spec: spec, State: domain.StatePending}
	return spec
}

// Update replaces the name and range of article id.
func (r *Registry) Update(id int, name string, start, end int) error {
	e, err := r.entry(id)
	if err != nil {
		return err
	}
	e.Spec.Name = name
	e.Spec.StartPage = start
	e.Spec.EndPage = end
	return nil
}

// Delete removes article id. Messages for it that arrive later are ignored.
func (r *Registry) Delete(id int) error {
	if _, err := r.entry(id); err != nil {
		return err
	}
	delete(r.entries, id)
	return nil
}

// Get returns a copy of article id.
func (r *Registry) Get(id int) (Entry, bool) {
	e, ok := r.entries[id]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// Len returns the number of articles.
func (r *Registry) Len() int { return len(r.entries) }

// List returns copies of all entries in id order.
func (r *Registry) List() []Entry {
	out := make([]Entry, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Spec.ID < out[j].Spec.ID })
	return out
}

// Specs returns the article specs in id order.
func (r *Registry) Specs() []domain.ArticleSpec {
	entries := r.List()
	out := make([]domain.ArticleSpec, len(entries))
	for i, e := range entries {
		out[i] = e.Spec
	}
	return out
}

// Validate checks every article against the document page count.
func (r *Registry) Validate() []error {
	var errs []error
	for _, spec := range r.Specs() {
		if err := domain.Validate(spec, r.pageCount); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

// SetStartFromCursor sets the start page of article id to the page the
// cursor points at.
func (r *Registry) SetStartFromCursor(id int, cursor domain.PageCursor) error {
	e, err := r.entry(id)
	if err != nil {
		return err
	}
	e.Spec.StartPage = cursor.CurrentPage()
	return nil
}

// SetEndFromCursor sets the end page of article id to the page the cursor
// points at.
func (r *Registry) SetEndFromCursor(id int, cursor domain.PageCursor) error {
	e, err := r.entry(id)
	if err != nil {
		return err
	}
	e.Spec.EndPage = cursor.CurrentPage()
	return nil
}

// MarkProcessing moves article id from Pending to Processing when work for
// it is submitted.
func (r *Registry) MarkProcessing(id int) error {
	e, err := r.entry(id)
	if err != nil {
		return err
	}
	if e.State != domain.StatePending {
		return domain.ValidationError(fmt.Sprintf("%s is %s, not pending", e.Spec.Label(), e.State), nil)
	}
	e.State = domain.StateProcessing
	e.LastMessage = ""
	return nil
}

// ReleaseProcessing returns article id from Processing to Pending when its
// work could not be queued.
func (r *Registry) ReleaseProcessing(id int) error {
	e, err := r.entry(id)
	if err != nil {
		return err
	}
	if e.State != domain.StateProcessing {
		return domain.ValidationError(fmt.Sprintf("%s is %s, not processing", e.Spec.Label(), e.State), nil)
	}
	e.State = domain.StatePending
	return nil
}

// Apply records msg against its article. It returns false when the article
// no longer exists or has already reached a terminal state.
func (r *Registry) Apply(msg domain.TaskMessage) bool {
	e, ok := r.entries[msg.ArticleID]
	if !ok || e.State.Terminal() {
		return false
	}

	switch msg.Kind {
	case domain.MessageStatus:
		e.State = domain.StateProcessing
		e.LastMessage = msg.Text
	case domain.MessageComplete:
		e.State = domain.StateComplete
		if msg.Text != "" {
			e.LastMessage = msg.Text
		}
	case domain.MessageError:
		e.State = domain.StateFailed
		e.LastMessage = msg.Text
	default:
		return false
	}
	e.UpdatedAt = msg.Time
	return true
}

// SetOutputs records where article id was written.
func (r *Registry) SetOutputs(id int, pdfPath, summaryPath string) {
	if e, ok := r.entries[id]; ok {
		e.PDFPath = pdfPath
		e.SummaryPath = summaryPath
	}
}

// Reset returns a finished article to Pending so it can be generated again.
func (r *Registry) Reset(id int) error {
	e, err := r.entry(id)
	if err != nil {
		return err
	}
	if !e.State.Terminal() {
		return domain.ValidationError(fmt.Sprintf("%s is still %s", e.Spec.Label(), e.State), nil)
	}
	e.State = domain.StatePending
	e.LastMessage = ""
	e.PDFPath = ""
	e.SummaryPath = ""
	return nil
}

// Counts returns how many articles are in each state.
func (r *Registry) Counts() map[domain.GenerationState]int {
	out := make(map[domain.GenerationState]int, 4)
	for _, e := range r.entries {
		out[e.State]++
	}
	return out
}

func (r *Registry) entry(id int) (*Entry, error) {
	e, ok := r.entries[id]
	if !ok {
		return nil, domain.ValidationError(fmt.Sprintf("article #%d does not exist", id+1), nil)
	}
	return e, nil
}
