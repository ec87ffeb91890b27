package domain

import (
	"fmt"
	"strings"
	"time"
)

// ArticleSpec is one user-defined article: a named, inclusive, 1-indexed page range.
type ArticleSpec struct {
	ID        int    `yaml:"-" json:"id"`
	Name      string `yaml:"name" json:"name"`
	StartPage int    `yaml:"start" json:"start_page"`
	EndPage   int    `yaml:"end" json:"end_page"`
}

// PageCount returns the number of pages covered by the range.
func (a ArticleSpec) PageCount() int {
	return a.EndPage - a.StartPage + 1
}

// Label is the user-facing identifier used in messages ("#1" for id 0).
func (a ArticleSpec) Label() string {
	if strings.TrimSpace(a.Name) == "" {
		return fmt.Sprintf("Article #%d", a.ID+1)
	}
	return fmt.Sprintf("Article '%s'", a.Name)
}

// Validate checks spec against a document with pageCount pages. All
// violations are reported in a single InvalidRangeError.
func Validate(spec ArticleSpec, pageCount int) error {
	var problems []string

	if strings.TrimSpace(spec.Name) == "" {
		problems = append(problems, fmt.Sprintf("Article #%d has no name", spec.ID+1))
	}
	if spec.StartPage > spec.EndPage {
		problems = append(problems, fmt.Sprintf("%s: start page %d cannot be greater than end page %d",
			spec.Label(), spec.StartPage, spec.EndPage))
	}
	if spec.StartPage < 1 || spec.StartPage > pageCount {
		problems = append(problems, fmt.Sprintf("%s: start page %d is outside 1-%d",
			spec.Label(), spec.StartPage, pageCount))
	}
	if spec.EndPage < 1 || spec.EndPage > pageCount {
		problems = append(problems, fmt.Sprintf("%s: end page %d is outside 1-%d",
			spec.Label(), spec.EndPage, pageCount))
	}

	if len(problems) > 0 {
		return InvalidRangeError(strings.Join(problems, "; "), nil)
	}
	return nil
}

// GenerationState tracks an article through one pipeline invocation.
type GenerationState string

const (
	StatePending    GenerationState = "pending"
	StateProcessing GenerationState = "processing"
	StateComplete   GenerationState = "complete"
	StateFailed     GenerationState = "failed"
)

// Terminal reports whether no further transitions happen for this invocation.
func (s GenerationState) Terminal() bool {
	return s == StateComplete || s == StateFailed
}

// MessageKind tags a TaskMessage.
type MessageKind string

const (
	MessageStatus   MessageKind = "status"
	MessageComplete MessageKind = "complete"
	MessageError    MessageKind = "error"
)

// TaskMessage is the only payload crossing from background work to the
// presentation layer.
type TaskMessage struct {
	Kind      MessageKind `json:"kind"`
	ArticleID int         `json:"article_id"`
	Text      string      `json:"text,omitempty"`
	Time      time.Time   `json:"time"`
}

// StatusMessage reports progress for an article.
func StatusMessage(articleID int, format string, args ...interface{}) TaskMessage {
	return TaskMessage{
		Kind:      MessageStatus,
		ArticleID: articleID,
		Text:      fmt.Sprintf(format, args...),
		Time:      time.Now(),
	}
}

// CompleteMessage reports that an article finished successfully.
func CompleteMessage(articleID int) TaskMessage {
	return TaskMessage{
		Kind:      MessageComplete,
		ArticleID: articleID,
		Time:      time.Now(),
	}
}

// ErrorMessage reports that an article failed.
func ErrorMessage(articleID int, text string) TaskMessage {
	return TaskMessage{
		Kind:      MessageError,
		ArticleID: articleID,
		Text:      text,
		Time:      time.Now(),
	}
}

// Options selects the optional stages of a generation run.
type Options struct {
	OCR       bool
	Summarize bool
	DPI       int
}

// DefaultDPI is the rasterization resolution used for OCR.
const DefaultDPI = 300

// SafeName replaces every character outside [A-Za-z0-9 _-] with '_'.
func SafeName(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == ' ', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}
