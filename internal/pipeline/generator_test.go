package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spherical/magsplit/internal/coordinator"
	"github.com/spherical/magsplit/internal/domain"
	"github.com/spherical/magsplit/internal/ocr"
	"github.com/spherical/magsplit/internal/pdf"
	"github.com/spherical/magsplit/internal/pdf/pdftest"
	"github.com/spherical/magsplit/internal/summarize"
)

type fakeOCR struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (f *fakeOCR) Apply(ctx context.Context, doc *pdf.Document, dpi int, progress ocr.ProgressFunc) (*pdf.Document, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	for i := 1; i <= doc.PageCount(); i++ {
		var pageErr error
		if i == 2 {
			pageErr = errors.New("unreadable")
		}
		progress(i, doc.PageCount(), pageErr)
	}
	return doc, nil
}

type fakeSummarizer struct {
	err error
}

func (f *fakeSummarizer) Summarize(ctx context.Context, pdfPath string, report summarize.ReportFunc) (string, error) {
	report("Generating summary")
	if f.err != nil {
		return "", f.err
	}
	out := summarize.SummaryPath(pdfPath)
	return out, os.WriteFile(out, []byte("summary"), 0o644)
}

type echoChat struct{}

func (echoChat) Chat(ctx context.Context, system, user string, maxTokens int) (string, error) {
	return "summary", nil
}

type byteTokenizer struct{}

func (byteTokenizer) Encode(text string) []int {
	out := make([]int, len(text))
	for i := 0; i < len(text); i++ {
		out[i] = int(text[i])
	}
	return out
}

func (byteTokenizer) Decode(tokens []int) string {
	b := make([]byte, len(tokens))
	for i, t := range tokens {
		b[i] = byte(t)
	}
	return string(b)
}

func openSource(t *testing.T, pages int, blank bool) Source {
	t.Helper()
	path := pdftest.WriteFile(t, "issue.pdf", pages, blank)
	doc, err := pdf.Open(path)
	require.NoError(t, err)
	return Source{Path: path, Doc: doc}
}

func kinds(msgs []domain.TaskMessage) []domain.MessageKind {
	out := make([]domain.MessageKind, len(msgs))
	for i, m := range msgs {
		out[i] = m.Kind
	}
	return out
}

func texts(msgs []domain.TaskMessage) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.Text
	}
	return out
}

func TestOutputPath(t *testing.T) {
	spec := domain.ArticleSpec{Name: "What/Why?"}
	assert.Equal(t, filepath.Join("/mags", "May 2024", "What_Why_.pdf"), OutputPath("/mags/May 2024.pdf", spec))
	assert.Equal(t, filepath.Join("/mags", "issue"), OutputDir("/mags/issue.pdf"))
}

func TestGenerateSplitOnly(t *testing.T) {
	src := openSource(t, 20, false)
	q := coordinator.NewQueue()
	g := NewGenerator(q, nil, nil, nil)

	spec := domain.ArticleSpec{ID: 0, Name: "Foo", StartPage: 3, EndPage: 5}
	res := g.Generate(context.Background(), src, spec, domain.Options{})

	require.NoError(t, res.Err)
	assert.Equal(t, domain.StateComplete, res.State)
	assert.Equal(t, filepath.Join(filepath.Dir(src.Path), "issue", "Foo.pdf"), res.PDFPath)
	assert.Empty(t, res.SummaryPath)

	out, err := pdf.Open(res.PDFPath)
	require.NoError(t, err)
	assert.Equal(t, 3, out.PageCount())

	text, err := pdf.ExtractText(out)
	require.NoError(t, err)
	for _, p := range []int{3, 4, 5} {
		assert.Contains(t, text, pdftest.PageText(p))
	}
	assert.NotContains(t, text, pdftest.PageText(6))

	assert.NoFileExists(t, summarize.SummaryPath(res.PDFPath))

	msgs := q.Drain()
	require.NotEmpty(t, msgs)
	assert.Equal(t, "Extracting pages 3-5", msgs[0].Text)
	assert.Equal(t, domain.MessageComplete, msgs[len(msgs)-1].Kind)
	for _, m := range msgs {
		assert.Equal(t, 0, m.ArticleID)
	}
}

func TestGenerateIsRepeatable(t *testing.T) {
	src := openSource(t, 6, false)
	g := NewGenerator(coordinator.NewQueue(), nil, nil, nil)
	spec := domain.ArticleSpec{Name: "Again", StartPage: 2, EndPage: 3}

	first := g.Generate(context.Background(), src, spec, domain.Options{})
	require.NoError(t, first.Err)
	firstText := extract(t, first.PDFPath)

	second := g.Generate(context.Background(), src, spec, domain.Options{})
	require.NoError(t, second.Err)
	assert.Equal(t, first.PDFPath, second.PDFPath)
	assert.Equal(t, firstText, extract(t, second.PDFPath))
}

func extract(t *testing.T, path string) string {
	t.Helper()
	doc, err := pdf.Open(path)
	require.NoError(t, err)
	text, err := pdf.ExtractText(doc)
	require.NoError(t, err)
	return text
}

func TestGenerateValidationFailureDoesNoIO(t *testing.T) {
	tests := []domain.ArticleSpec{
		{ID: 1, Name: "Backwards", StartPage: 5, EndPage: 3},
		{ID: 2, Name: "", StartPage: 1, EndPage: 2},
		{ID: 3, Name: "Long", StartPage: 19, EndPage: 21},
		{ID: 4, Name: "Zero", StartPage: 0, EndPage: 1},
	}

	for _, spec := range tests {
		t.Run(spec.Label(), func(t *testing.T) {
			src := openSource(t, 20, false)
			q := coordinator.NewQueue()
			recovery := &fakeOCR{}
			g := NewGenerator(q, recovery, &fakeSummarizer{}, nil)

			res := g.Generate(context.Background(), src, spec, domain.Options{OCR: true, Summarize: true})
			assert.Equal(t, domain.StateFailed, res.State)
			assert.True(t, domain.IsType(res.Err, domain.ErrorTypeInvalidRange))
			assert.Empty(t, res.PDFPath)
			assert.NoDirExists(t, OutputDir(src.Path))
			assert.Zero(t, recovery.calls)

			msgs := q.Drain()
			require.Len(t, msgs, 1)
			assert.Equal(t, domain.MessageError, msgs[0].Kind)
			assert.Equal(t, spec.ID, msgs[0].ArticleID)
		})
	}
}

func TestGenerateWithOCR(t *testing.T) {
	src := openSource(t, 20, false)
	q := coordinator.NewQueue()
	recovery := &fakeOCR{}
	g := NewGenerator(q, recovery, nil, nil)

	spec := domain.ArticleSpec{ID: 7, Name: "Bar", StartPage: 10, EndPage: 11}
	res := g.Generate(context.Background(), src, spec, domain.Options{OCR: true, DPI: 150})

	require.NoError(t, res.Err)
	assert.Equal(t, 1, recovery.calls)

	out, err := pdf.Open(res.PDFPath)
	require.NoError(t, err)
	assert.Equal(t, 2, out.PageCount())

	got := texts(q.Drain())
	assert.Contains(t, got, "Applying OCR: page 1/2")
	assert.Contains(t, got, "OCR failed on page 2/2, copied without text")
}

func TestGenerateOCRFailure(t *testing.T) {
	src := openSource(t, 4, false)
	q := coordinator.NewQueue()
	g := NewGenerator(q, &fakeOCR{err: domain.OCRError("tesseract missing", nil)}, nil, nil)

	res := g.Generate(context.Background(), src, domain.ArticleSpec{Name: "Foo", StartPage: 1, EndPage: 2}, domain.Options{OCR: true})
	assert.Equal(t, domain.StateFailed, res.State)
	assert.True(t, domain.IsType(res.Err, domain.ErrorTypeOCR))
	assert.NoFileExists(t, OutputPath(src.Path, domain.ArticleSpec{Name: "Foo"}))

	msgs := q.Drain()
	assert.Equal(t, domain.MessageError, msgs[len(msgs)-1].Kind)
}

func TestGenerateWithSummary(t *testing.T) {
	src := openSource(t, 5, false)
	q := coordinator.NewQueue()
	g := NewGenerator(q, nil, &fakeSummarizer{}, nil)

	res := g.Generate(context.Background(), src, domain.ArticleSpec{Name: "Foo", StartPage: 1, EndPage: 2}, domain.Options{Summarize: true})
	require.NoError(t, res.Err)
	assert.Equal(t, strings.TrimSuffix(res.PDFPath, ".pdf")+".txt", res.SummaryPath)
	assert.FileExists(t, res.SummaryPath)

	msgs := q.Drain()
	assert.Contains(t, texts(msgs), "Generating summary")
	assert.Equal(t, domain.MessageComplete, msgs[len(msgs)-1].Kind)
}

func TestGenerateSummaryFailureKeepsPDF(t *testing.T) {
	src := openSource(t, 5, false)
	q := coordinator.NewQueue()
	g := NewGenerator(q, nil, &fakeSummarizer{err: domain.SummarizationError("service down", nil)}, nil)

	res := g.Generate(context.Background(), src, domain.ArticleSpec{ID: 3, Name: "Foo", StartPage: 1, EndPage: 2}, domain.Options{Summarize: true})
	assert.Equal(t, domain.StateFailed, res.State)
	assert.FileExists(t, res.PDFPath)
	assert.Empty(t, res.SummaryPath)

	msgs := q.Drain()
	last := msgs[len(msgs)-1]
	assert.Equal(t, domain.MessageError, last.Kind)
	assert.Equal(t, 3, last.ArticleID)
	assert.Contains(t, last.Text, "PDF kept at")
}

func TestGenerateBlankDocumentSummaryFails(t *testing.T) {
	src := openSource(t, 3, true)
	q := coordinator.NewQueue()
	summarizer := summarize.New(echoChat{}, byteTokenizer{}, nil, summarize.Settings{}, nil)
	g := NewGenerator(q, nil, summarizer, nil)

	spec := domain.ArticleSpec{ID: 5, Name: "Blank", StartPage: 1, EndPage: 3}
	res := g.Generate(context.Background(), src, spec, domain.Options{Summarize: true})

	assert.Equal(t, domain.StateFailed, res.State)
	assert.True(t, domain.IsType(res.Err, domain.ErrorTypeSummarization))
	assert.FileExists(t, res.PDFPath)
	assert.NoFileExists(t, summarize.SummaryPath(res.PDFPath))

	msgs := q.Drain()
	last := msgs[len(msgs)-1]
	assert.Equal(t, domain.MessageError, last.Kind)
	assert.Equal(t, 5, last.ArticleID)
}

func TestGenerateConcurrentArticles(t *testing.T) {
	src := openSource(t, 20, false)
	q := coordinator.NewQueue()
	g := NewGenerator(q, &fakeOCR{}, &fakeSummarizer{}, nil)

	specs := []domain.ArticleSpec{
		{ID: 0, Name: "A", StartPage: 1, EndPage: 8},
		{ID: 1, Name: "B", StartPage: 9, EndPage: 20},
	}

	var wg sync.WaitGroup
	results := make([]Result, len(specs))
	for i, spec := range specs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = g.Generate(context.Background(), src, spec, domain.Options{OCR: true, Summarize: true})
		}()
	}
	wg.Wait()

	for _, res := range results {
		require.NoError(t, res.Err)
		assert.Equal(t, domain.StateComplete, res.State)
	}

	perArticle := map[int][]domain.TaskMessage{}
	for _, m := range q.Drain() {
		perArticle[m.ArticleID] = append(perArticle[m.ArticleID], m)
	}
	require.Len(t, perArticle, 2)

	for id, msgs := range perArticle {
		ks := kinds(msgs)
		assert.Equal(t, domain.MessageComplete, ks[len(ks)-1], "article %d", id)
		for _, k := range ks[:len(ks)-1] {
			assert.Equal(t, domain.MessageStatus, k, "article %d", id)
		}
		assert.Equal(t, "Extracting pages "+map[int]string{0: "1-8", 1: "9-20"}[id], msgs[0].Text)
	}
}

func TestRunID(t *testing.T) {
	a := NewGenerator(coordinator.NewQueue(), nil, nil, nil)
	b := NewGenerator(coordinator.NewQueue(), nil, nil, nil)
	assert.NotEmpty(t, a.RunID())
	assert.NotEqual(t, a.RunID(), b.RunID())
}
