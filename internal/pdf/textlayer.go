package pdf

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	"github.com/spherical/magsplit/internal/domain"
)

// invisibleTextDesc anchors 1pt fully transparent text at the page origin.
const invisibleTextDesc = "font:Helvetica, points:1, pos:tl, off:0 0, rot:0, scale:1 abs, op:0, fillc:#000000"

// AddTextLayer returns a copy of doc with an invisible text layer on every
// page present in texts (keyed by 1-based page number). Pages without an
// entry, or with blank text, are copied unchanged.
func AddTextLayer(doc *Document, texts map[int]string) (*Document, error) {
	stamps := make(map[int]*model.Watermark, len(texts))
	for page, text := range texts {
		if page < 1 || page > doc.PageCount() {
			return nil, domain.OCRError(fmt.Sprintf("text layer for page %d outside document", page), nil)
		}
		text = sanitizeLayerText(text)
		if text == "" {
			continue
		}
		wm, err := api.TextWatermark(text, invisibleTextDesc, true, false, types.POINTS)
		if err != nil {
			return nil, domain.OCRError(fmt.Sprintf("failed to build text layer for page %d", page), err)
		}
		stamps[page] = wm
	}

	if len(stamps) == 0 {
		return doc.withData(doc.Bytes()), nil
	}

	var buf bytes.Buffer
	if err := api.AddWatermarksMap(doc.Reader(), &buf, stamps, newConfiguration()); err != nil {
		return nil, domain.OCRError("failed to write text layer", err)
	}
	return doc.withData(buf.Bytes()), nil
}

// UnsupportedLayerRunes counts the characters of text the text layer cannot
// carry. The layer uses the standard Helvetica encoding, so anything above
// Latin-1 is replaced with a space.
func UnsupportedLayerRunes(text string) int {
	n := 0
	for _, r := range text {
		if r > 0xff {
			n++
		}
	}
	return n
}

// sanitizeLayerText keeps text the standard Helvetica encoding can carry and
// defuses pdfcpu's %p/%P page number placeholders.
func sanitizeLayerText(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		switch {
		case r == '\n':
			b.WriteRune(r)
		case r == '\t' || r == '\r':
			b.WriteByte(' ')
		case r < 0x20 || (r >= 0x7f && r < 0xa0) || r > 0xff:
			b.WriteByte(' ')
		default:
			b.WriteRune(r)
		}
	}
	out := strings.ReplaceAll(b.String(), "%p", "% p")
	out = strings.ReplaceAll(out, "%P", "% P")
	return strings.TrimSpace(out)
}
