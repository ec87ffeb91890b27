package ocr

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"strings"

	"github.com/otiai10/gosseract/v2"

	"github.com/spherical/magsplit/internal/domain"
)

// Tesseract recognizes text with a local Tesseract installation. Each call
// uses its own client, so one Tesseract may serve many goroutines.
type Tesseract struct {
	languages     []string
	clientFactory func() *gosseract.Client
}

// NewTesseract creates a recognizer for the given Tesseract language codes
// ("eng", "deu+eng" style strings are split on '+').
func NewTesseract(language string) *Tesseract {
	var langs []string
	for _, l := range strings.Split(language, "+") {
		if l = strings.TrimSpace(l); l != "" {
			langs = append(langs, l)
		}
	}
	return &Tesseract{languages: langs, clientFactory: gosseract.NewClient}
}

// RecognizeText implements Recognizer.
func (t *Tesseract) RecognizeText(ctx context.Context, img image.Image, dpi int) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", domain.OCRError("failed to encode page image", err)
	}

	c := t.clientFactory()
	defer c.Close()

	if err := c.SetImageFromBytes(buf.Bytes()); err != nil {
		return "", domain.OCRError("set image", err)
	}
	if len(t.languages) > 0 {
		if err := c.SetLanguage(t.languages...); err != nil {
			return "", domain.OCRError("set languages", err)
		}
	}
	if dpi > 0 {
		if err := c.SetVariable(gosseract.SettableVariable("user_defined_dpi"), fmt.Sprint(dpi)); err != nil {
			return "", domain.OCRError("set dpi", err)
		}
	}

	text, err := c.Text()
	if err != nil {
		return "", domain.OCRError("recognize text", err)
	}
	return strings.TrimSpace(text), nil
}
