package splitter

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/spherical/magsplit/internal/domain"
)

// Manifest lists the articles of one issue:
//
//	articles:
//	  - name: Editorial
//	    start: 3
//	    end: 4
type Manifest struct {
	Articles []domain.ArticleSpec `yaml:"articles"`
}

// LoadManifest reads and decodes the manifest at path. Ranges are not
// checked here; they are validated against the document when generated.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, domain.IOError(fmt.Sprintf("failed to read manifest %s", path), err)
	}
	return ParseManifest(data)
}

// ParseManifest decodes a YAML manifest. Unknown keys are rejected.
func ParseManifest(data []byte) (*Manifest, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var m Manifest
	if err := dec.Decode(&m); err != nil && !errors.Is(err, io.EOF) {
		return nil, domain.ValidationError("invalid manifest", err)
	}
	if len(m.Articles) == 0 {
		return nil, domain.ValidationError("manifest defines no articles", nil)
	}
	return &m, nil
}

// AddTo registers every manifest article with registry owner s and
// returns the created specs.
func (m *Manifest) AddTo(s *Session) []domain.ArticleSpec {
	out := make([]domain.ArticleSpec, 0, len(m.Articles))
	for _, a := range m.Articles {
		out = append(out, s.Registry().Add(a.Name, a.StartPage, a.EndPage))
	}
	return out
}
