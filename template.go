package palmscan

import (
	"bytes"
	"encoding/base64"
	"strings"

	"github.com/pkg/errors"
)

// TemplateSize is the side of the normalised image; templates are
// TemplateSize*TemplateSize bytes long with the default encoder settings.
const (
	TemplateSize   = 128
	TemplateLength = TemplateSize * TemplateSize
)

// Template is an immutable row-major byte encoding of a preprocessed palm.
type Template struct {
	data []byte
}

// NewTemplate copies data into a new template.
func NewTemplate(data []byte) *Template {
	return &Template{data: append([]byte(nil), data...)}
}

// ParseTemplate decodes the at-rest form: base64 text, surrounding
// whitespace ignored.
func ParseTemplate(b64 string) (*Template, error) {
	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(b64))
	if err != nil {
		return nil, errors.Wrap(err, "cannot decode base64 template")
	}
	return &Template{data: data}, nil
}

func (t *Template) Len() int { return len(t.data) }

// Bytes returns a copy of the template bytes.
func (t *Template) Bytes() []byte { return append([]byte(nil), t.data...) }

// Base64 returns the at-rest and in-transit text form.
func (t *Template) Base64() string { return base64.StdEncoding.EncodeToString(t.data) }

func (t *Template) Equal(o *Template) bool {
	if t == nil || o == nil {
		return t == o
	}
	return bytes.Equal(t.data, o.data)
}
