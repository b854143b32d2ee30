// Package evaluate measures template matching accuracy offline from labelled
// probe/gallery pairs.
package evaluate

import (
	"encoding/csv"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/exp/slices"

	"github.com/quantumvote/palmscan"
)

// Column names of the pairs CSV header.
const (
	ColumnProbe   = "probe_path"
	ColumnGallery = "gallery_path"
	ColumnLabel   = "label"
)

var ErrNoPairs = errors.New("no pairs to evaluate")

// PairRecord is one CSV row: two template paths and whether they belong to
// the same subject (label 1) or not (label 0).
type PairRecord struct {
	ProbePath   string
	GalleryPath string
	Label       int
}

// MatchPair is a PairRecord with its templates loaded.
type MatchPair struct {
	Probe   *palmscan.Template
	Gallery *palmscan.Template
	Label   int
}

// ReadPairs parses a CSV with a header naming probe_path, gallery_path and
// label in any order. Extra columns are ignored.
func ReadPairs(r io.Reader) ([]PairRecord, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err == io.EOF {
		return nil, ErrNoPairs
	}
	if err != nil {
		return nil, errors.Wrap(err, "cannot read pairs header")
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}
	cols := map[string]int{}
	for _, name := range []string{ColumnProbe, ColumnGallery, ColumnLabel} {
		idx := slices.Index(header, name)
		if idx < 0 {
			return nil, errors.Errorf("pairs header lacks column %q", name)
		}
		cols[name] = idx
	}

	var out []PairRecord
	for line := 2; ; line++ {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrapf(err, "cannot read pairs line %d", line)
		}
		field := func(name string) (string, error) {
			if cols[name] >= len(row) {
				return "", errors.Errorf("pairs line %d: missing %s", line, name)
			}
			return strings.TrimSpace(row[cols[name]]), nil
		}
		probe, err := field(ColumnProbe)
		if err != nil {
			return nil, err
		}
		gallery, err := field(ColumnGallery)
		if err != nil {
			return nil, err
		}
		label, err := field(ColumnLabel)
		if err != nil {
			return nil, err
		}
		rec := PairRecord{ProbePath: probe, GalleryPath: gallery}
		switch label {
		case "0":
		case "1":
			rec.Label = 1
		default:
			return nil, errors.Errorf("pairs line %d: label must be 0 or 1, got %q", line, label)
		}
		out = append(out, rec)
	}
	if len(out) == 0 {
		return nil, ErrNoPairs
	}
	return out, nil
}

// ReadPairsFile opens path and calls ReadPairs.
func ReadPairsFile(path string) ([]PairRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "cannot open pairs file")
	}
	defer f.Close()
	return ReadPairs(f)
}

// TemplateLoader resolves a template path.
type TemplateLoader func(path string) (*palmscan.Template, error)

// LoadTemplateFile reads a base64 template file.
func LoadTemplateFile(path string) (*palmscan.Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "cannot read template")
	}
	tpl, err := palmscan.ParseTemplate(string(data))
	if err != nil {
		return nil, errors.Wrapf(err, "template %s", path)
	}
	return tpl, nil
}

// LoadPairs loads both templates of every record.
func LoadPairs(records []PairRecord, load TemplateLoader) ([]MatchPair, error) {
	if load == nil {
		load = LoadTemplateFile
	}
	pairs := make([]MatchPair, 0, len(records))
	for _, rec := range records {
		probe, err := load(rec.ProbePath)
		if err != nil {
			return nil, err
		}
		gallery, err := load(rec.GalleryPath)
		if err != nil {
			return nil, err
		}
		pairs = append(pairs, MatchPair{Probe: probe, Gallery: gallery, Label: rec.Label})
	}
	return pairs, nil
}
