package evaluate

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantumvote/palmscan"
)

func TestReadPairs(t *testing.T) {
	csv := "label, gallery_path, probe_path, note\n1, g1.b64, p1.b64, x\n0,g2.b64,p2.b64,\n"
	recs, err := ReadPairs(strings.NewReader(csv))
	require.NoError(t, err)
	assert.Equal(t, []PairRecord{
		{ProbePath: "p1.b64", GalleryPath: "g1.b64", Label: 1},
		{ProbePath: "p2.b64", GalleryPath: "g2.b64", Label: 0},
	}, recs)
}

func TestReadPairsErrors(t *testing.T) {
	_, err := ReadPairs(strings.NewReader(""))
	assert.ErrorIs(t, err, ErrNoPairs)

	_, err = ReadPairs(strings.NewReader("probe_path,gallery_path,label\n"))
	assert.ErrorIs(t, err, ErrNoPairs)

	_, err = ReadPairs(strings.NewReader("probe_path,label\na,1\n"))
	assert.ErrorContains(t, err, "gallery_path")

	_, err = ReadPairs(strings.NewReader("probe_path,gallery_path,label\na,b,2\n"))
	assert.ErrorContains(t, err, "line 2")

	_, err = ReadPairs(strings.NewReader("probe_path,gallery_path,label\na,b\n"))
	assert.Error(t, err)
}

func TestPerfectSeparation(t *testing.T) {
	scores := []Scored{{1, 1}, {1, 1}, {1, 1}, {0, 0}, {0, 0}}
	r, err := Summarize(scores, 10)
	require.NoError(t, err)

	assert.Equal(t, 1.0, r.AUC)
	assert.Equal(t, 0.0, r.EER)
	assert.Equal(t, 3, r.Positives)
	assert.Equal(t, 2, r.Negatives)
}

func TestInvertedScores(t *testing.T) {
	r, err := Summarize([]Scored{{0.1, 1}, {0.9, 0}}, 10)
	require.NoError(t, err)
	assert.Equal(t, 0.0, r.AUC)
	assert.Equal(t, 1.0, r.EER)
}

func TestROCPoints(t *testing.T) {
	scores := []Scored{{0.9, 1}, {0.8, 0}, {0.8, 1}, {0.3, 0}}
	c, err := ROC(scores)
	require.NoError(t, err)

	require.Len(t, c.Points, 4)
	assert.InDelta(t, 1.9, c.Points[0].Threshold, 1e-12)
	assert.Equal(t, 0.0, c.Points[0].FPR)
	assert.Equal(t, 0.0, c.Points[0].TPR)
	assert.Equal(t, []OperatingPoint{
		{Threshold: 0.9, FPR: 0, TPR: 0.5},
		{Threshold: 0.8, FPR: 0.5, TPR: 1},
		{Threshold: 0.3, FPR: 1, TPR: 1},
	}, c.Points[1:])
	assert.InDelta(t, 0.875, c.AUC(), 1e-12)

	eer, th := c.EER()
	assert.InDelta(t, 0.25, eer, 1e-12)
	assert.Equal(t, 0.9, th)
}

func TestROCErrors(t *testing.T) {
	_, err := ROC(nil)
	assert.ErrorIs(t, err, ErrNoPairs)
	_, err = ROC([]Scored{{0.5, 1}, {0.7, 1}})
	assert.ErrorIs(t, err, ErrSingleClass)
}

func TestSample(t *testing.T) {
	c := &Curve{}
	for i := 0; i < 25; i++ {
		c.Points = append(c.Points, OperatingPoint{Threshold: float64(25 - i)})
	}
	s := c.Sample(10)
	require.Len(t, s, 13)
	assert.Equal(t, 25.0, s[0].Threshold)
	assert.Equal(t, 23.0, s[1].Threshold)

	short := &Curve{Points: c.Points[:3]}
	assert.Len(t, short.Sample(10), 3)
}

func writeTemplate(t *testing.T, dir, name string, data []byte) string {
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(palmscan.NewTemplate(data).Base64()+"\n"), 0644))
	return path
}

func TestRunFromFiles(t *testing.T) {
	dir := t.TempDir()
	a := writeTemplate(t, dir, "a.b64", bytes.Repeat([]byte{200}, 64))
	a2 := writeTemplate(t, dir, "a2.b64", bytes.Repeat([]byte{198}, 64))
	b := writeTemplate(t, dir, "b.b64", bytes.Repeat([]byte{10}, 64))

	csv := "probe_path,gallery_path,label\n" + a + "," + a2 + ",1\n" + a + "," + b + ",0\n"
	csvPath := filepath.Join(dir, "pairs.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte(csv), 0644))

	recs, err := ReadPairsFile(csvPath)
	require.NoError(t, err)
	r, err := Run(recs, nil, 10)
	require.NoError(t, err)
	assert.Equal(t, 1.0, r.AUC)
	assert.Equal(t, 0.0, r.EER)

	_, err = Run([]PairRecord{{ProbePath: filepath.Join(dir, "none.b64"), GalleryPath: a, Label: 1}}, nil, 10)
	assert.Error(t, err)
}

func TestReportFormats(t *testing.T) {
	r, err := Summarize([]Scored{{0.9, 1}, {0.2, 0}}, 10)
	require.NoError(t, err)

	var text bytes.Buffer
	require.NoError(t, r.Write(&text, FormatText))
	assert.Contains(t, text.String(), "AUC: 1.000000")
	assert.Contains(t, text.String(), "th=0.900 fpr=0.000 tpr=1.000")

	var js bytes.Buffer
	require.NoError(t, r.Write(&js, FormatJSON))
	var decoded Report
	require.NoError(t, json.Unmarshal(js.Bytes(), &decoded))
	assert.Equal(t, r.AUC, decoded.AUC)

	var cb bytes.Buffer
	require.NoError(t, r.Write(&cb, FormatCBOR))
	var fromCBOR Report
	require.NoError(t, cbor.Unmarshal(cb.Bytes(), &fromCBOR))
	assert.Equal(t, r.Curve, fromCBOR.Curve)

	assert.Error(t, r.Write(&text, "xml"))
}
