package evaluate

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"
	"github.com/pkg/errors"
)

// Report formats.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatCBOR = "cbor"
)

// Report summarises matching accuracy over a pair set.
type Report struct {
	Pairs        int              `json:"pairs" cbor:"pairs"`
	Positives    int              `json:"positives" cbor:"positives"`
	Negatives    int              `json:"negatives" cbor:"negatives"`
	AUC          float64          `json:"auc" cbor:"auc"`
	EER          float64          `json:"eer" cbor:"eer"`
	EERThreshold float64          `json:"eer_threshold" cbor:"eer_threshold"`
	Samples      []OperatingPoint `json:"samples" cbor:"samples"`
	Curve        []OperatingPoint `json:"curve" cbor:"curve"`
}

// Summarize derives the report from scored pairs. samples is the number of
// operating points to sample for inspection.
func Summarize(scores []Scored, samples int) (*Report, error) {
	curve, err := ROC(scores)
	if err != nil {
		return nil, err
	}
	eer, th := curve.EER()
	return &Report{
		Pairs:        len(scores),
		Positives:    curve.Positives,
		Negatives:    curve.Negatives,
		AUC:          curve.AUC(),
		EER:          eer,
		EERThreshold: th,
		Samples:      curve.Sample(samples),
		Curve:        curve.Points,
	}, nil
}

// Run loads and scores records, then summarises.
func Run(records []PairRecord, load TemplateLoader, samples int) (*Report, error) {
	pairs, err := LoadPairs(records, load)
	if err != nil {
		return nil, err
	}
	return Summarize(ScorePairs(pairs), samples)
}

// Write renders r in format.
func (r *Report) Write(w io.Writer, format string) error {
	switch format {
	case FormatText, "":
		return r.writeText(w)
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	case FormatCBOR:
		data, err := cbor.Marshal(r)
		if err != nil {
			return errors.Wrap(err, "cannot encode report")
		}
		_, err = w.Write(data)
		return err
	}
	return errors.Errorf("unknown report format %q", format)
}

func (r *Report) writeText(w io.Writer) error {
	if _, err := fmt.Fprintf(w, "Pairs: %d (genuine %d, impostor %d)\nAUC: %.6f\nEER: %.6f (threshold %.3f)\n",
		r.Pairs, r.Positives, r.Negatives, r.AUC, r.EER, r.EERThreshold); err != nil {
		return err
	}
	for _, p := range r.Samples {
		if _, err := fmt.Fprintf(w, "th=%.3f fpr=%.3f tpr=%.3f\n", p.Threshold, p.FPR, p.TPR); err != nil {
			return err
		}
	}
	return nil
}
