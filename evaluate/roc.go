package evaluate

import (
	"math"

	"github.com/emirpasic/gods/maps/treemap"
	"github.com/emirpasic/gods/utils"
	"github.com/pkg/errors"

	"github.com/quantumvote/palmscan"
)

// ErrSingleClass is returned when the labels do not include both genuine
// and impostor pairs, so one of the ROC rates is undefined.
var ErrSingleClass = errors.New("need both genuine (1) and impostor (0) pairs")

// Scored is a similarity score and its ground-truth label.
type Scored struct {
	Score float64 `json:"score" cbor:"score"`
	Label int     `json:"label" cbor:"label"`
}

// OperatingPoint is the ROC point for accepting scores >= Threshold.
type OperatingPoint struct {
	Threshold float64 `json:"threshold" cbor:"threshold"`
	FPR       float64 `json:"fpr" cbor:"fpr"`
	TPR       float64 `json:"tpr" cbor:"tpr"`
}

// Curve is a ROC curve ordered by decreasing threshold. The first point sits
// above every score (max+1) and is always (0, 0).
type Curve struct {
	Points    []OperatingPoint
	Positives int
	Negatives int
}

// ScorePairs computes the similarity of every pair.
func ScorePairs(pairs []MatchPair) []Scored {
	out := make([]Scored, len(pairs))
	for i, p := range pairs {
		out[i] = Scored{Score: palmscan.NewMatcher(p.Probe).Match(p.Gallery), Label: p.Label}
	}
	return out
}

type tally struct{ pos, neg int }

// ROC builds the curve with one point per distinct score.
func ROC(scores []Scored) (*Curve, error) {
	if len(scores) == 0 {
		return nil, ErrNoPairs
	}

	// Highest score first.
	byScore := treemap.NewWith(func(a, b interface{}) int {
		return -utils.Float64Comparator(a, b)
	})
	c := &Curve{}
	for _, s := range scores {
		if math.IsNaN(s.Score) {
			return nil, errors.New("score is NaN")
		}
		t := &tally{}
		if v, ok := byScore.Get(s.Score); ok {
			t = v.(*tally)
		} else {
			byScore.Put(s.Score, t)
		}
		if s.Label == 1 {
			t.pos++
			c.Positives++
		} else {
			t.neg++
			c.Negatives++
		}
	}
	if c.Positives == 0 || c.Negatives == 0 {
		return nil, ErrSingleClass
	}

	top, _ := byScore.Min()
	c.Points = append(c.Points, OperatingPoint{Threshold: top.(float64) + 1})
	tp, fp := 0, 0
	it := byScore.Iterator()
	for it.Next() {
		t := it.Value().(*tally)
		tp += t.pos
		fp += t.neg
		c.Points = append(c.Points, OperatingPoint{
			Threshold: it.Key().(float64),
			FPR:       float64(fp) / float64(c.Negatives),
			TPR:       float64(tp) / float64(c.Positives),
		})
	}
	return c, nil
}

// AUC integrates TPR over FPR with the trapezoidal rule.
func (c *Curve) AUC() float64 {
	area := 0.0
	for i := 1; i < len(c.Points); i++ {
		a, b := c.Points[i-1], c.Points[i]
		area += (b.FPR - a.FPR) * (b.TPR + a.TPR) / 2
	}
	return area
}

// EER picks the first point minimising |FNR-FPR| and returns the mean of
// the two rates there, with the point's threshold.
func (c *Curve) EER() (eer, threshold float64) {
	best := math.Inf(1)
	for _, p := range c.Points {
		fnr := 1 - p.TPR
		if d := math.Abs(fnr - p.FPR); d < best {
			best = d
			eer = (p.FPR + fnr) / 2
			threshold = p.Threshold
		}
	}
	return eer, threshold
}

// Sample returns roughly n evenly strided points, starting at the first.
func (c *Curve) Sample(n int) []OperatingPoint {
	if n <= 0 {
		n = 10
	}
	step := len(c.Points) / n
	if step < 1 {
		step = 1
	}
	var out []OperatingPoint
	for i := 0; i < len(c.Points); i += step {
		out = append(out, c.Points[i])
	}
	return out
}
