package palmscan

// Similarity is 1 minus the mean absolute byte difference over the shared
// prefix of a and b, divided by 255. Bytes past the shorter input are
// ignored. An empty overlap scores 0.
func Similarity(a, b []byte) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	if n == 0 {
		return 0
	}
	var diff int64
	for i := 0; i < n; i++ {
		d := int64(a[i]) - int64(b[i])
		if d < 0 {
			d = -d
		}
		diff += d
	}
	sim := 1 - (float64(diff)/float64(n))/255
	if sim < 0 {
		return 0
	}
	return sim
}

// Matcher scores candidates against a fixed probe template.
type Matcher struct {
	probe *Template
}

func NewMatcher(probe *Template) *Matcher {
	return &Matcher{probe: probe}
}

func (m *Matcher) Match(candidate *Template) float64 {
	if m.probe == nil || candidate == nil {
		return 0
	}
	return Similarity(m.probe.data, candidate.data)
}
