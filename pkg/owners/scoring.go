package owners

import (
	"sort"

	"github.com/gravitational/trace"
)

// ScoringDirection declares which end of a dimension's value range is the
// good one.
type ScoringDirection int

const (
	LowerIsBetter ScoringDirection = iota
	HigherIsBetter
)

// Score describes one scoring dimension. MaxValue 0 means the max is
// context-dependent and supplied by the caller when the scoring is built.
// The dimension set is closed; there is no runtime registration.
type Score struct {
	ID        string
	Direction ScoringDirection
	MaxValue  int
	Weight    float64
}

var (
	// ScoreDistance ranks owners found closer to the file above owners
	// found further up the hierarchy. Its max is the deepest directory
	// count for the file at hand.
	ScoreDistance = Score{ID: "DISTANCE", Direction: LowerIsBetter, Weight: 1}

	// ScoreIsReviewer prefers owners that are already reviewers.
	ScoreIsReviewer = Score{ID: "IS_REVIEWER", Direction: HigherIsBetter, MaxValue: 1, Weight: 2}

	// ScoreIsExplicitlyMentioned prefers owners listed by email over owners
	// matched through a wildcard.
	ScoreIsExplicitlyMentioned = Score{ID: "IS_EXPLICITLY_MENTIONED", Direction: HigherIsBetter, MaxValue: 1, Weight: 1}
)

// Scoring accumulates raw values for one dimension. PutValue keeps the best
// value per identity, never the last or an average.
type Scoring struct {
	score    Score
	maxValue int
	values   map[string]int
	order    []string
}

// NewScoring builds a scoring for a dimension with an intrinsic max value.
func NewScoring(score Score) (*Scoring, error) {
	if score.MaxValue <= 0 {
		return nil, trace.BadParameter("dimension %s needs a caller-supplied max value", score.ID)
	}
	return newScoring(score, score.MaxValue), nil
}

// NewScoringWithMax builds a scoring with a context-dependent max value.
func NewScoringWithMax(score Score, maxValue int) (*Scoring, error) {
	if maxValue <= 0 {
		return nil, trace.BadParameter("max value must be positive, got %d", maxValue)
	}
	if score.MaxValue != 0 && score.MaxValue != maxValue {
		return nil, trace.BadParameter("dimension %s has a fixed max value of %d", score.ID, score.MaxValue)
	}
	return newScoring(score, maxValue), nil
}

func newScoring(score Score, maxValue int) *Scoring {
	return &Scoring{
		score:    score,
		maxValue: maxValue,
		values:   make(map[string]int),
	}
}

// PutValue records a raw value for an identity. Repeated calls keep the
// value closest to the ideal end of the dimension.
func (s *Scoring) PutValue(identity string, value int) error {
	if value < 0 || value > s.maxValue {
		return trace.BadParameter("value %d for %s is outside [0, %d]", value, identity, s.maxValue)
	}
	current, ok := s.values[identity]
	if !ok {
		s.values[identity] = value
		s.order = append(s.order, identity)
		return nil
	}
	if s.score.Direction == LowerIsBetter && value < current {
		s.values[identity] = value
	}
	if s.score.Direction == HigherIsBetter && value > current {
		s.values[identity] = value
	}
	return nil
}

// NormalizedScore maps the identity's raw value into [0, 1] with the better
// end always at 1. Asking for an unscored identity is a caller bug in the
// single-dimension context and fails fast.
func (s *Scoring) NormalizedScore(identity string) (float64, error) {
	value, ok := s.values[identity]
	if !ok {
		return 0, trace.BadParameter("no %s value recorded for %s", s.score.ID, identity)
	}
	normalized := float64(value) / float64(s.maxValue)
	if s.score.Direction == LowerIsBetter {
		normalized = 1 - normalized
	}
	return normalized, nil
}

// Scored reports whether the identity has a recorded value.
func (s *Scoring) Scored(identity string) bool {
	_, ok := s.values[identity]
	return ok
}

// Ranked returns the scored identities best first, ties broken by insertion
// order.
func (s *Scoring) Ranked() ([]string, error) {
	ranked := append([]string{}, s.order...)
	var rankErr error
	sort.SliceStable(ranked, func(i, j int) bool {
		a, errA := s.NormalizedScore(ranked[i])
		b, errB := s.NormalizedScore(ranked[j])
		if errA != nil || errB != nil {
			// Unreachable: order only holds scored identities.
			rankErr = trace.NewAggregate(errA, errB)
			return false
		}
		return a > b
	})
	if rankErr != nil {
		return nil, rankErr
	}
	return ranked, nil
}

// Scorings combines multiple dimensions into one weighted total. In this
// combined context an identity missing from a dimension contributes 0 for
// that dimension instead of failing.
type Scorings struct {
	dimensions []*Scoring
}

func CombineScorings(dimensions ...*Scoring) Scorings {
	return Scorings{dimensions: dimensions}
}

// TotalScore is the weighted sum of the identity's normalized scores across
// all dimensions.
func (ss Scorings) TotalScore(identity string) float64 {
	total := 0.0
	for _, dim := range ss.dimensions {
		if !dim.Scored(identity) {
			continue
		}
		normalized, err := dim.NormalizedScore(identity)
		if err != nil {
			continue
		}
		total += dim.score.Weight * normalized
	}
	return total
}

// Sort orders identities best first by total score, keeping input order for
// ties.
func (ss Scorings) Sort(identities []string) {
	sort.SliceStable(identities, func(i, j int) bool {
		return ss.TotalScore(identities[i]) > ss.TotalScore(identities[j])
	})
}
