package owners

import (
	"math"
	"reflect"
	"testing"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestNewScoring(t *testing.T) {
	if _, err := NewScoring(ScoreIsReviewer); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// DISTANCE has no intrinsic max, its max depends on the file's depth.
	if _, err := NewScoring(ScoreDistance); err == nil {
		t.Error("expected error for dimension without intrinsic max")
	}
}

func TestNewScoringWithMax(t *testing.T) {
	if _, err := NewScoringWithMax(ScoreDistance, 100); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := NewScoringWithMax(ScoreDistance, 0); err == nil {
		t.Error("expected error for non-positive max")
	}
	if _, err := NewScoringWithMax(ScoreIsReviewer, 5); err == nil {
		t.Error("expected error for conflicting max on fixed dimension")
	}
}

func TestScoringNormalization(t *testing.T) {
	distance, err := NewScoringWithMax(ScoreDistance, 100)
	if err != nil {
		t.Fatal(err)
	}
	if err := distance.PutValue("jane@example.com", 50); err != nil {
		t.Fatal(err)
	}
	got, err := distance.NormalizedScore("jane@example.com")
	if err != nil {
		t.Fatal(err)
	}
	// Lower is better, so 50 of 100 normalizes to 0.5.
	if !almostEqual(got, 0.5) {
		t.Errorf("NormalizedScore = %v, want 0.5", got)
	}

	reviewer, err := NewScoring(ScoreIsReviewer)
	if err != nil {
		t.Fatal(err)
	}
	if err := reviewer.PutValue("jane@example.com", 1); err != nil {
		t.Fatal(err)
	}
	got, err = reviewer.NormalizedScore("jane@example.com")
	if err != nil {
		t.Fatal(err)
	}
	if !almostEqual(got, 1) {
		t.Errorf("NormalizedScore = %v, want 1", got)
	}
}

func TestScoringKeepsBestValue(t *testing.T) {
	distance, err := NewScoringWithMax(ScoreDistance, 10)
	if err != nil {
		t.Fatal(err)
	}
	for _, v := range []int{5, 2, 7} {
		if err := distance.PutValue("jane@example.com", v); err != nil {
			t.Fatal(err)
		}
	}
	got, err := distance.NormalizedScore("jane@example.com")
	if err != nil {
		t.Fatal(err)
	}
	// Lower is better: 2 wins over 5 and 7.
	if !almostEqual(got, 0.8) {
		t.Errorf("NormalizedScore = %v, want 0.8", got)
	}

	reviewer, err := NewScoring(ScoreIsReviewer)
	if err != nil {
		t.Fatal(err)
	}
	for _, v := range []int{1, 0} {
		if err := reviewer.PutValue("jane@example.com", v); err != nil {
			t.Fatal(err)
		}
	}
	got, err = reviewer.NormalizedScore("jane@example.com")
	if err != nil {
		t.Fatal(err)
	}
	if !almostEqual(got, 1) {
		t.Errorf("NormalizedScore = %v, want 1", got)
	}
}

func TestScoringRejectsOutOfRangeValue(t *testing.T) {
	distance, err := NewScoringWithMax(ScoreDistance, 10)
	if err != nil {
		t.Fatal(err)
	}
	if err := distance.PutValue("jane@example.com", 11); err == nil {
		t.Error("expected error for value above max")
	}
	if err := distance.PutValue("jane@example.com", -1); err == nil {
		t.Error("expected error for negative value")
	}
}

func TestScoringFailsFastOnUnscoredIdentity(t *testing.T) {
	distance, err := NewScoringWithMax(ScoreDistance, 10)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := distance.NormalizedScore("nobody@example.com"); err == nil {
		t.Error("expected error for unscored identity")
	}
}

func TestScoringRanked(t *testing.T) {
	distance, err := NewScoringWithMax(ScoreDistance, 10)
	if err != nil {
		t.Fatal(err)
	}
	values := map[string]int{
		"far@example.com":  8,
		"near@example.com": 1,
		"mid@example.com":  4,
	}
	for _, id := range []string{"far@example.com", "near@example.com", "mid@example.com"} {
		if err := distance.PutValue(id, values[id]); err != nil {
			t.Fatal(err)
		}
	}
	ranked, err := distance.Ranked()
	if err != nil {
		t.Fatal(err)
	}
	expected := []string{"near@example.com", "mid@example.com", "far@example.com"}
	if !reflect.DeepEqual(ranked, expected) {
		t.Errorf("Ranked() = %v, want %v", ranked, expected)
	}
}

func TestCombinedTotalScore(t *testing.T) {
	distance, err := NewScoringWithMax(ScoreDistance, 100)
	if err != nil {
		t.Fatal(err)
	}
	reviewer, err := NewScoring(ScoreIsReviewer)
	if err != nil {
		t.Fatal(err)
	}
	if err := distance.PutValue("jane@example.com", 50); err != nil {
		t.Fatal(err)
	}
	if err := reviewer.PutValue("jane@example.com", 0); err != nil {
		t.Fatal(err)
	}

	combined := CombineScorings(distance, reviewer)
	// DISTANCE 50/100 normalizes to 0.5 at weight 1; IS_REVIEWER 0 at
	// weight 2 adds nothing.
	if got := combined.TotalScore("jane@example.com"); !almostEqual(got, 0.5) {
		t.Errorf("TotalScore = %v, want 0.5", got)
	}
}

func TestCombinedMissingDimensionScoresZero(t *testing.T) {
	distance, err := NewScoringWithMax(ScoreDistance, 10)
	if err != nil {
		t.Fatal(err)
	}
	reviewer, err := NewScoring(ScoreIsReviewer)
	if err != nil {
		t.Fatal(err)
	}
	if err := distance.PutValue("jane@example.com", 0); err != nil {
		t.Fatal(err)
	}
	// jane has no IS_REVIEWER value; in the combined context that is a 0,
	// not an error.
	combined := CombineScorings(distance, reviewer)
	if got := combined.TotalScore("jane@example.com"); !almostEqual(got, 1) {
		t.Errorf("TotalScore = %v, want 1", got)
	}
}

func TestCombinedSort(t *testing.T) {
	distance, err := NewScoringWithMax(ScoreDistance, 10)
	if err != nil {
		t.Fatal(err)
	}
	reviewer, err := NewScoring(ScoreIsReviewer)
	if err != nil {
		t.Fatal(err)
	}
	if err := distance.PutValue("near@example.com", 1); err != nil {
		t.Fatal(err)
	}
	if err := distance.PutValue("far@example.com", 9); err != nil {
		t.Fatal(err)
	}
	// far is already a reviewer; at weight 2 that outweighs distance.
	if err := reviewer.PutValue("far@example.com", 1); err != nil {
		t.Fatal(err)
	}

	ids := []string{"near@example.com", "far@example.com"}
	CombineScorings(distance, reviewer).Sort(ids)
	expected := []string{"far@example.com", "near@example.com"}
	if !reflect.DeepEqual(ids, expected) {
		t.Errorf("Sort = %v, want %v", ids, expected)
	}
}
