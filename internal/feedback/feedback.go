// Package feedback holds the scoring result of an answer and turns it into
// something a person can read.
package feedback

import "math"

// MaxScore is the top of the scoring scale.
const MaxScore = 10

// Feedback is the structured result of scoring one answer.
type Feedback struct {
	Score        int      `json:"score"`
	Strengths    []string `json:"strengths"`
	Weaknesses   []string `json:"weaknesses"`
	Improvements []string `json:"improvements"`
	Overall      string   `json:"overall"`
}

// NormalizeScore rounds a wire score to the nearest integer and clamps it
// to 0..MaxScore.
func NormalizeScore(v float64) int {
	if math.IsNaN(v) {
		return 0
	}
	s := int(math.Round(v))
	switch {
	case s < 0:
		return 0
	case s > MaxScore:
		return MaxScore
	}
	return s
}

// Clone returns a deep copy of f.
func (f Feedback) Clone() Feedback {
	f.Strengths = cloneStrings(f.Strengths)
	f.Weaknesses = cloneStrings(f.Weaknesses)
	f.Improvements = cloneStrings(f.Improvements)
	return f
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	return append([]string(nil), in...)
}
