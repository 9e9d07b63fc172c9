package compliance

import "math"

// credit per status for the weighted score.
const (
	creditCompliant    = 1.0
	creditPartial      = 0.5
	creditNonCompliant = 0.0
)

// WeightedStatus pairs an answer's verdict with its question's weight.
type WeightedStatus struct {
	Status Status
	Weight float64
}

// Summary is the per-status answer count, a derived view over the answers.
type Summary struct {
	Compliant    int `json:"compliant" bson:"compliant"`
	Partial      int `json:"partial" bson:"partial"`
	NonCompliant int `json:"non_compliant" bson:"non_compliant"`
}

// Aggregate folds per-answer statuses into the visit score (0-100, two decimal
// places) and the status counts. Only answered questions participate: the
// caller passes one entry per submitted answer, so unanswered questions reduce
// the weight denominator instead of penalizing the score. A zero weight sum
// yields a score of 0. The fold is order-independent.
func Aggregate(items []WeightedStatus) (float64, Summary) {
	var summary Summary
	var weightSum, earned float64
	for _, item := range items {
		switch item.Status {
		case StatusCompliant:
			summary.Compliant++
			earned += item.Weight * creditCompliant
		case StatusPartial:
			summary.Partial++
			earned += item.Weight * creditPartial
		case StatusNonCompliant:
			summary.NonCompliant++
		}
		weightSum += item.Weight
	}
	if weightSum <= 0 {
		return 0, summary
	}
	score := math.Round(earned/weightSum*100*100) / 100
	return score, summary
}
