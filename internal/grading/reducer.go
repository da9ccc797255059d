package grading

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/noah-isme/sma-report-engine/internal/models"
)

// ErrInvalidMode is returned when an evaluation is requested with an
// institution mode outside the supported set.
var ErrInvalidMode = errors.New("invalid institution mode")

// University formula weights.
const (
	ContinuousAssessmentWeight = 0.40
	FinalExamWeight            = 0.60
)

// Anomaly codes recorded on subject results. They never change the formula
// outcome beyond the documented zero contribution.
const (
	AnomalyNoResults      = "no_results"
	AnomalyKindMismatch   = "kind_mismatch"
	AnomalyDuplicateCA    = "duplicate_ca_ignored"
	AnomalyDuplicateExam  = "duplicate_exam_ignored"
	AnomalyMissingCA      = "missing_ca"
	AnomalyMissingExam    = "missing_exam"
	AnomalyNegativeWeight = "negative_weight"
)

// Rounding selects how final marks are rounded to two decimals.
type Rounding string

const (
	RoundHalfUp   Rounding = "half_up"
	RoundHalfEven Rounding = "half_even"
)

// ParseRounding resolves a configured rounding name, defaulting to half-up.
func ParseRounding(raw string) Rounding {
	switch Rounding(strings.ToLower(strings.TrimSpace(raw))) {
	case RoundHalfEven:
		return RoundHalfEven
	default:
		return RoundHalfUp
	}
}

// Reducer reduces the assessment results of one subject to a final mark.
// It holds no mutable state and is safe for concurrent use.
type Reducer struct {
	roundingMode func(float64) float64
}

// NewReducer constructs a Reducer with the given rounding policy.
func NewReducer(rounding Rounding) *Reducer {
	round := func(v float64) float64 { return math.Round(v*100) / 100 }
	if rounding == RoundHalfEven {
		round = func(v float64) float64 { return math.RoundToEven(v*100) / 100 }
	}
	return &Reducer{roundingMode: round}
}

// Round applies the reducer's two-decimal rounding policy.
func (r *Reducer) Round(v float64) float64 {
	return r.roundingMode(v)
}

// Reduce produces the subject result for one offering under the given mode,
// annotating the letter grade with scale.
func (r *Reducer) Reduce(mode models.InstitutionMode, offering models.SubjectOffering, scale BandScale) (models.SubjectResult, error) {
	result := models.SubjectResult{
		SubjectID:   offering.SubjectID,
		SubjectName: offering.SubjectName,
		SubjectCode: offering.SubjectCode,
		Credits:     offering.Credits,
	}
	var (
		raw   float64
		notes []string
	)
	switch mode {
	case models.ModeSecondary:
		raw, notes = reduceWeighted(offering.Results)
	case models.ModeUniversity:
		raw, notes = reduceUniversity(offering.Results)
	default:
		return models.SubjectResult{}, fmt.Errorf("%w: %q", ErrInvalidMode, mode)
	}
	if len(offering.Results) == 0 {
		notes = append(notes, AnomalyNoResults)
	}

	result.FinalMark = r.Round(Clamp(raw))
	result.LetterGrade = scale.Letter(result.FinalMark)
	if mode == models.ModeUniversity {
		points := GradePoints(result.FinalMark)
		result.GradePoints = &points
	}
	result.Anomalies = notes
	return result, nil
}

// reduceWeighted computes Σ(score·weight)/Σweight. Absent results keep their
// weight in the denominator and contribute 0 to the numerator.
func reduceWeighted(results []models.AssessmentResult) (float64, []string) {
	var (
		sum         float64
		totalWeight float64
		notes       []string
	)
	for _, res := range results {
		if res.Kind != models.KindWeighted {
			notes = append(notes, noteFor(AnomalyKindMismatch, res))
			continue
		}
		weight := res.Weight
		if weight < 0 || math.IsNaN(weight) {
			notes = append(notes, noteFor(AnomalyNegativeWeight, res))
			weight = 0
		}
		totalWeight += weight
		sum += res.Score() * weight
	}
	if totalWeight == 0 {
		return 0, notes
	}
	return sum / totalWeight, notes
}

type universityBuckets struct {
	ca, exam       float64
	bonus, penalty float64
	hasCA, hasExam bool
}

// reduceUniversity folds results into the CA/EXAM/BONUS/PENALTY buckets and
// applies CA·0.40 + EXAM·0.60 + ΣBONUS − ΣPENALTY. CA and EXAM are singular:
// the first occurrence wins and later ones are reported.
func reduceUniversity(results []models.AssessmentResult) (float64, []string) {
	var (
		b     universityBuckets
		notes []string
	)
	for _, res := range results {
		score := res.Score()
		switch res.Kind {
		case models.KindContinuousAssessment:
			if b.hasCA {
				notes = append(notes, noteFor(AnomalyDuplicateCA, res))
				continue
			}
			b.ca, b.hasCA = score, true
		case models.KindFinalExam:
			if b.hasExam {
				notes = append(notes, noteFor(AnomalyDuplicateExam, res))
				continue
			}
			b.exam, b.hasExam = score, true
		case models.KindBonus:
			b.bonus += score
		case models.KindPenalty:
			b.penalty += score
		default:
			notes = append(notes, noteFor(AnomalyKindMismatch, res))
		}
	}
	if len(results) > 0 {
		if !b.hasCA {
			notes = append(notes, AnomalyMissingCA)
		}
		if !b.hasExam {
			notes = append(notes, AnomalyMissingExam)
		}
	}
	return b.ca*ContinuousAssessmentWeight + b.exam*FinalExamWeight + (b.bonus - b.penalty), notes
}

func noteFor(code string, res models.AssessmentResult) string {
	label := res.AssessmentName
	if label == "" {
		label = res.AssessmentID
	}
	if label == "" {
		return code
	}
	return code + ":" + label
}
