package grading

import (
	"fmt"

	"github.com/noah-isme/sma-report-engine/internal/models"
)

// Assembler builds report cards from subject offerings. It is stateless apart
// from its configuration and may be shared across goroutines.
type Assembler struct {
	reducer *Reducer
	profile Profile
}

// NewAssembler constructs an Assembler. A nil reducer uses half-up rounding.
func NewAssembler(reducer *Reducer, profile Profile) *Assembler {
	if reducer == nil {
		reducer = NewReducer(RoundHalfUp)
	}
	return &Assembler{reducer: reducer, profile: profile}
}

// WithProfile returns a copy of the assembler using profile.
func (a *Assembler) WithProfile(profile Profile) *Assembler {
	return &Assembler{reducer: a.reducer, profile: profile}
}

// Assemble reduces every offering and computes the term aggregates. The only
// error it returns wraps ErrInvalidMode.
func (a *Assembler) Assemble(input models.ReportCardInput) (models.ReportCard, error) {
	if !input.Mode.Valid() {
		return models.ReportCard{}, fmt.Errorf("%w: %q", ErrInvalidMode, input.Mode)
	}
	card := models.ReportCard{
		Student:  input.Student,
		Term:     input.Term,
		Mode:     input.Mode,
		Subjects: make([]models.SubjectResult, 0, len(input.Offerings)),
	}
	scale := a.profile.SubjectScale(input.Mode)

	var (
		markSum        float64
		weightedPoints float64
		totalCredits   float64
	)
	for _, offering := range input.Offerings {
		result, err := a.reducer.Reduce(input.Mode, offering, scale)
		if err != nil {
			return models.ReportCard{}, err
		}
		if len(result.Anomalies) > 0 {
			card.Incomplete = true
		}
		markSum += result.FinalMark
		if result.GradePoints != nil && result.Credits > 0 {
			weightedPoints += *result.GradePoints * result.Credits
			totalCredits += result.Credits
		}
		card.Subjects = append(card.Subjects, result)
	}

	if n := len(card.Subjects); n > 0 {
		card.OverallAverage = a.reducer.Round(markSum / float64(n))
	}
	card.OverallGrade = a.profile.Overall().Letter(card.OverallAverage)
	if input.Mode == models.ModeUniversity {
		card.TotalCredits = totalCredits
		if totalCredits > 0 {
			gpa := a.reducer.Round(weightedPoints / totalCredits)
			card.GPA = &gpa
		}
	}
	return card, nil
}
