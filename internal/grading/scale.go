package grading

import (
	"math"
	"strings"
)

const (
	// MinMark is the lowest mark a subject can receive.
	MinMark = 0.0
	// MaxMark is the highest mark a subject can receive.
	MaxMark = 100.0
)

// Band is the lower bound (inclusive) of a letter grade.
type Band struct {
	Min    float64
	Letter string
}

// BandScale partitions [0,100] into contiguous letter bands ordered from the
// highest Min to the lowest. The last band must start at 0.
type BandScale struct {
	Name  string
	Bands []Band
}

// Scale names accepted by ScaleByName and grading profiles.
const (
	ScaleSecondary = "SECONDARY"
	ScaleGPA       = "GPA"
)

// SecondaryBandScale is the six band percentage scale used for secondary
// grading and for the overall grade of every report card.
var SecondaryBandScale = BandScale{
	Name: ScaleSecondary,
	Bands: []Band{
		{Min: 90, Letter: "A"},
		{Min: 80, Letter: "B"},
		{Min: 70, Letter: "C"},
		{Min: 60, Letter: "D"},
		{Min: 50, Letter: "E"},
		{Min: 0, Letter: "F"},
	},
}

// GpaBandScale is the scale used next to grade points for university subjects.
// Its bands do not line up with SecondaryBandScale.
var GpaBandScale = BandScale{
	Name: ScaleGPA,
	Bands: []Band{
		{Min: 80, Letter: "A"},
		{Min: 70, Letter: "B+"},
		{Min: 60, Letter: "B"},
		{Min: 50, Letter: "C+"},
		{Min: 40, Letter: "C"},
		{Min: 0, Letter: "F"},
	},
}

// ScaleByName resolves a scale by its (case-insensitive) name.
func ScaleByName(name string) (BandScale, bool) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case ScaleSecondary:
		return SecondaryBandScale, true
	case ScaleGPA:
		return GpaBandScale, true
	default:
		return BandScale{}, false
	}
}

// Letter maps a mark to its letter grade. Out of range input is clamped first.
func (s BandScale) Letter(mark float64) string {
	if len(s.Bands) == 0 {
		return ""
	}
	m := Clamp(mark)
	for _, band := range s.Bands {
		if m >= band.Min {
			return band.Letter
		}
	}
	return s.Bands[len(s.Bands)-1].Letter
}

// Lowest returns the letter of the bottom band.
func (s BandScale) Lowest() string {
	if len(s.Bands) == 0 {
		return ""
	}
	return s.Bands[len(s.Bands)-1].Letter
}

// GradePoints maps a mark to the 4.0 grade-point value used for GPA.
func GradePoints(mark float64) float64 {
	m := Clamp(mark)
	switch {
	case m >= 80:
		return 4.0
	case m >= 70:
		return 3.5
	case m >= 60:
		return 3.0
	case m >= 50:
		return 2.5
	case m >= 40:
		return 2.0
	default:
		return 0.0
	}
}

// Clamp bounds a mark to [MinMark, MaxMark]. NaN becomes MinMark.
func Clamp(mark float64) float64 {
	if math.IsNaN(mark) || mark < MinMark {
		return MinMark
	}
	if mark > MaxMark {
		return MaxMark
	}
	return mark
}
