package models

import "time"

// Assessment is a scored activity defined on a subject offering.
type Assessment struct {
	ID         string         `db:"id" json:"id"`
	OfferingID string         `db:"offering_id" json:"offering_id"`
	TermID     string         `db:"term_id" json:"term_id"`
	Name       string         `db:"name" json:"name"`
	Kind       AssessmentKind `db:"assessment_kind" json:"assessment_kind"`
	Weight     float64        `db:"weight" json:"weight"`
}

// Mark is a single recorded score for a student on an assessment.
type Mark struct {
	ID            string    `db:"id" json:"id"`
	AssessmentID  string    `db:"assessment_id" json:"assessment_id"`
	StudentID     string    `db:"student_id" json:"student_id"`
	ScoreObtained *float64  `db:"score_obtained" json:"score_obtained"`
	IsAbsent      bool      `db:"is_absent" json:"is_absent"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}
