package models

import "time"

// InstitutionMode selects the grading formula family used for an evaluation.
type InstitutionMode string

const (
	// ModeSecondary grades subjects with a weighted average of assessments.
	ModeSecondary InstitutionMode = "SECONDARY"
	// ModeUniversity grades subjects with the CA/Exam/Bonus/Penalty formula.
	ModeUniversity InstitutionMode = "UNIVERSITY"
)

// Valid reports whether the mode is one of the supported values.
func (m InstitutionMode) Valid() bool {
	return m == ModeSecondary || m == ModeUniversity
}

// AssessmentKind routes a recorded score into a formula bucket.
type AssessmentKind string

const (
	// KindWeighted is the only kind used by secondary institutions.
	KindWeighted AssessmentKind = "WEIGHTED"
	// KindContinuousAssessment is the non-exam component of a university subject.
	KindContinuousAssessment AssessmentKind = "CA"
	// KindFinalExam is the final examination of a university subject.
	KindFinalExam AssessmentKind = "EXAM"
	// KindBonus adds points on top of the university formula.
	KindBonus AssessmentKind = "BONUS"
	// KindPenalty subtracts points from the university formula.
	KindPenalty AssessmentKind = "PENALTY"
)

// Valid reports whether the kind is part of the closed kind set.
func (k AssessmentKind) Valid() bool {
	switch k {
	case KindWeighted, KindContinuousAssessment, KindFinalExam, KindBonus, KindPenalty:
		return true
	default:
		return false
	}
}

// Mode returns the institution mode a kind belongs to, or "" for unknown kinds.
func (k AssessmentKind) Mode() InstitutionMode {
	switch k {
	case KindWeighted:
		return ModeSecondary
	case KindContinuousAssessment, KindFinalExam, KindBonus, KindPenalty:
		return ModeUniversity
	default:
		return ""
	}
}

// Singular reports whether at most one result of this kind may exist per subject.
func (k AssessmentKind) Singular() bool {
	return k == KindContinuousAssessment || k == KindFinalExam
}

// AssessmentResult is one recorded score for one student on one assessment.
type AssessmentResult struct {
	ID             string         `db:"id" json:"id,omitempty"`
	AssessmentID   string         `db:"assessment_id" json:"assessment_id,omitempty"`
	AssessmentName string         `db:"assessment_name" json:"assessment_name,omitempty"`
	Kind           AssessmentKind `db:"assessment_kind" json:"assessment_kind"`
	Weight         float64        `db:"weight" json:"weight"`
	ScoreObtained  *float64       `db:"score_obtained" json:"score_obtained"`
	IsAbsent       bool           `db:"is_absent" json:"is_absent"`
}

// Score returns the effective score. Absences and missing scores count as 0.
func (r AssessmentResult) Score() float64 {
	if r.IsAbsent || r.ScoreObtained == nil {
		return 0
	}
	return *r.ScoreObtained
}

// SubjectOffering is a subject taught in a term together with the evaluated
// student's results for it.
type SubjectOffering struct {
	ID          string             `db:"id" json:"id"`
	SubjectID   string             `db:"subject_id" json:"subject_id"`
	SubjectName string             `db:"subject_name" json:"subject_name"`
	SubjectCode string             `db:"subject_code" json:"subject_code"`
	Credits     float64            `db:"credits" json:"credits"`
	Results     []AssessmentResult `json:"results"`
}

// SubjectResult is the reduced outcome for one subject.
type SubjectResult struct {
	SubjectID   string   `json:"subject_id"`
	SubjectName string   `json:"subject_name"`
	SubjectCode string   `json:"subject_code"`
	Credits     float64  `json:"credits"`
	FinalMark   float64  `json:"final_mark"`
	LetterGrade string   `json:"letter_grade"`
	GradePoints *float64 `json:"grade_points"`
	Anomalies   []string `json:"anomalies,omitempty"`
}

// StudentRef identifies the student a report card belongs to.
type StudentRef struct {
	ID     string `db:"student_id" json:"id"`
	Name   string `db:"student_name" json:"name,omitempty"`
	Number string `db:"student_number" json:"number,omitempty"`
}

// TermRef identifies the academic term a report card covers.
type TermRef struct {
	ID   string `db:"term_id" json:"id"`
	Name string `db:"term_name" json:"name,omitempty"`
}

// ReportCardInput carries everything needed to assemble one report card.
type ReportCardInput struct {
	Student   StudentRef
	Term      TermRef
	Mode      InstitutionMode
	Offerings []SubjectOffering
}

// ReportCard aggregates all subject results of a student for a term.
type ReportCard struct {
	Student        StudentRef      `json:"student"`
	Term           TermRef         `json:"term"`
	Mode           InstitutionMode `json:"mode"`
	Subjects       []SubjectResult `json:"subjects"`
	OverallAverage float64         `json:"overall_average"`
	OverallGrade   string          `json:"overall_grade"`
	GPA            *float64        `json:"gpa"`
	TotalCredits   float64         `json:"total_credits"`
	Incomplete     bool            `json:"incomplete"`
	GeneratedAt    time.Time       `json:"generated_at"`
}

// RankedReportCard pairs a report card with its position in a cohort.
type RankedReportCard struct {
	Rank int `json:"rank"`
	ReportCard
}

// ClassRanking lists the ranked report cards of a class for a term.
type ClassRanking struct {
	ClassID string             `json:"class_id"`
	TermID  string             `json:"term_id"`
	Entries []RankedReportCard `json:"entries"`
}

// InstitutionContext is the per-evaluation context resolved by the data gateway.
type InstitutionContext struct {
	Student         StudentRef
	Term            TermRef
	InstitutionCode string
	Mode            InstitutionMode
}
