package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/sma-report-engine/internal/models"
)

// ErrDuplicateMark is returned when a student already has a mark for an assessment.
var ErrDuplicateMark = errors.New("mark already recorded")

const uniqueViolation = "23505"

// MarkRepository is the read gateway for report card evaluation and the write
// path for mark entry.
type MarkRepository struct {
	db *sqlx.DB
}

// NewMarkRepository creates a new mark repository.
func NewMarkRepository(db *sqlx.DB) *MarkRepository {
	return &MarkRepository{db: db}
}

type institutionContextRow struct {
	StudentID       string `db:"student_id"`
	StudentName     string `db:"student_name"`
	StudentNumber   string `db:"student_number"`
	TermID          string `db:"term_id"`
	TermName        string `db:"term_name"`
	InstitutionCode string `db:"institution_code"`
	GradingMode     string `db:"grading_mode"`
}

// InstitutionContext resolves the student, the term and the grading mode of the
// institution that owns the term. sql.ErrNoRows is wrapped when the student
// does not belong to that institution.
func (r *MarkRepository) InstitutionContext(ctx context.Context, studentID, termID string) (*models.InstitutionContext, error) {
	const query = `SELECT s.id AS student_id, s.full_name AS student_name, s.student_number,
        t.id AS term_id, t.name AS term_name, i.code AS institution_code, i.grading_mode
        FROM students s
        JOIN terms t ON t.id = $2
        JOIN institutions i ON i.id = t.institution_id
        WHERE s.id = $1 AND s.institution_id = i.id`
	var row institutionContextRow
	if err := r.db.GetContext(ctx, &row, query, studentID, termID); err != nil {
		return nil, fmt.Errorf("get institution context: %w", err)
	}
	return &models.InstitutionContext{
		Student:         models.StudentRef{ID: row.StudentID, Name: row.StudentName, Number: row.StudentNumber},
		Term:            models.TermRef{ID: row.TermID, Name: row.TermName},
		InstitutionCode: row.InstitutionCode,
		Mode:            models.InstitutionMode(row.GradingMode),
	}, nil
}

type offeringRow struct {
	OfferingID     string   `db:"offering_id"`
	SubjectID      string   `db:"subject_id"`
	SubjectName    string   `db:"subject_name"`
	SubjectCode    string   `db:"subject_code"`
	Credits        float64  `db:"credits"`
	AssessmentID   *string  `db:"assessment_id"`
	AssessmentName *string  `db:"assessment_name"`
	AssessmentKind *string  `db:"assessment_kind"`
	Weight         *float64 `db:"weight"`
	MarkID         *string  `db:"mark_id"`
	ScoreObtained  *float64 `db:"score_obtained"`
	IsAbsent       *bool    `db:"is_absent"`
}

// ListOfferings returns the subject offerings of the student's class in the
// term with the student's recorded marks, in display order. Assessments the
// student has no mark for are not results; offerings without any mark are
// still returned with an empty result list.
func (r *MarkRepository) ListOfferings(ctx context.Context, studentID, termID string) ([]models.SubjectOffering, error) {
	const query = `SELECT so.id AS offering_id, sub.id AS subject_id, sub.name AS subject_name, sub.code AS subject_code, so.credits,
        a.id AS assessment_id, a.name AS assessment_name, a.assessment_kind, a.weight,
        m.id AS mark_id, m.score_obtained, m.is_absent
        FROM enrollments e
        JOIN subject_offerings so ON so.class_id = e.class_id AND so.term_id = e.term_id
        JOIN subjects sub ON sub.id = so.subject_id
        LEFT JOIN assessments a ON a.offering_id = so.id
        LEFT JOIN marks m ON m.assessment_id = a.id AND m.student_id = e.student_id
        WHERE e.student_id = $1 AND e.term_id = $2
        ORDER BY sub.name ASC, so.id ASC, a.position ASC, a.created_at ASC`
	var rows []offeringRow
	if err := r.db.SelectContext(ctx, &rows, query, studentID, termID); err != nil {
		return nil, fmt.Errorf("list subject offerings: %w", err)
	}
	return groupOfferings(rows), nil
}

func groupOfferings(rows []offeringRow) []models.SubjectOffering {
	offerings := make([]models.SubjectOffering, 0)
	index := map[string]int{}
	for _, row := range rows {
		pos, ok := index[row.OfferingID]
		if !ok {
			offerings = append(offerings, models.SubjectOffering{
				ID:          row.OfferingID,
				SubjectID:   row.SubjectID,
				SubjectName: row.SubjectName,
				SubjectCode: row.SubjectCode,
				Credits:     row.Credits,
				Results:     []models.AssessmentResult{},
			})
			pos = len(offerings) - 1
			index[row.OfferingID] = pos
		}
		if row.MarkID == nil || row.AssessmentID == nil {
			continue
		}
		result := models.AssessmentResult{
			ID:            *row.MarkID,
			AssessmentID:  *row.AssessmentID,
			ScoreObtained: row.ScoreObtained,
		}
		if row.AssessmentName != nil {
			result.AssessmentName = *row.AssessmentName
		}
		if row.AssessmentKind != nil {
			result.Kind = models.AssessmentKind(*row.AssessmentKind)
		}
		if row.Weight != nil {
			result.Weight = *row.Weight
		}
		if row.IsAbsent != nil {
			result.IsAbsent = *row.IsAbsent
		}
		offerings[pos].Results = append(offerings[pos].Results, result)
	}
	return offerings
}

// ListClassStudents returns the students enrolled in a class for a term.
func (r *MarkRepository) ListClassStudents(ctx context.Context, classID, termID string) ([]models.StudentRef, error) {
	const query = `SELECT s.id AS student_id, s.full_name AS student_name, s.student_number
        FROM enrollments e
        JOIN students s ON s.id = e.student_id
        WHERE e.class_id = $1 AND e.term_id = $2
        ORDER BY s.full_name ASC, s.id ASC`
	var students []models.StudentRef
	if err := r.db.SelectContext(ctx, &students, query, classID, termID); err != nil {
		return nil, fmt.Errorf("list class students: %w", err)
	}
	return students, nil
}

// FindAssessment loads an assessment together with the term of its offering.
func (r *MarkRepository) FindAssessment(ctx context.Context, id string) (*models.Assessment, error) {
	const query = `SELECT a.id, a.offering_id, so.term_id, a.name, a.assessment_kind, a.weight
        FROM assessments a
        JOIN subject_offerings so ON so.id = a.offering_id
        WHERE a.id = $1`
	var assessment models.Assessment
	if err := r.db.GetContext(ctx, &assessment, query, id); err != nil {
		return nil, fmt.Errorf("get assessment: %w", err)
	}
	return &assessment, nil
}

// CountKind counts the student's marks of a kind within one offering.
func (r *MarkRepository) CountKind(ctx context.Context, studentID, offeringID string, kind models.AssessmentKind) (int, error) {
	const query = `SELECT COUNT(1)
        FROM marks m
        JOIN assessments a ON a.id = m.assessment_id
        WHERE m.student_id = $1 AND a.offering_id = $2 AND a.assessment_kind = $3`
	var count int
	if err := r.db.GetContext(ctx, &count, query, studentID, offeringID, kind); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("count marks by kind: %w", err)
	}
	return count, nil
}

// Insert stores a new mark. A second mark for the same assessment and student
// yields ErrDuplicateMark.
func (r *MarkRepository) Insert(ctx context.Context, mark *models.Mark) error {
	if mark.ID == "" {
		mark.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if mark.CreatedAt.IsZero() {
		mark.CreatedAt = now
	}
	mark.UpdatedAt = now
	const query = `INSERT INTO marks (id, assessment_id, student_id, score_obtained, is_absent, created_at, updated_at)
        VALUES (:id, :assessment_id, :student_id, :score_obtained, :is_absent, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, mark); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return fmt.Errorf("insert mark: %w", ErrDuplicateMark)
		}
		return fmt.Errorf("insert mark: %w", err)
	}
	return nil
}
