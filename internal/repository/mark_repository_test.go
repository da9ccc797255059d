package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-report-engine/internal/models"
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

var offeringColumns = []string{
	"offering_id", "subject_id", "subject_name", "subject_code", "credits",
	"assessment_id", "assessment_name", "assessment_kind", "weight",
	"mark_id", "score_obtained", "is_absent",
}

func TestMarkRepositoryInstitutionContext(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()
	repo := NewMarkRepository(db)

	rows := sqlmock.NewRows([]string{"student_id", "student_name", "student_number", "term_id", "term_name", "institution_code", "grading_mode"}).
		AddRow("stu-1", "Ayu Lestari", "2024-001", "term-1", "2024/2025 Ganjil", "UNI-01", "UNIVERSITY")
	mock.ExpectQuery(regexp.QuoteMeta("FROM students s")).
		WithArgs("stu-1", "term-1").
		WillReturnRows(rows)

	ictx, err := repo.InstitutionContext(context.Background(), "stu-1", "term-1")
	require.NoError(t, err)
	assert.Equal(t, "Ayu Lestari", ictx.Student.Name)
	assert.Equal(t, "2024/2025 Ganjil", ictx.Term.Name)
	assert.Equal(t, "UNI-01", ictx.InstitutionCode)
	assert.Equal(t, models.ModeUniversity, ictx.Mode)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkRepositoryInstitutionContextNotFound(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()
	repo := NewMarkRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM students s")).
		WithArgs("stu-x", "term-1").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.InstitutionContext(context.Background(), "stu-x", "term-1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, sql.ErrNoRows))
}

func TestMarkRepositoryListOfferingsGroupsRows(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()
	repo := NewMarkRepository(db)

	rows := sqlmock.NewRows(offeringColumns).
		AddRow("off-1", "sub-bio", "Biology", "BIO", 2.0, "as-1", "Midterm", "CA", 0.0, "mk-1", 70.0, false).
		AddRow("off-1", "sub-bio", "Biology", "BIO", 2.0, "as-2", "Final", "EXAM", 0.0, "mk-2", nil, true).
		AddRow("off-1", "sub-bio", "Biology", "BIO", 2.0, "as-3", "Quiz", "BONUS", 0.0, nil, nil, nil).
		AddRow("off-2", "sub-mth", "Mathematics", "MTH", 4.0, nil, nil, nil, nil, nil, nil, nil)
	mock.ExpectQuery(regexp.QuoteMeta("FROM enrollments e")).
		WithArgs("stu-1", "term-1").
		WillReturnRows(rows)

	offerings, err := repo.ListOfferings(context.Background(), "stu-1", "term-1")
	require.NoError(t, err)
	require.Len(t, offerings, 2)

	bio := offerings[0]
	assert.Equal(t, "BIO", bio.SubjectCode)
	assert.Equal(t, 2.0, bio.Credits)
	require.Len(t, bio.Results, 2)
	assert.Equal(t, models.KindContinuousAssessment, bio.Results[0].Kind)
	require.NotNil(t, bio.Results[0].ScoreObtained)
	assert.Equal(t, 70.0, *bio.Results[0].ScoreObtained)
	assert.True(t, bio.Results[1].IsAbsent)
	assert.Nil(t, bio.Results[1].ScoreObtained)

	assert.Equal(t, "Mathematics", offerings[1].SubjectName)
	assert.NotNil(t, offerings[1].Results)
	assert.Empty(t, offerings[1].Results)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkRepositoryListOfferingsEmpty(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()
	repo := NewMarkRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM enrollments e")).
		WithArgs("stu-1", "term-1").
		WillReturnRows(sqlmock.NewRows(offeringColumns))

	offerings, err := repo.ListOfferings(context.Background(), "stu-1", "term-1")
	require.NoError(t, err)
	assert.NotNil(t, offerings)
	assert.Empty(t, offerings)
}

func TestMarkRepositoryListClassStudents(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()
	repo := NewMarkRepository(db)

	rows := sqlmock.NewRows([]string{"student_id", "student_name", "student_number"}).
		AddRow("stu-1", "Ayu", "001").
		AddRow("stu-2", "Budi", "002")
	mock.ExpectQuery(regexp.QuoteMeta("WHERE e.class_id = $1 AND e.term_id = $2")).
		WithArgs("class-1", "term-1").
		WillReturnRows(rows)

	students, err := repo.ListClassStudents(context.Background(), "class-1", "term-1")
	require.NoError(t, err)
	require.Len(t, students, 2)
	assert.Equal(t, "stu-2", students[1].ID)
	assert.Equal(t, "Budi", students[1].Name)
}

func TestMarkRepositoryFindAssessment(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()
	repo := NewMarkRepository(db)

	rows := sqlmock.NewRows([]string{"id", "offering_id", "term_id", "name", "assessment_kind", "weight"}).
		AddRow("as-1", "off-1", "term-1", "Final", "EXAM", 0.0)
	mock.ExpectQuery(regexp.QuoteMeta("FROM assessments a")).
		WithArgs("as-1").
		WillReturnRows(rows)

	assessment, err := repo.FindAssessment(context.Background(), "as-1")
	require.NoError(t, err)
	assert.Equal(t, models.KindFinalExam, assessment.Kind)
	assert.Equal(t, "term-1", assessment.TermID)
}

func TestMarkRepositoryCountKind(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()
	repo := NewMarkRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(1)")).
		WithArgs("stu-1", "off-1", models.KindContinuousAssessment).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	count, err := repo.CountKind(context.Background(), "stu-1", "off-1", models.KindContinuousAssessment)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestMarkRepositoryInsert(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()
	repo := NewMarkRepository(db)

	score := 88.5
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO marks")).
		WithArgs(sqlmock.AnyArg(), "as-1", "stu-1", score, false, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	mark := &models.Mark{AssessmentID: "as-1", StudentID: "stu-1", ScoreObtained: &score}
	require.NoError(t, repo.Insert(context.Background(), mark))
	assert.NotEmpty(t, mark.ID)
	assert.False(t, mark.CreatedAt.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkRepositoryInsertDuplicate(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()
	repo := NewMarkRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO marks")).
		WillReturnError(&pq.Error{Code: "23505"})

	err := repo.Insert(context.Background(), &models.Mark{AssessmentID: "as-1", StudentID: "stu-1", IsAbsent: true})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDuplicateMark)
}
