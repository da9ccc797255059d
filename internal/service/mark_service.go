package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-report-engine/internal/dto"
	"github.com/noah-isme/sma-report-engine/internal/models"
	"github.com/noah-isme/sma-report-engine/internal/repository"
	appErrors "github.com/noah-isme/sma-report-engine/pkg/errors"
)

type markStore interface {
	FindAssessment(ctx context.Context, id string) (*models.Assessment, error)
	InstitutionContext(ctx context.Context, studentID, termID string) (*models.InstitutionContext, error)
	CountKind(ctx context.Context, studentID, offeringID string, kind models.AssessmentKind) (int, error)
	Insert(ctx context.Context, mark *models.Mark) error
}

type reportCardInvalidator interface {
	InvalidateReportCard(ctx context.Context, studentID, termID string) error
}

// MarkService validates and records marks.
type MarkService struct {
	store     markStore
	cache     reportCardInvalidator
	validator *validator.Validate
	logger    *zap.Logger
}

// NewMarkService constructs MarkService.
func NewMarkService(store markStore, cache reportCardInvalidator, validate *validator.Validate, logger *zap.Logger) *MarkService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MarkService{store: store, cache: cache, validator: validate, logger: logger}
}

// Record inserts one mark after checking that its assessment kind belongs to
// the student's institution mode and that CA and EXAM stay unique per subject.
func (s *MarkService) Record(ctx context.Context, req dto.RecordMarkRequest) (*models.Mark, error) {
	req.AssessmentID = strings.TrimSpace(req.AssessmentID)
	req.StudentID = strings.TrimSpace(req.StudentID)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid mark payload")
	}
	if !req.IsAbsent && req.ScoreObtained == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "scoreObtained is required unless the student is absent")
	}

	assessment, err := s.store.FindAssessment(ctx, req.AssessmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "assessment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assessment")
	}
	if !assessment.Kind.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("assessment has unknown kind %q", assessment.Kind))
	}

	ictx, err := s.store.InstitutionContext(ctx, req.StudentID, assessment.TermID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student is not registered in the institution of this assessment")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load institution context")
	}
	if !ictx.Mode.Valid() {
		return nil, appErrors.Clone(appErrors.ErrInvalidInstitutionMode,
			fmt.Sprintf("institution %s has unsupported grading mode %q", ictx.InstitutionCode, ictx.Mode))
	}
	if assessment.Kind.Mode() != ictx.Mode {
		return nil, appErrors.Clone(appErrors.ErrKindModeMismatch,
			fmt.Sprintf("assessment kind %s cannot be recorded for a %s institution", assessment.Kind, ictx.Mode))
	}

	if assessment.Kind.Singular() {
		count, err := s.store.CountKind(ctx, req.StudentID, assessment.OfferingID, assessment.Kind)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing marks")
		}
		if count > 0 {
			return nil, appErrors.Clone(appErrors.ErrConflict,
				fmt.Sprintf("student already has a %s mark for this subject", assessment.Kind))
		}
	}

	mark := &models.Mark{
		AssessmentID:  assessment.ID,
		StudentID:     req.StudentID,
		ScoreObtained: req.ScoreObtained,
		IsAbsent:      req.IsAbsent,
	}
	if err := s.store.Insert(ctx, mark); err != nil {
		if errors.Is(err, repository.ErrDuplicateMark) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "mark already recorded for this assessment")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record mark")
	}

	if s.cache != nil {
		if err := s.cache.InvalidateReportCard(ctx, req.StudentID, assessment.TermID); err != nil {
			s.logger.Warn("report card cache not invalidated",
				zap.String("student_id", req.StudentID),
				zap.String("term_id", assessment.TermID),
				zap.Error(err))
		}
	}
	s.logger.Info("mark recorded",
		zap.String("mark_id", mark.ID),
		zap.String("assessment_id", mark.AssessmentID),
		zap.String("kind", string(assessment.Kind)))
	return mark, nil
}
