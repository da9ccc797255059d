package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-report-engine/internal/grading"
	"github.com/noah-isme/sma-report-engine/internal/models"
	appErrors "github.com/noah-isme/sma-report-engine/pkg/errors"
)

// MarkDataGateway supplies everything a report card is computed from.
type MarkDataGateway interface {
	InstitutionContext(ctx context.Context, studentID, termID string) (*models.InstitutionContext, error)
	ListOfferings(ctx context.Context, studentID, termID string) ([]models.SubjectOffering, error)
	ListClassStudents(ctx context.Context, classID, termID string) ([]models.StudentRef, error)
}

// ReportCardService loads marks, assembles report cards and ranks classes.
type ReportCardService struct {
	gateway   MarkDataGateway
	assembler *grading.Assembler
	profiles  *grading.ProfileSet
	cache     *CacheService
	metrics   *MetricsService
	logger    *zap.Logger
	cacheTTL  time.Duration
	now       func() time.Time
}

// ReportCardServiceParams groups constructor dependencies.
type ReportCardServiceParams struct {
	Gateway  MarkDataGateway
	Rounding grading.Rounding
	Profiles *grading.ProfileSet
	Cache    *CacheService
	Metrics  *MetricsService
	Logger   *zap.Logger
	CacheTTL time.Duration
}

// NewReportCardService constructs the service.
func NewReportCardService(params ReportCardServiceParams) *ReportCardService {
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	profiles := params.Profiles
	if profiles == nil {
		profiles = grading.NewProfileSet()
	}
	return &ReportCardService{
		gateway:   params.Gateway,
		assembler: grading.NewAssembler(grading.NewReducer(params.Rounding), grading.DefaultProfile()),
		profiles:  profiles,
		cache:     params.Cache,
		metrics:   params.Metrics,
		logger:    logger,
		cacheTTL:  params.CacheTTL,
		now:       time.Now,
	}
}

// Get returns the report card of a student for a term and whether it was
// served from cache.
func (s *ReportCardService) Get(ctx context.Context, studentID, termID string) (*models.ReportCard, bool, error) {
	studentID = strings.TrimSpace(studentID)
	termID = strings.TrimSpace(termID)
	if studentID == "" {
		return nil, false, appErrors.Clone(appErrors.ErrValidation, "studentId is required")
	}
	if termID == "" {
		return nil, false, appErrors.Clone(appErrors.ErrValidation, "termId is required")
	}

	key := ReportCardCacheKey(studentID, termID)
	var cached models.ReportCard
	if s.cache.Get(ctx, key, &cached) {
		return &cached, true, nil
	}

	card, err := s.build(ctx, studentID, termID)
	if err != nil {
		return nil, false, err
	}
	s.cache.Set(ctx, key, card, s.cacheTTL)
	return card, false, nil
}

// Build assembles a fresh report card, bypassing the cache.
func (s *ReportCardService) Build(ctx context.Context, studentID, termID string) (*models.ReportCard, error) {
	return s.build(ctx, studentID, termID)
}

func (s *ReportCardService) build(ctx context.Context, studentID, termID string) (*models.ReportCard, error) {
	start := time.Now()
	ictx, err := s.gateway.InstitutionContext(ctx, studentID, termID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student is not registered in the institution of this term")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load institution context")
	}
	offerings, err := s.gateway.ListOfferings(ctx, studentID, termID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load marks")
	}

	profile := s.profiles.For(ictx.InstitutionCode)
	card, err := s.assembler.WithProfile(profile).Assemble(models.ReportCardInput{
		Student:   ictx.Student,
		Term:      ictx.Term,
		Mode:      ictx.Mode,
		Offerings: offerings,
	})
	if err != nil {
		if errors.Is(err, grading.ErrInvalidMode) {
			s.logger.Error("institution has an unsupported grading mode",
				zap.String("institution", ictx.InstitutionCode),
				zap.String("mode", string(ictx.Mode)),
				zap.Error(err))
			return nil, appErrors.Wrap(err, appErrors.ErrInvalidInstitutionMode.Code, appErrors.ErrInvalidInstitutionMode.Status,
				fmt.Sprintf("institution %s has unsupported grading mode %q", ictx.InstitutionCode, ictx.Mode))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to assemble report card")
	}
	card.GeneratedAt = s.now().UTC()

	if card.Incomplete {
		s.logger.Debug("report card has data anomalies",
			zap.String("student_id", studentID),
			zap.String("term_id", termID))
	}
	s.metrics.ObserveReportCard(string(card.Mode), len(card.Subjects), time.Since(start))
	return &card, nil
}

// ClassRanking assembles the cards of every student enrolled in a class and
// ranks them. Cards are always rebuilt so the ranking reflects one consistent
// read of the marks.
func (s *ReportCardService) ClassRanking(ctx context.Context, classID, termID string) (*models.ClassRanking, error) {
	classID = strings.TrimSpace(classID)
	termID = strings.TrimSpace(termID)
	if classID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "classId is required")
	}
	if termID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "termId is required")
	}
	cards, err := s.ClassCards(ctx, classID, termID, nil)
	if err != nil {
		return nil, err
	}
	return &models.ClassRanking{ClassID: classID, TermID: termID, Entries: grading.Rank(cards)}, nil
}

// ClassCards builds the report card of each enrolled student. progress, when
// set, is called after each card with the number done and the total.
func (s *ReportCardService) ClassCards(ctx context.Context, classID, termID string, progress func(done, total int)) ([]models.ReportCard, error) {
	students, err := s.gateway.ListClassStudents(ctx, classID, termID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class enrolment")
	}
	if len(students) == 0 {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "no students enrolled in this class for the term")
	}
	cards := make([]models.ReportCard, 0, len(students))
	for i, student := range students {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		card, err := s.build(ctx, student.ID, termID)
		if err != nil {
			return nil, err
		}
		cards = append(cards, *card)
		if progress != nil {
			progress(i+1, len(students))
		}
	}
	return cards, nil
}
