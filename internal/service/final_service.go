package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/cms-lvtn-2025/thesis-api/internal/authz"
	"github.com/cms-lvtn-2025/thesis-api/internal/models"
	appErrors "github.com/cms-lvtn-2025/thesis-api/pkg/errors"
)

type enrollmentRepository interface {
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
	FindForUpdate(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Enrollment, error)
	ListByTopic(ctx context.Context, exec sqlx.ExtContext, topicID string) ([]models.Enrollment, error)
	SetMidterm(ctx context.Context, exec sqlx.ExtContext, enrollmentIDs []string, midtermID, actor string) error
	SetFinal(ctx context.Context, exec sqlx.ExtContext, enrollmentID, finalID, actor string) error
}

type gradeStore interface {
	FindMidterm(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Midterm, error)
	SaveMidterm(ctx context.Context, exec sqlx.ExtContext, midterm *models.Midterm, actor string) error
	FindFinal(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Final, error)
	CreateFinal(ctx context.Context, exec sqlx.ExtContext, final *models.Final, actor string) error
	SetFinalComponent(ctx context.Context, exec sqlx.ExtContext, finalID string, component models.FinalComponent, value *float64, actor string) error
	SetFinalDerived(ctx context.Context, exec sqlx.ExtContext, final *models.Final) error
	SetFinalNotes(ctx context.Context, exec sqlx.ExtContext, finalID string, notes *string) error
	UpsertVote(ctx context.Context, enrollmentID string, column models.VoteColumn, value float64, actor string) (*models.GradeDefence, error)
	FindGradeDefence(ctx context.Context, exec sqlx.ExtContext, enrollmentID string) (*models.GradeDefence, error)
}

type topicFinder interface {
	FindByID(ctx context.Context, id string) (*models.Topic, error)
}

type topicSeatLister interface {
	ListDefencesForTopic(ctx context.Context, topicID string) ([]models.Defence, error)
}

// GradeFinalRequest sets one component of the final evaluation on the 0-100 scale.
type GradeFinalRequest struct {
	Grade *float64 `json:"grade" validate:"required"`
	Notes string   `json:"notes"`
}

// FinalService records supervisor, reviewer and defense components and keeps
// the derived final grade in step with them.
type FinalService struct {
	enrollments enrollmentRepository
	grades      gradeStore
	topics      topicFinder
	seats       topicSeatLister
	tx          txProvider
	metrics     *MetricsService
	validator   *validator.Validate
	logger      *zap.Logger
	now         func() time.Time
}

// NewFinalService constructs a FinalService.
func NewFinalService(enrollments enrollmentRepository, grades gradeStore, topics topicFinder, seats topicSeatLister, tx txProvider, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *FinalService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FinalService{enrollments: enrollments, grades: grades, topics: topics, seats: seats, tx: tx, metrics: metrics, validator: validate, logger: logger, now: time.Now}
}

// GradeSupervisor stores the supervisor component. The topic must be in progress.
func (s *FinalService) GradeSupervisor(ctx context.Context, rc authz.RequestContext, enrollmentID string, req GradeFinalRequest) (*models.Final, error) {
	grade, err := s.validateGrade(req)
	if err != nil {
		return nil, err
	}
	_, topic, err := s.load(ctx, rc, enrollmentID)
	if err != nil {
		return nil, err
	}
	if !authz.CanGradeAsSupervisor(rc.Principal, *topic) {
		return nil, forbidden("only the supervising Supervisor_lecturer may grade this topic")
	}
	if !CanSubmitFinal(topic.Status) {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "final grading requires an in-progress topic")
	}
	return s.setComponent(ctx, enrollmentID, models.ComponentSupervisor, grade, strPtr(strings.TrimSpace(req.Notes)), rc.Principal.AccountID)
}

// GradeReviewer stores the reviewer component.
func (s *FinalService) GradeReviewer(ctx context.Context, rc authz.RequestContext, enrollmentID string, req GradeFinalRequest) (*models.Final, error) {
	grade, err := s.validateGrade(req)
	if err != nil {
		return nil, err
	}
	_, topic, err := s.load(ctx, rc, enrollmentID)
	if err != nil {
		return nil, err
	}
	if !authz.CanGradeAsReviewer(rc.Principal, *topic) {
		return nil, forbidden("reviewer grading requires Reviewer_Lecturer of the topic's major")
	}
	if !CanGradeLate(topic.Status) {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "reviewer grading requires an in-progress or completed topic")
	}
	return s.setComponent(ctx, enrollmentID, models.ComponentReviewer, grade, strPtr(strings.TrimSpace(req.Notes)), rc.Principal.AccountID)
}

// ApplyDefenseGrade stores the defense component derived from committee votes.
func (s *FinalService) ApplyDefenseGrade(ctx context.Context, enrollmentID string, value *float64, actor string) (*models.Final, error) {
	if value != nil {
		if err := ValidateComponentGrade(*value); err != nil {
			return nil, err
		}
	}
	return s.setComponent(ctx, enrollmentID, models.ComponentDefense, value, nil, actor)
}

// Grades returns every grading record attached to an enrollment.
func (s *FinalService) Grades(ctx context.Context, rc authz.RequestContext, enrollmentID string) (*models.EnrollmentGrades, error) {
	enrollment, topic, err := s.load(ctx, rc, enrollmentID)
	if err != nil {
		return nil, err
	}
	if err := s.ensureCanView(ctx, rc, enrollment, topic); err != nil {
		return nil, err
	}

	out := &models.EnrollmentGrades{Enrollment: *enrollment}
	if enrollment.MidtermID != nil {
		midterm, err := s.grades.FindMidterm(ctx, nil, *enrollment.MidtermID)
		if err != nil {
			return nil, lookupErr(err, "midterm")
		}
		out.Midterm = midterm
	}
	if enrollment.FinalID != nil {
		final, err := s.grades.FindFinal(ctx, nil, *enrollment.FinalID)
		if err != nil {
			return nil, lookupErr(err, "final")
		}
		out.Final = final
	}
	votes, err := s.grades.FindGradeDefence(ctx, nil, enrollment.ID)
	switch {
	case err == nil:
		out.GradeDefence = votes
	case !errors.Is(err, sql.ErrNoRows):
		return nil, appErrors.Store(err, "failed to load committee votes")
	}
	return out, nil
}

func (s *FinalService) validateGrade(req GradeFinalRequest) (*float64, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationErr(err, "invalid grade payload")
	}
	if err := ValidateComponentGrade(*req.Grade); err != nil {
		return nil, err
	}
	v := *req.Grade
	return &v, nil
}

func (s *FinalService) load(ctx context.Context, rc authz.RequestContext, enrollmentID string) (*models.Enrollment, *models.Topic, error) {
	enrollment, err := s.enrollments.FindByID(ctx, enrollmentID)
	if err != nil {
		return nil, nil, lookupErr(err, "enrollment")
	}
	if enrollment.SemesterCode != rc.SemesterCode {
		return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
	}
	topic, err := s.topics.FindByID(ctx, enrollment.TopicID)
	if err != nil {
		return nil, nil, lookupErr(err, "topic")
	}
	return enrollment, topic, nil
}

func (s *FinalService) ensureCanView(ctx context.Context, rc authz.RequestContext, enrollment *models.Enrollment, topic *models.Topic) error {
	if rc.Principal.IsStudent() {
		if enrollment.StudentID == rc.Principal.ProfileID {
			return nil
		}
		return forbidden("students may only view their own grades")
	}
	if authz.CanViewTopic(rc.Principal, *topic) {
		return nil
	}
	defences, err := s.seats.ListDefencesForTopic(ctx, topic.ID)
	if err != nil {
		return appErrors.Store(err, "failed to load council seats")
	}
	for _, d := range defences {
		if d.TeacherID == rc.Principal.ProfileID {
			return nil
		}
	}
	return forbidden("enrollment is outside your scope")
}

// setComponent writes one component column and recomputes the derived
// columns from the stored row, all under the enrollment's row lock.
func (s *FinalService) setComponent(ctx context.Context, enrollmentID string, component models.FinalComponent, value *float64, notes *string, actor string) (*models.Final, error) {
	var final *models.Final
	err := inTx(ctx, s.tx, func(tx *sqlx.Tx) error {
		enrollment, err := s.enrollments.FindForUpdate(ctx, tx, enrollmentID)
		if err != nil {
			return lookupErr(err, "enrollment")
		}

		finalID := ""
		if enrollment.FinalID != nil {
			finalID = *enrollment.FinalID
		} else {
			created := &models.Final{Title: "Final", Status: models.FinalPending}
			if err := s.grades.CreateFinal(ctx, tx, created, actor); err != nil {
				return appErrors.Store(err, "failed to create final record")
			}
			if err := s.enrollments.SetFinal(ctx, tx, enrollment.ID, created.ID, actor); err != nil {
				return appErrors.Store(err, "failed to link final record")
			}
			finalID = created.ID
		}

		if err := s.grades.SetFinalComponent(ctx, tx, finalID, component, value, actor); err != nil {
			return appErrors.Store(err, "failed to store "+string(component))
		}
		if notes != nil {
			if err := s.grades.SetFinalNotes(ctx, tx, finalID, notes); err != nil {
				return appErrors.Store(err, "failed to store notes")
			}
		}

		stored, err := s.grades.FindFinal(ctx, tx, finalID)
		if err != nil {
			return lookupErr(err, "final")
		}
		Recompute(stored)
		if stored.Status == models.FinalCompleted {
			if stored.CompletionDate == nil {
				now := s.now().UTC()
				stored.CompletionDate = &now
			}
		} else {
			stored.CompletionDate = nil
		}
		if err := s.grades.SetFinalDerived(ctx, tx, stored); err != nil {
			return appErrors.Store(err, "failed to store final grade")
		}
		final = stored
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.metrics.RecordGrade(string(component))
	s.logger.Info("final component recorded",
		zap.String("enrollment_id", enrollmentID),
		zap.String("component", string(component)),
		zap.String("status", string(final.Status)),
	)
	return final, nil
}
