package service

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/cms-lvtn-2025/thesis-api/internal/authz"
	"github.com/cms-lvtn-2025/thesis-api/internal/models"
	appErrors "github.com/cms-lvtn-2025/thesis-api/pkg/errors"
)

type attachmentFinder interface {
	FindByID(ctx context.Context, id string) (*models.Attachment, error)
}

// GradeMidtermRequest is the supervisor's mid-term evaluation on the 0-100 scale.
type GradeMidtermRequest struct {
	Grade    *float64 `json:"grade" validate:"required"`
	Feedback string   `json:"feedback"`
}

// SubmitMidtermRequest references an uploaded mid-term report.
type SubmitMidtermRequest struct {
	AttachmentID string `json:"attachment_id" validate:"required"`
}

// MidtermService handles the mid-term phase of a topic. The team shares one
// midterm record.
type MidtermService struct {
	topics      topicRepository
	enrollments enrollmentRepository
	grades      gradeStore
	attachments attachmentFinder
	tx          txProvider
	metrics     *MetricsService
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewMidtermService constructs a MidtermService.
func NewMidtermService(topics topicRepository, enrollments enrollmentRepository, grades gradeStore, attachments attachmentFinder, tx txProvider, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *MidtermService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MidtermService{topics: topics, enrollments: enrollments, grades: grades, attachments: attachments, tx: tx, metrics: metrics, validator: validate, logger: logger}
}

// Grade records the supervisor's mid-term grade and moves the topic into the
// final phase (approved -> in_progress).
func (s *MidtermService) Grade(ctx context.Context, rc authz.RequestContext, topicID string, req GradeMidtermRequest) (*models.Midterm, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationErr(err, "invalid midterm payload")
	}
	if err := ValidateComponentGrade(*req.Grade); err != nil {
		return nil, err
	}
	grade := *req.Grade

	var midterm *models.Midterm
	err := inTx(ctx, s.tx, func(tx *sqlx.Tx) error {
		topic, enrollments, err := s.lockPhase(ctx, tx, rc, topicID)
		if err != nil {
			return err
		}
		if !authz.CanGradeAsSupervisor(rc.Principal, *topic) {
			return forbidden("only the supervising Supervisor_lecturer may grade the mid-term")
		}

		midterm, err = s.current(ctx, tx, enrollments)
		if err != nil {
			return err
		}
		midterm.Grade = &grade
		midterm.Feedback = strPtr(strings.TrimSpace(req.Feedback))
		midterm.Status = models.MidtermGraded
		if err := s.save(ctx, tx, midterm, enrollments, rc.Principal.AccountID); err != nil {
			return err
		}

		if err := ValidateTransition(topic.Status, models.TopicInProgress); err != nil {
			return err
		}
		if err := applyTransition(ctx, s.topics, tx, models.TopicTransition{
			TopicID: topic.ID,
			From:    topic.Status,
			To:      models.TopicInProgress,
			Actor:   rc.Principal.AccountID,
			At:      time.Now().UTC(),
		}); err != nil {
			return err
		}
		s.metrics.RecordTransition(topic.Status, models.TopicInProgress)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.metrics.RecordGrade("midterm")
	s.logger.Info("midterm graded", zap.String("topic_id", topicID), zap.String("midterm_id", midterm.ID))
	return midterm, nil
}

// Submit attaches a student's uploaded report to the team's midterm.
func (s *MidtermService) Submit(ctx context.Context, rc authz.RequestContext, topicID string, req SubmitMidtermRequest) (*models.Midterm, error) {
	if !rc.Principal.IsStudent() {
		return nil, forbidden("only students submit mid-term reports")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, validationErr(err, "invalid submission payload")
	}
	attachment, err := s.attachments.FindByID(ctx, req.AttachmentID)
	if err != nil {
		return nil, lookupErr(err, "attachment")
	}
	if attachment.OwnerID != rc.Principal.ProfileID {
		return nil, forbidden("attachment belongs to another user")
	}

	var midterm *models.Midterm
	err = inTx(ctx, s.tx, func(tx *sqlx.Tx) error {
		_, enrollments, err := s.lockPhase(ctx, tx, rc, topicID)
		if err != nil {
			return err
		}
		if !hasStudent(enrollments, rc.Principal.ProfileID) {
			return forbidden("you are not enrolled in this topic")
		}

		midterm, err = s.current(ctx, tx, enrollments)
		if err != nil {
			return err
		}
		midterm.FileID = &attachment.ID
		midterm.Status = models.MidtermSubmitted
		return s.save(ctx, tx, midterm, enrollments, rc.Principal.AccountID)
	})
	if err != nil {
		return nil, err
	}
	return midterm, nil
}

// lockPhase locks the topic and checks it is in the mid-term phase.
func (s *MidtermService) lockPhase(ctx context.Context, tx *sqlx.Tx, rc authz.RequestContext, topicID string) (*models.Topic, []models.Enrollment, error) {
	topic, err := s.topics.FindForUpdate(ctx, tx, topicID)
	if err != nil {
		return nil, nil, lookupErr(err, "topic")
	}
	if topic.SemesterCode != rc.SemesterCode {
		return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "topic not found")
	}
	if !CanSubmitMidterm(topic.Status) {
		return nil, nil, appErrors.Clone(appErrors.ErrInvalidTransition, "mid-term phase requires an approved topic")
	}
	enrollments, err := s.enrollments.ListByTopic(ctx, tx, topic.ID)
	if err != nil {
		return nil, nil, appErrors.Store(err, "failed to load enrollments")
	}
	if len(enrollments) == 0 {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "topic has no enrolled students")
	}
	return topic, enrollments, nil
}

// current returns the team's midterm, or a fresh one when none exists yet.
func (s *MidtermService) current(ctx context.Context, tx *sqlx.Tx, enrollments []models.Enrollment) (*models.Midterm, error) {
	for _, e := range enrollments {
		if e.MidtermID == nil {
			continue
		}
		midterm, err := s.grades.FindMidterm(ctx, tx, *e.MidtermID)
		if err != nil {
			return nil, lookupErr(err, "midterm")
		}
		return midterm, nil
	}
	return &models.Midterm{Title: "Midterm", Status: models.MidtermNotSubmitted}, nil
}

func (s *MidtermService) save(ctx context.Context, tx *sqlx.Tx, midterm *models.Midterm, enrollments []models.Enrollment, actor string) error {
	if err := s.grades.SaveMidterm(ctx, tx, midterm, actor); err != nil {
		return appErrors.Store(err, "failed to save midterm")
	}
	ids := make([]string, 0, len(enrollments))
	for _, e := range enrollments {
		if e.MidtermID == nil || *e.MidtermID != midterm.ID {
			ids = append(ids, e.ID)
		}
	}
	if err := s.enrollments.SetMidterm(ctx, tx, ids, midterm.ID, actor); err != nil {
		return appErrors.Store(err, "failed to link midterm")
	}
	return nil
}

func hasStudent(enrollments []models.Enrollment, studentID string) bool {
	for _, e := range enrollments {
		if e.StudentID == studentID {
			return true
		}
	}
	return false
}
