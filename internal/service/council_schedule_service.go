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
	"github.com/cms-lvtn-2025/thesis-api/pkg/database"
	appErrors "github.com/cms-lvtn-2025/thesis-api/pkg/errors"
)

type councilLocker interface {
	FindByID(ctx context.Context, id string) (*models.Council, error)
	LockByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Council, error)
}

type scheduleRepository interface {
	ListByCouncil(ctx context.Context, exec sqlx.ExtContext, councilID string) ([]models.CouncilSchedule, error)
	FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.CouncilSchedule, error)
	FindByTopic(ctx context.Context, exec sqlx.ExtContext, topicID string) (*models.CouncilSchedule, error)
	ListForTeacher(ctx context.Context, teacherID, semesterCode string) ([]models.CouncilSchedule, error)
	Create(ctx context.Context, exec sqlx.ExtContext, schedule *models.CouncilSchedule, actor string) error
	Update(ctx context.Context, exec sqlx.ExtContext, schedule *models.CouncilSchedule, actor string) error
	Delete(ctx context.Context, id string) error
}

type topicLocker interface {
	FindForUpdate(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Topic, error)
}

// CreateScheduleRequest books a council slot for one topic.
type CreateScheduleRequest struct {
	TopicID   string    `json:"topic_id" validate:"required"`
	TimeStart time.Time `json:"time_start" validate:"required"`
	TimeEnd   time.Time `json:"time_end" validate:"required"`
	Location  string    `json:"location" validate:"max=255"`
}

// UpdateScheduleRequest moves an existing slot.
type UpdateScheduleRequest struct {
	TimeStart time.Time `json:"time_start" validate:"required"`
	TimeEnd   time.Time `json:"time_end" validate:"required"`
	Location  string    `json:"location" validate:"max=255"`
}

// Rejection reasons reported to metrics.
const (
	rejectInterval  = "invalid_interval"
	rejectMajor     = "major_mismatch"
	rejectStatus    = "topic_not_completed"
	rejectScheduled = "topic_already_scheduled"
	rejectOverlap   = "time_conflict"
)

// CouncilScheduleService books defense slots. Every write for one council
// runs under that council's row lock; the exclusion constraint backs it up.
type CouncilScheduleService struct {
	councils  councilLocker
	schedules scheduleRepository
	topics    topicLocker
	tx        txProvider
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewCouncilScheduleService constructs a CouncilScheduleService.
func NewCouncilScheduleService(councils councilLocker, schedules scheduleRepository, topics topicLocker, tx txProvider, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *CouncilScheduleService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CouncilScheduleService{councils: councils, schedules: schedules, topics: topics, tx: tx, metrics: metrics, validator: validate, logger: logger}
}

// Create books a slot after checking major, topic status and overlap.
func (s *CouncilScheduleService) Create(ctx context.Context, rc authz.RequestContext, councilID string, req CreateScheduleRequest) (*models.CouncilSchedule, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationErr(err, "invalid schedule payload")
	}
	if err := ValidateInterval(req.TimeStart, req.TimeEnd); err != nil {
		s.metrics.RecordScheduleRejection(rejectInterval)
		return nil, err
	}

	schedule := &models.CouncilSchedule{
		CouncilID: councilID,
		TopicID:   req.TopicID,
		TimeStart: req.TimeStart.UTC(),
		TimeEnd:   req.TimeEnd.UTC(),
		Location:  strPtr(strings.TrimSpace(req.Location)),
	}
	err := inTx(ctx, s.tx, func(tx *sqlx.Tx) error {
		council, err := s.lockCouncil(ctx, tx, rc, councilID)
		if err != nil {
			return err
		}
		topic, err := s.topics.FindForUpdate(ctx, tx, req.TopicID)
		if err != nil {
			return lookupErr(err, "topic")
		}
		if topic.SemesterCode != council.SemesterCode {
			return appErrors.Clone(appErrors.ErrNotFound, "topic not found")
		}
		if topic.MajorCode != council.MajorCode {
			return s.reject(rejectMajor, appErrors.Clone(appErrors.ErrMajorMismatch, ""))
		}
		if !IsSchedulable(topic.Status) {
			return s.reject(rejectStatus, appErrors.Clone(appErrors.ErrValidation, "only completed topics can be scheduled"))
		}
		if _, err := s.schedules.FindByTopic(ctx, tx, topic.ID); err == nil {
			return s.reject(rejectScheduled, appErrors.Clone(appErrors.ErrTopicAlreadyScheduled, ""))
		} else if !errors.Is(err, sql.ErrNoRows) {
			return appErrors.Store(err, "failed to check topic schedule")
		}

		existing, err := s.schedules.ListByCouncil(ctx, tx, council.ID)
		if err != nil {
			return appErrors.Store(err, "failed to load council schedule")
		}
		if err := CheckScheduleConflict(existing, schedule.TimeStart, schedule.TimeEnd, ""); err != nil {
			return s.reject(rejectOverlap, err)
		}
		if err := s.schedules.Create(ctx, tx, schedule, rc.Principal.AccountID); err != nil {
			return s.constraintErr(err, "failed to create schedule")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("council schedule created",
		zap.String("council_id", councilID),
		zap.String("topic_id", schedule.TopicID),
		zap.Time("time_start", schedule.TimeStart))
	return schedule, nil
}

// Update moves a slot. The slot's own interval is ignored in the overlap scan.
func (s *CouncilScheduleService) Update(ctx context.Context, rc authz.RequestContext, scheduleID string, req UpdateScheduleRequest) (*models.CouncilSchedule, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationErr(err, "invalid schedule payload")
	}
	if err := ValidateInterval(req.TimeStart, req.TimeEnd); err != nil {
		s.metrics.RecordScheduleRejection(rejectInterval)
		return nil, err
	}

	located, err := s.schedules.FindByID(ctx, nil, scheduleID)
	if err != nil {
		return nil, lookupErr(err, "schedule")
	}

	var schedule *models.CouncilSchedule
	err = inTx(ctx, s.tx, func(tx *sqlx.Tx) error {
		council, err := s.lockCouncil(ctx, tx, rc, located.CouncilID)
		if err != nil {
			return err
		}
		current, err := s.schedules.FindByID(ctx, tx, scheduleID)
		if err != nil {
			return lookupErr(err, "schedule")
		}
		if current.CouncilID != council.ID {
			return appErrors.Clone(appErrors.ErrConflict, "schedule moved to another council")
		}
		existing, err := s.schedules.ListByCouncil(ctx, tx, council.ID)
		if err != nil {
			return appErrors.Store(err, "failed to load council schedule")
		}
		start, end := req.TimeStart.UTC(), req.TimeEnd.UTC()
		if err := CheckScheduleConflict(existing, start, end, current.ID); err != nil {
			return s.reject(rejectOverlap, err)
		}
		current.TimeStart = start
		current.TimeEnd = end
		current.Location = strPtr(strings.TrimSpace(req.Location))
		if err := s.schedules.Update(ctx, tx, current, rc.Principal.AccountID); err != nil {
			return s.constraintErr(err, "failed to update schedule")
		}
		schedule = current
		return nil
	})
	if err != nil {
		return nil, err
	}
	return schedule, nil
}

// Delete frees a slot.
func (s *CouncilScheduleService) Delete(ctx context.Context, rc authz.RequestContext, scheduleID string) error {
	current, err := s.schedules.FindByID(ctx, nil, scheduleID)
	if err != nil {
		return lookupErr(err, "schedule")
	}
	council, err := s.councils.FindByID(ctx, current.CouncilID)
	if err != nil {
		return lookupErr(err, "council")
	}
	if err := s.authorize(rc, council); err != nil {
		return err
	}
	if err := s.schedules.Delete(ctx, scheduleID); err != nil {
		return lookupErr(err, "schedule")
	}
	return nil
}

// ListByCouncil returns a council's slots ordered by start time.
func (s *CouncilScheduleService) ListByCouncil(ctx context.Context, rc authz.RequestContext, councilID string) ([]models.CouncilSchedule, error) {
	council, err := s.councils.FindByID(ctx, councilID)
	if err != nil {
		return nil, lookupErr(err, "council")
	}
	if council.SemesterCode != rc.SemesterCode || !rc.Principal.IsTeacher() {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "council not found")
	}
	items, err := s.schedules.ListByCouncil(ctx, nil, council.ID)
	if err != nil {
		return nil, appErrors.Store(err, "failed to load council schedule")
	}
	return items, nil
}

// ListForTeacher returns the slots of every council the caller sits on.
func (s *CouncilScheduleService) ListForTeacher(ctx context.Context, rc authz.RequestContext) ([]models.CouncilSchedule, error) {
	if !rc.Principal.IsTeacher() {
		return nil, forbidden("only teachers sit on councils")
	}
	items, err := s.schedules.ListForTeacher(ctx, rc.Principal.ProfileID, rc.SemesterCode)
	if err != nil {
		return nil, appErrors.Store(err, "failed to load schedule")
	}
	return items, nil
}

func (s *CouncilScheduleService) lockCouncil(ctx context.Context, tx *sqlx.Tx, rc authz.RequestContext, id string) (*models.Council, error) {
	council, err := s.councils.LockByID(ctx, tx, id)
	if err != nil {
		return nil, lookupErr(err, "council")
	}
	if err := s.authorize(rc, council); err != nil {
		return nil, err
	}
	return council, nil
}

func (s *CouncilScheduleService) authorize(rc authz.RequestContext, council *models.Council) error {
	if council.SemesterCode != rc.SemesterCode {
		return appErrors.Clone(appErrors.ErrNotFound, "council not found")
	}
	if !authz.CanManageCouncil(rc.Principal, council.MajorCode) {
		return forbidden("scheduling requires Academic_affairs_staff or Department_Lecturer of the major")
	}
	return nil
}

func (s *CouncilScheduleService) reject(reason string, err error) error {
	s.metrics.RecordScheduleRejection(reason)
	return err
}

// constraintErr maps integrity violations raised by the store to the same
// errors the in-process checks produce.
func (s *CouncilScheduleService) constraintErr(err error, message string) error {
	code, constraint, ok := database.ConstraintViolation(err)
	if !ok {
		return appErrors.Store(err, message)
	}
	switch {
	case database.IsExclusionViolation(err):
		return s.reject(rejectOverlap, appErrors.Wrap(err, appErrors.ErrTimeConflict.Code, appErrors.ErrTimeConflict.Status, appErrors.ErrTimeConflict.Message))
	case database.IsUniqueViolation(err):
		return s.reject(rejectScheduled, appErrors.Wrap(err, appErrors.ErrTopicAlreadyScheduled.Code, appErrors.ErrTopicAlreadyScheduled.Status, appErrors.ErrTopicAlreadyScheduled.Message))
	default:
		s.logger.Warn("schedule check violation", zap.String("code", code), zap.String("constraint", constraint))
		return s.reject(rejectInterval, appErrors.Wrap(err, appErrors.ErrInvalidInterval.Code, appErrors.ErrInvalidInterval.Status, appErrors.ErrInvalidInterval.Message))
	}
}
