package service

import (
	"context"
	"fmt"
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

type councilRepository interface {
	Create(ctx context.Context, exec sqlx.ExtContext, council *models.Council, defences []models.Defence, actor string) error
	FindByID(ctx context.Context, id string) (*models.Council, error)
	LockByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Council, error)
	List(ctx context.Context, filter models.CouncilFilter) ([]models.Council, error)
	ListDefences(ctx context.Context, exec sqlx.ExtContext, councilID string) ([]models.Defence, error)
	AddDefence(ctx context.Context, exec sqlx.ExtContext, defence *models.Defence, actor string) error
	RemoveDefence(ctx context.Context, councilID, defenceID string) error
}

type councilScheduleLister interface {
	ListByCouncil(ctx context.Context, exec sqlx.ExtContext, councilID string) ([]models.CouncilSchedule, error)
}

// CouncilMemberRequest seats one teacher on a council.
type CouncilMemberRequest struct {
	TeacherID string `json:"teacher_id" validate:"required"`
	Position  string `json:"position" validate:"required,oneof=president chairman secretary reviewer member"`
	Title     string `json:"title"`
}

// CreateCouncilRequest creates a council with its initial seats.
type CreateCouncilRequest struct {
	Title     string                 `json:"title" validate:"required,max=255"`
	MajorCode string                 `json:"major_code"`
	TimeStart *time.Time             `json:"time_start"`
	TimeEnd   *time.Time             `json:"time_end"`
	Members   []CouncilMemberRequest `json:"members" validate:"dive"`
}

// CouncilService manages defense councils and their committee seats.
type CouncilService struct {
	councils  councilRepository
	schedules councilScheduleLister
	teachers  teacherFinder
	tx        txProvider
	validator *validator.Validate
	logger    *zap.Logger
}

// NewCouncilService constructs a CouncilService.
func NewCouncilService(councils councilRepository, schedules councilScheduleLister, teachers teacherFinder, tx txProvider, validate *validator.Validate, logger *zap.Logger) *CouncilService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CouncilService{councils: councils, schedules: schedules, teachers: teachers, tx: tx, validator: validate, logger: logger}
}

// Create stores a council and its seats in one transaction.
func (s *CouncilService) Create(ctx context.Context, rc authz.RequestContext, req CreateCouncilRequest) (*models.CouncilDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationErr(err, "invalid council payload")
	}
	major := strings.TrimSpace(req.MajorCode)
	if major == "" {
		major = rc.Principal.MajorCode
	}
	if major == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "major_code is required")
	}
	if !authz.CanManageCouncil(rc.Principal, major) {
		return nil, forbidden("council management requires Academic_affairs_staff or Department_Lecturer of the major")
	}
	if req.TimeStart != nil && req.TimeEnd != nil {
		if err := ValidateInterval(*req.TimeStart, *req.TimeEnd); err != nil {
			return nil, err
		}
	}

	defences := make([]models.Defence, 0, len(req.Members))
	for _, m := range req.Members {
		d, err := s.seat(ctx, rc, m)
		if err != nil {
			return nil, err
		}
		defences = append(defences, d)
	}
	if err := ValidateSeats(nil, defences...); err != nil {
		return nil, err
	}

	council := &models.Council{
		Title:        strings.TrimSpace(req.Title),
		MajorCode:    major,
		SemesterCode: rc.SemesterCode,
		TimeStart:    req.TimeStart,
		TimeEnd:      req.TimeEnd,
	}
	err := inTx(ctx, s.tx, func(tx *sqlx.Tx) error {
		if err := s.councils.Create(ctx, tx, council, defences, rc.Principal.AccountID); err != nil {
			if database.IsUniqueViolation(err) {
				return appErrors.Wrap(err, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, "seat already taken on this council")
			}
			return appErrors.Store(err, "failed to create council")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("council created", zap.String("council_id", council.ID), zap.Int("members", len(defences)))
	return &models.CouncilDetail{
		Council:   *council,
		Defences:  defences,
		Schedules: []models.CouncilSchedule{},
		Usable:    authz.CouncilUsable(defences),
	}, nil
}

// List returns councils of the semester visible to the caller.
func (s *CouncilService) List(ctx context.Context, rc authz.RequestContext) ([]models.Council, error) {
	if !rc.Principal.IsTeacher() {
		return nil, forbidden("students cannot list councils")
	}
	filter := models.CouncilFilter{SemesterCode: rc.SemesterCode}
	switch {
	case authz.ListScope(rc.Principal) == authz.VisibilitySemester:
	case authz.CanCreateCouncilOrSchedule(rc.Principal) || authz.ListScope(rc.Principal) == authz.VisibilityMajor:
		filter.MajorCode = rc.Principal.MajorCode
	default:
		filter.TeacherID = rc.Principal.ProfileID
	}
	councils, err := s.councils.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Store(err, "failed to list councils")
	}
	return councils, nil
}

// Get returns a council with its seats and schedule.
func (s *CouncilService) Get(ctx context.Context, rc authz.RequestContext, id string) (*models.CouncilDetail, error) {
	council, err := s.find(ctx, rc, id)
	if err != nil {
		return nil, err
	}
	defences, err := s.councils.ListDefences(ctx, nil, council.ID)
	if err != nil {
		return nil, appErrors.Store(err, "failed to load council seats")
	}
	if !s.canView(rc, council, defences) {
		return nil, forbidden("council is outside your scope")
	}
	schedules, err := s.schedules.ListByCouncil(ctx, nil, council.ID)
	if err != nil {
		return nil, appErrors.Store(err, "failed to load council schedule")
	}
	return &models.CouncilDetail{
		Council:   *council,
		Defences:  defences,
		Schedules: schedules,
		Usable:    authz.CouncilUsable(defences),
	}, nil
}

// AddMember seats one more teacher on a council.
func (s *CouncilService) AddMember(ctx context.Context, rc authz.RequestContext, councilID string, req CouncilMemberRequest) (*models.Defence, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationErr(err, "invalid member payload")
	}
	council, err := s.find(ctx, rc, councilID)
	if err != nil {
		return nil, err
	}
	if !authz.CanManageCouncil(rc.Principal, council.MajorCode) {
		return nil, forbidden("council management requires Academic_affairs_staff or Department_Lecturer of the major")
	}
	defence, err := s.seat(ctx, rc, req)
	if err != nil {
		return nil, err
	}

	// Seats are read under the council row lock so two concurrent requests
	// cannot both claim the chair or the secretary seat.
	defence.CouncilID = council.ID
	err = inTx(ctx, s.tx, func(tx *sqlx.Tx) error {
		if _, err := s.councils.LockByID(ctx, tx, council.ID); err != nil {
			return lookupErr(err, "council")
		}
		existing, err := s.councils.ListDefences(ctx, tx, council.ID)
		if err != nil {
			return appErrors.Store(err, "failed to load council seats")
		}
		if err := ValidateSeats(existing, defence); err != nil {
			return err
		}
		if err := s.councils.AddDefence(ctx, tx, &defence, rc.Principal.AccountID); err != nil {
			if database.IsUniqueViolation(err) {
				return appErrors.Wrap(err, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, "seat already taken on this council")
			}
			return appErrors.Store(err, "failed to add council member")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &defence, nil
}

// RemoveMember frees one seat.
func (s *CouncilService) RemoveMember(ctx context.Context, rc authz.RequestContext, councilID, defenceID string) error {
	council, err := s.find(ctx, rc, councilID)
	if err != nil {
		return err
	}
	if !authz.CanManageCouncil(rc.Principal, council.MajorCode) {
		return forbidden("council management requires Academic_affairs_staff or Department_Lecturer of the major")
	}
	if err := s.councils.RemoveDefence(ctx, council.ID, defenceID); err != nil {
		return lookupErr(err, "council member")
	}
	return nil
}

func (s *CouncilService) find(ctx context.Context, rc authz.RequestContext, id string) (*models.Council, error) {
	council, err := s.councils.FindByID(ctx, id)
	if err != nil {
		return nil, lookupErr(err, "council")
	}
	if council.SemesterCode != rc.SemesterCode {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "council not found")
	}
	return council, nil
}

func (s *CouncilService) seat(ctx context.Context, rc authz.RequestContext, m CouncilMemberRequest) (models.Defence, error) {
	position := models.DefencePosition(strings.ToLower(strings.TrimSpace(m.Position)))
	if !position.Valid() {
		return models.Defence{}, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown position %q", m.Position))
	}
	teacher, err := s.teachers.FindTeacherByID(ctx, m.TeacherID)
	if err != nil {
		return models.Defence{}, lookupErr(err, "teacher")
	}
	if teacher.SemesterCode != rc.SemesterCode {
		return models.Defence{}, appErrors.Clone(appErrors.ErrValidation, "teacher belongs to another semester")
	}
	return models.Defence{Title: m.Title, TeacherID: teacher.ID, Position: position}, nil
}

func (s *CouncilService) canView(rc authz.RequestContext, council *models.Council, defences []models.Defence) bool {
	if !rc.Principal.IsTeacher() {
		return false
	}
	switch authz.ListScope(rc.Principal) {
	case authz.VisibilitySemester:
		return true
	case authz.VisibilityMajor:
		if council.MajorCode == rc.Principal.MajorCode {
			return true
		}
	}
	if authz.CanManageCouncil(rc.Principal, council.MajorCode) {
		return true
	}
	for _, d := range defences {
		if d.TeacherID == rc.Principal.ProfileID {
			return true
		}
	}
	return false
}

// ValidateSeats rejects a teacher seated twice and a second chair or secretary.
func ValidateSeats(existing []models.Defence, added ...models.Defence) error {
	teachers := make(map[string]struct{})
	var chair, secretary bool
	check := func(d models.Defence) error {
		if _, dup := teachers[d.TeacherID]; dup {
			return appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("teacher %s already holds a seat", d.TeacherID))
		}
		teachers[d.TeacherID] = struct{}{}
		switch d.Position.Normalize() {
		case models.PositionPresident:
			if chair {
				return appErrors.Clone(appErrors.ErrConflict, "council already has a chair")
			}
			chair = true
		case models.PositionSecretary:
			if secretary {
				return appErrors.Clone(appErrors.ErrConflict, "council already has a secretary")
			}
			secretary = true
		}
		return nil
	}
	for _, d := range existing {
		if err := check(d); err != nil {
			return err
		}
	}
	for _, d := range added {
		if err := check(d); err != nil {
			return err
		}
	}
	return nil
}
