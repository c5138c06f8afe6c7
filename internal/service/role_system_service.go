package service

import (
	"context"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/cms-lvtn-2025/thesis-api/internal/authz"
	"github.com/cms-lvtn-2025/thesis-api/internal/models"
	appErrors "github.com/cms-lvtn-2025/thesis-api/pkg/errors"
)

type roleSystemRepository interface {
	ListBySemester(ctx context.Context, semesterCode string) ([]models.RoleSystem, error)
	FindByID(ctx context.Context, id string) (*models.RoleSystem, error)
	Upsert(ctx context.Context, exec sqlx.ExtContext, role *models.RoleSystem, actor string) error
	Deactivate(ctx context.Context, id, actor string) error
}

type teacherFinder interface {
	FindTeacherByID(ctx context.Context, id string) (*models.Teacher, error)
}

type roleCacheInvalidator interface {
	InvalidateRoles(ctx context.Context, teacherID, semesterCode string)
}

// AssignRoleRequest activates a role for a teacher in the caller's semester.
type AssignRoleRequest struct {
	TeacherID string `json:"teacher_id" validate:"required"`
	Role      string `json:"role" validate:"required,oneof=Academic_affairs_staff Supervisor_lecturer Department_Lecturer Reviewer_Lecturer"`
	Title     string `json:"title"`
}

// RoleSystemService manages role activations. Only academic affairs staff may call it.
type RoleSystemService struct {
	repo      roleSystemRepository
	teachers  teacherFinder
	cache     roleCacheInvalidator
	validator *validator.Validate
	logger    *zap.Logger
}

// NewRoleSystemService constructs a RoleSystemService.
func NewRoleSystemService(repo roleSystemRepository, teachers teacherFinder, cache roleCacheInvalidator, validate *validator.Validate, logger *zap.Logger) *RoleSystemService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RoleSystemService{repo: repo, teachers: teachers, cache: cache, validator: validate, logger: logger}
}

// List returns the role rows of the active semester.
func (s *RoleSystemService) List(ctx context.Context, rc authz.RequestContext) ([]models.RoleSystem, error) {
	if !authz.CanManageRoles(rc.Principal) {
		return nil, forbidden("only academic affairs staff may manage roles")
	}
	roles, err := s.repo.ListBySemester(ctx, rc.SemesterCode)
	if err != nil {
		return nil, appErrors.Store(err, "failed to list roles")
	}
	return roles, nil
}

// Assign activates a role for a teacher of the active semester.
func (s *RoleSystemService) Assign(ctx context.Context, rc authz.RequestContext, req AssignRoleRequest) (*models.RoleSystem, error) {
	if !authz.CanManageRoles(rc.Principal) {
		return nil, forbidden("only academic affairs staff may manage roles")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, validationErr(err, "invalid role payload")
	}
	role, err := authz.ParseRole(req.Role)
	if err != nil {
		return nil, validationErr(err, err.Error())
	}

	teacher, err := s.teachers.FindTeacherByID(ctx, req.TeacherID)
	if err != nil {
		return nil, lookupErr(err, "teacher")
	}
	if teacher.SemesterCode != rc.SemesterCode {
		return nil, appErrors.Clone(appErrors.ErrValidation, "teacher belongs to another semester")
	}

	row := &models.RoleSystem{
		Title:        req.Title,
		TeacherID:    teacher.ID,
		Role:         string(role),
		SemesterCode: rc.SemesterCode,
		Activate:     true,
	}
	if err := s.repo.Upsert(ctx, nil, row, rc.Principal.AccountID); err != nil {
		return nil, appErrors.Store(err, "failed to assign role")
	}
	s.cache.InvalidateRoles(ctx, teacher.ID, rc.SemesterCode)
	s.logger.Info("role assigned", zap.String("teacher_id", teacher.ID), zap.String("role", row.Role), zap.String("semester", rc.SemesterCode))
	return row, nil
}

// Deactivate turns a role row off.
func (s *RoleSystemService) Deactivate(ctx context.Context, rc authz.RequestContext, id string) error {
	if !authz.CanManageRoles(rc.Principal) {
		return forbidden("only academic affairs staff may manage roles")
	}
	row, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return lookupErr(err, "role")
	}
	if row.SemesterCode != rc.SemesterCode {
		return appErrors.Clone(appErrors.ErrNotFound, "role not found")
	}
	if err := s.repo.Deactivate(ctx, id, rc.Principal.AccountID); err != nil {
		return lookupErr(err, "role")
	}
	s.cache.InvalidateRoles(ctx, row.TeacherID, row.SemesterCode)
	return nil
}
