package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/cms-lvtn-2025/thesis-api/internal/authz"
	"github.com/cms-lvtn-2025/thesis-api/internal/models"
	appErrors "github.com/cms-lvtn-2025/thesis-api/pkg/errors"
)

type semesterReader interface {
	FindByCode(ctx context.Context, code string) (*models.Semester, error)
	FindActive(ctx context.Context) (*models.Semester, error)
}

type profileReader interface {
	FindTeacherByEmail(ctx context.Context, email, semesterCode string) (*models.Teacher, error)
	FindStudentByEmail(ctx context.Context, email, semesterCode string) (*models.Student, error)
}

type activeRoleLister interface {
	ListActive(ctx context.Context, teacherID, semesterCode string) ([]models.RoleSystem, error)
}

// ContextService turns access token claims into the per-semester request context.
type ContextService struct {
	semesters semesterReader
	profiles  profileReader
	roles     activeRoleLister
	cache     *RoleCache
	logger    *zap.Logger
}

// NewContextService constructs a ContextService.
func NewContextService(semesters semesterReader, profiles profileReader, roles activeRoleLister, cache *RoleCache, logger *zap.Logger) *ContextService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ContextService{semesters: semesters, profiles: profiles, roles: roles, cache: cache, logger: logger}
}

// Resolve picks the semester (active one when semesterCode is empty),
// re-resolves the profile by email and loads the active roles.
func (s *ContextService) Resolve(ctx context.Context, claims *models.JWTClaims, semesterCode string) (authz.RequestContext, error) {
	if claims == nil {
		return authz.RequestContext{}, appErrors.ErrUnauthorized
	}

	semester, err := s.semester(ctx, strings.TrimSpace(semesterCode))
	if err != nil {
		return authz.RequestContext{}, err
	}

	principal := authz.Principal{
		AccountID: claims.AccountID,
		Kind:      claims.Kind,
		Email:     claims.Email,
		Roles:     authz.NewRoleSet(),
	}

	switch claims.Kind {
	case models.AccountTeacher:
		teacher, err := s.profiles.FindTeacherByEmail(ctx, claims.Email, semester.Code)
		if err != nil {
			return authz.RequestContext{}, profileErr(err, "teacher", semester.Code)
		}
		principal.ProfileID = teacher.ID
		principal.MajorCode = teacher.MajorCode
		roles, err := s.activeRoles(ctx, teacher.ID, semester.Code)
		if err != nil {
			return authz.RequestContext{}, err
		}
		principal.Roles = roles
	case models.AccountStudent:
		student, err := s.profiles.FindStudentByEmail(ctx, claims.Email, semester.Code)
		if err != nil {
			return authz.RequestContext{}, profileErr(err, "student", semester.Code)
		}
		principal.ProfileID = student.ID
		principal.MajorCode = student.MajorCode
	default:
		return authz.RequestContext{}, appErrors.Clone(appErrors.ErrUnauthorized, "unknown account kind")
	}

	return authz.RequestContext{Principal: principal, SemesterCode: semester.Code}, nil
}

// InvalidateRoles drops the cached role set of a teacher.
func (s *ContextService) InvalidateRoles(ctx context.Context, teacherID, semesterCode string) {
	s.cache.Forget(ctx, semesterCode, teacherID)
}

func (s *ContextService) semester(ctx context.Context, code string) (*models.Semester, error) {
	var (
		semester *models.Semester
		err      error
	)
	if code == "" {
		semester, err = s.semesters.FindActive(ctx)
	} else {
		semester, err = s.semesters.FindByCode(ctx, code)
	}
	if err != nil {
		return nil, lookupErr(err, "semester")
	}
	return semester, nil
}

func (s *ContextService) activeRoles(ctx context.Context, teacherID, semesterCode string) (authz.RoleSet, error) {
	if cached, ok := s.cache.Lookup(ctx, semesterCode, teacherID); ok {
		return authz.NewRoleSet(cached...), nil
	}

	rows, err := s.roles.ListActive(ctx, teacherID, semesterCode)
	if err != nil {
		return nil, appErrors.Store(err, "failed to load roles")
	}
	set := authz.NewRoleSet()
	for _, row := range rows {
		role, err := authz.ParseRole(row.Role)
		if err != nil {
			s.logger.Warn("ignoring unknown role tag", zap.String("role", row.Role), zap.String("teacher_id", teacherID))
			continue
		}
		set[role] = struct{}{}
	}
	s.cache.Store(ctx, semesterCode, teacherID, set.Slice())
	return set, nil
}

func profileErr(err error, kind, semesterCode string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrForbidden, fmt.Sprintf("no %s profile in semester %s", kind, semesterCode))
	}
	return appErrors.Store(err, "failed to resolve "+kind+" profile")
}
