package service

import (
	"context"

	"github.com/cms-lvtn-2025/thesis-api/internal/authz"
	"github.com/cms-lvtn-2025/thesis-api/internal/models"
	appErrors "github.com/cms-lvtn-2025/thesis-api/pkg/errors"
)

type semesterRepository interface {
	List(ctx context.Context) ([]models.Semester, error)
	FindActive(ctx context.Context) (*models.Semester, error)
	ListMajors(ctx context.Context) ([]models.Major, error)
}

type peopleLister interface {
	ListTeachers(ctx context.Context, filter models.PeopleFilter) ([]models.Teacher, int, error)
	ListStudents(ctx context.Context, filter models.PeopleFilter) ([]models.Student, int, error)
}

// SemesterService serves reference data: semesters, majors and the people of a semester.
type SemesterService struct {
	repo   semesterRepository
	people peopleLister
}

// NewSemesterService constructs a SemesterService.
func NewSemesterService(repo semesterRepository, people peopleLister) *SemesterService {
	return &SemesterService{repo: repo, people: people}
}

// List returns every semester.
func (s *SemesterService) List(ctx context.Context) ([]models.Semester, error) {
	semesters, err := s.repo.List(ctx)
	if err != nil {
		return nil, appErrors.Store(err, "failed to list semesters")
	}
	return semesters, nil
}

// Active returns the semester flagged active.
func (s *SemesterService) Active(ctx context.Context) (*models.Semester, error) {
	semester, err := s.repo.FindActive(ctx)
	if err != nil {
		return nil, lookupErr(err, "active semester")
	}
	return semester, nil
}

// ListMajors returns every major.
func (s *SemesterService) ListMajors(ctx context.Context) ([]models.Major, error) {
	majors, err := s.repo.ListMajors(ctx)
	if err != nil {
		return nil, appErrors.Store(err, "failed to list majors")
	}
	return majors, nil
}

// ListTeachers pages the teachers of the caller's semester. Lecturers without
// a semester-wide role only see their own major.
func (s *SemesterService) ListTeachers(ctx context.Context, rc authz.RequestContext, filter models.PeopleFilter) ([]models.Teacher, *models.Pagination, error) {
	if !rc.Principal.IsTeacher() {
		return nil, nil, forbidden("students cannot list teachers")
	}
	filter = scopePeople(rc, filter)
	teachers, total, err := s.people.ListTeachers(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Store(err, "failed to list teachers")
	}
	return teachers, pagination(filter.PageRequest, total), nil
}

// ListStudents pages the students of the caller's semester.
func (s *SemesterService) ListStudents(ctx context.Context, rc authz.RequestContext, filter models.PeopleFilter) ([]models.Student, *models.Pagination, error) {
	if !rc.Principal.IsTeacher() {
		return nil, nil, forbidden("students cannot list students")
	}
	filter = scopePeople(rc, filter)
	students, total, err := s.people.ListStudents(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Store(err, "failed to list students")
	}
	return students, pagination(filter.PageRequest, total), nil
}

func scopePeople(rc authz.RequestContext, filter models.PeopleFilter) models.PeopleFilter {
	filter.SemesterCode = rc.SemesterCode
	if authz.ListScope(rc.Principal) != authz.VisibilitySemester {
		filter.MajorCode = rc.Principal.MajorCode
	}
	return filter
}

func pagination(req models.PageRequest, total int) *models.Pagination {
	page, size, _ := req.Normalize()
	return &models.Pagination{Page: page, PageSize: size, TotalCount: total}
}
