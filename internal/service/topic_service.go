package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
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

type topicRepository interface {
	Create(ctx context.Context, topic *models.Topic, actor string) error
	FindByID(ctx context.Context, id string) (*models.Topic, error)
	FindForUpdate(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Topic, error)
	List(ctx context.Context, filter models.TopicFilter) ([]models.Topic, int, error)
	Transition(ctx context.Context, exec sqlx.ExtContext, t models.TopicTransition) error
	SetTeam(ctx context.Context, exec sqlx.ExtContext, topicID, teamID, actor string) error
}

type teamRepository interface {
	CreateTeam(ctx context.Context, exec sqlx.ExtContext, team *models.Team, actor string) ([]models.Enrollment, error)
	FindTeamByTopic(ctx context.Context, topicID string) (*models.Team, error)
	FindTeamIDByStudent(ctx context.Context, studentID string) (string, error)
	FindByStudent(ctx context.Context, studentID, semesterCode string) (*models.Enrollment, error)
	ListByTopic(ctx context.Context, exec sqlx.ExtContext, topicID string) ([]models.Enrollment, error)
}

type studentFinder interface {
	FindStudentsByIDs(ctx context.Context, ids []string) ([]models.Student, error)
}

// SubmitTopicRequest is a teacher's new thesis proposal.
type SubmitTopicRequest struct {
	Title       string     `json:"title" validate:"required,max=255"`
	Description string     `json:"description"`
	MajorCode   string     `json:"major_code"`
	TimeStart   *time.Time `json:"time_start"`
	TimeEnd     *time.Time `json:"time_end"`
}

// ApproveTopicRequest carries the optional approval note.
type ApproveTopicRequest struct {
	Note string `json:"note"`
}

// RejectTopicRequest carries the mandatory rejection reason.
type RejectTopicRequest struct {
	Reason string `json:"reason" validate:"required"`
}

// AssignStudentsRequest links a team of students to a topic.
type AssignStudentsRequest struct {
	StudentIDs []string `json:"student_ids" validate:"required,min=1,max=5,dive,required"`
}

// TopicService drives the topic lifecycle: submission, review, team assignment and completion.
type TopicService struct {
	topics    topicRepository
	teams     teamRepository
	students  studentFinder
	defense   *defenseLookup
	tx        txProvider
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewTopicService constructs a TopicService.
func NewTopicService(topics topicRepository, teams teamRepository, students studentFinder, tx txProvider, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *TopicService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TopicService{topics: topics, teams: teams, students: students, tx: tx, metrics: metrics, validator: validate, logger: logger, now: time.Now}
}

// Submit creates a pending topic supervised by the caller.
func (s *TopicService) Submit(ctx context.Context, rc authz.RequestContext, req SubmitTopicRequest) (*models.Topic, error) {
	if !rc.Principal.IsTeacher() || rc.Principal.ProfileID == "" {
		return nil, forbidden("only teachers may submit topics")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, validationErr(err, "invalid topic payload")
	}
	if req.TimeStart != nil && req.TimeEnd != nil {
		if err := ValidateInterval(*req.TimeStart, *req.TimeEnd); err != nil {
			return nil, err
		}
	}
	major := strings.TrimSpace(req.MajorCode)
	if major == "" {
		major = rc.Principal.MajorCode
	}
	if major == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "major_code is required")
	}

	topic := &models.Topic{
		Title:        strings.TrimSpace(req.Title),
		Description:  req.Description,
		MajorCode:    major,
		SupervisorID: rc.Principal.ProfileID,
		SemesterCode: rc.SemesterCode,
		Status:       models.TopicPending,
		TimeStart:    req.TimeStart,
		TimeEnd:      req.TimeEnd,
	}
	if err := s.topics.Create(ctx, topic, rc.Principal.AccountID); err != nil {
		return nil, appErrors.Store(err, "failed to create topic")
	}
	s.logger.Info("topic submitted", zap.String("topic_id", topic.ID), zap.String("supervisor_id", topic.SupervisorID))
	return topic, nil
}

// List returns the topics of the semester visible to the caller.
func (s *TopicService) List(ctx context.Context, rc authz.RequestContext, filter models.TopicFilter) ([]models.Topic, *models.Pagination, error) {
	filter.SemesterCode = rc.SemesterCode

	if rc.Principal.IsStudent() {
		teamID, err := s.teams.FindTeamIDByStudent(ctx, rc.Principal.ProfileID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return []models.Topic{}, pagination(filter.PageRequest, 0), nil
			}
			return nil, nil, appErrors.Store(err, "failed to resolve team")
		}
		filter.TeamID = teamID
	} else {
		switch authz.ListScope(rc.Principal) {
		case authz.VisibilitySemester:
		case authz.VisibilityMajor:
			filter.MajorCode = rc.Principal.MajorCode
		default:
			filter.SupervisorID = rc.Principal.ProfileID
		}
	}

	topics, total, err := s.topics.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Store(err, "failed to list topics")
	}
	return topics, pagination(filter.PageRequest, total), nil
}

// Get returns one topic with its team and enrollments.
func (s *TopicService) Get(ctx context.Context, rc authz.RequestContext, id string) (*models.TopicDetail, error) {
	topic, err := s.topics.FindByID(ctx, id)
	if err != nil {
		return nil, lookupErr(err, "topic")
	}
	if topic.SemesterCode != rc.SemesterCode {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "topic not found")
	}

	detail := &models.TopicDetail{Topic: *topic, Enrollments: []models.Enrollment{}}
	team, err := s.teams.FindTeamByTopic(ctx, topic.ID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Store(err, "failed to load team")
	}
	detail.Team = team

	if !s.canView(rc, *topic, team) {
		return nil, forbidden("topic is outside your scope")
	}

	if team != nil {
		enrollments, err := s.teams.ListByTopic(ctx, nil, topic.ID)
		if err != nil {
			return nil, appErrors.Store(err, "failed to load enrollments")
		}
		detail.Enrollments = enrollments
	}

	if s.defense != nil {
		slot, err := s.defense.load(ctx, *topic)
		if err != nil {
			return nil, err
		}
		detail.Defense = slot
	}
	return detail, nil
}

// Approve moves a pending topic to approved.
func (s *TopicService) Approve(ctx context.Context, rc authz.RequestContext, id string, req ApproveTopicRequest) (*models.Topic, error) {
	return s.transition(ctx, rc, id, models.TopicApproved, func(topic models.Topic) error {
		if topic.SupervisorID == "" {
			return appErrors.Clone(appErrors.ErrValidation, "topic has no supervising teacher")
		}
		if !authz.CanApproveTopic(rc.Principal, topic) {
			return forbidden("approval requires Department_Lecturer of the topic's major")
		}
		return nil
	}, func(t *models.TopicTransition) {
		t.ApprovalNote = strPtr(strings.TrimSpace(req.Note))
	})
}

// Reject moves a pending topic to rejected. The reason is mandatory.
func (s *TopicService) Reject(ctx context.Context, rc authz.RequestContext, id string, req RejectTopicRequest) (*models.Topic, error) {
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "rejection reason is required")
	}
	return s.transition(ctx, rc, id, models.TopicRejected, func(topic models.Topic) error {
		if !authz.CanApproveTopic(rc.Principal, topic) {
			return forbidden("rejection requires Department_Lecturer of the topic's major")
		}
		return nil
	}, func(t *models.TopicTransition) {
		t.RejectReason = &reason
	})
}

// Complete marks an approved or in-progress topic as completed, making it schedulable.
func (s *TopicService) Complete(ctx context.Context, rc authz.RequestContext, id string) (*models.Topic, error) {
	return s.transition(ctx, rc, id, models.TopicCompleted, func(topic models.Topic) error {
		if !authz.CanCompleteTopic(rc.Principal, topic) {
			return forbidden("not allowed to complete this topic")
		}
		return nil
	}, nil)
}

func (s *TopicService) transition(ctx context.Context, rc authz.RequestContext, id string, to models.TopicStatus,
	authorize func(models.Topic) error, decorate func(*models.TopicTransition)) (*models.Topic, error) {
	var result *models.Topic
	err := inTx(ctx, s.tx, func(tx *sqlx.Tx) error {
		topic, err := s.topics.FindForUpdate(ctx, tx, id)
		if err != nil {
			return lookupErr(err, "topic")
		}
		if topic.SemesterCode != rc.SemesterCode {
			return appErrors.Clone(appErrors.ErrNotFound, "topic not found")
		}
		if err := authorize(*topic); err != nil {
			return err
		}
		if err := ValidateTransition(topic.Status, to); err != nil {
			return err
		}

		t := models.TopicTransition{
			TopicID: topic.ID,
			From:    topic.Status,
			To:      to,
			Actor:   rc.Principal.AccountID,
			At:      s.now().UTC(),
		}
		if decorate != nil {
			decorate(&t)
		}
		if err := applyTransition(ctx, s.topics, tx, t); err != nil {
			return err
		}
		s.metrics.RecordTransition(t.From, t.To)

		topic.Status = to
		topic.UpdatedAt, topic.UpdatedBy = t.At, t.Actor
		switch to {
		case models.TopicApproved:
			topic.ApprovedBy, topic.ApprovedAt, topic.ApprovalNote = &t.Actor, &t.At, t.ApprovalNote
		case models.TopicRejected:
			topic.RejectedBy, topic.RejectedAt, topic.RejectReason = &t.Actor, &t.At, t.RejectReason
		case models.TopicCompleted:
			topic.CompletedAt = &t.At
		}
		result = topic
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("topic status changed", zap.String("topic_id", result.ID), zap.String("status", string(result.Status)), zap.String("actor", rc.Principal.AccountID))
	return result, nil
}

// applyTransition writes a guarded status change; a lost guard means another
// writer moved the topic first.
func applyTransition(ctx context.Context, topics interface {
	Transition(ctx context.Context, exec sqlx.ExtContext, t models.TopicTransition) error
}, exec sqlx.ExtContext, t models.TopicTransition) error {
	if err := topics.Transition(ctx, exec, t); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrConflict, "topic status changed concurrently")
		}
		return appErrors.Store(err, "failed to update topic status")
	}
	return nil
}

// AssignStudents creates the team of a topic with one enrollment per member.
func (s *TopicService) AssignStudents(ctx context.Context, rc authz.RequestContext, id string, req AssignStudentsRequest) (*models.TopicDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationErr(err, "invalid student assignment payload")
	}
	ids := uniqueStrings(req.StudentIDs)

	students, err := s.students.FindStudentsByIDs(ctx, ids)
	if err != nil {
		return nil, appErrors.Store(err, "failed to load students")
	}
	if len(students) != len(ids) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "one or more students not found")
	}
	for _, student := range students {
		if student.SemesterCode != rc.SemesterCode {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("student %s belongs to another semester", student.Email))
		}
	}

	var detail *models.TopicDetail
	err = inTx(ctx, s.tx, func(tx *sqlx.Tx) error {
		topic, err := s.topics.FindForUpdate(ctx, tx, id)
		if err != nil {
			return lookupErr(err, "topic")
		}
		if topic.SemesterCode != rc.SemesterCode {
			return appErrors.Clone(appErrors.ErrNotFound, "topic not found")
		}
		if !authz.CanApproveTopic(rc.Principal, *topic) && !(rc.Principal.IsTeacher() && topic.SupervisorID == rc.Principal.ProfileID) {
			return forbidden("only the supervisor or a department lecturer may assign students")
		}
		if topic.Status != models.TopicPending && topic.Status != models.TopicApproved {
			return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("cannot assign students to a %s topic", topic.Status))
		}
		if topic.TeamID != nil {
			return appErrors.Clone(appErrors.ErrConflict, "topic already has an enrolled team")
		}

		team := &models.Team{TopicID: topic.ID, SemesterCode: topic.SemesterCode, MemberStudentIDs: ids}
		enrollments, err := s.teams.CreateTeam(ctx, tx, team, rc.Principal.AccountID)
		if err != nil {
			if database.IsUniqueViolation(err) {
				return appErrors.Wrap(err, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, "a student is already enrolled this semester")
			}
			return appErrors.Store(err, "failed to create team")
		}
		if err := s.topics.SetTeam(ctx, tx, topic.ID, team.ID, rc.Principal.AccountID); err != nil {
			return appErrors.Store(err, "failed to link team")
		}
		topic.TeamID = &team.ID
		detail = &models.TopicDetail{Topic: *topic, Team: team, Enrollments: enrollments}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return detail, nil
}

func (s *TopicService) canView(rc authz.RequestContext, topic models.Topic, team *models.Team) bool {
	if rc.Principal.IsStudent() {
		if team == nil {
			return false
		}
		for _, member := range team.MemberStudentIDs {
			if member == rc.Principal.ProfileID {
				return true
			}
		}
		return false
	}
	return authz.CanViewTopic(rc.Principal, topic)
}

func uniqueStrings(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
