package service

import (
	"context"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/cms-lvtn-2025/thesis-api/internal/authz"
	"github.com/cms-lvtn-2025/thesis-api/internal/models"
	appErrors "github.com/cms-lvtn-2025/thesis-api/pkg/errors"
)

type defenseGradeApplier interface {
	ApplyDefenseGrade(ctx context.Context, enrollmentID string, value *float64, actor string) (*models.Final, error)
}

type topicEnrollmentFinder interface {
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
}

type voteStore interface {
	UpsertVote(ctx context.Context, enrollmentID string, column models.VoteColumn, value float64, actor string) (*models.GradeDefence, error)
}

// CommitteeVoteRequest is a chair or secretary vote on the 0-10 scale.
type CommitteeVoteRequest struct {
	Value *float64 `json:"value" validate:"required"`
}

// CommitteeVoteResult returns the stored votes and, once both exist, the
// final record carrying the derived defense grade.
type CommitteeVoteResult struct {
	GradeDefence *models.GradeDefence `json:"grade_defence"`
	DefenseGrade *float64             `json:"defense_grade,omitempty"`
	Final        *models.Final        `json:"final,omitempty"`
}

// CommitteeGradeService records committee votes. Each seat only ever writes
// its own column.
type CommitteeGradeService struct {
	enrollments topicEnrollmentFinder
	topics      topicFinder
	seats       topicSeatLister
	votes       voteStore
	finals      defenseGradeApplier
	scale       float64
	metrics     *MetricsService
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewCommitteeGradeService constructs a CommitteeGradeService. scale converts
// the averaged 0-10 vote onto the 0-100 component scale.
func NewCommitteeGradeService(enrollments topicEnrollmentFinder, topics topicFinder, seats topicSeatLister, votes voteStore, finals defenseGradeApplier, scale float64, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *CommitteeGradeService {
	if scale <= 0 {
		scale = DefaultCommitteeScale
	}
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CommitteeGradeService{enrollments: enrollments, topics: topics, seats: seats, votes: votes, finals: finals, scale: scale, metrics: metrics, validator: validate, logger: logger}
}

// Vote stores the caller's vote in the column of their seat and pushes the
// derived defense grade to the final once both votes exist.
func (s *CommitteeGradeService) Vote(ctx context.Context, rc authz.RequestContext, enrollmentID string, req CommitteeVoteRequest) (*CommitteeVoteResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationErr(err, "invalid vote payload")
	}
	if err := ValidateCommitteeVote(*req.Value); err != nil {
		return nil, err
	}

	enrollment, err := s.enrollments.FindByID(ctx, enrollmentID)
	if err != nil {
		return nil, lookupErr(err, "enrollment")
	}
	if enrollment.SemesterCode != rc.SemesterCode {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
	}
	topic, err := s.topics.FindByID(ctx, enrollment.TopicID)
	if err != nil {
		return nil, lookupErr(err, "topic")
	}
	if !CanGradeLate(topic.Status) {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "committee grading requires an in-progress or completed topic")
	}

	defences, err := s.seats.ListDefencesForTopic(ctx, topic.ID)
	if err != nil {
		return nil, appErrors.Store(err, "failed to load council seats")
	}
	if len(defences) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "topic is not scheduled before a council")
	}
	if !authz.CouncilUsable(defences) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "council needs a chair and a secretary before grading")
	}
	if !authz.CanGradeAsCommittee(rc.Principal, defences) {
		return nil, forbidden("only the council chair or secretary may grade")
	}
	column, _ := authz.CommitteeSeat(defences, rc.Principal.ProfileID)

	votes, err := s.votes.UpsertVote(ctx, enrollment.ID, column, *req.Value, rc.Principal.AccountID)
	if err != nil {
		return nil, appErrors.Store(err, "failed to store committee vote")
	}
	s.metrics.RecordGrade(string(column))

	result := &CommitteeVoteResult{GradeDefence: votes}
	defense := DefenseGradeFromVotes(votes.Council, votes.Secretary, s.scale)
	if defense == nil {
		return result, nil
	}
	final, err := s.finals.ApplyDefenseGrade(ctx, enrollment.ID, defense, rc.Principal.AccountID)
	if err != nil {
		return nil, err
	}
	result.DefenseGrade = defense
	result.Final = final
	s.logger.Info("defense grade derived", zap.String("enrollment_id", enrollment.ID), zap.Float64("defense_grade", *defense))
	return result, nil
}
