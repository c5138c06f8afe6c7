package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/cms-lvtn-2025/thesis-api/internal/authz"
	"github.com/cms-lvtn-2025/thesis-api/internal/models"
	appErrors "github.com/cms-lvtn-2025/thesis-api/pkg/errors"
)

type topicSlotFinder interface {
	FindByTopic(ctx context.Context, exec sqlx.ExtContext, topicID string) (*models.CouncilSchedule, error)
}

type defenseSeatReader interface {
	FindByID(ctx context.Context, id string) (*models.Council, error)
	ListDefences(ctx context.Context, exec sqlx.ExtContext, councilID string) ([]models.Defence, error)
}

type defenseLookup struct {
	schedules topicSlotFinder
	councils  defenseSeatReader
}

// load returns nil when the topic has no slot yet.
func (l *defenseLookup) load(ctx context.Context, topic models.Topic) (*models.DefenseSlot, error) {
	schedule, err := l.schedules.FindByTopic(ctx, nil, topic.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, appErrors.Store(err, "failed to load defense slot")
	}
	council, err := l.councils.FindByID(ctx, schedule.CouncilID)
	if err != nil {
		return nil, lookupErr(err, "council")
	}
	members, err := l.councils.ListDefences(ctx, nil, council.ID)
	if err != nil {
		return nil, appErrors.Store(err, "failed to load council members")
	}
	if members == nil {
		members = []models.Defence{}
	}
	return &models.DefenseSlot{
		CouncilSchedule: *schedule,
		CouncilTitle:    council.Title,
		TopicTitle:      topic.Title,
		Members:         members,
	}, nil
}

// WithDefenseLookup lets topic reads carry the council slot and seats of the topic.
func (s *TopicService) WithDefenseLookup(schedules topicSlotFinder, councils defenseSeatReader) *TopicService {
	s.defense = &defenseLookup{schedules: schedules, councils: councils}
	return s
}

// MyDefense returns the defense slot of the calling student's topic in the active semester.
func (s *TopicService) MyDefense(ctx context.Context, rc authz.RequestContext) (*models.DefenseSlot, error) {
	if !rc.Principal.IsStudent() || rc.Principal.ProfileID == "" {
		return nil, forbidden("only students have a defense of their own")
	}
	if s.defense == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "no defense scheduled")
	}
	enrollment, err := s.teams.FindByStudent(ctx, rc.Principal.ProfileID, rc.SemesterCode)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "you are not enrolled on a topic this semester")
		}
		return nil, appErrors.Store(err, "failed to load enrollment")
	}
	topic, err := s.topics.FindByID(ctx, enrollment.TopicID)
	if err != nil {
		return nil, lookupErr(err, "topic")
	}
	slot, err := s.defense.load(ctx, *topic)
	if err != nil {
		return nil, err
	}
	if slot == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "no defense scheduled")
	}
	return slot, nil
}
