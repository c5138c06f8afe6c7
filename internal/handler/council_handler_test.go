package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cms-lvtn-2025/thesis-api/internal/authz"
	"github.com/cms-lvtn-2025/thesis-api/internal/models"
	"github.com/cms-lvtn-2025/thesis-api/internal/service"
	appErrors "github.com/cms-lvtn-2025/thesis-api/pkg/errors"
)

type councilServiceMock struct {
	created *service.CreateCouncilRequest
	removed [2]string
	err     error
}

func (m *councilServiceMock) Create(ctx context.Context, rc authz.RequestContext, req service.CreateCouncilRequest) (*models.CouncilDetail, error) {
	m.created = &req
	if m.err != nil {
		return nil, m.err
	}
	return &models.CouncilDetail{Council: models.Council{ID: "council-1", Title: req.Title}}, nil
}

func (m *councilServiceMock) List(ctx context.Context, rc authz.RequestContext) ([]models.Council, error) {
	return []models.Council{{ID: "council-1"}}, m.err
}

func (m *councilServiceMock) Get(ctx context.Context, rc authz.RequestContext, id string) (*models.CouncilDetail, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &models.CouncilDetail{Council: models.Council{ID: id}, Usable: true}, nil
}

func (m *councilServiceMock) AddMember(ctx context.Context, rc authz.RequestContext, councilID string, req service.CouncilMemberRequest) (*models.Defence, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &models.Defence{ID: "def-1", CouncilID: councilID, TeacherID: req.TeacherID, Position: models.DefencePosition(req.Position)}, nil
}

func (m *councilServiceMock) RemoveMember(ctx context.Context, rc authz.RequestContext, councilID, defenceID string) error {
	m.removed = [2]string{councilID, defenceID}
	return m.err
}

type scheduleServiceMock struct {
	councilID string
	created   *service.CreateScheduleRequest
	updatedID string
	deletedID string
	err       error
}

func (m *scheduleServiceMock) Create(ctx context.Context, rc authz.RequestContext, councilID string, req service.CreateScheduleRequest) (*models.CouncilSchedule, error) {
	m.councilID = councilID
	m.created = &req
	if m.err != nil {
		return nil, m.err
	}
	return &models.CouncilSchedule{ID: "slot-1", CouncilID: councilID, TopicID: req.TopicID, TimeStart: req.TimeStart, TimeEnd: req.TimeEnd}, nil
}

func (m *scheduleServiceMock) Update(ctx context.Context, rc authz.RequestContext, scheduleID string, req service.UpdateScheduleRequest) (*models.CouncilSchedule, error) {
	m.updatedID = scheduleID
	if m.err != nil {
		return nil, m.err
	}
	return &models.CouncilSchedule{ID: scheduleID}, nil
}

func (m *scheduleServiceMock) Delete(ctx context.Context, rc authz.RequestContext, scheduleID string) error {
	m.deletedID = scheduleID
	return m.err
}

func (m *scheduleServiceMock) ListByCouncil(ctx context.Context, rc authz.RequestContext, councilID string) ([]models.CouncilSchedule, error) {
	m.councilID = councilID
	return []models.CouncilSchedule{{ID: "slot-1", CouncilID: councilID}}, m.err
}

func (m *scheduleServiceMock) ListForTeacher(ctx context.Context, rc authz.RequestContext) ([]models.CouncilSchedule, error) {
	return nil, m.err
}

type calendarMock struct {
	err error
}

func (m *calendarMock) CouncilCalendar(ctx context.Context, rc authz.RequestContext, councilID string) (*service.ExportFile, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &service.ExportFile{Filename: "council-" + councilID + ".ics", ContentType: "text/calendar; charset=utf-8", Body: []byte("BEGIN:VCALENDAR\r\nEND:VCALENDAR\r\n")}, nil
}

func TestCouncilHandlerCreate(t *testing.T) {
	svc := &councilServiceMock{}
	h := NewCouncilHandler(svc, &scheduleServiceMock{}, &calendarMock{})
	rc := staffContext()
	body := `{"title":"SE council 1","major_code":"SE","members":[{"teacher_id":"t-1","position":"president"},{"teacher_id":"t-2","position":"secretary"}]}`
	c, w := newTestContext(http.MethodPost, "/councils", body, &rc)

	h.Create(c)

	require.Equal(t, http.StatusCreated, w.Code)
	require.NotNil(t, svc.created)
	assert.Len(t, svc.created.Members, 2)
	assert.Equal(t, "president", svc.created.Members[0].Position)
}

func TestCouncilHandlerRemoveMember(t *testing.T) {
	svc := &councilServiceMock{}
	h := NewCouncilHandler(svc, &scheduleServiceMock{}, &calendarMock{})
	rc := staffContext()
	c, w := newTestContext(http.MethodDelete, "/councils/council-1/members/def-2", "", &rc)
	c.Params = gin.Params{{Key: "id", Value: "council-1"}, {Key: "defenceId", Value: "def-2"}}

	h.RemoveMember(c)
	c.Writer.WriteHeaderNow()

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, [2]string{"council-1", "def-2"}, svc.removed)
}

func TestCouncilHandlerCreateSchedule(t *testing.T) {
	sched := &scheduleServiceMock{}
	h := NewCouncilHandler(&councilServiceMock{}, sched, &calendarMock{})
	rc := staffContext()
	body := `{"topic_id":"topic-1","time_start":"2025-06-01T08:00:00Z","time_end":"2025-06-01T09:00:00Z","location":"B1-201"}`
	c, w := newTestContext(http.MethodPost, "/councils/council-1/schedules", body, &rc)
	c.Params = gin.Params{{Key: "id", Value: "council-1"}}

	h.CreateSchedule(c)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "council-1", sched.councilID)
	require.NotNil(t, sched.created)
	assert.Equal(t, time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC), sched.created.TimeStart.UTC())
}

func TestCouncilHandlerCreateScheduleConflictCarriesDetails(t *testing.T) {
	conflict := appErrors.Clone(appErrors.ErrTimeConflict, "")
	conflict.Details = models.ScheduleConflict{ScheduleID: "slot-7", TopicID: "topic-7"}
	h := NewCouncilHandler(&councilServiceMock{}, &scheduleServiceMock{err: conflict}, &calendarMock{})
	rc := staffContext()
	body := `{"topic_id":"topic-1","time_start":"2025-06-01T08:00:00Z","time_end":"2025-06-01T09:00:00Z"}`
	c, w := newTestContext(http.MethodPost, "/councils/council-1/schedules", body, &rc)
	c.Params = gin.Params{{Key: "id", Value: "council-1"}}

	h.CreateSchedule(c)

	require.Equal(t, http.StatusConflict, w.Code)
	env := decodeEnvelope(t, w)
	require.NotNil(t, env.Error)
	assert.Equal(t, "TIME_CONFLICT", env.Error.Code)
	var details models.ScheduleConflict
	require.NoError(t, json.Unmarshal(env.Error.Details, &details))
	assert.Equal(t, "slot-7", details.ScheduleID)
}

func TestCouncilHandlerScheduleErrorsMapToStatus(t *testing.T) {
	cases := map[string]struct {
		err    error
		status int
	}{
		"major mismatch":    {appErrors.ErrMajorMismatch, http.StatusUnprocessableEntity},
		"invalid interval":  {appErrors.ErrInvalidInterval, http.StatusBadRequest},
		"already scheduled": {appErrors.ErrTopicAlreadyScheduled, http.StatusConflict},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			h := NewCouncilHandler(&councilServiceMock{}, &scheduleServiceMock{err: tc.err}, &calendarMock{})
			rc := staffContext()
			c, w := newTestContext(http.MethodPut, "/schedules/slot-1", `{"time_start":"2025-06-01T08:00:00Z","time_end":"2025-06-01T09:00:00Z"}`, &rc)
			c.Params = gin.Params{{Key: "id", Value: "slot-1"}}

			h.UpdateSchedule(c)

			assert.Equal(t, tc.status, w.Code)
		})
	}
}

func TestCouncilHandlerDeleteSchedule(t *testing.T) {
	sched := &scheduleServiceMock{}
	h := NewCouncilHandler(&councilServiceMock{}, sched, &calendarMock{})
	rc := staffContext()
	c, w := newTestContext(http.MethodDelete, "/schedules/slot-3", "", &rc)
	c.Params = gin.Params{{Key: "id", Value: "slot-3"}}

	h.DeleteSchedule(c)
	c.Writer.WriteHeaderNow()

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "slot-3", sched.deletedID)
}

func TestCouncilHandlerCalendar(t *testing.T) {
	h := NewCouncilHandler(&councilServiceMock{}, &scheduleServiceMock{}, &calendarMock{})
	rc := staffContext()
	c, w := newTestContext(http.MethodGet, "/councils/council-1/calendar.ics", "", &rc)
	c.Params = gin.Params{{Key: "id", Value: "council-1"}}

	h.Calendar(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/calendar")
	assert.Contains(t, w.Header().Get("Content-Disposition"), "council-council-1.ics")
	assert.Contains(t, w.Body.String(), "BEGIN:VCALENDAR")
}
