package service

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/cms-lvtn-2025/thesis-api/internal/authz"
	"github.com/cms-lvtn-2025/thesis-api/internal/models"
)

const testSemester = "2025A"

// newTxDB returns a sqlmock-backed DB. Fakes ignore the transaction handle,
// so only Begin/Commit/Rollback are expected on it.
func newTxDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return sqlx.NewDb(db, "sqlmock"), mock
}

func expectCommit(mock sqlmock.Sqlmock) {
	mock.ExpectBegin()
	mock.ExpectCommit()
}

func expectRollback(mock sqlmock.Sqlmock) {
	mock.ExpectBegin()
	mock.ExpectRollback()
}

func teacherCtx(profileID, major string, roles ...authz.Role) authz.RequestContext {
	return authz.RequestContext{
		Principal: authz.Principal{
			AccountID: "acc-" + profileID,
			ProfileID: profileID,
			Kind:      models.AccountTeacher,
			Email:     profileID + "@uni.edu",
			MajorCode: major,
			Roles:     authz.NewRoleSet(roles...),
		},
		SemesterCode: testSemester,
	}
}

func studentCtx(profileID string) authz.RequestContext {
	return authz.RequestContext{
		Principal: authz.Principal{
			AccountID: "acc-" + profileID,
			ProfileID: profileID,
			Kind:      models.AccountStudent,
			Email:     profileID + "@student.uni.edu",
			MajorCode: "SE",
		},
		SemesterCode: testSemester,
	}
}

type fakeTopicRepo struct {
	topics      map[string]*models.Topic
	transitions []models.TopicTransition
	lastFilter  models.TopicFilter
	findErr     error
	seq         int
}

func newFakeTopicRepo(topics ...models.Topic) *fakeTopicRepo {
	repo := &fakeTopicRepo{topics: map[string]*models.Topic{}}
	for i := range topics {
		t := topics[i]
		repo.topics[t.ID] = &t
	}
	return repo
}

func (f *fakeTopicRepo) Create(ctx context.Context, topic *models.Topic, actor string) error {
	f.seq++
	topic.ID = fmt.Sprintf("topic-new-%d", f.seq)
	cp := *topic
	f.topics[topic.ID] = &cp
	return nil
}

func (f *fakeTopicRepo) FindByID(ctx context.Context, id string) (*models.Topic, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	t, ok := f.topics[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *t
	return &cp, nil
}

func (f *fakeTopicRepo) FindForUpdate(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Topic, error) {
	return f.FindByID(ctx, id)
}

func (f *fakeTopicRepo) List(ctx context.Context, filter models.TopicFilter) ([]models.Topic, int, error) {
	f.lastFilter = filter
	out := []models.Topic{}
	for _, t := range f.topics {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, len(out), nil
}

// Transition mimics the guarded UPDATE: it only applies while the stored
// status still equals From.
func (f *fakeTopicRepo) Transition(ctx context.Context, exec sqlx.ExtContext, t models.TopicTransition) error {
	topic, ok := f.topics[t.TopicID]
	if !ok || topic.Status != t.From {
		return sql.ErrNoRows
	}
	topic.Status = t.To
	f.transitions = append(f.transitions, t)
	return nil
}

func (f *fakeTopicRepo) SetTeam(ctx context.Context, exec sqlx.ExtContext, topicID, teamID, actor string) error {
	topic, ok := f.topics[topicID]
	if !ok {
		return sql.ErrNoRows
	}
	topic.TeamID = &teamID
	return nil
}

type fakeEnrollmentRepo struct {
	enrollments map[string]*models.Enrollment
	teams       map[string]*models.Team
	createErr   error
	seq         int
}

func newFakeEnrollmentRepo(enrollments ...models.Enrollment) *fakeEnrollmentRepo {
	repo := &fakeEnrollmentRepo{enrollments: map[string]*models.Enrollment{}, teams: map[string]*models.Team{}}
	for i := range enrollments {
		e := enrollments[i]
		repo.enrollments[e.ID] = &e
	}
	return repo
}

func (f *fakeEnrollmentRepo) CreateTeam(ctx context.Context, exec sqlx.ExtContext, team *models.Team, actor string) ([]models.Enrollment, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	team.ID = "team-" + team.TopicID
	f.teams[team.TopicID] = team
	out := make([]models.Enrollment, 0, len(team.MemberStudentIDs))
	for _, studentID := range team.MemberStudentIDs {
		f.seq++
		e := models.Enrollment{ID: fmt.Sprintf("enr-new-%d", f.seq), TopicID: team.TopicID, StudentID: studentID, SemesterCode: team.SemesterCode}
		f.enrollments[e.ID] = &e
		out = append(out, e)
	}
	return out, nil
}

func (f *fakeEnrollmentRepo) FindTeamByTopic(ctx context.Context, topicID string) (*models.Team, error) {
	team, ok := f.teams[topicID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return team, nil
}

func (f *fakeEnrollmentRepo) FindTeamIDByStudent(ctx context.Context, studentID string) (string, error) {
	for _, team := range f.teams {
		for _, member := range team.MemberStudentIDs {
			if member == studentID {
				return team.ID, nil
			}
		}
	}
	return "", sql.ErrNoRows
}

func (f *fakeEnrollmentRepo) FindByStudent(ctx context.Context, studentID, semesterCode string) (*models.Enrollment, error) {
	for _, e := range f.enrollments {
		if e.StudentID == studentID && e.SemesterCode == semesterCode {
			cp := *e
			return &cp, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeEnrollmentRepo) ListByTopic(ctx context.Context, exec sqlx.ExtContext, topicID string) ([]models.Enrollment, error) {
	out := []models.Enrollment{}
	for _, e := range f.enrollments {
		if e.TopicID == topicID {
			out = append(out, *e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeEnrollmentRepo) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	e, ok := f.enrollments[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *e
	return &cp, nil
}

func (f *fakeEnrollmentRepo) FindForUpdate(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Enrollment, error) {
	return f.FindByID(ctx, id)
}

func (f *fakeEnrollmentRepo) SetMidterm(ctx context.Context, exec sqlx.ExtContext, ids []string, midtermID, actor string) error {
	for _, id := range ids {
		if e, ok := f.enrollments[id]; ok {
			m := midtermID
			e.MidtermID = &m
		}
	}
	return nil
}

func (f *fakeEnrollmentRepo) SetFinal(ctx context.Context, exec sqlx.ExtContext, enrollmentID, finalID, actor string) error {
	e, ok := f.enrollments[enrollmentID]
	if !ok {
		return sql.ErrNoRows
	}
	e.FinalID = &finalID
	return nil
}

type fakeStudentFinder struct {
	students map[string]models.Student
}

func (f *fakeStudentFinder) FindStudentsByIDs(ctx context.Context, ids []string) ([]models.Student, error) {
	out := []models.Student{}
	for _, id := range ids {
		if s, ok := f.students[id]; ok {
			out = append(out, s)
		}
	}
	return out, nil
}

type fakeGradeStore struct {
	midterms map[string]*models.Midterm
	finals   map[string]*models.Final
	votes    map[string]*models.GradeDefence
	seq      int
}

func newFakeGradeStore() *fakeGradeStore {
	return &fakeGradeStore{
		midterms: map[string]*models.Midterm{},
		finals:   map[string]*models.Final{},
		votes:    map[string]*models.GradeDefence{},
	}
}

func (f *fakeGradeStore) FindMidterm(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Midterm, error) {
	m, ok := f.midterms[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *m
	return &cp, nil
}

func (f *fakeGradeStore) SaveMidterm(ctx context.Context, exec sqlx.ExtContext, midterm *models.Midterm, actor string) error {
	if midterm.ID == "" {
		f.seq++
		midterm.ID = fmt.Sprintf("mid-%d", f.seq)
	}
	cp := *midterm
	f.midterms[midterm.ID] = &cp
	return nil
}

func (f *fakeGradeStore) FindFinal(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Final, error) {
	final, ok := f.finals[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *final
	return &cp, nil
}

func (f *fakeGradeStore) CreateFinal(ctx context.Context, exec sqlx.ExtContext, final *models.Final, actor string) error {
	f.seq++
	final.ID = fmt.Sprintf("fin-%d", f.seq)
	cp := *final
	f.finals[final.ID] = &cp
	return nil
}

func (f *fakeGradeStore) SetFinalComponent(ctx context.Context, exec sqlx.ExtContext, finalID string, component models.FinalComponent, value *float64, actor string) error {
	final, ok := f.finals[finalID]
	if !ok {
		return sql.ErrNoRows
	}
	switch component {
	case models.ComponentSupervisor:
		final.SupervisorGrade = value
	case models.ComponentReviewer:
		final.ReviewerGrade = value
	case models.ComponentDefense:
		final.DefenseGrade = value
	}
	return nil
}

func (f *fakeGradeStore) SetFinalDerived(ctx context.Context, exec sqlx.ExtContext, final *models.Final) error {
	stored, ok := f.finals[final.ID]
	if !ok {
		return sql.ErrNoRows
	}
	stored.FinalGrade = final.FinalGrade
	stored.Status = final.Status
	stored.CompletionDate = final.CompletionDate
	return nil
}

func (f *fakeGradeStore) SetFinalNotes(ctx context.Context, exec sqlx.ExtContext, finalID string, notes *string) error {
	final, ok := f.finals[finalID]
	if !ok {
		return sql.ErrNoRows
	}
	final.Notes = notes
	return nil
}

// UpsertVote touches only the named column, like the ON CONFLICT upsert.
func (f *fakeGradeStore) UpsertVote(ctx context.Context, enrollmentID string, column models.VoteColumn, value float64, actor string) (*models.GradeDefence, error) {
	row, ok := f.votes[enrollmentID]
	if !ok {
		row = &models.GradeDefence{ID: "gd-" + enrollmentID, EnrollmentID: enrollmentID}
		f.votes[enrollmentID] = row
	}
	v := value
	switch column {
	case models.VoteCouncil:
		row.Council = &v
	case models.VoteSecretary:
		row.Secretary = &v
	}
	cp := *row
	return &cp, nil
}

func (f *fakeGradeStore) FindGradeDefence(ctx context.Context, exec sqlx.ExtContext, enrollmentID string) (*models.GradeDefence, error) {
	row, ok := f.votes[enrollmentID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *row
	return &cp, nil
}

type fakeSeatLister struct {
	byTopic map[string][]models.Defence
}

func (f *fakeSeatLister) ListDefencesForTopic(ctx context.Context, topicID string) ([]models.Defence, error) {
	return f.byTopic[topicID], nil
}

type fakeTeacherFinder struct {
	teachers map[string]models.Teacher
}

func (f *fakeTeacherFinder) FindTeacherByID(ctx context.Context, id string) (*models.Teacher, error) {
	t, ok := f.teachers[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &t, nil
}

type fakeCouncilRepo struct {
	councils map[string]*models.Council
	defences map[string][]models.Defence
	filter   models.CouncilFilter
	locked   []string
	events   []string
	addErr   error
	seq      int
}

func newFakeCouncilRepo(councils ...models.Council) *fakeCouncilRepo {
	repo := &fakeCouncilRepo{councils: map[string]*models.Council{}, defences: map[string][]models.Defence{}}
	for i := range councils {
		c := councils[i]
		repo.councils[c.ID] = &c
	}
	return repo
}

func (f *fakeCouncilRepo) Create(ctx context.Context, exec sqlx.ExtContext, council *models.Council, defences []models.Defence, actor string) error {
	f.seq++
	council.ID = fmt.Sprintf("council-new-%d", f.seq)
	cp := *council
	f.councils[council.ID] = &cp
	for i := range defences {
		defences[i].CouncilID = council.ID
		defences[i].ID = fmt.Sprintf("def-%d-%d", f.seq, i)
	}
	f.defences[council.ID] = append([]models.Defence(nil), defences...)
	return nil
}

func (f *fakeCouncilRepo) FindByID(ctx context.Context, id string) (*models.Council, error) {
	c, ok := f.councils[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *c
	return &cp, nil
}

func (f *fakeCouncilRepo) LockByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Council, error) {
	f.locked = append(f.locked, id)
	f.events = append(f.events, "lock")
	return f.FindByID(ctx, id)
}

func (f *fakeCouncilRepo) List(ctx context.Context, filter models.CouncilFilter) ([]models.Council, error) {
	f.filter = filter
	out := []models.Council{}
	for _, c := range f.councils {
		out = append(out, *c)
	}
	return out, nil
}

func (f *fakeCouncilRepo) ListDefences(ctx context.Context, exec sqlx.ExtContext, councilID string) ([]models.Defence, error) {
	if exec != nil {
		f.events = append(f.events, "list-in-tx")
	}
	return f.defences[councilID], nil
}

func (f *fakeCouncilRepo) AddDefence(ctx context.Context, exec sqlx.ExtContext, defence *models.Defence, actor string) error {
	if f.addErr != nil {
		return f.addErr
	}
	f.seq++
	defence.ID = fmt.Sprintf("def-add-%d", f.seq)
	f.events = append(f.events, "insert")
	f.defences[defence.CouncilID] = append(f.defences[defence.CouncilID], *defence)
	return nil
}

func (f *fakeCouncilRepo) RemoveDefence(ctx context.Context, councilID, defenceID string) error {
	seats := f.defences[councilID]
	for i, d := range seats {
		if d.ID == defenceID {
			f.defences[councilID] = append(seats[:i], seats[i+1:]...)
			return nil
		}
	}
	return sql.ErrNoRows
}

type fakeScheduleRepo struct {
	schedules []models.CouncilSchedule
	createErr error
	seq       int
}

func (f *fakeScheduleRepo) ListByCouncil(ctx context.Context, exec sqlx.ExtContext, councilID string) ([]models.CouncilSchedule, error) {
	out := []models.CouncilSchedule{}
	for _, s := range f.schedules {
		if s.CouncilID == councilID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TimeStart.Before(out[j].TimeStart) })
	return out, nil
}

func (f *fakeScheduleRepo) FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.CouncilSchedule, error) {
	for _, s := range f.schedules {
		if s.ID == id {
			cp := s
			return &cp, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeScheduleRepo) FindByTopic(ctx context.Context, exec sqlx.ExtContext, topicID string) (*models.CouncilSchedule, error) {
	for _, s := range f.schedules {
		if s.TopicID == topicID {
			cp := s
			return &cp, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeScheduleRepo) ListForTeacher(ctx context.Context, teacherID, semesterCode string) ([]models.CouncilSchedule, error) {
	return f.schedules, nil
}

func (f *fakeScheduleRepo) Create(ctx context.Context, exec sqlx.ExtContext, schedule *models.CouncilSchedule, actor string) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.seq++
	schedule.ID = fmt.Sprintf("sched-new-%d", f.seq)
	f.schedules = append(f.schedules, *schedule)
	return nil
}

func (f *fakeScheduleRepo) Update(ctx context.Context, exec sqlx.ExtContext, schedule *models.CouncilSchedule, actor string) error {
	for i := range f.schedules {
		if f.schedules[i].ID == schedule.ID {
			f.schedules[i] = *schedule
			return nil
		}
	}
	return sql.ErrNoRows
}

func (f *fakeScheduleRepo) Delete(ctx context.Context, id string) error {
	for i := range f.schedules {
		if f.schedules[i].ID == id {
			f.schedules = append(f.schedules[:i], f.schedules[i+1:]...)
			return nil
		}
	}
	return sql.ErrNoRows
}

type fakeAttachmentRepo struct {
	items     map[string]*models.Attachment
	createErr error
}

func (f *fakeAttachmentRepo) Create(ctx context.Context, attachment *models.Attachment, actor string) error {
	if f.createErr != nil {
		return f.createErr
	}
	if f.items == nil {
		f.items = map[string]*models.Attachment{}
	}
	attachment.ID = fmt.Sprintf("att-%d", len(f.items)+1)
	cp := *attachment
	f.items[attachment.ID] = &cp
	return nil
}

func (f *fakeAttachmentRepo) FindByID(ctx context.Context, id string) (*models.Attachment, error) {
	a, ok := f.items[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *a
	return &cp, nil
}
