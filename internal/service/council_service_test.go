package service

import (
	"context"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cms-lvtn-2025/thesis-api/internal/authz"
	"github.com/cms-lvtn-2025/thesis-api/internal/models"
	appErrors "github.com/cms-lvtn-2025/thesis-api/pkg/errors"
)

func newCouncilFixture(t *testing.T, db *sqlx.DB, councils ...models.Council) (*CouncilService, *fakeCouncilRepo, *fakeScheduleRepo) {
	t.Helper()
	repo := newFakeCouncilRepo(councils...)
	schedules := &fakeScheduleRepo{}
	teachers := &fakeTeacherFinder{teachers: map[string]models.Teacher{
		"t-chair": {ID: "t-chair", MajorCode: "SE", SemesterCode: testSemester},
		"t-sec":   {ID: "t-sec", MajorCode: "SE", SemesterCode: testSemester},
		"t-mem":   {ID: "t-mem", MajorCode: "SE", SemesterCode: testSemester},
		"t-old":   {ID: "t-old", MajorCode: "SE", SemesterCode: "2024B"},
	}}
	return NewCouncilService(repo, schedules, teachers, db, nil, zap.NewNop()), repo, schedules
}

var departmentSE = teacherCtx("t-dept", "SE", authz.RoleDepartmentLecturer)

func TestCouncilCreateWithChairAndSecretaryIsUsable(t *testing.T) {
	db, mock := newTxDB(t)
	svc, repo, _ := newCouncilFixture(t, db)
	expectCommit(mock)

	detail, err := svc.Create(context.Background(), departmentSE, CreateCouncilRequest{
		Title: "SE council A",
		Members: []CouncilMemberRequest{
			{TeacherID: "t-chair", Position: "chairman"},
			{TeacherID: "t-sec", Position: "secretary"},
			{TeacherID: "t-mem", Position: "member"},
		},
	})
	require.NoError(t, err)
	assert.True(t, detail.Usable)
	assert.Equal(t, "SE", detail.MajorCode)
	assert.Equal(t, testSemester, detail.SemesterCode)
	assert.Len(t, repo.defences[detail.ID], 3)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCouncilCreateRejectsDuplicateSeats(t *testing.T) {
	db, _ := newTxDB(t)
	svc, _, _ := newCouncilFixture(t, db)

	_, err := svc.Create(context.Background(), departmentSE, CreateCouncilRequest{
		Title: "x",
		Members: []CouncilMemberRequest{
			{TeacherID: "t-chair", Position: "president"},
			{TeacherID: "t-sec", Position: "chairman"},
		},
	})
	assert.ErrorIs(t, err, appErrors.ErrConflict)

	_, err = svc.Create(context.Background(), departmentSE, CreateCouncilRequest{
		Title: "x",
		Members: []CouncilMemberRequest{
			{TeacherID: "t-chair", Position: "president"},
			{TeacherID: "t-chair", Position: "secretary"},
		},
	})
	assert.ErrorIs(t, err, appErrors.ErrConflict)

	_, err = svc.Create(context.Background(), departmentSE, CreateCouncilRequest{
		Title:   "x",
		Members: []CouncilMemberRequest{{TeacherID: "t-old", Position: "member"}},
	})
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = svc.Create(context.Background(), departmentSE, CreateCouncilRequest{
		Title:   "x",
		Members: []CouncilMemberRequest{{TeacherID: "t-mem", Position: "judge"}},
	})
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestCouncilCreateRequiresManagementRole(t *testing.T) {
	db, _ := newTxDB(t)
	svc, _, _ := newCouncilFixture(t, db)

	_, err := svc.Create(context.Background(), teacherCtx("t-sup", "SE", authz.RoleSupervisorLecturer), CreateCouncilRequest{Title: "x"})
	assert.ErrorIs(t, err, appErrors.ErrForbidden)

	_, err = svc.Create(context.Background(), departmentSE, CreateCouncilRequest{Title: "x", MajorCode: "AI"})
	assert.ErrorIs(t, err, appErrors.ErrForbidden)
}

func TestCouncilListScopes(t *testing.T) {
	db, _ := newTxDB(t)
	svc, repo, _ := newCouncilFixture(t, db)
	ctx := context.Background()

	_, err := svc.List(ctx, teacherCtx("t-staff", "", authz.RoleAcademicAffairsStaff))
	require.NoError(t, err)
	assert.Equal(t, models.CouncilFilter{SemesterCode: testSemester}, repo.filter)

	_, err = svc.List(ctx, departmentSE)
	require.NoError(t, err)
	assert.Equal(t, "SE", repo.filter.MajorCode)

	_, err = svc.List(ctx, teacherCtx("t-mem", "SE"))
	require.NoError(t, err)
	assert.Equal(t, "t-mem", repo.filter.TeacherID)

	_, err = svc.List(ctx, studentCtx("stu-1"))
	assert.ErrorIs(t, err, appErrors.ErrForbidden)
}

func TestCouncilMembersAddAndRemove(t *testing.T) {
	db, mock := newTxDB(t)
	council := models.Council{ID: "council-1", Title: "A", MajorCode: "SE", SemesterCode: testSemester}
	svc, repo, _ := newCouncilFixture(t, db, council)
	repo.defences["council-1"] = []models.Defence{{ID: "d-1", CouncilID: "council-1", TeacherID: "t-chair", Position: models.PositionPresident}}
	ctx := context.Background()

	detail, err := svc.Get(ctx, departmentSE, "council-1")
	require.NoError(t, err)
	assert.False(t, detail.Usable)

	expectRollback(mock)
	_, err = svc.AddMember(ctx, departmentSE, "council-1", CouncilMemberRequest{TeacherID: "t-sec", Position: "chairman"})
	assert.ErrorIs(t, err, appErrors.ErrConflict)

	expectCommit(mock)
	seat, err := svc.AddMember(ctx, departmentSE, "council-1", CouncilMemberRequest{TeacherID: "t-sec", Position: "secretary"})
	require.NoError(t, err)
	assert.Equal(t, "council-1", seat.CouncilID)

	detail, err = svc.Get(ctx, departmentSE, "council-1")
	require.NoError(t, err)
	assert.True(t, detail.Usable)

	require.NoError(t, svc.RemoveMember(ctx, departmentSE, "council-1", seat.ID))
	err = svc.RemoveMember(ctx, departmentSE, "council-1", "missing")
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestCouncilGetHiddenFromUnseatedTeacher(t *testing.T) {
	db, _ := newTxDB(t)
	council := models.Council{ID: "council-1", Title: "A", MajorCode: "SE", SemesterCode: testSemester}
	svc, repo, _ := newCouncilFixture(t, db, council)
	repo.defences["council-1"] = []models.Defence{{ID: "d-1", TeacherID: "t-chair", Position: models.PositionPresident}}

	_, err := svc.Get(context.Background(), teacherCtx("t-chair", "SE"), "council-1")
	assert.NoError(t, err)
	_, err = svc.Get(context.Background(), teacherCtx("t-other", "SE"), "council-1")
	assert.ErrorIs(t, err, appErrors.ErrForbidden)
}

func TestCouncilAddMemberReadsSeatsUnderCouncilLock(t *testing.T) {
	db, mock := newTxDB(t)
	council := models.Council{ID: "council-1", Title: "A", MajorCode: "SE", SemesterCode: testSemester}
	svc, repo, _ := newCouncilFixture(t, db, council)
	ctx := context.Background()

	expectCommit(mock)
	_, err := svc.AddMember(ctx, departmentSE, "council-1", CouncilMemberRequest{TeacherID: "t-chair", Position: "chairman"})
	require.NoError(t, err)
	assert.Equal(t, []string{"lock", "list-in-tx", "insert"}, repo.events)
	assert.Equal(t, []string{"council-1"}, repo.locked)

	// A second chair sees the first one because both reads happen under the lock.
	repo.events = nil
	expectRollback(mock)
	_, err = svc.AddMember(ctx, departmentSE, "council-1", CouncilMemberRequest{TeacherID: "t-mem", Position: "president"})
	assert.ErrorIs(t, err, appErrors.ErrConflict)
	assert.Equal(t, []string{"lock", "list-in-tx"}, repo.events)
	assert.Len(t, repo.defences["council-1"], 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCouncilAddMemberMapsSeatIndexViolation(t *testing.T) {
	db, mock := newTxDB(t)
	council := models.Council{ID: "council-1", Title: "A", MajorCode: "SE", SemesterCode: testSemester}
	svc, repo, _ := newCouncilFixture(t, db, council)
	repo.addErr = &pq.Error{Code: "23505", Constraint: "defences_one_secretary"}

	expectRollback(mock)
	_, err := svc.AddMember(context.Background(), departmentSE, "council-1", CouncilMemberRequest{TeacherID: "t-sec", Position: "secretary"})
	assert.ErrorIs(t, err, appErrors.ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}
