package router

import (
	"github.com/gin-gonic/gin"

	"github.com/cms-lvtn-2025/thesis-api/internal/authz"
	"github.com/cms-lvtn-2025/thesis-api/internal/handler"
	"github.com/cms-lvtn-2025/thesis-api/internal/middleware"
)

// Handlers groups every HTTP handler mounted under the API prefix.
type Handlers struct {
	Auth        *handler.AuthHandler
	Reference   *handler.ReferenceHandler
	Semesters   *handler.SemesterHandler
	RoleSystems *handler.RoleSystemHandler
	Topics      *handler.TopicHandler
	Grading     *handler.GradingHandler
	Councils    *handler.CouncilHandler
	Attachments *handler.AttachmentHandler
	Exports     *handler.ExportHandler
}

// Guards are the authentication middlewares shared by protected routes.
type Guards struct {
	Tokens   middleware.TokenValidator
	Contexts middleware.ContextResolver
}

// Setup mounts the thesis API under prefix.
func Setup(r gin.IRouter, prefix string, h Handlers, g Guards) {
	api := r.Group(prefix)

	api.POST("/auth/login", h.Auth.Login)
	// Signed tokens authorize downloads on their own so links work outside the app.
	api.GET("/attachments/download", h.Attachments.Download)

	secured := api.Group("")
	secured.Use(middleware.JWT(g.Tokens), middleware.RequestContext(g.Contexts))

	secured.GET("/auth/me", h.Auth.Me)
	secured.GET("/semesters", h.Reference.Semesters)

	semesters := secured.Group("/semesters", middleware.RequirePermission(authz.PermManageRoles))
	semesters.POST("", h.Semesters.Create)
	semesters.PUT("/:code/activate", h.Semesters.Activate)
	semesters.DELETE("/:code", h.Semesters.Delete)
	semesters.POST("/:code/teachers/import", h.Semesters.ImportTeachers)
	semesters.POST("/:code/students/import", h.Semesters.ImportStudents)

	secured.GET("/majors", h.Reference.Majors)
	secured.GET("/teachers", h.Reference.Teachers)
	secured.GET("/students", h.Reference.Students)
	secured.GET("/me/permissions", h.Reference.Permissions)
	secured.GET("/me/schedules", middleware.RequireTeacher(), h.Councils.MySchedules)
	secured.GET("/me/defense", h.Topics.MyDefense)

	roles := secured.Group("/role-systems", middleware.RequirePermission(authz.PermManageRoles))
	roles.GET("", h.RoleSystems.List)
	roles.POST("", h.RoleSystems.Assign)
	roles.DELETE("/:id", h.RoleSystems.Deactivate)

	topics := secured.Group("/topics")
	topics.GET("", h.Topics.List)
	topics.POST("", middleware.RequireTeacher(), h.Topics.Create)
	topics.GET("/:id", h.Topics.Get)
	topics.POST("/:id/approve", middleware.RequirePermission(authz.PermApproveTopics), h.Topics.Approve)
	topics.POST("/:id/reject", middleware.RequirePermission(authz.PermApproveTopics), h.Topics.Reject)
	topics.POST("/:id/complete", middleware.RequireTeacher(), h.Topics.Complete)
	topics.POST("/:id/students", middleware.RequireTeacher(), h.Topics.AssignStudents)
	topics.PUT("/:id/midterm", middleware.RequirePermission(authz.PermGradeSupervisor), h.Topics.GradeMidterm)
	topics.POST("/:id/midterm/submission", h.Topics.SubmitMidterm)

	enrollments := secured.Group("/enrollments")
	enrollments.PUT("/:id/final/supervisor", middleware.RequirePermission(authz.PermGradeSupervisor), h.Grading.GradeSupervisor)
	enrollments.PUT("/:id/final/reviewer", middleware.RequirePermission(authz.PermGradeReviewer), h.Grading.GradeReviewer)
	enrollments.PUT("/:id/committee-grade", middleware.RequireTeacher(), h.Grading.CommitteeGrade)
	enrollments.GET("/:id/grades", h.Grading.Grades)

	councils := secured.Group("/councils")
	councils.GET("", h.Councils.List)
	councils.POST("", middleware.RequirePermission(authz.PermCreateCouncil), h.Councils.Create)
	councils.GET("/:id", h.Councils.Get)
	councils.POST("/:id/members", middleware.RequirePermission(authz.PermCreateCouncil), h.Councils.AddMember)
	councils.DELETE("/:id/members/:defenceId", middleware.RequirePermission(authz.PermCreateCouncil), h.Councils.RemoveMember)
	councils.GET("/:id/schedules", h.Councils.ListSchedules)
	councils.POST("/:id/schedules", middleware.RequirePermission(authz.PermScheduleCouncil), h.Councils.CreateSchedule)
	councils.GET("/:id/calendar.ics", h.Councils.Calendar)

	schedules := secured.Group("/schedules", middleware.RequirePermission(authz.PermScheduleCouncil))
	schedules.PUT("/:id", h.Councils.UpdateSchedule)
	schedules.DELETE("/:id", h.Councils.DeleteSchedule)

	secured.POST("/attachments", h.Attachments.Upload)
	secured.GET("/attachments/:id/url", h.Attachments.URL)

	secured.GET("/exports/grades", middleware.RequirePermission(authz.PermExportGrades), h.Exports.Grades)
}
