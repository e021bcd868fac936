package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/alama/core"
	"github.com/trezcool/alama/core/draft"
	"github.com/trezcool/alama/core/gradebook"
	"github.com/trezcool/alama/core/grading"
)

type (
	gradebookApi struct {
		svc      *gradebook.Service
		drafts   *draft.Store
		validate *validator.Validate
		logger   core.Logger
		conf     *core.Config
	}

	projectionQuery struct {
		CurrentCGPA    float64 `json:"current_cgpa" validate:"gte=0,lte=4"`
		CurrentCredits int     `json:"current_credits" validate:"gte=0"`
		TargetCGPA     float64 `json:"target_cgpa" validate:"gte=0,lte=4"`
		FutureCredits  int     `json:"future_credits" validate:"gte=0"`
	}

	projectionResponse struct {
		grading.Projection
		Standing grading.Standing `json:"standing"`
	}
)

func registerGradebookAPI(g *echo.Group, deps ServerDeps) {
	api := gradebookApi{
		svc:      deps.GradebookSvc,
		drafts:   deps.Drafts,
		validate: deps.Validate,
		logger:   deps.Logger,
		conf:     deps.Conf,
	}

	g.GET("/grade-mappings", api.gradeMappings)
	g.GET("/grade-options", api.gradeOptions)
	g.GET("/projection", api.projection)
	g.GET("/at-risk", api.atRisk)

	sg := g.Group("/students/:id")
	sg.GET("/transcript", api.transcript)
	sg.GET("/insights", api.insights)
	sg.POST("/simulate", api.simulate)

	cg := g.Group("/subjects/:subject/semesters/:semester")
	cg.GET("/report", api.report)
	cg.PUT("/grades", api.commitGrades)
}

// Handlers

func (api *gradebookApi) gradeMappings(ctx echo.Context) error {
	scale, err := api.svc.GradeScale(ctx.Request().Context())
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, scale)
}

func (api *gradebookApi) gradeOptions(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, grading.GradeOptions())
}

// projection answers "what GPA do I need next?" for any figures, defaulting
// the target and the upcoming credits to the configured ones.
func (api *gradebookApi) projection(ctx echo.Context) error {
	q := projectionQuery{
		TargetCGPA:    api.conf.Grading.TargetCGPA,
		FutureCredits: api.conf.Grading.FutureCredits,
	}
	err := echo.QueryParamsBinder(ctx).
		MustFloat64("current_cgpa", &q.CurrentCGPA).
		MustInt("current_credits", &q.CurrentCredits).
		Float64("target_cgpa", &q.TargetCGPA).
		Int("future_credits", &q.FutureCredits).
		BindError()
	if err != nil {
		return err
	}
	if err = api.validate.Struct(q); err != nil {
		return err
	}

	return ctx.JSON(http.StatusOK, projectionResponse{
		Projection: grading.ProjectTarget(q.CurrentCGPA, q.CurrentCredits, q.TargetCGPA, q.FutureCredits),
		Standing:   grading.Classify(q.CurrentCGPA),
	})
}

func (api *gradebookApi) atRisk(ctx echo.Context) error {
	students, err := api.svc.AtRisk(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "listing at-risk students")
	}
	return ctx.JSON(http.StatusOK, students)
}

func (api *gradebookApi) transcript(ctx echo.Context) error {
	tr, err := api.svc.Transcript(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, tr)
}

func (api *gradebookApi) insights(ctx echo.Context) error {
	ov, err := api.svc.Overview(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, ov)
}

func (api *gradebookApi) simulate(ctx echo.Context) error {
	var data gradebook.Simulation
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Simulation")
	}
	res, err := api.svc.Simulate(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, res)
}

// report lists the marks of a subject; ?ordering=-marks,student_name
func (api *gradebookApi) report(ctx echo.Context) error {
	var ord Ordering
	if err := ord.Bind(ctx, gradebook.ReportOrderings...); err != nil {
		return err
	}

	rep, err := api.svc.SubjectReport(ctx.Request().Context(), ctx.Param("subject"), ctx.Param("semester"), ord.Orderings...)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, rep)
}

// commitGrades saves marks; with ?teacher_id= the teacher's drafts of the subject are dropped.
func (api *gradebookApi) commitGrades(ctx echo.Context) error {
	var data gradebook.CommitGrades
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to CommitGrades")
	}

	rctx := ctx.Request().Context()
	subjectID, semesterID := ctx.Param("subject"), ctx.Param("semester")
	grades, err := api.svc.CommitGrades(rctx, subjectID, semesterID, data)
	if err != nil {
		return err
	}

	if teacherID := core.CleanString(ctx.QueryParam("teacher_id")); teacherID != "" {
		scope := draft.Scope{TeacherID: teacherID, SubjectID: subjectID, SemesterID: semesterID}
		if err = api.drafts.Clear(rctx, scope); err != nil {
			api.logger.Warn("clearing drafts after commit: "+err.Error(), err)
		}
	}
	return ctx.JSON(http.StatusOK, grades)
}
