package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/muziki/core/assignment"
)

type assignmentApi struct {
	deps ServerDeps
}

func registerAssignmentAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := assignmentApi{deps: deps}

	ag := g.Group("/assignments", jwt)
	ag.GET("", api.query)
	ag.GET("/:id", api.retrieve)
	ag.POST("/:id/submissions", api.submit, studentMiddleware())

	tg := ag.Group("", teacherMiddleware())
	tg.POST("", api.create)
	tg.PUT("/:id", api.update)
	tg.DELETE("/:id", api.destroy)

	sg := g.Group("/submissions", jwt)
	sg.GET("", api.submissions, teacherMiddleware())
	sg.GET("/:id", api.retrieveSubmission)
	sg.POST("/:id/feedback", api.review, teacherMiddleware())

	g.GET("/feedback", api.feedback, jwt, studentMiddleware())
}

func (api *assignmentApi) create(ctx echo.Context) error {
	teacher, err := getContextUser(ctx, api.deps.UserSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var data assignment.NewAssignment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewAssignment")
	}
	if err := data.Validate(api.deps.Validate); err != nil {
		return err
	}

	detail, err := api.deps.AssignSvc.Create(ctx.Request().Context(), teacher, data)
	if err != nil {
		return errors.Wrap(err, "creating assignment")
	}
	return ctx.JSON(http.StatusCreated, detail)
}

func (api *assignmentApi) query(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.deps.UserSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	if usr.IsTeacher() {
		assignments, err := api.deps.AssignSvc.ForTeacher(ctx.Request().Context(), usr)
		if err != nil {
			return errors.Wrap(err, "querying assignments")
		}
		if assignments == nil {
			assignments = []assignment.Assignment{}
		}
		return ctx.JSON(http.StatusOK, assignments)
	}

	assignments, err := api.deps.AssignSvc.ForStudent(ctx.Request().Context(), usr)
	if err != nil {
		return errors.Wrap(err, "querying assignments")
	}
	if assignments == nil {
		assignments = []assignment.StudentAssignment{}
	}
	return ctx.JSON(http.StatusOK, assignments)
}

func (api *assignmentApi) retrieve(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.deps.UserSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	detail, err := api.deps.AssignSvc.Get(ctx.Request().Context(), usr, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting assignment")
	}
	return ctx.JSON(http.StatusOK, detail)
}

func (api *assignmentApi) update(ctx echo.Context) error {
	teacher, err := getContextUser(ctx, api.deps.UserSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var data assignment.UpdateAssignment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateAssignment")
	}
	if err := data.Validate(api.deps.Validate); err != nil {
		return err
	}

	a, err := api.deps.AssignSvc.Update(ctx.Request().Context(), teacher, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating assignment")
	}
	return ctx.JSON(http.StatusOK, a)
}

func (api *assignmentApi) destroy(ctx echo.Context) error {
	teacher, err := getContextUser(ctx, api.deps.UserSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	if err := api.deps.AssignSvc.Delete(ctx.Request().Context(), teacher, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting assignment")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// submit accepts a multipart upload of the student's recording or score.
func (api *assignmentApi) submit(ctx echo.Context) error {
	student, err := getContextUser(ctx, api.deps.UserSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	fileHdr, err := ctx.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, echo.Map{"error": "a file is required"})
	}
	data := assignment.NewSubmission{
		FileName: fileHdr.Filename,
		Notes:    ctx.FormValue("notes"),
	}
	if err := data.Validate(api.deps.Validate); err != nil {
		return err
	}

	file, err := fileHdr.Open()
	if err != nil {
		return errors.Wrap(err, "opening uploaded file")
	}
	defer file.Close()

	sub, err := api.deps.AssignSvc.Submit(ctx.Request().Context(), student, ctx.Param("id"), data, file)
	if err != nil {
		return errors.Wrap(err, "submitting assignment")
	}
	return ctx.JSON(http.StatusCreated, sub)
}

func (api *assignmentApi) submissions(ctx echo.Context) error {
	teacher, err := getContextUser(ctx, api.deps.UserSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	subs, err := api.deps.AssignSvc.Submissions(ctx.Request().Context(), teacher)
	if err != nil {
		return errors.Wrap(err, "querying submissions")
	}
	if subs == nil {
		subs = []assignment.Submission{}
	}
	return ctx.JSON(http.StatusOK, subs)
}

func (api *assignmentApi) retrieveSubmission(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.deps.UserSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	sub, fb, err := api.deps.AssignSvc.GetSubmission(ctx.Request().Context(), usr, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting submission")
	}
	if fb == nil {
		fb = []assignment.Feedback{}
	}
	return ctx.JSON(http.StatusOK, SubmissionResponse{Submission: sub, Feedback: fb})
}

func (api *assignmentApi) review(ctx echo.Context) error {
	teacher, err := getContextUser(ctx, api.deps.UserSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var data assignment.NewFeedback
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewFeedback")
	}
	if err := data.Validate(api.deps.Validate); err != nil {
		return err
	}

	fb, err := api.deps.AssignSvc.Review(ctx.Request().Context(), teacher, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "reviewing submission")
	}
	return ctx.JSON(http.StatusCreated, fb)
}

func (api *assignmentApi) feedback(ctx echo.Context) error {
	student, err := getContextUser(ctx, api.deps.UserSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	fb, err := api.deps.AssignSvc.FeedbackFor(ctx.Request().Context(), student)
	if err != nil {
		return errors.Wrap(err, "querying feedback")
	}
	if fb == nil {
		fb = []assignment.Feedback{}
	}
	return ctx.JSON(http.StatusOK, fb)
}

type SubmissionResponse struct {
	Submission assignment.Submission `json:"submission"`
	Feedback   []assignment.Feedback `json:"feedback"`
}
