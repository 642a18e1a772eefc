package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/muziki/core/practice"
)

type practiceApi struct {
	deps ServerDeps
}

func registerPracticeAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := practiceApi{deps: deps}

	pg := g.Group("/practice", jwt)
	pg.POST("", api.log, studentMiddleware())
	pg.GET("", api.entries, studentMiddleware())
	pg.GET("/stats", api.stats, studentMiddleware())

	// teachers see the practice history of students on their roster
	tg := g.Group("/students/:id/practice", jwt, teacherMiddleware())
	tg.GET("", api.studentEntries)
	tg.GET("/stats", api.studentStats)
}

func (api *practiceApi) log(ctx echo.Context) error {
	student, err := getContextUser(ctx, api.deps.UserSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var data practice.NewEntry
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewEntry")
	}
	if err := data.Validate(api.deps.Validate); err != nil {
		return err
	}

	entry, err := api.deps.PracticeSvc.Log(ctx.Request().Context(), student, data)
	if err != nil {
		return errors.Wrap(err, "logging practice")
	}
	return ctx.JSON(http.StatusCreated, entry)
}

func (api *practiceApi) entries(ctx echo.Context) error {
	student, err := getContextUser(ctx, api.deps.UserSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	return api.renderEntries(ctx, student.ID)
}

func (api *practiceApi) stats(ctx echo.Context) error {
	student, err := getContextUser(ctx, api.deps.UserSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	return api.renderStats(ctx, student.ID)
}

func (api *practiceApi) studentEntries(ctx echo.Context) error {
	studentID, err := api.checkRoster(ctx)
	if err != nil {
		return err
	}
	return api.renderEntries(ctx, studentID)
}

func (api *practiceApi) studentStats(ctx echo.Context) error {
	studentID, err := api.checkRoster(ctx)
	if err != nil {
		return err
	}
	return api.renderStats(ctx, studentID)
}

// checkRoster ensures the requested student belongs to the calling teacher.
func (api *practiceApi) checkRoster(ctx echo.Context) (string, error) {
	teacher, err := getContextUser(ctx, api.deps.UserSvc)
	if err != nil {
		return "", errors.Wrap(err, "getting context user")
	}
	student, err := api.deps.UserSvc.GetStudent(ctx.Request().Context(), teacher, ctx.Param("id"))
	if err != nil {
		return "", errors.Wrap(err, "getting student")
	}
	return student.ID, nil
}

func (api *practiceApi) renderEntries(ctx echo.Context, studentID string) error {
	entries, err := api.deps.PracticeSvc.Entries(ctx.Request().Context(), studentID)
	if err != nil {
		return errors.Wrap(err, "querying practice entries")
	}
	if entries == nil {
		entries = []practice.Entry{}
	}
	return ctx.JSON(http.StatusOK, entries)
}

func (api *practiceApi) renderStats(ctx echo.Context, studentID string) error {
	stats, err := api.deps.PracticeSvc.Stats(ctx.Request().Context(), studentID)
	if err != nil {
		return errors.Wrap(err, "computing practice stats")
	}
	return ctx.JSON(http.StatusOK, stats)
}
