package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/muziki/core/resource"
)

type resourceApi struct {
	deps ServerDeps
}

func registerResourceAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := resourceApi{deps: deps}

	rg := g.Group("/resources", jwt)
	rg.GET("/:id", api.retrieve)

	tg := rg.Group("", teacherMiddleware())
	tg.POST("", api.upload)
	tg.GET("", api.query)
	tg.DELETE("/:id", api.destroy)
}

// upload accepts a multipart file plus a title form value.
func (api *resourceApi) upload(ctx echo.Context) error {
	teacher, err := getContextUser(ctx, api.deps.UserSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	fileHdr, err := ctx.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, echo.Map{"error": "a file is required"})
	}
	data := resource.NewResource{
		Title:    ctx.FormValue("title"),
		FileName: fileHdr.Filename,
	}
	if err := data.Validate(api.deps.Validate); err != nil {
		return err
	}

	file, err := fileHdr.Open()
	if err != nil {
		return errors.Wrap(err, "opening uploaded file")
	}
	defer file.Close()

	res, err := api.deps.ResourceSvc.Upload(ctx.Request().Context(), teacher, data, file)
	if err != nil {
		return errors.Wrap(err, "uploading resource")
	}
	return ctx.JSON(http.StatusCreated, res)
}

func (api *resourceApi) query(ctx echo.Context) error {
	teacher, err := getContextUser(ctx, api.deps.UserSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	resources, err := api.deps.ResourceSvc.ForTeacher(ctx.Request().Context(), teacher)
	if err != nil {
		return errors.Wrap(err, "querying resources")
	}
	if resources == nil {
		resources = []resource.Resource{}
	}
	return ctx.JSON(http.StatusOK, resources)
}

func (api *resourceApi) retrieve(ctx echo.Context) error {
	res, err := api.deps.ResourceSvc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting resource")
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *resourceApi) destroy(ctx echo.Context) error {
	teacher, err := getContextUser(ctx, api.deps.UserSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	if err := api.deps.ResourceSvc.Delete(ctx.Request().Context(), teacher, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting resource")
	}
	return ctx.NoContent(http.StatusNoContent)
}
