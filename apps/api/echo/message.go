package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/muziki/core/message"
	"github.com/trezcool/muziki/core/user"
)

type messageApi struct {
	deps ServerDeps
}

func registerMessageAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := messageApi{deps: deps}

	mg := g.Group("/messages", jwt)
	mg.GET("/contacts", api.contacts)
	mg.POST("", api.send)
	mg.GET("/:contactId", api.conversation)
	mg.PUT("/:contactId/read", api.markRead)
}

// contacts lists who the caller may message: a teacher sees their roster,
// a student sees their teacher.
func (api *messageApi) contacts(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.deps.UserSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	contacts, err := api.deps.MessageSvc.Contacts(ctx.Request().Context(), usr)
	if err != nil {
		return errors.Wrap(err, "querying contacts")
	}
	if contacts == nil {
		contacts = []user.User{}
	}
	return ctx.JSON(http.StatusOK, contacts)
}

func (api *messageApi) send(ctx echo.Context) error {
	sender, err := getContextUser(ctx, api.deps.UserSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var data message.NewMessage
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewMessage")
	}
	if err := data.Validate(api.deps.Validate); err != nil {
		return err
	}

	msg, err := api.deps.MessageSvc.Send(ctx.Request().Context(), sender, data)
	if err != nil {
		return errors.Wrap(err, "sending message")
	}
	return ctx.JSON(http.StatusCreated, msg)
}

func (api *messageApi) conversation(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.deps.UserSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	msgs, err := api.deps.MessageSvc.Conversation(ctx.Request().Context(), usr, ctx.Param("contactId"))
	if err != nil {
		return errors.Wrap(err, "querying conversation")
	}
	if msgs == nil {
		msgs = []message.Message{}
	}
	return ctx.JSON(http.StatusOK, msgs)
}

func (api *messageApi) markRead(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.deps.UserSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	if err := api.deps.MessageSvc.MarkRead(ctx.Request().Context(), usr, ctx.Param("contactId")); err != nil {
		return errors.Wrap(err, "marking conversation read")
	}
	return ctx.NoContent(http.StatusNoContent)
}
