package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/alama/core/draft"
)

type (
	draftApi struct {
		store    *draft.Store
		validate *validator.Validate
	}

	draftEntry struct {
		Marks *float64 `json:"marks" validate:"required,marks"`
	}
)

func registerDraftAPI(g *echo.Group, deps ServerDeps) {
	api := draftApi{
		store:    deps.Drafts,
		validate: deps.Validate,
	}

	dg := g.Group("/drafts/:teacher/:subject/:semester", draftScopeMiddleware())
	dg.GET("", api.retrieve)
	dg.DELETE("", api.clear)
	dg.PUT("/:enrollment", api.set)
}

// Handlers

func (api *draftApi) retrieve(ctx echo.Context) error {
	scope, err := getContextScope(ctx)
	if err != nil {
		return err
	}
	d, err := api.store.Restore(ctx.Request().Context(), scope)
	if err != nil {
		return errors.Wrap(err, "restoring drafts")
	}
	return ctx.JSON(http.StatusOK, d)
}

func (api *draftApi) set(ctx echo.Context) error {
	scope, err := getContextScope(ctx)
	if err != nil {
		return err
	}
	var data draftEntry
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to draftEntry")
	}
	if err = api.validate.Struct(data); err != nil {
		return err
	}

	// edits extend the drafts saved before a restart
	if _, err = api.store.Restore(ctx.Request().Context(), scope); err != nil {
		return errors.Wrap(err, "restoring drafts")
	}
	if err = api.store.Set(scope, ctx.Param("enrollment"), *data.Marks); err != nil {
		return err
	}
	return ctx.JSON(http.StatusAccepted, api.store.Get(scope))
}

func (api *draftApi) clear(ctx echo.Context) error {
	scope, err := getContextScope(ctx)
	if err != nil {
		return err
	}
	if err = api.store.Clear(ctx.Request().Context(), scope); err != nil {
		return errors.Wrap(err, "clearing drafts")
	}
	return ctx.NoContent(http.StatusNoContent)
}
