package echoapi

import (
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/alama/core"
	"github.com/trezcool/alama/core/draft"
)

const draftScopeKey = "draftScope"

var errScopeNotFoundInCtx = errors.New("draft scope not found in echo.Context")

// draftScopeMiddleware reads the draft scope from the :teacher, :subject and :semester path params.
func draftScopeMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			scope := draft.Scope{
				TeacherID:  core.CleanString(ctx.Param("teacher")),
				SubjectID:  core.CleanString(ctx.Param("subject")),
				SemesterID: core.CleanString(ctx.Param("semester")),
			}
			if err := scope.Validate(); err != nil {
				return err
			}
			ctx.Set(draftScopeKey, scope)
			return next(ctx)
		}
	}
}

func getContextScope(ctx echo.Context) (draft.Scope, error) {
	scope, ok := ctx.Get(draftScopeKey).(draft.Scope)
	if !ok {
		return draft.Scope{}, errScopeNotFoundInCtx
	}
	return scope, nil
}
