package echoapi

import (
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/clubhub/core/checkin"
	"github.com/trezcool/clubhub/core/event"
)

const (
	contextObjectKey  = "object"
	contextSessionKey = "session"
)

var (
	errEvtNotFoundInCtx     = errors.New("event object not found in echo.Context")
	errSessionNotFoundInCtx = errors.New("check-in session not found in echo.Context")
)

// eventMiddleware loads the event of the `:id` path param into the context.
func eventMiddleware(svc event.ServiceInterface) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			evt, err := svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
			if err != nil {
				if errors.Cause(err) == event.ErrNotFound {
					return errHttpNotFound
				}
				return errors.Wrap(err, "finding event by ID")
			}
			ctx.Set(contextObjectKey, evt)
			return next(ctx)
		}
	}
}

func getContextEvent(ctx echo.Context) (event.Event, error) {
	evt, ok := ctx.Get(contextObjectKey).(event.Event)
	if !ok {
		return event.Event{}, errEvtNotFoundInCtx
	}
	return evt, nil
}

// sessionMiddleware loads the check-in session of the `:sid` path param into the context.
func sessionMiddleware(registry *checkin.Registry) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			s, err := registry.Get(ctx.Param("sid"))
			if err != nil {
				return err
			}
			ctx.Set(contextSessionKey, s)
			return next(ctx)
		}
	}
}

func getContextSession(ctx echo.Context) (*checkin.Session, error) {
	s, ok := ctx.Get(contextSessionKey).(*checkin.Session)
	if !ok {
		return nil, errSessionNotFoundInCtx
	}
	return s, nil
}
