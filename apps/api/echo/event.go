package echoapi

import (
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/clubhub/core/checkin"
	"github.com/trezcool/clubhub/core/event"
)

type eventApi struct {
	svc      event.ServiceInterface
	registry *checkin.Registry
	validate *validator.Validate
	pages    pager
}

func registerEventAPI(
	g *echo.Group,
	svc event.ServiceInterface,
	registry *checkin.Registry,
	validate *validator.Validate,
	pages pager,
) {
	api := eventApi{
		svc:      svc,
		registry: registry,
		validate: validate,
		pages:    pages,
	}

	eg := g.Group("/events")
	eg.GET("", api.query)
	eg.POST("", api.create)

	// detail endpoints
	dg := eg.Group("/:id", eventMiddleware(api.svc))
	dg.GET("", api.retrieve)
	dg.POST("/rotate-code", api.rotateCode)
	dg.GET("/checkins", api.queryCheckIns)
	dg.POST("/checkin-qr", api.openCheckInQR)

	g.POST("/checkins", api.checkIn)
}

// Handlers

func (api *eventApi) create(ctx echo.Context) error {
	var data event.NewEvent
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewEvent")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	evt, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating event")
	}
	return ctx.JSON(http.StatusCreated, evt)
}

func (api *eventApi) query(ctx echo.Context) error {
	page, err := api.pages.Bind(ctx)
	if err != nil {
		return err
	}
	filter := new(event.QueryFilter)
	if err = ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, paginate([]event.Event{}, page))
	}
	filter.Clean()
	ordering := new(Ordering)
	ordering.Bind(ctx)

	events, err := api.svc.Query(ctx.Request().Context(), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying events")
	}
	return ctx.JSON(http.StatusOK, paginate(events, page))
}

func (api *eventApi) retrieve(ctx echo.Context) error {
	evt, err := getContextEvent(ctx)
	if err != nil {
		return errors.Wrap(err, "retrieving object from context")
	}
	return ctx.JSON(http.StatusOK, evt)
}

// rotateCode issues a new check-in code. The open check-in session of the event, if any,
// shows the old code and is closed.
func (api *eventApi) rotateCode(ctx echo.Context) error {
	evt, err := getContextEvent(ctx)
	if err != nil {
		return errors.Wrap(err, "retrieving object from context")
	}

	evt, err = api.svc.RotateCode(ctx.Request().Context(), evt.ID)
	if err != nil {
		return errors.Wrap(err, "rotating check-in code")
	}
	if api.registry.CloseEvent(evt.ID) {
		ctx.Logger().Info(fmt.Sprintf("check-in session of event %s closed after code rotation", evt.ID))
	}
	return ctx.JSON(http.StatusOK, evt)
}

func (api *eventApi) queryCheckIns(ctx echo.Context) error {
	evt, err := getContextEvent(ctx)
	if err != nil {
		return errors.Wrap(err, "retrieving object from context")
	}
	page, err := api.pages.Bind(ctx)
	if err != nil {
		return err
	}

	checkIns, err := api.svc.QueryCheckIns(ctx.Request().Context(), evt.ID)
	if err != nil {
		return errors.Wrap(err, "querying check-ins")
	}
	return ctx.JSON(http.StatusOK, paginate(checkIns, page))
}

func (api *eventApi) checkIn(ctx echo.Context) error {
	var data event.CheckInRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to CheckInRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	ci, err := api.svc.CheckIn(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "checking in")
	}
	return ctx.JSON(http.StatusCreated, ci)
}

// openCheckInQR opens a check-in QR session for the event, replacing its current one.
// Images render in the background: the returned snapshot is usually still "opening".
func (api *eventApi) openCheckInQR(ctx echo.Context) error {
	evt, err := getContextEvent(ctx)
	if err != nil {
		return errors.Wrap(err, "retrieving object from context")
	}
	s := api.registry.Open(evt.CheckInTarget())
	return ctx.JSON(http.StatusAccepted, s.Snapshot())
}
