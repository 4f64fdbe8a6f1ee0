package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/clubhub/core/checkin"
)

type checkInSessionApi struct {
	registry *checkin.Registry
}

func registerCheckInSessionAPI(g *echo.Group, registry *checkin.Registry) {
	api := checkInSessionApi{registry: registry}

	sg := g.Group("/checkin-sessions/:sid", sessionMiddleware(registry))
	sg.GET("", api.retrieve)
	sg.PUT("/environment", api.selectEnvironment)
	sg.GET("/variants", api.variants)
	sg.GET("/image", api.image)
	sg.DELETE("", api.close)
}

type (
	SelectEnvironmentRequest struct {
		Environment string `json:"environment"`
	}

	VariantResponse struct {
		Preset  string `json:"preset"`
		DataURL string `json:"data_url"`
	}
)

// envParam returns the `env` query param, defaulting to the active environment of `s`.
func envParam(ctx echo.Context, s *checkin.Session) (checkin.Environment, error) {
	if env := ctx.QueryParam("env"); env != "" {
		return checkin.ParseEnvironment(env)
	}
	return s.ActiveEnvironment(), nil
}

// Handlers

func (api *checkInSessionApi) retrieve(ctx echo.Context) error {
	s, err := getContextSession(ctx)
	if err != nil {
		return errors.Wrap(err, "retrieving session from context")
	}
	return ctx.JSON(http.StatusOK, s.Snapshot())
}

func (api *checkInSessionApi) selectEnvironment(ctx echo.Context) error {
	s, err := getContextSession(ctx)
	if err != nil {
		return errors.Wrap(err, "retrieving session from context")
	}
	var data SelectEnvironmentRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SelectEnvironmentRequest")
	}

	env, err := checkin.ParseEnvironment(data.Environment)
	if err != nil {
		return err
	}
	if err = s.SelectEnvironment(env); err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, s.Snapshot())
}

func (api *checkInSessionApi) variants(ctx echo.Context) error {
	s, err := getContextSession(ctx)
	if err != nil {
		return errors.Wrap(err, "retrieving session from context")
	}
	env, err := envParam(ctx, s)
	if err != nil {
		return err
	}

	images := s.Variants(env)
	res := make([]VariantResponse, 0, len(images))
	for _, img := range images {
		res = append(res, VariantResponse{Preset: img.Preset, DataURL: img.DataURL()})
	}
	return ctx.JSON(http.StatusOK, res)
}

// image downloads the displayed variant.
func (api *checkInSessionApi) image(ctx echo.Context) error {
	s, err := getContextSession(ctx)
	if err != nil {
		return errors.Wrap(err, "retrieving session from context")
	}
	env, err := envParam(ctx, s)
	if err != nil {
		return err
	}

	img, name, ok := s.CurrentImage(env)
	if !ok {
		return errHttpNoImage
	}
	ctx.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="`+name+`"`)
	return ctx.Blob(http.StatusOK, "image/png", img.PNG)
}

func (api *checkInSessionApi) close(ctx echo.Context) error {
	if err := api.registry.Close(ctx.Param("sid")); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}
