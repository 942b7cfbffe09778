package api

import (
	"context"
	"errors"

	"github.com/labstack/echo/v4"

	"Shootdown/internal/domain/models"
	"Shootdown/internal/service/ratelimit"
	"Shootdown/internal/usecase"
	xhttp "Shootdown/pkg/http"
	xlogger "Shootdown/pkg/logger"
)

const (
	msgMissingDate = "Missing required parameter 'date' (format: YYYYMMDD)"
	msgInvalidDate = "Invalid parameter 'date' (format: YYYYMMDD)"
	msgFailed      = "Failed to process residual value data"
)

type viewService interface {
	View(ctx context.Context, date string) (*models.View, error)
	DateOptions(ctx context.Context, limit int) (*models.DateOptions, error)
	Health(ctx context.Context) error
}

// ResidualValueHandler serves the residual value chart data.
type ResidualValueHandler struct {
	logger     *xlogger.Logger
	uc         viewService
	limiter    *ratelimit.Limiter
	datesLimit int
}

func NewResidualValueHandler(logger *xlogger.Logger, uc viewService, limiter *ratelimit.Limiter, datesLimit int) *ResidualValueHandler {
	return &ResidualValueHandler{logger: logger, uc: uc, limiter: limiter, datesLimit: datesLimit}
}

func (h *ResidualValueHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api/residual_value", h.rateLimit)
	g.GET("", h.ResidualValue)
	g.GET("/", h.ResidualValue)
	g.GET("/dates", h.Dates)
	e.GET("/healthz", h.Health)
}

// ResidualValue returns the view for ?date=YYYYMMDD as a bare JSON object.
func (h *ResidualValueHandler) ResidualValue(c echo.Context) error {
	if c.QueryParam("date") == "" {
		return xhttp.AppErrorResponse(c, xhttp.FieldError("date", msgMissingDate))
	}
	req := &models.ResidualValueRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	v, err := h.uc.View(c.Request().Context(), req.Date)
	if err != nil {
		return xhttp.AppErrorResponse(c, h.mapError(req.Date, err))
	}
	return xhttp.RawResponse(c, v)
}

// Dates lists recent trading dates for the date picker.
func (h *ResidualValueHandler) Dates(c echo.Context) error {
	req := &models.DateOptionsRequest{Limit: h.datesLimit}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	opts, err := h.uc.DateOptions(c.Request().Context(), req.Limit)
	if err != nil {
		h.logger.Error("date options usecase error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.InternalError(msgFailed).WithError(err))
	}
	return xhttp.RawResponse(c, opts)
}

func (h *ResidualValueHandler) Health(c echo.Context) error {
	if err := h.uc.Health(c.Request().Context()); err != nil {
		h.logger.Warn("health check failed", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.ServiceUnavailableError("source unavailable").WithError(err))
	}
	return xhttp.SuccessResponse(c, map[string]string{"status": "ok"})
}

func (h *ResidualValueHandler) mapError(date string, err error) *xhttp.AppError {
	switch {
	case errors.Is(err, usecase.ErrInvalidDate):
		return xhttp.FieldError("date", msgInvalidDate).WithError(err)
	case errors.Is(err, usecase.ErrNoData):
		return xhttp.NotFoundErrorf("no residual value data for date %s", date).WithError(err)
	default:
		h.logger.Error("residual value usecase error", xlogger.String("date", date), xlogger.Error(err))
		return xhttp.InternalError(msgFailed).WithError(err)
	}
}

func (h *ResidualValueHandler) rateLimit(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if h.limiter != nil && !h.limiter.Allow(c.RealIP()) {
			c.Response().Header().Set("Retry-After", "1")
			return xhttp.AppErrorResponse(c, xhttp.TooManyRequestsError("rate limit exceeded"))
		}
		return next(c)
	}
}

var _ xhttp.Handler = (*ResidualValueHandler)(nil)
