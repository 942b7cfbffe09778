package http

import "github.com/labstack/echo/v4"

// Handler registers a group of routes, e.g. the residual value API, on the
// shared Echo instance built by NewServer.
type Handler interface {
	RegisterRoutes(e *echo.Echo)
}
