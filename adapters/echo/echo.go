// Package hxstreamecho provides Echo framework integration for hxstream.
//
// Mount the engine as a catch-all page handler:
//
//	e := echo.New()
//	hxstreamecho.Mount(e, engine)
//
// Or render pages only for requests no route handled:
//
//	e.Use(hxstreamecho.Middleware(engine))
//
// When a component reports not found, the request is answered by Echo's
// HTTPErrorHandler with echo.ErrNotFound, so custom 404 pages keep working.
package hxstreamecho

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pthm/hxstream"
)

// Option configures Mount and MountGroup.
type Option func(*options)

type options struct {
	path string
}

// WithPath sets the route prefix rendered by the engine. Defaults to "/".
func WithPath(path string) Option {
	return func(o *options) {
		o.path = path
	}
}

// Mount renders the document component for every GET under the prefix.
//
//	e := echo.New()
//	hxstreamecho.Mount(e, engine, hxstreamecho.WithPath("/app/"))
func Mount(e *echo.Echo, engine *hxstream.Engine, opts ...Option) {
	e.GET(routePath(opts), Handler(engine))
}

// MountGroup is Mount for a group, so pages share the group's middleware.
func MountGroup(g *echo.Group, engine *hxstream.Engine, opts ...Option) {
	g.GET(routePath(opts), Handler(engine))
}

func routePath(opts []Option) string {
	o := &options{path: "/"}
	for _, opt := range opts {
		opt(o)
	}
	return o.path + "*"
}

// Handler returns an echo.HandlerFunc rendering the document component.
func Handler(engine *hxstream.Engine) echo.HandlerFunc {
	return func(c echo.Context) error {
		return Render(c, engine)
	}
}

// Middleware renders the document component for GET requests that no route
// matched. Other errors pass through unchanged.
func Middleware(engine *hxstream.Engine) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			err := next(c)
			if err == nil || c.Request().Method != http.MethodGet || c.Response().Committed {
				return err
			}
			var he *echo.HTTPError
			if !errors.As(err, &he) || he.Code != http.StatusNotFound {
				return err
			}
			return Render(c, engine)
		}
	}
}

// Render streams the document component to the Echo response.
//
//	func page(c echo.Context) error {
//	    return hxstreamecho.Render(c, engine)
//	}
func Render(c echo.Context, engine *hxstream.Engine) error {
	notFound := false
	next := http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		notFound = true
	})

	err := engine.Render(c.Response(), c.Request(), next)
	switch {
	case errors.Is(err, hxstream.ErrComponentNotFound):
		return echo.NewHTTPError(http.StatusInternalServerError).SetInternal(err)
	case err != nil:
		return err
	case notFound:
		return echo.ErrNotFound
	}
	return nil
}
