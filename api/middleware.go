package api

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"citewatch.io/common"
)

const usernameContextKey = "citewatch_username"

// requestLogging logs every request's method, path, status, and duration
// through the shared HTTPFields shape once the handler chain completes.
func (s *Server) requestLogging(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)

		status := c.Response().Status
		if he, ok := err.(*echo.HTTPError); ok {
			status = he.Code
		}

		s.log.WithFields(common.HTTPFields(c.Request().Method, c.Path(), status, time.Since(start))).Info("handled request")
		return err
	}
}

// requireUser resolves the session cookie to a username and rejects the
// request with 403 if it's missing or doesn't match an active session,
// matching the reference server's _require_user decorator.
func (s *Server) requireUser(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		cookie, err := c.Cookie(authTokenCookie)
		if err != nil || cookie.Value == "" {
			return echo.NewHTTPError(http.StatusForbidden)
		}

		username, err := s.authSvc.UsernameOfToken(cookie.Value)
		if err != nil {
			return echo.NewHTTPError(http.StatusForbidden)
		}

		c.Set(usernameContextKey, username)
		return next(c)
	}
}

func requestUsername(c echo.Context) string {
	username, _ := c.Get(usernameContextKey).(string)
	return username
}
