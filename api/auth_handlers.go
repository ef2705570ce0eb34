package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"citewatch.io/auth"
)

type credentialsPayload struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// handleRegister implements POST /rest/user/register. The whitelist check
// intentionally returns a generic 500 rather than 403/404: the reference
// server treats a whitelist miss as indistinguishable from a server error,
// so an attacker enumerating usernames learns nothing from the status code.
func (s *Server) handleRegister(c echo.Context) error {
	var payload credentialsPayload
	if err := c.Bind(&payload); err != nil || payload.Username == "" || payload.Password == "" {
		return echo.NewHTTPError(http.StatusBadRequest)
	}

	if !s.authCfg.IsWhitelisted(payload.Username) {
		return echo.NewHTTPError(http.StatusInternalServerError)
	}
	if !s.rateLimit.Allow(c.RealIP()) {
		return echo.NewHTTPError(http.StatusTooManyRequests)
	}

	if err := s.authSvc.Register(payload.Username, payload.Password); err != nil {
		return authError(err)
	}

	token, err := s.authSvc.Login(payload.Username, payload.Password, c.RealIP())
	if err != nil {
		return authError(err)
	}

	s.setAuthCookie(c, token)
	return c.JSON(http.StatusOK, true)
}

// handleLogin implements POST /rest/user/login.
func (s *Server) handleLogin(c echo.Context) error {
	var payload credentialsPayload
	if err := c.Bind(&payload); err != nil || payload.Username == "" || payload.Password == "" {
		return echo.NewHTTPError(http.StatusBadRequest)
	}

	if !s.rateLimit.Allow(c.RealIP()) {
		return echo.NewHTTPError(http.StatusTooManyRequests)
	}

	token, err := s.authSvc.Login(payload.Username, payload.Password, c.RealIP())
	if err != nil {
		return authError(err)
	}

	s.setAuthCookie(c, token)
	return c.JSON(http.StatusOK, true)
}

// handleLogout implements POST /rest/user/logout.
func (s *Server) handleLogout(c echo.Context) error {
	username := requestUsername(c)
	if err := s.authSvc.Logout(username); err != nil {
		return authError(err)
	}
	s.clearAuthCookie(c)
	return c.JSON(http.StatusOK, true)
}

// handleDelete implements POST /rest/user/delete.
func (s *Server) handleDelete(c echo.Context) error {
	username := requestUsername(c)

	var payload struct {
		Password string `json:"password"`
	}
	if err := c.Bind(&payload); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest)
	}

	if err := s.authSvc.Delete(username, payload.Password); err != nil {
		return authError(err)
	}
	s.clearAuthCookie(c)
	return c.JSON(http.StatusOK, true)
}

// handleUpdatePassword implements POST /rest/user/update-password.
func (s *Server) handleUpdatePassword(c echo.Context) error {
	username := requestUsername(c)

	var payload struct {
		OldPassword string `json:"old_password"`
		NewPassword string `json:"new_password"`
	}
	if err := c.Bind(&payload); err != nil || payload.OldPassword == "" || payload.NewPassword == "" {
		return echo.NewHTTPError(http.StatusBadRequest)
	}

	if err := s.authSvc.ChangePassword(username, payload.OldPassword, payload.NewPassword); err != nil {
		return authError(err)
	}
	return c.JSON(http.StatusOK, true)
}

// handleGetProfile implements GET /rest/user/profile.
func (s *Server) handleGetProfile(c echo.Context) error {
	username := requestUsername(c)

	sources, err := s.scheduler.GetSourceFields(c.Request().Context(), username)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, map[string]any{
		"username": username,
		"sources":  sources,
	})
}

// handleUpdateProfile implements POST /rest/user/profile.
func (s *Server) handleUpdateProfile(c echo.Context) error {
	username := requestUsername(c)

	var payload map[string]map[string]string
	if err := c.Bind(&payload); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest)
	}

	errs, err := s.scheduler.UpdateSourceFields(c.Request().Context(), username, payload)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, map[string]any{"errors": errs})
}

// authError maps an auth package sentinel error to the HTTP status the
// reference server returns for it: validation failures are 400, a missing
// or invalid session is 403 (handled by requireUser before handlers run).
func authError(err error) error {
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials),
		errors.Is(err, auth.ErrInvalidUsername),
		errors.Is(err, auth.ErrUserExists),
		errors.Is(err, auth.ErrEmptyPassword),
		errors.Is(err, auth.ErrPasswordTooShort),
		errors.Is(err, auth.ErrPasswordTooLong),
		errors.Is(err, auth.ErrDetailsTooLong):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrUserNotFound):
		return echo.NewHTTPError(http.StatusForbidden)
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}
