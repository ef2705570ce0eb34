// Package api wires the domain services (auth, scheduler, merger, store)
// into the REST façade described in spec.md §6, on top of the shared Echo
// server stack in the http package.
package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"citewatch.io/adapters"
	"citewatch.io/auth"
	"citewatch.io/common"
	"citewatch.io/db"
	"citewatch.io/merger"
	"citewatch.io/scheduler"
	chttp "citewatch.io/http"
)

// Server holds every dependency the REST handlers need.
type Server struct {
	store      db.Store
	authSvc    auth.Service
	authCfg    *auth.Config
	rateLimit  *auth.RateLimiter
	scheduler  *scheduler.Scheduler
	merger     *merger.Merger
	registry   *adapters.Registry
	cache      *db.MetricsCache
	takeout    *takeoutSigner
	log        *common.ContextLogger
}

// Dependencies bundles the constructor arguments for New, since the REST
// façade sits on top of every other component.
type Dependencies struct {
	Store         db.Store
	AuthService   auth.Service
	AuthConfig    *auth.Config
	Scheduler     *scheduler.Scheduler
	Merger        *merger.Merger
	Registry      *adapters.Registry
	MetricsCache  *db.MetricsCache // optional, nil disables caching
	TakeoutSecret []byte
	Logger        *common.ContextLogger
}

// New builds a Server ready to have its routes registered.
func New(deps Dependencies) *Server {
	return &Server{
		store:     deps.Store,
		authSvc:   deps.AuthService,
		authCfg:   deps.AuthConfig,
		rateLimit: auth.NewRateLimiter(deps.AuthConfig.FailRetryDelay),
		scheduler: deps.Scheduler,
		merger:    deps.Merger,
		registry:  deps.Registry,
		cache:     deps.MetricsCache,
		takeout:   newTakeoutSigner(deps.TakeoutSecret),
		log:       deps.Logger,
	}
}

// RegisterRoutes attaches every spec.md §6 route to e.
func (s *Server) RegisterRoutes(e *echo.Echo) {
	e.Use(chttp.SecurityHeadersMiddleware())
	e.Use(chttp.JSONContentTypeMiddleware())
	e.Use(s.requestLogging)

	e.POST("/rest/user/register", s.handleRegister)
	e.POST("/rest/user/login", s.handleLogin)

	authed := e.Group("", s.requireUser)
	authed.POST("/rest/user/logout", s.handleLogout)
	authed.POST("/rest/user/delete", s.handleDelete)
	authed.POST("/rest/user/update-password", s.handleUpdatePassword)
	authed.GET("/rest/user/profile", s.handleGetProfile)
	authed.POST("/rest/user/profile", s.handleUpdateProfile)
	authed.GET("/rest/publications", s.handlePublications)
	authed.GET("/rest/metrics", s.handleMetrics)
	authed.POST("/rest/force-merge", s.handleForceMerge)
	authed.GET("/rest/takeout", s.handleTakeout)

	e.GET("/rest/takeout/download", s.handleTakeoutDownload)
}

const authTokenCookie = "token"

func (s *Server) setAuthCookie(c echo.Context, token string) {
	c.SetCookie(&http.Cookie{
		Name:     authTokenCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: s.authCfg.CookieHTTPOnly,
		Secure:   s.authCfg.CookieSecure,
	})
}

func (s *Server) clearAuthCookie(c echo.Context) {
	c.SetCookie(&http.Cookie{
		Name:     authTokenCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: s.authCfg.CookieHTTPOnly,
		Secure:   s.authCfg.CookieSecure,
	})
}
