package echoapi

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/fitprize/fitprize/core"
	"github.com/fitprize/fitprize/core/school"
	"github.com/fitprize/fitprize/core/user"
)

type (
	ServerDeps struct {
		Conf       *core.Config
		Logger     core.Logger
		UserSvc    user.Service
		SchoolSvc  *school.Service
		Validate   *validator.Validate
		Translator ut.Translator

		// Auth defaults to an Authenticator over UserSvc and SchoolSvc.
		Auth *Authenticator
		// Realtime serves the websocket endpoint; it is not mounted when nil.
		Realtime http.Handler
		// Metrics serves the prometheus metrics; it is not mounted when nil.
		Metrics http.Handler
	}

	Server interface {
		http.Handler
		Start()
		Errors() <-chan error
		ShutdownSignal() <-chan os.Signal
		Shutdown(ctx context.Context) error
		Close() error
	}

	server struct {
		deps     ServerDeps
		app      *echo.Echo
		auth     *Authenticator
		errors   chan error
		shutdown chan os.Signal
	}
)

var _ Server = (*server)(nil)

func NewServer(deps ServerDeps) Server {
	s := &server{
		deps:     deps,
		app:      echo.New(),
		auth:     deps.Auth,
		errors:   make(chan error, 1),
		shutdown: make(chan os.Signal, 1),
	}
	if s.auth == nil {
		s.auth = NewAuthenticator(deps.Conf, deps.UserSvc, deps.SchoolSvc)
	}
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	s.setup()
	return s
}

func (s *server) setup() {
	conf := s.deps.Conf

	s.app.HideBanner = true
	s.app.Pre(middleware.RemoveTrailingSlash())
	if !conf.TestMode {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	s.app.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: conf.Realtime.AllowedOrigins,
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.deps.Logger, s.deps.Translator, s.signalShutdown)
	s.app.Debug = conf.Debug

	s.app.GET("/", home)
	s.app.GET("/health", health)
	if s.deps.Metrics != nil {
		s.app.GET("/metrics", echo.WrapHandler(s.deps.Metrics))
	}

	v1 := s.app.Group("/v1")
	if s.deps.Realtime != nil {
		v1.GET("/ws", echo.WrapHandler(s.deps.Realtime))
	}

	jwt := s.auth.middleware()
	registerAuthAPI(v1, jwt, s.auth, s.deps)
	registerSchoolAPI(v1, jwt, s.deps)
	registerAdminAPI(v1, jwt, s.deps)
	registerTeacherAPI(v1, jwt, s.deps)
	registerClassAPI(v1, jwt, s.deps)
	registerGradeGroupAPI(v1, jwt, s.deps)
	registerPrizeAPI(v1, jwt, s.deps)
	registerEarnedPrizeAPI(v1, jwt, s.deps)
	registerDashboardAPI(v1, jwt, s.deps)
}

// Start listens on the configured address. A failure to serve is sent on Errors.
func (s *server) Start() {
	if err := s.app.Start(s.deps.Conf.Server.Address); err != nil && err != http.ErrServerClosed {
		s.errors <- err
	}
}

func (s *server) Errors() <-chan error {
	return s.errors
}

func (s *server) ShutdownSignal() <-chan os.Signal {
	return s.shutdown
}

func (s *server) signalShutdown() {
	select {
	case s.shutdown <- syscall.SIGTERM:
	default:
	}
}

func (s *server) Shutdown(ctx context.Context) error {
	signal.Stop(s.shutdown)
	return s.app.Shutdown(ctx)
}

func (s *server) Close() error {
	signal.Stop(s.shutdown)
	return s.app.Close()
}

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to Fitprize API!")
}

func health(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, echo.Map{"status": "ok"})
}
