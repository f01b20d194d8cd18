package echoapi

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/maoni-app/maoni/core"
	"github.com/maoni-app/maoni/core/analytics"
	"github.com/maoni-app/maoni/core/course"
	"github.com/maoni-app/maoni/core/feedback"
	"github.com/maoni-app/maoni/core/user"
)

type (
	Options struct {
		Address        string
		DisableReqLogs bool

		UserSvc      user.Service
		CourseSvc    *course.Service
		FeedbackSvc  *feedback.Service
		AnalyticsSvc *analytics.Service

		Logger core.Logger
		// SignalShutdown is called when an unrecoverable error is caught.
		SignalShutdown func()
	}

	Server interface {
		http.Handler
		Start()
		Stop(context.Context) error
	}

	server struct {
		opts *Options
		app  *echo.Echo
	}
)

var _ Server = (*server)(nil)

func NewServer(opts *Options) Server {
	if opts.SignalShutdown == nil {
		opts.SignalShutdown = func() {}
	}
	s := &server{
		opts: opts,
		app:  echo.New(),
	}
	s.setup()
	return s
}

func (s *server) setup() {
	s.app.Pre(middleware.RemoveTrailingSlash())
	if !s.opts.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(core.Conf.Debug || core.Conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	s.app.Use(routeGuard())

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.opts.Logger, s.opts.SignalShutdown)
	s.app.Debug = core.Conf.Debug

	s.app.GET("/", home)
	registerPortalPages(s.app, s.opts.UserSvc)

	v1 := s.app.Group("/v1")
	jwt := jwtAuth()

	registerUserAPI(v1, jwt, s.opts.UserSvc)
	registerFeedbackAPI(v1, jwt, s.opts.FeedbackSvc, s.opts.UserSvc)
	registerAnalyticsAPI(v1, jwt, s.opts.AnalyticsSvc, s.opts.UserSvc)
	registerCourseAPI(v1, jwt, s.opts.CourseSvc, s.opts.UserSvc)
}

func (s *server) Start() {
	s.app.Logger.Fatal(s.app.Start(s.opts.Address))
}

func (s *server) Stop(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to "+core.Conf.AppName+" API!")
}
