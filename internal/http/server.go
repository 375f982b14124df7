package http

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/jmehdipour/titletester/internal/config"
	"github.com/jmehdipour/titletester/internal/http/middleware"
	"github.com/jmehdipour/titletester/internal/identity"
	"github.com/jmehdipour/titletester/internal/metrics"
	"github.com/jmehdipour/titletester/internal/quota"
	"github.com/jmehdipour/titletester/internal/util"
	"github.com/labstack/echo/v4"
	echoMid "github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const apiVersion = "6.0.0"

// Verifier is the credential verifier as seen by the HTTP layer.
type Verifier interface {
	middleware.IdentityVerifier
	Status() identity.Status
}

type QuotaReporter interface {
	Status(ctx context.Context) quota.Status
}

// Deps are the collaborators of the server. Redis and Quota may be nil.
type Deps struct {
	Verifier Verifier
	Redis    redis.Cmdable
	Quota    QuotaReporter
	Log      *zap.Logger
}

type Server struct {
	e   *echo.Echo
	log *zap.Logger
	now func() time.Time
}

func NewServer(cfg config.Config, deps Deps) *Server {
	lg := deps.Log
	if lg == nil {
		lg = zap.NewNop()
	}
	s := &Server{log: lg, now: time.Now}

	// echo
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Logger.SetLevel(gommonLevel(cfg.App.LogLevel))
	e.HTTPErrorHandler = errorHandler(lg)
	e.Use(
		echoMid.Recover(),
		echoMid.RequestIDWithConfig(echoMid.RequestIDConfig{Generator: util.New}),
		middleware.RequestLogger(lg),
	)

	metrics.MustRegister(prometheus.DefaultRegisterer)

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// banners
	e.GET("/", rootHandler())
	e.GET("/health", healthHandler(s.now))

	// middlewares
	authMW := middleware.Authenticator(deps.Verifier)
	rlMW := middleware.RateLimitMiddleware(middleware.RateLimitConfig{
		Redis:          deps.Redis,
		RPS:            cfg.RateLimit.RPS,
		KeyPrefix:      "rl:uid:",
		Window:         time.Second,
		RetryAfterHint: true,
	})

	// routes
	auth := e.Group("/api/auth")
	auth.POST("/firebase/login", loginHandler(deps.Verifier, lg))
	auth.GET("/profile", profileHandler(), authMW, rlMW)
	auth.GET("/status", authStatusHandler(deps.Verifier))
	auth.POST("/logout", logoutHandler())
	auth.GET("/me", profileHandler(), authMW, rlMW)

	campaigns := e.Group("/api/campaigns", authMW, rlMW)
	campaigns.GET("", listCampaignsHandler())
	campaigns.GET("/", listCampaignsHandler())
	campaigns.POST("/create", createCampaignHandler())
	campaigns.GET("/:id", getCampaignHandler())

	youtube := e.Group("/api/youtube", authMW, rlMW)
	youtube.GET("/auth/connect", connectYouTubeHandler())
	youtube.GET("/channels", listChannelsHandler())
	youtube.GET("/videos", listVideosHandler())

	e.GET("/api/quota/status", quotaStatusHandler(deps.Quota), authMW, rlMW)

	s.e = e
	return s
}

func (s *Server) Start(addr string) error {
	s.log.Info("http: listening", zap.String("addr", addr))
	return s.e.Start(addr)
}

func (s *Server) Shutdown(ctx context.Context) error { return s.e.Shutdown(ctx) }

// Handler exposes the router, e.g. for httptest.
func (s *Server) Handler() http.Handler { return s.e }

func gommonLevel(level string) log.Lvl {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return log.DEBUG
	case "warn", "warning":
		return log.WARN
	case "error":
		return log.ERROR
	case "off":
		return log.OFF
	default:
		return log.INFO
	}
}
