package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Bill1907/prepup/internal/account"
	"github.com/Bill1907/prepup/internal/analyses"
	googleauth "github.com/Bill1907/prepup/internal/auth"
	"github.com/Bill1907/prepup/internal/questions"
	"github.com/Bill1907/prepup/internal/resumes"
	"github.com/Bill1907/prepup/internal/shared/config"
	"github.com/Bill1907/prepup/internal/shared/metrics"
	"github.com/Bill1907/prepup/internal/shared/server/middleware"
	"github.com/Bill1907/prepup/internal/shared/server/respond"
	"github.com/Bill1907/prepup/internal/uploads"
	"github.com/Bill1907/prepup/internal/usage"
	"github.com/Bill1907/prepup/internal/users"
	"github.com/Bill1907/prepup/internal/voicesession"
)

const (
	rateGroupDefault    = "DEFAULT"
	rateGroupGeneration = "GENERATION"
	rateGroupVoice      = "VOICE"
)

// RouterDeps carries the handlers mounted under /api/v1. Nil handlers are skipped.
type RouterDeps struct {
	Config              config.Config
	AccountHandler      *account.Handler
	AnalysisHandler     *analyses.Handler
	QuestionsHandler    *questions.Handler
	ResumesHandler      *resumes.Handler
	UploadsHandler      *uploads.Handler
	UsageHandler        *usage.Handler
	UserHandler         *users.Handler
	VoiceSessionHandler *voicesession.Handler
	GoogleAuth          *googleauth.GoogleService
}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	if deps.Config.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	r.Use(
		middleware.RequestID(),
		middleware.Recovery(),
		middleware.CORS(deps.Config.CORSAllowOrigin),
		middleware.Logging(),
		middleware.Auth(),
		middleware.RateLimit(middleware.RateLimitConfig{
			DefaultGroup: rateGroupDefault,
			GroupFor:     rateGroupFor,
			Rules: map[string]middleware.RateLimitRule{
				rateGroupDefault:    {Rate: 10, Burst: 30},
				rateGroupGeneration: {Rate: 0.2, Burst: 3},
				rateGroupVoice:      {Rate: 0.1, Burst: 3},
			},
		}),
	)

	r.GET("/metrics", metrics.Handler())

	api := r.Group("/api/v1")
	api.GET("/health", func(c *gin.Context) {
		respond.JSON(c, http.StatusOK, gin.H{"ok": true})
	})

	if deps.GoogleAuth != nil {
		deps.GoogleAuth.RegisterRoutes(api)
	}
	if deps.UserHandler != nil {
		deps.UserHandler.RegisterRoutes(api)
	}
	if deps.ResumesHandler != nil {
		deps.ResumesHandler.RegisterRoutes(api)
	}
	if deps.QuestionsHandler != nil {
		deps.QuestionsHandler.RegisterRoutes(api)
	}
	if deps.AnalysisHandler != nil {
		deps.AnalysisHandler.RegisterRoutes(api)
	}
	if deps.UploadsHandler != nil {
		deps.UploadsHandler.RegisterRoutes(api)
	}
	if deps.VoiceSessionHandler != nil {
		deps.VoiceSessionHandler.RegisterRoutes(api)
	}
	if deps.AccountHandler != nil {
		deps.AccountHandler.RegisterRoutes(api)
	}
	if deps.UsageHandler != nil {
		deps.UsageHandler.RegisterRoutes(api)
		if deps.Config.Env == "dev" {
			deps.UsageHandler.RegisterDevRoutes(api.Group("/dev"))
		}
	}

	return r
}

func rateGroupFor(c *gin.Context) string {
	path := c.Request.URL.Path
	switch {
	case c.Request.Method == http.MethodPost && strings.HasSuffix(path, "/questions/generate"),
		c.Request.Method == http.MethodPost && strings.HasSuffix(path, "/analysis"):
		return rateGroupGeneration
	case c.Request.Method == http.MethodPost && path == "/api/v1/voice/session":
		return rateGroupVoice
	default:
		return rateGroupDefault
	}
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}
