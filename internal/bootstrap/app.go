package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Bill1907/prepup/internal/account"
	"github.com/Bill1907/prepup/internal/analyses"
	googleauth "github.com/Bill1907/prepup/internal/auth"
	"github.com/Bill1907/prepup/internal/cache"
	"github.com/Bill1907/prepup/internal/llm"
	"github.com/Bill1907/prepup/internal/llm/gemini"
	"github.com/Bill1907/prepup/internal/llm/openai"
	"github.com/Bill1907/prepup/internal/questions"
	"github.com/Bill1907/prepup/internal/queue"
	"github.com/Bill1907/prepup/internal/resumes"
	"github.com/Bill1907/prepup/internal/shared/config"
	"github.com/Bill1907/prepup/internal/shared/server"
	"github.com/Bill1907/prepup/internal/shared/storage/db"
	"github.com/Bill1907/prepup/internal/shared/storage/object"
	localstore "github.com/Bill1907/prepup/internal/shared/storage/object/local"
	s3store "github.com/Bill1907/prepup/internal/shared/storage/object/s3"
	"github.com/Bill1907/prepup/internal/shared/telemetry"
	"github.com/Bill1907/prepup/internal/uploads"
	"github.com/Bill1907/prepup/internal/usage"
	"github.com/Bill1907/prepup/internal/users"
	"github.com/Bill1907/prepup/internal/voicesession"
)

// App holds shared dependencies for the API, worker and CLI binaries.
type App struct {
	Config config.Config
	Router *gin.Engine
	DB     *sql.DB
	Store  object.Store
	Queue  queue.Client
	Cache  cache.Cache
	LLM    llm.Client

	ResumesService      *resumes.Service
	QuestionsService    *questions.Service
	AnalysesService     *analyses.Service
	UsageService        *usage.Service
	UsersService        *users.Service
	AccountService      *account.Service
	VoiceSessionService *voicesession.Service

	ResumesHandler      *resumes.Handler
	QuestionsHandler    *questions.Handler
	AnalysisHandler     *analyses.Handler
	UsageHandler        *usage.Handler
	UsersHandler        *users.Handler
	AccountHandler      *account.Handler
	UploadsHandler      *uploads.Handler
	VoiceSessionHandler *voicesession.Handler
	GoogleAuth          *googleauth.GoogleService

	closers []func() error
}

// Build prepares shared dependencies and the HTTP router.
func Build(cfg config.Config) (*App, error) {
	return BuildWithQueue(cfg, nil)
}

// BuildWithQueue is Build with an explicit queue client. A nil client falls
// back to the configured backend.
func BuildWithQueue(cfg config.Config, q queue.Client) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}
	if strings.TrimSpace(cfg.ObjectStoreType) == "" {
		cfg.ObjectStoreType = "local"
	}
	ctx := context.Background()

	app := &App{Config: cfg}

	sqlDB, err := buildDB(ctx, cfg)
	if err != nil {
		return nil, err
	}
	app.DB = sqlDB

	store, err := buildStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	app.Store = store

	if q == nil {
		q, err = app.buildQueue(ctx)
		if err != nil {
			return nil, err
		}
	}
	app.Queue = q

	llmClient, minter, err := app.buildLLM(ctx)
	if err != nil {
		return nil, err
	}
	app.LLM = llmClient

	app.Cache = buildCache(cfg)
	buildServices(app, minter)

	app.Router = server.NewRouter(server.RouterDeps{
		Config:              app.Config,
		AccountHandler:      app.AccountHandler,
		AnalysisHandler:     app.AnalysisHandler,
		QuestionsHandler:    app.QuestionsHandler,
		ResumesHandler:      app.ResumesHandler,
		UploadsHandler:      app.UploadsHandler,
		UsageHandler:        app.UsageHandler,
		UserHandler:         app.UsersHandler,
		VoiceSessionHandler: app.VoiceSessionHandler,
		GoogleAuth:          app.GoogleAuth,
	})

	return app, nil
}

// Close releases queue connections and LLM clients. The database pool is left
// to the process since Lambda reuses it across invocations.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func buildDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		if isDevLike(cfg.Env) {
			telemetry.Warn("bootstrap.memory_repos", map[string]any{"reason": "DATABASE_URL empty"})
			return nil, nil
		}
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	var (
		sqlDB *sql.DB
		err   error
	)
	if db.IsLambdaRuntime() {
		sqlDB, err = db.GetSingleton(ctx, cfg.DatabaseURL, db.OptionsFromEnv(db.DefaultLambdaOptions()))
	} else {
		sqlDB, err = db.Connect(ctx, cfg.DatabaseURL, db.OptionsFromEnv(db.DefaultServerOptions()))
	}
	if err != nil {
		if isDevLike(cfg.Env) {
			telemetry.Warn("bootstrap.memory_repos", map[string]any{"reason": "database connect failed", "error": err.Error()})
			return nil, nil
		}
		return nil, err
	}
	return sqlDB, nil
}

func buildStore(ctx context.Context, cfg config.Config) (object.Store, error) {
	switch cfg.ObjectStoreType {
	case "s3":
		if strings.TrimSpace(cfg.S3Bucket) == "" {
			return nil, fmt.Errorf("OBJECT_STORE=s3 requires S3_BUCKET")
		}
		return s3store.New(ctx, cfg.AWSRegion, cfg.S3Bucket, cfg.S3Prefix, cfg.SSEKMSKeyID)
	default:
		return localstore.New(cfg.LocalStoreDir), nil
	}
}

func (a *App) buildQueue(ctx context.Context) (queue.Client, error) {
	switch a.Config.QueueBackend {
	case "":
		return nil, nil
	case "sqs":
		return queue.NewSQSClient(ctx, a.Config.AWSRegion, a.Config.SQSQueueURL)
	case "rabbitmq":
		rc, err := queue.NewRabbitClient(a.Config.RabbitMQURL, a.Config.RabbitMQQueue)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, rc.Close)
		return rc, nil
	default:
		return nil, fmt.Errorf("%w: %s", queue.ErrUnknownBackend, a.Config.QueueBackend)
	}
}

// buildLLM returns the text client for the configured provider and, when an
// OpenAI key is present, the realtime credential minter. Either may be nil.
func (a *App) buildLLM(ctx context.Context) (llm.Client, llm.RealtimeMinter, error) {
	cfg := a.Config
	var minter llm.RealtimeMinter
	var oa *openai.Client
	if cfg.OpenAIAPIKey != "" {
		c, err := openai.NewClient(cfg.OpenAIAPIKey, cfg.LLMModel)
		if err != nil {
			return nil, nil, err
		}
		oa = c
		minter = c
	}

	switch cfg.LLMProvider {
	case "gemini":
		if cfg.GeminiAPIKey == "" {
			telemetry.Warn("bootstrap.llm_unconfigured", map[string]any{"provider": "gemini"})
			return nil, minter, nil
		}
		gc, err := gemini.NewClient(ctx, cfg.GeminiAPIKey, cfg.LLMModel)
		if err != nil {
			return nil, nil, err
		}
		a.closers = append(a.closers, gc.Close)
		return gc, minter, nil
	default:
		if oa == nil {
			telemetry.Warn("bootstrap.llm_unconfigured", map[string]any{"provider": cfg.LLMProvider})
			return nil, nil, nil
		}
		return oa, minter, nil
	}
}

func buildCache(cfg config.Config) cache.Cache {
	if cfg.CacheMaxEntries <= 0 || cfg.CacheTTLSeconds <= 0 {
		return cache.Nop{}
	}
	return cache.NewMemory(cfg.CacheMaxEntries, time.Duration(cfg.CacheTTLSeconds)*time.Second)
}

func buildServices(app *App, minter llm.RealtimeMinter) {
	var (
		resumeRepo   resumes.Repo
		questionRepo questions.Repo
		analysisRepo analyses.Repo
		userRepo     users.Repo
	)
	if app.DB != nil {
		resumeRepo = &resumes.PGRepo{DB: app.DB}
		questionRepo = &questions.PGRepo{DB: app.DB}
		analysisRepo = &analyses.PGRepo{DB: app.DB}
		userRepo = &users.PGRepo{DB: app.DB}
	} else {
		resumeRepo = resumes.NewMemoryRepo()
		questionRepo = questions.NewMemoryRepo()
		analysisRepo = analyses.NewMemoryRepo()
		userRepo = users.NewMemoryRepo()
	}

	limits := usage.Limits{
		usage.KindVoiceSession:       app.Config.VoiceSessionsPerDay,
		usage.KindQuestionGeneration: app.Config.QuestionGenerationsPerDay,
	}
	var usageSvc *usage.Service
	if app.DB != nil {
		usageSvc = usage.NewPostgresService(usage.NewPGStore(app.DB), limits)
	} else {
		usageSvc = usage.NewService(limits)
	}

	resumeSvc := resumes.NewService(resumeRepo, app.Store, app.Cache)
	questionSvc := questions.NewService(questionRepo, resumeSvc, app.LLM, usageSvc, app.Cache)
	analysisSvc := &analyses.Service{
		Repo:     analysisRepo,
		Resumes:  resumeSvc,
		LLM:      app.LLM,
		Queue:    app.Queue,
		Provider: app.Config.LLMProvider,
		Model:    app.Config.LLMModel,
	}
	userSvc := users.NewService(userRepo)
	voiceSvc := voicesession.NewService(questionSvc, resumeSvc, minter, usageSvc, voicesession.VoiceConfig{
		Model: app.Config.RealtimeModel,
		Voice: app.Config.RealtimeVoice,
	})

	var presigner object.Presigner
	if p, ok := app.Store.(object.Presigner); ok {
		presigner = p
	}

	app.ResumesService = resumeSvc
	app.QuestionsService = questionSvc
	app.AnalysesService = analysisSvc
	app.UsageService = usageSvc
	app.UsersService = userSvc
	app.AccountService = account.NewService(resumeSvc, questionSvc, analysisSvc)
	app.VoiceSessionService = voiceSvc

	app.ResumesHandler = resumes.NewHandler(resumeSvc)
	app.QuestionsHandler = questions.NewHandler(questionSvc)
	app.AnalysisHandler = analyses.NewHandler(analysisSvc)
	app.UsageHandler = usage.NewHandler(usageSvc)
	app.UsersHandler = users.NewHandler(userSvc)
	app.AccountHandler = account.NewHandler(app.AccountService)
	app.UploadsHandler = uploads.NewHandler(presigner)
	app.VoiceSessionHandler = voicesession.NewHandler(voiceSvc)
	app.GoogleAuth = googleauth.NewGoogleService(
		app.Config.GoogleClientID,
		app.Config.GoogleClientSecret,
		app.Config.GoogleRedirectURL,
		app.Config.UIRedirectURL,
		userSvc,
	)
}

func isDevLike(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "local":
		return true
	default:
		return false
	}
}
