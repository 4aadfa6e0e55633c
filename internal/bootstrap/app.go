package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"resumind-backend/internal/analysis"
	googleauth "resumind-backend/internal/auth"
	"resumind-backend/internal/convert"
	"resumind-backend/internal/queue"
	"resumind-backend/internal/scoring"
	"resumind-backend/internal/scoring/gemini"
	"resumind-backend/internal/scoring/openai"
	"resumind-backend/internal/services/health"
	"resumind-backend/internal/shared/auth"
	"resumind-backend/internal/shared/config"
	"resumind-backend/internal/shared/metrics"
	"resumind-backend/internal/shared/server"
	"resumind-backend/internal/shared/server/middleware"
	"resumind-backend/internal/shared/storage/db"
	"resumind-backend/internal/shared/storage/kv"
	kvmemory "resumind-backend/internal/shared/storage/kv/memory"
	kvpostgres "resumind-backend/internal/shared/storage/kv/postgres"
	kvredis "resumind-backend/internal/shared/storage/kv/redis"
	kvsqlite "resumind-backend/internal/shared/storage/kv/sqlite"
	"resumind-backend/internal/shared/storage/object"
	localstore "resumind-backend/internal/shared/storage/object/local"
	s3store "resumind-backend/internal/shared/storage/object/s3"
	"resumind-backend/internal/shared/telemetry"
	"resumind-backend/internal/workerproc"
)

// Submission rate limit: a burst of 3, then one every 20 seconds per caller.
const (
	submitRate  = 1.0 / 20.0
	submitBurst = 3
)

// App holds the wired dependencies of one process.
type App struct {
	Config          config.Config
	Router          *gin.Engine
	DB              *sql.DB
	Blobs           object.Store
	Records         kv.Store
	Scorer          scoring.Scorer
	Queue           queue.Client
	Orchestrator    *analysis.Orchestrator
	Retriever       *analysis.Retriever
	AnalysisHandler *analysis.Handler
	GoogleAuth      *googleauth.GoogleService
	Health          *health.Service

	closers []func() error
}

// Build wires every dependency from cfg.
func Build(cfg config.Config) (*App, error) {
	return BuildContext(context.Background(), cfg)
}

// BuildContext is Build with a caller-supplied context for connection setup.
func BuildContext(ctx context.Context, cfg config.Config) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}
	if strings.TrimSpace(cfg.ObjectStoreType) == "" {
		cfg.ObjectStoreType = "local"
	}
	telemetry.Configure(cfg.LogLevel, cfg.LogFormat)
	auth.Configure(cfg.JWTSecret, cfg.Env)

	app := &App{Config: cfg}

	blobs, err := buildBlobs(ctx, cfg)
	if err != nil {
		return nil, err
	}
	app.Blobs = blobs

	if err := app.buildRecords(ctx); err != nil {
		app.Close()
		return nil, err
	}

	scorer, err := buildScorer(ctx, cfg, blobs)
	if err != nil {
		app.Close()
		return nil, err
	}
	app.Scorer = scorer

	q, err := buildQueue(ctx, cfg)
	if err != nil {
		app.Close()
		return nil, err
	}
	app.Queue = q

	app.Orchestrator = &analysis.Orchestrator{
		Blobs:     app.Blobs,
		Records:   app.Records,
		Scorer:    app.Scorer,
		Converter: convert.New(cfg.PreviewDPI),
		Orphans:   analysis.QueueReporter{Queue: app.Queue},
	}
	app.Retriever = &analysis.Retriever{Blobs: app.Blobs, Records: app.Records}
	app.AnalysisHandler = analysis.NewHandler(app.Orchestrator, app.Retriever)
	app.AnalysisHandler.SubmitLimit = middleware.RateLimit(middleware.RateLimitConfig{
		DefaultGroup: "SUBMIT",
		Rules: map[string]middleware.RateLimitRule{
			"SUBMIT": {Rate: submitRate, Burst: submitBurst},
		},
	})
	app.GoogleAuth = googleauth.NewGoogleService(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleRedirectURL, cfg.UIRedirectURL)

	app.Health = app.buildHealth()

	app.Router = server.NewRouter(server.RouterDeps{
		Config:          cfg,
		AnalysisHandler: app.AnalysisHandler,
		GoogleAuth:      app.GoogleAuth,
		Health:          app.Health,
	})

	telemetry.Info("bootstrap.ready", map[string]any{
		"env":          cfg.Env,
		"object_store": cfg.ObjectStoreType,
		"kv_store":     cfg.KVStoreType,
		"scorer":       cfg.ScorerProvider,
		"orphan_queue": cfg.OrphanQueueURL != "",
	})
	return app, nil
}

// Sweeper returns an orphan sweeper over the app's stores.
func (a *App) Sweeper() workerproc.Sweeper {
	return workerproc.Sweeper{Blobs: a.Blobs, Records: a.Records, Key: analysis.CanonicalKey}
}

// RunLocalSweeper drains the in-process orphan queue every interval until ctx
// ends. It does nothing when orphans go to SQS; cmd/worker owns those.
func (a *App) RunLocalSweeper(ctx context.Context, interval time.Duration) {
	mem, ok := a.Queue.(*queue.MemoryClient)
	if !ok {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.sweepMemory(ctx, mem)
		}
	}
}

// SweepPending runs one sweep over orphan reports still held by the
// in-process queue and returns how many it handled. Short-lived processes
// call it before Close so their orphans are not dropped with the queue.
func (a *App) SweepPending(ctx context.Context) int {
	mem, ok := a.Queue.(*queue.MemoryClient)
	if !ok {
		return 0
	}
	return a.sweepMemory(ctx, mem)
}

func (a *App) sweepMemory(ctx context.Context, mem *queue.MemoryClient) int {
	sweeper := a.Sweeper()
	msgs := mem.Drain()
	for _, msg := range msgs {
		res, err := sweeper.Sweep(ctx, msg)
		metrics.IncOrphanSweep(workerproc.Outcome(res, err))
		fields := map[string]any{
			"analysis_id": msg.AnalysisID,
			"deleted":     len(res.Deleted),
			"skipped":     len(res.Skipped),
		}
		if err != nil {
			fields["error"] = err.Error()
			telemetry.Error("sweeper.failed", fields)
			continue
		}
		telemetry.Info("sweeper.done", fields)
	}
	return len(msgs)
}

// Close releases connections opened by Build.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func buildBlobs(ctx context.Context, cfg config.Config) (object.Store, error) {
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

func (a *App) buildRecords(ctx context.Context) error {
	cfg := a.Config
	switch cfg.KVStoreType {
	case "redis":
		store, err := kvredis.New(ctx, kvredis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Prefix:   cfg.RedisPrefix,
		})
		if err != nil {
			return a.fallbackRecords(err)
		}
		a.Records = store
		a.closers = append(a.closers, store.Close)
	case "postgres":
		sqlDB, err := buildDB(ctx, cfg)
		if err != nil {
			return a.fallbackRecords(err)
		}
		a.DB = sqlDB
		a.Records = &kvpostgres.Store{DB: sqlDB}
		if !db.IsLambdaRuntime() {
			a.closers = append(a.closers, sqlDB.Close)
		}
	case "sqlite":
		store, err := kvsqlite.Open(cfg.SQLitePath)
		if err != nil {
			return a.fallbackRecords(err)
		}
		a.Records = store
		a.closers = append(a.closers, store.Close)
	default:
		if !isDevLike(cfg.Env) {
			telemetry.Warn("bootstrap.memory_records", map[string]any{"env": cfg.Env})
		}
		a.Records = kvmemory.New()
	}
	return nil
}

// fallbackRecords keeps dev environments running on the in-memory store when
// the configured backend is unreachable.
func (a *App) fallbackRecords(cause error) error {
	if !isDevLike(a.Config.Env) {
		return fmt.Errorf("kv store %s: %w", a.Config.KVStoreType, cause)
	}
	telemetry.Warn("bootstrap.kv_fallback", map[string]any{
		"kv_store": a.Config.KVStoreType,
		"error":    cause.Error(),
	})
	a.Records = kvmemory.New()
	return nil
}

func buildDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	var (
		sqlDB *sql.DB
		err   error
	)
	if db.IsLambdaRuntime() {
		opts := db.OptionsFromEnv(db.DefaultLambdaOptions())
		sqlDB, err = db.GetSingleton(ctx, cfg.DatabaseURL, opts)
	} else {
		opts := db.OptionsFromEnv(db.DefaultServerOptions())
		sqlDB, err = db.Connect(ctx, cfg.DatabaseURL, opts)
	}
	if err != nil {
		return nil, err
	}

	// Deployed environments migrate through cmd/migrate.
	if isDevLike(cfg.Env) {
		if err := db.RunMigrations(ctx, sqlDB); err != nil {
			return nil, fmt.Errorf("run migrations: %w", err)
		}
	}
	return sqlDB, nil
}

func buildScorer(ctx context.Context, cfg config.Config, blobs object.Store) (scoring.Scorer, error) {
	var (
		base scoring.Scorer
		err  error
	)
	switch cfg.ScorerProvider {
	case "none":
		return scoring.Unconfigured{}, nil
	case "gemini":
		base, err = gemini.NewClient(ctx, cfg.GeminiAPIKey, cfg.LLMModel, blobs)
	default:
		base, err = openai.NewClient(cfg.OpenAIAPIKey, cfg.LLMModel, blobs)
	}
	if err != nil {
		if isDevLike(cfg.Env) {
			telemetry.Warn("bootstrap.scorer_unavailable", map[string]any{
				"scorer": cfg.ScorerProvider,
				"error":  err.Error(),
			})
			return scoring.Unconfigured{}, nil
		}
		return nil, fmt.Errorf("scorer %s: %w", cfg.ScorerProvider, err)
	}
	return scoring.WithRetry(base), nil
}

// healthProbeKey is never written; a NotFound answer proves the store is reachable.
const healthProbeKey = "health:probe"

func (a *App) buildHealth() *health.Service {
	svc := health.NewService()
	svc.Add("records", func(ctx context.Context) error {
		_, err := a.Records.Get(ctx, healthProbeKey)
		if err == nil || errors.Is(err, kv.ErrNotFound) {
			return nil
		}
		return err
	})
	if a.DB != nil {
		svc.Add("database", a.DB.PingContext)
	}
	return svc
}

func buildQueue(ctx context.Context, cfg config.Config) (queue.Client, error) {
	if strings.TrimSpace(cfg.OrphanQueueURL) == "" {
		return queue.NewMemoryClient(), nil
	}
	return queue.NewSQSClient(ctx, cfg.AWSRegion, cfg.OrphanQueueURL)
}

func isDevLike(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "local":
		return true
	default:
		return false
	}
}
