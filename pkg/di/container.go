package di

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"dpchat/backend/internal/repository"
	"dpchat/backend/internal/service"
	"dpchat/backend/pkg/cache"
	"dpchat/backend/pkg/config"
	"dpchat/backend/pkg/health"
	"dpchat/backend/pkg/jwt"
	"dpchat/backend/pkg/logger"
	"dpchat/backend/pkg/middleware"
	"dpchat/backend/pkg/observability"
	"dpchat/backend/pkg/resilience"
	"dpchat/backend/pkg/secrets"

	"golang.org/x/time/rate"
)

// Container holds all the dependencies for the application
type Container struct {
	Config      *config.Config
	Logger      *logger.Logger
	Secrets     secrets.Manager
	DB          config.DatabaseProvider
	Cache       cache.Store
	Metrics     *observability.Metrics
	Health      *health.Checker
	JWTService  *jwt.Service
	RateLimiter *middleware.RateLimiter
	Breaker     *resilience.CircuitBreaker

	TranscriptRepo *repository.MongoTranscriptRepository
	FeedbackRepo   *repository.MongoFeedbackRepository

	TranscriptService *service.TranscriptService
	FeedbackService   *service.FeedbackService

	closers []func(context.Context) error
}

// Options overrides parts of the wiring, mainly for tests
type Options struct {
	// Logger replaces the logger built from config
	Logger *logger.Logger
	// Secrets replaces the Vault-backed manager
	Secrets secrets.Manager
	// DB replaces the lazily connecting MongoDB provider
	DB config.DatabaseProvider
	// TraceWriter receives spans when tracing is enabled; stdout when nil
	TraceWriter io.Writer
}

// New wires every component from cfg. Nothing here talks to MongoDB; the
// first request (or health check) opens the connection.
func New(ctx context.Context, cfg *config.Config, opts Options) (*Container, error) {
	c := &Container{Config: cfg}

	c.Logger = opts.Logger
	if c.Logger == nil {
		c.Logger = logger.New(logger.FromEnv(cfg.Logging.Level, cfg.Logging.Format))
	}
	logger.SetGlobal(c.Logger)

	c.Secrets = opts.Secrets
	if c.Secrets == nil {
		vm, err := secrets.NewVaultManager(secrets.VaultConfig{
			Enabled:     cfg.Vault.Enabled,
			Address:     cfg.Vault.Address,
			Token:       cfg.Vault.Token,
			SecretsPath: cfg.Vault.SecretsPath,
		}, c.Logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize secrets: %w", err)
		}
		c.Secrets = vm
	}

	if cfg.Observability.TracingEnabled {
		shutdown, err := observability.SetupTracing(cfg.Observability.ServiceName, opts.TraceWriter)
		if err != nil {
			return nil, err
		}
		c.closers = append(c.closers, shutdown)
	}

	metrics, err := observability.SetupMetrics(cfg.Observability.ServiceName)
	if err != nil {
		return nil, err
	}
	c.Metrics = metrics
	c.closers = append(c.closers, metrics.Shutdown)

	c.Health = health.NewChecker(c.Logger, 30*time.Second)

	var provider *config.MongoProvider
	if opts.DB != nil {
		c.DB = opts.DB
	} else {
		uri := c.Secrets.GetSecretWithDefault(ctx, secrets.KeyMongoURI, cfg.Database.URI)
		provider = config.NewMongoProvider(cfg, uri, c.Logger)
		c.DB = provider
		c.closers = append(c.closers, provider.Close)
	}

	c.TranscriptRepo = repository.NewMongoTranscriptRepository(c.DB, cfg.Database.Transcripts)
	c.FeedbackRepo = repository.NewMongoFeedbackRepository(c.DB, cfg.Database.Feedback)

	if provider != nil {
		provider.OnConnect(c.TranscriptRepo.EnsureIndexes)
		c.Health.RegisterDatabaseCheck(func(ctx context.Context) error {
			if _, err := provider.Database(ctx); err != nil {
				return err
			}
			return provider.Ping(ctx)
		})
	}

	c.setupCache(ctx)

	if secret := c.Secrets.GetSecretWithDefault(ctx, secrets.KeyAdminJWTSecret, cfg.JWT.Secret); secret != "" {
		c.JWTService = jwt.NewService(secret, cfg.JWT.Expiry)
	} else {
		c.Logger.Warn("ADMIN_JWT_SECRET not set, read routes are unauthenticated")
	}

	c.RateLimiter = middleware.NewRateLimiter(c.Logger, middleware.RateLimiterOptions{
		Limit: rate.Limit(cfg.Security.RateLimit),
		Burst: cfg.Security.RateLimitBurst,
	})
	c.closers = append(c.closers, func(context.Context) error {
		c.RateLimiter.Stop()
		return nil
	})

	breakerCfg := resilience.DefaultCircuitBreakerConfig("mongo-writes")
	breakerCfg.FailureThreshold = uint(cfg.Breaker.MaxFailures)
	breakerCfg.RetryTimeout = cfg.Breaker.ResetTimeout
	breakerCfg.IsFailure = service.IsStoreFailure
	c.Breaker = resilience.NewCircuitBreaker(breakerCfg, c.Logger)
	c.Breaker.OnStateChange(func(_, to resilience.CircuitBreakerState) {
		c.Metrics.BreakerTransition(context.Background(), breakerCfg.Name, string(to))
	})
	c.Health.RegisterBreakerCheck(breakerCfg.Name, c.Breaker.GetMetrics)

	deps := service.Deps{
		Cache:    c.Cache,
		CacheTTL: cfg.Cache.TTL,
		Breaker:  c.Breaker,
		Metrics:  c.Metrics,
		Logger:   c.Logger,
	}
	c.TranscriptService = service.NewTranscriptService(c.TranscriptRepo, deps)
	c.FeedbackService = service.NewFeedbackService(c.FeedbackRepo, deps)

	return c, nil
}

// setupCache picks Redis when a URL is configured, the in-process cache otherwise
func (c *Container) setupCache(ctx context.Context) {
	cfg := c.Config
	if !cfg.Cache.Enabled {
		return
	}

	redisURL := c.Secrets.GetSecretWithDefault(ctx, secrets.KeyRedisURL, cfg.Cache.RedisURL)
	if redisURL != "" {
		redisOpts, err := cache.RedisOptions(redisURL)
		if err == nil {
			store := cache.NewRedisStore(redisOpts, "dpchat:")
			c.Cache = store
			c.closers = append(c.closers, func(context.Context) error { return store.Close() })
			c.Health.RegisterCacheCheck(store.Ping)
			c.Logger.Info("Using Redis read cache", "addr", redisOpts.Addr)
			return
		}
		c.Logger.LogError(err, "Invalid REDIS_URL, falling back to in-process cache")
	}

	mem := cache.NewCache(cfg.Cache.PurgeWindow, 10000)
	c.Cache = mem
	c.closers = append(c.closers, func(context.Context) error { return mem.Close() })
}

// Close releases resources in reverse order of creation
func (c *Container) Close(ctx context.Context) error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	return errors.Join(errs...)
}
