package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/simp-lee/logger"
	"gorm.io/gorm"

	"github.com/simp-lee/hexa/internal/cache"
	"github.com/simp-lee/hexa/internal/config"
	"github.com/simp-lee/hexa/internal/domain"
	"github.com/simp-lee/hexa/internal/middleware"
	"github.com/simp-lee/hexa/internal/module/access"
	"github.com/simp-lee/hexa/internal/module/auth"
	"github.com/simp-lee/hexa/internal/module/product"
	"github.com/simp-lee/hexa/internal/module/user"
	"github.com/simp-lee/hexa/internal/store/gormstore"
	"github.com/simp-lee/hexa/internal/store/mongostore"
)

const (
	connectTimeout  = 30 * time.Second
	shutdownTimeout = 5 * time.Second
	defaultTimeout  = 30 * time.Second
)

// component is the lifecycle surface shared by the storage adapters.
type component interface {
	Name() string
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error
	Ping(ctx context.Context) error
}

// App holds the core application dependencies and the HTTP server.
type App struct {
	engine     *gin.Engine
	logger     *logger.Logger
	cfg        *config.Config
	components []component
}

type httpServer interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
}

var newHTTPServer = func(addr string, handler http.Handler, timeout time.Duration) httpServer {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       timeout,
		WriteTimeout:      2 * timeout,
		IdleTimeout:       120 * time.Second,
	}
}

var notifyContext = func(parent context.Context, signals ...os.Signal) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, signals...)
}

// wiring collects what New builds before the App is assembled.
type wiring struct {
	cfg        *config.Config
	log        *slog.Logger
	db         *gorm.DB
	redis      *cache.Adapter
	mongo      *mongostore.Adapter
	components []component
}

// New creates and wires a fully configured App from the given Config.
//
// It sets up logging, connects the database and the optional Redis and
// MongoDB backends, migrates and seeds the schema, and mounts the
// middleware chain and module routes.
func New(cfg *config.Config) (*App, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	if err := validateGinMode(cfg.Server.Mode); err != nil {
		return nil, err
	}

	success := false

	log, err := config.SetupLogger(&cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("setup logger: %w", err)
	}
	defer func() {
		if success {
			return
		}
		if err := log.Close(); err != nil {
			slog.Error("logger close error", slog.Any("error", err))
		}
	}()

	if cfg.Server.Mode == gin.DebugMode && cfg.Server.Host == "0.0.0.0" {
		log.Warn("insecure server config: debug mode on 0.0.0.0 may expose debug behavior and permissive CORS")
	}

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	w := &wiring{cfg: cfg, log: log.Logger}
	defer func() {
		if !success {
			w.disconnect(context.Background())
		}
	}()

	if err := w.connect(ctx); err != nil {
		return nil, err
	}
	if err := w.migrate(ctx); err != nil {
		return nil, err
	}

	gin.SetMode(cfg.Server.Mode)
	engine := gin.New()

	metrics, err := w.useMiddleware(engine)
	if err != nil {
		return nil, err
	}

	deps := &RouteDeps{Modules: w.modules()}
	for _, c := range w.components {
		deps.Checks = append(deps.Checks, c)
	}
	if metrics != nil {
		deps.Metrics = metrics
		deps.MetricsPath = cfg.Metrics.Path
	}
	if err := RegisterRoutes(engine, deps); err != nil {
		return nil, fmt.Errorf("register routes: %w", err)
	}

	success = true
	return &App{
		engine:     engine,
		logger:     log,
		cfg:        cfg,
		components: w.components,
	}, nil
}

// connect opens the SQL database and, when enabled, Redis and MongoDB.
func (w *wiring) connect(ctx context.Context) error {
	db := config.NewDatabaseAdapter(&w.cfg.Database, w.log)
	if err := w.open(ctx, db); err != nil {
		return err
	}
	w.db = db.Client()

	if w.cfg.Redis.Enabled {
		w.redis = cache.NewAdapter(cache.Config{
			Addr:           w.cfg.Redis.Addr,
			Password:       w.cfg.Redis.Password,
			DB:             w.cfg.Redis.DB,
			ConnectRetries: w.cfg.Redis.ConnectRetries,
		})
		if err := w.open(ctx, w.redis); err != nil {
			return err
		}
	}

	if w.cfg.Mongo.Enabled {
		w.mongo = mongostore.NewAdapter(mongostore.Config{
			URI:            w.cfg.Mongo.URI,
			Database:       w.cfg.Mongo.Database,
			ConnectTimeout: config.ParseDuration(w.cfg.Mongo.ConnectTimeout, 10*time.Second),
			ConnectRetries: w.cfg.Mongo.ConnectRetries,
		})
		if err := w.open(ctx, w.mongo); err != nil {
			return err
		}
	}
	return nil
}

func (w *wiring) open(ctx context.Context, c component) error {
	if err := c.Connect(ctx); err != nil {
		return fmt.Errorf("connect %s: %w", c.Name(), err)
	}
	w.components = append(w.components, c)
	w.log.Info("backend connected", slog.String("backend", c.Name()))
	return nil
}

func (w *wiring) disconnect(ctx context.Context) {
	disconnectAll(ctx, w.log, w.components)
}

// migrate creates the schema in debug mode or when database.auto_migrate is
// set, then seeds the default roles when auth is on.
func (w *wiring) migrate(ctx context.Context) error {
	if w.cfg.Server.Mode != gin.DebugMode && !w.cfg.Database.AutoMigrate {
		return nil
	}

	models := []any{&domain.User{}}
	if !w.cfg.Mongo.Enabled {
		models = append(models, &product.Product{})
	}
	models = append(models, access.Models()...)
	if err := w.db.WithContext(ctx).AutoMigrate(models...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	w.log.Info("auto migration completed", slog.Int("models", len(models)))

	if w.cfg.Auth.Enabled {
		if err := access.Seed(ctx, w.db); err != nil {
			return fmt.Errorf("seed access control: %w", err)
		}
		w.log.Info("access control seeded")
	}
	return nil
}

// useMiddleware installs the global chain. The returned Metrics is nil when
// metrics are disabled.
func (w *wiring) useMiddleware(engine *gin.Engine) (*middleware.Metrics, error) {
	cfg := w.cfg
	engine.Use(
		middleware.Recovery(w.log),
		middleware.RequestIDWithConfig(middleware.RequestIDConfig{
			TrustUpstream: false,
		}),
		middleware.LoggerWithConfig(middleware.LoggerConfig{
			Logger:    w.log,
			SkipPaths: []string{"/health", cfg.Metrics.Path},
		}),
		middleware.CORSWithConfig(resolveCORSConfig(cfg.Server.Mode, cfg.Server.CORS)),
	)

	var metrics *middleware.Metrics
	if cfg.Metrics.Enabled {
		metrics = middleware.NewMetrics()
		engine.Use(metrics.Middleware())
	}

	if cfg.RateLimit.Enabled {
		rl := middleware.RateLimitConfig{
			Window:  config.ParseDuration(cfg.RateLimit.Window, time.Minute),
			Max:     cfg.RateLimit.Max,
			Message: cfg.RateLimit.Message,
			Logger:  w.log,
			Skip: func(c *gin.Context) bool {
				p := c.Request.URL.Path
				return p == "/health" || (cfg.Metrics.Enabled && p == cfg.Metrics.Path)
			},
		}
		switch cfg.RateLimit.Store {
		case "redis":
			if w.redis == nil {
				return nil, errors.New("rate_limit.store redis requires redis to be enabled")
			}
			rl.Store = middleware.NewRedisRateLimitStore(w.redis.Client(), cfg.Redis.KeyPrefix)
		default:
			rl.Store = middleware.NewMemoryRateLimitStore()
		}
		engine.Use(middleware.RateLimit(rl))
	}
	return metrics, nil
}

// modules builds every resource module. Auth and access are mounted only
// when auth is enabled; otherwise the guard is nil and nothing is protected.
func (w *wiring) modules() []Module {
	cfg := w.cfg
	users := user.NewService(user.NewRepository(w.db))

	var (
		guard   *middleware.Guard
		authMod Module
	)
	if cfg.Auth.Enabled {
		var sessions *cache.SessionStore
		if w.redis != nil {
			sessions = cache.NewSessionStore(w.redis.Client(), cfg.Redis.KeyPrefix,
				config.ParseDuration(cfg.Session.TTL, cache.DefaultSessionTTL))
		}
		authSvc := auth.NewService(users, auth.Config{
			Secret:      cfg.Auth.JWTSecret,
			TokenExpiry: config.ParseDuration(cfg.Auth.TokenExpiry, auth.DefaultTokenExpiry),
			Sessions:    sessions,
		})

		var permCache *middleware.PermissionCache
		if cfg.Auth.PermissionCacheEnabled() {
			permCache = middleware.NewPermissionCache(
				config.ParseDuration(cfg.Auth.PermissionCache.TTL, middleware.DefaultPermissionCacheTTL))
		}
		authorizer := middleware.NewAuthorizer(access.NewLoader(w.db),
			middleware.WithPermissionCache(permCache),
			middleware.WithAuthorizerLogger(w.log),
		)
		guard = middleware.NewGuard(middleware.Auth(middleware.AuthConfig{
			Secret:      cfg.Auth.JWTSecret,
			UserDetails: authSvc.UserDetails,
			Logger:      w.log,
		}), authorizer)
		authMod = auth.NewModule(auth.NewHandler(authSvc, w.log), guard)
	}

	mods := []Module{user.NewModule(user.NewHandler(users, w.log), guard)}

	if w.mongo != nil {
		mods = append(mods, product.NewMongoModule(w.mongo.Database(), guard, w.log))
	} else {
		mods = append(mods, product.NewSQLModule(w.db, guard, w.log))
	}

	if authMod != nil {
		mods = append(mods, authMod, access.NewModule(access.NewHandler(w.db, guard.Authorizer(), w.log), guard))
	}
	return mods
}

// resolveCORSConfig merges configured CORS settings over the defaults. In
// release mode with no allowlist, cross-origin requests are denied.
func resolveCORSConfig(mode string, cfg config.CORSConfig) middleware.CORSConfig {
	out := middleware.DefaultCORSConfig()

	switch {
	case len(cfg.AllowOrigins) > 0:
		out.AllowOrigins = cfg.AllowOrigins
	case mode == gin.ReleaseMode:
		out.AllowOrigins = []string{}
	}
	if len(cfg.AllowMethods) > 0 {
		out.AllowMethods = cfg.AllowMethods
	}
	if len(cfg.AllowHeaders) > 0 {
		out.AllowHeaders = cfg.AllowHeaders
	}
	out.AllowCredentials = cfg.AllowCredentials
	if cfg.MaxAge != "" {
		if d, err := time.ParseDuration(cfg.MaxAge); err == nil && d > 0 {
			out.MaxAge = d
		}
	}
	return out
}

func validateGinMode(mode string) error {
	switch mode {
	case gin.DebugMode, gin.ReleaseMode, gin.TestMode:
		return nil
	default:
		return fmt.Errorf("invalid server.mode %q: must be one of %q, %q, %q", mode, gin.DebugMode, gin.ReleaseMode, gin.TestMode)
	}
}

// Handler returns the root HTTP handler.
func (a *App) Handler() http.Handler {
	return a.engine
}

// Run starts the HTTP server and blocks until a shutdown signal is received.
// It shuts the server down gracefully, then disconnects every backend.
func (a *App) Run() error {
	if a == nil {
		return errors.New("app is nil")
	}
	if a.cfg == nil {
		return errors.New("app config is nil")
	}
	if a.engine == nil {
		return errors.New("app engine is nil")
	}

	addr := fmt.Sprintf("%s:%d", a.cfg.Server.Host, a.cfg.Server.Port)
	srv := newHTTPServer(addr, a.engine, config.ParseDuration(a.cfg.Server.Timeout, defaultTimeout))

	ctx, stop := notifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log := a.log()

	errCh := make(chan error, 1)
	go func() {
		log.Info("server started", slog.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-errCh:
		runErr = fmt.Errorf("server error: %w", err)
	}

	if runErr == nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("server shutdown error", slog.Any("error", err))
		}
	}

	a.Close()
	return runErr
}

// Close disconnects every backend in reverse connection order and closes
// the logger. It is safe to call more than once.
func (a *App) Close() {
	log := a.log()
	closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	disconnectAll(closeCtx, log, a.components)
	a.components = nil

	log.Info("server stopped")
	if a.logger != nil {
		if err := a.logger.Close(); err != nil {
			slog.Error("logger close error", slog.Any("error", err))
		}
		a.logger = nil
	}
}

func (a *App) log() *slog.Logger {
	if a.logger != nil {
		return a.logger.Logger
	}
	return slog.Default()
}

func disconnectAll(ctx context.Context, log *slog.Logger, components []component) {
	for _, c := range slices.Backward(components) {
		if err := c.Disconnect(ctx); err != nil {
			log.Error("backend disconnect error", slog.String("backend", c.Name()), slog.Any("error", err))
			continue
		}
		log.Info("backend disconnected", slog.String("backend", c.Name()))
	}
}

var (
	_ component = (*gormstore.Adapter)(nil)
	_ component = (*cache.Adapter)(nil)
	_ component = (*mongostore.Adapter)(nil)
)
