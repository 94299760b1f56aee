// Package main is the entrypoint for the listkeeper bot.
package main

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"regexp"
	"strings"

	"github.com/joho/godotenv"

	"github.com/listkeeper/listkeeper/internal/bot"
	"github.com/listkeeper/listkeeper/internal/cache"
	"github.com/listkeeper/listkeeper/internal/config"
	"github.com/listkeeper/listkeeper/internal/handler"
	"github.com/listkeeper/listkeeper/internal/metrics"
	"github.com/listkeeper/listkeeper/internal/repository"
	"github.com/listkeeper/listkeeper/internal/server"
	"github.com/listkeeper/listkeeper/internal/service"
)

func main() {
	ctx := context.Background()

	// A local .env is optional; real deployments set the environment directly.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Error("failed to read .env", "error", err)
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := initLogger(cfg)

	projects, err := config.LoadProjects(cfg.ProjectsFile)
	if err != nil {
		logger.Error("failed to load projects", "path", cfg.ProjectsFile, "error", err)
		os.Exit(1)
	}
	logger.Info("projects loaded", "count", len(projects.All()))

	// Entry store
	var (
		store       service.Store
		storeHealth handler.HealthChecker
		closeStore  = func() {}
	)
	switch cfg.StoreDriver {
	case config.StoreDriverMemory:
		mem := repository.NewMemoryStore()
		store, storeHealth = mem, mem
		logger.Warn("using in-memory entry store; entries are lost on restart")
	default:
		repo, err := repository.New(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error(
				"failed to connect to database",
				slog.String("error", sanitizeError(err, cfg.DatabaseURL)),
				slog.String("database_url", redactURL(cfg.DatabaseURL)),
			)
			os.Exit(1)
		}
		store, storeHealth, closeStore = repo, repo, repo.Close
		logger.Info("connected to database")
	}

	// Cache
	cacheClient, err := cache.New(ctx, cfg.RedisURL)
	if err != nil {
		logger.Error(
			"failed to connect to Redis",
			slog.String("error", sanitizeError(err, cfg.RedisURL)),
			slog.String("redis_url", redactURL(cfg.RedisURL)),
		)
		closeStore()
		os.Exit(1)
	}
	logger.Info("connected to Redis")

	// Services
	metricsRecorder := metrics.NewInMemory()
	entries := service.NewEntryService(store, service.Options{
		Cache:        cacheClient,
		CountTTL:     cfg.CountCacheTTL,
		StoreTimeout: cfg.StoreTimeout,
		Metrics:      metricsRecorder,
		Logger:       logger,
	})

	communities := make(map[string]*bot.Community)
	for _, p := range projects.All() {
		community, err := bot.NewCommunity(p, entries, nil)
		if err != nil {
			logger.Error("invalid project", "project", p.Name, "error", err)
			os.Exit(1)
		}
		communities[p.GuildID] = community
	}

	// Chat gateway
	b := bot.New(communities, bot.Options{
		Prefix:  cfg.CommandPrefix,
		Limiter: cacheClient,
		Metrics: metricsRecorder,
		Logger:  logger.With("component", "bot"),
	})

	session, err := bot.NewSession(cfg.DiscordToken)
	if err != nil {
		logger.Error("failed to create discord session", "error", err)
		os.Exit(1)
	}
	gateway := bot.NewDiscord(session, b, logger.With("component", "discord"))

	// HTTP surface
	router := server.NewRouter(server.RouterConfig{
		Logger:   logger,
		Projects: projects,
		Entries:  entries,
		Metrics:  metricsRecorder,
		Health: []handler.Dependency{
			{Name: "store", Checker: storeHealth},
			{Name: "redis", Checker: cacheClient},
			{Name: "discord", Checker: gateway},
		},
		AdminTokenHash:   cfg.AdminTokenHash,
		TokenCache:       cacheClient,
		Limiter:          cacheClient,
		RateLimitEnabled: cfg.RateLimitAdminEnabled,
		RateLimitRPS:     cfg.RateLimitAdminRPS,
		RateLimitBurst:   cfg.RateLimitAdminBurst,
	})

	srv := server.New(router, server.Options{
		Port:            cfg.HTTPPort,
		ReadTimeout:     cfg.ReadTimeout,
		WriteTimeout:    cfg.WriteTimeout,
		ShutdownTimeout: cfg.ShutdownTimeout,
		Logger:          logger,
	})

	// Registered first, stopped last.
	srv.OnShutdown("store", func(context.Context) error {
		closeStore()
		return nil
	})
	srv.OnShutdown("redis", func(context.Context) error {
		return cacheClient.Close()
	})
	srv.OnShutdown("discord", func(context.Context) error {
		return gateway.Close()
	})

	if err := gateway.Open(); err != nil {
		logger.Error("failed to connect to discord", "error", err)
		_ = cacheClient.Close()
		closeStore()
		os.Exit(1)
	}

	logger.Info("starting listkeeper",
		"port", cfg.HTTPPort,
		"env", cfg.AppEnv,
		"store", cfg.StoreDriver,
		"admin_api", cfg.AdminAPIEnabled(),
	)

	if err := srv.Run(ctx); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

// initLogger initializes the slog logger based on configuration.
func initLogger(cfg *config.Config) *slog.Logger {
	var h slog.Handler

	opts := &slog.HandlerOptions{
		Level:     parseLogLevel(cfg.LogLevel),
		AddSource: cfg.IsDevelopment(),
	}

	if cfg.LogFormat == "json" {
		h = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		h = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(h)
	slog.SetDefault(logger)

	return logger
}

// parseLogLevel converts string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

var passwordPattern = regexp.MustCompile(`(?i)password=[^\s]+`)

// redactURL strips passwords from connection strings before logging.
func redactURL(raw string) string {
	if raw == "" {
		return ""
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "[redacted]"
	}

	if parsed.User != nil {
		username := parsed.User.Username()
		if username == "" {
			parsed.User = url.User("redacted")
		} else {
			parsed.User = url.User(username)
		}
	}

	return parsed.String()
}

func sanitizeError(err error, secrets ...string) string {
	if err == nil {
		return ""
	}

	msg := err.Error()
	for _, secret := range secrets {
		if secret == "" {
			continue
		}
		redacted := redactURL(secret)
		if redacted == "" {
			redacted = "[redacted]"
		}
		msg = strings.ReplaceAll(msg, secret, redacted)
	}

	return passwordPattern.ReplaceAllString(msg, "password=redacted")
}
