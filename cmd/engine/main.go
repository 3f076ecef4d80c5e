// Package main - точка входа движка геймификации.
//
// Один процесс обслуживает весь движок:
// - REST API для приёма событий и чтения состояния
// - пересчёт снапшотов лидербордов по расписанию
// - уведомления о новых уровнях, бейджах и челленджах
//
// Источник истины - журнал событий. Всё остальное (баллы, уровни, серии,
// бейджи, челленджи, лидерборды) выводится из него и может быть
// восстановлено переигрыванием.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/listora/gamification-engine/config"
	"github.com/listora/gamification-engine/internal/application/command"
	"github.com/listora/gamification-engine/internal/application/eventhandler"
	"github.com/listora/gamification-engine/internal/application/query"
	"github.com/listora/gamification-engine/internal/application/store"
	"github.com/listora/gamification-engine/internal/domain/badge"
	"github.com/listora/gamification-engine/internal/domain/points"
	"github.com/listora/gamification-engine/internal/domain/streak"
	"github.com/listora/gamification-engine/internal/infrastructure/messaging"
	"github.com/listora/gamification-engine/internal/infrastructure/persistence/memory"
	"github.com/listora/gamification-engine/internal/infrastructure/persistence/postgres"
	"github.com/listora/gamification-engine/internal/infrastructure/persistence/redis"
	"github.com/listora/gamification-engine/internal/infrastructure/scheduler"
	"github.com/listora/gamification-engine/internal/infrastructure/scheduler/jobs"
	"github.com/listora/gamification-engine/internal/infrastructure/service"
	httpapi "github.com/listora/gamification-engine/internal/interface/http"
	"github.com/listora/gamification-engine/internal/interface/http/handlers"
	"github.com/listora/gamification-engine/pkg/logger"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. ЗАГРУЗКА КОНФИГУРАЦИИ
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. НАСТРОЙКА ЛОГИРОВАНИЯ
	// ─────────────────────────────────────────────────────────────────────────
	log := setupLogger(cfg)
	slog.SetDefault(log)
	log.Info("starting gamification engine",
		"env", string(cfg.App.Environment),
		"version", cfg.App.Version,
		"timezone", cfg.Engine.DefaultTimezone,
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 3. ДОМЕННЫЕ ПРАВИЛА
	// ─────────────────────────────────────────────────────────────────────────
	levels := points.DefaultLevelTable()
	if err := levels.Validate(); err != nil {
		return fmt.Errorf("invalid level table: %w", err)
	}
	streakTypes := streak.DefaultTypes()
	catalogue := badge.DefaultCatalogue()

	// ─────────────────────────────────────────────────────────────────────────
	// 4. ХРАНИЛИЩЕ: POSTGRESQL ИЛИ ПАМЯТЬ
	// ─────────────────────────────────────────────────────────────────────────
	var st store.Store
	var pgStore *postgres.Store

	if cfg.Database.URL != "" {
		log.Info("connecting to database...")
		conn, err := postgres.NewConnectionFromURL(ctx, cfg.Database.URL)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer func() {
			log.Info("closing database connection...")
			conn.Close()
		}()

		if err := conn.Ping(ctx); err != nil {
			return fmt.Errorf("database ping failed: %w", err)
		}

		pgStore = postgres.NewStore(conn, catalogue)
		if cfg.Database.AutoMigrate {
			log.Info("checking database migrations...")
			if err := pgStore.Migrate(ctx); err != nil {
				return fmt.Errorf("failed to run migrations: %w", err)
			}
			log.Info("database schema is up to date")
		}
		st = pgStore
	} else {
		log.Warn("DATABASE_URL is not set, using in-memory store (state is lost on restart)")
		memStore := memory.NewStore()
		memStore.SeedBadges(catalogue)
		st = memStore
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 5. REDIS (опционально, только ускоритель чтения лидербордов)
	// ─────────────────────────────────────────────────────────────────────────
	var redisCache *redis.Cache
	var leaderboardCache *redis.LeaderboardCache

	if !cfg.Redis.Disabled && cfg.Features.IsEnabled(config.FeatureLeaderboardCache, nil) {
		log.Info("connecting to Redis...")
		redisCfg := redis.DefaultConfig()
		redisCfg.Host = cfg.Redis.Host
		redisCfg.Port = cfg.Redis.Port
		redisCfg.Password = cfg.Redis.Password
		redisCfg.DB = cfg.Redis.DB
		redisCfg.PoolSize = cfg.Redis.PoolSize
		redisCfg.MinIdleConns = cfg.Redis.MinIdleConns
		redisCfg.DialTimeout = cfg.Redis.DialTimeout
		redisCfg.ReadTimeout = cfg.Redis.ReadTimeout
		redisCfg.WriteTimeout = cfg.Redis.WriteTimeout

		cache, err := redis.NewCache(redisCfg)
		if err != nil {
			log.Warn("failed to connect to Redis, leaderboard cache disabled", "error", err)
		} else {
			defer cache.Close()
			redisCache = cache
			leaderboardCache = redis.NewLeaderboardCache(cache)
			log.Info("Redis connection established")
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 6. EVENT BUS И УВЕДОМЛЕНИЯ
	// ─────────────────────────────────────────────────────────────────────────
	busConfig := messaging.DefaultInMemoryEventBusConfig()
	busConfig.Logger = log
	bus := messaging.NewInMemoryEventBus(busConfig)
	defer func() {
		log.Info("closing event bus...")
		_ = bus.Close()
	}()

	notifier := service.NewBreakerNotifier(service.NewLogNotifier(log), log)

	if cfg.Features.IsEnabled(config.FeatureNotifyLevelUp, nil) {
		if err := eventhandler.NewOnLevelChangedHandler(levels, notifier, log).Register(bus); err != nil {
			return fmt.Errorf("failed to register level handler: %w", err)
		}
	}
	if cfg.Features.IsEnabled(config.FeatureNotifyBadgeUnlocked, nil) {
		if err := eventhandler.NewOnBadgeUnlockedHandler(catalogue, notifier, log).Register(bus); err != nil {
			return fmt.Errorf("failed to register badge handler: %w", err)
		}
	}
	if cfg.Features.IsEnabled(config.FeatureNotifyChallengeCompleted, nil) {
		if err := eventhandler.NewOnChallengeCompletedHandler(st, notifier, log).Register(bus); err != nil {
			return fmt.Errorf("failed to register challenge handler: %w", err)
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 7. ОБРАБОТЧИКИ КОМАНД И ЗАПРОСОВ
	// ─────────────────────────────────────────────────────────────────────────
	defaultLoc := cfg.Engine.DefaultLocation

	categories := cfg.Engine.LeaderboardCategories
	if !cfg.Features.IsEnabled(config.FeatureLeaderboardCategoryBoards, nil) {
		categories = nil
	}

	// Типизированный nil в интерфейсе ломает проверки на nil,
	// поэтому интерфейсные переменные заполняются только при живом кеше.
	var rebuildCache command.LeaderboardCache
	var readCache query.LeaderboardCacheReader
	if leaderboardCache != nil {
		rebuildCache = leaderboardCache
		readCache = leaderboardCache
	}

	submitHandler := command.NewSubmitEventHandler(st, bus, levels, streakTypes, defaultLoc, log)
	registerHandler := command.NewRegisterUserHandler(st, log)
	replayHandler := command.NewReplayLedgerHandler(st, levels, streakTypes, defaultLoc, log)
	rebuildHandler := command.NewRebuildLeaderboardsHandler(st, rebuildCache, bus, categories, defaultLoc, log)

	dashboardHandler := query.NewGetDashboardHandler(st, levels, streakTypes)
	leaderboardHandler := query.NewGetLeaderboardHandler(st, readCache)
	badgesHandler := query.NewListBadgesHandler(st)
	challengesHandler := query.NewListChallengesHandler(st)

	// ─────────────────────────────────────────────────────────────────────────
	// 8. ПЛАНИРОВЩИК
	// ─────────────────────────────────────────────────────────────────────────
	if cfg.Scheduler.Enabled {
		sched := scheduler.NewScheduler(scheduler.SchedulerConfig{
			Logger:   log,
			Timezone: defaultLoc,
		})

		rebuildJob := jobs.NewRebuildLeaderboardsJob(rebuildHandler, log)
		if err := sched.Register(rebuildJob, scheduler.NewIntervalSchedule(cfg.Scheduler.RebuildLeaderboardInterval)); err != nil {
			return fmt.Errorf("failed to register rebuild job: %w", err)
		}

		// Обрезка снапшотов имеет смысл только для PostgreSQL.
		if pgStore != nil {
			pruneSchedule, err := scheduler.ParseCronSchedule(cfg.Scheduler.PruneSnapshotsCron)
			if err != nil {
				return fmt.Errorf("invalid SCHEDULER_PRUNE_CRON: %w", err)
			}
			pruneJob := jobs.NewPruneSnapshotsJob(pgStore, cfg.Scheduler.SnapshotRetention, log)
			if err := sched.Register(pruneJob, pruneSchedule); err != nil {
				return fmt.Errorf("failed to register prune job: %w", err)
			}
		}

		if err := sched.Start(ctx); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
		defer func() {
			log.Info("stopping scheduler...")
			_ = sched.Stop()
		}()
		log.Info("scheduler started",
			"rebuild_interval", cfg.Scheduler.RebuildLeaderboardInterval.String(),
			"prune_cron", cfg.Scheduler.PruneSnapshotsCron,
		)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 9. HTTP СЕРВЕР
	// ─────────────────────────────────────────────────────────────────────────
	healthChecker := buildHealthChecker(pgStore, redisCache)

	httpLog := logger.New(logger.Options{
		Output: os.Stdout,
		Level:  logger.ParseLevel(cfg.Observability.LogLevel),
	})

	serverCfg := httpapi.DefaultConfig()
	serverCfg.Host = cfg.HTTP.Host
	serverCfg.Port = cfg.HTTP.Port
	serverCfg.ReadTimeout = cfg.HTTP.ReadTimeout
	serverCfg.WriteTimeout = cfg.HTTP.WriteTimeout
	serverCfg.IdleTimeout = cfg.HTTP.IdleTimeout
	serverCfg.EnableCORS = cfg.HTTP.EnableCORS
	serverCfg.AllowedOrigins = cfg.HTTP.AllowedOrigins
	serverCfg.EnableMetrics = cfg.Observability.MetricsEnabled
	serverCfg.RateLimitPerMinute = cfg.HTTP.RateLimitPerMinute
	serverCfg.APIKeyHeader = cfg.HTTP.APIKeyHeader
	serverCfg.APIKeyHashes = cfg.HTTP.APIKeyHashes

	server := httpapi.NewServer(serverCfg, httpapi.Dependencies{
		SubmitEventHandler:         submitHandler,
		RegisterUserHandler:        registerHandler,
		ReplayLedgerHandler:        replayHandler,
		RebuildLeaderboardsHandler: rebuildHandler,
		GetDashboardHandler:        dashboardHandler,
		GetLeaderboardHandler:      leaderboardHandler,
		ListBadgesHandler:          badgesHandler,
		ListChallengesHandler:      challengesHandler,
		Logger:                     httpLog,
		HealthChecker:              healthChecker,
	})

	serverErr := server.StartAsync()
	log.Info("gamification engine is running", "address", server.Address())

	// ─────────────────────────────────────────────────────────────────────────
	// 10. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	select {
	case sig := <-sigCh:
		log.Info("received shutdown signal", "signal", sig.String())
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
	}

	log.Info("starting graceful shutdown...", "timeout", cfg.App.ShutdownTimeout.String())

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("http server shutdown failed", "error", err)
	}

	log.Info("shutdown completed successfully")
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// setupLogger настраивает структурированное логирование.
func setupLogger(cfg *config.Config) *slog.Logger {
	var level slog.Level
	switch cfg.Observability.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Observability.LogFormat == "text" || cfg.App.Debug {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}

// buildHealthChecker собирает проверки доступных зависимостей.
func buildHealthChecker(pgStore *postgres.Store, cache *redis.Cache) handlers.HealthChecker {
	if pgStore == nil && cache == nil {
		return handlers.NewNoopHealthChecker()
	}

	checker := handlers.NewCompositeHealthChecker()
	if pgStore != nil {
		checker.AddCheck("database", handlers.NewDatabaseCheck(pgStore))
	}
	if cache != nil {
		checker.AddCheck("cache", handlers.NewCacheCheck(cache))
	}
	return checker
}
