package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/frahmantamala/attendance-management/internal"
	"github.com/frahmantamala/attendance-management/internal/attendance"
	attendancePostgres "github.com/frahmantamala/attendance-management/internal/attendance/postgres"
	"github.com/frahmantamala/attendance-management/internal/auth"
	"github.com/frahmantamala/attendance-management/internal/core/events"
	"github.com/frahmantamala/attendance-management/internal/feed"
	"github.com/frahmantamala/attendance-management/internal/identity"
	identityPostgres "github.com/frahmantamala/attendance-management/internal/identity/postgres"
	"github.com/frahmantamala/attendance-management/internal/report"
	reportPostgres "github.com/frahmantamala/attendance-management/internal/report/postgres"
	"github.com/frahmantamala/attendance-management/internal/transport"
	"github.com/frahmantamala/attendance-management/internal/transport/rest"
	"github.com/frahmantamala/attendance-management/internal/transport/swagger"
	"github.com/frahmantamala/attendance-management/pkg/logger"

	"github.com/go-chi/chi"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

var httpServerCmd = &cobra.Command{
	Use:   "server",
	Short: "Start HTTP server",
	Long:  `Start the HTTP server to handle API requests and live attendance feeds`,
	Run: func(cmd *cobra.Command, args []string) {
		startHTTPServer()
	},
}

type Dependencies struct {
	Config *internal.Config
	DB     *gorm.DB
	SQLX   *sqlx.DB
	Redis  redis.UniversalClient
	Router *chi.Mux
	Bus    *events.EventBus
	Hub    *feed.Hub
	Store  *attendancePostgres.Store
	Socket *feed.SocketHandler
	Logger *slog.Logger
}

func startHTTPServer() {
	deps, err := initializeDependencies()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize dependencies: %v\n", err)
		os.Exit(1)
	}
	lg := deps.Logger

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if _, err := swagger.Load(ctx, deps.Config.Server.OpenAPIPath); err != nil {
		lg.Warn("openapi document not served", "error", err)
	}

	startFeed(ctx, deps)
	go deps.Socket.Run(ctx)

	addr := fmt.Sprintf(":%d", deps.Config.Server.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           deps.Router,
		ReadHeaderTimeout: deps.Config.Server.ReadHeaderTimeout,
		ReadTimeout:       deps.Config.Server.ReadTimeout,
		WriteTimeout:      deps.Config.Server.WriteTimeout,
		IdleTimeout:       deps.Config.Server.IdleTimeout,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		lg.Info("Starting HTTP server", "address", addr, "feed_driver", deps.Config.Events.FeedDriver)
		serverErrChan <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		lg.Info("Received signal, shutting down...")
	case err := <-serverErrChan:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}

	// open streams only return once their subscription ends
	deps.Hub.Close()
	_ = deps.Socket.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		lg.Error("Server shutdown error", "error", err)
	}
	if deps.Redis != nil {
		_ = deps.Redis.Close()
	}
	if err := deps.SQLX.Close(); err != nil {
		lg.Error("Database close error", "error", err)
	}

	lg.Info("Server stopped")
}

// startFeed connects the live hub to committed events with the configured
// driver.
func startFeed(ctx context.Context, deps *Dependencies) {
	cfg := deps.Config.Events
	switch cfg.FeedDriver {
	case "redis":
		broker := feed.NewRedisBroker(deps.Redis, cfg.RedisChannel, deps.Hub, deps.Logger)
		deps.Bus.SubscribeAll(events.AttendanceEventTypes, broker.Publish)
		deps.Hub.SetAvailable(false)
		go broker.Run(ctx)
	case "poll":
		poller := feed.NewLogPoller(deps.Store, feed.Each(deps.Hub.Deliver), feed.PollerOptions{
			Name:     "live-feed",
			Interval: cfg.PollInterval,
			GapGrace: cfg.GapGrace,
			OnHealth: deps.Hub.SetAvailable,
		}, deps.Logger)
		go poller.Run(ctx)
	default:
		deps.Bus.SubscribeAll(events.AttendanceEventTypes, deps.Hub.HandleEvent)
	}
}

func initializeDependencies() (*Dependencies, error) {
	cfg, err := loadRuntime()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	lg := logger.LoggerWrapper()

	db, sqlxDB, err := initDB(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	rdb := initRedis(cfg.Redis)

	loc, err := cfg.Attendance.Location()
	if err != nil {
		return nil, fmt.Errorf("failed to load timezone: %w", err)
	}

	base := transport.NewBaseHandler(lg)
	checker := auth.NewPermissionChecker()
	tokens := auth.NewJWTTokenGenerator(cfg.Security.JWTSecret, cfg.Security.Issuer, cfg.Security.AccessTokenDuration)

	bus := events.NewEventBus(lg)
	hub := feed.NewHub(cfg.Events.SubscriberBuffer, lg)

	identityService := identity.NewService(identityPostgres.NewIdentityRepository(db), lg)

	store := attendancePostgres.NewStore(db, lg)
	attendanceService := attendance.NewService(store, identityService, bus, attendance.Options{
		Location:     loc,
		LateAfter:    cfg.Attendance.LateAfterOffset(),
		ScanDebounce: cfg.Attendance.ScanDebounce,
	}, lg)

	reportService := newReportService(cfg, sqlxDB, rdb, loc, lg)

	health := rest.NewHealthHandler(sqlxDB.DB, rdb)
	health.AddCheck("feed", func(context.Context) error {
		if !hub.Available() {
			return feed.ErrFeedUnavailable
		}
		return nil
	})

	socket := feed.NewSocketHandler(base, hub, checker)

	router := chi.NewRouter()
	rest.RegisterAllRoutes(router, rest.Handlers{
		Health:     health,
		Identity:   identity.NewHandler(base, identityService),
		Attendance: attendance.NewHandler(base, attendanceService),
		Report:     report.NewHandler(base, reportService),
		Stream:     feed.NewStreamHandler(base, hub, checker, cfg.Events.Heartbeat),
		Socket:     socket,
	}, tokens, rest.RouterConfig{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		OpenAPIPath:    cfg.Server.OpenAPIPath,
	}, lg)

	return &Dependencies{
		Config: cfg,
		DB:     db,
		SQLX:   sqlxDB,
		Redis:  rdb,
		Router: router,
		Bus:    bus,
		Hub:    hub,
		Store:  store,
		Socket: socket,
		Logger: lg,
	}, nil
}

// newReportService caches past-day summaries in redis when it is enabled.
func newReportService(cfg *internal.Config, db *sqlx.DB, rdb redis.UniversalClient, loc *time.Location, lg *slog.Logger) *report.Service {
	var cache report.Cache
	if rdb != nil {
		cache = report.NewRedisCache(rdb, cfg.App.Name+":")
	}
	return report.NewService(reportPostgres.NewReportRepository(db), cache, report.Options{
		Location:     loc,
		LateAfter:    cfg.Attendance.LateAfterOffset(),
		MaxRangeDays: cfg.Reports.MaxRangeDays,
		CacheTTL:     cfg.Reports.CacheTTL,
	}, lg)
}
