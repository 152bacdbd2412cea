package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fmbp1981-hash/allo-oral-clinic---gest-o-sub000/api"
	"github.com/fmbp1981-hash/allo-oral-clinic---gest-o-sub000/database"
	"github.com/fmbp1981-hash/allo-oral-clinic---gest-o-sub000/integrations"
	"github.com/fmbp1981-hash/allo-oral-clinic---gest-o-sub000/internal/config"
	"github.com/fmbp1981-hash/allo-oral-clinic---gest-o-sub000/internal/trellosync"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// buildLogger returns a colored console logger. LOG_LEVEL wins over the
// configured level; debug is the default.
func buildLogger(configured string) *zap.Logger {
	name := os.Getenv("LOG_LEVEL")
	if name == "" {
		name = configured
	}
	level, err := zapcore.ParseLevel(strings.ToLower(name))
	if name == "" {
		level = zapcore.DebugLevel
	} else if err != nil {
		level = zapcore.InfoLevel
	}

	zc := zap.NewDevelopmentConfig()
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zc.OutputPaths = []string{"stdout"}

	logger, err := zc.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

// newRemoteFactory builds a Trello client per tenant credential pair, all
// sharing one HTTP client.
func newRemoteFactory(cfg config.TrelloConfig) trellosync.RemoteFactory {
	httpClient := &http.Client{Timeout: cfg.RequestTimeout}
	return func(apiKey, apiToken string) trellosync.Remote {
		return integrations.NewTrelloClient(apiKey, apiToken,
			integrations.WithBaseURL(cfg.APIBaseURL),
			integrations.WithHTTPClient(httpClient),
			integrations.WithRetry(cfg.RetryAttempts, cfg.RetryDelay),
		)
	}
}

func engineOptions(ctx context.Context, cfg *config.Config) ([]trellosync.Option, error) {
	if !cfg.Google.Calendar.Enabled {
		return nil, nil
	}
	serviceAccount, err := cfg.ServiceAccountJSON()
	if err != nil {
		return nil, err
	}
	calClient, err := integrations.NewCalendarClient(ctx, serviceAccount, cfg.Google.Calendar.CalendarID, cfg.Google.Calendar.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("failed to initialise Google Calendar client: %w", err)
	}
	zap.L().Info("Appointment mirror enabled", zap.String("calendarID", cfg.Google.Calendar.CalendarID))
	return []trellosync.Option{trellosync.WithCalendar(calClient)}, nil
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	db, err := database.Open(cfg.Database.Path)
	if err != nil {
		return err
	}
	zap.L().Info("Database initialised and migrated", zap.String("path", cfg.Database.Path))
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database handle: %w", err)
	}
	defer func() {
		if err := sqlDB.Close(); err != nil {
			zap.L().Error("Error closing database", zap.Error(err))
		}
	}()

	opts, err := engineOptions(ctx, cfg)
	if err != nil {
		return err
	}
	if cfg.Trello.CallbackURL == "" {
		zap.L().Warn("trello.callback_url is not set; saving a config will not register board webhooks")
	}

	remote := newRemoteFactory(cfg.Trello)
	configs := database.NewConfigsRepository(db)
	opportunities := database.NewOpportunitiesRepository(db)
	syncLogs := database.NewSyncLogsRepository(db)

	handler := &api.Handler{
		DB:            db,
		Engine:        trellosync.NewEngine(configs, database.NewMappingsRepository(db), opportunities, syncLogs, remote, opts...),
		Settings:      trellosync.NewSettings(configs, remote, cfg.Trello.CallbackURL),
		Opportunities: opportunities,
		SyncLogs:      syncLogs,
		Workers:       make(chan struct{}, cfg.Webhook.MaxConcurrent),
	}

	gin.SetMode(gin.ReleaseMode)
	srv := &http.Server{
		Addr: ":" + cfg.Server.Port,
		Handler: api.NewRouter(logger, handler, api.RouterConfig{
			AllowedOrigins: cfg.CORS.AllowedOrigins,
			Tokens:         cfg.TenantTokens(),
		}),
	}

	serveErr := make(chan error, 1)
	go func() {
		zap.L().Info("Starting server", zap.String("port", cfg.Server.Port))
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	zap.L().Info("Shutdown initiated; waiting for in-flight webhooks", zap.Duration("timeout", cfg.Server.ShutdownTimeout))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("error shutting down server: %w", err)
	}
	zap.L().Info("HTTP server shut down gracefully.")
	return nil
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		zap.NewExample().Fatal("Error reading config", zap.Error(err))
	}

	logger := buildLogger(cfg.Log.Level)
	defer logger.Sync()
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	go func() {
		<-ctx.Done()
		// restore default handling so a second signal kills the process
		stop()
	}()

	if err := run(ctx, cfg, logger); err != nil {
		zap.L().Fatal("Exiting", zap.Error(err))
	}
	zap.L().Info("Exiting...")
}
