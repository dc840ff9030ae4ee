package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	_ "mold_monitor/docs"
	"mold_monitor/internal/config"
	"mold_monitor/internal/handlers"
	"mold_monitor/internal/logger"
	"mold_monitor/internal/metrics"
	"mold_monitor/internal/repository"
	"mold_monitor/internal/repository/db"
	"mold_monitor/internal/server"
	"mold_monitor/internal/service"
)

const (
	configDir       = "configs"
	shutdownTimeout = 15 * time.Second
)

// @title           Mold Monitor API
// @version         1.0
// @description     Injection-mold cycle acquisition: sessions, profiles, recorded cycles and CSV export.
// @BasePath        /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	// load configs/config.yml (+ MOLD_* env)
	cfg, err := config.Load(configDir)
	if err != nil {
		logger.Get(logger.InfoLevel).Fatalw("error reading config", "err", err)
	}

	log := logger.GetWithFormat(cfg.Log.Level, cfg.Log.Format)
	defer func() { _ = log.Sync() }()

	// open DB
	conn, err := openDB(cfg.DB, log)
	if err != nil {
		log.Fatalw("failed to init sqlite", "err", err)
	}
	defer func() {
		if cerr := conn.Close(); cerr != nil {
			log.Errorw("failed to close sqlite", "err", cerr)
		}
	}()

	profile, err := loadProfile(cfg.Profile, log)
	if err != nil {
		log.Fatalw("failed to load profile", "path", cfg.Profile.Path, "err", err)
	}

	// context for sessions and other background goroutines
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		recorder    metrics.Recorder
		metricsHTTP http.Handler
	)
	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		recorder = metrics.NewProm(reg)
		metricsHTTP = promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
	}

	// wire dependencies
	repos := repository.NewRepository(conn)
	services := service.NewService(repos, service.Deps{
		Base:    ctx,
		Profile: profile,
		Sources: service.NewSourceFactory(cfg.Acquisition, log.Named("acquisition")),
		Session: cfg.Session,
		Auth:    cfg.Auth,
		Metrics: recorder,
		Log:     log,
	})

	var opts []handlers.Option
	if metricsHTTP != nil {
		opts = append(opts, handlers.WithMetrics(metricsHTTP))
	}
	apiHandler := handlers.NewHandler(services, log.Named("http"), opts...)

	log.Infow("starting mold monitor",
		"port", cfg.Port,
		"source", cfg.Acquisition.Source,
		"profile", profile.Name,
		"channels", len(profile.Channels),
	)

	// start HTTP server
	srv := &server.Server{}
	runHTTPServer(srv, cfg.Port, apiHandler, log)

	// graceful shutdown
	waitForShutdown(cancel, srv, services, log)
}

// openDB initializes the SQLite database using configuration.
func openDB(cfg config.DBConfig, log *logger.Logger) (*sql.DB, error) {
	path := cfg.Path
	if path == "" {
		log.Infow("db.path not set in config; using default file", "default", "mold.db")
		path = "mold.db"
	}
	return db.InitDB(path)
}

// loadProfile reads the fallback mold profile. Without profile.path the
// built-in default layout is used until a profile is PUT over the API.
// The file gets the same checks as a profile PUT over the API.
func loadProfile(cfg config.ProfileConfig, log *logger.Logger) (*config.Profile, error) {
	if cfg.Path == "" {
		log.Infow("profile.path not set in config; using the built-in profile")
		return config.DefaultProfile(), nil
	}
	p, err := config.LoadProfile(cfg.Path)
	if err != nil {
		return nil, err
	}
	if err := service.VerifyProfile(p); err != nil {
		return nil, fmt.Errorf("profile %s: %w", cfg.Path, err)
	}
	return p, nil
}

// runHTTPServer runs the HTTP server in a separate goroutine.
func runHTTPServer(srv *server.Server, port string, handler *handlers.Handler, log *logger.Logger) {
	go func() {
		if err := srv.Run(port, handler.InitRoutes()); err != nil {
			log.Fatalw("error starting server", "err", err)
		}
	}()
}

// waitForShutdown listens for termination signals, ends a running session so
// its last cycle is written, then drains HTTP requests.
func waitForShutdown(cancel context.CancelFunc, srv *server.Server, services *service.Service, log *logger.Logger) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Infow("shutting down server...")

	ctx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := services.Shutdown(ctx); err != nil {
		log.Errorw("session did not stop cleanly", "err", err)
	}

	// stop background goroutines
	cancel()

	// allow in-flight requests to complete
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalw("server forced to shutdown", "err", err)
	}
}
