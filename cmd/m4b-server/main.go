// Package main provides the m4bforge server entry point: the HTTP API plus
// the background workers driving conversion and tagging jobs.
package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/golang/glog"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/m4bforge/m4bforge/pkg/config"
	"github.com/m4bforge/m4bforge/pkg/convert"
	"github.com/m4bforge/m4bforge/pkg/jobs"
	"github.com/m4bforge/m4bforge/pkg/tagging"
)

func main() {
	var (
		configPath string
		listenAddr string
	)
	flag.StringVar(&configPath, "config", "", "Path to config file")
	flag.StringVar(&listenAddr, "listen", "", "Address to listen on (overrides config)")
	flag.Parse()

	_ = flag.Set("logtostderr", "true")

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load(configPath)
	if err != nil {
		glog.Fatalf("Failed to load config: %v", err)
	}
	if listenAddr != "" {
		cfg.ListenAddr = listenAddr
	}
	if err := cfg.EnsureDirs(); err != nil {
		glog.Fatalf("Failed to create data directories: %v", err)
	}

	logger.Info("starting m4bforge server",
		"listen", cfg.ListenAddr,
		"database", cfg.DatabasePath,
		"source", cfg.SourceDir,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	db, err := gorm.Open(sqlite.Open(cfg.DatabaseDSN()), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		glog.Fatalf("Failed to open database: %v", err)
	}

	jobCfg := jobs.ConfigFromEnv()
	store := jobs.NewStore(db, jobCfg)
	if err := store.AutoMigrate(); err != nil {
		glog.Fatalf("Failed to migrate jobs schema: %v", err)
	}
	files := tagging.NewFileStore(db)
	if err := files.AutoMigrate(); err != nil {
		glog.Fatalf("Failed to migrate files schema: %v", err)
	}

	encoder := convert.NewFFmpegEncoder(cfg.FFmpegBinary)
	converter := convert.NewOrchestrator(store, encoder, convert.Config{
		ProcessingDir: cfg.ProcessingDir,
		ReadyDir:      cfg.ReadyDir,
		Formats:       cfg.Formats,
	}, logger)
	converter.OnArtifact(func(path string) {
		if _, err := files.RegisterPath(path); err != nil {
			logger.Error("failed to register converted artifact", "path", path, "error", err)
		}
	})

	catalog := tagging.NewCachedCatalog(tagging.NewAudibleClient(), 256, 15*time.Minute)
	tagger := tagging.NewOrchestrator(store, files, catalog,
		tagging.NewFFmpegEmbedder(cfg.FFmpegBinary),
		cfg.CoversDir, cfg.LibraryDir, logger)

	retention := jobs.NewRetentionWorker(store, jobCfg, logger)
	go retention.Run(ctx)

	watcher := tagging.NewWatcher(cfg.ReadyDir, files, logger)
	go func() {
		if err := watcher.Run(ctx); err != nil {
			logger.Error("ready-dir watcher exited", "error", err)
		}
	}()

	router := mountRoutes(cfg, store, files, converter, tagger)

	httpServer := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: router,
	}
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			glog.Fatalf("HTTP server error: %v", err)
		}
	}()
	logger.Info("m4bforge server ready", "listen", cfg.ListenAddr)

	<-ctx.Done()
	logger.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}

	// Cancel in-flight jobs and let them settle; each ends failed with a
	// cancellation log entry instead of holding up shutdown.
	converter.Stop()
	tagger.Stop()
	converter.Wait()
	tagger.Wait()
	logger.Info("shutdown complete")
}

func mountRoutes(cfg *config.Config, store *jobs.Store, files *tagging.FileStore, converter *convert.Orchestrator, tagger *tagging.Orchestrator) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Mount("/jobs", jobs.Router(store))
		r.Mount("/convert", convert.Router(converter))
		r.Mount("/tag", tagging.Router(tagger, files))
		r.Get("/folders", convert.ListFoldersHandler(cfg.SourceDir, cfg.Formats))
	})

	return r
}
