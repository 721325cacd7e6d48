// Package main is the entry point for the FinderHub server.
package main

import (
	"context"
	"embed"
	"errors"
	"fmt"
	iofs "io/fs"
	"log"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/CageChen/finderhub/internal/config"
	"github.com/CageChen/finderhub/internal/fs"
	"github.com/CageChen/finderhub/internal/handler"
	"github.com/CageChen/finderhub/internal/logging"
	"github.com/CageChen/finderhub/internal/metrics"
	"github.com/CageChen/finderhub/internal/preview"
	"github.com/CageChen/finderhub/internal/session"
	"github.com/CageChen/finderhub/internal/watcher"
)

//go:embed web/*
var webFS embed.FS

func main() {
	// Load configuration
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if cfg.Persist {
		if err := cfg.Save(); err != nil {
			logger.Fatal("failed to save config", zap.Error(err))
		}
		logger.Info("config saved", zap.String("file", cfg.GetConfigFilePath()))
	}

	logger.Info("FinderHub - file browser",
		zap.String("config", cfg.GetConfigFilePath()),
		zap.String("provider", cfg.Root.Provider),
		zap.String("root", cfg.Root.Path),
		zap.String("git_ref", cfg.Root.GitRef),
		zap.Int("port", cfg.Port),
	)

	sessions := session.NewManager(
		func() (*fs.Adapter, error) {
			p, err := cfg.NewProvider()
			if err != nil {
				return nil, err
			}
			return fs.NewAdapter(p,
				fs.WithLogger(logger.Named("fs")),
				fs.WithExclude(cfg.Exclude),
			), nil
		},
		session.WithLogger(logger.Named("session")),
		session.WithAutoAccess(cfg.AutoAccess),
		session.WithShortcuts(shortcuts(cfg)),
		session.WithIdleTimeout(cfg.SessionIdle),
	)
	defer func() { _ = sessions.Close() }()

	// Create handlers
	renderer := preview.NewRenderer(
		preview.WithStyle(cfg.CodeStyle()),
		preview.WithMaxBytes(cfg.PreviewMaxBytes),
		preview.WithMaxImageBytes(cfg.PreviewMaxImage),
	)
	sessionHandler := handler.NewSessionHandler(sessions, logger)
	fileHandler := handler.NewFileHandler(sessions, renderer, logger)
	wsHandler := handler.NewWSHandler(sessions, logger)

	// Setup file watcher if enabled
	if cfg.Watchable() {
		w, err := watcher.New(cfg, logger)
		if err != nil {
			logger.Warn("failed to create file watcher", zap.Error(err))
		} else {
			w.OnChange(wsHandler.OnDirectoryChange)
			if err := w.Start(); err != nil {
				logger.Warn("failed to start file watcher", zap.Error(err))
			}
			defer func() { _ = w.Stop() }()
			logger.Info("file watcher enabled")
		}
	}

	// Setup Gin router
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logging.Middleware(logger.Named("http")))
	r.Use(metrics.Middleware())
	r.Use(corsMiddleware())

	// API routes
	api := r.Group("/api")
	sessionHandler.Register(api)
	fileHandler.Register(api)
	api.GET("/ws", wsHandler.HandleWS)
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	// Serve embedded static files
	webContent, err := iofs.Sub(webFS, "web")
	if err != nil {
		logger.Fatal("failed to load web assets", zap.Error(err))
	}
	r.NoRoute(gin.WrapH(http.FileServer(http.FS(webContent))))

	// Open browser if requested
	if cfg.Open {
		go openBrowser(fmt.Sprintf("http://localhost:%d", cfg.Port))
	}

	// Start server
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("server starting", zap.String("url", fmt.Sprintf("http://localhost:%d", cfg.Port)))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("shutdown", zap.Error(err))
	}
}

func shortcuts(cfg *config.Config) []session.ShortcutDef {
	if len(cfg.Shortcuts) > 0 {
		return cfg.Shortcuts
	}
	return session.DefaultShortcuts
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, X-Request-ID")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

func openBrowser(url string) {
	var cmd string
	var args []string

	switch runtime.GOOS {
	case "windows":
		cmd = "rundll32"
		args = []string{"url.dll,FileProtocolHandler", url}
	case "darwin":
		cmd = "open"
		args = []string{url}
	default: // linux, etc.
		cmd = "xdg-open"
		args = []string{url}
	}

	_ = exec.Command(cmd, args...).Start()
}
