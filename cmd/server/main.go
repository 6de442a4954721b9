package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"scene-orchestrator/internal/generator"
	"scene-orchestrator/internal/orchestrator"
	"scene-orchestrator/internal/platform/config"
	"scene-orchestrator/internal/platform/logger"
	"scene-orchestrator/internal/platform/metrics"
	"scene-orchestrator/internal/renderer"

	"github.com/go-chi/chi/v5"
)

const shutdownTimeout = 10 * time.Second

func main() {
	_ = config.Load()

	port := config.GetEnv("PORT", "8080")
	dbPath := config.GetEnv("DB_PATH", "data/scenes.db")
	jobsDir := config.GetEnv("JOBS_DIR", "data/jobs")
	provider := config.GetEnv("AI_PROVIDER", "deepseek")
	logLevel := config.GetEnv("LOG_LEVEL", "info")
	logFormat := config.GetEnv("LOG_FORMAT", "json")

	log := logger.New(logLevel, logFormat)

	repo, err := orchestrator.NewSQLiteRepository(dbPath)
	if err != nil {
		log.Error("open repository", "error", err)
		os.Exit(1)
	}
	defer repo.Close()

	gen, err := generator.New(context.Background(), generator.Settings{
		Provider:        provider,
		DeepSeekAPIKey:  config.GetEnv("DEEPSEEK_API_KEY", ""),
		DeepSeekBaseURL: config.GetEnv("DEEPSEEK_BASE_URL", generator.DefaultDeepSeekBaseURL),
		DeepSeekModel:   config.GetEnv("DEEPSEEK_MODEL", generator.DefaultDeepSeekModel),
		GeminiAPIKey:    config.GetEnv("GEMINI_API_KEY", ""),
		GeminiModel:     config.GetEnv("GEMINI_MODEL", generator.DefaultGeminiModel),
	})
	if err != nil {
		log.Error("configure generation provider", "error", err)
		os.Exit(1)
	}

	runner := renderer.NewRunner(renderer.Settings{
		Bin:     config.GetEnv("MANIM_BIN", renderer.DefaultBin),
		Quality: config.GetEnv("RENDER_QUALITY", renderer.DefaultQuality),
		Width:   config.GetEnvInt("RENDER_WIDTH", renderer.DefaultWidth),
		Height:  config.GetEnvInt("RENDER_HEIGHT", renderer.DefaultHeight),
		FPS:     config.GetEnvInt("RENDER_FPS", renderer.DefaultFPS),
		Timeout: config.GetEnvDuration("RENDER_TIMEOUT", renderer.DefaultTimeout),
	}, log)

	met := metrics.New()
	svc := orchestrator.NewService(repo, gen, runner, jobsDir, log, met)
	h := orchestrator.NewHandler(svc, log, met)

	r := chi.NewRouter()
	r.Use(logger.RequestLogger(log))
	r.Use(metrics.RequestMiddleware(met))
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		met.Handler(func() { met.SetActiveWorkers(svc.ActiveWorkers()) }).ServeHTTP(w, r)
	})
	r.Route("/workspaces/{workspace}", func(r chi.Router) {
		r.Post("/rounds", h.StartRound)
		r.Get("/rounds", h.ListRounds)
		r.Get("/script", h.GetScript)
	})
	r.Delete("/workspaces/{workspace}", h.ResetWorkspace)
	r.Get("/settings/{key}", h.GetSetting)
	r.Put("/settings/{key}", h.PutSetting)

	addr := ":" + port
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	log.Info("server starting",
		"port", port,
		"provider", gen.Name(),
		"db_path", dbPath,
		"jobs_dir", jobsDir,
		"log_level", logLevel,
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Info("shutdown signal received, draining connections")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("shutdown error", "error", err)
		os.Exit(1)
	}

	log.Info("server stopped")
}
