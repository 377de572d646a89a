package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"support-backend/cmd"
	"support-backend/internal/analysis"
	"support-backend/internal/api"
	"support-backend/internal/config"
	"support-backend/internal/database"
)

type APIConfig struct {
	DatabaseURL     string        `env:"DATABASE_URL,notEmpty,required"`
	SessionSecret   string        `env:"SESSION_SECRET,notEmpty,required"`
	APIPort         string        `env:"API_PORT" envDefault:"8001"`
	AdminEmail      string        `env:"ADMIN_EMAIL" envDefault:""`
	AdminPassword   string        `env:"ADMIN_PASSWORD" envDefault:""`
	RefreshInterval time.Duration `env:"REFRESH_INTERVAL" envDefault:"10m"`
	LogFile         string        `env:"LOG_FILE" envDefault:""`
	AllowedOrigin   string        `env:"ALLOWED_ORIGIN" envDefault:"*"`

	// Analysis assist; disabled when no FAQ workbook is configured. The
	// OpenAI key comes from OPENAI_API_KEY via the client itself.
	AnalysisFAQFile   string  `env:"ANALYSIS_FAQ_FILE" envDefault:""`
	AnalysisThreshold float64 `env:"ANALYSIS_SCORE_THRESHOLD" envDefault:"0.6"`
	OpenAIModel       string  `env:"OPENAI_MODEL" envDefault:"gpt-4o-mini"`
	OpenAIKey         string  `env:"OPENAI_API_KEY" envDefault:""`
}

func main() {
	log.Println("Starting API Server...")

	cmd.LoadEnvFile()

	var cfg APIConfig
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("error parsing config: %v", err)
	}

	closeLog := config.SetupLogger(cfg.LogFile, slog.LevelInfo)
	defer closeLog() //nolint:errcheck

	db, err := database.NewDatabase(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	cmd.EnsureAdminUser(context.Background(), db, cfg.AdminEmail, cfg.AdminPassword)

	// --- Chi Router Setup ---
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{cfg.AllowedOrigin},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true, // session cookie
		MaxAge:           300,
	}))
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	secret := []byte(cfg.SessionSecret)

	var analyzer api.Analyzer
	if cfg.AnalysisFAQFile != "" {
		entries, err := analysis.LoadCatalog(cfg.AnalysisFAQFile)
		if err != nil {
			log.Fatalf("Failed to load FAQ catalog: %v", err)
		}
		var llm analysis.LLM
		if cfg.OpenAIKey != "" {
			llm = analysis.NewOpenAI(cfg.OpenAIModel, 0.7)
		} else {
			slog.Warn("no OpenAI key configured, analysis assist runs lexical-only")
		}
		analyzer = analysis.NewAnalyzer(entries, llm, cfg.AnalysisThreshold)
		log.Printf("analysis assist enabled with %d FAQ entries", len(entries))
	}

	authService := api.NewAuthService(db, secret)
	supportService := api.NewSupportService(db, secret, cfg.RefreshInterval, analyzer)
	defer supportService.Close()

	r.Get("/health", api.RestHandler(func(r *http.Request) (any, error) { return nil, nil }))
	authService.AddRoutes(r)
	supportService.AddRoutes(r)

	// --- Start HTTP Server ---
	server := &http.Server{
		Addr:    ":" + cfg.APIPort,
		Handler: r,
	}

	// Goroutine for graceful shutdown
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		log.Println("Shutting down server...")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			log.Fatalf("Server forced to shutdown: %v", err)
		}
	}()

	log.Printf("API server listening on port %s", cfg.APIPort)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("Could not listen on %s: %v\n", cfg.APIPort, err)
	}

	log.Println("Server stopped.")
}
