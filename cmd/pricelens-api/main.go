package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"pricelens/internal/config"
	"pricelens/internal/extract"
	server "pricelens/internal/http"
	"pricelens/internal/llm"
	"pricelens/internal/logging"
	"pricelens/internal/pagetext"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to optional config file")
	envPath := flag.String("env", ".env", "path to optional .env file")
	flag.Parse()

	if err := config.LoadEnvFile(*envPath); err != nil {
		log.Fatal().Err(err).Msg("load env file")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}

	logger := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	if cfg.LLM.APIKey == "" {
		logger.Warn().Msg("GROQ_API_KEY is not set; completion calls will fail upstream")
	}

	// One client for the whole process, shared read-only by every request.
	client := llm.NewClientFromConfig(cfg.LLM)
	svc := extract.NewService(
		client,
		pagetext.NewNormalizer(cfg.Extract.InputMode),
		extract.Options{EnforceMetadataSchema: cfg.Extract.EnforceMetadataSchema},
		logger,
	)

	s := server.NewServer(cfg, svc, logger)

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit

		logger.Info().Msg("shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.Shutdown(ctx); err != nil {
			logger.Error().Err(err).Msg("shutdown")
		}
	}()

	logger.Info().
		Str("model", cfg.LLM.Model).
		Str("base_url", cfg.LLM.BaseURL).
		Str("input_mode", cfg.Extract.InputMode).
		Msg("starting pricelens api")

	if err := s.Listen(); err != nil {
		logger.Fatal().Err(err).Msg("server failed")
	}
}
