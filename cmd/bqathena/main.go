// Command bqathena serves the BigQuery to Athena session transfer over HTTP.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	bqathena "github.com/samuelzaleta/bigquery-athena"
	"github.com/samuelzaleta/bigquery-athena/config"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid LOG_LEVEL")
	}
	logger := zerolog.New(os.Stderr).Level(level).With().Timestamp().Logger()
	if cfg.PrettyLogging {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	opts := []bqathena.Option{bqathena.WithLogLevel(cfg.LogLevel)}
	if cfg.PrettyLogging {
		opts = append(opts, bqathena.WithPrettyLogging())
	}

	p, err := bqathena.New(ctx, cfg, opts...)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build pipeline")
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           bqathena.NewServer(p, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("failed to shut down server")
		}
	}()

	logger.Info().Str("addr", srv.Addr).Msg("listening")

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatal().Err(err).Msg("server stopped")
	}
}
