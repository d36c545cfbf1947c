package app

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/relabs-tech/accurate_clock/internal/config"
	"github.com/relabs-tech/accurate_clock/internal/logging"
)

// Main loads the configuration, sets up logging and runs fn until SIGINT
// or SIGTERM. It exits the process on failure.
func Main(banner string, fn func(context.Context) error) {
	if err := config.InitGlobal(config.DefaultPath); err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	cfg := config.Get()
	if err := logging.Init(cfg.LogLevel, cfg.LogFile); err != nil {
		log.Fatal().Err(err).Msg("failed to set up logging")
	}

	log.Info().Msg(banner)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := fn(ctx); err != nil {
		stop()
		log.Fatal().Err(err).Msg("fatal")
	}
	log.Info().Msg("shutting down")
}
