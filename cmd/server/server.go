package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"matchbook/internal/api"
	"matchbook/internal/config"
	"matchbook/internal/engine"
	"matchbook/internal/logging"
	"matchbook/internal/publish"

	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"
)

func main() {
	configPath := flag.String("config", "", "Path to a YAML config file (default $MATCHBOOK_CONFIG)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("unable to load config")
	}
	if err := logging.Setup(cfg.Log); err != nil {
		log.Fatal().Err(err).Msg("unable to set up logging")
	}

	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGTERM,
		syscall.SIGINT,
	)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Error().Err(err).Msg("server exited")
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config) error {
	t, ctx := tomb.WithContext(ctx)

	// Setup the matching engine and its trade reporters.
	book := engine.NewOrderBook(engine.WithTradeLogCapacity(cfg.Engine.TradeLogCapacity))
	eng := engine.New(book, engine.LogReporter{})

	if len(cfg.Kafka.Brokers) > 0 {
		publisher, err := publish.NewKafkaPublisher(cfg.Kafka)
		if err != nil {
			return err
		}
		defer func() {
			if err := publisher.Close(); err != nil {
				log.Error().Err(err).Msg("unable to flush trade publisher")
			}
		}()
		eng.AddReporter(publisher)
	}

	var matcher engine.Matcher
	switch cfg.Engine.Mode {
	case config.ModeLock:
		matcher = engine.NewLockedMatcher(eng)
	default:
		matcher = engine.NewSequencer(t, eng, cfg.Engine.QueueSize)
	}
	log.Info().
		Str("mode", cfg.Engine.Mode).
		Int("trade_log_capacity", cfg.Engine.TradeLogCapacity).
		Msg("matching engine ready")

	srv := api.NewServer(cfg.Server, matcher)
	t.Go(func() error {
		return srv.Run(ctx)
	})

	// Block until a signal arrives or a supervised goroutine fails.
	<-t.Dying()
	return t.Wait()
}
