// Command pongd runs the authoritative game server: one TCP control
// listener, a shared UDP state-streaming socket, and the tick-driven
// session scheduler.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"pongserver/internal/config"
	"pongserver/internal/ioloop"
	"pongserver/internal/metrics"
)

func main() {
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		log.Fatal().Err(err).Msg("loading configuration")
	}

	m := metrics.New(prometheus.DefaultRegisterer)

	srv, err := ioloop.New(cfg, log, m)
	if err != nil {
		log.Fatal().Err(err).Msg("initializing server")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info().
		Uint16("port", cfg.Port).
		Int("workers", cfg.NumWorkers).
		Int("tick_rate_hz", cfg.TickRateHz).
		Msg("pongd starting")

	// The metrics endpoint and the game server loop are joined through
	// one errgroup: either exiting (or ctx being canceled) tears down
	// both before the process returns.
	metricsSrv := &http.Server{Addr: cfg.MetricsAddr}
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := metrics.Serve(metricsSrv); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		return metricsSrv.Close()
	})
	g.Go(func() error {
		return srv.Run(gctx)
	})

	if err := g.Wait(); err != nil {
		log.Fatal().Err(err).Msg("server exited with error")
	}
	log.Info().Msg("pongd stopped")
}
