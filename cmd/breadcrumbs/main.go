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
	"github.com/urfave/cli/v2"

	"breadcrumb-etl/internal/config"
	"breadcrumb-etl/internal/metrics"
	"breadcrumb-etl/internal/transport"
)

func main() {
	if os.Getenv("LOG_FORMAT") != "JSON" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	}

	if os.Getenv("LOG_DEBUG") == "YES" {
		log.Logger = log.Logger.Level(zerolog.DebugLevel)
	} else {
		log.Logger = log.Logger.Level(zerolog.InfoLevel)
	}

	app := &cli.App{
		Name:        "breadcrumbs",
		Description: "Fetches, transports, validates and loads vehicle breadcrumb telemetry",

		Commands: []*cli.Command{
			publishCommand(),
			collectCommand(),
			loadCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal().Err(err).Send()
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

// startMetrics serves the collector on cfg.MetricsAddr when set. The returned
// stop function shuts the server down; both return values are nil-safe.
func startMetrics(cfg *config.Config) (*metrics.Collector, func()) {
	if cfg.MetricsAddr == "" {
		return nil, func() {}
	}
	mcol := metrics.NewCollector()
	srv := mcol.Serve(cfg.MetricsAddr)
	return mcol, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("metrics shutdown error")
		}
	}
}

// wrapPublisherMetrics adapts the Collector to the transport's metrics
// interface.
func wrapPublisherMetrics(c *metrics.Collector) transport.PublisherMetrics {
	if c == nil {
		return nil
	}
	return &pubMetrics{c: c}
}

type pubMetrics struct{ c *metrics.Collector }

func (p *pubMetrics) PublishedInc()                  { p.c.NATSPublished.Inc() }
func (p *pubMetrics) PublishErrInc()                 { p.c.NATSPublishErrs.Inc() }
func (p *pubMetrics) PublishObserve(d time.Duration) { p.c.PublishDuration.Observe(d.Seconds()) }
func (p *pubMetrics) SetConnected(b bool) {
	if b {
		p.c.NATSConnected.Set(1)
	} else {
		p.c.NATSConnected.Set(0)
	}
}

func wrapCollectorMetrics(c *metrics.Collector) transport.CollectorMetrics {
	if c == nil {
		return nil
	}
	return &colMetrics{c: c}
}

type colMetrics struct{ c *metrics.Collector }

func (m *colMetrics) ReceivedInc() { m.c.RecordsCollected.Inc() }
