package main

import (
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"breadcrumb-etl/internal/config"
	"breadcrumb-etl/internal/transport"
)

func collectCommand() *cli.Command {
	return &cli.Command{
		Name:   "collect",
		Usage:  "subscribe to breadcrumb subjects and write per-day batch files",
		Action: runCollect,
	}
}

func runCollect(_ *cli.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()

	mcol, stopMetrics := startMetrics(cfg)
	defer stopMetrics()

	collector := transport.NewCollector(cfg.NATSURL, cfg.SubjectPrefix, cfg.DataDir, cfg.FlushInterval, wrapCollectorMetrics(mcol))
	if err := collector.Run(ctx); err != nil {
		return err
	}

	log.Info().Str("file", collector.Path()).Msg("collector stopped")
	return nil
}
