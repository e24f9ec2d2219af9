package main

import (
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"breadcrumb-etl/internal/config"
	"breadcrumb-etl/internal/fetch"
	"breadcrumb-etl/internal/fleet"
	"breadcrumb-etl/internal/transport"
)

func publishCommand() *cli.Command {
	return &cli.Command{
		Name:   "publish",
		Usage:  "fetch breadcrumbs for every roster vehicle and publish them",
		Action: runPublish,
	}
}

func runPublish(_ *cli.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()

	mcol, stopMetrics := startMetrics(cfg)
	defer stopMetrics()

	roster, err := fleet.LoadFile(cfg.VehiclesFile)
	if err != nil {
		return err
	}

	client := fetch.New(cfg.APIBaseURL)

	pub, err := transport.NewPublisher(cfg.NATSURL, cfg.SubjectPrefix, wrapPublisherMetrics(mcol))
	if err != nil {
		return err
	}
	defer pub.Close()

	ids := roster.IDs()
	log.Info().Int("vehicles", len(ids)).Str("api", cfg.APIBaseURL).Msg("publishing breadcrumbs")

	// Vehicles are independent; fetch them with a bounded fan-out.
	sem := make(chan struct{}, cfg.FetchConcurrency)
	var wg sync.WaitGroup
	for _, id := range ids {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(vehicleID int) {
			defer wg.Done()
			defer func() { <-sem }()

			if mcol != nil {
				mcol.FetchRequests.Inc()
			}
			records, err := client.GetBreadcrumbs(ctx, vehicleID)
			if err != nil {
				if mcol != nil {
					mcol.FetchErrors.Inc()
				}
				log.Warn().Int("vehicle", vehicleID).Err(err).Msg("fetch failed")
				return
			}
			if mcol != nil {
				mcol.RecordsFetched.Add(float64(len(records)))
			}

			published := 0
			for _, rec := range records {
				if err := pub.PublishRecord(vehicleID, rec); err != nil {
					log.Warn().Int("vehicle", vehicleID).Err(err).Msg("publish failed")
					continue
				}
				published++
			}
			log.Info().Int("vehicle", vehicleID).Int("records", published).Msg("published")
		}(id)
	}
	wg.Wait()

	if ctx.Err() != nil {
		log.Info().Msg("publish interrupted")
	}
	return nil
}
