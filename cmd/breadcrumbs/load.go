package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"breadcrumb-etl/internal/breadcrumb"
	"breadcrumb-etl/internal/config"
	"breadcrumb-etl/internal/db"
	"breadcrumb-etl/internal/fleet"
	"breadcrumb-etl/internal/metrics"
	"breadcrumb-etl/internal/pipeline"
)

func loadCommand() *cli.Command {
	return &cli.Command{
		Name:  "load",
		Usage: "run the validation pipeline over batch files and load Postgres",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "datafile",
				Aliases:  []string{"d"},
				Usage:    "batch file or directory of *.json batch files",
				Required: true,
			},
			&cli.StringFlag{
				Name:    "table",
				Aliases: []string{"t"},
				Usage:   "target table: trip, breadcrumb or both",
				Value:   "both",
			},
			&cli.BoolFlag{
				Name:  "create-schema",
				Usage: "drop and recreate the schema before inserting",
			},
			&cli.StringFlag{
				Name:  "database",
				Usage: "override the database name in the configured DSN",
			},
		},
		Action: runLoad,
	}
}

func runLoad(c *cli.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// Configuration errors are fatal and surface before any data is touched.
	target, err := db.ResolveTable(c.String("table"))
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

	records, err := readBatches(c.String("datafile"))
	if err != nil {
		return err
	}
	log.Info().Int("records", len(records)).Msg("batch read")

	p := pipeline.New(roster)
	start := time.Now()
	res, err := p.RunRecords(records)
	if err != nil {
		return err
	}
	if mcol != nil {
		mcol.PipelineDuration.Observe(time.Since(start).Seconds())
		observeReport(mcol, &res.Report)
	}
	logReport(&res.Report)

	dsn := cfg.DatabaseURL
	if override := c.String("database"); override != "" {
		dsn, err = db.WithDBName(dsn, override)
		if err != nil {
			return err
		}
	}

	sqlDB, err := db.Open(dsn)
	if err != nil {
		return fmt.Errorf("db open: %w", err)
	}
	defer sqlDB.Close()
	if err := db.Ping(ctx, sqlDB); err != nil {
		return fmt.Errorf("db ping: %w", err)
	}

	if c.Bool("create-schema") {
		if err := db.EnsureSchema(ctx, sqlDB); err != nil {
			return err
		}
		log.Info().Msg("schema created")
	}

	loadStart := time.Now()
	if err := db.NewLoader(sqlDB).Load(ctx, target, res.Trips, res.Breadcrumbs); err != nil {
		return err
	}
	if mcol != nil {
		if target == db.TableBoth || target == db.TableTrip {
			mcol.TripsLoaded.Add(float64(len(res.Trips)))
		}
		if target == db.TableBoth || target == db.TableBreadCrumb {
			mcol.BreadcrumbsLoaded.Add(float64(len(res.Breadcrumbs)))
		}
	}

	log.Info().
		Str("table", target.String()).
		Int("trips", len(res.Trips)).
		Int("breadcrumbs", len(res.Breadcrumbs)).
		Dur("elapsed", time.Since(loadStart)).
		Msg("load complete")
	return nil
}

// readBatches parses one batch file, or every *.json file in a directory as a
// single combined batch. A structurally bad file fails the whole load.
func readBatches(path string) ([]breadcrumb.ParsedRecord, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	files := []string{path}
	if info.IsDir() {
		files, err = filepath.Glob(filepath.Join(path, "*.json"))
		if err != nil {
			return nil, err
		}
		if len(files) == 0 {
			return nil, fmt.Errorf("no *.json batch files in %s", path)
		}
	}

	var records []breadcrumb.ParsedRecord
	for _, f := range files {
		data, err := os.ReadFile(f)
		if err != nil {
			return nil, err
		}
		recs, err := breadcrumb.ParseBatch(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", f, err)
		}
		log.Debug().Str("file", f).Int("records", len(recs)).Msg("batch file parsed")
		records = append(records, recs...)
	}
	return records, nil
}

func observeReport(mcol *metrics.Collector, report *pipeline.Report) {
	mcol.RecordsAccepted.Add(float64(report.Accepted))
	for check, n := range report.RejectedByCheck() {
		mcol.RecordsRejected.WithLabelValues(string(check)).Add(float64(n))
	}
	mcol.DuplicatesDropped.Add(float64(report.Duplicates))
	mcol.RoundTripMismatches.Add(float64(report.RoundTripMismatches))
}

func logReport(report *pipeline.Report) {
	log.Info().
		Int("total", report.Total).
		Int("accepted", report.Accepted).
		Int("rejected", report.Rejected).
		Int("duplicates", report.Duplicates).
		Msg("validation report")

	for _, o := range report.Outcomes {
		if o.Passed {
			continue
		}
		ev := log.Debug().Int("record", o.Index).Interface("failed", o.Failed)
		if o.Detail != "" {
			ev = ev.Str("detail", o.Detail)
		}
		ev.Msg("record rejected")
	}

	// Round-trip mismatches signal a decoding defect, not bad input; keep
	// them loud.
	if report.RoundTripMismatches > 0 {
		log.Error().Int("count", report.RoundTripMismatches).Msg("timestamp round-trip mismatches")
	}
	for _, tripID := range report.FlaggedTrips {
		log.Warn().Int("trip", tripID).Msg("trip flagged: zero time delta during speed derivation")
	}
}
