package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

type Collector struct {
	reg *prometheus.Registry

	FetchRequests  prometheus.Counter
	FetchErrors    prometheus.Counter
	RecordsFetched prometheus.Counter

	NATSPublished   prometheus.Counter
	NATSPublishErrs prometheus.Counter
	NATSConnected   prometheus.Gauge
	PublishDuration prometheus.Histogram

	RecordsCollected prometheus.Counter

	RecordsAccepted     prometheus.Counter
	RecordsRejected     *prometheus.CounterVec // check label
	DuplicatesDropped   prometheus.Counter
	RoundTripMismatches prometheus.Counter
	PipelineDuration    prometheus.Histogram

	TripsLoaded       prometheus.Counter
	BreadcrumbsLoaded prometheus.Counter
}

func NewCollector() *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		reg: reg,
		FetchRequests: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "breadcrumbs_fetch_requests_total",
			Help: "Total upstream API requests.",
		}),
		FetchErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "breadcrumbs_fetch_errors_total",
			Help: "Total upstream API request failures.",
		}),
		RecordsFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "breadcrumbs_records_fetched_total",
			Help: "Total breadcrumb records fetched from upstream.",
		}),
		NATSPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "breadcrumbs_nats_published_total",
			Help: "Total NATS messages published.",
		}),
		NATSPublishErrs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "breadcrumbs_nats_publish_errors_total",
			Help: "Total NATS publish errors.",
		}),
		NATSConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "breadcrumbs_nats_connected",
			Help: "1 if NATS connection is established, 0 otherwise.",
		}),
		PublishDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "breadcrumbs_publish_duration_seconds",
			Help:    "Duration to marshal and publish a NATS message.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 15),
		}),
		RecordsCollected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "breadcrumbs_records_collected_total",
			Help: "Total records received by the collector.",
		}),
		RecordsAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "breadcrumbs_records_accepted_total",
			Help: "Total records that passed validation.",
		}),
		RecordsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "breadcrumbs_records_rejected_total",
			Help: "Total rejected records by deciding check.",
		}, []string{"check"}),
		DuplicatesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "breadcrumbs_duplicates_dropped_total",
			Help: "Total duplicate-timestamp records dropped.",
		}),
		RoundTripMismatches: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "breadcrumbs_roundtrip_mismatches_total",
			Help: "Total timestamp round-trip mismatches surfaced.",
		}),
		PipelineDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "breadcrumbs_pipeline_duration_seconds",
			Help:    "Duration of one pipeline batch run.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 15),
		}),
		TripsLoaded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "breadcrumbs_trips_loaded_total",
			Help: "Total Trip rows written.",
		}),
		BreadcrumbsLoaded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "breadcrumbs_rows_loaded_total",
			Help: "Total BreadCrumb rows written.",
		}),
	}

	reg.MustRegister(
		c.FetchRequests, c.FetchErrors, c.RecordsFetched,
		c.NATSPublished, c.NATSPublishErrs, c.NATSConnected, c.PublishDuration,
		c.RecordsCollected,
		c.RecordsAccepted, c.RecordsRejected, c.DuplicatesDropped,
		c.RoundTripMismatches, c.PipelineDuration,
		c.TripsLoaded, c.BreadcrumbsLoaded,
	)
	return c
}

// Serve starts an HTTP server exposing /metrics on addr. The caller owns the
// returned server's shutdown.
func (c *Collector) Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("metrics server error")
		}
	}()
	return srv
}
