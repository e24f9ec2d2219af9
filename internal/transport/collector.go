package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

type CollectorMetrics interface {
	ReceivedInc()
}

// Collector subscribes to the breadcrumb subjects and accumulates received
// records into a per-day JSON batch file, the unit of work the loader
// consumes. An existing file for the day is loaded first so a restarted
// collector appends rather than truncates.
type Collector struct {
	url           string
	subject       string
	path          string
	flushInterval time.Duration
	metrics       CollectorMetrics

	mu      sync.Mutex
	records []json.RawMessage
	dirty   bool
}

func NewCollector(url, subjectPrefix, dir string, flushInterval time.Duration, m CollectorMetrics) *Collector {
	day := time.Now().Format("2006-01-02")
	return &Collector{
		url:           url,
		subject:       subjectToken(subjectPrefix) + ".vehicle.*",
		path:          filepath.Join(dir, fmt.Sprintf("breadcrumbs_%s.json", day)),
		flushInterval: flushInterval,
		metrics:       m,
	}
}

const drainTimeout = 5 * time.Second

// Path returns the batch file the collector writes.
func (c *Collector) Path() string { return c.path }

// ingest appends one received payload to the pending batch. Payloads that
// are not valid JSON are refused so a corrupt message cannot poison the
// batch file.
func (c *Collector) ingest(payload []byte) bool {
	if !json.Valid(payload) {
		return false
	}
	data := make([]byte, len(payload))
	copy(data, payload)

	c.mu.Lock()
	c.records = append(c.records, json.RawMessage(data))
	c.dirty = true
	c.mu.Unlock()
	if c.metrics != nil {
		c.metrics.ReceivedInc()
	}
	return true
}

// Run subscribes and collects until the context is cancelled, then drains
// the subscription and flushes a final time.
func (c *Collector) Run(ctx context.Context) error {
	if err := c.loadExisting(); err != nil {
		return err
	}

	closed := make(chan struct{})
	nc, err := nats.Connect(c.url,
		nats.Name("breadcrumb-etl-collector"),
		nats.ClosedHandler(func(_ *nats.Conn) { close(closed) }),
	)
	if err != nil {
		return fmt.Errorf("nats connect: %w", err)
	}
	defer nc.Close()

	if _, err := nc.Subscribe(c.subject, func(msg *nats.Msg) {
		if !c.ingest(msg.Data) {
			log.Warn().Str("subject", msg.Subject).Msg("dropping non-JSON message")
		}
	}); err != nil {
		return fmt.Errorf("subscribe %s: %w", c.subject, err)
	}

	log.Info().Str("subject", c.subject).Str("file", c.path).Msg("collecting breadcrumbs")

	ticker := time.NewTicker(c.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			// Drain completes asynchronously; wait for the closed handler so
			// messages delivered mid-drain make the final flush.
			if err := nc.Drain(); err != nil {
				log.Warn().Err(err).Msg("drain failed")
				nc.Close()
			}
			select {
			case <-closed:
			case <-time.After(drainTimeout):
				log.Warn().Msg("drain timed out")
			}
			return c.flush()
		case <-ticker.C:
			if err := c.flush(); err != nil {
				log.Error().Err(err).Msg("flush failed")
			}
		}
	}
}

func (c *Collector) loadExisting() error {
	data, err := os.ReadFile(c.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", c.path, err)
	}
	var records []json.RawMessage
	if err := json.Unmarshal(data, &records); err != nil {
		log.Warn().Str("file", c.path).Err(err).Msg("existing batch file unreadable, starting fresh")
		return nil
	}
	c.records = records
	log.Info().Str("file", c.path).Int("records", len(records)).Msg("resuming existing batch file")
	return nil
}

func (c *Collector) flush() error {
	c.mu.Lock()
	if !c.dirty {
		c.mu.Unlock()
		return nil
	}
	data, err := json.Marshal(c.records)
	count := len(c.records)
	c.dirty = false
	c.mu.Unlock()
	if err != nil {
		return fmt.Errorf("marshal batch: %w", err)
	}

	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, c.path); err != nil {
		return fmt.Errorf("rename %s: %w", tmp, err)
	}
	log.Debug().Int("records", count).Str("file", c.path).Msg("batch flushed")
	return nil
}
