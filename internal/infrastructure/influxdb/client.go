package influxdb

import (
	"context"
	"fmt"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/ips-core/internal/infrastructure/config"
	"github.com/nerrad567/ips-core/internal/infrastructure/logging"
	"github.com/nerrad567/ips-core/internal/reading"
)

// Measurement is the measurement readings are written to.
const Measurement = "sensor_reading"

// serviceTag identifies points written by this process.
const serviceTag = "ips-core"

const (
	defaultBatchSize     = 100
	defaultFlushInterval = 10 // seconds
	pingTimeout          = 5 * time.Second
)

// Client writes reading history to one bucket.
//
// WriteReading never blocks on the network; points are batched by the
// underlying write API. All methods are safe for concurrent use.
type Client struct {
	client influxdb2.Client
	writer api.WriteAPI
	log    *logging.Logger

	mu     sync.RWMutex
	closed bool

	// drained is closed once the write error channel is exhausted.
	drained chan struct{}
}

// Connect creates the client and pings the server.
//
// Returns ErrDisabled when InfluxDB is switched off, or ErrConnectionFailed
// when the ping fails. A nil log discards write error logging.
func Connect(ctx context.Context, cfg config.InfluxDBConfig, log *logging.Logger) (*Client, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}
	if log == nil {
		log = logging.Discard()
	}

	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	flushInterval := cfg.FlushInterval
	if flushInterval <= 0 {
		flushInterval = defaultFlushInterval
	}

	// #nosec G115 -- values validated above to be positive
	client := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token,
		influxdb2.DefaultOptions().
			SetBatchSize(uint(batchSize)).
			SetFlushInterval(uint(flushInterval*1000)),
	)

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := ping(pingCtx, client); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	c := &Client{
		client:  client,
		writer:  client.WriteAPI(cfg.Org, cfg.Bucket),
		log:     log,
		drained: make(chan struct{}),
	}
	go c.logWriteErrors(c.writer.Errors())
	return c, nil
}

func ping(ctx context.Context, client influxdb2.Client) error {
	healthy, err := client.Ping(ctx)
	if err != nil {
		return fmt.Errorf("ping failed: %w", err)
	}
	if !healthy {
		return fmt.Errorf("server not healthy")
	}
	return nil
}

// logWriteErrors runs until the write API is closed.
func (c *Client) logWriteErrors(errs <-chan error) {
	defer close(c.drained)
	for err := range errs {
		c.log.Error("influxdb batch write failed", "measurement", Measurement, "error", err)
	}
}

// WriteReading queues r as one point stamped with the store timestamp.
func (c *Client) WriteReading(ctx context.Context, r reading.Reading) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrClosed
	}

	c.writer.WritePoint(write.NewPoint(Measurement,
		map[string]string{"service": serviceTag},
		map[string]interface{}{
			"temperature":     r.Temperature,
			"gas_level":       r.GasLevel,
			"light_intensity": r.LightIntensity,
			"fire_detected":   r.FireDetected,
			"fan_status":      r.FanStatus,
			"led_status":      r.LEDStatus,
		},
		r.Timestamp,
	))
	return nil
}

// HealthCheck pings the server.
func (c *Client) HealthCheck(ctx context.Context) error {
	c.mu.RLock()
	closed := c.closed
	c.mu.RUnlock()
	if closed {
		return ErrClosed
	}

	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := ping(ctx, c.client); err != nil {
		return fmt.Errorf("influxdb health check: %w", err)
	}
	return nil
}

// Close flushes queued points and releases the client. Safe to call twice.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	c.writer.Flush()
	c.client.Close()
	<-c.drained
	return nil
}
