package mqtt

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/ips-core/internal/infrastructure/config"
	"github.com/nerrad567/ips-core/internal/infrastructure/logging"
)

const (
	// connectTimeout bounds the initial connection attempt.
	connectTimeout = 10 * time.Second

	// opTimeout bounds a single publish or subscribe round trip.
	opTimeout = 5 * time.Second

	// disconnectQuiesce is how long Close lets in-flight work drain, in ms.
	disconnectQuiesce = 1000

	keepAlive = 60 * time.Second
)

// UploadHandler receives the raw payload of one device upload.
type UploadHandler func(payload []byte) error

// Client carries IPS readings over MQTT.
//
// It publishes each stored reading retained on TopicLatest, optionally
// accepts device uploads on TopicUpload, and announces the service on
// TopicStatus. The broker publishes the offline will when the process dies
// without calling Close.
//
// All methods are safe for concurrent use. The upload subscription is
// restored after every reconnect.
type Client struct {
	paho pahomqtt.Client
	id   string
	qos  byte
	log  *logging.Logger

	mu      sync.Mutex
	uploads UploadHandler
}

// presence is the JSON body published on TopicStatus.
type presence struct {
	Status    string    `json:"status"`
	ClientID  string    `json:"client_id"`
	Reason    string    `json:"reason,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Connect dials the broker named in cfg and returns once the session is up.
//
// Returns ErrDisabled when MQTT is switched off, or ErrConnectionFailed if
// the broker cannot be reached within connectTimeout. A nil log discards
// client logging.
func Connect(cfg config.MQTTConfig, log *logging.Logger) (*Client, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}
	if log == nil {
		log = logging.Discard()
	}

	c := &Client{
		id:  cfg.Broker.ClientID,
		qos: byte(cfg.QoS),
		log: log,
	}
	c.paho = pahomqtt.NewClient(c.options(cfg))

	token := c.paho.Connect()
	if !token.WaitTimeout(connectTimeout) {
		// Stop the background connect retries.
		c.paho.Disconnect(0)
		return nil, fmt.Errorf("%w: timeout after %v", ErrConnectionFailed, connectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}
	return c, nil
}

// brokerURL builds tcp://host:port, or ssl:// when TLS is on.
func brokerURL(b config.MQTTBrokerConfig) string {
	scheme := "tcp"
	if b.TLS {
		scheme = "ssl"
	}
	return scheme + "://" + net.JoinHostPort(b.Host, strconv.Itoa(b.Port))
}

func (c *Client) options(cfg config.MQTTConfig) *pahomqtt.ClientOptions {
	opts := pahomqtt.NewClientOptions().
		AddBroker(brokerURL(cfg.Broker)).
		SetClientID(c.id).
		SetCleanSession(true).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(time.Duration(cfg.Reconnect.InitialDelay) * time.Second).
		SetMaxReconnectInterval(time.Duration(cfg.Reconnect.MaxDelay) * time.Second).
		SetConnectTimeout(connectTimeout).
		SetKeepAlive(keepAlive).
		SetBinaryWill(TopicStatus, c.presence("offline", "unexpected_disconnect"), 1, true)

	if cfg.Auth.Username != "" {
		opts.SetUsername(cfg.Auth.Username)
		opts.SetPassword(cfg.Auth.Password)
	}
	if cfg.Broker.TLS {
		opts.SetTLSConfig(&tls.Config{MinVersion: tls.VersionTLS12})
	}

	opts.SetOnConnectHandler(func(pahomqtt.Client) { c.onConnect() })
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		c.log.Warn("mqtt connection lost", "error", err)
	})
	opts.SetReconnectingHandler(func(pahomqtt.Client, *pahomqtt.ClientOptions) {
		c.log.Info("mqtt reconnecting", "broker", cfg.Broker.Host)
	})
	return opts
}

// onConnect runs on the initial connect and after every reconnect.
// paho callbacks must not block, so tokens are not awaited here.
func (c *Client) onConnect() {
	c.log.Info("mqtt connected", "client_id", c.id)
	c.paho.Publish(TopicStatus, c.qos, true, c.presence("online", ""))

	c.mu.Lock()
	h := c.uploads
	c.mu.Unlock()
	if h != nil {
		c.paho.Subscribe(TopicUpload, c.qos, c.deliver(h))
	}
}

func (c *Client) presence(status, reason string) []byte {
	b, _ := json.Marshal(presence{ //nolint:errcheck // Plain struct always encodes
		Status:    status,
		ClientID:  c.id,
		Reason:    reason,
		Timestamp: time.Now().UTC().Truncate(time.Second),
	})
	return b
}

// HealthCheck reports ErrNotConnected while the broker link is down.
func (c *Client) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("mqtt health check: %w", err)
	}
	if !c.paho.IsConnectionOpen() {
		return ErrNotConnected
	}
	return nil
}

// Close announces a graceful shutdown on TopicStatus and disconnects.
func (c *Client) Close() error {
	if c.paho.IsConnectionOpen() {
		c.paho.Publish(TopicStatus, c.qos, true, c.presence("offline", "graceful_shutdown")).
			WaitTimeout(opTimeout)
	}
	c.paho.Disconnect(disconnectQuiesce)
	return nil
}

// wait blocks until t completes, ctx ends or opTimeout passes. Failures
// are wrapped in sentinel.
func wait(ctx context.Context, t pahomqtt.Token, sentinel error) error {
	timer := time.NewTimer(opTimeout)
	defer timer.Stop()

	select {
	case <-t.Done():
		if err := t.Error(); err != nil {
			return fmt.Errorf("%w: %w", sentinel, err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", sentinel, ctx.Err())
	case <-timer.C:
		return fmt.Errorf("%w: timeout after %v", sentinel, opTimeout)
	}
}
