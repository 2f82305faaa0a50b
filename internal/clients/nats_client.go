package clients

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	"bridge-backend/internal/config"
	"bridge-backend/internal/metrics"

	"github.com/nats-io/nats.go"
)

// NATSClient NATS client, publish-only. Bridge events fan out to the
// trading platform's other services through JetStream.
type NATSClient struct {
	conn       *nats.Conn
	js         nats.JetStreamContext
	streamName string
}

// NewNATSClient CreateNATS client
func NewNATSClient(url, streamName string) (*NATSClient, error) {
	var connectTimeout time.Duration = 10 * time.Second
	if config.AppConfig != nil && config.AppConfig.NATS.Timeout > 0 {
		connectTimeout = time.Duration(config.AppConfig.NATS.Timeout) * time.Second
		log.Printf("🔌 Using configured NATS timeout: %v", connectTimeout)
	} else {
		log.Printf("🔌 Using default NATS timeout: %v", connectTimeout)
	}

	conn, err := nats.Connect(url,
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(5*time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Printf("NATS connection lost: %v", err)
			metrics.NATSConnectionStatus.Set(0)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Printf("NATS reconnected")
			metrics.NATSConnectionStatus.Set(1)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	client := &NATSClient{
		conn:       conn,
		js:         js,
		streamName: streamName,
	}

	if err := client.ensureStream(); err != nil {
		conn.Close()
		return nil, err
	}

	metrics.NATSConnectionStatus.Set(1)
	log.Printf("✅ NATS connected, stream %s ready", streamName)
	return client, nil
}

// ensureStream creates the bridge stream if it does not exist yet
func (c *NATSClient) ensureStream() error {
	_, err := c.js.StreamInfo(c.streamName)
	if err == nil {
		log.Printf("Stream %s already exists", c.streamName)
		return nil
	}

	streamConfig := &nats.StreamConfig{
		Name: c.streamName,
		Subjects: []string{
			"bridge.deposit.*",
			"bridge.withdrawal.*",
			"bridge.network.*",
		},
		Retention: nats.LimitsPolicy,
		MaxAge:    24 * time.Hour,
		Storage:   nats.FileStorage,
	}

	_, err = c.js.AddStream(streamConfig)
	if err != nil {
		return fmt.Errorf("failed to create stream %s: %w", c.streamName, err)
	}

	log.Printf("Stream %s created", c.streamName)
	return nil
}

// Publish serializes payload as JSON and publishes it to subject
func (c *NATSClient) Publish(subject string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		metrics.NATSPublishFailed.WithLabelValues(subject).Inc()
		return fmt.Errorf("failed to marshal event for %s: %w", subject, err)
	}

	if _, err := c.js.Publish(subject, data); err != nil {
		metrics.NATSPublishFailed.WithLabelValues(subject).Inc()
		return fmt.Errorf("failed to publish to %s: %w", subject, err)
	}

	metrics.NATSEventsPublished.WithLabelValues(subject).Inc()
	return nil
}

// Close drains and closes the connection
func (c *NATSClient) Close() {
	if c.conn != nil {
		c.conn.Close()
		metrics.NATSConnectionStatus.Set(0)
	}
}

// IsConnected reports whether the underlying connection is up
func (c *NATSClient) IsConnected() bool {
	return c.conn != nil && c.conn.IsConnected()
}
