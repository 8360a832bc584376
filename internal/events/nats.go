package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	ferrors "git.home.luguber.info/inful/docflow/internal/foundation/errors"
)

// NATSConfig configures event forwarding to NATS.
type NATSConfig struct {
	URL     string
	Subject string
	// JetStream publishes with acknowledgements instead of fire-and-forget core NATS.
	JetStream bool
	Timeout   time.Duration
}

// NATSPublisher forwards bus events to NATS as JSON. Each event goes to
// "<subject>.<event name>", e.g. docflow.events.PipelineFailed.
type NATSPublisher struct {
	conn    *nats.Conn
	subject string
	timeout time.Duration
	send    func(ctx context.Context, subject string, data []byte) error
}

// NewNATSPublisher connects to the configured server.
func NewNATSPublisher(cfg NATSConfig) (*NATSPublisher, error) {
	if cfg.URL == "" {
		return nil, ferrors.ConfigError("nats url is required").Build()
	}
	if cfg.Subject == "" {
		cfg.Subject = "docflow.events"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}

	conn, err := nats.Connect(cfg.URL, nats.Name("docflow"))
	if err != nil {
		return nil, ferrors.NetworkError("failed to connect to NATS").
			WithCause(err).
			WithContext("url", cfg.URL).
			Build()
	}

	p := &NATSPublisher{conn: conn, subject: cfg.Subject, timeout: cfg.Timeout}
	if cfg.JetStream {
		js, err := jetstream.New(conn)
		if err != nil {
			conn.Close()
			return nil, ferrors.NetworkError("failed to create JetStream context").WithCause(err).Build()
		}
		p.send = func(ctx context.Context, subject string, data []byte) error {
			_, err := js.Publish(ctx, subject, data)
			return err
		}
	} else {
		p.send = func(_ context.Context, subject string, data []byte) error {
			return conn.Publish(subject, data)
		}
	}

	slog.Info("NATS event publisher initialized",
		slog.String("url", cfg.URL),
		slog.String("subject", cfg.Subject),
		slog.Bool("jetstream", cfg.JetStream))
	return p, nil
}

// SubjectFor returns the subject an event is published on.
func (p *NATSPublisher) SubjectFor(e Event) string {
	return strings.TrimSuffix(p.subject, ".") + "." + e.Name()
}

// Handler returns a bus handler publishing every event it receives.
func (p *NATSPublisher) Handler() Handler {
	return func(ctx context.Context, e Event) error {
		data, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("failed to marshal event: %w", err)
		}
		ctx, cancel := context.WithTimeout(ctx, p.timeout)
		defer cancel()
		if err := p.send(ctx, p.SubjectFor(e), data); err != nil {
			return ferrors.NetworkError("failed to publish event").
				WithCause(err).
				WithContext("event", e.Name()).
				Build()
		}
		return nil
	}
}

// Close drains the connection.
func (p *NATSPublisher) Close() {
	if p.conn != nil {
		if err := p.conn.Drain(); err != nil {
			p.conn.Close()
		}
	}
}
