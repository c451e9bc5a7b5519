// Package events publishes domain events to NATS JetStream for the dashboard
// and downstream jobs.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/smart-directory/referral-service/internal/model"
	"github.com/smart-directory/referral-service/pkg/logger"
)

const (
	// StreamName is the name of the referral events stream.
	StreamName = "REFERRAL_EVENTS"

	// SubjectPrefix is the prefix for all event subjects.
	SubjectPrefix = "referral"
)

// Publisher wraps a NATS connection and JetStream context.
type Publisher struct {
	conn   *nats.Conn
	js     jetstream.JetStream
	logger *logger.Logger
}

// Connect establishes the NATS connection and ensures the event stream
// exists.
func Connect(ctx context.Context, url, token string, log *logger.Logger) (*Publisher, error) {
	opts := []nats.Option{
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Warn("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("NATS reconnected")
		}),
	}
	if token != "" {
		opts = append(opts, nats.Token(token))
	}

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	p := &Publisher{conn: nc, js: js, logger: log}
	if err := p.ensureStream(ctx); err != nil {
		nc.Close()
		return nil, err
	}
	return p, nil
}

func (p *Publisher) ensureStream(ctx context.Context) error {
	_, err := p.js.Stream(ctx, StreamName)
	if err == nil {
		return nil
	}

	_, err = p.js.CreateStream(ctx, jetstream.StreamConfig{
		Name:        StreamName,
		Subjects:    []string{fmt.Sprintf("%s.>", SubjectPrefix)},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      90 * 24 * time.Hour,
		Storage:     jetstream.FileStorage,
		Replicas:    1,
		Description: "Referral intake domain events",
	})
	if err != nil {
		return fmt.Errorf("failed to create stream: %w", err)
	}
	return nil
}

// Subject returns the subject for an event.
func Subject(senderID string, eventType model.EventType) string {
	return fmt.Sprintf("%s.%s.%s", SubjectPrefix, senderID, eventType)
}

// Publish publishes one domain event and returns its stream sequence.
func (p *Publisher) Publish(ctx context.Context, event *model.Event) (uint64, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal event: %w", err)
	}

	ack, err := p.js.Publish(ctx, Subject(event.SenderID, event.Type), data)
	if err != nil {
		return 0, fmt.Errorf("failed to publish event: %w", err)
	}
	return ack.Sequence, nil
}

// IsConnected reports whether the NATS connection is up.
func (p *Publisher) IsConnected() bool {
	return p.conn != nil && p.conn.IsConnected()
}

// Close closes the NATS connection.
func (p *Publisher) Close() {
	if p.conn != nil {
		p.conn.Close()
	}
}
