package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/brojonat/solmoney/service/metrics"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// Publisher defines the interface for publishing submission events to NATS.
type Publisher interface {
	// PublishSubmission publishes a single event to the subject returned by
	// event.Subject().
	PublishSubmission(ctx context.Context, event *SubmissionEvent) error

	// Close closes the connection to NATS.
	Close() error
}

// JetStreamPublisher publishes submission events to NATS JetStream.
type JetStreamPublisher struct {
	nc      *nats.Conn
	js      jetstream.JetStream
	metrics *metrics.Metrics
	logger  *slog.Logger
}

const (
	// StreamName is the name of the JetStream stream for submissions.
	StreamName = "SUBMISSIONS"

	// SubjectPrefix is the first token of every submission subject.
	SubjectPrefix = "submissions"

	// StreamSubjects is the subject pattern for the stream.
	StreamSubjects = SubjectPrefix + ".>"

	// StreamRetention is how long messages are retained (7 days by default).
	StreamRetention = 7 * 24 * time.Hour
)

// Connect dials NATS with the reconnect settings shared by the publisher and
// subscribers.
func Connect(natsURL, name string) (*nats.Conn, error) {
	nc, err := nats.Connect(natsURL,
		nats.Name(name),
		nats.Timeout(10*time.Second),
		nats.ReconnectWait(1*time.Second),
		nats.MaxReconnects(-1), // Unlimited reconnects
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return nc, nil
}

// NewPublisher creates a new JetStream publisher.
// It connects to NATS and ensures the stream exists. If m is nil, no metrics
// are recorded.
func NewPublisher(natsURL string, m *metrics.Metrics, logger *slog.Logger) (*JetStreamPublisher, error) {
	nc, err := Connect(natsURL, "solmoney-publisher")
	if err != nil {
		return nil, err
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	publisher := &JetStreamPublisher{
		nc:      nc,
		js:      js,
		metrics: m,
		logger:  logger,
	}

	if err := EnsureStream(context.Background(), js, logger); err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to ensure stream exists: %w", err)
	}

	logger.Info("NATS publisher initialized",
		"url", natsURL,
		"stream", StreamName,
	)

	return publisher, nil
}

// EnsureStream creates the submissions stream if it doesn't exist.
func EnsureStream(ctx context.Context, js jetstream.JetStream, logger *slog.Logger) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	stream, err := js.Stream(ctx, StreamName)
	if err == nil {
		info, err := stream.Info(ctx)
		if err == nil {
			logger.Debug("JetStream stream already exists",
				"stream", StreamName,
				"messages", info.State.Msgs,
			)
		}
		return nil
	}

	logger.Info("creating JetStream stream", "stream", StreamName)

	_, err = js.CreateStream(ctx, jetstream.StreamConfig{
		Name:        StreamName,
		Description: "Finished SOL transfers and airdrops",
		Subjects:    []string{StreamSubjects},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      StreamRetention,
		Storage:     jetstream.FileStorage,
		Replicas:    1,
	})
	if err != nil {
		return fmt.Errorf("failed to create stream: %w", err)
	}

	logger.Info("JetStream stream created successfully", "stream", StreamName)
	return nil
}

// PublishSubmission publishes a single submission event.
func (p *JetStreamPublisher) PublishSubmission(ctx context.Context, event *SubmissionEvent) (err error) {
	subject := event.Subject()

	if p.metrics != nil {
		defer metrics.Timer(time.Now(), func(d float64) {
			status := "success"
			if err != nil {
				status = "error"
			}
			p.metrics.RecordNATSPublish(subject, status, d)
		})()
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal submission event: %w", err)
	}

	if _, err = p.js.Publish(ctx, subject, data); err != nil {
		return fmt.Errorf("failed to publish submission: %w", err)
	}

	p.logger.Debug("published submission event",
		"subject", subject,
		"id", event.ID,
		"signature", event.Signature,
	)

	return nil
}

// Close closes the connection to NATS.
func (p *JetStreamPublisher) Close() error {
	if p.nc != nil {
		p.nc.Close()
		p.logger.Info("NATS publisher closed")
	}
	return nil
}
