package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/brojonat/solmoney/service/metrics"
	natspkg "github.com/brojonat/solmoney/service/nats"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// SSEPublisher manages Server-Sent Events connections for submission streaming.
type SSEPublisher struct {
	nc     *nats.Conn
	js     jetstream.JetStream
	logger *slog.Logger
}

// NewSSEPublisher creates a new SSE publisher that subscribes to NATS internally.
func NewSSEPublisher(natsURL string, logger *slog.Logger) (*SSEPublisher, error) {
	nc, err := natspkg.Connect(natsURL, "solmoney-sse-publisher")
	if err != nil {
		return nil, err
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	logger.Info("SSE publisher initialized", "nats_url", natsURL)

	return &SSEPublisher{
		nc:     nc,
		js:     js,
		logger: logger,
	}, nil
}

// Close closes the NATS connection.
func (p *SSEPublisher) Close() error {
	if p.nc != nil {
		p.nc.Close()
		p.logger.Info("SSE publisher closed")
	}
	return nil
}

// submissionSubject returns the NATS filter subject for an optional
// operation filter ("transfer" or "airdrop").
func submissionSubject(operation string) (string, error) {
	switch operation {
	case "":
		return natspkg.StreamSubjects, nil
	case "transfer", "airdrop":
		return fmt.Sprintf("%s.%s.*", natspkg.SubjectPrefix, operation), nil
	default:
		return "", fmt.Errorf("invalid operation %q: must be transfer or airdrop", operation)
	}
}

// handleStreamSubmissions streams finished submissions as SSE.
// GET /api/v1/stream/submissions[?operation=transfer|airdrop]
func handleStreamSubmissions(publisher *SSEPublisher, m *metrics.Metrics, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		operation := r.URL.Query().Get("operation")
		subject, err := submissionSubject(operation)
		if err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}

		// The stream outlives the server's write timeout.
		rc := http.NewResponseController(w)
		if err := rc.SetWriteDeadline(time.Time{}); err != nil {
			logger.DebugContext(r.Context(), "could not clear write deadline", "error", err)
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")

		if flusher, ok := w.(http.Flusher); ok {
			flusher.Flush()
		}

		if m != nil {
			m.RecordSSEConnectionChange(1)
			defer m.RecordSSEConnectionChange(-1)
		}

		logger.DebugContext(r.Context(), "SSE client connected",
			"subject", subject,
			"remote_addr", r.RemoteAddr,
		)

		// Ephemeral consumer, deleted by the server once inactive.
		cons, err := publisher.js.CreateOrUpdateConsumer(r.Context(), natspkg.StreamName, jetstream.ConsumerConfig{
			FilterSubject:     subject,
			AckPolicy:         jetstream.AckExplicitPolicy,
			DeliverPolicy:     jetstream.DeliverNewPolicy,
			InactiveThreshold: time.Minute,
		})
		if err != nil {
			logger.ErrorContext(r.Context(), "failed to create consumer",
				"subject", subject,
				"error", err,
			)
			fmt.Fprintf(w, "event: error\ndata: {\"error\": \"failed to subscribe\"}\n\n")
			return
		}

		msgChan := make(chan jetstream.Msg, 10)
		doneChan := make(chan struct{})

		go func() {
			defer close(doneChan)
			cc, err := cons.Consume(func(msg jetstream.Msg) {
				select {
				case msgChan <- msg:
				case <-r.Context().Done():
					return
				}
			})
			if err != nil {
				logger.ErrorContext(r.Context(), "failed to start consuming messages",
					"error", err,
				)
				return
			}
			<-r.Context().Done()
			cc.Stop()
		}()

		fmt.Fprintf(w, "event: connected\ndata: {\"subject\":%q}\n\n", subject)
		if flusher, ok := w.(http.Flusher); ok {
			flusher.Flush()
		}

		keepalive := time.NewTicker(10 * time.Second)
		defer keepalive.Stop()

		for {
			select {
			case <-keepalive.C:
				fmt.Fprintf(w, ": keepalive\n\n")
				if flusher, ok := w.(http.Flusher); ok {
					flusher.Flush()
				}

			case msg := <-msgChan:
				var event natspkg.SubmissionEvent
				if err := json.Unmarshal(msg.Data(), &event); err != nil {
					logger.WarnContext(r.Context(), "failed to unmarshal event",
						"error", err,
					)
					msg.Ack()
					continue
				}

				if err := writeSSEEvent(w, "submission", &event); err != nil {
					logger.WarnContext(r.Context(), "failed to write event",
						"error", err,
					)
					msg.Ack()
					continue
				}
				msg.Ack()

				if m != nil {
					m.RecordSSEEventSent("submission")
				}
				logger.DebugContext(r.Context(), "sent submission event",
					"id", event.ID,
					"operation", event.Operation,
					"signature", event.Signature,
				)

			case <-r.Context().Done():
				logger.DebugContext(r.Context(), "SSE client disconnected",
					"subject", subject,
					"remote_addr", r.RemoteAddr,
				)
				return

			case <-doneChan:
				return
			}
		}
	})
}

// writeSSEEvent writes one named SSE event with a JSON payload and flushes.
func writeSSEEvent(w http.ResponseWriter, name string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, data); err != nil {
		return err
	}
	if flusher, ok := w.(http.Flusher); ok {
		flusher.Flush()
	}
	return nil
}
