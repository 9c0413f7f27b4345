package nats

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Submission statuses.
const (
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// SubmissionEvent describes one finished transfer or airdrop.
// It is published to the subject "submissions.{operation}.{status}".
type SubmissionEvent struct {
	ID        string `json:"id"`
	Operation string `json:"operation"` // "transfer" or "airdrop"

	// Accounts
	Wallet   string `json:"wallet,omitempty"`   // Connected wallet; empty if none was connected
	Receiver string `json:"receiver,omitempty"` // Transfers only

	// Amounts
	AmountSOL string `json:"amount_sol"`
	Lamports  uint64 `json:"lamports"`

	// Outcome
	Signature string `json:"signature,omitempty"`
	Status    string `json:"status"`
	ErrorKind string `json:"error_kind,omitempty"`
	Error     string `json:"error,omitempty"`

	// Metadata
	Network     string    `json:"network"`
	PublishedAt time.Time `json:"published_at"`
}

// NewSubmissionEvent returns an event with a fresh ID and timestamp.
func NewSubmissionEvent(operation, status string) *SubmissionEvent {
	return &SubmissionEvent{
		ID:          uuid.NewString(),
		Operation:   operation,
		Status:      status,
		PublishedAt: time.Now().UTC(),
	}
}

// Subject returns the subject the event is published on.
func (e *SubmissionEvent) Subject() string {
	return fmt.Sprintf("%s.%s.%s", SubjectPrefix, e.Operation, e.Status)
}
