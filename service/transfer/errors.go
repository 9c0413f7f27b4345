package transfer

import (
	"errors"
	"fmt"
)

// Kind classifies a form error for callers that need to branch on it, such
// as the HTTP layer choosing a status code.
type Kind string

const (
	KindNone             Kind = ""
	KindNotConnected     Kind = "not_connected"
	KindMissingInput     Kind = "missing_input"
	KindNoConnection     Kind = "no_connection"
	KindInvalidAddress   Kind = "invalid_address"
	KindInvalidAmount    Kind = "invalid_amount"
	KindSubmissionFailed Kind = "submission_failed"
	KindBusy             Kind = "busy"
)

var (
	ErrNotConnected   = errors.New("wallet not connected")
	ErrMissingInput   = errors.New("receiver address and amount are required")
	ErrNoConnection   = errors.New("no connection to solana network")
	ErrInvalidAddress = errors.New("invalid receiver address")
	ErrInvalidAmount  = errors.New("invalid amount")

	// ErrBusy is returned by the Try methods while another submission is
	// in flight. Nothing is recorded for the rejected call.
	ErrBusy = errors.New("a submission is already in progress")
)

// SubmissionError is returned when building, sending or confirming a
// transaction fails after validation passed.
type SubmissionError struct {
	Op  Operation
	Err error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

func (e *SubmissionError) Unwrap() error {
	return e.Err
}

// KindOf maps err to its Kind. Unrecognised errors are treated as
// submission failures.
func KindOf(err error) Kind {
	var subErr *SubmissionError
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrNotConnected):
		return KindNotConnected
	case errors.Is(err, ErrMissingInput):
		return KindMissingInput
	case errors.Is(err, ErrNoConnection):
		return KindNoConnection
	case errors.Is(err, ErrInvalidAddress):
		return KindInvalidAddress
	case errors.Is(err, ErrInvalidAmount):
		return KindInvalidAmount
	case errors.Is(err, ErrBusy):
		return KindBusy
	case errors.As(err, &subErr):
		return KindSubmissionFailed
	default:
		return KindSubmissionFailed
	}
}

// Message returns the text shown to the user for an error from op.
func Message(op Operation, err error) string {
	switch KindOf(err) {
	case KindNone:
		return ""
	case KindNotConnected:
		return "Please connect your wallet first"
	case KindMissingInput:
		return "Please provide both receiver address and amount"
	case KindNoConnection:
		return "Connection to Solana network failed"
	case KindInvalidAddress:
		return "Invalid receiver address format"
	case KindInvalidAmount:
		if op == OpAirdrop {
			return fmt.Sprintf("Please enter a valid amount between 0 and %s SOL", MaxAirdropSOL)
		}
		return "Please enter a valid amount greater than 0"
	case KindBusy:
		return "A submission is already in progress"
	}

	cause := err
	var subErr *SubmissionError
	if errors.As(err, &subErr) {
		cause = subErr.Err
	}
	if op == OpAirdrop {
		return fmt.Sprintf("Airdrop failed: %v", cause)
	}
	return fmt.Sprintf("Transaction failed: %v", cause)
}
