package backend

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/google/uuid"
)

// Class is the outcome of classifying a failed attempt.
type Class int

const (
	// Retryable failures may succeed on a later attempt (timeouts,
	// connection resets, unclassified transport errors).
	Retryable Class = iota
	// Terminal failures cannot be fixed by retrying (missing resources,
	// server faults from malformed input). They fail on the first attempt.
	Terminal
)

// Classifier maps an HTTP status (0 when the transport itself failed) and
// a transport error to a retry class.
type Classifier func(status int, err error) Class

// Policy declares, per endpoint, how an operation may be retried. Each
// backend call site passes a policy appropriate to its idempotency:
// duplicate SMS sends and duplicate bookings are correctness bugs, not
// efficiency ones, so those operations use AtMostOnce.
type Policy struct {
	Operation   string
	MaxAttempts int
	Backoff     time.Duration
	Classify    Classifier
}

// DefaultClassifier treats any HTTP response with an error status as
// Terminal and any transport-level failure (other than cancellation) as
// Retryable.
func DefaultClassifier(status int, err error) Class {
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return Terminal
		}
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return Retryable
		}
		return Retryable
	}
	// 404 and 500 are resource-state errors: the resource is missing or the
	// input is malformed, and replaying the request cannot change that.
	return Terminal
}

// IdempotentRead returns a policy for safe, repeatable reads.
func IdempotentRead(operation string, maxAttempts int) Policy {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return Policy{
		Operation:   operation,
		MaxAttempts: maxAttempts,
		Classify:    DefaultClassifier,
	}
}

// AtMostOnce returns a policy for operations with non-idempotent side
// effects (SMS send, booking submission). A single attempt, no retries.
func AtMostOnce(operation string) Policy {
	return Policy{
		Operation:   operation,
		MaxAttempts: 1,
		Classify:    DefaultClassifier,
	}
}

func (p Policy) normalized(defaultBackoff time.Duration) Policy {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}
	if p.Backoff <= 0 {
		p.Backoff = defaultBackoff
	}
	if p.Classify == nil {
		p.Classify = DefaultClassifier
	}
	if p.Operation == "" {
		p.Operation = "unnamed"
	}
	return p
}

// retryableRequest tracks one logical outbound operation through its
// attempt budget. It exists so attempt counting and termination are
// observable in one place instead of being implicit in a recursion.
type retryableRequest struct {
	id                uuid.UUID
	operation         string
	attemptsRemaining int
	lastErr           error
}

func newRetryableRequest(p Policy) *retryableRequest {
	return &retryableRequest{
		id:                uuid.New(),
		operation:         p.Operation,
		attemptsRemaining: p.MaxAttempts,
	}
}

func (r *retryableRequest) consume(err error) {
	r.attemptsRemaining--
	r.lastErr = err
}

func (r *retryableRequest) exhausted() bool { return r.attemptsRemaining <= 0 }
