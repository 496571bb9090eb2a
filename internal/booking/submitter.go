// Package booking composes the wizard state and OTP result into the final
// appointment submission.
package booking

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/clearlane/tradein-platform/internal/backend"
	"github.com/clearlane/tradein-platform/internal/contract"
	"github.com/clearlane/tradein-platform/internal/flowstate"
	"github.com/clearlane/tradein-platform/internal/observability/metrics"
	"github.com/clearlane/tradein-platform/internal/otp"
	"github.com/clearlane/tradein-platform/pkg/logging"
)

var bookingTracer = otel.Tracer("tradein.internal.booking")

// ValidationError is a precondition failure surfaced immediately and never
// retried.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("booking: %s: %s", e.Field, e.Reason)
}

var (
	// ErrSlotUnavailable means another customer took the slot between
	// listing and submission. The caller returns the user to slot
	// selection; no substitute slot is picked silently.
	ErrSlotUnavailable = errors.New("booking: slot no longer available")
	// ErrSubmissionInFlight makes a second submit while one is running a
	// duplicate guard, not a parallel attempt.
	ErrSubmissionInFlight = errors.New("booking: submission already in flight")
)

// RecordStore persists confirmed bookings. Failures here never unconfirm a
// booking the backend accepted.
type RecordStore interface {
	SaveConfirmed(ctx context.Context, rec ConfirmedRecord) error
}

// ConfirmedRecord is the locally persisted outcome of a confirmed booking.
type ConfirmedRecord struct {
	ConfirmationNumber string
	CustomerJourneyID  string
	VisitID            string
	BranchID           string
	TimeSlotID         string
	Date               string
	Time               string
	Email              string
	Phone              string
}

// Submitter performs the gated, at-most-once booking submission.
type Submitter struct {
	store   *flowstate.Store
	gate    *otp.Gate
	client  *backend.Client
	records RecordStore
	logger  *logging.Logger
	metrics *metrics.WizardMetrics

	mu       sync.Mutex
	inFlight bool
}

func NewSubmitter(store *flowstate.Store, gate *otp.Gate, client *backend.Client, records RecordStore, logger *logging.Logger, m *metrics.WizardMetrics) *Submitter {
	if store == nil || gate == nil || client == nil {
		panic("booking: store, gate and client are required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Submitter{
		store:   store,
		gate:    gate,
		client:  client,
		records: records,
		logger:  logger,
		metrics: m,
	}
}

// Submit validates the preconditions, maps state to the backend contract,
// and submits with a non-retrying policy. On success the appointment is
// confirmed with the server-echoed fields; on any failure the confirmed
// flag is left untouched.
func (s *Submitter) Submit(ctx context.Context) (*contract.BookingResponse, error) {
	ctx, span := bookingTracer.Start(ctx, "booking.submit")
	defer span.End()

	complete := s.store.CompleteState()
	if err := s.checkPreconditions(complete); err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(
		attribute.String("tradein.journey_id", complete.CustomerJourneyID),
		attribute.String("tradein.branch_id", complete.BranchID),
		attribute.String("tradein.time_slot_id", complete.TimeSlotID),
	)

	s.mu.Lock()
	if s.inFlight {
		s.mu.Unlock()
		return nil, ErrSubmissionInFlight
	}
	s.inFlight = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.inFlight = false
		s.mu.Unlock()
	}()

	req := contract.MapToBookingRequest(complete)
	var resp contract.BookingResponse
	err := s.client.InvokeJSON(ctx, backend.AtMostOnce("booking.submit"), http.MethodPost, "/appointments", nil, req, &resp)
	if err != nil {
		span.RecordError(err)
		var terminal *backend.TerminalServiceError
		if errors.As(err, &terminal) && terminal.StatusCode == http.StatusConflict {
			s.metrics.ObserveSlotConflict()
			s.logger.Warn("slot taken before submission", "time_slot_id", complete.TimeSlotID)
			return nil, ErrSlotUnavailable
		}
		var exhausted *backend.ExhaustedError
		if errors.As(err, &exhausted) {
			s.metrics.ObserveRetryExhausted(exhausted.Operation)
		}
		return nil, err
	}

	s.store.UpdateAppointment(contract.AppointmentPatch(resp))
	s.metrics.ObserveBookingConfirmed()
	s.logger.Info("booking confirmed",
		"confirmation", resp.ConfirmationNumber,
		"branch_id", resp.BranchID,
		"time_slot_id", resp.TimeSlotID,
	)

	if s.records != nil {
		rec := ConfirmedRecord{
			ConfirmationNumber: resp.ConfirmationNumber,
			CustomerJourneyID:  complete.CustomerJourneyID,
			VisitID:            complete.VisitID,
			BranchID:           resp.BranchID,
			TimeSlotID:         resp.TimeSlotID,
			Date:               resp.Date,
			Time:               resp.Time,
			Email:              complete.Email,
			Phone:              complete.Phone,
		}
		if err := s.records.SaveConfirmed(ctx, rec); err != nil {
			// The backend already confirmed; a local record failure is
			// logged, not surfaced as a booking failure.
			s.logger.Error("failed to persist confirmed booking", "error", err, "confirmation", rec.ConfirmationNumber)
		}
	}
	return &resp, nil
}

func (s *Submitter) checkPreconditions(complete flowstate.CompleteState) error {
	if complete.TimeSlotID == "" {
		return &ValidationError{Field: "appointment", Reason: "select a time slot before booking"}
	}
	if !complete.ReceiveSMS {
		return &ValidationError{Field: "receiveSMS", Reason: "opt in to SMS to verify your phone, or call a branch to book"}
	}
	if s.gate.State() != otp.StateVerified {
		return &ValidationError{Field: "otp", Reason: "verify your phone number before booking"}
	}
	if s.gate.Phone() != complete.Phone {
		return &ValidationError{Field: "phone", Reason: "phone number changed since verification"}
	}
	return nil
}
