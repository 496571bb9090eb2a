// Package valuation drives the appraisal backend calls that turn collected
// wizard fields into an offer: requesting a valuation, pushing condition
// updates, and upserting the customer journey record.
package valuation

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/clearlane/tradein-platform/internal/backend"
	"github.com/clearlane/tradein-platform/internal/contract"
	"github.com/clearlane/tradein-platform/internal/flowstate"
	"github.com/clearlane/tradein-platform/pkg/logging"
)

var valuationTracer = otel.Tracer("tradein.internal.valuation")

// ValidationError reports a missing or malformed field before any network
// call is made.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("valuation: invalid %s: %s", e.Field, e.Reason)
}

// Service orchestrates valuation calls against the appraisal backend and
// writes the results back into the session's flow state.
type Service struct {
	store       *flowstate.Store
	client      *backend.Client
	logger      *logging.Logger
	maxAttempts int
}

func NewService(store *flowstate.Store, client *backend.Client, logger *logging.Logger, maxAttempts int) *Service {
	if store == nil || client == nil {
		panic("valuation: store and client are required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Service{store: store, client: client, logger: logger, maxAttempts: maxAttempts}
}

// RequestValuation submits the collected vehicle and contact fields and
// stores the returned offer. The backend upserts on cvid, so the read
// policy retries transport failures.
func (s *Service) RequestValuation(ctx context.Context) (*contract.Valuation, error) {
	ctx, span := valuationTracer.Start(ctx, "valuation.request")
	defer span.End()

	complete := s.store.CompleteState()
	if err := validateForValuation(complete); err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(
		attribute.String("tradein.zip_code", complete.ZipCode),
		attribute.Int("tradein.odometer", complete.Odometer),
	)

	req := contract.MapToValuationRequest(complete)
	var wire contract.ValuationResponseWire
	err := s.client.InvokeJSON(ctx, backend.IdempotentRead("valuation.request", s.maxAttempts), http.MethodPost, "/valuations", nil, req, &wire)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	v := contract.MapFromValuationResponse(wire)
	s.store.UpdateValuation(v.ValuationPatch())
	if v.CustomerJourneyID != "" {
		s.store.UpdateJourney(flowstate.JourneyPatch{CustomerJourneyID: &v.CustomerJourneyID})
	}
	if v.CustomerVehicleID != "" {
		s.store.UpdateVehicle(flowstate.VehiclePatch{CustomerVehicleID: &v.CustomerVehicleID})
	}

	s.logger.Info("valuation received",
		"customer_vehicle_id", v.CustomerVehicleID,
		"formatted_value", v.FormattedValue)
	return &v, nil
}

// SaveCondition pushes the current condition answers to the backend. It
// requires a vehicle identifier from an earlier valuation.
func (s *Service) SaveCondition(ctx context.Context) error {
	ctx, span := valuationTracer.Start(ctx, "valuation.save_condition")
	defer span.End()

	complete := s.store.CompleteState()
	if complete.CustomerVehicleID == "" {
		err := &ValidationError{Field: "customerVehicleId", Reason: "request a valuation before updating condition"}
		span.RecordError(err)
		return err
	}

	update := contract.MapToConditionUpdate(complete)
	path := fmt.Sprintf("/vehicles/%s/condition", complete.CustomerVehicleID)
	if err := s.client.InvokeJSON(ctx, backend.IdempotentRead("valuation.condition", s.maxAttempts), http.MethodPut, path, nil, update, nil); err != nil {
		span.RecordError(err)
		return err
	}
	return nil
}

// PersistJourney upserts the journey record after meaningful state changes
// so an abandoned session can be resumed server-side. The backend keys on
// customerJourneyId, which makes the upsert safe to retry.
func (s *Service) PersistJourney(ctx context.Context) error {
	ctx, span := valuationTracer.Start(ctx, "valuation.persist_journey")
	defer span.End()

	complete := s.store.CompleteState()
	rec := contract.MapToJourneyRecord(complete)

	var resp struct {
		CustomerJourneyID string `json:"customerJourneyId"`
	}
	if err := s.client.InvokeJSON(ctx, backend.IdempotentRead("journey.upsert", s.maxAttempts), http.MethodPost, "/journeys", nil, rec, &resp); err != nil {
		span.RecordError(err)
		return err
	}
	if resp.CustomerJourneyID != "" && resp.CustomerJourneyID != complete.CustomerJourneyID {
		s.store.UpdateJourney(flowstate.JourneyPatch{CustomerJourneyID: &resp.CustomerJourneyID})
	}
	return nil
}

func validateForValuation(cs flowstate.CompleteState) error {
	if cs.Odometer <= 0 {
		return &ValidationError{Field: "odometer", Reason: "must be a positive mileage"}
	}
	if len(cs.ZipCode) != 5 || strings.Trim(cs.ZipCode, "0123456789") != "" {
		return &ValidationError{Field: "zipCode", Reason: "must be five digits"}
	}
	if !strings.Contains(cs.Email, "@") {
		return &ValidationError{Field: "email", Reason: "must be an email address"}
	}
	return nil
}
