package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/clearlane/tradein-platform/internal/backend"
	"github.com/clearlane/tradein-platform/internal/booking"
	"github.com/clearlane/tradein-platform/internal/branches"
	"github.com/clearlane/tradein-platform/internal/flowstate"
	"github.com/clearlane/tradein-platform/internal/otp"
	"github.com/clearlane/tradein-platform/internal/slots"
	"github.com/clearlane/tradein-platform/internal/valuation"
	"github.com/clearlane/tradein-platform/pkg/logging"
)

// WizardHandler exposes the booking wizard over HTTP. Every route except
// session creation and branch search is scoped to a visit ID.
type WizardHandler struct {
	registry *Registry
	locator  *branches.Locator
	logger   *logging.Logger
}

func NewWizardHandler(registry *Registry, locator *branches.Locator, logger *logging.Logger) *WizardHandler {
	if registry == nil || locator == nil {
		panic("handlers: registry and locator are required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &WizardHandler{registry: registry, locator: locator, logger: logger}
}

// HealthCheck reports liveness.
func (h *WizardHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type sessionResponse struct {
	VisitID string                `json:"visitId"`
	Phase   string                `json:"phase"`
	State   flowstate.WizardState `json:"state"`
}

func (h *WizardHandler) sessionResponse(s *Session) sessionResponse {
	state := s.Store.State()
	return sessionResponse{VisitID: s.ID, Phase: state.Phase().String(), State: state}
}

// CreateSession mints a new wizard session.
func (h *WizardHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	s := h.registry.Create(r.Context())
	respondJSON(w, http.StatusCreated, h.sessionResponse(s))
}

// GetState returns the full state snapshot with the derived phase.
func (h *WizardHandler) GetState(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, h.sessionResponse(s))
}

// PatchVehicle shallow-merges a vehicle patch.
func (h *WizardHandler) PatchVehicle(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var p flowstate.VehiclePatch
	if !decodeJSON(w, r, &p) {
		return
	}
	s.Store.UpdateVehicle(p)
	h.registry.Persist(r.Context(), s)
	respondJSON(w, http.StatusOK, h.sessionResponse(s))
}

// PatchCondition shallow-merges a condition patch.
func (h *WizardHandler) PatchCondition(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var p flowstate.ConditionPatch
	if !decodeJSON(w, r, &p) {
		return
	}
	s.Store.UpdateCondition(p)
	h.registry.Persist(r.Context(), s)
	respondJSON(w, http.StatusOK, h.sessionResponse(s))
}

// PatchUser shallow-merges a user patch. A phone change after
// verification is allowed here; the booking preconditions catch the
// mismatch and force re-verification.
func (h *WizardHandler) PatchUser(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var p flowstate.UserPatch
	if !decodeJSON(w, r, &p) {
		return
	}
	s.Store.UpdateUser(p)
	h.registry.Persist(r.Context(), s)
	respondJSON(w, http.StatusOK, h.sessionResponse(s))
}

type stepRequest struct {
	Step int `json:"step"`
}

// SetStep records explicit wizard navigation.
func (h *WizardHandler) SetStep(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req stepRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	s.Store.SetCurrentStep(req.Step)
	h.registry.Persist(r.Context(), s)
	respondJSON(w, http.StatusOK, h.sessionResponse(s))
}

// ResetFlow starts the wizard over while keeping the visit alive.
func (h *WizardHandler) ResetFlow(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	h.registry.Reset(r.Context(), s)
	respondJSON(w, http.StatusOK, h.sessionResponse(s))
}

// RequestValuation submits collected fields for an offer.
func (h *WizardHandler) RequestValuation(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	v, err := s.Valuation.RequestValuation(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.registry.Persist(r.Context(), s)
	respondJSON(w, http.StatusOK, map[string]any{
		"valuation": v,
		"phase":     s.Store.State().Phase().String(),
	})
}

// SyncCondition pushes the current condition answers to the backend.
func (h *WizardHandler) SyncCondition(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := s.Valuation.SaveCondition(r.Context()); err != nil {
		h.writeError(w, err)
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}

// PersistJourney upserts the resumable journey record.
func (h *WizardHandler) PersistJourney(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := s.Valuation.PersistJourney(r.Context()); err != nil {
		h.writeError(w, err)
		return
	}
	h.registry.Persist(r.Context(), s)
	respondJSON(w, http.StatusNoContent, nil)
}

// SearchBranches lists branches near the given ZIP, nearest first. The
// results are cached on the session for slot listing.
func (h *WizardHandler) SearchBranches(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	zip := r.URL.Query().Get("zip")
	found, err := h.locator.Locate(r.Context(), zip)
	if err != nil {
		h.writeError(w, err)
		return
	}
	s.RememberBranches(found)
	respondJSON(w, http.StatusOK, map[string]any{"branches": found})
}

// ListSlots renders the open time slots for one of the searched branches.
func (h *WizardHandler) ListSlots(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	branch, ok := s.Branch(chi.URLParam(r, "branchID"))
	if !ok {
		http.Error(w, "unknown branch, search first", http.StatusNotFound)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"slots": s.Selector.Candidates(branch).Collect()})
}

// SelectSlot records a tentative slot choice. Re-selection overwrites.
func (h *WizardHandler) SelectSlot(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var slot slots.TimeSlot
	if !decodeJSON(w, r, &slot) {
		return
	}
	branch, ok := s.Branch(slot.BranchID)
	if !ok {
		http.Error(w, "unknown branch, search first", http.StatusNotFound)
		return
	}
	if err := s.Selector.Select(branch, slot); err != nil {
		h.writeError(w, err)
		return
	}
	h.registry.Persist(r.Context(), s)
	respondJSON(w, http.StatusOK, h.sessionResponse(s))
}

type otpRequestBody struct {
	Phone string `json:"phone,omitempty"`
}

// RequestOTP issues a verification code to the session's phone. A phone
// in the body updates the user namespace first.
func (h *WizardHandler) RequestOTP(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req otpRequestBody
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if req.Phone != "" {
		s.Store.UpdateUser(flowstate.UserPatch{Phone: &req.Phone})
	}
	complete := s.Store.CompleteState()
	if err := s.Gate.RequestCode(r.Context(), complete.Phone, complete.ReceiveSMS); err != nil {
		h.writeError(w, err)
		return
	}
	h.registry.Persist(r.Context(), s)
	respondJSON(w, http.StatusAccepted, map[string]string{"state": s.Gate.State().String()})
}

type otpVerifyBody struct {
	Code string `json:"code"`
}

// VerifyOTP checks a submitted code against the gate.
func (h *WizardHandler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req otpVerifyBody
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := s.Gate.Verify(req.Code); err != nil {
		h.writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"state": s.Gate.State().String()})
}

// ResendOTP issues a fresh code to the number already on the gate.
func (h *WizardHandler) ResendOTP(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := s.Gate.Resend(r.Context()); err != nil {
		h.writeError(w, err)
		return
	}
	respondJSON(w, http.StatusAccepted, map[string]string{"state": s.Gate.State().String()})
}

// SubmitBooking performs the gated appointment submission.
func (h *WizardHandler) SubmitBooking(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	resp, err := s.Submitter.Submit(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.registry.Persist(r.Context(), s)
	respondJSON(w, http.StatusCreated, map[string]any{
		"booking": resp,
		"phase":   s.Store.State().Phase().String(),
	})
}

func (h *WizardHandler) session(w http.ResponseWriter, r *http.Request) (*Session, bool) {
	visitID := chi.URLParam(r, "visitID")
	s, ok := h.registry.Session(r.Context(), visitID)
	if !ok {
		http.Error(w, "unknown visit", http.StatusNotFound)
		return nil, false
	}
	return s, true
}

type errorResponse struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

// writeError maps domain errors onto HTTP statuses. Validation and gate
// precondition failures are the caller's fault; backend exhaustion and
// terminal responses surface as upstream failures.
func (h *WizardHandler) writeError(w http.ResponseWriter, err error) {
	var bookingValidation *booking.ValidationError
	var valuationValidation *valuation.ValidationError

	switch {
	case errors.As(err, &bookingValidation),
		errors.As(err, &valuationValidation),
		errors.Is(err, branches.ErrInvalidZip),
		errors.Is(err, otp.ErrSMSOptInRequired),
		errors.Is(err, otp.ErrNoPhone),
		errors.Is(err, slots.ErrSlotBranchMismatch):
		respondJSON(w, http.StatusBadRequest, errorResponse{Error: "validation_failed", Detail: err.Error()})
	case errors.Is(err, otp.ErrInvalidCode):
		respondJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid_code"})
	case errors.Is(err, otp.ErrCodeExpired):
		respondJSON(w, http.StatusBadRequest, errorResponse{Error: "code_expired"})
	case errors.Is(err, otp.ErrLocked):
		respondJSON(w, http.StatusLocked, errorResponse{Error: "verification_locked"})
	case errors.Is(err, slots.ErrSlotUnavailable), errors.Is(err, booking.ErrSlotUnavailable):
		respondJSON(w, http.StatusConflict, errorResponse{Error: "slot_unavailable"})
	case errors.Is(err, booking.ErrSubmissionInFlight):
		respondJSON(w, http.StatusConflict, errorResponse{Error: "submission_in_flight"})
	default:
		var exhausted *backend.ExhaustedError
		var terminal *backend.TerminalServiceError
		if errors.As(err, &exhausted) {
			h.logger.Error("backend attempts exhausted", "operation", exhausted.Operation, "error", err)
			respondJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "backend_unreachable"})
			return
		}
		if errors.As(err, &terminal) {
			h.logger.Error("backend rejected request", "operation", terminal.Operation, "status", terminal.StatusCode)
			respondJSON(w, http.StatusBadGateway, errorResponse{Error: "backend_rejected", Detail: terminal.Title})
			return
		}
		h.logger.Error("unhandled wizard error", "error", err)
		respondJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal_error"})
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, out any) bool {
	if err := json.NewDecoder(r.Body).Decode(out); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return false
	}
	return true
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	if payload == nil {
		w.WriteHeader(status)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
