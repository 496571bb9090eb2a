package handlers

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/clearlane/tradein-platform/internal/backend"
	"github.com/clearlane/tradein-platform/internal/booking"
	"github.com/clearlane/tradein-platform/internal/branches"
	"github.com/clearlane/tradein-platform/internal/flowstate"
	"github.com/clearlane/tradein-platform/internal/observability/metrics"
	"github.com/clearlane/tradein-platform/internal/otp"
	"github.com/clearlane/tradein-platform/internal/slots"
	"github.com/clearlane/tradein-platform/internal/sms"
	"github.com/clearlane/tradein-platform/internal/valuation"
	"github.com/clearlane/tradein-platform/pkg/logging"
)

// Session bundles the per-visit collaborators: the flow state store, the
// verification gate, and the services that act on them. Everything hangs
// off the visit ID the frontend carries between requests.
type Session struct {
	ID        string
	Store     *flowstate.Store
	Gate      *otp.Gate
	Selector  *slots.Selector
	Valuation *valuation.Service
	Submitter *booking.Submitter

	mu       sync.Mutex
	branches map[string]branches.Branch // last search results, keyed by ID
}

// RememberBranches caches the results of a branch search so slot listing
// and selection can resolve a branch by ID without a second backend call.
func (s *Session) RememberBranches(found []branches.Branch) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.branches = make(map[string]branches.Branch, len(found))
	for _, b := range found {
		s.branches[b.ID] = b
	}
}

// Branch resolves a previously searched branch by ID.
func (s *Session) Branch(id string) (branches.Branch, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.branches[id]
	return b, ok
}

// RegistryConfig carries the shared dependencies every session is built
// from.
type RegistryConfig struct {
	Backend  *backend.Client
	Sender   sms.Sender
	Records  booking.RecordStore // nil disables audit persistence
	Snapshot *flowstate.SessionStore
	Logger   *logging.Logger
	Metrics  *metrics.WizardMetrics

	BackendMaxAttempts int
	OTPMaxAttempts     int
	OTPCodeTTL         time.Duration
	SlotWindowDays     int
}

// Registry owns the live sessions. Sessions are created on demand and
// rehydrated from the Redis snapshot when the visit ID is seen again
// after a restart.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session
	cfg      RegistryConfig
}

func NewRegistry(cfg RegistryConfig) *Registry {
	if cfg.Backend == nil || cfg.Sender == nil {
		panic("handlers: backend client and sms sender are required")
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	return &Registry{sessions: make(map[string]*Session), cfg: cfg}
}

// Create mints a new session under a fresh visit ID.
func (r *Registry) Create(ctx context.Context) *Session {
	visitID := uuid.NewString()
	s := r.build(visitID)
	r.mu.Lock()
	r.sessions[visitID] = s
	r.mu.Unlock()
	r.Persist(ctx, s)
	return s
}

// Session returns the live session for the visit, rehydrating from the
// snapshot store when the process has restarted since the visit began.
// Unknown visit IDs yield (nil, false).
func (r *Registry) Session(ctx context.Context, visitID string) (*Session, bool) {
	r.mu.Lock()
	s, ok := r.sessions[visitID]
	r.mu.Unlock()
	if ok {
		return s, true
	}
	if r.cfg.Snapshot == nil {
		return nil, false
	}
	snap, err := r.cfg.Snapshot.Load(ctx, visitID)
	if err != nil {
		r.cfg.Logger.Error("session snapshot load failed", "visit_id", visitID, "error", err)
		return nil, false
	}
	if snap == nil {
		return nil, false
	}
	s = r.build(visitID)
	s.Store.Hydrate(*snap)
	r.mu.Lock()
	if existing, raced := r.sessions[visitID]; raced {
		s = existing
	} else {
		r.sessions[visitID] = s
	}
	r.mu.Unlock()
	return s, true
}

// Persist writes the session's current state to the snapshot store.
// Failures are logged, never surfaced: the in-memory state stays
// authoritative.
func (r *Registry) Persist(ctx context.Context, s *Session) {
	if r.cfg.Snapshot == nil {
		return
	}
	if err := r.cfg.Snapshot.Save(ctx, s.ID, s.Store.State()); err != nil {
		r.cfg.Logger.Error("session snapshot save failed", "visit_id", s.ID, "error", err)
	}
}

// Reset clears the flow state and verification gate but keeps the visit
// alive, matching the wizard's "start over" action.
func (r *Registry) Reset(ctx context.Context, s *Session) {
	s.Store.ResetFlow()
	s.Store.UpdateJourney(flowstate.JourneyPatch{VisitID: &s.ID})
	s.Gate.Reset()
	if r.cfg.Snapshot != nil {
		if err := r.cfg.Snapshot.Delete(ctx, s.ID); err != nil {
			r.cfg.Logger.Error("session snapshot delete failed", "visit_id", s.ID, "error", err)
		}
	}
}

func (r *Registry) build(visitID string) *Session {
	store := flowstate.NewStore()
	store.UpdateJourney(flowstate.JourneyPatch{VisitID: &visitID})
	gate := otp.NewGate(r.cfg.Sender, r.cfg.OTPMaxAttempts, r.cfg.OTPCodeTTL, r.cfg.Logger, r.cfg.Metrics)
	return &Session{
		ID:        visitID,
		Store:     store,
		Gate:      gate,
		Selector:  slots.NewSelector(store, r.cfg.SlotWindowDays),
		Valuation: valuation.NewService(store, r.cfg.Backend, r.cfg.Logger, r.cfg.BackendMaxAttempts),
		Submitter: booking.NewSubmitter(store, gate, r.cfg.Backend, r.cfg.Records, r.cfg.Logger, r.cfg.Metrics),
	}
}
