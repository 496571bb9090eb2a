package handlers

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/clearlane/tradein-platform/internal/backend"
	"github.com/clearlane/tradein-platform/internal/branches"
	"github.com/clearlane/tradein-platform/internal/flowstate"
)

type nopSender struct{}

func (nopSender) Send(context.Context, string, string) error { return nil }

func testConfig(t *testing.T, snapshot *flowstate.SessionStore) RegistryConfig {
	t.Helper()
	client, err := backend.New(backend.Config{BaseURL: "http://backend.test", Backoff: time.Millisecond})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return RegistryConfig{
		Backend:            client,
		Sender:             nopSender{},
		Snapshot:           snapshot,
		BackendMaxAttempts: 3,
		OTPMaxAttempts:     3,
		OTPCodeTTL:         5 * time.Minute,
		SlotWindowDays:     7,
	}
}

func TestRegistryCreateAssignsVisitID(t *testing.T) {
	registry := NewRegistry(testConfig(t, nil))
	s := registry.Create(context.Background())
	if s.ID == "" {
		t.Fatal("expected a visit id")
	}
	if got := s.Store.CompleteState().VisitID; got != s.ID {
		t.Fatalf("expected visit id in flow state, got %q", got)
	}

	found, ok := registry.Session(context.Background(), s.ID)
	if !ok || found != s {
		t.Fatal("expected the same live session back")
	}
}

func TestRegistryUnknownVisit(t *testing.T) {
	registry := NewRegistry(testConfig(t, nil))
	if _, ok := registry.Session(context.Background(), "missing"); ok {
		t.Fatal("expected unknown visit to miss")
	}
}

func TestRegistryRehydratesFromSnapshot(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	snapshot := flowstate.NewSessionStore(rdb, time.Hour)
	ctx := context.Background()

	first := NewRegistry(testConfig(t, snapshot))
	s := first.Create(ctx)
	year := 2019
	mk := "Honda"
	s.Store.UpdateVehicle(flowstate.VehiclePatch{Year: &year, Make: &mk})
	first.Persist(ctx, s)

	// A new registry simulates a process restart; the visit must resume.
	second := NewRegistry(testConfig(t, snapshot))
	resumed, ok := second.Session(ctx, s.ID)
	if !ok {
		t.Fatal("expected session rehydrated from snapshot")
	}
	state := resumed.Store.State()
	if state.Vehicle.Year != 2019 || state.Vehicle.Make != "Honda" {
		t.Fatalf("expected vehicle fields restored, got %+v", state.Vehicle)
	}
	if state.Journey.VisitID != s.ID {
		t.Fatalf("expected visit id restored, got %q", state.Journey.VisitID)
	}
}

func TestRegistryResetClearsStateAndSnapshot(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	snapshot := flowstate.NewSessionStore(rdb, time.Hour)
	ctx := context.Background()

	registry := NewRegistry(testConfig(t, snapshot))
	s := registry.Create(ctx)
	odometer := 42000
	s.Store.UpdateCondition(flowstate.ConditionPatch{Odometer: &odometer})
	registry.Persist(ctx, s)

	registry.Reset(ctx, s)
	if got := s.Store.CompleteState().Odometer; got != 0 {
		t.Fatalf("expected cleared state, got odometer %d", got)
	}
	snap, err := snapshot.Load(ctx, s.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap != nil {
		t.Fatal("expected snapshot deleted on reset")
	}
}

func TestSessionBranchCache(t *testing.T) {
	registry := NewRegistry(testConfig(t, nil))
	s := registry.Create(context.Background())

	s.RememberBranches([]branches.Branch{{ID: "br-1", Name: "Downtown"}, {ID: "br-2", Name: "Midtown"}})
	if b, ok := s.Branch("br-2"); !ok || b.Name != "Midtown" {
		t.Fatalf("expected cached branch, got %+v ok=%v", b, ok)
	}
	if _, ok := s.Branch("br-9"); ok {
		t.Fatal("expected miss for unknown branch")
	}

	// A new search replaces the whole cache.
	s.RememberBranches([]branches.Branch{{ID: "br-3"}})
	if _, ok := s.Branch("br-1"); ok {
		t.Fatal("expected old results evicted")
	}
}
