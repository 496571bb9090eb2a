package flowstate

import (
	"testing"
)

func strp(s string) *string { return &s }
func intp(n int) *int       { return &n }
func boolp(b bool) *bool    { return &b }
func f64p(f float64) *float64 {
	return &f
}

func TestUpdateMergesOnlyPresentFields(t *testing.T) {
	s := NewStore()
	s.UpdateVehicle(VehiclePatch{Year: intp(2019), Make: strp("Honda"), Model: strp("Civic")})
	s.UpdateVehicle(VehiclePatch{Series: strp("EX")})

	got := s.State().Vehicle
	if got.Year != 2019 || got.Make != "Honda" || got.Model != "Civic" || got.Series != "EX" {
		t.Errorf("unexpected vehicle state: %+v", got)
	}
}

func TestLastWriteWinsAcrossInterleavedUpdates(t *testing.T) {
	s := NewStore()
	s.UpdateUser(UserPatch{Email: strp("first@example.com"), ZipCode: strp("10001")})
	s.UpdateCondition(ConditionPatch{Odometer: intp(42000)})
	s.UpdateUser(UserPatch{Email: strp("second@example.com")})
	s.UpdateCondition(ConditionPatch{Odometer: intp(43000), RunsAndDrives: boolp(true)})

	complete := s.CompleteState()
	if complete.Email != "second@example.com" {
		t.Errorf("expected last email write to win, got %s", complete.Email)
	}
	if complete.ZipCode != "10001" {
		t.Errorf("expected earlier zip preserved, got %s", complete.ZipCode)
	}
	if complete.Odometer != 43000 {
		t.Errorf("expected last odometer write to win, got %d", complete.Odometer)
	}
	if complete.RunsAndDrives == nil || !*complete.RunsAndDrives {
		t.Error("expected runsAndDrives true")
	}
}

func TestCompleteStateResolvesCustomerVehicleID(t *testing.T) {
	s := NewStore()
	s.UpdateVehicle(VehiclePatch{CustomerVehicleID: strp("veh-123")})
	if got := s.CompleteState().CustomerVehicleID; got != "veh-123" {
		t.Errorf("expected vehicle id fallback, got %s", got)
	}

	s.UpdateValuation(ValuationPatch{CustomerVehicleID: strp("val-456")})
	if got := s.CompleteState().CustomerVehicleID; got != "val-456" {
		t.Errorf("expected valuation id precedence, got %s", got)
	}
}

func TestResetFlowIsIdempotent(t *testing.T) {
	s := NewStore()
	s.UpdateVehicle(VehiclePatch{Year: intp(2021), Make: strp("Toyota")})
	s.UpdateUser(UserPatch{Email: strp("reset@example.com"), ReceiveSMS: boolp(true)})
	s.SetCurrentStep(4)

	s.ResetFlow()
	first := s.CompleteState()
	s.ResetFlow()
	second := s.CompleteState()

	if first.Email != "" || first.Year != 0 || first.VisitID != "" || first.ReceiveSMS {
		t.Errorf("expected reset to restore empty aggregate, got %+v", first)
	}
	if second.Email != first.Email || second.Year != first.Year || second.Confirmed != first.Confirmed {
		t.Error("expected reset to be idempotent")
	}
	if s.State().Journey.CurrentStep != 0 {
		t.Error("expected step pointer reset")
	}
}

func TestSetCurrentStepIndependentOfData(t *testing.T) {
	s := NewStore()
	s.SetCurrentStep(3)
	s.SetCurrentStep(1)
	s.SetCurrentStep(2)
	if got := s.State().Journey.CurrentStep; got != 2 {
		t.Errorf("expected step 2, got %d", got)
	}
	// Navigating backwards never dropped entered data.
	s.UpdateVehicle(VehiclePatch{Make: strp("Mazda")})
	s.SetCurrentStep(0)
	if got := s.State().Vehicle.Make; got != "Mazda" {
		t.Errorf("expected data to survive navigation, got %q", got)
	}
}

func TestHydrateMergesSnapshot(t *testing.T) {
	s := NewStore()
	s.UpdateUser(UserPatch{Email: strp("live@example.com")})

	s.Hydrate(WizardState{
		Vehicle:   VehicleState{Year: 2018, Make: "Ford", Model: "Fusion"},
		Condition: ConditionState{Odometer: 61000, RunsAndDrives: boolp(true)},
		Journey:   JourneyState{VisitID: "visit-9", CurrentStep: 3},
	})

	st := s.State()
	if st.Vehicle.Make != "Ford" || st.Vehicle.Year != 2018 {
		t.Errorf("unexpected vehicle after hydrate: %+v", st.Vehicle)
	}
	if st.User.Email != "live@example.com" {
		t.Errorf("expected live email preserved, got %s", st.User.Email)
	}
	if st.Journey.VisitID != "visit-9" || st.Journey.CurrentStep != 3 {
		t.Errorf("unexpected journey after hydrate: %+v", st.Journey)
	}
	if st.Condition.RunsAndDrives == nil || !*st.Condition.RunsAndDrives {
		t.Error("expected runsAndDrives carried over")
	}
}

func TestDamagesAreCopiedNotAliased(t *testing.T) {
	s := NewStore()
	damages := []Damage{{Zone: "front", Component: "bumper", FaultType: "dent"}}
	s.UpdateCondition(ConditionPatch{Damages: damages})
	damages[0].Zone = "rear"

	got := s.State().Condition.Damages
	if len(got) != 1 || got[0].Zone != "front" {
		t.Errorf("expected store to keep its own copy, got %+v", got)
	}

	got[0].Component = "hood"
	if s.State().Condition.Damages[0].Component != "bumper" {
		t.Error("expected snapshot mutation not to leak into store")
	}
}

func TestPhaseDispatch(t *testing.T) {
	s := NewStore()
	if got := s.State().Phase(); got != PhaseCollectingVehicle {
		t.Fatalf("expected collecting_vehicle, got %s", got)
	}

	s.UpdateVehicle(VehiclePatch{Year: intp(2020), Make: strp("Kia"), Model: strp("Soul")})
	if got := s.State().Phase(); got != PhaseCollectingCondition {
		t.Fatalf("expected collecting_condition, got %s", got)
	}

	s.UpdateCondition(ConditionPatch{Odometer: intp(30000), RunsAndDrives: boolp(true)})
	if got := s.State().Phase(); got != PhaseAwaitingValuation {
		t.Fatalf("expected awaiting_valuation, got %s", got)
	}

	s.UpdateValuation(ValuationPatch{Amount: f64p(14250)})
	if got := s.State().Phase(); got != PhaseSelectingSlot {
		t.Fatalf("expected selecting_slot, got %s", got)
	}

	s.UpdateAppointment(AppointmentPatch{TimeSlotID: strp("slot-1")})
	if got := s.State().Phase(); got != PhaseVerifyingOTP {
		t.Fatalf("expected verifying_otp, got %s", got)
	}

	s.UpdateAppointment(AppointmentPatch{Confirmed: boolp(true)})
	if got := s.State().Phase(); got != PhaseConfirmed {
		t.Fatalf("expected confirmed, got %s", got)
	}
}

func TestPhaseNonDrivableExit(t *testing.T) {
	s := NewStore()
	s.UpdateVehicle(VehiclePatch{Year: intp(2012), Make: strp("Jeep"), Model: strp("Patriot")})
	s.UpdateCondition(ConditionPatch{Odometer: intp(150000), RunsAndDrives: boolp(false)})
	if got := s.State().Phase(); got != PhaseNonDrivableExit {
		t.Fatalf("expected non_drivable_exit, got %s", got)
	}
}
