// Package flowstate is the single source of truth for wizard state. Every
// other component reads snapshots and writes through the Store's setter
// contracts; nothing else mutates WizardState.
package flowstate

// Damage is one reported defect on the vehicle, ordered as entered.
type Damage struct {
	Zone      string `json:"zone"`
	Component string `json:"component"`
	FaultType string `json:"faultType"`
}

// VehicleState identifies the vehicle being appraised.
type VehicleState struct {
	Year              int    `json:"year,omitempty"`
	Make              string `json:"make,omitempty"`
	Model             string `json:"model,omitempty"`
	Series            string `json:"series,omitempty"`
	BodyType          string `json:"bodyType,omitempty"`
	VIN               string `json:"vin,omitempty"`
	CustomerVehicleID string `json:"customerVehicleId,omitempty"`
}

// ConditionState captures the owner's condition answers.
type ConditionState struct {
	Odometer      int      `json:"odometer,omitempty"`
	RunsAndDrives *bool    `json:"runsAndDrives,omitempty"`
	HasIssues     *bool    `json:"hasIssues,omitempty"`
	HasAccident   *bool    `json:"hasAccident,omitempty"`
	HasClearTitle *bool    `json:"hasClearTitle,omitempty"`
	Damages       []Damage `json:"damages,omitempty"`
}

// UserState holds the seller's contact details.
type UserState struct {
	Email      string `json:"email,omitempty"`
	Phone      string `json:"phone,omitempty"`
	ZipCode    string `json:"zipCode,omitempty"`
	ReceiveSMS bool   `json:"receiveSMS,omitempty"`
	FirstName  string `json:"firstName,omitempty"`
	LastName   string `json:"lastName,omitempty"`
}

// AppointmentState records the branch visit. Confirmed only flips to true
// through the booking submitter after passcode verification.
type AppointmentState struct {
	BranchID   string `json:"branchId,omitempty"`
	BranchName string `json:"branchName,omitempty"`
	Date       string `json:"date,omitempty"`
	Time       string `json:"time,omitempty"`
	TimeSlotID string `json:"timeSlotId,omitempty"`
	Confirmed  bool   `json:"confirmed,omitempty"`
}

// ValuationState is the appraisal outcome.
type ValuationState struct {
	Amount            float64 `json:"amount,omitempty"`
	FormattedValue    string  `json:"formattedValue,omitempty"`
	CustomerVehicleID string  `json:"customerVehicleId,omitempty"`
}

// JourneyState carries backend correlation identifiers.
type JourneyState struct {
	CustomerJourneyID string `json:"customerJourneyId,omitempty"`
	VisitID           string `json:"visitId,omitempty"`
	CurrentStep       int    `json:"currentStep,omitempty"`
}

// WizardState aggregates the six wizard namespaces.
type WizardState struct {
	Vehicle     VehicleState     `json:"vehicle"`
	Condition   ConditionState   `json:"condition"`
	User        UserState        `json:"user"`
	Appointment AppointmentState `json:"appointment"`
	Valuation   ValuationState   `json:"valuation"`
	Journey     JourneyState     `json:"journey"`
}

// CompleteState flattens the aggregate into a single submission payload.
// CustomerVehicleID resolves valuation over vehicle.
type CompleteState struct {
	Year              int      `json:"year,omitempty"`
	Make              string   `json:"make,omitempty"`
	Model             string   `json:"model,omitempty"`
	Series            string   `json:"series,omitempty"`
	BodyType          string   `json:"bodyType,omitempty"`
	VIN               string   `json:"vin,omitempty"`
	CustomerVehicleID string   `json:"customerVehicleId,omitempty"`
	Odometer          int      `json:"odometer,omitempty"`
	RunsAndDrives     *bool    `json:"runsAndDrives,omitempty"`
	HasIssues         *bool    `json:"hasIssues,omitempty"`
	HasAccident       *bool    `json:"hasAccident,omitempty"`
	HasClearTitle     *bool    `json:"hasClearTitle,omitempty"`
	Damages           []Damage `json:"damages,omitempty"`
	Email             string   `json:"email,omitempty"`
	Phone             string   `json:"phone,omitempty"`
	ZipCode           string   `json:"zipCode,omitempty"`
	ReceiveSMS        bool     `json:"receiveSMS,omitempty"`
	FirstName         string   `json:"firstName,omitempty"`
	LastName          string   `json:"lastName,omitempty"`
	BranchID          string   `json:"branchId,omitempty"`
	BranchName        string   `json:"branchName,omitempty"`
	Date              string   `json:"date,omitempty"`
	Time              string   `json:"time,omitempty"`
	TimeSlotID        string   `json:"timeSlotId,omitempty"`
	Confirmed         bool     `json:"confirmed,omitempty"`
	ValuationAmount   float64  `json:"valuationAmount,omitempty"`
	FormattedValue    string   `json:"formattedValue,omitempty"`
	CustomerJourneyID string   `json:"customerJourneyId,omitempty"`
	VisitID           string   `json:"visitId,omitempty"`
}

// FlowPhase is the tagged variant the UI dispatches on, replacing ad hoc
// boolean combinations of flow flags.
type FlowPhase int

const (
	PhaseCollectingVehicle FlowPhase = iota
	PhaseCollectingCondition
	PhaseAwaitingValuation
	PhaseSelectingSlot
	PhaseVerifyingOTP
	PhaseConfirmed
	PhaseNonDrivableExit
)

func (p FlowPhase) String() string {
	switch p {
	case PhaseCollectingVehicle:
		return "collecting_vehicle"
	case PhaseCollectingCondition:
		return "collecting_condition"
	case PhaseAwaitingValuation:
		return "awaiting_valuation"
	case PhaseSelectingSlot:
		return "selecting_slot"
	case PhaseVerifyingOTP:
		return "verifying_otp"
	case PhaseConfirmed:
		return "confirmed"
	case PhaseNonDrivableExit:
		return "non_drivable_exit"
	default:
		return "unknown"
	}
}

// Phase derives the current flow phase from the aggregate.
func (s WizardState) Phase() FlowPhase {
	switch {
	case s.Appointment.Confirmed:
		return PhaseConfirmed
	case s.Condition.RunsAndDrives != nil && !*s.Condition.RunsAndDrives:
		return PhaseNonDrivableExit
	case s.Vehicle.Year == 0 || s.Vehicle.Make == "" || s.Vehicle.Model == "":
		return PhaseCollectingVehicle
	case s.Condition.Odometer == 0:
		return PhaseCollectingCondition
	case s.Valuation.Amount == 0:
		return PhaseAwaitingValuation
	case s.Appointment.TimeSlotID == "":
		return PhaseSelectingSlot
	default:
		return PhaseVerifyingOTP
	}
}
