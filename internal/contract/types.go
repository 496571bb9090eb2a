// Package contract holds the backend wire shapes and the pure mappers
// between them and the wizard's canonical field model. Response aliasing
// (cvid vs customerVehicleId, mileage vs odometer) lives only in the
// per-version adapters here; the rest of the codebase sees one canonical
// model.
package contract

// ValuationRequest is the appraisal backend's valuation contract.
type ValuationRequest struct {
	CVID                            string  `json:"cvid,omitempty"`
	Mileage                         int     `json:"mileage"`
	ZipCode                         string  `json:"zipCode"`
	Email                           string  `json:"email"`
	IsFinancedOrLeased              bool    `json:"isFinancedOrLeased"`
	CarIsDriveable                  bool    `json:"carIsDriveable"`
	HasDamage                       bool    `json:"hasDamage"`
	HasBeenInAccident               bool    `json:"hasBeenInAccident"`
	OptionalPhoneNumber             *string `json:"optionalPhoneNumber"`
	CustomerJourneyID               string  `json:"customerJourneyId,omitempty"`
	CustomerHasOptedIntoSmsMessages bool    `json:"customerHasOptedIntoSmsMessages"`
}

// ValuationResponseWire is the raw valuation response. Older backend
// versions emit cvid/mileage, newer ones customerVehicleId/odometer; both
// may appear, and the adapter resolves them.
type ValuationResponseWire struct {
	CVID              string  `json:"cvid,omitempty"`
	CustomerVehicleID string  `json:"customerVehicleId,omitempty"`
	Mileage           int     `json:"mileage,omitempty"`
	Odometer          int     `json:"odometer,omitempty"`
	Amount            float64 `json:"amount"`
	FormattedValue    string  `json:"formattedValue,omitempty"`
	CustomerJourneyID string  `json:"customerJourneyId,omitempty"`
}

// Valuation is the canonical internal valuation model.
type Valuation struct {
	Amount            float64
	FormattedValue    string
	CustomerVehicleID string
	CustomerJourneyID string
	Odometer          int
}

// ConditionUpdate is the vehicle-condition update contract.
type ConditionUpdate struct {
	CustomerVehicleID string       `json:"customerVehicleId"`
	Odometer          int          `json:"odometer"`
	CarIsDriveable    bool         `json:"carIsDriveable"`
	HasDamage         bool         `json:"hasDamage"`
	HasBeenInAccident bool         `json:"hasBeenInAccident"`
	HasClearTitle     bool         `json:"hasClearTitle"`
	Damages           []DamageWire `json:"damages"`
}

// DamageWire is one reported defect in backend shape.
type DamageWire struct {
	Zone      string `json:"zone"`
	Component string `json:"component"`
	FaultType string `json:"faultType"`
}

// JourneyRecord is the customer-journey persistence contract.
type JourneyRecord struct {
	CustomerJourneyID  string  `json:"customerJourneyId,omitempty"`
	CustomerVehicleID  string  `json:"customerVehicleId,omitempty"`
	Year               int     `json:"year"`
	Make               string  `json:"make"`
	Model              string  `json:"model"`
	Series             string  `json:"series,omitempty"`
	Body               string  `json:"body,omitempty"`
	ZipCode            string  `json:"zipCode"`
	Email              string  `json:"email"`
	Phone              *string `json:"phone"`
	Odometer           int     `json:"odometer"`
	CarIsDriveable     bool    `json:"carIsDriveable"`
	HasDamage          bool    `json:"hasDamage"`
	HasBeenInAccident  bool    `json:"hasBeenInAccident"`
	IsFinancedOrLeased bool    `json:"isFinancedOrLeased"`
	ValuationAmount    float64 `json:"valuationAmount,omitempty"`
	VisitID            string  `json:"visitId,omitempty"`
}

// BookingRequest is the appointment submission contract.
type BookingRequest struct {
	CustomerJourneyID string  `json:"customerJourneyId"`
	CustomerVehicleID string  `json:"customerVehicleId,omitempty"`
	BranchID          string  `json:"branchId"`
	TimeSlotID        string  `json:"timeSlotId"`
	Date              string  `json:"date"`
	Time              string  `json:"time"`
	FirstName         string  `json:"firstName"`
	LastName          string  `json:"lastName"`
	Email             string  `json:"email"`
	Phone             *string `json:"phone"`
	ReceiveSMS        bool    `json:"customerHasOptedIntoSmsMessages"`
}

// BookingResponse echoes the confirmation and the authoritative slot.
type BookingResponse struct {
	ConfirmationNumber string `json:"confirmationNumber"`
	BranchID           string `json:"branchId"`
	TimeSlotID         string `json:"timeSlotId"`
	Date               string `json:"date"`
	Time               string `json:"time"`
}
