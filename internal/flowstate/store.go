package flowstate

import "sync"

// VehiclePatch is a partial update to the vehicle namespace. Nil fields are
// absent and leave the current value untouched.
type VehiclePatch struct {
	Year              *int    `json:"year,omitempty"`
	Make              *string `json:"make,omitempty"`
	Model             *string `json:"model,omitempty"`
	Series            *string `json:"series,omitempty"`
	BodyType          *string `json:"bodyType,omitempty"`
	VIN               *string `json:"vin,omitempty"`
	CustomerVehicleID *string `json:"customerVehicleId,omitempty"`
}

// ConditionPatch is a partial update to the condition namespace.
type ConditionPatch struct {
	Odometer      *int     `json:"odometer,omitempty"`
	RunsAndDrives *bool    `json:"runsAndDrives,omitempty"`
	HasIssues     *bool    `json:"hasIssues,omitempty"`
	HasAccident   *bool    `json:"hasAccident,omitempty"`
	HasClearTitle *bool    `json:"hasClearTitle,omitempty"`
	Damages       []Damage `json:"damages,omitempty"`
}

// UserPatch is a partial update to the user namespace.
type UserPatch struct {
	Email      *string `json:"email,omitempty"`
	Phone      *string `json:"phone,omitempty"`
	ZipCode    *string `json:"zipCode,omitempty"`
	ReceiveSMS *bool   `json:"receiveSMS,omitempty"`
	FirstName  *string `json:"firstName,omitempty"`
	LastName   *string `json:"lastName,omitempty"`
}

// AppointmentPatch is a partial update to the appointment namespace.
type AppointmentPatch struct {
	BranchID   *string `json:"branchId,omitempty"`
	BranchName *string `json:"branchName,omitempty"`
	Date       *string `json:"date,omitempty"`
	Time       *string `json:"time,omitempty"`
	TimeSlotID *string `json:"timeSlotId,omitempty"`
	Confirmed  *bool   `json:"confirmed,omitempty"`
}

// ValuationPatch is a partial update to the valuation namespace.
type ValuationPatch struct {
	Amount            *float64 `json:"amount,omitempty"`
	FormattedValue    *string  `json:"formattedValue,omitempty"`
	CustomerVehicleID *string  `json:"customerVehicleId,omitempty"`
}

// JourneyPatch is a partial update to the journey namespace.
type JourneyPatch struct {
	CustomerJourneyID *string `json:"customerJourneyId,omitempty"`
	VisitID           *string `json:"visitId,omitempty"`
	CurrentStep       *int    `json:"currentStep,omitempty"`
}

// Store owns one wizard session's WizardState. Updates are applied in call
// order as last-writer-wins shallow merges scoped to their namespace. All
/// operations are total: there is no failing path.
type Store struct {
	mu    sync.Mutex
	state WizardState
}

func NewStore() *Store {
	return &Store{}
}

// UpdateVehicle shallow-merges the patch into the vehicle namespace.
func (s *Store) UpdateVehicle(p VehiclePatch) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := &s.state.Vehicle
	setInt(&v.Year, p.Year)
	setString(&v.Make, p.Make)
	setString(&v.Model, p.Model)
	setString(&v.Series, p.Series)
	setString(&v.BodyType, p.BodyType)
	setString(&v.VIN, p.VIN)
	setString(&v.CustomerVehicleID, p.CustomerVehicleID)
}

// UpdateCondition shallow-merges the patch into the condition namespace.
func (s *Store) UpdateCondition(p ConditionPatch) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := &s.state.Condition
	setInt(&c.Odometer, p.Odometer)
	setBoolPtr(&c.RunsAndDrives, p.RunsAndDrives)
	setBoolPtr(&c.HasIssues, p.HasIssues)
	setBoolPtr(&c.HasAccident, p.HasAccident)
	setBoolPtr(&c.HasClearTitle, p.HasClearTitle)
	if p.Damages != nil {
		c.Damages = append([]Damage(nil), p.Damages...)
	}
}

// UpdateUser shallow-merges the patch into the user namespace.
func (s *Store) UpdateUser(p UserPatch) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := &s.state.User
	setString(&u.Email, p.Email)
	setString(&u.Phone, p.Phone)
	setString(&u.ZipCode, p.ZipCode)
	setBool(&u.ReceiveSMS, p.ReceiveSMS)
	setString(&u.FirstName, p.FirstName)
	setString(&u.LastName, p.LastName)
}

// UpdateAppointment shallow-merges the patch into the appointment namespace.
func (s *Store) UpdateAppointment(p AppointmentPatch) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a := &s.state.Appointment
	setString(&a.BranchID, p.BranchID)
	setString(&a.BranchName, p.BranchName)
	setString(&a.Date, p.Date)
	setString(&a.Time, p.Time)
	setString(&a.TimeSlotID, p.TimeSlotID)
	setBool(&a.Confirmed, p.Confirmed)
}

// UpdateValuation shallow-merges the patch into the valuation namespace.
func (s *Store) UpdateValuation(p ValuationPatch) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := &s.state.Valuation
	setFloat(&v.Amount, p.Amount)
	setString(&v.FormattedValue, p.FormattedValue)
	setString(&v.CustomerVehicleID, p.CustomerVehicleID)
}

// UpdateJourney shallow-merges the patch into the journey namespace.
func (s *Store) UpdateJourney(p JourneyPatch) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j := &s.state.Journey
	setString(&j.CustomerJourneyID, p.CustomerJourneyID)
	setString(&j.VisitID, p.VisitID)
	setInt(&j.CurrentStep, p.CurrentStep)
}

// SetCurrentStep moves the step pointer. Steps are not gated on data
// completeness; navigating back and forward never loses entered data.
func (s *Store) SetCurrentStep(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Journey.CurrentStep = n
}

// ResetFlow restores the initial empty aggregate. Used when a non-drivable
// vehicle path restarts the journey.
func (s *Store) ResetFlow() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = WizardState{}
}

// Hydrate merges a full cross-namespace snapshot into the store, used to
// restore state when a session resumes. Zero-valued fields in the snapshot
// leave current values untouched; pointer fields carry presence.
func (s *Store) Hydrate(snap WizardState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	mergeVehicle(&s.state.Vehicle, snap.Vehicle)
	mergeCondition(&s.state.Condition, snap.Condition)
	mergeUser(&s.state.User, snap.User)
	mergeAppointment(&s.state.Appointment, snap.Appointment)
	mergeValuation(&s.state.Valuation, snap.Valuation)
	mergeJourney(&s.state.Journey, snap.Journey)
}

// State returns a snapshot of the aggregate.
func (s *Store) State() WizardState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.clone()
}

// CompleteState flattens all namespaces into one submission payload.
// CustomerVehicleID prefers the valuation's id over the vehicle's.
func (s *Store) CompleteState() CompleteState {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.state.clone()
	cvid := st.Valuation.CustomerVehicleID
	if cvid == "" {
		cvid = st.Vehicle.CustomerVehicleID
	}
	return CompleteState{
		Year:              st.Vehicle.Year,
		Make:              st.Vehicle.Make,
		Model:             st.Vehicle.Model,
		Series:            st.Vehicle.Series,
		BodyType:          st.Vehicle.BodyType,
		VIN:               st.Vehicle.VIN,
		CustomerVehicleID: cvid,
		Odometer:          st.Condition.Odometer,
		RunsAndDrives:     st.Condition.RunsAndDrives,
		HasIssues:         st.Condition.HasIssues,
		HasAccident:       st.Condition.HasAccident,
		HasClearTitle:     st.Condition.HasClearTitle,
		Damages:           st.Condition.Damages,
		Email:             st.User.Email,
		Phone:             st.User.Phone,
		ZipCode:           st.User.ZipCode,
		ReceiveSMS:        st.User.ReceiveSMS,
		FirstName:         st.User.FirstName,
		LastName:          st.User.LastName,
		BranchID:          st.Appointment.BranchID,
		BranchName:        st.Appointment.BranchName,
		Date:              st.Appointment.Date,
		Time:              st.Appointment.Time,
		TimeSlotID:        st.Appointment.TimeSlotID,
		Confirmed:         st.Appointment.Confirmed,
		ValuationAmount:   st.Valuation.Amount,
		FormattedValue:    st.Valuation.FormattedValue,
		CustomerJourneyID: st.Journey.CustomerJourneyID,
		VisitID:           st.Journey.VisitID,
	}
}

func (s WizardState) clone() WizardState {
	out := s
	if s.Condition.Damages != nil {
		out.Condition.Damages = append([]Damage(nil), s.Condition.Damages...)
	}
	out.Condition.RunsAndDrives = cloneBool(s.Condition.RunsAndDrives)
	out.Condition.HasIssues = cloneBool(s.Condition.HasIssues)
	out.Condition.HasAccident = cloneBool(s.Condition.HasAccident)
	out.Condition.HasClearTitle = cloneBool(s.Condition.HasClearTitle)
	return out
}

func cloneBool(b *bool) *bool {
	if b == nil {
		return nil
	}
	v := *b
	return &v
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}

func setInt(dst *int, src *int) {
	if src != nil {
		*dst = *src
	}
}

func setBool(dst *bool, src *bool) {
	if src != nil {
		*dst = *src
	}
}

func setFloat(dst *float64, src *float64) {
	if src != nil {
		*dst = *src
	}
}

func setBoolPtr(dst **bool, src *bool) {
	if src != nil {
		v := *src
		*dst = &v
	}
}

func mergeVehicle(dst *VehicleState, src VehicleState) {
	if src.Year != 0 {
		dst.Year = src.Year
	}
	mergeString(&dst.Make, src.Make)
	mergeString(&dst.Model, src.Model)
	mergeString(&dst.Series, src.Series)
	mergeString(&dst.BodyType, src.BodyType)
	mergeString(&dst.VIN, src.VIN)
	mergeString(&dst.CustomerVehicleID, src.CustomerVehicleID)
}

func mergeCondition(dst *ConditionState, src ConditionState) {
	if src.Odometer != 0 {
		dst.Odometer = src.Odometer
	}
	if src.RunsAndDrives != nil {
		dst.RunsAndDrives = cloneBool(src.RunsAndDrives)
	}
	if src.HasIssues != nil {
		dst.HasIssues = cloneBool(src.HasIssues)
	}
	if src.HasAccident != nil {
		dst.HasAccident = cloneBool(src.HasAccident)
	}
	if src.HasClearTitle != nil {
		dst.HasClearTitle = cloneBool(src.HasClearTitle)
	}
	if src.Damages != nil {
		dst.Damages = append([]Damage(nil), src.Damages...)
	}
}

func mergeUser(dst *UserState, src UserState) {
	mergeString(&dst.Email, src.Email)
	mergeString(&dst.Phone, src.Phone)
	mergeString(&dst.ZipCode, src.ZipCode)
	if src.ReceiveSMS {
		dst.ReceiveSMS = true
	}
	mergeString(&dst.FirstName, src.FirstName)
	mergeString(&dst.LastName, src.LastName)
}

func mergeAppointment(dst *AppointmentState, src AppointmentState) {
	mergeString(&dst.BranchID, src.BranchID)
	mergeString(&dst.BranchName, src.BranchName)
	mergeString(&dst.Date, src.Date)
	mergeString(&dst.Time, src.Time)
	mergeString(&dst.TimeSlotID, src.TimeSlotID)
	if src.Confirmed {
		dst.Confirmed = true
	}
}

func mergeValuation(dst *ValuationState, src ValuationState) {
	if src.Amount != 0 {
		dst.Amount = src.Amount
	}
	mergeString(&dst.FormattedValue, src.FormattedValue)
	mergeString(&dst.CustomerVehicleID, src.CustomerVehicleID)
}

func mergeJourney(dst *JourneyState, src JourneyState) {
	mergeString(&dst.CustomerJourneyID, src.CustomerJourneyID)
	mergeString(&dst.VisitID, src.VisitID)
	if src.CurrentStep != 0 {
		dst.CurrentStep = src.CurrentStep
	}
}

func mergeString(dst *string, src string) {
	if src != "" {
		*dst = src
	}
}
