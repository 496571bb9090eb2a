package contract

import (
	"fmt"
	"math"
	"strings"

	"github.com/clearlane/tradein-platform/internal/flowstate"
)

// MapToValuationRequest builds the valuation contract from the flattened
// wizard payload. Missing optionals map to defaults instead of failing:
// absent phone becomes JSON null, absent opt-in becomes false, and an
// unknown driveability answer is treated as not driveable.
func MapToValuationRequest(cs flowstate.CompleteState) ValuationRequest {
	return ValuationRequest{
		CVID:                            cs.CustomerVehicleID,
		Mileage:                         cs.Odometer,
		ZipCode:                         cs.ZipCode,
		Email:                           cs.Email,
		IsFinancedOrLeased:              isFinancedOrLeased(cs),
		CarIsDriveable:                  boolOrFalse(cs.RunsAndDrives),
		HasDamage:                       hasDamage(cs),
		HasBeenInAccident:               boolOrFalse(cs.HasAccident),
		OptionalPhoneNumber:             optionalString(cs.Phone),
		CustomerJourneyID:               cs.CustomerJourneyID,
		CustomerHasOptedIntoSmsMessages: cs.ReceiveSMS,
	}
}

// MapFromValuationResponse adapts a wire response into the canonical model.
// This is the only place that resolves the cvid/customerVehicleId and
// mileage/odometer aliases: the modern name wins when both are present.
func MapFromValuationResponse(w ValuationResponseWire) Valuation {
	cvid := w.CustomerVehicleID
	if cvid == "" {
		cvid = w.CVID
	}
	odometer := w.Odometer
	if odometer == 0 {
		odometer = w.Mileage
	}
	formatted := w.FormattedValue
	if formatted == "" {
		formatted = FormatUSD(w.Amount)
	}
	return Valuation{
		Amount:            w.Amount,
		FormattedValue:    formatted,
		CustomerVehicleID: cvid,
		CustomerJourneyID: w.CustomerJourneyID,
		Odometer:          odometer,
	}
}

// MapToValuationResponseShape renders a canonical valuation back into the
// modern wire shape. Kept bidirectionally consistent with
// MapFromValuationResponse for round-trippable fields.
func MapToValuationResponseShape(v Valuation) ValuationResponseWire {
	return ValuationResponseWire{
		CustomerVehicleID: v.CustomerVehicleID,
		Odometer:          v.Odometer,
		Amount:            v.Amount,
		FormattedValue:    v.FormattedValue,
		CustomerJourneyID: v.CustomerJourneyID,
	}
}

// ValuationPatch translates a canonical valuation into flowstate patches.
func (v Valuation) ValuationPatch() flowstate.ValuationPatch {
	amount := v.Amount
	formatted := v.FormattedValue
	p := flowstate.ValuationPatch{
		Amount:         &amount,
		FormattedValue: &formatted,
	}
	if v.CustomerVehicleID != "" {
		cvid := v.CustomerVehicleID
		p.CustomerVehicleID = &cvid
	}
	return p
}

// MapToConditionUpdate builds the vehicle-condition update contract.
func MapToConditionUpdate(cs flowstate.CompleteState) ConditionUpdate {
	damages := make([]DamageWire, 0, len(cs.Damages))
	for _, d := range cs.Damages {
		damages = append(damages, DamageWire{Zone: d.Zone, Component: d.Component, FaultType: d.FaultType})
	}
	return ConditionUpdate{
		CustomerVehicleID: cs.CustomerVehicleID,
		Odometer:          cs.Odometer,
		CarIsDriveable:    boolOrFalse(cs.RunsAndDrives),
		HasDamage:         hasDamage(cs),
		HasBeenInAccident: boolOrFalse(cs.HasAccident),
		HasClearTitle:     boolOrFalse(cs.HasClearTitle),
		Damages:           damages,
	}
}

// MapToJourneyRecord builds the customer-journey persistence contract.
func MapToJourneyRecord(cs flowstate.CompleteState) JourneyRecord {
	return JourneyRecord{
		CustomerJourneyID:  cs.CustomerJourneyID,
		CustomerVehicleID:  cs.CustomerVehicleID,
		Year:               cs.Year,
		Make:               cs.Make,
		Model:              cs.Model,
		Series:             cs.Series,
		Body:               cs.BodyType,
		ZipCode:            cs.ZipCode,
		Email:              cs.Email,
		Phone:              optionalString(cs.Phone),
		Odometer:           cs.Odometer,
		CarIsDriveable:     boolOrFalse(cs.RunsAndDrives),
		HasDamage:          hasDamage(cs),
		HasBeenInAccident:  boolOrFalse(cs.HasAccident),
		IsFinancedOrLeased: isFinancedOrLeased(cs),
		ValuationAmount:    cs.ValuationAmount,
		VisitID:            cs.VisitID,
	}
}

// MapToBookingRequest composes the appointment submission contract.
func MapToBookingRequest(cs flowstate.CompleteState) BookingRequest {
	return BookingRequest{
		CustomerJourneyID: cs.CustomerJourneyID,
		CustomerVehicleID: cs.CustomerVehicleID,
		BranchID:          cs.BranchID,
		TimeSlotID:        cs.TimeSlotID,
		Date:              cs.Date,
		Time:              cs.Time,
		FirstName:         cs.FirstName,
		LastName:          cs.LastName,
		Email:             cs.Email,
		Phone:             optionalString(cs.Phone),
		ReceiveSMS:        cs.ReceiveSMS,
	}
}

// AppointmentPatch translates a booking response into the confirmed
// appointment patch, taking the server's slot as authoritative.
func AppointmentPatch(resp BookingResponse) flowstate.AppointmentPatch {
	confirmed := true
	p := flowstate.AppointmentPatch{Confirmed: &confirmed}
	if resp.BranchID != "" {
		p.BranchID = &resp.BranchID
	}
	if resp.TimeSlotID != "" {
		p.TimeSlotID = &resp.TimeSlotID
	}
	if resp.Date != "" {
		p.Date = &resp.Date
	}
	if resp.Time != "" {
		p.Time = &resp.Time
	}
	return p
}

// FormatUSD renders a whole-dollar display string, e.g. 14250 -> "$14,250".
func FormatUSD(amount float64) string {
	whole := int64(math.Round(amount))
	neg := whole < 0
	if neg {
		whole = -whole
	}
	digits := fmt.Sprintf("%d", whole)
	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	b.WriteByte('$')
	pre := len(digits) % 3
	if pre > 0 {
		b.WriteString(digits[:pre])
		if len(digits) > pre {
			b.WriteByte(',')
		}
	}
	for i := pre; i < len(digits); i += 3 {
		b.WriteString(digits[i : i+3])
		if i+3 < len(digits) {
			b.WriteByte(',')
		}
	}
	return b.String()
}

func hasDamage(cs flowstate.CompleteState) bool {
	return len(cs.Damages) > 0 || boolOrFalse(cs.HasIssues)
}

// A seller without a clear title still owes payments on the car.
func isFinancedOrLeased(cs flowstate.CompleteState) bool {
	if cs.HasClearTitle == nil {
		return false
	}
	return !*cs.HasClearTitle
}

func boolOrFalse(b *bool) bool {
	return b != nil && *b
}

func optionalString(s string) *string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return &s
}
