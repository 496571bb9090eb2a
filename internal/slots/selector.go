// Package slots generates visit-slot candidates from a branch's trading
// week and records tentative selections in the flow state.
package slots

import (
	"errors"
	"fmt"
	"time"

	"github.com/clearlane/tradein-platform/internal/branches"
	"github.com/clearlane/tradein-platform/internal/flowstate"
)

// TimeSlot is one bookable candidate. Slots are immutable facts; selecting
// one only records a reference in the appointment namespace.
type TimeSlot struct {
	ID        string `json:"id"`
	BranchID  string `json:"branchId"`
	Date      string `json:"date"` // 2006-01-02
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
	Available bool   `json:"available"`
}

// Generator is a lazy, finite, restartable sequence of day-granularity
// slot candidates: the branch's trading week intersected with today or
// later, bounded by the window.
type Generator struct {
	branch branches.Branch
	from   time.Time
	days   int
	cursor int
}

func NewGenerator(branch branches.Branch, from time.Time, windowDays int) *Generator {
	if windowDays < 1 {
		windowDays = 14
	}
	from = time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, from.Location())
	return &Generator{branch: branch, from: from, days: windowDays}
}

// Next returns the next candidate, skipping days the branch is closed.
// The second return is false once the window is exhausted.
func (g *Generator) Next() (TimeSlot, bool) {
	for g.cursor < g.days {
		day := g.from.AddDate(0, 0, g.cursor)
		g.cursor++
		hours, open := g.branch.HoursFor(day.Weekday())
		if !open {
			continue
		}
		date := day.Format("2006-01-02")
		return TimeSlot{
			ID:        fmt.Sprintf("%s:%s", g.branch.ID, date),
			BranchID:  g.branch.ID,
			Date:      date,
			StartTime: hours.Open,
			EndTime:   hours.Close,
			Available: true,
		}, true
	}
	return TimeSlot{}, false
}

// Reset restarts the sequence from the beginning.
func (g *Generator) Reset() { g.cursor = 0 }

// Collect drains the generator into a slice.
func (g *Generator) Collect() []TimeSlot {
	var out []TimeSlot
	for {
		slot, ok := g.Next()
		if !ok {
			return out
		}
		out = append(out, slot)
	}
}

var (
	// ErrSlotBranchMismatch rejects a slot that belongs to another branch.
	ErrSlotBranchMismatch = errors.New("slots: slot does not belong to branch")
	// ErrSlotUnavailable rejects a slot already known to be taken.
	ErrSlotUnavailable = errors.New("slots: slot not available")
)

// Selector records tentative slot choices into the FlowStateStore.
type Selector struct {
	store      *flowstate.Store
	windowDays int
	now        func() time.Time
}

func NewSelector(store *flowstate.Store, windowDays int) *Selector {
	if store == nil {
		panic("slots: flow state store required")
	}
	if windowDays < 1 {
		windowDays = 14
	}
	return &Selector{store: store, windowDays: windowDays, now: time.Now}
}

// WithClock overrides the time source, for tests.
func (s *Selector) WithClock(now func() time.Time) *Selector {
	s.now = now
	return s
}

// Candidates returns a fresh generator over the branch's upcoming trading
// days.
func (s *Selector) Candidates(branch branches.Branch) *Generator {
	return NewGenerator(branch, s.now(), s.windowDays)
}

// Select writes the slot reference into the appointment namespace as a
// tentative choice. Confirmation happens only in the booking submitter;
// re-selecting simply overwrites the tentative fields. The backend
// re-validates at submission, so stale hours surface there as a
// slot-unavailable conflict instead of a silent bad booking.
func (s *Selector) Select(branch branches.Branch, slot TimeSlot) error {
	if slot.BranchID != branch.ID {
		return ErrSlotBranchMismatch
	}
	if !slot.Available {
		return ErrSlotUnavailable
	}
	s.store.UpdateAppointment(flowstate.AppointmentPatch{
		BranchID:   &branch.ID,
		BranchName: &branch.Name,
		Date:       &slot.Date,
		Time:       &slot.StartTime,
		TimeSlotID: &slot.ID,
	})
	return nil
}
