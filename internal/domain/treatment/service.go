package treatment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/clinicflow/clinicflow/internal/platform/clock"
)

type Service struct {
	repo         Repository
	clk          clock.Clock
	dayStartHour int
	grace        time.Duration
}

// NewService wires the treatment store. dayStartHour anchors generated
// dosing times; grace is how long past its scheduled time a dose stays
// PENDING before the sweep marks it MISSED.
func NewService(repo Repository, clk clock.Clock, dayStartHour int, grace time.Duration) *Service {
	if dayStartHour < 0 || dayStartHour > 23 {
		dayStartHour = DefaultDayStartHour
	}
	return &Service{repo: repo, clk: clk, dayStartHour: dayStartHour, grace: grace}
}

func validateOrder(o *MedicationOrder) error {
	if o.DrugName == "" {
		return fmt.Errorf("drug_name is required")
	}
	if o.Dosage == "" {
		return fmt.Errorf("dosage is required for %s", o.DrugName)
	}
	if o.FrequencyPerDay < 0 || o.FrequencyPerDay > 24 {
		return fmt.Errorf("frequency per day for %s must be between 0 and 24, got %d", o.DrugName, o.FrequencyPerDay)
	}
	if o.DurationDays < 1 || o.DurationDays > 90 {
		return fmt.Errorf("duration for %s must be between 1 and 90 days, got %d", o.DrugName, o.DurationDays)
	}
	if len(o.ScheduleTimes) > 0 {
		if len(o.ScheduleTimes) != o.FrequencyPerDay {
			return fmt.Errorf("%s: %d schedule times given for %d doses per day",
				o.DrugName, len(o.ScheduleTimes), o.FrequencyPerDay)
		}
		for _, ts := range o.ScheduleTimes {
			if _, err := time.Parse("15:04", ts); err != nil {
				return fmt.Errorf("%s: invalid schedule time %q", o.DrugName, ts)
			}
		}
	}
	return nil
}

// Expand validates a prescription and materializes every dosing event
// of every order. The whole expansion is stored atomically; on any
// failure no prescription, order, or event is persisted.
func (s *Service) Expand(ctx context.Context, rx *Prescription) error {
	if rx.PatientID == uuid.Nil {
		return fmt.Errorf("patient_id is required")
	}
	if rx.DoctorID == uuid.Nil {
		return fmt.Errorf("doctor_id is required")
	}
	if rx.Diagnosis == "" {
		return fmt.Errorf("diagnosis is required")
	}
	if rx.Type == "" {
		rx.Type = RxRegular
	}
	if !rx.Type.Valid() {
		return fmt.Errorf("unknown prescription type %q", rx.Type)
	}
	if len(rx.Orders) == 0 {
		return fmt.Errorf("prescription has no medication orders")
	}

	now := s.clk.Now()
	rx.ID = uuid.New()
	rx.CreatedAt = now
	startDay, err := time.ParseInLocation(DayFormat, now.UTC().Format(DayFormat), time.UTC)
	if err != nil {
		return err
	}

	var events []*Event
	for _, o := range rx.Orders {
		if err := validateOrder(o); err != nil {
			return err
		}
		o.ID = uuid.New()
		o.PrescriptionID = rx.ID

		slots, err := orderSlots(o, s.dayStartHour)
		if err != nil {
			return err
		}
		for _, slot := range slots {
			events = append(events, &Event{
				ID:             uuid.New(),
				PrescriptionID: rx.ID,
				OrderID:        o.ID,
				PatientID:      rx.PatientID,
				DrugName:       o.DrugName,
				Dosage:         o.Dosage,
				Day:            startDay.AddDate(0, 0, slot.DayOffset).Format(DayFormat),
				Time:           slot.Time,
				Status:         EventPending,
				CreatedAt:      now,
			})
		}
	}

	return s.repo.CreatePrescription(ctx, rx, events)
}

// orderSlots returns the order's dosing slots, honoring explicit
// schedule times when the order carries them.
func orderSlots(o *MedicationOrder, dayStartHour int) ([]Slot, error) {
	if len(o.ScheduleTimes) == 0 {
		return GenerateSlots(o.FrequencyPerDay, o.DurationDays, dayStartHour)
	}
	slots := make([]Slot, 0, o.FrequencyPerDay*o.DurationDays)
	for d := 0; d < o.DurationDays; d++ {
		for _, ts := range o.ScheduleTimes {
			slots = append(slots, Slot{DayOffset: d, Time: ts})
		}
	}
	return slots, nil
}

func (s *Service) GetPrescription(ctx context.Context, id uuid.UUID) (*Prescription, error) {
	return s.repo.GetPrescription(ctx, id)
}

func (s *Service) GetEvent(ctx context.Context, id uuid.UUID) (*Event, error) {
	return s.repo.GetEvent(ctx, id)
}

// DailySchedule returns the patient's doses for a day sorted by time,
// then drug name.
func (s *Service) DailySchedule(ctx context.Context, patientID uuid.UUID, day string) ([]*Event, error) {
	if day == "" {
		day = s.clk.Now().Format(DayFormat)
	}
	if _, err := time.Parse(DayFormat, day); err != nil {
		return nil, fmt.Errorf("invalid day %q: expected YYYY-MM-DD", day)
	}
	return s.repo.ListPatientDay(ctx, patientID, day)
}

// CompleteEvent marks a pending dose as administered by nurseID,
// recording any notes. A dose that is already COMPLETED is a no-op
// success; MISSED and CANCELLED doses fail with ErrAlreadyFinalized.
func (s *Service) CompleteEvent(ctx context.Context, id, nurseID uuid.UUID, notes string) (*Event, error) {
	var by *uuid.UUID
	if nurseID != uuid.Nil {
		by = &nurseID
	}
	var notesArg *string
	if notes != "" {
		notesArg = &notes
	}

	e, err := s.repo.CompleteEvent(ctx, id, by, notesArg, s.clk.Now())
	var serr *StatusError
	if errors.As(err, &serr) && serr.Current == EventCompleted {
		return s.repo.GetEvent(ctx, id)
	}
	return e, err
}

// SweepMissed marks every pending dose whose scheduled time plus the
// grace period has passed as MISSED. Returns how many were swept.
func (s *Service) SweepMissed(ctx context.Context) (int, error) {
	now := s.clk.Now()
	return s.repo.MarkMissedBefore(ctx, now.Add(-s.grace), now)
}

// CancelRemaining cancels every still pending dose of a prescription,
// leaving completed and missed doses untouched. A reason is recorded
// on each dose when supplied. Returns how many were cancelled.
func (s *Service) CancelRemaining(ctx context.Context, prescriptionID uuid.UUID, reason string) (int, error) {
	if _, err := s.repo.GetPrescription(ctx, prescriptionID); err != nil {
		return 0, err
	}
	return s.repo.CancelPending(ctx, prescriptionID, reason, s.clk.Now())
}
