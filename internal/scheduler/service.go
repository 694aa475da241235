// Package scheduler is the workflow facade tying the queue ledger,
// the treatment store, and the assignment coordinator together into
// the operations the front desk and consultation rooms actually run.
package scheduler

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinicflow/clinicflow/internal/domain/assignment"
	"github.com/clinicflow/clinicflow/internal/domain/queue"
	"github.com/clinicflow/clinicflow/internal/domain/treatment"
)

// ErrConsultationNotStarted means a prescription was submitted for a
// queue entry that is not currently in consultation.
var ErrConsultationNotStarted = errors.New("queue entry is not in consultation")

type Service struct {
	queue      *queue.Service
	treatment  *treatment.Service
	coord      *assignment.Coordinator
	eventCoord *assignment.Coordinator
	log        zerolog.Logger
}

// NewService wires the facade. coord coordinates claims on queue
// entries, eventCoord on individual dosing events.
func NewService(q *queue.Service, t *treatment.Service, coord, eventCoord *assignment.Coordinator, log zerolog.Logger) *Service {
	return &Service{queue: q, treatment: t, coord: coord, eventCoord: eventCoord, log: log}
}

// RegisterPatientToQueue checks a patient in. The entry comes back
// with its queue number and WAITING status set.
func (s *Service) RegisterPatientToQueue(ctx context.Context, e *queue.Entry) error {
	if err := s.queue.Enqueue(ctx, e); err != nil {
		return err
	}
	s.log.Info().
		Str("entry_id", e.ID.String()).
		Str("doctor_id", e.DoctorID.String()).
		Int("queue_number", e.QueueNumber).
		Str("priority", string(e.Priority)).
		Msg("patient registered to queue")
	return nil
}

// AdvanceQueue calls the next waiting patient for a doctor and claims
// the entry for the calling staff member. Racing staff each end up
// with a different patient; an empty queue returns ErrQueueEmpty.
func (s *Service) AdvanceQueue(ctx context.Context, doctorID uuid.UUID, day string, staffID uuid.UUID) (*queue.Entry, error) {
	for {
		next, err := s.queue.NextWaiting(ctx, doctorID, day)
		if err != nil {
			return nil, err
		}

		called, err := s.queue.Call(ctx, next.ID)
		if errors.Is(err, queue.ErrInvalidTransition) {
			// Another staff member got this one first; take the next.
			continue
		}
		if err != nil {
			return nil, err
		}

		if err := s.coord.Claim(ctx, called.ID, staffID); err != nil {
			return nil, err
		}
		called.AssigneeID = &staffID
		s.log.Info().
			Str("entry_id", called.ID.String()).
			Int("queue_number", called.QueueNumber).
			Str("staff_id", staffID.String()).
			Msg("queue advanced")
		return called, nil
	}
}

// WritePrescriptionAndSchedule expands a prescription written during a
// consultation and closes the queue entry. The entry must be
// IN_PROGRESS; the patient and doctor on the prescription are taken
// from the entry. If the expansion fails nothing is stored and the
// entry stays in consultation.
func (s *Service) WritePrescriptionAndSchedule(ctx context.Context, entryID uuid.UUID, rx *treatment.Prescription) error {
	e, err := s.queue.Get(ctx, entryID)
	if err != nil {
		return err
	}
	if e.Status != queue.StatusInProgress {
		return ErrConsultationNotStarted
	}

	rx.PatientID = e.PatientID
	rx.DoctorID = e.DoctorID
	if err := s.treatment.Expand(ctx, rx); err != nil {
		return err
	}

	if _, err := s.queue.Complete(ctx, entryID); err != nil {
		// The entry left consultation between our check and here,
		// for example a concurrent cancel. Withdraw the doses we
		// just scheduled so no orphaned plan survives the conflict.
		if n, cerr := s.treatment.CancelRemaining(ctx, rx.ID, "consultation not completed"); cerr != nil {
			s.log.Error().Err(cerr).
				Str("prescription_id", rx.ID.String()).
				Msg("failed to withdraw doses after queue conflict")
		} else {
			s.log.Warn().
				Str("entry_id", entryID.String()).
				Str("prescription_id", rx.ID.String()).
				Int("doses_withdrawn", n).
				Msg("queue entry left consultation; prescription doses withdrawn")
		}
		return err
	}
	s.log.Info().
		Str("entry_id", entryID.String()).
		Str("prescription_id", rx.ID.String()).
		Int("orders", len(rx.Orders)).
		Msg("prescription written, consultation closed")
	return nil
}

// CompleteDose records that nurseID administered a scheduled dose,
// along with any administration notes.
func (s *Service) CompleteDose(ctx context.Context, eventID, nurseID uuid.UUID, notes string) (*treatment.Event, error) {
	return s.treatment.CompleteEvent(ctx, eventID, nurseID, notes)
}

// PlanTime groups the doses of a daily plan that share a time.
type PlanTime struct {
	Time  string             `json:"time"`
	Doses []*treatment.Event `json:"doses"`
}

// DailyPlan is a patient's dosing agenda for one day.
type DailyPlan struct {
	PatientID uuid.UUID  `json:"patient_id"`
	Day       string     `json:"day"`
	Times     []PlanTime `json:"times"`
}

// GetPatientDailyPlan assembles a patient's doses for a day, grouped
// by time in chronological order.
func (s *Service) GetPatientDailyPlan(ctx context.Context, patientID uuid.UUID, day string) (*DailyPlan, error) {
	events, err := s.treatment.DailySchedule(ctx, patientID, day)
	if err != nil {
		return nil, err
	}

	plan := &DailyPlan{PatientID: patientID, Day: day}
	for _, e := range events {
		if plan.Day == "" {
			plan.Day = e.Day
		}
		n := len(plan.Times)
		if n == 0 || plan.Times[n-1].Time != e.Time {
			plan.Times = append(plan.Times, PlanTime{Time: e.Time})
			n++
		}
		plan.Times[n-1].Doses = append(plan.Times[n-1].Doses, e)
	}
	return plan, nil
}

// ClaimEntry binds a staff member to a queue entry outside the
// advance-queue flow, for picking up a colleague's released patient.
func (s *Service) ClaimEntry(ctx context.Context, entryID, staffID uuid.UUID) error {
	if _, err := s.queue.Get(ctx, entryID); err != nil {
		return err
	}
	return s.coord.Claim(ctx, entryID, staffID)
}

// ReleaseEntry drops a staff member's claim on a queue entry.
func (s *Service) ReleaseEntry(ctx context.Context, entryID, staffID uuid.UUID, admin bool) error {
	if _, err := s.queue.Get(ctx, entryID); err != nil {
		return err
	}
	return s.coord.Release(ctx, entryID, staffID, admin)
}

// ClaimDose binds a nurse to a dosing event so two nurses do not
// prepare the same dose. Of any set of racing claimants exactly one
// wins.
func (s *Service) ClaimDose(ctx context.Context, eventID, nurseID uuid.UUID) error {
	if _, err := s.treatment.GetEvent(ctx, eventID); err != nil {
		return err
	}
	return s.eventCoord.Claim(ctx, eventID, nurseID)
}

// ReleaseDose drops a nurse's claim on a dosing event.
func (s *Service) ReleaseDose(ctx context.Context, eventID, nurseID uuid.UUID, admin bool) error {
	if _, err := s.treatment.GetEvent(ctx, eventID); err != nil {
		return err
	}
	return s.eventCoord.Release(ctx, eventID, nurseID, admin)
}
