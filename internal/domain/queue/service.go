package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/clinicflow/clinicflow/internal/platform/clock"
)

type Service struct {
	repo Repository
	clk  clock.Clock
}

func NewService(repo Repository, clk clock.Clock) *Service {
	return &Service{repo: repo, clk: clk}
}

// Enqueue registers a patient into a doctor's queue for a day. The
// queue number is assigned by the repository; a patient who already
// holds an active entry for the same doctor and day is rejected.
func (s *Service) Enqueue(ctx context.Context, e *Entry) error {
	if e.PatientID == uuid.Nil {
		return fmt.Errorf("patient_id is required")
	}
	if e.DoctorID == uuid.Nil {
		return fmt.Errorf("doctor_id is required")
	}
	if e.Day == "" {
		e.Day = s.clk.Now().Format(DayFormat)
	}
	if _, err := time.Parse(DayFormat, e.Day); err != nil {
		return fmt.Errorf("invalid day %q: expected YYYY-MM-DD", e.Day)
	}
	if e.Priority == "" {
		e.Priority = PriorityNormal
	}
	if !validPriorities[e.Priority] {
		return fmt.Errorf("invalid priority: %s", e.Priority)
	}

	e.Status = StatusWaiting
	e.CheckInTime = s.clk.Now()
	return s.repo.Create(ctx, e)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Entry, error) {
	return s.repo.GetByID(ctx, id)
}

// Call moves a waiting entry to CALLED.
func (s *Service) Call(ctx context.Context, id uuid.UUID) (*Entry, error) {
	return s.repo.CASStatus(ctx, id, []Status{StatusWaiting}, StatusCalled, s.clk.Now(), "")
}

// Start moves an entry into consultation. Entries can be started
// straight from WAITING when the desk skips the call step.
func (s *Service) Start(ctx context.Context, id uuid.UUID) (*Entry, error) {
	return s.repo.CASStatus(ctx, id, []Status{StatusWaiting, StatusCalled}, StatusInProgress, s.clk.Now(), "")
}

// Complete finishes a consultation. Completing an already completed
// entry is a no-op success, so retried requests are harmless.
func (s *Service) Complete(ctx context.Context, id uuid.UUID) (*Entry, error) {
	e, err := s.repo.CASStatus(ctx, id, []Status{StatusInProgress}, StatusCompleted, s.clk.Now(), "")
	var terr *TransitionError
	if errors.As(err, &terr) && terr.Current == StatusCompleted {
		return s.repo.GetByID(ctx, id)
	}
	return e, err
}

// Cancel removes an entry from the queue. Any entry that has not
// reached a terminal state can be cancelled, including one whose
// consultation is in progress (the patient walked out). A reason is
// mandatory.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID, reason string) (*Entry, error) {
	if reason == "" {
		return nil, fmt.Errorf("cancel reason is required")
	}
	return s.repo.CASStatus(ctx, id, []Status{StatusWaiting, StatusCalled, StatusInProgress}, StatusCancelled, s.clk.Now(), reason)
}

// NextWaiting returns the entry that would be called next.
func (s *Service) NextWaiting(ctx context.Context, doctorID uuid.UUID, day string) (*Entry, error) {
	if day == "" {
		day = s.clk.Now().Format(DayFormat)
	}
	return s.repo.NextWaiting(ctx, doctorID, day)
}

// ListDay returns a doctor's full board for a day in calling order.
func (s *Service) ListDay(ctx context.Context, doctorID uuid.UUID, day string, limit, offset int) ([]*Entry, int, error) {
	if day == "" {
		day = s.clk.Now().Format(DayFormat)
	}
	return s.repo.ListDay(ctx, doctorID, day, limit, offset)
}
