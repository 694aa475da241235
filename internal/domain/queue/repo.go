package queue

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository persists queue entries. Create assigns the entry's queue
// number atomically per (doctor, day) and enforces the single active
// entry rule, returning ErrDuplicateActiveEntry on violation.
//
// CASStatus is a compare-and-swap: the entry moves to the target status
// only if its current status is one of from. On a mismatch it returns a
// *TransitionError carrying the status actually observed, so exactly
// one of any set of racing writers succeeds.
type Repository interface {
	Create(ctx context.Context, e *Entry) error
	GetByID(ctx context.Context, id uuid.UUID) (*Entry, error)
	CASStatus(ctx context.Context, id uuid.UUID, from []Status, to Status, at time.Time, reason string) (*Entry, error)
	CASAssignee(ctx context.Context, id uuid.UUID, expect, set *uuid.UUID) (bool, *uuid.UUID, error)
	NextWaiting(ctx context.Context, doctorID uuid.UUID, day string) (*Entry, error)
	ListDay(ctx context.Context, doctorID uuid.UUID, day string, limit, offset int) ([]*Entry, int, error)
	ListPatientDay(ctx context.Context, patientID uuid.UUID, day string) ([]*Entry, error)
}
