package treatment

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository persists prescriptions, their orders, and the dosing
// events expanded from them.
//
// CreatePrescription writes the prescription, all orders, and all
// events atomically; if any row fails, nothing is stored.
//
// CompleteEvent moves an event from PENDING to COMPLETED only if it is
// still pending, stamping the administering nurse and optional notes;
// on a mismatch it returns a *StatusError carrying the status actually
// observed.
//
// CASAssignee satisfies the assignment coordinator's store contract so
// nurses can claim individual dosing events.
type Repository interface {
	CreatePrescription(ctx context.Context, rx *Prescription, events []*Event) error
	GetPrescription(ctx context.Context, id uuid.UUID) (*Prescription, error)
	GetEvent(ctx context.Context, id uuid.UUID) (*Event, error)
	ListPatientDay(ctx context.Context, patientID uuid.UUID, day string) ([]*Event, error)
	CompleteEvent(ctx context.Context, id uuid.UUID, by *uuid.UUID, notes *string, at time.Time) (*Event, error)
	CASAssignee(ctx context.Context, id uuid.UUID, expect, set *uuid.UUID) (bool, *uuid.UUID, error)
	CancelPending(ctx context.Context, prescriptionID uuid.UUID, reason string, at time.Time) (int, error)
	MarkMissedBefore(ctx context.Context, cutoff, at time.Time) (int, error)
}
