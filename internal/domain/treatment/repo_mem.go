package treatment

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// repoMem is an in-memory Repository used by tests and by serving
// without a database.
type repoMem struct {
	mu            sync.RWMutex
	prescriptions map[uuid.UUID]*Prescription
	events        map[uuid.UUID]*Event
}

// NewRepoMem returns an in-memory treatment repository.
func NewRepoMem() Repository {
	return &repoMem{
		prescriptions: make(map[uuid.UUID]*Prescription),
		events:        make(map[uuid.UUID]*Event),
	}
}

func (r *repoMem) CreatePrescription(_ context.Context, rx *Prescription, events []*Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cp := *rx
	cp.Orders = make([]*MedicationOrder, len(rx.Orders))
	for i, o := range rx.Orders {
		oc := *o
		cp.Orders[i] = &oc
	}
	r.prescriptions[rx.ID] = &cp

	for _, e := range events {
		ec := *e
		r.events[e.ID] = &ec
	}
	return nil
}

func (r *repoMem) GetPrescription(_ context.Context, id uuid.UUID) (*Prescription, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rx, ok := r.prescriptions[id]
	if !ok {
		return nil, ErrPrescriptionNotFound
	}
	cp := *rx
	return &cp, nil
}

func (r *repoMem) GetEvent(_ context.Context, id uuid.UUID) (*Event, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.events[id]
	if !ok {
		return nil, ErrEventNotFound
	}
	cp := *e
	return &cp, nil
}

func (r *repoMem) ListPatientDay(_ context.Context, patientID uuid.UUID, day string) ([]*Event, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var events []*Event
	for _, e := range r.events {
		if e.PatientID == patientID && e.Day == day {
			cp := *e
			events = append(events, &cp)
		}
	}
	sort.Slice(events, func(i, j int) bool {
		if events[i].Time != events[j].Time {
			return events[i].Time < events[j].Time
		}
		return events[i].DrugName < events[j].DrugName
	})
	return events, nil
}

func (r *repoMem) CompleteEvent(_ context.Context, id uuid.UUID, by *uuid.UUID, notes *string, at time.Time) (*Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.events[id]
	if !ok {
		return nil, ErrEventNotFound
	}
	if e.Status != EventPending {
		return nil, &StatusError{Current: e.Status, Target: EventCompleted}
	}

	e.Status = EventCompleted
	t := at
	e.DoneAt = &t
	if by != nil {
		nurse := *by
		e.AssigneeID = &nurse
	}
	if notes != nil {
		n := *notes
		e.Notes = &n
	}

	cp := *e
	return &cp, nil
}

func (r *repoMem) CASAssignee(_ context.Context, id uuid.UUID, expect, set *uuid.UUID) (bool, *uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.events[id]
	if !ok {
		return false, nil, ErrEventNotFound
	}

	same := (e.AssigneeID == nil && expect == nil) ||
		(e.AssigneeID != nil && expect != nil && *e.AssigneeID == *expect)
	if !same {
		if e.AssigneeID == nil {
			return false, nil, nil
		}
		cur := *e.AssigneeID
		return false, &cur, nil
	}

	if set == nil {
		e.AssigneeID = nil
		return true, nil, nil
	}
	v := *set
	e.AssigneeID = &v
	return true, &v, nil
}

func (r *repoMem) CancelPending(_ context.Context, prescriptionID uuid.UUID, reason string, at time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	count := 0
	for _, e := range r.events {
		if e.PrescriptionID != prescriptionID || e.Status != EventPending {
			continue
		}
		e.Status = EventCancelled
		t := at
		e.CancelledAt = &t
		if reason != "" {
			rs := reason
			e.CancelReason = &rs
		}
		count++
	}
	return count, nil
}

func (r *repoMem) MarkMissedBefore(_ context.Context, cutoff, at time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	count := 0
	for _, e := range r.events {
		if e.Status != EventPending {
			continue
		}
		scheduled, err := e.ScheduledAt()
		if err != nil || !scheduled.Before(cutoff) {
			continue
		}
		e.Status = EventMissed
		t := at
		e.MissedAt = &t
		count++
	}
	return count, nil
}
