package queue

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

type counterKey struct {
	doctorID uuid.UUID
	day      string
}

// repoMem is an in-memory Repository used by tests and by serving
// without a database. All mutations happen under one lock, so the
// compare-and-swap guarantees match the Postgres implementation.
type repoMem struct {
	mu       sync.RWMutex
	entries  map[uuid.UUID]*Entry
	counters map[counterKey]int
}

// NewRepoMem returns an in-memory queue repository.
func NewRepoMem() Repository {
	return &repoMem{
		entries:  make(map[uuid.UUID]*Entry),
		counters: make(map[counterKey]int),
	}
}

func (r *repoMem) Create(_ context.Context, e *Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, other := range r.entries {
		if other.PatientID == e.PatientID && other.DoctorID == e.DoctorID &&
			other.Day == e.Day && other.Status.IsActive() {
			return ErrDuplicateActiveEntry
		}
	}

	key := counterKey{e.DoctorID, e.Day}
	r.counters[key]++
	e.QueueNumber = r.counters[key]
	e.ID = uuid.New()
	e.CreatedAt = e.CheckInTime
	e.UpdatedAt = e.CheckInTime

	cp := *e
	r.entries[e.ID] = &cp
	return nil
}

func (r *repoMem) GetByID(_ context.Context, id uuid.UUID) (*Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (r *repoMem) CASStatus(_ context.Context, id uuid.UUID, from []Status, to Status, at time.Time, reason string) (*Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[id]
	if !ok {
		return nil, ErrNotFound
	}

	matched := false
	for _, f := range from {
		if e.Status == f {
			matched = true
			break
		}
	}
	if !matched {
		return nil, &TransitionError{Current: e.Status, Target: to}
	}

	e.Status = to
	e.UpdatedAt = at
	t := at
	switch to {
	case StatusCalled:
		e.CalledTime = &t
	case StatusInProgress:
		e.StartedTime = &t
	case StatusCompleted:
		e.CompletedTime = &t
	case StatusCancelled:
		e.CancelledTime = &t
		rs := reason
		e.CancelReason = &rs
	}

	cp := *e
	return &cp, nil
}

func (r *repoMem) CASAssignee(_ context.Context, id uuid.UUID, expect, set *uuid.UUID) (bool, *uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[id]
	if !ok {
		return false, nil, ErrNotFound
	}

	if !uuidPtrEqual(e.AssigneeID, expect) {
		cur := e.AssigneeID
		return false, cur, nil
	}
	e.AssigneeID = set
	return true, set, nil
}

func uuidPtrEqual(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func (r *repoMem) NextWaiting(_ context.Context, doctorID uuid.UUID, day string) (*Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var best *Entry
	for _, e := range r.entries {
		if e.DoctorID != doctorID || e.Day != day || e.Status != StatusWaiting {
			continue
		}
		if best == nil || entryBefore(e, best) {
			best = e
		}
	}
	if best == nil {
		return nil, ErrQueueEmpty
	}
	cp := *best
	return &cp, nil
}

// entryBefore implements the calling order: urgent first, then by
// queue number.
func entryBefore(a, b *Entry) bool {
	if a.Priority != b.Priority {
		return a.Priority == PriorityUrgent
	}
	return a.QueueNumber < b.QueueNumber
}

func (r *repoMem) ListDay(_ context.Context, doctorID uuid.UUID, day string, limit, offset int) ([]*Entry, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var all []*Entry
	for _, e := range r.entries {
		if e.DoctorID == doctorID && e.Day == day {
			cp := *e
			all = append(all, &cp)
		}
	}
	sort.Slice(all, func(i, j int) bool { return entryBefore(all[i], all[j]) })

	total := len(all)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}

func (r *repoMem) ListPatientDay(_ context.Context, patientID uuid.UUID, day string) ([]*Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var all []*Entry
	for _, e := range r.entries {
		if e.PatientID == patientID && e.Day == day {
			cp := *e
			all = append(all, &cp)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CheckInTime.Before(all[j].CheckInTime) })
	return all, nil
}
