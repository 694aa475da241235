package queue

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Common errors returned by the queue ledger.
var (
	ErrNotFound             = errors.New("queue entry not found")
	ErrDuplicateActiveEntry = errors.New("patient already has an active queue entry for this doctor and day")
	ErrInvalidTransition    = errors.New("invalid queue status transition")
	ErrQueueEmpty           = errors.New("no waiting entries in queue")
	ErrAlreadyClaimed       = errors.New("queue entry is already claimed by another staff member")
)

// Status is the lifecycle state of a queue entry.
type Status string

const (
	StatusWaiting    Status = "WAITING"
	StatusCalled     Status = "CALLED"
	StatusInProgress Status = "IN_PROGRESS"
	StatusCompleted  Status = "COMPLETED"
	StatusCancelled  Status = "CANCELLED"
)

// Priority orders patients within a day's queue. Urgent entries are
// always called before normal ones regardless of queue number.
type Priority string

const (
	PriorityNormal Priority = "NORMAL"
	PriorityUrgent Priority = "URGENT"
)

var validPriorities = map[Priority]bool{
	PriorityNormal: true, PriorityUrgent: true,
}

// transitions holds the allowed status edges. Starting a consult
// directly from WAITING covers the call-and-start shortcut at the desk.
var transitions = map[Status]map[Status]bool{
	StatusWaiting:    {StatusCalled: true, StatusInProgress: true, StatusCancelled: true},
	StatusCalled:     {StatusInProgress: true, StatusCancelled: true},
	StatusInProgress: {StatusCompleted: true, StatusCancelled: true},
}

// CanTransition reports whether from -> to is an allowed edge.
func CanTransition(from, to Status) bool {
	return transitions[from][to]
}

// IsActive reports whether the status still occupies the patient's
// place in the queue.
func (s Status) IsActive() bool {
	return s == StatusWaiting || s == StatusCalled || s == StatusInProgress
}

// DayFormat is the wire and storage format for queue days.
const DayFormat = "2006-01-02"

// TransitionError reports a rejected status change along with the
// status actually observed, so callers (and racing writers) can see
// what they lost to. It matches ErrInvalidTransition under errors.Is.
type TransitionError struct {
	Current Status
	Target  Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot transition queue entry from %s to %s", e.Current, e.Target)
}

func (e *TransitionError) Is(target error) bool { return target == ErrInvalidTransition }

// Entry is one patient's place in a doctor's queue for a given day.
type Entry struct {
	ID            uuid.UUID  `json:"id"`
	PatientID     uuid.UUID  `json:"patient_id"`
	DoctorID      uuid.UUID  `json:"doctor_id"`
	Day           string     `json:"day"`
	QueueNumber   int        `json:"queue_number"`
	Priority      Priority   `json:"priority"`
	Status        Status     `json:"status"`
	Complaint     string     `json:"complaint,omitempty"`
	AssigneeID    *uuid.UUID `json:"assignee_id,omitempty"`
	CancelReason  *string    `json:"cancel_reason,omitempty"`
	CheckInTime   time.Time  `json:"check_in_time"`
	CalledTime    *time.Time `json:"called_time,omitempty"`
	StartedTime   *time.Time `json:"started_time,omitempty"`
	CompletedTime *time.Time `json:"completed_time,omitempty"`
	CancelledTime *time.Time `json:"cancelled_time,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}
