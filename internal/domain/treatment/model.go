package treatment

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Common errors returned by the treatment store.
var (
	ErrEventNotFound        = errors.New("treatment event not found")
	ErrPrescriptionNotFound = errors.New("prescription not found")
	ErrAlreadyFinalized     = errors.New("treatment event is already finalized")
)

// EventStatus is the lifecycle state of a dosing event. PENDING is the
// only non-terminal state.
type EventStatus string

const (
	EventPending   EventStatus = "PENDING"
	EventCompleted EventStatus = "COMPLETED"
	EventMissed    EventStatus = "MISSED"
	EventCancelled EventStatus = "CANCELLED"
)

// DayFormat is the wire and storage format for event days.
const DayFormat = "2006-01-02"

// StatusError reports a rejected event status change along with the
// terminal status actually observed. It matches ErrAlreadyFinalized
// under errors.Is.
type StatusError struct {
	Current EventStatus
	Target  EventStatus
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("cannot mark %s treatment event as %s", e.Current, e.Target)
}

func (e *StatusError) Is(target error) bool { return target == ErrAlreadyFinalized }

// RxType classifies how urgently a prescription should be dispensed.
type RxType string

const (
	RxRegular RxType = "REGULAR"
	RxUrgent  RxType = "URGENT"
)

// Valid reports whether t is one of the known prescription types.
func (t RxType) Valid() bool { return t == RxRegular || t == RxUrgent }

// Prescription is the clinical order a doctor writes at the end of a
// consultation. Orders carry the per-drug dosing instructions.
type Prescription struct {
	ID        uuid.UUID          `json:"id"`
	PatientID uuid.UUID          `json:"patient_id"`
	DoctorID  uuid.UUID          `json:"doctor_id"`
	Type      RxType             `json:"type"`
	Diagnosis string             `json:"diagnosis"`
	Notes     string             `json:"notes,omitempty"`
	Orders    []*MedicationOrder `json:"orders,omitempty"`
	CreatedAt time.Time          `json:"created_at"`
}

// MedicationOrder is one drug line on a prescription. ScheduleTimes
// optionally pins the daily dosing times; when set it must hold
// exactly FrequencyPerDay entries, otherwise times are generated from
// the clinic's day start hour.
type MedicationOrder struct {
	ID              uuid.UUID `json:"id"`
	PrescriptionID  uuid.UUID `json:"prescription_id"`
	DrugName        string    `json:"drug_name"`
	Dosage          string    `json:"dosage"`
	FrequencyPerDay int       `json:"frequency_per_day"`
	DurationDays    int       `json:"duration_days"`
	Instructions    string    `json:"instructions,omitempty"`
	ScheduleTimes   []string  `json:"schedule_times,omitempty"`
}

// Event is a single scheduled dose. Day and Time identify the
// scheduled instant; exactly one of the timestamp fields is set once
// the event leaves PENDING. AssigneeID holds the nurse who claimed the
// dose, and after completion the nurse who administered it.
type Event struct {
	ID             uuid.UUID   `json:"id"`
	PrescriptionID uuid.UUID   `json:"prescription_id"`
	OrderID        uuid.UUID   `json:"order_id"`
	PatientID      uuid.UUID   `json:"patient_id"`
	DrugName       string      `json:"drug_name"`
	Dosage         string      `json:"dosage"`
	Day            string      `json:"day"`
	Time           string      `json:"time"`
	Status         EventStatus `json:"status"`
	AssigneeID     *uuid.UUID  `json:"assignee_id,omitempty"`
	Notes          *string     `json:"notes,omitempty"`
	DoneAt         *time.Time  `json:"done_at,omitempty"`
	MissedAt       *time.Time  `json:"missed_at,omitempty"`
	CancelledAt    *time.Time  `json:"cancelled_at,omitempty"`
	CancelReason   *string     `json:"cancel_reason,omitempty"`
	CreatedAt      time.Time   `json:"created_at"`
}

// ScheduledAt combines Day and Time into the scheduled instant, read
// in the clinic's frame of reference (UTC throughout the system).
func (e *Event) ScheduledAt() (time.Time, error) {
	return time.ParseInLocation("2006-01-02 15:04", e.Day+" "+e.Time, time.UTC)
}
