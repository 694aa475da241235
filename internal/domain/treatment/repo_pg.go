package treatment

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinicflow/clinicflow/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type repoPG struct{ pool *pgxpool.Pool }

// NewRepoPG returns a Postgres-backed treatment repository.
func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

func (r *repoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const eventCols = `id, prescription_id, order_id, patient_id, drug_name, dosage,
	day::text, slot_time, status, assignee_id, notes, done_at, missed_at, cancelled_at, cancel_reason, created_at`

func scanEvent(row pgx.Row) (*Event, error) {
	var e Event
	err := row.Scan(&e.ID, &e.PrescriptionID, &e.OrderID, &e.PatientID, &e.DrugName, &e.Dosage,
		&e.Day, &e.Time, &e.Status, &e.AssigneeID, &e.Notes, &e.DoneAt, &e.MissedAt, &e.CancelledAt, &e.CancelReason, &e.CreatedAt)
	return &e, err
}

func (r *repoPG) CreatePrescription(ctx context.Context, rx *Prescription, events []*Event) error {
	return db.InTx(ctx, r.pool, func(ctx context.Context) error {
		c := r.conn(ctx)

		_, err := c.Exec(ctx, `
			INSERT INTO prescriptions (id, patient_id, doctor_id, rx_type, diagnosis, notes, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			rx.ID, rx.PatientID, rx.DoctorID, rx.Type, rx.Diagnosis, rx.Notes, rx.CreatedAt)
		if err != nil {
			return err
		}

		for _, o := range rx.Orders {
			_, err := c.Exec(ctx, `
				INSERT INTO medication_orders (id, prescription_id, drug_name, dosage,
					frequency_per_day, duration_days, instructions)
				VALUES ($1, $2, $3, $4, $5, $6, $7)`,
				o.ID, o.PrescriptionID, o.DrugName, o.Dosage,
				o.FrequencyPerDay, o.DurationDays, o.Instructions)
			if err != nil {
				return err
			}
		}

		for _, e := range events {
			_, err := c.Exec(ctx, `
				INSERT INTO treatment_events (id, prescription_id, order_id, patient_id,
					drug_name, dosage, day, slot_time, status, created_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7::date, $8, $9, $10)`,
				e.ID, e.PrescriptionID, e.OrderID, e.PatientID,
				e.DrugName, e.Dosage, e.Day, e.Time, e.Status, e.CreatedAt)
			if err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *repoPG) GetPrescription(ctx context.Context, id uuid.UUID) (*Prescription, error) {
	c := r.conn(ctx)

	var rx Prescription
	err := c.QueryRow(ctx, `
		SELECT id, patient_id, doctor_id, rx_type, diagnosis, notes, created_at
		FROM prescriptions WHERE id = $1`, id).
		Scan(&rx.ID, &rx.PatientID, &rx.DoctorID, &rx.Type, &rx.Diagnosis, &rx.Notes, &rx.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrPrescriptionNotFound
	}
	if err != nil {
		return nil, err
	}

	rows, err := c.Query(ctx, `
		SELECT id, prescription_id, drug_name, dosage, frequency_per_day, duration_days, instructions
		FROM medication_orders WHERE prescription_id = $1
		ORDER BY drug_name`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var o MedicationOrder
		if err := rows.Scan(&o.ID, &o.PrescriptionID, &o.DrugName, &o.Dosage,
			&o.FrequencyPerDay, &o.DurationDays, &o.Instructions); err != nil {
			return nil, err
		}
		rx.Orders = append(rx.Orders, &o)
	}
	return &rx, rows.Err()
}

func (r *repoPG) GetEvent(ctx context.Context, id uuid.UUID) (*Event, error) {
	e, err := scanEvent(r.conn(ctx).QueryRow(ctx,
		`SELECT `+eventCols+` FROM treatment_events WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrEventNotFound
	}
	return e, err
}

func (r *repoPG) ListPatientDay(ctx context.Context, patientID uuid.UUID, day string) ([]*Event, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+eventCols+` FROM treatment_events
		WHERE patient_id = $1 AND day = $2::date
		ORDER BY slot_time, drug_name`,
		patientID, day)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func (r *repoPG) CompleteEvent(ctx context.Context, id uuid.UUID, by *uuid.UUID, notes *string, at time.Time) (*Event, error) {
	e, err := scanEvent(r.conn(ctx).QueryRow(ctx, `
		UPDATE treatment_events SET
			status      = 'COMPLETED',
			done_at     = $2,
			assignee_id = COALESCE($3, assignee_id),
			notes       = COALESCE($4, notes)
		WHERE id = $1 AND status = 'PENDING'
		RETURNING `+eventCols,
		id, at, by, notes))
	if err == nil {
		return e, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	// The update matched nothing. Report what the event actually is.
	var current EventStatus
	err = r.conn(ctx).QueryRow(ctx, `SELECT status FROM treatment_events WHERE id = $1`, id).Scan(&current)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrEventNotFound
	}
	if err != nil {
		return nil, err
	}
	return nil, &StatusError{Current: current, Target: EventCompleted}
}

func (r *repoPG) CASAssignee(ctx context.Context, id uuid.UUID, expect, set *uuid.UUID) (bool, *uuid.UUID, error) {
	var got *uuid.UUID
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE treatment_events SET assignee_id = $2
		WHERE id = $1 AND assignee_id IS NOT DISTINCT FROM $3
		RETURNING assignee_id`,
		id, set, expect).Scan(&got)
	if err == nil {
		return true, got, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return false, nil, err
	}

	var current *uuid.UUID
	err = r.conn(ctx).QueryRow(ctx, `SELECT assignee_id FROM treatment_events WHERE id = $1`, id).Scan(&current)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil, ErrEventNotFound
	}
	if err != nil {
		return false, nil, err
	}
	return false, current, nil
}

func (r *repoPG) CancelPending(ctx context.Context, prescriptionID uuid.UUID, reason string, at time.Time) (int, error) {
	var reasonArg *string
	if reason != "" {
		reasonArg = &reason
	}

	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE treatment_events SET
			status = 'CANCELLED', cancelled_at = $2, cancel_reason = $3
		WHERE prescription_id = $1 AND status = 'PENDING'`,
		prescriptionID, at, reasonArg)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (r *repoPG) MarkMissedBefore(ctx context.Context, cutoff, at time.Time) (int, error) {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE treatment_events SET status = 'MISSED', missed_at = $2
		WHERE status = 'PENDING' AND day + slot_time::time < $1`,
		cutoff, at)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}
