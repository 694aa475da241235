package queue

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

// NewRepoPG returns a Postgres-backed queue repository.
func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

func (r *repoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const entryCols = `id, patient_id, doctor_id, day::text, queue_number, priority, status,
	complaint, assignee_id, cancel_reason, check_in_time, called_time, started_time,
	completed_time, cancelled_time, created_at, updated_at`

// priorityOrder keeps urgent entries ahead of normal ones, then
// first-come-first-served within each band.
const priorityOrder = `ORDER BY CASE priority WHEN 'URGENT' THEN 0 ELSE 1 END, queue_number`

func scanEntry(row pgx.Row) (*Entry, error) {
	var e Entry
	err := row.Scan(&e.ID, &e.PatientID, &e.DoctorID, &e.Day, &e.QueueNumber, &e.Priority,
		&e.Status, &e.Complaint, &e.AssigneeID, &e.CancelReason, &e.CheckInTime, &e.CalledTime,
		&e.StartedTime, &e.CompletedTime, &e.CancelledTime, &e.CreatedAt, &e.UpdatedAt)
	return &e, err
}

func (r *repoPG) Create(ctx context.Context, e *Entry) error {
	return db.InTx(ctx, r.pool, func(ctx context.Context) error {
		c := r.conn(ctx)

		// Counter row per (doctor, day) hands out dense, never-reused numbers.
		err := c.QueryRow(ctx, `
			INSERT INTO queue_counters (doctor_id, day, value)
			VALUES ($1, $2::date, 1)
			ON CONFLICT (doctor_id, day)
			DO UPDATE SET value = queue_counters.value + 1
			RETURNING value`,
			e.DoctorID, e.Day).Scan(&e.QueueNumber)
		if err != nil {
			return err
		}

		e.ID = uuid.New()
		_, err = c.Exec(ctx, `
			INSERT INTO queue_entries (id, patient_id, doctor_id, day, queue_number,
				priority, status, complaint, check_in_time)
			VALUES ($1, $2, $3, $4::date, $5, $6, $7, $8, $9)`,
			e.ID, e.PatientID, e.DoctorID, e.Day, e.QueueNumber,
			e.Priority, e.Status, e.Complaint, e.CheckInTime)

		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateActiveEntry
		}
		return err
	})
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Entry, error) {
	e, err := scanEntry(r.conn(ctx).QueryRow(ctx,
		`SELECT `+entryCols+` FROM queue_entries WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return e, err
}

func (r *repoPG) CASStatus(ctx context.Context, id uuid.UUID, from []Status, to Status, at time.Time, reason string) (*Entry, error) {
	fromStrs := make([]string, len(from))
	for i, s := range from {
		fromStrs[i] = string(s)
	}
	var reasonArg *string
	if reason != "" {
		reasonArg = &reason
	}

	e, err := scanEntry(r.conn(ctx).QueryRow(ctx, `
		UPDATE queue_entries SET
			status         = $2,
			called_time    = CASE WHEN $2 = 'CALLED'      THEN $3 ELSE called_time END,
			started_time   = CASE WHEN $2 = 'IN_PROGRESS' THEN $3 ELSE started_time END,
			completed_time = CASE WHEN $2 = 'COMPLETED'   THEN $3 ELSE completed_time END,
			cancelled_time = CASE WHEN $2 = 'CANCELLED'   THEN $3 ELSE cancelled_time END,
			cancel_reason  = CASE WHEN $2 = 'CANCELLED'   THEN $4 ELSE cancel_reason END,
			updated_at     = NOW()
		WHERE id = $1 AND status = ANY($5)
		RETURNING `+entryCols,
		id, to, at, reasonArg, fromStrs))
	if err == nil {
		return e, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	// The swap was refused. Report what the entry actually is.
	var current Status
	err = r.conn(ctx).QueryRow(ctx, `SELECT status FROM queue_entries WHERE id = $1`, id).Scan(&current)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return nil, &TransitionError{Current: current, Target: to}
}

func (r *repoPG) CASAssignee(ctx context.Context, id uuid.UUID, expect, set *uuid.UUID) (bool, *uuid.UUID, error) {
	var got *uuid.UUID
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE queue_entries SET assignee_id = $2, updated_at = NOW()
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
	err = r.conn(ctx).QueryRow(ctx, `SELECT assignee_id FROM queue_entries WHERE id = $1`, id).Scan(&current)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil, ErrNotFound
	}
	if err != nil {
		return false, nil, err
	}
	return false, current, nil
}

func (r *repoPG) NextWaiting(ctx context.Context, doctorID uuid.UUID, day string) (*Entry, error) {
	e, err := scanEntry(r.conn(ctx).QueryRow(ctx, `
		SELECT `+entryCols+` FROM queue_entries
		WHERE doctor_id = $1 AND day = $2::date AND status = 'WAITING'
		`+priorityOrder+` LIMIT 1`,
		doctorID, day))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrQueueEmpty
	}
	return e, err
}

func (r *repoPG) ListDay(ctx context.Context, doctorID uuid.UUID, day string, limit, offset int) ([]*Entry, int, error) {
	c := r.conn(ctx)

	var total int
	if err := c.QueryRow(ctx,
		`SELECT COUNT(*) FROM queue_entries WHERE doctor_id = $1 AND day = $2::date`,
		doctorID, day).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := c.Query(ctx, `
		SELECT `+entryCols+` FROM queue_entries
		WHERE doctor_id = $1 AND day = $2::date
		`+priorityOrder+` LIMIT $3 OFFSET $4`,
		doctorID, day, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, 0, err
		}
		entries = append(entries, e)
	}
	return entries, total, rows.Err()
}

func (r *repoPG) ListPatientDay(ctx context.Context, patientID uuid.UUID, day string) ([]*Entry, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+entryCols+` FROM queue_entries
		WHERE patient_id = $1 AND day = $2::date
		ORDER BY check_in_time`,
		patientID, day)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
