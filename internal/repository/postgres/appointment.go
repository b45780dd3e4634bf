package postgres

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/scheduler-api/internal/model"
	"github.com/jwalitptl/scheduler-api/internal/repository"
	"github.com/jwalitptl/scheduler-api/internal/schedule"
	"github.com/jwalitptl/scheduler-api/pkg/errors"
)

const appointmentColumns = `id, doctor_id, start_time, duration, appointment_type, patient_name, notes, created_at, updated_at`

const selectDetails = `
	SELECT a.id, a.doctor_id, a.start_time, a.duration, a.appointment_type,
		   a.patient_name, a.notes, a.created_at, a.updated_at,
		   d.id AS d_id, d.name AS d_name,
		   d.working_hours_start AS d_working_hours_start,
		   d.working_hours_end AS d_working_hours_end,
		   d.specialization AS d_specialization,
		   d.created_at AS d_created_at, d.updated_at AS d_updated_at
	FROM appointments a
	LEFT JOIN doctors d ON d.id = a.doctor_id
`

type appointmentRepository struct {
	BaseRepository
}

// detailsRow is an appointment row with nullable doctor columns from the
// outer join.
type detailsRow struct {
	model.Appointment
	JoinedDoctorID       uuid.NullUUID  `db:"d_id"`
	DoctorName           sql.NullString `db:"d_name"`
	DoctorHoursStart     sql.NullString `db:"d_working_hours_start"`
	DoctorHoursEnd       sql.NullString `db:"d_working_hours_end"`
	DoctorSpecialization sql.NullString `db:"d_specialization"`
	DoctorCreatedAt      sql.NullTime   `db:"d_created_at"`
	DoctorUpdatedAt      sql.NullTime   `db:"d_updated_at"`
}

func (r detailsRow) toModel() *model.AppointmentDetails {
	d := &model.AppointmentDetails{Appointment: r.Appointment}
	if r.JoinedDoctorID.Valid {
		d.Doctor = &model.Doctor{
			Base: model.Base{
				ID:        r.JoinedDoctorID.UUID,
				CreatedAt: r.DoctorCreatedAt.Time,
				UpdatedAt: r.DoctorUpdatedAt.Time,
			},
			Name: r.DoctorName.String,
			WorkingHours: schedule.WorkingHours{
				Start: r.DoctorHoursStart.String,
				End:   r.DoctorHoursEnd.String,
			},
			Specialization: r.DoctorSpecialization.String,
		}
	}
	return d
}

func (r *appointmentRepository) Get(ctx context.Context, id uuid.UUID) (*model.AppointmentDetails, error) {
	query := selectDetails + ` WHERE a.id = $1`

	var row detailsRow
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("failed to get appointment: %w", errors.ErrRecordNotFound)
		}
		return nil, fmt.Errorf("failed to get appointment: %w", err)
	}
	return row.toModel(), nil
}

func (r *appointmentRepository) List(ctx context.Context, filters *model.AppointmentFilters) ([]*model.AppointmentDetails, error) {
	var (
		conds []string
		args  []interface{}
	)
	if filters != nil {
		if filters.DoctorID != nil {
			args = append(args, *filters.DoctorID)
			conds = append(conds, fmt.Sprintf("a.doctor_id = $%d", len(args)))
		}
		if filters.From != nil {
			args = append(args, *filters.From)
			conds = append(conds, fmt.Sprintf("a.start_time >= $%d", len(args)))
		}
		if filters.To != nil {
			args = append(args, *filters.To)
			conds = append(conds, fmt.Sprintf("a.start_time < $%d", len(args)))
		}
	}

	query := selectDetails
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	query += ` ORDER BY a.start_time, a.id`

	var rows []detailsRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list appointments: %w", err)
	}

	out := make([]*model.AppointmentDetails, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toModel())
	}
	return out, nil
}

func (r *appointmentRepository) ListForDoctor(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]*model.Appointment, error) {
	return startingIn(ctx, r.db, doctorID, from, to, nil)
}

func (r *appointmentRepository) Delete(ctx context.Context, id uuid.UUID) error {
	query := `
		DELETE FROM appointments
		WHERE id = $1
	`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete appointment: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("failed to delete appointment: %w", errors.ErrRecordNotFound)
	}

	return nil
}

func (r *appointmentRepository) DeleteAll(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM appointments`); err != nil {
		return fmt.Errorf("failed to delete appointments: %w", err)
	}
	return nil
}

// WithDoctorLock takes a row lock on the doctor for the lifetime of one
// transaction, so every booking write for that doctor is serialized.
func (r *appointmentRepository) WithDoctorLock(ctx context.Context, doctorID uuid.UUID, fn func(tx repository.AppointmentTx) error) error {
	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		var locked uuid.UUID
		err := tx.GetContext(ctx, &locked, `SELECT id FROM doctors WHERE id = $1 FOR UPDATE`, doctorID)
		if err != nil {
			if stderrors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("failed to lock doctor %s: %w", doctorID, repository.ErrDoctorNotFound)
			}
			return fmt.Errorf("failed to lock doctor %s: %w", doctorID, err)
		}
		return fn(&appointmentTx{tx: tx})
	})
}

type appointmentTx struct {
	tx *sqlx.Tx
}

func (t *appointmentTx) Candidates(ctx context.Context, doctorID uuid.UUID, from, to time.Time, excludeID *uuid.UUID) ([]*model.Appointment, error) {
	return startingIn(ctx, t.tx, doctorID, from, to, excludeID)
}

func (t *appointmentTx) Create(ctx context.Context, appointment *model.Appointment) error {
	query := `
		INSERT INTO appointments (` + appointmentColumns + `)
		VALUES (:id, :doctor_id, :start_time, :duration, :appointment_type,
			:patient_name, :notes, :created_at, :updated_at)
	`
	if _, err := t.tx.NamedExecContext(ctx, query, appointment); err != nil {
		return fmt.Errorf("failed to create appointment: %w", err)
	}
	return nil
}

func (t *appointmentTx) Update(ctx context.Context, appointment *model.Appointment) error {
	query := `
		UPDATE appointments
		SET doctor_id = $1, start_time = $2, duration = $3, appointment_type = $4,
			patient_name = $5, notes = $6, updated_at = $7
		WHERE id = $8
	`
	result, err := t.tx.ExecContext(ctx, query,
		appointment.DoctorID,
		appointment.Date,
		appointment.Duration,
		appointment.AppointmentType,
		appointment.PatientName,
		appointment.Notes,
		appointment.UpdatedAt,
		appointment.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update appointment: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("failed to update appointment: %w", errors.ErrRecordNotFound)
	}
	return nil
}

func startingIn(ctx context.Context, q sqlx.QueryerContext, doctorID uuid.UUID, from, to time.Time, excludeID *uuid.UUID) ([]*model.Appointment, error) {
	query := `
		SELECT ` + appointmentColumns + `
		FROM appointments
		WHERE doctor_id = $1 AND start_time >= $2 AND start_time < $3
	`
	args := []interface{}{doctorID, from, to}
	if excludeID != nil {
		query += ` AND id <> $4`
		args = append(args, *excludeID)
	}
	query += ` ORDER BY start_time`

	var appointments []*model.Appointment
	if err := sqlx.SelectContext(ctx, q, &appointments, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list doctor appointments: %w", err)
	}
	if appointments == nil {
		appointments = []*model.Appointment{}
	}
	return appointments, nil
}
