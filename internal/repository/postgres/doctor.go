package postgres

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/scheduler-api/internal/model"
	"github.com/jwalitptl/scheduler-api/internal/schedule"
	"github.com/jwalitptl/scheduler-api/pkg/errors"
)

const doctorColumns = `id, name, working_hours_start, working_hours_end, specialization, created_at, updated_at`

type doctorRepository struct {
	BaseRepository
}

type doctorRow struct {
	ID                uuid.UUID `db:"id"`
	Name              string    `db:"name"`
	WorkingHoursStart string    `db:"working_hours_start"`
	WorkingHoursEnd   string    `db:"working_hours_end"`
	Specialization    string    `db:"specialization"`
	CreatedAt         time.Time `db:"created_at"`
	UpdatedAt         time.Time `db:"updated_at"`
}

func (r doctorRow) toModel() *model.Doctor {
	return &model.Doctor{
		Base: model.Base{ID: r.ID, CreatedAt: r.CreatedAt, UpdatedAt: r.UpdatedAt},
		Name: r.Name,
		WorkingHours: schedule.WorkingHours{
			Start: r.WorkingHoursStart,
			End:   r.WorkingHoursEnd,
		},
		Specialization: r.Specialization,
	}
}

func (r *doctorRepository) Create(ctx context.Context, doctor *model.Doctor) error {
	query := `
		INSERT INTO doctors (` + doctorColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.db.ExecContext(ctx, query,
		doctor.ID,
		doctor.Name,
		doctor.WorkingHours.Start,
		doctor.WorkingHours.End,
		doctor.Specialization,
		doctor.CreatedAt,
		doctor.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create doctor: %w", err)
	}
	return nil
}

func (r *doctorRepository) Get(ctx context.Context, id uuid.UUID) (*model.Doctor, error) {
	query := `SELECT ` + doctorColumns + ` FROM doctors WHERE id = $1`

	var row doctorRow
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("failed to get doctor: %w", errors.ErrRecordNotFound)
		}
		return nil, fmt.Errorf("failed to get doctor: %w", err)
	}
	return row.toModel(), nil
}

func (r *doctorRepository) List(ctx context.Context) ([]*model.Doctor, error) {
	query := `SELECT ` + doctorColumns + ` FROM doctors ORDER BY name, id`

	var rows []doctorRow
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("failed to list doctors: %w", err)
	}

	doctors := make([]*model.Doctor, 0, len(rows))
	for _, row := range rows {
		doctors = append(doctors, row.toModel())
	}
	return doctors, nil
}

func (r *doctorRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM doctors`); err != nil {
		return 0, fmt.Errorf("failed to count doctors: %w", err)
	}
	return n, nil
}

func (r *doctorRepository) DeleteAll(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM doctors`); err != nil {
		return fmt.Errorf("failed to delete doctors: %w", err)
	}
	return nil
}
