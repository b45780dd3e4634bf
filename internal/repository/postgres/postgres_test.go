package postgres

import (
	"context"
	"database/sql"
	stderrors "errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/scheduler-api/internal/model"
	"github.com/jwalitptl/scheduler-api/internal/repository"
	"github.com/jwalitptl/scheduler-api/internal/schedule"
	"github.com/jwalitptl/scheduler-api/pkg/errors"
)

func newMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	db := sqlx.NewDb(mockDB, "postgres")
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})
	return db, mock
}

var appointmentCols = []string{
	"id", "doctor_id", "start_time", "duration", "appointment_type",
	"patient_name", "notes", "created_at", "updated_at",
}

var detailsCols = append(append([]string{}, appointmentCols...),
	"d_id", "d_name", "d_working_hours_start", "d_working_hours_end",
	"d_specialization", "d_created_at", "d_updated_at",
)

func TestDoctorGet(t *testing.T) {
	db, mock := newMock(t)
	repo := NewDoctorRepository(db)
	id := uuid.New()
	now := time.Now().UTC()

	mock.ExpectQuery(regexp.QuoteMeta("FROM doctors WHERE id = $1")).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "name", "working_hours_start", "working_hours_end", "specialization", "created_at", "updated_at",
		}).AddRow(id.String(), "Dr. Sarah Johnson", "08:00", "16:00", "Pediatrics", now, now))

	doc, err := repo.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, id, doc.ID)
	assert.Equal(t, schedule.WorkingHours{Start: "08:00", End: "16:00"}, doc.WorkingHours)
	assert.Equal(t, "Pediatrics", doc.Specialization)
}

func TestDoctorGetNotFound(t *testing.T) {
	db, mock := newMock(t)
	repo := NewDoctorRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM doctors WHERE id = $1")).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.Get(context.Background(), uuid.New())
	assert.True(t, errors.IsNotFound(err))
}

func TestDoctorCreateAndCount(t *testing.T) {
	db, mock := newMock(t)
	repo := NewDoctorRepository(db)
	doc := &model.Doctor{
		Base:         model.NewBase(time.Now()),
		Name:         "Dr. Emily Brown",
		WorkingHours: schedule.WorkingHours{Start: "09:30", End: "17:30"},
	}

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO doctors")).
		WithArgs(doc.ID, doc.Name, "09:30", "17:30", "", doc.CreatedAt, doc.UpdatedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM doctors")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(4))

	require.NoError(t, repo.Create(context.Background(), doc))
	n, err := repo.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, n)
}

func TestAppointmentGetJoinsDoctor(t *testing.T) {
	db, mock := newMock(t)
	repo := NewAppointmentRepository(db)
	id, docID := uuid.New(), uuid.New()
	start := time.Date(2024, 3, 11, 10, 0, 0, 0, time.UTC)
	now := time.Now().UTC()

	mock.ExpectQuery(regexp.QuoteMeta("LEFT JOIN doctors d ON d.id = a.doctor_id WHERE a.id = $1")).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows(detailsCols).AddRow(
			id.String(), docID.String(), start, 30, "checkup", "Jane Roe", "", now, now,
			docID.String(), "Dr. John Smith", "09:00", "17:00", "General Medicine", now, now,
		))

	got, err := repo.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, start, got.Date)
	assert.Equal(t, 30, got.Duration)
	require.NotNil(t, got.Doctor)
	assert.Equal(t, "Dr. John Smith", got.Doctor.Name)
}

func TestAppointmentListOrphanHasNilDoctor(t *testing.T) {
	db, mock := newMock(t)
	repo := NewAppointmentRepository(db)
	docID := uuid.New()
	from := time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 1)
	now := time.Now().UTC()

	mock.ExpectQuery(regexp.QuoteMeta("WHERE a.doctor_id = $1 AND a.start_time >= $2 AND a.start_time < $3 ORDER BY a.start_time, a.id")).
		WithArgs(docID, from, to).
		WillReturnRows(sqlmock.NewRows(detailsCols).AddRow(
			uuid.NewString(), docID.String(), from.Add(9*time.Hour), 45, "consult", "John Doe", "bring x-rays", now, now,
			nil, nil, nil, nil, nil, nil, nil,
		))

	list, err := repo.List(context.Background(), &model.AppointmentFilters{DoctorID: &docID, From: &from, To: &to})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Nil(t, list[0].Doctor)
	assert.Equal(t, "bring x-rays", list[0].Notes)
}

func TestAppointmentDeleteNotFound(t *testing.T) {
	db, mock := newMock(t)
	repo := NewAppointmentRepository(db)
	id := uuid.New()

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM appointments WHERE id = $1")).
		WithArgs(id).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Delete(context.Background(), id)
	assert.True(t, errors.IsNotFound(err))
}

func TestWithDoctorLockBooksInsideTransaction(t *testing.T) {
	db, mock := newMock(t)
	repo := NewAppointmentRepository(db)
	docID := uuid.New()
	appt := &model.Appointment{
		Base:            model.NewBase(time.Now()),
		DoctorID:        docID,
		Date:            time.Date(2024, 3, 11, 10, 0, 0, 0, time.UTC),
		Duration:        30,
		AppointmentType: "checkup",
		PatientName:     "Jane Roe",
	}
	from := appt.Date.Add(-2 * time.Hour)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM doctors WHERE id = $1 FOR UPDATE")).
		WithArgs(docID).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(docID.String()))
	mock.ExpectQuery(regexp.QuoteMeta("WHERE doctor_id = $1 AND start_time >= $2 AND start_time < $3 ORDER BY start_time")).
		WithArgs(docID, from, appt.End()).
		WillReturnRows(sqlmock.NewRows(appointmentCols))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO appointments")).
		WithArgs(appt.ID, docID, appt.Date, 30, "checkup", "Jane Roe", "", appt.CreatedAt, appt.UpdatedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.WithDoctorLock(context.Background(), docID, func(tx repository.AppointmentTx) error {
		existing, err := tx.Candidates(context.Background(), docID, from, appt.End(), nil)
		if err != nil {
			return err
		}
		assert.Empty(t, existing)
		return tx.Create(context.Background(), appt)
	})
	require.NoError(t, err)
}

func TestWithDoctorLockRollsBackOnError(t *testing.T) {
	db, mock := newMock(t)
	repo := NewAppointmentRepository(db)
	docID, exclude := uuid.New(), uuid.New()
	from := time.Date(2024, 3, 11, 8, 0, 0, 0, time.UTC)
	to := from.Add(3 * time.Hour)
	conflict := stderrors.New("conflict")

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).
		WithArgs(docID).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(docID.String()))
	mock.ExpectQuery(regexp.QuoteMeta("AND id <> $4 ORDER BY start_time")).
		WithArgs(docID, from, to, exclude).
		WillReturnRows(sqlmock.NewRows(appointmentCols).AddRow(
			uuid.NewString(), docID.String(), from.Add(2*time.Hour), 30, "checkup", "Other", "", from, from,
		))
	mock.ExpectRollback()

	err := repo.WithDoctorLock(context.Background(), docID, func(tx repository.AppointmentTx) error {
		existing, err := tx.Candidates(context.Background(), docID, from, to, &exclude)
		require.NoError(t, err)
		require.Len(t, existing, 1)
		return conflict
	})
	assert.ErrorIs(t, err, conflict)
}

func TestWithDoctorLockUnknownDoctor(t *testing.T) {
	db, mock := newMock(t)
	repo := NewAppointmentRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	err := repo.WithDoctorLock(context.Background(), uuid.New(), func(tx repository.AppointmentTx) error {
		t.Fatal("critical section must not run")
		return nil
	})
	assert.True(t, errors.IsNotFound(err))
}

func TestUpdateMissingAppointment(t *testing.T) {
	db, mock := newMock(t)
	repo := NewAppointmentRepository(db)
	docID := uuid.New()
	appt := &model.Appointment{Base: model.NewBase(time.Now()), DoctorID: docID, Duration: 30}

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(docID.String()))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE appointments")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.WithDoctorLock(context.Background(), docID, func(tx repository.AppointmentTx) error {
		return tx.Update(context.Background(), appt)
	})
	assert.True(t, errors.IsNotFound(err))
}

func TestMigrate(t *testing.T) {
	db, mock := newMock(t)

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS doctors")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, Migrate(context.Background(), db))
}
