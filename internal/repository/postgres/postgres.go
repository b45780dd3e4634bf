package postgres

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/scheduler-api/internal/repository"
)

type Store struct {
	db           *sqlx.DB
	doctors      *doctorRepository
	appointments *appointmentRepository
}

func NewStore(db *sqlx.DB) *Store {
	return &Store{
		db:           db,
		doctors:      &doctorRepository{BaseRepository: NewBaseRepository(db)},
		appointments: &appointmentRepository{BaseRepository: NewBaseRepository(db)},
	}
}

func NewDoctorRepository(db *sqlx.DB) repository.DoctorRepository {
	return &doctorRepository{BaseRepository: NewBaseRepository(db)}
}

func NewAppointmentRepository(db *sqlx.DB) repository.AppointmentRepository {
	return &appointmentRepository{BaseRepository: NewBaseRepository(db)}
}

func (s *Store) Doctors() repository.DoctorRepository {
	return s.doctors
}

func (s *Store) Appointments() repository.AppointmentRepository {
	return s.appointments
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	return s.db.Close()
}
