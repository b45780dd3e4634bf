package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/scheduler-api/internal/model"
	"github.com/jwalitptl/scheduler-api/pkg/errors"
)

// ErrDoctorNotFound is returned by WithDoctorLock for an unknown doctor. It
// wraps errors.ErrRecordNotFound.
var ErrDoctorNotFound = fmt.Errorf("doctor %w", errors.ErrRecordNotFound)

// All repository interfaces in one file
type (
	DoctorRepository interface {
		Create(ctx context.Context, doctor *model.Doctor) error
		Get(ctx context.Context, id uuid.UUID) (*model.Doctor, error)
		List(ctx context.Context) ([]*model.Doctor, error)
		Count(ctx context.Context) (int, error)
		DeleteAll(ctx context.Context) error
	}

	AppointmentRepository interface {
		Get(ctx context.Context, id uuid.UUID) (*model.AppointmentDetails, error)
		List(ctx context.Context, filters *model.AppointmentFilters) ([]*model.AppointmentDetails, error)
		// ListForDoctor returns the doctor's appointments starting in [from, to), ordered by start.
		ListForDoctor(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]*model.Appointment, error)
		Delete(ctx context.Context, id uuid.UUID) error
		DeleteAll(ctx context.Context) error
		// WithDoctorLock runs fn while holding the doctor's booking lock. Writes
		// made through tx are committed only when fn returns nil. Unknown
		// doctors yield an error wrapping errors.ErrRecordNotFound.
		WithDoctorLock(ctx context.Context, doctorID uuid.UUID, fn func(tx AppointmentTx) error) error
	}

	// AppointmentTx is the view of the appointment store available inside a
	// doctor's critical section.
	AppointmentTx interface {
		// Candidates returns the doctor's appointments starting in [from, to),
		// skipping excludeID when set.
		Candidates(ctx context.Context, doctorID uuid.UUID, from, to time.Time, excludeID *uuid.UUID) ([]*model.Appointment, error)
		Create(ctx context.Context, appointment *model.Appointment) error
		Update(ctx context.Context, appointment *model.Appointment) error
	}

	// Store bundles the repositories of one backend.
	Store interface {
		Doctors() DoctorRepository
		Appointments() AppointmentRepository
		Ping(ctx context.Context) error
		Close() error
	}
)
