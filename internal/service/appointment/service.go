package appointment

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/scheduler-api/internal/model"
	"github.com/jwalitptl/scheduler-api/internal/repository"
	"github.com/jwalitptl/scheduler-api/pkg/errors"
	"github.com/jwalitptl/scheduler-api/pkg/event"
	"github.com/jwalitptl/scheduler-api/pkg/logger"
	"github.com/jwalitptl/scheduler-api/pkg/metrics"
	"github.com/jwalitptl/scheduler-api/pkg/validator"
)

// ConflictMessage is reported when a requested interval overlaps a booking.
const ConflictMessage = "Time slot is not available"

// lookback bounds the conflict query: nothing starting earlier than
// MaxAppointmentDuration before a new booking can still be running.
const lookback = model.MaxAppointmentDuration * time.Minute

type Service struct {
	repo      repository.AppointmentRepository
	publisher event.Publisher
	validator validator.Validator
	logger    *logger.Logger
	metrics   *metrics.Metrics
	now       func() time.Time
}

func NewService(
	repo repository.AppointmentRepository,
	publisher event.Publisher,
	validator validator.Validator,
	logger *logger.Logger,
	metrics *metrics.Metrics,
) *Service {
	return &Service{
		repo:      repo,
		publisher: publisher,
		validator: validator,
		logger:    logger,
		metrics:   metrics,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Book creates an appointment if the doctor is free for the whole
// requested interval.
func (s *Service) Book(ctx context.Context, req *model.AppointmentRequest) (*model.Appointment, error) {
	doctorID, start, err := s.parse(req)
	if err != nil {
		s.observe("book", err)
		return nil, err
	}

	apt := &model.Appointment{
		Base:            model.NewBase(s.now()),
		DoctorID:        doctorID,
		Date:            start,
		Duration:        req.Duration,
		AppointmentType: req.AppointmentType,
		PatientName:     req.PatientName,
		Notes:           req.Notes,
	}

	err = s.repo.WithDoctorLock(ctx, doctorID, func(tx repository.AppointmentTx) error {
		if err := checkConflict(ctx, tx, apt, nil); err != nil {
			return err
		}
		return tx.Create(ctx, apt)
	})
	if err != nil {
		err = mapLockError(err)
		s.observe("book", err)
		return nil, err
	}
	s.observe("book", nil)

	s.logger.Info("Appointment booked",
		"appointment_id", apt.ID.String(),
		"doctor_id", doctorID.String(),
		"start", apt.Date.Format(time.RFC3339))
	s.emit(ctx, event.AppointmentCreated, apt)
	return apt, nil
}

// Reschedule replaces an appointment's fields, re-checking availability
// against every other booking of the target doctor.
func (s *Service) Reschedule(ctx context.Context, id uuid.UUID, req *model.AppointmentRequest) (*model.Appointment, error) {
	doctorID, start, err := s.parse(req)
	if err != nil {
		s.observe("reschedule", err)
		return nil, err
	}

	existing, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.IsNotFound(err) {
			err = errors.NotFound("appointment", err)
		} else {
			err = errors.Internal(err)
		}
		s.observe("reschedule", err)
		return nil, err
	}

	apt := existing.Appointment
	apt.DoctorID = doctorID
	apt.Date = start
	apt.Duration = req.Duration
	apt.AppointmentType = req.AppointmentType
	apt.PatientName = req.PatientName
	apt.Notes = req.Notes
	apt.UpdatedAt = s.now()

	err = s.repo.WithDoctorLock(ctx, doctorID, func(tx repository.AppointmentTx) error {
		if err := checkConflict(ctx, tx, &apt, &apt.ID); err != nil {
			return err
		}
		if err := tx.Update(ctx, &apt); err != nil {
			if errors.IsNotFound(err) {
				return errors.NotFound("appointment", err)
			}
			return err
		}
		return nil
	})
	if err != nil {
		err = mapLockError(err)
		s.observe("reschedule", err)
		return nil, err
	}
	s.observe("reschedule", nil)

	s.logger.Info("Appointment rescheduled",
		"appointment_id", apt.ID.String(),
		"doctor_id", doctorID.String(),
		"start", apt.Date.Format(time.RFC3339))
	s.emit(ctx, event.AppointmentUpdated, &apt)
	return &apt, nil
}

// Cancel deletes an appointment.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.IsNotFound(err) {
			err = errors.NotFound("appointment", err)
		} else {
			err = errors.Internal(err)
		}
		s.observe("cancel", err)
		return err
	}
	s.observe("cancel", nil)

	s.logger.Info("Appointment cancelled", "appointment_id", id.String())
	s.emit(ctx, event.AppointmentDeleted, map[string]string{"id": id.String()})
	return nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*model.AppointmentDetails, error) {
	apt, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.IsNotFound(err) {
			return nil, errors.NotFound("appointment", err)
		}
		return nil, errors.Internal(err)
	}
	return apt, nil
}

func (s *Service) List(ctx context.Context, filters *model.AppointmentFilters) ([]*model.AppointmentDetails, error) {
	appointments, err := s.repo.List(ctx, filters)
	if err != nil {
		return nil, errors.Internal(fmt.Errorf("failed to list appointments: %w", err))
	}
	return appointments, nil
}

// parse validates the request and extracts the typed doctor id and start.
func (s *Service) parse(req *model.AppointmentRequest) (uuid.UUID, time.Time, error) {
	req.Normalize()
	if err := s.validator.Validate(req); err != nil {
		return uuid.Nil, time.Time{}, err
	}

	doctorID, err := uuid.Parse(req.DoctorID)
	if err != nil {
		return uuid.Nil, time.Time{}, errors.Validation(errors.FieldError{Field: "doctor_id", Message: "must be a valid UUID"})
	}
	start, err := time.Parse(time.RFC3339, req.Date)
	if err != nil {
		return uuid.Nil, time.Time{}, errors.Validation(errors.FieldError{Field: "date", Message: "must be a valid ISO 8601 date-time"})
	}
	return doctorID, start, nil
}

// Reject reports a request whose body did not fully decode. decoded holds
// the fields that had the wrong JSON type. The rest of req is validated too
// so every failing field is listed once.
func (s *Service) Reject(req *model.AppointmentRequest, decoded []errors.FieldError) error {
	fields := append([]errors.FieldError(nil), decoded...)
	seen := make(map[string]bool, len(fields))
	for _, f := range fields {
		seen[f.Field] = true
	}

	req.Normalize()
	var appErr *errors.AppError
	if err := s.validator.Validate(req); stderrors.As(err, &appErr) {
		for _, f := range appErr.Fields {
			if !seen[f.Field] {
				fields = append(fields, f)
			}
		}
	}
	return errors.Validation(fields...)
}

// checkConflict rejects apt if it overlaps any booking of its doctor other
// than excludeID.
func checkConflict(ctx context.Context, tx repository.AppointmentTx, apt *model.Appointment, excludeID *uuid.UUID) error {
	want := apt.Interval()
	candidates, err := tx.Candidates(ctx, apt.DoctorID, want.Start.Add(-lookback), want.End, excludeID)
	if err != nil {
		return err
	}
	for _, c := range candidates {
		if want.Overlaps(c.Interval()) {
			return errors.Conflict(ConflictMessage)
		}
	}
	return nil
}

// mapLockError turns a critical-section failure into an AppError. Any other
// not-found means the appointment vanished before commit.
func mapLockError(err error) error {
	var appErr *errors.AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}
	if stderrors.Is(err, repository.ErrDoctorNotFound) {
		return errors.NotFound("doctor", err)
	}
	if errors.IsNotFound(err) {
		return errors.NotFound("appointment", err)
	}
	return errors.Internal(err)
}

// emit hands the event to the publisher. Delivery problems never fail the
// operation that produced the event.
func (s *Service) emit(ctx context.Context, eventType event.EventType, payload interface{}) {
	e, err := event.New(eventType, payload)
	if err != nil {
		s.logger.Error(err, "Failed to build event", "event_type", string(eventType))
		return
	}
	if err := s.publisher.Publish(context.WithoutCancel(ctx), e); err != nil {
		s.logger.Error(err, "Failed to publish event", "event_type", string(eventType))
	}
}

func (s *Service) observe(operation string, err error) {
	outcome := "success"
	if err != nil {
		switch errors.CodeOf(err) {
		case errors.ErrConflict:
			outcome = "conflict"
		case errors.ErrValidation:
			outcome = "invalid"
		case errors.ErrNotFound:
			outcome = "not_found"
		default:
			outcome = "error"
		}
	}
	s.metrics.Bookings.WithLabelValues(operation, outcome).Inc()
}
