package doctor

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/jwalitptl/scheduler-api/internal/model"
	"github.com/jwalitptl/scheduler-api/internal/repository"
	"github.com/jwalitptl/scheduler-api/internal/schedule"
	"github.com/jwalitptl/scheduler-api/pkg/errors"
	"github.com/jwalitptl/scheduler-api/pkg/logger"
	"github.com/jwalitptl/scheduler-api/pkg/metrics"
	"github.com/jwalitptl/scheduler-api/pkg/validator"
)

const dayLayout = "2006-01-02"

type Config struct {
	// Location anchors calendar days and working hours.
	Location *time.Location
	// SlotDuration is used when a query does not ask for a size.
	SlotDuration time.Duration
}

type Service struct {
	doctors      repository.DoctorRepository
	appointments repository.AppointmentRepository
	validator    validator.Validator
	config       Config
	logger       *logger.Logger
	metrics      *metrics.Metrics
}

func NewService(
	doctors repository.DoctorRepository,
	appointments repository.AppointmentRepository,
	validator validator.Validator,
	config Config,
	logger *logger.Logger,
	metrics *metrics.Metrics,
) *Service {
	if config.Location == nil {
		config.Location = time.Local
	}
	if config.SlotDuration <= 0 {
		config.SlotDuration = schedule.DefaultSlot
	}
	return &Service{
		doctors:      doctors,
		appointments: appointments,
		validator:    validator,
		config:       config,
		logger:       logger,
		metrics:      metrics,
	}
}

func (s *Service) List(ctx context.Context) ([]*model.Doctor, error) {
	doctors, err := s.doctors.List(ctx)
	if err != nil {
		return nil, errors.Internal(fmt.Errorf("failed to list doctors: %w", err))
	}
	return doctors, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*model.Doctor, error) {
	doc, err := s.doctors.Get(ctx, id)
	if err != nil {
		if errors.IsNotFound(err) {
			return nil, errors.NotFound("doctor", err)
		}
		return nil, errors.Internal(err)
	}
	return doc, nil
}

func (s *Service) Create(ctx context.Context, req *model.CreateDoctorRequest) (*model.Doctor, error) {
	req.Normalize()
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	if err := req.WorkingHours.Validate(); err != nil {
		return nil, errors.Validation(errors.FieldError{Field: "working_hours", Message: err.Error()})
	}

	doc := &model.Doctor{
		Base:           model.NewBase(time.Now().UTC()),
		Name:           req.Name,
		WorkingHours:   req.WorkingHours,
		Specialization: req.Specialization,
	}
	if err := s.doctors.Create(ctx, doc); err != nil {
		return nil, errors.Internal(err)
	}

	s.logger.Info("Doctor created", "doctor_id", doc.ID.String(), "name", doc.Name)
	return doc, nil
}

// ParseDay reads a YYYY-MM-DD date as midnight in the configured location.
func (s *Service) ParseDay(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.Validation(errors.FieldError{Field: "date", Message: "is required"})
	}
	day, err := time.ParseInLocation(dayLayout, value, s.config.Location)
	if err != nil {
		return time.Time{}, errors.Validation(errors.FieldError{Field: "date", Message: "must be a date in YYYY-MM-DD format"})
	}
	return day, nil
}

// AvailableSlots lists the free slot starts of the doctor's working window
// on day. A zero slot uses the configured default.
func (s *Service) AvailableSlots(ctx context.Context, doctorID uuid.UUID, day time.Time, slot time.Duration) ([]time.Time, error) {
	timer := prometheus.NewTimer(s.metrics.SlotQueryLatency)
	defer timer.ObserveDuration()

	if slot <= 0 {
		slot = s.config.SlotDuration
	}

	doc, err := s.Get(ctx, doctorID)
	if err != nil {
		return nil, err
	}

	// Bookings that start the evening before can still run into this day.
	bounds := schedule.DayBounds(day, s.config.Location)
	lookback := model.MaxAppointmentDuration * time.Minute
	appointments, err := s.appointments.ListForDoctor(ctx, doctorID, bounds.Start.Add(-lookback), bounds.End)
	if err != nil {
		return nil, errors.Internal(err)
	}

	booked := make([]schedule.Interval, 0, len(appointments))
	for _, a := range appointments {
		booked = append(booked, a.Interval())
	}

	slots, err := schedule.AvailableSlots(doc.WorkingHours, bounds.Start, slot, booked)
	if err != nil {
		return nil, errors.Internal(fmt.Errorf("doctor %s has invalid working hours: %w", doctorID, err))
	}
	return slots, nil
}
