// Package seed loads the demo roster of doctors.
package seed

import (
	"context"
	"fmt"

	"github.com/jwalitptl/scheduler-api/internal/model"
	"github.com/jwalitptl/scheduler-api/internal/repository"
	"github.com/jwalitptl/scheduler-api/internal/schedule"
	doctorService "github.com/jwalitptl/scheduler-api/internal/service/doctor"
	"github.com/jwalitptl/scheduler-api/pkg/logger"
)

// Doctors is the default roster.
func Doctors() []model.CreateDoctorRequest {
	return []model.CreateDoctorRequest{
		{Name: "Dr. John Smith", WorkingHours: schedule.WorkingHours{Start: "09:00", End: "17:00"}, Specialization: "General Medicine"},
		{Name: "Dr. Sarah Johnson", WorkingHours: schedule.WorkingHours{Start: "08:00", End: "16:00"}, Specialization: "Pediatrics"},
		{Name: "Dr. Michael Chen", WorkingHours: schedule.WorkingHours{Start: "10:00", End: "18:00"}, Specialization: "Cardiology"},
		{Name: "Dr. Emily Brown", WorkingHours: schedule.WorkingHours{Start: "09:30", End: "17:30"}, Specialization: "Dermatology"},
	}
}

type Seeder struct {
	store   repository.Store
	doctors *doctorService.Service
	logger  *logger.Logger
}

func NewSeeder(store repository.Store, doctors *doctorService.Service, logger *logger.Logger) *Seeder {
	return &Seeder{store: store, doctors: doctors, logger: logger}
}

// Run inserts the default roster. With reset every appointment and doctor
// is removed first; without it an already populated store is left alone.
// It returns the number of doctors created.
func (s *Seeder) Run(ctx context.Context, reset bool) (int, error) {
	if reset {
		if err := s.store.Appointments().DeleteAll(ctx); err != nil {
			return 0, fmt.Errorf("failed to clear appointments: %w", err)
		}
		if err := s.store.Doctors().DeleteAll(ctx); err != nil {
			return 0, fmt.Errorf("failed to clear doctors: %w", err)
		}
		s.logger.Info("Cleared existing data")
	} else {
		count, err := s.store.Doctors().Count(ctx)
		if err != nil {
			return 0, fmt.Errorf("failed to count doctors: %w", err)
		}
		if count > 0 {
			s.logger.Info("Doctors already present, skipping seed", "count", count)
			return 0, nil
		}
	}

	created := 0
	for _, req := range Doctors() {
		req := req
		doc, err := s.doctors.Create(ctx, &req)
		if err != nil {
			return created, fmt.Errorf("failed to create %s: %w", req.Name, err)
		}
		s.logger.Info("Doctor seeded", "doctor_id", doc.ID.String(), "name", doc.Name)
		created++
	}
	return created, nil
}
