// Package memory is an in-process Store used for local runs and tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/scheduler-api/internal/model"
	"github.com/jwalitptl/scheduler-api/internal/repository"
	"github.com/jwalitptl/scheduler-api/pkg/errors"
)

type Store struct {
	mu           sync.RWMutex
	doctors      map[uuid.UUID]model.Doctor
	appointments map[uuid.UUID]model.Appointment

	locksMu sync.Mutex
	locks   map[uuid.UUID]*sync.Mutex
}

func NewStore() *Store {
	return &Store{
		doctors:      make(map[uuid.UUID]model.Doctor),
		appointments: make(map[uuid.UUID]model.Appointment),
		locks:        make(map[uuid.UUID]*sync.Mutex),
	}
}

func (s *Store) Doctors() repository.DoctorRepository {
	return &doctorRepository{s: s}
}

func (s *Store) Appointments() repository.AppointmentRepository {
	return &appointmentRepository{s: s}
}

func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (s *Store) Close() error {
	return nil
}

func (s *Store) doctorLock(id uuid.UUID) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()

	l, ok := s.locks[id]
	if !ok {
		l = &sync.Mutex{}
		s.locks[id] = l
	}
	return l
}

func (s *Store) details(a model.Appointment) *model.AppointmentDetails {
	d := &model.AppointmentDetails{Appointment: a}
	if doc, ok := s.doctors[a.DoctorID]; ok {
		d.Doctor = &doc
	}
	return d
}

type doctorRepository struct {
	s *Store
}

func (r *doctorRepository) Create(ctx context.Context, doctor *model.Doctor) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, exists := r.s.doctors[doctor.ID]; exists {
		return fmt.Errorf("failed to create doctor: duplicate id %s", doctor.ID)
	}
	r.s.doctors[doctor.ID] = *doctor
	return nil
}

func (r *doctorRepository) Get(ctx context.Context, id uuid.UUID) (*model.Doctor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	doc, ok := r.s.doctors[id]
	if !ok {
		return nil, fmt.Errorf("failed to get doctor: %w", errors.ErrRecordNotFound)
	}
	return &doc, nil
}

func (r *doctorRepository) List(ctx context.Context) ([]*model.Doctor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	doctors := make([]*model.Doctor, 0, len(r.s.doctors))
	for _, d := range r.s.doctors {
		doc := d
		doctors = append(doctors, &doc)
	}
	sort.Slice(doctors, func(i, j int) bool {
		if doctors[i].Name != doctors[j].Name {
			return doctors[i].Name < doctors[j].Name
		}
		return doctors[i].ID.String() < doctors[j].ID.String()
	})
	return doctors, nil
}

func (r *doctorRepository) Count(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return len(r.s.doctors), nil
}

func (r *doctorRepository) DeleteAll(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.doctors = make(map[uuid.UUID]model.Doctor)
	return nil
}

type appointmentRepository struct {
	s *Store
}

func (r *appointmentRepository) Get(ctx context.Context, id uuid.UUID) (*model.AppointmentDetails, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	a, ok := r.s.appointments[id]
	if !ok {
		return nil, fmt.Errorf("failed to get appointment: %w", errors.ErrRecordNotFound)
	}
	return r.s.details(a), nil
}

func (r *appointmentRepository) List(ctx context.Context, filters *model.AppointmentFilters) ([]*model.AppointmentDetails, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if filters == nil {
		filters = &model.AppointmentFilters{}
	}

	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := make([]*model.AppointmentDetails, 0)
	for _, a := range r.s.appointments {
		if filters.DoctorID != nil && a.DoctorID != *filters.DoctorID {
			continue
		}
		if filters.From != nil && a.Date.Before(*filters.From) {
			continue
		}
		if filters.To != nil && !a.Date.Before(*filters.To) {
			continue
		}
		out = append(out, r.s.details(a))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (r *appointmentRepository) ListForDoctor(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]*model.Appointment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return r.s.startingIn(doctorID, from, to, nil), nil
}

func (r *appointmentRepository) Delete(ctx context.Context, id uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.appointments[id]; !ok {
		return fmt.Errorf("failed to delete appointment: %w", errors.ErrRecordNotFound)
	}
	delete(r.s.appointments, id)
	return nil
}

func (r *appointmentRepository) DeleteAll(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.appointments = make(map[uuid.UUID]model.Appointment)
	return nil
}

func (r *appointmentRepository) WithDoctorLock(ctx context.Context, doctorID uuid.UUID, fn func(tx repository.AppointmentTx) error) error {
	r.s.mu.RLock()
	_, exists := r.s.doctors[doctorID]
	r.s.mu.RUnlock()
	if !exists {
		return fmt.Errorf("failed to lock doctor %s: %w", doctorID, repository.ErrDoctorNotFound)
	}

	l := r.s.doctorLock(doctorID)
	l.Lock()
	defer l.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	tx := &appointmentTx{s: r.s}
	if err := fn(tx); err != nil {
		return err
	}
	return tx.commit(ctx)
}

// startingIn must be called with s.mu held.
func (s *Store) startingIn(doctorID uuid.UUID, from, to time.Time, excludeID *uuid.UUID) []*model.Appointment {
	out := make([]*model.Appointment, 0)
	for _, a := range s.appointments {
		if a.DoctorID != doctorID {
			continue
		}
		if excludeID != nil && a.ID == *excludeID {
			continue
		}
		if a.Date.Before(from) || !a.Date.Before(to) {
			continue
		}
		appt := a
		out = append(out, &appt)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

// appointmentTx stages writes until the critical section succeeds.
type appointmentTx struct {
	s       *Store
	pending []model.Appointment
	updates map[uuid.UUID]bool
}

func (tx *appointmentTx) Candidates(ctx context.Context, doctorID uuid.UUID, from, to time.Time, excludeID *uuid.UUID) ([]*model.Appointment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	tx.s.mu.RLock()
	defer tx.s.mu.RUnlock()
	return tx.s.startingIn(doctorID, from, to, excludeID), nil
}

func (tx *appointmentTx) Create(ctx context.Context, appointment *model.Appointment) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	tx.pending = append(tx.pending, *appointment)
	return nil
}

func (tx *appointmentTx) Update(ctx context.Context, appointment *model.Appointment) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	tx.s.mu.RLock()
	_, ok := tx.s.appointments[appointment.ID]
	tx.s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("failed to update appointment: %w", errors.ErrRecordNotFound)
	}
	if tx.updates == nil {
		tx.updates = make(map[uuid.UUID]bool)
	}
	tx.updates[appointment.ID] = true
	tx.pending = append(tx.pending, *appointment)
	return nil
}

func (tx *appointmentTx) commit(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	tx.s.mu.Lock()
	defer tx.s.mu.Unlock()

	// An appointment cancelled while the section ran must not come back.
	for id := range tx.updates {
		if _, ok := tx.s.appointments[id]; !ok {
			return fmt.Errorf("failed to update appointment: %w", errors.ErrRecordNotFound)
		}
	}
	for _, a := range tx.pending {
		tx.s.appointments[a.ID] = a
	}
	return nil
}
