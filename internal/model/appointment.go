package model

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/scheduler-api/internal/schedule"
)

const (
	MinAppointmentDuration = 15
	MaxAppointmentDuration = 120
	MaxNotesLength         = 1000
)

type Appointment struct {
	Base
	DoctorID        uuid.UUID `json:"doctor_id" db:"doctor_id"`
	Date            time.Time `json:"date" db:"start_time"`
	Duration        int       `json:"duration" db:"duration"`
	AppointmentType string    `json:"appointment_type" db:"appointment_type"`
	PatientName     string    `json:"patient_name" db:"patient_name"`
	Notes           string    `json:"notes,omitempty" db:"notes"`
}

// End is the instant the appointment finishes.
func (a *Appointment) End() time.Time {
	return a.Date.Add(time.Duration(a.Duration) * time.Minute)
}

// Interval returns the half-open time range the appointment occupies.
func (a *Appointment) Interval() schedule.Interval {
	return schedule.NewInterval(a.Date, time.Duration(a.Duration)*time.Minute)
}

// AppointmentDetails is an appointment with its doctor joined. Doctor is nil
// when the referenced doctor no longer exists.
type AppointmentDetails struct {
	Appointment
	Doctor *Doctor `json:"doctor"`
}

// AppointmentRequest carries the fields for booking and rescheduling.
type AppointmentRequest struct {
	DoctorID        string `json:"doctor_id" validate:"required,uuid"`
	Date            string `json:"date" validate:"required,rfc3339"`
	Duration        int    `json:"duration" validate:"min=15,max=120"`
	AppointmentType string `json:"appointment_type" validate:"required,max=100"`
	PatientName     string `json:"patient_name" validate:"required,max=200"`
	Notes           string `json:"notes" validate:"max=1000"`
}

// Normalize trims surrounding whitespace from every text field.
func (r *AppointmentRequest) Normalize() {
	r.DoctorID = strings.TrimSpace(r.DoctorID)
	r.Date = strings.TrimSpace(r.Date)
	r.AppointmentType = strings.TrimSpace(r.AppointmentType)
	r.PatientName = strings.TrimSpace(r.PatientName)
	r.Notes = strings.TrimSpace(r.Notes)
}

// AppointmentFilters narrows appointment listings. Zero values match everything.
type AppointmentFilters struct {
	DoctorID *uuid.UUID
	From     *time.Time
	To       *time.Time
}
