package model

import (
	"strings"

	"github.com/jwalitptl/scheduler-api/internal/schedule"
)

type Doctor struct {
	Base
	Name           string                `json:"name"`
	WorkingHours   schedule.WorkingHours `json:"working_hours"`
	Specialization string                `json:"specialization,omitempty"`
}

type CreateDoctorRequest struct {
	Name           string                `json:"name" validate:"required,max=200"`
	WorkingHours   schedule.WorkingHours `json:"working_hours"`
	Specialization string                `json:"specialization" validate:"max=200"`
}

// Normalize trims surrounding whitespace from every text field.
func (r *CreateDoctorRequest) Normalize() {
	r.Name = strings.TrimSpace(r.Name)
	r.Specialization = strings.TrimSpace(r.Specialization)
	r.WorkingHours.Start = strings.TrimSpace(r.WorkingHours.Start)
	r.WorkingHours.End = strings.TrimSpace(r.WorkingHours.End)
}
