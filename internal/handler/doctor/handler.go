package doctor

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/scheduler-api/internal/model"
	"github.com/jwalitptl/scheduler-api/internal/schedule"
	doctorService "github.com/jwalitptl/scheduler-api/internal/service/doctor"
	"github.com/jwalitptl/scheduler-api/pkg/errors"
	"github.com/jwalitptl/scheduler-api/pkg/httputil"
)

type Handler struct {
	service *doctorService.Service
}

func NewHandler(service *doctorService.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	doctors := r.Group("/doctors")
	{
		doctors.GET("", h.ListDoctors)
		doctors.GET("/:id", h.GetDoctor)
		doctors.GET("/:id/slots", h.GetAvailableSlots)
	}
}

func (h *Handler) ListDoctors(c *gin.Context) {
	doctors, err := h.service.List(c.Request.Context())
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	if doctors == nil {
		doctors = []*model.Doctor{}
	}
	httputil.RespondWithSuccess(c, doctors)
}

func (h *Handler) GetDoctor(c *gin.Context) {
	id, ok := httputil.ParseUUIDParam(c, "id")
	if !ok {
		return
	}

	doctor, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, doctor)
}

// GetAvailableSlots answers GET /doctors/:id/slots?date=YYYY-MM-DD[&slot_minutes=N].
func (h *Handler) GetAvailableSlots(c *gin.Context) {
	id, ok := httputil.ParseUUIDParam(c, "id")
	if !ok {
		return
	}

	day, err := h.service.ParseDay(c.Query("date"))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	var slot time.Duration
	if raw := c.Query("slot_minutes"); raw != "" {
		minutes, err := strconv.Atoi(raw)
		if err != nil || minutes < model.MinAppointmentDuration || minutes > model.MaxAppointmentDuration {
			httputil.RespondWithError(c, errors.Validation(errors.FieldError{
				Field:   "slot_minutes",
				Message: "must be a whole number between 15 and 120",
			}))
			return
		}
		slot = time.Duration(minutes) * time.Minute
	}

	slots, err := h.service.AvailableSlots(c.Request.Context(), id, day, slot)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, schedule.FormatSlots(slots))
}
