package appointment

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/scheduler-api/internal/model"
	"github.com/jwalitptl/scheduler-api/internal/schedule"
	"github.com/jwalitptl/scheduler-api/internal/service/appointment"
	"github.com/jwalitptl/scheduler-api/pkg/errors"
	"github.com/jwalitptl/scheduler-api/pkg/httputil"
)

type Handler struct {
	service  *appointment.Service
	location *time.Location
}

// NewHandler builds the appointment routes. location anchors the calendar
// day used by the date filter.
func NewHandler(service *appointment.Service, location *time.Location) *Handler {
	if location == nil {
		location = time.Local
	}
	return &Handler{service: service, location: location}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	appointments := r.Group("/appointments")
	{
		appointments.POST("", h.CreateAppointment)
		appointments.GET("", h.ListAppointments)
		appointments.GET("/:id", h.GetAppointment)
		appointments.PUT("/:id", h.UpdateAppointment)
		appointments.DELETE("/:id", h.DeleteAppointment)
	}
}

func (h *Handler) CreateAppointment(c *gin.Context) {
	var req model.AppointmentRequest
	if !h.bind(c, &req) {
		return
	}

	apt, err := h.service.Book(c.Request.Context(), &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithStatus(c, http.StatusCreated, apt)
}

func (h *Handler) GetAppointment(c *gin.Context) {
	id, ok := httputil.ParseUUIDParam(c, "id")
	if !ok {
		return
	}

	apt, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, apt)
}

func (h *Handler) ListAppointments(c *gin.Context) {
	filters := &model.AppointmentFilters{}
	var fields []errors.FieldError

	if raw := c.Query("doctor_id"); raw != "" {
		doctorID, err := uuid.Parse(raw)
		if err != nil {
			fields = append(fields, errors.FieldError{Field: "doctor_id", Message: "must be a valid UUID"})
		} else {
			filters.DoctorID = &doctorID
		}
	}

	if raw := c.Query("date"); raw != "" {
		day, err := time.ParseInLocation("2006-01-02", raw, h.location)
		if err != nil {
			fields = append(fields, errors.FieldError{Field: "date", Message: "must be a date in YYYY-MM-DD format"})
		} else {
			bounds := schedule.DayBounds(day, h.location)
			filters.From, filters.To = &bounds.Start, &bounds.End
		}
	}

	if len(fields) > 0 {
		httputil.RespondWithError(c, errors.Validation(fields...))
		return
	}

	appointments, err := h.service.List(c.Request.Context(), filters)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	if appointments == nil {
		appointments = []*model.AppointmentDetails{}
	}
	httputil.RespondWithSuccess(c, appointments)
}

func (h *Handler) UpdateAppointment(c *gin.Context) {
	id, ok := httputil.ParseUUIDParam(c, "id")
	if !ok {
		return
	}

	var req model.AppointmentRequest
	if !h.bind(c, &req) {
		return
	}

	apt, err := h.service.Reschedule(c.Request.Context(), id, &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, apt)
}

func (h *Handler) DeleteAppointment(c *gin.Context) {
	id, ok := httputil.ParseUUIDParam(c, "id")
	if !ok {
		return
	}

	if err := h.service.Cancel(c.Request.Context(), id); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithMessage(c, http.StatusOK, "Appointment deleted")
}

// bind decodes req, answering 400 with every failing field when a value has
// the wrong JSON type.
func (h *Handler) bind(c *gin.Context, req *model.AppointmentRequest) bool {
	fields, ok := httputil.BindJSON(c, req)
	if !ok {
		return false
	}
	if len(fields) > 0 {
		httputil.RespondWithError(c, h.service.Reject(req, fields))
		return false
	}
	return true
}
