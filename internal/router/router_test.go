package router

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appointmentHandler "github.com/jwalitptl/scheduler-api/internal/handler/appointment"
	doctorHandler "github.com/jwalitptl/scheduler-api/internal/handler/doctor"
	"github.com/jwalitptl/scheduler-api/internal/handler/health"
	"github.com/jwalitptl/scheduler-api/internal/model"
	"github.com/jwalitptl/scheduler-api/internal/repository/cache"
	"github.com/jwalitptl/scheduler-api/internal/repository/memory"
	"github.com/jwalitptl/scheduler-api/internal/schedule"
	appointmentService "github.com/jwalitptl/scheduler-api/internal/service/appointment"
	doctorService "github.com/jwalitptl/scheduler-api/internal/service/doctor"
	"github.com/jwalitptl/scheduler-api/pkg/event"
	"github.com/jwalitptl/scheduler-api/pkg/logger"
	"github.com/jwalitptl/scheduler-api/pkg/metrics"
	"github.com/jwalitptl/scheduler-api/pkg/validator"
)

type envelope struct {
	Status  string          `json:"status"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Errors  []struct {
		Field   string `json:"field"`
		Message string `json:"message"`
	} `json:"errors"`
}

type testServer struct {
	engine  *gin.Engine
	doctors *doctorService.Service
	events  []event.Event
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := memory.NewStore()
	reg := prometheus.NewRegistry()
	m := metrics.NewMetrics(reg, "test")
	v := validator.New()
	log := logger.Nop()

	ts := &testServer{}
	publisher := event.PublisherFunc(func(_ context.Context, e event.Event) error {
		ts.events = append(ts.events, e)
		return nil
	})

	doctors := cache.NewDoctorRepository(store.Doctors(), time.Minute, time.Minute)
	ts.doctors = doctorService.NewService(doctors, store.Appointments(), v,
		doctorService.Config{Location: time.UTC}, log, m)
	appointments := appointmentService.NewService(store.Appointments(), publisher, v, log, m)

	r := NewRouter(Dependencies{
		Doctors:      doctorHandler.NewHandler(ts.doctors),
		Appointments: appointmentHandler.NewHandler(appointments, time.UTC),
		Health:       health.NewHandler(map[string]health.Pinger{"store": store}),
		Metrics:      m,
		Gatherer:     reg,
	}, RouterConfig{RequestTimeout: 5 * time.Second, AllowedOrigins: []string{"http://localhost:5173"}})

	ts.engine = r.Engine()
	return ts
}

func (ts *testServer) addDoctor(t *testing.T, start, end string) *model.Doctor {
	t.Helper()
	doc, err := ts.doctors.Create(context.Background(), &model.CreateDoctorRequest{
		Name:           "Dr. Emily Brown",
		WorkingHours:   schedule.WorkingHours{Start: start, End: end},
		Specialization: "Dermatology",
	})
	require.NoError(t, err)
	return doc
}

func (ts *testServer) do(t *testing.T, method, path string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	ts.engine.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 && w.Header().Get("Content-Type") == "application/json; charset=utf-8" {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	}
	return w, env
}

func (ts *testServer) slots(t *testing.T, doctorID, date string) []string {
	t.Helper()
	w, env := ts.do(t, http.MethodGet, "/api/v1/doctors/"+doctorID+"/slots?date="+date, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var slots []string
	require.NoError(t, json.Unmarshal(env.Data, &slots))
	return slots
}

func booking(doctorID, date string, duration int) map[string]interface{} {
	return map[string]interface{}{
		"doctor_id":        doctorID,
		"date":             date,
		"duration":         duration,
		"appointment_type": "consultation",
		"patient_name":     "Jane Roe",
	}
}

func TestBookingReducesAvailableSlots(t *testing.T) {
	ts := newTestServer(t)
	doc := ts.addDoctor(t, "09:00", "12:00")

	before := ts.slots(t, doc.ID.String(), "2024-03-11")
	assert.Len(t, before, 6)
	assert.Contains(t, before, "2024-03-11T10:00:00.000+00:00")

	w, env := ts.do(t, http.MethodPost, "/api/v1/appointments", booking(doc.ID.String(), "2024-03-11T10:00:00Z", 30))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "success", env.Status)

	after := ts.slots(t, doc.ID.String(), "2024-03-11")
	assert.Len(t, after, 5)
	assert.NotContains(t, after, "2024-03-11T10:00:00.000+00:00")

	require.Len(t, ts.events, 1)
	assert.Equal(t, event.AppointmentCreated, ts.events[0].Type)
}

func TestSlotsQueryValidation(t *testing.T) {
	ts := newTestServer(t)
	doc := ts.addDoctor(t, "09:00", "12:00")
	base := "/api/v1/doctors/" + doc.ID.String() + "/slots"

	w, env := ts.do(t, http.MethodGet, base, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	require.Len(t, env.Errors, 1)
	assert.Equal(t, "date", env.Errors[0].Field)

	w, _ = ts.do(t, http.MethodGet, base+"?date=2024-13-40", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = ts.do(t, http.MethodGet, base+"?date=2024-03-11&slot_minutes=5", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, env = ts.do(t, http.MethodGet, base+"?date=2024-03-11&slot_minutes=60", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var slots []string
	require.NoError(t, json.Unmarshal(env.Data, &slots))
	assert.Len(t, slots, 3)

	w, _ = ts.do(t, http.MethodGet, "/api/v1/doctors/00000000-0000-0000-0000-000000000001/slots?date=2024-03-11", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreateAppointmentErrors(t *testing.T) {
	ts := newTestServer(t)
	doc := ts.addDoctor(t, "09:00", "17:00")

	w, env := ts.do(t, http.MethodPost, "/api/v1/appointments", map[string]interface{}{"duration": 5})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "error", env.Status)
	fields := map[string]bool{}
	for _, e := range env.Errors {
		fields[e.Field] = true
	}
	for _, f := range []string{"doctor_id", "date", "duration", "appointment_type", "patient_name"} {
		assert.True(t, fields[f], "missing field error for %s", f)
	}

	w, _ = ts.do(t, http.MethodPost, "/api/v1/appointments", booking("00000000-0000-0000-0000-000000000001", "2024-03-11T10:00:00Z", 30))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, _ = ts.do(t, http.MethodPost, "/api/v1/appointments", booking(doc.ID.String(), "2024-03-11T10:00:00Z", 30))
	require.Equal(t, http.StatusCreated, w.Code)

	w, env = ts.do(t, http.MethodPost, "/api/v1/appointments", booking(doc.ID.String(), "2024-03-11T10:15:00Z", 30))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Time slot is not available", env.Message)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/appointments", bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()
	ts.engine.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAppointmentLifecycle(t *testing.T) {
	ts := newTestServer(t)
	doc := ts.addDoctor(t, "09:00", "17:00")

	w, env := ts.do(t, http.MethodPost, "/api/v1/appointments", booking(doc.ID.String(), "2024-03-11T10:00:00Z", 30))
	require.Equal(t, http.StatusCreated, w.Code)
	var created model.Appointment
	require.NoError(t, json.Unmarshal(env.Data, &created))
	path := "/api/v1/appointments/" + created.ID.String()

	w, env = ts.do(t, http.MethodGet, path, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var details model.AppointmentDetails
	require.NoError(t, json.Unmarshal(env.Data, &details))
	require.NotNil(t, details.Doctor)
	assert.Equal(t, "Dr. Emily Brown", details.Doctor.Name)

	w, env = ts.do(t, http.MethodPut, path, booking(doc.ID.String(), "2024-03-11T10:15:00Z", 60))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var updated model.Appointment
	require.NoError(t, json.Unmarshal(env.Data, &updated))
	assert.Equal(t, 60, updated.Duration)

	w, env = ts.do(t, http.MethodGet, "/api/v1/appointments?doctor_id="+doc.ID.String()+"&date=2024-03-11", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list []model.AppointmentDetails
	require.NoError(t, json.Unmarshal(env.Data, &list))
	assert.Len(t, list, 1)

	w, env = ts.do(t, http.MethodGet, "/api/v1/appointments?date=2024-03-12", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, string(env.Data))

	w, _ = ts.do(t, http.MethodDelete, path, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"message":"Appointment deleted"}`, w.Body.String())

	w, _ = ts.do(t, http.MethodDelete, path, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w, _ = ts.do(t, http.MethodGet, path, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	types := make([]event.EventType, 0, len(ts.events))
	for _, e := range ts.events {
		types = append(types, e.Type)
	}
	assert.Equal(t, []event.EventType{event.AppointmentCreated, event.AppointmentUpdated, event.AppointmentDeleted}, types)
}

func TestMalformedIDs(t *testing.T) {
	ts := newTestServer(t)

	for _, path := range []string{"/api/v1/appointments/nope", "/api/v1/doctors/nope"} {
		w, env := ts.do(t, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code, path)
		require.Len(t, env.Errors, 1)
		assert.Equal(t, "id", env.Errors[0].Field)
	}

	w, _ := ts.do(t, http.MethodGet, "/api/v1/appointments?doctor_id=nope", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListDoctors(t *testing.T) {
	ts := newTestServer(t)

	w, env := ts.do(t, http.MethodGet, "/api/v1/doctors", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, string(env.Data))

	ts.addDoctor(t, "09:30", "17:30")
	w, env = ts.do(t, http.MethodGet, "/api/v1/doctors", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var doctors []model.Doctor
	require.NoError(t, json.Unmarshal(env.Data, &doctors))
	require.Len(t, doctors, 1)
	assert.Equal(t, "09:30", doctors[0].WorkingHours.Start)
}

func TestHealthAndMetrics(t *testing.T) {
	ts := newTestServer(t)

	w, _ := ts.do(t, http.MethodGet, "/health/live", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w, _ = ts.do(t, http.MethodGet, "/health/ready", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	ts.do(t, http.MethodGet, "/api/v1/doctors", nil)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	ts.engine.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "test_http_requests_total")
}

func TestCreateAppointmentReportsWrongTypeWithOtherFields(t *testing.T) {
	ts := newTestServer(t)
	doc := ts.addDoctor(t, "09:00", "17:00")

	body := booking(doc.ID.String(), "2024-03-11T10:00:00Z", 30)
	body["duration"] = "30"
	body["patient_name"] = ""

	w, env := ts.do(t, http.MethodPost, "/api/v1/appointments", body)
	require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())

	got := map[string]string{}
	for _, e := range env.Errors {
		got[e.Field] = e.Message
	}
	assert.Equal(t, map[string]string{
		"duration":     "must be a whole number",
		"patient_name": "is required",
	}, got)
	assert.Empty(t, ts.events)
}

func TestCreateAppointmentRejectsCamelCaseFields(t *testing.T) {
	ts := newTestServer(t)
	doc := ts.addDoctor(t, "09:00", "17:00")

	w, env := ts.do(t, http.MethodPost, "/api/v1/appointments", map[string]interface{}{
		"doctorId":        doc.ID.String(),
		"date":            "2024-03-11T10:00:00Z",
		"duration":        30,
		"appointmentType": "consultation",
		"patientName":     "Jane Roe",
	})
	require.Equal(t, http.StatusBadRequest, w.Code)

	fields := map[string]bool{}
	for _, e := range env.Errors {
		fields[e.Field] = true
	}
	assert.True(t, fields["doctor_id"])
	assert.True(t, fields["patient_name"])
	assert.Empty(t, ts.events)
}
