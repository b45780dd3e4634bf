package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/scheduler-api/pkg/errors"
)

type window struct {
	Start string `json:"start" validate:"required,clock"`
	End   string `json:"end" validate:"required,clock"`
}

type sample struct {
	ID       string `json:"id" validate:"required,uuid"`
	When     string `json:"when" validate:"required,rfc3339"`
	Minutes  int    `json:"minutes" validate:"min=15,max=120"`
	Note     string `json:"note" validate:"max=5"`
	Window   window `json:"window"`
	Internal string `json:"-" validate:"required"`
}

func TestValidateReportsEveryField(t *testing.T) {
	err := New().Validate(&sample{
		ID:      "nope",
		When:    "tomorrow",
		Minutes: 5,
		Note:    "too long",
		Window:  window{Start: "25:00", End: "10:00"},
	})
	require.Error(t, err)

	var appErr *errors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, errors.ErrValidation, appErr.Code)

	got := map[string]string{}
	for _, f := range appErr.Fields {
		got[f.Field] = f.Message
	}
	assert.Equal(t, "must be a valid UUID", got["id"])
	assert.Equal(t, "must be a valid ISO 8601 date-time", got["when"])
	assert.Equal(t, "must be at least 15", got["minutes"])
	assert.Equal(t, "must be at most 5 characters", got["note"])
	assert.Equal(t, "must be a time of day in HH:MM format", got["window.start"])
	assert.Equal(t, "is required", got["Internal"])
	assert.NotContains(t, got, "window.end")
}

func TestValidatePasses(t *testing.T) {
	err := New().Validate(&sample{
		ID:       "6f1c0f5e-8c3b-4a8e-9a34-4f8c8b0f6a11",
		When:     "2024-03-11T10:00:00Z",
		Minutes:  30,
		Window:   window{Start: "09:00", End: "17:00"},
		Internal: "x",
	})
	assert.NoError(t, err)
}
