package httputil

import (
	"encoding/json"
	stderrors "errors"
	"net/http"
	"reflect"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/scheduler-api/pkg/errors"
)

// Response wraps all successful API responses
type Response struct {
	Status string      `json:"status"`
	Data   interface{} `json:"data"`
}

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Status  string              `json:"status"`
	Message string              `json:"message"`
	Errors  []errors.FieldError `json:"errors,omitempty"`
}

// RespondWithSuccess sends a 200 success response
func RespondWithSuccess(c *gin.Context, data interface{}) {
	RespondWithStatus(c, http.StatusOK, data)
}

func RespondWithStatus(c *gin.Context, status int, data interface{}) {
	c.JSON(status, Response{Status: "success", Data: data})
}

// RespondWithMessage sends a bare message, used for deletions.
func RespondWithMessage(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"message": message})
}

// RespondWithError maps err onto its HTTP status. Anything that is not an
// AppError is treated as internal and its text is hidden.
func RespondWithError(c *gin.Context, err error) {
	var appErr *errors.AppError
	if !stderrors.As(err, &appErr) {
		appErr = errors.Internal(err)
	}
	if appErr.Code == errors.ErrInternal {
		_ = c.Error(err)
	}

	c.AbortWithStatusJSON(appErr.StatusCode(), ErrorResponse{
		Status:  "error",
		Message: appErr.Message,
		Errors:  appErr.Fields,
	})
}

// ParseUUIDParam reads a path parameter as a UUID, answering 400 when it is
// malformed. The boolean reports whether the handler may continue.
func ParseUUIDParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		RespondWithError(c, errors.Validation(errors.FieldError{Field: name, Message: "must be a valid UUID"}))
		return uuid.Nil, false
	}
	return id, true
}

// BindJSON decodes the body into obj. A field holding the wrong JSON type
// is returned as a FieldError with the rest of obj still decoded, so the
// caller can report it next to its own validation. Any other decode failure
// answers 400 and the boolean is false.
func BindJSON(c *gin.Context, obj interface{}) ([]errors.FieldError, bool) {
	err := c.ShouldBindJSON(obj)
	if err == nil {
		return nil, true
	}

	var typeErr *json.UnmarshalTypeError
	if stderrors.As(err, &typeErr) && typeErr.Field != "" {
		return []errors.FieldError{{Field: typeErr.Field, Message: typeMessage(typeErr.Type)}}, true
	}

	RespondWithError(c, errors.Validation(errors.FieldError{Field: "body", Message: "must be a valid JSON object"}))
	return nil, false
}

func typeMessage(t reflect.Type) string {
	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return "must be a whole number"
	case reflect.Float32, reflect.Float64:
		return "must be a number"
	case reflect.String:
		return "must be a string"
	case reflect.Bool:
		return "must be true or false"
	}
	return "has the wrong type"
}
