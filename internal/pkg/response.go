package pkg

import (
	"encoding/json"
	"errors"
	"net/http"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/simp-lee/hexa/internal/domain"
)

// Envelope status values.
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// Error item types.
const (
	ErrorTypeValidation   = "validation"
	ErrorTypeRequired     = "required"
	ErrorTypeInvalid      = "invalid"
	ErrorTypeExpired      = "expired"
	ErrorTypeUnauthorized = "unauthorized"
	ErrorTypeForbidden    = "forbidden"
	ErrorTypeNotFound     = "not_found"
	ErrorTypeConflict     = "conflict"
	ErrorTypeRateLimited  = "rate_limited"
	ErrorTypeInternal     = "internal_error"
	ErrorTypeServerError  = "server_error"
)

// MessageValidationFailed is the envelope message for rejected input.
const MessageValidationFailed = "Validation failed"

// Response is the standard JSON envelope for every API response.
// Errors is only present on failure.
type Response struct {
	Status   string      `json:"status"`
	Message  string      `json:"message"`
	Data     any         `json:"data"`
	Metadata *Metadata   `json:"metadata,omitempty"`
	Errors   []ErrorItem `json:"errors,omitempty"`
}

// Metadata carries pagination details for list responses.
type Metadata struct {
	Page         int   `json:"page"`
	Limit        int   `json:"limit"`
	TotalRecords int64 `json:"total_records"`
	TotalPages   int   `json:"total_pages"`
}

// ErrorItem describes a single failure cause.
type ErrorItem struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Type    string `json:"type"`
}

// Success sends a 200 JSON response with the given data.
func Success(c *gin.Context, message string, data any) {
	c.JSON(http.StatusOK, Response{
		Status:  StatusSuccess,
		Message: message,
		Data:    data,
	})
}

// List sends a 200 JSON response carrying a page of data and its metadata.
func List(c *gin.Context, message string, data any, meta Metadata) {
	c.JSON(http.StatusOK, Response{
		Status:   StatusSuccess,
		Message:  message,
		Data:     data,
		Metadata: &meta,
	})
}

// Fail sends a failure envelope with the given status and error items.
func Fail(c *gin.Context, status int, message string, items ...ErrorItem) {
	c.JSON(status, failure(message, items))
}

// Abort sends a failure envelope and stops the handler chain.
func Abort(c *gin.Context, status int, message string, items ...ErrorItem) {
	c.AbortWithStatusJSON(status, failure(message, items))
}

func failure(message string, items []ErrorItem) Response {
	if items == nil {
		items = []ErrorItem{}
	}
	return Response{
		Status:  StatusFailed,
		Message: message,
		Data:    nil,
		Errors:  items,
	}
}

// Error sends a failure envelope for err. A *domain.AppError is mapped to its
// HTTP status and error type; any other error becomes a 500 internal_error.
func Error(c *gin.Context, message string, err error) {
	status, item := ErrorDetails(err)
	Fail(c, status, message, item)
}

// ErrorDetails maps err to an HTTP status and a single error item.
func ErrorDetails(err error) (int, ErrorItem) {
	var appErr *domain.AppError
	if err == nil || !errors.As(err, &appErr) || appErr.Code == domain.CodeInternal {
		msg := "internal error"
		if err != nil {
			msg = err.Error()
		}
		return http.StatusInternalServerError, ErrorItem{Field: "server", Message: msg, Type: ErrorTypeInternal}
	}

	field := appErr.Field
	typ := ErrorTypeInternal
	switch appErr.Code {
	case domain.CodeNotFound:
		typ = ErrorTypeNotFound
		if field == "" {
			field = "id"
		}
	case domain.CodeAlreadyExists:
		typ = ErrorTypeConflict
	case domain.CodeValidation:
		typ = ErrorTypeValidation
	case domain.CodeUnauthorized:
		typ = ErrorTypeUnauthorized
	case domain.CodeForbidden:
		typ = ErrorTypeForbidden
	case domain.CodeRateLimited:
		typ = ErrorTypeRateLimited
	}
	if field == "" {
		field = "server"
	}
	return domain.HTTPStatusCode(err), ErrorItem{Field: field, Message: appErr.Message, Type: typ}
}

// ValidationFailed sends a 400 "Validation failed" envelope with the given items.
func ValidationFailed(c *gin.Context, items []ErrorItem) {
	Abort(c, http.StatusBadRequest, MessageValidationFailed, items...)
}

// BindAndValidate binds the request body to obj and validates it.
// On failure it automatically sends a validation failure response and returns false.
// Usage in handlers:
//
//	if !pkg.BindAndValidate(c, &req) { return }
func BindAndValidate(c *gin.Context, obj any) bool {
	if err := c.ShouldBind(obj); err != nil {
		ValidationFailed(c, ValidationItems(err, obj))
		return false
	}
	return true
}

// ValidationItems converts a binding or validation error into error items.
// When obj is non-nil, JSON tag names are preferred over struct field names.
func ValidationItems(err error, obj any) []ErrorItem {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return []ErrorItem{{Field: "body", Message: err.Error(), Type: ErrorTypeValidation}}
	}

	jsonTags := buildJSONTagMap(obj)

	items := make([]ErrorItem, 0, len(ve))
	for _, fe := range ve {
		name := fe.Field()
		if tag, ok := jsonTags[fe.StructField()]; ok {
			name = tag
		} else {
			name = ToSnake(name)
		}
		items = append(items, ErrorItem{
			Field:   name,
			Message: FieldErrorMessage(fe),
			Type:    ErrorTypeValidation,
		})
	}
	return items
}

// DecodeErrorItem converts a JSON decoding error into an error item. Type
// mismatches name the offending field in snake_case.
func DecodeErrorItem(err error) ErrorItem {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		return ErrorItem{
			Field:   ToSnake(typeErr.Field),
			Message: "must be a " + typeErr.Type.String(),
			Type:    ErrorTypeValidation,
		}
	}
	return ErrorItem{Field: "body", Message: err.Error(), Type: ErrorTypeValidation}
}

// FieldErrorMessage renders a short human-readable message for a failed rule.
func FieldErrorMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		return "must be at least " + fe.Param()
	case "max":
		return "must be at most " + fe.Param()
	case "oneof":
		return "must be one of " + fe.Param()
	}
	msg := "failed on " + fe.Tag()
	if fe.Param() != "" {
		msg += "=" + fe.Param()
	}
	return msg
}

// buildJSONTagMap returns a map from struct field name to its JSON tag name.
// If obj is nil or not a struct (pointer), it returns an empty map.
func buildJSONTagMap(obj any) map[string]string {
	if obj == nil {
		return nil
	}
	t := reflect.TypeOf(obj)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil
	}
	m := make(map[string]string, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if name := JSONTagName(f.Tag.Get("json")); name != "" {
			m[f.Name] = name
		}
	}
	return m
}

// JSONTagName extracts the field name from a JSON struct tag value.
func JSONTagName(tag string) string {
	if tag == "" || tag == "-" {
		return ""
	}
	name, _, _ := strings.Cut(tag, ",")
	if name == "" || name == "-" {
		return ""
	}
	return name
}
