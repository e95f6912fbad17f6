package shared

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// MaxBodyBytes caps the size of a decoded request body.
const MaxBodyBytes = 1 << 20

// ErrMalformedJSON is returned when a request body is not well-formed JSON.
var ErrMalformedJSON = errors.New("malformed JSON body")

// RequestError describes a structurally invalid request: a missing required
// field, a field of the wrong type or an out of range query parameter.
type RequestError struct {
	Field   string // JSON field or query parameter name, empty for the whole body
	Message string
}

// Error implements the error interface.
func (e *RequestError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + " " + e.Message
}

// NewRequestError creates a RequestError.
func NewRequestError(field, message string) *RequestError {
	return &RequestError{Field: field, Message: message}
}

// Global validator instance for reuse. Field names in its errors are the
// JSON names.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return field.Name
		}
		return name
	})
	return v
}

// DecodeJSON decodes the request body into v. Syntax problems and empty
// bodies yield ErrMalformedJSON; a value of the wrong JSON type yields a
// *RequestError naming the field. Errors from a custom UnmarshalJSON are
// returned unchanged.
func DecodeJSON(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, MaxBodyBytes))
	if err := dec.Decode(v); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			if typeErr.Field == "" {
				return NewRequestError("", "request body has the wrong JSON type")
			}
			return NewRequestError(typeErr.Field, "must be of type "+jsonTypeName(typeErr.Type))
		}
		var syntaxErr *json.SyntaxError
		if errors.As(err, &syntaxErr) || errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return fmt.Errorf("%w: %v", ErrMalformedJSON, err)
		}
		// errors raised by a custom UnmarshalJSON
		return err
	}
	return nil
}

// ValidateRequest validates the given struct using the validator package and
// reports the first failing field as a *RequestError.
func ValidateRequest(v interface{}) error {
	if custom, ok := v.(interface{ Validate() error }); ok {
		return custom.Validate()
	}

	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return NewRequestError(fe.Field(), validationTagMessage(fe.Tag(), fe.Param()))
	}
	return err
}

// validationTagMessage maps validation tags to user-friendly messages.
func validationTagMessage(tag, param string) string {
	switch tag {
	case "required":
		return "field required"
	case "min":
		return "must be at least " + param
	case "max":
		return "must be at most " + param
	case "oneof":
		return "must be one of " + param
	default:
		return "is invalid"
	}
}

func jsonTypeName(t reflect.Type) string {
	if t == nil {
		return "unknown"
	}
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	switch t.Kind() {
	case reflect.String:
		return "string"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return "integer"
	case reflect.Float32, reflect.Float64:
		return "number"
	case reflect.Bool:
		return "boolean"
	case reflect.Slice, reflect.Array:
		return "array"
	default:
		return "object"
	}
}
