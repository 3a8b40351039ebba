package middleware

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/simp-lee/hexa/internal/pkg"
)

const validatedContextKey = "validated"

// Source selects the part of the request Validate reads.
type Source int

const (
	SourceBody Source = iota
	SourceQuery
	SourceParams
)

func (s Source) String() string {
	switch s {
	case SourceQuery:
		return "query"
	case SourceParams:
		return "params"
	default:
		return "body"
	}
}

// Defaulter is implemented by validated types that fill in default values.
// ApplyDefaults runs before validation, so defaulted fields satisfy
// required rules.
type Defaulter interface {
	ApplyDefaults()
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

// structValidator returns the shared validator. It reads the "binding" tag,
// like gin, and reports fields by their json, form or uri name.
func structValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.SetTagName("binding")
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			for _, key := range []string{"json", "form", "uri"} {
				if name := pkg.JSONTagName(f.Tag.Get(key)); name != "" {
					return name
				}
			}
			return f.Name
		})
	})
	return validate
}

// Validate returns a gin middleware that decodes source into a T and
// validates it. Body keys are camelCased before decoding, as in
// core.Controller. Any failure rejects the whole request with 400 and one
// error item per invalid field. On success the value is available through
// Validated and, for SourceBody, the request body is replaced by the
// re-encoded value so downstream binding sees defaults.
func Validate[T any](source Source) gin.HandlerFunc {
	return func(c *gin.Context) {
		v := new(T)
		if err := decodeSource(c, source, v); err != nil {
			pkg.ValidationFailed(c, []pkg.ErrorItem{pkg.DecodeErrorItem(err)})
			return
		}

		if d, ok := any(v).(Defaulter); ok {
			d.ApplyDefaults()
		}

		if items := validationItems(v); len(items) > 0 {
			pkg.ValidationFailed(c, items)
			return
		}

		if source == SourceBody {
			b, err := json.Marshal(v)
			if err != nil {
				pkg.Abort(c, http.StatusInternalServerError, "Validation error occurred",
					pkg.ErrorItem{Field: "server", Message: err.Error(), Type: pkg.ErrorTypeServerError})
				return
			}
			c.Request.Body = io.NopCloser(bytes.NewReader(b))
			c.Request.ContentLength = int64(len(b))
		}

		c.Set(validatedContextKey, v)
		c.Next()
	}
}

// Validated returns the value stored by Validate[T].
func Validated[T any](c *gin.Context) (*T, bool) {
	v, ok := c.Get(validatedContextKey)
	if !ok {
		return nil, false
	}
	t, ok := v.(*T)
	return t, ok
}

func decodeSource(c *gin.Context, source Source, dst any) error {
	switch source {
	case SourceQuery:
		return binding.MapFormWithTag(dst, c.Request.URL.Query(), "form")
	case SourceParams:
		params := make(map[string][]string, len(c.Params))
		for _, p := range c.Params {
			params[p.Key] = []string{p.Value}
		}
		return binding.MapFormWithTag(dst, params, "uri")
	}

	if c.Request.Body == nil {
		return nil
	}
	raw, err := io.ReadAll(c.Request.Body)
	if err != nil {
		return err
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}

	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return err
	}
	if obj, ok := generic.(map[string]any); ok {
		if raw, err = json.Marshal(pkg.CamelizeKeys(obj)); err != nil {
			return err
		}
	}
	return json.Unmarshal(raw, dst)
}

// validationItems validates v and returns one item per failed field. Nested
// fields are reported with dotted paths such as "address.city".
func validationItems(v any) []pkg.ErrorItem {
	err := structValidator().Struct(v)
	if err == nil {
		return nil
	}
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return []pkg.ErrorItem{{Field: "body", Message: err.Error(), Type: pkg.ErrorTypeValidation}}
	}
	items := make([]pkg.ErrorItem, 0, len(ve))
	for _, fe := range ve {
		field := fe.Namespace()
		if _, rest, ok := strings.Cut(field, "."); ok {
			field = rest
		}
		items = append(items, pkg.ErrorItem{
			Field:   field,
			Message: pkg.FieldErrorMessage(fe),
			Type:    pkg.ErrorTypeValidation,
		})
	}
	return items
}
