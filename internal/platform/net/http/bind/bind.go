// Package bind decodes and validates JSON request bodies
package bind

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"reflect"
	"strings"
	"sync"

	perr "poshub/internal/platform/errors"
	"poshub/internal/platform/logger"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

// FieldLevel aliases validator.FieldLevel for custom tags
type FieldLevel = validator.FieldLevel

// ValidatorSvc holds the process validator and its english translator
type ValidatorSvc struct {
	Validator  *validator.Validate
	Translator ut.Translator
}

var (
	vOnce sync.Once
	vSvc  *ValidatorSvc
)

// Get returns the validator singleton, building it on first use
func Get() *ValidatorSvc {
	vOnce.Do(func() {
		loc := en.New()
		trans, _ := ut.New(loc, loc).GetTranslator("en")

		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(jsonFieldName)
		_ = en_translations.RegisterDefaultTranslations(v, trans)
		registerShort(v, trans, "min", "{0} must be at least {1}")
		registerShort(v, trans, "max", "{0} must be at most {1}")
		registerShort(v, trans, "iso4217", "{0} must be an ISO 4217 currency code")
		registerShort(v, trans, "unique", "{0} must not contain duplicates")

		vSvc = &ValidatorSvc{Validator: v, Translator: trans}
	})
	return vSvc
}

// messages name fields by their json tag
func jsonFieldName(fld reflect.StructField) string {
	tag := fld.Tag.Get("json")
	if i := strings.Index(tag, ","); i >= 0 {
		tag = tag[:i]
	}
	if tag == "" || tag == "-" {
		return fld.Name
	}
	return tag
}

func registerShort(v *validator.Validate, trans ut.Translator, tag, text string) {
	_ = v.RegisterTranslation(tag, trans,
		func(t ut.Translator) error { return t.Add(tag, text, true) },
		func(t ut.Translator, fe validator.FieldError) string {
			msg, _ := t.T(tag, fe.Field(), fe.Param())
			return msg
		},
	)
}

// Validate runs struct validation and maps the first failure to a Validation error with its field
func Validate(v any) error {
	err := Get().Validator.Struct(v)
	if err == nil {
		return nil
	}
	var inv *validator.InvalidValidationError
	if errors.As(err, &inv) {
		logger.Named("bind").Error().Err(inv).Msg("validator internal error")
		return perr.Internalf("validation error")
	}
	field, msg := FieldAndMessage(err)
	return perr.WithField(perr.Validationf("%s", msg), field)
}

// FieldAndMessage returns the first failing field (namespaced, e.g. "orders[1].orderId") and its message
func FieldAndMessage(err error) (field, message string) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		ns := fe.Namespace()
		if i := strings.Index(ns, "."); i >= 0 {
			ns = ns[i+1:]
		}
		return ns, fe.Translate(Get().Translator)
	}
	return "", err.Error()
}

// JSONOptions controls body decoding
type JSONOptions struct {
	MaxBytes        int64 // default 1MB
	DisallowUnknown bool
}

// DefaultJSONOptions are used when ParseJSON receives none
var DefaultJSONOptions = JSONOptions{MaxBytes: 1 << 20, DisallowUnknown: true}

// ParseJSON decodes the request body into T and validates it.
// Decode failures are JSON errors; rule failures are Validation errors
func ParseJSON[T any](r *http.Request, opts ...JSONOptions) (T, error) {
	var zero, dst T
	o := DefaultJSONOptions
	if len(opts) > 0 {
		o = opts[0]
	}
	if r.Body == nil {
		return zero, perr.JSONErrf("empty body")
	}
	defer r.Body.Close()

	var body io.Reader = r.Body
	if o.MaxBytes > 0 {
		body = io.LimitReader(r.Body, o.MaxBytes)
	}
	dec := json.NewDecoder(body)
	if o.DisallowUnknown {
		dec.DisallowUnknownFields()
	}
	if err := dec.Decode(&dst); err != nil {
		if errors.Is(err, io.EOF) {
			return zero, perr.JSONErrf("empty body")
		}
		return zero, perr.JSONErrf("invalid JSON: %v", err)
	}
	if dec.More() {
		return zero, perr.JSONErrf("unexpected trailing data")
	}
	if err := Validate(dst); err != nil {
		return zero, err
	}
	return dst, nil
}
