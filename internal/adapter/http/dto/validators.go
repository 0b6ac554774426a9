package dto

import (
	"errors"
	"fmt"
	"html"
	"reflect"
	"strings"
	"time"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/pkg/apperror"
	"wallet-ledger/pkg/sqlfilter"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

func init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterTagNameFunc(tagName)
		_ = v.RegisterValidation("ledger_type", validateLedgerType)
		_ = v.RegisterValidation("rfc3339", validateRFC3339)
	}
}

// tagName reports fields by their query or JSON name.
func tagName(f reflect.StructField) string {
	for _, tag := range []string{"form", "json"} {
		name, _, _ := strings.Cut(f.Tag.Get(tag), ",")
		if name != "" && name != "-" {
			return name
		}
	}
	return f.Name
}

func validateLedgerType(fl validator.FieldLevel) bool {
	return domain.TransactionType(fl.Field().String()).Valid()
}

func validateRFC3339(fl validator.FieldLevel) bool {
	_, err := time.Parse(time.RFC3339, fl.Field().String())
	return err == nil
}

// ValidationError converts a binding error into the aggregated 422 error.
// Errors that are not field validation failures become a 400.
func ValidationError(err error) *apperror.AppError {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperror.BadRequest("Malformed request")
	}
	fields := apperror.FieldErrors{}
	for _, fe := range verrs {
		fields.Add(fe.Field(), fe.Tag(), fieldMessage(fe))
	}
	return apperror.Validation(fields)
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "max":
		return fmt.Sprintf("Must be at most %s characters.", fe.Param())
	case "len":
		return fmt.Sprintf("Must be exactly %s characters.", fe.Param())
	case "alpha":
		return "Must contain letters only."
	case "number":
		return "Must be a whole number."
	case "ledger_type":
		return "Must be one of deposit, withdraw, transfer_debit, transfer_credit."
	case "rfc3339":
		return "Must be an RFC 3339 timestamp."
	}
	return "Is invalid."
}

// ParseFilter decodes the JSON filter tree of a list query and checks it
// against fields. An empty raw value means no filter.
func ParseFilter(raw string, fields sqlfilter.Fields) (*sqlfilter.Group, *apperror.AppError) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}

	fail := func(rule, message string) (*sqlfilter.Group, *apperror.AppError) {
		errs := apperror.FieldErrors{}
		errs.Add("filter", rule, message)
		return nil, apperror.Validation(errs)
	}

	g, err := sqlfilter.Parse([]byte(raw), sqlfilter.LogicAnd)
	if err != nil {
		return fail("json", "Must be a JSON filter object.")
	}
	if err := fields.Check(g); err != nil {
		switch {
		case errors.Is(err, sqlfilter.ErrUnknownField):
			return fail("field", "Names a field that cannot be filtered on.")
		case errors.Is(err, sqlfilter.ErrUnknownOperator):
			return fail("operator", "Uses an unknown operator.")
		case errors.Is(err, sqlfilter.ErrUnknownLogic):
			return fail("logic", "Groups must be AND or OR.")
		}
		return fail("value", "Compares a field with a value of the wrong type.")
	}
	return &g, nil
}

// SanitizeStruct trims whitespace and HTML-escapes every exported string
// field (including *string) of a struct pointer.
func SanitizeStruct(v interface{}) {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Ptr || rv.Elem().Kind() != reflect.Struct {
		return
	}
	sanitizeFields(rv.Elem())
}

func sanitizeFields(rv reflect.Value) {
	for i := 0; i < rv.NumField(); i++ {
		f := rv.Field(i)
		if !f.CanSet() {
			continue
		}
		switch f.Kind() {
		case reflect.String:
			f.SetString(sanitize(f.String()))
		case reflect.Ptr:
			if f.IsNil() {
				continue
			}
			elem := f.Elem()
			if elem.Kind() == reflect.String {
				elem.SetString(sanitize(elem.String()))
			}
		}
	}
}

func sanitize(s string) string {
	return html.EscapeString(strings.TrimSpace(s))
}
