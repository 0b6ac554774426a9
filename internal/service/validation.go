package service

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strconv"
	"strings"

	"wallet-ledger/pkg/apperror"

	"github.com/go-playground/validator/v10"
)

var digitsRe = regexp.MustCompile(`^[0-9]+$`)

// newValidator returns a validator that reports fields by their json name
// and knows the "amount" rule.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("amount", validateAmount)
	return v
}

// validateAmount accepts a positive whole number of minor units that fits
// in an int64.
func validateAmount(fl validator.FieldLevel) bool {
	_, ok := parseAmount(fl.Field().String())
	return ok
}

func parseAmount(s string) (int64, bool) {
	if !digitsRe.MatchString(s) {
		return 0, false
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

// check validates input and aggregates every failed rule.
func check(v *validator.Validate, input any) *apperror.AppError {
	err := v.Struct(input)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperror.InternalError(fmt.Errorf("validate input: %w", err))
	}

	fields := apperror.FieldErrors{}
	for _, fe := range verrs {
		fields.Add(fe.Field(), fe.Tag(), fieldMessage(fe))
	}
	return apperror.Validation(fields)
}

func fieldMessage(fe validator.FieldError) string {
	name := strings.ReplaceAll(fe.Field(), "_", " ")
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("The %s field is required.", name)
	case "uuid":
		return fmt.Sprintf("The %s must be a valid UUID.", name)
	case "amount":
		return fmt.Sprintf("The %s must be a positive whole number of minor units.", name)
	case "max":
		return fmt.Sprintf("The %s may not be greater than %s characters.", name, fe.Param())
	case "len":
		return fmt.Sprintf("The %s must be %s characters.", name, fe.Param())
	case "alpha":
		return fmt.Sprintf("The %s may only contain letters.", name)
	}
	return fmt.Sprintf("The %s is invalid.", name)
}
