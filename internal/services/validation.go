package services

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	domain "github.com/boutique-admin/api/internal/domain"
)

var commandValidator = newCommandValidator()

func newCommandValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		return lowerCamel(field.Name)
	})
	return v
}

// FieldViolation describes a single rejected input field.
type FieldViolation struct {
	Field   string `json:"field"`
	Rule    string `json:"rule"`
	Message string `json:"message"`
}

// ValidationError carries field level detail and unwraps to the invalid-input
// sentinel of the service that produced it.
type ValidationError struct {
	kind   error
	Fields []FieldViolation
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e == nil {
		return ""
	}
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s: %s", f.Field, f.Message))
	}
	return fmt.Sprintf("%v: %s", e.kind, strings.Join(parts, "; "))
}

// Unwrap exposes the service sentinel so errors.Is keeps working.
func (e *ValidationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.kind
}

// FieldViolations extracts the field detail from err when it carries any.
func FieldViolations(err error) []FieldViolation {
	var verr *ValidationError
	if errors.As(err, &verr) && verr != nil {
		out := make([]FieldViolation, len(verr.Fields))
		copy(out, verr.Fields)
		return out
	}
	return nil
}

type violations struct {
	kind   error
	fields []FieldViolation
}

func newViolations(kind error) *violations {
	return &violations{kind: kind}
}

func (v *violations) add(field, rule, message string) {
	v.fields = append(v.fields, FieldViolation{Field: field, Rule: rule, Message: message})
}

// check runs the struct tag rules of cmd and records every failure.
func (v *violations) check(cmd any) {
	err := commandValidator.Struct(cmd)
	if err == nil {
		return
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		v.add("", "invalid", err.Error())
		return
	}
	for _, fe := range fieldErrs {
		v.add(fieldPath(fe.Namespace()), fe.Tag(), describeRule(fe))
	}
}

// amountBounds are inclusive limits for a money field. A nil bound is open.
type amountBounds struct {
	min *decimal.Decimal
	max *decimal.Decimal
}

var (
	decimalZero     = decimal.Zero
	decimalOneCent  = decimal.RequireFromString("0.01")
	decimalMaxPrice = decimal.RequireFromString("999999.99")

	nonNegativeAmount = amountBounds{min: &decimalZero}
	productPriceRange = amountBounds{min: &decimalOneCent, max: &decimalMaxPrice}
)

// amount converts value to minor units of cur, rounding half-up, and records a
// violation when the rounded value falls outside bounds or overflows int64.
func (v *violations) amount(cur domain.Currency, field string, value decimal.Decimal, bounds amountBounds) int64 {
	minor, err := cur.ToMinor(value)
	if err != nil {
		v.add(field, "range", "is out of range")
		return 0
	}
	rounded := cur.FromMinor(minor)
	if bounds.min != nil && rounded.LessThan(*bounds.min) {
		v.add(field, "min", fmt.Sprintf("must be at least %s", bounds.min.String()))
		return 0
	}
	if bounds.max != nil && rounded.GreaterThan(*bounds.max) {
		v.add(field, "max", fmt.Sprintf("must be at most %s", bounds.max.String()))
		return 0
	}
	return minor
}

// optionalAmount is amount for pointer fields; nil stays nil.
func (v *violations) optionalAmount(cur domain.Currency, field string, value *decimal.Decimal, bounds amountBounds) *int64 {
	if value == nil {
		return nil
	}
	minor := v.amount(cur, field, *value, bounds)
	return &minor
}

func (v *violations) err() error {
	if len(v.fields) == 0 {
		return nil
	}
	return &ValidationError{kind: v.kind, Fields: v.fields}
}

func fieldPath(namespace string) string {
	if idx := strings.Index(namespace, "."); idx >= 0 {
		return namespace[idx+1:]
	}
	return namespace
}

func describeRule(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		if isSized(fe.Kind()) {
			return fmt.Sprintf("must contain at least %s", fe.Param())
		}
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		if isSized(fe.Kind()) {
			return fmt.Sprintf("must contain at most %s", fe.Param())
		}
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", fe.Param())
	case "url":
		return "must be an absolute URL"
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}

func isSized(kind reflect.Kind) bool {
	switch kind {
	case reflect.String, reflect.Slice, reflect.Map, reflect.Array:
		return true
	default:
		return false
	}
}

// lowerCamel maps Go field names onto the JSON names used by the API,
// e.g. ShippingAddressID -> shippingAddressId.
func lowerCamel(name string) string {
	if name == "" {
		return name
	}
	if strings.HasSuffix(name, "ID") && len(name) > 2 {
		name = name[:len(name)-2] + "Id"
	}
	runes := []rune(name)
	for i := 0; i < len(runes); i++ {
		if !unicode.IsUpper(runes[i]) {
			break
		}
		if i > 0 && i+1 < len(runes) && unicode.IsLower(runes[i+1]) {
			break
		}
		runes[i] = unicode.ToLower(runes[i])
	}
	return string(runes)
}
