package validation

import (
	"encoding/hex"
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// Validator validates structs
type Validator struct{}

// NewValidator creates a new validator
func NewValidator() *Validator {
	return &Validator{}
}

// Validate validates a struct against its `validate` tags.
func (v *Validator) Validate(s interface{}) error {
	val := reflect.ValueOf(s)
	if val.Kind() == reflect.Ptr {
		val = val.Elem()
	}

	if val.Kind() != reflect.Struct {
		return fmt.Errorf("validate expects a struct")
	}

	typ := val.Type()

	for i := 0; i < val.NumField(); i++ {
		field := val.Field(i)
		fieldType := typ.Field(i)
		tag := fieldType.Tag.Get("validate")

		if tag == "" {
			continue
		}

		if err := v.validateField(field, tag); err != nil {
			return fmt.Errorf("%s: %w", fieldType.Name, err)
		}
	}

	return nil
}

// validateField validates a single field
func (v *Validator) validateField(field reflect.Value, tag string) error {
	rules := strings.Split(tag, ",")

	for _, rule := range rules {
		parts := strings.SplitN(rule, "=", 2)
		ruleName := parts[0]
		arg := ""
		if len(parts) == 2 {
			arg = parts[1]
		}

		switch ruleName {
		case "required":
			if field.IsZero() {
				return fmt.Errorf("field is required")
			}

		case "email":
			if field.Kind() == reflect.String {
				email := field.String()
				if email != "" && !strings.Contains(email, "@") {
					return fmt.Errorf("invalid email format")
				}
			}

		case "hex":
			if field.Kind() == reflect.String && field.String() != "" {
				if _, err := hex.DecodeString(field.String()); err != nil {
					return fmt.Errorf("invalid hex string")
				}
			}

		case "min":
			n, err := strconv.Atoi(arg)
			if err != nil {
				continue
			}
			switch field.Kind() {
			case reflect.String:
				if len(field.String()) < n {
					return fmt.Errorf("minimum length is %d", n)
				}
			case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
				if field.Int() < int64(n) {
					return fmt.Errorf("minimum value is %d", n)
				}
			}

		case "max":
			n, err := strconv.Atoi(arg)
			if err != nil {
				continue
			}
			switch field.Kind() {
			case reflect.String:
				if len(field.String()) > n {
					return fmt.Errorf("maximum length is %d", n)
				}
			case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
				if field.Int() > int64(n) {
					return fmt.Errorf("maximum value is %d", n)
				}
			}

		case "len":
			n, err := strconv.Atoi(arg)
			if err != nil {
				continue
			}
			if field.Kind() == reflect.String && len(field.String()) != n {
				return fmt.Errorf("length must be %d", n)
			}
		}
	}

	return nil
}
