package config

import (
	"fmt"
	"reflect"
	"strings"
)

// RequiredFields fails when any named field holds its zero value.
// Paths may be nested: "NATS.Subject".
func RequiredFields(fields ...string) Validator {
	return ValidatorFunc(func(config interface{}) error {
		var missing []string
		for _, name := range fields {
			v, err := field(config, name)
			if err != nil {
				return err
			}
			if v.IsZero() {
				missing = append(missing, name)
			}
		}
		if len(missing) > 0 {
			return fmt.Errorf("required fields are missing: %s", strings.Join(missing, ", "))
		}
		return nil
	})
}

// RangeValidator checks that a numeric field lies in [min, max].
func RangeValidator(fieldName string, min, max float64) Validator {
	return ValidatorFunc(func(config interface{}) error {
		v, err := field(config, fieldName)
		if err != nil {
			return err
		}

		var n float64
		switch {
		case v.CanInt():
			n = float64(v.Int())
		case v.CanUint():
			n = float64(v.Uint())
		case v.CanFloat():
			n = v.Float()
		default:
			return fmt.Errorf("field %s is not numeric", fieldName)
		}

		if n < min || n > max {
			return fmt.Errorf("field %s value %v is out of range [%v, %v]", fieldName, n, min, max)
		}
		return nil
	})
}

// OneOfValidator checks that a field equals one of allowed.
func OneOfValidator(fieldName string, allowed ...interface{}) Validator {
	return ValidatorFunc(func(config interface{}) error {
		v, err := field(config, fieldName)
		if err != nil {
			return err
		}
		got := v.Interface()
		for _, a := range allowed {
			if reflect.DeepEqual(got, a) {
				return nil
			}
		}
		return fmt.Errorf("field %s value %v is not one of allowed values: %v", fieldName, got, allowed)
	})
}

// SelfValidating adapts a config section with its own Validate method,
// such as keyseq.Config, into a Validator.
func SelfValidating(fieldName string) Validator {
	return ValidatorFunc(func(config interface{}) error {
		v, err := field(config, fieldName)
		if err != nil {
			return err
		}
		sv, ok := v.Interface().(interface{ Validate() error })
		if !ok {
			return fmt.Errorf("field %s has no Validate method", fieldName)
		}
		if err := sv.Validate(); err != nil {
			return fmt.Errorf("%s: %w", fieldName, err)
		}
		return nil
	})
}

// field resolves a dotted path such as "Executor.Workers" on config,
// following pointers along the way.
func field(config interface{}, path string) (reflect.Value, error) {
	cur := reflect.ValueOf(config)
	for _, part := range strings.Split(path, ".") {
		for cur.Kind() == reflect.Ptr {
			if cur.IsNil() {
				return reflect.Value{}, fmt.Errorf("field %s not found", path)
			}
			cur = cur.Elem()
		}
		if cur.Kind() != reflect.Struct {
			return reflect.Value{}, fmt.Errorf("field %s not found", path)
		}
		cur = cur.FieldByName(part)
		if !cur.IsValid() {
			return reflect.Value{}, fmt.Errorf("field %s not found", path)
		}
	}
	return cur, nil
}
