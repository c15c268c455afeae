package reading

import (
	"encoding/json"
	"errors"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

type fieldKind int

const (
	kindNumber fieldKind = iota
	kindBoolean
)

// uploadFields lists the required fields in the order they are checked.
// The first failing field is the one reported.
var uploadFields = []struct {
	name string
	kind fieldKind
}{
	{"temperature", kindNumber},
	{"gas_level", kindNumber},
	{"light_intensity", kindNumber},
	{"fire_detected", kindBoolean},
	{"fan_status", kindBoolean},
	{"led_status", kindBoolean},
}

var (
	errNotNumber  = validation.NewError("validation_not_number", "must be a number")
	errNotBoolean = validation.NewError("validation_not_boolean", "must be a boolean")

	isPresent = validation.NotNil.Error("is required")
	isNumber  = validation.By(jsonKind(kindNumber, errNotNumber))
	isBoolean = validation.By(jsonKind(kindBoolean, errNotBoolean))
)

// ParseUpload decodes and validates a device upload.
//
// Every field is first checked for presence, in order, then every field is
// type checked in the same order. A JSON null counts as present but fails
// the type check. Unknown fields are ignored.
//
// Returns ErrInvalidBody if raw is not a JSON object, or a *ValidationError
// for the first failing field.
func ParseUpload(raw []byte) (Upload, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return Upload{}, ErrInvalidBody
	}

	for _, f := range uploadFields {
		if err := validation.Validate(fields[f.name], isPresent); err != nil {
			return Upload{}, fieldError(f.name, err)
		}
	}

	for _, f := range uploadFields {
		rule := isNumber
		if f.kind == kindBoolean {
			rule = isBoolean
		}
		if err := validation.Validate(fields[f.name], rule); err != nil {
			return Upload{}, fieldError(f.name, err)
		}
	}

	var u Upload
	decode := func(name string, dst any) {
		_ = json.Unmarshal(fields[name], dst) //nolint:errcheck // type checked above
	}
	decode("temperature", &u.Temperature)
	decode("gas_level", &u.GasLevel)
	decode("light_intensity", &u.LightIntensity)
	decode("fire_detected", &u.FireDetected)
	decode("fan_status", &u.FanStatus)
	decode("led_status", &u.LEDStatus)
	return u, nil
}

// jsonKind returns a validation func that accepts a raw JSON value of the
// given kind and fails with mismatch otherwise.
func jsonKind(kind fieldKind, mismatch validation.Error) validation.RuleFunc {
	return func(value interface{}) error {
		raw, _ := value.(json.RawMessage)
		var v any
		if err := json.Unmarshal(raw, &v); err != nil {
			return mismatch
		}
		switch v.(type) {
		case float64:
			if kind == kindNumber {
				return nil
			}
		case bool:
			if kind == kindBoolean {
				return nil
			}
		}
		return mismatch
	}
}

func fieldError(field string, err error) *ValidationError {
	problem := err.Error()
	var ozzoErr validation.Error
	if errors.As(err, &ozzoErr) {
		problem = ozzoErr.Message()
	}
	return &ValidationError{Field: field, Problem: problem}
}
