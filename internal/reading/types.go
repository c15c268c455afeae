package reading

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound is returned by Latest when no reading has been stored.
	ErrNotFound = errors.New("reading: no data available")

	// ErrInvalidBody is returned when an upload is not a JSON object.
	ErrInvalidBody = errors.New("reading: invalid JSON body")
)

// Reading is one stored row of sensor_data.
type Reading struct {
	Temperature    float64   `json:"temperature"`
	GasLevel       float64   `json:"gas_level"`
	LightIntensity float64   `json:"light_intensity"`
	FireDetected   bool      `json:"fire_detected"`
	FanStatus      bool      `json:"fan_status"`
	LEDStatus      bool      `json:"led_status"`
	Timestamp      time.Time `json:"timestamp"`
}

// Upload is a validated reading as submitted by the device, before the
// store assigns a timestamp.
type Upload struct {
	Temperature    float64
	GasLevel       float64
	LightIntensity float64
	FireDetected   bool
	FanStatus      bool
	LEDStatus      bool
}

// ValidationError names the first upload field that failed validation.
type ValidationError struct {
	Field   string
	Problem string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("'%s' %s", e.Field, e.Problem)
}
