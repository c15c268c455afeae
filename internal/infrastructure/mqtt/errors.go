package mqtt

import "errors"

// Use errors.Is() to check for these errors in calling code.
var (
	// ErrDisabled is returned by Connect when MQTT is disabled in config.
	ErrDisabled = errors.New("mqtt: disabled in configuration")

	// ErrConnectionFailed is returned when the broker cannot be reached.
	ErrConnectionFailed = errors.New("mqtt: connection failed")

	// ErrNotConnected is returned while the broker connection is down.
	ErrNotConnected = errors.New("mqtt: client not connected")

	// ErrPublishFailed wraps broker-side publish failures and timeouts.
	ErrPublishFailed = errors.New("mqtt: publish failed")

	// ErrSubscribeFailed wraps subscribe and unsubscribe failures.
	ErrSubscribeFailed = errors.New("mqtt: subscribe failed")
)
