package influxdb

import "errors"

var (
	// ErrDisabled is returned by Connect when InfluxDB is switched off.
	ErrDisabled = errors.New("influxdb: disabled in configuration")

	// ErrConnectionFailed is returned when the server does not answer the
	// startup ping.
	ErrConnectionFailed = errors.New("influxdb: connection failed")

	// ErrClosed is returned by operations on a closed client.
	ErrClosed = errors.New("influxdb: client closed")
)
