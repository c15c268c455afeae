// Package api implements the IPS Core HTTP API.
//
// Endpoints:
//   - POST /login        check a username/password pair against the users table
//   - GET  /sensor-data  return the most recent sensor reading
//   - POST /upload_data  store one reading from the field device
//   - GET  /health       store reachability
//   - GET  /metrics      runtime and upload counters
//
// Every handler returns either a response or an *Error. The adapter in
// errors.go turns the result into a JSON body, so the status code and body
// key for each failure live next to the code that detects it.
//
// Each request acquires its own store connection through the repositories
// and releases it before the response is written.
package api
