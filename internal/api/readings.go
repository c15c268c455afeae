package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/nerrad567/ips-core/internal/reading"
)

// handleSensorData returns the reading with the greatest timestamp.
func (s *Server) handleSensorData(r *http.Request) (*response, error) {
	rd, err := s.readings.Latest(r.Context())
	if errors.Is(err, reading.ErrNotFound) {
		s.logger.Info("no sensor data available")
		return nil, notFound("No data available")
	}
	if err != nil {
		return nil, storeFailure(keyMessage, err)
	}

	s.logger.Info("latest reading fetched",
		"temperature", rd.Temperature,
		"gas_level", rd.GasLevel,
		"light_intensity", rd.LightIntensity,
		"fire_detected", rd.FireDetected,
		"fan_status", rd.FanStatus,
		"led_status", rd.LEDStatus,
		"timestamp", rd.Timestamp,
	)
	return &response{status: http.StatusOK, body: rd}, nil
}

// handleUpload validates and stores one reading from the field device.
// Failures are reported under the "error" key.
func (s *Server) handleUpload(r *http.Request) (*response, error) {
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		s.uploadsRejected.Add(1)
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, tooLarge(keyError)
		}
		return nil, badRequest(keyError, "Invalid JSON body")
	}
	s.logger.Info("upload received", "payload", string(raw))

	u, err := reading.ParseUpload(raw)
	if err != nil {
		s.uploadsRejected.Add(1)
		var vErr *reading.ValidationError
		if errors.As(err, &vErr) {
			return nil, badRequest(keyError, vErr.Error())
		}
		return nil, badRequest(keyError, "Invalid JSON body")
	}

	if _, err := s.readings.Record(r.Context(), u); err != nil {
		s.uploadsFailed.Add(1)
		apiErr := storeFailure(keyError, err)
		if s.cfg.ExposeStoreErrors {
			apiErr.Message = err.Error()
		}
		return nil, apiErr
	}

	s.uploadsAccepted.Add(1)
	return &response{
		status: http.StatusCreated,
		body:   map[string]string{keyMessage: "Data uploaded successfully"},
	}, nil
}
