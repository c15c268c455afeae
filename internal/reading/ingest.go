package reading

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/ips-core/internal/infrastructure/logging"
)

// ingestTimeout bounds the store round trip for one MQTT upload.
const ingestTimeout = 10 * time.Second

// Ingestor accepts uploads published by devices over MQTT. Payloads use the
// same JSON shape as POST /upload_data.
type Ingestor struct {
	service *Service
	logger  *logging.Logger
}

// NewIngestor creates an ingestor that records through service.
func NewIngestor(service *Service, logger *logging.Logger) *Ingestor {
	return &Ingestor{service: service, logger: logger}
}

// HandleUpload validates and stores one upload payload. Invalid payloads
// are logged and dropped.
func (i *Ingestor) HandleUpload(payload []byte) error {
	i.logger.Debug("mqtt upload received", "payload", string(payload))

	u, err := ParseUpload(payload)
	if err != nil {
		var vErr *ValidationError
		if errors.As(err, &vErr) || errors.Is(err, ErrInvalidBody) {
			i.logger.Warn("dropping invalid mqtt upload", "error", err)
			return nil
		}
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), ingestTimeout)
	defer cancel()

	if _, err := i.service.Record(ctx, u); err != nil {
		return fmt.Errorf("storing mqtt upload: %w", err)
	}
	i.logger.Info("mqtt upload stored")
	return nil
}
