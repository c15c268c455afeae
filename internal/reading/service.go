package reading

import (
	"context"

	"github.com/nerrad567/ips-core/internal/infrastructure/logging"
)

// Publisher receives every reading after it has been committed.
type Publisher interface {
	PublishReading(ctx context.Context, r Reading) error
}

// Service records uploads and fans stored readings out to publishers.
// Publisher failures are logged and never fail the upload.
type Service struct {
	store      Store
	publishers []Publisher
	logger     *logging.Logger
}

// NewService creates a reading service. Nil publishers are skipped.
func NewService(store Store, logger *logging.Logger, publishers ...Publisher) *Service {
	s := &Service{store: store, logger: logger}
	for _, p := range publishers {
		if p != nil {
			s.publishers = append(s.publishers, p)
		}
	}
	return s
}

// Latest returns the most recent reading.
func (s *Service) Latest(ctx context.Context) (*Reading, error) {
	return s.store.Latest(ctx)
}

// Record stores one validated upload and publishes the stored reading.
func (s *Service) Record(ctx context.Context, u Upload) (*Reading, error) {
	rd, err := s.store.Insert(ctx, u)
	if err != nil {
		return nil, err
	}

	for _, p := range s.publishers {
		if err := p.PublishReading(ctx, *rd); err != nil {
			s.logger.Warn("publishing reading failed", "error", err)
		}
	}
	return rd, nil
}
