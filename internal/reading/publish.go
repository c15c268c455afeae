package reading

import "context"

// PublisherFunc adapts an ordinary function to Publisher.
type PublisherFunc func(ctx context.Context, r Reading) error

// PublishReading calls f(ctx, r).
func (f PublisherFunc) PublishReading(ctx context.Context, r Reading) error {
	return f(ctx, r)
}
