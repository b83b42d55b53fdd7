package redissync

import (
	"context"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// Channel is the pub/sub channel carrying invalidated flag keys.
const Channel = "flaggate:invalidate"

// Publisher broadcasts flag keys whose cached state became stale, so other
// instances drop their snapshots before the TTL expires.
type Publisher struct {
	client *redis.Client
	log    *slog.Logger
}

// NewPublisher creates a publisher over the given redis client.
func NewPublisher(client *redis.Client, log *slog.Logger) *Publisher {
	if client == nil {
		panic("redissync: redis client cannot be nil")
	}
	if log == nil {
		log = slog.Default()
	}
	return &Publisher{client: client, log: log}
}

// Invalidate publishes the flag key. Failures are logged, not returned: the
// local cache is already invalidated and remote caches fall back to TTL
// expiry.
func (p *Publisher) Invalidate(ctx context.Context, flagKey string) {
	if err := p.client.Publish(ctx, Channel, flagKey).Err(); err != nil {
		p.log.WarnContext(ctx, "failed to publish flag invalidation",
			slog.String("flag_key", flagKey),
			slog.Any("error", err))
	}
}

// Subscribe listens for invalidated flag keys and applies them with fn
// until ctx is cancelled. It is meant to run in its own goroutine.
func Subscribe(ctx context.Context, client *redis.Client, log *slog.Logger, fn func(flagKey string)) error {
	if log == nil {
		log = slog.Default()
	}

	sub := client.Subscribe(ctx, Channel)
	defer func() {
		if err := sub.Close(); err != nil {
			log.WarnContext(ctx, "failed to close invalidation subscription", slog.Any("error", err))
		}
	}()

	// Fail fast if the subscription cannot be established.
	if _, err := sub.Receive(ctx); err != nil {
		return err
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			fn(msg.Payload)
		}
	}
}
