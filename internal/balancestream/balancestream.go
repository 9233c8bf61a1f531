// Package balancestream is the Balance Stream (spec.md C12): fans out
// {tenantId, balance, reason, timestamp} events to per-connection
// observers over Redis pub/sub, so every API process (not just the one
// that did the debit) can serve a streaming client for that tenant.
package balancestream

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

type Event struct {
	TenantID  string    `json:"tenant_id"`
	Balance   int64     `json:"balance"`
	Reason    string    `json:"reason"`
	Timestamp time.Time `json:"timestamp"`
}

func channelFor(tenantID string) string { return "balance:" + tenantID }

// Publisher is what the Billing Engine calls after every debit.
type Publisher struct {
	rdb *redis.Client
}

func NewPublisher(rdb *redis.Client) *Publisher {
	return &Publisher{rdb: rdb}
}

func (p *Publisher) Publish(ctx context.Context, e Event) error {
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return p.rdb.Publish(ctx, channelFor(e.TenantID), b).Err()
}

// bufferSize bounds each observer's channel; once full, new events drop the
// oldest buffered one rather than blocking the publisher (spec.md §4.12).
const bufferSize = 16

// Subscribe returns a channel of events for tenantID. The channel is
// closed when ctx is cancelled. No replay of events missed before
// Subscribe was called or during a disconnect — observers should re-query
// current balance on (re)connect, per spec.md §4.12.
func Subscribe(ctx context.Context, rdb *redis.Client, tenantID string, logger *slog.Logger) <-chan Event {
	if logger == nil {
		logger = slog.Default()
	}
	out := make(chan Event, bufferSize)
	sub := rdb.Subscribe(ctx, channelFor(tenantID))

	go func() {
		defer close(out)
		defer sub.Close()

		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var e Event
				if err := json.Unmarshal([]byte(msg.Payload), &e); err != nil {
					logger.Warn("balancestream: dropping malformed event", "error", err)
					continue
				}
				select {
				case out <- e:
				default:
					// buffer full: drop the oldest, then push the new event.
					select {
					case <-out:
					default:
					}
					select {
					case out <- e:
					default:
					}
				}
			}
		}
	}()

	return out
}
