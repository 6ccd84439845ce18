// Package relay shares change events between board processes through a
// Redis pub/sub channel, so viewers attached to one process also reload on
// mutations made through another.
package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/stopmidnight/taskboard/internal/notify"
)

// DefaultChannel is the pub/sub channel used when none is configured.
const DefaultChannel = "taskboard:events"

const (
	outboxSize     = 64
	publishTimeout = 2 * time.Second
	reconnectDelay = time.Second
)

type envelope struct {
	Origin string       `json:"origin"`
	Event  notify.Event `json:"event"`
}

// Relay forwards local events to Redis and remote events to a local
// publisher. Events carry the id of the process that sent them; a relay
// ignores its own.
type Relay struct {
	rc      *redis.Client
	channel string
	origin  string
	local   notify.Publisher
	logger  log.FieldLogger
	outbox  chan notify.Event
}

// Dial connects to the Redis server at url (redis://host:port/db).
func Dial(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	rc := redis.NewClient(opts)

	if err := rc.Ping(ctx).Err(); err != nil {
		_ = rc.Close()

		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return rc, nil
}

// New returns a relay on channel that delivers remote events to local.
func New(rc *redis.Client, channel string, local notify.Publisher, logger log.FieldLogger) *Relay {
	if channel == "" {
		channel = DefaultChannel
	}

	if logger == nil {
		logger = log.StandardLogger()
	}

	return &Relay{
		rc:      rc,
		channel: channel,
		origin:  uuid.NewString(),
		local:   local,
		logger:  logger.WithField("channel", channel),
		outbox:  make(chan notify.Event, outboxSize),
	}
}

// Origin identifies this process on the channel.
func (r *Relay) Origin() string {
	return r.origin
}

// Publish queues ev for Redis. It never blocks; events are dropped while
// the queue is full.
func (r *Relay) Publish(ev notify.Event) {
	select {
	case r.outbox <- ev:
	default:
		r.logger.WithField("type", ev.Type).Debug("relay queue full, dropping event")
	}
}

// Run subscribes to the channel and pumps events in both directions until
// ctx is done. A dropped subscription is re-established.
func (r *Relay) Run(ctx context.Context) {
	for {
		sub := r.rc.Subscribe(ctx, r.channel)

		if _, err := sub.Receive(ctx); err != nil {
			_ = sub.Close()

			if ctx.Err() != nil {
				return
			}

			r.logger.WithError(err).Warn("relay subscribe failed")

			if !sleep(ctx, reconnectDelay) {
				return
			}

			continue
		}

		r.pump(ctx, sub.Channel())
		_ = sub.Close()

		if ctx.Err() != nil {
			return
		}

		r.logger.Error("relay channel closed, reconnecting")

		if !sleep(ctx, reconnectDelay) {
			return
		}
	}
}

func (r *Relay) pump(ctx context.Context, ch <-chan *redis.Message) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-r.outbox:
			r.send(ctx, ev)
		case msg, ok := <-ch:
			if !ok {
				return
			}

			r.receive(msg.Payload)
		}
	}
}

func (r *Relay) send(ctx context.Context, ev notify.Event) {
	data, err := json.Marshal(envelope{Origin: r.origin, Event: ev})
	if err != nil {
		r.logger.WithError(err).Error("encode relay event")

		return
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	if err := r.rc.Publish(ctx, r.channel, data).Err(); err != nil {
		r.logger.WithError(err).Warn("relay publish failed")
	}
}

func (r *Relay) receive(payload string) {
	var env envelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		r.logger.WithError(err).Warn("unable to parse relay event")

		return
	}

	if env.Origin == r.origin {
		return
	}

	r.local.Publish(env.Event)
}

func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
