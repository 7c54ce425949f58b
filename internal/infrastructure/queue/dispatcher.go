package queue

import (
	"context"
	"hash/fnv"
	"time"

	"github.com/rs/zerolog"

	"github.com/mobilia/admin-gateway/internal/core/domain"
	"github.com/mobilia/admin-gateway/internal/core/ports"
)

const (
	defaultWorkers = 4
	channelBuffer  = 256
	writeTimeout   = 5 * time.Second
)

// Dispatcher routes audit events to a fixed set of workers using consistent
// hashing on the session id, guaranteeing per-session audit ordering while
// keeping persistence off the login/logout request path.
type Dispatcher struct {
	workers []chan *domain.AuditEvent
	repo    ports.AuditRepository
	log     zerolog.Logger
}

// NewDispatcher creates a Dispatcher with numWorkers sharded workers.
// If numWorkers <= 0, defaultWorkers is used.
func NewDispatcher(numWorkers int, repo ports.AuditRepository, log zerolog.Logger) *Dispatcher {
	if numWorkers <= 0 {
		numWorkers = defaultWorkers
	}
	d := &Dispatcher{
		workers: make([]chan *domain.AuditEvent, numWorkers),
		repo:    repo,
		log:     log,
	}
	for i := range d.workers {
		d.workers[i] = make(chan *domain.AuditEvent, channelBuffer)
	}
	return d
}

// Start launches all worker goroutines. Workers stop when ctx is cancelled.
func (d *Dispatcher) Start(ctx context.Context) {
	for i, ch := range d.workers {
		go d.runWorker(ctx, i, ch)
	}
}

// Enqueue hands an event to the worker responsible for its session. A full
// worker channel drops the event rather than blocking the auth path; the
// audit trail is best-effort.
func (d *Dispatcher) Enqueue(event *domain.AuditEvent) {
	select {
	case d.workers[d.shardIndex(event.SessionID)] <- event:
	default:
		d.log.Warn().Str("sid", event.SessionID).Str("kind", event.Kind).Msg("audit queue full, event dropped")
	}
}

// shardIndex maps a session id deterministically to a worker index.
func (d *Dispatcher) shardIndex(sid string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(sid))
	return int(h.Sum32()) % len(d.workers)
}

func (d *Dispatcher) runWorker(ctx context.Context, id int, ch <-chan *domain.AuditEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-ch:
			if !ok {
				return
			}
			writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), writeTimeout)
			if err := d.repo.Insert(writeCtx, event); err != nil {
				d.log.Error().Err(err).
					Str("sid", event.SessionID).
					Str("kind", event.Kind).
					Int("worker_id", id).
					Msg("audit write failed")
			}
			cancel()
		}
	}
}

var _ ports.AuditSink = (*Dispatcher)(nil)
