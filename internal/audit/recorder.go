package audit

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"tallo.app/internal/ids"
	"tallo.app/internal/obs"
)

const appendTimeout = 5 * time.Second

// Store persists audit entries.
type Store interface {
	Append(ctx context.Context, entry *Entry) error
}

// Recorder persists entries asynchronously on a bounded backlog. Record
// never blocks the caller: under backpressure entries are dropped with a
// local warning, because a lost audit row is acceptable and a stalled API
// is not. Writes run on the recorder's own context, so an entry already
// dispatched outlives the request that produced it.
type Recorder struct {
	store Store
	log   zerolog.Logger
	queue chan *Entry
	wg    sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// NewRecorder starts the recorder's worker. depth bounds the backlog.
func NewRecorder(store Store, log zerolog.Logger, depth int) *Recorder {
	if depth <= 0 {
		depth = 1024
	}
	r := &Recorder{
		store: store,
		log:   log,
		queue: make(chan *Entry, depth),
	}
	r.wg.Add(1)
	go r.run()
	return r
}

// Record enqueues an entry without waiting for persistence.
func (r *Recorder) Record(entry *Entry) {
	if entry == nil {
		return
	}
	if entry.ID == "" {
		entry.ID = ids.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return
	}
	select {
	case r.queue <- entry:
	default:
		obs.AuditEntries.WithLabelValues("dropped").Inc()
		r.log.Warn().
			Str("action", string(entry.Action)).
			Str("resource_type", entry.ResourceType).
			Msg("audit backlog full, entry dropped")
	}
}

// Close stops intake and drains the backlog.
func (r *Recorder) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	close(r.queue)
	r.mu.Unlock()
	r.wg.Wait()
}

func (r *Recorder) run() {
	defer r.wg.Done()
	for entry := range r.queue {
		ctx, cancel := context.WithTimeout(context.Background(), appendTimeout)
		err := r.store.Append(ctx, entry)
		cancel()
		if err != nil {
			obs.AuditEntries.WithLabelValues("failed").Inc()
			r.log.Warn().
				Err(err).
				Str("action", string(entry.Action)).
				Str("user_id", entry.UserID).
				Str("organization_id", entry.OrganizationID).
				Msg("audit append failed")
			continue
		}
		obs.AuditEntries.WithLabelValues("written").Inc()
	}
}
