package eventbus

import (
	"sync"

	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"
)

const defaultQueueSize = 256

// AsyncDispatcher is the opt-in asynchronous fan-out mode spec.md §4.4/§9
// describe as an additive extension over the default synchronous Publish:
// "whose only ordering guarantee is FIFO per type". Adapted from the
// teacher's internal/worker.go WorkerPool — one tomb-supervised goroutine
// per event type, each draining its own ordered queue, so concurrent types
// make progress independently while a single type never reorders.
type AsyncDispatcher struct {
	t       *tomb.Tomb
	mu      sync.Mutex
	queues  map[EventType]chan dispatchJob
	started map[EventType]bool
}

type dispatchJob struct {
	evt  Event
	subs []subscription
}

// NewAsyncDispatcher builds a dispatcher supervised by t. Callers should
// arrange for t to die (via t.Kill/t.Context cancellation) on shutdown.
func NewAsyncDispatcher(t *tomb.Tomb) *AsyncDispatcher {
	return &AsyncDispatcher{
		t:       t,
		queues:  make(map[EventType]chan dispatchJob),
		started: make(map[EventType]bool),
	}
}

// Enqueue hands one event, with its resolved subscriber list, to the queue
// for its type, starting that type's worker on first use.
func (d *AsyncDispatcher) Enqueue(evt Event, subs []subscription) {
	d.mu.Lock()
	q, ok := d.queues[evt.Type]
	if !ok {
		q = make(chan dispatchJob, defaultQueueSize)
		d.queues[evt.Type] = q
	}
	if !d.started[evt.Type] {
		d.started[evt.Type] = true
		d.t.Go(func() error { return d.worker(evt.Type, q) })
	}
	d.mu.Unlock()

	select {
	case q <- dispatchJob{evt: evt, subs: subs}:
	case <-d.t.Dying():
	}
}

func (d *AsyncDispatcher) worker(_ EventType, q chan dispatchJob) error {
	for {
		select {
		case <-d.t.Dying():
			return nil
		case job := <-q:
			for _, s := range job.subs {
				invoke(s.handler, job.evt)
			}
		}
	}
}

// Shutdown logs dispatcher teardown; workers observe t.Dying() themselves.
func (d *AsyncDispatcher) Shutdown() {
	log.Info().Msg("event bus async dispatcher shutting down")
}
