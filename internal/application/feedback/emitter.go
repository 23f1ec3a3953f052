// Package feedback turns mutation outcomes into short-lived advisories for
// presentation layers. Nothing in the catalog or funnel services reads from
// here; they only publish outcomes.
package feedback

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/orris-inc/storefront/internal/domain/shared/events"
)

const (
	DefaultExpiry    = 3 * time.Second
	DefaultQueueSize = 20

	subscriberBuffer = 16
)

// Options configures an Emitter. Zero values fall back to the defaults.
type Options struct {
	Expiry    time.Duration
	QueueSize int
	// Clock is injectable for tests.
	Clock func() time.Time
}

func (o Options) withDefaults() Options {
	if o.Expiry <= 0 {
		o.Expiry = DefaultExpiry
	}
	if o.QueueSize <= 0 {
		o.QueueSize = DefaultQueueSize
	}
	if o.Clock == nil {
		o.Clock = time.Now
	}
	return o
}

// Advisory is one feedback signal.
type Advisory struct {
	ID         string                   `json:"id"`
	Kind       events.OutcomeKind       `json:"kind"`
	Success    bool                     `json:"success"`
	Resource   *events.ResourceSnapshot `json:"resource,omitempty"`
	FunnelID   string                   `json:"funnel_id,omitempty"`
	FunnelName string                   `json:"funnel_name,omitempty"`
	ErrorKind  string                   `json:"error_kind,omitempty"`
	Message    string                   `json:"message"`
	CreatedAt  time.Time                `json:"created_at"`
	ExpiresAt  time.Time                `json:"expires_at"`
}

// Expired reports whether a is past its expiry at now.
func (a Advisory) Expired(now time.Time) bool {
	return !now.Before(a.ExpiresAt)
}

// Emitter keeps an ordered, bounded queue of advisories for one merchant.
type Emitter struct {
	opts Options

	mu      sync.Mutex
	queue   []Advisory
	subs    map[uint64]chan Advisory
	nextSub uint64
}

func NewEmitter(opts Options) *Emitter {
	return &Emitter{
		opts: opts.withDefaults(),
		subs: make(map[uint64]chan Advisory),
	}
}

// Push records an outcome. The oldest advisory is dropped when the queue is full.
func (e *Emitter) Push(o *events.Outcome) Advisory {
	now := e.opts.Clock()
	a := Advisory{
		ID:         uuid.NewString(),
		Kind:       o.Kind,
		Success:    o.Success,
		Resource:   o.Resource,
		FunnelID:   o.FunnelID,
		FunnelName: o.FunnelName,
		ErrorKind:  o.ErrorKind,
		Message:    message(o),
		CreatedAt:  now,
		ExpiresAt:  now.Add(e.opts.Expiry),
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.pruneLocked(now)
	if len(e.queue) >= e.opts.QueueSize {
		e.queue = slices.Delete(e.queue, 0, len(e.queue)-e.opts.QueueSize+1)
	}
	e.queue = append(e.queue, a)

	for _, ch := range e.subs {
		select {
		case ch <- a:
		default:
		}
	}
	return a
}

// Active returns the unexpired advisories, oldest first.
func (e *Emitter) Active() []Advisory {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pruneLocked(e.opts.Clock())
	return slices.Clone(e.queue)
}

// Subscribe streams advisories pushed after the call. A slow subscriber
// misses advisories rather than blocking Push.
func (e *Emitter) Subscribe() (<-chan Advisory, func()) {
	e.mu.Lock()
	defer e.mu.Unlock()

	key := e.nextSub
	e.nextSub++
	ch := make(chan Advisory, subscriberBuffer)
	e.subs[key] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			e.mu.Lock()
			delete(e.subs, key)
			e.mu.Unlock()
			close(ch)
		})
	}
}

func (e *Emitter) pruneLocked(now time.Time) {
	i := 0
	for i < len(e.queue) && e.queue[i].Expired(now) {
		i++
	}
	if i > 0 {
		e.queue = slices.Delete(e.queue, 0, i)
	}
}

// message renders the success text, or the failure text carried by the outcome.
func message(o *events.Outcome) string {
	if !o.Success {
		return o.Message
	}
	subject := "Resource"
	if o.Resource != nil && o.Resource.Name != "" {
		subject = fmt.Sprintf("%q", o.Resource.Name)
	}
	funnel, title := "the funnel", "Your funnel"
	if o.FunnelName != "" {
		funnel = fmt.Sprintf("%q", o.FunnelName)
		title = funnel
	}

	switch o.Kind {
	case events.OutcomeCreated:
		return subject + " was added to your catalog"
	case events.OutcomeUpdated:
		return subject + " was saved"
	case events.OutcomeDeleted:
		return subject + " was deleted"
	case events.OutcomeAssigned:
		return fmt.Sprintf("%s was added to %s", subject, funnel)
	case events.OutcomeUnassigned:
		return fmt.Sprintf("%s was removed from %s", subject, funnel)
	case events.OutcomeGenerated:
		return title + " was generated"
	case events.OutcomeDeployed:
		return title + " is live"
	case events.OutcomeTakenOffline:
		return title + " was taken offline"
	default:
		return "Done"
	}
}
