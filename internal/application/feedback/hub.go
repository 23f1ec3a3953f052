package feedback

import (
	"fmt"
	"strings"
	"sync"

	"github.com/orris-inc/storefront/internal/domain/shared/events"
	"github.com/orris-inc/storefront/internal/shared/logger"
)

// Hub routes outcome events to the owning merchant's Emitter. It is an
// events.EventHandler and is subscribed to the dispatcher with AllEvents.
type Hub struct {
	opts   Options
	logger logger.Interface

	mu       sync.RWMutex
	emitters map[string]*Emitter
}

func NewHub(opts Options, log logger.Interface) *Hub {
	return &Hub{
		opts:     opts,
		logger:   log,
		emitters: make(map[string]*Emitter),
	}
}

// Emitter returns the merchant's emitter, creating it on first use.
func (h *Hub) Emitter(merchantID string) *Emitter {
	h.mu.RLock()
	e, ok := h.emitters[merchantID]
	h.mu.RUnlock()
	if ok {
		return e
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if e, ok := h.emitters[merchantID]; ok {
		return e
	}
	e = NewEmitter(h.opts)
	h.emitters[merchantID] = e
	return e
}

func (h *Hub) Handle(event events.DomainEvent) error {
	o, ok := event.(*events.Outcome)
	if !ok {
		return fmt.Errorf("unexpected event %T for type %s", event, event.GetEventType())
	}
	if o.MerchantID == "" {
		return fmt.Errorf("outcome %s has no merchant", o.EventID)
	}
	a := h.Emitter(o.MerchantID).Push(o)
	h.logger.Debugw("feedback advisory queued",
		"merchant_id", o.MerchantID,
		"kind", a.Kind,
		"success", a.Success,
	)
	return nil
}

func (h *Hub) CanHandle(eventType string) bool {
	return strings.HasPrefix(eventType, events.OutcomeEventPrefix)
}
