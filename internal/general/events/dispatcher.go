package events

import (
	"context"
	"fmt"
	"sync"

	"driver-console/internal/general/contracts"
	"driver-console/internal/general/logger"
	"driver-console/internal/general/metrics"
)

// dispatcher holds the name->handler table shared by both transports.
// Single handler per event name; a second On for the same name replaces
// the first.
type dispatcher struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

func newDispatcher() *dispatcher {
	return &dispatcher{handlers: make(map[string]Handler)}
}

func (d *dispatcher) On(event string, h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if h == nil {
		delete(d.handlers, event)
		return
	}
	d.handlers[event] = h
}

func (d *dispatcher) Off(event string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.handlers, event)
}

// dispatch decodes one raw frame payload and hands it to the registered
// handler. Unknown names and undecodable payloads are quarantined:
// counted, logged, never applied.
func (d *dispatcher) dispatch(ctx context.Context, log *logger.Logger, name string, raw []byte) {
	payload, err := contracts.DecodeEvent(name, raw)
	if err != nil {
		metrics.EventsReceived.WithLabelValues(name, "dropped").Inc()
		log.Debug(ctx, "event_quarantined", "Dropped undecodable or unknown event", map[string]any{
			"event": name,
			"cause": err.Error(),
		})
		return
	}

	d.mu.RLock()
	h := d.handlers[name]
	d.mu.RUnlock()

	if h == nil {
		metrics.EventsReceived.WithLabelValues(name, "unhandled").Inc()
		return
	}

	// a panicking handler must not kill the transport's read loop
	defer func() {
		if r := recover(); r != nil {
			metrics.EventsReceived.WithLabelValues(name, "dropped").Inc()
			log.Error(ctx, "event_handler_panicked", "Event handler panicked", panicErr(r), map[string]any{"event": name})
		}
	}()

	h(ctx, payload)
	metrics.EventsReceived.WithLabelValues(name, "applied").Inc()
}

func panicErr(r any) error {
	if err, ok := r.(error); ok {
		return err
	}
	return fmt.Errorf("%v", r)
}
