package events

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"driver-console/internal/general/contracts"
	"driver-console/internal/general/logger"
	"driver-console/internal/general/rabbitmq"
)

// AMQPChannel adapts the broker consumer to the Channel contract. The
// backend publishes frames to "console.event.{driver_id}.{event}"; the
// consumer loop re-enters on channel death because the underlying client
// reconnects on its own schedule.
type AMQPChannel struct {
	client *rabbitmq.Client
	log    *logger.Logger
	disp   *dispatcher

	mu      sync.Mutex
	started bool
	userID  string
	cancel  context.CancelFunc
	done    chan struct{}
}

func NewAMQPChannel(client *rabbitmq.Client, log *logger.Logger) *AMQPChannel {
	return &AMQPChannel{
		client: client,
		log:    log,
		disp:   newDispatcher(),
	}
}

func (c *AMQPChannel) On(event string, h Handler) { c.disp.On(event, h) }
func (c *AMQPChannel) Off(event string)           { c.disp.Off(event) }

func (c *AMQPChannel) Connect(ctx context.Context, userID, role string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.started {
		return ErrAlreadyConnected
	}
	c.started = true
	c.userID = userID

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	c.cancel = cancel
	c.done = make(chan struct{})

	go c.consumeLoop(runCtx)

	return nil
}

func (c *AMQPChannel) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.started {
		return
	}
	c.started = false

	c.cancel()
	<-c.done
}

// --- internals ---

func (c *AMQPChannel) consumeLoop(ctx context.Context) {
	defer close(c.done)

	tag := "driver-console-" + c.userID
	for {
		err := c.client.Consume(ctx, tag, 16, c.handleDelivery)

		select {
		case <-ctx.Done():
			return
		default:
		}

		if err != nil {
			c.log.Error(ctx, "event_consume_interrupted", "Broker consumer stopped; re-entering", err, nil)
		}
		// give the connector time to rebuild the connection
		time.Sleep(time.Second)
	}
}

func (c *AMQPChannel) handleDelivery(ctx context.Context, d amqp.Delivery) error {
	var frame contracts.Frame
	framed := json.Unmarshal(d.Body, &frame) == nil

	// the frame's own name wins; the routing key suffix is the fallback
	name := ""
	if framed {
		name = frame.Event
	}
	if name == "" {
		name = eventNameFromKey(d.RoutingKey)
	}
	if name == "" {
		c.log.Debug(ctx, "event_frame_discarded", "Delivery without an event name", map[string]any{
			"routing_key": d.RoutingKey,
			"size":        len(d.Body),
		})
		return nil // ack and forget; nothing to retry
	}

	// frames addressed to another driver are not ours to apply
	if id := driverIDFromKey(d.RoutingKey); id != "" && id != c.userID {
		return nil
	}

	if framed && len(frame.Data) > 0 {
		c.disp.dispatch(ctx, c.log, name, frame.Data)
		return nil
	}

	// bare payloads (no outer frame) are valid too
	c.disp.dispatch(ctx, c.log, name, d.Body)
	return nil
}

// eventNameFromKey extracts {event} from "console.event.{driver_id}.{event}".
func eventNameFromKey(key string) string {
	rest, ok := strings.CutPrefix(key, contracts.RouteConsolePrefix)
	if !ok {
		return ""
	}
	if i := strings.LastIndex(rest, "."); i >= 0 {
		return rest[i+1:]
	}
	return ""
}

// driverIDFromKey extracts {driver_id} from "console.event.{driver_id}.{event}".
func driverIDFromKey(key string) string {
	rest, ok := strings.CutPrefix(key, contracts.RouteConsolePrefix)
	if !ok {
		return ""
	}
	if i := strings.LastIndex(rest, "."); i > 0 {
		return rest[:i]
	}
	return ""
}
