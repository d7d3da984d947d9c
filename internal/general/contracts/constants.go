package contracts

// Event names pushed over the real-time channel. The WebSocket transport
// carries them in the frame's "event" field; the AMQP transport uses them
// as routing-key suffixes.
const (
	EventNotification       = "notification"
	EventNewRideRequest     = "new_ride_request"
	EventHireRequest        = "hire_request"
	EventRideRequest        = "ride_request"
	EventRidesharePostAdded = "rideshare_post_added"
	EventHirePostAdded      = "hire_post_added"
	EventVehicleAdded       = "vehicle_added"
)

// AMQP topology for the rabbitmq transport.
const (
	ExchangeConsoleTopic = "console_topic"

	QueueConsoleEvents = "driver_console_events"

	// RouteConsolePrefix + {driver_id} + "." + {event name}
	RouteConsolePrefix = "console.event."
)
