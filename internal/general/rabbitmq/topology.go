package rabbitmq

import (
	"fmt"

	"driver-console/internal/general/contracts"

	amqp "github.com/rabbitmq/amqp091-go"
)

// declareTopology ensures the console exchange, the event queue, and the
// binding exist. Declarations are idempotent; every reconnect re-runs this.
func declareTopology(ch *amqp.Channel, queue string) error {
	if err := ch.ExchangeDeclare(contracts.ExchangeConsoleTopic, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange %s: %w", contracts.ExchangeConsoleTopic, err)
	}

	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue %s: %w", queue, err)
	}

	if err := ch.QueueBind(queue, contracts.RouteConsolePrefix+"#", contracts.ExchangeConsoleTopic, false, nil); err != nil {
		return fmt.Errorf("bind queue %s to %s: %w", queue, contracts.ExchangeConsoleTopic, err)
	}

	return nil
}
