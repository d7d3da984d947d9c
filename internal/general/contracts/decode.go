package contracts

import (
	"encoding/json"
	"errors"
	"fmt"
)

var ErrUnknownEvent = errors.New("unknown event name")

// Frame is the outer shape of a pushed message: event name plus raw
// payload. Both transports deliver this shape.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// DecodeEvent turns a named raw payload into its typed event value.
// Unknown names return ErrUnknownEvent; callers count and drop those
// rather than guessing at the shape.
func DecodeEvent(name string, raw []byte) (any, error) {
	var (
		v   any
		err error
	)

	switch name {
	case EventNotification:
		ev := NotificationEvent{}
		err = json.Unmarshal(raw, &ev)
		v = ev
	case EventNewRideRequest, EventHireRequest, EventRideRequest:
		ev := ApprovalEvent{}
		err = json.Unmarshal(raw, &ev)
		v = ev
	case EventRidesharePostAdded:
		ev := SharePostEvent{}
		err = json.Unmarshal(raw, &ev)
		v = ev
	case EventHirePostAdded:
		ev := HirePostEvent{}
		err = json.Unmarshal(raw, &ev)
		v = ev
	case EventVehicleAdded:
		ev := VehicleEvent{}
		err = json.Unmarshal(raw, &ev)
		v = ev
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, name)
	}

	if err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", name, err)
	}
	return v, nil
}
