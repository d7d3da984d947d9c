package job

import (
	"errors"
	"strings"
)

// Status is a job status as reported by the platform backend. The wire
// values are display-cased ("Payment Due", not PAYMENT_DUE) because the
// backend echoes them verbatim into rider and driver clients.
type Status string

const (
	StatusScheduled       Status = "Scheduled"
	StatusInbound         Status = "Inbound"
	StatusArrived         Status = "Arrived"
	StatusBoarded         Status = "Boarded"
	StatusInProgress      Status = "In Progress"
	StatusPaymentDue      Status = "Payment Due"
	StatusHandoverPending Status = "Handover Pending"
	StatusActive          Status = "Active"
	StatusCompleted       Status = "Completed"
	StatusCancelled       Status = "Cancelled"
)

var (
	ErrInvalidStatus = errors.New("invalid job status")

	// ErrAwaitingCounterparty marks statuses the driver cannot advance out
	// of: only a rider-side event (boarding, payment, handover confirmation)
	// moves the job forward. Callers turn this into an informational
	// message, not a failure.
	ErrAwaitingCounterparty = errors.New("waiting on the other party")

	ErrTerminalStatus = errors.New("job already in a terminal status")
)

// ParseStatus normalizes and validates a status string. Matching is
// case-insensitive so "payment due" and "Payment Due" both resolve.
func ParseStatus(in string) (Status, error) {
	want := strings.ToLower(strings.TrimSpace(in))
	for _, status := range allStatuses {
		if strings.ToLower(string(status)) == want {
			return status, nil
		}
	}
	return "", ErrInvalidStatus
}

var allStatuses = []Status{
	StatusScheduled, StatusInbound, StatusArrived, StatusBoarded,
	StatusInProgress, StatusPaymentDue, StatusHandoverPending,
	StatusActive, StatusCompleted, StatusCancelled,
}

// Valid reports whether status is one of the allowed status constants.
func (status Status) Valid() bool {
	for _, s := range allStatuses {
		if s == status {
			return true
		}
	}
	return false
}

// String returns the string representation of the Status.
func (status Status) String() string {
	return string(status)
}

// Terminal indicates the job is in a terminal state.
func (status Status) Terminal() bool {
	return status == StatusCompleted || status == StatusCancelled
}

// InFlight reports whether the job counts against the one-trip-at-a-time
// invariant: at most one job per driver may hold any of these statuses.
func (status Status) InFlight() bool {
	switch status {
	case StatusInbound, StatusArrived, StatusBoarded, StatusInProgress, StatusPaymentDue:
		return true
	default:
		return false
	}
}

// ProjectsToTrip reports whether a job in this status is surfaced as the
// driver's current trip. Boarded is deliberately excluded: the tracking
// view re-enters at In Progress.
func (status Status) ProjectsToTrip() bool {
	switch status {
	case StatusInbound, StatusArrived, StatusInProgress, StatusPaymentDue:
		return true
	default:
		return false
	}
}

// Next returns the status an explicit driver action advances to, branched
// by kind.
//
// Share rides walk Scheduled -> Inbound -> Arrived, wait for the rider to
// board, then Boarded -> In Progress -> Payment Due, and wait for the
// rider's payment. Hire engagements start with a handover confirmation
// (a side-channel call, not a status bump, so Scheduled is rejected here),
// sit externally driven through Handover Pending and Active, and only
// In Progress -> Payment Due is the driver's to trigger.
//
// Waiting states return ErrAwaitingCounterparty; terminal states return
// ErrTerminalStatus.
func Next(kind Kind, status Status) (Status, error) {
	if status.Terminal() {
		return "", ErrTerminalStatus
	}

	switch kind {
	case KindShare:
		switch status {
		case StatusScheduled:
			return StatusInbound, nil
		case StatusInbound:
			return StatusArrived, nil
		case StatusArrived:
			return "", ErrAwaitingCounterparty // rider has not boarded yet
		case StatusBoarded:
			return StatusInProgress, nil
		case StatusInProgress:
			return StatusPaymentDue, nil
		case StatusPaymentDue:
			return "", ErrAwaitingCounterparty // rider-side payment pending
		}

	case KindHire:
		switch status {
		case StatusScheduled:
			// handled by the handover side channel, never a local bump
			return "", ErrInvalidStatus
		case StatusHandoverPending, StatusActive:
			return "", ErrAwaitingCounterparty
		case StatusInProgress:
			return StatusPaymentDue, nil
		case StatusPaymentDue:
			return "", ErrAwaitingCounterparty
		}
	}

	return "", ErrInvalidStatus
}

// WaitMessage is the informational text surfaced when an action lands on a
// waiting state.
func WaitMessage(kind Kind, status Status) string {
	switch {
	case kind == KindShare && status == StatusArrived:
		return "Waiting for the rider to board."
	case status == StatusPaymentDue:
		return "Waiting for the client to confirm payment."
	case kind == KindHire && status == StatusHandoverPending:
		return "Vehicle handover is awaiting the client's confirmation."
	case kind == KindHire && status == StatusActive:
		return "Engagement is active; waiting for the client to finish."
	default:
		return "No driver action available in this state."
	}
}
