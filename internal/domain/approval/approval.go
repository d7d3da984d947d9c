// Package approval models pending booking negotiations awaiting the
// driver's accept/reject/counter decision.
package approval

import (
	"errors"
	"strings"
	"time"
)

// RelatedType says which side of the marketplace the request came from.
type RelatedType string

const (
	RelatedShare RelatedType = "share"
	RelatedHire  RelatedType = "hire"
)

// Request is a pending negotiation from a rider/client. Resolution (any of
// approve, reject, counter) removes it from the pending set exactly once.
type Request struct {
	ID            string      `json:"id"`
	JobID         int64       `json:"jobId,omitempty"` // set when the request targets an existing job
	RelatedType   RelatedType `json:"relatedType"`
	DriverID      string      `json:"driverId"`
	ProposerID    string      `json:"proposerId"`
	ProposerName  string      `json:"proposerName,omitempty"`
	Origin        string      `json:"origin,omitempty"`
	Destination   string      `json:"destination,omitempty"`
	ProposedPrice float64     `json:"proposedPrice"`
	Message       string      `json:"message,omitempty"`
	ReceivedAt    time.Time   `json:"receivedAt,omitempty"`
}

var (
	ErrMissingID     = errors.New("approval request id is required")
	ErrMissingDriver = errors.New("approval request driver id is required")
)

// Validate checks invariants of the Request.
func (r *Request) Validate() error {
	if strings.TrimSpace(r.ID) == "" {
		return ErrMissingID
	}
	if strings.TrimSpace(r.DriverID) == "" {
		return ErrMissingDriver
	}
	return nil
}
