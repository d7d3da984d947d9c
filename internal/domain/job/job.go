package job

import (
	"errors"
	"strings"
	"time"
)

// SyncState tracks whether a locally held job matches what the backend has
// confirmed. Optimistic transitions leave the status in place but mark the
// entity, so an unsynced job is distinguishable from a confirmed one
// instead of being a silent phantom.
type SyncState string

const (
	SyncSynced  SyncState = "synced"
	SyncPending SyncState = "pending_sync"
	SyncFailed  SyncState = "sync_failed"
)

// NegotiationStatus is the approval sub-machine state carried on jobs that
// arrived through a booking negotiation.
type NegotiationStatus string

const (
	NegotiationPending  NegotiationStatus = "pending"
	NegotiationApproved NegotiationStatus = "approved"
	NegotiationRejected NegotiationStatus = "rejected"
)

// Job is a contracted unit of work: a ride-share trip or a for-hire
// vehicle engagement.
type Job struct {
	ID          int64             `json:"id"`
	Title       string            `json:"title,omitempty"`
	Origin      string            `json:"origin"`
	Destination string            `json:"destination"`
	Date        string            `json:"date,omitempty"`
	Payout      float64           `json:"payout"`
	Status      Status            `json:"status"`
	Kind        Kind              `json:"type"`
	ClientName  string            `json:"clientName,omitempty"`
	ClientID    string            `json:"clientId,omitempty"`
	Negotiation NegotiationStatus `json:"negotiationStatus,omitempty"`

	SyncState SyncState `json:"syncState,omitempty"`
	UpdatedAt time.Time `json:"updatedAt,omitempty"`
}

var (
	ErrMissingID       = errors.New("job id is required")
	ErrMissingRoute    = errors.New("job origin and destination are required")
	ErrNegativePayout  = errors.New("job payout cannot be negative")
	ErrKindStatusMixup = errors.New("status does not belong to the job kind")
)

// Validate checks invariants of the Job entity.
func (j *Job) Validate() error {
	if j.ID == 0 {
		return ErrMissingID
	}
	if !j.Kind.Valid() {
		return ErrInvalidKind
	}
	if !j.Status.Valid() {
		return ErrInvalidStatus
	}
	if j.Kind == KindShare && strings.TrimSpace(j.Origin) == "" {
		return ErrMissingRoute
	}
	if j.Payout < 0 {
		return ErrNegativePayout
	}
	// hire-only statuses must not appear on share jobs
	if j.Kind == KindShare && (j.Status == StatusHandoverPending || j.Status == StatusActive) {
		return ErrKindStatusMixup
	}
	return nil
}
