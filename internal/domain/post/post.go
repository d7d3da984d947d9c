// Package post models a driver's advertised future capacity: a share post
// offers seats on a planned ride, a hire post offers the vehicle itself.
// A post is not yet a contracted job; once booked it leaves the active set.
package post

import (
	"errors"
	"strings"
	"time"
)

// SyncState mirrors job.SyncState for listings: a post created while the
// backend was unreachable stays visible locally but is marked pending so
// the poller can retry the write instead of leaving a phantom record.
type SyncState string

const (
	SyncSynced  SyncState = "synced"
	SyncPending SyncState = "pending_sync"
)

// SharePost advertises seats on a future shared ride.
type SharePost struct {
	ID          string    `json:"id"`
	Origin      string    `json:"origin"`
	Destination string    `json:"destination"`
	Date        string    `json:"date"`
	Time        string    `json:"time"`
	Price       float64   `json:"price"`
	Seats       int       `json:"seats"`
	SyncState   SyncState `json:"syncState,omitempty"`
	UpdatedAt   time.Time `json:"updatedAt,omitempty"`
}

// HirePost advertises the vehicle for hire.
type HirePost struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Category  string    `json:"category"`
	Location  string    `json:"location"`
	Rate      float64   `json:"rate"`
	Status    string    `json:"status"`
	SyncState SyncState `json:"syncState,omitempty"`
	UpdatedAt time.Time `json:"updatedAt,omitempty"`
}

var (
	ErrMissingRoute    = errors.New("post origin and destination are required")
	ErrMissingTitle    = errors.New("hire post title is required")
	ErrNonPositiveRate = errors.New("post price/rate must be positive")
	ErrNoSeats         = errors.New("share post must offer at least one seat")
)

// Validate checks invariants of a SharePost.
func (p *SharePost) Validate() error {
	if strings.TrimSpace(p.Origin) == "" || strings.TrimSpace(p.Destination) == "" {
		return ErrMissingRoute
	}
	if p.Price <= 0 {
		return ErrNonPositiveRate
	}
	if p.Seats < 1 {
		return ErrNoSeats
	}
	return nil
}

// Validate checks invariants of a HirePost.
func (p *HirePost) Validate() error {
	if strings.TrimSpace(p.Title) == "" {
		return ErrMissingTitle
	}
	if p.Rate <= 0 {
		return ErrNonPositiveRate
	}
	return nil
}
