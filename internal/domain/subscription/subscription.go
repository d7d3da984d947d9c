// Package subscription models the driver's platform subscription plans.
// Payment confirmation is not part of this slice; the window simply tracks
// what the driver selected and whether the backend reported it paid.
package subscription

import (
	"errors"
	"strings"
	"time"
)

// Duration is a plan duration key.
type Duration string

const (
	OneMonth    Duration = "1m"
	ThreeMonths Duration = "3m"
	SixMonths   Duration = "6m"
	OneYear     Duration = "1y"
)

var ErrInvalidDuration = errors.New("invalid subscription duration")

// ParseDuration validates a duration key.
func ParseDuration(in string) (Duration, error) {
	d := Duration(strings.ToLower(strings.TrimSpace(in)))
	if d.Valid() {
		return d, nil
	}
	return "", ErrInvalidDuration
}

// Valid reports whether the duration is a known plan key.
func (d Duration) Valid() bool {
	switch d {
	case OneMonth, ThreeMonths, SixMonths, OneYear:
		return true
	default:
		return false
	}
}

// Months returns the plan length in calendar months.
func (d Duration) Months() int {
	switch d {
	case OneMonth:
		return 1
	case ThreeMonths:
		return 3
	case SixMonths:
		return 6
	case OneYear:
		return 12
	default:
		return 0
	}
}

// Billing returns the human billing label derived from the duration.
func (d Duration) Billing() string {
	switch d {
	case OneMonth:
		return "billed monthly"
	case ThreeMonths:
		return "billed quarterly"
	case SixMonths:
		return "billed half-yearly"
	case OneYear:
		return "billed yearly"
	default:
		return ""
	}
}

// Plan is a purchasable subscription option.
type Plan struct {
	Duration Duration `json:"duration"`
	Price    float64  `json:"price"`
	Discount float64  `json:"discount,omitempty"` // percent off the monthly base
}

// Current is the driver's active subscription window.
type Current struct {
	Plan    Plan      `json:"plan"`
	IsPaid  bool      `json:"isPaid"`
	StartAt time.Time `json:"startAt"`
	EndAt   time.Time `json:"endAt"`
}

// NewCurrent computes the start/end window for a plan starting now.
func NewCurrent(plan Plan, now time.Time) (Current, error) {
	if !plan.Duration.Valid() {
		return Current{}, ErrInvalidDuration
	}
	start := now.UTC()
	return Current{
		Plan:    plan,
		StartAt: start,
		EndAt:   start.AddDate(0, plan.Duration.Months(), 0),
	}, nil
}

// ActiveAt reports whether the window covers the given instant.
func (c Current) ActiveAt(t time.Time) bool {
	return !t.Before(c.StartAt) && t.Before(c.EndAt)
}
