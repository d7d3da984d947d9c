package job

import (
	"errors"
	"strings"
)

// Kind distinguishes a shared ride from a vehicle-for-hire engagement.
type Kind string

const (
	KindShare Kind = "share"
	KindHire  Kind = "hire"
)

var ErrInvalidKind = errors.New("invalid job kind")

// ParseKind normalizes (lowercases+trims) and validates a kind string.
func ParseKind(in string) (Kind, error) {
	kind := Kind(strings.ToLower(strings.TrimSpace(in)))
	if kind.Valid() {
		return kind, nil
	}
	return "", ErrInvalidKind
}

// Valid reports whether kind is one of the allowed kind constants.
func (kind Kind) Valid() bool {
	switch kind {
	case KindShare, KindHire:
		return true
	default:
		return false
	}
}

// String returns the string representation of the Kind.
func (kind Kind) String() string {
	return string(kind)
}
