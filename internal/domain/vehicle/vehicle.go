package vehicle

import (
	"errors"
	"strings"
)

var (
	ErrMissingDriver = errors.New("vehicle has no driver id")
	ErrMissingPlate  = errors.New("vehicle has no plate")
)

// Vehicle is one entry in the driver's fleet list.
type Vehicle struct {
	ID       string `json:"id"`
	DriverID string `json:"driverId"`
	Make     string `json:"make"`
	Model    string `json:"model"`
	Color    string `json:"color,omitempty"`
	Plate    string `json:"plate"`
	Year     int    `json:"year,omitempty"`
}

func (v Vehicle) Validate() error {
	if strings.TrimSpace(v.DriverID) == "" {
		return ErrMissingDriver
	}
	if strings.TrimSpace(v.Plate) == "" {
		return ErrMissingPlate
	}
	return nil
}
