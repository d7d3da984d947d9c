package contracts

// NotificationEvent is pushed on EventNotification.
type NotificationEvent struct {
	Title   string `json:"title"`
	Message string `json:"message"`
	Time    string `json:"time,omitempty"`
	Envelope
}

// ApprovalEvent is pushed on EventNewRideRequest, EventHireRequest and
// EventRideRequest. All three carry the same negotiation-request shape;
// RelatedType tells share from hire.
type ApprovalEvent struct {
	ID            string  `json:"id"`
	JobID         int64   `json:"jobId,omitempty"`
	RelatedType   string  `json:"relatedType"` // share | hire
	DriverID      string  `json:"driverId"`
	ProposerID    string  `json:"proposerId,omitempty"`
	ProposerName  string  `json:"proposerName,omitempty"`
	Origin        string  `json:"origin,omitempty"`
	Destination   string  `json:"destination,omitempty"`
	ProposedPrice float64 `json:"proposedPrice,omitempty"`
	Message       string  `json:"message,omitempty"`
	Envelope
}

// SharePostEvent is pushed on EventRidesharePostAdded.
type SharePostEvent struct {
	ID          string  `json:"id"`
	DriverID    string  `json:"driverId"`
	Origin      string  `json:"origin"`
	Destination string  `json:"destination"`
	Date        string  `json:"date,omitempty"`
	Time        string  `json:"time,omitempty"`
	Price       float64 `json:"price"`
	Seats       int     `json:"seats"`
	Envelope
}

// HirePostEvent is pushed on EventHirePostAdded.
type HirePostEvent struct {
	ID       string  `json:"id"`
	DriverID string  `json:"driverId"`
	Title    string  `json:"title"`
	Category string  `json:"category,omitempty"`
	Location string  `json:"location,omitempty"`
	Rate     float64 `json:"rate"`
	Status   string  `json:"status,omitempty"`
	Envelope
}

// VehicleEvent is pushed on EventVehicleAdded.
type VehicleEvent struct {
	ID       string `json:"id"`
	DriverID string `json:"driverId"`
	Make     string `json:"make,omitempty"`
	Model    string `json:"model,omitempty"`
	Color    string `json:"color,omitempty"`
	Plate    string `json:"plate,omitempty"`
	Year     int    `json:"year,omitempty"`
	Envelope
}
