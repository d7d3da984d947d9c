package notification

// Notification is an append-only inbox entry. There is no deletion; the
// only bulk mutation is mark-all-read. Time is the backend's RFC3339
// string, echoed as-is.
type Notification struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Message string `json:"message"`
	Time    string `json:"time"`
	Unread  bool   `json:"unread"`
}
