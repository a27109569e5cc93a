package domain

import "time"

// OfflineEntry wraps a report held in the offline spool because no transport
// accepted it at capture time.
type OfflineEntry struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	Report    *Report   `json:"report"`
}
