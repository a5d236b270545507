package domain

import "time"

// Location is a reported incident position. Coordinates travel as strings
// because that is the wire format the mobile and web clients submit.
type Location struct {
	Latitude  string `json:"latitude"`
	Longitude string `json:"longitude"`
}

// CrimeReport is a citizen-submitted incident record.
type CrimeReport struct {
	ID          string    `json:"id"`
	ReporterID  string    `json:"reporterId"`
	CrimeType   string    `json:"crimeType"`
	Location    Location  `json:"location"`
	Description string    `json:"description"`
	OccurredAt  time.Time `json:"dateTime"`
	MediaPath   string    `json:"mediaPath,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}
