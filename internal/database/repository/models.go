package repository

import "time"

// ExchangeRecord is one row of the exchange history.
type ExchangeRecord struct {
	ID        string
	Op        string
	Target    string
	Success   *bool
	Error     string
	StartedAt time.Time
	Duration  time.Duration
}

// Failed reports a transport failure or a service-reported failure.
func (e ExchangeRecord) Failed() bool {
	return e.Error != "" || (e.Success != nil && !*e.Success)
}

// StoredResult is the last measurement rendered into a target.
type StoredResult struct {
	Target    string
	Counts    string // JSON object, wire order
	Shots     int
	UpdatedAt time.Time
}
