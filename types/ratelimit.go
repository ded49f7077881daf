package types

import "time"

// RateLimitEntry is one fixed window for a client identifier.
type RateLimitEntry struct {
	Identifier string    `json:"identifier"`
	Count      int       `json:"count"`
	ResetAt    time.Time `json:"resetAt"`
}

// RateLimitDecision is the outcome of a single admission check.
type RateLimitDecision struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}
