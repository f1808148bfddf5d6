package ratelimit

import "time"

// Presets groups the bucket classes used by the auth flows and the
// generic read/write middleware. Values come from config at startup;
// DefaultPresets holds the shipped defaults.
type Presets struct {
	// Login throttles credential checks per normalized email.
	Login Options
	// Signup throttles account creation per email.
	Signup Options
	// Read throttles authenticated read operations per principal.
	Read Options
	// Write throttles authenticated write operations per principal.
	Write Options
}

// DefaultPresets returns the stock limits: login 5 points per 15
// minutes with a 15 minute block on exhaustion, signup 3 per hour
// with a 1 hour block, reads 100 per minute, writes 20 per minute.
func DefaultPresets() Presets {
	return Presets{
		Login: Options{
			Points:        5,
			Duration:      15 * time.Minute,
			BlockDuration: 15 * time.Minute,
		},
		Signup: Options{
			Points:        3,
			Duration:      time.Hour,
			BlockDuration: time.Hour,
		},
		Read:  Options{Points: 100, Duration: time.Minute},
		Write: Options{Points: 20, Duration: time.Minute},
	}
}
