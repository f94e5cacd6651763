package models

import "time"

type Account struct {
	ID             int32      `json:"id"`
	Username       string     `json:"username"`
	PasswordHash   string     `json:"-"`
	Balance        int32      `json:"balance"`
	LastCheckIn    *time.Time `json:"last_check_in,omitempty"`
	SpinsRemaining int32      `json:"spins_remaining"`
	NextSpinReset  *time.Time `json:"next_spin_reset,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

// SpinStatus is the reward state reported to a caller after the lazy
// reset has been applied.
type SpinStatus struct {
	SpinsRemaining int32     `json:"spins_remaining"`
	NextSpinReset  time.Time `json:"next_spin_reset"`
}
