package domain

import "time"

// User is an account that belongs to a single organization.
type User struct {
	ID        string
	OrgID     string
	Email     string
	Name      string
	CreatedAt time.Time
}
