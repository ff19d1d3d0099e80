package attorneys

import "time"

// Attorney is an external patent attorney applications can be assigned to.
type Attorney struct {
	ID        string    `json:"attorneyId"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone,omitempty"`
	Firm      string    `json:"firm,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}
