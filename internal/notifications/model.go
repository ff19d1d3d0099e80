package notifications

import "time"

// Notification is an in-app message for one user.
type Notification struct {
	ID            string     `json:"notificationId"`
	UserID        string     `json:"userId"`
	ApplicationID string     `json:"applicationId"`
	Message       string     `json:"message"`
	FromStatus    string     `json:"fromStatus,omitempty"`
	ToStatus      string     `json:"toStatus,omitempty"`
	ReadAt        *time.Time `json:"readAt,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
}

// Read reports whether the notification has been marked read.
func (n Notification) Read() bool {
	return n.ReadAt != nil
}
