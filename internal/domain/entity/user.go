package entity

import "time"

const (
	RoleAdmin   = "admin"
	RoleTrainer = "trainer"
)

// UserProfile is the read-only directory entry used to label conversation
// counterparts and to enumerate compose-recipient candidates.
type UserProfile struct {
	ID        string    `json:"id" firestore:"id"`
	FirstName string    `json:"first_name" firestore:"firstName"`
	LastName  string    `json:"last_name" firestore:"lastName"`
	Email     string    `json:"email" firestore:"email"`
	Role      string    `json:"role" firestore:"role"`
	CreatedAt time.Time `json:"created_at" firestore:"createdAt"`
}

func (u *UserProfile) DisplayName() string {
	if u.FirstName == "" {
		return u.LastName
	}
	if u.LastName == "" {
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}
