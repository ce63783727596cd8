package entity

import (
	"time"
)

type User struct {
	ID          string `json:"id" firestore:"id"`
	Email       string `json:"email" firestore:"email"`
	DisplayName string `json:"display_name" firestore:"displayName"`
	PhotoURL    string `json:"photo_url,omitempty" firestore:"photoURL,omitempty"`
	Bio         string `json:"bio,omitempty" firestore:"bio,omitempty"`
	Role        string `json:"role" firestore:"role"` // "fan", "creator", "admin"
	Status      string `json:"status" firestore:"status"`

	CreatedAt time.Time `json:"created_at" firestore:"createdAt"`
	UpdatedAt time.Time `json:"updated_at" firestore:"updatedAt"`
}

// Snapshot returns the small display record cached on conversations. The
// identity provider stays authoritative; this is presentation cache only.
func (u *User) Snapshot() ParticipantMeta {
	return ParticipantMeta{
		DisplayName: u.DisplayName,
		PhotoURL:    u.PhotoURL,
	}
}
