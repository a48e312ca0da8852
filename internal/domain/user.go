package domain

import "time"

// User is the slice of a traveller's profile the gateway needs. Profiles are owned by
// the user service; the gateway only reads them at handshake.
type User struct {
	ID        string    `json:"_id" bson:"_id"`
	Name      string    `json:"name" bson:"name"`
	Email     string    `json:"email,omitempty" bson:"email,omitempty"`
	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
}

// Identity returns the immutable handshake identity for the user.
func (u *User) Identity() Identity {
	return Identity{
		UserID:      u.ID,
		DisplayName: u.Name,
	}
}

// Identity is the verified user behind a realtime connection. It is produced once at
// handshake and never mutated afterwards.
type Identity struct {
	UserID      string `json:"_id"`
	DisplayName string `json:"name"`
}

// IsZero reports whether the identity carries no user.
func (i Identity) IsZero() bool {
	return i.UserID == ""
}
