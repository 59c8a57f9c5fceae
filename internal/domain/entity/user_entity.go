package entity

import (
	"time"

	"github.com/oksasatya/course-identity/pkg/pii"
)

// User is the aggregate root for the identity domain.
// Email, phone and the external provider id are only held sealed; searches go
// through the blind index half of each pii.Sealed.
type User struct {
	ID           string
	Email        pii.Sealed
	Phone        pii.Sealed
	ProviderID   pii.Sealed
	Provider     string
	FirstName    string
	LastName     string
	AvatarRef    string
	Role         Role
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (u *User) HasProvider() bool { return !u.ProviderID.IsZero() }

// HasPassword is false for accounts created through social login.
func (u *User) HasPassword() bool { return u.PasswordHash != "" }

// Profile is the decrypted, caller-facing view of a user.
type Profile struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone,omitempty"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	AvatarRef string    `json:"avatar_ref,omitempty"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
