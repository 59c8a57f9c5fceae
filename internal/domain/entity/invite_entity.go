package entity

import (
	"time"

	"github.com/oksasatya/course-identity/pkg/pii"
)

// InviteStatus is derived at read time; only Used is stored.
type InviteStatus string

const (
	InvitePending InviteStatus = "PENDING"
	InviteUsed    InviteStatus = "USED"
	InviteExpired InviteStatus = "EXPIRED"
)

// Invite is a single-use capability to create an account at a fixed role.
// The plaintext secret is never stored, only its SHA-256 hash.
type Invite struct {
	ID        string
	Recipient pii.Sealed
	Role      Role
	TokenHash string
	ExpiresAt time.Time
	Used      bool
	IssuedBy  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (i *Invite) Expired(now time.Time) bool { return now.After(i.ExpiresAt) }

func (i *Invite) Status(now time.Time) InviteStatus {
	switch {
	case i.Used:
		return InviteUsed
	case i.Expired(now):
		return InviteExpired
	default:
		return InvitePending
	}
}

// InviteView is the listing shape with the recipient decrypted.
type InviteView struct {
	ID        string       `json:"id"`
	Email     string       `json:"email"`
	Role      Role         `json:"role"`
	Status    InviteStatus `json:"status"`
	ExpiresAt time.Time    `json:"expires_at"`
	IssuedBy  string       `json:"issued_by"`
	CreatedAt time.Time    `json:"created_at"`
}
