package application

import (
	"context"

	repo "github.com/oksasatya/course-identity/internal/domain/repository"
	"github.com/oksasatya/course-identity/pkg/pii"
)

// PhoneDirectory answers "is this phone registered" through the phone blind index.
// It backs verification.UserLookup.
type PhoneDirectory struct {
	Users repo.UserRepository
	Vault *pii.Vault
}

func NewPhoneDirectory(users repo.UserRepository, vault *pii.Vault) *PhoneDirectory {
	return &PhoneDirectory{Users: users, Vault: vault}
}

func (d *PhoneDirectory) PhoneRegistered(ctx context.Context, normalizedPhone string) (bool, error) {
	idx, err := d.Vault.Index(pii.FieldPhone, normalizedPhone)
	if err != nil {
		return false, sealErr("index phone", err)
	}
	ok, err := d.Users.ExistsByPhoneIndex(ctx, idx)
	if err != nil {
		return false, storeErr("lookup phone", err)
	}
	return ok, nil
}
