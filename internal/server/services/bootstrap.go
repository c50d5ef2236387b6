package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/gatekeeper/internal/common"
	"github.com/dmitrijs2005/gatekeeper/internal/server/models"
	"github.com/google/uuid"
)

// Seed account login names.
const (
	SeedUserLogin  = "user"
	SeedAdminLogin = "admin"
)

// SeedPasswords are the initial passwords of the two seed accounts.
type SeedPasswords struct {
	User  string
	Admin string
}

func seedAccounts(p SeedPasswords) []struct {
	in    NewUser
	roles []string
} {
	avatar := func() *string { a := uuid.NewString(); return &a }
	return []struct {
		in    NewUser
		roles []string
	}{
		{NewUser{LoginName: SeedUserLogin, Password: p.User, DisplayName: "Otto Normal",
			ContactEmail: "user@mindscan.local", AvatarID: avatar()}, []string{models.RoleUser}},
		{NewUser{LoginName: SeedAdminLogin, Password: p.Admin, DisplayName: "Super Power",
			ContactEmail: "admin@mindscan.local", AvatarID: avatar()}, []string{models.RoleUser, models.RoleAdmin}},
	}
}

// Bootstrap seeds a non-privileged and an administrator account when the
// store is empty. It reports whether it created them. Run it before the
// server accepts requests.
func (s *UserService) Bootstrap(ctx context.Context, p SeedPasswords) (bool, error) {
	n, err := s.repomanager.Users(s.db).Count(ctx)
	if err != nil {
		return false, fmt.Errorf("error counting users: %w", err)
	}
	if n > 0 {
		return false, nil
	}

	for _, seed := range seedAccounts(p) {
		if _, err := s.create(ctx, seed.in, seed.roles); err != nil {
			// another instance seeded the same store first
			if errors.Is(err, common.ErrorConflict) {
				return false, nil
			}
			return false, fmt.Errorf("error seeding %q: %w", seed.in.LoginName, err)
		}
	}

	s.logger.Info(ctx, "seed accounts created", "accounts", []string{SeedUserLogin, SeedAdminLogin})
	return true, nil
}
