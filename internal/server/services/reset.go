package services

import (
	"context"

	"github.com/dmitrijs2005/gatekeeper/internal/server/models"
	"github.com/dmitrijs2005/gatekeeper/internal/server/repositories/users"
)

// ResetPassword sets a new password without any session or authorization
// check. It backs the operator tool that rotates the seed accounts and must
// not be reachable over HTTP.
func (s *UserService) ResetPassword(ctx context.Context, loginName, password string) error {
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return err
	}

	err = s.inTx(ctx, func(ctx context.Context, repo users.Repository) error {
		u, err := repo.FindByLoginName(ctx, models.NormalizeLoginName(loginName))
		if err != nil {
			return err
		}
		return repo.UpdatePasswordHash(ctx, u.ID, hash, s.now())
	})
	if err != nil {
		return err
	}

	s.logger.Warn(ctx, "password reset by operator", "login_name", loginName)
	return nil
}
