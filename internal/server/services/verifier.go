package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/gatekeeper/internal/common"
	"github.com/dmitrijs2005/gatekeeper/internal/server/auth"
	"github.com/dmitrijs2005/gatekeeper/internal/server/models"
	"github.com/dmitrijs2005/gatekeeper/internal/server/repositories/repomanager"
)

// CredentialVerifier checks a login name and password against the stored
// bcrypt hash. It has no side effects.
type CredentialVerifier struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	hasher      *auth.PasswordHasher
}

func NewCredentialVerifier(db *sql.DB, m repomanager.RepositoryManager, h *auth.PasswordHasher) *CredentialVerifier {
	return &CredentialVerifier{db: db, repomanager: m, hasher: h}
}

// Verify returns the matching record. Unknown login names, wrong passwords
// and banned accounts all yield common.ErrorAuthenticationFailed after one
// bcrypt comparison, so callers cannot tell them apart.
func (v *CredentialVerifier) Verify(ctx context.Context, loginName, password string) (*models.User, error) {
	repo := v.repomanager.Users(v.db)

	user, err := repo.FindByLoginName(ctx, models.NormalizeLoginName(loginName))
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, v.hasher.CompareDummy(password)
		}
		return nil, fmt.Errorf("error looking up user: %w", err)
	}

	if err := v.hasher.Compare(user.PasswordHash, password); err != nil {
		return nil, err
	}
	if user.Banned {
		return nil, common.ErrorAuthenticationFailed
	}

	return user, nil
}
