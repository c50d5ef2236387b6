package users

import (
	"context"
	"time"

	"github.com/dmitrijs2005/gatekeeper/internal/server/models"
)

// Repository persists user records. Implementations return
// common.ErrorNotFound for missing records and common.ErrorConflict when a
// login name or contact e-mail is already taken.
type Repository interface {
	// Save inserts u when u.ID is empty and updates it in place otherwise.
	// LoginName, CreatedAt and Roles are never changed by an update.
	Save(ctx context.Context, u *models.User) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
	FindByLoginName(ctx context.Context, loginName string) (*models.User, error)
	Count(ctx context.Context) (int64, error)
	FindAll(ctx context.Context, p models.Pagination) ([]*models.User, error)

	// Single-statement updates of one concern, so concurrent writers of
	// different fields do not overwrite each other.
	UpdateProfile(ctx context.Context, id string, upd models.ProfileUpdate, now time.Time) error
	SetBanned(ctx context.Context, id string, banned bool, bannedAt *time.Time, now time.Time) error
	UpdatePasswordHash(ctx context.Context, id string, hash string, now time.Time) error
}
