// Package services contains server-side business logic: credential
// verification, the login handshake and the user-management operations.
// Every management operation takes the requesting identity explicitly and
// consults the authorization policy before touching the store.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/mail"
	"time"
	"unicode"

	"github.com/dmitrijs2005/gatekeeper/internal/common"
	"github.com/dmitrijs2005/gatekeeper/internal/dbx"
	"github.com/dmitrijs2005/gatekeeper/internal/logging"
	"github.com/dmitrijs2005/gatekeeper/internal/server/auth"
	"github.com/dmitrijs2005/gatekeeper/internal/server/authz"
	"github.com/dmitrijs2005/gatekeeper/internal/server/models"
	"github.com/dmitrijs2005/gatekeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/gatekeeper/internal/server/repositories/users"
	"github.com/google/uuid"
	"github.com/thejerf/abtime"
)

const maxLoginNameLength = 64

// NewUser is the input of Create.
type NewUser struct {
	LoginName    string
	Password     string
	DisplayName  string
	ContactEmail string
	AvatarID     *string
}

// UserRef selects a record by id or, when ID is empty, by login name.
type UserRef struct {
	ID        string
	LoginName string
}

func (r UserRef) empty() bool { return r.ID == "" && r.LoginName == "" }

// EditUser is the admin edit payload. Login name, password and roles are
// never taken from it.
type EditUser struct {
	DisplayName  string
	ContactEmail string
	AvatarID     *string
}

// UserService implements the user-management operations.
type UserService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	hasher      *auth.PasswordHasher
	clock       abtime.AbstractTime
	logger      logging.Logger
}

func NewUserService(db *sql.DB, m repomanager.RepositoryManager, h *auth.PasswordHasher,
	clock abtime.AbstractTime, l logging.Logger) *UserService {
	return &UserService{db: db, repomanager: m, hasher: h, clock: clock, logger: l}
}

// now is truncated to the precision Postgres keeps.
func (s *UserService) now() time.Time {
	return s.clock.Now().UTC().Truncate(time.Microsecond)
}

func (s *UserService) inTx(ctx context.Context, fn func(ctx context.Context, repo users.Repository) error) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return fn(ctx, s.repomanager.Users(tx))
	})
}

// Info returns the caller's own record.
func (s *UserService) Info(ctx context.Context, who *models.Identity) (*models.User, error) {
	if err := authz.Authorize(authz.OpReadOwnInfo, who, ""); err != nil {
		return nil, err
	}
	return s.repomanager.Users(s.db).GetByID(ctx, who.UserID)
}

// Create adds a user with the default role set.
func (s *UserService) Create(ctx context.Context, who *models.Identity, in NewUser) (*models.User, error) {
	if err := authz.Authorize(authz.OpAddUser, who, ""); err != nil {
		return nil, err
	}

	u, err := s.create(ctx, in, []string{models.RoleUser})
	if err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "user created", "login_name", u.LoginName, "by", who.LoginName)
	return u, nil
}

func (s *UserService) create(ctx context.Context, in NewUser, roles []string) (*models.User, error) {
	loginName := models.NormalizeLoginName(in.LoginName)
	if err := validateLoginName(loginName); err != nil {
		return nil, err
	}
	email, err := validateEmail(in.ContactEmail)
	if err != nil {
		return nil, err
	}
	if in.AvatarID != nil {
		if _, err := uuid.Parse(*in.AvatarID); err != nil {
			return nil, fmt.Errorf("%w: avatarId must be a uuid", common.ErrorValidation)
		}
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}

	now := s.now()
	rec := &models.User{
		LoginName:      loginName,
		PasswordHash:   hash,
		DisplayName:    in.DisplayName,
		ContactEmail:   email,
		Roles:          models.RoleSet(roles...),
		CreatedAt:      now,
		LastModifiedAt: now,
		AvatarID:       in.AvatarID,
	}

	var saved *models.User
	err = s.inTx(ctx, func(ctx context.Context, repo users.Repository) error {
		_, err := repo.FindByLoginName(ctx, loginName)
		switch {
		case err == nil:
			return fmt.Errorf("%w: login name %q already exists", common.ErrorConflict, loginName)
		case !errors.Is(err, common.ErrorNotFound):
			return err
		}

		// the unique constraints still decide races between concurrent creates
		saved, err = repo.Save(ctx, rec)
		return err
	})
	if err != nil {
		return nil, err
	}
	return saved, nil
}

// Ban marks the user banned. bannedAt records the first transition; banning
// an already banned user only advances lastModifiedAt.
func (s *UserService) Ban(ctx context.Context, who *models.Identity, ref UserRef) (*models.User, error) {
	return s.setBanned(ctx, who, ref, true)
}

// Unban clears the ban flag and bannedAt.
func (s *UserService) Unban(ctx context.Context, who *models.Identity, ref UserRef) (*models.User, error) {
	return s.setBanned(ctx, who, ref, false)
}

func (s *UserService) setBanned(ctx context.Context, who *models.Identity, ref UserRef, banned bool) (*models.User, error) {
	op := authz.OpUnbanUser
	if banned {
		op = authz.OpBanUser
	}
	if err := authz.Authorize(op, who, ""); err != nil {
		return nil, err
	}

	var out *models.User
	err := s.inTx(ctx, func(ctx context.Context, repo users.Repository) error {
		u, err := resolve(ctx, repo, ref)
		if err != nil {
			return err
		}

		now := s.now()
		var bannedAt *time.Time
		if banned {
			bannedAt = &now
			if u.Banned && u.BannedAt != nil {
				bannedAt = u.BannedAt
			}
		}

		if err := repo.SetBanned(ctx, u.ID, banned, bannedAt, now); err != nil {
			return err
		}
		out, err = repo.GetByID(ctx, u.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "ban state changed", "login_name", out.LoginName, "banned", banned, "by", who.LoginName)
	return out, nil
}

// UpdateProfile overwrites only the supplied fields of the target record.
// An empty ref targets the caller. Only the owner or an admin may do this.
func (s *UserService) UpdateProfile(ctx context.Context, who *models.Identity, ref UserRef, upd models.ProfileUpdate) (*models.User, error) {
	if ref.empty() && who != nil {
		ref.ID = who.UserID
	}
	if err := authz.Authorize(authz.OpUpdateProfile, who, claimedTargetID(who, ref)); err != nil {
		return nil, err
	}
	if upd.Empty() {
		return nil, fmt.Errorf("%w: nothing to update", common.ErrorValidation)
	}

	if upd.ContactEmail != nil {
		email, err := validateEmail(*upd.ContactEmail)
		if err != nil {
			return nil, err
		}
		if email == "" {
			return nil, fmt.Errorf("%w: contactEmail must not be empty", common.ErrorValidation)
		}
		upd.ContactEmail = &email
	}
	if upd.AvatarID != nil {
		if _, err := uuid.Parse(*upd.AvatarID); err != nil {
			return nil, fmt.Errorf("%w: avatarId must be a uuid", common.ErrorValidation)
		}
	}

	var out *models.User
	err := s.inTx(ctx, func(ctx context.Context, repo users.Repository) error {
		u, err := resolve(ctx, repo, ref)
		if err != nil {
			return err
		}
		if err := repo.UpdateProfile(ctx, u.ID, upd, s.now()); err != nil {
			return err
		}
		out, err = repo.GetByID(ctx, u.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// EditUser replaces the editable fields of a record. Login name, password
// hash, roles and ban state are kept from the stored record.
func (s *UserService) EditUser(ctx context.Context, who *models.Identity, id string, in EditUser) (*models.User, error) {
	if err := authz.Authorize(authz.OpEditUser, who, id); err != nil {
		return nil, err
	}
	email, err := validateEmail(in.ContactEmail)
	if err != nil {
		return nil, err
	}
	if in.AvatarID != nil {
		if _, err := uuid.Parse(*in.AvatarID); err != nil {
			return nil, fmt.Errorf("%w: avatarId must be a uuid", common.ErrorValidation)
		}
	}

	var out *models.User
	err = s.inTx(ctx, func(ctx context.Context, repo users.Repository) error {
		u, err := resolve(ctx, repo, UserRef{ID: id})
		if err != nil {
			return err
		}
		u.DisplayName = in.DisplayName
		u.ContactEmail = email
		u.AvatarID = in.AvatarID
		u.LastModifiedAt = s.now()

		out, err = repo.Save(ctx, u)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "user edited", "login_name", out.LoginName, "by", who.LoginName)
	return out, nil
}

// ChangePassword replaces the target's password. Owners must prove the
// current password; admins changing somebody else's password need not.
func (s *UserService) ChangePassword(ctx context.Context, who *models.Identity, ref UserRef, current, next string) error {
	if ref.empty() && who != nil {
		ref.ID = who.UserID
	}
	if err := authz.Authorize(authz.OpChangePassword, who, claimedTargetID(who, ref)); err != nil {
		return err
	}

	hash, err := s.hasher.Hash(next)
	if err != nil {
		return err
	}

	err = s.inTx(ctx, func(ctx context.Context, repo users.Repository) error {
		u, err := resolve(ctx, repo, ref)
		if err != nil {
			return err
		}
		if u.ID == who.UserID {
			if err := s.hasher.Compare(u.PasswordHash, current); err != nil {
				return err
			}
		}
		return repo.UpdatePasswordHash(ctx, u.ID, hash, s.now())
	})
	if err != nil {
		return err
	}

	s.logger.Info(ctx, "password changed", "by", who.LoginName)
	return nil
}

// Delete always fails: records are kept for the audit trail.
func (s *UserService) Delete(ctx context.Context, who *models.Identity, ref UserRef) error {
	if err := authz.Authorize(authz.OpDeleteUser, who, ref.ID); err != nil {
		return err
	}
	return fmt.Errorf("%w: users cannot be deleted", common.ErrorUnsupported)
}

// List returns full records for the admin listing.
func (s *UserService) List(ctx context.Context, who *models.Identity, p models.Pagination) ([]*models.User, error) {
	if err := authz.Authorize(authz.OpAdminList, who, ""); err != nil {
		return nil, err
	}
	return s.repomanager.Users(s.db).FindAll(ctx, p)
}

// SimpleList returns records for the reduced listing any user may read.
func (s *UserService) SimpleList(ctx context.Context, who *models.Identity, p models.Pagination) ([]*models.User, error) {
	if err := authz.Authorize(authz.OpSimpleList, who, ""); err != nil {
		return nil, err
	}
	return s.repomanager.Users(s.db).FindAll(ctx, p)
}

// claimedTargetID maps a ref to the id used for the ownership check without
// touching the store, so non-owners learn nothing about other records.
func claimedTargetID(who *models.Identity, ref UserRef) string {
	if ref.ID != "" {
		return ref.ID
	}
	if who != nil && models.NormalizeLoginName(ref.LoginName) == who.LoginName {
		return who.UserID
	}
	return ""
}

func resolve(ctx context.Context, repo users.Repository, ref UserRef) (*models.User, error) {
	switch {
	case ref.ID != "":
		if _, err := uuid.Parse(ref.ID); err != nil {
			return nil, fmt.Errorf("%w: malformed user id", common.ErrorValidation)
		}
		return repo.GetByID(ctx, ref.ID)
	case ref.LoginName != "":
		return repo.FindByLoginName(ctx, models.NormalizeLoginName(ref.LoginName))
	default:
		return nil, fmt.Errorf("%w: user id or login name required", common.ErrorValidation)
	}
}

func validateLoginName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: loginName must not be empty", common.ErrorValidation)
	}
	if len(name) > maxLoginNameLength {
		return fmt.Errorf("%w: loginName longer than %d bytes", common.ErrorValidation, maxLoginNameLength)
	}
	for _, r := range name {
		if unicode.IsSpace(r) || unicode.IsControl(r) {
			return fmt.Errorf("%w: loginName must not contain whitespace", common.ErrorValidation)
		}
	}
	return nil
}

// validateEmail normalizes a non-empty address; empty input stays empty.
func validateEmail(s string) (string, error) {
	email := models.NormalizeEmail(s)
	if email == "" {
		return "", nil
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", fmt.Errorf("%w: malformed contactEmail", common.ErrorValidation)
	}
	return email, nil
}
