package services

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/gatekeeper/internal/common"
	"github.com/dmitrijs2005/gatekeeper/internal/dbx"
	"github.com/dmitrijs2005/gatekeeper/internal/logging"
	"github.com/dmitrijs2005/gatekeeper/internal/server/auth"
	"github.com/dmitrijs2005/gatekeeper/internal/server/models"
	usersrepo "github.com/dmitrijs2005/gatekeeper/internal/server/repositories/users"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/thejerf/abtime"
	"golang.org/x/crypto/bcrypt"

	_ "modernc.org/sqlite"
)

var epoch = time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)

// fakeUsersRepo is an in-memory users.Repository that enforces the unique
// constraints and counts lookups.
type fakeUsersRepo struct {
	mu      sync.Mutex
	byID    map[string]*models.User
	lookups int
	err     error
}

func newFakeUsersRepo() *fakeUsersRepo {
	return &fakeUsersRepo{byID: map[string]*models.User{}}
}

func clone(u *models.User) *models.User {
	c := *u
	c.Roles = append([]string{}, u.Roles...)
	return &c
}

func (f *fakeUsersRepo) conflicts(u *models.User) bool {
	for id, other := range f.byID {
		if id == u.ID {
			continue
		}
		if other.LoginName == u.LoginName || (u.ContactEmail != "" && other.ContactEmail == u.ContactEmail) {
			return true
		}
	}
	return false
}

func (f *fakeUsersRepo) Save(_ context.Context, u *models.User) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}

	rec := clone(u)
	if rec.ID == "" {
		rec.ID = uuid.NewString()
		rec.Roles = models.RoleSet(rec.Roles...)
	} else {
		old, ok := f.byID[rec.ID]
		if !ok {
			return nil, common.ErrorNotFound
		}
		rec.LoginName = old.LoginName
		rec.CreatedAt = old.CreatedAt
		rec.Roles = old.Roles
	}
	if f.conflicts(rec) {
		return nil, common.ErrorConflict
	}
	f.byID[rec.ID] = rec
	return clone(rec), nil
}

func (f *fakeUsersRepo) GetByID(_ context.Context, id string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lookups++
	if f.err != nil {
		return nil, f.err
	}
	u, ok := f.byID[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return clone(u), nil
}

func (f *fakeUsersRepo) FindByLoginName(_ context.Context, name string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lookups++
	if f.err != nil {
		return nil, f.err
	}
	for _, u := range f.byID {
		if u.LoginName == name {
			return clone(u), nil
		}
	}
	return nil, common.ErrorNotFound
}

func (f *fakeUsersRepo) Count(context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	return int64(len(f.byID)), nil
}

func (f *fakeUsersRepo) FindAll(_ context.Context, p models.Pagination) ([]*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p = p.Normalized()
	all := make([]*models.User, 0, len(f.byID))
	for _, u := range f.byID {
		all = append(all, clone(u))
	}
	sort.Slice(all, func(i, j int) bool { return all[i].LoginName < all[j].LoginName })
	if p.Offset >= len(all) {
		return []*models.User{}, nil
	}
	end := min(p.Offset+p.Limit, len(all))
	return all[p.Offset:end], nil
}

func (f *fakeUsersRepo) UpdateProfile(_ context.Context, id string, upd models.ProfileUpdate, now time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[id]
	if !ok {
		return common.ErrorNotFound
	}
	next := clone(u)
	if upd.DisplayName != nil {
		next.DisplayName = *upd.DisplayName
	}
	if upd.ContactEmail != nil {
		next.ContactEmail = *upd.ContactEmail
	}
	if upd.AvatarID != nil {
		next.AvatarID = upd.AvatarID
	}
	if f.conflicts(next) {
		return common.ErrorConflict
	}
	next.LastModifiedAt = now
	f.byID[id] = next
	return nil
}

func (f *fakeUsersRepo) SetBanned(_ context.Context, id string, banned bool, bannedAt *time.Time, now time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[id]
	if !ok {
		return common.ErrorNotFound
	}
	u.Banned = banned
	u.BannedAt = bannedAt
	u.LastModifiedAt = now
	return nil
}

func (f *fakeUsersRepo) UpdatePasswordHash(_ context.Context, id, hash string, now time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[id]
	if !ok {
		return common.ErrorNotFound
	}
	u.PasswordHash = hash
	u.LastModifiedAt = now
	return nil
}

type fakeRepoManager struct {
	u *fakeUsersRepo
}

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m *fakeRepoManager) Users(dbx.DBTX) usersrepo.Repository         { return m.u }

// newTxDB returns a real database so dbx.WithTx can begin and commit; the
// fake repository ignores the handle it is given.
func newTxDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func newHasher(t *testing.T) *auth.PasswordHasher {
	t.Helper()
	h, err := auth.NewPasswordHasher(bcrypt.MinCost)
	require.NoError(t, err)
	return h
}

type fixture struct {
	repo   *fakeUsersRepo
	clock  *abtime.ManualTime
	hasher *auth.PasswordHasher
	svc    *UserService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	repo := newFakeUsersRepo()
	clock := abtime.NewManualAtTime(epoch)
	h := newHasher(t)
	svc := NewUserService(newTxDB(t), &fakeRepoManager{u: repo}, h, clock, logging.Nop())
	return &fixture{repo: repo, clock: clock, hasher: h, svc: svc}
}

// seed stores a user directly and returns it with its identity.
func (f *fixture) seed(t *testing.T, login, password string, roles ...string) (*models.User, *models.Identity) {
	t.Helper()
	hash, err := f.hasher.Hash(password)
	require.NoError(t, err)
	u, err := f.repo.Save(context.Background(), &models.User{
		LoginName: login, PasswordHash: hash, DisplayName: login, ContactEmail: login + "@example.org",
		Roles: roles, CreatedAt: epoch, LastModifiedAt: epoch,
	})
	require.NoError(t, err)
	return u, models.IdentityOf(u)
}
