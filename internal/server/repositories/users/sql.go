package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/dmitrijs2005/gatekeeper/internal/common"
	"github.com/dmitrijs2005/gatekeeper/internal/dbx"
	"github.com/dmitrijs2005/gatekeeper/internal/server/models"
	"github.com/google/uuid"
)

// Queries are written with Postgres placeholders, each $N used once and in
// ascending order, so they can be rebound to "?" for SQLite.
const (
	userColumns = `id, login_name, password_hash, display_name, contact_email, banned, banned_at, created_at, last_modified_at, avatar_id`

	insertUserQuery = `INSERT INTO users (` + userColumns + `)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	insertRoleQuery = `INSERT INTO user_roles (user_id, role) VALUES ($1, $2)`

	updateUserQuery = `UPDATE users SET password_hash = $1, display_name = $2, contact_email = $3,
		 banned = $4, banned_at = $5, last_modified_at = $6, avatar_id = $7
		 WHERE id = $8`

	selectByIDQuery = `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	selectByLoginQuery = `SELECT ` + userColumns + ` FROM users WHERE login_name = $1`

	selectRolesQuery = `SELECT role FROM user_roles WHERE user_id = $1 ORDER BY role`

	countQuery = `SELECT COUNT(*) FROM users`

	selectPageQuery = `SELECT ` + userColumns + ` FROM users ORDER BY created_at, id LIMIT $1 OFFSET $2`

	selectPageRolesQuery = `SELECT user_id, role FROM user_roles
		 WHERE user_id IN (SELECT id FROM users ORDER BY created_at, id LIMIT $1 OFFSET $2)
		 ORDER BY user_id, role`

	updateProfileQuery = `UPDATE users SET display_name = COALESCE($1, display_name),
		 contact_email = COALESCE($2, contact_email), avatar_id = COALESCE($3, avatar_id),
		 last_modified_at = $4
		 WHERE id = $5`

	setBannedQuery = `UPDATE users SET banned = $1, banned_at = $2, last_modified_at = $3 WHERE id = $4`

	updatePasswordQuery = `UPDATE users SET password_hash = $1, last_modified_at = $2 WHERE id = $3`
)

var placeholderRe = regexp.MustCompile(`\$\d+`)

func questionMarks(q string) string {
	return placeholderRe.ReplaceAllString(q, "?")
}

// sqlRepository is the dialect-neutral implementation behind the Postgres and
// SQLite repositories.
type sqlRepository struct {
	db     dbx.DBTX
	rebind func(string) string
}

func (r *sqlRepository) q(query string) string {
	if r.rebind == nil {
		return query
	}
	return r.rebind(query)
}

func wrapErr(err error) error {
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return common.ErrorNotFound
	case dbx.IsUniqueViolation(err):
		return fmt.Errorf("%w: %v", common.ErrorConflict, err)
	default:
		return fmt.Errorf("db error: %w", err)
	}
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullable[T any](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}

func utc(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*models.User, error) {
	var (
		u        models.User
		email    sql.NullString
		bannedAt sql.NullTime
		avatar   sql.NullString
	)

	err := row.Scan(&u.ID, &u.LoginName, &u.PasswordHash, &u.DisplayName, &email,
		&u.Banned, &bannedAt, &u.CreatedAt, &u.LastModifiedAt, &avatar)
	if err != nil {
		return nil, err
	}

	u.ContactEmail = email.String
	if bannedAt.Valid {
		t := bannedAt.Time
		u.BannedAt = &t
	}
	if avatar.Valid {
		a := avatar.String
		u.AvatarID = &a
	}
	return &u, nil
}

func (r *sqlRepository) Save(ctx context.Context, u *models.User) (*models.User, error) {
	if u.ID == "" {
		return r.insert(ctx, u)
	}
	return r.update(ctx, u)
}

func (r *sqlRepository) insert(ctx context.Context, u *models.User) (*models.User, error) {
	rec := *u
	rec.ID = uuid.NewString()
	rec.Roles = models.RoleSet(u.Roles...)

	_, err := r.db.ExecContext(ctx, r.q(insertUserQuery),
		rec.ID, rec.LoginName, rec.PasswordHash, rec.DisplayName, nullIfEmpty(rec.ContactEmail),
		rec.Banned, utc(rec.BannedAt), rec.CreatedAt.UTC(), rec.LastModifiedAt.UTC(), nullable(rec.AvatarID))
	if err != nil {
		return nil, wrapErr(err)
	}

	for _, role := range rec.Roles {
		if _, err := r.db.ExecContext(ctx, r.q(insertRoleQuery), rec.ID, role); err != nil {
			return nil, wrapErr(err)
		}
	}

	return &rec, nil
}

func (r *sqlRepository) update(ctx context.Context, u *models.User) (*models.User, error) {
	res, err := r.db.ExecContext(ctx, r.q(updateUserQuery),
		u.PasswordHash, u.DisplayName, nullIfEmpty(u.ContactEmail),
		u.Banned, utc(u.BannedAt), u.LastModifiedAt.UTC(), nullable(u.AvatarID), u.ID)
	if err != nil {
		return nil, wrapErr(err)
	}
	if err := requireAffected(res); err != nil {
		return nil, err
	}
	return r.GetByID(ctx, u.ID)
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func (r *sqlRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	return r.getOne(ctx, selectByIDQuery, id)
}

func (r *sqlRepository) FindByLoginName(ctx context.Context, loginName string) (*models.User, error) {
	return r.getOne(ctx, selectByLoginQuery, loginName)
}

func (r *sqlRepository) getOne(ctx context.Context, query string, arg string) (*models.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx, r.q(query), arg))
	if err != nil {
		return nil, wrapErr(err)
	}

	rows, err := r.db.QueryContext(ctx, r.q(selectRolesQuery), u.ID)
	if err != nil {
		return nil, wrapErr(err)
	}
	defer rows.Close()

	u.Roles = []string{}
	for rows.Next() {
		var role string
		if err := rows.Scan(&role); err != nil {
			return nil, wrapErr(err)
		}
		u.Roles = append(u.Roles, role)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr(err)
	}
	return u, nil
}

func (r *sqlRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.QueryRowContext(ctx, countQuery).Scan(&n); err != nil {
		return 0, wrapErr(err)
	}
	return n, nil
}

func (r *sqlRepository) FindAll(ctx context.Context, p models.Pagination) ([]*models.User, error) {
	p = p.Normalized()

	rows, err := r.db.QueryContext(ctx, r.q(selectPageQuery), p.Limit, p.Offset)
	if err != nil {
		return nil, wrapErr(err)
	}
	defer rows.Close()

	result := []*models.User{}
	byID := map[string]*models.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, wrapErr(err)
		}
		u.Roles = []string{}
		byID[u.ID] = u
		result = append(result, u)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr(err)
	}
	if len(result) == 0 {
		return result, nil
	}

	roleRows, err := r.db.QueryContext(ctx, r.q(selectPageRolesQuery), p.Limit, p.Offset)
	if err != nil {
		return nil, wrapErr(err)
	}
	defer roleRows.Close()

	for roleRows.Next() {
		var id, role string
		if err := roleRows.Scan(&id, &role); err != nil {
			return nil, wrapErr(err)
		}
		if u, ok := byID[id]; ok {
			u.Roles = append(u.Roles, role)
		}
	}
	if err := roleRows.Err(); err != nil {
		return nil, wrapErr(err)
	}

	return result, nil
}

func (r *sqlRepository) UpdateProfile(ctx context.Context, id string, upd models.ProfileUpdate, now time.Time) error {
	var email any
	if upd.ContactEmail != nil {
		email = nullIfEmpty(*upd.ContactEmail)
	}

	res, err := r.db.ExecContext(ctx, r.q(updateProfileQuery),
		nullable(upd.DisplayName), email, nullable(upd.AvatarID), now.UTC(), id)
	if err != nil {
		return wrapErr(err)
	}
	return requireAffected(res)
}

func (r *sqlRepository) SetBanned(ctx context.Context, id string, banned bool, bannedAt *time.Time, now time.Time) error {
	res, err := r.db.ExecContext(ctx, r.q(setBannedQuery), banned, utc(bannedAt), now.UTC(), id)
	if err != nil {
		return wrapErr(err)
	}
	return requireAffected(res)
}

func (r *sqlRepository) UpdatePasswordHash(ctx context.Context, id string, hash string, now time.Time) error {
	res, err := r.db.ExecContext(ctx, r.q(updatePasswordQuery), hash, now.UTC(), id)
	if err != nil {
		return wrapErr(err)
	}
	return requireAffected(res)
}
