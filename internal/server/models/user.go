// Package models holds the server-side domain types shared by repositories,
// services and the HTTP layer.
package models

import (
	"slices"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
)

// Role tags granted to user records.
const (
	RoleUser  = "ROLE_USER"
	RoleAdmin = "ROLE_ADMIN"
)

// User is a persisted user record. LoginName and CreatedAt never change after
// creation; PasswordHash is a bcrypt hash and never leaves the server.
type User struct {
	ID             string
	LoginName      string
	PasswordHash   string
	DisplayName    string
	ContactEmail   string
	Roles          []string
	Banned         bool
	BannedAt       *time.Time
	CreatedAt      time.Time
	LastModifiedAt time.Time
	AvatarID       *string
}

// HasRole reports whether role is in the user's role set.
func (u *User) HasRole(role string) bool {
	return slices.Contains(u.Roles, role)
}

// Identity is the authenticated principal bound to a session.
type Identity struct {
	UserID    string
	LoginName string
	Roles     []string
}

func (i *Identity) HasRole(role string) bool {
	return i != nil && slices.Contains(i.Roles, role)
}

// IdentityOf builds the session identity for u.
func IdentityOf(u *User) *Identity {
	return &Identity{UserID: u.ID, LoginName: u.LoginName, Roles: RoleSet(u.Roles...)}
}

// RoleSet returns roles deduplicated and sorted, never nil.
func RoleSet(roles ...string) []string {
	out := make([]string, 0, len(roles))
	for _, r := range roles {
		if r != "" && !slices.Contains(out, r) {
			out = append(out, r)
		}
	}
	slices.Sort(out)
	return out
}

// NormalizeLoginName applies NFKC normalization and trims surrounding space,
// so visually identical names map to the same record.
func NormalizeLoginName(s string) string {
	return strings.TrimSpace(norm.NFKC.String(s))
}

// NormalizeEmail trims and lower-cases an e-mail address.
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Pagination selects a window of records ordered by creation time.
type Pagination struct {
	Offset int
	Limit  int
}

// DefaultPageLimit caps listings when no limit is given.
const DefaultPageLimit = 100

// Normalized clamps negative values and applies DefaultPageLimit.
func (p Pagination) Normalized() Pagination {
	if p.Offset < 0 {
		p.Offset = 0
	}
	if p.Limit <= 0 || p.Limit > DefaultPageLimit {
		p.Limit = DefaultPageLimit
	}
	return p
}

// ProfileUpdate carries a partial profile change. A nil field is left as is.
type ProfileUpdate struct {
	DisplayName  *string
	ContactEmail *string
	AvatarID     *string
}

// Empty reports whether no field was supplied.
func (p ProfileUpdate) Empty() bool {
	return p.DisplayName == nil && p.ContactEmail == nil && p.AvatarID == nil
}
