// Package authz decides which identities may run which user-management
// operations. The policy is a pure function of the operation, the
// requester and, for owner-scoped operations, the target record's id.
package authz

import (
	"fmt"

	"github.com/dmitrijs2005/gatekeeper/internal/common"
	"github.com/dmitrijs2005/gatekeeper/internal/server/models"
)

// Operation names a guarded action.
type Operation string

const (
	OpHello          Operation = "hello"
	OpReadOwnInfo    Operation = "read-own-info"
	OpLogout         Operation = "logout"
	OpAddUser        Operation = "add-user"
	OpBanUser        Operation = "ban-user"
	OpUnbanUser      Operation = "unban-user"
	OpEditUser       Operation = "edit-user"
	OpDeleteUser     Operation = "delete-user"
	OpUpdateProfile  Operation = "update-profile"
	OpChangePassword Operation = "change-password"
	OpAdminList      Operation = "admin-list"
	OpSimpleList     Operation = "simple-list"
)

type rule struct {
	anonymous    bool
	anyRoles     []string
	ownerOrAdmin bool
}

// rules lists what each operation requires. An empty rule means any
// authenticated identity.
var rules = map[Operation]rule{
	OpHello:          {anonymous: true},
	OpReadOwnInfo:    {},
	OpLogout:         {},
	OpAddUser:        {anyRoles: []string{models.RoleAdmin}},
	OpBanUser:        {anyRoles: []string{models.RoleAdmin}},
	OpUnbanUser:      {anyRoles: []string{models.RoleAdmin}},
	OpEditUser:       {anyRoles: []string{models.RoleAdmin}},
	OpDeleteUser:     {anyRoles: []string{models.RoleAdmin}},
	OpUpdateProfile:  {ownerOrAdmin: true},
	OpChangePassword: {ownerOrAdmin: true},
	OpAdminList:      {anyRoles: []string{models.RoleAdmin}},
	OpSimpleList:     {},
}

// Authorize returns nil when who may perform op on the record targetID.
// targetID only matters for owner-scoped operations. A nil identity on a
// non-anonymous operation yields common.ErrorUnauthorized, a denied one
// common.ErrorForbidden. Unknown operations are denied.
func Authorize(op Operation, who *models.Identity, targetID string) error {
	r, ok := rules[op]
	if !ok {
		return fmt.Errorf("%w: unknown operation %q", common.ErrorForbidden, op)
	}
	if r.anonymous {
		return nil
	}
	if who == nil {
		return common.ErrorUnauthorized
	}

	if len(r.anyRoles) > 0 && !HasAnyRole(who, r.anyRoles...) {
		return fmt.Errorf("%w: %s requires one of %v", common.ErrorForbidden, op, r.anyRoles)
	}
	if r.ownerOrAdmin && who.UserID != targetID && !who.HasRole(models.RoleAdmin) {
		return fmt.Errorf("%w: %s is restricted to the record owner", common.ErrorForbidden, op)
	}
	return nil
}

// HasAnyRole reports whether who holds at least one of roles.
func HasAnyRole(who *models.Identity, roles ...string) bool {
	for _, r := range roles {
		if who.HasRole(r) {
			return true
		}
	}
	return false
}
