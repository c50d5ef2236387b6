package services

import (
	"context"

	"github.com/dmitrijs2005/gatekeeper/internal/common"
)

// GroupManager is the group and role-hierarchy extension point. Nothing in
// the login or user-management path depends on it.
type GroupManager interface {
	FindAllGroups(ctx context.Context) ([]string, error)
	FindUsersInGroup(ctx context.Context, group string) ([]string, error)
	CreateGroup(ctx context.Context, group string, roles []string) error
	DeleteGroup(ctx context.Context, group string) error
	RenameGroup(ctx context.Context, oldName, newName string) error
	AddUserToGroup(ctx context.Context, loginName, group string) error
	RemoveUserFromGroup(ctx context.Context, loginName, group string) error
	FindGroupRoles(ctx context.Context, group string) ([]string, error)
}

// UnimplementedGroupManager answers every call with common.ErrorNotImplemented.
type UnimplementedGroupManager struct{}

var _ GroupManager = UnimplementedGroupManager{}

func (UnimplementedGroupManager) FindAllGroups(context.Context) ([]string, error) {
	return nil, common.ErrorNotImplemented
}

func (UnimplementedGroupManager) FindUsersInGroup(context.Context, string) ([]string, error) {
	return nil, common.ErrorNotImplemented
}

func (UnimplementedGroupManager) CreateGroup(context.Context, string, []string) error {
	return common.ErrorNotImplemented
}

func (UnimplementedGroupManager) DeleteGroup(context.Context, string) error {
	return common.ErrorNotImplemented
}

func (UnimplementedGroupManager) RenameGroup(context.Context, string, string) error {
	return common.ErrorNotImplemented
}

func (UnimplementedGroupManager) AddUserToGroup(context.Context, string, string) error {
	return common.ErrorNotImplemented
}

func (UnimplementedGroupManager) RemoveUserFromGroup(context.Context, string, string) error {
	return common.ErrorNotImplemented
}

func (UnimplementedGroupManager) FindGroupRoles(context.Context, string) ([]string, error) {
	return nil, common.ErrorNotImplemented
}
