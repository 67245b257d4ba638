// Package auth carries the caller identity and its precomputed permission
// set. Authentication and user management live outside this service.
package auth

import (
	"sort"

	"github.com/kilianp07/ttms/core/model"
)

// Permission is a named capability checked before an operation runs.
type Permission string

const (
	PermViewSchedules     Permission = "view_schedules"
	PermViewTrains        Permission = "view_trains"
	PermViewTracking      Permission = "view_tracking"
	PermViewConflicts     Permission = "view_conflicts"
	PermUpdateTrainStatus Permission = "update_train_status"
	PermCreateNotices     Permission = "create_notifications"
	PermCreateSchedules   Permission = "create_schedules"
	PermEditSchedules     Permission = "edit_schedules"
	PermCancelTrains      Permission = "cancel_trains"
	PermResolveConflicts  Permission = "resolve_conflicts"
	PermDeleteSchedules   Permission = "delete_schedules"
	PermManageUsers       Permission = "manage_users"
	PermSystemConfig      Permission = "system_config"
	PermViewAuditLogs     Permission = "view_audit_logs"
)

// Role is a coarse user category mapped onto a permission set.
type Role string

const (
	RoleViewer        Role = "viewer"
	RoleOperator      Role = "operator"
	RoleScheduler     Role = "scheduler"
	RoleAdministrator Role = "administrator"
)

// PermissionSet is an unordered set of permissions.
type PermissionSet map[Permission]struct{}

// NewPermissionSet builds a set from the given permissions.
func NewPermissionSet(perms ...Permission) PermissionSet {
	s := make(PermissionSet, len(perms))
	for _, p := range perms {
		s[p] = struct{}{}
	}
	return s
}

// Has reports whether p is in the set.
func (s PermissionSet) Has(p Permission) bool {
	_, ok := s[p]
	return ok
}

// Sorted returns the permissions in lexical order.
func (s PermissionSet) Sorted() []Permission {
	out := make([]Permission, 0, len(s))
	for p := range s {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

var viewerPerms = []Permission{PermViewSchedules, PermViewTrains, PermViewTracking, PermViewConflicts}

var rolePerms = map[Role][]Permission{
	RoleViewer:   viewerPerms,
	RoleOperator: append(append([]Permission{}, viewerPerms...), PermUpdateTrainStatus, PermCreateNotices),
	RoleScheduler: append(append([]Permission{}, viewerPerms...),
		PermUpdateTrainStatus, PermCreateNotices,
		PermCreateSchedules, PermEditSchedules, PermCancelTrains, PermResolveConflicts),
	RoleAdministrator: append(append([]Permission{}, viewerPerms...),
		PermUpdateTrainStatus, PermCreateNotices,
		PermCreateSchedules, PermEditSchedules, PermCancelTrains, PermResolveConflicts,
		PermDeleteSchedules, PermManageUsers, PermSystemConfig, PermViewAuditLogs),
}

// RolePermissions returns the permission set granted to role. Unknown roles
// get an empty set.
func RolePermissions(role Role) PermissionSet {
	return NewPermissionSet(rolePerms[role]...)
}

// ValidRole reports whether r is one of the known roles.
func ValidRole(r Role) bool {
	_, ok := rolePerms[r]
	return ok
}

// Actor is the authenticated caller of an operation.
type Actor struct {
	ID          string
	Role        Role
	Permissions PermissionSet
}

// NewActor returns an actor carrying the permissions of role.
func NewActor(id string, role Role) Actor {
	return Actor{ID: id, Role: role, Permissions: RolePermissions(role)}
}

// Can reports whether the actor holds p.
func (a Actor) Can(p Permission) bool { return a.Permissions.Has(p) }

// Require returns a PermissionDeniedError when the actor lacks p.
func Require(a Actor, p Permission) error {
	if a.Can(p) {
		return nil
	}
	return model.PermissionDeniedError{ActorID: a.ID, Permission: string(p)}
}
