package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kilianp07/ttms/core/model"
)

func TestRolePermissions(t *testing.T) {
	tests := []struct {
		role  Role
		allow []Permission
		deny  []Permission
	}{
		{RoleViewer, []Permission{PermViewSchedules, PermViewTracking}, []Permission{PermUpdateTrainStatus, PermCreateSchedules}},
		{RoleOperator, []Permission{PermUpdateTrainStatus, PermCreateNotices}, []Permission{PermCreateSchedules, PermCancelTrains}},
		{RoleScheduler, []Permission{PermCreateSchedules, PermEditSchedules, PermCancelTrains}, []Permission{PermDeleteSchedules}},
		{RoleAdministrator, []Permission{PermDeleteSchedules, PermViewAuditLogs, PermCancelTrains}, nil},
		{Role("guest"), nil, []Permission{PermViewSchedules}},
	}
	for _, tt := range tests {
		set := RolePermissions(tt.role)
		for _, p := range tt.allow {
			assert.Truef(t, set.Has(p), "%s should have %s", tt.role, p)
		}
		for _, p := range tt.deny {
			assert.Falsef(t, set.Has(p), "%s should not have %s", tt.role, p)
		}
	}
}

func TestRolePermissionsDoNotAlias(t *testing.T) {
	op := RolePermissions(RoleOperator)
	assert.False(t, op.Has(PermCreateSchedules))
	assert.Len(t, RolePermissions(RoleViewer), 4)
}

func TestRequire(t *testing.T) {
	a := NewActor("u1", RoleOperator)
	assert.NoError(t, Require(a, PermUpdateTrainStatus))

	err := Require(a, PermCancelTrains)
	assert.True(t, model.IsPermissionDeniedError(err))
	assert.Contains(t, err.Error(), "cancel_trains")

	custom := Actor{ID: "svc", Permissions: NewPermissionSet(PermCancelTrains)}
	assert.NoError(t, Require(custom, PermCancelTrains))
	assert.Equal(t, []Permission{PermCancelTrains}, custom.Permissions.Sorted())
}
