package complaint

import (
	"testing"

	"civicvoice/internal/rbac"

	"github.com/stretchr/testify/assert"
)

func TestDeleteRule(t *testing.T) {
	for _, status := range Statuses {
		c := Complaint{ID: "cmp_1", OwnerID: "uid-a", Status: status}

		assert.True(t, CanDelete(rbac.RoleAdministrator, "uid-admin", c), "admin delete %s", status)
		assert.Equal(t, status == StatusPending, CanDelete(rbac.RoleCitizen, "uid-a", c), "owner delete %s", status)
		assert.False(t, CanDelete(rbac.RoleCitizen, "uid-b", c), "stranger delete %s", status)
	}
}

func TestDeleteRejectsEmptyPrincipalAgainstEmptyOwner(t *testing.T) {
	c := Complaint{ID: "cmp_1", Status: StatusPending}
	assert.False(t, CanDelete(rbac.RoleCitizen, "", c))
}

func TestReadRule(t *testing.T) {
	c := Complaint{ID: "cmp_1", OwnerID: "uid-a"}

	assert.True(t, CanRead(rbac.RoleAdministrator, "uid-admin", c))
	assert.True(t, CanRead(rbac.RoleCitizen, "uid-a", c))
	assert.False(t, CanRead(rbac.RoleCitizen, "uid-b", c))
}

func TestTransitionRequiresAdministrator(t *testing.T) {
	assert.True(t, CanTransition(rbac.RoleAdministrator))
	assert.False(t, CanTransition(rbac.RoleCitizen))
}

func TestScopeFor(t *testing.T) {
	assert.Equal(t, Scope{All: true}, ScopeFor(rbac.RoleAdministrator, "uid-admin"))
	assert.Equal(t, Scope{OwnerID: "uid-a"}, ScopeFor(rbac.RoleCitizen, "uid-a"))
	assert.False(t, ScopeFor(rbac.RoleCitizen, "").Contains(Complaint{OwnerID: ""}))
}
