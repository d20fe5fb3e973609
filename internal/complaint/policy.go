package complaint

import "civicvoice/internal/rbac"

// CanRead: administrators read everything, citizens only what they own.
func CanRead(role rbac.Role, principalID string, c Complaint) bool {
	if rbac.Can(role, rbac.ActionComplaintReadAll) {
		return true
	}
	return principalID != "" && principalID == c.OwnerID && rbac.Can(role, rbac.ActionComplaintReadOwn)
}

func CanTransition(role rbac.Role) bool {
	return rbac.Can(role, rbac.ActionComplaintTransition)
}

// CanDelete: administrators delete in any status; the owner only while Pending.
func CanDelete(role rbac.Role, principalID string, c Complaint) bool {
	if rbac.Can(role, rbac.ActionComplaintDeleteAny) {
		return true
	}
	return principalID != "" &&
		principalID == c.OwnerID &&
		c.Status == StatusPending &&
		rbac.Can(role, rbac.ActionComplaintDeleteOwn)
}

// Scope is the listing boundary applied before any filtering.
type Scope struct {
	All     bool
	OwnerID string
}

func ScopeFor(role rbac.Role, principalID string) Scope {
	if rbac.Can(role, rbac.ActionComplaintReadAll) {
		return Scope{All: true}
	}
	return Scope{OwnerID: principalID}
}

func (s Scope) Contains(c Complaint) bool {
	return s.All || (s.OwnerID != "" && c.OwnerID == s.OwnerID)
}
