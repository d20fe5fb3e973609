// Package identity classifies a signed-in principal as a citizen or an
// administrator.
package identity

import (
	"context"

	"civicvoice/internal/auth"
	"civicvoice/internal/logging"
	"civicvoice/internal/rbac"

	"go.uber.org/zap"
)

// Registry answers whether an administrator registration exists for a principal id.
type Registry interface {
	IsAdministrator(ctx context.Context, principalID string) (bool, error)
}

type Resolver struct {
	registry Registry
	logger   *zap.Logger
}

func NewResolver(registry Registry, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{registry: registry, logger: logger}
}

// Resolve never escalates on doubt: anonymous principals, empty principals and
// failed lookups all resolve to citizen. Results are not cached.
func (r *Resolver) Resolve(ctx context.Context, principal auth.Principal) rbac.Role {
	if !principal.Authenticated() || principal.Anonymous || r.registry == nil {
		return rbac.RoleCitizen
	}
	isAdmin, err := r.registry.IsAdministrator(ctx, principal.ID)
	if err != nil {
		logging.FromContext(ctx, r.logger).Warn("administrator lookup failed; resolving as citizen",
			zap.String("principal_id", principal.ID),
			zap.Error(err),
		)
		return rbac.RoleCitizen
	}
	if isAdmin {
		return rbac.RoleAdministrator
	}
	return rbac.RoleCitizen
}
