package rbac

import (
	"log/slog"
	"time"
)

// Engine evaluates access decisions per spec.md §4.B.9: resolve a
// principal's bindings (filtered by type/scope/not-expired), recursively
// collect roles via InheritsFrom, iterate permissions, and return the
// first allow match. Grounded on
// original_source/src/contextcore/rbac/store.py's get_roles_for_principal
// traversal plus models.py's Permission.allows sensitivity rule.
type Engine struct {
	store  Store
	logger *slog.Logger
	now    func() time.Time
}

func NewEngine(store Store, logger *slog.Logger) *Engine {
	return &Engine{store: store, logger: logger, now: time.Now}
}

// Check evaluates whether principal may perform action on resource,
// returning an audited AccessDecision. traceID correlates the
// decision with an OTel span for downstream logging.
func (e *Engine) Check(principal Principal, action Action, resource Resource, traceID string) AccessDecision {
	now := e.now()
	decision := AccessDecision{
		PrincipalID: principal.ID,
		Resource:    resource,
		Action:      action,
		EvaluatedAt: now,
		TraceID:     traceID,
	}

	roles, err := RolesForPrincipal(e.store, principal.ID, principal.PrincipalType, resource.ProjectScope, now)
	if err != nil {
		decision.Decision = DecisionNotApplicable
		decision.DenialReason = "error resolving principal roles: " + err.Error()
		e.log(decision)
		return decision
	}

	if len(roles) == 0 {
		decision.Decision = DecisionDeny
		decision.DenialReason = "principal has no role bindings"
		e.log(decision)
		return decision
	}

	for _, role := range roles {
		for _, perm := range role.Permissions {
			if perm.Allows(action, resource, now) {
				decision.Decision = DecisionAllow
				decision.MatchedRole = role.ID
				decision.MatchedPermission = perm.ID
				e.log(decision)
				return decision
			}
		}
	}

	decision.Decision = DecisionDeny
	if resource.Sensitive {
		decision.DenialReason = "resource is sensitive and no matching permission grants sensitive access"
	} else {
		decision.DenialReason = "no permission among principal's roles grants this action on this resource"
	}
	e.log(decision)
	return decision
}

// Require is Check's hard-enforcement variant: it returns an
// *AccessDeniedError on any non-allow decision, for callers that want
// to short-circuit rather than branch on AccessDecision.Decision.
func (e *Engine) Require(principal Principal, action Action, resource Resource, traceID string) (AccessDecision, error) {
	decision := e.Check(principal, action, resource, traceID)
	if decision.Decision != DecisionAllow {
		return decision, &AccessDeniedError{Decision: decision}
	}
	return decision, nil
}

func (e *Engine) log(d AccessDecision) {
	if e.logger == nil {
		return
	}
	if d.Decision == DecisionAllow {
		e.logger.Debug("rbac decision", "decision", d.Decision, "principal", d.PrincipalID,
			"action", d.Action, "resource_type", d.Resource.ResourceType, "resource_id", d.Resource.ResourceID,
			"matched_role", d.MatchedRole, "matched_permission", d.MatchedPermission, "trace_id", d.TraceID)
		return
	}
	e.logger.Info("rbac decision", "decision", d.Decision, "principal", d.PrincipalID,
		"action", d.Action, "resource_type", d.Resource.ResourceType, "resource_id", d.Resource.ResourceID,
		"denial_reason", d.DenialReason, "trace_id", d.TraceID)
}
