// Package rbac implements the cross-cutting access engine from
// spec.md §4.B.9: Principal/Resource/Permission/Role/RoleBinding
// models, a pluggable Store, and an Engine that evaluates access
// decisions with audit trails. Grounded on
// original_source/src/contextcore/rbac/{models,store}.py, and on the
// teacher's internal/api/auth.go for the Go shape of an allow/deny
// decision carrying an audit trace id.
package rbac

import (
	"fmt"
	"time"
)

// PrincipalType classifies the subject of an access request.
type PrincipalType string

const (
	PrincipalAgent          PrincipalType = "agent"
	PrincipalUser           PrincipalType = "user"
	PrincipalTeam           PrincipalType = "team"
	PrincipalServiceAccount PrincipalType = "service_account"
)

// ResourceType classifies the protected entity an access request targets.
type ResourceType string

const (
	ResourceKnowledgeCategory   ResourceType = "knowledge_category"
	ResourceKnowledgeCapability ResourceType = "knowledge_capability"
	ResourceProject             ResourceType = "project"
	ResourceInsight              ResourceType = "insight"
	ResourceHandoff              ResourceType = "handoff"
	ResourceGuidance             ResourceType = "guidance"
	ResourceTask                 ResourceType = "task"
)

// Action is an operation a Permission can grant on a Resource.
type Action string

const (
	ActionRead     Action = "read"
	ActionWrite    Action = "write"
	ActionDelete   Action = "delete"
	ActionQuery    Action = "query"
	ActionEmit     Action = "emit"
	ActionDelegate Action = "delegate"
)

// Decision is the outcome of an access evaluation.
type Decision string

const (
	DecisionAllow         Decision = "allow"
	DecisionDeny          Decision = "deny"
	DecisionNotApplicable Decision = "not_applicable"
)

// Principal is an identity that can be granted permissions: an AI
// agent, a human user or team, or a Kubernetes service account.
type Principal struct {
	ID            string
	PrincipalType PrincipalType
	DisplayName   string
	Metadata      map[string]any

	AgentID   string
	SessionID string

	Email  string
	Groups []string

	Namespace string
}

// Resource is a protected entity, optionally scoped to a project and
// optionally marked sensitive.
type Resource struct {
	ResourceType ResourceType
	ResourceID   string // or "*" for all
	ProjectScope string

	Sensitive        bool
	SensitivityReason string
}

// Matches reports whether this resource (as declared on a Permission)
// covers other (the resource an access request targets): same type,
// wildcard or exact ID match, and a compatible project scope.
func (r Resource) Matches(other Resource) bool {
	if r.ResourceType != other.ResourceType {
		return false
	}
	if r.ResourceID == "*" {
		return true
	}
	if r.ResourceID != other.ResourceID {
		return false
	}
	if r.ProjectScope != "" && other.ProjectScope != "" && r.ProjectScope != other.ProjectScope {
		return false
	}
	return true
}

// Permission grants a set of Actions on a Resource, with an optional
// expiry.
type Permission struct {
	ID         string
	Resource   Resource
	Actions    []Action
	Conditions map[string]any

	ExpiresAt *time.Time

	GrantedBy string
	GrantedAt time.Time
	Reason    string
}

func (p Permission) IsExpired(now time.Time) bool {
	return p.ExpiresAt != nil && now.After(*p.ExpiresAt)
}

func (p Permission) hasAction(action Action) bool {
	for _, a := range p.Actions {
		if a == action {
			return true
		}
	}
	return false
}

// Allows reports whether this permission grants action on resource at
// the given evaluation time. The hard sensitivity rule: a permission
// whose own resource is not sensitive can never match a sensitive
// resource, regardless of ID/wildcard match.
func (p Permission) Allows(action Action, resource Resource, now time.Time) bool {
	if p.IsExpired(now) {
		return false
	}
	if !p.hasAction(action) {
		return false
	}
	if resource.Sensitive && !p.Resource.Sensitive {
		return false
	}
	return p.Resource.Matches(resource)
}

// Role is a named, inheritable collection of permissions.
type Role struct {
	ID          string
	Name        string
	Description string
	Permissions []Permission

	InheritsFrom []string

	AssignableTo []PrincipalType

	BuiltIn bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// RoleBinding assigns a Role to a Principal within an optional scope.
type RoleBinding struct {
	ID            string
	PrincipalID   string
	PrincipalType PrincipalType
	RoleID        string

	ProjectScope   string
	NamespaceScope string

	CreatedBy string
	CreatedAt time.Time
	ExpiresAt *time.Time
}

func (b RoleBinding) IsExpired(now time.Time) bool {
	return b.ExpiresAt != nil && now.After(*b.ExpiresAt)
}

// AccessDecision is the audited result of one access evaluation.
type AccessDecision struct {
	Decision Decision
	PrincipalID string
	Resource    Resource
	Action      Action

	MatchedRole       string
	MatchedPermission string
	DenialReason      string

	EvaluatedAt time.Time
	TraceID     string
}

// AccessDeniedError is returned (not panicked) by callers that want
// hard enforcement on a deny/not_applicable decision; it carries the
// full AccessDecision for logging.
type AccessDeniedError struct {
	Decision AccessDecision
}

func (e *AccessDeniedError) Error() string {
	reason := e.Decision.DenialReason
	if reason == "" {
		reason = "insufficient permissions"
	}
	return fmt.Sprintf("access denied: %s", reason)
}
