package rbac

import (
	"testing"
	"time"
)

func TestEngine_ReaderRoleDeniesSensitiveResource(t *testing.T) {
	store := NewMemoryStore()
	if err := store.SaveBinding(RoleBinding{
		ID: "claude-code-reader", PrincipalID: "claude-code",
		PrincipalType: PrincipalAgent, RoleID: builtInReaderRoleID, CreatedBy: "admin",
	}); err != nil {
		t.Fatalf("SaveBinding: %v", err)
	}

	engine := NewEngine(store, nil)
	principal := Principal{ID: "claude-code", PrincipalType: PrincipalAgent, DisplayName: "Claude Code"}
	sensitiveResource := Resource{ResourceType: ResourceKnowledgeCategory, ResourceID: "security", Sensitive: true}

	decision := engine.Check(principal, ActionRead, sensitiveResource, "trace-1")

	if decision.Decision != DecisionDeny {
		t.Fatalf("expected deny, got %q", decision.Decision)
	}
	if decision.DenialReason == "" {
		t.Fatal("expected a non-empty denial reason")
	}
}

func TestEngine_ReaderRoleAllowsNonSensitiveKnowledge(t *testing.T) {
	store := NewMemoryStore()
	_ = store.SaveBinding(RoleBinding{
		ID: "claude-code-reader", PrincipalID: "claude-code",
		PrincipalType: PrincipalAgent, RoleID: builtInReaderRoleID, CreatedBy: "admin",
	})

	engine := NewEngine(store, nil)
	principal := Principal{ID: "claude-code", PrincipalType: PrincipalAgent}
	resource := Resource{ResourceType: ResourceKnowledgeCategory, ResourceID: "architecture", Sensitive: false}

	decision := engine.Check(principal, ActionRead, resource, "trace-2")

	if decision.Decision != DecisionAllow {
		t.Fatalf("expected allow, got %q (%s)", decision.Decision, decision.DenialReason)
	}
	if decision.MatchedRole != builtInReaderRoleID {
		t.Fatalf("expected matched_role=%q, got %q", builtInReaderRoleID, decision.MatchedRole)
	}
}

func TestEngine_DeniesWithNoBindings(t *testing.T) {
	engine := NewEngine(NewMemoryStore(), nil)
	principal := Principal{ID: "nobody", PrincipalType: PrincipalUser}
	resource := Resource{ResourceType: ResourceProject, ResourceID: "*"}

	decision := engine.Check(principal, ActionRead, resource, "")

	if decision.Decision != DecisionDeny {
		t.Fatalf("expected deny, got %q", decision.Decision)
	}
}

func TestEngine_ExpiredBindingIsIgnored(t *testing.T) {
	store := NewMemoryStore()
	past := time.Now().Add(-time.Hour)
	_ = store.SaveBinding(RoleBinding{
		ID: "expired-binding", PrincipalID: "agent-x", PrincipalType: PrincipalAgent,
		RoleID: builtInReaderRoleID, CreatedBy: "admin", ExpiresAt: &past,
	})

	engine := NewEngine(store, nil)
	principal := Principal{ID: "agent-x", PrincipalType: PrincipalAgent}
	resource := Resource{ResourceType: ResourceKnowledgeCategory, ResourceID: "ops", Sensitive: false}

	decision := engine.Check(principal, ActionRead, resource, "")

	if decision.Decision != DecisionDeny {
		t.Fatalf("expected deny on expired binding, got %q", decision.Decision)
	}
}

func TestEngine_BuiltInRoleCannotBeDemoted(t *testing.T) {
	store := NewMemoryStore()
	role, ok, err := store.GetRole(builtInReaderRoleID)
	if err != nil || !ok {
		t.Fatalf("expected built-in reader role to exist, ok=%v err=%v", ok, err)
	}
	role.BuiltIn = false

	if err := store.SaveRole(role); err == nil {
		t.Fatal("expected error demoting a built-in role, got nil")
	}
}

func TestEngine_RoleInheritanceIsResolved(t *testing.T) {
	store := NewMemoryStore()
	_ = store.SaveRole(Role{
		ID: "base-writer", Name: "Base Writer",
		Permissions: []Permission{{
			ID:      "base-writer-write-tasks",
			Resource: Resource{ResourceType: ResourceTask, ResourceID: "*"},
			Actions:  []Action{ActionWrite},
		}},
	})
	_ = store.SaveRole(Role{
		ID: "lead", Name: "Lead", InheritsFrom: []string{"base-writer"},
	})
	_ = store.SaveBinding(RoleBinding{
		ID: "alice-lead", PrincipalID: "alice", PrincipalType: PrincipalUser,
		RoleID: "lead", CreatedBy: "admin",
	})

	engine := NewEngine(store, nil)
	principal := Principal{ID: "alice", PrincipalType: PrincipalUser}
	resource := Resource{ResourceType: ResourceTask, ResourceID: "deploy-1"}

	decision := engine.Check(principal, ActionWrite, resource, "")

	if decision.Decision != DecisionAllow {
		t.Fatalf("expected inherited permission to allow, got %q (%s)", decision.Decision, decision.DenialReason)
	}
	if decision.MatchedRole != "base-writer" {
		t.Fatalf("expected matched_role=base-writer (the inherited role), got %q", decision.MatchedRole)
	}
}
