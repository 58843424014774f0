package rbac

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// builtInReaderRoleID names the one built-in role spec.md's own
// worked RBAC example exercises: read-only, non-sensitive access to
// every knowledge category. original_source's store.py imports
// BUILT_IN_ROLES/BUILT_IN_ROLE_IDS from models.py, but neither symbol
// is defined anywhere in the retrieved files — the set below is
// invented here, grounded only in spec.md §8 example 6's literal
// description of the "reader" role.
const builtInReaderRoleID = "reader"

// BuiltInRoles returns the system-defined roles every Store seeds on
// creation. Built-in roles cannot be deleted or demoted to non-built-in.
func BuiltInRoles() []Role {
	return []Role{
		{
			ID:          builtInReaderRoleID,
			Name:        "Reader",
			Description: "Read access to non-sensitive knowledge",
			Permissions: []Permission{
				{
					ID: "reader-read-public-knowledge",
					Resource: Resource{
						ResourceType: ResourceKnowledgeCategory,
						ResourceID:   "*",
						Sensitive:    false,
					},
					Actions: []Action{ActionRead, ActionQuery},
				},
			},
			AssignableTo: []PrincipalType{PrincipalAgent, PrincipalUser, PrincipalTeam, PrincipalServiceAccount},
			BuiltIn:      true,
		},
	}
}

func builtInRoleIDs() map[string]bool {
	ids := make(map[string]bool)
	for _, r := range BuiltInRoles() {
		ids[r.ID] = true
	}
	return ids
}

// Store is a pluggable RBAC storage backend. spec.md explicitly
// leaves the store's concrete file layout as an external, narrow
// collaborator interface — only this contract matters to the access
// engine.
type Store interface {
	GetRole(roleID string) (Role, bool, error)
	ListRoles() ([]Role, error)
	SaveRole(role Role) error
	DeleteRole(roleID string) (bool, error)

	GetBinding(bindingID string) (RoleBinding, bool, error)
	ListBindings(principalID, roleID string) ([]RoleBinding, error)
	SaveBinding(binding RoleBinding) error
	DeleteBinding(bindingID string) (bool, error)
}

// RolesForPrincipal resolves every role bound to principalID/principalType
// (optionally narrowed to projectScope), including roles reached
// transitively via InheritsFrom. Shared by every Store implementation
// since it is pure traversal over ListBindings/GetRole.
func RolesForPrincipal(store Store, principalID string, principalType PrincipalType, projectScope string, now time.Time) ([]Role, error) {
	bindings, err := store.ListBindings(principalID, "")
	if err != nil {
		return nil, err
	}

	roleIDsToResolve := map[string]bool{}
	for _, b := range bindings {
		if b.PrincipalType != principalType {
			continue
		}
		if b.IsExpired(now) {
			continue
		}
		if projectScope != "" && b.ProjectScope != "" && b.ProjectScope != projectScope {
			continue
		}
		roleIDsToResolve[b.RoleID] = true
	}

	resolved := map[string]Role{}
	for len(roleIDsToResolve) > 0 {
		var roleID string
		for id := range roleIDsToResolve {
			roleID = id
			break
		}
		delete(roleIDsToResolve, roleID)

		if _, ok := resolved[roleID]; ok {
			continue
		}
		role, ok, err := store.GetRole(roleID)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue // role referenced by a binding no longer exists
		}
		resolved[roleID] = role

		for _, parentID := range role.InheritsFrom {
			if _, done := resolved[parentID]; !done {
				roleIDsToResolve[parentID] = true
			}
		}
	}

	out := make([]Role, 0, len(resolved))
	for _, r := range resolved {
		out = append(out, r)
	}
	return out, nil
}

// MemoryStore is an in-memory Store for tests and single-process
// deployments, grounded on RBACMemoryStore in store.py.
type MemoryStore struct {
	roles    map[string]Role
	bindings map[string]RoleBinding
}

func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{roles: map[string]Role{}, bindings: map[string]RoleBinding{}}
	for _, r := range BuiltInRoles() {
		s.roles[r.ID] = r
	}
	return s
}

func (s *MemoryStore) GetRole(roleID string) (Role, bool, error) {
	r, ok := s.roles[roleID]
	return r, ok, nil
}

func (s *MemoryStore) ListRoles() ([]Role, error) {
	out := make([]Role, 0, len(s.roles))
	for _, r := range s.roles {
		out = append(out, r)
	}
	return out, nil
}

func (s *MemoryStore) SaveRole(role Role) error {
	if builtInRoleIDs()[role.ID] {
		if existing, ok := s.roles[role.ID]; ok && existing.BuiltIn && !role.BuiltIn {
			return fmt.Errorf("rbac: cannot modify built-in role %q", role.ID)
		}
	}
	s.roles[role.ID] = role
	return nil
}

func (s *MemoryStore) DeleteRole(roleID string) (bool, error) {
	if builtInRoleIDs()[roleID] {
		return false, nil
	}
	if _, ok := s.roles[roleID]; !ok {
		return false, nil
	}
	delete(s.roles, roleID)
	return true, nil
}

func (s *MemoryStore) GetBinding(bindingID string) (RoleBinding, bool, error) {
	b, ok := s.bindings[bindingID]
	return b, ok, nil
}

func (s *MemoryStore) ListBindings(principalID, roleID string) ([]RoleBinding, error) {
	out := make([]RoleBinding, 0, len(s.bindings))
	for _, b := range s.bindings {
		if principalID != "" && b.PrincipalID != principalID {
			continue
		}
		if roleID != "" && b.RoleID != roleID {
			continue
		}
		out = append(out, b)
	}
	return out, nil
}

func (s *MemoryStore) SaveBinding(binding RoleBinding) error {
	s.bindings[binding.ID] = binding
	return nil
}

func (s *MemoryStore) DeleteBinding(bindingID string) (bool, error) {
	if _, ok := s.bindings[bindingID]; !ok {
		return false, nil
	}
	delete(s.bindings, bindingID)
	return true, nil
}

// FileStore persists roles and bindings as one YAML file per object
// under <baseDir>/roles/ and <baseDir>/bindings/, grounded on
// RBACFileStore in store.py. The exact layout is not load-bearing for
// the access engine (spec.md treats it as an external collaborator);
// this exists so the engine has a durable option alongside MemoryStore.
type FileStore struct {
	baseDir string
}

func NewFileStore(baseDir string) (*FileStore, error) {
	s := &FileStore{baseDir: baseDir}
	if err := os.MkdirAll(filepath.Join(baseDir, "roles"), 0o755); err != nil {
		return nil, fmt.Errorf("rbac: creating roles dir: %w", err)
	}
	if err := os.MkdirAll(filepath.Join(baseDir, "bindings"), 0o755); err != nil {
		return nil, fmt.Errorf("rbac: creating bindings dir: %w", err)
	}
	for _, r := range BuiltInRoles() {
		if _, err := os.Stat(s.rolePath(r.ID)); os.IsNotExist(err) {
			if err := s.SaveRole(r); err != nil {
				return nil, err
			}
		}
	}
	return s, nil
}

func (s *FileStore) rolePath(roleID string) string    { return filepath.Join(s.baseDir, "roles", roleID+".yaml") }
func (s *FileStore) bindingPath(bindingID string) string {
	return filepath.Join(s.baseDir, "bindings", bindingID+".yaml")
}

func (s *FileStore) GetRole(roleID string) (Role, bool, error) {
	data, err := os.ReadFile(s.rolePath(roleID))
	if os.IsNotExist(err) {
		return Role{}, false, nil
	}
	if err != nil {
		return Role{}, false, err
	}
	var r Role
	if err := yaml.Unmarshal(data, &r); err != nil {
		return Role{}, false, fmt.Errorf("rbac: decoding role %q: %w", roleID, err)
	}
	return r, true, nil
}

func (s *FileStore) ListRoles() ([]Role, error) {
	entries, err := os.ReadDir(filepath.Join(s.baseDir, "roles"))
	if err != nil {
		return nil, err
	}
	var out []Role
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".yaml") {
			continue
		}
		roleID := strings.TrimSuffix(e.Name(), ".yaml")
		r, ok, err := s.GetRole(roleID)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *FileStore) SaveRole(role Role) error {
	if builtInRoleIDs()[role.ID] {
		if existing, ok, _ := s.GetRole(role.ID); ok && existing.BuiltIn && !role.BuiltIn {
			return fmt.Errorf("rbac: cannot modify built-in role %q", role.ID)
		}
	}
	data, err := yaml.Marshal(role)
	if err != nil {
		return err
	}
	return os.WriteFile(s.rolePath(role.ID), data, 0o644)
}

func (s *FileStore) DeleteRole(roleID string) (bool, error) {
	if builtInRoleIDs()[roleID] {
		return false, nil
	}
	err := os.Remove(s.rolePath(roleID))
	if os.IsNotExist(err) {
		return false, nil
	}
	return err == nil, err
}

func (s *FileStore) GetBinding(bindingID string) (RoleBinding, bool, error) {
	data, err := os.ReadFile(s.bindingPath(bindingID))
	if os.IsNotExist(err) {
		return RoleBinding{}, false, nil
	}
	if err != nil {
		return RoleBinding{}, false, err
	}
	var b RoleBinding
	if err := yaml.Unmarshal(data, &b); err != nil {
		return RoleBinding{}, false, fmt.Errorf("rbac: decoding binding %q: %w", bindingID, err)
	}
	return b, true, nil
}

func (s *FileStore) ListBindings(principalID, roleID string) ([]RoleBinding, error) {
	entries, err := os.ReadDir(filepath.Join(s.baseDir, "bindings"))
	if err != nil {
		return nil, err
	}
	var out []RoleBinding
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".yaml") {
			continue
		}
		bindingID := strings.TrimSuffix(e.Name(), ".yaml")
		b, ok, err := s.GetBinding(bindingID)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		if principalID != "" && b.PrincipalID != principalID {
			continue
		}
		if roleID != "" && b.RoleID != roleID {
			continue
		}
		out = append(out, b)
	}
	return out, nil
}

func (s *FileStore) SaveBinding(binding RoleBinding) error {
	data, err := yaml.Marshal(binding)
	if err != nil {
		return err
	}
	return os.WriteFile(s.bindingPath(binding.ID), data, 0o644)
}

func (s *FileStore) DeleteBinding(bindingID string) (bool, error) {
	err := os.Remove(s.bindingPath(bindingID))
	if os.IsNotExist(err) {
		return false, nil
	}
	return err == nil, err
}
