// Package loader parses context-propagation and schema-compatibility
// contracts from strict-mode YAML: any key not in a type's known-key
// set is an error rather than a silently-ignored field, and every
// propagation chain's verification expression is parsed and
// root-validated at load time so a malformed guard never reaches the
// runtime evaluator. Grounded on the teacher's own one-level strict
// decoding in internal/config.Config, generalized here to full
// unknown-key rejection via yaml.Node, the way
// jordigilh-kubernaut/pkg validates OpenAPI documents strictly before
// trusting them downstream.
package loader

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/contextcore/core/internal/contracts/propagation"
	"github.com/contextcore/core/internal/contracts/schemacompat"
	ctypes "github.com/contextcore/core/internal/contracts/types"
)

type requirementFieldDoc struct {
	Name     string `yaml:"name"`
	Severity string `yaml:"severity"`
	Default  any    `yaml:"default"`
}

type requirementSetDoc struct {
	Required   []requirementFieldDoc `yaml:"required"`
	Enrichment []requirementFieldDoc `yaml:"enrichment"`
}

type phaseDoc struct {
	Name  string            `yaml:"name"`
	Entry requirementSetDoc `yaml:"entry"`
	Exit  requirementSetDoc `yaml:"exit"`
}

type waypointDoc struct {
	Phase string `yaml:"phase"`
	Field string `yaml:"field"`
}

type chainDoc struct {
	ID          string        `yaml:"id"`
	SourcePhase string        `yaml:"source_phase"`
	SourceField string        `yaml:"source_field"`
	Waypoints   []waypointDoc `yaml:"waypoints"`
	DestPhase   string        `yaml:"dest_phase"`
	DestField   string        `yaml:"dest_field"`
	Guard       string        `yaml:"guard"`
}

type contractDoc struct {
	Pipeline string     `yaml:"pipeline"`
	Phases   []phaseDoc `yaml:"phases"`
	Chains   []chainDoc `yaml:"chains"`
}

var contractKnownKeys = map[string]bool{"pipeline": true, "phases": true, "chains": true}
var phaseKnownKeys = map[string]bool{"name": true, "entry": true, "exit": true}
var requirementSetKnownKeys = map[string]bool{"required": true, "enrichment": true}
var requirementFieldKnownKeys = map[string]bool{"name": true, "severity": true, "default": true}
var chainKnownKeys = map[string]bool{"id": true, "source_phase": true, "source_field": true, "waypoints": true, "dest_phase": true, "dest_field": true, "guard": true}
var waypointKnownKeys = map[string]bool{"phase": true, "field": true}

// LoadContextContract reads a context-propagation contract from path,
// rejecting any unknown top-level or nested key and validating every
// chain's guard expression before returning.
func LoadContextContract(path string) (*propagation.ContextContract, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("loader: reading %s: %w", path, err)
	}

	var root yaml.Node
	if err := yaml.Unmarshal(raw, &root); err != nil {
		return nil, fmt.Errorf("loader: parsing %s: %w", path, err)
	}
	if len(root.Content) != 1 {
		return nil, fmt.Errorf("loader: %s does not contain a single YAML document", path)
	}
	doc := root.Content[0]

	if err := rejectUnknownKeys(doc, contractKnownKeys, path); err != nil {
		return nil, err
	}
	if err := validatePhaseAndChainKeys(doc, path); err != nil {
		return nil, err
	}

	var parsed contractDoc
	if err := doc.Decode(&parsed); err != nil {
		return nil, fmt.Errorf("loader: decoding %s: %w", path, err)
	}

	contract := &propagation.ContextContract{Pipeline: parsed.Pipeline}
	for _, p := range parsed.Phases {
		entry, err := toRequirementSet(p.Entry)
		if err != nil {
			return nil, fmt.Errorf("loader: phase %q entry: %w", p.Name, err)
		}
		exit, err := toRequirementSet(p.Exit)
		if err != nil {
			return nil, fmt.Errorf("loader: phase %q exit: %w", p.Name, err)
		}
		contract.Phases = append(contract.Phases, propagation.PhaseSpec{Name: p.Name, Entry: entry, Exit: exit})
	}

	evaluator := propagation.NewEvaluator()
	for _, c := range parsed.Chains {
		if c.Guard != "" {
			if err := evaluator.Validate(c.Guard); err != nil {
				return nil, fmt.Errorf("loader: chain %q: %w", c.ID, err)
			}
		}
		var waypoints []propagation.Waypoint
		for _, w := range c.Waypoints {
			waypoints = append(waypoints, propagation.Waypoint{Phase: w.Phase, Field: w.Field})
		}
		contract.Chains = append(contract.Chains, propagation.PropagationChain{
			ID: c.ID, SourcePhase: c.SourcePhase, SourceField: c.SourceField,
			Waypoints: waypoints, DestPhase: c.DestPhase, DestField: c.DestField, Guard: c.Guard,
		})
	}

	if err := contract.Validate(); err != nil {
		return nil, fmt.Errorf("loader: %s: %w", path, err)
	}
	return contract, nil
}

func toRequirementSet(doc requirementSetDoc) (propagation.RequirementSet, error) {
	set := propagation.RequirementSet{}
	for _, f := range doc.Required {
		rf, err := toRequirementField(f)
		if err != nil {
			return set, err
		}
		set.Required = append(set.Required, rf)
	}
	for _, f := range doc.Enrichment {
		rf, err := toRequirementField(f)
		if err != nil {
			return set, err
		}
		set.Enrichment = append(set.Enrichment, rf)
	}
	return set, nil
}

func toRequirementField(f requirementFieldDoc) (propagation.RequirementField, error) {
	severity := ctypes.SeverityBlocking
	if f.Severity != "" {
		var err error
		severity, err = ctypes.ParseSeverity(f.Severity)
		if err != nil {
			return propagation.RequirementField{}, err
		}
	}
	return propagation.RequirementField{
		Name: f.Name, Severity: severity, Default: f.Default, HasDefault: f.Default != nil,
	}, nil
}

// LoadCompatibilitySpec reads a schema-compatibility contract from
// path with the same strict unknown-key rejection as
// LoadContextContract.
func LoadCompatibilitySpec(path string) (*schemacompat.CompatibilitySpec, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("loader: reading %s: %w", path, err)
	}

	var root yaml.Node
	if err := yaml.Unmarshal(raw, &root); err != nil {
		return nil, fmt.Errorf("loader: parsing %s: %w", path, err)
	}
	if len(root.Content) != 1 {
		return nil, fmt.Errorf("loader: %s does not contain a single YAML document", path)
	}
	doc := root.Content[0]

	mappingsKnownKeys := map[string]bool{"mappings": true}
	if err := rejectUnknownKeys(doc, mappingsKnownKeys, path); err != nil {
		return nil, err
	}
	mappingKnownKeys := map[string]bool{
		"source_service": true, "target_service": true, "source_field": true, "target_field": true,
		"source_type": true, "source_values": true, "mapping": true, "severity": true,
	}
	if list := findKey(doc, "mappings"); list != nil {
		for _, m := range list.Content {
			if err := rejectUnknownKeys(m, mappingKnownKeys, path); err != nil {
				return nil, err
			}
		}
	}

	var parsed struct {
		Mappings []struct {
			SourceService string            `yaml:"source_service"`
			TargetService string            `yaml:"target_service"`
			SourceField   string            `yaml:"source_field"`
			TargetField   string            `yaml:"target_field"`
			SourceType    string            `yaml:"source_type"`
			SourceValues  []string          `yaml:"source_values"`
			Mapping       map[string]string `yaml:"mapping"`
			Severity      string            `yaml:"severity"`
		} `yaml:"mappings"`
	}
	if err := doc.Decode(&parsed); err != nil {
		return nil, fmt.Errorf("loader: decoding %s: %w", path, err)
	}

	spec := &schemacompat.CompatibilitySpec{}
	for _, m := range parsed.Mappings {
		severity := ctypes.SeverityBlocking
		if m.Severity != "" {
			var err error
			severity, err = ctypes.ParseSeverity(m.Severity)
			if err != nil {
				return nil, fmt.Errorf("loader: mapping %s.%s: %w", m.SourceService, m.SourceField, err)
			}
		}
		spec.Mappings = append(spec.Mappings, schemacompat.FieldMapping{
			SourceService: m.SourceService, TargetService: m.TargetService,
			SourceField: m.SourceField, TargetField: m.TargetField,
			SourceType: m.SourceType, SourceValues: m.SourceValues,
			Mapping: m.Mapping, Severity: severity,
		})
	}
	return spec, nil
}

// rejectUnknownKeys walks a mapping node and errors on any key not in
// allowed. Only the node's immediate keys are checked; nested
// mappings are validated by their own callers so each level states
// its own known-key set explicitly.
func rejectUnknownKeys(node *yaml.Node, allowed map[string]bool, path string) error {
	if node.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i < len(node.Content); i += 2 {
		key := node.Content[i].Value
		if !allowed[key] {
			return fmt.Errorf("loader: %s: unknown field %q at line %d", path, key, node.Content[i].Line)
		}
	}
	return nil
}

func validatePhaseAndChainKeys(doc *yaml.Node, path string) error {
	phasesNode := findKey(doc, "phases")
	if phasesNode != nil {
		for _, phaseNode := range phasesNode.Content {
			if err := rejectUnknownKeys(phaseNode, phaseKnownKeys, path); err != nil {
				return err
			}
			if entry := findKey(phaseNode, "entry"); entry != nil {
				if err := validateRequirementSetKeys(entry, path); err != nil {
					return err
				}
			}
			if exit := findKey(phaseNode, "exit"); exit != nil {
				if err := validateRequirementSetKeys(exit, path); err != nil {
					return err
				}
			}
		}
	}

	chainsNode := findKey(doc, "chains")
	if chainsNode != nil {
		for _, chainNode := range chainsNode.Content {
			if err := rejectUnknownKeys(chainNode, chainKnownKeys, path); err != nil {
				return err
			}
			if wps := findKey(chainNode, "waypoints"); wps != nil {
				for _, wp := range wps.Content {
					if err := rejectUnknownKeys(wp, waypointKnownKeys, path); err != nil {
						return err
					}
				}
			}
		}
	}
	return nil
}

func validateRequirementSetKeys(node *yaml.Node, path string) error {
	if err := rejectUnknownKeys(node, requirementSetKnownKeys, path); err != nil {
		return err
	}
	for _, key := range []string{"required", "enrichment"} {
		if list := findKey(node, key); list != nil {
			for _, f := range list.Content {
				if err := rejectUnknownKeys(f, requirementFieldKnownKeys, path); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func findKey(mapping *yaml.Node, key string) *yaml.Node {
	if mapping == nil || mapping.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i < len(mapping.Content); i += 2 {
		if mapping.Content[i].Value == key {
			return mapping.Content[i+1]
		}
	}
	return nil
}
