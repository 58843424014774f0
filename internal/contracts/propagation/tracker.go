package propagation

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	ctypes "github.com/contextcore/core/internal/contracts/types"
)

// ProvenanceKey is the reserved context key under which field
// provenance metadata travels with the context through the pipeline,
// mirroring original_source's `_cc_propagation` key.
const ProvenanceKey = "_cc_propagation"

// FieldProvenance is the provenance record for a single field at the
// point it was stamped.
type FieldProvenance struct {
	OriginPhase        string
	SetAt              time.Time
	ValueHash          string
	Evaluator          string
	EvaluationScore    float64
	HasEvaluationScore bool
	EvaluationTime     time.Time
}

// PropagationChainResult is the outcome of checking one chain.
type PropagationChainResult struct {
	ChainID            string
	Status             ctypes.ChainStatus
	SourcePresent      bool
	DestinationPresent bool
	WaypointsPresent   []bool
	Message            string
}

// Tracker stamps field provenance into a Context as it flows through
// phases and verifies declared propagation chains against a final
// context snapshot (Layer 6).
type Tracker struct {
	evaluator *Evaluator
}

func NewTracker() *Tracker {
	return &Tracker{evaluator: NewEvaluator()}
}

func valueHash(v any) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%#v", v)))
	return hex.EncodeToString(sum[:])[:8]
}

// Stamp records provenance for a field set during phase.
func (t *Tracker) Stamp(ctx Context, phase, fieldPath string, value any) {
	prov, _ := ctx[ProvenanceKey].(map[string]FieldProvenance)
	if prov == nil {
		prov = map[string]FieldProvenance{}
	}
	prov[fieldPath] = FieldProvenance{
		OriginPhase: phase,
		SetAt:       time.Now().UTC(),
		ValueHash:   valueHash(value),
	}
	ctx[ProvenanceKey] = prov
}

// StampEvaluation records an evaluator score against an already
// stamped field, e.g. from a quality or judge gate.
func (t *Tracker) StampEvaluation(ctx Context, fieldPath, evaluator string, score float64) {
	prov, _ := ctx[ProvenanceKey].(map[string]FieldProvenance)
	if prov == nil {
		return
	}
	rec := prov[fieldPath]
	rec.Evaluator = evaluator
	rec.EvaluationScore = score
	rec.HasEvaluationScore = true
	rec.EvaluationTime = time.Now().UTC()
	prov[fieldPath] = rec
	ctx[ProvenanceKey] = prov
}

func isZeroValue(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case bool:
		return !t
	case float64:
		return t == 0
	case int:
		return t == 0
	case int64:
		return t == 0
	case map[string]any:
		return len(t) == 0
	case []any:
		return len(t) == 0
	default:
		return false
	}
}

// CheckChain evaluates a single propagation chain against ctx: source
// present, all waypoints present, destination present and non-default,
// and (if declared) the guard expression evaluates true.
func (t *Tracker) CheckChain(chain PropagationChain, ctx Context) (PropagationChainResult, error) {
	srcPresent, srcVal := ctx.Resolve(chain.SourcePhase, chain.SourceField)
	destPresent, destVal := ctx.Resolve(chain.DestPhase, chain.DestField)

	waypointsPresent := make([]bool, len(chain.Waypoints))
	allWaypoints := true
	for i, wp := range chain.Waypoints {
		present, _ := ctx.Resolve(wp.Phase, wp.Field)
		waypointsPresent[i] = present
		if !present {
			allWaypoints = false
		}
	}

	res := PropagationChainResult{
		ChainID:            chain.ID,
		SourcePresent:      srcPresent,
		DestinationPresent: destPresent,
		WaypointsPresent:   waypointsPresent,
	}

	if !srcPresent || !destPresent || !allWaypoints {
		res.Status = ctypes.ChainBroken
		res.Message = "source, destination, or a waypoint field is absent"
		return res, nil
	}

	if isZeroValue(destVal) {
		res.Status = ctypes.ChainDegraded
		res.Message = "destination field present but holds a default/empty value"
		return res, nil
	}

	if chain.Guard != "" {
		ok, err := t.evaluator.Evaluate(chain.Guard, ctx, srcVal, destVal)
		if err != nil {
			return PropagationChainResult{}, fmt.Errorf("propagation: evaluating guard for chain %q: %w", chain.ID, err)
		}
		if !ok {
			res.Status = ctypes.ChainDegraded
			res.Message = "verification guard expression evaluated false"
			return res, nil
		}
	}

	res.Status = ctypes.ChainIntact
	return res, nil
}

// CheckAllChains evaluates every chain declared in contract against
// ctx, order-independent (chains are evaluated on the final context
// snapshot per spec.md §5).
func (t *Tracker) CheckAllChains(contract *ContextContract, ctx Context) ([]PropagationChainResult, error) {
	out := make([]PropagationChainResult, 0, len(contract.Chains))
	for _, chain := range contract.Chains {
		res, err := t.CheckChain(chain, ctx)
		if err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, nil
}
