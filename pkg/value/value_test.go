package value

import (
	"encoding/json"
	"testing"
)

func TestFromRaw_IntegralFloatBecomesInt(t *testing.T) {
	v, err := FromRaw(float64(3))
	if err != nil {
		t.Fatal(err)
	}
	if v.Kind() != KindInt {
		t.Fatalf("expected KindInt, got %s", v.Kind())
	}
	i, ok := v.AsInt()
	if !ok || i != 3 {
		t.Fatalf("expected int 3, got %d ok=%v", i, ok)
	}
}

func TestFromRaw_NonIntegralFloatStaysFloat(t *testing.T) {
	v, err := FromRaw(3.5)
	if err != nil {
		t.Fatal(err)
	}
	if v.Kind() != KindFloat {
		t.Fatalf("expected KindFloat, got %s", v.Kind())
	}
}

func TestFromRaw_RejectsNilAndUnsupportedShapes(t *testing.T) {
	if _, err := FromRaw(nil); err == nil {
		t.Fatal("expected nil to be rejected")
	}
	if _, err := FromRaw(map[string]any{"a": 1}); err == nil {
		t.Fatal("expected a bare map to be rejected (not a representable leaf shape)")
	}
}

func TestFromRaw_ListRecursesAndPropagatesElementErrors(t *testing.T) {
	v, err := FromRaw([]any{"a", float64(1), true})
	if err != nil {
		t.Fatal(err)
	}
	list, ok := v.AsList()
	if !ok || len(list) != 3 {
		t.Fatalf("expected a 3-element list, got %+v ok=%v", list, ok)
	}

	if _, err := FromRaw([]any{"a", nil}); err == nil {
		t.Fatal("expected an error when a list element is unrepresentable")
	}
}

func TestValue_JSONRoundTrip(t *testing.T) {
	original := List(String("a"), Int(2), Bool(true))
	data, err := json.Marshal(original)
	if err != nil {
		t.Fatal(err)
	}

	var decoded Value
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatal(err)
	}
	list, ok := decoded.AsList()
	if !ok || len(list) != 3 {
		t.Fatalf("expected a 3-element list after round-trip, got %+v", list)
	}
	if s, _ := list[0].AsString(); s != "a" {
		t.Fatalf("expected first element to round-trip as %q, got %q", "a", s)
	}
}

func TestMapFromRaw_AndRawMap_RoundTrip(t *testing.T) {
	m, err := MapFromRaw(map[string]any{"status": "open", "points": float64(3)})
	if err != nil {
		t.Fatal(err)
	}
	raw := m.RawMap()
	if raw["status"] != "open" {
		t.Fatalf("expected status to round-trip as a string, got %v", raw["status"])
	}
	if raw["points"] != int64(3) {
		t.Fatalf("expected points to round-trip as int64(3), got %v (%T)", raw["points"], raw["points"])
	}
}

func TestMap_CloneIsIndependent(t *testing.T) {
	m := Map{"a": String("1")}
	clone := m.Clone()
	clone["a"] = String("2")
	if got, _ := m["a"].AsString(); got != "1" {
		t.Fatalf("expected the original map to be unaffected by mutating the clone, got %q", got)
	}
}
