package memory

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestValueJSONRoundTrip(t *testing.T) {
	meta := map[string]Value{
		"name":   StringValue("alpha"),
		"effort": NumberValue(3.5),
		"done":   BoolValue(true),
		"owner":  MapValue(map[string]Value{"team": StringValue("infra")}),
		"labels": ArrayValue([]Value{StringValue("a"), NumberValue(2)}),
	}

	data, err := json.Marshal(meta)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var decoded map[string]Value
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	if decoded["name"].Kind() != StringKind || decoded["name"].String() != "alpha" {
		t.Errorf("name = %v", decoded["name"])
	}
	if decoded["effort"].Kind() != NumberKind || decoded["effort"].String() != "3.5" {
		t.Errorf("effort = %v", decoded["effort"])
	}
	if decoded["done"].Kind() != BoolKind || decoded["done"].String() != "true" {
		t.Errorf("done = %v", decoded["done"])
	}
	if decoded["owner"].Kind() != MapKind {
		t.Errorf("owner kind = %v", decoded["owner"].Kind())
	}
	if decoded["labels"].Kind() != ArrayKind {
		t.Errorf("labels kind = %v", decoded["labels"].Kind())
	}
}

func TestValuesFromJSON(t *testing.T) {
	raw := map[string]any{
		"name":  "alpha",
		"count": float64(7),
		"flag":  false,
		"inner": map[string]any{"k": "v"},
		"list":  []any{"x", float64(1)},
		"null":  nil,
	}

	values, err := ValuesFromJSON(raw)
	if err != nil {
		t.Fatalf("ValuesFromJSON failed: %v", err)
	}
	if values["name"].String() != "alpha" {
		t.Errorf("name = %q", values["name"].String())
	}
	if values["count"].String() != "7" {
		t.Errorf("count = %q", values["count"].String())
	}
	if values["flag"].String() != "false" {
		t.Errorf("flag = %q", values["flag"].String())
	}
	if values["inner"].Kind() != MapKind {
		t.Errorf("inner kind = %v", values["inner"].Kind())
	}
	if values["list"].Kind() != ArrayKind {
		t.Errorf("list kind = %v", values["list"].Kind())
	}
	if _, ok := values["null"]; !ok {
		t.Error("null key dropped entirely")
	}
}

func TestNumberFormatting(t *testing.T) {
	// Whole numbers stringify without a trailing decimal.
	if got := NumberValue(3).String(); got != "3" {
		t.Errorf("NumberValue(3) = %q, want 3", got)
	}
	if got := NumberValue(0.25).String(); got != "0.25" {
		t.Errorf("NumberValue(0.25) = %q, want 0.25", got)
	}
}

func TestMemoryClone(t *testing.T) {
	m := &Memory{
		ID: "m-1", UserID: "alice", Content: "text",
		Tags:      []string{"a"},
		Metadata:  map[string]Value{"k": StringValue("v")},
		Embedding: []float32{1, 2},
	}

	clone := m.Clone()
	clone.Tags[0] = "mutated"
	clone.Embedding[0] = 9
	clone.Metadata["k"] = StringValue("changed")

	if m.Tags[0] != "a" || m.Embedding[0] != 1 {
		t.Error("clone shares slices with original")
	}
	if m.Metadata["k"].String() != "v" {
		t.Error("clone shares metadata with original")
	}
}

func TestValidationError(t *testing.T) {
	err := validationErr("importance", "importance must be in [0, 1], got %g", 1.5)
	if !IsValidationError(err) {
		t.Fatal("not recognized as validation error")
	}
	var ve *ValidationError
	if !errors.As(err, &ve) || ve.Field != "importance" {
		t.Errorf("field = %v", ve)
	}
}
