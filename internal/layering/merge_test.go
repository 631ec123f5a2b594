package layering

import (
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func TestMergeLayersFromFixture(t *testing.T) {
	fx := loadMergeFixture(t, "layering_merge.json")

	for _, tc := range fx.Cases {
		tc := tc
		t.Run(tc.Name, func(t *testing.T) {
			layers := make([]fixtureSettings, len(tc.Layers))
			for i := range tc.Layers {
				layers[i] = tc.Layers[i].Snapshot
			}

			got := MergeLayers(layers...)
			if !reflect.DeepEqual(tc.Expect, got) {
				t.Errorf("merged snapshot mismatch:\nwant: %#v\n got: %#v", tc.Expect, got)
			}
		})
	}
}

func TestMergeLayersZeroInput(t *testing.T) {
	type sample struct {
		Value int
	}
	if got := MergeLayers[sample](); got != (sample{}) {
		t.Fatalf("expected zero value, got %+v", got)
	}
}

func TestMergeLayersDoesNotAliasInputs(t *testing.T) {
	weak := fixtureSettings{Extras: map[string]any{"unit": "MW"}}
	merged := MergeLayers(fixtureSettings{}, weak)
	merged.Extras["unit"] = "GW"
	if weak.Extras["unit"] != "MW" {
		t.Fatalf("expected weak layer untouched, got %v", weak.Extras["unit"])
	}
}

func TestMergeLayersKeepsOpaqueStructs(t *testing.T) {
	type stamped struct {
		At *time.Time
	}
	at := time.Date(2024, 1, 2, 3, 0, 0, 0, time.UTC)
	got := MergeLayers(stamped{}, stamped{At: &at})
	if got.At == nil || !got.At.Equal(at) {
		t.Fatalf("expected time to survive merge, got %v", got.At)
	}
}

func TestCloneDeepCopies(t *testing.T) {
	enabled := true
	original := fixtureSettings{UseCache: &enabled, Tags: []string{"a"}}
	clone := Clone(original)
	*clone.UseCache = false
	clone.Tags[0] = "b"
	if !*original.UseCache || original.Tags[0] != "a" {
		t.Fatalf("clone shares storage with original: %+v", original)
	}
}

type mergeFixture struct {
	Description string             `json:"description"`
	Cases       []mergeFixtureCase `json:"cases"`
}

type mergeFixtureCase struct {
	Name   string              `json:"name"`
	Layers []mergeFixtureLayer `json:"layers"`
	Expect fixtureSettings     `json:"expect"`
}

type mergeFixtureLayer struct {
	Scope    string          `json:"scope"`
	Snapshot fixtureSettings `json:"snapshot"`
}

type fixtureSettings struct {
	UseCache       *bool          `json:"use_cache,omitempty"`
	AutoSort       *bool          `json:"auto_sort,omitempty"`
	DropDuplicates *bool          `json:"drop_duplicates,omitempty"`
	Tags           []string       `json:"tags,omitempty"`
	Extras         map[string]any `json:"extras,omitempty"`
}

func loadMergeFixture(t *testing.T, name string) mergeFixture {
	t.Helper()
	raw, err := os.ReadFile(filepath.Join("testdata", name))
	if err != nil {
		t.Fatalf("failed to read fixture %q: %v", name, err)
	}
	var fx mergeFixture
	if err := json.Unmarshal(raw, &fx); err != nil {
		t.Fatalf("failed to unmarshal fixture %q: %v", name, err)
	}
	return fx
}
