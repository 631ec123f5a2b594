package hydrate

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func TestDecoderFromFixtures(t *testing.T) {
	fx := loadFixture(t, "hydrate_config.json")

	for _, tc := range fx.Cases {
		tc := tc
		t.Run(tc.Name, func(t *testing.T) {
			decoder := NewDecoder[settings](buildOptions(tc)...)

			result, err := decoder.Decode(Context{Dataset: "scenario_a", Kind: "Leaf"}, tc.Input)

			if tc.ExpectErr != "" {
				if err == nil {
					t.Fatalf("expected error %q, got nil", tc.ExpectErr)
				}
				if !strings.Contains(err.Error(), tc.ExpectErr) {
					t.Fatalf("expected error containing %q, got %v", tc.ExpectErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected decode error: %v", err)
			}
			if !reflect.DeepEqual(tc.Expect, result) {
				t.Fatalf("decoded mismatch:\nwant: %#v\n got: %#v", tc.Expect, result)
			}
		})
	}
}

func TestDecodeNilPayload(t *testing.T) {
	_, err := NewDecoder[settings]().Decode(Context{Kind: "Leaf"}, nil)
	if err == nil || !strings.Contains(err.Error(), "Leaf") {
		t.Fatalf("expected nil payload error naming the kind, got %v", err)
	}
}

func TestDecodeDoesNotMutatePayload(t *testing.T) {
	payload := map[string]any{"use_database": false}
	_, err := NewDecoder(WithPreHook[settings](legacyAlias)).Decode(Context{}, payload)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if _, ok := payload["use_database"]; !ok {
		t.Fatalf("expected caller payload to keep its keys, got %v", payload)
	}
}

func buildOptions(tc fixtureCase) []DecoderOption[settings] {
	var options []DecoderOption[settings]
	for _, name := range tc.Options {
		switch name {
		case "use_number":
			options = append(options, WithUseNumber[settings]())
		case "disallow_unknown":
			options = append(options, WithDisallowUnknownFields[settings]())
		}
	}
	for _, name := range tc.PreHooks {
		if name == "legacy_alias" {
			options = append(options, WithPreHook[settings](legacyAlias))
		}
	}
	for _, name := range tc.PostHooks {
		if name == "require_resolution" {
			options = append(options, WithPostHook[settings](requireResolution))
		}
	}
	return options
}

func legacyAlias(_ Context, payload map[string]any) (map[string]any, error) {
	if value, ok := payload["use_database"]; ok {
		payload["use_cache"] = value
		delete(payload, "use_database")
	}
	return payload, nil
}

func requireResolution(_ Context, s *settings) error {
	if value, ok := s.Extras["resolution"]; ok && value == "" {
		return errors.New("resolution must not be empty")
	}
	return nil
}

type fixture struct {
	Description string        `json:"description"`
	Cases       []fixtureCase `json:"cases"`
}

type fixtureCase struct {
	Name      string         `json:"name"`
	Input     map[string]any `json:"input"`
	Expect    settings       `json:"expect"`
	ExpectErr string         `json:"expectErr"`
	PreHooks  []string       `json:"preHooks"`
	PostHooks []string       `json:"postHooks"`
	Options   []string       `json:"options"`
}

type settings struct {
	UseCache *bool          `json:"use_cache,omitempty"`
	Extras   map[string]any `json:"extras,omitempty"`
}

func loadFixture(t *testing.T, name string) fixture {
	t.Helper()
	raw, err := os.ReadFile(filepath.Join("testdata", name))
	if err != nil {
		t.Fatalf("failed to read hydrate fixture %q: %v", name, err)
	}
	var fx fixture
	if err := json.Unmarshal(raw, &fx); err != nil {
		t.Fatalf("failed to unmarshal hydrate fixture %q: %v", name, err)
	}
	return fx
}
