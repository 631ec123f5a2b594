package datasets

import (
	"context"
	"crypto/sha256"
	"encoding"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strings"

	"github.com/goliatone/go-datasets/flags"
	"github.com/goliatone/go-datasets/frame"
)

// CacheKey identifies one cached fetch result.
type CacheKey struct {
	Dataset string
	Flag    flags.Flag
	Config  Config
	Extras  map[string]any
}

// ID renders the key as "<dataset>_<flag>_config_<hash>_kwargs_<hash>". The
// kwargs segment is omitted when there are no extras.
func (k CacheKey) ID() string {
	parts := []string{k.Dataset, k.Flag.String(), "config", hashOf(k.Config)}
	if len(k.Extras) > 0 {
		parts = append(parts, "kwargs", hashOf(k.Extras))
	}
	return strings.Join(parts, "_")
}

// hashOf digests the JSON form of canonical(v); map keys are sorted by
// encoding/json.
func hashOf(v any) string {
	raw, err := json.Marshal(canonical(reflect.ValueOf(v)))
	if err != nil {
		raw = []byte(fmt.Sprint(canonical(reflect.ValueOf(v))))
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:8])
}

// canonical rewrites v into plain JSON values that depend only on content.
// Pointers are followed, non-finite floats become their names and values
// JSON cannot hold, such as funcs and channels, become their type name.
func canonical(v reflect.Value) any {
	if !v.IsValid() {
		return nil
	}
	if v.Kind() != reflect.Pointer && v.Kind() != reflect.Interface && v.CanInterface() {
		switch v.Interface().(type) {
		case json.Marshaler, encoding.TextMarshaler:
			if raw, err := json.Marshal(v.Interface()); err == nil {
				return json.RawMessage(raw)
			}
		}
	}

	switch v.Kind() {
	case reflect.Pointer, reflect.Interface:
		if v.IsNil() {
			return nil
		}
		return canonical(v.Elem())
	case reflect.Bool:
		return v.Bool()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return v.Uint()
	case reflect.Float32, reflect.Float64:
		f := v.Float()
		switch {
		case math.IsNaN(f):
			return "NaN"
		case math.IsInf(f, 1):
			return "+Inf"
		case math.IsInf(f, -1):
			return "-Inf"
		}
		return f
	case reflect.Complex64, reflect.Complex128:
		return fmt.Sprint(v.Complex())
	case reflect.String:
		return v.String()
	case reflect.Slice:
		if v.IsNil() {
			return nil
		}
		fallthrough
	case reflect.Array:
		out := make([]any, v.Len())
		for i := range out {
			out[i] = canonical(v.Index(i))
		}
		return out
	case reflect.Map:
		if v.IsNil() {
			return nil
		}
		out := make(map[string]any, v.Len())
		iter := v.MapRange()
		for iter.Next() {
			out[fmt.Sprint(canonical(iter.Key()))] = canonical(iter.Value())
		}
		return out
	case reflect.Struct:
		t := v.Type()
		out := make(map[string]any, t.NumField())
		for i := range t.NumField() {
			field := t.Field(i)
			if !field.IsExported() {
				continue
			}
			name := field.Name
			if tag, _, _ := strings.Cut(field.Tag.Get("json"), ","); tag == "-" {
				continue
			} else if tag != "" {
				name = tag
			}
			out[name] = canonical(v.Field(i))
		}
		return out
	}
	return v.Type().String()
}

// Cache is the port a dataset consults before computing a flag.
type Cache interface {
	IsFresh(ctx context.Context, key CacheKey) (bool, error)
	Read(ctx context.Context, key CacheKey) (*frame.Frame, error)
	Write(ctx context.Context, key CacheKey, value *frame.Frame) error
}

// CacheAdmin is implemented by backends that can enumerate and purge entries.
type CacheAdmin interface {
	// Delete removes the entries of dataset and flag; an empty flag removes
	// every flag of the dataset and an empty dataset removes everything.
	Delete(ctx context.Context, dataset string, flag flags.Flag) (int, error)
	// ListKeys returns the IDs stored for dataset, or all IDs when empty.
	ListKeys(ctx context.Context, dataset string) ([]string, error)
}
