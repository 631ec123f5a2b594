// Package layering resolves strongest-to-weakest snapshots into a single value.
//
// A nil pointer, map, slice or interface means "unset" and lets weaker layers
// fill the gap. Scalars are always taken from the strongest layer, so types that
// need per-field fallback model their optional fields as pointers.
package layering

import "reflect"

// MergeLayers composes snapshots ordered from strongest to weakest. The result
// never aliases any input.
func MergeLayers[T any](layers ...T) T {
	var zero T
	if len(layers) == 0 {
		return zero
	}

	merged := cloneValue(reflect.ValueOf(layers[len(layers)-1]))
	for i := len(layers) - 2; i >= 0; i-- {
		merged = mergeValue(reflect.ValueOf(layers[i]), merged)
	}
	return asType[T](merged)
}

// Clone returns a deep copy of value.
func Clone[T any](value T) T {
	return asType[T](cloneValue(reflect.ValueOf(value)))
}

func asType[T any](v reflect.Value) T {
	var zero T
	if !v.IsValid() {
		return zero
	}
	target := reflect.TypeOf((*T)(nil)).Elem()
	if v.Type() != target {
		out := reflect.New(target).Elem()
		out.Set(v.Convert(target))
		return out.Interface().(T)
	}
	return v.Interface().(T)
}

func mergeValue(strong, weak reflect.Value) reflect.Value {
	if !strong.IsValid() {
		return cloneValue(weak)
	}

	switch strong.Kind() {
	case reflect.Pointer:
		if strong.IsNil() {
			return cloneValue(weak)
		}
		out := reflect.New(strong.Type().Elem())
		out.Elem().Set(mergeValue(strong.Elem(), elemOf(weak, reflect.Pointer)))
		return out
	case reflect.Interface:
		if strong.IsNil() {
			return cloneValue(weak)
		}
		return mergeValue(strong.Elem(), elemOf(weak, reflect.Interface)).Convert(strong.Type())
	case reflect.Struct:
		return mergeStruct(strong, weak)
	case reflect.Map:
		if strong.IsNil() {
			return cloneValue(weak)
		}
		return mergeMap(strong, weak)
	case reflect.Slice:
		if strong.IsNil() {
			return cloneValue(weak)
		}
		return cloneValue(strong)
	default:
		return cloneValue(strong)
	}
}

func elemOf(v reflect.Value, kind reflect.Kind) reflect.Value {
	if !v.IsValid() || v.Kind() != kind || v.IsNil() {
		return reflect.Value{}
	}
	return v.Elem()
}

func mergeStruct(strong, weak reflect.Value) reflect.Value {
	out := reflect.New(strong.Type()).Elem()
	// unexported state (time.Time and friends) always follows the strong side
	out.Set(strong)
	sameType := weak.IsValid() && weak.Type() == strong.Type()
	for i := 0; i < strong.NumField(); i++ {
		field := out.Field(i)
		if !field.CanSet() {
			continue
		}
		var weakField reflect.Value
		if sameType {
			weakField = weak.Field(i)
		}
		field.Set(mergeValue(strong.Field(i), weakField))
	}
	return out
}

func mergeMap(strong, weak reflect.Value) reflect.Value {
	out := reflect.MakeMapWithSize(strong.Type(), strong.Len())
	if weak.IsValid() && weak.Kind() == reflect.Map && !weak.IsNil() {
		iter := weak.MapRange()
		for iter.Next() {
			out.SetMapIndex(iter.Key(), cloneValue(iter.Value()))
		}
	}
	iter := strong.MapRange()
	for iter.Next() {
		if existing := out.MapIndex(iter.Key()); existing.IsValid() {
			out.SetMapIndex(iter.Key(), mergeValue(iter.Value(), existing))
			continue
		}
		out.SetMapIndex(iter.Key(), cloneValue(iter.Value()))
	}
	return out
}

func cloneValue(v reflect.Value) reflect.Value {
	if !v.IsValid() {
		return v
	}

	switch v.Kind() {
	case reflect.Pointer:
		if v.IsNil() {
			return reflect.Zero(v.Type())
		}
		out := reflect.New(v.Type().Elem())
		out.Elem().Set(cloneValue(v.Elem()))
		return out
	case reflect.Interface:
		if v.IsNil() {
			return reflect.Zero(v.Type())
		}
		return cloneValue(v.Elem()).Convert(v.Type())
	case reflect.Struct:
		out := reflect.New(v.Type()).Elem()
		out.Set(v)
		for i := 0; i < v.NumField(); i++ {
			if field := out.Field(i); field.CanSet() {
				field.Set(cloneValue(v.Field(i)))
			}
		}
		return out
	case reflect.Map:
		if v.IsNil() {
			return reflect.Zero(v.Type())
		}
		out := reflect.MakeMapWithSize(v.Type(), v.Len())
		iter := v.MapRange()
		for iter.Next() {
			out.SetMapIndex(iter.Key(), cloneValue(iter.Value()))
		}
		return out
	case reflect.Slice:
		if v.IsNil() {
			return reflect.Zero(v.Type())
		}
		out := reflect.MakeSlice(v.Type(), v.Len(), v.Len())
		for i := 0; i < v.Len(); i++ {
			out.Index(i).Set(cloneValue(v.Index(i)))
		}
		return out
	case reflect.Array:
		out := reflect.New(v.Type()).Elem()
		for i := 0; i < v.Len(); i++ {
			out.Index(i).Set(cloneValue(v.Index(i)))
		}
		return out
	default:
		out := reflect.New(v.Type()).Elem()
		out.Set(v)
		return out
	}
}
