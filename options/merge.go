package options

import (
	"maps"
	"slices"
)

// Merge layers sources onto dst, key by key and left to right. An absent
// key takes the incoming value, two sequences concatenate, two mappings
// merge recursively, and anything else is overwritten by the incoming
// value. Incoming containers are copied, so dst never aliases a source.
// A nil dst is allocated.
func Merge(dst map[string]any, sources ...map[string]any) map[string]any {
	if dst == nil {
		dst = make(map[string]any)
	}
	for _, src := range sources {
		for key, incoming := range src {
			current, ok := dst[key]
			if !ok || current == nil {
				dst[key] = cloneValue(incoming)
				continue
			}
			dst[key] = mergeValue(current, incoming)
		}
	}
	return dst
}

func mergeValue(current, incoming any) any {
	switch cur := current.(type) {
	case []any:
		if in, ok := incoming.([]any); ok {
			return append(slices.Clone(cur), cloneSlice(in)...)
		}
	case []string:
		if in, ok := incoming.([]string); ok {
			return append(slices.Clone(cur), in...)
		}
	case map[string]any:
		if in, ok := incoming.(map[string]any); ok {
			return Merge(cur, in)
		}
	}
	return cloneValue(incoming)
}

func cloneValue(v any) any {
	switch value := v.(type) {
	case map[string]any:
		return Merge(make(map[string]any, len(value)), value)
	case []any:
		return cloneSlice(value)
	case []string:
		return slices.Clone(value)
	case map[string]string:
		return maps.Clone(value)
	default:
		return v
	}
}

func cloneSlice(s []any) []any {
	out := make([]any, len(s))
	for i, v := range s {
		out[i] = cloneValue(v)
	}
	return out
}
