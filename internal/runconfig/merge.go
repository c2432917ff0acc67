// Package runconfig resolves the effective per-run configuration from
// three layers: system defaults, stored user preferences, and per-run
// overrides. Later layers win conflicts; nested objects merge
// recursively; arrays and primitives replace wholesale.
package runconfig

import "strings"

// DeepMerge merges override layers over base, left to right. The
// result is a fresh tree; inputs are never mutated. A nil layer is a
// no-op, and nil leaf values in a layer never clobber base values.
func DeepMerge(base map[string]any, layers ...map[string]any) map[string]any {
	out := cloneTree(base)
	for _, layer := range layers {
		out = mergeInto(out, layer)
	}
	return out
}

func mergeInto(dst, src map[string]any) map[string]any {
	if dst == nil {
		dst = map[string]any{}
	}
	for k, v := range src {
		if v == nil {
			continue
		}
		srcMap, srcIsMap := v.(map[string]any)
		dstMap, dstIsMap := dst[k].(map[string]any)
		if srcIsMap && dstIsMap {
			dst[k] = mergeInto(cloneTree(dstMap), srcMap)
			continue
		}
		if srcIsMap {
			dst[k] = cloneTree(srcMap)
			continue
		}
		dst[k] = v
	}
	return dst
}

func cloneTree(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		if sub, ok := v.(map[string]any); ok {
			out[k] = cloneTree(sub)
			continue
		}
		out[k] = v
	}
	return out
}

// Value looks up a dotted path in a config tree. It returns nil, not
// an error, for any missing segment or non-object intermediate.
func Value(cfg map[string]any, path string) any {
	cur := any(cfg)
	for _, seg := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur, ok = m[seg]
		if !ok {
			return nil
		}
	}
	return cur
}
