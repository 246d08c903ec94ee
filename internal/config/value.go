package config

import "strings"

// ValueKind tags the variant held by a Value (spec §9 Design Notes: "a
// recursive tagged union (Null|Bool|Int|Float|String|List|Map[str→Value])").
type ValueKind int

const (
	KindNull ValueKind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindList
	KindMap
)

// Value is the dynamic, JSON-scalar-or-object shape every config entry and
// every env-var-derived override is represented as. Path lookups traverse
// it structurally, which is what sensitive-path filtering and env-var
// nesting (spec §6, `__` separator) both need.
type Value struct {
	Kind ValueKind
	Bool bool
	Int  int64
	Flt  float64
	Str  string
	List []Value
	Map  map[string]Value
}

func Null() Value                 { return Value{Kind: KindNull} }
func Bool(b bool) Value            { return Value{Kind: KindBool, Bool: b} }
func Int(i int64) Value            { return Value{Kind: KindInt, Int: i} }
func Float(f float64) Value        { return Value{Kind: KindFloat, Flt: f} }
func String(s string) Value        { return Value{Kind: KindString, Str: s} }
func List(items ...Value) Value    { return Value{Kind: KindList, List: items} }
func Map(m map[string]Value) Value { return Value{Kind: KindMap, Map: m} }

// Path splits a dotted path ("a.b.c") into its string-key sequence.
func Path(dotted string) []string {
	if dotted == "" {
		return nil
	}
	return strings.Split(dotted, ".")
}

// Get traverses v by path, returning (Value, true) if every segment
// resolves through a Map.
func (v Value) Get(path []string) (Value, bool) {
	cur := v
	for _, seg := range path {
		if cur.Kind != KindMap {
			return Null(), false
		}
		next, ok := cur.Map[seg]
		if !ok {
			return Null(), false
		}
		cur = next
	}
	return cur, true
}

// Without returns a deep copy of v with every path in sensitivePaths
// removed. Paths that don't resolve are silently ignored — the invariant
// is "absent after filtering", which a missing path already satisfies.
func (v Value) Without(sensitivePaths []string) Value {
	out := v.clone()
	for _, p := range sensitivePaths {
		out.remove(Path(p))
	}
	return out
}

func (v Value) clone() Value {
	switch v.Kind {
	case KindList:
		items := make([]Value, len(v.List))
		for i, it := range v.List {
			items[i] = it.clone()
		}
		return Value{Kind: KindList, List: items}
	case KindMap:
		m := make(map[string]Value, len(v.Map))
		for k, val := range v.Map {
			m[k] = val.clone()
		}
		return Value{Kind: KindMap, Map: m}
	default:
		return v
	}
}

// remove deletes the value at path in place, if it is a map all the way
// down to the final segment.
func (v *Value) remove(path []string) {
	if len(path) == 0 || v.Kind != KindMap {
		return
	}
	if len(path) == 1 {
		delete(v.Map, path[0])
		return
	}
	child, ok := v.Map[path[0]]
	if !ok || child.Kind != KindMap {
		return
	}
	child.remove(path[1:])
	v.Map[path[0]] = child
}

// HasPath reports whether path resolves to an existing value — used by
// Set's validation that sensitivePaths point at existing paths.
func (v Value) HasPath(path []string) bool {
	_, ok := v.Get(path)
	return ok
}

// MergeInto overlays src's map entries onto dst, recursively for nested
// maps, and returns the result. Scalars/lists in src fully replace dst's
// value at that key. Used to apply the precedence chain in §6 (base file
// -> brand -> env -> store -> remote -> OS env, low to high).
func MergeInto(dst, src Value) Value {
	if src.Kind == KindNull {
		return dst
	}
	if dst.Kind != KindMap || src.Kind != KindMap {
		return src
	}
	out := dst.clone()
	if out.Map == nil {
		out.Map = make(map[string]Value)
	}
	for k, v := range src.Map {
		if existing, ok := out.Map[k]; ok {
			out.Map[k] = MergeInto(existing, v)
		} else {
			out.Map[k] = v
		}
	}
	return out
}
