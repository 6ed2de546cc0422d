package lua

import (
	"slices"
	"strconv"
	"strings"

	glua "github.com/yuin/gopher-lua"
)

// fromLua converts a Lua value into environment data. It reports false for
// values that cannot be carried into a snapshot.
func fromLua(v glua.LValue, depth int) (any, bool) {
	switch val := v.(type) {
	case glua.LBool:
		return bool(val), true
	case glua.LNumber:
		return float64(val), true
	case glua.LString:
		return string(val), true
	case *glua.LTable:
		if depth >= maxDepth {
			return nil, false
		}
		return tableFromLua(val, depth+1), true
	}
	if v == glua.LNil {
		return nil, true
	}
	return nil, false
}

// tableFromLua turns a sequence into []any and anything else into a map with
// string keys (see mapKey).
func tableFromLua(tbl *glua.LTable, depth int) any {
	count := 0
	tbl.ForEach(func(_, _ glua.LValue) { count++ })

	if n := tbl.MaxN(); n > 0 && n == count {
		seq := make([]any, 0, n)
		for i := 1; i <= n; i++ {
			value, ok := fromLua(tbl.RawGetInt(i), depth)
			if !ok {
				value = nil
			}
			seq = append(seq, value)
		}
		return seq
	}

	out := make(map[string]any, count)
	tbl.ForEach(func(k, v glua.LValue) {
		key, ok := mapKey(k)
		if !ok {
			return
		}
		if value, ok := fromLua(v, depth); ok {
			out[key] = value
		}
	})
	return out
}

// toLua converts environment data back into Lua values.
func toLua(L *glua.LState, v any) glua.LValue {
	switch val := v.(type) {
	case nil:
		return glua.LNil
	case bool:
		return glua.LBool(val)
	case float64:
		return glua.LNumber(val)
	case int:
		return glua.LNumber(val)
	case int64:
		return glua.LNumber(val)
	case string:
		return glua.LString(val)
	case []any:
		tbl := L.NewTable()
		for i, item := range val {
			tbl.RawSetInt(i+1, toLua(L, item))
		}
		return tbl
	case map[string]any:
		tbl := L.NewTable()
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		for _, k := range keys {
			tbl.RawSet(luaKey(k), toLua(L, val[k]))
		}
		return tbl
	}
	return glua.LNil
}

// mapKey encodes a table key as a map key. Numeric keys become "[n]"; string
// keys that start with "[" get one more "[" so the two never collide.
func mapKey(k glua.LValue) (string, bool) {
	switch kv := k.(type) {
	case glua.LString:
		if strings.HasPrefix(string(kv), "[") {
			return "[" + string(kv), true
		}
		return string(kv), true
	case glua.LNumber:
		return "[" + kv.String() + "]", true
	}
	return "", false
}

// luaKey reverses mapKey.
func luaKey(k string) glua.LValue {
	if strings.HasPrefix(k, "[[") {
		return glua.LString(k[1:])
	}
	if inner, ok := strings.CutPrefix(k, "["); ok {
		if num, ok := strings.CutSuffix(inner, "]"); ok {
			if f, err := strconv.ParseFloat(num, 64); err == nil {
				return glua.LNumber(f)
			}
		}
	}
	return glua.LString(k)
}
