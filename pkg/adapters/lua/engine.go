// Package lua implements the execution engine collaborator on top of
// gopher-lua.
//
// Every unit of work runs in a fresh interpreter state: the environment's
// bindings are loaded as globals, the unit runs, and user globals holding data
// (nil, booleans, numbers, strings and tables of those) are harvested back
// into the environment. Functions and userdata do not survive between units;
// they cannot be handed to a snapshot process.
package lua

import (
	"context"
	"encoding/json"
	"io"
	"strings"

	"github.com/aretw0/rewind/pkg/domain"
	glua "github.com/yuin/gopher-lua"
	"github.com/yuin/gopher-lua/parse"
)

// Name is the registry name of this engine.
const Name = "lua"

// maxDepth bounds table nesting when converting values, which also breaks
// self-referencing tables.
const maxDepth = 64

// Engine implements ports.Engine for Lua source.
type Engine struct{}

// New creates a Lua engine.
func New() *Engine {
	return &Engine{}
}

// Name implements ports.Engine.
func (e *Engine) Name() string {
	return Name
}

// Apply runs payload against env. An expression (anything that compiles after
// "return ") has its values echoed into the output, as an interactive
// interpreter would. Effects made before a runtime error persist.
func (e *Engine) Apply(ctx context.Context, env *domain.Environment, payload string) (string, error) {
	L := glua.NewState()
	defer L.Close()
	L.SetContext(ctx)

	reserved := globalNames(L)

	var out strings.Builder
	L.SetGlobal("print", L.NewFunction(capturePrint(&out)))
	if osLib, ok := L.GetGlobal("os").(*glua.LTable); ok {
		// The Worker process must outlive user code.
		osLib.RawSetString("exit", glua.LNil)
	}

	for name, value := range env.Bindings {
		if _, ok := reserved[name]; ok {
			continue
		}
		L.SetGlobal(name, toLua(L, value))
	}

	fn, err := L.LoadString("return " + payload)
	isExpr := err == nil
	if !isExpr {
		fn, err = L.LoadString(payload)
		if err != nil {
			return "", &domain.ExecutionError{Message: strings.TrimSpace(err.Error())}
		}
	}

	L.Push(fn)
	runErr := L.PCall(0, glua.MultRet, nil)
	if runErr == nil && isExpr {
		echo(L, &out)
	}

	harvest(L, env, reserved)

	if runErr != nil {
		return out.String(), &domain.ExecutionError{Message: strings.TrimSpace(runErr.Error())}
	}
	return out.String(), nil
}

// Incomplete reports whether src fails to parse only because input ended
// early, e.g. an unterminated function or table constructor.
func (e *Engine) Incomplete(src string) bool {
	_, err := parse.Parse(strings.NewReader(src), "<repl>")
	return err != nil && strings.Contains(err.Error(), "EOF")
}

func globalNames(L *glua.LState) map[string]struct{} {
	names := make(map[string]struct{})
	L.G.Global.ForEach(func(k, _ glua.LValue) {
		if s, ok := k.(glua.LString); ok {
			names[string(s)] = struct{}{}
		}
	})
	return names
}

func harvest(L *glua.LState, env *domain.Environment, reserved map[string]struct{}) {
	next := make(map[string]any)
	L.G.Global.ForEach(func(k, v glua.LValue) {
		name, ok := k.(glua.LString)
		if !ok {
			return
		}
		if _, skip := reserved[string(name)]; skip {
			return
		}
		if value, ok := fromLua(v, 0); ok {
			next[string(name)] = value
		}
	})
	env.Bindings = next
}

func echo(L *glua.LState, w io.Writer) {
	top := L.GetTop()
	if top == 0 {
		return
	}
	parts := make([]string, 0, top)
	for i := 1; i <= top; i++ {
		parts = append(parts, format(L, L.Get(i)))
	}
	L.SetTop(0)
	io.WriteString(w, strings.Join(parts, "\t")+"\n")
}

func capturePrint(w io.Writer) glua.LGFunction {
	return func(L *glua.LState) int {
		top := L.GetTop()
		for i := 1; i <= top; i++ {
			if i > 1 {
				io.WriteString(w, "\t")
			}
			io.WriteString(w, L.ToStringMeta(L.Get(i)).String())
		}
		io.WriteString(w, "\n")
		return 0
	}
}

func format(L *glua.LState, v glua.LValue) string {
	if tbl, ok := v.(*glua.LTable); ok {
		if value, ok := fromLua(tbl, 0); ok {
			if data, err := json.Marshal(value); err == nil {
				return string(data)
			}
		}
	}
	return L.ToStringMeta(v).String()
}
