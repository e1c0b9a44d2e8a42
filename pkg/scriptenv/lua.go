package scriptenv

import (
	"math"
	"strconv"
	"strings"
	"sync"

	lua "github.com/yuin/gopher-lua"
	"github.com/yuin/gopher-lua/parse"

	srvErrors "github.com/openwatch/netmon-server/pkg/errors"
)

// LuaEnvironment implements Environment on gopher-lua. Compiled scripts are
// shared function prototypes; every Run executes in a fresh interpreter
// state, so handles are safe for concurrent use.
type LuaEnvironment struct {
	mu      sync.RWMutex
	library map[string]*luaScript
}

type luaScript struct {
	proto *lua.FunctionProto
}

func NewLuaEnvironment() *LuaEnvironment {
	return &LuaEnvironment{
		library: make(map[string]*luaScript),
	}
}

// Compile parses and compiles source into a reusable handle.
func (e *LuaEnvironment) Compile(source string) (Script, error) {
	chunk, err := parse.Parse(strings.NewReader(source), "script")
	if err != nil {
		return nil, srvErrors.NewScriptCompileError(err.Error())
	}
	proto, err := lua.Compile(chunk, "script")
	if err != nil {
		return nil, srvErrors.NewScriptCompileError(err.Error())
	}
	return &luaScript{proto: proto}, nil
}

// Register compiles source and stores it in the library under name,
// replacing any previous script with that name.
func (e *LuaEnvironment) Register(name, source string) error {
	s, err := e.Compile(source)
	if err != nil {
		return err
	}
	e.mu.Lock()
	e.library[name] = s.(*luaScript)
	e.mu.Unlock()
	return nil
}

// Run executes a compiled script with bindings exposed as globals.
func (e *LuaEnvironment) Run(script Script, bindings map[string]any) (any, error) {
	s, ok := script.(*luaScript)
	if !ok || s == nil {
		return nil, srvErrors.NewScriptRuntimeError("not a compiled script handle")
	}

	state := lua.NewState()
	defer state.Close()

	for k, v := range bindings {
		state.SetGlobal(k, toLValue(state, v))
	}

	fn := state.NewFunctionFromProto(s.proto)
	state.Push(fn)
	if err := state.PCall(0, lua.MultRet, nil); err != nil {
		return nil, srvErrors.NewScriptRuntimeError(err.Error())
	}

	top := state.GetTop()
	if top == 0 {
		return nil, nil
	}
	return fromLValue(state.Get(-1)), nil
}

// RunNamed executes a library script by name.
func (e *LuaEnvironment) RunNamed(name string, bindings map[string]any) (any, error) {
	e.mu.RLock()
	s, ok := e.library[name]
	e.mu.RUnlock()
	if !ok {
		return nil, srvErrors.NewScriptNotFoundError(name)
	}
	return e.Run(s, bindings)
}

func toLValue(state *lua.LState, v any) lua.LValue {
	switch t := v.(type) {
	case nil:
		return lua.LNil
	case string:
		return lua.LString(t)
	case bool:
		return lua.LBool(t)
	case int:
		return lua.LNumber(t)
	case int64:
		return lua.LNumber(t)
	case uint32:
		return lua.LNumber(t)
	case float64:
		return lua.LNumber(t)
	case map[string]any:
		tbl := state.NewTable()
		for k, val := range t {
			state.SetField(tbl, k, toLValue(state, val))
		}
		return tbl
	default:
		return lua.LNil
	}
}

func fromLValue(v lua.LValue) any {
	switch t := v.(type) {
	case *lua.LNilType:
		return nil
	case lua.LString:
		return string(t)
	case lua.LBool:
		return bool(t)
	case lua.LNumber:
		return float64(t)
	case *lua.LTable:
		m := make(map[string]any)
		t.ForEach(func(k, val lua.LValue) {
			m[k.String()] = fromLValue(val)
		})
		return m
	default:
		return v.String()
	}
}

func formatNumber(f float64) string {
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}
