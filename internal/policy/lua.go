package policy

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/Shopify/go-lua"

	"github.com/modelguard/guardian/pkg/api"
)

// Guard evaluates a Lua predicate against each action. The script sees
// two locals, action and params, and its result is truthy to allow.
// States are pooled and sandboxed per evaluation
type Guard struct {
	bytecode  []byte
	statePool chan *lua.State
}

const (
	luaStatePoolSize    = 10
	luaGlobalTableIndex = -2
	luaMapTableIndex    = -3
	luaGlobalTableName  = "_G"
)

const guardPrelude = "local action = select(1, ...)\n" +
	"local params = select(2, ...)\n"

var (
	ErrLuaLoad      = errors.New("lua load error")
	ErrLuaExecution = errors.New("lua execution error")
)

var luaExclude = [...]string{
	"io", "os", "debug", "package", "require", "dofile", "loadfile", "load",
}

// NewGuard compiles the guard script once, returning an error for
// invalid Lua
func NewGuard(script string) (*Guard, error) {
	if strings.TrimSpace(script) == "" {
		return nil, fmt.Errorf("%w: empty guard script", ErrLuaLoad)
	}

	L := lua.NewState()
	setupSandbox(L)

	if err := lua.LoadString(L, guardPrelude+script); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLuaLoad, err)
	}

	var buf bytes.Buffer
	if err := L.Dump(&buf); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLuaLoad, err)
	}

	return &Guard{
		bytecode:  buf.Bytes(),
		statePool: make(chan *lua.State, luaStatePoolSize),
	}, nil
}

// Evaluate runs the guard for one action and returns whether it is
// allowed
func (g *Guard) Evaluate(act *api.Action) (bool, error) {
	L := g.getState()
	defer g.returnState(L)

	setupSandbox(L)
	if err := L.Load(
		bytes.NewReader(g.bytecode), "guard", "b",
	); err != nil {
		return false, fmt.Errorf("%w: %w", ErrLuaLoad, err)
	}

	L.PushString(string(act.Kind))
	pushParams(L, act.Params)

	if err := L.ProtectedCall(2, 1, 0); err != nil {
		return false, fmt.Errorf("%w: %w", ErrLuaExecution, err)
	}

	result := L.ToBoolean(-1)
	L.Pop(1)
	return result, nil
}

func (g *Guard) getState() *lua.State {
	select {
	case L := <-g.statePool:
		return L
	default:
		return lua.NewState()
	}
}

func (g *Guard) returnState(L *lua.State) {
	L.SetTop(0)

	select {
	case g.statePool <- L:
	default:
	}
}

func setupSandbox(L *lua.State) {
	lua.OpenLibraries(L)
	L.Global(luaGlobalTableName)
	for _, name := range luaExclude {
		L.PushNil()
		L.SetField(luaGlobalTableIndex, name)
	}
	L.Pop(1)
}

func pushParams(L *lua.State, params api.Params) {
	L.CreateTable(0, len(params))
	for key, value := range params {
		L.PushString(key)
		pushValue(L, value)
		L.SetTable(luaMapTableIndex)
	}
}

func pushValue(L *lua.State, value any) {
	switch v := value.(type) {
	case string:
		L.PushString(v)
	case bool:
		L.PushBoolean(v)
	case int:
		L.PushInteger(v)
	case int64:
		L.PushInteger(int(v))
	case float64:
		L.PushNumber(v)
	case nil:
		L.PushNil()
	default:
		L.PushString(fmt.Sprintf("%v", v))
	}
}
