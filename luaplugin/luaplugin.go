// Package luaplugin loads plugins written in Lua and exposes their hook
// declarations as plughost event subscriptions. A plugin script declares a
// global `plugin` table:
//
//	plugin = {
//	    name = "acme/comment-widget",
//	    version = "1.2.0",
//	    description = "renders the comment box",
//	    hooks = {
//	        { event = "view.article.footer", priority = 10, handler = function(ctx)
//	            return "<div class='comments'>" .. ctx.article .. "</div>"
//	        end },
//	    },
//	}
//
// Handlers receive the decoded event payload as a table and contribute a
// fragment by returning a string (or any other value); returning nil
// contributes nothing.
//
// Scripts run in a sandboxed state: only the base, table, string, and
// math libraries are opened, and file or code loading primitives are
// removed.
package luaplugin

import (
	"context"
	"errors"
	"fmt"
	"sync"

	lua "github.com/yuin/gopher-lua"

	"github.com/plughost/plughost"
)

// Package errors
var (
	ErrNoPluginTable  = errors.New("script does not declare a plugin table")
	ErrNameMissing    = errors.New("plugin table is missing name")
	ErrVersionMissing = errors.New("plugin table is missing version")
	ErrHookEventEmpty = errors.New("plugin hook is missing event")
	ErrHookHandlerNil = errors.New("plugin hook is missing handler function")
	ErrPluginClosed   = errors.New("plugin is closed")
	ErrHandlerFailed  = errors.New("lua handler failed")
)

// Plugin is a loaded Lua plugin. It implements plughost.EventSubscriber,
// so it registers like any other component:
//
//	plugin, _ := luaplugin.Load("plugins/comments/init.lua")
//	registry.RegisterSubscriber(plugin)
type Plugin struct {
	name        string
	version     string
	description string
	hooks       []hookDecl

	// gopher-lua states are not goroutine-safe; the mutex serializes
	// handler invocations from concurrent dispatch calls.
	mu     sync.Mutex
	state  *lua.LState
	closed bool
}

type hookDecl struct {
	event    string
	priority int
	fn       *lua.LFunction
}

// Load runs the script at path in a sandboxed state and reads its plugin
// declaration.
func Load(path string) (*Plugin, error) {
	state := newSandboxedState()

	if err := state.DoFile(path); err != nil {
		state.Close()
		return nil, fmt.Errorf("failed to run plugin script %s: %w", path, err)
	}

	plugin, err := fromDeclaration(state)
	if err != nil {
		state.Close()
		return nil, fmt.Errorf("invalid plugin script %s: %w", path, err)
	}
	return plugin, nil
}

// LoadString is Load for an in-memory script. Used mostly in tests.
func LoadString(script string) (*Plugin, error) {
	state := newSandboxedState()

	if err := state.DoString(script); err != nil {
		state.Close()
		return nil, fmt.Errorf("failed to run plugin script: %w", err)
	}

	plugin, err := fromDeclaration(state)
	if err != nil {
		state.Close()
		return nil, err
	}
	return plugin, nil
}

// newSandboxedState opens only the safe libraries and strips the
// code-loading primitives a hook handler has no business calling.
func newSandboxedState() *lua.LState {
	state := lua.NewState(lua.Options{SkipOpenLibs: true})

	for _, lib := range []struct {
		name string
		fn   lua.LGFunction
	}{
		{lua.BaseLibName, lua.OpenBase},
		{lua.TabLibName, lua.OpenTable},
		{lua.StringLibName, lua.OpenString},
		{lua.MathLibName, lua.OpenMath},
	} {
		state.Push(state.NewFunction(lib.fn))
		state.Push(lua.LString(lib.name))
		state.Call(1, 0)
	}

	for _, name := range []string{"dofile", "loadfile", "load", "loadstring"} {
		state.SetGlobal(name, lua.LNil)
	}

	return state
}

// fromDeclaration reads the global plugin table out of a state that has
// already run its script.
func fromDeclaration(state *lua.LState) (*Plugin, error) {
	declared, ok := state.GetGlobal("plugin").(*lua.LTable)
	if !ok {
		return nil, ErrNoPluginTable
	}

	plugin := &Plugin{state: state}

	if name, ok := tableString(declared, "name"); ok {
		plugin.name = name
	} else {
		return nil, ErrNameMissing
	}
	if version, ok := tableString(declared, "version"); ok {
		plugin.version = version
	} else {
		return nil, ErrVersionMissing
	}
	if description, ok := tableString(declared, "description"); ok {
		plugin.description = description
	}

	hooks, ok := declared.RawGetString("hooks").(*lua.LTable)
	if !ok {
		return plugin, nil
	}

	var parseErr error
	hooks.ForEach(func(_, value lua.LValue) {
		if parseErr != nil {
			return
		}
		entry, ok := value.(*lua.LTable)
		if !ok {
			return
		}

		event, ok := tableString(entry, "event")
		if !ok || event == "" {
			parseErr = ErrHookEventEmpty
			return
		}
		fn, ok := entry.RawGetString("handler").(*lua.LFunction)
		if !ok {
			parseErr = fmt.Errorf("%w: %s", ErrHookHandlerNil, event)
			return
		}

		priority := 0
		if n, ok := entry.RawGetString("priority").(lua.LNumber); ok {
			priority = int(n)
		}

		plugin.hooks = append(plugin.hooks, hookDecl{event: event, priority: priority, fn: fn})
	})
	if parseErr != nil {
		return nil, parseErr
	}

	return plugin, nil
}

// Name returns the plugin's distributing name as declared in the script.
func (p *Plugin) Name() string { return p.name }

// Version returns the declared version.
func (p *Plugin) Version() string { return p.version }

// Description returns the declared description.
func (p *Plugin) Description() string { return p.description }

// Subscriptions implements plughost.EventSubscriber. Each declared hook
// becomes one subscription whose handler marshals the event payload into
// a Lua table, calls the script function, and converts the return value
// back to Go.
func (p *Plugin) Subscriptions() []plughost.EventSubscription {
	subs := make([]plughost.EventSubscription, 0, len(p.hooks))
	for _, hook := range p.hooks {
		fn := hook.fn
		subs = append(subs, plughost.EventSubscription{
			EventName: hook.event,
			Priority:  hook.priority,
			Handler: func(ctx context.Context, event plughost.PluginEvent) (interface{}, error) {
				return p.call(ctx, fn, event)
			},
		})
	}
	return subs
}

func (p *Plugin) call(ctx context.Context, fn *lua.LFunction, event plughost.PluginEvent) (interface{}, error) {
	data, err := plughost.EventData(event)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, ErrPluginClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.state.SetContext(ctx)
	err = p.state.CallByParam(lua.P{
		Fn:      fn,
		NRet:    1,
		Protect: true,
	}, toLua(p.state, data))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrHandlerFailed, err)
	}

	ret := p.state.Get(-1)
	p.state.Pop(1)
	return toGo(ret), nil
}

// Close releases the underlying Lua state. Handlers invoked after Close
// fail with ErrPluginClosed.
func (p *Plugin) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}
	p.closed = true
	p.state.Close()
}

func tableString(t *lua.LTable, key string) (string, bool) {
	if s, ok := t.RawGetString(key).(lua.LString); ok {
		return string(s), true
	}
	return "", false
}

// toLua converts a decoded payload value into a Lua value.
func toLua(state *lua.LState, value interface{}) lua.LValue {
	switch v := value.(type) {
	case nil:
		return lua.LNil
	case bool:
		return lua.LBool(v)
	case string:
		return lua.LString(v)
	case int:
		return lua.LNumber(v)
	case int64:
		return lua.LNumber(v)
	case float64:
		return lua.LNumber(v)
	case []interface{}:
		table := state.NewTable()
		for i, item := range v {
			table.RawSetInt(i+1, toLua(state, item))
		}
		return table
	case map[string]interface{}:
		table := state.NewTable()
		for key, item := range v {
			table.RawSetString(key, toLua(state, item))
		}
		return table
	default:
		return lua.LString(fmt.Sprintf("%v", v))
	}
}

// toGo converts a handler return value back to Go. Strings stay strings
// so they can serve directly as hook fragments.
func toGo(value lua.LValue) interface{} {
	switch v := value.(type) {
	case *lua.LNilType:
		return nil
	case lua.LBool:
		return bool(v)
	case lua.LString:
		return string(v)
	case lua.LNumber:
		return float64(v)
	case *lua.LTable:
		// Array-style tables become slices, everything else a map.
		if v.Len() > 0 {
			result := make([]interface{}, 0, v.Len())
			for i := 1; i <= v.Len(); i++ {
				result = append(result, toGo(v.RawGetInt(i)))
			}
			return result
		}
		result := make(map[string]interface{})
		v.ForEach(func(key, item lua.LValue) {
			result[key.String()] = toGo(item)
		})
		return result
	default:
		return value.String()
	}
}
