package script

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"go.starlark.net/starlark"
)

// ErrScriptNotFound is returned when no script file matches the requested name.
var ErrScriptNotFound = errors.New("script not found")

// Engine executes Starlark analysis scripts with the ticker and
// indicator primitives exposed as builtins.
type Engine struct {
	logger  zerolog.Logger
	builtin starlark.StringDict
}

// Context provides runtime data for script execution
type Context struct {
	Symbol   string
	Provider string
	Closes   []float64
	Volumes  []float64
	Config   map[string]interface{}
}

// Verdict represents the outcome of an analysis script
type Verdict struct {
	Action string // "buy", "sell", "hold"
	Score  float64
	Reason string
}

// NewEngine creates a new script engine
func NewEngine(logger zerolog.Logger) *Engine {
	engine := &Engine{
		logger: logger.With().Str("component", "script_engine").Logger(),
	}
	engine.setupBuiltins()
	return engine
}

// Execute loads and runs a script by name. Scripts live as
// <name>.star in the scripts directory or the working directory.
func (e *Engine) Execute(scriptName string, ctx *Context) (*Verdict, error) {
	src, err := e.loadScript(scriptName)
	if err != nil {
		return nil, fmt.Errorf("failed to load script %s: %w", scriptName, err)
	}
	return e.ExecuteSource(scriptName, src, ctx)
}

// ExecuteSource runs script source directly with the given context
func (e *Engine) ExecuteSource(scriptName, src string, ctx *Context) (*Verdict, error) {
	thread := &starlark.Thread{
		Name: fmt.Sprintf("script-%s", scriptName),
	}

	globals := e.prepareGlobals(ctx)

	result, err := starlark.ExecFile(thread, scriptName, src, globals)
	if err != nil {
		return nil, fmt.Errorf("script execution failed: %w", err)
	}

	// Prefer an analyze() callback when the script defines one
	if analyzeFn, ok := result["analyze"]; ok {
		if fn, ok := analyzeFn.(*starlark.Function); ok {
			callResult, err := starlark.Call(thread, fn, nil, nil)
			if err != nil {
				return nil, fmt.Errorf("analyze callback failed: %w", err)
			}
			if dict, ok := callResult.(*starlark.Dict); ok {
				verdict := e.extractVerdictFromDict(dict)
				e.logVerdict(scriptName, ctx, verdict)
				return verdict, nil
			}
		}
	}

	// Fallback to top-level globals
	verdict := e.extractVerdict(result)
	e.logVerdict(scriptName, ctx, verdict)
	return verdict, nil
}

func (e *Engine) logVerdict(scriptName string, ctx *Context, verdict *Verdict) {
	e.logger.Debug().
		Str("script", scriptName).
		Str("symbol", ctx.Symbol).
		Str("action", verdict.Action).
		Float64("score", verdict.Score).
		Str("reason", verdict.Reason).
		Msg("Script executed")
}

// loadScript loads a script by name
func (e *Engine) loadScript(name string) (string, error) {
	scriptPath := filepath.Join("scripts", fmt.Sprintf("%s.star", name))
	if data, err := os.ReadFile(scriptPath); err == nil {
		return string(data), nil
	}

	rootPath := fmt.Sprintf("%s.star", name)
	if data, err := os.ReadFile(rootPath); err == nil {
		return string(data), nil
	}

	return "", fmt.Errorf("%w: %s", ErrScriptNotFound, name)
}

// prepareGlobals creates the global variables for script execution
func (e *Engine) prepareGlobals(ctx *Context) starlark.StringDict {
	globals := make(starlark.StringDict)

	for k, v := range e.builtin {
		globals[k] = v
	}

	globals["symbol"] = starlark.String(ctx.Symbol)
	globals["provider"] = starlark.String(ctx.Provider)
	globals["close"] = floatsToStarlark(ctx.Closes)
	globals["volume"] = floatsToStarlark(ctx.Volumes)
	globals["config"] = mapToStarlark(ctx.Config)

	return globals
}

// extractVerdict reads the verdict from top-level script globals
func (e *Engine) extractVerdict(result starlark.StringDict) *Verdict {
	verdict := &Verdict{Action: "hold"}

	if action, ok := result["action"]; ok {
		if s, ok := action.(starlark.String); ok {
			verdict.Action = string(s)
		}
	}
	if score, ok := result["score"]; ok {
		if f, ok := score.(starlark.Float); ok {
			verdict.Score = float64(f)
		}
	}
	if reason, ok := result["reason"]; ok {
		if s, ok := reason.(starlark.String); ok {
			verdict.Reason = string(s)
		}
	}

	return verdict
}

// extractVerdictFromDict reads the verdict from a returned dict
func (e *Engine) extractVerdictFromDict(dict *starlark.Dict) *Verdict {
	verdict := &Verdict{Action: "hold"}

	if action, found, _ := dict.Get(starlark.String("action")); found {
		if s, ok := action.(starlark.String); ok {
			verdict.Action = string(s)
		}
	}
	if score, found, _ := dict.Get(starlark.String("score")); found {
		if f, ok := score.(starlark.Float); ok {
			verdict.Score = float64(f)
		}
	}
	if reason, found, _ := dict.Get(starlark.String("reason")); found {
		if s, ok := reason.(starlark.String); ok {
			verdict.Reason = string(s)
		}
	}

	return verdict
}

// Helper functions for data conversion

func mapToStarlark(m map[string]interface{}) *starlark.Dict {
	dict := starlark.NewDict(len(m))
	for k, v := range m {
		var starlarkValue starlark.Value
		switch val := v.(type) {
		case string:
			starlarkValue = starlark.String(val)
		case int:
			starlarkValue = starlark.MakeInt(val)
		case float64:
			starlarkValue = starlark.Float(val)
		case bool:
			starlarkValue = starlark.Bool(val)
		default:
			starlarkValue = starlark.String(fmt.Sprintf("%v", val))
		}
		dict.SetKey(starlark.String(k), starlarkValue)
	}
	return dict
}

func floatsToStarlark(values []float64) *starlark.List {
	list := starlark.NewList(nil)
	for _, v := range values {
		list.Append(starlark.Float(v))
	}
	return list
}

func starlarkToFloats(value starlark.Value) ([]float64, error) {
	list, ok := value.(*starlark.List)
	if !ok {
		return nil, fmt.Errorf("expected a list of numbers")
	}

	result := make([]float64, 0, list.Len())
	for i := 0; i < list.Len(); i++ {
		switch v := list.Index(i).(type) {
		case starlark.Float:
			result = append(result, float64(v))
		case starlark.Int:
			n, _ := v.Int64()
			result = append(result, float64(n))
		default:
			return nil, fmt.Errorf("list element %d is not a number", i)
		}
	}
	return result, nil
}
