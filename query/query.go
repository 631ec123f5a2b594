// Package query evaluates row filters and skip predicates against plain
// records. Three engines are available: expr (default), CEL and goja
// JavaScript (built with the js_eval tag).
package query

import (
	"fmt"
	"time"
)

// Context carries the inputs of one evaluation.
type Context struct {
	// Record fields are exposed as top-level variables and under "record".
	Record   map[string]any
	Now      *time.Time
	Args     map[string]any
	Metadata map[string]any
	// Dataset labels errors and logs with the dataset being queried.
	Dataset string
}

func (ctx Context) withDefaultNow() Context {
	if ctx.Now != nil {
		return ctx
	}
	now := time.Now()
	ctx.Now = &now
	return ctx
}

func (ctx Context) timestamp() time.Time {
	ctx = ctx.withDefaultNow()
	return *ctx.Now
}

func (ctx Context) withDefaultMaps() Context {
	if ctx.Record == nil {
		ctx.Record = map[string]any{}
	}
	if ctx.Args == nil {
		ctx.Args = map[string]any{}
	}
	if ctx.Metadata == nil {
		ctx.Metadata = map[string]any{}
	}
	return ctx
}

func (ctx Context) withDefaults() Context {
	return ctx.withDefaultNow().withDefaultMaps()
}

// Evaluator runs expressions against a Context.
type Evaluator interface {
	Evaluate(ctx Context, expr string) (any, error)
	Compile(expr string) (Compiled, error)
}

// Compiled is a reusable expression program.
type Compiled interface {
	Evaluate(ctx Context) (any, error)
}

// Engine names the engine behind e.
func Engine(e Evaluator) string {
	switch v := e.(type) {
	case nil:
		return "unknown"
	case *exprEvaluator:
		return "expr"
	case *celEvaluator:
		return "cel"
	case *loggedEvaluator:
		return Engine(v.next)
	}
	if named, ok := e.(interface{ Engine() string }); ok {
		return named.Engine()
	}
	return "custom"
}

// Predicate compiles expr once and returns a function reporting whether a
// record satisfies it. Non-boolean results are errors.
func Predicate(e Evaluator, expr string) (func(Context) (bool, error), error) {
	if e == nil {
		return nil, ErrNoEvaluator
	}
	compiled, err := e.Compile(expr)
	if err != nil {
		return nil, err
	}
	engine := Engine(e)
	return func(ctx Context) (bool, error) {
		out, err := compiled.Evaluate(ctx)
		if err != nil {
			return false, err
		}
		ok, isBool := out.(bool)
		if !isBool {
			return false, wrapEvaluationError(engine, expr, ctx.Dataset,
				fmt.Errorf("expected bool result, got %T", out))
		}
		return ok, nil
	}, nil
}

// New returns the evaluator for engine: "expr" (also the empty string), "cel"
// or "js".
func New(engine string, cache ProgramCache, registry *FunctionRegistry) (Evaluator, error) {
	switch engine {
	case "", "expr":
		return NewExprEvaluator(ExprWithProgramCache(cache), ExprWithFunctionRegistry(registry)), nil
	case "cel":
		return NewCELEvaluator(CELWithProgramCache(cache), CELWithFunctionRegistry(registry)), nil
	case "js":
		if !JSAvailable() {
			return nil, fmt.Errorf("query: js engine requires the js_eval build tag")
		}
		return NewJSEvaluator(JSWithProgramCache(cache), JSWithFunctionRegistry(registry)), nil
	}
	return nil, fmt.Errorf("query: unknown engine %q", engine)
}
