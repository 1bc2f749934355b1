package calc

import (
	"errors"
	"fmt"

	"github.com/bluele/gcache"
	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/safing/deltatx/record"
)

const programCacheSize = 256

var programCache = gcache.New(programCacheSize).LRU().Build()

// Expression returns a calculated field that evaluates an expr expression.
// All fields of the effective view are available as variables, unknown
// variables evaluate to nil.
//
// Example: `now().Year() - born`.
func Expression(source string) (Field, error) {
	program, err := compile(source)
	if err != nil {
		return nil, err
	}

	return func(view record.Reader) (interface{}, error) {
		return expr.Run(program, Env(view))
	}, nil
}

// MustExpression is like Expression, but panics if the expression does not compile.
func MustExpression(source string) Field {
	fn, err := Expression(source)
	if err != nil {
		panic(err)
	}
	return fn
}

// Env returns the fields of the view as an expression environment.
func Env(view record.Reader) map[string]interface{} {
	keys := view.Keys()
	env := make(map[string]interface{}, len(keys))
	for _, key := range keys {
		if value, ok := view.Get(key); ok {
			env[key] = value
		}
	}
	return env
}

func compile(source string) (*vm.Program, error) {
	cached, err := programCache.Get(source)
	if err == nil {
		return cached.(*vm.Program), nil
	}
	if !errors.Is(err, gcache.KeyNotFoundError) {
		return nil, err
	}

	program, err := expr.Compile(source, expr.AllowUndefinedVariables())
	if err != nil {
		return nil, fmt.Errorf("calc: failed to compile %q: %w", source, err)
	}
	_ = programCache.Set(source, program)
	return program, nil
}
