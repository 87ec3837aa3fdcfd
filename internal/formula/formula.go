// Package formula validates and evaluates calculator formulas.
package formula

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"
	"unicode"

	"github.com/Knetic/govaluate"
)

var (
	ErrInvalid         = errors.New("formula is not valid")
	ErrMissingVariable = errors.New("missing variable")
	ErrNotNumeric      = errors.New("formula did not produce a number")
)

var functions = map[string]govaluate.ExpressionFunction{
	"sqrt":  unary(math.Sqrt),
	"abs":   unary(math.Abs),
	"sin":   unary(math.Sin),
	"cos":   unary(math.Cos),
	"tan":   unary(math.Tan),
	"ln":    unary(math.Log),
	"log":   unary(math.Log10),
	"exp":   unary(math.Exp),
	"floor": unary(math.Floor),
	"ceil":  unary(math.Ceil),
	"round": unary(math.Round),
	"pow": func(args ...interface{}) (interface{}, error) {
		if len(args) != 2 {
			return nil, fmt.Errorf("pow expects 2 arguments, got %d", len(args))
		}
		base, ok1 := args[0].(float64)
		exponent, ok2 := args[1].(float64)
		if !ok1 || !ok2 {
			return nil, ErrNotNumeric
		}
		return math.Pow(base, exponent), nil
	},
	"min": variadic(math.Min),
	"max": variadic(math.Max),
}

func unary(fn func(float64) float64) govaluate.ExpressionFunction {
	return func(args ...interface{}) (interface{}, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("expected 1 argument, got %d", len(args))
		}
		v, ok := args[0].(float64)
		if !ok {
			return nil, ErrNotNumeric
		}
		return fn(v), nil
	}
}

func variadic(fn func(a, b float64) float64) govaluate.ExpressionFunction {
	return func(args ...interface{}) (interface{}, error) {
		if len(args) == 0 {
			return nil, errors.New("expected at least 1 argument")
		}
		acc, ok := args[0].(float64)
		if !ok {
			return nil, ErrNotNumeric
		}
		for _, arg := range args[1:] {
			v, ok := arg.(float64)
			if !ok {
				return nil, ErrNotNumeric
			}
			acc = fn(acc, v)
		}
		return acc, nil
	}
}

// Normalize strips all whitespace, which is how formulas are stored.
func Normalize(expr string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, expr)
}

func parse(expr string) (*govaluate.EvaluableExpression, error) {
	parsed, err := govaluate.NewEvaluableExpressionWithFunctions(expr, functions)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return parsed, nil
}

// Variables lists the distinct variable names referenced by expr, in order
// of first appearance.
func Variables(expr string) ([]string, error) {
	parsed, err := parse(Normalize(expr))
	if err != nil {
		return nil, err
	}
	var vars []string
	for _, v := range parsed.Vars() {
		if !slices.Contains(vars, v) {
			vars = append(vars, v)
		}
	}
	return vars, nil
}

// Validate checks that expr parses and, when declared is non-empty, that it
// references only declared variables.
func Validate(expr string, declared []string) error {
	vars, err := Variables(expr)
	if err != nil {
		return err
	}
	if len(declared) == 0 {
		return nil
	}
	for _, v := range vars {
		if !slices.Contains(declared, v) {
			return fmt.Errorf("%w: undeclared variable %q", ErrInvalid, v)
		}
	}
	return nil
}

// Evaluate computes expr with the given variable values.
func Evaluate(expr string, values map[string]float64) (float64, error) {
	parsed, err := parse(Normalize(expr))
	if err != nil {
		return 0, err
	}

	params := make(map[string]interface{}, len(values))
	for _, v := range parsed.Vars() {
		value, ok := values[v]
		if !ok {
			return 0, fmt.Errorf("%w: %s", ErrMissingVariable, v)
		}
		params[v] = value
	}

	result, err := parsed.Evaluate(params)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	n, ok := result.(float64)
	if !ok || math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, ErrNotNumeric
	}
	return n, nil
}
