package automation

import (
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/nerrad567/gray-logic-node/internal/session"
)

// Context is the message that fired a trigger.
type Context struct {
	Topic   string
	Payload string

	// JSON is the decoded payload for JSON triggers, nil otherwise.
	JSON session.JSONObject
}

// env returns the variables visible to expressions.
func (c Context) env() map[string]any {
	obj := map[string]any{}
	if c.JSON != nil {
		obj = map[string]any(c.JSON)
	}
	return map[string]any{
		"topic":   c.Topic,
		"payload": c.Payload,
		"json":    obj,
	}
}

// compileEnv is the type environment expressions are checked against.
var compileEnv = Context{}.env()

type valueKind uint8

const (
	kindConst valueKind = iota
	kindFunc
	kindExpr
)

// Value is a field of an action: a constant, a function of the Context, or
// a compiled expression. The zero Value resolves to the zero T.
type Value[T any] struct {
	kind     valueKind
	constant T
	fn       func(Context) T
	program  *vm.Program
	source   string
}

// Const returns a Value that always resolves to v.
func Const[T any](v T) Value[T] {
	return Value[T]{kind: kindConst, constant: v}
}

// Func returns a Value computed by fn each time it is resolved.
func Func[T any](fn func(Context) T) Value[T] {
	if fn == nil {
		return Value[T]{}
	}
	return Value[T]{kind: kindFunc, fn: fn}
}

// Expr compiles source into a Value. Booleans and integers are checked at
// compile time where the expression's type is known.
func Expr[T any](source string) (Value[T], error) {
	opts := []expr.Option{expr.Env(compileEnv)}

	var zero T
	switch any(zero).(type) {
	case bool:
		opts = append(opts, expr.AsBool())
	case byte, int:
		opts = append(opts, expr.AsInt())
	}

	program, err := expr.Compile(source, opts...)
	if err != nil {
		return Value[T]{}, fmt.Errorf("%w: %q: %v", ErrInvalidExpression, source, err)
	}
	return Value[T]{kind: kindExpr, program: program, source: source}, nil
}

// MustExpr is like Expr but panics on error. For tests and static tables.
func MustExpr[T any](source string) Value[T] {
	v, err := Expr[T](source)
	if err != nil {
		panic(err)
	}
	return v
}

// Resolve computes the value for ctx.
func (v Value[T]) Resolve(ctx Context) (T, error) {
	switch v.kind {
	case kindFunc:
		return v.fn(ctx), nil
	case kindExpr:
		out, err := expr.Run(v.program, ctx.env())
		if err != nil {
			var zero T
			return zero, fmt.Errorf("%w: %q: %v", ErrEvaluation, v.source, err)
		}
		return convert[T](out, v.source)
	default:
		return v.constant, nil
	}
}

// String describes the value for config dumps.
func (v Value[T]) String() string {
	switch v.kind {
	case kindFunc:
		return "<func>"
	case kindExpr:
		return "expr(" + v.source + ")"
	default:
		return fmt.Sprint(v.constant)
	}
}

// convert turns an expression result into T. Non-string results are
// formatted when T is string; integers are range-checked for byte.
func convert[T any](out any, source string) (T, error) {
	var zero T
	if out == nil {
		return zero, nil
	}
	if v, ok := out.(T); ok {
		return v, nil
	}

	switch p := any(&zero).(type) {
	case *string:
		*p = fmt.Sprint(out)
		return zero, nil
	case *byte:
		n, ok := toInt(out)
		if !ok || n < 0 || n > 255 {
			return zero, fmt.Errorf("%w: %q: %v is not a byte", ErrEvaluation, source, out)
		}
		*p = byte(n)
		return zero, nil
	case *int:
		n, ok := toInt(out)
		if !ok {
			return zero, fmt.Errorf("%w: %q: %v is not an integer", ErrEvaluation, source, out)
		}
		*p = int(n)
		return zero, nil
	}
	return zero, fmt.Errorf("%w: %q: got %T, want %T", ErrEvaluation, source, out, zero)
}

func toInt(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int64:
		return n, true
	case float64:
		if n == float64(int64(n)) {
			return int64(n), true
		}
	}
	return 0, false
}
