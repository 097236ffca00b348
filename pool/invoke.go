package pool

import (
	"reflect"
)

var errorType = reflect.TypeFor[error]()

type callKind uint8

const (
	callFunc callKind = iota
	callMethod
)

// Callable wraps a function together with the way it is invoked.
//
// Func(fn) is called directly with the dispatch arguments. Method(fn) takes a
// method expression such as (*Counter).Add and is called with an instance as
// its first argument. Bare functions passed to Dispatch or DispatchWithCallback
// behave like Func; a method value (counter.Add) is already bound and is a
// plain Func as well.
type Callable struct {
	fn   any
	kind callKind
}

// Func marks fn as a directly invoked callable.
func Func(fn any) Callable {
	return Callable{fn: fn, kind: callFunc}
}

// Method marks fn as a method expression whose receiver is the first
// dispatch argument.
func Method(fn any) Callable {
	return Callable{fn: fn, kind: callMethod}
}

// IsMethod reports whether c expects an instance argument.
func (c Callable) IsMethod() bool {
	return c.kind == callMethod
}

// IsNil reports whether c holds no function, including a typed nil func.
func (c Callable) IsNil() bool {
	return isNil(c.fn)
}

func toCallable(v any) Callable {
	switch c := v.(type) {
	case Callable:
		return c
	case *Callable:
		if c == nil {
			return Callable{}
		}
		return *c
	}
	return Func(v)
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Func, reflect.Pointer, reflect.Interface, reflect.Map,
		reflect.Slice, reflect.Chan, reflect.UnsafePointer:
		return rv.IsNil()
	}
	return false
}

func nilable(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Func, reflect.Pointer, reflect.Interface, reflect.Map,
		reflect.Slice, reflect.Chan, reflect.UnsafePointer:
		return true
	}
	return false
}

// outShape describes what a function returns: an optional value followed by
// an optional error.
type outShape struct {
	value  reflect.Type
	hasErr bool
}

func shapeOf(role string, ft reflect.Type) (outShape, error) {
	switch ft.NumOut() {
	case 0:
		return outShape{}, nil
	case 1:
		if ft.Out(0) == errorType {
			return outShape{hasErr: true}, nil
		}
		return outShape{value: ft.Out(0)}, nil
	case 2:
		if ft.Out(1) != errorType {
			return outShape{}, badCallable(role, "second result must be error, got %s", ft.Out(1))
		}
		return outShape{value: ft.Out(0), hasErr: true}, nil
	}
	return outShape{}, badCallable(role, "too many results: %s", ft)
}

// split turns the raw results of a call into a value and an error.
func (s outShape) split(out []reflect.Value) (value reflect.Value, err error) {
	if s.hasErr {
		if e := out[len(out)-1]; !e.IsNil() {
			err = e.Interface().(error)
		}
	}
	if s.value != nil {
		value = out[0]
	}
	return value, err
}

func paramType(ft reflect.Type, i int) reflect.Type {
	if n := ft.NumIn(); ft.IsVariadic() && i >= n-1 {
		return ft.In(n - 1).Elem()
	}
	return ft.In(i)
}

// checkArgs validates that ft accepts arguments of the given types. A nil
// entry stands for an untyped nil.
func checkArgs(role string, ft reflect.Type, argTypes []reflect.Type) error {
	n, in := len(argTypes), ft.NumIn()
	if ft.IsVariadic() {
		if n < in-1 {
			return badCallable(role, "want at least %d arguments, got %d", in-1, n)
		}
	} else if n != in {
		return badCallable(role, "want %d arguments, got %d", in, n)
	}

	for i, at := range argTypes {
		pt := paramType(ft, i)
		if at == nil {
			if !nilable(pt) {
				return badCallable(role, "argument %d: nil is not a valid %s", i, pt)
			}
			continue
		}
		if !at.AssignableTo(pt) {
			return badCallable(role, "argument %d: %s is not assignable to %s", i, at, pt)
		}
	}
	return nil
}

func typesOf(args []any) []reflect.Type {
	types := make([]reflect.Type, len(args))
	for i, a := range args {
		if a != nil {
			types[i] = reflect.TypeOf(a)
		}
	}
	return types
}

// argValues converts args for a call to ft. checkArgs must have accepted them.
func argValues(ft reflect.Type, args []any) []reflect.Value {
	vals := make([]reflect.Value, len(args))
	for i, a := range args {
		if a == nil {
			vals[i] = reflect.Zero(paramType(ft, i))
			continue
		}
		vals[i] = reflect.ValueOf(a)
	}
	return vals
}

// boundCall is a function with its arguments, ready to run on a worker.
type boundCall struct {
	fn    reflect.Value
	args  []reflect.Value
	shape outShape
}

func funcValue(role string, fn any) (reflect.Value, error) {
	fv := reflect.ValueOf(fn)
	if fv.Kind() != reflect.Func {
		return reflect.Value{}, badCallable(role, "%T is not a function", fn)
	}
	return fv, nil
}

func bind(role string, fn any, args []any) (*boundCall, error) {
	fv, err := funcValue(role, fn)
	if err != nil {
		return nil, err
	}

	ft := fv.Type()
	shape, err := shapeOf(role, ft)
	if err != nil {
		return nil, err
	}
	if err := checkArgs(role, ft, typesOf(args)); err != nil {
		return nil, err
	}
	return &boundCall{fn: fv, args: argValues(ft, args), shape: shape}, nil
}

func (b *boundCall) call() (reflect.Value, error) {
	return b.shape.split(b.fn.Call(b.args))
}

// resolveWork binds fn to args and returns a closure producing an R. Plain
// no-argument functions returning R skip reflection entirely.
func resolveWork[R any](c Callable, args []any) (func() (R, error), error) {
	if c.IsMethod() && len(args) == 0 {
		return nil, badCallable("callable", "method needs an instance as first argument")
	}
	if work, ok := fastWork[R](c.fn, args); ok {
		return work, nil
	}

	b, err := bind("callable", c.fn, args)
	if err != nil {
		return nil, err
	}

	rt := reflect.TypeFor[R]()
	switch {
	case b.shape.value == nil:
		if rt.Kind() != reflect.Interface && rt != reflect.TypeFor[struct{}]() {
			return nil, badCallable("callable", "returns no value, cannot produce %s", rt)
		}
	case !b.shape.value.AssignableTo(rt):
		return nil, badCallable("callable", "result %s is not assignable to %s", b.shape.value, rt)
	}

	return func() (R, error) {
		v, err := b.call()
		return valueAs[R](v), err
	}, nil
}

func fastWork[R any](fn any, args []any) (func() (R, error), bool) {
	if len(args) != 0 {
		return nil, false
	}

	// error comes before R so that func() error always means failure.
	switch f := fn.(type) {
	case func() (R, error):
		return f, true
	case func() error:
		return func() (R, error) {
			var zero R
			return zero, f()
		}, true
	case func() R:
		return func() (R, error) { return f(), nil }, true
	}
	return nil, false
}

func valueAs[R any](v reflect.Value) R {
	var zero R
	if !v.IsValid() {
		return zero
	}
	if v.Kind() == reflect.Interface && v.IsNil() {
		return zero
	}
	if r, ok := v.Interface().(R); ok {
		return r
	}

	// Assignable without being identical, e.g. a named slice type into R.
	out := reflect.New(reflect.TypeFor[R]()).Elem()
	out.Set(v)
	return out.Interface().(R)
}

// callbackCall invokes a completion callback with an optional instance and
// the callable's result.
type callbackCall struct {
	fn       reflect.Value
	prefix   []reflect.Value
	hasValue bool
	shape    outShape
}

// bindCallback prepares cb. prefix holds the instance for method callbacks;
// result is the type the callable produces, nil when it produces nothing.
func bindCallback(cb any, prefix []any, result reflect.Type) (*callbackCall, error) {
	fv, err := funcValue("callback", cb)
	if err != nil {
		return nil, err
	}

	ft := fv.Type()
	shape, err := shapeOf("callback", ft)
	if err != nil {
		return nil, err
	}
	if shape.value != nil {
		return nil, badCallable("callback", "must return nothing or error, got %s", ft)
	}

	argTypes := typesOf(prefix)
	if result != nil {
		argTypes = append(argTypes, result)
	}
	if err := checkArgs("callback", ft, argTypes); err != nil {
		return nil, err
	}

	return &callbackCall{
		fn:       fv,
		prefix:   argValues(ft, prefix),
		hasValue: result != nil,
		shape:    shape,
	}, nil
}

func (c *callbackCall) call(result reflect.Value) error {
	args := c.prefix
	if c.hasValue {
		args = append(args[:len(args):len(args)], result)
	}
	_, err := c.shape.split(c.fn.Call(args))
	return err
}
