package spreadsheet

import (
	"fmt"
	"slices"
	"strings"
)

// ArgType is a declared argument type of a function
type ArgType string

const (
	ArgNumber  ArgType = "NUMBER"
	ArgString  ArgType = "STRING"
	ArgBoolean ArgType = "BOOLEAN"
	ArgAny     ArgType = "ANY"
	ArgRange   ArgType = "RANGE"
)

// Arg describes one argument of a function
type Arg struct {
	Name        string
	Description string
	Types       []ArgType
	Optional    bool
	Repeating   bool
	Default     Primitive
}

// ComputeFunc receives the arguments coerced to their declared types. a
// RANGE argument arrives as a Range. async functions return a *Future.
type ComputeFunc func(args ...Primitive) (Primitive, error)

// FunctionSpec declares a function that formulas can call
type FunctionSpec struct {
	Description string
	Args        []Arg
	Returns     []ArgType
	Compute     ComputeFunc
	// Async functions return a *Future from Compute
	Async bool
	// Volatile functions are recomputed on every flush
	Volatile bool
	// AcceptsErrors functions receive error values instead of having them
	// propagated on their behalf
	AcceptsErrors bool
}

// arity returns the minimum and maximum argument count, -1 for unbounded
func (s *FunctionSpec) arity() (int, int) {
	minArgs := 0
	for _, a := range s.Args {
		if !a.Optional {
			minArgs++
		}
	}
	if n := len(s.Args); n > 0 && s.Args[n-1].Repeating {
		return minArgs, -1
	}
	return minArgs, len(s.Args)
}

func (s *FunctionSpec) argAt(i int) Arg {
	if i < len(s.Args) {
		return s.Args[i]
	}
	return s.Args[len(s.Args)-1]
}

// coerceArgs applies defaults, propagates error values and converts each
// scalar to its declared type. a non-nil error value is the call result.
func (s *FunctionSpec) coerceArgs(name string, args []Primitive) ([]Primitive, *SpreadsheetError) {
	for i := len(args); i < len(s.Args); i++ {
		if s.Args[i].Default == nil || s.Args[i].Repeating {
			break
		}
		args = append(args, s.Args[i].Default)
	}

	out := make([]Primitive, len(args))
	for i, v := range args {
		if errVal, ok := v.(*SpreadsheetError); ok {
			if !s.AcceptsErrors {
				return nil, errVal
			}
			out[i] = errVal
			continue
		}
		arg := s.argAt(i)
		coerced, errVal := arg.coerce(name, v)
		if errVal != nil {
			return nil, errVal
		}
		out[i] = coerced
	}
	return out, nil
}

func (a Arg) accepts(t ArgType) bool {
	return slices.Contains(a.Types, t)
}

// coerce converts v to the argument's declared type. when more than one
// scalar type is declared the value is passed as is.
func (a Arg) coerce(fnName string, v Primitive) (Primitive, *SpreadsheetError) {
	if r, ok := v.(Range); ok {
		if !a.accepts(ArgRange) && !a.accepts(ArgAny) {
			return nil, NewSpreadsheetError(ErrorCodeError,
				fmt.Sprintf("Function %s expects the parameter '%s' to be a single value", fnName, a.Name))
		}
		return r, nil
	}
	if a.accepts(ArgAny) {
		return v, nil
	}

	var scalar []ArgType
	for _, t := range a.Types {
		if t != ArgRange {
			scalar = append(scalar, t)
		}
	}
	if len(scalar) == 0 {
		return nil, NewSpreadsheetError(ErrorCodeError,
			fmt.Sprintf("Function %s expects the parameter '%s' to be a range", fnName, a.Name))
	}
	if len(scalar) > 1 {
		return v, nil
	}

	switch scalar[0] {
	case ArgNumber:
		num, ok := toNumber(v)
		if !ok {
			return nil, NewSpreadsheetError(ErrorCodeError,
				fmt.Sprintf("Function %s expects the parameter '%s' to be a number", fnName, a.Name))
		}
		return num, nil
	case ArgBoolean:
		b, ok := toBoolean(v)
		if !ok {
			return nil, NewSpreadsheetError(ErrorCodeError,
				fmt.Sprintf("Function %s expects the parameter '%s' to be a boolean", fnName, a.Name))
		}
		return b, nil
	case ArgString:
		return toString(v), nil
	}
	return v, nil
}

// invoke runs a synchronous compute and normalizes its failure into an
// error value
func (s *FunctionSpec) invoke(args []Primitive) (Primitive, error) {
	result, err := s.Compute(args...)
	if err != nil {
		return nil, asSpreadsheetError(err)
	}
	return result, nil
}

// FunctionRegistry holds the functions formulas can call. names are
// case-insensitive and stored upper-cased.
type FunctionRegistry struct {
	functions map[string]*FunctionSpec
}

// NewFunctionRegistry creates an empty registry
func NewFunctionRegistry() *FunctionRegistry {
	return &FunctionRegistry{functions: make(map[string]*FunctionSpec)}
}

// Register validates the argument declaration and adds the function
func (r *FunctionRegistry) Register(name string, spec FunctionSpec) error {
	upper := strings.ToUpper(strings.TrimSpace(name))
	if upper == "" {
		return NewApplicationError(InvalidArgument, "function name cannot be empty")
	}
	if _, exists := r.functions[upper]; exists {
		return NewApplicationError(AlreadyExists, fmt.Sprintf("function %s is already registered", upper))
	}
	if spec.Compute == nil {
		return NewApplicationError(InvalidArgument, fmt.Sprintf("function %s has no compute", upper))
	}

	seenOptional := false
	for i, arg := range spec.Args {
		if arg.Repeating && i != len(spec.Args)-1 {
			return NewApplicationError(InvalidArgument,
				fmt.Sprintf("function %s: repeating argument '%s' must be the last argument", upper, arg.Name))
		}
		if arg.Optional {
			seenOptional = true
		} else if seenOptional {
			return NewApplicationError(InvalidArgument,
				fmt.Sprintf("function %s: required argument '%s' cannot follow an optional argument", upper, arg.Name))
		}
		if len(arg.Types) == 0 {
			return NewApplicationError(InvalidArgument,
				fmt.Sprintf("function %s: argument '%s' declares no type", upper, arg.Name))
		}
	}

	registered := spec
	r.functions[upper] = &registered
	return nil
}

// MustRegister is Register for startup code, it panics on a bad declaration
func (r *FunctionRegistry) MustRegister(name string, spec FunctionSpec) {
	if err := r.Register(name, spec); err != nil {
		panic(err)
	}
}

// Get looks a function up by name
func (r *FunctionRegistry) Get(name string) (*FunctionSpec, bool) {
	spec, ok := r.functions[strings.ToUpper(name)]
	return spec, ok
}

// Names returns the registered names in order
func (r *FunctionRegistry) Names() []string {
	names := make([]string, 0, len(r.functions))
	for name := range r.functions {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
