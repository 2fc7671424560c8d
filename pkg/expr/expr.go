package expr

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"
)

const (
	// VarProps is the name of the properties variable.
	VarProps = "props"
	// VarTask is the name of the input task variable.
	VarTask = "task"
)

// ErrNotBool is returned when a guard does not evaluate to a boolean.
var ErrNotBool = errors.New("expression did not return a boolean")

// Protect CEL environment creation and compilation from concurrent access.
var celMutex sync.Mutex

// Environment provides a thread-safe wrapper around a [*cel.Env].
type Environment struct {
	env *cel.Env
}

// NewEnvironment creates a new [Environment].
func NewEnvironment(opts ...cel.EnvOption) (*Environment, error) {
	env, err := createEnvironment(opts...)
	if err != nil {
		return nil, err
	}

	return &Environment{env: env}, nil
}

// MustNewEnvironment creates a new [Environment] and panics on error.
func MustNewEnvironment(opts ...cel.EnvOption) *Environment {
	env, err := NewEnvironment(opts...)
	if err != nil {
		panic(err)
	}

	return env
}

// NewGuardEnvironment creates an [Environment] declaring the `props` and
// `task` variables available to rule guards.
func NewGuardEnvironment() (*Environment, error) {
	return NewEnvironment(
		cel.Variable(VarProps, cel.MapType(cel.StringType, cel.StringType)),
		cel.Variable(VarTask, cel.StringType),
	)
}

// createEnvironment creates the [*cel.Env] using the global mutex.
func createEnvironment(opts ...cel.EnvOption) (*cel.Env, error) {
	celMutex.Lock()
	defer celMutex.Unlock()

	opts = append(opts, cel.Lib(&lib{}))

	celEnv, err := cel.NewEnv(opts...)
	if err != nil {
		return nil, fmt.Errorf("create CEL environment: %w", err)
	}

	return celEnv, nil
}

// Compile compiles a CEL expression and returns a program.
//
//nolint:ireturn // Following CEL's function signature.
func (e *Environment) Compile(expression string) (cel.Program, error) {
	celMutex.Lock()
	defer celMutex.Unlock()

	ast, issues := e.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile expression: %w", issues.Err())
	}

	program, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("create program: %w", err)
	}

	return program, nil
}

// EvalBool evaluates a compiled program and requires a boolean result.
func EvalBool(program cel.Program, vars map[string]any) (bool, error) {
	result, _, err := program.Eval(vars)
	if err != nil {
		return false, fmt.Errorf("evaluate expression: %w", err)
	}

	b, ok := result.Value().(bool)
	if !ok {
		return false, fmt.Errorf("%w: got %s", ErrNotBool, result.Type().TypeName())
	}

	return b, nil
}
