package config

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/macropower/resc/api"
	"github.com/macropower/resc/api/v1beta1"
	"github.com/macropower/resc/pkg/yaml"
)

// ErrInvalidConfig is returned when a configuration cannot be loaded.
var ErrInvalidConfig = errors.New("invalid configuration")

// Validator validates configuration data against a schema.
type Validator interface {
	Validate(data any) error
}

// LoaderOpt configures a [Loader].
type LoaderOpt func(*loaderOptions)

type loaderOptions struct {
	validator Validator
	colored   bool
}

// WithValidator sets a custom validator.
func WithValidator(v Validator) LoaderOpt {
	return func(o *loaderOptions) {
		o.validator = v
	}
}

// WithColor enables colored source annotations in errors.
func WithColor(colored bool) LoaderOpt {
	return func(o *loaderOptions) {
		o.colored = colored
	}
}

// Loader is a generic configuration loader that handles validation,
// YAML parsing, and error formatting for any config type T.
type Loader[T v1beta1.Object] struct {
	validator Validator
	newFunc   func() T
	yamlError *yaml.ErrorWrapper
	data      []byte
}

// NewLoaderFromBytes creates a [Loader] from byte data.
// The newFunc parameter is the constructor for type T (e.g., configs.New).
func NewLoaderFromBytes[T v1beta1.Object](
	data []byte,
	newFunc func() T,
	defaultValidator Validator,
	opts ...LoaderOpt,
) *Loader[T] {
	options := &loaderOptions{
		validator: defaultValidator,
	}
	for _, opt := range opts {
		opt(options)
	}

	return &Loader[T]{
		data:      data,
		newFunc:   newFunc,
		validator: options.validator,
		yamlError: yaml.NewErrorWrapper(
			yaml.WithSource(data),
			yaml.WithColor(options.colored),
		),
	}
}

// NewLoaderFromFile creates a [Loader] from a file path.
func NewLoaderFromFile[T v1beta1.Object](
	path string,
	newFunc func() T,
	defaultValidator Validator,
	opts ...LoaderOpt,
) (*Loader[T], error) {
	data, err := api.ReadFile(path)
	if err != nil {
		return nil, err //nolint:wrapcheck // Return the original error.
	}

	return NewLoaderFromBytes(data, newFunc, defaultValidator, opts...), nil
}

// Validate validates the configuration data against the schema.
func (l *Loader[T]) Validate() error {
	var anyConfig any

	dec := yaml.NewDecoder(bytes.NewReader(l.data))

	err := dec.Decode(&anyConfig)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, l.yamlError.Wrap(err))
	}

	if l.validator != nil {
		err = l.validator.Validate(anyConfig)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidConfig, l.yamlError.Wrap(err))
		}
	}

	return nil
}

// Load parses the configuration, applies defaults, and validates the result.
// It does not validate against the schema; call [Loader.Validate] first.
//
//nolint:ireturn // Generic type parameter return is intentional.
func (l *Loader[T]) Load() (T, error) {
	var zero T

	cfg := l.newFunc()

	dec := yaml.NewDecoder(bytes.NewReader(l.data))

	err := dec.Decode(cfg)
	if err != nil {
		return zero, fmt.Errorf("%w: %w", ErrInvalidConfig, l.yamlError.Wrap(err))
	}

	cfg.EnsureDefaults()

	err = cfg.Validate()
	if err != nil {
		return zero, fmt.Errorf("%w: %w", ErrInvalidConfig, l.yamlError.Wrap(err))
	}

	return cfg, nil
}
