package yaml

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/goccy/go-yaml"
	"github.com/goccy/go-yaml/ast"
	"github.com/goccy/go-yaml/parser"
	"github.com/goccy/go-yaml/printer"
	"github.com/goccy/go-yaml/token"
)

var errHeaderStyle = lipgloss.NewStyle().Bold(true)

// PathBuilder builds the [yaml.Path] of a node for [WithPath].
type PathBuilder = yaml.PathBuilder

// NewPathBuilder returns a new [PathBuilder].
func NewPathBuilder() *PathBuilder {
	return &PathBuilder{}
}

// ErrorWrapper applies a common set of [ErrorOpt]s to [Error]s.
type ErrorWrapper struct {
	Opts []ErrorOpt
}

// NewErrorWrapper creates a new [ErrorWrapper].
func NewErrorWrapper(opts ...ErrorOpt) *ErrorWrapper {
	return &ErrorWrapper{
		Opts: opts,
	}
}

// Wrap wraps an error with additional context for [Error]s.
// If the error isn't an [Error], it returns the original error unmodified.
func (ew *ErrorWrapper) Wrap(err error, opts ...ErrorOpt) error {
	if err == nil {
		return nil
	}

	var yamlErr *Error
	if errors.As(err, &yamlErr) {
		for _, opt := range ew.Opts {
			opt(yamlErr)
		}

		for _, opt := range opts {
			opt(yamlErr)
		}

		return yamlErr
	}

	return err
}

// Error represents a YAML error. It includes the original error, and either
// the [*yaml.Path] or the [*token.Token] where the error occurred. When the
// source is known, the error message includes the annotated source lines.
type Error struct {
	Err     error
	Path    *yaml.Path
	Token   *token.Token
	Source  []byte
	Colored bool
}

// NewError creates a new [Error].
func NewError(err error, opts ...ErrorOpt) *Error {
	e := &Error{Err: err}
	for _, opt := range opts {
		opt(e)
	}

	return e
}

// ErrorOpt configures an [Error].
type ErrorOpt func(e *Error)

// WithPath sets the path of the node that caused the error.
func WithPath(path *yaml.Path) ErrorOpt {
	return func(e *Error) {
		e.Path = path
	}
}

// WithToken sets the token that caused the error.
func WithToken(tk *token.Token) ErrorOpt {
	return func(e *Error) {
		e.Token = tk
	}
}

// WithSource sets the YAML source that the error refers to.
func WithSource(source []byte) ErrorOpt {
	return func(e *Error) {
		e.Source = source
	}
}

// WithColor enables ANSI colors in the annotated source.
func WithColor(colored bool) ErrorOpt {
	return func(e *Error) {
		e.Colored = colored
	}
}

func (e Error) Error() string {
	if e.Err == nil {
		return ""
	}
	if e.Path == nil && e.Token == nil {
		return e.Err.Error()
	}
	if e.Token == nil && e.Source == nil {
		return fmt.Sprintf("error at %s: %v", e.Path.String(), e.Err)
	}

	errMsg, srcErr := e.annotateSource()
	if srcErr != nil {
		slog.Debug("failed to annotate config with error",
			slog.String("path", e.Path.String()),
			slog.Any("error", srcErr),
		)

		return fmt.Sprintf("error at %s: %v", e.Path.String(), e.Err)
	}

	return errMsg
}

func (e Error) Unwrap() error {
	return e.Err
}

func (e Error) annotateSource() (string, error) {
	tk := e.Token
	if tk == nil {
		var err error

		tk, err = getTokenFromPath(e.Source, e.Path)
		if err != nil {
			return "", fmt.Errorf("get token from path: %w", err)
		}
	}

	header := fmt.Sprintf("[%d:%d] %v:", tk.Position.Line, tk.Position.Column, e.Err)
	if e.Colored {
		header = errHeaderStyle.Render(header)
	}

	var pp printer.Printer

	src := pp.PrintErrorToken(tk, e.Colored)

	return fmt.Sprintf("%s\n%s", header, strings.TrimRight(src, "\n")), nil
}

func getTokenFromPath(source []byte, path *yaml.Path) (*token.Token, error) {
	file, err := parser.ParseBytes(source, 0)
	if err != nil {
		return nil, fmt.Errorf("parse source bytes into ast.File: %w", err)
	}

	node, err := path.FilterFile(file)
	if err != nil {
		return nil, fmt.Errorf("filter from ast.File by YAMLPath: %w", err)
	}

	// FilterFile returns the value node; point at the key when there is one.
	keyToken := findKeyToken(file, path)
	if keyToken != nil {
		return keyToken, nil
	}

	return node.GetToken(), nil
}

// findKeyToken attempts to find the key token for the given path by looking
// in the parent node.
func findKeyToken(file *ast.File, path *yaml.Path) *token.Token {
	pathStr := path.String()

	lastDot := strings.LastIndex(pathStr, ".")
	lastBracket := strings.LastIndex(pathStr, "[")

	if lastDot == -1 && lastBracket == -1 {
		return nil
	}

	if lastDot <= lastBracket {
		// Sequence index, no key.
		return nil
	}

	parentPath, err := yaml.PathString(pathStr[:lastDot])
	if err != nil {
		return nil
	}

	parentNode, err := parentPath.FilterFile(file)
	if err != nil {
		return nil
	}

	lastSegment := pathStr[lastDot+1:]

	if mapping, ok := parentNode.(*ast.MappingNode); ok {
		for _, val := range mapping.Values {
			if val.Key.String() == lastSegment {
				return val.Key.GetToken()
			}
		}
	}

	return nil
}
