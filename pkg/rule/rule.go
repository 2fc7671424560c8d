package rule

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"slices"

	"github.com/google/cel-go/cel"

	"github.com/macropower/resc/pkg/expr"
	"github.com/macropower/resc/pkg/props"
	"github.com/macropower/resc/pkg/template"
)

// AnonymousName is the name given to rules declared without one.
const AnonymousName = "<anonymous rule>"

var (
	// ErrInvalidPattern is returned when a match pattern does not compile.
	ErrInvalidPattern = errors.New("invalid match pattern")
	// ErrInvalidGuard is returned when a guard expression does not compile.
	ErrInvalidGuard = errors.New("invalid guard expression")
	// ErrMissingQueue is returned when a rule has no queue template.
	ErrMissingQueue = errors.New("missing queue template")
	// ErrNoMatch is returned by [Rule.Expand] when the task does not match.
	ErrNoMatch = errors.New("task does not match rule")
	// ErrFetch wraps failures of a [Source].
	ErrFetch = errors.New("fetch properties")
	// ErrGuard wraps failures to evaluate a guard expression.
	ErrGuard = errors.New("evaluate guard")
)

// Source produces additional property maps for a rule.
//
// Fetch receives the properties extracted from the task, and returns zero or
// more independent property maps. An empty result means the source
// contributed nothing. Implementations must not modify the input map.
type Source interface {
	Fetch(ctx context.Context, p props.Map) ([]props.Map, error)
}

// SourceFunc adapts a function to the [Source] interface.
type SourceFunc func(ctx context.Context, p props.Map) ([]props.Map, error)

// Fetch implements [Source].
func (f SourceFunc) Fetch(ctx context.Context, p props.Map) ([]props.Map, error) {
	return f(ctx, p)
}

// Result is an output descriptor produced by a rule.
type Result struct {
	// Set is nil when the rule declares no set template.
	Set   *string `json:"set,omitempty"`
	Task  string  `json:"task"`
	Queue string  `json:"queue"`
}

// Rule is a compiled match pattern, a list of property sources, and the
// templates used to render results. A Rule is immutable once created, and is
// safe for concurrent use.
type Rule struct {
	pattern *regexp.Regexp
	guard   cel.Program
	task    *template.Template
	set     *template.Template
	name    string
	when    string
	sources []Source
	queue   template.Template
}

// Opt configures a [Rule].
type Opt func(*Rule)

// WithName sets the name of the rule.
func WithName(name string) Opt {
	return func(r *Rule) {
		r.name = name
	}
}

// WithTask sets the task template. Without it, the input task is passed
// through unchanged.
func WithTask(t string) Opt {
	return func(r *Rule) {
		r.task = template.Ptr(t)
	}
}

// WithSet sets the optional set template.
func WithSet(t string) Opt {
	return func(r *Rule) {
		r.set = template.Ptr(t)
	}
}

// WithSources appends property sources to the rule.
func WithSources(sources ...Source) Opt {
	return func(r *Rule) {
		r.sources = append(r.sources, sources...)
	}
}

// WithWhen sets a CEL guard expression. Results whose merged properties make
// the guard evaluate to false are dropped.
func WithWhen(expression string) Opt {
	return func(r *Rule) {
		r.when = expression
	}
}

// New creates a new [Rule] matching tasks with the given pattern, and
// rendering the destination queue with the given queue template.
func New(pattern, queue string, opts ...Opt) (*Rule, error) {
	r := &Rule{
		name:  AnonymousName,
		queue: template.New(queue),
	}
	for _, opt := range opts {
		opt(r)
	}

	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("rule %q: %w: %w", r.name, ErrInvalidPattern, err)
	}

	r.pattern = re

	if queue == "" {
		return nil, fmt.Errorf("rule %q: %w", r.name, ErrMissingQueue)
	}

	if r.when != "" {
		env, err := expr.NewGuardEnvironment()
		if err != nil {
			return nil, fmt.Errorf("rule %q: %w", r.name, err)
		}

		program, err := env.Compile(r.when)
		if err != nil {
			return nil, fmt.Errorf("rule %q: %w: %w", r.name, ErrInvalidGuard, err)
		}

		r.guard = program
	}

	return r, nil
}

// MustNew creates a new rule and panics if there's an error.
func MustNew(pattern, queue string, opts ...Opt) *Rule {
	r, err := New(pattern, queue, opts...)
	if err != nil {
		panic(err)
	}

	return r
}

// Name returns the name of the rule.
func (r *Rule) Name() string {
	return r.name
}

// Pattern returns the source of the match pattern.
func (r *Rule) Pattern() string {
	return r.pattern.String()
}

// When returns the guard expression, if any.
func (r *Rule) When() string {
	return r.when
}

// Task returns the task template, or nil when the task is passed through.
func (r *Rule) Task() *template.Template {
	return r.task
}

// Queue returns the queue template.
func (r *Rule) Queue() template.Template {
	return r.queue
}

// Set returns the set template, or nil when the rule declares no set.
func (r *Rule) Set() *template.Template {
	return r.set
}

// Sources returns the number of property sources of the rule.
func (r *Rule) Sources() int {
	return len(r.sources)
}

// Groups returns the names of the named capture groups of the pattern.
func (r *Rule) Groups() []string {
	var names []string
	for _, name := range r.pattern.SubexpNames() {
		if name != "" {
			names = append(names, name)
		}
	}

	return names
}

// Unresolved returns the placeholders of the task, queue, and set templates
// that no named group can provide. Placeholders of rules with sources cannot
// be checked before expansion, so nil is returned for them.
func (r *Rule) Unresolved() []string {
	if len(r.sources) > 0 {
		return nil
	}

	known := props.Map{}
	for _, name := range r.Groups() {
		known[name] = ""
	}

	var missing []string

	add := func(t *template.Template) {
		if t == nil {
			return
		}

		for _, name := range t.Missing(known) {
			if !slices.Contains(missing, name) {
				missing = append(missing, name)
			}
		}
	}

	add(r.task)
	add(&r.queue)
	add(r.set)

	return missing
}

// Match reports whether the pattern matches anywhere in the task.
func (r *Rule) Match(task string) bool {
	return r.pattern.MatchString(task)
}

// Properties returns the properties extracted from the named capture groups
// that participated in the match. It returns false if the task does not match.
func (r *Rule) Properties(task string) (props.Map, bool) {
	idx := r.pattern.FindStringSubmatchIndex(task)
	if idx == nil {
		return nil, false
	}

	p := props.Map{}
	for i, name := range r.pattern.SubexpNames() {
		if name == "" || idx[2*i] < 0 {
			continue
		}

		p[name] = task[idx[2*i]:idx[2*i+1]]
	}

	return p, true
}

// Expand renders the results of the rule for the given task.
//
// Without sources, exactly one result is rendered from the extracted
// properties. With sources, each source is queried in order with the
// extracted properties, and one result is rendered per fetched map, after
// overlaying the extracted properties on top of it. If any source fails, no
// results are returned.
//
// Expand returns [ErrNoMatch] if the task does not match the rule.
func (r *Rule) Expand(ctx context.Context, task string) ([]Result, error) {
	base, ok := r.Properties(task)
	if !ok {
		return nil, fmt.Errorf("rule %q: %w: %q", r.name, ErrNoMatch, task)
	}

	if len(r.sources) == 0 {
		res, keep, err := r.result(task, base)
		if err != nil || !keep {
			return nil, err
		}

		return []Result{res}, nil
	}

	var results []Result
	for i, src := range r.sources {
		fetched, err := src.Fetch(ctx, base)
		if err != nil {
			return nil, fmt.Errorf("rule %q: source %d: %w: %w", r.name, i, ErrFetch, err)
		}

		for _, f := range fetched {
			res, keep, err := r.result(task, f.Overlay(base))
			if err != nil {
				return nil, err
			}
			if keep {
				results = append(results, res)
			}
		}
	}

	return results, nil
}

// result renders a single [Result] from merged properties. It returns false
// if the guard rejected the properties.
func (r *Rule) result(task string, p props.Map) (Result, bool, error) {
	if r.guard != nil {
		ok, err := expr.EvalBool(r.guard, map[string]any{
			expr.VarProps: map[string]string(p),
			expr.VarTask:  task,
		})
		if err != nil {
			return Result{}, false, fmt.Errorf("rule %q: %w: %w", r.name, ErrGuard, err)
		}
		if !ok {
			return Result{}, false, nil
		}
	}

	res := Result{
		Task:  task,
		Queue: r.queue.Render(p),
	}
	if r.task != nil {
		res.Task = r.task.Render(p)
	}
	if r.set != nil {
		s := r.set.Render(p)
		res.Set = &s
	}

	return res, true, nil
}

func (r *Rule) String() string {
	return fmt.Sprintf("%s: %s -> %s", r.name, r.pattern.String(), r.queue.Raw())
}
