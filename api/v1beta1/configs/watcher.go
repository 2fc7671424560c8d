package configs

import (
	"cmp"
	"errors"
	"fmt"
	"time"

	"github.com/macropower/resc/pkg/fetch"
	"github.com/macropower/resc/pkg/rule"
	"github.com/macropower/resc/pkg/yaml"
)

// TakenSuffix is appended to the input queue to name the default taken queue.
const TakenSuffix = "/taken"

var (
	errFetchKind    = errors.New("exactly one of url or static must be set")
	errFetchReturns = errors.New("returns is required with url")
)

// Watcher binds a list of rules to one input queue.
type Watcher struct {
	// InputQueue is the Redis list tasks are popped from.
	InputQueue string `json:"inputQueue" jsonschema:"required,minLength=1,title=Input Queue"`
	// TakenQueue is the Redis list holding tasks while they are processed.
	// Defaults to the input queue followed by "/taken".
	TakenQueue string `json:"takenQueue,omitempty" jsonschema:"title=Taken Queue"`
	// Rules are evaluated in order; every matching rule is applied.
	Rules []*Rule `json:"rules,omitempty" jsonschema:"title=Rules"`
}

// EnsureDefaults sets the taken queue and rule names.
func (w *Watcher) EnsureDefaults() {
	if w.TakenQueue == "" {
		w.TakenQueue = w.InputQueue + TakenSuffix
	}

	for _, r := range w.Rules {
		if r != nil && r.Name == "" {
			r.Name = rule.AnonymousName
		}
	}
}

// Rule declares how matching tasks are rewritten.
type Rule struct {
	// Make declares the templates of produced tasks.
	Make *Make `json:"make" jsonschema:"required,title=Make"`
	// Name identifies the rule in logs and events.
	Name string `json:"name,omitempty" jsonschema:"title=Name"`
	// On is a regular expression matched against tasks. Named groups become
	// properties.
	On string `json:"on" jsonschema:"required,title=Match Pattern"`
	// When is an optional CEL expression over `props` and `task`. Results for
	// which it evaluates to false are dropped.
	When string `json:"when,omitempty" jsonschema:"title=Guard"`
	// Fetch lists property sources. Each fetched property map produces one
	// task, with the properties of the match taking precedence.
	Fetch []*Fetch `json:"fetch,omitempty" jsonschema:"title=Fetch"`

	compiled *rule.Rule
}

// FetchError reports an invalid entry of [Rule.Fetch].
type FetchError struct {
	Err   error
	Rule  string
	Index int
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("invalid fetch for rule %q: %v", e.Rule, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Make declares the templates rendered for each result.
type Make struct {
	// Task is the template of the produced task. When omitted, the input task
	// is forwarded unchanged.
	Task *string `json:"task,omitempty" jsonschema:"title=Task"`
	// Set is the template of a Redis set used to deduplicate produced tasks.
	Set *string `json:"set,omitempty" jsonschema:"title=Set"`
	// Queue is the template of the destination Redis list.
	Queue string `json:"queue" jsonschema:"required,minLength=1,title=Queue"`
}

// Fetch declares a property source. Exactly one of URL or Static is set.
type Fetch struct {
	// Retries overrides the default number of request retries.
	Retries *int `json:"retries,omitempty" jsonschema:"minimum=0,title=Retries"`
	// Static lists fixed property maps. Values may reference properties.
	Static []map[string]string `json:"static,omitempty" jsonschema:"title=Static Properties"`
	// URL is the template of a JSON endpoint.
	URL string `json:"url,omitempty" jsonschema:"title=URL"`
	// Returns names the property receiving each returned element.
	Returns string `json:"returns,omitempty" jsonschema:"title=Returns"`
	// Path is a gjson path selecting the list in the response.
	Path string `json:"path,omitempty" jsonschema:"title=Path"`
	// Timeout overrides the default request timeout.
	Timeout string `json:"timeout,omitempty" jsonschema:"title=Timeout"`
}

// Compile builds the runtime [rule.Rule]. The result is kept, so sources
// are only built once per loaded configuration.
func (r *Rule) Compile(defaults *FetchDefaults) (*rule.Rule, error) {
	if r.compiled != nil {
		return r.compiled, nil
	}

	opts := []rule.Opt{rule.WithName(r.Name)}

	if r.When != "" {
		opts = append(opts, rule.WithWhen(r.When))
	}

	if r.Make != nil {
		if r.Make.Task != nil {
			opts = append(opts, rule.WithTask(*r.Make.Task))
		}
		if r.Make.Set != nil {
			opts = append(opts, rule.WithSet(*r.Make.Set))
		}
	}

	for i, f := range r.Fetch {
		src, err := f.Source(defaults)
		if err != nil {
			return nil, &FetchError{Rule: r.Name, Index: i, Err: err}
		}

		opts = append(opts, rule.WithSources(src))
	}

	queue := ""
	if r.Make != nil {
		queue = r.Make.Queue
	}

	compiled, err := rule.New(r.On, queue, opts...)
	if err != nil {
		return nil, err //nolint:wrapcheck // Already carries the rule name.
	}

	r.compiled = compiled

	return compiled, nil
}

// Source builds the [rule.Source] declared by f.
//
//nolint:ireturn // Sources are selected by configuration.
func (f *Fetch) Source(defaults *FetchDefaults) (rule.Source, error) {
	switch {
	case f.URL != "" && f.Static == nil:
		if f.Returns == "" {
			return nil, errFetchReturns
		}

		timeout, retries, err := defaults.resolve(f.Timeout, f.Retries)
		if err != nil {
			return nil, err
		}

		opts := []fetch.HTTPOpt{
			fetch.WithTimeout(timeout),
			fetch.WithRetries(retries),
		}
		if f.Path != "" {
			opts = append(opts, fetch.WithPath(f.Path))
		}

		return fetch.NewHTTP(f.URL, f.Returns, opts...), nil

	case f.URL == "" && f.Static != nil:
		return fetch.NewStatic(f.Static...), nil
	}

	return nil, errFetchKind
}

func (w *Watcher) validate(pb *yaml.PathBuilder, idx uint, defaults *FetchDefaults) error {
	for i, r := range w.Rules {
		ri := uint(i) //nolint:gosec // G115: integer overflow conversion int -> uint.
		rulePath := func() *yaml.PathBuilder {
			return pb.Root().Child("watchers").Index(idx).Child("rules").Index(ri)
		}

		var fetchErr *FetchError

		_, err := r.Compile(defaults)
		switch {
		case err == nil:
		case errors.As(err, &fetchErr):
			return yaml.NewError(err,
				yaml.WithPath(rulePath().Child("fetch").Index(uint(fetchErr.Index)).Build()), //nolint:gosec // G115.
			)
		case errors.Is(err, rule.ErrInvalidPattern):
			return yaml.NewError(err, yaml.WithPath(rulePath().Child("on").Build()))
		case errors.Is(err, rule.ErrInvalidGuard):
			return yaml.NewError(err, yaml.WithPath(rulePath().Child("when").Build()))
		case errors.Is(err, rule.ErrMissingQueue):
			return yaml.NewError(err, yaml.WithPath(rulePath().Child("make").Build()))
		default:
			return yaml.NewError(err, yaml.WithPath(rulePath().Build()))
		}
	}

	return nil
}

// FetchDefaults holds defaults shared by all HTTP property sources.
type FetchDefaults struct {
	// Timeout is the per-request timeout, as a Go duration string.
	Timeout string `json:"timeout,omitempty" jsonschema:"title=Timeout,default=10s"`
	// Retries is the number of retries for failed requests.
	Retries int `json:"retries,omitempty" jsonschema:"minimum=0,title=Retries"`
}

func (d *FetchDefaults) resolve(timeout string, retries *int) (time.Duration, int, error) {
	r := 0
	if d != nil {
		r = d.Retries
		timeout = cmp.Or(timeout, d.Timeout)
	}
	if retries != nil {
		r = *retries
	}

	t := fetch.DefaultTimeout
	if timeout != "" {
		parsed, err := time.ParseDuration(timeout)
		if err != nil {
			return 0, 0, fmt.Errorf("invalid timeout: %w", err)
		}

		t = parsed
	}

	return t, r, nil
}
