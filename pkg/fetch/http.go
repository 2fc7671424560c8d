package fetch

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/macropower/resc/pkg/log"
	"github.com/macropower/resc/pkg/props"
	"github.com/macropower/resc/pkg/template"
)

const (
	// DefaultTimeout is the default per-request timeout.
	DefaultTimeout = 10 * time.Second

	defaultRetryWait    = 100 * time.Millisecond
	defaultRetryMaxWait = 2 * time.Second
)

// HTTP is a property source that issues a GET request to a templated URL,
// and converts the JSON response into property maps.
//
// Each element of the selected JSON array produces one map. Scalar elements
// are bound to the Returns property. Object elements contribute each of their
// scalar fields, and bind Returns to the element's raw JSON unless the object
// has a field of that name. A scalar response is treated as a one-element
// array, and null produces no maps.
type HTTP struct {
	httpClient *http.Client
	client     *resty.Client
	url        template.Template
	returns    string
	path       string
	timeout    time.Duration
	retries    int
}

// HTTPOpt configures an [HTTP] source.
type HTTPOpt func(*HTTP)

// WithPath sets a gjson path selecting the value to convert inside the
// response document.
func WithPath(path string) HTTPOpt {
	return func(h *HTTP) {
		h.path = path
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) HTTPOpt {
	return func(h *HTTP) {
		h.timeout = d
	}
}

// WithRetries sets how many times failed requests are retried.
// Requests are not retried by default.
func WithRetries(n int) HTTPOpt {
	return func(h *HTTP) {
		h.retries = n
	}
}

// WithClient sets the underlying [*http.Client].
func WithClient(c *http.Client) HTTPOpt {
	return func(h *HTTP) {
		h.httpClient = c
	}
}

// NewHTTP creates a new [HTTP] source for the given URL template.
func NewHTTP(url, returns string, opts ...HTTPOpt) *HTTP {
	h := &HTTP{
		url:     template.New(url),
		returns: returns,
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(h)
	}

	client := resty.New()
	if h.httpClient != nil {
		client = resty.NewWithClient(h.httpClient)
	}

	h.client = client.
		SetTimeout(h.timeout).
		SetHeader("Accept", "application/json").
		SetRetryCount(h.retries).
		SetRetryWaitTime(defaultRetryWait).
		SetRetryMaxWaitTime(defaultRetryMaxWait).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() >= http.StatusInternalServerError
		})

	return h
}

// URL returns the URL template.
func (h *HTTP) URL() template.Template {
	return h.url
}

// Returns returns the name of the property bound to each element.
func (h *HTTP) Returns() string {
	return h.returns
}

// Fetch implements [rule.Source].
func (h *HTTP) Fetch(ctx context.Context, p props.Map) ([]props.Map, error) {
	url := h.url.Render(p)

	ctx, span := tracer.Start(ctx, "fetch http",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.url", url),
			attribute.String("resc.returns", h.returns),
		),
	)
	defer span.End()

	logger := log.WithContext(ctx).With(slog.String("url", url))
	logger.DebugContext(ctx, "fetching properties")

	resp, err := h.client.R().SetContext(ctx).Get(url)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "request failed")

		return nil, fmt.Errorf("%w: GET %s: %w", ErrRequest, url, err)
	}

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode()))

	if !resp.IsSuccess() {
		err := fmt.Errorf("%w: GET %s: %s", ErrStatus, url, resp.Status())
		span.RecordError(err)
		span.SetStatus(codes.Error, "unexpected status")

		return nil, err
	}

	maps, err := Decode(resp.Body(), h.path, h.returns)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "decode failed")

		return nil, fmt.Errorf("GET %s: %w", url, err)
	}

	span.SetAttributes(attribute.Int("resc.maps", len(maps)))
	logger.DebugContext(ctx, "fetched properties",
		slog.Int("maps", len(maps)),
		slog.Duration("duration", resp.Time()),
	)

	return maps, nil
}

// Decode converts a JSON document into property maps. When path is not
// empty, it selects the value to convert using gjson path syntax. See [HTTP]
// for the conversion rules.
func Decode(data []byte, path, returns string) ([]props.Map, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("%w: invalid JSON", ErrDecode)
	}

	value := gjson.ParseBytes(data)
	if path != "" {
		value = value.Get(path)
		if !value.Exists() {
			return nil, fmt.Errorf("%w: path %q not found", ErrDecode, path)
		}
	}

	if value.Type == gjson.Null {
		return nil, nil
	}

	elements := []gjson.Result{value}
	if value.IsArray() {
		elements = value.Array()
	}

	maps := make([]props.Map, 0, len(elements))
	for _, el := range elements {
		m, ok := elementProps(el, returns)
		if !ok {
			continue
		}

		maps = append(maps, m)
	}

	return maps, nil
}

// elementProps converts a single JSON element. It returns false for null
// elements.
func elementProps(el gjson.Result, returns string) (props.Map, bool) {
	switch {
	case el.Type == gjson.Null:
		return nil, false

	case el.IsObject():
		m := props.Map{}
		hasReturns := false
		el.ForEach(func(key, value gjson.Result) bool {
			if key.String() == returns {
				hasReturns = true
			}
			if value.IsObject() || value.IsArray() || value.Type == gjson.Null {
				return true
			}

			m[key.String()] = value.String()

			return true
		})

		if returns != "" && !hasReturns {
			m[returns] = el.Raw
		}

		return m, true

	case el.IsArray():
		if returns == "" {
			return props.Map{}, true
		}

		return props.Map{returns: el.Raw}, true

	default:
		if returns == "" {
			return props.Map{}, true
		}

		return props.Map{returns: el.String()}, true
	}
}
