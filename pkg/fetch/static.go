package fetch

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/macropower/resc/pkg/props"
	"github.com/macropower/resc/pkg/template"
)

// Static is a property source returning a fixed list of property maps.
// Each value is rendered as a template against the input properties.
type Static struct {
	maps []map[string]template.Template
}

// NewStatic creates a new [Static] source.
func NewStatic(maps ...map[string]string) *Static {
	s := &Static{maps: make([]map[string]template.Template, 0, len(maps))}
	for _, m := range maps {
		tm := make(map[string]template.Template, len(m))
		for k, v := range m {
			tm[k] = template.New(v)
		}

		s.maps = append(s.maps, tm)
	}

	return s
}

// Len returns the number of maps the source returns.
func (s *Static) Len() int {
	return len(s.maps)
}

// Fetch implements [rule.Source]. It never fails.
func (s *Static) Fetch(ctx context.Context, p props.Map) ([]props.Map, error) {
	_, span := tracer.Start(ctx, "fetch static",
		trace.WithAttributes(attribute.Int("resc.maps", len(s.maps))),
	)
	defer span.End()

	out := make([]props.Map, 0, len(s.maps))
	for _, tm := range s.maps {
		m := make(props.Map, len(tm))
		for k, t := range tm {
			m[k] = t.Render(p)
		}

		out = append(out, m)
	}

	return out, nil
}
