package yaml_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/macropower/resc/pkg/yaml"
)

const source = `redis:
  url: redis://127.0.0.1/
watchers:
  - inputQueue: jobs
    rules:
      - on: ^job/(?P<id>\d+)$
        make:
          queue: done
`

func TestError_Annotated(t *testing.T) {
	t.Parallel()

	errInvalid := errors.New("invalid pattern")

	path := yaml.NewPathBuilder().Root().
		Child("watchers").Index(0).
		Child("rules").Index(0).
		Child("on").Build()

	err := yaml.NewError(errInvalid, yaml.WithPath(path), yaml.WithSource([]byte(source)))
	require.ErrorIs(t, err, errInvalid)

	msg := err.Error()
	assert.Contains(t, msg, "[6:9] invalid pattern:")
	assert.Contains(t, msg, "^job/(?P<id>")
}

func TestError_Error(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		err  *yaml.Error
		want string
	}{
		"nil error": {
			err:  &yaml.Error{},
			want: "",
		},
		"no location": {
			err:  yaml.NewError(errors.New("boom")),
			want: "boom",
		},
		"path without source": {
			err: yaml.NewError(errors.New("boom"),
				yaml.WithPath(yaml.NewPathBuilder().Root().Child("redis").Child("url").Build()),
			),
			want: "error at $.redis.url: boom",
		},
		"path missing from source": {
			err: yaml.NewError(errors.New("boom"),
				yaml.WithPath(yaml.NewPathBuilder().Root().Child("nope").Build()),
				yaml.WithSource([]byte(source)),
			),
			want: "error at $.nope: boom",
		},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tc.want, tc.err.Error())
		})
	}
}

func TestErrorWrapper_Wrap(t *testing.T) {
	t.Parallel()

	ew := yaml.NewErrorWrapper(yaml.WithSource([]byte(source)))

	assert.NoError(t, ew.Wrap(nil))

	plain := errors.New("plain")
	assert.Same(t, plain, ew.Wrap(plain))

	path := yaml.NewPathBuilder().Root().Child("redis").Build()
	wrapped := ew.Wrap(yaml.NewError(errors.New("bad redis")), yaml.WithPath(path))

	var yamlErr *yaml.Error
	require.ErrorAs(t, wrapped, &yamlErr)
	assert.Equal(t, []byte(source), yamlErr.Source)
	assert.Equal(t, "$.redis", yamlErr.Path.String())
	assert.Contains(t, wrapped.Error(), "[1:1] bad redis:")
}

func TestDecoder_SyntaxError(t *testing.T) {
	t.Parallel()

	var v any

	err := yaml.NewDecoder(stringReader("a: [1, 2\n")).Decode(&v)
	require.Error(t, err)

	var yamlErr *yaml.Error
	require.ErrorAs(t, err, &yamlErr)
	assert.NotNil(t, yamlErr.Token)
}

func TestPathBuilder(t *testing.T) {
	t.Parallel()

	var pb *yaml.PathBuilder = yaml.NewPathBuilder()

	path := pb.Root().Child("watchers").Index(0).Child("rules").Index(1).Child("on").Build()
	assert.Equal(t, "$.watchers[0].rules[1].on", path.String())

	err := yaml.NewError(errors.New("bad pattern"), yaml.WithPath(path), yaml.WithSource([]byte(source)))
	assert.Equal(t, path, err.Path)
}
