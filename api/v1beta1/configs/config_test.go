package configs_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/macropower/resc/api/v1beta1"
	"github.com/macropower/resc/api/v1beta1/configs"
	"github.com/macropower/resc/pkg/rule"
	"github.com/macropower/resc/pkg/yaml"
)

func ptr[T any](v T) *T {
	return &v
}

func TestNew(t *testing.T) {
	t.Parallel()

	cfg := configs.New()

	assert.Equal(t, v1beta1.APIVersion, cfg.GetAPIVersion())
	assert.Equal(t, configs.Kind, cfg.GetKind())
	require.NotNil(t, cfg.Redis)
	assert.NotEmpty(t, cfg.Redis.URL)
	assert.NotNil(t, cfg.Fetch)
	require.NoError(t, cfg.Validate())
}

func TestConfig_EnsureDefaults(t *testing.T) {
	t.Parallel()

	cfg := &configs.Config{
		Redis: &configs.Redis{URL: "redis://db/"},
		Watchers: []*configs.Watcher{
			{
				InputQueue: "jobs",
				Rules: []*configs.Rule{
					{On: "^a", Make: &configs.Make{Queue: "q"}},
					{Name: "named", On: "^b", Make: &configs.Make{Queue: "q"}},
				},
			},
			{InputQueue: "other", TakenQueue: "other-taken"},
		},
	}

	cfg.EnsureDefaults()

	assert.Equal(t, "redis://db/", cfg.Redis.URL)
	assert.Equal(t, "jobs/taken", cfg.Watchers[0].TakenQueue)
	assert.Equal(t, "other-taken", cfg.Watchers[1].TakenQueue)
	assert.Equal(t, rule.AnonymousName, cfg.Watchers[0].Rules[0].Name)
	assert.Equal(t, "named", cfg.Watchers[0].Rules[1].Name)
}

func TestConfig_Validate(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		rule     *configs.Rule
		wantPath string
	}{
		"valid rule": {
			rule: &configs.Rule{On: `^job/(?P<id>\d+)$`, Make: &configs.Make{Queue: "done"}},
		},
		"invalid pattern": {
			rule:     &configs.Rule{On: `^job/(?P<id>\d+$`, Make: &configs.Make{Queue: "done"}},
			wantPath: "$.watchers[0].rules[0].on",
		},
		"invalid guard": {
			rule:     &configs.Rule{On: `^job/`, When: `props.id ==`, Make: &configs.Make{Queue: "done"}},
			wantPath: "$.watchers[0].rules[0].when",
		},
		"missing queue": {
			rule:     &configs.Rule{On: `^job/`, Make: &configs.Make{}},
			wantPath: "$.watchers[0].rules[0].make",
		},
		"fetch with url and static": {
			rule: &configs.Rule{
				On:    `^job/`,
				Make:  &configs.Make{Queue: "done"},
				Fetch: []*configs.Fetch{{Static: []map[string]string{{"a": "b"}}}, {URL: "http://x", Returns: "r", Static: []map[string]string{}}},
			},
			wantPath: "$.watchers[0].rules[0].fetch[1]",
		},
		"fetch url without returns": {
			rule: &configs.Rule{
				On:    `^job/`,
				Make:  &configs.Make{Queue: "done"},
				Fetch: []*configs.Fetch{{URL: "http://x"}},
			},
			wantPath: "$.watchers[0].rules[0].fetch[0]",
		},
		"fetch invalid timeout": {
			rule: &configs.Rule{
				On:    `^job/`,
				Make:  &configs.Make{Queue: "done"},
				Fetch: []*configs.Fetch{{URL: "http://x", Returns: "r", Timeout: "soon"}},
			},
			wantPath: "$.watchers[0].rules[0].fetch[0]",
		},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			cfg := configs.New()
			cfg.Watchers = []*configs.Watcher{{InputQueue: "jobs", Rules: []*configs.Rule{tc.rule}}}
			cfg.EnsureDefaults()

			err := cfg.Validate()
			if tc.wantPath == "" {
				require.NoError(t, err)

				return
			}

			var yamlErr *yaml.Error
			require.ErrorAs(t, err, &yamlErr)
			require.NotNil(t, yamlErr.Path)
			assert.Equal(t, tc.wantPath, yamlErr.Path.String())
		})
	}
}

func TestConfig_Validate_TakenEqualsInput(t *testing.T) {
	t.Parallel()

	cfg := configs.New()
	cfg.Watchers = []*configs.Watcher{{InputQueue: "jobs", TakenQueue: "jobs"}}

	var yamlErr *yaml.Error
	require.ErrorAs(t, cfg.Validate(), &yamlErr)
	assert.Equal(t, "$.watchers[0].takenQueue", yamlErr.Path.String())
}

func TestConfig_Sets(t *testing.T) {
	t.Parallel()

	cfg := configs.New()
	cfg.Watchers = []*configs.Watcher{
		{
			InputQueue: "jobs",
			Rules: []*configs.Rule{
				{
					Name: "compute",
					On:   `^job/(?P<id>\d+)$`,
					Make: &configs.Make{Task: ptr("${id}-processed"), Queue: "done"},
				},
				{
					Name:  "regions",
					On:    `^job/(?P<id>\d+)$`,
					Fetch: []*configs.Fetch{{Static: []map[string]string{{"region": "eu"}, {"region": "us"}}}},
					Make:  &configs.Make{Queue: "done/${region}", Set: ptr("seen/${region}")},
				},
			},
		},
		{InputQueue: "empty"},
	}
	cfg.EnsureDefaults()

	sets, err := cfg.Sets()
	require.NoError(t, err)
	require.Len(t, sets, 2)
	assert.Equal(t, 2, sets[0].Len())
	assert.Equal(t, 0, sets[1].Len())

	matches, err := sets[0].Expand(t.Context(), "job/42")
	require.NoError(t, err)
	require.Len(t, matches, 2)

	assert.Equal(t, []rule.Result{{Task: "42-processed", Queue: "done"}}, matches[0].Results)
	assert.Equal(t, []rule.Result{
		{Task: "job/42", Queue: "done/eu", Set: ptr("seen/eu")},
		{Task: "job/42", Queue: "done/us", Set: ptr("seen/us")},
	}, matches[1].Results)
}

func TestConfig_Sets_ReusesCompiledRules(t *testing.T) {
	t.Parallel()

	cfg := configs.New()
	cfg.Watchers = []*configs.Watcher{{
		InputQueue: "jobs",
		Rules: []*configs.Rule{{
			On:    `^job/(?P<id>\d+)$`,
			Fetch: []*configs.Fetch{{URL: "http://api/${id}", Returns: "region"}},
			Make:  &configs.Make{Queue: "done/${region}"},
		}},
	}}
	cfg.EnsureDefaults()
	require.NoError(t, cfg.Validate())

	first, err := cfg.Sets()
	require.NoError(t, err)

	second, err := cfg.Sets()
	require.NoError(t, err)

	compiled, err := cfg.Watchers[0].Rules[0].Compile(cfg.Fetch)
	require.NoError(t, err)

	assert.Same(t, compiled, first[0].Rules()[0])
	assert.Same(t, compiled, second[0].Rules()[0])
}

func TestRule_Compile_FetchError(t *testing.T) {
	t.Parallel()

	r := &configs.Rule{
		Name: "regions",
		On:   `^job/`,
		Make: &configs.Make{Queue: "done"},
		Fetch: []*configs.Fetch{
			{Static: []map[string]string{{"region": "eu"}}},
			{URL: "http://api"},
		},
	}

	_, err := r.Compile(&configs.FetchDefaults{})

	var fetchErr *configs.FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, 1, fetchErr.Index)
	assert.Equal(t, "regions", fetchErr.Rule)
	assert.ErrorContains(t, err, `invalid fetch for rule "regions"`)
}

func TestDefaultConfigIsValid(t *testing.T) {
	t.Parallel()

	var doc any
	require.NoError(t, yaml.NewDecoder(bytes.NewReader(configs.DefaultYAML())).Decode(&doc))
	require.NoError(t, configs.DefaultValidator.Validate(doc))

	cfg := &configs.Config{}
	require.NoError(t, yaml.NewDecoder(bytes.NewReader(configs.DefaultYAML())).Decode(cfg))
	cfg.EnsureDefaults()
	require.NoError(t, cfg.Validate())

	sets, err := cfg.Sets()
	require.NoError(t, err)
	require.Len(t, sets, 1)
	assert.Equal(t, "trt/plantA/todo/taken", cfg.Watchers[0].TakenQueue)
}

func TestEmbeddedConfigMatchesSourceFile(t *testing.T) {
	t.Parallel()

	data, err := os.ReadFile("config.yaml")
	require.NoError(t, err)
	assert.Equal(t, data, configs.DefaultYAML())
}

func TestWriteDefault(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "resc", "config.yaml")

	require.NoError(t, configs.WriteDefault(path, false))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, configs.DefaultYAML(), data)

	require.NoError(t, os.WriteFile(path, []byte("custom"), 0o600))
	require.NoError(t, configs.WriteDefault(path, false))

	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []byte("custom"), data)

	require.NoError(t, configs.WriteDefault(path, true))

	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, configs.DefaultYAML(), data)

	backups, err := filepath.Glob(filepath.Join(filepath.Dir(path), "config.yaml.*.old"))
	require.NoError(t, err)
	assert.Len(t, backups, 1)
}

func TestConfig_MarshalYAML(t *testing.T) {
	t.Parallel()

	cfg := configs.New()
	cfg.Watchers = []*configs.Watcher{{InputQueue: "jobs"}}
	cfg.EnsureDefaults()

	data, err := cfg.MarshalYAML()
	require.NoError(t, err)
	assert.Contains(t, string(data), "apiVersion: resc.jacobcolvin.com/v1beta1")
	assert.Contains(t, string(data), "inputQueue: jobs")
	assert.Contains(t, string(data), "takenQueue: jobs/taken")
}

func TestSchemaMatchesTypes(t *testing.T) {
	t.Parallel()

	data, err := yaml.NewSchemaGenerator(&configs.Config{}, "github.com/macropower/resc").Generate()
	require.NoError(t, err)

	v, err := yaml.NewValidator("/generated.json", data)
	require.NoError(t, err)

	var doc any
	require.NoError(t, yaml.NewDecoder(bytes.NewReader(configs.DefaultYAML())).Decode(&doc))
	require.NoError(t, v.Validate(doc))
}
