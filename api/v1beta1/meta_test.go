package v1beta1_test

import (
	"testing"

	"github.com/invopop/jsonschema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/macropower/resc/api/v1beta1"
	"github.com/macropower/resc/api/v1beta1/configs"
	"github.com/macropower/resc/pkg/yaml"
)

func TestTypeMeta_GetAPIVersion(t *testing.T) {
	t.Parallel()

	tm := v1beta1.TypeMeta{
		APIVersion: "test.example.com/v1",
		Kind:       "TestKind",
	}

	got := tm.GetAPIVersion()

	assert.Equal(t, "test.example.com/v1", got)
}

func TestTypeMeta_GetKind(t *testing.T) {
	t.Parallel()

	tm := v1beta1.TypeMeta{
		APIVersion: "test.example.com/v1",
		Kind:       "TestKind",
	}

	got := tm.GetKind()

	assert.Equal(t, "TestKind", got)
}

func TestExtendSchemaWithEnums(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		apiVersions     []string
		kinds           []string
		wantAPIVersions int
		wantKinds       int
	}{
		"single API version": {
			apiVersions:     []string{"v1"},
			kinds:           []string{"Kind1"},
			wantAPIVersions: 1,
			wantKinds:       1,
		},
		"multiple API versions": {
			apiVersions:     []string{"v1", "v1beta1", "v1alpha1"},
			kinds:           []string{"Kind1"},
			wantAPIVersions: 3,
			wantKinds:       1,
		},
		"multiple kinds": {
			apiVersions:     []string{"v1"},
			kinds:           []string{"Kind1", "Kind2", "Kind3"},
			wantAPIVersions: 1,
			wantKinds:       3,
		},
		"combined API versions and kinds": {
			apiVersions:     []string{"v1", "v1beta1"},
			kinds:           []string{"Kind1", "Kind2"},
			wantAPIVersions: 2,
			wantKinds:       2,
		},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			// Create a schema with apiVersion and kind properties.
			jss := &jsonschema.Schema{
				Properties: jsonschema.NewProperties(),
			}
			jss.Properties.Set("apiVersion", &jsonschema.Schema{Type: "string"})
			jss.Properties.Set("kind", &jsonschema.Schema{Type: "string"})

			v1beta1.ExtendSchemaWithEnums(jss, tc.apiVersions, tc.kinds)

			apiVersion, ok := jss.Properties.Get("apiVersion")
			assert.True(t, ok)
			assert.Len(t, apiVersion.OneOf, tc.wantAPIVersions)

			kind, ok := jss.Properties.Get("kind")
			assert.True(t, ok)
			assert.Len(t, kind.OneOf, tc.wantKinds)

			// Verify the const values are set correctly.
			for i, v := range tc.apiVersions {
				assert.Equal(t, v, apiVersion.OneOf[i].Const)
			}

			for i, k := range tc.kinds {
				assert.Equal(t, k, kind.OneOf[i].Const)
			}
		})
	}
}

func TestExtendSchemaWithEnums_PanicsWithoutAPIVersion(t *testing.T) {
	t.Parallel()

	jss := &jsonschema.Schema{
		Properties: jsonschema.NewProperties(),
	}
	jss.Properties.Set("kind", &jsonschema.Schema{Type: "string"})

	assert.Panics(t, func() {
		v1beta1.ExtendSchemaWithEnums(jss, []string{"v1"}, []string{"Kind1"})
	})
}

func TestExtendSchemaWithEnums_PanicsWithoutKind(t *testing.T) {
	t.Parallel()

	jss := &jsonschema.Schema{
		Properties: jsonschema.NewProperties(),
	}
	jss.Properties.Set("apiVersion", &jsonschema.Schema{Type: "string"})

	assert.Panics(t, func() {
		v1beta1.ExtendSchemaWithEnums(jss, []string{"v1"}, []string{"Kind1"})
	})
}

func TestObject_EnsureDefaultsThenValidate(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		obj      v1beta1.Object
		wantPath string
	}{
		"defaults are valid": {
			obj: &configs.Config{
				TypeMeta: v1beta1.TypeMeta{APIVersion: v1beta1.APIVersion, Kind: configs.Kind},
			},
		},
		"defaulted taken queue is valid": {
			obj: &configs.Config{
				TypeMeta: v1beta1.TypeMeta{APIVersion: v1beta1.APIVersion, Kind: configs.Kind},
				Watchers: []*configs.Watcher{{
					InputQueue: "jobs",
					Rules: []*configs.Rule{{On: `^job/`, Make: &configs.Make{Queue: "done"}}},
				}},
			},
		},
		"invalid node is reported by path": {
			obj: &configs.Config{
				TypeMeta: v1beta1.TypeMeta{APIVersion: v1beta1.APIVersion, Kind: configs.Kind},
				Watchers: []*configs.Watcher{{
					InputQueue: "jobs",
					Rules: []*configs.Rule{{On: `^job/(`, Make: &configs.Make{Queue: "done"}}},
				}},
			},
			wantPath: "$.watchers[0].rules[0].on",
		},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, v1beta1.APIVersion, tc.obj.GetAPIVersion())
			assert.Equal(t, configs.Kind, tc.obj.GetKind())

			tc.obj.EnsureDefaults()

			err := tc.obj.Validate()
			if tc.wantPath == "" {
				require.NoError(t, err)

				return
			}

			var yamlErr *yaml.Error
			require.ErrorAs(t, err, &yamlErr)
			assert.Equal(t, tc.wantPath, yamlErr.Path.String())
		})
	}
}
