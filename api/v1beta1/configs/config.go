// Package configs provides the Configuration type for resc.
package configs

import (
	"fmt"
	"log/slog"

	"github.com/invopop/jsonschema"

	_ "embed"

	"github.com/macropower/resc/api"
	"github.com/macropower/resc/api/v1beta1"
	"github.com/macropower/resc/pkg/rule"
	"github.com/macropower/resc/pkg/yaml"
)

//go:generate go run ../../../internal/schemagen -o configs.v1beta1.json

// Kind is the kind of the configuration object.
const Kind = "Configuration"

var (
	//go:embed config.yaml
	defaultConfigYAML []byte

	//go:embed configs.v1beta1.json
	schemaJSON []byte

	// ValidKinds contains the valid kind values for configurations.
	ValidKinds = []string{Kind}

	// DefaultValidator validates configuration against the JSON schema.
	DefaultValidator = yaml.MustNewValidator("/configs.v1beta1.json", schemaJSON)

	// Compile-time interface checks.
	_ v1beta1.Object = (*Config)(nil)
)

// Config represents the resc configuration.
//
//nolint:recvcheck // Must satisfy the jsonschema interface.
type Config struct {
	// Redis configures the Redis connection.
	Redis *Redis `json:"redis" jsonschema:"required,title=Redis"`
	// Fetch holds defaults for HTTP property sources.
	Fetch *FetchDefaults `json:"fetch,omitempty" jsonschema:"title=Fetch Defaults"`
	// ListenerChannel is a Redis pub/sub channel receiving an event for every
	// produced task. Events are not published when empty.
	ListenerChannel string `json:"listenerChannel,omitempty" jsonschema:"title=Listener Channel"`
	// TaskSet is deprecated and ignored.
	TaskSet string `json:"taskSet,omitempty" jsonschema:"title=Task Set (deprecated)"`
	// Watchers lists the input queues to watch.
	Watchers         []*Watcher `json:"watchers,omitempty" jsonschema:"title=Watchers"`
	v1beta1.TypeMeta `json:",inline"`
}

// Redis configures the Redis connection.
type Redis struct {
	// URL is a Redis connection URL, e.g. redis://127.0.0.1:6379/0.
	URL string `json:"url" jsonschema:"required,minLength=1,title=URL"`
}

// New creates a new [Config] with default values.
func New() *Config {
	c := &Config{
		TypeMeta: v1beta1.TypeMeta{
			APIVersion: v1beta1.APIVersion,
			Kind:       Kind,
		},
	}
	c.EnsureDefaults()

	return c
}

// EnsureDefaults initializes nil fields to their default values.
func (c *Config) EnsureDefaults() {
	if c.Redis == nil {
		c.Redis = &Redis{URL: "redis://127.0.0.1:6379/"}
	}
	if c.Fetch == nil {
		c.Fetch = &FetchDefaults{}
	}

	for _, w := range c.Watchers {
		if w != nil {
			w.EnsureDefaults()
		}
	}
}

// Validate validates the configuration by compiling every rule.
func (c *Config) Validate() error {
	pb := yaml.NewPathBuilder()

	if c.TaskSet != "" {
		slog.Warn("taskSet is deprecated and ignored", slog.String("taskSet", c.TaskSet))
	}

	for i, w := range c.Watchers {
		idx := uint(i) //nolint:gosec // G115: integer overflow conversion int -> uint.

		if w.InputQueue == w.TakenQueue {
			return yaml.NewError(
				fmt.Errorf("taken queue must differ from input queue %q", w.InputQueue),
				yaml.WithPath(pb.Root().Child("watchers").Index(idx).Child("takenQueue").Build()),
			)
		}

		err := w.validate(pb, idx, c.Fetch)
		if err != nil {
			return err
		}
	}

	return nil
}

// Sets compiles the rules of every watcher. The returned slice is indexed
// like [Config.Watchers].
func (c *Config) Sets() ([]*rule.Set, error) {
	sets := make([]*rule.Set, 0, len(c.Watchers))
	for _, w := range c.Watchers {
		rules := make([]*rule.Rule, 0, len(w.Rules))
		for _, r := range w.Rules {
			compiled, err := r.Compile(c.Fetch)
			if err != nil {
				return nil, fmt.Errorf("watcher %q: %w", w.InputQueue, err)
			}

			rules = append(rules, compiled)
		}

		sets = append(sets, rule.NewSet(rules...))
	}

	return sets, nil
}

func (c Config) JSONSchemaExtend(jss *jsonschema.Schema) {
	v1beta1.ExtendSchemaWithEnums(jss, v1beta1.ValidAPIVersions, ValidKinds)
}

// MarshalYAML serializes the config to YAML.
func (c Config) MarshalYAML() ([]byte, error) {
	type alias Config

	b, err := api.MarshalYAML(alias(c))
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}

	return b, nil
}

// WriteDefault writes the embedded default config.yaml to the specified path.
func WriteDefault(path string, force bool) error {
	err := api.WriteDefaultFile(path, defaultConfigYAML, force, "configuration")
	if err != nil {
		return fmt.Errorf("write default config: %w", err)
	}

	return nil
}

// DefaultYAML returns the embedded default configuration.
func DefaultYAML() []byte {
	return defaultConfigYAML
}

// Schema returns the embedded JSON schema.
func Schema() []byte {
	return schemaJSON
}

// GetPath returns the path to the user configuration file.
func GetPath() string {
	return api.GetConfigPath("config.yaml")
}
