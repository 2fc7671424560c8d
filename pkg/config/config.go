package config

import (
	"github.com/macropower/resc/api/v1beta1/configs"
)

// Load reads, validates, and loads the configuration file at path.
func Load(path string, opts ...LoaderOpt) (*configs.Config, error) {
	l, err := NewLoaderFromFile(path, configs.New, configs.DefaultValidator, opts...)
	if err != nil {
		return nil, err
	}

	return load(l)
}

// LoadBytes validates and loads configuration data.
func LoadBytes(data []byte, opts ...LoaderOpt) (*configs.Config, error) {
	return load(NewLoaderFromBytes(data, configs.New, configs.DefaultValidator, opts...))
}

func load(l *Loader[*configs.Config]) (*configs.Config, error) {
	err := l.Validate()
	if err != nil {
		return nil, err
	}

	return l.Load()
}
