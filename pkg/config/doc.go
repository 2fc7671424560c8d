// Package config loads resc configuration files.
//
// Files are decoded to untyped YAML and validated against the embedded JSON
// schema, then decoded into [configs.Config], defaulted, and validated by
// compiling every rule. Errors point at the offending line of the file.
//
// [Watch] reloads a configuration file whenever it changes.
package config
