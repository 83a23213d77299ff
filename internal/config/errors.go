package config

import "errors"

// ErrConfigInvalid is returned by Validate when the resolved configuration
// fails a startup sanity check (spec.md §7 "ConfigError").
var ErrConfigInvalid = errors.New("config: invalid configuration")
