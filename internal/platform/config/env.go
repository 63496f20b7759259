// Package config loads process configuration from the environment.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// EnvPrefix namespaces every variable read through this package.
const EnvPrefix = "PDFSTORE_"

// ParseEnv loads prefixed configuration from the process environment.
func ParseEnv(target any) error {
	return parse(target, env.Options{Prefix: EnvPrefix})
}

// ParseEnvFrom loads prefixed configuration from the supplied variables
// instead of the process environment.
func ParseEnvFrom(target any, environ map[string]string) error {
	if environ == nil {
		environ = map[string]string{}
	}
	return parse(target, env.Options{Prefix: EnvPrefix, Environment: environ})
}

func parse(target any, opts env.Options) error {
	if err := env.ParseWithOptions(target, opts); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}
