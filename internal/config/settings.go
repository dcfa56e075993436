// Package config resolves the build and start plans from the process
// environment, an optional deploy file, and an optional dotenv file.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Defaults used when neither the environment nor the deploy file set a value.
const (
	// DefaultPort is the port the hand-off target binds when PORT is unset.
	DefaultPort = 8001

	// DefaultHost is the wildcard bind address.
	DefaultHost = "0.0.0.0"

	// DefaultPython is the interpreter used for pip and uvicorn.
	DefaultPython = "python"

	// DefaultManifest is the dependency manifest, relative to the working dir.
	DefaultManifest = "requirements.txt"

	// DefaultApp is the ASGI application reference passed to uvicorn.
	DefaultApp = "optimized_main:app"
)

// Settings holds the values deployctl itself reads from the environment.
// Every other variable passes through to the child processes untouched.
//
// String fields without envDefault stay empty when unset so that a deploy
// file value can take precedence over the built-in default.
type Settings struct {
	// Port is the raw PORT value. It is kept as a string so an unset
	// variable and an invalid one can be told apart.
	Port string `env:"PORT"`

	// Host is the bind address handed to the server.
	Host string `env:"DEPLOYCTL_HOST" envDefault:"0.0.0.0"`

	// Python is the interpreter executable.
	Python string `env:"DEPLOYCTL_PYTHON"`

	// Manifest overrides the dependency manifest path.
	Manifest string `env:"DEPLOYCTL_MANIFEST"`

	// App overrides the ASGI application reference.
	App string `env:"DEPLOYCTL_APP"`

	// RehearseImage is the base image of local rehearsals.
	RehearseImage string `env:"DEPLOYCTL_REHEARSE_IMAGE" envDefault:"python:3.11-slim"`
}

// ParseSettings reads Settings from the given KEY=VALUE environment list,
// normally os.Environ() with the env file merged in.
func ParseSettings(environ []string) (*Settings, error) {
	var s Settings
	opts := env.Options{Environment: env.ToMap(environ)}
	if err := env.ParseWithOptions(&s, opts); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return &s, nil
}

// PythonOrDefault returns the configured interpreter or DefaultPython.
func (s *Settings) PythonOrDefault() string {
	if s.Python != "" {
		return s.Python
	}
	return DefaultPython
}

// AppOrDefault returns the configured application reference or DefaultApp.
func (s *Settings) AppOrDefault() string {
	if s.App != "" {
		return s.App
	}
	return DefaultApp
}

// HostOrDefault returns the configured bind host or DefaultHost.
func (s *Settings) HostOrDefault() string {
	if s.Host != "" {
		return s.Host
	}
	return DefaultHost
}
