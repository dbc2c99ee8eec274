package internal

import "github.com/starford/othala/internal/gist"

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config *Config
	remote gist.Remote
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithRemote overrides the paste backend used for registry and component
// fetches. When unset, a gist client is built from the configuration.
func WithRemote(remote gist.Remote) Option {
	return func(a *application) {
		a.remote = remote
	}
}
