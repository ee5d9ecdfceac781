package remote

import (
	"context"

	ocispecname "github.com/linyinfeng/oranc/pkg/ocispec/name"
)

// DefaultOptions returns the default options.
func DefaultOptions() *Options {
	return &Options{
		Client: NewClient(),
	}
}

// MakeOptions returns the options with all optional parameters applied.
func MakeOptions(opts ...Option) *Options {
	options := DefaultOptions()
	for _, opt := range opts {
		opt(options)
	}
	return options
}

// Option is the optional parameter setting method.
type Option func(*Options)

// Options is the structure of the optional parameters.
type Options struct {
	Client *Client
}

// WithClient sets the underlying [Client] used to talk to the registry.
func WithClient(client *Client) Option {
	return func(o *Options) {
		if client != nil {
			o.Client = client
		}
	}
}

// NewRegistryWithContext creates a client which implements the distribution
// spec interface to the named remote registry.
func NewRegistryWithContext(ctx context.Context, name string, opts ...Option) (*Registry, error) {
	regName, err := ocispecname.NewRegistry(name)
	if err != nil {
		return nil, err
	}
	options := MakeOptions(opts...)
	return options.Client.NewRegistry(ctx, regName)
}
