package index

import (
	"context"

	"github.com/finchat/finchat/embedder"
)

type Option func(*Options)

type Options struct {
	Location string
	Embedder embedder.Embedder
	Context  context.Context
}

func WithLocation(location string) Option {
	return func(o *Options) {
		o.Location = location
	}
}

func WithEmbedder(e embedder.Embedder) Option {
	return func(o *Options) {
		o.Embedder = e
	}
}

func NewOptions(opts ...Option) Options {
	options := Options{
		Context: context.Background(),
	}
	for _, opt := range opts {
		opt(&options)
	}
	return options
}
