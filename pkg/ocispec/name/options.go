package name

// Option configures parsing behavior for [NewRegistry], [NewRepository] and
// [NewReference].
type Option func(*options)

type options struct {
	strict bool
}

func makeOptions(opts ...Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithStrict requires the full repository path to be given explicitly,
// rejecting names that would otherwise gain an implicit "library/" namespace.
func WithStrict(strict bool) Option {
	return func(o *options) {
		o.strict = strict
	}
}
