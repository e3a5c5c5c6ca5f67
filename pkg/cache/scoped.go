package cache

// ScopedKeyer wraps a Keyer with a prefix so several deployments can share one
// redis database without their entries colliding.
//
// Example usage:
//
//	keyer := NewScopedKeyer(NewDefaultKeyer(), "staging:")
type ScopedKeyer struct {
	inner  Keyer
	prefix string
}

// NewScopedKeyer creates a keyer with a prefix.
// The prefix is prepended to all generated keys.
func NewScopedKeyer(inner Keyer, prefix string) Keyer {
	if inner == nil {
		inner = NewDefaultKeyer()
	}
	return &ScopedKeyer{
		inner:  inner,
		prefix: prefix,
	}
}

// DatasetKey generates a prefixed key for dataset bodies.
func (k *ScopedKeyer) DatasetKey(source string) string {
	return k.prefix + k.inner.DatasetKey(source)
}

// FrameKey generates a prefixed key for rendered frames.
func (k *ScopedKeyer) FrameKey(datasetHash string, opts FrameKeyOpts) string {
	return k.prefix + k.inner.FrameKey(datasetHash, opts)
}
