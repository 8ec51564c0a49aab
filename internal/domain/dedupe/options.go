package dedupe

const defaultMaxSize = 4096

// Option configures a pending set.
type Option func(*pendingSet)

// WithMaxSize bounds the number of pending keys. Zero or negative means unbounded.
func WithMaxSize(maxSize int) Option {
	return func(d *pendingSet) {
		d.maxSize = maxSize
	}
}
