package repository

// Option applies a configuration option to the Memory store.
type Option func(*Memory)

// WithHistoryLimit caps the number of archived snapshots kept in memory.
// Zero keeps everything.
func WithHistoryLimit(n int) Option {
	return func(m *Memory) {
		if n >= 0 {
			m.historyLimit = n
		}
	}
}
