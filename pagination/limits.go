package pagination

const (
	// DefaultPageSize is used when a paginator is configured without one.
	DefaultPageSize = 15
	MaxPageSize     = 100
	// OffsetCutoff bounds the offset a client may request through a cursor.
	OffsetCutoff = 1000
)

// NormalizePageSize maps non-positive sizes to DefaultPageSize and caps
// the rest at MaxPageSize.
func NormalizePageSize(size int) int {
	if size <= 0 {
		return DefaultPageSize
	}
	return min(size, MaxPageSize)
}
