package ingest

// Retention collapses a scan's RSSI samples into the single value kept on
// the session: the element at the middle index of the as-received sequence.
// The sequence is not sorted, so this is a positional stand-in for a median,
// and for even lengths it is the later of the two central samples rather
// than an interpolation. Callers guarantee a non-empty slice.
func Retention(values []int) int {
	return values[len(values)/2]
}
