package storage

import "github.com/google/uuid"

func intPtrEqual(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func int64PtrEqual(a, b *int64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func floatPtrEqual(a, b *float64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// newManualID generates a source_id for manual rows. A UUID keeps
// manual rows out of every provider's identifier space.
func newManualID() string {
	return uuid.New().String()
}
