package data

import (
	"fmt"
	"maps"
	"time"
)

func ErrBatchTooLarge(n int) error {
	return fmt.Errorf("batch of %d writes exceeds the limit of %d", n, MaxBatchWrites)
}

// mergeFields copies src over dst and resolves ServerTimestamp to now.
func mergeFields(dst, src map[string]any, now time.Time) map[string]any {
	if dst == nil {
		dst = make(map[string]any, len(src))
	}
	for k, v := range src {
		if _, ok := v.(serverTimestamp); ok {
			v = now.UTC()
		}
		dst[k] = v
	}
	return dst
}

func cloneFields(fields map[string]any) map[string]any {
	if fields == nil {
		return map[string]any{}
	}
	return maps.Clone(fields)
}
