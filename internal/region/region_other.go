//go:build !unix

package region

// Heap fallback. No unmap: GC reclaims the slice after Close drops the reference.
func osMapAnon(size int) ([]byte, func([]byte) error, error) {
	return make([]byte, size), nil, nil
}

func osAdvise(data []byte, pattern AccessPattern) error {
	if pattern == AccessDontNeed {
		for i := range data {
			data[i] = 0
		}
	}
	return nil
}
