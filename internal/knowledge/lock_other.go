//go:build !unix

package knowledge

// lockPath is a no-op where flock is unavailable; the in-process mutex
// still serialises writers.
func lockPath(string) (func(), error) {
	return func() {}, nil
}
