// Package storage holds artifact storage backends.
package storage

// Object identifies a stored artifact. Ref is what callers persist and later
// pass to Delete; URL is what clients download from.
type Object struct {
	Ref string
	URL string
}
