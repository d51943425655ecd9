package rescache

import (
	"errors"
	"fmt"
)

// ErrTimeout is returned by Put and Invalidate when the facade lock cannot be
// acquired within the caller's deadline (or OpTimeout). Get never returns it;
// a timed-out Get degrades to a miss so the cache cannot become a
// pipeline-wide bottleneck.
var ErrTimeout = errors.New("rescache: operation timed out")

// PutError reports which half of a Put failed: writing the entry file, or
// persisting the index afterwards. When only IndexErr is set the entry bytes
// are on disk but unreferenced; the next startup orphan scan removes them.
type PutError struct {
	Key      string
	EntryErr error
	IndexErr error
}

func (e *PutError) Error() string {
	switch {
	case e.EntryErr != nil && e.IndexErr != nil:
		return fmt.Sprintf("put %q failed: entry write and index save failed: entry=%v; index=%v",
			e.Key, e.EntryErr, e.IndexErr)
	case e.EntryErr != nil:
		return fmt.Sprintf("put %q: entry write failed: %v", e.Key, e.EntryErr)
	case e.IndexErr != nil:
		return fmt.Sprintf("put %q: index save failed: %v", e.Key, e.IndexErr)
	default:
		return fmt.Sprintf("put %q: unknown error", e.Key)
	}
}

func (e *PutError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.EntryErr != nil {
		errs = append(errs, e.EntryErr)
	}
	if e.IndexErr != nil {
		errs = append(errs, e.IndexErr)
	}
	return errs
}
