package knowledge

import "fmt"

// ResourceLoadError reports a knowledge document that could not be loaded.
// The affected collection starts empty; nothing else is disabled.
type ResourceLoadError struct {
	Path string
	Err  error
}

func (e *ResourceLoadError) Error() string {
	return fmt.Sprintf("knowledge: load %s: %v", e.Path, e.Err)
}

func (e *ResourceLoadError) Unwrap() error { return e.Err }

// PersistenceError reports a failed write. The collection stays dirty and
// the write is retried after the next mutation.
type PersistenceError struct {
	Path string
	Err  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("knowledge: write %s: %v", e.Path, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
