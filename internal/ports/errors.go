package ports

import "errors"

var ErrNotFound = errors.New("not found")

var ErrConflict = errors.New("conflict")

// ErrCapabilityMissing means the store does not implement an optional
// primitive (e.g. the atomic accept). Callers are expected to fall back,
// never to surface this to the end caller.
var ErrCapabilityMissing = errors.New("store capability missing")
