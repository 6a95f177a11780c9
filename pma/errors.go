package pma

import "github.com/pkg/errors"

// Absent is returned by Find and Remove when the requested key is not
// present. Callers that store -1 as a real value cannot distinguish it
// from a miss; the spec accepts that tradeoff.
const Absent int64 = -1

// ErrBatchNotSorted is returned by Load when the supplied batch is not
// non-decreasing by key.
var ErrBatchNotSorted = errors.New("pma: load batch must be non-decreasing by key")

func newConfigError(format string, args ...interface{}) error {
	return errors.Errorf("pma: invalid config: "+format, args...)
}
