package wgtrain

import (
	"errors"
	"fmt"
)

var (
	// ErrAllocation means the device refused a buffer. The trainer must be
	// discarded and retried with smaller dimensions.
	ErrAllocation = errors.New("device buffer allocation refused")

	// ErrKernelBuild means the dimensions were invalid or the device rejected
	// the compute program.
	ErrKernelBuild = errors.New("kernel build failed")

	// ErrShapeMismatch means imported weights do not fit the live spec.
	ErrShapeMismatch = errors.New("weights dimensions ≠ current trainer")

	// ErrModelNotInitialized is returned by operations that need Init first.
	ErrModelNotInitialized = errors.New("model not initialised")

	// ErrMissingMeta is returned when importing a snapshot without a spec.
	ErrMissingMeta = errors.New("weights file missing meta")
)

// ShapeMismatchError describes an import whose meta differs from the live spec.
type ShapeMismatchError struct {
	Want ModelSpec // live spec
	Got  ModelSpec // snapshot meta
}

func (e *ShapeMismatchError) Error() string {
	return fmt.Sprintf("%v: trainer is %s, weights are %s", ErrShapeMismatch, e.Want, e.Got)
}

func (e *ShapeMismatchError) Is(target error) bool {
	return target == ErrShapeMismatch
}
