package domain

import "fmt"

// ResolutionError indicates a security name could not be resolved to an
// identity. Fatal to the affected dimension task only.
type ResolutionError struct {
	Name string
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("security not found: %s", e.Name)
}

// CollectionError indicates a dimension data collector failed. Fatal to the
// affected dimension task only.
type CollectionError struct {
	Dimension Dimension
	Err       error
}

func (e *CollectionError) Error() string {
	return fmt.Sprintf("collection failed for %s: %v", e.Dimension, e.Err)
}

func (e *CollectionError) Unwrap() error { return e.Err }

// GenerationError indicates the generative backend failed or produced a
// malformed stream. Fatal to the affected dimension task only.
type GenerationError struct {
	Err error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation failed: %v", e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// SynthesisError indicates the overall synthesis step itself could not run.
// Fatal to the affected security job only.
type SynthesisError struct {
	Err error
}

func (e *SynthesisError) Error() string {
	return fmt.Sprintf("synthesis failed: %v", e.Err)
}

func (e *SynthesisError) Unwrap() error { return e.Err }

// StoreError indicates a durable write failed after retries. Treated as
// fatal to the affected task since its state would otherwise be lost.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s failed: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }
