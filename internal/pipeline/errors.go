package pipeline

import "github.com/rotisserie/eris"

// Run-level outcomes a caller can observe. Category-level provider failures
// (outages, throttling, synthesis errors) are absorbed into degraded evidence
// or the fallback verdict and never surface here.
var (
	// ErrAlreadyAnalyzing reports an in-flight run for the same entity.
	ErrAlreadyAnalyzing = eris.New("pipeline: entity already analyzing")

	// ErrPersistenceFailed marks the terminal store write failing. The
	// entity is left exactly as it was before the run.
	ErrPersistenceFailed = eris.New("pipeline: persistence failed")
)
