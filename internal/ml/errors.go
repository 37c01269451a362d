package ml

import "errors"

var (
	// ErrModelNotFound means the requested family has no active handle.
	ErrModelNotFound = errors.New("model not found")
	// ErrNoCandidateModel means auto-selection found no model overlapping the features.
	ErrNoCandidateModel = errors.New("no candidate model")
	// ErrInvalidFeatureValue means a supplied value is NaN or infinite.
	ErrInvalidFeatureValue = errors.New("invalid feature value")
	// ErrNoPreviousVersion means a rollback found nothing older to reactivate.
	ErrNoPreviousVersion = errors.New("no previous version")
)
