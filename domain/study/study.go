package study

import (
	"fmt"
)

// StudySet holds the per-study inputs of one meta-analytic combination:
// effect estimates with their standard errors, optional analysis weights
// and optional labels. A StudySet is immutable for the duration of one
// computation; callers that mutate the slices afterwards own the fallout.
type StudySet struct {
	Estimates      []float64 `json:"estimates"`
	StandardErrors []float64 `json:"standard_errors"`
	Weights        []float64 `json:"weights,omitempty"`
	Names          []string  `json:"names,omitempty"`
}

// InvalidInputError reports a violated StudySet or option invariant.
// The computation is aborted immediately; no partial result is produced.
type InvalidInputError struct {
	Field  string
	Reason string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid input: %s: %s", e.Field, e.Reason)
}

// NewStudySet creates a validated StudySet. A single standard error is
// broadcast across all estimates.
func NewStudySet(estimates, standardErrors []float64) (StudySet, error) {
	if len(standardErrors) == 1 && len(estimates) > 1 {
		se := make([]float64, len(estimates))
		for i := range se {
			se[i] = standardErrors[0]
		}
		standardErrors = se
	}
	set := StudySet{Estimates: estimates, StandardErrors: standardErrors}
	if err := set.Validate(); err != nil {
		return StudySet{}, err
	}
	return set, nil
}

// Validate enforces the StudySet invariants: at least one study, matching
// lengths, strictly positive standard errors, non-negative weights that are
// not all zero.
func (s StudySet) Validate() error {
	if len(s.Estimates) == 0 {
		return &InvalidInputError{Field: "estimates", Reason: "study set must contain at least one study"}
	}
	if len(s.StandardErrors) != len(s.Estimates) {
		return &InvalidInputError{
			Field:  "standard_errors",
			Reason: fmt.Sprintf("length %d does not match %d estimates", len(s.StandardErrors), len(s.Estimates)),
		}
	}
	for i, se := range s.StandardErrors {
		if !(se > 0) {
			return &InvalidInputError{
				Field:  "standard_errors",
				Reason: fmt.Sprintf("standard error %g at index %d is not strictly positive", se, i),
			}
		}
	}
	if s.Weights != nil {
		if len(s.Weights) != len(s.Estimates) {
			return &InvalidInputError{
				Field:  "weights",
				Reason: fmt.Sprintf("length %d does not match %d estimates", len(s.Weights), len(s.Estimates)),
			}
		}
		allZero := true
		for i, w := range s.Weights {
			if w < 0 {
				return &InvalidInputError{
					Field:  "weights",
					Reason: fmt.Sprintf("weight %g at index %d is negative", w, i),
				}
			}
			if w > 0 {
				allZero = false
			}
		}
		if allZero {
			return &InvalidInputError{Field: "weights", Reason: "weights must not all be zero"}
		}
	}
	if s.Names != nil && len(s.Names) != len(s.Estimates) {
		return &InvalidInputError{
			Field:  "names",
			Reason: fmt.Sprintf("length %d does not match %d estimates", len(s.Names), len(s.Estimates)),
		}
	}
	return nil
}

// Size returns the number of studies.
func (s StudySet) Size() int {
	return len(s.Estimates)
}

// EffectiveWeights returns the analysis weights, defaulting to unit weights
// when none were supplied.
func (s StudySet) EffectiveWeights() []float64 {
	if s.Weights != nil {
		return s.Weights
	}
	w := make([]float64, len(s.Estimates))
	for i := range w {
		w[i] = 1
	}
	return w
}

// MaxStandardError returns the largest standard error in the set. It is the
// scale used by the outward boundary search.
func (s StudySet) MaxStandardError() float64 {
	max := 0.0
	for _, se := range s.StandardErrors {
		if se > max {
			max = se
		}
	}
	return max
}

// Label returns the study name at index i, or a positional fallback.
func (s StudySet) Label(i int) string {
	if i < len(s.Names) && s.Names[i] != "" {
		return s.Names[i]
	}
	return fmt.Sprintf("study %d", i+1)
}
