package common

import (
	"fmt"

	"github.com/joseph-ayodele/bytelense/constants"
)

// ErrorKind classifies what went wrong (or which deterministic branch was taken) during a scan.
type ErrorKind string

const (
	KindNone                   ErrorKind = ""
	KindExtractionFailure      ErrorKind = "extraction_failure"
	KindGapUnresolved          ErrorKind = "gap_unresolved"
	KindExternalServiceTimeout ErrorKind = "external_service_timeout"
	KindScoringEngineFailure   ErrorKind = "scoring_engine_failure"
	KindAllergenOverride       ErrorKind = "allergen_override"
	KindLedgerWriteFailure     ErrorKind = "ledger_write_failure"

	// Non-fatal annotations recorded alongside the taxonomy above.
	KindExternalServiceError ErrorKind = "external_service_error"
	KindProfileMissing       ErrorKind = "profile_missing"
	KindContextUnavailable   ErrorKind = "context_unavailable"
	KindDeadlineExceeded     ErrorKind = "overall_deadline_exceeded"
)

// Fatal reports whether the kind aborts a scan.
func (k ErrorKind) Fatal() bool {
	return k == KindExtractionFailure || k == KindLedgerWriteFailure
}

// ScanError is a pipeline failure surfaced to the caller.
type ScanError struct {
	Kind             ErrorKind
	Stage            constants.Stage
	Message          string
	Recoverable      bool
	RetrySuggestions []string
	Cause            error
}

func (e *ScanError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s at %s: %s: %v", e.Kind, e.Stage, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s at %s: %s", e.Kind, e.Stage, e.Message)
}

func (e *ScanError) Unwrap() error {
	return e.Cause
}

// NewExtractionFailure builds the fatal no-usable-text error with capture guidance.
func NewExtractionFailure(cause error) *ScanError {
	return &ScanError{
		Kind:        KindExtractionFailure,
		Stage:       constants.StageImageProcessing,
		Message:     "could not read any text or barcode from the image",
		Recoverable: true,
		RetrySuggestions: []string{
			"Move to better lighting",
			"Hold the camera steady and closer to the label",
			"Make sure the nutrition panel is in frame",
		},
		Cause: cause,
	}
}

// NewLedgerWriteFailure builds the fatal error for an assessment that could not be recorded.
func NewLedgerWriteFailure(cause error) *ScanError {
	return &ScanError{
		Kind:             KindLedgerWriteFailure,
		Stage:            constants.StageAssembly,
		Message:          "assessment computed but not recorded; today's history is stale",
		Recoverable:      true,
		RetrySuggestions: []string{"Retry the scan to record it"},
		Cause:            cause,
	}
}

// Outcome is the result carried across a stage boundary.
type Outcome[T any] struct {
	Value      T
	Confidence float64
	Kind       ErrorKind
	Err        error
}

// OK builds a clean outcome.
func OK[T any](v T, confidence float64) Outcome[T] {
	return Outcome[T]{Value: v, Confidence: confidence}
}

// Degraded builds an outcome that carries a value and the reason it is degraded.
func Degraded[T any](v T, confidence float64, kind ErrorKind, err error) Outcome[T] {
	return Outcome[T]{Value: v, Confidence: confidence, Kind: kind, Err: err}
}

// Failed reports whether the outcome carries a non-nil error.
func (o Outcome[T]) Failed() bool {
	return o.Err != nil
}
