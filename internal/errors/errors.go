// Package errors provides centralized error handling for restage.
//
// This package defines sentinel errors used for programmatic error categorization
// throughout the application. All error types can be checked using errors.Is().
//
// IMPORTANT: This package MUST NOT import any other internal packages.
// Only standard library imports are allowed.
package errors

import "errors"

// Sentinel errors for error categorization.
// These allow callers to check error types with errors.Is().
// All errors use lowercase descriptions per Go conventions.
var (
	// ErrDetectionFailed indicates that an external check returned unparseable
	// or incomplete structured data. Fail-closed checks convert this into a
	// violation; fail-open checks log it and treat the check as passed.
	ErrDetectionFailed = errors.New("detection failed")

	// ErrDimensionMismatch indicates that baseline and candidate images could
	// not be aligned to the same dimensions even after resampling.
	ErrDimensionMismatch = errors.New("image dimensions cannot be aligned")

	// ErrStructuralViolation indicates a hard edge/brightness/window failure.
	// Structural violations bypass weighted aggregation entirely.
	ErrStructuralViolation = errors.New("structural violation")

	// ErrWindowDisappeared indicates that a baseline window found no matching
	// candidate window at all.
	ErrWindowDisappeared = errors.New("window disappeared")

	// ErrVisionService indicates a network, auth, or quota failure while
	// calling the external vision service.
	ErrVisionService = errors.New("vision service request failed")

	// ErrVisionEmptyResponse indicates the vision service returned a response
	// with no usable image or text part.
	ErrVisionEmptyResponse = errors.New("vision service returned empty response")

	// ErrVisionInvalidFormat indicates the vision service response was not in
	// the expected structured format.
	ErrVisionInvalidFormat = errors.New("vision response not in expected format")

	// ErrNoJSONFound indicates that no parseable JSON object could be
	// extracted from free-text model output after all fallback strategies.
	ErrNoJSONFound = errors.New("no json object found in model output")

	// ErrGenerationFailed indicates that a generation attempt produced no
	// candidate image to validate.
	ErrGenerationFailed = errors.New("generation produced no candidate image")

	// ErrStageFailed indicates that a pipeline stage failed validation after
	// exhausting its retry ladder.
	ErrStageFailed = errors.New("stage failed validation")

	// ErrMaxRetriesExceeded indicates the bounded retry ladder has been
	// exhausted for the current stage.
	ErrMaxRetriesExceeded = errors.New("maximum retry attempts exceeded")

	// ErrUnknownStage indicates an unrecognized stage identifier.
	ErrUnknownStage = errors.New("unknown stage")

	// ErrUnknownScene indicates an unrecognized scene type.
	ErrUnknownScene = errors.New("unknown scene type")

	// ErrConfigNil indicates that a nil config was passed to validation.
	ErrConfigNil = errors.New("config is nil")

	// ErrConfigInvalidThreshold indicates an invalid threshold band value.
	ErrConfigInvalidThreshold = errors.New("invalid threshold configuration")

	// ErrConfigInvalidWeight indicates an invalid check weight value.
	ErrConfigInvalidWeight = errors.New("invalid check weight configuration")

	// ErrConfigInvalidVision indicates an invalid vision service configuration.
	ErrConfigInvalidVision = errors.New("invalid vision configuration")

	// ErrConfigInvalidRetry indicates an invalid retry ladder configuration.
	ErrConfigInvalidRetry = errors.New("invalid retry configuration")

	// ErrEmptyValue indicates that a required value was empty.
	ErrEmptyValue = errors.New("value cannot be empty")

	// ErrValueOutOfRange indicates that a value is outside the allowed range.
	ErrValueOutOfRange = errors.New("value out of range")

	// ErrArtifactNotFound indicates the requested artifact file was not found.
	ErrArtifactNotFound = errors.New("artifact not found")

	// ErrInvalidTransition indicates an attempt to make an invalid pipeline
	// state transition.
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrUnsupportedImageFormat indicates an image format restage cannot decode.
	ErrUnsupportedImageFormat = errors.New("unsupported image format")

	// ErrInvalidOutputFormat indicates an invalid CLI output format was specified.
	ErrInvalidOutputFormat = errors.New("invalid output format")
)
