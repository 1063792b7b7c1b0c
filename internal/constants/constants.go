// Package constants provides centralized constant values used throughout restage.
// This package is the single source of truth for all shared constants and MUST NOT
// import any other internal packages.
package constants

import "time"

// Directory names and paths used by restage for organizing data.
const (
	// RestageHome is the hidden directory name where restage stores its data.
	// This directory is created in the user's home directory.
	RestageHome = ".restage"

	// ArtifactsDir is the directory name where per-job intermediate images
	// are stored. Paths under it always embed the job ID to keep concurrent
	// jobs from colliding.
	ArtifactsDir = "artifacts"

	// LogsDir is the directory name where log files are stored.
	LogsDir = "logs"

	// ConfigFileName is the name of the YAML configuration document.
	ConfigFileName = "config.yaml"
)

// Timeout configurations for external vision service operations.
// Every external call must carry a bounded timeout and be cancellable.
const (
	// DefaultGenerationTimeout is the maximum duration for a single image
	// generation call.
	DefaultGenerationTimeout = 3 * time.Minute

	// DefaultCheckTimeout is the maximum duration for a single semantic
	// check call. Checks are much cheaper than generation.
	DefaultCheckTimeout = 45 * time.Second
)

// Retry ladder defaults. A stage gets exactly one stricter retry.
const (
	// MaxStageAttempts is the total attempts per stage: the initial
	// generation plus one stricter retry.
	MaxStageAttempts = 2

	// StrictRetryTemperatureMultiplier scales sampling temperature down on
	// the stricter retry.
	StrictRetryTemperatureMultiplier = 0.8

	// MinSamplingTemperature is the floor applied after the multiplier.
	MinSamplingTemperature = 0.1
)

// Logging configuration.
const (
	// CLILogFileName is the rotating log file written under LogsDir.
	CLILogFileName = "restage.log"

	// LogMaxSizeMB is the maximum size of a log file before rotation.
	LogMaxSizeMB = 10

	// LogMaxBackups is the number of rotated files to retain.
	LogMaxBackups = 5

	// LogMaxAgeDays is the maximum age of a rotated file in days.
	LogMaxAgeDays = 30

	// LogCompress enables gzip compression of rotated files.
	LogCompress = true
)

// Image processing defaults.
const (
	// MaxProcessingDimension caps the longer image side before pixel
	// analysis. Larger inputs are downsampled to keep kernels fast.
	MaxProcessingDimension = 1920

	// DefaultVisionConcurrency bounds parallel semantic check calls so the
	// external service's concurrent-request limit is not overwhelmed.
	DefaultVisionConcurrency = 4
)
