// Package config provides configuration management for restage with layered precedence.
//
// Configuration sources are loaded in the following order (highest precedence first):
//  1. Environment variables (RESTAGE_* prefix)
//  2. Project config (.restage/config.yaml)
//  3. Global config (~/.restage/config.yaml)
//  4. Built-in defaults
//
// Each higher level completely overrides the lower level for the same key.
// Configuration is read once per job and treated as immutable thereafter.
//
// IMPORTANT: This package may import internal/constants, internal/errors and
// internal/domain, but MUST NOT import other internal packages.
package config

import (
	"time"

	"github.com/realenhance/restage/internal/domain"
	"github.com/realenhance/restage/internal/errors"
)

// Config is the root configuration structure for restage.
type Config struct {
	// Vision contains settings for the external vision service client.
	Vision VisionConfig `yaml:"vision" json:"vision" mapstructure:"vision"`

	// Pipeline contains settings for the stage orchestrator and retry ladder.
	Pipeline PipelineConfig `yaml:"pipeline" json:"pipeline" mapstructure:"pipeline"`

	// Thresholds contains the per-stage, per-scene threshold band matrix.
	Thresholds ThresholdsConfig `yaml:"thresholds" json:"thresholds" mapstructure:"thresholds"`

	// Checks contains semantic check weights and acceptance scoring.
	Checks ChecksConfig `yaml:"checks" json:"checks" mapstructure:"checks"`
}

// VisionConfig contains settings for the external vision service.
type VisionConfig struct {
	// Endpoint is the base URL of the vision service.
	Endpoint string `yaml:"endpoint" json:"endpoint" mapstructure:"endpoint"`

	// Model is the model identifier sent with every request.
	Model string `yaml:"model" json:"model" mapstructure:"model"`

	// APIKeyEnvVar names the environment variable holding the API key.
	// The key itself never appears in config files or logs.
	APIKeyEnvVar string `yaml:"api_key_env_var" json:"api_key_env_var" mapstructure:"api_key_env_var"`

	// GenerationTimeout bounds a single image generation call.
	GenerationTimeout time.Duration `yaml:"generation_timeout" json:"generation_timeout" mapstructure:"generation_timeout"`

	// CheckTimeout bounds a single semantic check call.
	CheckTimeout time.Duration `yaml:"check_timeout" json:"check_timeout" mapstructure:"check_timeout"`

	// MaxConcurrent bounds parallel semantic check calls against the service.
	MaxConcurrent int `yaml:"max_concurrent" json:"max_concurrent" mapstructure:"max_concurrent"`

	// Temperature is the initial sampling temperature for generation.
	Temperature float64 `yaml:"temperature" json:"temperature" mapstructure:"temperature"`
}

// PipelineConfig contains settings for the stage orchestrator.
type PipelineConfig struct {
	// StrictnessMultiplier scales sampling temperature down on the single
	// stricter retry (e.g. 0.8).
	StrictnessMultiplier float64 `yaml:"strictness_multiplier" json:"strictness_multiplier" mapstructure:"strictness_multiplier"`

	// MinTemperature is the floor applied after the multiplier.
	MinTemperature float64 `yaml:"min_temperature" json:"min_temperature" mapstructure:"min_temperature"`

	// AllowStageFallback permits the orchestrator to return the previous
	// stage's accepted artifact when a stage exhausts its ladder. This is
	// an explicit caller decision, never a silent default.
	AllowStageFallback bool `yaml:"allow_stage_fallback" json:"allow_stage_fallback" mapstructure:"allow_stage_fallback"`

	// AspectRatioTolerance is the maximum relative aspect-ratio divergence
	// at which a candidate can still be resampled to baseline dimensions.
	// Beyond it the mismatch is unresolvable and hard-fails.
	AspectRatioTolerance float64 `yaml:"aspect_ratio_tolerance" json:"aspect_ratio_tolerance" mapstructure:"aspect_ratio_tolerance"`

	// ArtifactDir is the root directory for per-job artifact storage.
	// Empty means ~/.restage/artifacts.
	ArtifactDir string `yaml:"artifact_dir" json:"artifact_dir" mapstructure:"artifact_dir"`
}

// Band holds every numeric limit applied to one (stage, scene) pair.
// Edge floors are minimums on edge-map IoU; brightness ceilings are
// maximums on the percentile brightness-shift metric; window limits bound
// the object correspondence deltas.
type Band struct {
	// SoftEdgeMin is the preferred edge similarity floor.
	SoftEdgeMin float64 `yaml:"soft_edge_min" json:"soft_edge_min" mapstructure:"soft_edge_min"`

	// HardEdgeMin is the floor below which the pair hard-fails when
	// combined with a brightness breach. For the staging stage soft and
	// hard collapse to the same value (zero tolerance).
	HardEdgeMin float64 `yaml:"hard_edge_min" json:"hard_edge_min" mapstructure:"hard_edge_min"`

	// ExtremeEdgeMin fails unconditionally regardless of other signals.
	ExtremeEdgeMin float64 `yaml:"extreme_edge_min" json:"extreme_edge_min" mapstructure:"extreme_edge_min"`

	// SoftBrightMax is the preferred brightness-shift ceiling.
	SoftBrightMax float64 `yaml:"soft_bright_max" json:"soft_bright_max" mapstructure:"soft_bright_max"`

	// HardBrightMax is the ceiling above which the pair hard-fails.
	HardBrightMax float64 `yaml:"hard_bright_max" json:"hard_bright_max" mapstructure:"hard_bright_max"`

	// WindowIoUMin is the soft window-overlap floor for matched pairs.
	WindowIoUMin float64 `yaml:"window_iou_min" json:"window_iou_min" mapstructure:"window_iou_min"`

	// WindowIoUExtremeMin fails a matched pair unconditionally.
	WindowIoUExtremeMin float64 `yaml:"window_iou_extreme_min" json:"window_iou_extreme_min" mapstructure:"window_iou_extreme_min"`

	// AreaDeltaMax bounds |Δarea|/origArea per matched window.
	AreaDeltaMax float64 `yaml:"area_delta_max" json:"area_delta_max" mapstructure:"area_delta_max"`

	// CentroidShiftMax bounds centroid movement as a fraction of the image
	// diagonal.
	CentroidShiftMax float64 `yaml:"centroid_shift_max" json:"centroid_shift_max" mapstructure:"centroid_shift_max"`

	// OcclusionMax bounds the mean luminance drop (0-255 scale) inside the
	// original window region.
	OcclusionMax float64 `yaml:"occlusion_max" json:"occlusion_max" mapstructure:"occlusion_max"`
}

// SceneBands holds the band for each scene type of one stage.
type SceneBands struct {
	Interior Band `yaml:"interior" json:"interior" mapstructure:"interior"`
	Exterior Band `yaml:"exterior" json:"exterior" mapstructure:"exterior"`
}

// ThresholdsConfig is the full (stage, scene) threshold matrix. Keeping it
// one table keeps the matrix auditable and testable in isolation from the
// algorithms that consume it.
type ThresholdsConfig struct {
	Enhance   SceneBands `yaml:"enhance" json:"enhance" mapstructure:"enhance"`
	Declutter SceneBands `yaml:"declutter" json:"declutter" mapstructure:"declutter"`
	Staging   SceneBands `yaml:"staging" json:"staging" mapstructure:"staging"`
}

// Lookup returns the band for a (stage, scene) pair.
func (t *ThresholdsConfig) Lookup(stage domain.Stage, scene domain.Scene) (Band, error) {
	var bands SceneBands
	switch stage {
	case domain.StageEnhance:
		bands = t.Enhance
	case domain.StageDeclutter:
		bands = t.Declutter
	case domain.StageStaging:
		bands = t.Staging
	default:
		return Band{}, errors.Wrapf(errors.ErrUnknownStage, "%q", stage)
	}

	switch scene {
	case domain.SceneInterior:
		return bands.Interior, nil
	case domain.SceneExterior:
		return bands.Exterior, nil
	default:
		return Band{}, errors.Wrapf(errors.ErrUnknownScene, "%q", scene)
	}
}

// ChecksConfig contains semantic check weighting and acceptance scoring.
type ChecksConfig struct {
	// Weights maps check name to weight. Checks absent from the map get
	// BaselineWeight so unweighted checks never vanish from the denominator.
	Weights map[string]float64 `yaml:"weights" json:"weights" mapstructure:"weights"`

	// BaselineWeight is the default weight for checks without an entry.
	BaselineWeight float64 `yaml:"baseline_weight" json:"baseline_weight" mapstructure:"baseline_weight"`

	// AcceptScore is the normalized score threshold for acceptance.
	AcceptScore float64 `yaml:"accept_score" json:"accept_score" mapstructure:"accept_score"`
}

// WeightFor returns the configured weight for a check, falling back to the
// baseline weight for unknown or non-positive entries.
func (c *ChecksConfig) WeightFor(name string) float64 {
	if w, ok := c.Weights[name]; ok && w > 0 {
		return w
	}
	if c.BaselineWeight > 0 {
		return c.BaselineWeight
	}
	return 0.1
}
