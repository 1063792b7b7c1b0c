package config

import (
	"github.com/spf13/viper"

	"github.com/realenhance/restage/internal/constants"
)

// DefaultConfig returns the compiled-in configuration. These values are the
// lowest layer of the precedence chain and are tuned for 1080p-class
// real-estate photography.
func DefaultConfig() *Config {
	return &Config{
		Vision: VisionConfig{
			Endpoint:          "https://generativelanguage.googleapis.com",
			Model:             "gemini-2.5-flash-image",
			APIKeyEnvVar:      "GEMINI_API_KEY",
			GenerationTimeout: constants.DefaultGenerationTimeout,
			CheckTimeout:      constants.DefaultCheckTimeout,
			MaxConcurrent:     constants.DefaultVisionConcurrency,
			Temperature:       0.7,
		},
		Pipeline: PipelineConfig{
			StrictnessMultiplier: constants.StrictRetryTemperatureMultiplier,
			MinTemperature:       constants.MinSamplingTemperature,
			AllowStageFallback:   false,
			AspectRatioTolerance: 0.02,
		},
		Thresholds: defaultThresholds(),
		Checks: ChecksConfig{
			Weights: map[string]float64{
				"perspective":   0.35,
				"wall_plane":    0.35,
				"window_count":  0.15,
				"furniture":     0.15,
				"fixtures":      0.15,
				"field_of_view": 0.20,
				"realism":       0.10,
			},
			BaselineWeight: 0.10,
			AcceptScore:    0.80,
		},
	}
}

// defaultThresholds builds the compiled-in threshold matrix.
//
// Enhancement and declutter keep soft and hard bands distinct to tolerate
// benign tone-mapping differences; the staging stage collapses soft==hard
// (zero tolerance). Exterior bands run slightly looser because sky and
// foliage destabilize edge maps.
func defaultThresholds() ThresholdsConfig {
	enhanceInterior := Band{
		SoftEdgeMin:         0.55,
		HardEdgeMin:         0.40,
		ExtremeEdgeMin:      0.25,
		SoftBrightMax:       0.15,
		HardBrightMax:       0.30,
		WindowIoUMin:        0.55,
		WindowIoUExtremeMin: 0.30,
		AreaDeltaMax:        0.25,
		CentroidShiftMax:    0.05,
		OcclusionMax:        40,
	}

	enhanceExterior := enhanceInterior
	enhanceExterior.SoftEdgeMin = 0.50
	enhanceExterior.HardEdgeMin = 0.35
	enhanceExterior.ExtremeEdgeMin = 0.22
	enhanceExterior.SoftBrightMax = 0.20
	enhanceExterior.HardBrightMax = 0.35

	// Declutter removes objects, which legitimately perturbs more edges
	// than pure tone work, so its edge floors sit slightly below enhance.
	declutterInterior := enhanceInterior
	declutterInterior.SoftEdgeMin = 0.50
	declutterInterior.HardEdgeMin = 0.38

	declutterExterior := enhanceExterior
	declutterExterior.SoftEdgeMin = 0.46
	declutterExterior.HardEdgeMin = 0.33

	stagingInterior := Band{
		SoftEdgeMin:         0.60,
		HardEdgeMin:         0.60, // soft==hard: zero tolerance
		ExtremeEdgeMin:      0.45,
		SoftBrightMax:       0.12,
		HardBrightMax:       0.12,
		WindowIoUMin:        0.65,
		WindowIoUExtremeMin: 0.40,
		AreaDeltaMax:        0.15,
		CentroidShiftMax:    0.01,
		OcclusionMax:        25,
	}

	stagingExterior := stagingInterior
	stagingExterior.SoftEdgeMin = 0.55
	stagingExterior.HardEdgeMin = 0.55
	stagingExterior.ExtremeEdgeMin = 0.40

	return ThresholdsConfig{
		Enhance:   SceneBands{Interior: enhanceInterior, Exterior: enhanceExterior},
		Declutter: SceneBands{Interior: declutterInterior, Exterior: declutterExterior},
		Staging:   SceneBands{Interior: stagingInterior, Exterior: stagingExterior},
	}
}

// setDefaults configures all default values on the Viper instance.
// These defaults match the values from DefaultConfig().
// IMPORTANT: Keys must match the YAML tag names exactly for proper mapping.
func setDefaults(v *viper.Viper) {
	def := DefaultConfig()

	// Vision defaults
	v.SetDefault("vision.endpoint", def.Vision.Endpoint)
	v.SetDefault("vision.model", def.Vision.Model)
	v.SetDefault("vision.api_key_env_var", def.Vision.APIKeyEnvVar)
	v.SetDefault("vision.generation_timeout", def.Vision.GenerationTimeout.String())
	v.SetDefault("vision.check_timeout", def.Vision.CheckTimeout.String())
	v.SetDefault("vision.max_concurrent", def.Vision.MaxConcurrent)
	v.SetDefault("vision.temperature", def.Vision.Temperature)

	// Pipeline defaults
	v.SetDefault("pipeline.strictness_multiplier", def.Pipeline.StrictnessMultiplier)
	v.SetDefault("pipeline.min_temperature", def.Pipeline.MinTemperature)
	v.SetDefault("pipeline.allow_stage_fallback", def.Pipeline.AllowStageFallback)
	v.SetDefault("pipeline.aspect_ratio_tolerance", def.Pipeline.AspectRatioTolerance)
	v.SetDefault("pipeline.artifact_dir", def.Pipeline.ArtifactDir)

	// Threshold matrix defaults
	setBandDefaults(v, "thresholds.enhance.interior", def.Thresholds.Enhance.Interior)
	setBandDefaults(v, "thresholds.enhance.exterior", def.Thresholds.Enhance.Exterior)
	setBandDefaults(v, "thresholds.declutter.interior", def.Thresholds.Declutter.Interior)
	setBandDefaults(v, "thresholds.declutter.exterior", def.Thresholds.Declutter.Exterior)
	setBandDefaults(v, "thresholds.staging.interior", def.Thresholds.Staging.Interior)
	setBandDefaults(v, "thresholds.staging.exterior", def.Thresholds.Staging.Exterior)

	// Check defaults
	v.SetDefault("checks.weights", def.Checks.Weights)
	v.SetDefault("checks.baseline_weight", def.Checks.BaselineWeight)
	v.SetDefault("checks.accept_score", def.Checks.AcceptScore)
}

// setBandDefaults registers one band's fields under the given key prefix.
func setBandDefaults(v *viper.Viper, prefix string, b Band) {
	v.SetDefault(prefix+".soft_edge_min", b.SoftEdgeMin)
	v.SetDefault(prefix+".hard_edge_min", b.HardEdgeMin)
	v.SetDefault(prefix+".extreme_edge_min", b.ExtremeEdgeMin)
	v.SetDefault(prefix+".soft_bright_max", b.SoftBrightMax)
	v.SetDefault(prefix+".hard_bright_max", b.HardBrightMax)
	v.SetDefault(prefix+".window_iou_min", b.WindowIoUMin)
	v.SetDefault(prefix+".window_iou_extreme_min", b.WindowIoUExtremeMin)
	v.SetDefault(prefix+".area_delta_max", b.AreaDeltaMax)
	v.SetDefault(prefix+".centroid_shift_max", b.CentroidShiftMax)
	v.SetDefault(prefix+".occlusion_max", b.OcclusionMax)
}
