package config

import (
	"fmt"

	"github.com/realenhance/restage/internal/errors"
)

// Validate checks a Config for internal consistency. It is called after
// every load so a malformed config document or environment override is
// rejected before a job starts, not mid-validation.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.ErrConfigNil
	}

	if err := validateVision(&cfg.Vision); err != nil {
		return err
	}
	if err := validatePipeline(&cfg.Pipeline); err != nil {
		return err
	}
	if err := validateThresholds(&cfg.Thresholds); err != nil {
		return err
	}
	return validateChecks(&cfg.Checks)
}

func validateVision(v *VisionConfig) error {
	if v.Endpoint == "" {
		return fmt.Errorf("%w: vision.endpoint %w", errors.ErrConfigInvalidVision, errors.ErrEmptyValue)
	}
	if v.Model == "" {
		return fmt.Errorf("%w: vision.model %w", errors.ErrConfigInvalidVision, errors.ErrEmptyValue)
	}
	if v.GenerationTimeout <= 0 {
		return fmt.Errorf("%w: vision.generation_timeout must be positive", errors.ErrConfigInvalidVision)
	}
	if v.CheckTimeout <= 0 {
		return fmt.Errorf("%w: vision.check_timeout must be positive", errors.ErrConfigInvalidVision)
	}
	if v.MaxConcurrent < 1 {
		return fmt.Errorf("%w: vision.max_concurrent must be at least 1", errors.ErrConfigInvalidVision)
	}
	if v.Temperature < 0 || v.Temperature > 2 {
		return fmt.Errorf("%w: vision.temperature %w [0,2]", errors.ErrConfigInvalidVision, errors.ErrValueOutOfRange)
	}
	return nil
}

func validatePipeline(p *PipelineConfig) error {
	if p.StrictnessMultiplier <= 0 || p.StrictnessMultiplier >= 1 {
		return fmt.Errorf("%w: pipeline.strictness_multiplier %w (0,1)", errors.ErrConfigInvalidRetry, errors.ErrValueOutOfRange)
	}
	if p.MinTemperature < 0 {
		return fmt.Errorf("%w: pipeline.min_temperature must not be negative", errors.ErrConfigInvalidRetry)
	}
	if p.AspectRatioTolerance < 0 || p.AspectRatioTolerance > 0.5 {
		return fmt.Errorf("%w: pipeline.aspect_ratio_tolerance %w [0,0.5]", errors.ErrConfigInvalidThreshold, errors.ErrValueOutOfRange)
	}
	return nil
}

func validateThresholds(t *ThresholdsConfig) error {
	type named struct {
		key  string
		band Band
	}

	bands := []named{
		{"enhance.interior", t.Enhance.Interior},
		{"enhance.exterior", t.Enhance.Exterior},
		{"declutter.interior", t.Declutter.Interior},
		{"declutter.exterior", t.Declutter.Exterior},
		{"staging.interior", t.Staging.Interior},
		{"staging.exterior", t.Staging.Exterior},
	}

	for _, n := range bands {
		if err := validateBand(n.key, n.band); err != nil {
			return err
		}
	}

	// The staging stage has no tolerance band: soft and hard must coincide.
	for _, n := range []named{{"staging.interior", t.Staging.Interior}, {"staging.exterior", t.Staging.Exterior}} {
		if n.band.SoftEdgeMin != n.band.HardEdgeMin {
			return fmt.Errorf("%w: thresholds.%s soft_edge_min must equal hard_edge_min", errors.ErrConfigInvalidThreshold, n.key)
		}
		if n.band.SoftBrightMax != n.band.HardBrightMax {
			return fmt.Errorf("%w: thresholds.%s soft_bright_max must equal hard_bright_max", errors.ErrConfigInvalidThreshold, n.key)
		}
	}

	return nil
}

// validateBand enforces unit ranges and band ordering:
// extreme <= hard <= soft for edge floors, soft <= hard for brightness
// ceilings.
func validateBand(key string, b Band) error {
	unit := func(field string, v float64) error {
		if v < 0 || v > 1 {
			return fmt.Errorf("%w: thresholds.%s.%s %w [0,1]", errors.ErrConfigInvalidThreshold, key, field, errors.ErrValueOutOfRange)
		}
		return nil
	}

	for field, v := range map[string]float64{
		"soft_edge_min":          b.SoftEdgeMin,
		"hard_edge_min":          b.HardEdgeMin,
		"extreme_edge_min":       b.ExtremeEdgeMin,
		"soft_bright_max":        b.SoftBrightMax,
		"hard_bright_max":        b.HardBrightMax,
		"window_iou_min":         b.WindowIoUMin,
		"window_iou_extreme_min": b.WindowIoUExtremeMin,
		"area_delta_max":         b.AreaDeltaMax,
		"centroid_shift_max":     b.CentroidShiftMax,
	} {
		if err := unit(field, v); err != nil {
			return err
		}
	}

	if b.OcclusionMax < 0 || b.OcclusionMax > 255 {
		return fmt.Errorf("%w: thresholds.%s.occlusion_max %w [0,255]", errors.ErrConfigInvalidThreshold, key, errors.ErrValueOutOfRange)
	}

	if b.ExtremeEdgeMin > b.HardEdgeMin {
		return fmt.Errorf("%w: thresholds.%s extreme_edge_min exceeds hard_edge_min", errors.ErrConfigInvalidThreshold, key)
	}
	if b.HardEdgeMin > b.SoftEdgeMin {
		return fmt.Errorf("%w: thresholds.%s hard_edge_min exceeds soft_edge_min", errors.ErrConfigInvalidThreshold, key)
	}
	if b.SoftBrightMax > b.HardBrightMax {
		return fmt.Errorf("%w: thresholds.%s soft_bright_max exceeds hard_bright_max", errors.ErrConfigInvalidThreshold, key)
	}
	if b.WindowIoUExtremeMin > b.WindowIoUMin {
		return fmt.Errorf("%w: thresholds.%s window_iou_extreme_min exceeds window_iou_min", errors.ErrConfigInvalidThreshold, key)
	}

	return nil
}

func validateChecks(c *ChecksConfig) error {
	for name, w := range c.Weights {
		if w <= 0 || w > 1 {
			return fmt.Errorf("%w: checks.weights.%s %w (0,1]", errors.ErrConfigInvalidWeight, name, errors.ErrValueOutOfRange)
		}
	}
	if c.BaselineWeight <= 0 || c.BaselineWeight > 1 {
		return fmt.Errorf("%w: checks.baseline_weight %w (0,1]", errors.ErrConfigInvalidWeight, errors.ErrValueOutOfRange)
	}
	if c.AcceptScore <= 0 || c.AcceptScore > 1 {
		return fmt.Errorf("%w: checks.accept_score %w (0,1]", errors.ErrConfigInvalidWeight, errors.ErrValueOutOfRange)
	}
	return nil
}
