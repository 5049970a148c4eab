package pipeline

import (
	"errors"
	"time"

	"github.com/JonMunkholm/sheetload/internal/config"
	"github.com/JonMunkholm/sheetload/internal/dedup"
	"github.com/JonMunkholm/sheetload/internal/inference"
	"github.com/JonMunkholm/sheetload/internal/matcher"
	"github.com/JonMunkholm/sheetload/internal/validate"
)

const (
	// PreviewRows is how many rows Preview runs the stages on.
	PreviewRows = 100

	DefaultTimeout = 5 * time.Minute
)

// Options carries the settings of every stage. Zero values take each
// component's defaults.
type Options struct {
	Inference          inference.Options
	Matcher            matcher.Options
	MinApplyConfidence float64
	Validator          validate.Options
	Dedup              dedup.Options
	Keep               dedup.KeepPolicy
	Timeout            time.Duration
}

// OptionsFromConfig translates the configured pipeline settings. Every
// invalid enum value is reported.
func OptionsFromConfig(cfg config.PipelineConfig) (Options, error) {
	var errs []error

	strategy, err := matcher.ParseStrategy(cfg.MatchStrategy)
	errs = append(errs, err)
	overlap, err := validate.ParseOverlapPolicy(cfg.OverlapPolicy)
	errs = append(errs, err)
	dedupStrategy, err := dedup.ParseStrategy(cfg.DedupStrategy)
	errs = append(errs, err)
	keep, err := dedup.ParseKeepPolicy(cfg.KeepPolicy)
	errs = append(errs, err)

	if err := errors.Join(errs...); err != nil {
		return Options{}, err
	}

	return Options{
		Inference: inference.Options{
			Threshold:  cfg.InferenceThreshold,
			SampleSize: cfg.InferenceSample,
		},
		Matcher: matcher.Options{
			Threshold:     cfg.FuzzyThreshold,
			HighThreshold: cfg.HighThreshold,
			Strategy:      strategy,
		},
		MinApplyConfidence: cfg.MinApplyConfidence,
		Validator: validate.Options{
			MaxErrorRate: cfg.MaxErrorRate,
			Overlap:      overlap,
		},
		Dedup: dedup.Options{
			BatchSize: cfg.DedupBatchSize,
			MaxRows:   cfg.DedupMaxRows,
			Workers:   cfg.DedupWorkers,
			Strategy:  dedupStrategy,
		},
		Keep:    keep,
		Timeout: cfg.Timeout,
	}, nil
}
