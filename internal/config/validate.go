package config

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
)

// Validate checks the settings a command mode depends on. Modes are
// "assess", "batch" and "serve".
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "assess":
	case "batch":
		if c.Batch.MaxConcurrency < 1 || c.Batch.MaxConcurrency > 64 {
			errs = append(errs, "batch.max_concurrency must be between 1 and 64")
		}
	case "serve":
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, "server.port must be > 0 and <= 65535")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	errs = append(errs, c.validateCommon()...)

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (c *Config) validateCommon() []string {
	var errs []string

	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		errs = append(errs, fmt.Sprintf("store.driver %q must be sqlite or postgres", c.Store.Driver))
	}
	if c.Store.DatabaseURL == "" {
		errs = append(errs, "store.database_url is required")
	}

	if !unit(c.Risk.TraceWeight) {
		errs = append(errs, "risk.trace_weight must be within [0,1]")
	}
	if !unit(c.Risk.ProximityConfidence) {
		errs = append(errs, "risk.proximity_confidence must be within [0,1]")
	}
	if c.CrossContact.PriorAlpha <= 0 || c.CrossContact.PriorBeta <= 0 {
		errs = append(errs, "cross_contact prior_alpha and prior_beta must be > 0")
	}
	if !positiveUnit(c.OCR.ContainsConfidence) {
		errs = append(errs, "ocr.contains_confidence must be within (0,1]")
	}
	if !positiveUnit(c.OpenFoodFacts.TracesConfidence) || !positiveUnit(c.OpenFoodFacts.MayContainConfidence) {
		errs = append(errs, "openfoodfacts confidences must be within (0,1]")
	}
	if !positiveUnit(c.Ingredients.Confidence) {
		errs = append(errs, "ingredients.confidence must be within (0,1]")
	}

	switch c.OCR.Provider {
	case "ocrspace", "tesseract":
	case "anthropic":
		if c.Anthropic.Key == "" {
			errs = append(errs, "anthropic.key is required for ocr.provider anthropic")
		}
	default:
		errs = append(errs, fmt.Sprintf("ocr.provider %q must be ocrspace, anthropic or tesseract", c.OCR.Provider))
	}

	return errs
}

func unit(v float64) bool {
	return v >= 0 && v <= 1
}

// positiveUnit reports whether v is within (0,1].
func positiveUnit(v float64) bool {
	return v > 0 && v <= 1
}
