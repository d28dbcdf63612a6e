// Package ocr extracts raw text from product label images.
package ocr

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/allergen-risk/internal/config"
	"github.com/sells-group/allergen-risk/pkg/anthropic"
)

// Extractor extracts text from an image file.
type Extractor interface {
	ExtractText(ctx context.Context, imagePath string) (string, error)
}

// ProviderError is a failure reported by the OCR provider itself, as opposed
// to a transport failure. Callers surface it to users as a data note.
type ProviderError struct {
	Provider string
	Message  string
}

func (e *ProviderError) Error() string {
	return e.Provider + " error: " + e.Message
}

// NewExtractor creates an Extractor based on config.
func NewExtractor(cfg config.OCRConfig, anth config.AnthropicConfig) (Extractor, error) {
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	switch cfg.Provider {
	case "ocrspace", "":
		return NewOCRSpace(cfg.OCRSpaceKey, cfg.Language, WithEndpoint(cfg.OCRSpaceURL), WithTimeout(timeout)), nil
	case "tesseract":
		return NewTesseract(cfg.TesseractPath, cfg.Language), nil
	case "anthropic":
		if anth.Key == "" {
			return nil, eris.New("ocr: anthropic provider requires anthropic.key")
		}
		return NewVision(anthropic.NewClient(anth.Key), anth.Model), nil
	default:
		return nil, eris.Errorf("ocr: unknown provider %q", cfg.Provider)
	}
}

// SplitLines trims each line of text and drops empty ones.
func SplitLines(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}

func mediaType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	default:
		return "image/png"
	}
}
