package ocr

import (
	"context"
	"os"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/allergen-risk/pkg/anthropic"
)

const (
	defaultVisionModel = "claude-haiku-4-5-20251001"
	visionSystemPrompt = "You transcribe food packaging. Return only the text printed on the label, " +
		"preserving the ingredient list and any allergen or \"may contain\" statements. " +
		"If no text is legible, return nothing."
)

// Vision extracts label text with an Anthropic vision model.
type Vision struct {
	client anthropic.Client
	model  string
}

// NewVision creates a Vision extractor. If model is empty, the default is used.
func NewVision(client anthropic.Client, model string) *Vision {
	if model == "" {
		model = defaultVisionModel
	}
	return &Vision{client: client, model: model}
}

// ExtractText sends the image to the model and returns its transcription.
func (v *Vision) ExtractText(ctx context.Context, imagePath string) (string, error) {
	data, err := os.ReadFile(imagePath)
	if err != nil {
		return "", eris.Wrapf(err, "ocr: read image %s", imagePath)
	}

	temp := 0.0
	resp, err := v.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       v.model,
		MaxTokens:   2048,
		System:      visionSystemPrompt,
		Temperature: &temp,
		Messages: []anthropic.Message{{
			Role:    "user",
			Content: "Transcribe the text on this product label.",
			Images:  []anthropic.Image{{MediaType: mediaType(imagePath), Data: data}},
		}},
	})
	if err != nil {
		return "", eris.Wrap(err, "ocr: vision transcription")
	}
	resp.Usage.LogCost(v.model, "ocr")

	return strings.TrimSpace(resp.Text()), nil
}
