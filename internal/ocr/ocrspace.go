package ocr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/allergen-risk/internal/resilience"
)

const (
	ocrSpaceEndpoint = "https://api.ocr.space/parse/image"
	// ocrSpaceDemoKey is the public key OCR.space hands out for evaluation.
	ocrSpaceDemoKey = "helloworld"
)

// OCRSpace extracts text using the OCR.space HTTP API.
type OCRSpace struct {
	apiKey   string
	language string
	endpoint string
	client   *http.Client
	retry    resilience.RetryConfig
}

// OCRSpaceOption configures an OCRSpace extractor.
type OCRSpaceOption func(*OCRSpace)

// WithEndpoint overrides the API endpoint (for testing).
func WithEndpoint(u string) OCRSpaceOption {
	return func(o *OCRSpace) {
		if u != "" {
			o.endpoint = u
		}
	}
}

// WithTimeout sets the HTTP timeout.
func WithTimeout(d time.Duration) OCRSpaceOption {
	return func(o *OCRSpace) {
		if d > 0 {
			o.client.Timeout = d
		}
	}
}

// WithRetry overrides the retry settings for 429 and 5xx responses.
func WithRetry(cfg resilience.RetryConfig) OCRSpaceOption {
	return func(o *OCRSpace) {
		o.retry = cfg
	}
}

// NewOCRSpace creates an OCR.space extractor. An empty key uses the demo key
// and an empty language defaults to English.
func NewOCRSpace(apiKey, language string, opts ...OCRSpaceOption) *OCRSpace {
	if apiKey == "" {
		apiKey = ocrSpaceDemoKey
	}
	if language == "" {
		language = "eng"
	}
	o := &OCRSpace{
		apiKey:   apiKey,
		language: language,
		endpoint: ocrSpaceEndpoint,
		client:   &http.Client{Timeout: 60 * time.Second},
		retry:    resilience.DefaultRetryConfig(),
	}
	o.retry.OnRetry = resilience.RetryLogger("ocrspace", "parse")
	for _, opt := range opts {
		opt(o)
	}
	return o
}

type ocrSpaceResponse struct {
	ParsedResults []struct {
		ParsedText string `json:"ParsedText"`
	} `json:"ParsedResults"`
	IsErroredOnProcessing bool `json:"IsErroredOnProcessing"`
	// ErrorMessage is a string or a list of strings depending on the error.
	ErrorMessage json.RawMessage `json:"ErrorMessage"`
	ErrorDetails string          `json:"ErrorDetails"`
}

func (r ocrSpaceResponse) errorText() string {
	var list []string
	if err := json.Unmarshal(r.ErrorMessage, &list); err == nil && len(list) > 0 {
		return strings.Join(list, "; ")
	}
	var single string
	if err := json.Unmarshal(r.ErrorMessage, &single); err == nil && single != "" {
		return single
	}
	if r.ErrorDetails != "" {
		return r.ErrorDetails
	}
	return "OCR.space failed"
}

// ExtractText uploads the image with OCR engine 2 and joins the parsed text
// of every result.
func (o *OCRSpace) ExtractText(ctx context.Context, imagePath string) (string, error) {
	data, err := os.ReadFile(imagePath)
	if err != nil {
		return "", eris.Wrapf(err, "ocr: read image %s", imagePath)
	}

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for k, v := range map[string]string{"apikey": o.apiKey, "language": o.language, "OCREngine": "2"} {
		if err := w.WriteField(k, v); err != nil {
			return "", eris.Wrap(err, "ocr: write form field")
		}
	}
	part, err := w.CreateFormFile("file", filepath.Base(imagePath))
	if err != nil {
		return "", eris.Wrap(err, "ocr: create form file")
	}
	if _, err := part.Write(data); err != nil {
		return "", eris.Wrap(err, "ocr: write image")
	}
	if err := w.Close(); err != nil {
		return "", eris.Wrap(err, "ocr: close form")
	}

	payload, contentType := body.Bytes(), w.FormDataContentType()

	var (
		respBody []byte
		status   int
	)
	err = resilience.Do(ctx, o.retry, func(ctx context.Context) error {
		status = 0
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.endpoint, bytes.NewReader(payload))
		if err != nil {
			return eris.Wrap(err, "ocr: create request")
		}
		req.Header.Set("Content-Type", contentType)

		resp, err := o.client.Do(req)
		if err != nil {
			return eris.Wrap(err, "ocr: ocrspace request")
		}
		defer resp.Body.Close() //nolint:errcheck

		b, err := io.ReadAll(resp.Body)
		if err != nil {
			return eris.Wrap(err, "ocr: read response")
		}
		status = resp.StatusCode
		if status != http.StatusOK {
			return resilience.StatusError("ocrspace", status, string(b))
		}
		respBody = b
		return nil
	})
	if err != nil {
		if status != 0 && status != http.StatusOK {
			return "", &ProviderError{Provider: "OCR.space", Message: fmt.Sprintf("status %d %s", status, http.StatusText(status))}
		}
		return "", err
	}

	var parsed ocrSpaceResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", eris.Wrap(err, "ocr: decode ocrspace response")
	}
	if parsed.IsErroredOnProcessing {
		return "", &ProviderError{Provider: "OCR.space", Message: parsed.errorText()}
	}

	var parts []string
	for _, r := range parsed.ParsedResults {
		if r.ParsedText != "" {
			parts = append(parts, r.ParsedText)
		}
	}
	return strings.TrimSpace(strings.Join(parts, "\n")), nil
}
