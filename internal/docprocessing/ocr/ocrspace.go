package ocr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

// DefaultOCRSpaceURL is the public OCR.space parse endpoint
const DefaultOCRSpaceURL = "https://api.ocr.space/parse/image"

// OCRSpace reads text through the OCR.space HTTP API.
type OCRSpace struct {
	url        string
	apiKey     string
	language   string
	httpClient *http.Client
}

// NewOCRSpace creates a client for the given endpoint. An empty url selects
// DefaultOCRSpaceURL; a zero timeout selects 30 seconds.
func NewOCRSpace(url, apiKey string, timeout time.Duration) *OCRSpace {
	if url == "" {
		url = DefaultOCRSpaceURL
	}
	if timeout <= 0 {
		timeout = 30 * time.Second // OCR of a full page can take 10-20s
	}
	return &OCRSpace{
		url:      url,
		apiKey:   apiKey,
		language: "eng",
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

func (s *OCRSpace) Name() string { return "ocrspace" }

func (s *OCRSpace) Text(ctx context.Context, image []byte) (string, error) {
	ft := fileType(Sniff(image))
	if ft == "" {
		return "", ErrUnsupportedImage
	}

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("file", "document."+strings.ToLower(ft))
	if err != nil {
		return "", fmt.Errorf("ocrspace: create form file: %w", err)
	}
	if _, err := part.Write(image); err != nil {
		return "", fmt.Errorf("ocrspace: write image data: %w", err)
	}
	for k, v := range map[string]string{
		"apikey":   s.apiKey,
		"filetype": ft,
		"language": s.language,
		"scale":    "true",
	} {
		if err := writer.WriteField(k, v); err != nil {
			return "", fmt.Errorf("ocrspace: write %s field: %w", k, err)
		}
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("ocrspace: close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, body)
	if err != nil {
		return "", fmt.Errorf("ocrspace: create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("ocrspace: request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("ocrspace: read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ocrspace: service returned %d: %s", resp.StatusCode, string(respBody))
	}

	var parsed ocrSpaceResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("ocrspace: parse response: %w", err)
	}
	if parsed.IsErroredOnProcessing {
		return "", fmt.Errorf("ocrspace: processing failed: %s", parsed.errorText())
	}
	if len(parsed.ParsedResults) == 0 {
		return "", ErrNoText
	}

	text := parsed.ParsedResults[0].ParsedText
	if strings.TrimSpace(text) == "" {
		return "", ErrNoText
	}
	return text, nil
}

// ocrSpaceResponse mirrors the parts of the OCR.space reply we read.
// ErrorMessage is a string or a list of strings depending on the failure.
type ocrSpaceResponse struct {
	ParsedResults []struct {
		ParsedText        string `json:"ParsedText"`
		FileParseExitCode int    `json:"FileParseExitCode"`
		ErrorMessage      string `json:"ErrorMessage"`
	} `json:"ParsedResults"`
	OCRExitCode           int             `json:"OCRExitCode"`
	IsErroredOnProcessing bool            `json:"IsErroredOnProcessing"`
	ErrorMessage          json.RawMessage `json:"ErrorMessage"`
}

func (r *ocrSpaceResponse) errorText() string {
	var list []string
	if err := json.Unmarshal(r.ErrorMessage, &list); err == nil {
		return strings.Join(list, "; ")
	}
	var single string
	if err := json.Unmarshal(r.ErrorMessage, &single); err == nil && single != "" {
		return single
	}
	return fmt.Sprintf("exit code %d", r.OCRExitCode)
}
