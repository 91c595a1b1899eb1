package extractor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"kb-ingest-be/internal/pkg/faults"
)

// GeminiExtractor implements both extractor interfaces against the
// Gemini generateContent API.
type GeminiExtractor struct {
	ApiKey string
	Model  string

	httpClient *http.Client
}

func NewGeminiExtractor(apiKey string, model string) *GeminiExtractor {
	if model == "" {
		model = "gemini-2.0-flash"
	}
	return &GeminiExtractor{
		ApiKey:     apiKey,
		Model:      model,
		httpClient: &http.Client{},
	}
}

type geminiGenerateRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiGenerateResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

func (e *GeminiExtractor) ExtractImage(ctx context.Context, imageRef string, hint string) (string, error) {
	prompt := fmt.Sprintf("Describe the content of the image at %s so it can be indexed for search.", imageRef)
	if hint != "" {
		prompt = fmt.Sprintf("%s Context: %s", prompt, hint)
	}
	return e.generate(ctx, prompt)
}

func (e *GeminiExtractor) ExtractSummary(ctx context.Context, text string) (string, error) {
	prompt := fmt.Sprintf("Summarize the following passage in two sentences:\n\n%s", text)
	return e.generate(ctx, prompt)
}

func (e *GeminiExtractor) generate(ctx context.Context, prompt string) (string, error) {
	reqBody := geminiGenerateRequest{
		Contents: []geminiContent{
			{Parts: []geminiPart{{Text: prompt}}},
		},
	}
	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return "", err
	}

	endpoint := fmt.Sprintf(
		"https://generativelanguage.googleapis.com/v1/models/%s:generateContent",
		e.Model,
	)

	req, err := http.NewRequestWithContext(ctx, "POST", endpoint, bytes.NewBuffer(jsonBody))
	if err != nil {
		return "", err
	}
	req.Header.Set("x-goog-api-key", e.ApiKey)
	req.Header.Set("Content-Type", "application/json")

	res, err := e.httpClient.Do(req)
	if err != nil {
		return "", faults.Transient("gemini request: %v", err)
	}
	defer res.Body.Close()

	resByte, err := io.ReadAll(res.Body)
	if err != nil {
		return "", faults.Transient("gemini read: %v", err)
	}

	if res.StatusCode != http.StatusOK {
		return "", faults.Transient("gemini response code %d, body %s", res.StatusCode, string(resByte))
	}

	var parsed geminiGenerateResponse
	if err := json.Unmarshal(resByte, &parsed); err != nil {
		return "", err
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return "", faults.Transient("gemini returned no candidates")
	}

	return parsed.Candidates[0].Content.Parts[0].Text, nil
}
