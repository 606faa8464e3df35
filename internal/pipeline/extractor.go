package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strings"

	"google.golang.org/genai"
)

// GeminiExtractor is the concrete Extractor backed by the Gemini API.
type GeminiExtractor struct {
	store           ImportStore
	modelName       string
	defaultCurrency string
}

// NewGeminiExtractor creates an extractor that builds its category prompt
// from the store's active taxonomy.
func NewGeminiExtractor(store ImportStore, modelName, defaultCurrency string) *GeminiExtractor {
	if modelName == "" {
		modelName = DefaultModelName
	}
	return &GeminiExtractor{
		store:           store,
		modelName:       modelName,
		defaultCurrency: defaultCurrency,
	}
}

// ExtractStatement sends the statement file to Gemini and returns the parsed
// JSON output wrapped under "transactions".
func (e *GeminiExtractor) ExtractStatement(ctx context.Context, data []byte, mimeType string) (map[string]interface{}, error) {
	categories, err := e.store.ListActiveCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("ExtractStatement: loading categories: %w", err)
	}

	fullPrompt := buildExtractionPrompt(categories, e.defaultCurrency)

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return nil, fmt.Errorf("ExtractStatement: create genai client: %w", err)
	}

	contents := []*genai.Content{
		{
			Role: "user",
			Parts: []*genai.Part{
				{Text: fullPrompt},
				{
					InlineData: &genai.Blob{
						MIMEType: mimeType,
						Data:     data,
					},
				},
			},
		},
	}

	resp, err := client.Models.GenerateContent(ctx, e.modelName, contents, nil)
	if err != nil {
		return nil, fmt.Errorf("ExtractStatement: generate content: %w", err)
	}

	rawText := resp.Text()
	if rawText == "" {
		return nil, fmt.Errorf("ExtractStatement: empty response from model")
	}

	// Clean up Markdown fences / extra text if the model ignored instructions.
	clean := cleanModelJSON(rawText)

	var parsed interface{}
	if err := json.Unmarshal([]byte(clean), &parsed); err != nil {
		return nil, fmt.Errorf("ExtractStatement: unmarshal JSON: %w\nraw response: %s", err, rawText)
	}

	// Expect top-level array; for flexibility we just wrap it under "transactions".
	return map[string]interface{}{
		"transactions": parsed,
	}, nil
}

func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)

	// Handle ```json ... ``` or ``` ... ``` wrappers.
	if strings.HasPrefix(s, "```") {
		// Drop the first line (``` or ```json).
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		} else {
			// Single-line weirdness; just return as-is.
			return s
		}
		s = strings.TrimSpace(s)
	}

	// Remove trailing ``` if present.
	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}

	s = strings.TrimSpace(s)

	// Extra safety: if there's still junk around the JSON array,
	// try to keep only from the first '[' to the last ']'.
	if start := strings.Index(s, "["); start != -1 {
		if end := strings.LastIndex(s, "]"); end != -1 && end > start {
			s = s[start : end+1]
			s = strings.TrimSpace(s)
		}
	}

	return s
}

// mimeTypeForFilename infers the upload MIME type from the file extension.
func mimeTypeForFilename(filename string) string {
	switch strings.ToLower(path.Ext(filename)) {
	case ".pdf":
		return "application/pdf"
	case ".csv":
		return "text/csv"
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	default:
		return "application/octet-stream"
	}
}
