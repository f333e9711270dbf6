package services

import (
	"context"
	"strings"

	"google.golang.org/genai"
)

// Generator is the minimal generation capability the services need from the
// Gemini client. *genai.Models satisfies it; tests substitute fakes.
type Generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// responseText concatenates the text parts of the first candidate. Returns
// an empty string for nil or empty responses.
func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil && part.Text != "" {
			b.WriteString(part.Text)
		}
	}
	return b.String()
}
