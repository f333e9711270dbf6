package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"google.golang.org/genai"
)

// Summarizer produces the short indexed summary for a raw guide record.
// Used only by the offline ingestion path.
type Summarizer interface {
	Summarize(ctx context.Context, guideJSON string) (string, error)
}

const summaryPrompt = `Generate a concise repair guide summary. Include: ` +
	"- Appliance type\n" +
	"- Model names\n" +
	"- Repair title\n" +
	"- Key steps\n" +
	"- Critical components\n\n" +
	"Guide content:\n"

// GeminiSummarizer summarizes guide records with bounded retries. Empty
// responses and provider errors are retried with exponential backoff; the
// final failure is escalated to the caller, which skips the file.
type GeminiSummarizer struct {
	gen         Generator
	model       string
	maxAttempts int
	baseDelay   time.Duration
}

const maxRetryDelay = 30 * time.Second

// NewGeminiSummarizer creates a summarizer with the given retry policy.
func NewGeminiSummarizer(gen Generator, model string, maxAttempts int, baseDelay time.Duration) *GeminiSummarizer {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &GeminiSummarizer{
		gen:         gen,
		model:       model,
		maxAttempts: maxAttempts,
		baseDelay:   baseDelay,
	}
}

// Summarize implements Summarizer.
func (s *GeminiSummarizer) Summarize(ctx context.Context, guideJSON string) (string, error) {
	delay := s.baseDelay
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		resp, err := s.gen.GenerateContent(ctx, s.model, genai.Text(summaryPrompt+guideJSON), nil)
		if err != nil {
			log.Printf("SUMMARIZER: attempt %d/%d failed: %v", attempt, s.maxAttempts, err)
		} else if text := responseText(resp); text != "" {
			if attempt > 1 {
				log.Printf("SUMMARIZER: success on attempt %d", attempt)
			}
			return CleanText(text), nil
		} else {
			log.Printf("SUMMARIZER: attempt %d/%d returned an empty response, retrying...", attempt, s.maxAttempts)
		}

		if attempt == s.maxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
		if delay > maxRetryDelay {
			delay = maxRetryDelay
		}
	}
	return "", fmt.Errorf("summary generation failed after %d attempts", s.maxAttempts)
}
