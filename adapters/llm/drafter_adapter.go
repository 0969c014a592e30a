package llm

import (
	"context"
	"fmt"
	"strings"

	"attune/ports"
)

// DrafterAdapter implements ports.SuggestionDrafter. Failures are recoverable:
// the offer manager degrades to an offer with no suggested content.
type DrafterAdapter struct {
	client LLMClient
}

// NewDrafterAdapter creates a suggestion drafter adapter
func NewDrafterAdapter(client LLMClient) *DrafterAdapter {
	return &DrafterAdapter{client: client}
}

// Draft proposes share content for the subject to accept or edit
func (a *DrafterAdapter) Draft(ctx context.Context, req ports.DraftRequest) (string, error) {
	prompt := buildDraftPrompt(req.GuessText, req.ActualText, req.ShareFocus)

	content, err := a.client.ChatCompletion(ctx, draftSystemPrompt, prompt)
	if err != nil {
		return "", fmt.Errorf("draft suggestion failed: %w", err)
	}

	content = strings.TrimSpace(content)
	if content == "" {
		return "", fmt.Errorf("draft suggestion returned empty content")
	}
	return content, nil
}
