package llm

import (
	"fmt"
)

const gapSystemPrompt = `You compare an empathy guess against what a person actually expressed. ` +
	`Respond with a single JSON object and nothing else.`

const gapPromptTemplate = `One partner guessed what the other is feeling. Compare the guess against
what the other partner actually expressed and grade the gap.

GUESS:
%s

ACTUALLY EXPRESSED:
%s

Return JSON with exactly these fields:
{
  "alignment_score": <0-100, how well the guess matches>,
  "gap_severity": <"none" | "minor" | "moderate" | "significant">,
  "recommended_action": <"proceed" | "offer_optional" | "offer_sharing">,
  "suggested_share_focus": <short topic the subject could share more about, or "">
}

Use "proceed" when the guess is substantially right. Use "offer_sharing" when
the guess misses something important the subject expressed. Use
"offer_optional" for borderline gaps, and include a share focus only when
there is a concrete topic worth sharing.`

const draftSystemPrompt = `You help someone share a little more emotional context with their partner. ` +
	`Write in their voice, first person, two or three sentences. Plain text only.`

const draftPromptTemplate = `Their partner guessed:
%s

They actually expressed:
%s

Topic worth sharing more about: %s

Draft a short, warm message the person could send to help their partner
understand this topic better. Do not reveal or mention the guess.`

func buildGapPrompt(guessText, actualText string) string {
	return fmt.Sprintf(gapPromptTemplate, guessText, actualText)
}

func buildDraftPrompt(guessText, actualText, shareFocus string) string {
	return fmt.Sprintf(draftPromptTemplate, guessText, actualText, shareFocus)
}
