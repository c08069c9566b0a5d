// api/schemas/llm.go
package schemas

import (
	"fmt"
	"strings"
)

// MaxPromptLength bounds a continuation prompt, in characters.
const MaxPromptLength = 200

// OCRMode selects how screen content reaches the language model.
type OCRMode string

const (
	// OCRLocal extracts text locally and sends text only.
	OCRLocal OCRMode = "local"
	// OCRVision sends captured region images to the model.
	OCRVision OCRMode = "vision"
)

// ParseOCRMode accepts mode names case-insensitively. Empty means local.
func ParseOCRMode(s string) (OCRMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "local":
		return OCRLocal, nil
	case "vision":
		return OCRVision, nil
	default:
		return "", fmt.Errorf("unknown ocr mode %q", s)
	}
}

// LLMPromptResponse is the structured reply of a prompt-generation model.
type LLMPromptResponse struct {
	ContinuationPrompt     *string `json:"continuation_prompt"`
	ContinuationPromptRisk float64 `json:"continuation_prompt_risk"`
	TaskComplete           bool    `json:"task_complete"`
	TaskCompleteReason     *string `json:"task_complete_reason,omitempty"`
}

// PromptRequest is everything a model needs to propose the next prompt.
type PromptRequest struct {
	Regions []Region
	// Images holds PNG-encoded captures, one per region, in vision mode.
	Images [][]byte
	// SystemPrompt overrides the client's default base prompt when non-empty.
	SystemPrompt string
	RiskGuidance string
}
