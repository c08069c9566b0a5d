// internal/llmclient/prompt.go
package llmclient

import (
	"errors"
	"fmt"
	"strings"

	json "github.com/json-iterator/go"

	"github.com/xkilldash9x/loopguard/api/schemas"
)

// DefaultBasePrompt is used when a request carries no system prompt.
const DefaultBasePrompt = "You are an AI assistant helping with desktop automation. " +
	"Generate a safe, concise prompt based on the screen content provided."

const responseInstruction = `Return ONLY a JSON object with this exact structure:
{
  "continuation_prompt": "<your generated prompt text, max 200 chars>",
  "continuation_prompt_risk": <risk level 0.0-1.0>,
  "task_complete": <true if the task on screen is finished, otherwise false>,
  "task_complete_reason": "<short reason when task_complete is true, otherwise null>"
}

Do not include any explanation or additional text.`

var (
	// ErrUnknownProvider is returned by NewClient for an unsupported provider.
	ErrUnknownProvider = errors.New("unknown llm provider")
	// ErrInvalidResponse marks model output that is not the expected JSON.
	ErrInvalidResponse = errors.New("invalid llm response")
	// ErrEmptyResponse marks a reply without any content.
	ErrEmptyResponse = errors.New("empty llm response")
)

// BuildSystemMessage assembles the instruction block sent with every request.
func BuildSystemMessage(req schemas.PromptRequest) string {
	base := req.SystemPrompt
	if base == "" {
		base = DefaultBasePrompt
	}
	var b strings.Builder
	b.WriteString(base)
	if req.RiskGuidance != "" {
		b.WriteString("\n\n")
		b.WriteString(req.RiskGuidance)
	}
	b.WriteString("\n\n")
	b.WriteString(responseInstruction)
	return b.String()
}

// buildUserText names the regions the attached images belong to.
func buildUserText(req schemas.PromptRequest) string {
	if len(req.Regions) == 0 {
		return "No screen regions attached."
	}
	labels := make([]string, len(req.Regions))
	for i, r := range req.Regions {
		labels[i] = r.Label()
	}
	if len(req.Images) == 0 {
		return "Screen regions: " + strings.Join(labels, ", ")
	}
	return fmt.Sprintf("Screen regions (one image each, in order): %s", strings.Join(labels, ", "))
}

// stripFences removes a surrounding markdown code fence, if any.
func stripFences(content string) string {
	s := strings.TrimSpace(content)
	switch {
	case strings.HasPrefix(s, "```json"):
		s = strings.TrimPrefix(s, "```json")
	case strings.HasPrefix(s, "```"):
		s = strings.TrimPrefix(s, "```")
	default:
		return s
	}
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "```"))
}

// ParseResponse decodes the model's reply into a prompt response.
func ParseResponse(content string) (schemas.LLMPromptResponse, error) {
	var resp schemas.LLMPromptResponse
	body := stripFences(content)
	if body == "" {
		return resp, ErrEmptyResponse
	}
	if err := json.ConfigCompatibleWithStandardLibrary.UnmarshalFromString(body, &resp); err != nil {
		return resp, fmt.Errorf("%w: failed to parse LLM JSON response: %v. Content: %s", ErrInvalidResponse, err, body)
	}
	return resp, nil
}
