// internal/action/llm_prompt.go
package action

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image/png"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/xkilldash9x/loopguard/api/schemas"
	"go.uber.org/zap"
)

// RiskGuidance is sent with every prompt-generation request so the model
// scores the risk of what it proposes on a shared scale.
const RiskGuidance = `Risk Assessment Guidelines:
- Low risk (0.0-0.33): Safe code changes inside workspace, no deletions, no external communication
- Medium risk (0.34-0.66): Git pushes, tag deletions, file operations inside workspace
- High risk (0.67-1.0): Operations outside workspace, elevated privileges, installing software, data transfer outside workspace

Consider the user's risk threshold when choosing the safest viable prompt.`

const defaultLocalBasePrompt = "You are an AI assistant helping with desktop automation."

// Collaborators are the external services actions may call besides the
// automation backend.
type Collaborators struct {
	// Regions is the full region list of the profile.
	Regions []schemas.Region
	Capture schemas.ScreenCapture
	// OCR may be nil when no action or guardrail uses local text extraction.
	OCR    schemas.TextExtractor
	LLM    schemas.LLMClient
	Alarm  schemas.Alarm
	Logger *zap.Logger
}

func (c Collaborators) logger() *zap.Logger {
	if c.Logger == nil {
		return zap.NewNop()
	}
	return c.Logger
}

// resolveRegions looks up ids in order and fails on the first unknown id.
func (c Collaborators) resolveRegions(ids []string) ([]schemas.Region, error) {
	out := make([]schemas.Region, 0, len(ids))
	for _, id := range ids {
		r, ok := schemas.FindRegion(c.Regions, id)
		if !ok {
			return nil, fail(ErrRegionNotFound, "Region '%s' not found", id)
		}
		out = append(out, r)
	}
	return out, nil
}

// extractText runs cached OCR over a region, keyed by its current hash.
func (c Collaborators) extractText(ctx context.Context, r schemas.Region) (string, error) {
	if c.OCR == nil {
		return "", fail(ErrOCRUnavailable, "local OCR mode requires an OCR backend")
	}
	hash := c.Capture.HashRegion(r, 1)
	text, err := c.OCR.ExtractTextCached(ctx, r, hash)
	if err != nil {
		return "", failWith(ErrOCRFailed, err, "OCR extraction failed for '%s'", r.ID)
	}
	return text, nil
}

// LLMPromptConfig configures an LLMPromptGeneration action.
type LLMPromptConfig struct {
	RegionIDs     []string
	RiskThreshold float64
	// SystemPrompt replaces the model's default base prompt when set.
	SystemPrompt string
	// VariableName receives the generated prompt. Defaults to "prompt".
	VariableName string
	Mode         schemas.OCRMode
}

// LLMPromptGeneration asks a language model for the next prompt to type,
// based on what is visible in a set of regions, and stores it in the context.
type LLMPromptGeneration struct {
	cfg    LLMPromptConfig
	deps   Collaborators
	logger *zap.Logger
}

// NewLLMPromptGeneration validates the configuration and collaborators.
func NewLLMPromptGeneration(cfg LLMPromptConfig, deps Collaborators) (*LLMPromptGeneration, error) {
	if deps.Capture == nil {
		return nil, errors.New("screen capture cannot be nil")
	}
	if deps.LLM == nil {
		return nil, errors.New("llm client cannot be nil")
	}
	if cfg.VariableName == "" {
		cfg.VariableName = DefaultVariable
	}
	if cfg.Mode == "" {
		cfg.Mode = schemas.OCRLocal
	}
	if cfg.Mode == schemas.OCRLocal && deps.OCR == nil {
		return nil, fail(ErrOCRUnavailable, "local OCR mode requires an OCR backend")
	}
	if cfg.RiskThreshold < 0 || cfg.RiskThreshold > 1 {
		return nil, fmt.Errorf("risk_threshold must be between 0.0 and 1.0, got %v", cfg.RiskThreshold)
	}
	return &LLMPromptGeneration{
		cfg:    cfg,
		deps:   deps,
		logger: deps.logger().Named("llm_prompt"),
	}, nil
}

func (*LLMPromptGeneration) Name() string { return "LLMPromptGeneration" }

func (a *LLMPromptGeneration) Execute(ctx context.Context, _ schemas.Automation, actx *Context) error {
	regions, err := a.deps.resolveRegions(a.cfg.RegionIDs)
	if err != nil {
		return err
	}

	req := schemas.PromptRequest{
		Regions:      regions,
		SystemPrompt: a.cfg.SystemPrompt,
		RiskGuidance: RiskGuidance,
	}
	switch a.cfg.Mode {
	case schemas.OCRVision:
		if req.Images, err = a.captureImages(ctx, regions); err != nil {
			return err
		}
	default:
		text, err := a.extractAll(ctx, regions)
		if err != nil {
			return err
		}
		base := a.cfg.SystemPrompt
		if base == "" {
			base = defaultLocalBasePrompt
		}
		req.SystemPrompt = base + "\n\nExtracted text from screen regions:\n" + text
	}

	resp, err := a.deps.LLM.GeneratePrompt(ctx, req)
	if err != nil {
		return err
	}

	if resp.TaskComplete {
		reason := "LLM signaled task complete"
		if resp.TaskCompleteReason != nil && *resp.TaskCompleteReason != "" {
			reason = *resp.TaskCompleteReason
		}
		a.logger.Info("Model reports task complete.", zap.String("reason", reason))
		actx.RequestTermination(reason)
		// The prompt is advisory here but kept for inspection.
		if resp.ContinuationPrompt != nil {
			actx.Set(a.cfg.VariableName, *resp.ContinuationPrompt)
		}
		actx.Set(VarTaskComplete, "true")
		return nil
	}

	if resp.ContinuationPrompt == nil {
		return fail(ErrMissingPrompt, "LLM did not provide continuation_prompt")
	}
	prompt := *resp.ContinuationPrompt
	risk := resp.ContinuationPromptRisk

	if risk > a.cfg.RiskThreshold {
		if a.deps.Alarm != nil {
			a.deps.Alarm.InterventionNeeded(fmt.Sprintf("risk %s exceeds threshold %s", formatFloat(risk), formatFloat(a.cfg.RiskThreshold)))
		}
		return fail(ErrRiskThresholdExceeded, "Risk threshold exceeded: %s > %s (generated prompt: '%s')",
			formatFloat(risk), formatFloat(a.cfg.RiskThreshold), prompt)
	}
	if prompt == "" {
		return fail(ErrEmptyPrompt, "LLM returned empty continuation_prompt")
	}
	if n := utf8.RuneCountInString(prompt); n > schemas.MaxPromptLength {
		return fail(ErrPromptTooLong, "LLM prompt too long: %d characters (max %d)", n, schemas.MaxPromptLength)
	}

	actx.Set(a.cfg.VariableName, prompt)
	actx.Set(VarPromptRisk, formatFloat(risk))
	actx.Set(VarTaskComplete, "false")
	return nil
}

func (a *LLMPromptGeneration) extractAll(ctx context.Context, regions []schemas.Region) (string, error) {
	texts := make([]string, 0, len(regions))
	for _, r := range regions {
		text, err := a.deps.extractText(ctx, r)
		if err != nil {
			return "", err
		}
		texts = append(texts, fmt.Sprintf("Region '%s': %s", r.ID, text))
	}
	return strings.Join(texts, "\n\n"), nil
}

func (a *LLMPromptGeneration) captureImages(ctx context.Context, regions []schemas.Region) ([][]byte, error) {
	images := make([][]byte, 0, len(regions))
	for _, r := range regions {
		frame, err := a.deps.Capture.CaptureRegion(ctx, r)
		if err != nil {
			return nil, failWith(ErrCaptureFailed, err, "Failed to capture region '%s'", r.ID)
		}
		var buf bytes.Buffer
		if err := png.Encode(&buf, frame.RGBA()); err != nil {
			return nil, failWith(ErrCaptureFailed, err, "Failed to encode region '%s'", r.ID)
		}
		images = append(images, buf.Bytes())
	}
	return images, nil
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
