// internal/action/termination.go
package action

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/xkilldash9x/loopguard/api/schemas"
	"go.uber.org/zap"
)

// Termination check modes.
const (
	CheckContext = "context"
	CheckOCR     = "ocr"
	CheckAIQuery = "ai_query"
)

// TerminationCheckConfig configures a TerminationCheck action.
type TerminationCheckConfig struct {
	CheckType string
	// ContextVars are the variables matched in "context" mode.
	ContextVars []string
	// OCRRegionIDs are the regions read in "ocr" mode.
	OCRRegionIDs []string
	// AIQueryPrompt is sent to the model in "ai_query" mode.
	AIQueryPrompt string
	// TerminationCondition is the regular expression for "context" and "ocr".
	TerminationCondition string
}

// TerminationCheck decides whether the run is finished and, if so, requests
// monitor termination. A check that does not match is a success.
type TerminationCheck struct {
	cfg     TerminationCheckConfig
	pattern *regexp.Regexp
	deps    Collaborators
	logger  *zap.Logger
}

// NewTerminationCheck validates the mode and compiles the condition.
func NewTerminationCheck(cfg TerminationCheckConfig, deps Collaborators) (*TerminationCheck, error) {
	a := &TerminationCheck{cfg: cfg, deps: deps, logger: deps.logger().Named("termination_check")}
	switch cfg.CheckType {
	case CheckContext, CheckOCR:
		re, err := regexp.Compile(cfg.TerminationCondition)
		if err != nil {
			return nil, failWith(ErrInvalidPattern, err, "invalid termination_condition %q", cfg.TerminationCondition)
		}
		a.pattern = re
		if cfg.CheckType == CheckOCR {
			if deps.OCR == nil {
				return nil, fail(ErrOCRUnavailable, "ocr termination check requires an OCR backend")
			}
			if deps.Capture == nil {
				return nil, errors.New("screen capture cannot be nil")
			}
		}
	case CheckAIQuery:
		if deps.LLM == nil {
			return nil, errors.New("llm client cannot be nil")
		}
	default:
		return nil, fail(ErrUnknownCheckType, "unknown check_type '%s'", cfg.CheckType)
	}
	return a, nil
}

func (*TerminationCheck) Name() string { return "TerminationCheck" }

func (a *TerminationCheck) Execute(ctx context.Context, _ schemas.Automation, actx *Context) error {
	var (
		reason  string
		matched bool
		err     error
	)
	switch a.cfg.CheckType {
	case CheckContext:
		reason, matched = a.checkContext(actx)
	case CheckOCR:
		reason, matched, err = a.checkOCR(ctx)
	case CheckAIQuery:
		reason, matched, err = a.checkAIQuery(ctx)
	default:
		// Only reachable when the struct was built without the constructor.
		return fail(ErrUnknownCheckType, "unknown check_type '%s'", a.cfg.CheckType)
	}
	if err != nil {
		return err
	}
	if !matched {
		return nil
	}

	a.logger.Info("Termination condition met.", zap.String("check_type", a.cfg.CheckType), zap.String("reason", reason))
	actx.RequestTermination(reason)
	actx.emit(schemas.TerminationCheckTriggered{CheckType: a.cfg.CheckType, Reason: reason})
	return nil
}

func (a *TerminationCheck) checkContext(actx *Context) (string, bool) {
	for _, name := range a.cfg.ContextVars {
		value, ok := actx.Get(name)
		if !ok {
			continue
		}
		if a.pattern.MatchString(value) {
			return fmt.Sprintf("context_match: %s =~ %s", name, a.cfg.TerminationCondition), true
		}
	}
	return "", false
}

func (a *TerminationCheck) checkOCR(ctx context.Context) (string, bool, error) {
	regions, err := a.deps.resolveRegions(a.cfg.OCRRegionIDs)
	if err != nil {
		return "", false, err
	}
	for _, r := range regions {
		text, err := a.deps.extractText(ctx, r)
		if err != nil {
			return "", false, err
		}
		if a.pattern.MatchString(text) {
			return fmt.Sprintf("ocr_match: %s =~ %s", r.ID, a.cfg.TerminationCondition), true, nil
		}
	}
	return "", false, nil
}

func (a *TerminationCheck) checkAIQuery(ctx context.Context) (string, bool, error) {
	resp, err := a.deps.LLM.GeneratePrompt(ctx, schemas.PromptRequest{
		SystemPrompt: a.cfg.AIQueryPrompt,
		RiskGuidance: RiskGuidance,
	})
	if err != nil {
		return "", false, err
	}
	if !resp.TaskComplete {
		return "", false, nil
	}
	reason := "ai_query: task complete"
	if resp.TaskCompleteReason != nil && *resp.TaskCompleteReason != "" {
		reason = "ai_query: " + *resp.TaskCompleteReason
	}
	return reason, true, nil
}
