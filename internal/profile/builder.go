// internal/profile/builder.go
package profile

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/loopguard/api/schemas"
	"github.com/xkilldash9x/loopguard/internal/action"
	"github.com/xkilldash9x/loopguard/internal/monitor"
)

// Builder assembles monitors from profiles. Capture is required; OCR, LLM
// and Alarm are only required by profiles that use them.
type Builder struct {
	Capture schemas.ScreenCapture
	OCR     schemas.TextExtractor
	LLM     schemas.LLMClient
	Alarm   schemas.Alarm
	Logger  *zap.Logger

	// HashDownscale is the sampling stride of the region condition.
	HashDownscale int
	// ActionDelay is the pause between actions. Negative means the default.
	ActionDelay time.Duration
	// Clock replaces time.Now in the monitor.
	Clock func() time.Time
}

// Build validates p and returns a stopped monitor plus the regions it
// watches. Every configuration problem is reported here, before the
// monitor ever runs.
func (b *Builder) Build(p Profile) (*monitor.Monitor, []schemas.Region, error) {
	if b.Capture == nil {
		return nil, nil, errors.New("screen capture cannot be nil")
	}
	logger := b.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("profile_id", p.ID))

	regions, err := validateRegions(p.Regions)
	if err != nil {
		return nil, nil, err
	}

	trigger, err := buildTrigger(p.Trigger)
	if err != nil {
		return nil, nil, err
	}
	condition, err := b.buildCondition(p.Condition)
	if err != nil {
		return nil, nil, err
	}
	guardrails, err := buildGuardrails(p.Guardrails)
	if err != nil {
		return nil, nil, err
	}
	if guardrails.OCRScanEnabled() && b.OCR == nil {
		return nil, nil, fmt.Errorf("%w: guardrails use local OCR termination keywords", ErrOCRUnavailable)
	}

	deps := action.Collaborators{
		Regions: regions,
		Capture: b.Capture,
		OCR:     b.OCR,
		LLM:     b.LLM,
		Alarm:   b.Alarm,
		Logger:  logger,
	}
	var actions []action.Action
	for i, cfg := range p.Actions {
		built, err := b.buildAction(cfg, deps)
		if err != nil {
			return nil, nil, fmt.Errorf("action %d (%s): %w", i, cfg.Type, err)
		}
		actions = append(actions, built...)
	}

	seqOpts := []action.SequenceOption{action.WithSequenceLogger(logger)}
	if b.ActionDelay >= 0 {
		seqOpts = append(seqOpts, action.WithDelay(b.ActionDelay))
	}
	opts := []monitor.Option{monitor.WithLogger(logger), monitor.WithOCR(b.OCR)}
	if b.Clock != nil {
		opts = append(opts, monitor.WithClock(b.Clock))
	}
	m, err := monitor.New(trigger, condition, action.NewSequence(actions, seqOpts...), guardrails, opts...)
	if err != nil {
		return nil, nil, err
	}
	return m, regions, nil
}

// Validate checks p without any collaborators beyond what it declares it
// needs. ocrAvailable and llmAvailable describe the host.
func Validate(p Profile, ocrAvailable, llmAvailable bool) error {
	b := &Builder{Capture: validationCapture{}}
	if ocrAvailable {
		b.OCR = validationOCR{}
	}
	if llmAvailable {
		b.LLM = validationLLM{}
	}
	_, _, err := b.Build(p)
	return err
}

func validateRegions(regions []schemas.Region) ([]schemas.Region, error) {
	seen := make(map[string]struct{}, len(regions))
	out := make([]schemas.Region, 0, len(regions))
	for _, r := range regions {
		if strings.TrimSpace(r.ID) == "" {
			return nil, fmt.Errorf("%w: region id cannot be empty", ErrInvalidProfile)
		}
		if _, dup := seen[r.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate region id '%s'", ErrInvalidProfile, r.ID)
		}
		if r.Rect.Empty() {
			return nil, fmt.Errorf("%w: region '%s' has an empty rectangle", ErrInvalidProfile, r.ID)
		}
		seen[r.ID] = struct{}{}
		out = append(out, r)
	}
	return out, nil
}

func buildTrigger(cfg TriggerConfig) (monitor.Trigger, error) {
	switch cfg.Type {
	case TriggerInterval, "interval", "":
		if cfg.CheckIntervalSec <= 0 {
			return nil, fmt.Errorf("%w: trigger.check_interval_sec must be positive", ErrInvalidProfile)
		}
		interval := time.Duration(cfg.CheckIntervalSec * float64(time.Second))
		return monitor.NewIntervalTrigger(interval), nil
	default:
		return nil, fmt.Errorf("%w: '%s'", ErrUnknownTriggerType, cfg.Type)
	}
}

func (b *Builder) buildCondition(cfg ConditionConfig) (monitor.Condition, error) {
	switch cfg.Type {
	case ConditionRegion, "region", "":
		if cfg.ConsecutiveChecks < 0 {
			return nil, fmt.Errorf("%w: condition.consecutive_checks cannot be negative", ErrInvalidProfile)
		}
		return monitor.NewRegionCondition(cfg.ConsecutiveChecks, cfg.ExpectChange).WithDownscale(b.HashDownscale), nil
	default:
		return nil, fmt.Errorf("%w: '%s'", ErrUnknownCondition, cfg.Type)
	}
}

func buildGuardrails(cfg *GuardrailsConfig) (monitor.Guardrails, error) {
	if cfg == nil {
		return monitor.Guardrails{}, nil
	}
	mode, err := schemas.ParseOCRMode(cfg.OCRMode)
	if err != nil {
		return monitor.Guardrails{}, fmt.Errorf("%w: guardrails: %v", ErrInvalidProfile, err)
	}
	if cfg.MaxActivationsPerHour < 0 {
		return monitor.Guardrails{}, fmt.Errorf("%w: guardrails.max_activations_per_hour cannot be negative", ErrInvalidProfile)
	}
	return monitor.Guardrails{
		Cooldown:              ms(cfg.CooldownMs),
		MaxRuntime:            ms(cfg.MaxRuntimeMs),
		MaxActivationsPerHour: cfg.MaxActivationsPerHour,
		HeartbeatTimeout:      ms(cfg.HeartbeatTimeoutMs),
		OCRMode:               mode,
		SuccessKeywords:       cfg.SuccessKeywords,
		FailureKeywords:       cfg.FailureKeywords,
		OCRTerminationPattern: cfg.OCRTerminationPattern,
		OCRRegionIDs:          cfg.OCRRegionIDs,
	}, nil
}

func ms(v uint64) time.Duration {
	return time.Duration(v) * time.Millisecond
}

func (b *Builder) buildAction(cfg ActionConfig, deps action.Collaborators) ([]action.Action, error) {
	switch cfg.Type {
	case ActionClick:
		button, err := schemas.ParseMouseButton(cfg.Button)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidProfile, err)
		}
		var out []action.Action
		if cfg.X != nil || cfg.Y != nil {
			if cfg.X == nil || cfg.Y == nil {
				return nil, fmt.Errorf("%w: click needs both x and y", ErrInvalidProfile)
			}
			out = append(out, action.MoveCursor{X: *cfg.X, Y: *cfg.Y})
		}
		return append(out, action.Click{Button: button}), nil

	case ActionMoveCursor:
		if cfg.X == nil || cfg.Y == nil {
			return nil, fmt.Errorf("%w: move needs x and y", ErrInvalidProfile)
		}
		return []action.Action{action.MoveCursor{X: *cfg.X, Y: *cfg.Y}}, nil

	case ActionType:
		return []action.Action{action.TypeText{Text: cfg.Text}}, nil

	case ActionKey:
		if strings.TrimSpace(cfg.Key) == "" {
			return nil, fmt.Errorf("%w: key name is required", ErrInvalidProfile)
		}
		return []action.Action{action.Key{Key: cfg.Key}}, nil

	case ActionLLMPrompt:
		if deps.LLM == nil {
			return nil, ErrLLMUnavailable
		}
		mode, err := schemas.ParseOCRMode(cfg.OCRMode)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidProfile, err)
		}
		a, err := action.NewLLMPromptGeneration(action.LLMPromptConfig{
			RegionIDs:     cfg.RegionIDs,
			RiskThreshold: cfg.RiskThreshold,
			SystemPrompt:  cfg.SystemPrompt,
			VariableName:  cfg.VariableName,
			Mode:          mode,
		}, deps)
		if err != nil {
			return nil, classify(err)
		}
		return []action.Action{a}, nil

	case ActionTermination:
		if cfg.CheckType == action.CheckAIQuery && deps.LLM == nil {
			return nil, ErrLLMUnavailable
		}
		a, err := action.NewTerminationCheck(action.TerminationCheckConfig{
			CheckType:            cfg.CheckType,
			ContextVars:          cfg.ContextVars,
			OCRRegionIDs:         cfg.OCRRegionIDs,
			AIQueryPrompt:        cfg.AIQueryPrompt,
			TerminationCondition: cfg.TerminationCondition,
		}, deps)
		if err != nil {
			return nil, classify(err)
		}
		return []action.Action{a}, nil

	default:
		return nil, fmt.Errorf("%w: '%s'", ErrUnknownActionType, cfg.Type)
	}
}

// classify maps action construction errors onto builder sentinels while
// keeping the original error in the chain.
func classify(err error) error {
	if errors.Is(err, action.ErrOCRUnavailable) {
		return fmt.Errorf("%w: %w", ErrOCRUnavailable, err)
	}
	return fmt.Errorf("%w: %w", ErrInvalidProfile, err)
}

// Placeholders used by Validate. They are never called: building a monitor
// only checks that collaborators are present.
type validationCapture struct{}

func (validationCapture) HashRegion(schemas.Region, int) uint64 { return 0 }
func (validationCapture) CaptureRegion(context.Context, schemas.Region) (schemas.Frame, error) {
	return schemas.Frame{}, errors.New("validation only")
}
func (validationCapture) Displays(context.Context) ([]schemas.DisplayInfo, error) { return nil, nil }

type validationOCR struct{}

func (validationOCR) ExtractText(context.Context, schemas.Region) (string, error) { return "", nil }
func (validationOCR) ExtractTextCached(context.Context, schemas.Region, uint64) (string, error) {
	return "", nil
}

type validationLLM struct{}

func (validationLLM) GeneratePrompt(context.Context, schemas.PromptRequest) (schemas.LLMPromptResponse, error) {
	return schemas.LLMPromptResponse{}, errors.New("validation only")
}
