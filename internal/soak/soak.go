// internal/soak/soak.go

// Package soak runs a monitor against fake backends on a simulated clock to
// check that guardrails hold over long runs.
package soak

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/loopguard/api/schemas"
	"github.com/xkilldash9x/loopguard/internal/backend"
	"github.com/xkilldash9x/loopguard/internal/config"
	"github.com/xkilldash9x/loopguard/internal/llmclient"
	"github.com/xkilldash9x/loopguard/internal/profile"
)

// Config describes one soak run. Durations are simulated time.
type Config struct {
	Ticks    uint64        `json:"ticks"`
	Interval time.Duration `json:"interval"`
	// CheckInterval is the trigger period. Zero means Interval.
	CheckInterval     time.Duration `json:"check_interval"`
	ConsecutiveChecks int           `json:"consecutive_checks"`
	Cooldown          time.Duration `json:"cooldown"`
	MaxRuntime        time.Duration `json:"max_runtime"`
	Downscale         int           `json:"downscale"`
	// FlipEvery changes the screen content every n ticks. Zero keeps it static.
	FlipEvery uint64 `json:"flip_every"`
	// FailEvery makes every n-th tick's typing fail. Zero disables failures.
	FailEvery uint64 `json:"fail_every"`
	// UseLLM inserts a prompt-generation step backed by the mock model.
	UseLLM bool `json:"use_llm"`
}

// DefaultConfig returns the standard soak settings.
func DefaultConfig() Config {
	return Config{
		Ticks:             25_000,
		Interval:          100 * time.Millisecond,
		ConsecutiveChecks: 1,
		Cooldown:          50 * time.Millisecond,
		MaxRuntime:        2_000 * time.Millisecond,
		Downscale:         4,
	}
}

// Report summarizes a soak run.
type Report struct {
	TickBudget         uint64   `json:"tick_budget"`
	TicksExecuted      uint64   `json:"ticks_executed"`
	Activations        int      `json:"activations"`
	GuardrailTrips     []string `json:"guardrail_trips"`
	ErrorEvents        []string `json:"error_events"`
	ActionFailures     int      `json:"action_failures"`
	RuntimeMsSimulated int64    `json:"runtime_ms_simulated"`
	StoppedBy          string   `json:"stopped_by"`
}

func (r *Report) Emit(e schemas.Event) {
	switch ev := e.(type) {
	case schemas.WatchdogTripped:
		r.GuardrailTrips = append(r.GuardrailTrips, ev.Reason)
	case schemas.ErrorEvent:
		r.ErrorEvents = append(r.ErrorEvents, ev.Message)
	case schemas.ActionCompleted:
		if !ev.Success {
			r.ActionFailures++
		}
	}
}

const regionID = "soak-region"

func buildProfile(cfg Config) profile.Profile {
	check := cfg.CheckInterval
	if check <= 0 {
		check = cfg.Interval
	}
	var actions []profile.ActionConfig
	text := "continue"
	if cfg.UseLLM {
		actions = append(actions, profile.ActionConfig{
			Type:          profile.ActionLLMPrompt,
			RegionIDs:     []string{regionID},
			RiskThreshold: 0.5,
			OCRMode:       string(schemas.OCRVision),
		})
		text = "$prompt"
	}
	actions = append(actions,
		profile.ActionConfig{Type: profile.ActionType, Text: text},
		profile.ActionConfig{Type: profile.ActionKey, Key: "Enter"},
	)

	cooldownMs := uint64(cfg.Cooldown.Milliseconds())
	perHour := int(time.Hour.Milliseconds() / int64(max(cooldownMs, 1)))
	return profile.Profile{
		ID:   "soak-profile",
		Name: "Soak Profile",
		Regions: []schemas.Region{{
			ID:   regionID,
			Name: "Soak",
			Rect: schemas.Rect{Width: 640, Height: 400},
		}},
		Trigger:   profile.TriggerConfig{Type: profile.TriggerInterval, CheckIntervalSec: check.Seconds()},
		Condition: profile.ConditionConfig{Type: profile.ConditionRegion, ConsecutiveChecks: cfg.ConsecutiveChecks},
		Actions:   actions,
		Guardrails: &profile.GuardrailsConfig{
			CooldownMs:            cooldownMs,
			MaxRuntimeMs:          uint64(cfg.MaxRuntime.Milliseconds()),
			MaxActivationsPerHour: max(perHour, 1),
		},
	}
}

// Run executes a soak run. It stops early when the monitor stops itself or
// ctx is done; a cancelled run returns the partial report and ctx's error.
func Run(ctx context.Context, cfg Config, logger *zap.Logger) (Report, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Interval <= 0 {
		return Report{}, errors.New("soak interval must be positive")
	}
	logger = logger.Named("soak")

	fake := backend.NewFake(config.FakeConfig{}, logger)
	start := time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)
	b := &profile.Builder{
		Capture:       fake,
		LLM:           llmclient.NewMockClient(),
		HashDownscale: cfg.Downscale,
		ActionDelay:   0,
		Clock:         func() time.Time { return start },
	}
	m, regions, err := b.Build(buildProfile(cfg))
	if err != nil {
		return Report{}, fmt.Errorf("failed to build soak profile: %w", err)
	}

	report := &Report{TickBudget: cfg.Ticks}
	m.Start(report)

	now := start
	var runErr error
	for i := uint64(0); i < cfg.Ticks; i++ {
		if i%1024 == 0 {
			if runErr = ctx.Err(); runErr != nil {
				break
			}
		}
		if cfg.FlipEvery > 0 && i%cfg.FlipEvery == 0 {
			fake.SetContent(regionID, i/cfg.FlipEvery)
		}
		if cfg.FailEvery > 0 {
			if i%cfg.FailEvery == cfg.FailEvery-1 {
				fake.FailOn("type", errors.New("simulated input failure"))
			} else {
				fake.FailOn("type", nil)
			}
		}

		m.Tick(ctx, now, regions, fake, fake, report)
		fake.ResetCalls()
		report.TicksExecuted++
		if !m.IsRunning() {
			break
		}
		now = now.Add(cfg.Interval)
	}

	if m.IsRunning() {
		m.FinalizeShutdown(report, false)
		report.StoppedBy = "tick_budget"
		if runErr != nil {
			report.StoppedBy = "cancelled"
		}
	} else if n := len(report.GuardrailTrips); n > 0 {
		report.StoppedBy = report.GuardrailTrips[n-1]
	}
	report.Activations = m.Activations()
	report.RuntimeMsSimulated = int64(report.TicksExecuted) * cfg.Interval.Milliseconds()
	if report.GuardrailTrips == nil {
		report.GuardrailTrips = []string{}
	}
	if report.ErrorEvents == nil {
		report.ErrorEvents = []string{}
	}

	logger.Info("Soak run complete.",
		zap.Uint64("ticks", report.TicksExecuted),
		zap.Int("activations", report.Activations),
		zap.String("stopped_by", report.StoppedBy))
	return *report, runErr
}

// RunBatch executes independent soak runs concurrently.
func RunBatch(ctx context.Context, cfgs []Config, logger *zap.Logger) ([]Report, error) {
	reports := make([]Report, len(cfgs))
	g, gctx := errgroup.WithContext(ctx)
	for i, cfg := range cfgs {
		g.Go(func() error {
			r, err := Run(gctx, cfg, logger)
			reports[i] = r
			if err != nil {
				return fmt.Errorf("soak run %d: %w", i, err)
			}
			return nil
		})
	}
	return reports, g.Wait()
}
