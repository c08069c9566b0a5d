// internal/profile/profile.go

// Package profile holds the persisted description of a watch profile and
// turns it into a runnable monitor.
package profile

import (
	"errors"
	"fmt"

	"github.com/xkilldash9x/loopguard/api/schemas"
)

// CurrentVersion is the document schema version written by Save.
const CurrentVersion = 1

// Trigger, condition and action type names accepted in documents.
const (
	TriggerInterval   = "IntervalTrigger"
	ConditionRegion   = "RegionCondition"
	ActionClick       = "Click"
	ActionMoveCursor  = "MoveCursor"
	ActionType        = "Type"
	ActionKey         = "Key"
	ActionLLMPrompt   = "LLMPromptGeneration"
	ActionTermination = "TerminationCheck"
)

var (
	ErrProfileNotFound    = errors.New("profile not found")
	ErrUnknownActionType  = errors.New("unknown action type")
	ErrUnknownTriggerType = errors.New("unknown trigger type")
	ErrUnknownCondition   = errors.New("unknown condition type")
	ErrOCRUnavailable     = errors.New("ocr backend unavailable")
	ErrLLMUnavailable     = errors.New("llm client unavailable")
	ErrInvalidProfile     = errors.New("invalid profile")
)

// Document is the on-disk collection of profiles.
type Document struct {
	Version  int       `json:"version" yaml:"version"`
	Profiles []Profile `json:"profiles" yaml:"profiles"`
}

// Find returns the profile with the given id.
func (d *Document) Find(id string) (Profile, error) {
	for _, p := range d.Profiles {
		if p.ID == id {
			return p, nil
		}
	}
	return Profile{}, fmt.Errorf("%w: '%s'", ErrProfileNotFound, id)
}

// Upsert replaces the profile with the same id or appends it.
func (d *Document) Upsert(p Profile) {
	for i := range d.Profiles {
		if d.Profiles[i].ID == p.ID {
			d.Profiles[i] = p
			return
		}
	}
	d.Profiles = append(d.Profiles, p)
}

// Profile is a complete watch configuration: what to look at, when, what to
// do and when to stop.
type Profile struct {
	ID         string            `json:"id" yaml:"id"`
	Name       string            `json:"name" yaml:"name"`
	Regions    []schemas.Region  `json:"regions" yaml:"regions"`
	Trigger    TriggerConfig     `json:"trigger" yaml:"trigger"`
	Condition  ConditionConfig   `json:"condition" yaml:"condition"`
	Actions    []ActionConfig    `json:"actions" yaml:"actions"`
	Guardrails *GuardrailsConfig `json:"guardrails,omitempty" yaml:"guardrails,omitempty"`
}

type TriggerConfig struct {
	Type             string  `json:"type" yaml:"type"`
	CheckIntervalSec float64 `json:"check_interval_sec" yaml:"check_interval_sec"`
}

type ConditionConfig struct {
	Type              string `json:"type" yaml:"type"`
	ConsecutiveChecks int    `json:"consecutive_checks" yaml:"consecutive_checks"`
	ExpectChange      bool   `json:"expect_change" yaml:"expect_change"`
}

// ActionConfig is one step of the action sequence, discriminated by Type.
// Only the fields of the selected type are read.
type ActionConfig struct {
	Type string `json:"type" yaml:"type"`

	// Click and MoveCursor. A Click without coordinates clicks in place.
	X      *int   `json:"x,omitempty" yaml:"x,omitempty"`
	Y      *int   `json:"y,omitempty" yaml:"y,omitempty"`
	Button string `json:"button,omitempty" yaml:"button,omitempty"`

	// Type and Key.
	Text string `json:"text,omitempty" yaml:"text,omitempty"`
	Key  string `json:"key,omitempty" yaml:"key,omitempty"`

	// LLMPromptGeneration.
	RegionIDs     []string `json:"region_ids,omitempty" yaml:"region_ids,omitempty"`
	RiskThreshold float64  `json:"risk_threshold,omitempty" yaml:"risk_threshold,omitempty"`
	SystemPrompt  string   `json:"system_prompt,omitempty" yaml:"system_prompt,omitempty"`
	VariableName  string   `json:"variable_name,omitempty" yaml:"variable_name,omitempty"`
	OCRMode       string   `json:"ocr_mode,omitempty" yaml:"ocr_mode,omitempty"`

	// TerminationCheck.
	CheckType            string   `json:"check_type,omitempty" yaml:"check_type,omitempty"`
	ContextVars          []string `json:"context_vars,omitempty" yaml:"context_vars,omitempty"`
	OCRRegionIDs         []string `json:"ocr_region_ids,omitempty" yaml:"ocr_region_ids,omitempty"`
	AIQueryPrompt        string   `json:"ai_query_prompt,omitempty" yaml:"ai_query_prompt,omitempty"`
	TerminationCondition string   `json:"termination_condition,omitempty" yaml:"termination_condition,omitempty"`
}

// GuardrailsConfig is the safety policy. Zero values disable a guard.
type GuardrailsConfig struct {
	CooldownMs            uint64   `json:"cooldown_ms" yaml:"cooldown_ms"`
	MaxRuntimeMs          uint64   `json:"max_runtime_ms,omitempty" yaml:"max_runtime_ms,omitempty"`
	MaxActivationsPerHour int      `json:"max_activations_per_hour,omitempty" yaml:"max_activations_per_hour,omitempty"`
	HeartbeatTimeoutMs    uint64   `json:"heartbeat_timeout_ms,omitempty" yaml:"heartbeat_timeout_ms,omitempty"`
	OCRMode               string   `json:"ocr_mode,omitempty" yaml:"ocr_mode,omitempty"`
	SuccessKeywords       []string `json:"success_keywords,omitempty" yaml:"success_keywords,omitempty"`
	FailureKeywords       []string `json:"failure_keywords,omitempty" yaml:"failure_keywords,omitempty"`
	OCRTerminationPattern string   `json:"ocr_termination_pattern,omitempty" yaml:"ocr_termination_pattern,omitempty"`
	OCRRegionIDs          []string `json:"ocr_region_ids,omitempty" yaml:"ocr_region_ids,omitempty"`
}

// DefaultProfile returns a profile that checks every five seconds and does
// nothing until actions are added.
func DefaultProfile() Profile {
	return Profile{
		ID:        "default",
		Name:      "Default",
		Regions:   []schemas.Region{},
		Trigger:   TriggerConfig{Type: TriggerInterval, CheckIntervalSec: 5},
		Condition: ConditionConfig{Type: ConditionRegion, ConsecutiveChecks: 1},
		Actions:   []ActionConfig{},
		Guardrails: &GuardrailsConfig{
			CooldownMs: 5000,
		},
	}
}
