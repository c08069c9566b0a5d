// internal/monitor/guardrails.go
package monitor

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/xkilldash9x/loopguard/api/schemas"
)

// Watchdog trip reasons raised by the monitor itself.
const (
	ReasonMaxRuntime            = "max_runtime"
	ReasonHeartbeatStalled      = "heartbeat_stalled"
	ReasonMaxActivationsPerHour = "max_activations_per_hour"
	ReasonPanicStop             = "panic_stop"
	ReasonTerminationRequested  = "termination_requested"
)

const rateWindow = time.Hour

// Guardrails is the safety policy of a run. Zero durations and counts
// disable the corresponding guard.
type Guardrails struct {
	Cooldown              time.Duration
	MaxRuntime            time.Duration
	MaxActivationsPerHour int
	HeartbeatTimeout      time.Duration
	OCRMode               schemas.OCRMode
	// SuccessKeywords and FailureKeywords are regular expressions; an entry
	// that does not compile is matched as a case-insensitive substring.
	SuccessKeywords       []string
	FailureKeywords       []string
	OCRTerminationPattern string
	OCRRegionIDs          []string
}

// OCRScanEnabled reports whether the pre-action OCR termination scan runs.
func (g Guardrails) OCRScanEnabled() bool {
	if g.OCRMode != "" && g.OCRMode != schemas.OCRLocal {
		return false
	}
	if len(g.OCRRegionIDs) == 0 {
		return false
	}
	return len(g.SuccessKeywords) > 0 || len(g.FailureKeywords) > 0 || g.OCRTerminationPattern != ""
}

// terminationMatcher holds the compiled form of the OCR termination policy.
type terminationMatcher struct {
	success []keyword
	failure []keyword
	pattern *regexp.Regexp
	raw     string
}

type keyword struct {
	text string
	re   *regexp.Regexp
}

func compileKeywords(list []string) []keyword {
	out := make([]keyword, 0, len(list))
	for _, k := range list {
		re, _ := regexp.Compile(k)
		out = append(out, keyword{text: k, re: re})
	}
	return out
}

func newTerminationMatcher(g Guardrails) *terminationMatcher {
	m := &terminationMatcher{
		success: compileKeywords(g.SuccessKeywords),
		failure: compileKeywords(g.FailureKeywords),
		raw:     g.OCRTerminationPattern,
	}
	if g.OCRTerminationPattern != "" {
		// An invalid custom pattern never matches.
		m.pattern, _ = regexp.Compile(g.OCRTerminationPattern)
	}
	return m
}

// match tests success keywords, then failure keywords, then the custom
// pattern, and returns the reason for the first hit.
func (m *terminationMatcher) match(text string) (string, bool) {
	upper := strings.ToUpper(text)
	check := func(list []keyword, kind string) (string, bool) {
		for _, k := range list {
			if k.re != nil {
				if k.re.MatchString(text) {
					return fmt.Sprintf("ocr_%s_pattern: %s", kind, k.text), true
				}
			} else if strings.Contains(upper, strings.ToUpper(k.text)) {
				return fmt.Sprintf("ocr_%s_keyword: %s", kind, k.text), true
			}
		}
		return "", false
	}
	if reason, ok := check(m.success, "success"); ok {
		return reason, true
	}
	if reason, ok := check(m.failure, "failure"); ok {
		return reason, true
	}
	if m.pattern != nil && m.pattern.MatchString(text) {
		return "ocr_termination_pattern: " + m.raw, true
	}
	return "", false
}
